// Package ai оборачивает предобученные ONNX графы энкодера и декодера
// кардиоциклов (ECG) для перехода waveform <-> латентный вектор
package ai

import (
	"fmt"
	"log"
	"os"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNX Runtime глобальная инициализация
var (
	onnxInitialized bool
	onnxInitMu      sync.Mutex
)

// sharedLibrarySearchPaths стандартные места поиска библиотеки ONNX Runtime
func sharedLibrarySearchPaths() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{
			"../Resources/libonnxruntime.dylib",
			"./libonnxruntime.dylib",
			"/opt/homebrew/lib/libonnxruntime.dylib",
			"/usr/local/lib/libonnxruntime.dylib",
		}
	case "windows":
		return []string{
			"./onnxruntime.dll",
		}
	default:
		return []string{
			"./libonnxruntime.so",
			"/usr/local/lib/libonnxruntime.so",
			"/usr/lib/libonnxruntime.so",
			"/usr/lib/x86_64-linux-gnu/libonnxruntime.so",
		}
	}
}

// InitRuntime загружает разделяемую библиотеку ONNX Runtime и создаёт окружение.
// Повторные вызовы ничего не делают. libPath может быть пустым: тогда
// используется ONNXRUNTIME_SHARED_LIBRARY_PATH, затем стандартные пути.
func InitRuntime(libPath string) error {
	onnxInitMu.Lock()
	defer onnxInitMu.Unlock()

	if onnxInitialized {
		return nil
	}

	if libPath == "" {
		libPath = os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")
	}

	if libPath == "" {
		for _, path := range sharedLibrarySearchPaths() {
			if _, err := os.Stat(path); err == nil {
				libPath = path
				break
			}
		}
	}

	if libPath == "" {
		return fmt.Errorf("ONNX Runtime library not found")
	}

	log.Printf("Using ONNX Runtime library: %s", libPath)
	ort.SetSharedLibraryPath(libPath)

	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX Runtime environment: %w", err)
	}

	onnxInitialized = true
	log.Println("ONNX Runtime initialized successfully")
	return nil
}

// ShutdownRuntime уничтожает окружение ONNX Runtime
func ShutdownRuntime() error {
	onnxInitMu.Lock()
	defer onnxInitMu.Unlock()

	if !onnxInitialized {
		return nil
	}
	onnxInitialized = false
	return ort.DestroyEnvironment()
}
