package ai

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"

	ort "github.com/yalue/onnxruntime_go"
)

// ErrNotInitialized возвращается при вызове закрытого энкодера/декодера
var ErrNotInitialized = errors.New("model not initialized")

// graphRunner выполняет граф с одним float32 входом.
// Возвращает данные и форму первого выходного тензора.
type graphRunner interface {
	Run(data []float32, shape []int64) ([]float32, []int64, error)
	InputDims() []int64
	Close()
}

// ortGraph граф, загруженный в сессию ONNX Runtime
type ortGraph struct {
	session     *ort.DynamicAdvancedSession
	inputNames  []string
	outputNames []string
	inputDims   []int64
}

// openGraph загружает ONNX граф из файла. Все выходы графа запрашиваются
// при каждом запуске, наружу отдаётся только первый.
func openGraph(tag, modelPath string) (*ortGraph, error) {
	if _, err := os.Stat(modelPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("model file not found: %s: %w", modelPath, err)
		}
		return nil, fmt.Errorf("failed to stat model file: %w", err)
	}

	inputInfo, outputInfo, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get model info: %w", err)
	}
	if len(inputInfo) == 0 || len(outputInfo) == 0 {
		return nil, fmt.Errorf("model %s has no inputs or outputs", modelPath)
	}

	// Граф принимает один вход; остальные входы (если есть) не поддерживаются
	inputNames := []string{inputInfo[0].Name}
	outputNames := make([]string, len(outputInfo))
	for i, info := range outputInfo {
		outputNames[i] = info.Name
	}

	log.Printf("[%s] inputs: %v %v, outputs: %v", tag, inputNames, inputInfo[0].Dimensions, outputNames)

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	session, err := ort.NewDynamicAdvancedSession(modelPath, inputNames, outputNames, options)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ortGraph{
		session:     session,
		inputNames:  inputNames,
		outputNames: outputNames,
		inputDims:   []int64(inputInfo[0].Dimensions),
	}, nil
}

func (g *ortGraph) InputDims() []int64 {
	return g.inputDims
}

func (g *ortGraph) Run(data []float32, shape []int64) ([]float32, []int64, error) {
	if g.session == nil {
		return nil, nil, ErrNotInitialized
	}

	inputTensor, err := ort.NewTensor(ort.NewShape(shape...), data)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputs := make([]ort.Value, len(g.outputNames))
	if err := g.session.Run([]ort.Value{inputTensor}, outputs); err != nil {
		return nil, nil, fmt.Errorf("inference failed: %w", err)
	}
	defer func() {
		for _, out := range outputs {
			if out != nil {
				out.Destroy()
			}
		}
	}()

	outputTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, nil, fmt.Errorf("unexpected output type %T", outputs[0])
	}

	// Копируем, так как outputTensor будет уничтожен
	result := make([]float32, len(outputTensor.GetData()))
	copy(result, outputTensor.GetData())
	outShape := append([]int64(nil), outputTensor.GetShape()...)

	return result, outShape, nil
}

func (g *ortGraph) Close() {
	if g.session != nil {
		g.session.Destroy()
		g.session = nil
	}
}
