package ai

import (
	"fmt"
	"log"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultLatentDim размерность латентного пространства обученных моделей
const DefaultLatentDim = 25

// DefaultWaveformLength длина кардиоцикла на входе энкодера
const DefaultWaveformLength = 400

// DecoderConfig конфигурация декодера
type DecoderConfig struct {
	ModelPath      string // Путь к onnx_decoder.onnx
	ORTLibraryPath string // Путь к libonnxruntime (пусто = автопоиск)
	LatentDim      int    // Размерность z для GenerateRandom, если граф её не объявляет
}

// DefaultDecoderConfig возвращает конфигурацию с заданным путём к модели
func DefaultDecoderConfig(modelPath string) DecoderConfig {
	return DecoderConfig{
		ModelPath: modelPath,
		LatentDim: DefaultLatentDim,
	}
}

// LatentDecoder восстанавливает кардиоцикл из латентного вектора.
// Не безопасен для конкурентного использования.
type LatentDecoder struct {
	config  DecoderConfig
	graph   graphRunner
	uniform distuv.Uniform
}

// NewLatentDecoder загружает граф декодера
func NewLatentDecoder(config DecoderConfig) (*LatentDecoder, error) {
	if err := InitRuntime(config.ORTLibraryPath); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
	}

	graph, err := openGraph("Decoder", config.ModelPath)
	if err != nil {
		return nil, err
	}

	return newLatentDecoder(config, graph), nil
}

func newLatentDecoder(config DecoderConfig, graph graphRunner) *LatentDecoder {
	if config.LatentDim <= 0 {
		config.LatentDim = DefaultLatentDim
	}
	// Если граф объявляет фиксированную размерность z - берём её
	if dims := graph.InputDims(); len(dims) > 0 && dims[len(dims)-1] > 0 {
		if declared := int(dims[len(dims)-1]); declared != config.LatentDim {
			log.Printf("[Decoder] model declares latent dim %d (config %d)", declared, config.LatentDim)
			config.LatentDim = declared
		}
	}

	return &LatentDecoder{
		config:  config,
		graph:   graph,
		uniform: distuv.Uniform{Min: 0, Max: 1},
	}
}

// LatentDim размерность латентного вектора
func (d *LatentDecoder) LatentDim() int {
	return d.config.LatentDim
}

// Predict декодирует z. Вход имеет форму (1, len(z)), выход сплющивается в одномерный.
func (d *LatentDecoder) Predict(z []float32) ([]float32, error) {
	if d.graph == nil {
		return nil, ErrNotInitialized
	}

	out, _, err := d.graph.Run(z, []int64{1, int64(len(z))})
	if err != nil {
		return nil, fmt.Errorf("decoder: %w", err)
	}
	return out, nil
}

// GenerateRandom декодирует случайный z ~ U[0, 1)
func (d *LatentDecoder) GenerateRandom() ([]float32, error) {
	return d.Predict(d.RandomLatent())
}

// RandomLatent выбирает случайный латентный вектор из U[0, 1)
func (d *LatentDecoder) RandomLatent() []float32 {
	z := make([]float32, d.config.LatentDim)
	for i := range z {
		v := float32(d.uniform.Rand())
		// округление в float32 не должно давать 1
		if v >= 1 {
			v = math.Nextafter32(1, 0)
		}
		z[i] = v
	}
	return z
}

// Close освобождает сессию
func (d *LatentDecoder) Close() {
	if d.graph != nil {
		d.graph.Close()
		d.graph = nil
	}
}
