package ai

import (
	"errors"
	"fmt"
	"log"
)

// ErrRaggedBatch батч содержит последовательности разной длины
var ErrRaggedBatch = errors.New("waveforms in batch have different lengths")

// ErrEmptyBatch пустой батч
var ErrEmptyBatch = errors.New("empty batch")

// EncoderConfig конфигурация энкодера
type EncoderConfig struct {
	ModelPath      string // Путь к onnx_encoder.onnx
	ORTLibraryPath string // Путь к libonnxruntime (пусто = автопоиск)
	WaveformLength int    // Ожидаемая длина кардиоцикла, если граф её не объявляет
}

// DefaultEncoderConfig возвращает конфигурацию с заданным путём к модели
func DefaultEncoderConfig(modelPath string) EncoderConfig {
	return EncoderConfig{
		ModelPath:      modelPath,
		WaveformLength: DefaultWaveformLength,
	}
}

// LatentEncoder переводит кардиоцикл фиксированной длины (400 отсчётов)
// в латентный вектор (25 измерений).
// Не безопасен для конкурентного использования.
type LatentEncoder struct {
	config EncoderConfig
	graph  graphRunner
}

// NewLatentEncoder загружает граф энкодера
func NewLatentEncoder(config EncoderConfig) (*LatentEncoder, error) {
	if err := InitRuntime(config.ORTLibraryPath); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
	}

	graph, err := openGraph("Encoder", config.ModelPath)
	if err != nil {
		return nil, err
	}

	return newLatentEncoder(config, graph), nil
}

func newLatentEncoder(config EncoderConfig, graph graphRunner) *LatentEncoder {
	if config.WaveformLength <= 0 {
		config.WaveformLength = DefaultWaveformLength
	}
	// (batch, length, 1): фиксированная длина берётся из графа
	if dims := graph.InputDims(); len(dims) == 3 && dims[1] > 0 {
		if declared := int(dims[1]); declared != config.WaveformLength {
			log.Printf("[Encoder] model declares waveform length %d (config %d)", declared, config.WaveformLength)
			config.WaveformLength = declared
		}
	}
	return &LatentEncoder{config: config, graph: graph}
}

// WaveformLength длина кардиоцикла, которую ожидает граф.
// Predict её не проверяет: несовпадение отклоняет сам ONNX Runtime.
func (e *LatentEncoder) WaveformLength() int {
	return e.config.WaveformLength
}

// Predict кодирует одну последовательность. Вход имеет форму (1, len, 1).
func (e *LatentEncoder) Predict(seq []float32) ([]float32, error) {
	return e.PredictBatch([][]float32{seq})
}

// PredictBatch прогоняет батч формы (n, len, 1) и возвращает
// только первую строку первого выхода
func (e *LatentEncoder) PredictBatch(batch [][]float32) ([]float32, error) {
	out, shape, err := e.run(batch)
	if err != nil {
		return nil, err
	}
	return firstRow(out, shape)
}

// EncodeBatch прогоняет батч за один вызов и возвращает латентный
// вектор для каждой последовательности в исходном порядке
func (e *LatentEncoder) EncodeBatch(batch [][]float32) ([][]float32, error) {
	out, shape, err := e.run(batch)
	if err != nil {
		return nil, err
	}
	return splitRows(out, shape, len(batch))
}

func (e *LatentEncoder) run(batch [][]float32) ([]float32, []int64, error) {
	if e.graph == nil {
		return nil, nil, ErrNotInitialized
	}

	data, shape, err := stackSequences(batch)
	if err != nil {
		return nil, nil, err
	}

	out, outShape, err := e.graph.Run(data, shape)
	if err != nil {
		return nil, nil, fmt.Errorf("encoder: %w", err)
	}
	return out, outShape, nil
}

// Close освобождает сессию
func (e *LatentEncoder) Close() {
	if e.graph != nil {
		e.graph.Close()
		e.graph = nil
	}
}

// stackSequences собирает батч в плоский буфер формы (n, len, 1)
func stackSequences(batch [][]float32) ([]float32, []int64, error) {
	if len(batch) == 0 {
		return nil, nil, ErrEmptyBatch
	}

	length := len(batch[0])
	data := make([]float32, 0, len(batch)*length)
	for i, seq := range batch {
		if len(seq) != length {
			return nil, nil, fmt.Errorf("%w: item %d has %d samples, want %d", ErrRaggedBatch, i, len(seq), length)
		}
		data = append(data, seq...)
	}

	return data, []int64{int64(len(batch)), int64(length), 1}, nil
}

// rowSize число элементов одной строки тензора (произведение всех измерений кроме первого)
func rowSize(shape []int64) int {
	size := 1
	for _, d := range shape[1:] {
		size *= int(d)
	}
	return size
}

func firstRow(out []float32, shape []int64) ([]float32, error) {
	if len(shape) == 0 || shape[0] < 1 {
		return nil, fmt.Errorf("encoder output has no batch rows: shape %v", shape)
	}
	n := rowSize(shape)
	if n > len(out) {
		return nil, fmt.Errorf("encoder output too short: %d < %d", len(out), n)
	}
	row := make([]float32, n)
	copy(row, out[:n])
	return row, nil
}

func splitRows(out []float32, shape []int64, want int) ([][]float32, error) {
	if len(shape) == 0 || int(shape[0]) != want {
		return nil, fmt.Errorf("encoder output shape %v does not match batch size %d", shape, want)
	}
	n := rowSize(shape)
	if n*want > len(out) {
		return nil, fmt.Errorf("encoder output too short: %d < %d", len(out), n*want)
	}
	rows := make([][]float32, want)
	for i := range rows {
		rows[i] = make([]float32, n)
		copy(rows[i], out[i*n:(i+1)*n])
	}
	return rows, nil
}
