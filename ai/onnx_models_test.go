package ai

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// modelPath ищет модель по переменной окружения или в ../model_ecg
func modelPath(t *testing.T, env, name string) string {
	t.Helper()
	path := os.Getenv(env)
	if path == "" {
		path = filepath.Join("..", "model_ecg", name)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Skipf("model %s not found, skipping test", path)
	}
	return path
}

func openRealModels(t *testing.T) (*LatentEncoder, *LatentDecoder) {
	t.Helper()
	encPath := modelPath(t, "ECG_ENCODER_MODEL", "onnx_encoder.onnx")
	decPath := modelPath(t, "ECG_DECODER_MODEL", "onnx_decoder.onnx")

	if err := InitRuntime(""); err != nil {
		t.Skipf("ONNX Runtime not available: %v", err)
	}

	enc, err := NewLatentEncoder(DefaultEncoderConfig(encPath))
	require.NoError(t, err)
	t.Cleanup(enc.Close)

	dec, err := NewLatentDecoder(DefaultDecoderConfig(decPath))
	require.NoError(t, err)
	t.Cleanup(dec.Close)

	return enc, dec
}

// syntheticBeat грубая имитация QRS-комплекса
func syntheticBeat() []float32 {
	beat := make([]float32, DefaultWaveformLength)
	for i := range beat {
		x := float64(i-DefaultWaveformLength/2) / 12
		beat[i] = float32(math.Exp(-x * x))
	}
	return beat
}

func TestONNXEncodeDecode(t *testing.T) {
	enc, dec := openRealModels(t)

	z, err := enc.Predict(syntheticBeat())
	require.NoError(t, err)
	assert.Len(t, z, DefaultLatentDim)

	x, err := dec.Predict(z)
	require.NoError(t, err)
	assert.Len(t, x, DefaultWaveformLength)

	again, err := dec.Predict(z)
	require.NoError(t, err)
	assert.Equal(t, x, again)

	// Реконструкция приближённая; только логируем ошибку
	var mse float64
	for i, v := range syntheticBeat() {
		d := float64(v - x[i])
		mse += d * d
	}
	t.Logf("round-trip MSE: %.5f", mse/float64(len(x)))
}

func TestONNXGenerateRandom(t *testing.T) {
	_, dec := openRealModels(t)

	x, err := dec.GenerateRandom()
	require.NoError(t, err)
	assert.Len(t, x, DefaultWaveformLength)
}

func TestONNXEncoderWrongLength(t *testing.T) {
	enc, _ := openRealModels(t)

	_, err := enc.Predict(make([]float32, 17))
	assert.Error(t, err)
}
