package ai

import (
	"errors"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGraph запоминает вход и возвращает заранее заданный выход
type fakeGraph struct {
	inputDims []int64

	gotData  []float32
	gotShape []int64
	calls    int

	// respond строит выход по входу; по умолчанию - тождественный
	respond func(data []float32, shape []int64) ([]float32, []int64, error)
	closed  bool
}

func (f *fakeGraph) Run(data []float32, shape []int64) ([]float32, []int64, error) {
	f.calls++
	f.gotData = append([]float32(nil), data...)
	f.gotShape = append([]int64(nil), shape...)
	if f.respond != nil {
		return f.respond(data, shape)
	}
	return data, shape, nil
}

func (f *fakeGraph) InputDims() []int64 { return f.inputDims }
func (f *fakeGraph) Close()             { f.closed = true }

// latentStub имитирует энкодер: каждая строка батча -> вектор из dim значений,
// равных сумме строки плюс индекс компоненты
func latentStub(dim int) func([]float32, []int64) ([]float32, []int64, error) {
	return func(data []float32, shape []int64) ([]float32, []int64, error) {
		n, length := int(shape[0]), int(shape[1])
		out := make([]float32, 0, n*dim)
		for r := 0; r < n; r++ {
			var sum float32
			for _, v := range data[r*length : (r+1)*length] {
				sum += v
			}
			for j := 0; j < dim; j++ {
				out = append(out, sum+float32(j))
			}
		}
		return out, []int64{int64(n), int64(dim)}, nil
	}
}

func ramp(n int, start float32) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = start + float32(i)*0.001
	}
	return s
}

func TestEncoderPredictSingleShape(t *testing.T) {
	g := &fakeGraph{respond: latentStub(DefaultLatentDim)}
	enc := &LatentEncoder{graph: g}

	seq := ramp(DefaultWaveformLength, 0)
	z, err := enc.Predict(seq)
	require.NoError(t, err)

	assert.Equal(t, []int64{1, DefaultWaveformLength, 1}, g.gotShape)
	assert.Equal(t, seq, g.gotData)
	assert.Len(t, z, DefaultLatentDim)
}

func TestEncoderPredictBatchReturnsFirstRow(t *testing.T) {
	g := &fakeGraph{respond: latentStub(3)}
	enc := &LatentEncoder{graph: g}

	a := []float32{1, 1}
	b := []float32{5, 5}
	z, err := enc.PredictBatch([][]float32{a, b})
	require.NoError(t, err)

	assert.Equal(t, []int64{2, 2, 1}, g.gotShape)
	assert.Equal(t, []float32{1, 1, 5, 5}, g.gotData)
	assert.Equal(t, []float32{2, 3, 4}, z)
	assert.Equal(t, 1, g.calls)
}

func TestEncoderEncodeBatchKeepsOrder(t *testing.T) {
	g := &fakeGraph{respond: latentStub(2)}
	enc := &LatentEncoder{graph: g}

	rows, err := enc.EncodeBatch([][]float32{{1}, {2}, {3}})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 2}, {2, 3}, {3, 4}}, rows)
	assert.Equal(t, 1, g.calls)
}

func TestEncoderRaggedBatch(t *testing.T) {
	g := &fakeGraph{}
	enc := &LatentEncoder{graph: g}

	_, err := enc.PredictBatch([][]float32{{1, 2}, {3}})
	assert.ErrorIs(t, err, ErrRaggedBatch)
	assert.Zero(t, g.calls)

	_, err = enc.PredictBatch(nil)
	assert.ErrorIs(t, err, ErrEmptyBatch)
}

func TestEncoderPropagatesRuntimeError(t *testing.T) {
	shapeErr := errors.New("Got invalid dimensions for input")
	g := &fakeGraph{respond: func([]float32, []int64) ([]float32, []int64, error) {
		return nil, nil, shapeErr
	}}
	enc := &LatentEncoder{graph: g}

	_, err := enc.Predict(ramp(10, 0))
	assert.ErrorIs(t, err, shapeErr)
}

func TestEncoderClosed(t *testing.T) {
	g := &fakeGraph{}
	enc := &LatentEncoder{graph: g}
	enc.Close()
	enc.Close()

	assert.True(t, g.closed)
	_, err := enc.Predict([]float32{1})
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestDecoderPredictFlattens(t *testing.T) {
	g := &fakeGraph{respond: func(data []float32, shape []int64) ([]float32, []int64, error) {
		return ramp(DefaultWaveformLength, 0), []int64{1, DefaultWaveformLength, 1}, nil
	}}
	dec := newLatentDecoder(DefaultDecoderConfig(""), g)

	z := ramp(DefaultLatentDim, 0.5)
	x, err := dec.Predict(z)
	require.NoError(t, err)

	assert.Equal(t, []int64{1, DefaultLatentDim}, g.gotShape)
	assert.Equal(t, z, g.gotData)
	assert.Len(t, x, DefaultWaveformLength)
}

func TestDecoderPredictDeterministic(t *testing.T) {
	g := &fakeGraph{respond: func(data []float32, shape []int64) ([]float32, []int64, error) {
		out := make([]float32, 2*len(data))
		for i, v := range data {
			out[2*i], out[2*i+1] = v, -v
		}
		return out, []int64{1, int64(len(out))}, nil
	}}
	dec := newLatentDecoder(DefaultDecoderConfig(""), g)

	z := ramp(DefaultLatentDim, 0.1)
	first, err := dec.Predict(z)
	require.NoError(t, err)
	second, err := dec.Predict(z)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDecoderGenerateRandom(t *testing.T) {
	g := &fakeGraph{}
	dec := newLatentDecoder(DefaultDecoderConfig(""), g)

	x, err := dec.GenerateRandom()
	require.NoError(t, err)

	assert.Equal(t, []int64{1, DefaultLatentDim}, g.gotShape)
	assert.Len(t, x, DefaultLatentDim)
	for _, v := range g.gotData {
		assert.GreaterOrEqual(t, v, float32(0))
		assert.Less(t, v, float32(1))
	}
}

func TestDecoderUsesDeclaredLatentDim(t *testing.T) {
	g := &fakeGraph{inputDims: []int64{-1, 16}}
	dec := newLatentDecoder(DefaultDecoderConfig(""), g)
	assert.Equal(t, 16, dec.LatentDim())
	assert.Len(t, dec.RandomLatent(), 16)

	dynamic := newLatentDecoder(DecoderConfig{}, &fakeGraph{inputDims: []int64{-1, -1}})
	assert.Equal(t, DefaultLatentDim, dynamic.LatentDim())
}

func TestOpenGraphMissingFile(t *testing.T) {
	_, err := openGraph("Encoder", filepath.Join(t.TempDir(), "onnx_encoder.onnx"))
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestEncoderUsesDeclaredLength(t *testing.T) {
	enc := newLatentEncoder(DefaultEncoderConfig(""), &fakeGraph{inputDims: []int64{-1, 360, 1}})
	assert.Equal(t, 360, enc.WaveformLength())

	dynamic := newLatentEncoder(EncoderConfig{}, &fakeGraph{inputDims: []int64{-1, -1, 1}})
	assert.Equal(t, DefaultWaveformLength, dynamic.WaveformLength())
}
