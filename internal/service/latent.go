package service

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"ecglatent/prototypes"
	"ecglatent/templates"
)

// ErrNoDecoder декодер не загружен
var ErrNoDecoder = errors.New("decoder not loaded")

// ErrNoEncoder энкодер не загружен
var ErrNoEncoder = errors.New("encoder not loaded")

// Encoder интерфейс энкодера (ai.LatentEncoder)
type Encoder interface {
	Predict(seq []float32) ([]float32, error)
	EncodeBatch(batch [][]float32) ([][]float32, error)
}

// Decoder интерфейс декодера (ai.LatentDecoder)
type Decoder interface {
	Predict(z []float32) ([]float32, error)
	GenerateRandom() ([]float32, error)
}

// LatentService владеет энкодером и декодером и сериализует обращения к
// ним: сами обёртки не рассчитаны на конкурентные вызовы
type LatentService struct {
	encoder Encoder
	decoder Decoder
	store   *prototypes.Store
	matcher *prototypes.Matcher

	mu sync.Mutex
}

// NewLatentService создаёт сервис. Любой из компонентов может быть nil,
// тогда соответствующие операции возвращают ошибку.
func NewLatentService(encoder Encoder, decoder Decoder, store *prototypes.Store) *LatentService {
	return &LatentService{
		encoder: encoder,
		decoder: decoder,
		store:   store,
		matcher: prototypes.NewMatcher(store),
	}
}

// Store хранилище прототипов
func (s *LatentService) Store() *prototypes.Store {
	return s.store
}

// Encode кодирует один кардиоцикл
func (s *LatentService) Encode(seq []float32) ([]float32, error) {
	if s.encoder == nil {
		return nil, ErrNoEncoder
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.encoder.Predict(seq)
}

// Decode восстанавливает кардиоцикл из z
func (s *LatentService) Decode(z []float32) ([]float32, error) {
	if s.decoder == nil {
		return nil, ErrNoDecoder
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.decoder.Predict(z)
}

// Generate возвращает n реконструкций из случайных z
func (s *LatentService) Generate(n int) ([][]float32, error) {
	if s.decoder == nil {
		return nil, ErrNoDecoder
	}
	if n <= 0 {
		n = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([][]float32, 0, n)
	for i := 0; i < n; i++ {
		x, err := s.decoder.GenerateRandom()
		if err != nil {
			return nil, err
		}
		out = append(out, x)
	}
	return out, nil
}

// Reconstruction результат прохода энкодер -> декодер
type Reconstruction struct {
	Latent   []float32
	Waveform []float32
	MSE      float64
}

// Reconstruct прогоняет кардиоцикл через энкодер и декодер (по одному вызову)
// и считает среднеквадратичную ошибку реконструкции.
func (s *LatentService) Reconstruct(seq []float32) (*Reconstruction, error) {
	z, err := s.Encode(seq)
	if err != nil {
		return nil, err
	}
	x, err := s.Decode(z)
	if err != nil {
		return nil, err
	}
	mse, err := ReconstructionError(seq, x)
	if err != nil {
		return nil, err
	}
	return &Reconstruction{Latent: z, Waveform: x, MSE: mse}, nil
}

// GroupAndEncode группирует шаблоны по меткам и кодирует каждую группу
func (s *LatentService) GroupAndEncode(groups [][][]float32, labels []string, batched bool) (*templates.Mapping[string, []float32], error) {
	if s.encoder == nil {
		return nil, ErrNoEncoder
	}
	mapping := templates.OrderTemplates(groups, labels)

	s.mu.Lock()
	defer s.mu.Unlock()
	if batched {
		return templates.EncodeTemplatesBatched(s.encoder, mapping)
	}
	return templates.EncodeTemplatesWith(s.encoder, mapping)
}

// BuildPrototypes кодирует шаблоны и сохраняет центроид каждого класса
func (s *LatentService) BuildPrototypes(groups [][][]float32, labels []string, source string) ([]prototypes.Prototype, error) {
	if s.store == nil {
		return nil, errors.New("prototype store not configured")
	}
	encoded, err := s.GroupAndEncode(groups, labels, true)
	if err != nil {
		return nil, err
	}
	centroids, err := prototypes.BuildCentroids(encoded)
	if err != nil {
		return nil, err
	}
	saved, err := s.store.SaveCentroids(centroids, source)
	if err != nil {
		return nil, err
	}
	log.Printf("[Service] Built %d prototypes from %d templates", len(saved), encoded.Count())
	return saved, nil
}

// Classify кодирует кардиоцикл и ищет ближайший прототип.
// match == nil если ни один прототип не прошёл порог.
func (s *LatentService) Classify(seq []float32) (*prototypes.MatchResult, []float32, error) {
	z, err := s.Encode(seq)
	if err != nil {
		return nil, nil, err
	}
	return s.matcher.FindBestMatch(z), z, nil
}

// ReconstructionError среднеквадратичная ошибка между оригиналом и реконструкцией
func ReconstructionError(original, reconstructed []float32) (float64, error) {
	if len(original) != len(reconstructed) {
		return 0, fmt.Errorf("length mismatch: %d vs %d", len(original), len(reconstructed))
	}
	if len(original) == 0 {
		return 0, nil
	}
	var sum float64
	for i := range original {
		d := float64(original[i]) - float64(reconstructed[i])
		sum += d * d
	}
	return sum / float64(len(original)), nil
}
