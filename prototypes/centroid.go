package prototypes

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"ecglatent/templates"
)

// Centroid средний латентный вектор одного класса
type Centroid struct {
	Label  string    `json:"label"`
	Vector []float32 `json:"vector"`
	Size   int       `json:"size"`
}

// BuildCentroids усредняет латентные векторы каждого класса. Классы без
// векторов пропускаются. Порядок совпадает с порядком ключей mapping.
func BuildCentroids[K comparable](mapping *templates.Mapping[K, []float32]) ([]Centroid, error) {
	var centroids []Centroid
	var err error

	mapping.Range(func(key K, latents [][]float32) bool {
		if len(latents) == 0 {
			return true
		}
		dim := len(latents[0])
		sum := make([]float64, dim)
		for i, z := range latents {
			if len(z) != dim {
				err = fmt.Errorf("class %v: latent %d has dim %d, want %d", key, i, len(z), dim)
				return false
			}
			floats.Add(sum, toFloat64(z))
		}
		floats.Scale(1/float64(len(latents)), sum)

		vector := make([]float32, dim)
		for i, v := range sum {
			vector[i] = float32(v)
		}
		centroids = append(centroids, Centroid{
			Label:  fmt.Sprint(key),
			Vector: vector,
			Size:   len(latents),
		})
		return true
	})
	if err != nil {
		return nil, err
	}
	return centroids, nil
}

// SaveCentroids записывает центроиды в хранилище, заменяя существующие
// прототипы с теми же метками
func (s *Store) SaveCentroids(centroids []Centroid, source string) ([]Prototype, error) {
	saved := make([]Prototype, 0, len(centroids))
	for _, c := range centroids {
		p, err := s.Upsert(c.Label, c.Vector, c.Size, source)
		if err != nil {
			return saved, fmt.Errorf("save prototype %q: %w", c.Label, err)
		}
		saved = append(saved, *p)
	}
	return saved, nil
}
