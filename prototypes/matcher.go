package prototypes

import (
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Matcher ищет ближайший прототип для латентного вектора
type Matcher struct {
	store *Store
}

// NewMatcher создаёт новый matcher
func NewMatcher(store *Store) *Matcher {
	return &Matcher{store: store}
}

// FindBestMatch возвращает nil если совпадение не найдено (similarity < ThresholdLow)
func (m *Matcher) FindBestMatch(z []float32) *MatchResult {
	matches := m.FindAllMatches(z, ThresholdLow)
	if len(matches) == 0 {
		return nil
	}
	return &matches[0]
}

// FindAllMatches возвращает все совпадения выше порога по убыванию similarity
func (m *Matcher) FindAllMatches(z []float32, threshold float32) []MatchResult {
	if m.store == nil {
		return nil
	}

	var matches []MatchResult
	for _, p := range m.store.GetAll() {
		if len(p.Centroid) != len(z) {
			continue
		}
		similarity := CosineSimilarity(z, p.Centroid)
		if similarity < threshold {
			continue
		}
		proto := p
		matches = append(matches, MatchResult{
			Prototype:  &proto,
			Similarity: similarity,
			Distance:   EuclideanDistance(z, p.Centroid),
			Confidence: GetConfidence(similarity),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	return matches
}

// CosineSimilarity косинусное сходство в [-1, 1]; 0 для пустых,
// нулевых или несовпадающих по длине векторов
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	x, y := toFloat64(a), toFloat64(b)

	normA, normB := floats.Norm(x, 2), floats.Norm(y, 2)
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(floats.Dot(x, y) / (normA * normB))
}

// EuclideanDistance евклидово расстояние; -1 при несовпадении длин
func EuclideanDistance(a, b []float32) float32 {
	if len(a) != len(b) {
		return -1
	}
	return float32(floats.Distance(toFloat64(a), toFloat64(b), 2))
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
