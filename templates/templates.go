package templates

import (
	"fmt"

	"ecglatent/ai"
)

// Encoder кодирует одну последовательность в латентный вектор
type Encoder interface {
	Predict(seq []float32) ([]float32, error)
}

// BatchEncoder кодирует батч последовательностей за один вызов
type BatchEncoder interface {
	EncodeBatch(batch [][]float32) ([][]float32, error)
}

// OrderTemplates раскладывает шаблоны по меткам. templates[i] - все шаблоны
// записи i, labels[i] - её метка. Пары составляются позиционно; лишние
// элементы более длинного среза отбрасываются.
func OrderTemplates[K comparable](templates [][][]float32, labels []K) *Mapping[K, []float32] {
	n := min(len(templates), len(labels))

	mapping := NewMapping[K, []float32]()
	for i := 0; i < n; i++ {
		mapping.Append(labels[i], templates[i]...)
	}
	return mapping
}

// EncodeTemplates загружает новый энкодер и заменяет каждый шаблон его
// латентным вектором
func EncodeTemplates[K comparable](config ai.EncoderConfig, mapping *Mapping[K, []float32]) (*Mapping[K, []float32], error) {
	encoder, err := ai.NewLatentEncoder(config)
	if err != nil {
		return nil, err
	}
	defer encoder.Close()

	return EncodeTemplatesWith(encoder, mapping)
}

// EncodeTemplatesWith кодирует шаблоны по одному. Первая ошибка прерывает
// обработку, частичный результат не возвращается.
func EncodeTemplatesWith[K comparable](encoder Encoder, mapping *Mapping[K, []float32]) (*Mapping[K, []float32], error) {
	result := NewMapping[K, []float32]()

	var err error
	mapping.Range(func(key K, items [][]float32) bool {
		result.Append(key)
		for i, item := range items {
			var z []float32
			z, err = encoder.Predict(item)
			if err != nil {
				err = fmt.Errorf("encode template %d of class %v: %w", i, key, err)
				return false
			}
			result.Append(key, z)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// EncodeTemplatesBatched то же, что EncodeTemplatesWith, но с одним
// вызовом энкодера на класс
func EncodeTemplatesBatched[K comparable](encoder BatchEncoder, mapping *Mapping[K, []float32]) (*Mapping[K, []float32], error) {
	result := NewMapping[K, []float32]()

	var err error
	mapping.Range(func(key K, items [][]float32) bool {
		result.Append(key)
		if len(items) == 0 {
			return true
		}
		var latents [][]float32
		latents, err = encoder.EncodeBatch(items)
		if err != nil {
			err = fmt.Errorf("encode class %v: %w", key, err)
			return false
		}
		if len(latents) != len(items) {
			err = fmt.Errorf("encode class %v: got %d latents for %d templates", key, len(latents), len(items))
			return false
		}
		result.Append(key, latents...)
		return true
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
