// Package prototypes хранит латентные прототипы классов (центроиды
// закодированных шаблонов) и классифицирует новые латентные векторы по ним
package prototypes

import (
	"errors"
	"time"
)

// ErrNotFound прототип не найден
var ErrNotFound = errors.New("prototype not found")

// Prototype латентный прототип класса
type Prototype struct {
	ID        string    `json:"id"`        // UUID
	Label     string    `json:"label"`     // Метка класса (например, "N", "V")
	Centroid  []float32 `json:"centroid"`  // Средний латентный вектор класса
	Size      int       `json:"size"`      // Сколько шаблонов усреднено
	CreatedAt time.Time `json:"createdAt"` // Время создания
	UpdatedAt time.Time `json:"updatedAt"` // Время последнего обновления

	Source string `json:"source,omitempty"` // Откуда построен (имя набора, ручной ввод)
	Notes  string `json:"notes,omitempty"`
}

// PrototypeStore структура для хранения в JSON файле
type PrototypeStore struct {
	Version    int         `json:"version"`    // Версия формата (для миграций)
	Prototypes []Prototype `json:"prototypes"` // Список прототипов
}

// MatchResult результат поиска ближайшего прототипа
type MatchResult struct {
	Prototype  *Prototype `json:"prototype"`
	Similarity float32    `json:"similarity"` // Косинусное сходство
	Distance   float32    `json:"distance"`   // Евклидово расстояние до центроида
	Confidence string     `json:"confidence"` // "high", "medium", "low", "none"
}

// Пороги для matching (косинусное сходство).
// Ниже ThresholdLow совпадение не засчитывается.
const (
	ThresholdHigh   float32 = 0.85
	ThresholdMedium float32 = 0.70
	ThresholdLow    float32 = 0.50
)

// GetConfidence возвращает уровень уверенности для similarity
func GetConfidence(similarity float32) string {
	switch {
	case similarity >= ThresholdHigh:
		return "high"
	case similarity >= ThresholdMedium:
		return "medium"
	case similarity >= ThresholdLow:
		return "low"
	default:
		return "none"
	}
}

// CurrentVersion текущая версия формата хранения
const CurrentVersion = 1
