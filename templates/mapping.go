// Package templates группирует шаблоны кардиоциклов по меткам классов
// и заменяет их латентными векторами
package templates

import "encoding/json"

// Mapping отображение метка -> список элементов.
// Ключи хранятся в порядке первого появления, элементы - в порядке добавления.
type Mapping[K comparable, V any] struct {
	keys   []K
	groups map[K][]V
}

// NewMapping создаёт пустое отображение
func NewMapping[K comparable, V any]() *Mapping[K, V] {
	return &Mapping[K, V]{groups: make(map[K][]V)}
}

// Append добавляет элементы в группу key. Группа создаётся при первом
// обращении, даже если items пуст.
func (m *Mapping[K, V]) Append(key K, items ...V) {
	if m.groups == nil {
		m.groups = make(map[K][]V)
	}
	group, ok := m.groups[key]
	if !ok {
		m.keys = append(m.keys, key)
		group = []V{}
	}
	m.groups[key] = append(group, items...)
}

// Keys возвращает ключи в порядке первого появления
func (m *Mapping[K, V]) Keys() []K {
	keys := make([]K, len(m.keys))
	copy(keys, m.keys)
	return keys
}

// Get возвращает группу по ключу
func (m *Mapping[K, V]) Get(key K) ([]V, bool) {
	group, ok := m.groups[key]
	return group, ok
}

// Len число групп
func (m *Mapping[K, V]) Len() int {
	return len(m.keys)
}

// Count суммарное число элементов во всех группах
func (m *Mapping[K, V]) Count() int {
	total := 0
	for _, group := range m.groups {
		total += len(group)
	}
	return total
}

// Range обходит группы в порядке ключей, пока fn возвращает true
func (m *Mapping[K, V]) Range(fn func(key K, items []V) bool) {
	for _, key := range m.keys {
		if !fn(key, m.groups[key]) {
			return
		}
	}
}

// Group одна группа в JSON представлении
type Group[K comparable, V any] struct {
	Label K   `json:"label"`
	Items []V `json:"items"`
}

// MarshalJSON сериализует отображение как массив групп, сохраняя порядок ключей
func (m *Mapping[K, V]) MarshalJSON() ([]byte, error) {
	groups := make([]Group[K, V], 0, len(m.keys))
	m.Range(func(key K, items []V) bool {
		groups = append(groups, Group[K, V]{Label: key, Items: items})
		return true
	})
	return json.Marshal(groups)
}

// UnmarshalJSON читает массив групп; повторяющиеся метки сливаются
func (m *Mapping[K, V]) UnmarshalJSON(data []byte) error {
	var groups []Group[K, V]
	if err := json.Unmarshal(data, &groups); err != nil {
		return err
	}
	*m = Mapping[K, V]{groups: make(map[K][]V, len(groups))}
	for _, g := range groups {
		m.Append(g.Label, g.Items...)
	}
	return nil
}
