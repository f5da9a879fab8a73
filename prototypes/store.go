package prototypes

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// StoreFileName имя файла хранилища внутри dataDir
const StoreFileName = "prototypes.json"

// Store хранилище прототипов классов
type Store struct {
	path string
	data PrototypeStore
	mu   sync.RWMutex
}

// NewStore открывает (или создаёт) хранилище в dataDir
func NewStore(dataDir string) (*Store, error) {
	path := filepath.Join(dataDir, StoreFileName)

	store := &Store{
		path: path,
		data: PrototypeStore{Version: CurrentVersion},
	}

	if err := store.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load prototypes: %w", err)
	}

	log.Printf("[Prototypes] Store initialized: %s (%d prototypes)", path, len(store.data.Prototypes))
	return store, nil
}

// Path путь к файлу хранилища
func (s *Store) Path() string {
	return s.path
}

func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, &s.data); err != nil {
		return fmt.Errorf("failed to parse %s: %w", StoreFileName, err)
	}

	if s.data.Version < CurrentVersion {
		s.data.Version = CurrentVersion
		return s.saveUnsafe()
	}
	return nil
}

// saveUnsafe сохраняет без блокировки (вызывать только при удержании lock)
func (s *Store) saveUnsafe() error {
	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal prototypes: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Атомарная запись через временный файл
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// GetAll возвращает копию всех прототипов
func (s *Store) GetAll() []Prototype {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Prototype, len(s.data.Prototypes))
	copy(result, s.data.Prototypes)
	return result
}

// Get возвращает прототип по ID
func (s *Store) Get(id string) (*Prototype, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.data.Prototypes {
		if s.data.Prototypes[i].ID == id {
			p := s.data.Prototypes[i]
			return &p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// GetByLabel возвращает прототип класса
func (s *Store) GetByLabel(label string) (*Prototype, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexByLabel(label); i >= 0 {
		p := s.data.Prototypes[i]
		return &p, nil
	}
	return nil, fmt.Errorf("%w: label %q", ErrNotFound, label)
}

func (s *Store) indexByLabel(label string) int {
	for i := range s.data.Prototypes {
		if s.data.Prototypes[i].Label == label {
			return i
		}
	}
	return -1
}

// Add добавляет новый прототип
func (s *Store) Add(label string, centroid []float32, size int, source string) (*Prototype, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addUnsafe(label, centroid, size, source)
}

func (s *Store) addUnsafe(label string, centroid []float32, size int, source string) (*Prototype, error) {
	now := time.Now()
	p := Prototype{
		ID:        uuid.New().String(),
		Label:     label,
		Centroid:  append([]float32(nil), centroid...),
		Size:      size,
		CreatedAt: now,
		UpdatedAt: now,
		Source:    source,
	}

	s.data.Prototypes = append(s.data.Prototypes, p)
	if err := s.saveUnsafe(); err != nil {
		// Откатываем изменения
		s.data.Prototypes = s.data.Prototypes[:len(s.data.Prototypes)-1]
		return nil, err
	}

	log.Printf("[Prototypes] Added: %s (%s, n=%d)", p.Label, p.ID[:8], p.Size)
	return &p, nil
}

// Upsert заменяет центроид класса label или добавляет новый прототип
func (s *Store) Upsert(label string, centroid []float32, size int, source string) (*Prototype, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexByLabel(label)
	if i < 0 {
		return s.addUnsafe(label, centroid, size, source)
	}

	prev := s.data.Prototypes[i]
	p := &s.data.Prototypes[i]
	p.Centroid = append([]float32(nil), centroid...)
	p.Size = size
	p.Source = source
	p.UpdatedAt = time.Now()

	if err := s.saveUnsafe(); err != nil {
		s.data.Prototypes[i] = prev
		return nil, err
	}

	updated := *p
	return &updated, nil
}

// Delete удаляет прототип
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := -1
	for j := range s.data.Prototypes {
		if s.data.Prototypes[j].ID == id {
			i = j
			break
		}
	}
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	// Новый срез: при ошибке записи возвращаем прежний без изменений
	prev := s.data.Prototypes
	label := prev[i].Label
	next := make([]Prototype, 0, len(prev)-1)
	next = append(next, prev[:i]...)
	next = append(next, prev[i+1:]...)

	s.data.Prototypes = next
	if err := s.saveUnsafe(); err != nil {
		s.data.Prototypes = prev
		return err
	}

	log.Printf("[Prototypes] Deleted: %s (%s)", label, id)
	return nil
}

// Count возвращает количество прототипов
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data.Prototypes)
}
