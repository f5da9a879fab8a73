package models

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// ProgressCallback функция обратного вызова для прогресса
type ProgressCallback func(id ModelID, progress float64, status ModelStatus, err error)

// Manager менеджер файлов моделей
type Manager struct {
	modelsDir  string
	paths      map[ModelID]string             // Явно заданные пути (перекрывают modelsDir)
	urls       map[ModelID]string             // Откуда скачивать
	downloads  map[ModelID]context.CancelFunc // Активные загрузки
	lastErrors map[ModelID]error
	mu         sync.RWMutex
	onProgress ProgressCallback
}

// NewManager создаёт новый менеджер моделей
func NewManager(modelsDir string) (*Manager, error) {
	if err := os.MkdirAll(modelsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create models directory: %w", err)
	}

	return &Manager{
		modelsDir:  modelsDir,
		paths:      make(map[ModelID]string),
		urls:       make(map[ModelID]string),
		downloads:  make(map[ModelID]context.CancelFunc),
		lastErrors: make(map[ModelID]error),
	}, nil
}

// SetProgressCallback устанавливает callback для прогресса
func (m *Manager) SetProgressCallback(cb ProgressCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onProgress = cb
}

// SetModelPath задаёт явный путь к файлу модели
func (m *Manager) SetModelPath(id ModelID, path string) error {
	if GetModelByID(id) == nil {
		return fmt.Errorf("%w: %s", ErrUnknownModel, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paths[id] = path
	return nil
}

// SetDownloadURL задаёт URL для скачивания модели
func (m *Manager) SetDownloadURL(id ModelID, url string) error {
	if GetModelByID(id) == nil {
		return fmt.Errorf("%w: %s", ErrUnknownModel, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.urls[id] = url
	return nil
}

// GetModelsDir возвращает путь к директории моделей
func (m *Manager) GetModelsDir() string {
	return m.modelsDir
}

// GetModelPath возвращает путь к модели или "" для неизвестного ID
func (m *Manager) GetModelPath(id ModelID) string {
	info := GetModelByID(id)
	if info == nil {
		return ""
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if path, ok := m.paths[id]; ok && path != "" {
		return path
	}
	return filepath.Join(m.modelsDir, info.FileName)
}

// IsModelDownloaded проверяет наличие файла модели
func (m *Manager) IsModelDownloaded(id ModelID) bool {
	path := m.GetModelPath(id)
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Size() > 0
}

// GetAllModelsState возвращает состояние всех моделей
func (m *Manager) GetAllModelsState() []ModelState {
	states := make([]ModelState, 0, len(Registry))
	for _, info := range Registry {
		state := ModelState{
			ModelInfo: info,
			Status:    ModelStatusNotDownloaded,
			Path:      m.GetModelPath(info.ID),
		}

		m.mu.RLock()
		_, downloading := m.downloads[info.ID]
		lastErr := m.lastErrors[info.ID]
		state.DownloadURL = m.urls[info.ID]
		m.mu.RUnlock()

		switch {
		case downloading:
			state.Status = ModelStatusDownloading
		case m.IsModelDownloaded(info.ID):
			state.Status = ModelStatusDownloaded
			state.Progress = 100
		case lastErr != nil:
			state.Status = ModelStatusError
			state.Error = lastErr.Error()
		}
		states = append(states, state)
	}
	return states
}

// DownloadModel запускает скачивание модели в фоне
func (m *Manager) DownloadModel(id ModelID) error {
	ctx, err := m.beginDownload(id)
	if err != nil {
		return err
	}

	go func() {
		if err := m.download(ctx, id); err != nil {
			log.Printf("[Models] Download failed for %s: %v", id, err)
		}
	}()
	return nil
}

// EnsureModel синхронно скачивает модель, если её ещё нет на диске
func (m *Manager) EnsureModel(ctx context.Context, id ModelID) (string, error) {
	if GetModelByID(id) == nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownModel, id)
	}
	if m.IsModelDownloaded(id) {
		return m.GetModelPath(id), nil
	}

	dctx, err := m.beginDownload(id)
	if err != nil {
		return "", err
	}

	// Отмена внешнего ctx отменяет и загрузку
	stop := context.AfterFunc(ctx, func() { m.CancelDownload(id) })
	defer stop()

	if err := m.download(dctx, id); err != nil {
		return "", err
	}
	return m.GetModelPath(id), nil
}

func (m *Manager) beginDownload(id ModelID) (context.Context, error) {
	if GetModelByID(id) == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.urls[id] == "" {
		return nil, fmt.Errorf("no download URL configured for model %s", id)
	}
	if _, exists := m.downloads[id]; exists {
		return nil, fmt.Errorf("model %s is already downloading", id)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.downloads[id] = cancel
	delete(m.lastErrors, id)
	return ctx, nil
}

func (m *Manager) download(ctx context.Context, id ModelID) error {
	defer func() {
		m.mu.Lock()
		if cancel, ok := m.downloads[id]; ok {
			cancel()
			delete(m.downloads, id)
		}
		m.mu.Unlock()
	}()

	m.mu.RLock()
	url := m.urls[id]
	m.mu.RUnlock()

	destPath := m.GetModelPath(id)
	log.Printf("[Models] Downloading %s from %s", id, url)

	err := DownloadFile(ctx, url, destPath, func(progress float64) {
		m.notifyProgress(id, progress, ModelStatusDownloading, nil)
	})
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			log.Printf("[Models] Download cancelled for %s", id)
			m.notifyProgress(id, 0, ModelStatusNotDownloaded, nil)
			return ctx.Err()
		}
		m.mu.Lock()
		m.lastErrors[id] = err
		m.mu.Unlock()
		m.notifyProgress(id, 0, ModelStatusError, err)
		return err
	}

	log.Printf("[Models] Download completed: %s -> %s", id, destPath)
	m.notifyProgress(id, 100, ModelStatusDownloaded, nil)
	return nil
}

// CancelDownload отменяет скачивание модели
func (m *Manager) CancelDownload(id ModelID) error {
	m.mu.Lock()
	cancel, exists := m.downloads[id]
	m.mu.Unlock()

	if !exists {
		return fmt.Errorf("model %s is not downloading", id)
	}
	cancel()
	return nil
}

// DeleteModel удаляет скачанную модель
func (m *Manager) DeleteModel(id ModelID) error {
	if !m.IsModelDownloaded(id) {
		return fmt.Errorf("model %s is not downloaded", id)
	}
	if err := os.Remove(m.GetModelPath(id)); err != nil {
		return fmt.Errorf("failed to delete model: %w", err)
	}
	log.Printf("[Models] Deleted %s", id)
	return nil
}

func (m *Manager) notifyProgress(id ModelID, progress float64, status ModelStatus, err error) {
	m.mu.RLock()
	cb := m.onProgress
	m.mu.RUnlock()

	if cb != nil {
		cb(id, progress, status, err)
	}
}
