// Package models управляет файлами ONNX графов энкодера и декодера
package models

import "errors"

// ErrUnknownModel неизвестный идентификатор модели
var ErrUnknownModel = errors.New("unknown model")

// ModelID идентификатор модели
type ModelID string

const (
	ModelEncoder ModelID = "encoder" // waveform (n, 400, 1) -> z (n, 25)
	ModelDecoder ModelID = "decoder" // z (1, 25) -> waveform (1, 400)
)

// ModelInfo информация о модели
type ModelInfo struct {
	ID          ModelID `json:"id"`
	Name        string  `json:"name"`
	FileName    string  `json:"fileName"`
	Description string  `json:"description"`
	InputShape  []int64 `json:"inputShape"`  // -1 = динамическое измерение
	OutputShape []int64 `json:"outputShape"` // -1 = динамическое измерение
}

// ModelStatus статус модели на диске
type ModelStatus string

const (
	ModelStatusNotDownloaded ModelStatus = "not_downloaded"
	ModelStatusDownloading   ModelStatus = "downloading"
	ModelStatusDownloaded    ModelStatus = "downloaded"
	ModelStatusError         ModelStatus = "error"
)

// ModelState состояние модели с информацией
type ModelState struct {
	ModelInfo
	Status      ModelStatus `json:"status"`
	Progress    float64     `json:"progress,omitempty"` // 0-100
	Error       string      `json:"error,omitempty"`
	Path        string      `json:"path,omitempty"`
	DownloadURL string      `json:"downloadUrl,omitempty"`
}

// Registry известные модели
var Registry = []ModelInfo{
	{
		ID:          ModelEncoder,
		Name:        "ECG Encoder",
		FileName:    "onnx_encoder.onnx",
		Description: "Кодирует кардиоцикл из 400 отсчётов в 25-мерный латентный вектор",
		InputShape:  []int64{-1, 400, 1},
		OutputShape: []int64{-1, 25},
	},
	{
		ID:          ModelDecoder,
		Name:        "ECG Decoder",
		FileName:    "onnx_decoder.onnx",
		Description: "Восстанавливает кардиоцикл из латентного вектора",
		InputShape:  []int64{-1, 25},
		OutputShape: []int64{-1, 400},
	},
}

// GetModelByID возвращает модель по ID или nil
func GetModelByID(id ModelID) *ModelInfo {
	for i := range Registry {
		if Registry[i].ID == id {
			return &Registry[i]
		}
	}
	return nil
}
