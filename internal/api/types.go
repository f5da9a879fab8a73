package api

import (
	"ecglatent/models"
	"ecglatent/prototypes"
	"ecglatent/templates"
)

// Типы сообщений
const (
	TypeEncode          = "encode"
	TypeDecode          = "decode"
	TypeGenerate        = "generate"
	TypeReconstruct     = "reconstruct"
	TypeOrderTemplates  = "order_templates"
	TypeEncodeTemplates = "encode_templates"
	TypeBuildPrototypes = "build_prototypes"
	TypeGetPrototypes   = "get_prototypes"
	TypeDeletePrototype = "delete_prototype"
	TypeClassify        = "classify"
	TypeGetModels       = "get_models"
	TypeDownloadModel   = "download_model"
	TypeModelProgress   = "model_progress"
	TypeError           = "error"
)

// Message WebSocket / gRPC message structure
type Message struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId,omitempty"`
	Data      string `json:"data,omitempty"`

	// Входные данные
	Waveform  []float32     `json:"waveform,omitempty"`
	Latent    []float32     `json:"latent,omitempty"`
	Templates [][][]float32 `json:"templates,omitempty"`
	Labels    []string      `json:"labels,omitempty"`
	Batched   bool          `json:"batched,omitempty"`
	Count     int           `json:"count,omitempty"`
	Source    string        `json:"source,omitempty"`

	// Ответы
	Waveforms  [][]float32                           `json:"waveforms,omitempty"`
	Groups     *templates.Mapping[string, []float32] `json:"groups,omitempty"`
	Prototypes []prototypes.Prototype                `json:"prototypes,omitempty"`
	Match      *prototypes.MatchResult               `json:"match,omitempty"`
	MSE        float64                               `json:"mse,omitempty"`

	// Models
	Models   []models.ModelState `json:"models,omitempty"`
	ModelID  string              `json:"modelId,omitempty"`
	Progress float64             `json:"progress,omitempty"`
	Error    string              `json:"error,omitempty"`
}
