package dto

import (
	"time"

	"drug-rec-api/internal/application/catalog"
	"drug-rec-api/internal/application/prediction"
)

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status         string            `json:"status"`
	Message        string            `json:"message,omitempty"`
	Version        string            `json:"version,omitempty"`
	Ready          bool              `json:"ready"`
	Initialization *catalog.Status   `json:"initialization_status,omitempty"`
	Endpoints      map[string]string `json:"endpoints,omitempty"`
}

// ReadyResponse 就绪检查响应
type ReadyResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Progress int    `json:"progress"`
}

// InitializeResponse 触发初始化响应
type InitializeResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Progress int    `json:"progress"`
}

// StatsResponse 目录统计
type StatsResponse struct {
	TotalDrugs int                 `json:"total_drugs"`
	Dimension  int                 `json:"embedding_dimension"`
	Encoder    string              `json:"model_name"`
	Source     string              `json:"source"`
	LoadedAt   time.Time           `json:"loaded_at"`
	Prediction prediction.Settings `json:"prediction"`
}
