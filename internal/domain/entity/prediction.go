package entity

// Confidence 置信度等级
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Query 经过校验的单次推荐请求
type Query struct {
	Keluhan  string
	Anamnesa string
	TopK     int
}

// ScoredCandidate 排序后的候选药品
type ScoredCandidate struct {
	Entry      *CatalogEntry
	Score      float64
	Confidence Confidence
	Rank       int
}

// Prediction 对外输出的单条推荐结果
type Prediction struct {
	NamaObat        string     `json:"nama_obat"`
	DeskripsiObat   string     `json:"deskripsi_obat"`
	SimilarityScore float64    `json:"similarity_score"`
	Confidence      Confidence `json:"confidence"`
	Rank            int        `json:"rank"`
}

// PredictionResponse 推荐响应
type PredictionResponse struct {
	Predictions []Prediction `json:"predictions"`
}
