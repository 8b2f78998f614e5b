package dto

import (
	"encoding/json"

	"drug-rec-api/internal/application/prediction"
)

// PredictRequest 推荐请求；top_k 保留原始 JSON，由校验器判断类型
type PredictRequest struct {
	Keluhan  string          `json:"keluhan"`
	Anamnesa string          `json:"anamnesa"`
	TopK     json.RawMessage `json:"top_k"`
}

// ToRaw 转换为应用层请求
func (r *PredictRequest) ToRaw() prediction.RawRequest {
	return prediction.RawRequest{
		Keluhan:  r.Keluhan,
		Anamnesa: r.Anamnesa,
		TopK:     r.TopK,
	}
}
