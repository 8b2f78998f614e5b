package prediction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"drug-rec-api/internal/domain/entity"
)

const (
	msgKeluhanEmpty    = "keluhan tidak boleh kosong"
	msgAnamnesaEmpty   = "anamnesa tidak boleh kosong"
	msgTopKNotPositive = "top_k harus berupa bilangan bulat positif"
	msgTopKTooLarge    = "top_k tidak boleh lebih dari %d"
)

// RawRequest 未经校验的请求；TopK 保留原始 JSON 以区分缺省、null 与非整数
type RawRequest struct {
	Keluhan  string          `json:"keluhan"`
	Anamnesa string          `json:"anamnesa"`
	TopK     json.RawMessage `json:"top_k,omitempty"`
}

// Validator 请求校验器，是唯一拒绝非法输入的环节
type Validator struct {
	defaultTopK int
	maxTopK     int
}

// NewValidator 创建校验器
func NewValidator(defaultTopK, maxTopK int) *Validator {
	return &Validator{defaultTopK: defaultTopK, maxTopK: maxTopK}
}

// Validate 依次校验 keluhan、anamnesa、top_k；越界的 top_k 直接拒绝，不做截断
func (v *Validator) Validate(raw RawRequest) (entity.Query, error) {
	q := entity.Query{
		Keluhan:  strings.TrimSpace(raw.Keluhan),
		Anamnesa: strings.TrimSpace(raw.Anamnesa),
		TopK:     v.defaultTopK,
	}
	if q.Keluhan == "" {
		return entity.Query{}, &ValidationError{Message: msgKeluhanEmpty}
	}
	if q.Anamnesa == "" {
		return entity.Query{}, &ValidationError{Message: msgAnamnesaEmpty}
	}

	topK := bytes.TrimSpace(raw.TopK)
	if len(topK) == 0 || bytes.Equal(topK, []byte("null")) {
		return q, nil
	}
	k, ok := parseInt(topK)
	if !ok || k < 1 {
		return entity.Query{}, &ValidationError{Message: msgTopKNotPositive}
	}
	if k > int64(v.maxTopK) {
		return entity.Query{}, &ValidationError{Message: fmt.Sprintf(msgTopKTooLarge, v.maxTopK)}
	}
	q.TopK = int(k)
	return q, nil
}

// parseInt 只接受 JSON 整数字面量（不接受小数、指数、字符串、布尔）
func parseInt(raw []byte) (int64, bool) {
	if c := raw[0]; c != '-' && (c < '0' || c > '9') {
		return 0, false
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return 0, false
	}
	if strings.ContainsAny(n.String(), ".eE") {
		return 0, false
	}
	k, err := n.Int64()
	if err != nil {
		// 超出 int64 的整数按符号处理
		if strings.HasPrefix(n.String(), "-") {
			return -1, true
		}
		return 1<<62, true
	}
	return k, true
}
