package prediction

import (
	"context"

	"drug-rec-api/internal/domain/entity"
	"drug-rec-api/internal/infrastructure/embedding"
)

// Composer 合并 keluhan 与 anamnesa 并编码为查询向量
type Composer struct {
	enc       embedding.Encoder
	separator string
}

// NewComposer 创建查询组合器；separator 为空时使用单个空格
func NewComposer(enc embedding.Encoder, separator string) *Composer {
	if separator == "" {
		separator = " "
	}
	return &Composer{enc: enc, separator: separator}
}

// Text 返回参与编码的查询文本
func (c *Composer) Text(q entity.Query) string {
	return embedding.NormalizeText(q.Keluhan + c.separator + q.Anamnesa)
}

// Compose 每个请求只调用一次编码器，不重试
func (c *Composer) Compose(ctx context.Context, q entity.Query) ([]float32, error) {
	vecs, err := c.enc.Encode(ctx, []string{c.Text(q)})
	if err != nil {
		return nil, &EncodingError{Reason: "encoder failed", Err: err}
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, &EncodingError{Reason: "encoder returned no vector"}
	}
	if len(vecs[0]) != c.enc.Dimension() {
		return nil, &EncodingError{Reason: "unexpected vector dimension"}
	}
	return vecs[0], nil
}
