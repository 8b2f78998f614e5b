package embedding

import (
	"context"
	"hash/fnv"
	"regexp"
	"strings"
)

const hashingEncoderName = "hashing"

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

// HashingEncoder 本地特征哈希词袋编码器，同样的文本总是得到同样的向量
//
// 每个词（以及相邻词对）经 FNV-1a 哈希映射到一个维度，符号由哈希的最高位决定，
// 最后做 L2 归一化。不需要任何外部模型，适合开发环境与测试。
type HashingEncoder struct {
	dim int
}

// NewHashingEncoder 创建哈希编码器
func NewHashingEncoder(dim int) *HashingEncoder {
	if dim <= 0 {
		dim = 384
	}
	return &HashingEncoder{dim: dim}
}

func (e *HashingEncoder) Name() string   { return hashingEncoderName }
func (e *HashingEncoder) Dimension() int { return e.dim }

// Encode 实现 Encoder
func (e *HashingEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.embed(t)
	}
	return out, nil
}

func (e *HashingEncoder) embed(text string) []float32 {
	vec := make([]float32, e.dim)
	tokens := tokenize(text)
	for i, tok := range tokens {
		e.add(vec, tok, 1)
		if i > 0 {
			e.add(vec, tokens[i-1]+" "+tok, 0.5)
		}
	}
	L2Normalize(vec)
	return vec
}

func (e *HashingEncoder) add(vec []float32, feature string, weight float32) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum32()
	idx := int(sum % uint32(e.dim))
	if sum&(1<<31) != 0 {
		weight = -weight
	}
	vec[idx] += weight
}

func tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(NormalizeText(text)), -1)
}
