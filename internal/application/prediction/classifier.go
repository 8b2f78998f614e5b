package prediction

import (
	"math"

	"drug-rec-api/internal/domain/entity"
)

// Thresholds 置信度阈值表
type Thresholds struct {
	HighMin   float64
	MediumMin float64
}

// DefaultThresholds 默认阈值
var DefaultThresholds = Thresholds{HighMin: 0.80, MediumMin: 0.65}

// Classifier 将相似度映射为置信度等级
type Classifier struct {
	t Thresholds
}

// NewClassifier 创建分类器
func NewClassifier(t Thresholds) *Classifier {
	return &Classifier{t: t}
}

// Thresholds 返回使用中的阈值
func (c *Classifier) Thresholds() Thresholds { return c.t }

// Classify score >= HighMin 为 high，>= MediumMin 为 medium，其余（含负数）为 low
func (c *Classifier) Classify(score float64) (entity.Confidence, error) {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return "", &ScoreDomainError{Score: score}
	}
	switch {
	case score >= c.t.HighMin:
		return entity.ConfidenceHigh, nil
	case score >= c.t.MediumMin:
		return entity.ConfidenceMedium, nil
	default:
		return entity.ConfidenceLow, nil
	}
}
