package prediction

import (
	"container/heap"
	"fmt"
	"math"
	"sort"
	"strings"

	"drug-rec-api/internal/domain/entity"
)

// Metric 相似度度量
type Metric string

const (
	MetricCosine    Metric = "cosine"
	MetricDot       Metric = "dot"
	MetricEuclidean Metric = "euclidean"
)

// ParseMetric 解析度量名称
func ParseMetric(s string) (Metric, error) {
	switch m := Metric(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return MetricCosine, nil
	case MetricCosine, MetricDot, MetricEuclidean:
		return m, nil
	default:
		return "", fmt.Errorf("unknown similarity metric %q", s)
	}
}

// Ranker 计算查询向量与全部目录条目的相似度并取前 k 个
//
// 排序：分数降序，分数相同按目录下标升序。使用大小为 k 的最小堆，复杂度 O(n log k)。
type Ranker struct {
	metric Metric
}

// NewRanker 创建排序器
func NewRanker(metric Metric) *Ranker {
	if metric == "" {
		metric = MetricCosine
	}
	return &Ranker{metric: metric}
}

// Metric 返回使用中的度量
func (r *Ranker) Metric() Metric { return r.metric }

// Rank 返回长度为 min(topK, len(entries)) 的有序候选，Rank 从 1 开始连续编号
func (r *Ranker) Rank(query []float32, entries []entity.CatalogEntry, topK int) ([]entity.ScoredCandidate, error) {
	if topK <= 0 || len(entries) == 0 {
		return []entity.ScoredCandidate{}, nil
	}

	h := make(candidateHeap, 0, min(topK, len(entries)))
	for i := range entries {
		e := &entries[i]
		if len(e.Vector) != len(query) {
			return nil, &EncodingError{Reason: fmt.Sprintf("query dimension %d does not match catalog dimension %d", len(query), len(e.Vector))}
		}
		score := r.score(query, e.Vector)
		if math.IsNaN(score) || math.IsInf(score, 0) {
			return nil, &ScoreDomainError{Score: score}
		}
		c := entity.ScoredCandidate{Entry: e, Score: score}
		if len(h) < topK {
			heap.Push(&h, c)
			continue
		}
		if better(c, h[0]) {
			h[0] = c
			heap.Fix(&h, 0)
		}
	}

	out := []entity.ScoredCandidate(h)
	sort.Slice(out, func(i, j int) bool { return better(out[i], out[j]) })
	for i := range out {
		out[i].Rank = i + 1
	}
	return out, nil
}

func (r *Ranker) score(a, b []float32) float64 {
	switch r.metric {
	case MetricDot:
		return dot(a, b)
	case MetricEuclidean:
		var sum float64
		for i := range a {
			d := float64(a[i]) - float64(b[i])
			sum += d * d
		}
		return 1 / (1 + math.Sqrt(sum))
	default:
		return cosine(a, b)
	}
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

// cosine 任一向量范数为 0 时返回 0
func cosine(a, b []float32) float64 {
	var ab, aa, bb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		ab += x * y
		aa += x * x
		bb += y * y
	}
	if aa == 0 || bb == 0 {
		return 0
	}
	return ab / (math.Sqrt(aa) * math.Sqrt(bb))
}

// better a 是否排在 b 之前
func better(a, b entity.ScoredCandidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Entry.Index < b.Entry.Index
}

// candidateHeap 堆顶是当前保留集合中最差的候选
type candidateHeap []entity.ScoredCandidate

func (h candidateHeap) Len() int           { return len(h) }
func (h candidateHeap) Less(i, j int) bool { return better(h[j], h[i]) }
func (h candidateHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *candidateHeap) Push(x any) { *h = append(*h, x.(entity.ScoredCandidate)) }

func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
