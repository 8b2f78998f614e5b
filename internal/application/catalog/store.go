// Package catalog 管理药品目录：加载、编码并以不可变快照的形式发布
package catalog

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"drug-rec-api/internal/domain/entity"
	"drug-rec-api/internal/infrastructure/embedding"
	"drug-rec-api/pkg/metrics"
)

const (
	EmbedDescription     = "description"
	EmbedNameDescription = "name_description"
)

// Options 目录加载选项
type Options struct {
	// EmbedText 参与编码的文本：description / name_description
	EmbedText string
	// Dedupe 去除名称与描述完全相同的记录
	Dedupe bool
	// BatchSize 每次编码的条目数，<= 0 时一次编码全部
	BatchSize int
	// Source 来源描述，写入快照
	Source string
}

// ProgressFunc 编码进度回调
type ProgressFunc func(done, total int)

// Store 药品目录存储
//
// 读取路径无锁：快照通过 atomic.Pointer 发布，重新加载时整体替换。
type Store struct {
	enc  embedding.Encoder
	opts Options
	snap atomic.Pointer[entity.CatalogSnapshot]
}

// NewStore 创建目录存储
func NewStore(enc embedding.Encoder, opts Options) *Store {
	if opts.EmbedText == "" {
		opts.EmbedText = EmbedDescription
	}
	return &Store{enc: enc, opts: opts}
}

// Load 编码全部记录并发布新快照；失败时保留旧快照
func (s *Store) Load(ctx context.Context, records []entity.CatalogRecord) error {
	return s.LoadWithProgress(ctx, records, nil)
}

// LoadWithProgress 同 Load，并在每批编码后回调进度
func (s *Store) LoadWithProgress(ctx context.Context, records []entity.CatalogRecord, progress ProgressFunc) error {
	snap, err := s.build(ctx, records, progress)
	if err != nil {
		metrics.CatalogReloadTotal.WithLabelValues("failed").Inc()
		return err
	}
	s.snap.Store(snap)
	metrics.CatalogReloadTotal.WithLabelValues("ok").Inc()
	metrics.CatalogEntries.Set(float64(len(snap.Entries)))
	return nil
}

func (s *Store) build(ctx context.Context, records []entity.CatalogRecord, progress ProgressFunc) (*entity.CatalogSnapshot, error) {
	if s.opts.Dedupe {
		records = Dedupe(records)
	}

	dim := s.enc.Dimension()
	texts := make([]string, len(records))
	entries := make([]entity.CatalogEntry, len(records))
	for i, r := range records {
		name := strings.TrimSpace(r.Name)
		desc := strings.TrimSpace(r.Description)
		if name == "" {
			return nil, loadErr(i, "empty name", nil)
		}
		if desc == "" {
			return nil, loadErr(i, "empty description", nil)
		}
		entries[i] = entity.CatalogEntry{Index: i, Name: name, Description: desc}
		texts[i] = s.embedText(name, desc)
	}

	batch := s.opts.BatchSize
	if batch <= 0 || batch > len(texts) {
		batch = len(texts)
	}
	for start := 0; start < len(texts); start += batch {
		end := start + batch
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := s.enc.Encode(ctx, texts[start:end])
		if err != nil {
			return nil, loadErr(-1, "encode catalog", err)
		}
		if len(vecs) != end-start {
			return nil, loadErr(-1, "encoder returned wrong number of vectors", nil)
		}
		for j, v := range vecs {
			if len(v) != dim {
				return nil, loadErr(start+j, "vector dimension mismatch", nil)
			}
			entries[start+j].Vector = v
		}
		if progress != nil {
			progress(end, len(texts))
		}
	}

	return &entity.CatalogSnapshot{
		Entries:   entries,
		Dimension: dim,
		Encoder:   s.enc.Name(),
		Source:    s.opts.Source,
		LoadedAt:  time.Now(),
	}, nil
}

// embedText 与查询文本走同一套规范化，保证两侧编码输入一致
func (s *Store) embedText(name, desc string) string {
	text := desc
	if s.opts.EmbedText == EmbedNameDescription {
		text = name + " - " + desc
	}
	return embedding.NormalizeText(text)
}

// All 返回按加载顺序排列的条目；未就绪时返回 nil
func (s *Store) All() []entity.CatalogEntry {
	if snap := s.snap.Load(); snap != nil {
		return snap.Entries
	}
	return nil
}

// Snapshot 返回当前快照，未就绪时为 nil
func (s *Store) Snapshot() *entity.CatalogSnapshot {
	return s.snap.Load()
}

// Ready 是否已发布过快照
func (s *Store) Ready() bool {
	return s.snap.Load() != nil
}

// Encoder 目录使用的编码器，查询必须使用同一编码器
func (s *Store) Encoder() embedding.Encoder {
	return s.enc
}

// Dedupe 去除 (名称, 描述) 完全相同的重复记录，保留首次出现的顺序
func Dedupe(records []entity.CatalogRecord) []entity.CatalogRecord {
	seen := make(map[string]struct{}, len(records))
	out := make([]entity.CatalogRecord, 0, len(records))
	for _, r := range records {
		k := r.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}
