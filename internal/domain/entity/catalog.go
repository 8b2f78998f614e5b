// Package entity 定义领域实体
package entity

import (
	"strings"
	"time"
)

// CatalogRecord 目录来源提供的原始药品记录（尚未编码）
type CatalogRecord struct {
	Name        string `json:"nama" yaml:"nama"`
	Description string `json:"deskripsi" yaml:"deskripsi"`
}

// Key 用于去重的记录键
func (r CatalogRecord) Key() string {
	return strings.TrimSpace(r.Name) + "\x00" + strings.TrimSpace(r.Description)
}

// CatalogEntry 已编码的药品目录条目，加载后不可变
type CatalogEntry struct {
	// Index 加载顺序下标，排序时作为并列分数的决胜键
	Index       int
	Name        string
	Description string
	Vector      []float32
}

// CatalogSnapshot 一次完整加载得到的不可变目录快照
type CatalogSnapshot struct {
	Entries   []CatalogEntry
	Dimension int
	Encoder   string
	Source    string
	LoadedAt  time.Time
}

// Size 返回条目数量
func (s *CatalogSnapshot) Size() int {
	if s == nil {
		return 0
	}
	return len(s.Entries)
}
