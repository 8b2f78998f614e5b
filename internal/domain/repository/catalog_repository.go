// Package repository 定义仓储接口
package repository

import (
	"context"

	"drug-rec-api/internal/domain/entity"
)

// CatalogSource 药品目录来源（文件 / PostgreSQL / SQLite）
type CatalogSource interface {
	// Name 来源描述，用于状态与统计输出
	Name() string
	// LoadRecords 按稳定顺序返回全部记录，该顺序即并列分数的决胜顺序
	LoadRecords(ctx context.Context) ([]entity.CatalogRecord, error)
}

// CatalogWriter 可写的目录存储，用于导入工具
type CatalogWriter interface {
	// ReplaceAll 以给定顺序整体替换目录内容
	ReplaceAll(ctx context.Context, records []entity.CatalogRecord) error
}
