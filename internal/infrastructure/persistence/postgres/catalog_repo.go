package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"drug-rec-api/internal/domain/entity"
)

// drugRow 目录表行
type drugRow struct {
	ID        uint   `gorm:"primaryKey"`
	Nama      string `gorm:"type:text;not null"`
	Deskripsi string `gorm:"type:text;not null"`
}

// CatalogRepository PostgreSQL 目录仓储
type CatalogRepository struct {
	client *Client
	table  string
}

// NewCatalogRepository 创建目录仓储
func NewCatalogRepository(client *Client, table string) *CatalogRepository {
	if table == "" {
		table = "obat"
	}
	return &CatalogRepository{client: client, table: table}
}

func (r *CatalogRepository) Name() string { return "postgres:" + r.table }

// AutoMigrate 创建或更新目录表
func (r *CatalogRepository) AutoMigrate(ctx context.Context) error {
	return r.client.db.WithContext(ctx).Table(r.table).AutoMigrate(&drugRow{})
}

// LoadRecords 按 id 升序读取全部记录
func (r *CatalogRepository) LoadRecords(ctx context.Context) ([]entity.CatalogRecord, error) {
	ctx, span := tracer.Start(ctx, "postgres.CatalogRepository.LoadRecords")
	defer span.End()

	var rows []drugRow
	if err := r.client.db.WithContext(ctx).Table(r.table).Order("id").Find(&rows).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	return toRecords(rows), nil
}

// ReplaceAll 在事务内清空并按顺序写入
func (r *CatalogRepository) ReplaceAll(ctx context.Context, records []entity.CatalogRecord) error {
	ctx, span := tracer.Start(ctx, "postgres.CatalogRepository.ReplaceAll")
	defer span.End()

	rows := toRows(records)
	err := r.client.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(fmt.Sprintf("DELETE FROM %q", r.table)).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Table(r.table).CreateInBatches(rows, 500).Error
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to replace catalog: %w", err)
	}
	return nil
}

func toRows(records []entity.CatalogRecord) []drugRow {
	rows := make([]drugRow, len(records))
	for i, rec := range records {
		rows[i] = drugRow{ID: uint(i + 1), Nama: rec.Name, Deskripsi: rec.Description}
	}
	return rows
}

func toRecords(rows []drugRow) []entity.CatalogRecord {
	out := make([]entity.CatalogRecord, len(rows))
	for i, row := range rows {
		out[i] = entity.CatalogRecord{Name: row.Nama, Description: row.Deskripsi}
	}
	return out
}
