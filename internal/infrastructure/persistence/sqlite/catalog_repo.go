// Package sqlite 提供基于 SQLite（modernc.org/sqlite，纯 Go）的药品目录存储
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	_ "modernc.org/sqlite"

	"drug-rec-api/internal/domain/entity"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Open 打开 SQLite 数据库
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// 单写连接，避免 database is locked
	db.SetMaxOpenConns(1)
	return db, nil
}

// CatalogRepository SQLite 目录仓储
type CatalogRepository struct {
	db    *sql.DB
	table string
}

// NewCatalogRepository 创建仓储
func NewCatalogRepository(db *sql.DB, table string) (*CatalogRepository, error) {
	if table == "" {
		table = "obat"
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &CatalogRepository{db: db, table: table}, nil
}

func (r *CatalogRepository) Name() string { return "sqlite:" + r.table }

// Migrate 创建目录表
func (r *CatalogRepository) Migrate(ctx context.Context) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            id INTEGER PRIMARY KEY,
            nama TEXT NOT NULL,
            deskripsi TEXT NOT NULL
        );`, r.table)
	if _, err := r.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("migrate %s: %w", r.table, err)
	}
	return nil
}

// LoadRecords 按 id 升序读取
func (r *CatalogRepository) LoadRecords(ctx context.Context) ([]entity.CatalogRecord, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`SELECT nama, deskripsi FROM %s ORDER BY id`, r.table))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", r.table, err)
	}
	defer rows.Close()

	var out []entity.CatalogRecord
	for rows.Next() {
		var rec entity.CatalogRecord
		if err := rows.Scan(&rec.Name, &rec.Description); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ReplaceAll 在一个事务内清空并按顺序写入
func (r *CatalogRepository) ReplaceAll(ctx context.Context, records []entity.CatalogRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, r.table)); err != nil {
		return fmt.Errorf("clear %s: %w", r.table, err)
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s (id, nama, deskripsi) VALUES (?, ?, ?)`, r.table))
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, rec := range records {
		if _, err := stmt.ExecContext(ctx, i+1, rec.Name, rec.Description); err != nil {
			return fmt.Errorf("insert row %d: %w", i+1, err)
		}
	}
	return tx.Commit()
}
