// Package file 从本地文件（csv / json / yaml）读取药品目录
package file

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"drug-rec-api/internal/domain/entity"
)

// CatalogSource 文件目录来源，格式由扩展名决定
type CatalogSource struct {
	path    string
	nameCol string
	descCol string
}

// NewCatalogSource 创建文件来源；nameCol / descCol 仅用于 CSV
func NewCatalogSource(path, nameCol, descCol string) *CatalogSource {
	if nameCol == "" {
		nameCol = "Nama"
	}
	if descCol == "" {
		descCol = "DeskripsiObat"
	}
	return &CatalogSource{path: path, nameCol: nameCol, descCol: descCol}
}

func (s *CatalogSource) Name() string { return "file:" + s.path }

// LoadRecords 按文件中的顺序返回记录
func (s *CatalogSource) LoadRecords(ctx context.Context) ([]entity.CatalogRecord, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open catalog file: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(s.path)) {
	case ".csv":
		return ReadCSV(f, s.nameCol, s.descCol)
	case ".json":
		var out []entity.CatalogRecord
		if err := json.NewDecoder(f).Decode(&out); err != nil {
			return nil, fmt.Errorf("decode catalog json: %w", err)
		}
		return out, nil
	case ".yaml", ".yml":
		var out []entity.CatalogRecord
		if err := yaml.NewDecoder(f).Decode(&out); err != nil && err != io.EOF {
			return nil, fmt.Errorf("decode catalog yaml: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported catalog file type %q", filepath.Ext(s.path))
	}
}

// ReadCSV 读取带表头的 CSV，按列名取名称与描述
func ReadCSV(r io.Reader, nameCol, descCol string) ([]entity.CatalogRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	nameIdx, descIdx := -1, -1
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		switch h {
		case nameCol:
			nameIdx = i
		case descCol:
			descIdx = i
		}
	}
	var missing []string
	if nameIdx < 0 {
		missing = append(missing, nameCol)
	}
	if descIdx < 0 {
		missing = append(missing, descCol)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing columns %v, available: %v", missing, header)
	}

	var out []entity.CatalogRecord
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}
		rec := entity.CatalogRecord{}
		if nameIdx < len(row) {
			rec.Name = row[nameIdx]
		}
		if descIdx < len(row) {
			rec.Description = row[descIdx]
		}
		out = append(out, rec)
	}
	return out, nil
}
