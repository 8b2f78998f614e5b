// Package main 将 CSV/JSON/YAML 药品目录导入 PostgreSQL 或 SQLite
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"drug-rec-api/internal/application/catalog"
	"drug-rec-api/internal/config"
	"drug-rec-api/internal/infrastructure/persistence/file"
	"drug-rec-api/internal/wire"
)

func main() {
	_ = godotenv.Load()

	var (
		configDir  = pflag.StringP("config-dir", "c", "", "directory holding config.yaml (default: configs)")
		input      = pflag.StringP("input", "i", "", "catalog file to import (default: catalog.path)")
		target     = pflag.StringP("target", "t", "", "destination: postgres or sqlite (default: catalog.source)")
		dedupe     = pflag.Bool("dedupe", false, "drop records whose name and description both repeat")
	)
	pflag.Parse()

	var (
		cfg *config.Config
		err error
	)
	if *configDir != "" {
		cfg, err = config.LoadFrom(*configDir)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if *input == "" {
		*input = cfg.Catalog.Path
	}
	if *target != "" {
		cfg.Catalog.Source = *target
	}

	ctx := context.Background()

	src := file.NewCatalogSource(*input, cfg.Catalog.NameColumn, cfg.Catalog.DescriptionColumn)
	records, err := src.LoadRecords(ctx)
	if err != nil {
		log.Fatalf("failed to read %s: %v", *input, err)
	}
	if *dedupe || cfg.Catalog.Dedupe {
		before := len(records)
		records = catalog.Dedupe(records)
		fmt.Printf("Dropped %d duplicate records.\n", before-len(records))
	}

	writer, cleanup, err := wire.ProvideCatalogWriter(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to open %s catalog: %v", cfg.Catalog.Source, err)
	}
	defer cleanup()

	if err := writer.ReplaceAll(ctx, records); err != nil {
		log.Fatalf("failed to import catalog: %v", err)
	}

	fmt.Printf("Imported %d drugs from %s into %s.\n", len(records), *input, cfg.Catalog.Source)
}
