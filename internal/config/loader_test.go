package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadFromAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", "app:\n  name: test-api\n")

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "test-api", cfg.App.Name)
	assert.Equal(t, 5, cfg.Prediction.DefaultTopK)
	assert.Equal(t, 20, cfg.Prediction.MaxTopK)
	assert.Equal(t, "cosine", cfg.Prediction.Metric)
	assert.InDelta(t, 0.80, cfg.Prediction.Confidence.HighMin, 1e-9)
	assert.InDelta(t, 0.65, cfg.Prediction.Confidence.MediumMin, 1e-9)
	assert.Equal(t, "hashing", cfg.Embedding.Provider)
	assert.Equal(t, 600*time.Second, cfg.Startup.Timeout)
	assert.Equal(t, "Nama", cfg.Catalog.NameColumn)
	assert.Equal(t, "DeskripsiObat", cfg.Catalog.DescriptionColumn)
}

func TestLoadFromMergesEnvFileAndPlaceholders(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", "prediction:\n  max_top_k: ${TEST_MAX_TOP_K:30}\n  metric: COSINE\n")
	writeFile(t, dir, "config.staging.yaml", "prediction:\n  default_top_k: 3\n")
	t.Setenv("APP_ENV", "staging")
	t.Setenv("TEST_MAX_TOP_K", "12")

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Prediction.MaxTopK)
	assert.Equal(t, 3, cfg.Prediction.DefaultTopK)
	assert.Equal(t, "cosine", cfg.Prediction.Metric)
}

func TestLoadFromRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", "prediction:\n  default_top_k: 30\n  max_top_k: 20\n")

	_, err := LoadFrom(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_top_k")
}

func TestLoadFromMissingBaseFile(t *testing.T) {
	_, err := LoadFrom(t.TempDir())
	require.Error(t, err)
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("EXPAND_SET", "value")
	assert.Equal(t, "a=value", expandEnv("a=${EXPAND_SET}"))
	assert.Equal(t, "b=fallback", expandEnv("b=${EXPAND_UNSET_X:fallback}"))
	assert.Equal(t, "c=${EXPAND_UNSET_Y}", expandEnv("c=${EXPAND_UNSET_Y}"))
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", "app:\n  name: x\n")
	base, err := LoadFrom(dir)
	require.NoError(t, err)

	cases := map[string]func(c *Config){
		"thresholds inverted": func(c *Config) { c.Prediction.Confidence.MediumMin = 0.9 },
		"max below default":   func(c *Config) { c.Prediction.MaxTopK = 2 },
		"zero default":        func(c *Config) { c.Prediction.DefaultTopK = 0 },
		"unknown metric":      func(c *Config) { c.Prediction.Metric = "manhattan" },
		"unknown provider":    func(c *Config) { c.Embedding.Provider = "word2vec" },
		"unknown source":      func(c *Config) { c.Catalog.Source = "s3" },
		"cache without redis": func(c *Config) { c.Embedding.Cache.Enabled = true },
		"zero dimension":      func(c *Config) { c.Embedding.Dimension = 0 },
		"unknown cache backend": func(c *Config) {
			c.Embedding.Cache.Enabled = true
			c.Embedding.Cache.Backend = "memcached"
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := *base
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestValidateMemoryCacheWithoutRedis(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", "embedding:\n  cache:\n    enabled: true\n    backend: memory\n")
	cfg, err := LoadFrom(dir)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Embedding.Cache.Backend)
	assert.Equal(t, 10000, cfg.Embedding.Cache.Size)
	assert.Equal(t, "emb:", cfg.Embedding.Cache.KeyPrefix)
}
