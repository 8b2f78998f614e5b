package wire

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drug-rec-api/internal/config"
	"drug-rec-api/internal/infrastructure/embedding"
)

const testCSV = "Nama,DeskripsiObat\n" +
	"Sanmol Forte 650 mg,Paracetamol dosis tinggi untuk demam tinggi dan sakit kepala\n" +
	"Farsifen 400 mg,NSAID dosis tinggi untuk nyeri otot dan peradangan\n"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	gin.SetMode(gin.TestMode)

	path := filepath.Join(t.TempDir(), "obat.csv")
	require.NoError(t, os.WriteFile(path, []byte(testCSV), 0o600))

	cfg := &config.Config{}
	cfg.App.Version = "test"
	cfg.Catalog = config.CatalogConfig{Source: "file", Path: path, EmbedText: "description"}
	cfg.Embedding = config.EmbeddingConfig{Provider: "hashing", Dimension: 64, Workers: 2, Timeout: time.Second}
	cfg.Prediction = config.PredictionConfig{
		DefaultTopK: 5,
		MaxTopK:     20,
		Metric:      "cosine",
		Separator:   " ",
		Timeout:     5 * time.Second,
		Confidence:  config.ConfidenceConfig{HighMin: 0.8, MediumMin: 0.65},
	}
	return cfg
}

func TestInitializeAppFromFile(t *testing.T) {
	cfg := testConfig(t)

	app, cleanup, err := InitializeApp(context.Background(), cfg)
	require.NoError(t, err)
	defer cleanup()

	assert.False(t, app.Store.Ready())
	require.NoError(t, app.Initializer.Wait(context.Background(), 5*time.Second))
	assert.Equal(t, 2, app.Store.Snapshot().Size())
	assert.Equal(t, "file:"+cfg.Catalog.Path, app.Store.Snapshot().Source)

	req := httptest.NewRequest(http.MethodPost, "/predict",
		bytes.NewBufferString(`{"keluhan":"sakit kepala","anamnesa":"demam tinggi"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	app.Router.Engine().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Sanmol Forte 650 mg")
}

func TestInitializeAppSQLite(t *testing.T) {
	cfg := testConfig(t)
	cfg.Catalog.Source = "sqlite"
	cfg.Database.SQLite.Path = filepath.Join(t.TempDir(), "obat.db")

	app, cleanup, err := InitializeApp(context.Background(), cfg)
	require.NoError(t, err)
	defer cleanup()

	// a freshly migrated table is an empty, but valid, catalog
	require.NoError(t, app.Initializer.Run(context.Background()))
	assert.True(t, app.Store.Ready())
	assert.Equal(t, 0, app.Store.Snapshot().Size())
}

func TestInitializeAppRejectsUnknownMetric(t *testing.T) {
	cfg := testConfig(t)
	cfg.Prediction.Metric = "manhattan"

	_, _, err := InitializeApp(context.Background(), cfg)
	assert.Error(t, err)
}

func TestProvideQueryEncoderWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Cache.Redis = config.RedisConfig{Enabled: true, Host: mr.Host(), Port: mustPort(t, mr.Port())}
	cfg.Embedding.Cache = config.EmbeddingCacheConfig{Enabled: true, Backend: "redis", TTL: time.Minute}

	ctx := context.Background()
	client, cleanup, err := ProvideRedisClientOptional(ctx, cfg)
	require.NoError(t, err)
	defer cleanup()

	enc := embedding.NewHashingEncoder(16)
	q := ProvideQueryEncoder(ctx, enc, client, cfg)
	_, ok := q.(*embedding.CachedEncoder)
	assert.True(t, ok)

	assert.Nil(t, ProvideRateLimiter(ctx, client, cfg))
	cfg.Security.RateLimit.Enabled = true
	assert.NotNil(t, ProvideRateLimiter(ctx, client, cfg))
	assert.Nil(t, ProvideRateLimiter(ctx, nil, cfg))

	cfg.Embedding.Cache.Backend = "memory"
	_, ok = ProvideQueryEncoder(ctx, enc, nil, cfg).(*embedding.CachedEncoder)
	assert.True(t, ok)

	cfg.Embedding.Cache.Enabled = false
	_, ok = ProvideQueryEncoder(ctx, enc, client, cfg).(*embedding.HashingEncoder)
	assert.True(t, ok)
}

func mustPort(t *testing.T, s string) int {
	t.Helper()
	p, err := strconv.Atoi(s)
	require.NoError(t, err)
	return p
}

func TestProvideCatalogWriterRequiresDatabase(t *testing.T) {
	cfg := testConfig(t)
	_, _, err := ProvideCatalogWriter(context.Background(), cfg)
	assert.Error(t, err)
}
