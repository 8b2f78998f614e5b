// Package config 提供配置加载和管理功能
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config 应用配置根结构
type Config struct {
	App           AppConfig           `yaml:"app" mapstructure:"app"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Startup       StartupConfig       `yaml:"startup" mapstructure:"startup"`
	Catalog       CatalogConfig       `yaml:"catalog" mapstructure:"catalog"`
	Embedding     EmbeddingConfig     `yaml:"embedding" mapstructure:"embedding"`
	Prediction    PredictionConfig    `yaml:"prediction" mapstructure:"prediction"`
	Database      DatabaseConfig      `yaml:"database" mapstructure:"database"`
	Cache         CacheConfig         `yaml:"cache" mapstructure:"cache"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
	Security      SecurityConfig      `yaml:"security" mapstructure:"security"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name    string `yaml:"name" mapstructure:"name"`
	Version string `yaml:"version" mapstructure:"version"`
	Env     string `yaml:"env" mapstructure:"env"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTP HTTPServerConfig `yaml:"http" mapstructure:"http"`
}

// HTTPServerConfig HTTP 服务器配置
type HTTPServerConfig struct {
	Host            string        `yaml:"host" mapstructure:"host"`
	Port            int           `yaml:"port" mapstructure:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// StartupConfig 启动初始化配置
type StartupConfig struct {
	// AutoInitialize 启动时在后台加载药品目录
	AutoInitialize bool `yaml:"auto_initialize" mapstructure:"auto_initialize"`
	// WaitForReady 在开始监听前等待目录加载完成
	WaitForReady bool `yaml:"wait_for_ready" mapstructure:"wait_for_ready"`
	// Timeout 等待初始化完成的最长时间
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// CatalogConfig 药品目录来源配置
type CatalogConfig struct {
	// Source 目录来源：file / postgres / sqlite
	Source string `yaml:"source" mapstructure:"source"`
	// Path 文件来源路径（csv / json / yaml）
	Path string `yaml:"path" mapstructure:"path"`
	// NameColumn、DescriptionColumn 为 CSV 列名
	NameColumn        string `yaml:"name_column" mapstructure:"name_column"`
	DescriptionColumn string `yaml:"description_column" mapstructure:"description_column"`
	// EmbedText 编码文本：description / name_description
	EmbedText string `yaml:"embed_text" mapstructure:"embed_text"`
	// Dedupe 去除名称与描述完全相同的重复条目
	Dedupe bool `yaml:"dedupe" mapstructure:"dedupe"`
	// Table 数据库来源表名
	Table string `yaml:"table" mapstructure:"table"`
}

// EmbeddingConfig Embedding 配置
type EmbeddingConfig struct {
	// Provider 编码器：hashing / http / openai / onnx
	Provider  string        `yaml:"provider" mapstructure:"provider"`
	Model     string        `yaml:"model" mapstructure:"model"`
	Dimension int           `yaml:"dimension" mapstructure:"dimension"`
	BatchSize int           `yaml:"batch_size" mapstructure:"batch_size"`
	Endpoint  string        `yaml:"endpoint" mapstructure:"endpoint"`
	APIKey    string        `yaml:"api_key" mapstructure:"api_key"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// Workers 并发编码上限
	Workers int                  `yaml:"workers" mapstructure:"workers"`
	Onnx    OnnxConfig           `yaml:"onnx" mapstructure:"onnx"`
	Cache   EmbeddingCacheConfig `yaml:"cache" mapstructure:"cache"`
}

// OnnxConfig 本地 ONNX 句向量模型配置
type OnnxConfig struct {
	SharedLibraryPath string `yaml:"shared_library_path" mapstructure:"shared_library_path"`
	ModelPath         string `yaml:"model_path" mapstructure:"model_path"`
	TokenizerPath     string `yaml:"tokenizer_path" mapstructure:"tokenizer_path"`
	MaxSeqLen         int    `yaml:"max_seq_len" mapstructure:"max_seq_len"`
	OutputName        string `yaml:"output_name" mapstructure:"output_name"`
}

// EmbeddingCacheConfig 查询向量缓存配置
type EmbeddingCacheConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Backend 缓存后端：redis（多实例共享）/ memory（进程内 LRU）
	Backend   string        `yaml:"backend" mapstructure:"backend"`
	TTL       time.Duration `yaml:"ttl" mapstructure:"ttl"`
	KeyPrefix string        `yaml:"key_prefix" mapstructure:"key_prefix"`
	// Size memory 后端的最大条目数
	Size int `yaml:"size" mapstructure:"size"`
}

// PredictionConfig 推荐排序配置
type PredictionConfig struct {
	DefaultTopK int              `yaml:"default_top_k" mapstructure:"default_top_k"`
	MaxTopK     int              `yaml:"max_top_k" mapstructure:"max_top_k"`
	Metric      string           `yaml:"metric" mapstructure:"metric"`
	Separator   string           `yaml:"separator" mapstructure:"separator"`
	Timeout     time.Duration    `yaml:"timeout" mapstructure:"timeout"`
	Confidence  ConfidenceConfig `yaml:"confidence" mapstructure:"confidence"`
}

// ConfidenceConfig 置信度阈值表
type ConfidenceConfig struct {
	HighMin   float64 `yaml:"high_min" mapstructure:"high_min"`
	MediumMin float64 `yaml:"medium_min" mapstructure:"medium_min"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Postgres PostgresConfig `yaml:"postgres" mapstructure:"postgres"`
	SQLite   SQLiteConfig   `yaml:"sqlite" mapstructure:"sqlite"`
}

// PostgresConfig PostgreSQL 配置
type PostgresConfig struct {
	Host            string        `yaml:"host" mapstructure:"host"`
	Port            int           `yaml:"port" mapstructure:"port"`
	User            string        `yaml:"user" mapstructure:"user"`
	Password        string        `yaml:"password" mapstructure:"password"`
	Database        string        `yaml:"database" mapstructure:"database"`
	SSLMode         string        `yaml:"ssl_mode" mapstructure:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
	LogLevel        string        `yaml:"log_level" mapstructure:"log_level"`
}

// SQLiteConfig SQLite 配置
type SQLiteConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Redis RedisConfig `yaml:"redis" mapstructure:"redis"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled      bool          `yaml:"enabled" mapstructure:"enabled"`
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	Password     string        `yaml:"password" mapstructure:"password"`
	DB           int           `yaml:"db" mapstructure:"db"`
	PoolSize     int           `yaml:"pool_size" mapstructure:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
}

// ObservabilityConfig 可观测性配置
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
	Output string `yaml:"output" mapstructure:"output"`
}

// TracingConfig 追踪配置
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Exporter   string  `yaml:"exporter" mapstructure:"exporter"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	CORS      CORSConfig      `yaml:"cors" mapstructure:"cors"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerSecond int  `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int  `yaml:"burst" mapstructure:"burst"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" mapstructure:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" mapstructure:"allowed_headers"`
}

var (
	validProviders = []string{"hashing", "http", "openai", "onnx"}
	validSources   = []string{"file", "postgres", "sqlite"}
	validMetrics   = []string{"cosine", "dot", "euclidean"}
	validEmbedText = []string{"description", "name_description"}
	validBackends  = []string{"redis", "memory"}
)

// Validate 校验配置的一致性
func (c *Config) Validate() error {
	p := c.Prediction
	if p.DefaultTopK < 1 {
		return fmt.Errorf("prediction.default_top_k must be >= 1, got %d", p.DefaultTopK)
	}
	if p.MaxTopK < p.DefaultTopK {
		return fmt.Errorf("prediction.max_top_k (%d) must be >= default_top_k (%d)", p.MaxTopK, p.DefaultTopK)
	}
	if p.Confidence.MediumMin > p.Confidence.HighMin {
		return fmt.Errorf("prediction.confidence.medium_min (%.3f) must not exceed high_min (%.3f)",
			p.Confidence.MediumMin, p.Confidence.HighMin)
	}
	if !oneOf(p.Metric, validMetrics) {
		return fmt.Errorf("unknown prediction.metric %q", p.Metric)
	}
	if !oneOf(c.Embedding.Provider, validProviders) {
		return fmt.Errorf("unknown embedding.provider %q", c.Embedding.Provider)
	}
	if c.Embedding.Dimension < 1 {
		return fmt.Errorf("embedding.dimension must be >= 1, got %d", c.Embedding.Dimension)
	}
	if !oneOf(c.Catalog.Source, validSources) {
		return fmt.Errorf("unknown catalog.source %q", c.Catalog.Source)
	}
	if !oneOf(c.Catalog.EmbedText, validEmbedText) {
		return fmt.Errorf("unknown catalog.embed_text %q", c.Catalog.EmbedText)
	}
	if ec := c.Embedding.Cache; ec.Enabled {
		if !oneOf(ec.Backend, validBackends) {
			return fmt.Errorf("unknown embedding.cache.backend %q", ec.Backend)
		}
		if strings.EqualFold(ec.Backend, "redis") && !c.Cache.Redis.Enabled {
			return fmt.Errorf("embedding.cache backend redis requires cache.redis.enabled")
		}
	}
	return nil
}

func oneOf(v string, allowed []string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
