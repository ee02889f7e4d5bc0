// Package config defines all configuration structures for the MedCheck
// verification engine.  No I/O or parsing logic lives here, only plain data
// types and validation.
package config

import (
	"fmt"
	"time"

	"github.com/medcheck/MedCheck-Engine/internal/infrastructure/monitoring/logging"
	"github.com/medcheck/MedCheck-Engine/internal/verification/detailpage"
	"github.com/medcheck/MedCheck-Engine/internal/verification/ensemble"
	"github.com/medcheck/MedCheck-Engine/internal/verification/heuristic"
	"github.com/medcheck/MedCheck-Engine/internal/verification/ranker"
	"github.com/medcheck/MedCheck-Engine/internal/verification/registry"
	"github.com/medcheck/MedCheck-Engine/internal/verification/textnorm"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port               int           `mapstructure:"port"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
	IdleTimeout        time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodySize        int64         `mapstructure:"max_body_size"`
	CORSAllowedOrigins []string      `mapstructure:"cors_allowed_origins"`
	RateLimitPerMinute int           `mapstructure:"rate_limit_per_minute"`
}

// DatabaseConfig holds PostgreSQL connection parameters for the alert corpus.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrationPath   string        `mapstructure:"migration_path"`
}

// RedisConfig holds Redis connection parameters for the detail-page cache.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds the verdict audit-stream producer parameters.
type KafkaConfig struct {
	Brokers         []string      `mapstructure:"brokers"`
	VerdictTopic    string        `mapstructure:"verdict_topic"`
	AlertTopic      string        `mapstructure:"alert_topic"`
	ConsumerGroup   string        `mapstructure:"consumer_group"`
	ClientID        string        `mapstructure:"client_id"`
	ProducerRetries int           `mapstructure:"producer_retries"`
	BatchSize       int           `mapstructure:"batch_size"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
}

// OpenSearchConfig holds the alert candidate-search cluster parameters.
type OpenSearchConfig struct {
	Addresses          []string `mapstructure:"addresses"`
	User               string   `mapstructure:"user"`
	Password           string   `mapstructure:"password"`
	InsecureSkipVerify bool     `mapstructure:"insecure_skip_verify"`
	AlertIndex         string   `mapstructure:"alert_index"`
	CandidateSize      int      `mapstructure:"candidate_size"`
}

// MilvusConfig holds the product-name embedding store parameters. The
// semantic backend is optional; an empty Addr disables it.
type MilvusConfig struct {
	Addr         string `mapstructure:"addr"`
	DBName       string `mapstructure:"db_name"`
	Collection   string `mapstructure:"collection"`
	EmbeddingDim int    `mapstructure:"embedding_dim"`
	DefaultTopK  int    `mapstructure:"default_top_k"`
}

// MinIOConfig holds the evidence-archive object-storage parameters.
type MinIOConfig struct {
	Endpoint      string        `mapstructure:"endpoint"`
	AccessKey     string        `mapstructure:"access_key"`
	SecretKey     string        `mapstructure:"secret_key"`
	Bucket        string        `mapstructure:"bucket"`
	UseSSL        bool          `mapstructure:"use_ssl"`
	PresignExpiry time.Duration `mapstructure:"presign_expiry"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level            string   `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format           string   `mapstructure:"format"` // "json" | "console"
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// ToLoggerConfig converts the config section into the logging package's
// native form.
func (lc LogConfig) ToLoggerConfig() logging.LogConfig {
	return logging.LogConfig{
		Level:            lc.Level,
		Format:           lc.Format,
		OutputPaths:      lc.OutputPaths,
		ErrorOutputPaths: lc.ErrorOutputPaths,
	}
}

// VerificationConfig aggregates the tunables of every verification stage.
// Zero-valued sections fall back to each package's defaults.
type VerificationConfig struct {
	Ranker     ranker.Config     `mapstructure:"ranker"`
	Heuristic  heuristic.Config  `mapstructure:"heuristic"`
	Ensemble   ensemble.Config   `mapstructure:"ensemble"`
	DetailPage detailpage.Config `mapstructure:"detail_page"`
	Extraction textnorm.Config   `mapstructure:"extraction"`

	// Registry replaces the built-in confirmed-fake table when non-empty.
	Registry []registry.Entry `mapstructure:"registry"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure for the entire engine.  Every
// infrastructure component and verification stage reads its settings from the
// relevant sub-struct.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Kafka        KafkaConfig        `mapstructure:"kafka"`
	OpenSearch   OpenSearchConfig   `mapstructure:"opensearch"`
	Milvus       MilvusConfig       `mapstructure:"milvus"`
	MinIO        MinIOConfig        `mapstructure:"minio"`
	Log          LogConfig          `mapstructure:"log"`
	Verification VerificationConfig `mapstructure:"verification"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of the fully-populated Config.
// It returns the first error encountered; callers should treat any error as
// fatal and refuse to start the application.
func (c *Config) Validate() error {
	// Server
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	if c.Server.MaxBodySize < 1 {
		return fmt.Errorf("config: server.max_body_size must be ≥ 1, got %d", c.Server.MaxBodySize)
	}

	// Database
	if c.Database.Host == "" {
		return fmt.Errorf("config: database.host is required")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("config: database.port %d is out of range [1, 65535]", c.Database.Port)
	}
	if c.Database.User == "" {
		return fmt.Errorf("config: database.user is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("config: database.db_name is required")
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("config: database.max_conns must be ≥ 1, got %d", c.Database.MaxConns)
	}

	// Redis
	if c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("config: redis.db must be ≥ 0, got %d", c.Redis.DB)
	}

	// Kafka
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
	}
	if c.Kafka.VerdictTopic == "" {
		return fmt.Errorf("config: kafka.verdict_topic is required")
	}

	// OpenSearch
	if len(c.OpenSearch.Addresses) == 0 {
		return fmt.Errorf("config: opensearch.addresses must contain at least one address")
	}
	if c.OpenSearch.AlertIndex == "" {
		return fmt.Errorf("config: opensearch.alert_index is required")
	}

	// MinIO
	if c.MinIO.Endpoint == "" {
		return fmt.Errorf("config: minio.endpoint is required")
	}
	if c.MinIO.Bucket == "" {
		return fmt.Errorf("config: minio.bucket is required")
	}

	// Log
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	// Verification
	if c.Verification.Ensemble.HeuristicWeight+c.Verification.Ensemble.RankerWeight <= 0 {
		return fmt.Errorf("config: verification.ensemble weights must sum to a positive value")
	}
	if t := c.Verification.Heuristic.AuthenticityThreshold; t <= 0 || t >= 1 {
		return fmt.Errorf("config: verification.heuristic.authenticity_threshold %v is out of range (0, 1)", t)
	}
	if c.Verification.Ranker.TopN < 1 {
		return fmt.Errorf("config: verification.ranker.top_n must be ≥ 1, got %d", c.Verification.Ranker.TopN)
	}
	for i, e := range c.Verification.Registry {
		if e.ProductName == "" || e.Batch == "" {
			return fmt.Errorf("config: verification.registry[%d] needs both product_name and batch", i)
		}
	}

	return nil
}
