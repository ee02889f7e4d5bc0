// Package config provides configuration loading, defaults, and validation for
// the MedCheck verification engine.
package config

import (
	"time"

	"github.com/medcheck/MedCheck-Engine/internal/verification/ensemble"
	"github.com/medcheck/MedCheck-Engine/internal/verification/heuristic"
	"github.com/medcheck/MedCheck-Engine/internal/verification/ranker"
)

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultServerPort  = 8080
	DefaultMaxBodySize = 16 << 20 // multipart uploads with product photos

	DefaultDBHost     = "localhost"
	DefaultDBPort     = 5432
	DefaultDBName     = "medcheck"
	DefaultDBMaxConns = 25

	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisKeyPrefix = "medcheck:"

	DefaultKafkaBroker        = "localhost:9092"
	DefaultVerdictTopic       = "medcheck.verdicts"
	DefaultAlertTopic         = "medcheck.alerts"
	DefaultKafkaConsumerGroup = "medcheck-engine"
	DefaultKafkaClientID      = "medcheck-engine"

	DefaultOpenSearchAddr = "http://localhost:9200"
	DefaultAlertIndex     = "medcheck-alerts"
	DefaultCandidateSize  = 50

	DefaultMilvusCollection = "alert_name_embeddings"
	DefaultEmbeddingDim     = 384
	DefaultMilvusTopK       = 10

	DefaultMinIOEndpoint = "localhost:9000"
	DefaultMinIOBucket   = "medcheck-evidence"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// ApplyDefaults fills every zero-value field in cfg with the engine default.
// Fields that have already been set by the caller (non-zero values) are left
// unchanged so that explicit configuration always wins.  It must be called
// after unmarshalling raw config data and before Validate() so that
// optional-but-defaulted fields are never seen as missing.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = 120 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}
	if cfg.Server.MaxBodySize == 0 {
		cfg.Server.MaxBodySize = DefaultMaxBodySize
	}
	if cfg.Server.RateLimitPerMinute == 0 {
		cfg.Server.RateLimitPerMinute = 120
	}

	// ── Database ──────────────────────────────────────────────────────────────
	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = DefaultDBMaxConns
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	// DB is an int; 0 is a valid explicit value so we cannot distinguish "not
	// set" from "set to 0".  We leave it as-is (0 is also the default).

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.VerdictTopic == "" {
		cfg.Kafka.VerdictTopic = DefaultVerdictTopic
	}
	if cfg.Kafka.AlertTopic == "" {
		cfg.Kafka.AlertTopic = DefaultAlertTopic
	}
	if cfg.Kafka.ConsumerGroup == "" {
		cfg.Kafka.ConsumerGroup = DefaultKafkaConsumerGroup
	}
	if cfg.Kafka.ClientID == "" {
		cfg.Kafka.ClientID = DefaultKafkaClientID
	}
	if cfg.Kafka.WriteTimeout == 0 {
		cfg.Kafka.WriteTimeout = 10 * time.Second
	}

	// ── OpenSearch ────────────────────────────────────────────────────────────
	if len(cfg.OpenSearch.Addresses) == 0 {
		cfg.OpenSearch.Addresses = []string{DefaultOpenSearchAddr}
	}
	if cfg.OpenSearch.AlertIndex == "" {
		cfg.OpenSearch.AlertIndex = DefaultAlertIndex
	}
	if cfg.OpenSearch.CandidateSize == 0 {
		cfg.OpenSearch.CandidateSize = DefaultCandidateSize
	}

	// ── Milvus ────────────────────────────────────────────────────────────────
	// Addr stays empty by default: the semantic backend is opt-in.
	if cfg.Milvus.Collection == "" {
		cfg.Milvus.Collection = DefaultMilvusCollection
	}
	if cfg.Milvus.EmbeddingDim == 0 {
		cfg.Milvus.EmbeddingDim = DefaultEmbeddingDim
	}
	if cfg.Milvus.DefaultTopK == 0 {
		cfg.Milvus.DefaultTopK = DefaultMilvusTopK
	}

	// ── MinIO ─────────────────────────────────────────────────────────────────
	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = DefaultMinIOBucket
	}
	if cfg.MinIO.PresignExpiry == 0 {
		cfg.MinIO.PresignExpiry = 24 * time.Hour
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	// ── Verification ──────────────────────────────────────────────────────────
	if cfg.Verification.Ranker.NameWeight == 0 {
		cfg.Verification.Ranker = ranker.DefaultConfig()
	}
	if cfg.Verification.Heuristic.AuthenticityThreshold == 0 {
		cfg.Verification.Heuristic = heuristic.DefaultConfig()
	}
	if cfg.Verification.Ensemble.HeuristicWeight == 0 && cfg.Verification.Ensemble.RankerWeight == 0 {
		cfg.Verification.Ensemble = ensemble.DefaultConfig()
	}
	// DetailPage, Extraction and Registry default inside their own packages.
}
