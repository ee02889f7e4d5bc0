// The apiserver binary runs the MedCheck verification API: it wires the
// alert corpus, the candidate index, the semantic backend, the evidence
// archive and the audit stream into the verification pipeline and serves it
// over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/medcheck/MedCheck-Engine/internal/config"
	"github.com/medcheck/MedCheck-Engine/internal/infrastructure/database/postgres"
	"github.com/medcheck/MedCheck-Engine/internal/infrastructure/database/postgres/repositories"
	appredis "github.com/medcheck/MedCheck-Engine/internal/infrastructure/database/redis"
	"github.com/medcheck/MedCheck-Engine/internal/infrastructure/messaging/kafka"
	"github.com/medcheck/MedCheck-Engine/internal/infrastructure/monitoring/logging"
	"github.com/medcheck/MedCheck-Engine/internal/infrastructure/monitoring/prometheus"
	"github.com/medcheck/MedCheck-Engine/internal/infrastructure/search/milvus"
	"github.com/medcheck/MedCheck-Engine/internal/infrastructure/search/opensearch"
	appminio "github.com/medcheck/MedCheck-Engine/internal/infrastructure/storage/minio"
	httpserver "github.com/medcheck/MedCheck-Engine/internal/interfaces/http"
	"github.com/medcheck/MedCheck-Engine/internal/interfaces/http/handlers"
	"github.com/medcheck/MedCheck-Engine/internal/interfaces/http/middleware"
	"github.com/medcheck/MedCheck-Engine/internal/verification/detailpage"
	"github.com/medcheck/MedCheck-Engine/internal/verification/ensemble"
	"github.com/medcheck/MedCheck-Engine/internal/verification/heuristic"
	"github.com/medcheck/MedCheck-Engine/internal/verification/pipeline"
	"github.com/medcheck/MedCheck-Engine/internal/verification/ranker"
	"github.com/medcheck/MedCheck-Engine/internal/verification/registry"
	"github.com/medcheck/MedCheck-Engine/internal/verification/similarity"
	"github.com/medcheck/MedCheck-Engine/internal/verification/textnorm"
)

const defaultConfigPath = "configs/config.yaml"

// version is stamped at build time with -ldflags.
var version = "dev"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "apiserver: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	log, err := logging.NewLogger(cfg.Log.ToLoggerConfig())
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	log = log.Named("apiserver")
	log.Info("starting medcheck verification engine", logging.String("version", version))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Metrics first so every component below can be observed.
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            "medcheck",
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, log)
	if err != nil {
		return fmt.Errorf("build metrics collector: %w", err)
	}
	metrics := prometheus.NewAppMetrics(collector)

	// Alert corpus.
	if cfg.Database.MigrationPath != "" {
		if err := postgres.RunMigrations(postgres.BuildDSN(cfg.Database), cfg.Database.MigrationPath); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}
	pool, err := postgres.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()
	alertRepo := repositories.NewAlertRepository(pool, log)

	// Detail-page cache.
	rdb, err := appredis.NewClient(cfg.Redis, log)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer func() { _ = rdb.Close() }()
	pageCache := appredis.NewPageCache(rdb, cfg.Redis.KeyPrefix, log)

	// Candidate index.
	osClient, err := opensearch.NewClient(cfg.OpenSearch, log)
	if err != nil {
		return fmt.Errorf("connect to opensearch: %w", err)
	}
	indexer := opensearch.NewIndexer(osClient, cfg.OpenSearch.AlertIndex, log)
	if err := indexer.EnsureIndex(ctx); err != nil {
		return fmt.Errorf("ensure alert index: %w", err)
	}
	candidates := opensearch.NewCandidateSource(osClient, cfg.OpenSearch.AlertIndex, log)

	// Semantic backend, optional.
	engineOpts := []similarity.Option{similarity.WithLogger(log)}
	if cfg.Milvus.Addr != "" {
		mv, err := milvus.NewClient(ctx, cfg.Milvus, log)
		if err != nil {
			return fmt.Errorf("connect to milvus: %w", err)
		}
		defer func() { _ = mv.Close() }()
		if err := milvus.EnsureCollection(ctx, mv, cfg.Milvus.Collection, cfg.Milvus.EmbeddingDim, log); err != nil {
			return fmt.Errorf("ensure embedding collection: %w", err)
		}
		engineOpts = append(engineOpts,
			similarity.WithSemanticBackend(milvus.NewEmbeddingSearcher(mv, cfg.Milvus.Collection, log)))
	}
	simEngine := similarity.NewEngine(engineOpts...)

	// Evidence archive.
	mc, err := appminio.NewClient(ctx, cfg.MinIO, log)
	if err != nil {
		return fmt.Errorf("connect to minio: %w", err)
	}
	evidence := appminio.NewEvidenceStore(mc, cfg.MinIO.Bucket, cfg.MinIO.PresignExpiry, log)
	if err := evidence.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("ensure evidence bucket: %w", err)
	}

	// Verdict audit stream.
	publisher, err := kafka.NewVerdictPublisher(cfg.Kafka, log)
	if err != nil {
		return fmt.Errorf("build verdict publisher: %w", err)
	}
	defer func() { _ = publisher.Close() }()

	// Verification pipeline.
	reg := registry.New(cfg.Verification.Registry...)
	extractor := textnorm.NewExtractor(cfg.Verification.Extraction, nil, log)
	rk := ranker.New(cfg.Verification.Ranker, simEngine,
		ranker.WithCandidateSource(candidates),
		ranker.WithLogger(log),
	)
	analyzer := detailpage.NewAnalyzer(
		detailpage.NewHTTPFetcher(0, log),
		cfg.Verification.DetailPage,
		detailpage.WithCache(pageCache),
		detailpage.WithLogger(log),
	)
	scorer := heuristic.New(cfg.Verification.Heuristic, reg,
		heuristic.WithVisionAnalyzer(heuristic.NewPlaceholderVision()),
		heuristic.WithLogger(log),
	)
	combiner := ensemble.New(cfg.Verification.Ensemble, log)

	pipe := pipeline.New(extractor, reg, alertRepo, rk, analyzer, scorer, combiner,
		pipeline.WithPublisher(publisher),
		pipeline.WithEvidenceStore(evidence),
		pipeline.WithMetrics(metrics),
		pipeline.WithLogger(log),
	)

	// Configuration hot-reload swaps the confirmed-fake table in place.
	config.Watch(configPath, func(next *config.Config) {
		if len(next.Verification.Registry) > 0 {
			reg.Replace(next.Verification.Registry)
			log.Info("confirmed-fake registry reloaded",
				logging.Int("entries", len(next.Verification.Registry)))
		}
	})

	// HTTP surface.
	health := handlers.NewHealthHandler(version,
		handlers.CheckerFunc{ComponentName: "postgres", Fn: func(ctx context.Context) error {
			return postgres.HealthCheck(ctx, pool)
		}},
		handlers.CheckerFunc{ComponentName: "redis", Fn: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}},
	)

	rateCfg := middleware.DefaultRateLimitConfig(cfg.Server.RateLimitPerMinute)
	limiter := middleware.NewTokenBucketLimiter(cfg.Server.RateLimitPerMinute, 0, rateCfg.CleanupInterval)
	defer limiter.Stop()

	logCfg := middleware.DefaultLoggingConfig()
	logCfg.Recorder = metrics

	router := httpserver.NewRouter(httpserver.RouterConfig{
		VerificationHandler: handlers.NewVerificationHandler(pipe, log),
		AlertHandler:        handlers.NewAlertHandler(alertRepo, log),
		HealthHandler:       health,
		CORS:                middleware.DefaultCORSConfig(cfg.Server.CORSAllowedOrigins),
		Logging:             logCfg,
		RateLimit:           &rateCfg,
		Limiter:             limiter,
		Logger:              log,
		MetricsCollector:    collector,
	})

	server := httpserver.NewServer(cfg.Server, router, log)

	serverDone := make(chan error, 1)
	go func() { serverDone <- server.Start() }()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	if err := server.Stop(context.Background()); err != nil {
		log.Error("http server shutdown failed", logging.Err(err))
	}
	log.Info("medcheck verification engine stopped")
	return nil
}
