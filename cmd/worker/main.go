// The worker binary ingests the alert feed: it consumes alert documents from
// Kafka and applies them to the corpus database and the candidate index. It
// exposes health probes and metrics but serves no API traffic.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/medcheck/MedCheck-Engine/internal/config"
	"github.com/medcheck/MedCheck-Engine/internal/infrastructure/database/postgres"
	"github.com/medcheck/MedCheck-Engine/internal/infrastructure/database/postgres/repositories"
	"github.com/medcheck/MedCheck-Engine/internal/infrastructure/messaging/kafka"
	"github.com/medcheck/MedCheck-Engine/internal/infrastructure/monitoring/logging"
	"github.com/medcheck/MedCheck-Engine/internal/infrastructure/monitoring/prometheus"
	"github.com/medcheck/MedCheck-Engine/internal/infrastructure/search/opensearch"
	"github.com/medcheck/MedCheck-Engine/internal/interfaces/http/handlers"
)

const (
	defaultConfigPath = "configs/config.yaml"
	defaultProbePort  = 8081
)

// version is stamped at build time with -ldflags.
var version = "dev"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	probePort := flag.Int("probe-port", defaultProbePort, "port for health probes and metrics")
	flag.Parse()

	if err := run(*configPath, *probePort); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, probePort int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	log, err := logging.NewLogger(cfg.Log.ToLoggerConfig())
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	log = log.Named("worker")
	log.Info("starting alert feed worker", logging.String("version", version))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            "medcheck",
		Subsystem:            "worker",
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, log)
	if err != nil {
		return fmt.Errorf("build metrics collector: %w", err)
	}
	metrics := prometheus.NewAppMetrics(collector)

	pool, err := postgres.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()
	alertRepo := repositories.NewAlertRepository(pool, log)

	osClient, err := opensearch.NewClient(cfg.OpenSearch, log)
	if err != nil {
		return fmt.Errorf("connect to opensearch: %w", err)
	}
	indexer := opensearch.NewIndexer(osClient, cfg.OpenSearch.AlertIndex, log)
	if err := indexer.EnsureIndex(ctx); err != nil {
		return fmt.Errorf("ensure alert index: %w", err)
	}

	sink := newAlertSink(alertRepo, indexer, metrics, log)
	consumer, err := kafka.NewAlertConsumer(cfg.Kafka, sink, log)
	if err != nil {
		return fmt.Errorf("build alert consumer: %w", err)
	}
	defer func() { _ = consumer.Close() }()

	// Probe endpoints for orchestration; no API traffic.
	health := handlers.NewHealthHandler(version,
		handlers.CheckerFunc{ComponentName: "postgres", Fn: func(ctx context.Context) error {
			return postgres.HealthCheck(ctx, pool)
		}},
	)
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", health.Liveness)
	mux.HandleFunc("/readyz", health.Readiness)
	mux.Handle("/metrics", collector.Handler())

	probeSrv := &http.Server{
		Addr:         fmt.Sprintf(":%d", probePort),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		if err := probeSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("probe server failed", logging.Err(err))
		}
	}()

	consumerDone := make(chan error, 1)
	go func() { consumerDone <- consumer.Run(ctx) }()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-consumerDone:
		if err != nil {
			return fmt.Errorf("alert consumer: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := probeSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("probe server shutdown failed", logging.Err(err))
	}
	log.Info("alert feed worker stopped")
	return nil
}
