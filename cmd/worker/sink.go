package main

import (
	"context"

	"github.com/medcheck/MedCheck-Engine/internal/domain/alert"
	"github.com/medcheck/MedCheck-Engine/internal/infrastructure/database/postgres/repositories"
	"github.com/medcheck/MedCheck-Engine/internal/infrastructure/monitoring/logging"
	"github.com/medcheck/MedCheck-Engine/internal/infrastructure/monitoring/prometheus"
	"github.com/medcheck/MedCheck-Engine/internal/infrastructure/search/opensearch"
)

// alertSink fans alert-feed updates out to the corpus and the search index.
// The corpus write is authoritative; an index failure is logged and absorbed
// so the feed keeps moving and the index converges on the next update.
type alertSink struct {
	repo    *repositories.AlertRepository
	indexer *opensearch.Indexer
	metrics *prometheus.AppMetrics
	log     logging.Logger
}

func newAlertSink(repo *repositories.AlertRepository, indexer *opensearch.Indexer, metrics *prometheus.AppMetrics, log logging.Logger) *alertSink {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &alertSink{repo: repo, indexer: indexer, metrics: metrics, log: log.Named("alert_sink")}
}

func (s *alertSink) Upsert(ctx context.Context, a *alert.Alert) error {
	if err := s.repo.Upsert(ctx, a); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.RecordAlertUpdate("upsert")
	}
	if s.indexer != nil {
		if err := s.indexer.IndexAlert(ctx, a); err != nil {
			s.log.Warn("alert index update failed",
				logging.String("alert_id", a.ID),
				logging.Err(err),
			)
		}
	}
	return nil
}

func (s *alertSink) Deactivate(ctx context.Context, id string) error {
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.RecordAlertUpdate("deactivate")
	}
	if s.indexer != nil {
		if err := s.indexer.DeleteAlert(ctx, id); err != nil {
			s.log.Warn("alert index delete failed",
				logging.String("alert_id", id),
				logging.Err(err),
			)
		}
	}
	return nil
}
