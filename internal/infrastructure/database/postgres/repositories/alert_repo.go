// Package repositories provides the PostgreSQL-backed implementation of the
// alert corpus repository.
package repositories

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medcheck/MedCheck-Engine/internal/domain/alert"
	"github.com/medcheck/MedCheck-Engine/internal/infrastructure/monitoring/logging"
	apperrors "github.com/medcheck/MedCheck-Engine/pkg/errors"
)

// querier abstracts *pgxpool.Pool for testing.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const alertColumns = `id, title, excerpt, url, date, batch_numbers,
	product_names, manufacturer, severity, category, active`

// AlertRepository is the PostgreSQL implementation of alert.Repository.
// Every method uses parameterised queries and honours context cancellation.
type AlertRepository struct {
	db  querier
	log logging.Logger
}

// NewAlertRepository constructs a ready-to-use AlertRepository.
func NewAlertRepository(pool *pgxpool.Pool, log logging.Logger) *AlertRepository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &AlertRepository{db: pool, log: log.Named("alert_repo")}
}

// newAlertRepositoryWithQuerier is the test seam.
func newAlertRepositoryWithQuerier(db querier, log logging.Logger) *AlertRepository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &AlertRepository{db: db, log: log}
}

// ListActive returns every active alert, newest first.
func (r *AlertRepository) ListActive(ctx context.Context) ([]*alert.Alert, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+alertColumns+`
		FROM alerts
		WHERE active
		ORDER BY date DESC`)
	if err != nil {
		r.log.Error("failed to query active alerts", logging.Err(err))
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to list active alerts")
	}
	defer rows.Close()

	var alerts []*alert.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to iterate alerts")
	}
	return alerts, nil
}

// GetByID returns a single alert or an ErrCodeAlertNotFound error.
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*alert.Alert, error) {
	a, err := scanAlert(r.db.QueryRow(ctx, `
		SELECT `+alertColumns+`
		FROM alerts
		WHERE id = $1`, id))
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrCodeAlertNotFound) {
			return nil, apperrors.New(apperrors.ErrCodeAlertNotFound, "alert not found").WithDetail("id=" + id)
		}
		return nil, err
	}
	return a, nil
}

// Upsert inserts or replaces an alert. The ingestion side calls this for
// every crawled notice; id conflicts update the stored row in place.
func (r *AlertRepository) Upsert(ctx context.Context, a *alert.Alert) error {
	if err := a.Validate(); err != nil {
		return err
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO alerts (`+alertColumns+`, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (id) DO UPDATE SET
			title         = EXCLUDED.title,
			excerpt       = EXCLUDED.excerpt,
			url           = EXCLUDED.url,
			date          = EXCLUDED.date,
			batch_numbers = EXCLUDED.batch_numbers,
			product_names = EXCLUDED.product_names,
			manufacturer  = EXCLUDED.manufacturer,
			severity      = EXCLUDED.severity,
			category      = EXCLUDED.category,
			active        = EXCLUDED.active,
			updated_at    = EXCLUDED.updated_at`,
		a.ID, a.Title, a.Excerpt, a.URL, a.Date, a.BatchNumbers,
		a.ProductNames, a.Manufacturer, a.Severity.String(), string(a.Category),
		a.Active, time.Now().UTC(),
	)
	if err != nil {
		r.log.Error("failed to upsert alert", logging.String("id", a.ID), logging.Err(err))
		return apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to upsert alert")
	}
	return nil
}

// Deactivate marks an alert inactive without deleting it. Corpus history is
// kept for audit.
func (r *AlertRepository) Deactivate(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `UPDATE alerts SET active = false WHERE id = $1`, id)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to deactivate alert")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.New(apperrors.ErrCodeAlertNotFound, "alert not found").WithDetail("id=" + id)
	}
	return nil
}

// scanAlert maps one row onto the domain entity. Severity and category are
// stored as text and parsed leniently; an unknown severity degrades to
// MEDIUM rather than failing the whole corpus load.
func scanAlert(row pgx.Row) (*alert.Alert, error) {
	var (
		a        alert.Alert
		severity string
		category string
	)
	err := row.Scan(
		&a.ID, &a.Title, &a.Excerpt, &a.URL, &a.Date, &a.BatchNumbers,
		&a.ProductNames, &a.Manufacturer, &severity, &category, &a.Active,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.New(apperrors.ErrCodeAlertNotFound, "alert not found")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to scan alert row")
	}
	a.Severity = alert.ParseSeverity(severity)
	a.Category = alert.Category(category)
	return &a, nil
}
