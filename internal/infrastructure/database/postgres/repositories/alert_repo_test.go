package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medcheck/MedCheck-Engine/internal/domain/alert"
	apperrors "github.com/medcheck/MedCheck-Engine/pkg/errors"
)

// ── fakes ────────────────────────────────────────────────────────────────────

type fakeQuerier struct {
	execFunc     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	queryFunc    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	queryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
}

func (f *fakeQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return f.execFunc(ctx, sql, args...)
}

func (f *fakeQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return f.queryFunc(ctx, sql, args...)
}

func (f *fakeQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return f.queryRowFunc(ctx, sql, args...)
}

// fakeRows serves pre-baked row tuples in alertColumns order.
type fakeRows struct {
	rows [][]any
	idx  int
	err  error
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	if r.idx == 0 || r.idx > len(r.rows) {
		return pgx.ErrNoRows
	}
	return assignRow(r.rows[r.idx-1], dest)
}

// fakeRow is the single-row variant used for QueryRow.
type fakeRow struct {
	row []any
	err error
}

func (r *fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assignRow(r.row, dest)
}

func assignRow(src []any, dest []any) error {
	if len(src) != len(dest) {
		return errors.New("column count mismatch")
	}
	for i, v := range src {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *time.Time:
			*d = v.(time.Time)
		case *[]string:
			*d = v.([]string)
		case *bool:
			*d = v.(bool)
		default:
			return errors.New("unsupported scan destination")
		}
	}
	return nil
}

func alertRow(id, title string, active bool) []any {
	return []any{
		id, title, "excerpt for " + title, "https://nafdac.gov.ng/" + id,
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		[]string{"T36184B"}, []string{title}, "Test Pharma Ltd",
		"HIGH", "counterfeit", active,
	}
}

// ── tests ────────────────────────────────────────────────────────────────────

func TestAlertRepository_ListActive(t *testing.T) {
	q := &fakeQuerier{
		queryFunc: func(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
			assert.Contains(t, sql, "WHERE active")
			return &fakeRows{rows: [][]any{
				alertRow("a1", "Fake Postinor 2", true),
				alertRow("a2", "Recalled Coartem", true),
			}}, nil
		},
	}
	repo := newAlertRepositoryWithQuerier(q, nil)

	alerts, err := repo.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, "a1", alerts[0].ID)
	assert.Equal(t, alert.SeverityHigh, alerts[0].Severity)
	assert.Equal(t, alert.CategoryCounterfeit, alerts[0].Category)
	assert.Equal(t, []string{"T36184B"}, alerts[0].BatchNumbers)
}

func TestAlertRepository_ListActive_QueryError(t *testing.T) {
	q := &fakeQuerier{
		queryFunc: func(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
			return nil, errors.New("connection refused")
		},
	}
	repo := newAlertRepositoryWithQuerier(q, nil)

	_, err := repo.ListActive(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeDatabaseError))
}

func TestAlertRepository_GetByID_Found(t *testing.T) {
	q := &fakeQuerier{
		queryRowFunc: func(_ context.Context, _ string, args ...any) pgx.Row {
			require.Equal(t, "a1", args[0])
			return &fakeRow{row: alertRow("a1", "Fake Postinor 2", true)}
		},
	}
	repo := newAlertRepositoryWithQuerier(q, nil)

	a, err := repo.GetByID(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "Fake Postinor 2", a.Title)
}

func TestAlertRepository_GetByID_NotFound(t *testing.T) {
	q := &fakeQuerier{
		queryRowFunc: func(_ context.Context, _ string, _ ...any) pgx.Row {
			return &fakeRow{err: pgx.ErrNoRows}
		},
	}
	repo := newAlertRepositoryWithQuerier(q, nil)

	_, err := repo.GetByID(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeAlertNotFound))
}

func TestAlertRepository_Upsert(t *testing.T) {
	var gotSQL string
	q := &fakeQuerier{
		execFunc: func(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			gotSQL = sql
			require.Len(t, args, 12)
			assert.Equal(t, "a1", args[0])
			return pgconn.NewCommandTag("INSERT 0 1"), nil
		},
	}
	repo := newAlertRepositoryWithQuerier(q, nil)

	err := repo.Upsert(context.Background(), &alert.Alert{
		ID:       "a1",
		Title:    "Fake Postinor 2",
		Category: alert.CategoryCounterfeit,
		Active:   true,
	})
	require.NoError(t, err)
	assert.Contains(t, gotSQL, "ON CONFLICT (id) DO UPDATE")
}

func TestAlertRepository_Upsert_RejectsInvalidAlert(t *testing.T) {
	repo := newAlertRepositoryWithQuerier(&fakeQuerier{}, nil)

	err := repo.Upsert(context.Background(), &alert.Alert{ID: "a1"}) // missing title
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))
}

func TestAlertRepository_Deactivate_NotFound(t *testing.T) {
	q := &fakeQuerier{
		execFunc: func(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
			return pgconn.NewCommandTag("UPDATE 0"), nil
		},
	}
	repo := newAlertRepositoryWithQuerier(q, nil)

	err := repo.Deactivate(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeAlertNotFound))
}
