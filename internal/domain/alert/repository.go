package alert

import "context"

// Repository is the Alert Corpus Accessor contract. The verification core
// consumes this interface; the postgres adapter in
// internal/infrastructure/database/postgres implements it. The core never
// writes to the corpus.
type Repository interface {
	// ListActive returns every alert currently marked active. The matching
	// pipeline scores against this set; an empty slice is a valid result
	// (the verdict is then SAFE, never an error).
	ListActive(ctx context.Context) ([]*Alert, error)

	// GetByID returns a single alert, or an ErrCodeAlertNotFound AppError.
	GetByID(ctx context.Context, id string) (*Alert, error)
}

// CandidateSource narrows the corpus before exhaustive scoring. The
// opensearch adapter implements it; when it is absent or failing the ranker
// falls back to scoring the full ListActive set.
type CandidateSource interface {
	// SearchCandidates returns the IDs of alerts whose indexed text matches
	// the query, best-first, capped at limit.
	SearchCandidates(ctx context.Context, query string, limit int) ([]string, error)
}
