package similarity

import (
	"context"

	"github.com/medcheck/MedCheck-Engine/internal/infrastructure/monitoring/logging"
)

// EmbeddingSearcher is the optional semantic similarity backend. The milvus
// adapter in internal/infrastructure/search/milvus implements it. Providers
// are best-effort: an error from Similarity means "no semantic signal", and
// the Engine falls back to the lexical score.
type EmbeddingSearcher interface {
	// Similarity returns an embedding cosine similarity of two product
	// names, mapped to [0,1].
	Similarity(ctx context.Context, a, b string) (float64, error)
}

// Engine combines the pure lexical similarity functions with the optional
// semantic backend. Safe for concurrent use; construct once at startup and
// share across requests.
type Engine struct {
	semantic EmbeddingSearcher
	log      logging.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithSemanticBackend attaches an embedding-based similarity backend.
func WithSemanticBackend(s EmbeddingSearcher) Option {
	return func(e *Engine) { e.semantic = s }
}

// WithLogger sets the engine logger.
func WithLogger(l logging.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// NewEngine constructs a similarity Engine. Without options it is purely
// lexical and logs nowhere.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{log: logging.NewNopLogger()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ProductNameSimilarity returns the similarity of two product names, taking
// the maximum of the lexical score and, when a semantic backend is attached
// and reachable, the semantic score. Backend failures are logged and
// swallowed; the lexical score always stands on its own.
func (e *Engine) ProductNameSimilarity(ctx context.Context, query, candidate string) float64 {
	score := NameSimilarity(query, candidate)
	if e.semantic == nil || score >= 1.0 {
		return score
	}

	sem, err := e.semantic.Similarity(ctx, query, candidate)
	if err != nil {
		e.log.Debug("semantic similarity unavailable, using lexical score",
			logging.Err(err))
		return score
	}
	if sem > score {
		return sem
	}
	return score
}

// BatchSimilarity exposes the pure batch similarity through the Engine so
// callers depend on one type. Batch numbers are identifiers, not language;
// there is no semantic path for them.
func (e *Engine) BatchSimilarity(extracted, alertBatch, alertFullText string) float64 {
	return BatchSimilarity(extracted, alertBatch, alertFullText)
}
