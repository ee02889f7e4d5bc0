package milvus

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/medcheck/MedCheck-Engine/internal/infrastructure/monitoring/logging"
	"github.com/medcheck/MedCheck-Engine/pkg/errors"
)

// vectorStore is the subset of the Milvus SDK client the searcher uses.
type vectorStore interface {
	Query(ctx context.Context, collectionName string, partitionNames []string, expr string, outputFields []string, opts ...client.SearchQueryOptionFunc) (client.ResultSet, error)
	Upsert(ctx context.Context, collName string, partitionName string, columns ...entity.Column) (entity.Column, error)
}

// EmbeddingSearcher resolves stored product-name embeddings and computes
// cosine similarity between two names. It implements the semantic backend
// of the similarity engine. A name without a stored embedding yields an
// error so callers fall back to lexical scoring.
type EmbeddingSearcher struct {
	store      vectorStore
	collection string
	log        logging.Logger
}

// NewEmbeddingSearcher constructs an EmbeddingSearcher over the given
// collection.
func NewEmbeddingSearcher(c *Client, collection string, log logging.Logger) *EmbeddingSearcher {
	return newEmbeddingSearcher(c.Milvus(), collection, log)
}

func newEmbeddingSearcher(store vectorStore, collection string, log logging.Logger) *EmbeddingSearcher {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &EmbeddingSearcher{store: store, collection: collection, log: log.Named("embedding_searcher")}
}

// Similarity returns the cosine similarity of the stored embeddings for two
// product names, clamped to [0,1]. Identical normalized names short-circuit
// to 1 without a round trip.
func (s *EmbeddingSearcher) Similarity(ctx context.Context, a, b string) (float64, error) {
	na := normalizeName(a)
	nb := normalizeName(b)
	if na == "" || nb == "" {
		return 0, errors.New(errors.ErrCodeValidation, "product name is empty")
	}
	if na == nb {
		return 1.0, nil
	}

	expr := fmt.Sprintf(`%s in ["%s", "%s"]`, fieldProductName, escapeExpr(na), escapeExpr(nb))
	rs, err := s.store.Query(ctx, s.collection, nil, expr, []string{fieldProductName, fieldEmbedding})
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeSimilarityFailed, "embedding lookup failed")
	}

	vectors, err := vectorsByName(rs)
	if err != nil {
		return 0, err
	}

	va, ok := vectors[na]
	if !ok {
		return 0, errors.New(errors.ErrCodeSimilarityFailed, "no stored embedding for product name").
			WithDetail("name=" + na)
	}
	vb, ok := vectors[nb]
	if !ok {
		return 0, errors.New(errors.ErrCodeSimilarityFailed, "no stored embedding for product name").
			WithDetail("name=" + nb)
	}

	sim, err := cosine(va, vb)
	if err != nil {
		return 0, err
	}

	s.log.Debug("semantic similarity computed",
		logging.String("a", na),
		logging.String("b", nb),
		logging.Float64("similarity", sim))
	return sim, nil
}

// UpsertEmbedding stores or replaces the embedding for a product name. The
// name is normalized before it becomes the primary key.
func (s *EmbeddingSearcher) UpsertEmbedding(ctx context.Context, name string, vector []float32) error {
	n := normalizeName(name)
	if n == "" {
		return errors.New(errors.ErrCodeValidation, "product name is empty")
	}
	if len(vector) == 0 {
		return errors.New(errors.ErrCodeValidation, "embedding vector is empty")
	}

	_, err := s.store.Upsert(ctx, s.collection, "",
		entity.NewColumnVarChar(fieldProductName, []string{n}),
		entity.NewColumnFloatVector(fieldEmbedding, len(vector), [][]float32{vector}),
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "failed to upsert embedding").
			WithDetail("name=" + n)
	}
	return nil
}

func vectorsByName(rs client.ResultSet) (map[string][]float32, error) {
	names, ok := rs.GetColumn(fieldProductName).(*entity.ColumnVarChar)
	if !ok {
		return nil, errors.New(errors.ErrCodeSimilarityFailed, "product_name column missing from result")
	}
	embeddings, ok := rs.GetColumn(fieldEmbedding).(*entity.ColumnFloatVector)
	if !ok {
		return nil, errors.New(errors.ErrCodeSimilarityFailed, "embedding column missing from result")
	}

	vectors := make(map[string][]float32, names.Len())
	for i := 0; i < names.Len(); i++ {
		name, err := names.ValueByIdx(i)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSimilarityFailed, "failed to read product name column")
		}
		vectors[name] = embeddings.Data()[i]
	}
	return vectors, nil
}

func cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, errors.New(errors.ErrCodeSimilarityFailed, "embedding dimensions do not match")
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, errors.New(errors.ErrCodeSimilarityFailed, "zero-magnitude embedding")
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return math.Max(0, math.Min(1, sim)), nil
}

func normalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func escapeExpr(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
