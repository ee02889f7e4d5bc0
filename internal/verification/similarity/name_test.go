package similarity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNameSimilarity_IdenticalNames(t *testing.T) {
	assert.Equal(t, 1.0, NameSimilarity("Postinor 2", "Postinor 2"))
}

func TestNameSimilarity_CaseAndWhitespaceInsensitive(t *testing.T) {
	assert.Equal(t, 1.0, NameSimilarity("  POSTINOR  2 ", "postinor 2"))
}

func TestNameSimilarity_SubstringContainmentBoost(t *testing.T) {
	s := NameSimilarity("Coartem", "Coartem 80/480mg Tablets")
	assert.GreaterOrEqual(t, s, 0.9)
}

func TestNameSimilarity_OrthographicVariants(t *testing.T) {
	tests := []struct {
		name  string
		query string
		cand  string
	}{
		{"space removed", "Postinor 2", "Postinor2"},
		{"space to hyphen", "Postinor 2", "Postinor-2"},
		{"digit to roman", "Postinor 2", "Postinor II"},
		{"roman to digit", "Amoxil IV", "Amoxil 4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.GreaterOrEqual(t, NameSimilarity(tt.query, tt.cand), 0.9,
				"%q vs %q", tt.query, tt.cand)
		})
	}
}

func TestNameSimilarity_ShortQueryPenalty(t *testing.T) {
	// A query under four characters never exceeds half the raw score, even
	// on perfect containment.
	s := NameSimilarity("Abc", "Abc")
	assert.LessOrEqual(t, s, 0.5)
	assert.Equal(t, 0.0, NameSimilarity("", "Paracetamol"))
}

func TestNameSimilarity_UnrelatedNamesScoreLow(t *testing.T) {
	s := NameSimilarity("Paracetamol 500mg", "Coartem 80/480mg")
	assert.Less(t, s, 0.5)
}

func TestIsHighSimilarity_Threshold(t *testing.T) {
	assert.True(t, IsHighSimilarity(0.71))
	assert.False(t, IsHighSimilarity(0.7))
	assert.False(t, IsHighSimilarity(0.3))
}

// mockEmbeddingSearcher follows the function-field mock pattern used across
// the codebase.
type mockEmbeddingSearcher struct {
	similarityFunc func(ctx context.Context, a, b string) (float64, error)
}

func (m *mockEmbeddingSearcher) Similarity(ctx context.Context, a, b string) (float64, error) {
	return m.similarityFunc(ctx, a, b)
}

func TestEngine_ProductNameSimilarity_LexicalOnly(t *testing.T) {
	e := NewEngine()
	assert.Equal(t, 1.0, e.ProductNameSimilarity(context.Background(), "Postinor 2", "postinor 2"))
}

func TestEngine_ProductNameSimilarity_SemanticTakesMax(t *testing.T) {
	sem := &mockEmbeddingSearcher{
		similarityFunc: func(_ context.Context, _, _ string) (float64, error) {
			return 0.85, nil
		},
	}
	e := NewEngine(WithSemanticBackend(sem))
	s := e.ProductNameSimilarity(context.Background(), "Paracetamol 500mg", "Coartem 80/480mg")
	assert.Equal(t, 0.85, s)
}

func TestEngine_ProductNameSimilarity_SemanticFailureFallsBack(t *testing.T) {
	sem := &mockEmbeddingSearcher{
		similarityFunc: func(_ context.Context, _, _ string) (float64, error) {
			return 0, errors.New("milvus unreachable")
		},
	}
	e := NewEngine(WithSemanticBackend(sem))
	s := e.ProductNameSimilarity(context.Background(), "Postinor 2", "Postinor 2")
	assert.Equal(t, 1.0, s)
}

func TestEngine_ProductNameSimilarity_SemanticNeverLowers(t *testing.T) {
	sem := &mockEmbeddingSearcher{
		similarityFunc: func(_ context.Context, _, _ string) (float64, error) {
			return 0.1, nil
		},
	}
	e := NewEngine(WithSemanticBackend(sem))
	s := e.ProductNameSimilarity(context.Background(), "Amoxil", "Amoxil Capsules")
	assert.GreaterOrEqual(t, s, 0.9)
}
