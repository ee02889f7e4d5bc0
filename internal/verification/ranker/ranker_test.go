package ranker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medcheck/MedCheck-Engine/internal/domain/alert"
	"github.com/medcheck/MedCheck-Engine/internal/verification/common"
	"github.com/medcheck/MedCheck-Engine/internal/verification/similarity"
)

func newTestRanker(opts ...Option) *Ranker {
	return New(DefaultConfig(), similarity.NewEngine(), opts...)
}

func activeAlert(id, title string, batches []string, cat alert.Category) *alert.Alert {
	return &alert.Alert{
		ID:           id,
		Title:        title,
		BatchNumbers: batches,
		Category:     cat,
		Active:       true,
	}
}

func TestRank_ExactTitleAndBatch_TopWithExactBatchTag(t *testing.T) {
	r := newTestRanker()
	a := activeAlert("a1", "Postinor 2", []string{"T36184B"}, alert.CategoryCounterfeit)

	query := common.ProductQuery{ProductName: "Postinor 2"}
	meta := &common.ProductMetadata{BatchNumbers: []string{"T36184B"}}

	got := r.Rank(context.Background(), query, meta, []*alert.Alert{a})
	require.Len(t, got, 1)
	assert.Equal(t, "a1", got[0].Alert.ID)
	assert.True(t, got[0].HasTag(common.EvidenceExactBatchMatch))
	assert.Greater(t, got[0].Score, 150.0)
}

func TestRank_NameOnlyHighSimilarity_RejectedByGate(t *testing.T) {
	// Similarity ~0.9 yields one evidence tag and a score above 80, but
	// gate path (d) needs two distinct tags; the candidate is filtered.
	r := newTestRanker()
	a := activeAlert("a1", "Postinor 3", nil, alert.CategoryGeneral)

	got := r.Rank(context.Background(),
		common.ProductQuery{ProductName: "Postinor 2"},
		&common.ProductMetadata{},
		[]*alert.Alert{a})
	assert.Empty(t, got)
}

func TestRank_CounterfeitKeywordCorroborates(t *testing.T) {
	r := newTestRanker()
	a := activeAlert("a1", "Fake Coartem 80/480mg circulating in Lagos", nil, alert.CategoryGeneral)

	got := r.Rank(context.Background(),
		common.ProductQuery{ProductName: "Coartem 80/480mg"},
		&common.ProductMetadata{},
		[]*alert.Alert{a})
	require.Len(t, got, 1)
	assert.True(t, got[0].HasTag(common.EvidenceCounterfeitIndicator))
}

func TestRank_ManufacturerMatchIsStrongEvidence(t *testing.T) {
	r := newTestRanker()
	a := activeAlert("a1", "Amoxil 500mg recall by Emzor", nil, alert.CategoryRecall)

	got := r.Rank(context.Background(),
		common.ProductQuery{ProductName: "Amoxil 500mg"},
		&common.ProductMetadata{ManufacturerMentions: []string{"emzor"}},
		[]*alert.Alert{a})
	require.Len(t, got, 1)
	assert.True(t, got[0].HasTag(common.EvidenceManufacturerInfo))
	assert.True(t, got[0].HasTag(common.EvidenceSeriousAlertType))
}

func TestRank_UnrelatedAlertScoresBelowMinimum(t *testing.T) {
	r := newTestRanker()
	a := activeAlert("a1", "Codeine syrup ban notice", nil, alert.CategoryGeneral)

	got := r.Rank(context.Background(),
		common.ProductQuery{ProductName: "Paracetamol 500mg"},
		&common.ProductMetadata{},
		[]*alert.Alert{a})
	assert.Empty(t, got)
}

func TestRank_InactiveAlertsIgnored(t *testing.T) {
	r := newTestRanker()
	a := activeAlert("a1", "Postinor 2", []string{"T36184B"}, alert.CategoryCounterfeit)
	a.Active = false

	got := r.Rank(context.Background(),
		common.ProductQuery{ProductName: "Postinor 2"},
		&common.ProductMetadata{BatchNumbers: []string{"T36184B"}},
		[]*alert.Alert{a})
	assert.Empty(t, got)
}

func TestRank_TruncatesToTopTwo(t *testing.T) {
	r := newTestRanker()
	alerts := []*alert.Alert{
		activeAlert("a1", "Postinor 2", []string{"T36184B"}, alert.CategoryCounterfeit),
		activeAlert("a2", "Counterfeit Postinor 2 warning", []string{"T36184B"}, alert.CategoryRecall),
		activeAlert("a3", "Postinor 2 falsified batch seized", []string{"T36184B"}, alert.CategorySafety),
	}

	got := r.Rank(context.Background(),
		common.ProductQuery{ProductName: "Postinor 2"},
		&common.ProductMetadata{BatchNumbers: []string{"T36184B"}},
		alerts)
	require.Len(t, got, 2)
	assert.GreaterOrEqual(t, got[0].Score, got[1].Score)
}

func TestRank_EmptyCorpusYieldsNoCandidates(t *testing.T) {
	r := newTestRanker()
	got := r.Rank(context.Background(),
		common.ProductQuery{ProductName: "Postinor 2"},
		&common.ProductMetadata{},
		nil)
	assert.Empty(t, got)
}

func TestDescriptionOverlap_CappedAtThreeWords(t *testing.T) {
	text := "emergency contraceptive tablets levonorgestrel packaging falsified"
	hits := descriptionOverlap(
		"emergency contraceptive tablets levonorgestrel packaging", text, 3)
	assert.Equal(t, 3, hits)
}

func TestDescriptionOverlap_ShortWordsIgnored(t *testing.T) {
	assert.Equal(t, 0, descriptionOverlap("the and for", "the and for", 3))
}

func TestDescriptionOverlap_DuplicatesCountOnce(t *testing.T) {
	hits := descriptionOverlap("tablets tablets tablets", "tablets here", 3)
	assert.Equal(t, 1, hits)
}

// mockCandidateSource follows the function-field mock pattern.
type mockCandidateSource struct {
	searchFunc func(ctx context.Context, query string, limit int) ([]string, error)
}

func (m *mockCandidateSource) SearchCandidates(ctx context.Context, query string, limit int) ([]string, error) {
	return m.searchFunc(ctx, query, limit)
}

func TestRank_PrefilterNarrowsCorpus(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CandidateLimit = 1
	source := &mockCandidateSource{
		searchFunc: func(_ context.Context, _ string, _ int) ([]string, error) {
			return []string{"a2"}, nil
		},
	}
	r := New(cfg, similarity.NewEngine(), WithCandidateSource(source))

	alerts := []*alert.Alert{
		activeAlert("a1", "Postinor 2", []string{"T36184B"}, alert.CategoryCounterfeit),
		activeAlert("a2", "Codeine syrup notice", nil, alert.CategoryGeneral),
	}
	got := r.Rank(context.Background(),
		common.ProductQuery{ProductName: "Postinor 2"},
		&common.ProductMetadata{BatchNumbers: []string{"T36184B"}},
		alerts)
	assert.Empty(t, got, "the strongly matching alert was filtered out upstream")
}

func TestRank_PrefilterFailureFallsBackToFullCorpus(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CandidateLimit = 1
	source := &mockCandidateSource{
		searchFunc: func(_ context.Context, _ string, _ int) ([]string, error) {
			return nil, errors.New("opensearch unreachable")
		},
	}
	r := New(cfg, similarity.NewEngine(), WithCandidateSource(source))

	alerts := []*alert.Alert{
		activeAlert("a1", "Postinor 2", []string{"T36184B"}, alert.CategoryCounterfeit),
		activeAlert("a2", "Codeine syrup notice", nil, alert.CategoryGeneral),
	}
	got := r.Rank(context.Background(),
		common.ProductQuery{ProductName: "Postinor 2"},
		&common.ProductMetadata{BatchNumbers: []string{"T36184B"}},
		alerts)
	require.Len(t, got, 1)
	assert.Equal(t, "a1", got[0].Alert.ID)
}
