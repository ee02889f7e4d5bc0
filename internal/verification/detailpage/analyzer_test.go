package detailpage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medcheck/MedCheck-Engine/internal/verification/common"
)

// mockFetcher follows the function-field mock pattern.
type mockFetcher struct {
	fetchFunc func(ctx context.Context, url string) (string, error)
}

func (m *mockFetcher) FetchPage(ctx context.Context, url string) (string, error) {
	return m.fetchFunc(ctx, url)
}

const officialPage = "PUBLIC ALERT No. 013/2019: NAFDAC alerts members of the public to " +
	"counterfeit falsified Postinor 2 with batch number T36184B. The agency hereby " +
	"orders a recall and seizure of the affected batch."

func fixedFetcher(text string) Fetcher {
	return &mockFetcher{
		fetchFunc: func(_ context.Context, _ string) (string, error) {
			return text, nil
		},
	}
}

func TestAnalyze_RichOfficialPage(t *testing.T) {
	a := NewAnalyzer(fixedFetcher(officialPage), Config{})
	info := a.Analyze(context.Background(), "https://nafdac.gov.ng/alert")

	require.False(t, info.FetchFailed)
	assert.Contains(t, info.AffectedBatches, "T36184B")
	assert.NotEmpty(t, info.RiskKeywordHits)
	assert.NotEmpty(t, info.ActionKeywordHits)
	// 50 base +25 (>2 risk hits) +10 (>0) +15 (batches), capped.
	assert.Equal(t, 95.0, info.PageConfidence)
}

func TestAnalyze_PlainPageGetsBaseline(t *testing.T) {
	a := NewAnalyzer(fixedFetcher("General product update, nothing notable."), Config{})
	info := a.Analyze(context.Background(), "https://nafdac.gov.ng/alert")
	assert.Equal(t, 50.0, info.PageConfidence)
	assert.Empty(t, info.RiskKeywordHits)
}

func TestAnalyze_FewRiskHitsGetSmallBonus(t *testing.T) {
	a := NewAnalyzer(fixedFetcher("This product is unsafe."), Config{})
	info := a.Analyze(context.Background(), "https://nafdac.gov.ng/alert")
	// 50 base +10 for a single risk hit, no batches.
	assert.Equal(t, 60.0, info.PageConfidence)
}

func TestAnalyze_FetchFailureIsSoft(t *testing.T) {
	f := &mockFetcher{
		fetchFunc: func(_ context.Context, _ string) (string, error) {
			return "", errors.New("connection refused")
		},
	}
	a := NewAnalyzer(f, Config{})
	info := a.Analyze(context.Background(), "https://nafdac.gov.ng/alert")

	assert.True(t, info.FetchFailed)
	assert.Equal(t, 20.0, info.PageConfidence)
	assert.Contains(t, info.FailureReason, "connection refused")
}

func TestConfirmedFake_AllConditionsMet(t *testing.T) {
	a := NewAnalyzer(fixedFetcher(officialPage), Config{})
	info := a.Analyze(context.Background(), "https://nafdac.gov.ng/alert")
	assert.True(t, a.ConfirmedFake(info, "https://nafdac.gov.ng/alert"))
}

func TestConfirmedFake_RequiresBothKeywordFamilies(t *testing.T) {
	// Risk wording without any regulatory action word must not confirm.
	page := "PUBLIC ALERT: counterfeit fake falsified unsafe product noticed by " +
		"members of the public with batch T36184B"
	a := NewAnalyzer(fixedFetcher(page), Config{})
	info := a.Analyze(context.Background(), "https://nafdac.gov.ng/alert")

	require.Greater(t, info.PageConfidence, 75.0)
	assert.False(t, a.ConfirmedFake(info, "https://nafdac.gov.ng/alert"))
}

func TestConfirmedFake_RejectsUnofficialDomain(t *testing.T) {
	a := NewAnalyzer(fixedFetcher(officialPage), Config{})
	info := a.Analyze(context.Background(), "https://nafdac-alerts.example.com/alert")
	assert.False(t, a.ConfirmedFake(info, "https://nafdac-alerts.example.com/alert"))
}

func TestConfirmedFake_SubdomainOfOfficialDomainAccepted(t *testing.T) {
	a := NewAnalyzer(fixedFetcher(officialPage), Config{})
	info := a.Analyze(context.Background(), "https://www.nafdac.gov.ng/alert")
	assert.True(t, a.ConfirmedFake(info, "https://www.nafdac.gov.ng/alert"))
}

func TestConfirmedFake_DegradedResultNeverConfirms(t *testing.T) {
	f := &mockFetcher{
		fetchFunc: func(_ context.Context, _ string) (string, error) {
			return "", errors.New("timeout")
		},
	}
	a := NewAnalyzer(f, Config{})
	info := a.Analyze(context.Background(), "https://nafdac.gov.ng/alert")
	assert.False(t, a.ConfirmedFake(info, "https://nafdac.gov.ng/alert"))
}

// mockTextAnalyzer follows the function-field mock pattern.
type mockTextAnalyzer struct {
	analyzeFunc func(ctx context.Context, prompt string) (*common.AnalysisResult, error)
}

func (m *mockTextAnalyzer) Analyze(ctx context.Context, prompt string) (*common.AnalysisResult, error) {
	return m.analyzeFunc(ctx, prompt)
}

func TestAnalyze_TextAnalyzerSupplementsKeywordScan(t *testing.T) {
	// The page paraphrases the risk without using a vocabulary word, so the
	// literal scan alone finds nothing.
	ta := &mockTextAnalyzer{
		analyzeFunc: func(_ context.Context, prompt string) (*common.AnalysisResult, error) {
			assert.Contains(t, prompt, "imitation")
			return &common.AnalysisResult{
				Keywords:   []string{"Counterfeit", "recall", "lemon"},
				Confidence: 0.9,
			}, nil
		},
	}
	a := NewAnalyzer(fixedFetcher("Alert: an imitation product is being pulled from shelves."),
		Config{}, WithTextAnalyzer(ta))
	info := a.Analyze(context.Background(), "https://nafdac.gov.ng/alert")

	// "recall" sits in both vocabularies, so it lands in both hit lists.
	assert.ElementsMatch(t, []string{"counterfeit", "recall"}, info.RiskKeywordHits)
	assert.Equal(t, []string{"recall"}, info.ActionKeywordHits)
	// 50 base +10 for the supplemented risk hits (two, so no large bonus).
	assert.Equal(t, 60.0, info.PageConfidence)
}

func TestAnalyze_TextAnalyzerFailureLeavesScanResults(t *testing.T) {
	ta := &mockTextAnalyzer{
		analyzeFunc: func(_ context.Context, _ string) (*common.AnalysisResult, error) {
			return nil, errors.New("provider down")
		},
	}
	a := NewAnalyzer(fixedFetcher(officialPage), Config{}, WithTextAnalyzer(ta))
	info := a.Analyze(context.Background(), "https://nafdac.gov.ng/alert")

	require.False(t, info.FetchFailed)
	assert.NotEmpty(t, info.RiskKeywordHits)
	assert.Equal(t, 95.0, info.PageConfidence)
}

func TestAnalyze_TextAnalyzerLowConfidenceIgnored(t *testing.T) {
	ta := &mockTextAnalyzer{
		analyzeFunc: func(_ context.Context, _ string) (*common.AnalysisResult, error) {
			return &common.AnalysisResult{Keywords: []string{"counterfeit"}, Confidence: 0.2}, nil
		},
	}
	a := NewAnalyzer(fixedFetcher("General product update, nothing notable."),
		Config{}, WithTextAnalyzer(ta))
	info := a.Analyze(context.Background(), "https://nafdac.gov.ng/alert")

	assert.Empty(t, info.RiskKeywordHits)
	assert.Equal(t, 50.0, info.PageConfidence)
}

// mapCache is an in-memory Cache for tests.
type mapCache struct {
	mu sync.Mutex
	m  map[string][]byte
}

func newMapCache() *mapCache { return &mapCache{m: make(map[string][]byte)} }

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[key]
	return v, ok
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = value
}

func TestAnalyze_CacheAvoidsRefetch(t *testing.T) {
	var calls int
	f := &mockFetcher{
		fetchFunc: func(_ context.Context, _ string) (string, error) {
			calls++
			return officialPage, nil
		},
	}
	a := NewAnalyzer(f, Config{}, WithCache(newMapCache()))

	first := a.Analyze(context.Background(), "https://nafdac.gov.ng/alert")
	second := a.Analyze(context.Background(), "https://nafdac.gov.ng/alert")

	assert.Equal(t, 1, calls)
	assert.Equal(t, first.PageConfidence, second.PageConfidence)
	assert.Equal(t, first.AffectedBatches, second.AffectedBatches)
}

func TestAnalyze_FailuresAreNotCached(t *testing.T) {
	var calls int
	f := &mockFetcher{
		fetchFunc: func(_ context.Context, _ string) (string, error) {
			calls++
			if calls == 1 {
				return "", errors.New("transient outage")
			}
			return officialPage, nil
		},
	}
	a := NewAnalyzer(f, Config{}, WithCache(newMapCache()))

	first := a.Analyze(context.Background(), "https://nafdac.gov.ng/alert")
	assert.True(t, first.FetchFailed)

	second := a.Analyze(context.Background(), "https://nafdac.gov.ng/alert")
	assert.False(t, second.FetchFailed)
	assert.Equal(t, 2, calls)
}
