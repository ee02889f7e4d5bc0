package detailpage

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/medcheck/MedCheck-Engine/internal/infrastructure/monitoring/logging"
	"github.com/medcheck/MedCheck-Engine/internal/verification/common"
	"github.com/medcheck/MedCheck-Engine/internal/verification/textnorm"
)

// riskKeywords indicate the page is about a dangerous or fake product.
var riskKeywords = []string{
	"counterfeit", "fake", "falsified", "unauthorized",
	"substandard", "unsafe", "dangerous", "recall",
}

// actionKeywords indicate the regulator actually acted, not merely warned.
var actionKeywords = []string{
	"recall", "withdraw", "seizure", "destroy", "ban", "suspend",
}

// officialPhrases are boilerplate formulations of genuine regulator notices.
var officialPhrases = []string{
	"public alert", "press release", "nafdac", "the agency hereby",
	"members of the public",
}

const (
	baseConfidence     = 50
	manyRiskHitsBonus  = 25
	anyRiskHitBonus    = 10
	batchEvidenceBonus = 15
	confidenceCap      = 95
	degradedConfidence = 20
	confirmedFakeFloor = 75
	defaultCacheTTL    = 6 * time.Hour

	analysisPromptLimit   = 4000
	minAnalysisConfidence = 0.5
)

// Cache stores analysis results across requests. The redis adapter
// implements it; absence or failure of the cache is never fatal.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

// Config carries the analyzer's tunables.
type Config struct {
	// OfficialDomains are the regulator domains accepted by the
	// confirmed-fake authenticity check.
	OfficialDomains []string `mapstructure:"official_domains"`

	// CacheTTL bounds how long a page analysis is reused.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// Analyzer fetches and scores alert detail pages. Construct once and share.
type Analyzer struct {
	fetcher  Fetcher
	cache    Cache
	text     common.TextAnalyzer
	patterns []textnorm.BatchPattern
	cfg      Config
	sf       singleflight.Group
	log      logging.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithCache attaches a cross-request result cache.
func WithCache(c Cache) Option {
	return func(a *Analyzer) { a.cache = c }
}

// WithTextAnalyzer attaches the optional text-analysis capability. It only
// supplements the keyword scan; when it is absent or fails, the scan's own
// results stand.
func WithTextAnalyzer(ta common.TextAnalyzer) Option {
	return func(a *Analyzer) { a.text = ta }
}

// WithLogger sets the analyzer logger.
func WithLogger(l logging.Logger) Option {
	return func(a *Analyzer) { a.log = l.Named("detailpage") }
}

// NewAnalyzer constructs an Analyzer around the given fetcher.
func NewAnalyzer(fetcher Fetcher, cfg Config, opts ...Option) *Analyzer {
	if len(cfg.OfficialDomains) == 0 {
		cfg.OfficialDomains = []string{"nafdac.gov.ng"}
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	a := &Analyzer{
		fetcher:  fetcher,
		patterns: textnorm.DefaultBatchPatterns(),
		cfg:      cfg,
		log:      logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze fetches the alert's source page and derives DetailedAlertInfo.
// Failures yield a degraded result with low confidence and an explicit
// failure reason; Analyze itself never fails.
func (a *Analyzer) Analyze(ctx context.Context, alertURL string) *common.DetailedAlertInfo {
	if cached, ok := a.cacheGet(ctx, alertURL); ok {
		return cached
	}

	v, err, _ := a.sf.Do(alertURL, func() (interface{}, error) {
		text, err := a.fetcher.FetchPage(ctx, alertURL)
		if err != nil {
			return nil, err
		}
		return text, nil
	})
	if err != nil {
		a.log.Warn("detail page analysis degraded",
			logging.String("url", alertURL),
			logging.Err(err))
		return &common.DetailedAlertInfo{
			PageConfidence: degradedConfidence,
			FetchFailed:    true,
			FailureReason:  err.Error(),
		}
	}

	info := a.scorePage(ctx, v.(string))
	a.cacheSet(ctx, alertURL, info)
	return info
}

// scorePage derives the confirmation signals and the page confidence from
// the page's visible text.
func (a *Analyzer) scorePage(ctx context.Context, text string) *common.DetailedAlertInfo {
	lower := strings.ToLower(text)

	info := &common.DetailedAlertInfo{
		FullDescription: text,
		AffectedBatches: textnorm.ExtractBatches(text, a.patterns),
	}
	for _, kw := range riskKeywords {
		for i := 0; i < strings.Count(lower, kw); i++ {
			info.RiskKeywordHits = append(info.RiskKeywordHits, kw)
		}
	}
	for _, kw := range actionKeywords {
		for i := 0; i < strings.Count(lower, kw); i++ {
			info.ActionKeywordHits = append(info.ActionKeywordHits, kw)
		}
	}
	a.enrichKeywords(ctx, text, info)

	conf := float64(baseConfidence)
	if len(info.RiskKeywordHits) > 2 {
		conf += manyRiskHitsBonus
	}
	if len(info.RiskKeywordHits) > 0 {
		conf += anyRiskHitBonus
	}
	if len(info.AffectedBatches) > 0 {
		conf += batchEvidenceBonus
	}
	if conf > confidenceCap {
		conf = confidenceCap
	}
	info.PageConfidence = conf
	return info
}

// enrichKeywords asks the optional text-analysis capability for keywords the
// literal scan may have missed, before the confidence is computed. Only
// keywords from the known risk and action vocabularies are accepted, and the
// scan's own hits are never removed, so the capability can raise the page
// signal but never manufacture one outside the gate's vocabulary or lower it.
func (a *Analyzer) enrichKeywords(ctx context.Context, text string, info *common.DetailedAlertInfo) {
	if a.text == nil {
		return
	}
	if len(text) > analysisPromptLimit {
		text = text[:analysisPromptLimit]
	}
	res, err := a.text.Analyze(ctx,
		"List the counterfeit-risk and regulatory-action keywords present in this regulator notice:\n"+text)
	if err != nil {
		a.log.Warn("text analysis unavailable, keyword scan stands", logging.Err(err))
		return
	}
	if res == nil || res.Confidence < minAnalysisConfidence {
		return
	}
	for _, kw := range res.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if containsWord(riskKeywords, kw) && !containsWord(info.RiskKeywordHits, kw) {
			info.RiskKeywordHits = append(info.RiskKeywordHits, kw)
		}
		if containsWord(actionKeywords, kw) && !containsWord(info.ActionKeywordHits, kw) {
			info.ActionKeywordHits = append(info.ActionKeywordHits, kw)
		}
	}
}

func containsWord(words []string, w string) bool {
	for _, c := range words {
		if c == w {
			return true
		}
	}
	return false
}

// ConfirmedFake applies the authenticity gate for declaring "confirmed
// fake" from page evidence. It deliberately requires BOTH a risk-indicator
// keyword and a regulatory-action keyword: batch evidence alone, or alarmed
// wording without an action word, is not enough. The page must also come
// from the regulator's own domain and carry official-notice phrasing.
func (a *Analyzer) ConfirmedFake(info *common.DetailedAlertInfo, pageURL string) bool {
	if info == nil || info.FetchFailed {
		return false
	}
	if info.PageConfidence <= confirmedFakeFloor {
		return false
	}
	if len(info.RiskKeywordHits) == 0 || len(info.ActionKeywordHits) == 0 {
		return false
	}
	return a.isOfficialSource(pageURL, info.FullDescription)
}

func (a *Analyzer) isOfficialSource(pageURL, pageText string) bool {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	domainOK := false
	for _, d := range a.cfg.OfficialDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			domainOK = true
			break
		}
	}
	if !domainOK {
		return false
	}

	lower := strings.ToLower(pageText)
	for _, p := range officialPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func (a *Analyzer) cacheGet(ctx context.Context, key string) (*common.DetailedAlertInfo, bool) {
	if a.cache == nil {
		return nil, false
	}
	raw, ok := a.cache.Get(ctx, cacheKey(key))
	if !ok {
		return nil, false
	}
	var info common.DetailedAlertInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, false
	}
	return &info, true
}

func (a *Analyzer) cacheSet(ctx context.Context, key string, info *common.DetailedAlertInfo) {
	if a.cache == nil {
		return
	}
	raw, err := json.Marshal(info)
	if err != nil {
		return
	}
	a.cache.Set(ctx, cacheKey(key), raw, a.cfg.CacheTTL)
}

func cacheKey(alertURL string) string {
	return "medcheck:detailpage:" + alertURL
}
