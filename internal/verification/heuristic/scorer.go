// Package heuristic implements the secondary scorer: an independent
// deterministic model that produces its own authenticity probability from
// image-derived proxies, text consistency, batch-pattern anomaly detection,
// and suspicious-keyword detection. It shares no scoring logic with the
// candidate ranker; the ensemble layer relies on the two paths being
// genuinely independent opinions.
package heuristic

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/medcheck/MedCheck-Engine/internal/infrastructure/monitoring/logging"
	"github.com/medcheck/MedCheck-Engine/internal/verification/common"
	"github.com/medcheck/MedCheck-Engine/internal/verification/registry"
)

// DefaultAuthenticityThreshold is the score above which a product is called
// authentic. Tuned down from an earlier 0.75: the stricter value produced
// too many false "counterfeit" verdicts on genuine products. Carried as
// configuration; neither value is considered final.
const DefaultAuthenticityThreshold = 0.65

// registryHitConfidence is the short-circuit confidence for a known fake.
const registryHitConfidence = 0.95

// Batch anomaly weights. Accumulated per query and capped at 1.0.
const (
	anomalyRegistryBatch = 0.9
	anomalyLongBatch     = 0.4
	anomalyShortBatch    = 0.3
	anomalyInvalidChars  = 0.5
	anomalyFakeSubstring = 0.7

	longBatchLen  = 12
	shortBatchLen = 4
)

// suspiciousNameKeywords are marketing superlatives common on fake listings.
var suspiciousNameKeywords = []string{
	"100% original", "original quality", "guaranteed", "miracle",
	"cheapest", "cheap price", "promo price", "wholesale price",
	"super discount", "clearance",
}

// Weights distributes the component scores in the final weighted sum.
type Weights struct {
	Visual     float64 `mapstructure:"visual"`
	Text       float64 `mapstructure:"text"`
	Anomaly    float64 `mapstructure:"anomaly"`
	CrossModal float64 `mapstructure:"cross_modal"`
}

// Config carries the scorer's tunables.
type Config struct {
	Weights               Weights `mapstructure:"weights"`
	AuthenticityThreshold float64 `mapstructure:"authenticity_threshold"`

	// SuspiciousKeywords extends the built-in superlative list.
	SuspiciousKeywords []string `mapstructure:"suspicious_keywords"`
}

// DefaultConfig returns the production weighting.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			Visual:     0.25,
			Text:       0.35,
			Anomaly:    0.25,
			CrossModal: 0.15,
		},
		AuthenticityThreshold: DefaultAuthenticityThreshold,
	}
}

// Scorer is the secondary heuristic path. Construct once and share.
type Scorer struct {
	cfg      Config
	registry *registry.Registry
	vision   VisionAnalyzer
	keywords []string
	log      logging.Logger
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithVisionAnalyzer replaces the placeholder vision backend.
func WithVisionAnalyzer(v VisionAnalyzer) Option {
	return func(s *Scorer) { s.vision = v }
}

// WithLogger sets the scorer logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Scorer) { s.log = l.Named("heuristic") }
}

// New constructs a Scorer. reg must not be nil; the registry check is the
// first step of every assessment.
func New(cfg Config, reg *registry.Registry, opts ...Option) *Scorer {
	if cfg.AuthenticityThreshold <= 0 {
		cfg = DefaultConfig()
	}
	s := &Scorer{
		cfg:      cfg,
		registry: reg,
		vision:   NewPlaceholderVision(),
		keywords: append(append([]string{}, suspiciousNameKeywords...), cfg.SuspiciousKeywords...),
		log:      logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Assess produces the heuristic path's independent authenticity opinion.
// It never fails: every missing signal degrades to a neutral component
// score with a recorded risk factor.
func (s *Scorer) Assess(ctx context.Context, query common.ProductQuery, meta *common.ProductMetadata) *common.HeuristicAssessment {
	if meta == nil {
		meta = &common.ProductMetadata{}
	}

	// Known fakes short-circuit everything else.
	if hit, ok := s.registry.CheckKnownFake(query.ProductName, meta.BatchNumbers); ok {
		return &common.HeuristicAssessment{
			IsAuthentic: false,
			Confidence:  registryHitConfidence,
			RegistryHit: hit,
			RiskFactors: []string{
				fmt.Sprintf("batch %s is a confirmed counterfeit of %s", hit.MatchedBatch, hit.ProductName),
				"product and batch match the known-counterfeit registry",
			},
			Recommendations: counterfeitRecommendations(),
		}
	}

	var riskFactors []string

	visual := s.scoreVisual(ctx, query.Images, &riskFactors)
	text := scoreTextConsistency(meta, &riskFactors)
	anomaly := s.scoreAnomalies(query, meta, &riskFactors)
	crossModal := scoreCrossModal(query.ProductName, meta)

	if meta.OCRFailures > 0 {
		riskFactors = append(riskFactors,
			fmt.Sprintf("%d image(s) could not be read", meta.OCRFailures))
	}

	// Weighted sum over the signals that are actually present. An absent
	// signal (no images, no readable text) contributes nothing instead of
	// dragging the score toward the threshold with a neutral vote.
	w := s.cfg.Weights
	num := w.Anomaly * anomaly
	den := w.Anomaly
	if len(query.Images) > 0 {
		num += w.Visual * visual
		den += w.Visual
	}
	if len(meta.ImageTexts) >= 2 {
		num += w.Text * text
		den += w.Text
	}
	if meta.DetectedText != "" {
		num += w.CrossModal * crossModal
		den += w.CrossModal
	}
	score := num / den

	authentic := score > s.cfg.AuthenticityThreshold
	assessment := &common.HeuristicAssessment{
		VisualIntegrityScore: visual,
		TextConsistencyScore: text,
		AnomalyScore:         anomaly,
		MultimodalScore:      crossModal,
		IsAuthentic:          authentic,
		Confidence:           confidenceFromScore(score, s.cfg.AuthenticityThreshold),
		RiskFactors:          riskFactors,
	}
	if authentic {
		assessment.Recommendations = authenticRecommendations()
	} else {
		assessment.Recommendations = counterfeitRecommendations()
	}

	s.log.Debug("heuristic assessment complete",
		logging.Float64("score", score),
		logging.Bool("authentic", authentic),
		logging.Int("risk_factors", len(riskFactors)))
	return assessment
}

// confidenceFromScore maps the composite score to a confidence in [0,1]:
// the further the score sits from the decision threshold, in either
// direction, the more certain the assessment.
func confidenceFromScore(score, threshold float64) float64 {
	conf := 0.5 + 1.5*math.Abs(score-threshold)
	if conf > registryHitConfidence {
		conf = registryHitConfidence
	}
	return conf
}

func (s *Scorer) scoreVisual(ctx context.Context, images []common.Image, riskFactors *[]string) float64 {
	if len(images) == 0 {
		return 0.5
	}
	sum := 0.0
	n := 0
	for _, img := range images {
		scores, err := s.vision.AssessImage(ctx, img)
		if err != nil {
			s.log.Debug("vision assessment failed for image",
				logging.String("image_name", img.Name),
				logging.Err(err))
			continue
		}
		sum += scores.Average()
		n++
	}
	if n == 0 {
		*riskFactors = append(*riskFactors, "no image could be visually assessed")
		return 0.5
	}
	avg := sum / float64(n)
	if avg < 0.4 {
		*riskFactors = append(*riskFactors, "packaging images show poor integrity indicators")
	}
	return avg
}

// scoreTextConsistency compares the text recovered from different photos of
// the same package. Genuine packaging reads the same from every angle;
// wildly differing OCR results suggest either tampering or unusable photos.
func scoreTextConsistency(meta *common.ProductMetadata, riskFactors *[]string) float64 {
	texts := meta.ImageTexts
	if len(texts) < 2 {
		return 0.6
	}
	sum := 0.0
	pairs := 0
	for i := 0; i < len(texts); i++ {
		for j := i + 1; j < len(texts); j++ {
			sum += tokenOverlap(texts[i], texts[j])
			pairs++
		}
	}
	avg := sum / float64(pairs)
	if avg < 0.3 {
		*riskFactors = append(*riskFactors, "text differs significantly across package photos")
	}
	return avg
}

// tokenOverlap is the Jaccard similarity of the two texts' token sets.
func tokenOverlap(a, b string) float64 {
	ta := tokenSet(a)
	tb := tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0.0
	}
	inter := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	return float64(inter) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, f := range strings.Fields(strings.ToLower(s)) {
		out[strings.Trim(f, ".,;:()")] = struct{}{}
	}
	delete(out, "")
	return out
}

// scoreAnomalies runs batch-pattern anomaly detection and the suspicious
// keyword check, returning a component score where 1.0 means no anomalies.
func (s *Scorer) scoreAnomalies(query common.ProductQuery, meta *common.ProductMetadata, riskFactors *[]string) float64 {
	risk := 0.0
	for _, b := range meta.BatchNumbers {
		switch {
		case s.registry.HasBatch(b):
			risk += anomalyRegistryBatch
			*riskFactors = append(*riskFactors,
				fmt.Sprintf("batch %s matches a known counterfeit batch", b))
		case strings.Contains(b, "FAKE") || strings.Contains(b, "TEST"):
			risk += anomalyFakeSubstring
			*riskFactors = append(*riskFactors,
				fmt.Sprintf("batch %s contains a placeholder marker", b))
		case len(b) > longBatchLen:
			risk += anomalyLongBatch
			*riskFactors = append(*riskFactors,
				fmt.Sprintf("batch %s is unusually long", b))
		case len(b) < shortBatchLen:
			risk += anomalyShortBatch
			*riskFactors = append(*riskFactors,
				fmt.Sprintf("batch %s is unusually short", b))
		case hasInvalidBatchChars(b):
			risk += anomalyInvalidChars
			*riskFactors = append(*riskFactors,
				fmt.Sprintf("batch %s contains invalid characters", b))
		}
	}
	if risk > 1.0 {
		risk = 1.0
	}

	component := 1.0 - risk

	if kw := s.suspiciousKeyword(query); kw != "" {
		// A superlative-laden listing makes every anomaly more suspicious.
		component *= 0.7
		*riskFactors = append(*riskFactors,
			fmt.Sprintf("product listing uses suspicious marketing wording (%q)", kw))
	}
	return component
}

func (s *Scorer) suspiciousKeyword(query common.ProductQuery) string {
	text := strings.ToLower(query.ProductName + " " + query.Description)
	for _, kw := range s.keywords {
		if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
			return kw
		}
	}
	return ""
}

func hasInvalidBatchChars(b string) bool {
	for _, r := range b {
		switch {
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '/':
		default:
			return true
		}
	}
	return false
}

// scoreCrossModal measures whether the claimed product name actually
// appears in the text read off the package.
func scoreCrossModal(productName string, meta *common.ProductMetadata) float64 {
	if meta.DetectedText == "" {
		return 0.5
	}
	tokens := strings.Fields(strings.ToLower(productName))
	if len(tokens) == 0 {
		return 0.5
	}
	lower := strings.ToLower(meta.DetectedText)
	found := 0
	for _, tok := range tokens {
		if strings.Contains(lower, tok) {
			found++
		}
	}
	frac := float64(found) / float64(len(tokens))
	// Full alignment is strong evidence; partial alignment is common with
	// imperfect OCR, so the scale is gentle.
	return 0.3 + 0.7*frac
}

func counterfeitRecommendations() []string {
	return []string{
		"Do not use or sell this product",
		"Report it to NAFDAC via the nearest office or www.nafdac.gov.ng",
		"Return it to the seller and request proof of supply chain",
	}
}

func authenticRecommendations() []string {
	return []string{
		"No anomaly indicators were found, but always buy from licensed pharmacies",
		"Cross-check the batch number on the manufacturer's verification channel",
	}
}
