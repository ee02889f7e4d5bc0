// Package common holds the data types and capability contracts shared by the
// verification core's components. Every intermediate structure the ensemble
// math depends on is a concrete typed struct with documented fields; nothing
// in the pipeline passes loosely-typed bags between stages.
package common

import (
	"context"
	"strings"

	"github.com/medcheck/MedCheck-Engine/internal/domain/alert"
)

// ─────────────────────────────────────────────────────────────────────────────
// Evidence tags
// ─────────────────────────────────────────────────────────────────────────────

// EvidenceTag labels why a match candidate scored points. Tags drive both
// the minimum-evidence gate and the human-readable explanations in the final
// summary.
type EvidenceTag string

const (
	EvidenceProductNameMatch     EvidenceTag = "product_name_match"
	EvidenceExactProductMatch    EvidenceTag = "exact_product_match"
	EvidenceCounterfeitIndicator EvidenceTag = "counterfeit_indicator"
	EvidenceDescriptionKeywords  EvidenceTag = "description_keywords"
	EvidenceExactBatchMatch      EvidenceTag = "exact_batch_match"
	EvidenceFuzzyBatchMatch      EvidenceTag = "fuzzy_batch_match"
	EvidenceManufacturerInfo     EvidenceTag = "manufacturer_info"
	EvidenceSeriousAlertType     EvidenceTag = "serious_alert_type"
)

// Strong reports whether the tag alone constitutes strong evidence for the
// minimum-evidence gate: an exact product, exact batch, or manufacturer match.
func (t EvidenceTag) Strong() bool {
	switch t {
	case EvidenceExactProductMatch, EvidenceExactBatchMatch, EvidenceManufacturerInfo:
		return true
	}
	return false
}

// ─────────────────────────────────────────────────────────────────────────────
// Request-side types
// ─────────────────────────────────────────────────────────────────────────────

// Image is an opaque uploaded product photo. The core never decodes pixels;
// image understanding is delegated to the VisionAnalyzer and TextExtractor
// capabilities.
type Image struct {
	Name        string
	ContentType string
	Data        []byte
}

// ProductQuery is the transient input of one verification request.
type ProductQuery struct {
	ProductName     string
	Description     string
	UserBatchNumber string
	Images          []Image
}

// ProductMetadata is derived once per request from the query text plus OCR
// output, and is immutable after construction. All string sets are deduped
// and, for batch numbers, stored upper-case.
type ProductMetadata struct {
	BatchNumbers         []string
	DrugNames            []string
	ExpiryDates          []string
	ManufacturerMentions []string

	// DetectedText is the concatenation of every successfully extracted
	// image text. Empty when no image yielded text.
	DetectedText string

	// ImageTexts keeps the per-image extraction results so the heuristic
	// scorer can check consistency across photos of the same package.
	ImageTexts []string

	// OCRFailures counts images whose text extraction failed or timed out.
	// Each failure is a dropped signal, not an error.
	OCRFailures int
}

// HasBatch reports whether batch is present in the extracted set
// (case-insensitive).
func (m *ProductMetadata) HasBatch(batch string) bool {
	for _, b := range m.BatchNumbers {
		if strings.EqualFold(b, batch) {
			return true
		}
	}
	return false
}

// ─────────────────────────────────────────────────────────────────────────────
// Intermediate results
// ─────────────────────────────────────────────────────────────────────────────

// MatchCandidate pairs an alert with its accumulated evidence score.
// Ephemeral: produced and ranked within a single request.
type MatchCandidate struct {
	Alert    *alert.Alert
	Score    float64
	Evidence []EvidenceTag
}

// HasTag reports whether the candidate carries the given evidence tag.
func (c *MatchCandidate) HasTag(tag EvidenceTag) bool {
	for _, t := range c.Evidence {
		if t == tag {
			return true
		}
	}
	return false
}

// HasStrongEvidence reports whether any tag alone passes the strong-evidence
// path of the minimum-evidence gate.
func (c *MatchCandidate) HasStrongEvidence() bool {
	for _, t := range c.Evidence {
		if t.Strong() {
			return true
		}
	}
	return false
}

// DetailedAlertInfo is the result of analysing one alert's source page.
type DetailedAlertInfo struct {
	FullDescription string
	AffectedBatches []string

	// RiskKeywordHits and ActionKeywordHits record which risk-indicator and
	// regulatory-action keywords appeared on the page, with repeats kept so
	// occurrence counts feed the confidence score.
	RiskKeywordHits   []string
	ActionKeywordHits []string

	// PageConfidence is in [0,100]; 20 marks a degraded fetch-failure result.
	PageConfidence float64

	// FetchFailed marks a soft failure: the page could not be fetched or
	// parsed. The ensemble discounts it; it is never raised to the caller.
	FetchFailed   bool
	FailureReason string
}

// RankerVerdict is the corpus-lookup path's contribution to the ensemble:
// the ranked candidates, page-level detail on the top match, and this path's
// own counterfeit opinion with confidence on a 0..100 scale.
type RankerVerdict struct {
	IsCounterfeit bool
	Confidence    float64
	Candidates    []MatchCandidate
	Detail        *DetailedAlertInfo

	// PageConfirmed is set when the Detail-Page Analyzer's authenticity gate
	// independently confirmed the alert as a genuine regulator notice about
	// a fake product.
	PageConfirmed bool
}

// Top returns the best-scored candidate, or nil when nothing passed the gate.
func (v *RankerVerdict) Top() *MatchCandidate {
	if v == nil || len(v.Candidates) == 0 {
		return nil
	}
	return &v.Candidates[0]
}

// HeuristicAssessment is the independent heuristic path's contribution. All
// component scores and Confidence are in [0,1]; higher component scores mean
// more consistent with an authentic product.
type HeuristicAssessment struct {
	VisualIntegrityScore float64
	TextConsistencyScore float64
	AnomalyScore         float64
	MultimodalScore      float64

	IsAuthentic bool
	Confidence  float64

	// RiskFactors are ordered most significant first.
	RiskFactors     []string
	Recommendations []string

	// RegistryHit is non-nil when the known-counterfeit registry matched
	// inside this path, which short-circuits the component scores.
	RegistryHit *RegistryHit
}

// RegistryHit records a known-counterfeit registry match.
type RegistryHit struct {
	ProductName  string
	Batch        string
	MatchedBatch string
	SourceURL    string
}

// ─────────────────────────────────────────────────────────────────────────────
// Capability contracts
// ─────────────────────────────────────────────────────────────────────────────

// TextExtractor is the pluggable OCR capability. A timeout or provider error
// means "no text available" for that image, never a fatal condition.
type TextExtractor interface {
	ExtractText(ctx context.Context, img Image) (string, error)
}

// AnalysisResult is the structured output of the optional text-analysis
// capability.
type AnalysisResult struct {
	Summary    string
	Keywords   []string
	Confidence float64
}

// TextAnalyzer is the optional LLM-backed text-analysis capability. It only
// enriches extraction and verification; every consumer must carry a
// regex/heuristic fallback for when it is unavailable, and its output is
// never the sole basis for a counterfeit verdict.
type TextAnalyzer interface {
	Analyze(ctx context.Context, prompt string) (*AnalysisResult, error)
}
