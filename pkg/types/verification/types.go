// Package verification defines the public result types returned by the
// MedCheck verification engine. The surrounding application (web layer, CLI)
// consumes these types directly; it never needs to interpret internal error
// codes or intermediate scores.
package verification

import (
	"encoding/json"
	"fmt"
	"time"
)

// ---------------------------------------------------------------------------
// RiskLevel enumeration
// ---------------------------------------------------------------------------

// RiskLevel classifies the overall counterfeit risk of a verified product.
type RiskLevel int

const (
	RiskSafe     RiskLevel = iota // no matching alert, no anomalies
	RiskLow                       // score < 30
	RiskMedium                    // score >= 30
	RiskHigh                      // score >= 60
	RiskCritical                  // score >= 80, or hard override
)

var riskLevelNames = map[RiskLevel]string{
	RiskSafe:     "SAFE",
	RiskLow:      "LOW_RISK",
	RiskMedium:   "MEDIUM_RISK",
	RiskHigh:     "HIGH_RISK",
	RiskCritical: "CRITICAL",
}

func (r RiskLevel) String() string {
	if s, ok := riskLevelNames[r]; ok {
		return s
	}
	return "UNKNOWN"
}

// MarshalJSON serialises RiskLevel as a JSON string.
func (r RiskLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON deserialises a JSON string into RiskLevel.
func (r *RiskLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for k, v := range riskLevelNames {
		if v == s {
			*r = k
			return nil
		}
	}
	return fmt.Errorf("unknown risk level: %s", s)
}

// ClassifyRisk maps an accumulated risk score in [0,100] to a RiskLevel.
// A zero score with no matched alert is SAFE, not LOW_RISK; callers that
// found any evidence at all should pass a nonzero score.
func ClassifyRisk(score float64) RiskLevel {
	switch {
	case score >= 80:
		return RiskCritical
	case score >= 60:
		return RiskHigh
	case score >= 30:
		return RiskMedium
	case score > 0:
		return RiskLow
	default:
		return RiskSafe
	}
}

// ---------------------------------------------------------------------------
// MatchedAlert: the evidentiary anchor attached to counterfeit verdicts
// ---------------------------------------------------------------------------

// MatchedAlert is the caller-facing projection of the regulatory alert (or
// known-counterfeit registry entry) that a verdict is anchored to.
type MatchedAlert struct {
	AlertID      string    `json:"alert_id,omitempty"`
	Title        string    `json:"title"`
	Excerpt      string    `json:"excerpt,omitempty"`
	URL          string    `json:"url"`
	Date         time.Time `json:"date,omitempty"`
	Severity     string    `json:"severity,omitempty"`
	MatchedBatch string    `json:"matched_batch,omitempty"`
	FromRegistry bool      `json:"from_registry,omitempty"`
}

// ---------------------------------------------------------------------------
// Verdict: final output of a verification request
// ---------------------------------------------------------------------------

// Verdict is the single result type of the verification pipeline. A Verdict
// with IsCounterfeit=true always carries a non-nil MatchedAlert: the engine
// never flags counterfeit without an evidentiary anchor.
type Verdict struct {
	RequestID     string        `json:"request_id,omitempty"`
	IsCounterfeit bool          `json:"is_counterfeit"`
	RiskLevel     RiskLevel     `json:"risk_level"`
	Confidence    float64       `json:"confidence"` // 0..100
	Summary       string        `json:"summary"`
	MatchedAlert  *MatchedAlert `json:"matched_alert,omitempty"`

	// RiskFactors lists the specific findings that contributed to the risk
	// score, ordered by weight. Capped at a small number for readability.
	RiskFactors []string `json:"risk_factors,omitempty"`

	// Recommendations are user-facing action strings the web layer surfaces
	// verbatim.
	Recommendations []string `json:"recommendations"`

	// Degraded marks verdicts produced with one or more signals dropped
	// (OCR failure, corpus unreachable, provider outage).
	Degraded       bool   `json:"degraded,omitempty"`
	DegradedReason string `json:"degraded_reason,omitempty"`

	ProcessingTimeMs int64 `json:"processing_time_ms"`
}

// Valid reports whether the verdict satisfies the evidentiary-anchor
// invariant. It is checked in tests and asserted (log-only) in the pipeline.
func (v *Verdict) Valid() bool {
	if v == nil {
		return false
	}
	if v.IsCounterfeit && v.MatchedAlert == nil {
		return false
	}
	return v.Confidence >= 0 && v.Confidence <= 100
}
