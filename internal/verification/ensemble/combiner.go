// Package ensemble fuses the two independent verification opinions, the
// corpus-lookup ranker path and the heuristic scorer path, into one final
// verdict. The fusion is a weighted consensus plus two non-negotiable
// rules: a strong-consensus override when the heuristic is highly confident
// the product is fake, and a fail-closed rule that treats low-confidence
// ambiguity as unsafe rather than safe.
package ensemble

import (
	"fmt"
	"strings"

	"github.com/medcheck/MedCheck-Engine/internal/infrastructure/monitoring/logging"
	"github.com/medcheck/MedCheck-Engine/internal/verification/common"
	verdicttypes "github.com/medcheck/MedCheck-Engine/pkg/types/verification"
)

// Config carries the ensemble's weights and rule thresholds.
type Config struct {
	HeuristicWeight float64 `mapstructure:"heuristic_weight"`
	RankerWeight    float64 `mapstructure:"ranker_weight"`

	// OverrideConfidence, OverrideMinFactors gate the strong-consensus
	// override (heuristic confidence on a 0..100 scale).
	OverrideConfidence float64 `mapstructure:"override_confidence"`
	OverrideMinFactors int     `mapstructure:"override_min_factors"`

	// FailClosedConfidence is the blended confidence under which a
	// non-authentic result is raised to at least HIGH risk.
	FailClosedConfidence float64 `mapstructure:"fail_closed_confidence"`

	MaxSummaryRiskFactors int `mapstructure:"max_summary_risk_factors"`
}

// DefaultConfig returns the production fusion parameters.
func DefaultConfig() Config {
	return Config{
		HeuristicWeight:       0.6,
		RankerWeight:          0.4,
		OverrideConfidence:    85,
		OverrideMinFactors:    2,
		FailClosedConfidence:  50,
		MaxSummaryRiskFactors: 3,
	}
}

// Risk accumulation points; thresholds live in pkg/types/verification.
const (
	riskRankerCounterfeit   = 40
	riskRankerHighConf      = 20
	riskHeuristicNotAuth    = 30
	riskPerFactor           = 5
	riskHeuristicLowConf    = 10
	rankerHighConfThreshold = 80
	heuristicLowConfPercent = 70
)

// Combiner fuses the two paths. Stateless; construct once.
type Combiner struct {
	cfg Config
	log logging.Logger
}

// New constructs a Combiner.
func New(cfg Config, log logging.Logger) *Combiner {
	if cfg.HeuristicWeight <= 0 && cfg.RankerWeight <= 0 {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Combiner{cfg: cfg, log: log.Named("ensemble")}
}

// Result is the fused decision, ready to be packaged into the caller-facing
// Verdict by the pipeline.
type Result struct {
	IsCounterfeit bool
	RiskLevel     verdicttypes.RiskLevel
	Confidence    float64 // 0..100
	Summary       string
	RiskFactors   []string
	Overridden    bool
	FailedClosed  bool
}

// Combine fuses the ranker verdict with the heuristic assessment.
func (c *Combiner) Combine(rv *common.RankerVerdict, ha *common.HeuristicAssessment) *Result {
	if rv == nil {
		rv = &common.RankerVerdict{}
	}
	if ha == nil {
		ha = &common.HeuristicAssessment{IsAuthentic: true, Confidence: 0.5}
	}
	heurConf := ha.Confidence * 100

	// Weighted consensus on authenticity and confidence.
	authVote := 0.0
	if ha.IsAuthentic {
		authVote += c.cfg.HeuristicWeight
	}
	if !rv.IsCounterfeit {
		authVote += c.cfg.RankerWeight
	}
	blendedAuthentic := authVote >= 0.5
	confidence := c.cfg.HeuristicWeight*heurConf + c.cfg.RankerWeight*rv.Confidence

	// Risk-score accumulation on a 0..100 scale.
	risk := 0.0
	var riskFactors []string
	if rv.IsCounterfeit {
		risk += riskRankerCounterfeit
		riskFactors = append(riskFactors, "a regulatory alert matches this product")
	}
	if rv.Confidence > rankerHighConfThreshold {
		risk += riskRankerHighConf
	}
	if !ha.IsAuthentic {
		risk += riskHeuristicNotAuth
		riskFactors = append(riskFactors, "independent heuristic analysis flags the product as not authentic")
	}
	risk += float64(len(ha.RiskFactors)) * riskPerFactor
	if heurConf < heuristicLowConfPercent {
		risk += riskHeuristicLowConf
		riskFactors = append(riskFactors, "heuristic analysis has low certainty")
	}
	riskFactors = append(riskFactors, ha.RiskFactors...)

	level := verdicttypes.ClassifyRisk(risk)
	counterfeit := !blendedAuthentic && rv.IsCounterfeit

	result := &Result{RiskFactors: riskFactors}

	// Strong independent-model consensus overrides the blend.
	if heurConf > c.cfg.OverrideConfidence && !ha.IsAuthentic &&
		len(ha.RiskFactors) >= c.cfg.OverrideMinFactors {
		level = verdicttypes.RiskCritical
		counterfeit = true
		result.Overridden = true
	}

	// Fail closed: low-confidence ambiguity is unsafe, not safe.
	if confidence < c.cfg.FailClosedConfidence && !blendedAuthentic &&
		level < verdicttypes.RiskHigh {
		level = verdicttypes.RiskHigh
		result.FailedClosed = true
		riskFactors = append(riskFactors, "verification confidence is low; treating the result cautiously")
		result.RiskFactors = riskFactors
	}

	result.IsCounterfeit = counterfeit
	result.RiskLevel = level
	result.Confidence = clamp(confidence, 0, 100)
	result.Summary = c.summary(rv, ha, result)

	c.log.Debug("ensemble decision",
		logging.Float64("risk_score", risk),
		logging.String("risk_level", level.String()),
		logging.Bool("counterfeit", counterfeit),
		logging.Bool("overridden", result.Overridden))
	return result
}

// summary reports both sub-results and their confidences plus the leading
// risk factors so every verdict is auditable from its text alone.
func (c *Combiner) summary(rv *common.RankerVerdict, ha *common.HeuristicAssessment, res *Result) string {
	var sb strings.Builder

	if rv.IsCounterfeit {
		fmt.Fprintf(&sb, "Alert matching flagged this product (confidence %.0f%%). ", rv.Confidence)
	} else {
		fmt.Fprintf(&sb, "Alert matching found no convincing match (confidence %.0f%%). ", rv.Confidence)
	}
	if ha.IsAuthentic {
		fmt.Fprintf(&sb, "Heuristic analysis considers it authentic (confidence %.0f%%).", ha.Confidence*100)
	} else {
		fmt.Fprintf(&sb, "Heuristic analysis considers it NOT authentic (confidence %.0f%%).", ha.Confidence*100)
	}
	if res.Overridden {
		sb.WriteString(" Strong heuristic consensus forced a critical classification.")
	}
	if res.FailedClosed {
		sb.WriteString(" Confidence was too low to clear the product; risk was raised as a precaution.")
	}

	n := len(res.RiskFactors)
	if n > c.cfg.MaxSummaryRiskFactors {
		n = c.cfg.MaxSummaryRiskFactors
	}
	if n > 0 {
		sb.WriteString(" Key findings: ")
		sb.WriteString(strings.Join(res.RiskFactors[:n], "; "))
		sb.WriteString(".")
	}
	return sb.String()
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
