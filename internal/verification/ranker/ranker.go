// Package ranker implements the candidate ranker: it scores every active
// alert against a product query using weighted evidence and filters the
// result through a multi-path minimum-evidence gate. The gate admits strong
// single-signal matches, a perfect batch hit for instance, while requiring
// corroboration for weaker text-only matches so generic keyword overlap
// alone can never produce a counterfeit verdict.
package ranker

import (
	"context"
	"sort"
	"strings"

	"github.com/medcheck/MedCheck-Engine/internal/domain/alert"
	"github.com/medcheck/MedCheck-Engine/internal/infrastructure/monitoring/logging"
	"github.com/medcheck/MedCheck-Engine/internal/verification/common"
	"github.com/medcheck/MedCheck-Engine/internal/verification/similarity"
)

// counterfeitKeywords in alert text mark the alert as being about a fake
// product rather than a quality recall.
var counterfeitKeywords = []string{"fake", "counterfeit", "unsafe", "falsified"}

// Config carries the ranker's tunable weights and gate thresholds. The
// decision order of the scoring steps is fixed; only the magnitudes are
// configuration.
type Config struct {
	NameWeight        float64 `mapstructure:"name_weight"`
	NameGate          float64 `mapstructure:"name_gate"`
	CounterfeitBonus  float64 `mapstructure:"counterfeit_bonus"`
	KeywordWordBonus  float64 `mapstructure:"keyword_word_bonus"`
	KeywordWordCap    int     `mapstructure:"keyword_word_cap"`
	BatchWeight       float64 `mapstructure:"batch_weight"`
	ExactBatchBonus   float64 `mapstructure:"exact_batch_bonus"`
	FuzzyBatchBonus   float64 `mapstructure:"fuzzy_batch_bonus"`
	ManufacturerBonus float64 `mapstructure:"manufacturer_bonus"`
	SeriousTypeBonus  float64 `mapstructure:"serious_type_bonus"`

	MinScore         float64 `mapstructure:"min_score"`
	CorroborateScore float64 `mapstructure:"corroborate_score"`
	MultiTagScore    float64 `mapstructure:"multi_tag_score"`
	ExactNameSim     float64 `mapstructure:"exact_name_sim"`
	ExactBatchSim    float64 `mapstructure:"exact_batch_sim"`
	FuzzyBatchSim    float64 `mapstructure:"fuzzy_batch_sim"`
	TopN             int     `mapstructure:"top_n"`
	CandidateLimit   int     `mapstructure:"candidate_limit"`
}

// DefaultConfig returns the production weights.
func DefaultConfig() Config {
	return Config{
		NameWeight:        100,
		NameGate:          30,
		CounterfeitBonus:  20,
		KeywordWordBonus:  4,
		KeywordWordCap:    3,
		BatchWeight:       50,
		ExactBatchBonus:   30,
		FuzzyBatchBonus:   15,
		ManufacturerBonus: 25,
		SeriousTypeBonus:  15,

		MinScore:         60,
		CorroborateScore: 70,
		MultiTagScore:    80,
		ExactNameSim:     0.98,
		ExactBatchSim:    0.9,
		FuzzyBatchSim:    0.7,
		TopN:             2,
		CandidateLimit:   50,
	}
}

// Ranker scores alerts against queries. Construct once, share across
// requests; it holds no per-request state.
type Ranker struct {
	cfg    Config
	engine *similarity.Engine
	source alert.CandidateSource
	log    logging.Logger
}

// Option configures a Ranker.
type Option func(*Ranker)

// WithCandidateSource attaches a full-text pre-filter that narrows the
// corpus before exhaustive scoring. Failures fall back to the full corpus.
func WithCandidateSource(s alert.CandidateSource) Option {
	return func(r *Ranker) { r.source = s }
}

// WithLogger sets the ranker logger.
func WithLogger(l logging.Logger) Option {
	return func(r *Ranker) { r.log = l.Named("ranker") }
}

// New constructs a Ranker with the given config and similarity engine.
func New(cfg Config, engine *similarity.Engine, opts ...Option) *Ranker {
	if cfg.TopN <= 0 {
		cfg = DefaultConfig()
	}
	if engine == nil {
		engine = similarity.NewEngine()
	}
	r := &Ranker{cfg: cfg, engine: engine, log: logging.NewNopLogger()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rank scores every alert against the query and returns the top candidates,
// score-descending, that survive the minimum-evidence gate.
func (r *Ranker) Rank(ctx context.Context, query common.ProductQuery, meta *common.ProductMetadata, alerts []*alert.Alert) []common.MatchCandidate {
	alerts = r.prefilter(ctx, query.ProductName, alerts)

	var retained []common.MatchCandidate
	for _, a := range alerts {
		if a == nil || !a.Active {
			continue
		}
		cand := r.score(ctx, query, meta, a)
		if r.passesGate(&cand) {
			retained = append(retained, cand)
		}
	}

	sort.SliceStable(retained, func(i, j int) bool {
		return retained[i].Score > retained[j].Score
	})
	if len(retained) > r.cfg.TopN {
		retained = retained[:r.cfg.TopN]
	}

	r.log.Debug("ranking complete",
		logging.Int("alerts_scored", len(alerts)),
		logging.Int("retained", len(retained)))
	return retained
}

// prefilter narrows the corpus through the candidate source when one is
// attached. Any failure falls back to the full set.
func (r *Ranker) prefilter(ctx context.Context, productName string, alerts []*alert.Alert) []*alert.Alert {
	if r.source == nil || len(alerts) <= r.cfg.CandidateLimit {
		return alerts
	}
	ids, err := r.source.SearchCandidates(ctx, productName, r.cfg.CandidateLimit)
	if err != nil || len(ids) == 0 {
		if err != nil {
			r.log.Warn("candidate pre-filter unavailable, scoring full corpus",
				logging.Err(err))
		}
		return alerts
	}
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	var out []*alert.Alert
	for _, a := range alerts {
		if _, ok := wanted[a.ID]; ok {
			out = append(out, a)
		}
	}
	if len(out) == 0 {
		return alerts
	}
	return out
}

// score applies the weighted evidence steps in their fixed decision order.
func (r *Ranker) score(ctx context.Context, query common.ProductQuery, meta *common.ProductMetadata, a *alert.Alert) common.MatchCandidate {
	cand := common.MatchCandidate{Alert: a}
	fullText := a.FullText()
	lowerText := strings.ToLower(fullText)

	// 1. Product-name similarity, gated so weak resemblance contributes
	// nothing at all.
	nameSim := r.bestNameSimilarity(ctx, query.ProductName, a)
	if pts := nameSim * r.cfg.NameWeight; pts > r.cfg.NameGate {
		cand.Score += pts
		cand.Evidence = append(cand.Evidence, common.EvidenceProductNameMatch)
		if nameSim >= r.cfg.ExactNameSim {
			cand.Evidence = append(cand.Evidence, common.EvidenceExactProductMatch)
		}
	}

	// 2. Counterfeit indicator keywords.
	for _, kw := range counterfeitKeywords {
		if strings.Contains(lowerText, kw) {
			cand.Score += r.cfg.CounterfeitBonus
			cand.Evidence = append(cand.Evidence, common.EvidenceCounterfeitIndicator)
			break
		}
	}

	// 3. Description keyword overlap, capped to stop keyword stuffing.
	if hits := descriptionOverlap(query.Description, lowerText, r.cfg.KeywordWordCap); hits > 0 {
		cand.Score += float64(hits) * r.cfg.KeywordWordBonus
		cand.Evidence = append(cand.Evidence, common.EvidenceDescriptionKeywords)
	}

	// 4. Batch similarity plus tiered bonuses.
	if meta != nil {
		bestSim := 0.0
		for _, b := range meta.BatchNumbers {
			if s, _ := similarity.BestBatchSimilarity(b, a.BatchNumbers, fullText); s > bestSim {
				bestSim = s
			}
		}
		if bestSim > 0 {
			cand.Score += bestSim * r.cfg.BatchWeight
			switch {
			case bestSim >= r.cfg.ExactBatchSim:
				cand.Score += r.cfg.ExactBatchBonus
				cand.Evidence = append(cand.Evidence, common.EvidenceExactBatchMatch)
			case bestSim >= r.cfg.FuzzyBatchSim:
				cand.Score += r.cfg.FuzzyBatchBonus
				cand.Evidence = append(cand.Evidence, common.EvidenceFuzzyBatchMatch)
			}
		}
	}

	// 5. Shared manufacturer.
	if meta != nil && manufacturerShared(meta.ManufacturerMentions, lowerText) {
		cand.Score += r.cfg.ManufacturerBonus
		cand.Evidence = append(cand.Evidence, common.EvidenceManufacturerInfo)
	}

	// 6. Serious alert category.
	if a.Category.Serious() {
		cand.Score += r.cfg.SeriousTypeBonus
		cand.Evidence = append(cand.Evidence, common.EvidenceSeriousAlertType)
	}

	return cand
}

// bestNameSimilarity scores the query name against the alert title and each
// structured product name, taking the maximum.
func (r *Ranker) bestNameSimilarity(ctx context.Context, productName string, a *alert.Alert) float64 {
	best := r.engine.ProductNameSimilarity(ctx, productName, a.Title)
	for _, p := range a.ProductNames {
		if s := r.engine.ProductNameSimilarity(ctx, productName, p); s > best {
			best = s
		}
	}
	return best
}

// descriptionOverlap counts description words longer than four characters
// that appear in the alert text, up to cap.
func descriptionOverlap(description, lowerAlertText string, maxWords int) int {
	if description == "" {
		return 0
	}
	seen := make(map[string]struct{})
	hits := 0
	for _, w := range strings.Fields(strings.ToLower(description)) {
		w = strings.Trim(w, ".,;:()\"'")
		if len(w) <= 4 {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		if strings.Contains(lowerAlertText, w) {
			hits++
			if hits >= maxWords {
				break
			}
		}
	}
	return hits
}

func manufacturerShared(mentions []string, lowerAlertText string) bool {
	for _, m := range mentions {
		if m != "" && strings.Contains(lowerAlertText, strings.ToLower(m)) {
			return true
		}
	}
	return false
}

// passesGate applies the multi-path minimum-evidence policy. A candidate is
// retained only above the minimum score and along at least one of:
//
//	(a) a strong evidence tag (exact product, exact batch, manufacturer),
//	(b) an exact batch match,
//	(c) a higher score with a counterfeit-indicator or exact-product tag,
//	(d) a still higher score with two or more distinct evidence tags.
func (r *Ranker) passesGate(c *common.MatchCandidate) bool {
	if c.Score <= r.cfg.MinScore {
		return false
	}
	if c.HasStrongEvidence() {
		return true
	}
	if c.HasTag(common.EvidenceExactBatchMatch) {
		return true
	}
	if c.Score > r.cfg.CorroborateScore &&
		(c.HasTag(common.EvidenceCounterfeitIndicator) || c.HasTag(common.EvidenceExactProductMatch)) {
		return true
	}
	if c.Score > r.cfg.MultiTagScore && distinctTags(c.Evidence) >= 2 {
		return true
	}
	return false
}

func distinctTags(tags []common.EvidenceTag) int {
	seen := make(map[common.EvidenceTag]struct{}, len(tags))
	for _, t := range tags {
		seen[t] = struct{}{}
	}
	return len(seen)
}
