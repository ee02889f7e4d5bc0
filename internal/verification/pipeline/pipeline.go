// Package pipeline wires the verification components into the single entry
// point the rest of the application consumes: Verify. The registry check
// runs first and can short-circuit everything; otherwise the corpus-lookup
// path and the heuristic path run concurrently and the ensemble fuses their
// opinions. The pipeline never fails a request for upstream I/O reasons; it
// degrades and always returns a best-effort verdict.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/medcheck/MedCheck-Engine/internal/domain/alert"
	"github.com/medcheck/MedCheck-Engine/internal/infrastructure/monitoring/logging"
	"github.com/medcheck/MedCheck-Engine/internal/verification/common"
	"github.com/medcheck/MedCheck-Engine/internal/verification/detailpage"
	"github.com/medcheck/MedCheck-Engine/internal/verification/ensemble"
	"github.com/medcheck/MedCheck-Engine/internal/verification/heuristic"
	"github.com/medcheck/MedCheck-Engine/internal/verification/ranker"
	"github.com/medcheck/MedCheck-Engine/internal/verification/registry"
	"github.com/medcheck/MedCheck-Engine/internal/verification/textnorm"
	apperrors "github.com/medcheck/MedCheck-Engine/pkg/errors"
	verdicttypes "github.com/medcheck/MedCheck-Engine/pkg/types/verification"
)

// No-match confidence policy: a clean result is not certainty. The baseline
// starts below full confidence and explicit penalties keep "no alert found"
// from being conflated with "definitely safe".
const (
	noMatchBaseConfidence       = 70
	unknownManufacturerPenalty  = 10
	noBatchPenalty              = 5
	noMatchConfidenceFloor      = 40
	degradedVerdictConfidence   = 50
	registryVerdictConfidence   = 100
	matchConfidencePageWeight   = 0.3
	matchConfidenceRankerWeight = 0.7
)

// VerdictPublisher records completed verdicts on an audit trail. The kafka
// adapter implements it; publishing is fire-and-forget.
type VerdictPublisher interface {
	PublishVerdict(ctx context.Context, v *verdicttypes.Verdict) error
}

// EvidenceStore archives the submitted images for later audit. The minio
// adapter implements it; archival failure never fails the request.
type EvidenceStore interface {
	ArchiveImages(ctx context.Context, requestID string, images []common.Image) error
}

// Metrics receives pipeline observations. The prometheus adapter implements
// it; a nil Metrics is valid.
type Metrics interface {
	ObserveVerification(duration time.Duration, riskLevel string, counterfeit bool)
	RegistryHit()
	DegradedVerdict(reason string)
}

// Pipeline is the verification engine. Construct once at startup via New
// and share across requests; it holds no per-request state.
type Pipeline struct {
	extractor *textnorm.Extractor
	registry  *registry.Registry
	repo      alert.Repository
	ranker    *ranker.Ranker
	analyzer  *detailpage.Analyzer
	heuristic *heuristic.Scorer
	combiner  *ensemble.Combiner

	publisher VerdictPublisher
	evidence  EvidenceStore
	metrics   Metrics
	log       logging.Logger
}

// Option configures optional pipeline collaborators.
type Option func(*Pipeline)

// WithPublisher attaches the verdict audit publisher.
func WithPublisher(p VerdictPublisher) Option {
	return func(pl *Pipeline) { pl.publisher = p }
}

// WithEvidenceStore attaches the image archival store.
func WithEvidenceStore(s EvidenceStore) Option {
	return func(pl *Pipeline) { pl.evidence = s }
}

// WithMetrics attaches pipeline metrics.
func WithMetrics(m Metrics) Option {
	return func(pl *Pipeline) { pl.metrics = m }
}

// WithLogger sets the pipeline logger.
func WithLogger(l logging.Logger) Option {
	return func(pl *Pipeline) { pl.log = l.Named("pipeline") }
}

// New constructs the Pipeline from its mandatory components.
func New(
	extractor *textnorm.Extractor,
	reg *registry.Registry,
	repo alert.Repository,
	rk *ranker.Ranker,
	analyzer *detailpage.Analyzer,
	scorer *heuristic.Scorer,
	combiner *ensemble.Combiner,
	opts ...Option,
) *Pipeline {
	p := &Pipeline{
		extractor: extractor,
		registry:  reg,
		repo:      repo,
		ranker:    rk,
		analyzer:  analyzer,
		heuristic: scorer,
		combiner:  combiner,
		log:       logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Verify is the single entry point: it turns a product query into a
// Verdict. The only error it returns is an input-validation error; every
// upstream failure degrades into a best-effort Verdict instead.
func (p *Pipeline) Verify(ctx context.Context, query common.ProductQuery) (*verdicttypes.Verdict, error) {
	if strings.TrimSpace(query.ProductName) == "" {
		return nil, apperrors.New(apperrors.ErrCodeVerificationInputInvalid,
			"product name is required")
	}

	start := time.Now()
	requestID := uuid.NewString()
	log := p.log.With(logging.String("request_id", requestID))

	meta := p.extractor.Extract(ctx, query)

	// Confirmed fakes bypass everything else.
	if hit, ok := p.registry.CheckKnownFake(query.ProductName, meta.BatchNumbers); ok {
		if p.metrics != nil {
			p.metrics.RegistryHit()
		}
		v := p.registryVerdict(requestID, hit, start)
		p.finish(ctx, log, v, query.Images)
		return v, nil
	}

	alerts, err := p.repo.ListActive(ctx)
	if err != nil {
		log.Error("alert corpus unreachable, returning degraded verdict", logging.Err(err))
		if p.metrics != nil {
			p.metrics.DegradedVerdict("corpus_unreachable")
		}
		v := p.degradedVerdict(requestID, start)
		p.finish(ctx, log, v, query.Images)
		return v, nil
	}

	// The two opinions have no data dependency on each other.
	var rv *common.RankerVerdict
	var ha *common.HeuristicAssessment
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rv = p.rankerPath(gctx, query, meta, alerts)
		return nil
	})
	g.Go(func() error {
		ha = p.heuristic.Assess(gctx, query, meta)
		return nil
	})
	_ = g.Wait()

	res := p.combiner.Combine(rv, ha)
	v := p.buildVerdict(requestID, meta, rv, ha, res, start)
	p.finish(ctx, log, v, query.Images)
	return v, nil
}

// rankerPath runs candidate ranking and, when a match surfaces, detail-page
// analysis of the top candidate.
func (p *Pipeline) rankerPath(ctx context.Context, query common.ProductQuery, meta *common.ProductMetadata, alerts []*alert.Alert) *common.RankerVerdict {
	candidates := p.ranker.Rank(ctx, query, meta, alerts)
	if len(candidates) == 0 {
		return &common.RankerVerdict{
			IsCounterfeit: false,
			Confidence:    p.noMatchConfidence(query, meta),
		}
	}

	top := candidates[0]
	rv := &common.RankerVerdict{
		IsCounterfeit: true,
		Candidates:    candidates,
	}

	matchConf := top.Score
	if matchConf > 100 {
		matchConf = 100
	}
	if top.Alert.URL != "" {
		detail := p.analyzer.Analyze(ctx, top.Alert.URL)
		rv.Detail = detail
		rv.PageConfirmed = p.analyzer.ConfirmedFake(detail, top.Alert.URL)
		matchConf = matchConfidenceRankerWeight*matchConf +
			matchConfidencePageWeight*detail.PageConfidence
	}
	rv.Confidence = matchConf
	return rv
}

// noMatchConfidence applies the no-match probability policy.
func (p *Pipeline) noMatchConfidence(query common.ProductQuery, meta *common.ProductMetadata) float64 {
	conf := float64(noMatchBaseConfidence)
	if len(meta.ManufacturerMentions) == 0 {
		conf -= unknownManufacturerPenalty
	}
	if strings.TrimSpace(query.UserBatchNumber) == "" {
		conf -= noBatchPenalty
	}
	if conf < noMatchConfidenceFloor {
		conf = noMatchConfidenceFloor
	}
	return conf
}

func (p *Pipeline) registryVerdict(requestID string, hit *common.RegistryHit, start time.Time) *verdicttypes.Verdict {
	return &verdicttypes.Verdict{
		RequestID:     requestID,
		IsCounterfeit: true,
		RiskLevel:     verdicttypes.RiskCritical,
		Confidence:    registryVerdictConfidence,
		Summary: fmt.Sprintf(
			"%s with batch %s is a confirmed counterfeit recorded by the regulator.",
			hit.ProductName, hit.Batch),
		MatchedAlert: &verdicttypes.MatchedAlert{
			Title:        hit.ProductName,
			URL:          hit.SourceURL,
			MatchedBatch: hit.MatchedBatch,
			FromRegistry: true,
		},
		RiskFactors: []string{
			"product and batch match the known-counterfeit registry",
		},
		Recommendations: []string{
			"Do not use or sell this product",
			"Report it to NAFDAC via the nearest office or www.nafdac.gov.ng",
		},
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}
}

func (p *Pipeline) degradedVerdict(requestID string, start time.Time) *verdicttypes.Verdict {
	return &verdicttypes.Verdict{
		RequestID:     requestID,
		IsCounterfeit: false,
		RiskLevel:     verdicttypes.RiskMedium,
		Confidence:    degradedVerdictConfidence,
		Summary: "Verification is degraded: the alert corpus could not be reached, " +
			"so the product could not be checked against regulatory alerts.",
		Recommendations: []string{
			"Verification degraded, try again later",
			"Purchase only from licensed pharmacies until the product can be verified",
		},
		Degraded:         true,
		DegradedReason:   "alert corpus unreachable",
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}
}

func (p *Pipeline) buildVerdict(
	requestID string,
	meta *common.ProductMetadata,
	rv *common.RankerVerdict,
	ha *common.HeuristicAssessment,
	res *ensemble.Result,
	start time.Time,
) *verdicttypes.Verdict {
	v := &verdicttypes.Verdict{
		RequestID:        requestID,
		IsCounterfeit:    res.IsCounterfeit,
		RiskLevel:        res.RiskLevel,
		Confidence:       res.Confidence,
		Summary:          res.Summary,
		RiskFactors:      res.RiskFactors,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}

	if top := rv.Top(); top != nil {
		v.MatchedAlert = &verdicttypes.MatchedAlert{
			AlertID:  top.Alert.ID,
			Title:    top.Alert.Title,
			Excerpt:  top.Alert.Excerpt,
			URL:      top.Alert.URL,
			Date:     top.Alert.Date,
			Severity: top.Alert.Severity.String(),
		}
	} else if ha.RegistryHit != nil {
		v.MatchedAlert = &verdicttypes.MatchedAlert{
			Title:        ha.RegistryHit.ProductName,
			URL:          ha.RegistryHit.SourceURL,
			MatchedBatch: ha.RegistryHit.MatchedBatch,
			FromRegistry: true,
		}
	}

	v.Recommendations = ha.Recommendations
	if len(v.Recommendations) == 0 {
		if v.IsCounterfeit {
			v.Recommendations = []string{"Do not use or sell this product", "Report it to NAFDAC"}
		} else {
			v.Recommendations = []string{"Always buy from licensed pharmacies"}
		}
	}

	// The extractor caps how many images it attempts, so the attempt count
	// comes from its metadata, not from the request.
	if meta.OCRFailures > 0 && len(meta.ImageTexts) == 0 {
		v.Degraded = true
		v.DegradedReason = "no image text could be extracted"
	}
	if rv.Detail != nil && rv.Detail.FetchFailed {
		v.Degraded = true
		if v.DegradedReason != "" {
			v.DegradedReason += "; "
		}
		v.DegradedReason += "alert detail page unavailable"
	}

	if !v.Valid() {
		p.log.Warn("verdict violates evidentiary-anchor invariant",
			logging.String("request_id", requestID),
			logging.Bool("counterfeit", v.IsCounterfeit))
	}
	return v
}

// finish handles the post-verdict bookkeeping: audit publishing, evidence
// archival, and metrics. All of it is best-effort.
func (p *Pipeline) finish(ctx context.Context, log logging.Logger, v *verdicttypes.Verdict, images []common.Image) {
	if p.metrics != nil {
		p.metrics.ObserveVerification(
			time.Duration(v.ProcessingTimeMs)*time.Millisecond,
			v.RiskLevel.String(), v.IsCounterfeit)
	}
	if p.publisher != nil {
		if err := p.publisher.PublishVerdict(ctx, v); err != nil {
			log.Warn("failed to publish verdict audit event", logging.Err(err))
		}
	}
	if p.evidence != nil && len(images) > 0 {
		if err := p.evidence.ArchiveImages(ctx, v.RequestID, images); err != nil {
			log.Warn("failed to archive evidence images", logging.Err(err))
		}
	}
}
