package textnorm

import (
	"context"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/medcheck/MedCheck-Engine/internal/infrastructure/monitoring/logging"
	"github.com/medcheck/MedCheck-Engine/internal/verification/common"
)

const (
	minBatchLen = 3
	maxBatchLen = 15

	defaultMaxImages       = 3
	defaultPerImageTimeout = 12 * time.Second
)

// Config carries the tunable parts of text extraction. Zero values fall back
// to the package defaults.
type Config struct {
	// MaxImages caps how many images are OCR-processed per request.
	MaxImages int `mapstructure:"max_images"`

	// PerImageTimeout bounds each single OCR call.
	PerImageTimeout time.Duration `mapstructure:"per_image_timeout"`

	// DrugDictionary and ManufacturerAllowList extend the built-in lists.
	DrugDictionary        []string `mapstructure:"drug_dictionary"`
	ManufacturerAllowList []string `mapstructure:"manufacturer_allow_list"`
}

// Extractor builds ProductMetadata from a query. Construct once and share;
// it holds no per-request state.
type Extractor struct {
	cfg      Config
	patterns []BatchPattern
	drugs    []string
	makers   []string
	ocr      common.TextExtractor
	log      logging.Logger
}

// NewExtractor constructs an Extractor. ocr may be nil, in which case images
// are ignored entirely.
func NewExtractor(cfg Config, ocr common.TextExtractor, log logging.Logger) *Extractor {
	if cfg.MaxImages <= 0 {
		cfg.MaxImages = defaultMaxImages
	}
	if cfg.PerImageTimeout <= 0 {
		cfg.PerImageTimeout = defaultPerImageTimeout
	}
	drugs := DefaultDrugDictionary()
	for _, d := range cfg.DrugDictionary {
		drugs = append(drugs, strings.ToLower(d))
	}
	makers := DefaultManufacturerAllowList()
	for _, m := range cfg.ManufacturerAllowList {
		makers = append(makers, strings.ToLower(m))
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Extractor{
		cfg:      cfg,
		patterns: DefaultBatchPatterns(),
		drugs:    drugs,
		makers:   makers,
		ocr:      ocr,
		log:      log.Named("textnorm"),
	}
}

// Extract derives ProductMetadata from the query text and its images. OCR
// failures on individual images are skipped, counted, and logged; Extract
// itself never fails.
func (e *Extractor) Extract(ctx context.Context, query common.ProductQuery) *common.ProductMetadata {
	texts, failures := e.extractImageText(ctx, query.Images)
	detected := strings.Join(texts, "\n")

	combined := norm.NFC.String(strings.TrimSpace(
		query.ProductName + " " + query.Description + " " + detected))

	meta := &common.ProductMetadata{
		BatchNumbers:         ExtractBatches(combined, e.patterns),
		DrugNames:            e.detectDrugNames(combined),
		ExpiryDates:          extractExpiryDates(combined),
		ManufacturerMentions: e.detectManufacturers(combined),
		DetectedText:         detected,
		ImageTexts:           texts,
		OCRFailures:          failures,
	}

	// The user-supplied batch is always a candidate, pattern match or not.
	if ub := strings.ToUpper(strings.TrimSpace(query.UserBatchNumber)); ub != "" && !meta.HasBatch(ub) {
		meta.BatchNumbers = append(meta.BatchNumbers, ub)
	}
	return meta
}

func (e *Extractor) extractImageText(ctx context.Context, images []common.Image) ([]string, int) {
	if e.ocr == nil || len(images) == 0 {
		return nil, 0
	}
	if len(images) > e.cfg.MaxImages {
		images = images[:e.cfg.MaxImages]
	}

	var texts []string
	failures := 0
	for i, img := range images {
		imgCtx, cancel := context.WithTimeout(ctx, e.cfg.PerImageTimeout)
		text, err := e.ocr.ExtractText(imgCtx, img)
		cancel()
		if err != nil {
			failures++
			e.log.Warn("ocr extraction failed, skipping image",
				logging.Int("image_index", i),
				logging.String("image_name", img.Name),
				logging.Err(err))
			continue
		}
		if t := strings.TrimSpace(text); t != "" {
			texts = append(texts, t)
		}
	}
	return texts, failures
}

// ExtractBatches runs the batch-pattern cascade over text. Families apply in
// order and the cascade stops at the first family that yields candidates, so
// the generic token family really is a last resort. Results are deduplicated
// case-insensitively, stored upper-case, and length-filtered.
func ExtractBatches(text string, patterns []BatchPattern) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	upper := strings.ToUpper(text)

	for _, p := range patterns {
		var raw []string
		if p.Labelled {
			for _, m := range p.Re.FindAllStringSubmatch(text, -1) {
				raw = append(raw, m[1])
			}
		} else {
			raw = p.Re.FindAllString(upper, -1)
		}

		candidates := filterBatchCandidates(raw, p.Name == "generic_token")
		if len(candidates) > 0 {
			return candidates
		}
	}
	return nil
}

// filterBatchCandidates normalizes, length-filters, and dedupes candidates.
// The generic family additionally requires both a letter and a digit, since
// a bare uppercase word or bare number is almost never a batch code.
func filterBatchCandidates(raw []string, generic bool) []string {
	seen := make(map[string]struct{}, len(raw))
	var out []string
	for _, r := range raw {
		b := strings.ToUpper(strings.TrimSpace(r))
		if len(b) < minBatchLen || len(b) > maxBatchLen {
			continue
		}
		if generic && !hasLetterAndDigit(b) {
			continue
		}
		if _, ok := seen[b]; ok {
			continue
		}
		seen[b] = struct{}{}
		out = append(out, b)
	}
	return out
}

func hasLetterAndDigit(s string) bool {
	hasLetter, hasDigit := false, false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	return hasLetter && hasDigit
}

func (e *Extractor) detectDrugNames(text string) []string {
	lower := strings.ToLower(text)
	var out []string
	for _, d := range e.drugs {
		if strings.Contains(lower, d) {
			out = append(out, d)
		}
	}
	return out
}

func (e *Extractor) detectManufacturers(text string) []string {
	seen := make(map[string]struct{})
	var out []string

	add := func(name string) {
		n := strings.ToLower(strings.TrimSpace(strings.Trim(name, ".,")))
		if n == "" {
			return
		}
		if _, ok := seen[n]; ok {
			return
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}

	for _, re := range manufacturerPhrases {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			// Cut attribution captures at the first sentence break.
			name := m[1]
			if i := strings.IndexAny(name, ".\n"); i > 0 {
				name = name[:i]
			}
			add(name)
		}
	}

	lower := strings.ToLower(text)
	for _, maker := range e.makers {
		if strings.Contains(lower, maker) {
			add(maker)
		}
	}
	return out
}

func extractExpiryDates(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, re := range expiryPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			d := strings.TrimSpace(m[1])
			if _, ok := seen[d]; ok {
				continue
			}
			seen[d] = struct{}{}
			out = append(out, d)
		}
	}
	return out
}
