package textnorm

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medcheck/MedCheck-Engine/internal/verification/common"
)

type mockTextExtractor struct {
	extractFunc func(ctx context.Context, img common.Image) (string, error)
	calls       int32
}

func (m *mockTextExtractor) ExtractText(ctx context.Context, img common.Image) (string, error) {
	atomic.AddInt32(&m.calls, 1)
	return m.extractFunc(ctx, img)
}

func TestExtractBatches_LabelledBatch(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"batch label", "Batch: T36184B printed on the side", "T36184B"},
		{"batch no label", "batch no. AB1234", "AB1234"},
		{"lot label", "LOT 9X55C stated on box", "9X55C"},
		{"b.no label", "B.No: KP203", "KP203"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractBatches(tt.text, DefaultBatchPatterns())
			require.NotEmpty(t, got)
			assert.Contains(t, got, tt.want)
		})
	}
}

func TestExtractBatches_LetterLedFallback(t *testing.T) {
	got := ExtractBatches("found code T36184B on the strip", DefaultBatchPatterns())
	assert.Contains(t, got, "T36184B")
}

func TestExtractBatches_GenericIsLastResort(t *testing.T) {
	// No labelled or letter-led pattern matches; generic tokens must carry
	// both a letter and a digit.
	got := ExtractBatches("code 12ab9 only", DefaultBatchPatterns())
	assert.Contains(t, got, "12AB9")

	got = ExtractBatches("JUST SOME WORDS HERE", DefaultBatchPatterns())
	assert.Empty(t, got)
}

func TestExtractBatches_DedupedAndLengthFiltered(t *testing.T) {
	got := ExtractBatches("batch T36184B, batch t36184b, lot AB", DefaultBatchPatterns())
	assert.Equal(t, []string{"T36184B"}, got)
}

func TestExtract_UserBatchAlwaysIncluded(t *testing.T) {
	e := NewExtractor(Config{}, nil, nil)
	meta := e.Extract(context.Background(), common.ProductQuery{
		ProductName:     "Postinor 2",
		UserBatchNumber: "??weird??",
	})
	assert.Contains(t, meta.BatchNumbers, "??WEIRD??")
}

func TestExtract_DrugDictionaryDetection(t *testing.T) {
	e := NewExtractor(Config{}, nil, nil)
	meta := e.Extract(context.Background(), common.ProductQuery{
		ProductName: "Paracetamol 500mg",
		Description: "contains Levonorgestrel",
	})
	assert.Contains(t, meta.DrugNames, "paracetamol")
	assert.Contains(t, meta.DrugNames, "levonorgestrel")
}

func TestExtract_DrugDictionaryExtendedByConfig(t *testing.T) {
	e := NewExtractor(Config{DrugDictionary: []string{"tramadol"}}, nil, nil)
	meta := e.Extract(context.Background(), common.ProductQuery{
		ProductName: "Tramadol 50mg capsules",
	})
	assert.Contains(t, meta.DrugNames, "tramadol")
}

func TestExtract_ManufacturerPhraseAndAllowList(t *testing.T) {
	e := NewExtractor(Config{}, nil, nil)
	meta := e.Extract(context.Background(), common.ProductQuery{
		ProductName: "Amoxil",
		Description: "Manufactured by Emzor Pharmaceutical Industries. Sold nationwide.",
	})
	require.NotEmpty(t, meta.ManufacturerMentions)
	assert.Contains(t, meta.ManufacturerMentions[0], "emzor")
}

func TestExtract_ExpiryDates(t *testing.T) {
	e := NewExtractor(Config{}, nil, nil)
	meta := e.Extract(context.Background(), common.ProductQuery{
		Description: "EXP: 12/2025 and expiry date 01/06/2024",
	})
	assert.Contains(t, meta.ExpiryDates, "12/2025")
	assert.Contains(t, meta.ExpiryDates, "01/06/2024")
}

func TestExtract_OCRTextFeedsBatchExtraction(t *testing.T) {
	ocr := &mockTextExtractor{
		extractFunc: func(_ context.Context, _ common.Image) (string, error) {
			return "Batch No: T36184B EXP 12/2025", nil
		},
	}
	e := NewExtractor(Config{}, ocr, nil)
	meta := e.Extract(context.Background(), common.ProductQuery{
		ProductName: "Postinor 2",
		Images:      []common.Image{{Name: "front.jpg"}},
	})
	assert.Contains(t, meta.BatchNumbers, "T36184B")
	assert.Contains(t, meta.DetectedText, "T36184B")
	assert.Equal(t, 0, meta.OCRFailures)
}

func TestExtract_OCRFailuresAreSkippedNotFatal(t *testing.T) {
	ocr := &mockTextExtractor{
		extractFunc: func(_ context.Context, img common.Image) (string, error) {
			if img.Name == "bad.jpg" {
				return "", errors.New("provider timeout")
			}
			return "Lot A123B", nil
		},
	}
	e := NewExtractor(Config{}, ocr, nil)
	meta := e.Extract(context.Background(), common.ProductQuery{
		ProductName: "Coartem",
		Images: []common.Image{
			{Name: "bad.jpg"},
			{Name: "good.jpg"},
		},
	})
	assert.Equal(t, 1, meta.OCRFailures)
	assert.Contains(t, meta.BatchNumbers, "A123B")
}

func TestExtract_ImageCapBoundsOCRWork(t *testing.T) {
	ocr := &mockTextExtractor{
		extractFunc: func(_ context.Context, _ common.Image) (string, error) {
			return "", nil
		},
	}
	e := NewExtractor(Config{MaxImages: 2}, ocr, nil)
	imgs := []common.Image{{Name: "1"}, {Name: "2"}, {Name: "3"}, {Name: "4"}}
	e.Extract(context.Background(), common.ProductQuery{ProductName: "X Y", Images: imgs})
	assert.Equal(t, int32(2), atomic.LoadInt32(&ocr.calls))
}

func TestExtract_PerImageTimeoutApplies(t *testing.T) {
	ocr := &mockTextExtractor{
		extractFunc: func(ctx context.Context, _ common.Image) (string, error) {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(200 * time.Millisecond):
				return "too late", nil
			}
		},
	}
	e := NewExtractor(Config{PerImageTimeout: 20 * time.Millisecond}, ocr, nil)
	meta := e.Extract(context.Background(), common.ProductQuery{
		ProductName: "Coartem tablets",
		Images:      []common.Image{{Name: "slow.jpg"}},
	})
	assert.Equal(t, 1, meta.OCRFailures)
	assert.Empty(t, meta.DetectedText)
}
