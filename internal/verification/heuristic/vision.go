package heuristic

import (
	"context"
	"strings"

	"github.com/medcheck/MedCheck-Engine/internal/verification/common"
)

// ImageScores are per-image proxies for packaging integrity, all in [0,1].
type ImageScores struct {
	Quality  float64
	Layout   float64
	Hologram float64
}

// Average folds the three proxies into one score.
func (s ImageScores) Average() float64 {
	return (s.Quality + s.Layout + s.Hologram) / 3.0
}

// VisionAnalyzer produces per-image integrity scores. The production
// deployment is expected to back this with a real vision model; the default
// implementation below is an explicit placeholder.
type VisionAnalyzer interface {
	AssessImage(ctx context.Context, img common.Image) (ImageScores, error)
}

// placeholderVision derives proxy scores from image byte size and declared
// format only. It performs no pixel analysis whatsoever. It exists so the
// heuristic path has a visual signal slot to fill until a genuine vision
// model is integrated; treat its output as weak evidence.
type placeholderVision struct{}

// NewPlaceholderVision returns the stand-in VisionAnalyzer.
func NewPlaceholderVision() VisionAnalyzer { return placeholderVision{} }

const (
	tinyImageBytes  = 20 << 10  // under 20 KiB, likely a thumbnail or screenshot crop
	largeImageBytes = 200 << 10 // a proper product photo
)

func (placeholderVision) AssessImage(_ context.Context, img common.Image) (ImageScores, error) {
	size := len(img.Data)

	quality := 0.5
	switch {
	case size >= largeImageBytes:
		quality = 0.8
	case size >= tinyImageBytes:
		quality = 0.65
	case size > 0:
		quality = 0.35
	}

	layout := 0.5
	hologram := 0.5
	switch strings.ToLower(img.ContentType) {
	case "image/jpeg", "image/png":
		layout = 0.6
	case "":
		layout = 0.4
	}

	return ImageScores{Quality: quality, Layout: layout, Hologram: hologram}, nil
}
