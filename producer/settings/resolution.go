package settings

import (
	"github.com/juju/errors"
	"github.com/mediaroom/producer/producer/media"
)

// Resolution names a capture width preset.
type Resolution string

const (
	ResolutionLow      Resolution = "low"
	ResolutionMedium   Resolution = "medium"
	ResolutionHigh     Resolution = "high"
	ResolutionVeryHigh Resolution = "veryhigh"
	ResolutionUltra    Resolution = "ultra"
)

var resolutionWidths = map[Resolution]int{
	ResolutionLow:      320,
	ResolutionMedium:   640,
	ResolutionHigh:     1280,
	ResolutionVeryHigh: 1920,
	ResolutionUltra:    3840,
}

var ErrInvalidResolution = errors.New("invalid resolution")

func (r Resolution) Validate() error {
	if _, ok := resolutionWidths[r]; !ok {
		return errors.Annotatef(ErrInvalidResolution, "%q", r)
	}

	return nil
}

// Width returns the preset width, falling back to medium for unknown values.
func (r Resolution) Width() int {
	if width, ok := resolutionWidths[r]; ok {
		return width
	}

	return resolutionWidths[ResolutionMedium]
}

// VideoConstraints returns capture constraints for r. The height follows
// from aspectRatio, which defaults to 16:9.
func VideoConstraints(r Resolution, aspectRatio float64) media.Constraints {
	if aspectRatio <= 0 {
		aspectRatio = DefaultAspectRatio
	}

	width := r.Width()

	return media.Constraints{
		Width:       width,
		Height:      int(float64(width)/aspectRatio + 0.5),
		AspectRatio: aspectRatio,
	}
}
