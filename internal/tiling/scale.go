package tiling

import (
	"image"

	"github.com/disintegration/imaging"
)

// ScalePattern resamples src to the scaled size in d with a Lanczos filter.
// The result is a new buffer; src is not modified. Output is deterministic
// for identical input pixels and target size.
func ScalePattern(src image.Image, d Dimensions) *image.NRGBA {
	b := src.Bounds()
	if b.Dx() == d.ScaledWidthPx && b.Dy() == d.ScaledHeightPx {
		return imaging.Clone(src)
	}
	return imaging.Resize(src, d.ScaledWidthPx, d.ScaledHeightPx, imaging.Lanczos)
}
