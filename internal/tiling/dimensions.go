// Package tiling turns one repeating pattern into seamless fixed-width print
// panels.
//
// The pipeline has three coordinate spaces: physical inches (the wall and
// panel sizes), source pixels (the uploaded pattern) and print pixels (the
// pattern resampled to the requested DPI). Calculate maps between them,
// ScalePattern produces the print-pixel pattern, ComposePanel samples it
// toroidally for one panel and EncodePNG writes the result with its
// physical resolution attached.
package tiling

import (
	"math"

	"github.com/mohammed-shakir/wallpanels/internal/apperr"
)

const (
	// MaxPanels bounds the panel count of one layout.
	MaxPanels = 1000
	// MaxSidePx bounds any single pixel dimension before it is converted
	// to int.
	MaxSidePx = math.MaxInt32
)

// LayoutSpec is a physical layout request. Lengths are inches, DPI is
// pixels per inch.
type LayoutSpec struct {
	WallWidth  float64 `json:"wall_width" toml:"wall_width"`
	WallHeight float64 `json:"wall_height" toml:"wall_height"`
	PanelWidth float64 `json:"panel_width" toml:"panel_width"`
	DPI        float64 `json:"dpi" toml:"dpi"`
	Overlap    float64 `json:"overlap" toml:"overlap"`
}

// Dimensions is the derived layout of one generation.
type Dimensions struct {
	PatternWidthPx      int     `json:"pattern_width_px"`
	PatternHeightPx     int     `json:"pattern_height_px"`
	PatternPPI          float64 `json:"pattern_ppi"`
	ScaleFactor         float64 `json:"scale_factor"`
	ScaledWidthPx       int     `json:"scaled_width_px"`
	ScaledHeightPx      int     `json:"scaled_height_px"`
	PanelWidthPx        int     `json:"panel_width_px"`
	PanelHeightPx       int     `json:"panel_height_px"`
	EffectivePanelWidth float64 `json:"effective_panel_width"`
	NumPanels           int     `json:"num_panels"`
	DPI                 float64 `json:"dpi"`
}

// Validate checks the layout parameters on their own, before any pattern
// is involved.
func (s LayoutSpec) Validate() error {
	vals := []struct {
		name string
		v    float64
	}{
		{"wall_width", s.WallWidth},
		{"wall_height", s.WallHeight},
		{"panel_width", s.PanelWidth},
		{"dpi", s.DPI},
		{"overlap", s.Overlap},
	}
	for _, f := range vals {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return apperr.InvalidLayout("%s must be a finite number", f.name)
		}
	}
	switch {
	case s.WallWidth <= 0:
		return apperr.InvalidLayout("wall_width must be positive")
	case s.WallHeight <= 0:
		return apperr.InvalidLayout("wall_height must be positive")
	case s.PanelWidth <= 0:
		return apperr.InvalidLayout("panel_width must be positive")
	case s.DPI <= 0:
		return apperr.InvalidLayout("dpi must be positive")
	case s.Overlap < 0:
		return apperr.InvalidLayout("overlap must not be negative")
	case s.Overlap >= s.PanelWidth:
		return apperr.InvalidLayout("overlap (%g) must be smaller than panel_width (%g)", s.Overlap, s.PanelWidth)
	}
	return nil
}

// Calculate derives the print dimensions for a pattern of the given pixel
// size. Only the horizontal pixel density drives the scale factor; height
// is scaled by the same factor so the pattern keeps its aspect ratio.
func Calculate(patternW, patternH int, s LayoutSpec) (Dimensions, error) {
	if err := s.Validate(); err != nil {
		return Dimensions{}, err
	}
	if patternW <= 0 || patternH <= 0 {
		return Dimensions{}, apperr.InvalidLayout("pattern dimensions must be positive (got %dx%d)", patternW, patternH)
	}

	ppi := float64(patternW) / s.WallWidth
	scale := s.DPI / ppi
	effective := s.PanelWidth - s.Overlap

	panels := math.Ceil(s.WallWidth / effective)
	if !(panels <= MaxPanels) {
		return Dimensions{}, apperr.InvalidLayout("layout needs more than %d panels (effective panel width %g)", MaxPanels, effective)
	}

	sides := []struct {
		name string
		v    float64
	}{
		{"scaled pattern width", float64(patternW) * scale},
		{"scaled pattern height", float64(patternH) * scale},
		{"panel width", s.PanelWidth * s.DPI},
		{"panel height", s.WallHeight * s.DPI},
	}
	for _, side := range sides {
		if !(math.Round(side.v) <= MaxSidePx) {
			return Dimensions{}, apperr.InvalidLayout("%s of %g px is too large", side.name, side.v)
		}
	}

	d := Dimensions{
		PatternWidthPx:      patternW,
		PatternHeightPx:     patternH,
		PatternPPI:          ppi,
		ScaleFactor:         scale,
		ScaledWidthPx:       roundInt(sides[0].v),
		ScaledHeightPx:      roundInt(sides[1].v),
		PanelWidthPx:        roundInt(sides[2].v),
		PanelHeightPx:       roundInt(sides[3].v),
		EffectivePanelWidth: effective,
		NumPanels:           int(panels),
		DPI:                 s.DPI,
	}
	if d.ScaledWidthPx <= 0 || d.ScaledHeightPx <= 0 {
		return Dimensions{}, apperr.InvalidLayout("scaled pattern would be empty (%dx%d px)", d.ScaledWidthPx, d.ScaledHeightPx)
	}
	if d.PanelWidthPx <= 0 || d.PanelHeightPx <= 0 {
		return Dimensions{}, apperr.InvalidLayout("panel would be empty (%dx%d px)", d.PanelWidthPx, d.PanelHeightPx)
	}
	return d, nil
}

// CheckBudget rejects layouts whose scaled pattern or panel would exceed
// maxPixels. A non-positive budget disables the check.
func (d Dimensions) CheckBudget(maxPixels int64) error {
	if maxPixels <= 0 {
		return nil
	}
	if ExceedsPixels(d.ScaledWidthPx, d.ScaledHeightPx, maxPixels) {
		return apperr.InvalidLayout("scaled pattern of %dx%d px exceeds the %d pixel limit", d.ScaledWidthPx, d.ScaledHeightPx, maxPixels)
	}
	if ExceedsPixels(d.PanelWidthPx, d.PanelHeightPx, maxPixels) {
		return apperr.InvalidLayout("panel of %dx%d px exceeds the %d pixel limit", d.PanelWidthPx, d.PanelHeightPx, maxPixels)
	}
	return nil
}

// ExceedsPixels reports whether a w x h image holds more than maxPixels
// pixels. It never forms the product, so huge sides cannot wrap.
func ExceedsPixels(w, h int, maxPixels int64) bool {
	if w <= 0 || h <= 0 {
		return false
	}
	if maxPixels < 0 {
		return true
	}
	w64, h64 := int64(w), int64(h)
	return w64 > maxPixels || h64 > maxPixels || w64 > maxPixels/h64
}

// StartX is the horizontal pixel offset of panel p into an unbounded
// horizontal repetition of the scaled pattern.
func (d Dimensions) StartX(p int) int {
	return roundInt(float64(p-1) * d.EffectivePanelWidth * d.DPI)
}

// ValidPanel reports whether p is a 1-based panel index of this layout.
func (d Dimensions) ValidPanel(p int) bool {
	return p >= 1 && p <= d.NumPanels
}

func roundInt(v float64) int {
	return int(math.Round(v))
}
