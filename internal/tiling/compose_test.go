package tiling

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/mohammed-shakir/wallpanels/internal/apperr"
)

// distinct value per pixel, translucent in places
func testPattern(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 31),
				G: uint8(y * 47),
				B: uint8((x + y) * 13),
				A: uint8(255 - (x*y)%7*20),
			})
		}
	}
	return img
}

func smallLayout() Dimensions {
	return Dimensions{
		ScaledWidthPx:       7,
		ScaledHeightPx:      5,
		PanelWidthPx:        17,
		PanelHeightPx:       12,
		EffectivePanelWidth: 1.5,
		DPI:                 10,
		NumPanels:           4,
	}
}

func TestComposePanel_MatchesPerPixelDefinition(t *testing.T) {
	scaled := testPattern(7, 5)
	d := smallLayout()

	for p := 1; p <= d.NumPanels; p++ {
		panel, err := ComposePanel(scaled, d, p)
		if err != nil {
			t.Fatalf("ComposePanel(%d): %v", p, err)
		}
		if b := panel.Bounds(); b.Dx() != d.PanelWidthPx || b.Dy() != d.PanelHeightPx {
			t.Fatalf("panel %d bounds=%v", p, b)
		}
		startX := d.StartX(p)
		for y := range d.PanelHeightPx {
			for x := range d.PanelWidthPx {
				want := scaled.NRGBAAt((startX+x)%7, y%5)
				if got := panel.NRGBAAt(x, y); got != want {
					t.Fatalf("panel %d (%d,%d)=%v want %v", p, x, y, got, want)
				}
				if got := SampleAt(scaled, startX, x, y); got != want {
					t.Fatalf("SampleAt(%d,%d,%d)=%v want %v", startX, x, y, got, want)
				}
			}
		}
	}
}

func TestComposePanel_IsPeriodic(t *testing.T) {
	scaled := testPattern(7, 5)
	d := smallLayout()

	panel, err := ComposePanel(scaled, d, 2)
	if err != nil {
		t.Fatalf("ComposePanel: %v", err)
	}
	for y := range d.PanelHeightPx {
		for x := range d.PanelWidthPx {
			if x+7 < d.PanelWidthPx && panel.NRGBAAt(x, y) != panel.NRGBAAt(x+7, y) {
				t.Fatalf("not periodic in x at (%d,%d)", x, y)
			}
			if y+5 < d.PanelHeightPx && panel.NRGBAAt(x, y) != panel.NRGBAAt(x, y+5) {
				t.Fatalf("not periodic in y at (%d,%d)", x, y)
			}
		}
	}
}

func TestComposePanel_AdjacentPanelsContinue(t *testing.T) {
	scaled := testPattern(7, 5)
	d := smallLayout()
	step := d.StartX(2) - d.StartX(1) // 15 px

	left, err := ComposePanel(scaled, d, 1)
	if err != nil {
		t.Fatalf("ComposePanel(1): %v", err)
	}
	right, err := ComposePanel(scaled, d, 2)
	if err != nil {
		t.Fatalf("ComposePanel(2): %v", err)
	}
	// the overlap strip of panel 1 is the leading strip of panel 2
	for y := range d.PanelHeightPx {
		for x := 0; step+x < d.PanelWidthPx; x++ {
			if left.NRGBAAt(step+x, y) != right.NRGBAAt(x, y) {
				t.Fatalf("seam mismatch at x=%d y=%d", x, y)
			}
		}
	}
}

func TestComposePanel_Boundaries(t *testing.T) {
	scaled := testPattern(7, 5)
	d := smallLayout()

	for _, p := range []int{0, -1, d.NumPanels + 1} {
		if _, err := ComposePanel(scaled, d, p); !apperr.Is(err, apperr.KindInvalidPanel) {
			t.Fatalf("panel %d: err=%v want invalid panel", p, err)
		}
	}
	if _, err := ComposePanel(nil, d, 1); !apperr.Is(err, apperr.KindNoLayout) {
		t.Fatalf("nil pattern: err=%v want no layout", err)
	}
}

func TestComposePanel_Deterministic(t *testing.T) {
	scaled := testPattern(7, 5)
	d := smallLayout()

	a, err := ComposePanel(scaled, d, 3)
	if err != nil {
		t.Fatalf("ComposePanel: %v", err)
	}
	b, err := ComposePanel(scaled, d, 3)
	if err != nil {
		t.Fatalf("ComposePanel: %v", err)
	}
	if !bytes.Equal(a.Pix, b.Pix) {
		t.Fatal("same panel rendered differently")
	}
}

func TestScalePattern_DeterministicAndNonMutating(t *testing.T) {
	src := testPattern(40, 30)
	before := append([]byte(nil), src.Pix...)

	d, err := Calculate(40, 30, LayoutSpec{WallWidth: 20, WallHeight: 10, PanelWidth: 5, DPI: 5, Overlap: 1})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	a := ScalePattern(src, d)
	b := ScalePattern(src, d)

	if a.Bounds().Dx() != d.ScaledWidthPx || a.Bounds().Dy() != d.ScaledHeightPx {
		t.Fatalf("scaled bounds=%v want %dx%d", a.Bounds(), d.ScaledWidthPx, d.ScaledHeightPx)
	}
	if !bytes.Equal(a.Pix, b.Pix) {
		t.Fatal("scaler is not deterministic")
	}
	if !bytes.Equal(src.Pix, before) {
		t.Fatal("scaler mutated its source")
	}
}

func TestScalePattern_SameSizeCopies(t *testing.T) {
	src := testPattern(8, 8)
	out := ScalePattern(src, Dimensions{ScaledWidthPx: 8, ScaledHeightPx: 8})
	if !bytes.Equal(out.Pix, src.Pix) {
		t.Fatal("identity scale changed pixels")
	}
	out.Pix[0] ^= 0xff
	if out.Pix[0] == src.Pix[0] {
		t.Fatal("identity scale shares the source buffer")
	}
}
