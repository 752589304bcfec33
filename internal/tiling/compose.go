package tiling

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/mohammed-shakir/wallpanels/internal/apperr"
)

// ComposePanel renders panel p (1-based) by sampling scaled toroidally:
//
//	panel[x, y] = scaled[(StartX(p)+x) mod sw, y mod sh]
//
// Pixels are copied in maximal rectangles, one per wrap cell the panel
// crosses, which is pixel-identical to sampling each pixel on its own.
func ComposePanel(scaled *image.NRGBA, d Dimensions, p int) (*image.NRGBA, error) {
	if scaled == nil {
		return nil, apperr.NoLayout()
	}
	if !d.ValidPanel(p) {
		return nil, apperr.InvalidPanel(p, d.NumPanels)
	}

	sb := scaled.Bounds()
	sw, sh := sb.Dx(), sb.Dy()
	if sw <= 0 || sh <= 0 {
		return nil, apperr.New(apperr.KindInternal, "scaled pattern is empty")
	}

	dst := imaging.New(d.PanelWidthPx, d.PanelHeightPx, color.White)

	startX := d.StartX(p)
	for y := 0; y < d.PanelHeightPx; {
		sy := y % sh
		h := min(sh-sy, d.PanelHeightPx-y)
		for x := 0; x < d.PanelWidthPx; {
			sx := mod(startX+x, sw)
			w := min(sw-sx, d.PanelWidthPx-x)
			copyRect(dst, image.Pt(x, y), scaled, sb.Min.Add(image.Pt(sx, sy)), w, h)
			x += w
		}
		y += h
	}
	return dst, nil
}

// copyRect copies a w×h block of raw NRGBA bytes. draw.Draw would round-trip
// through premultiplied alpha and is not exact for translucent pixels.
func copyRect(dst *image.NRGBA, dp image.Point, src *image.NRGBA, sp image.Point, w, h int) {
	n := w * 4
	for row := range h {
		do := dst.PixOffset(dp.X, dp.Y+row)
		so := src.PixOffset(sp.X, sp.Y+row)
		copy(dst.Pix[do:do+n], src.Pix[so:so+n])
	}
}

// SampleAt returns the pattern pixel that lands at panel position (x, y)
// for a panel starting at startX. It is the per-pixel reference for
// ComposePanel.
func SampleAt(scaled *image.NRGBA, startX, x, y int) color.NRGBA {
	sb := scaled.Bounds()
	sx := mod(startX+x, sb.Dx())
	sy := mod(y, sb.Dy())
	return scaled.NRGBAAt(sb.Min.X+sx, sb.Min.Y+sy)
}

func mod(a, n int) int {
	r := a % n
	if r < 0 {
		r += n
	}
	return r
}
