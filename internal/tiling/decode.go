package tiling

import (
	"bytes"
	"errors"
	"image"
	"path/filepath"
	"strings"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/tiff"

	"github.com/mohammed-shakir/wallpanels/internal/apperr"
)

// Pattern is a decoded source artwork.
type Pattern struct {
	Image  image.Image
	Width  int
	Height int
	Format string
}

var allowedExt = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".tif":  {},
	".tiff": {},
}

var allowedFormats = map[string]struct{}{
	"png":  {},
	"jpeg": {},
	"tiff": {},
}

// CheckExtension is a cheap pre-filter on the upload's filename. The decoded
// content is what DecodePattern trusts.
func CheckExtension(filename string) error {
	if strings.TrimSpace(filename) == "" {
		return apperr.New(apperr.KindInvalidRequest, "No file selected")
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := allowedExt[ext]; !ok {
		return apperr.New(apperr.KindUnsupportedFormat, "Invalid file type. Allowed: png, jpg, jpeg, tif, tiff")
	}
	return nil
}

// DecodePattern sniffs and decodes an uploaded pattern. The sniffed format
// must be png, jpeg or tiff whatever the filename said. Images larger than
// maxPixels are refused before their pixels are decoded; a non-positive
// maxPixels disables that check.
func DecodePattern(data []byte, maxPixels int64) (Pattern, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return Pattern{}, apperr.Wrap(apperr.KindDecode, err, "file is not a recognized image")
		}
		return Pattern{}, apperr.Wrap(apperr.KindDecode, err, "could not read image header")
	}
	if _, ok := allowedFormats[format]; !ok {
		return Pattern{}, apperr.New(apperr.KindUnsupportedFormat, "image content is %s; allowed: png, jpeg, tiff", format)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Pattern{}, apperr.New(apperr.KindDecode, "image has no pixels")
	}
	if maxPixels > 0 && ExceedsPixels(cfg.Width, cfg.Height, maxPixels) {
		return Pattern{}, apperr.New(apperr.KindInvalidLayout, "pattern of %dx%d px exceeds the %d pixel limit", cfg.Width, cfg.Height, maxPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Pattern{}, apperr.Wrap(apperr.KindDecode, err, "could not decode %s image", format)
	}
	b := img.Bounds()
	return Pattern{Image: img, Width: b.Dx(), Height: b.Dy(), Format: format}, nil
}
