package tiling

import (
	"bytes"
	"image"
	"image/gif"
	"image/png"
	"math"
	"testing"

	"github.com/mohammed-shakir/wallpanels/internal/apperr"
)

func TestEncodePNG_PixelsAndDPI(t *testing.T) {
	img := testPattern(13, 9)

	var buf bytes.Buffer
	if err := EncodePNG(&buf, img, 150); err != nil {
		t.Fatalf("EncodePNG: %v", err)
	}

	dpi, ok, err := DecodeDPI(buf.Bytes())
	if err != nil || !ok {
		t.Fatalf("DecodeDPI ok=%v err=%v", ok, err)
	}
	if math.Abs(dpi-150) > 0.05 {
		t.Fatalf("dpi=%v want ~150", dpi)
	}

	decoded, err := png.Decode(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}
	got, ok := decoded.(*image.NRGBA)
	if !ok {
		t.Fatalf("decoded type %T want *image.NRGBA", decoded)
	}
	if !bytes.Equal(got.Pix, img.Pix) {
		t.Fatal("round-tripped pixels differ")
	}
}

func TestDecodeDPI_MissingChunk(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, testPattern(3, 3)); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	if _, ok, err := DecodeDPI(buf.Bytes()); ok || err != nil {
		t.Fatalf("ok=%v err=%v want absent without error", ok, err)
	}
	if _, _, err := DecodeDPI([]byte("GIF89a")); err == nil {
		t.Fatal("expected error for non-png input")
	}
}

func TestCheckExtension(t *testing.T) {
	tests := []struct {
		name string
		kind apperr.Kind
	}{
		{"wall.png", ""},
		{"WALL.JPG", ""},
		{"a.b.jpeg", ""},
		{"scan.tif", ""},
		{"scan.TIFF", ""},
		{"anim.gif", apperr.KindUnsupportedFormat},
		{"noext", apperr.KindUnsupportedFormat},
		{"", apperr.KindInvalidRequest},
	}
	for _, tt := range tests {
		err := CheckExtension(tt.name)
		if tt.kind == "" {
			if err != nil {
				t.Fatalf("CheckExtension(%q)=%v", tt.name, err)
			}
			continue
		}
		if !apperr.Is(err, tt.kind) {
			t.Fatalf("CheckExtension(%q)=%v want %s", tt.name, err, tt.kind)
		}
	}
}

func TestDecodePattern_SniffsContent(t *testing.T) {
	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, testPattern(6, 4)); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	p, err := DecodePattern(pngBuf.Bytes(), 0)
	if err != nil {
		t.Fatalf("DecodePattern(png): %v", err)
	}
	if p.Format != "png" || p.Width != 6 || p.Height != 4 {
		t.Fatalf("pattern=%+v", p)
	}

	var gifBuf bytes.Buffer
	if err := gif.Encode(&gifBuf, testPattern(6, 4), nil); err != nil {
		t.Fatalf("gif.Encode: %v", err)
	}
	if _, err := DecodePattern(gifBuf.Bytes(), 0); !apperr.Is(err, apperr.KindUnsupportedFormat) {
		t.Fatalf("gif content: err=%v want unsupported format", err)
	}

	if _, err := DecodePattern([]byte("definitely not an image"), 0); !apperr.Is(err, apperr.KindDecode) {
		t.Fatalf("garbage: err=%v want decode error", err)
	}

	truncated := pngBuf.Bytes()[:len(pngBuf.Bytes())/2]
	if _, err := DecodePattern(truncated, 0); !apperr.Is(err, apperr.KindDecode) {
		t.Fatalf("truncated: err=%v want decode error", err)
	}
}

func TestDecodePattern_PixelLimit(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, testPattern(20, 20)); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	if _, err := DecodePattern(buf.Bytes(), 399); !apperr.Is(err, apperr.KindInvalidLayout) {
		t.Fatalf("err=%v want invalid layout", err)
	}
	if _, err := DecodePattern(buf.Bytes(), 400); err != nil {
		t.Fatalf("at limit: %v", err)
	}
}

func TestFingerprint(t *testing.T) {
	data := []byte("pattern-bytes")
	s := LayoutSpec{WallWidth: 120, WallHeight: 96, PanelWidth: 50, DPI: 150, Overlap: 2}

	if Fingerprint(data, s) != Fingerprint(append([]byte(nil), data...), s) {
		t.Fatal("fingerprint not stable")
	}
	s2 := s
	s2.DPI = 300
	if Fingerprint(data, s) == Fingerprint(data, s2) {
		t.Fatal("layout change did not change fingerprint")
	}
	if Fingerprint(data, s) == Fingerprint([]byte("other"), s) {
		t.Fatal("pattern change did not change fingerprint")
	}
}
