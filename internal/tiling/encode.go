package tiling

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"image"
	"image/png"
	"io"
	"math"
)

const (
	pngSignature  = "\x89PNG\r\n\x1a\n"
	metresPerInch = 0.0254
	// signature + IHDR chunk (length, type, 13 data bytes, crc)
	ihdrEnd       = 8 + 4 + 4 + 13 + 4
)

var pngEncoder = png.Encoder{CompressionLevel: png.DefaultCompression}

// EncodePNG writes img as a PNG with a pHYs chunk declaring dpi, so the
// printed output comes out at its intended physical size.
func EncodePNG(w io.Writer, img image.Image, dpi float64) error {
	var buf bytes.Buffer
	if err := pngEncoder.Encode(&buf, img); err != nil {
		return fmt.Errorf("png encode: %w", err)
	}
	raw := buf.Bytes()
	if len(raw) < ihdrEnd || string(raw[:8]) != pngSignature || string(raw[12:16]) != "IHDR" {
		return errors.New("png encode: unexpected header layout")
	}

	if _, err := w.Write(raw[:ihdrEnd]); err != nil {
		return fmt.Errorf("write png header: %w", err)
	}
	if _, err := w.Write(physChunk(dpi)); err != nil {
		return fmt.Errorf("write pHYs: %w", err)
	}
	if _, err := w.Write(raw[ihdrEnd:]); err != nil {
		return fmt.Errorf("write png body: %w", err)
	}
	return nil
}

func physChunk(dpi float64) []byte {
	ppm := uint32(math.Round(dpi / metresPerInch))

	chunk := make([]byte, 4+4+9+4)
	binary.BigEndian.PutUint32(chunk[0:4], 9)
	copy(chunk[4:8], "pHYs")
	binary.BigEndian.PutUint32(chunk[8:12], ppm)
	binary.BigEndian.PutUint32(chunk[12:16], ppm)
	chunk[16] = 1 // unit: metre
	binary.BigEndian.PutUint32(chunk[17:21], crc32.ChecksumIEEE(chunk[4:17]))
	return chunk
}

// DecodeDPI reads the horizontal resolution from a PNG's pHYs chunk. ok is
// false when the chunk is absent or not in metres.
func DecodeDPI(data []byte) (dpi float64, ok bool, err error) {
	if len(data) < 8 || string(data[:8]) != pngSignature {
		return 0, false, errors.New("not a png")
	}
	off := 8
	for off+8 <= len(data) {
		n := int(binary.BigEndian.Uint32(data[off : off+4]))
		typ := string(data[off+4 : off+8])
		end := off + 8 + n + 4
		if n < 0 || end > len(data) {
			return 0, false, fmt.Errorf("truncated %s chunk", typ)
		}
		switch typ {
		case "pHYs":
			if n != 9 {
				return 0, false, fmt.Errorf("pHYs length %d", n)
			}
			body := data[off+8 : off+8+n]
			if body[8] != 1 {
				return 0, false, nil
			}
			ppm := binary.BigEndian.Uint32(body[0:4])
			return float64(ppm) * metresPerInch, true, nil
		case "IDAT", "IEND":
			return 0, false, nil
		}
		off = end
	}
	return 0, false, nil
}
