package tiling

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint hashes the pattern bytes together with the layout. Equal
// fingerprints mean the generations render identical panels.
func Fingerprint(pattern []byte, s LayoutSpec) uint64 {
	d := xxhash.New()
	_, _ = d.Write(pattern)
	var buf [8]byte
	for _, v := range []float64{s.WallWidth, s.WallHeight, s.PanelWidth, s.DPI, s.Overlap} {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}
