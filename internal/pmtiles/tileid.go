package pmtiles

import (
	"math/bits"

	"github.com/google/hilbert"
)

// TileID addresses a tile of a quadtree level.
type TileID struct {
	X uint32
	Y uint32
	Z uint32
}

func (t TileID) Valid() bool {
	return t.Z < 32 && t.X < (1<<t.Z) && t.Y < (1<<t.Z)
}

// encodeTileID maps a tile to its position on the archive's hilbert curve.
func encodeTileID(id TileID) uint64 {
	h, _ := hilbert.NewHilbert(1 << id.Z)
	code, _ := h.MapInverse(int(id.X), int(id.Y))
	levelStart := (1<<(id.Z*2) - 1) / 3
	return uint64(code + levelStart)
}

func decodeTileID(code uint64) TileID {
	z := (bits.Len64(3*code+1) - 1) / 2
	levelStart := (1<<(z*2) - 1) / 3
	h, _ := hilbert.NewHilbert(1 << z)
	x, y, _ := h.Map(int(code) - levelStart)
	return TileID{X: uint32(x), Y: uint32(y), Z: uint32(z)}
}
