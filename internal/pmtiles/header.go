// Package pmtiles reads and writes PMTiles v3 archives. Archives hold tile
// payloads addressed by z/x/y and a JSON metadata blob.
package pmtiles

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrInvalidHeader  = errors.New("tiles3d: invalid pmtiles header")
	ErrInvalidVersion = errors.New("tiles3d: unsupported pmtiles version")
)

type Compression uint8

// Only None and Gzip are produced or understood; the others are listed to
// keep the numbering of the format.
const (
	CompressionUnknown Compression = iota
	CompressionNone
	CompressionGzip
	CompressionBrotli
	CompressionZstd
)

// tileTypeUnknown is the only tile type written: 3D Tiles payloads carry
// their own magic.
const tileTypeUnknown uint8 = 0

// "PMTiles" followed by the version byte.
const (
	magic   uint64 = 0x73656C69544D50
	magicV3        = magic | 3<<56
)

const (
	HeaderLength = 127

	// The header and the root directory share the first 16 KiB.
	rootDirOffset    = HeaderLength
	tileDataMinStart = 16 << 10
	rootDirMaxLength = tileDataMinStart - HeaderLength
)

// Section locates a part of the archive.
type Section struct {
	Offset uint64
	Length uint64
}

// Bounds is a longitude/latitude box in units of 1e-7 degrees.
type Bounds struct {
	MinLon, MinLat int32
	MaxLon, MaxLat int32
}

// Header is the fixed little-endian archive header. Field order is the
// on-disk order.
type Header struct {
	Magic     uint64
	Root      Section
	Metadata  Section
	Leaves    Section
	TileData  Section
	Addressed uint64 // tiles with a payload
	Entries   uint64 // directory entries, run-length encoded
	Contents  uint64 // distinct payloads after dedup

	Clustered           bool
	InternalCompression Compression
	TileCompression     Compression
	TileType            uint8
	MinZoom, MaxZoom    uint8
	Bounds              Bounds
	CenterZoom          uint8
	CenterLon           int32
	CenterLat           int32
}

func newHeader() Header {
	return Header{
		Magic:               magicV3,
		Clustered:           true,
		InternalCompression: CompressionGzip,
		TileCompression:     CompressionNone,
		TileType:            tileTypeUnknown,
	}
}

func (h *Header) MarshalBinary() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, HeaderLength))
	if err := binary.Write(buf, binary.LittleEndian, h); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (h *Header) UnmarshalBinary(data []byte) error {
	var parsed Header
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &parsed); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidHeader, err)
	}
	switch {
	case parsed.Magic&(1<<56-1) != magic:
		return ErrInvalidHeader
	case parsed.Magic != magicV3:
		return fmt.Errorf("%w: %d", ErrInvalidVersion, parsed.Magic>>56)
	}
	*h = parsed
	return nil
}
