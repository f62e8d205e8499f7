package content

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrUnsupportedFormat = errors.New("tiles3d: unsupported content format")
	ErrInvalidPayload    = errors.New("tiles3d: invalid content payload")
)

type Format uint8

const (
	FormatUnknown Format = iota
	FormatB3DM
	FormatI3DM
	FormatPNTS
	FormatCMPT
	FormatGLB
	FormatTileset
)

func (f Format) String() string {
	switch f {
	case FormatB3DM:
		return "b3dm"
	case FormatI3DM:
		return "i3dm"
	case FormatPNTS:
		return "pnts"
	case FormatCMPT:
		return "cmpt"
	case FormatGLB:
		return "glb"
	case FormatTileset:
		return "tileset"
	}
	return "unknown"
}

// Sniff detects the payload format from its magic bytes.
func Sniff(payload []byte) (Format, error) {
	if len(payload) >= 4 {
		switch string(payload[:4]) {
		case "b3dm":
			return FormatB3DM, nil
		case "i3dm":
			return FormatI3DM, nil
		case "pnts":
			return FormatPNTS, nil
		case "cmpt":
			return FormatCMPT, nil
		case "glTF":
			return FormatGLB, nil
		}
	}
	if trimmed := bytes.TrimSpace(payload); len(trimmed) > 0 && trimmed[0] == '{' {
		return FormatTileset, nil
	}
	return FormatUnknown, ErrUnsupportedFormat
}

// tileHeader is the common header of b3dm, i3dm and pnts payloads.
type tileHeader struct {
	Magic                        [4]byte
	Version                      uint32
	ByteLength                   uint32
	FeatureTableJSONByteLength   uint32
	FeatureTableBinaryByteLength uint32
	BatchTableJSONByteLength     uint32
	BatchTableBinaryByteLength   uint32
}

const (
	tileHeaderLength = 28
	i3dmHeaderLength = 32
	cmptHeaderLength = 16
	glbHeaderLength  = 12
)

type featureTable struct {
	BatchLength     int `json:"BATCH_LENGTH"`
	InstancesLength int `json:"INSTANCES_LENGTH"`
	PointsLength    int `json:"POINTS_LENGTH"`
}

// parsedTile is the header information of a single (non-composite) tile.
type parsedTile struct {
	format       Format
	featureTable featureTable
	gltfEmbedded bool
	gltf         []byte
}

func parseTile(payload []byte, format Format) (parsedTile, error) {
	if format == FormatGLB {
		if err := checkGLB(payload); err != nil {
			return parsedTile{}, err
		}
		return parsedTile{format: format, gltf: payload, gltfEmbedded: true}, nil
	}

	headerLength := tileHeaderLength
	if format == FormatI3DM {
		headerLength = i3dmHeaderLength
	}
	if len(payload) < headerLength {
		return parsedTile{}, fmt.Errorf("%w: %v header truncated", ErrInvalidPayload, format)
	}

	var h tileHeader
	binary.Read(bytes.NewReader(payload), binary.LittleEndian, &h)
	if h.Version != 1 {
		return parsedTile{}, fmt.Errorf("%w: %v version %d", ErrInvalidPayload, format, h.Version)
	}
	if int(h.ByteLength) > len(payload) || int(h.ByteLength) < headerLength {
		return parsedTile{}, fmt.Errorf("%w: %v byte length %d of %d", ErrInvalidPayload, format, h.ByteLength, len(payload))
	}

	offset := uint64(headerLength)
	tablesEnd := offset + uint64(h.FeatureTableJSONByteLength) + uint64(h.FeatureTableBinaryByteLength) +
		uint64(h.BatchTableJSONByteLength) + uint64(h.BatchTableBinaryByteLength)
	if tablesEnd > uint64(h.ByteLength) {
		return parsedTile{}, fmt.Errorf("%w: %v tables exceed byte length", ErrInvalidPayload, format)
	}

	t := parsedTile{format: format}
	if h.FeatureTableJSONByteLength > 0 {
		raw := payload[offset : offset+uint64(h.FeatureTableJSONByteLength)]
		if err := json.Unmarshal(bytes.TrimRight(raw, " \x00"), &t.featureTable); err != nil {
			return parsedTile{}, fmt.Errorf("%w: %v feature table: %w", ErrInvalidPayload, format, err)
		}
	}

	body := payload[tablesEnd:h.ByteLength]
	switch format {
	case FormatB3DM:
		t.gltf, t.gltfEmbedded = body, true
	case FormatI3DM:
		// gltfFormat 1 embeds the model, 0 references it by uri
		t.gltfEmbedded = binary.LittleEndian.Uint32(payload[28:32]) == 1
		t.gltf = body
	}
	if t.gltfEmbedded && len(t.gltf) > 0 {
		if err := checkGLB(t.gltf); err != nil {
			return parsedTile{}, err
		}
	}
	return t, nil
}

func checkGLB(data []byte) error {
	if len(data) < glbHeaderLength || string(data[:4]) != "glTF" {
		return fmt.Errorf("%w: glb magic", ErrInvalidPayload)
	}
	if version := binary.LittleEndian.Uint32(data[4:8]); version != 2 {
		return fmt.Errorf("%w: glb version %d", ErrInvalidPayload, version)
	}
	if length := binary.LittleEndian.Uint32(data[8:12]); int(length) > len(data) {
		return fmt.Errorf("%w: glb length %d of %d", ErrInvalidPayload, length, len(data))
	}
	return nil
}

// splitComposite returns the inner tiles of a cmpt payload.
func splitComposite(payload []byte) ([][]byte, error) {
	if len(payload) < cmptHeaderLength {
		return nil, fmt.Errorf("%w: cmpt header truncated", ErrInvalidPayload)
	}
	version := binary.LittleEndian.Uint32(payload[4:8])
	byteLength := binary.LittleEndian.Uint32(payload[8:12])
	tilesLength := binary.LittleEndian.Uint32(payload[12:16])
	if version != 1 {
		return nil, fmt.Errorf("%w: cmpt version %d", ErrInvalidPayload, version)
	}
	if int(byteLength) > len(payload) {
		return nil, fmt.Errorf("%w: cmpt byte length %d of %d", ErrInvalidPayload, byteLength, len(payload))
	}

	tiles := make([][]byte, 0, tilesLength)
	offset := uint32(cmptHeaderLength)
	for range tilesLength {
		if offset+12 > byteLength {
			return nil, fmt.Errorf("%w: cmpt inner tile truncated", ErrInvalidPayload)
		}
		length := binary.LittleEndian.Uint32(payload[offset+8 : offset+12])
		if length < 12 || uint64(offset)+uint64(length) > uint64(byteLength) {
			return nil, fmt.Errorf("%w: cmpt inner tile length %d", ErrInvalidPayload, length)
		}
		tiles = append(tiles, payload[offset:offset+length])
		offset += length
	}
	return tiles, nil
}
