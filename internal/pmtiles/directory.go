package pmtiles

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"slices"
	"sort"
)

// entry is a directory record. A zero run length points at a leaf directory.
type entry struct {
	code      uint64
	offset    uint64
	length    uint32
	runLength uint32
}

func serializeDirectory(entries []entry) []byte {
	buffer := binary.AppendUvarint(nil, uint64(len(entries)))

	lastCode := uint64(0)
	for _, e := range entries {
		buffer = binary.AppendUvarint(buffer, e.code-lastCode)
		lastCode = e.code
	}
	for _, e := range entries {
		buffer = binary.AppendUvarint(buffer, uint64(e.runLength))
	}
	for _, e := range entries {
		buffer = binary.AppendUvarint(buffer, uint64(e.length))
	}
	nextOffset := uint64(0)
	for i, e := range entries {
		if i > 0 && e.offset == nextOffset {
			buffer = binary.AppendUvarint(buffer, 0)
		} else {
			buffer = binary.AppendUvarint(buffer, e.offset+1)
		}
		nextOffset = e.offset + uint64(e.length)
	}
	return buffer
}

func deserializeDirectory(data []byte) ([]entry, error) {
	r := bytes.NewReader(data)
	var err error
	next := func() uint64 {
		if err != nil {
			return 0
		}
		var v uint64
		v, err = binary.ReadUvarint(r)
		return v
	}

	n := next()
	if err != nil {
		return nil, err
	}
	if n > uint64(len(data)) {
		return nil, fmt.Errorf("%w: directory of %d entries in %d bytes", ErrInvalidHeader, n, len(data))
	}
	entries := make([]entry, n)

	lastCode := uint64(0)
	for i := range entries {
		lastCode += next()
		entries[i].code = lastCode
	}
	for i := range entries {
		entries[i].runLength = uint32(next())
	}
	for i := range entries {
		entries[i].length = uint32(next())
	}
	for i := range entries {
		v := next()
		if v == 0 && i > 0 {
			entries[i].offset = entries[i-1].offset + uint64(entries[i-1].length)
		} else {
			entries[i].offset = v - 1
		}
	}
	return entries, err
}

// compactEntries merges consecutive entries pointing at the same payload into runs.
func compactEntries(entries []entry) []entry {
	if len(entries) == 0 {
		return entries
	}
	w := 0
	for _, e := range entries[1:] {
		last := &entries[w]
		if e.offset == last.offset && e.code == last.code+uint64(last.runLength) {
			last.runLength++
		} else {
			w++
			entries[w] = e
		}
	}
	return entries[:w+1]
}

func findEntry(entries []entry, code uint64) (entry, bool) {
	i := sort.Search(len(entries), func(i int) bool {
		return entries[i].code > code
	})
	if i == 0 {
		return entry{}, false
	}
	e := entries[i-1]
	if e.runLength == 0 || code < e.code+uint64(e.runLength) {
		return e, true
	}
	return entry{}, false
}

// serializeAll splits entries into a root directory that fits the header
// region and as many leaf directories as needed.
func serializeAll(entries []entry) (root, leaves []byte) {
	root = compress(serializeDirectory(entries))
	if len(entries) == 0 || len(root) <= rootDirMaxLength {
		return root, nil
	}

	count := float64(len(entries))
	entrySize := float64(len(root)) / count
	maxRootEntries := float64(rootDirMaxLength) * 0.9 / entrySize
	leafSize := max(count/maxRootEntries, 4096, math.Sqrt(count))

	for len(root) > rootDirMaxLength {
		rootEntries := make([]entry, 0)
		leaves = leaves[:0]
		for chunk := range slices.Chunk(entries, int(leafSize)) {
			leaf := compress(serializeDirectory(chunk))
			rootEntries = append(rootEntries, entry{
				code:   chunk[0].code,
				offset: uint64(len(leaves)),
				length: uint32(len(leaf)),
			})
			leaves = append(leaves, leaf...)
		}
		root = compress(serializeDirectory(rootEntries))
		leafSize *= 1.1
	}
	return root, leaves
}

func compress(data []byte) []byte {
	var buffer bytes.Buffer
	w, _ := gzip.NewWriterLevel(&buffer, gzip.BestCompression)
	w.Write(data)
	w.Close()
	return buffer.Bytes()
}

func decompress(data []byte, compression Compression) ([]byte, error) {
	switch compression {
	case CompressionNone:
		return data, nil
	case CompressionGzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decompress: %w", err)
		}
		defer r.Close()
		result, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress: %w", err)
		}
		return result, nil
	}
	return nil, fmt.Errorf("compression not supported (%v)", compression)
}
