package pmtiles

import (
	"encoding/binary"
	"errors"
	"io"
	"maps"
	"math/rand/v2"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEncodeDecodeTileID(t *testing.T) {
	for z := range 8 {
		for x := range 1 << z {
			for y := range 1 << z {
				id := TileID{X: uint32(x), Y: uint32(y), Z: uint32(z)}
				if diff := cmp.Diff(id, decodeTileID(encodeTileID(id))); diff != "" {
					t.Errorf("decodeTileID(encodeTileID(%v)) mismatch (-want+got):\n%v", id, diff)
				}
			}
		}
	}
	for z := range 31 {
		id := TileID{X: uint32(1<<z) - 1, Y: uint32(1<<z) - 1, Z: uint32(z)}
		if diff := cmp.Diff(id, decodeTileID(encodeTileID(id))); diff != "" {
			t.Errorf("decodeTileID(encodeTileID(%v)) mismatch (-want+got):\n%v", id, diff)
		}
	}
}

func TestDirectoryRoundTrip(t *testing.T) {
	entries := []entry{
		{code: 0, offset: 0, length: 10, runLength: 1},
		{code: 1, offset: 10, length: 5, runLength: 3},
		{code: 7, offset: 0, length: 10, runLength: 1},
		{code: 100, offset: 15, length: 1, runLength: 0},
	}
	got, err := deserializeDirectory(serializeDirectory(entries))
	if err != nil {
		t.Fatalf("deserializeDirectory failed: %v", err)
	}
	if diff := cmp.Diff(entries, got, cmp.AllowUnexported(entry{})); diff != "" {
		t.Errorf("directory mismatch (-want+got):\n%v", diff)
	}
}

func TestCompactEntries(t *testing.T) {
	entries := []entry{
		{code: 1, offset: 0, length: 4, runLength: 1},
		{code: 2, offset: 0, length: 4, runLength: 1},
		{code: 3, offset: 4, length: 4, runLength: 1},
		{code: 5, offset: 4, length: 4, runLength: 1},
	}
	want := []entry{
		{code: 1, offset: 0, length: 4, runLength: 2},
		{code: 3, offset: 4, length: 4, runLength: 1},
		{code: 5, offset: 4, length: 4, runLength: 1},
	}
	if diff := cmp.Diff(want, compactEntries(entries), cmp.AllowUnexported(entry{})); diff != "" {
		t.Errorf("compactEntries mismatch (-want+got):\n%v", diff)
	}
}

func TestWriterReader(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "tiles.pmtiles")
	metadata := []byte(`{"tileset":"tileset.json"}`)

	tiles := map[TileID][]byte{
		{X: 0, Y: 0, Z: 0}: []byte("root"),
		{X: 0, Y: 0, Z: 1}: []byte("same"),
		{X: 1, Y: 0, Z: 1}: []byte("same"),
		{X: 1, Y: 1, Z: 1}: []byte("tile111"),
		{X: 5, Y: 3, Z: 4}: []byte("tile534"),
	}

	w, err := NewWriter(filePath, WithMetadata(metadata))
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	defer w.Close()
	for id, data := range tiles {
		if err := w.WriteTile(id, data); err != nil {
			t.Fatalf("WriteTile(%v) failed: %v", id, err)
		}
	}
	if err := w.Finalize(); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	r, err := OpenFile(filePath)
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	defer r.Close()

	gotMetadata, err := r.ReadMetadata()
	if err != nil {
		t.Fatalf("ReadMetadata failed: %v", err)
	}
	if diff := cmp.Diff(metadata, gotMetadata); diff != "" {
		t.Errorf("ReadMetadata mismatch (-want+got):\n%v", diff)
	}

	if got, want := r.Header().Contents, uint64(4); got != want {
		t.Errorf("Contents = %v, want = %v", got, want)
	}

	for id, data := range tiles {
		got, err := r.ReadTile(id)
		if err != nil {
			t.Errorf("ReadTile(%v) failed: %v", id, err)
			continue
		}
		if !cmp.Equal(data, got) {
			t.Errorf("ReadTile(%v) = %q, want = %q", id, got, data)
		}
	}

	missing, err := r.ReadTile(TileID{X: 9, Y: 9, Z: 9})
	if err != nil {
		t.Errorf("ReadTile(missing tile) failed: %v", err)
	}
	if len(missing) != 0 {
		t.Errorf("ReadTile(missing tile) = %v bytes, want empty", len(missing))
	}

	visited := make(map[TileID][]byte)
	err = r.VisitTiles(func(id TileID, data []byte) error {
		visited[id] = data
		return nil
	})
	if err != nil {
		t.Fatalf("VisitTiles failed: %v", err)
	}
	if !maps.EqualFunc(tiles, visited, func(a, b []byte) bool { return string(a) == string(b) }) {
		t.Errorf("VisitTiles data mismatch")
	}
}

func TestLeafDirectories(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	entries := make([]entry, 0, 60000)
	code := uint64(0)
	for range 60000 {
		code += rng.Uint64N(1000) + 1
		entries = append(entries, entry{
			code:      code,
			offset:    rng.Uint64N(1 << 40),
			length:    uint32(rng.IntN(1<<20) + 1),
			runLength: 1,
		})
	}
	root, leaves := serializeAll(entries)
	if len(root) > rootDirMaxLength {
		t.Fatalf("root directory is %d bytes, want at most %d", len(root), rootDirMaxLength)
	}
	if len(leaves) == 0 {
		t.Fatal("expected leaf directories")
	}

	rootData, err := decompress(root, CompressionGzip)
	if err != nil {
		t.Fatalf("decompress failed: %v", err)
	}
	rootEntries, err := deserializeDirectory(rootData)
	if err != nil {
		t.Fatalf("deserializeDirectory failed: %v", err)
	}
	for _, e := range rootEntries {
		if e.runLength != 0 {
			t.Fatalf("root entry %+v is not a leaf pointer", e)
		}
	}
}

func TestHeader(t *testing.T) {
	if got, want := binary.Size(Header{}), HeaderLength; got != want {
		t.Fatalf("binary.Size(Header{}) = %v, want = %v", got, want)
	}

	header := newHeader()
	header.TileData = Section{Offset: 16384, Length: 42}
	header.Bounds = Bounds{MinLon: -1800000000, MinLat: -850000000, MaxLon: 1800000000, MaxLat: 850000000}
	data, err := header.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(data[:7]), "PMTiles"; got != want {
		t.Errorf("magic = %q, want = %q", got, want)
	}
	var got Header
	if err := got.UnmarshalBinary(data); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(header, got); diff != "" {
		t.Errorf("header mismatch (-want+got):\n%v", diff)
	}

	if err := got.UnmarshalBinary([]byte("foobar")); !errors.Is(err, ErrInvalidHeader) || !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("UnmarshalBinary(short) error = %v, want %v and %v", err, ErrInvalidHeader, io.ErrUnexpectedEOF)
	}

	v2 := header
	v2.Magic = magic | 2<<56
	data, err = v2.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	if err := got.UnmarshalBinary(data); !errors.Is(err, ErrInvalidVersion) {
		t.Errorf("UnmarshalBinary(v2) error = %v, want = %v", err, ErrInvalidVersion)
	}
}
