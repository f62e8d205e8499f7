package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/eak1mov/go-tiles3d/internal/pmtiles"
)

var ErrInvalidArchive = errors.New("tiles3d: invalid archive")

// ArchiveMetadata is stored as the PMTiles metadata of a packed tileset.
type ArchiveMetadata struct {
	// TilesetURI is the URI the tileset document is served under.
	TilesetURI string `json:"tilesetUri"`
	// Pattern is the template of every content URI in the archive.
	Pattern string `json:"pattern"`
	// Tileset is the tileset document.
	Tileset json.RawMessage `json:"tileset"`
}

// Archive serves a tileset packed into a PMTiles archive. Content URIs follow
// the pattern recorded in the archive metadata.
type Archive struct {
	Listeners

	reader   *pmtiles.Reader
	metadata ArchiveMetadata
	pattern  *Pattern
}

func OpenArchive(filePath string) (*Archive, error) {
	reader, err := pmtiles.OpenFile(filePath)
	if err != nil {
		return nil, err
	}
	a, err := newArchive(reader)
	if err != nil {
		reader.Close()
		return nil, err
	}
	return a, nil
}

func newArchive(reader *pmtiles.Reader) (*Archive, error) {
	data, err := reader.ReadMetadata()
	if err != nil {
		return nil, err
	}
	var metadata ArchiveMetadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArchive, err)
	}
	if metadata.TilesetURI == "" || len(metadata.Tileset) == 0 {
		return nil, fmt.Errorf("%w: missing tileset", ErrInvalidArchive)
	}
	pattern, err := NewPattern(metadata.Pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArchive, err)
	}
	return &Archive{reader: reader, metadata: metadata, pattern: pattern}, nil
}

func (a *Archive) Close() error {
	return a.reader.Close()
}

// TilesetURI returns the URI of the packed tileset document.
func (a *Archive) TilesetURI() string { return a.metadata.TilesetURI }

func (a *Archive) Data(_ context.Context, uri string) ([]byte, Version, error) {
	if uri == a.metadata.TilesetURI {
		return a.metadata.Tileset, 0, nil
	}
	id, ok := a.pattern.Match(uri)
	if !ok {
		return nil, 0, fmt.Errorf("%w: %q does not match %q", ErrInvalidURI, uri, a.pattern)
	}
	data, err := a.reader.ReadTile(id)
	if err != nil {
		return nil, 0, err
	}
	if len(data) == 0 {
		return nil, 0, fmt.Errorf("%w: %q", ErrNotFound, uri)
	}
	return data, 0, nil
}

// Visit calls the visitor for every content payload. The tileset document is
// not visited.
func (a *Archive) Visit(visitor func(uri string, data []byte) error) error {
	return a.reader.VisitTiles(func(id pmtiles.TileID, data []byte) error {
		return visitor(a.pattern.Format(id), data)
	})
}

func (a *Archive) Connect(context.Context) error { return nil }
func (a *Archive) Disconnect() error             { return nil }

// ArchiveWriter packs a tileset into a PMTiles archive.
type ArchiveWriter struct {
	writer  *pmtiles.Writer
	pattern *Pattern
}

// NewArchiveWriter creates the archive. The tileset document and pattern are
// recorded in the archive metadata.
func NewArchiveWriter(filePath, tilesetURI string, tileset []byte, opts ...Option) (*ArchiveWriter, error) {
	c := newConfig(opts)
	pattern, err := NewPattern(c.Pattern)
	if err != nil {
		return nil, err
	}
	metadata, err := json.Marshal(ArchiveMetadata{
		TilesetURI: tilesetURI,
		Pattern:    c.Pattern,
		Tileset:    tileset,
	})
	if err != nil {
		return nil, err
	}
	w, err := pmtiles.NewWriter(filePath, pmtiles.WithMetadata(metadata), pmtiles.WithLogger(c.Logger))
	if err != nil {
		return nil, err
	}
	return &ArchiveWriter{writer: w, pattern: pattern}, nil
}

// Write stores a payload. The URI must follow the archive pattern.
func (w *ArchiveWriter) Write(uri string, data []byte) error {
	id, ok := w.pattern.Match(uri)
	if !ok {
		return fmt.Errorf("%w: %q does not match %q", ErrInvalidURI, uri, w.pattern)
	}
	return w.writer.WriteTile(id, data)
}

func (w *ArchiveWriter) Finalize() error { return w.writer.Finalize() }
func (w *ArchiveWriter) Close() error    { return w.writer.Close() }
