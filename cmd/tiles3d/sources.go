package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/eak1mov/go-tiles3d/source"
)

const defaultTilesetURI = "tileset.json"

func deduceFormat(format, filePath string) string {
	if format != "" {
		return format
	}
	if info, err := os.Stat(filePath); err == nil && info.IsDir() {
		return "dir"
	}
	switch {
	case strings.HasSuffix(filePath, ".pmtiles"):
		return "pmtiles"
	case strings.HasSuffix(filePath, ".3dtiles"), strings.HasSuffix(filePath, ".sqlite"):
		return "sqlite"
	}
	return format
}

// openedSource is a content source together with the URI of its tileset document.
type openedSource struct {
	source.Source
	tilesetURI string
	close      func() error
}

func openSource(format, path, tilesetURI string) (*openedSource, error) {
	s := &openedSource{tilesetURI: tilesetURI, close: func() error { return nil }}
	switch deduceFormat(format, path) {
	case "dir":
		s.Source = source.NewDir(path)
	case "pmtiles":
		a, err := source.OpenArchive(path)
		if err != nil {
			return nil, err
		}
		s.Source, s.close = a, a.Close
		if s.tilesetURI == "" {
			s.tilesetURI = a.TilesetURI()
		}
	case "sqlite":
		db, err := source.NewSQLite(path)
		if err != nil {
			return nil, err
		}
		s.Source, s.close = db, db.Close
	default:
		return nil, fmt.Errorf("invalid input format %q for %q", format, path)
	}
	if s.tilesetURI == "" {
		s.tilesetURI = defaultTilesetURI
	}
	return s, nil
}
