package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeduceFormat(t *testing.T) {
	dir := t.TempDir()
	for _, tc := range []struct {
		format, path, want string
	}{
		{"", dir, "dir"},
		{"", "city.pmtiles", "pmtiles"},
		{"", "city.3dtiles", "sqlite"},
		{"", "city.sqlite", "sqlite"},
		{"sqlite", "city.db", "sqlite"},
		{"", "city.zip", ""},
	} {
		if got := deduceFormat(tc.format, tc.path); got != tc.want {
			t.Errorf("deduceFormat(%q, %q) = %q, want = %q", tc.format, tc.path, got, tc.want)
		}
	}
}

func TestOpenSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tileset.json"), []byte(`{}`), 0o644))

	src, err := openSource("", dir, "")
	require.NoError(t, err)
	defer src.close()
	if got, want := src.tilesetURI, defaultTilesetURI; got != want {
		t.Errorf("tilesetURI = %q, want = %q", got, want)
	}
	data, _, err := src.Data(context.Background(), src.tilesetURI)
	require.NoError(t, err)
	if got, want := string(data), `{}`; got != want {
		t.Errorf("Data() = %q, want = %q", got, want)
	}

	if _, err := openSource("", filepath.Join(dir, "tiles.zip"), ""); err == nil {
		t.Error("openSource(zip) succeeded, want error")
	}
}
