package source_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/eak1mov/go-tiles3d/internal/pmtiles"
	"github.com/eak1mov/go-tiles3d/source"
	"github.com/google/go-cmp/cmp"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	uris []string
	ch   chan string
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan string, 64)}
}

func (r *recorder) ContentChanged(uri string) {
	r.mu.Lock()
	r.uris = append(r.uris, uri)
	r.mu.Unlock()
	select {
	case r.ch <- uri:
	default:
	}
}

func (r *recorder) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.uris...)
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := source.NewMemory()
	rec := newRecorder()
	m.AddChangeListener(rec)
	m.AddChangeListener(rec)

	m.Set("a.b3dm", []byte("aaa"))
	data, v1, err := m.Data(ctx, "a.b3dm")
	require.NoError(t, err)
	if got, want := string(data), "aaa"; got != want {
		t.Errorf("Data() = %q, want = %q", got, want)
	}

	boom := errors.New("boom")
	m.Fail("a.b3dm", boom)
	_, v2, err := m.Data(ctx, "a.b3dm")
	if !errors.Is(err, boom) {
		t.Errorf("Data() error = %v, want = %v", err, boom)
	}
	if v2 <= v1 {
		t.Errorf("version did not increase: %v -> %v", v1, v2)
	}

	if _, _, err := m.Data(ctx, "missing"); !errors.Is(err, source.ErrNotFound) {
		t.Errorf("Data(missing) error = %v, want = %v", err, source.ErrNotFound)
	}
	if got, want := m.Fetches("a.b3dm"), 2; got != want {
		t.Errorf("Fetches() = %v, want = %v", got, want)
	}

	m.RemoveChangeListener(rec)
	m.Set("b.b3dm", nil)
	if diff := cmp.Diff([]string{"a.b3dm", "a.b3dm"}, rec.got()); diff != "" {
		t.Errorf("notifications mismatch (-want+got):\n%v", diff)
	}
}

func TestDir(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "tiles"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "tiles", "0.b3dm"), []byte("zero"), 0644))

	d := source.NewDir(root)

	data, version, err := d.Data(ctx, "tiles/0.b3dm")
	require.NoError(t, err)
	if got, want := string(data), "zero"; got != want {
		t.Errorf("Data() = %q, want = %q", got, want)
	}
	if version == 0 {
		t.Error("Data() version = 0, want modification time")
	}

	if _, _, err := d.Data(ctx, "tiles/1.b3dm"); !errors.Is(err, source.ErrNotFound) {
		t.Errorf("Data(missing) error = %v, want = %v", err, source.ErrNotFound)
	}
	if _, _, err := d.Data(ctx, "http://example.com/a.b3dm"); !errors.Is(err, source.ErrInvalidURI) {
		t.Errorf("Data(url) error = %v, want = %v", err, source.ErrInvalidURI)
	}

	// paths cannot escape the root
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(root), "outside.b3dm"), []byte("x"), 0644))
	if _, _, err := d.Data(ctx, "../outside.b3dm"); !errors.Is(err, source.ErrNotFound) {
		t.Errorf("Data(../outside) error = %v, want = %v", err, source.ErrNotFound)
	}

	var uris []string
	require.NoError(t, d.Visit(func(uri string, _ []byte) error {
		uris = append(uris, uri)
		return nil
	}))
	if diff := cmp.Diff([]string{"tiles/0.b3dm"}, uris); diff != "" {
		t.Errorf("Visit mismatch (-want+got):\n%v", diff)
	}
}

func TestDirWatch(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "tiles"), 0755))
	d := source.NewDir(root)
	rec := newRecorder()
	d.AddChangeListener(rec)

	require.NoError(t, d.Connect(context.Background()))
	defer d.Disconnect()

	require.NoError(t, os.WriteFile(filepath.Join(root, "tiles", "1.b3dm"), []byte("one"), 0644))

	timeout := time.After(5 * time.Second)
	for {
		select {
		case uri := <-rec.ch:
			if uri == "tiles/1.b3dm" {
				return
			}
		case <-timeout:
			t.Fatalf("no change notification, got %v", rec.got())
		}
	}
}

func TestSQLite(t *testing.T) {
	ctx := context.Background()
	filePath := filepath.Join(t.TempDir(), "tileset.3dtiles")
	payloads := map[string][]byte{
		"tileset.json": []byte(`{"asset":{"version":"1.0"}}`),
		"tiles/0.b3dm": []byte("zero"),
		"tiles/1.b3dm": []byte("one"),
	}

	w, err := source.NewSQLiteWriter(filePath)
	require.NoError(t, err)
	for uri, data := range payloads {
		require.NoError(t, w.Write(uri, data))
	}
	require.NoError(t, w.Finalize())
	require.NoError(t, w.Close())

	s, err := source.NewSQLite(filePath)
	require.NoError(t, err)
	defer s.Close()

	for uri, want := range payloads {
		got, _, err := s.Data(ctx, uri)
		if err != nil {
			t.Errorf("Data(%q) failed: %v", uri, err)
			continue
		}
		if !cmp.Equal(want, got) {
			t.Errorf("Data(%q) = %q, want = %q", uri, got, want)
		}
	}
	if _, _, err := s.Data(ctx, "tiles/2.b3dm"); !errors.Is(err, source.ErrNotFound) {
		t.Errorf("Data(missing) error = %v, want = %v", err, source.ErrNotFound)
	}

	visited := make(map[string][]byte)
	require.NoError(t, s.Visit(func(uri string, data []byte) error {
		visited[uri] = data
		return nil
	}))
	if diff := cmp.Diff(payloads, visited); diff != "" {
		t.Errorf("Visit mismatch (-want+got):\n%v", diff)
	}
}

func TestPattern(t *testing.T) {
	p, err := source.NewPattern("tiles/{z}/{x}/{y}.glb")
	require.NoError(t, err)

	id, ok := p.Match("tiles/3/5/1.glb")
	if !ok {
		t.Fatal("Match() = false")
	}
	if diff := cmp.Diff(pmtiles.TileID{X: 5, Y: 1, Z: 3}, id); diff != "" {
		t.Errorf("Match() mismatch (-want+got):\n%v", diff)
	}
	if got, want := p.Format(id), "tiles/3/5/1.glb"; got != want {
		t.Errorf("Format() = %q, want = %q", got, want)
	}

	for _, uri := range []string{"tiles/3/5/1xglb", "tiles/1/5/1.glb", "other/3/5/1.glb"} {
		if _, ok := p.Match(uri); ok {
			t.Errorf("Match(%q) = true, want false", uri)
		}
	}

	if _, err := source.NewPattern("tiles/{z}/{x}.glb"); !errors.Is(err, source.ErrInvalidPattern) {
		t.Errorf("NewPattern error = %v, want = %v", err, source.ErrInvalidPattern)
	}
}

func TestArchive(t *testing.T) {
	ctx := context.Background()
	filePath := filepath.Join(t.TempDir(), "tileset.pmtiles")
	tileset := []byte(`{"asset":{"version":"1.0"}}`)

	w, err := source.NewArchiveWriter(filePath, "tileset.json", tileset, source.WithPattern("t/{z}/{x}/{y}.b3dm"))
	require.NoError(t, err)
	require.NoError(t, w.Write("t/0/0/0.b3dm", []byte("root")))
	require.NoError(t, w.Write("t/1/1/0.b3dm", []byte("child")))
	if err := w.Write("other.b3dm", []byte("x")); !errors.Is(err, source.ErrInvalidURI) {
		t.Errorf("Write(other.b3dm) error = %v, want = %v", err, source.ErrInvalidURI)
	}
	require.NoError(t, w.Finalize())
	require.NoError(t, w.Close())

	a, err := source.OpenArchive(filePath)
	require.NoError(t, err)
	defer a.Close()

	if got, want := a.TilesetURI(), "tileset.json"; got != want {
		t.Errorf("TilesetURI() = %q, want = %q", got, want)
	}
	data, _, err := a.Data(ctx, "tileset.json")
	require.NoError(t, err)
	if got, want := string(data), string(tileset); got != want {
		t.Errorf("Data(tileset.json) = %q, want = %q", got, want)
	}
	data, _, err = a.Data(ctx, "t/1/1/0.b3dm")
	require.NoError(t, err)
	if got, want := string(data), "child"; got != want {
		t.Errorf("Data(t/1/1/0.b3dm) = %q, want = %q", got, want)
	}
	if _, _, err := a.Data(ctx, "t/1/0/0.b3dm"); !errors.Is(err, source.ErrNotFound) {
		t.Errorf("Data(missing) error = %v, want = %v", err, source.ErrNotFound)
	}

	got := make(map[string]string)
	for uri, data := range source.All(a) {
		got[uri] = string(data)
	}
	want := map[string]string{"t/0/0/0.b3dm": "root", "t/1/1/0.b3dm": "child"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("All() mismatch (-want+got):\n%v", diff)
	}
}

func TestAll(t *testing.T) {
	m := source.NewMemory()
	m.Set("b.b3dm", []byte("b"))
	m.Set("a.b3dm", []byte("a"))
	m.Set("c.b3dm", []byte("c"))
	m.Fail("broken.b3dm", errors.New("boom"))

	var uris []string
	for uri := range source.All(m) {
		uris = append(uris, uri)
	}
	if diff := cmp.Diff([]string{"a.b3dm", "b.b3dm", "c.b3dm"}, uris); diff != "" {
		t.Errorf("All() mismatch (-want+got):\n%v", diff)
	}

	uris = uris[:0]
	for uri := range source.All(m) {
		uris = append(uris, uri)
		if len(uris) == 2 {
			break
		}
	}
	if got, want := len(uris), 2; got != want {
		t.Errorf("len(uris) after break = %v, want = %v", got, want)
	}
}
