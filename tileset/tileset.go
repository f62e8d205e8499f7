package tileset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"path"
	"strings"

	"github.com/eak1mov/go-tiles3d/source"
	"github.com/eak1mov/go-tiles3d/volume"
	"github.com/go-gl/mathgl/mgl64"
)

var (
	ErrInvalidTileset        = errors.New("tiles3d: invalid tileset")
	ErrInvalidVolume         = errors.New("tiles3d: invalid bounding volume")
	ErrInvalidGeometricError = errors.New("tiles3d: invalid geometric error")
	ErrInvalidRefine         = errors.New("tiles3d: invalid refine")
	ErrInvalidTransform      = errors.New("tiles3d: invalid transform")
)

type Asset struct {
	Version        string
	TilesetVersion string
}

// Tileset is the parsed, immutable tile tree.
type Tileset struct {
	Asset          Asset
	GeometricError float64
	Properties     json.RawMessage
	Extras         json.RawMessage
	Root           *Node

	baseURI string
}

// BaseURI returns the URI the tileset was loaded from, used to resolve content references.
func (t *Tileset) BaseURI() string { return t.baseURI }

type parseConfig struct {
	BaseURI string
	Refine  Refine
}

type ParseOption func(*parseConfig)

// WithBaseURI resolves relative content references against the given tileset URI.
func WithBaseURI(uri string) ParseOption {
	return func(c *parseConfig) { c.BaseURI = uri }
}

// WithRootRefine sets the policy inherited by a root without an explicit one.
// External tilesets inherit the refinement of the tile referencing them.
func WithRootRefine(refine Refine) ParseOption {
	return func(c *parseConfig) { c.Refine = refine }
}

type tilesetJSON struct {
	Asset *struct {
		Version        string `json:"version"`
		TilesetVersion string `json:"tilesetVersion"`
	} `json:"asset"`
	GeometricError *float64        `json:"geometricError"`
	Properties     json.RawMessage `json:"properties"`
	Extras         json.RawMessage `json:"extras"`
	Root           *tileJSON       `json:"root"`
}

type tileJSON struct {
	BoundingVolume      *volumeJSON  `json:"boundingVolume"`
	ViewerRequestVolume *volumeJSON  `json:"viewerRequestVolume"`
	GeometricError      *float64     `json:"geometricError"`
	Refine              *string      `json:"refine"`
	Transform           []float64    `json:"transform"`
	Content             *contentJSON `json:"content"`
	Children            []*tileJSON  `json:"children"`
}

type volumeJSON struct {
	Region []float64 `json:"region"`
	Sphere []float64 `json:"sphere"`
	Box    []float64 `json:"box"`
}

type contentJSON struct {
	URI string `json:"uri"`
	URL string `json:"url"` // pre-1.0 tilesets
}

// Parse builds the tile tree from a tileset JSON document.
// Any malformed tile fails the whole tileset.
func Parse(data []byte, opts ...ParseOption) (*Tileset, error) {
	config := parseConfig{Refine: RefineReplace}
	for _, opt := range opts {
		opt(&config)
	}

	var doc tilesetJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTileset, err)
	}
	if doc.Asset == nil {
		return nil, fmt.Errorf("%w: missing asset", ErrInvalidTileset)
	}
	if doc.Root == nil {
		return nil, fmt.Errorf("%w: missing root", ErrInvalidTileset)
	}

	ts := &Tileset{
		Asset: Asset{
			Version:        doc.Asset.Version,
			TilesetVersion: doc.Asset.TilesetVersion,
		},
		Properties: doc.Properties,
		Extras:     doc.Extras,
		baseURI:    config.BaseURI,
	}
	if doc.GeometricError != nil {
		if !validScalar(*doc.GeometricError) {
			return nil, fmt.Errorf("%w: tileset: %v", ErrInvalidGeometricError, *doc.GeometricError)
		}
		ts.GeometricError = *doc.GeometricError
	}

	b := builder{baseURI: config.BaseURI}
	root, err := b.build(doc.Root, nil, config.Refine, "root")
	if err != nil {
		return nil, err
	}
	ts.Root = root
	return ts, nil
}

// Load fetches and parses a tileset from a content source.
func Load(ctx context.Context, src source.Source, uri string, opts ...ParseOption) (*Tileset, error) {
	data, _, err := src.Data(ctx, uri)
	if err != nil {
		return nil, err
	}
	return Parse(data, append([]ParseOption{WithBaseURI(uri)}, opts...)...)
}

type builder struct {
	baseURI string
}

func (b *builder) build(t *tileJSON, parent *Node, inherited Refine, where string) (*Node, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: %s: null tile", ErrInvalidTileset, where)
	}

	n := &Node{parent: parent, refine: inherited}
	if parent != nil {
		n.depth = parent.depth + 1
	}

	if t.BoundingVolume == nil {
		return nil, fmt.Errorf("%w: %s: missing", ErrInvalidVolume, where)
	}
	v, err := parseVolume(t.BoundingVolume)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidVolume, where, err)
	}
	n.volume = v

	if t.ViewerRequestVolume != nil {
		v, err := parseVolume(t.ViewerRequestVolume)
		if err != nil {
			return nil, fmt.Errorf("%w: %s.viewerRequestVolume: %w", ErrInvalidVolume, where, err)
		}
		n.viewerVolume = v
	}

	if t.Refine != nil {
		refine, ok := parseRefine(*t.Refine)
		if !ok {
			return nil, fmt.Errorf("%w: %s: %q", ErrInvalidRefine, where, *t.Refine)
		}
		n.refine = refine
	}

	if t.Transform != nil {
		if len(t.Transform) != 16 || !allFinite(t.Transform) {
			return nil, fmt.Errorf("%w: %s: want 16 finite numbers", ErrInvalidTransform, where)
		}
		copy(n.transform[:], t.Transform)
		n.hasTransform = true
	}

	if t.Content != nil {
		uri := t.Content.URI
		if uri == "" {
			uri = t.Content.URL
		}
		if uri == "" {
			return nil, fmt.Errorf("%w: %s: content without uri", ErrInvalidTileset, where)
		}
		n.contentURI = b.resolve(uri)
	}

	switch {
	case t.GeometricError != nil:
		if !validScalar(*t.GeometricError) {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidGeometricError, where, *t.GeometricError)
		}
		n.geometricError = *t.GeometricError
	case len(t.Children) == 0 && n.HasContent():
		n.geometricError = 0
	default:
		return nil, fmt.Errorf("%w: %s: missing", ErrInvalidGeometricError, where)
	}

	n.children = make([]*Node, 0, len(t.Children))
	for i, child := range t.Children {
		c, err := b.build(child, n, n.refine, fmt.Sprintf("%s.children[%d]", where, i))
		if err != nil {
			return nil, err
		}
		n.children = append(n.children, c)
	}
	return n, nil
}

func (b *builder) resolve(uri string) string {
	if b.baseURI == "" {
		return uri
	}
	ref, err := url.Parse(uri)
	if err != nil || ref.IsAbs() || strings.HasPrefix(uri, "/") {
		return uri
	}
	base, err := url.Parse(b.baseURI)
	if err == nil && base.IsAbs() {
		return base.ResolveReference(ref).String()
	}
	return path.Join(path.Dir(b.baseURI), uri)
}

func parseVolume(v *volumeJSON) (volume.Volume, error) {
	count := 0
	for _, field := range [][]float64{v.Region, v.Sphere, v.Box} {
		if field != nil {
			count++
		}
	}
	if count != 1 {
		return nil, fmt.Errorf("want exactly one of region, sphere, box, got %d", count)
	}

	switch {
	case v.Region != nil:
		r := v.Region
		if len(r) != 6 || !allFinite(r) {
			return nil, errors.New("region: want 6 finite numbers")
		}
		west, south, east, north, minHeight, maxHeight := r[0], r[1], r[2], r[3], r[4], r[5]
		if math.Abs(west) > math.Pi || math.Abs(east) > math.Pi {
			return nil, errors.New("region: longitude out of range")
		}
		if south > north || math.Abs(south) > math.Pi/2 || math.Abs(north) > math.Pi/2 {
			return nil, errors.New("region: latitude out of range")
		}
		if minHeight > maxHeight {
			return nil, errors.New("region: minimum height above maximum")
		}
		return volume.NewRegion(west, south, east, north, minHeight, maxHeight), nil

	case v.Sphere != nil:
		s := v.Sphere
		if len(s) != 4 || !allFinite(s) {
			return nil, errors.New("sphere: want 4 finite numbers")
		}
		if s[3] < 0 {
			return nil, errors.New("sphere: negative radius")
		}
		return volume.NewSphere(mgl64.Vec3{s[0], s[1], s[2]}, s[3]), nil

	default:
		b := v.Box
		if len(b) != 12 || !allFinite(b) {
			return nil, errors.New("box: want 12 finite numbers")
		}
		return volume.NewBox(
			mgl64.Vec3{b[0], b[1], b[2]},
			[3]mgl64.Vec3{{b[3], b[4], b[5]}, {b[6], b[7], b[8]}, {b[9], b[10], b[11]}},
		), nil
	}
}

func validScalar(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

func allFinite(values []float64) bool {
	for _, v := range values {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return false
		}
	}
	return true
}
