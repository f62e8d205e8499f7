package content

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/eak1mov/go-tiles3d/render"
	"github.com/gogpu/gpucontext"
)

// DecodeContext is the environment a payload is decoded in: a worker goroutine
// with its own secondary rendering context current.
type DecodeContext interface {
	Context() context.Context
	// Canceled reports whether the result is no longer wanted. Decoders check
	// it at safe points and return early.
	Canceled() bool
	Device() gpucontext.DeviceProvider
}

// Decoder turns a payload into a GPU-bound renderable.
type Decoder interface {
	Decode(ctx DecodeContext, uri string, format Format, payload []byte) (Renderable, error)
}

// Drawer is the host side of model rendering: Bind uploads a model using a
// worker's device, Draw and Release run on the render goroutine.
type Drawer interface {
	Bind(dp gpucontext.DeviceProvider, m *Model) error
	Draw(state *render.State, m *Model) bool
	Release(m *Model)
}

// Model is the header-level decode of a tile payload.
type Model struct {
	URI       string
	Format    Format
	Features  int
	Instances int
	Points    int
	// SkippedInstances counts instances dropped by the instance cap.
	SkippedInstances int
	// GLTF is the embedded binary glTF, if any.
	GLTF []byte
	// Parts holds the inner tiles of a composite.
	Parts []*Model

	drawer   Drawer
	released bool
}

func (m *Model) Draw(state *render.State) bool {
	if m.released {
		return false
	}
	return m.drawer.Draw(state, m)
}

func (m *Model) Release() {
	if m.released {
		return
	}
	m.released = true
	m.drawer.Release(m)
}

type decoderConfig struct {
	MaxInstances int
	Logger       *slog.Logger
}

type DecoderOption func(*decoderConfig)

// WithMaxInstances caps the instances kept from an i3dm payload; instances above
// the cap are skipped. Zero keeps all of them.
func WithMaxInstances(n int) DecoderOption {
	return func(c *decoderConfig) { c.MaxInstances = n }
}

func WithLogger(logger *slog.Logger) DecoderOption {
	return func(c *decoderConfig) { c.Logger = logger }
}

// HeaderDecoder validates 3D Tiles payload headers and hands the resulting
// Model to a Drawer for binding.
type HeaderDecoder struct {
	drawer Drawer
	config decoderConfig
}

func NewHeaderDecoder(drawer Drawer, opts ...DecoderOption) *HeaderDecoder {
	config := decoderConfig{
		Logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&config)
	}
	return &HeaderDecoder{drawer: drawer, config: config}
}

func (d *HeaderDecoder) Decode(ctx DecodeContext, uri string, format Format, payload []byte) (Renderable, error) {
	m, err := d.parse(ctx, uri, format, payload)
	if err != nil || m == nil {
		return nil, err
	}
	if ctx.Canceled() {
		return nil, nil
	}
	if err := d.drawer.Bind(ctx.Device(), m); err != nil {
		return nil, fmt.Errorf("bind %q: %w", uri, err)
	}
	m.drawer = d.drawer
	for _, part := range m.Parts {
		part.drawer = d.drawer
	}
	return m, nil
}

// parse returns nil without error when canceled midway.
func (d *HeaderDecoder) parse(ctx DecodeContext, uri string, format Format, payload []byte) (*Model, error) {
	if format != FormatCMPT {
		return d.parseSingle(uri, format, payload)
	}

	tiles, err := splitComposite(payload)
	if err != nil {
		return nil, err
	}
	m := &Model{URI: uri, Format: FormatCMPT}
	for _, inner := range tiles {
		if ctx.Canceled() {
			return nil, nil
		}
		innerFormat, err := Sniff(inner)
		if err != nil {
			return nil, err
		}
		part, err := d.parse(ctx, uri, innerFormat, inner)
		if err != nil || part == nil {
			return nil, err
		}
		m.Features += part.Features
		m.Instances += part.Instances
		m.Points += part.Points
		m.SkippedInstances += part.SkippedInstances
		m.Parts = append(m.Parts, part)
	}
	return m, nil
}

func (d *HeaderDecoder) parseSingle(uri string, format Format, payload []byte) (*Model, error) {
	switch format {
	case FormatB3DM, FormatI3DM, FormatPNTS, FormatGLB:
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, format)
	}

	t, err := parseTile(payload, format)
	if err != nil {
		return nil, err
	}
	m := &Model{
		URI:      uri,
		Format:   format,
		Features: t.featureTable.BatchLength,
		Points:   t.featureTable.PointsLength,
	}
	if t.gltfEmbedded {
		m.GLTF = t.gltf
	}
	if format == FormatI3DM {
		m.Instances = t.featureTable.InstancesLength
		if limit := d.config.MaxInstances; limit > 0 && m.Instances > limit {
			m.SkippedInstances = m.Instances - limit
			m.Instances = limit
			d.config.Logger.Warn("tiles3d: instances skipped", "uri", uri, "skipped", m.SkippedInstances)
		}
	}
	return m, nil
}

// NopDrawer binds nothing and reports every model as drawn.
type NopDrawer struct{}

func (NopDrawer) Bind(gpucontext.DeviceProvider, *Model) error { return nil }
func (NopDrawer) Draw(*render.State, *Model) bool              { return true }
func (NopDrawer) Release(*Model)                               {}
