// Package content holds decoded tile payloads and their load state.
package content

import (
	"time"

	"github.com/eak1mov/go-tiles3d/render"
	"github.com/eak1mov/go-tiles3d/source"
	"github.com/eak1mov/go-tiles3d/tileset"
)

type State uint8

const (
	StateLoading State = iota
	StateLoaded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Renderable is the GPU-bound form of a payload. It is drawn and released
// on the render goroutine only.
type Renderable interface {
	// Draw renders the content and reports whether any pixels were produced.
	Draw(state *render.State) bool
	Release()
}

// Content is the payload of one tile. It is owned by exactly one tile at a time.
type Content struct {
	uri        string
	state      State
	format     Format
	version    source.Version
	renderable Renderable
	tileset    *tileset.Tileset
	err        error
	at         time.Time
}

func NewLoading(uri string) *Content {
	return &Content{uri: uri, state: StateLoading}
}

// NewLoaded wraps a bound renderable.
func NewLoaded(uri string, format Format, version source.Version, r Renderable) *Content {
	return &Content{uri: uri, state: StateLoaded, format: format, version: version, renderable: r}
}

// NewExternal wraps an external tileset referenced as content.
func NewExternal(uri string, version source.Version, ts *tileset.Tileset) *Content {
	return &Content{uri: uri, state: StateLoaded, format: FormatTileset, version: version, tileset: ts}
}

func NewFailed(uri string, err error) *Content {
	return &Content{uri: uri, state: StateFailed, err: err}
}

func (c *Content) URI() string             { return c.uri }
func (c *Content) State() State            { return c.state }
func (c *Content) Format() Format          { return c.format }
func (c *Content) Version() source.Version { return c.version }
func (c *Content) Err() error              { return c.err }

// Tileset returns the external tileset for FormatTileset content.
func (c *Content) Tileset() *tileset.Tileset { return c.tileset }

// Stamp records when the content reached its current state.
func (c *Content) Stamp(at time.Time) { c.at = at }
func (c *Content) At() time.Time      { return c.at }

// Draw renders loaded content. Loading, failed and external tileset content draw nothing.
func (c *Content) Draw(state *render.State) bool {
	if c.state != StateLoaded || c.renderable == nil {
		return false
	}
	return c.renderable.Draw(state)
}

// Release frees GPU resources. It is safe to call more than once.
func (c *Content) Release() {
	if c.renderable != nil {
		c.renderable.Release()
		c.renderable = nil
	}
}
