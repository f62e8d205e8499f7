package content

import (
	"errors"
	"fmt"

	"github.com/eak1mov/go-tiles3d/source"
	"github.com/eak1mov/go-tiles3d/tileset"
)

var ErrCanceled = errors.New("tiles3d: load canceled")

// Request describes the payload to load for a tile.
type Request struct {
	URI string
	// Refine is inherited by the root of an external tileset.
	Refine tileset.Refine
}

// Load fetches, sniffs and decodes a payload. Failures produce Failed content;
// ErrCanceled is returned when the context was canceled at a safe point. A
// renderable decoded before the cancellation was seen comes back with
// ErrCanceled as Loaded content, for the caller to release on the render
// goroutine.
func Load(ctx DecodeContext, src source.Source, dec Decoder, req Request) (*Content, error) {
	if ctx.Canceled() {
		return nil, ErrCanceled
	}
	payload, version, err := src.Data(ctx.Context(), req.URI)
	if ctx.Canceled() {
		return nil, ErrCanceled
	}
	if err != nil {
		return NewFailed(req.URI, err), nil
	}

	format, err := Sniff(payload)
	if err != nil {
		return NewFailed(req.URI, fmt.Errorf("%q: %w", req.URI, err)), nil
	}

	if format == FormatTileset {
		ts, err := tileset.Parse(payload, tileset.WithBaseURI(req.URI), tileset.WithRootRefine(req.Refine))
		if err != nil {
			return NewFailed(req.URI, err), nil
		}
		return NewExternal(req.URI, version, ts), nil
	}

	r, err := dec.Decode(ctx, req.URI, format, payload)
	if ctx.Canceled() {
		if r != nil {
			return NewLoaded(req.URI, format, version, r), ErrCanceled
		}
		return nil, ErrCanceled
	}
	if err != nil {
		return NewFailed(req.URI, err), nil
	}
	if r == nil {
		return NewFailed(req.URI, fmt.Errorf("%w: %q decoded to nothing", ErrInvalidPayload, req.URI)), nil
	}
	return NewLoaded(req.URI, format, version, r), nil
}
