// Package lod drives per-frame traversal of a tileset: it culls tiles,
// estimates their screen-space error, refines or draws them, and loads and
// releases their content.
package lod

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/eak1mov/go-tiles3d/content"
	"github.com/eak1mov/go-tiles3d/loader"
	"github.com/eak1mov/go-tiles3d/render"
	"github.com/eak1mov/go-tiles3d/source"
	"github.com/eak1mov/go-tiles3d/tileset"
	"golang.org/x/time/rate"
)

const (
	DefaultMaxScreenSpaceError = 16
	DefaultRetryCooldown       = 5 * time.Minute
)

type config struct {
	MaxScreenSpaceError  float64
	RejectThreshold      float64
	RetryCooldown        time.Duration
	InsideMetersPerPixel float64
	Clock                func() time.Time
	Logger               *slog.Logger
	LoadRate             rate.Limit
	LoadBurst            int
}

type Option func(*config)

// WithMaxScreenSpaceError sets the error in pixels above which a tile refines.
func WithMaxScreenSpaceError(pixels float64) Option {
	return func(c *config) { c.MaxScreenSpaceError = pixels }
}

// WithRejectThreshold sets the on-screen size in pixels below which a tile is
// dropped without drawing. It defaults to the maximum screen-space error.
func WithRejectThreshold(pixels float64) Option {
	return func(c *config) { c.RejectThreshold = pixels }
}

// WithRetryCooldown sets how long failed content waits before it is loaded again.
func WithRetryCooldown(d time.Duration) Option {
	return func(c *config) { c.RetryCooldown = d }
}

// WithInsideMetersPerPixel sets the resolution assumed when the camera is
// inside a tile's bounding sphere.
func WithInsideMetersPerPixel(metersPerPixel float64) Option {
	return func(c *config) { c.InsideMetersPerPixel = metersPerPixel }
}

// WithClock replaces time.Now for cooldowns, change times and load throttling.
func WithClock(clock func() time.Time) Option {
	return func(c *config) { c.Clock = clock }
}

// WithLogger sets the logger for load failures and dispatches.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.Logger = logger }
}

// WithLoadRate limits how many content loads are dispatched per second.
// Tiles over the limit try again on a later frame.
func WithLoadRate(limit rate.Limit, burst int) Option {
	return func(c *config) {
		c.LoadRate = limit
		c.LoadBurst = burst
	}
}

// Stats are the counters of the last drawn frame.
type Stats struct {
	Visited    int
	Culled     int
	Rejected   int
	Refined    int
	Drawn      int
	Dispatched int
	Throttled  int
	Loaded     int
	Failed     int
	Released   int
}

// Root is the runtime counterpart of a tileset. Draw must be called from a
// single goroutine; ContentChanged may be called from any.
type Root struct {
	src     source.Source
	mgr     *loader.Manager
	dec     content.Decoder
	config  config
	limiter *rate.Limiter
	tile    *Tile

	// failures outlive released tiles so a failing uri honors the cooldown
	// when its tile comes back into view.
	failures map[string]time.Time
	stats    Stats

	// abandoned holds canceled jobs until their results can be released here.
	abandoned []*loader.Job

	mu         sync.Mutex
	changedAll time.Time
	changed    map[string]time.Time
}

// NewRoot builds the runtime root for ts and subscribes to changes of src.
func NewRoot(ts *tileset.Tileset, src source.Source, mgr *loader.Manager, dec content.Decoder, opts ...Option) *Root {
	config := config{
		MaxScreenSpaceError:  DefaultMaxScreenSpaceError,
		RetryCooldown:        DefaultRetryCooldown,
		InsideMetersPerPixel: DefaultInsideMetersPerPixel,
		Clock:                time.Now,
		Logger:               slog.New(slog.DiscardHandler),
		LoadRate:             rate.Inf,
	}
	for _, opt := range opts {
		opt(&config)
	}
	if config.RejectThreshold <= 0 {
		config.RejectThreshold = config.MaxScreenSpaceError
	}

	r := &Root{
		src:      src,
		mgr:      mgr,
		dec:      dec,
		config:   config,
		failures: make(map[string]time.Time),
		changed:  make(map[string]time.Time),
	}
	if config.LoadRate != rate.Inf {
		r.limiter = rate.NewLimiter(config.LoadRate, config.LoadBurst)
	}
	r.tile = newTile(r, ts.Root, nil)
	src.AddChangeListener(r)
	return r
}

// Draw traverses the tree for one frame and reports whether any content was drawn.
func (r *Root) Draw(state *render.State) bool {
	r.stats = Stats{}
	r.reap()
	return r.tile.draw(state, false)
}

// Tile returns the runtime root tile.
func (r *Root) Tile() *Tile { return r.tile }

func (r *Root) Stats() Stats { return r.stats }

// Close unsubscribes from the source, releases every tile and waits for the
// abandoned jobs to release what they produced. The manager is left running.
func (r *Root) Close() {
	r.src.RemoveChangeListener(r)
	r.tile.release()
	for _, job := range r.abandoned {
		if err := job.Wait(context.Background()); err == nil {
			if c := job.Reclaim(); c != nil {
				c.Release()
			}
		}
	}
	r.abandoned = nil
}

// Abandoned returns the number of canceled jobs whose results are not yet released.
func (r *Root) Abandoned() int { return len(r.abandoned) }

func (r *Root) abandon(job *loader.Job) {
	job.Cancel()
	r.abandoned = append(r.abandoned, job)
}

// reap releases what finished abandoned jobs produced, keeping GPU objects on
// the render goroutine.
func (r *Root) reap() {
	pending := r.abandoned[:0]
	for _, job := range r.abandoned {
		if !job.Done() {
			pending = append(pending, job)
			continue
		}
		if c := job.Reclaim(); c != nil {
			c.Release()
			r.config.Logger.Debug("tiles3d: abandoned content released", "uri", job.Key())
		}
	}
	clear(r.abandoned[len(pending):])
	r.abandoned = pending
}

// ContentChanged makes failed content under uri eligible for an immediate
// retry. An empty uri covers all content.
func (r *Root) ContentChanged(uri string) {
	now := r.config.Clock()
	r.mu.Lock()
	defer r.mu.Unlock()
	if uri == "" {
		r.changedAll = now
		clear(r.changed)
		return
	}
	r.changed[uri] = now
}

func (r *Root) changedAt(uri string) time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	at := r.changedAll
	if t, ok := r.changed[uri]; ok && t.After(at) {
		at = t
	}
	return at
}

// retryAllowed reports whether content of uri may be loaded at now.
func (r *Root) retryAllowed(uri string, now time.Time) bool {
	failedAt, ok := r.failures[uri]
	if !ok {
		return true
	}
	if now.Sub(failedAt) >= r.config.RetryCooldown {
		return true
	}
	return r.changedAt(uri).After(failedAt)
}

func (r *Root) allowDispatch(now time.Time) bool {
	return r.limiter == nil || r.limiter.AllowN(now, 1)
}
