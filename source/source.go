// Package source provides content sources: providers of tile payload bytes
// with change notifications.
package source

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
)

var (
	ErrNotFound     = errors.New("tiles3d: content not found")
	ErrInvalidURI   = errors.New("tiles3d: invalid content uri")
	ErrNotConnected = errors.New("tiles3d: source not connected")
)

// Version identifies a revision of a payload. Zero means the source does not track versions.
type Version uint64

// ChangeListener is notified when payloads change. An empty uri means any
// payload may have changed. Listeners must be comparable (e.g. pointers).
type ChangeListener interface {
	ContentChanged(uri string)
}

// Source provides tile payloads. Data must be safe to call from several
// goroutines at once; it may block on I/O.
type Source interface {
	Data(ctx context.Context, uri string) ([]byte, Version, error)

	AddChangeListener(l ChangeListener)
	RemoveChangeListener(l ChangeListener)

	// Connect starts change notifications. Data works without it.
	Connect(ctx context.Context) error
	Disconnect() error
}

// Listeners is a change listener registry, safe for concurrent use.
// Sources embed it to implement the listener half of Source.
type Listeners struct {
	mu   sync.Mutex
	list []ChangeListener
}

func (ls *Listeners) AddChangeListener(l ChangeListener) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if !slices.Contains(ls.list, l) {
		ls.list = append(ls.list, l)
	}
}

func (ls *Listeners) RemoveChangeListener(l ChangeListener) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.list = slices.DeleteFunc(ls.list, func(x ChangeListener) bool { return x == l })
}

// Notify calls every registered listener. Listeners are called outside the lock.
func (ls *Listeners) Notify(uri string) {
	ls.mu.Lock()
	list := slices.Clone(ls.list)
	ls.mu.Unlock()
	for _, l := range list {
		l.ContentChanged(uri)
	}
}

type config struct {
	Logger  *slog.Logger
	Pattern string
}

type Option func(*config)

func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.Logger = logger }
}

// WithPattern sets the content URI template of an Archive, e.g. "tiles/{z}/{x}/{y}.glb".
func WithPattern(pattern string) Option {
	return func(c *config) { c.Pattern = pattern }
}

func newConfig(opts []Option) config {
	c := config{
		Logger:  slog.New(slog.DiscardHandler),
		Pattern: DefaultPattern,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
