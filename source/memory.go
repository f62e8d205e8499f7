package source

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
)

type memoryEntry struct {
	data    []byte
	version Version
	err     error
}

// Memory is an in-memory source. Set and Fail notify listeners of the change.
type Memory struct {
	Listeners

	mu      sync.RWMutex
	entries map[string]memoryEntry
	fetches map[string]int
	version Version
}

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		fetches: make(map[string]int),
	}
}

// Set stores a payload under uri and notifies listeners.
func (m *Memory) Set(uri string, data []byte) {
	m.mu.Lock()
	m.version++
	m.entries[uri] = memoryEntry{data: data, version: m.version}
	m.mu.Unlock()
	m.Notify(uri)
}

// Fail makes every fetch of uri return err until the next Set.
func (m *Memory) Fail(uri string, err error) {
	m.mu.Lock()
	m.version++
	m.entries[uri] = memoryEntry{err: err, version: m.version}
	m.mu.Unlock()
	m.Notify(uri)
}

func (m *Memory) Delete(uri string) {
	m.mu.Lock()
	delete(m.entries, uri)
	m.mu.Unlock()
	m.Notify(uri)
}

// Fetches returns how many times uri was requested.
func (m *Memory) Fetches(uri string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fetches[uri]
}

func (m *Memory) Data(_ context.Context, uri string) ([]byte, Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches[uri]++
	e, ok := m.entries[uri]
	if !ok {
		return nil, 0, fmt.Errorf("%w: %q", ErrNotFound, uri)
	}
	if e.err != nil {
		return nil, e.version, e.err
	}
	return e.data, e.version, nil
}

// Visit calls the visitor for every stored payload in URI order.
func (m *Memory) Visit(visitor func(uri string, data []byte) error) error {
	m.mu.RLock()
	uris := slices.Sorted(maps.Keys(m.entries))
	m.mu.RUnlock()
	for _, uri := range uris {
		m.mu.RLock()
		e, ok := m.entries[uri]
		m.mu.RUnlock()
		if !ok || e.err != nil {
			continue
		}
		if err := visitor(uri, e.data); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) Connect(context.Context) error { return nil }
func (m *Memory) Disconnect() error             { return nil }
