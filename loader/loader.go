// Package loader runs content loading jobs on a fixed pool of workers, each
// owning a secondary rendering context.
package loader

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/eak1mov/go-tiles3d/content"
	"github.com/eak1mov/go-tiles3d/render"
	"github.com/gogpu/gpucontext"
)

var (
	ErrManagerClosed = errors.New("tiles3d: loader closed")
	ErrJobPanic      = errors.New("tiles3d: job panicked")
)

const DefaultWorkers = 3

type config struct {
	Workers   int
	QueueSize int
	Logger    *slog.Logger
}

type Option func(*config)

func WithWorkers(n int) Option {
	return func(c *config) { c.Workers = n }
}

// WithQueueSize sets the buffer of each worker queue. Submit blocks and
// TrySubmit fails while every queue is full.
func WithQueueSize(n int) Option {
	return func(c *config) { c.QueueSize = n }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.Logger = logger }
}

type Stats struct {
	Submitted int64
	Completed int64
	Failed    int64
	Canceled  int64
	// Contexts is the number of live secondary contexts.
	Contexts int
}

// Manager is a fixed pool of workers. Each worker pulls jobs from its own queue
// and steals from its siblings when idle.
type Manager struct {
	rc     render.Context
	logger *slog.Logger

	workers []*worker
	queues  []chan *Job
	done    chan struct{}
	wg      sync.WaitGroup

	mu      sync.RWMutex
	closed  bool
	closing atomic.Bool

	// contexts records which worker owns which secondary context.
	contextsMu sync.Mutex
	contexts   map[int]gpucontext.DeviceProvider

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	canceled  atomic.Int64
}

type worker struct {
	id int
	m  *Manager
	dp gpucontext.DeviceProvider
}

func NewManager(rc render.Context, opts ...Option) *Manager {
	config := config{
		Workers: DefaultWorkers,
		Logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Workers <= 0 {
		config.Workers = DefaultWorkers
	}
	if config.QueueSize <= 0 {
		config.QueueSize = max(config.Workers*4, 8)
	}

	m := &Manager{
		rc:       rc,
		logger:   config.Logger,
		workers:  make([]*worker, config.Workers),
		queues:   make([]chan *Job, config.Workers),
		done:     make(chan struct{}),
		contexts: make(map[int]gpucontext.DeviceProvider),
	}
	for i := range config.Workers {
		m.queues[i] = make(chan *Job, config.QueueSize)
		m.workers[i] = &worker{id: i, m: m}
	}

	m.wg.Add(config.Workers)
	for _, w := range m.workers {
		go w.run()
	}
	return m
}

// Workers returns the pool size.
func (m *Manager) Workers() int { return len(m.workers) }

// IsRunning reports whether the manager still accepts jobs.
func (m *Manager) IsRunning() bool { return !m.closing.Load() }

// Submit queues fn on the worker with the shortest queue, blocking while every
// queue is full. The key names the job in logs and in failed content. After
// Close the returned job is already done with failed content.
func (m *Manager) Submit(key string, fn JobFunc) *Job {
	job := newJob(key, fn)

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		job.finish(content.NewFailed(key, ErrManagerClosed))
		return job
	}
	m.submitted.Add(1)
	m.queues[m.shortest()] <- job
	return job
}

// TrySubmit is Submit for render loops: it never blocks and returns nil when
// every queue is full, leaving the caller to try again on a later frame.
func (m *Manager) TrySubmit(key string, fn JobFunc) *Job {
	job := newJob(key, fn)

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		job.finish(content.NewFailed(key, ErrManagerClosed))
		return job
	}
	first := m.shortest()
	for i := range m.queues {
		select {
		case m.queues[(first+i)%len(m.queues)] <- job:
			m.submitted.Add(1)
			return job
		default:
		}
	}
	return nil
}

func (m *Manager) shortest() int {
	minLen, minIdx := len(m.queues[0]), 0
	for i := 1; i < len(m.queues); i++ {
		if n := len(m.queues[i]); n < minLen {
			minLen, minIdx = n, i
		}
	}
	return minIdx
}

// Close stops intake, runs the queued jobs canceled so they finish early,
// waits for the workers and destroys their contexts. Close is safe to call
// multiple times.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.closing.Store(true)
	m.mu.Unlock()

	close(m.done)
	m.wg.Wait()
}

func (m *Manager) Stats() Stats {
	m.contextsMu.Lock()
	contexts := len(m.contexts)
	m.contextsMu.Unlock()
	return Stats{
		Submitted: m.submitted.Load(),
		Completed: m.completed.Load(),
		Failed:    m.failed.Load(),
		Canceled:  m.canceled.Load(),
		Contexts:  contexts,
	}
}

func (w *worker) run() {
	defer w.m.wg.Done()
	defer w.destroyContext()

	queue := w.m.queues[w.id]
	for {
		select {
		case <-w.m.done:
			w.drain(queue)
			return

		case job := <-queue:
			w.execute(job)

		default:
			if job := w.steal(); job != nil {
				w.execute(job)
				continue
			}
			select {
			case <-w.m.done:
				w.drain(queue)
				return
			case job := <-queue:
				w.execute(job)
			}
		}
	}
}

func (w *worker) drain(queue chan *Job) {
	for {
		select {
		case job := <-queue:
			w.execute(job)
		default:
			return
		}
	}
}

func (w *worker) steal() *Job {
	for i, queue := range w.m.queues {
		if i == w.id {
			continue
		}
		select {
		case job := <-queue:
			return job
		default:
		}
	}
	return nil
}

func (w *worker) execute(job *Job) {
	if w.m.closing.Load() {
		job.Cancel()
	}

	result := w.runJob(job)
	render.Sync(w.dp)

	switch {
	case job.Canceled():
		// GPU objects are released by the owner through Reclaim
		w.m.canceled.Add(1)
	case result.State() == content.StateFailed:
		w.m.failed.Add(1)
		w.m.logger.Debug("tiles3d: load failed", "key", job.key, "worker", w.id, "error", result.Err())
	default:
		w.m.completed.Add(1)
	}
	job.finish(result)
}

// runJob converts errors and panics of the job body into failed content.
func (w *worker) runJob(job *Job) (result *content.Content) {
	defer func() {
		if r := recover(); r != nil {
			w.m.logger.Error("tiles3d: job panicked", "key", job.key, "worker", w.id, "panic", r)
			result = content.NewFailed(job.key, fmt.Errorf("%w: %v", ErrJobPanic, r))
		}
	}()

	if err := w.ensureContext(); err != nil {
		return content.NewFailed(job.key, err)
	}

	c, err := job.fn(&jobContext{job: job, worker: w})
	switch {
	case errors.Is(err, content.ErrCanceled):
		job.Cancel()
		return c
	case err != nil:
		return content.NewFailed(job.key, err)
	case c == nil:
		return content.NewFailed(job.key, fmt.Errorf("%q: job produced no content", job.key))
	}
	return c
}

// ensureContext creates the worker's secondary context on its first job.
// A failed creation is retried on the next job.
func (w *worker) ensureContext() error {
	if w.dp != nil {
		return nil
	}
	dp, err := w.m.rc.NewSecondary()
	if err != nil {
		return fmt.Errorf("secondary context: %w", err)
	}
	w.dp = dp

	w.m.contextsMu.Lock()
	w.m.contexts[w.id] = dp
	w.m.contextsMu.Unlock()
	w.m.logger.Debug("tiles3d: secondary context created", "worker", w.id)
	return nil
}

func (w *worker) destroyContext() {
	if w.dp == nil {
		return
	}
	render.Destroy(w.dp)
	w.dp = nil

	w.m.contextsMu.Lock()
	delete(w.m.contexts, w.id)
	w.m.contextsMu.Unlock()
}
