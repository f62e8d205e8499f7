package loader

import (
	"context"
	"sync/atomic"

	"github.com/eak1mov/go-tiles3d/content"
	"github.com/gogpu/gpucontext"
)

// JobContext is passed to a job body running on a worker goroutine.
type JobContext interface {
	content.DecodeContext
	WorkerID() int
}

// JobFunc loads one content. Returning content.ErrCanceled publishes nothing.
// A result produced after the job was canceled is held for Reclaim.
type JobFunc func(ctx JobContext) (*content.Content, error)

// Job is a unit of work submitted to the Manager. Its methods never block
// except Wait.
type Job struct {
	key    string
	fn     JobFunc
	ctx    context.Context
	cancel context.CancelFunc

	canceled atomic.Bool
	done     atomic.Bool
	result   atomic.Pointer[content.Content]
	finished chan struct{}
}

func newJob(key string, fn JobFunc) *Job {
	ctx, cancel := context.WithCancel(context.Background())
	return &Job{
		key:      key,
		fn:       fn,
		ctx:      ctx,
		cancel:   cancel,
		finished: make(chan struct{}),
	}
}

// Key returns the key the job was submitted with.
func (j *Job) Key() string { return j.key }

// Cancel asks the job body to stop at its next safe point. Result hides the
// output of a canceled job; its owner frees it through Reclaim.
func (j *Job) Cancel() {
	j.canceled.Store(true)
	j.cancel()
}

func (j *Job) Canceled() bool { return j.canceled.Load() }

// Done reports whether the job has finished and its GPU work is synchronized.
func (j *Job) Done() bool { return j.done.Load() }

// Result returns the produced content, or nil while the job is running or
// when it was canceled.
func (j *Job) Result() *content.Content {
	if !j.done.Load() || j.canceled.Load() {
		return nil
	}
	return j.result.Load()
}

// Reclaim hands over the result of a finished job, canceled or not, so that
// the owner can release it on its own goroutine. It returns nil while the job
// runs and on every call after the first.
func (j *Job) Reclaim() *content.Content {
	if !j.done.Load() {
		return nil
	}
	return j.result.Swap(nil)
}

// Wait blocks until the job is done or ctx is canceled. It is meant for
// tools and tests; render loops poll Done instead.
func (j *Job) Wait(ctx context.Context) error {
	select {
	case <-j.finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *Job) finish(c *content.Content) {
	if c != nil {
		j.result.Store(c)
	}
	j.done.Store(true)
	j.cancel()
	close(j.finished)
}

type jobContext struct {
	job    *Job
	worker *worker
}

func (c *jobContext) Context() context.Context          { return c.job.ctx }
func (c *jobContext) Canceled() bool                    { return c.job.canceled.Load() }
func (c *jobContext) Device() gpucontext.DeviceProvider { return c.worker.dp }
func (c *jobContext) WorkerID() int                     { return c.worker.id }
