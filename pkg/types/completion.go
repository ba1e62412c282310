package types

import (
	"context"
	"sync"
	"sync/atomic"
)

type outcome struct {
	result *InferenceResult
	err    error
}

// Completion is the caller-side handle through which an eventual result or
// terminal error is delivered. Delivery is one-shot: the first Resolve or
// Fail wins and later calls are no-ops. A caller that stops waiting marks
// the handle abandoned; delivery to an abandoned handle is dropped without
// error.
type Completion struct {
	once      sync.Once
	done      chan outcome
	abandoned atomic.Bool
}

// NewCompletion returns an undelivered handle.
func NewCompletion() *Completion {
	return &Completion{done: make(chan outcome, 1)}
}

// Resolve delivers a result. No-op after the first delivery.
func (c *Completion) Resolve(res *InferenceResult) {
	c.once.Do(func() { c.done <- outcome{result: res} })
}

// Fail delivers a terminal error. No-op after the first delivery.
func (c *Completion) Fail(err error) {
	c.once.Do(func() { c.done <- outcome{err: err} })
}

// Wait blocks until delivery or until ctx is done. A context expiry marks
// the handle abandoned so a later delivery is silently dropped.
func (c *Completion) Wait(ctx context.Context) (*InferenceResult, error) {
	select {
	case out := <-c.done:
		return out.result, out.err
	case <-ctx.Done():
		c.abandoned.Store(true)
		return nil, ctx.Err()
	}
}

// Abandon marks the handle as having no remaining observer.
func (c *Completion) Abandon() { c.abandoned.Store(true) }

// Abandoned reports whether the caller stopped waiting.
func (c *Completion) Abandoned() bool { return c.abandoned.Load() }
