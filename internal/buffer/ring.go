// Package buffer provides the fixed-capacity, concurrency-safe ring that
// holds pending inference requests for one model. The ring is the sole
// serialization point between transport producers and the per-model batch
// consumer: producers call Push, the consumer calls DrainUpTo.
package buffer

import (
	"context"
	"sync"
	"time"

	"galemind/pkg/types"
)

// Policy selects the behavior of Push against a full ring.
type Policy string

const (
	// PolicyBlock suspends the pusher until space frees or the push
	// timeout elapses.
	PolicyBlock Policy = "block"
	// PolicyRejectFast fails a push against a full ring immediately.
	PolicyRejectFast Policy = "reject"
)

// Ring is a fixed-capacity FIFO buffer. Capacity is set at creation and
// never grows; a full ring never overwrites queued requests. Free slots are
// accounted by a token channel so blocked pushers wait without spinning,
// while the mutex is held only for the instant of structural mutation.
type Ring struct {
	capacity    int
	policy      Policy
	pushTimeout time.Duration

	mu     sync.Mutex
	buf    []*types.InferenceRequest
	head   int
	n      int
	closed bool

	free chan struct{} // one token per free slot
	wake chan struct{} // edge-triggered push notification, capacity 1
	done chan struct{} // closed by Close; releases blocked pushers
}

// NewRing builds a ring with the given capacity and overflow policy.
// pushTimeout bounds the suspension of a blocked pusher under PolicyBlock.
func NewRing(capacity int, policy Policy, pushTimeout time.Duration) *Ring {
	if capacity <= 0 {
		capacity = 1
	}
	r := &Ring{
		capacity:    capacity,
		policy:      policy,
		pushTimeout: pushTimeout,
		buf:         make([]*types.InferenceRequest, capacity),
		free:        make(chan struct{}, capacity),
		wake:        make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
	for i := 0; i < capacity; i++ {
		r.free <- struct{}{}
	}
	return r
}

// Push admits one request in FIFO order. Under PolicyRejectFast a full ring
// yields ErrFull immediately; under PolicyBlock the caller is suspended
// until a slot frees, the context is canceled, the push timeout elapses, or
// the ring is closed.
func (r *Ring) Push(ctx context.Context, req *types.InferenceRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-r.done:
		return errClosed{}
	default:
	}

	switch r.policy {
	case PolicyRejectFast:
		select {
		case <-r.free:
		default:
			return r.fullError()
		}
	default: // PolicyBlock
		timer := time.NewTimer(r.pushTimeout)
		defer timer.Stop()
		select {
		case <-r.free:
		case <-ctx.Done():
			return ctx.Err()
		case <-r.done:
			return errClosed{}
		case <-timer.C:
			return r.timeoutError()
		}
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return errClosed{}
	}
	r.buf[(r.head+r.n)%r.capacity] = req
	r.n++
	r.mu.Unlock()

	// Edge-triggered: a pending wake already covers this push.
	select {
	case r.wake <- struct{}{}:
	default:
	}
	return nil
}

// DrainUpTo removes and returns at most max requests in FIFO order.
func (r *Ring) DrainUpTo(max int) []*types.InferenceRequest {
	if max <= 0 {
		return nil
	}
	r.mu.Lock()
	k := max
	if k > r.n {
		k = r.n
	}
	out := make([]*types.InferenceRequest, 0, k)
	for i := 0; i < k; i++ {
		out = append(out, r.buf[r.head])
		r.buf[r.head] = nil
		r.head = (r.head + 1) % r.capacity
	}
	r.n -= k
	closed := r.closed
	r.mu.Unlock()

	if !closed {
		for i := 0; i < k; i++ {
			r.free <- struct{}{}
		}
	}
	return out
}

// OldestEnqueuedAt reports the enqueue time of the request at the head of
// the ring, if any.
func (r *Ring) OldestEnqueuedAt() (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.n == 0 {
		return time.Time{}, false
	}
	return r.buf[r.head].EnqueuedAt, true
}

// Len reports the number of occupied slots.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

// Cap reports the fixed capacity.
func (r *Ring) Cap() int { return r.capacity }

// IsFull reports whether every slot is occupied.
func (r *Ring) IsFull() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n == r.capacity
}

// Wake returns the push-notification channel consumed by the batcher.
func (r *Ring) Wake() <-chan struct{} { return r.wake }

// Close rejects all subsequent and suspended pushes and returns the
// requests still queued so the owner can fail them back to their callers.
// Close is idempotent.
func (r *Ring) Close() []*types.InferenceRequest {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	remaining := make([]*types.InferenceRequest, 0, r.n)
	for i := 0; i < r.n; i++ {
		remaining = append(remaining, r.buf[(r.head+i)%r.capacity])
		r.buf[(r.head+i)%r.capacity] = nil
	}
	r.n = 0
	r.mu.Unlock()
	close(r.done)
	return remaining
}

func (r *Ring) fullError() error {
	r.mu.Lock()
	used := r.n
	r.mu.Unlock()
	return errFull{used: used, capacity: r.capacity}
}

func (r *Ring) timeoutError() error {
	r.mu.Lock()
	used := r.n
	r.mu.Unlock()
	return errPushTimeout{used: used, capacity: r.capacity, waited: r.pushTimeout}
}
