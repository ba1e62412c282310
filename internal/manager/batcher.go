package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"galemind/internal/buffer"
	"galemind/pkg/types"
)

type batcherConfig struct {
	model        string
	version      string
	ring         *buffer.Ring
	runtime      Runtime
	maxBatchSize int
	maxBatchWait time.Duration
	logger       zerolog.Logger
	publisher    EventPublisher
}

// batcher is the single consumer of one model's ring. It wakes on push and
// on a coarse timer tick (so the wait threshold fires even when no further
// push occurs), drains FIFO batches and delivers results to the completion
// handles held since admission.
type batcher struct {
	batcherConfig

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func newBatcher(cfg batcherConfig) *batcher {
	return &batcher{
		batcherConfig: cfg,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

func (b *batcher) start() { go b.run() }

// stop halts the loop and waits for an in-flight batch to finish. Requests
// drained into that batch still receive their results.
func (b *batcher) stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
	<-b.doneCh
}

func (b *batcher) run() {
	defer close(b.doneCh)

	// The tick only enforces maxBatchWait; pushes wake the loop directly.
	tick := b.maxBatchWait / 4
	if tick < time.Millisecond {
		tick = time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopCh:
			return
		case <-b.ring.Wake():
		case <-ticker.C:
		}
		b.flush()
	}
}

// flush forms and executes batches while a trigger condition holds:
// enough queued requests for a full batch, or the oldest request has
// waited past the batch-wait threshold.
func (b *batcher) flush() {
	for {
		select {
		case <-b.stopCh:
			// Stop requested; leave queued requests for the owner to
			// fail back to their callers.
			return
		default:
		}
		n := b.ring.Len()
		if n == 0 {
			return
		}
		if n < b.maxBatchSize {
			oldest, ok := b.ring.OldestEnqueuedAt()
			if !ok || time.Since(oldest) < b.maxBatchWait {
				return
			}
		}
		batch := b.ring.DrainUpTo(b.maxBatchSize)
		if len(batch) == 0 {
			return
		}
		bufferUtilization.WithLabelValues(b.model).Set(float64(b.ring.Len()) / float64(b.ring.Cap()))
		b.execute(batch)
	}
}

func (b *batcher) execute(batch []*types.InferenceRequest) {
	start := time.Now()
	results, err := b.runExecuteBatch(batch)
	if err == nil && len(results) != len(batch) {
		err = fmt.Errorf("runtime returned %d results for %d requests", len(results), len(batch))
	}

	batchSize.WithLabelValues(b.model).Observe(float64(len(batch)))
	if err != nil {
		// A whole-batch failure cannot be attributed to one input;
		// fan it out uniformly and keep the loop alive.
		batchErr := ErrBatchExecution(b.model, len(batch), err)
		for _, req := range batch {
			b.deliverError(req, batchErr)
		}
		batchesTotal.WithLabelValues(b.model, "error").Inc()
		b.publisher.Publish(Event{Name: "batch_failed", Model: b.model, Fields: map[string]any{"size": len(batch), "error": err.Error()}})
		b.logger.Error().Err(err).Str("model", b.model).Int("size", len(batch)).Msg("batch execution failed")
		return
	}

	for i, req := range batch {
		b.deliverResult(req, results[i])
	}
	batchesTotal.WithLabelValues(b.model, "ok").Inc()
	b.logger.Debug().
		Str("model", b.model).
		Int("size", len(batch)).
		Dur("dur", time.Since(start)).
		Msg("batch executed")
}

// runExecuteBatch isolates the runtime call so a panicking collaborator
// cannot kill the per-model loop.
func (b *batcher) runExecuteBatch(batch []*types.InferenceRequest) (results []*types.InferenceResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			results = nil
			err = fmt.Errorf("runtime panic: %v", r)
		}
	}()
	return b.runtime.ExecuteBatch(context.Background(), b.model, b.version, batch)
}

func (b *batcher) deliverResult(req *types.InferenceRequest, res *types.InferenceResult) {
	if req.Completion == nil {
		return
	}
	if req.Completion.Abandoned() {
		// Caller gone; computed work is dropped without error.
		b.logger.Debug().Str("model", b.model).Str("request_id", req.ID).Msg("result dropped, caller abandoned")
		return
	}
	req.Completion.Resolve(res)
}

func (b *batcher) deliverError(req *types.InferenceRequest, err error) {
	if req.Completion == nil || req.Completion.Abandoned() {
		return
	}
	req.Completion.Fail(err)
}
