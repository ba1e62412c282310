package manager

import (
	"time"

	"github.com/rs/zerolog"

	"galemind/internal/buffer"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultBufferCapacity = 32
	defaultMaxBatchSize   = 8
	defaultMaxBatchWait   = 50 * time.Millisecond
	defaultPushTimeout    = 30 * time.Second
	defaultDrainTimeout   = 5 * time.Second
)

// Config encapsulates all tunables for Manager construction.
type Config struct {
	// Runtime executes drained batches. Required.
	Runtime Runtime
	// Loader confirms model loads at registration. Defaults to NopLoader.
	Loader Loader
	// Publisher receives lifecycle events. Defaults to a no-op.
	Publisher EventPublisher
	// Logger for manager and batcher logs.
	Logger zerolog.Logger

	// BufferCapacity is the default per-model ring capacity used when
	// Register is called with capacity <= 0.
	BufferCapacity int
	// OverflowPolicy selects Block or RejectFast admission on full buffers.
	OverflowPolicy buffer.Policy
	// PushTimeout bounds producer suspension under the Block policy.
	PushTimeout time.Duration

	// MaxBatchSize caps the number of requests drained per batch.
	MaxBatchSize int
	// MaxBatchWait bounds how long the oldest queued request may wait
	// before a partial batch is formed.
	MaxBatchWait time.Duration

	// DrainTimeout bounds the graceful-drain phase of Unload before
	// still-queued requests are aborted.
	DrainTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Loader == nil {
		c.Loader = NopLoader{}
	}
	if c.Publisher == nil {
		c.Publisher = noopPublisher{}
	}
	if c.BufferCapacity <= 0 {
		c.BufferCapacity = defaultBufferCapacity
	}
	if c.OverflowPolicy == "" {
		c.OverflowPolicy = buffer.PolicyBlock
	}
	if c.PushTimeout <= 0 {
		c.PushTimeout = defaultPushTimeout
	}
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = defaultMaxBatchSize
	}
	if c.MaxBatchWait <= 0 {
		c.MaxBatchWait = defaultMaxBatchWait
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = defaultDrainTimeout
	}
	return c
}
