// Package manager owns the mapping from model name to its request buffer
// and batcher. It routes normalized inference requests to the correct
// buffer and answers readiness and listing queries. All per-request
// concurrency lives in the buffer/batcher pair; the manager itself is a
// directory plus a routing decision.
package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"galemind/internal/buffer"
	"galemind/pkg/types"
)

// State represents the lifecycle state of a registered model.
type State string

const (
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateFailed  State = "failed"
)

// entry is one registered model: its metadata, readiness and buffer.
type entry struct {
	name    string
	version string
	state   State
	ring    *buffer.Ring
	batcher *batcher
}

// Manager routes requests to per-model buffers and manages model lifecycle.
type Manager struct {
	mu     sync.RWMutex
	models map[string]*entry
	cfg    Config
}

// New constructs a Manager from cfg, applying package defaults.
func New(cfg Config) *Manager {
	return &Manager{
		models: make(map[string]*entry),
		cfg:    cfg.withDefaults(),
	}
}

// Register creates the model entry, confirms the load with the lifecycle
// collaborator and, on success, starts the model's batcher. The entry is
// visible (state loading) for the duration of the load so readiness
// queries and routing behave correctly.
func (m *Manager) Register(ctx context.Context, name, version string, capacity int) error {
	if name == "" {
		return ErrModelNotFound("(unspecified)")
	}
	if capacity <= 0 {
		capacity = m.cfg.BufferCapacity
	}

	e := &entry{
		name:    name,
		version: version,
		state:   StateLoading,
		ring:    buffer.NewRing(capacity, m.cfg.OverflowPolicy, m.cfg.PushTimeout),
	}
	m.mu.Lock()
	if _, exists := m.models[name]; exists {
		m.mu.Unlock()
		return fmt.Errorf("model already registered: %s", name)
	}
	m.models[name] = e
	m.mu.Unlock()
	m.cfg.Publisher.Publish(Event{Name: "register_start", Model: name, Fields: map[string]any{"version": version, "capacity": capacity}})

	if err := m.cfg.Loader.LoadModel(ctx, name, version); err != nil {
		m.mu.Lock()
		e.state = StateFailed
		m.mu.Unlock()
		m.cfg.Publisher.Publish(Event{Name: "register_failed", Model: name, Fields: map[string]any{"error": err.Error()}})
		return ErrModelLoad(name, err)
	}

	b := newBatcher(batcherConfig{
		model:        name,
		version:      version,
		ring:         e.ring,
		runtime:      m.cfg.Runtime,
		maxBatchSize: m.cfg.MaxBatchSize,
		maxBatchWait: m.cfg.MaxBatchWait,
		logger:       m.cfg.Logger,
		publisher:    m.cfg.Publisher,
	})
	m.mu.Lock()
	e.state = StateReady
	e.batcher = b
	m.mu.Unlock()
	b.start()
	m.cfg.Publisher.Publish(Event{Name: "register_done", Model: name, Fields: map[string]any{"version": version}})
	m.cfg.Logger.Info().Str("model", name).Str("version", version).Int("capacity", capacity).Msg("model registered")
	return nil
}

// Route admits one normalized request into its model's buffer. The request
// must carry a Completion handle after Route returns nil; results and
// terminal errors are delivered through it.
func (m *Manager) Route(ctx context.Context, req *types.InferenceRequest) error {
	m.mu.RLock()
	e := m.models[req.Model]
	var state State
	if e != nil {
		state = e.state
	}
	m.mu.RUnlock()

	if e == nil {
		return ErrModelNotFound(req.Model)
	}
	if req.ModelVersion != "" && e.version != "" && req.ModelVersion != e.version {
		return ErrModelNotFound(req.Model + "@" + req.ModelVersion)
	}
	if state != StateReady {
		return ErrModelNotReady(req.Model, state)
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Completion == nil {
		req.Completion = types.NewCompletion()
	}
	req.EnqueuedAt = time.Now()

	if err := e.ring.Push(ctx, req); err != nil {
		if buffer.IsClosed(err) {
			// Unloaded between lookup and push.
			return ErrModelNotFound(req.Model)
		}
		if buffer.IsFull(err) || buffer.IsPushTimeout(err) {
			backpressureTotal.WithLabelValues(req.Model).Inc()
		}
		return err
	}
	bufferUtilization.WithLabelValues(req.Model).Set(float64(e.ring.Len()) / float64(e.ring.Cap()))
	return nil
}

// Unload removes the model from routability first, then drains its buffer
// for up to the configured drain timeout, then stops the batcher and fails
// any still-queued requests so no request vanishes unobserved.
func (m *Manager) Unload(name string) error {
	m.mu.Lock()
	e := m.models[name]
	if e == nil {
		m.mu.Unlock()
		return ErrModelNotFound(name)
	}
	delete(m.models, name)
	m.mu.Unlock()
	m.cfg.Publisher.Publish(Event{Name: "unload_start", Model: name, Fields: map[string]any{}})

	deadline := time.Now().Add(m.cfg.DrainTimeout)
	for e.ring.Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if e.batcher != nil {
		e.batcher.stop()
	}
	remaining := e.ring.Close()
	for _, req := range remaining {
		if req.Completion != nil {
			req.Completion.Fail(ErrUnloadAborted(name))
		}
	}
	if len(remaining) > 0 {
		m.cfg.Publisher.Publish(Event{Name: "unload_aborted_requests", Model: name, Fields: map[string]any{"count": len(remaining)}})
	}
	m.cfg.Publisher.Publish(Event{Name: "unload_done", Model: name, Fields: map[string]any{}})
	m.cfg.Logger.Info().Str("model", name).Int("aborted", len(remaining)).Msg("model unloaded")
	return nil
}

// IsReady reports whether the named model can accept requests.
func (m *Manager) IsReady(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e := m.models[name]
	return e != nil && e.state == StateReady
}

// Ready reports whether any model is ready; used by /readyz.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.models {
		if e.state == StateReady {
			return true
		}
	}
	return false
}

// ListModels returns a point-in-time summary of every registered model.
func (m *Manager) ListModels() []types.Model {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.Model, 0, len(m.models))
	for _, e := range m.models {
		out = append(out, types.Model{
			Name:     e.name,
			Version:  e.version,
			State:    string(e.state),
			QueueLen: e.ring.Len(),
			QueueCap: e.ring.Cap(),
		})
	}
	return out
}

// Close unloads every model; used at shutdown.
func (m *Manager) Close() {
	m.mu.RLock()
	names := make([]string, 0, len(m.models))
	for name := range m.models {
		names = append(names, name)
	}
	m.mu.RUnlock()
	for _, name := range names {
		_ = m.Unload(name)
	}
}
