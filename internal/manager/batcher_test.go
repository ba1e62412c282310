package manager

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"galemind/pkg/types"
)

func routeAndWait(t *testing.T, m *Manager, reqs []*types.InferenceRequest) {
	t.Helper()
	for _, req := range reqs {
		if err := m.Route(context.Background(), req); err != nil {
			t.Fatalf("route %s: %v", req.ID, err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, req := range reqs {
		if _, err := req.Completion.Wait(ctx); err != nil {
			t.Fatalf("wait %s: %v", req.ID, err)
		}
	}
}

func TestBatchFormationSizeThenWait(t *testing.T) {
	rt := &recordingRuntime{}
	m := New(Config{
		Runtime:      rt,
		MaxBatchSize: 3,
		MaxBatchWait: 50 * time.Millisecond,
	})
	defer m.Close()
	if err := m.Register(context.Background(), "m1", "", 16); err != nil {
		t.Fatalf("register: %v", err)
	}

	reqs := make([]*types.InferenceRequest, 5)
	for i := range reqs {
		reqs[i] = newRequest(fmt.Sprintf("r%d", i))
	}
	routeAndWait(t, m, reqs)

	batches := rt.recorded()
	if len(batches) != 2 {
		t.Fatalf("expected 2 batches, got %d: %v", len(batches), batches)
	}
	if len(batches[0]) != 3 {
		t.Fatalf("first batch size = %d, want 3", len(batches[0]))
	}
	for i, id := range batches[0] {
		if want := fmt.Sprintf("r%d", i); id != want {
			t.Fatalf("first batch not oldest-first: %v", batches[0])
		}
	}
	if len(batches[1]) != 2 {
		t.Fatalf("second batch size = %d, want 2", len(batches[1]))
	}
}

func TestLatencyBoundForLoneRequest(t *testing.T) {
	rt := &recordingRuntime{}
	m := New(Config{
		Runtime:      rt,
		MaxBatchSize: 8,
		MaxBatchWait: 50 * time.Millisecond,
	})
	defer m.Close()
	if err := m.Register(context.Background(), "m1", "", 16); err != nil {
		t.Fatalf("register: %v", err)
	}

	req := newRequest("lone")
	start := time.Now()
	if err := m.Route(context.Background(), req); err != nil {
		t.Fatalf("route: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := req.Completion.Wait(ctx); err != nil {
		t.Fatalf("lone request never batched: %v", err)
	}
	if waited := time.Since(start); waited > 500*time.Millisecond {
		t.Fatalf("lone request waited %s, far past the batch-wait threshold", waited)
	}
}

func TestBatchFailureFansOutUniformly(t *testing.T) {
	rt := &recordingRuntime{fail: errors.New("backend down")}
	m := New(Config{
		Runtime:      rt,
		MaxBatchSize: 2,
		MaxBatchWait: 10 * time.Millisecond,
	})
	defer m.Close()
	if err := m.Register(context.Background(), "m1", "", 16); err != nil {
		t.Fatalf("register: %v", err)
	}

	reqs := []*types.InferenceRequest{newRequest("a"), newRequest("b")}
	for _, req := range reqs {
		if err := m.Route(context.Background(), req); err != nil {
			t.Fatalf("route: %v", err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for _, req := range reqs {
		_, err := req.Completion.Wait(ctx)
		if err == nil || !IsBatchExecution(err) {
			t.Fatalf("request %s: expected batch execution error, got %v", req.ID, err)
		}
	}

	// The loop must survive a failed batch.
	rt.mu.Lock()
	rt.fail = nil
	rt.mu.Unlock()
	after := newRequest("c")
	routeAndWait(t, m, []*types.InferenceRequest{after})
}

func TestAbandonedCompletionIsDropped(t *testing.T) {
	rt := &recordingRuntime{gate: make(chan struct{})}
	m := New(Config{
		Runtime:      rt,
		MaxBatchSize: 1,
		MaxBatchWait: time.Millisecond,
		DrainTimeout: 10 * time.Millisecond,
	})
	if err := m.Register(context.Background(), "m1", "", 4); err != nil {
		t.Fatalf("register: %v", err)
	}

	req := newRequest("gone")
	if err := m.Route(context.Background(), req); err != nil {
		t.Fatalf("route: %v", err)
	}
	// Caller stops waiting while execution is still gated.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := req.Completion.Wait(ctx); err != context.DeadlineExceeded {
		t.Fatalf("expected deadline, got %v", err)
	}
	if !req.Completion.Abandoned() {
		t.Fatalf("completion not marked abandoned")
	}
	close(rt.gate)

	// Execution still happened; the result was dropped without error.
	deadline := time.Now().Add(time.Second)
	for len(rt.recorded()) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("batch never executed")
		}
		time.Sleep(time.Millisecond)
	}
	m.Close()
}

func TestRuntimePanicIsContained(t *testing.T) {
	m := New(Config{
		Runtime:      panickingRuntime{},
		MaxBatchSize: 1,
		MaxBatchWait: time.Millisecond,
	})
	defer m.Close()
	if err := m.Register(context.Background(), "m1", "", 4); err != nil {
		t.Fatalf("register: %v", err)
	}
	req := newRequest("boom")
	if err := m.Route(context.Background(), req); err != nil {
		t.Fatalf("route: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := req.Completion.Wait(ctx)
	if err == nil || !IsBatchExecution(err) {
		t.Fatalf("expected batch execution error from panic, got %v", err)
	}
}

type panickingRuntime struct{}

func (panickingRuntime) ExecuteBatch(context.Context, string, string, []*types.InferenceRequest) ([]*types.InferenceResult, error) {
	panic("runtime bug")
}
