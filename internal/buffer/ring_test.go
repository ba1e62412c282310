package buffer

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"galemind/pkg/types"
)

func req(id string) *types.InferenceRequest {
	return &types.InferenceRequest{ID: id, Model: "m", EnqueuedAt: time.Now()}
}

func TestPushDrainFIFO(t *testing.T) {
	r := NewRing(8, PolicyRejectFast, 0)
	for i := 0; i < 5; i++ {
		if err := r.Push(context.Background(), req(fmt.Sprintf("r%d", i))); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}
	out := r.DrainUpTo(10)
	if len(out) != 5 {
		t.Fatalf("expected 5 drained, got %d", len(out))
	}
	for i, item := range out {
		if want := fmt.Sprintf("r%d", i); item.ID != want {
			t.Fatalf("drain order: slot %d got %s want %s", i, item.ID, want)
		}
	}
}

func TestRejectFastAtCapacity(t *testing.T) {
	r := NewRing(3, PolicyRejectFast, 0)
	for i := 0; i < 3; i++ {
		if err := r.Push(context.Background(), req(fmt.Sprintf("r%d", i))); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}
	err := r.Push(context.Background(), req("overflow"))
	if err == nil || !IsFull(err) {
		t.Fatalf("expected full error, got %v", err)
	}
	if r.Len() != 3 {
		t.Fatalf("len exceeded capacity: %d", r.Len())
	}
	if !r.IsFull() {
		t.Fatalf("expected full ring")
	}
}

func TestBlockPolicyUnblocksOnDrain(t *testing.T) {
	r := NewRing(1, PolicyBlock, time.Second)
	if err := r.Push(context.Background(), req("a")); err != nil {
		t.Fatalf("push a: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- r.Push(context.Background(), req("b")) }()
	// Give the pusher time to suspend, then free the slot.
	time.Sleep(20 * time.Millisecond)
	if got := r.DrainUpTo(1); len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("unexpected drain: %v", got)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("blocked push: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("blocked push never completed")
	}
	if got := r.DrainUpTo(1); len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("unexpected second drain: %v", got)
	}
}

func TestBlockPolicyTimeout(t *testing.T) {
	r := NewRing(1, PolicyBlock, 20*time.Millisecond)
	if err := r.Push(context.Background(), req("a")); err != nil {
		t.Fatalf("push a: %v", err)
	}
	err := r.Push(context.Background(), req("b"))
	if err == nil || !IsPushTimeout(err) {
		t.Fatalf("expected push timeout, got %v", err)
	}
}

func TestBlockPolicyContextCancel(t *testing.T) {
	r := NewRing(1, PolicyBlock, time.Second)
	if err := r.Push(context.Background(), req("a")); err != nil {
		t.Fatalf("push a: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Push(ctx, req("b")) }()
	time.Sleep(10 * time.Millisecond)
	cancel()
	if err := <-done; err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestCloseFailsPushersAndReturnsQueued(t *testing.T) {
	r := NewRing(2, PolicyBlock, time.Second)
	_ = r.Push(context.Background(), req("a"))
	_ = r.Push(context.Background(), req("b"))
	done := make(chan error, 1)
	go func() { done <- r.Push(context.Background(), req("c")) }()
	time.Sleep(10 * time.Millisecond)
	remaining := r.Close()
	if len(remaining) != 2 {
		t.Fatalf("expected 2 queued requests back, got %d", len(remaining))
	}
	if err := <-done; err == nil || !IsClosed(err) {
		t.Fatalf("expected closed error for suspended push, got %v", err)
	}
	if err := r.Push(context.Background(), req("d")); err == nil || !IsClosed(err) {
		t.Fatalf("expected closed error for new push, got %v", err)
	}
	// Idempotent.
	if again := r.Close(); again != nil {
		t.Fatalf("second close returned items: %v", again)
	}
}

func TestWakeSignalOnPush(t *testing.T) {
	r := NewRing(4, PolicyRejectFast, 0)
	select {
	case <-r.Wake():
		t.Fatalf("wake fired before any push")
	default:
	}
	_ = r.Push(context.Background(), req("a"))
	select {
	case <-r.Wake():
	default:
		t.Fatalf("expected wake after push")
	}
}

func TestConcurrentPushersPreserveCount(t *testing.T) {
	r := NewRing(64, PolicyBlock, time.Second)
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = r.Push(context.Background(), req(fmt.Sprintf("r%d", i)))
		}(i)
	}
	wg.Wait()
	if r.Len() != 64 {
		t.Fatalf("expected 64 queued, got %d", r.Len())
	}
	seen := map[string]bool{}
	for _, item := range r.DrainUpTo(64) {
		if seen[item.ID] {
			t.Fatalf("duplicate drain of %s", item.ID)
		}
		seen[item.ID] = true
	}
	if len(seen) != 64 {
		t.Fatalf("expected 64 unique, got %d", len(seen))
	}
}

func TestSequentialPushesKeepRelativeOrder(t *testing.T) {
	r := NewRing(4, PolicyRejectFast, 0)
	_ = r.Push(context.Background(), req("p1"))
	_ = r.Push(context.Background(), req("p2"))
	out := r.DrainUpTo(2)
	if out[0].ID != "p1" || out[1].ID != "p2" {
		t.Fatalf("happens-before order violated: %s, %s", out[0].ID, out[1].ID)
	}
}
