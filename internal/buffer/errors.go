package buffer

import (
	"fmt"
	"time"
)

// errFull signals a fail-fast rejection of a push against a full ring.
// It carries utilization at rejection time for observability.
type errFull struct {
	used     int
	capacity int
}

func (e errFull) Error() string {
	return fmt.Sprintf("buffer full: %d/%d slots occupied", e.used, e.capacity)
}

// IsFull reports whether err indicates a full buffer under fail-fast policy.
func IsFull(err error) bool {
	_, ok := err.(errFull)
	return ok
}

// errPushTimeout signals that a blocked push gave up waiting for a slot.
type errPushTimeout struct {
	used     int
	capacity int
	waited   time.Duration
}

func (e errPushTimeout) Error() string {
	return fmt.Sprintf("push timed out after %s: %d/%d slots occupied", e.waited, e.used, e.capacity)
}

// IsPushTimeout reports whether err indicates a blocked push that timed out.
func IsPushTimeout(err error) bool {
	_, ok := err.(errPushTimeout)
	return ok
}

// errClosed signals a push against a closed ring.
type errClosed struct{}

func (errClosed) Error() string { return "buffer closed" }

// IsClosed reports whether err indicates a closed buffer.
func IsClosed(err error) bool {
	_, ok := err.(errClosed)
	return ok
}
