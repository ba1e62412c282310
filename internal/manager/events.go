package manager

// Event represents a manager lifecycle event: registration, readiness,
// batch execution, unload. Minimal and stable: name + model plus optional
// fields via key/values.
type Event struct {
	Name   string
	Model  string
	Fields map[string]any
}

// EventPublisher receives events from the manager and its batchers.
// Implementations should be lightweight and non-blocking; Publish must not
// panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
