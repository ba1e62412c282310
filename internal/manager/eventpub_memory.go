package manager

import "sync"

// memoryRetention bounds how many events a MemoryPublisher keeps; once the
// window is full the oldest events are discarded.
const memoryRetention = 256

// MemoryPublisher retains the most recent lifecycle events in memory.
// Tests assert against it, and retention is bounded so a long-lived
// instance does not grow with uptime.
type MemoryPublisher struct {
	mu   sync.Mutex
	evts []Event
}

func NewMemoryPublisher() *MemoryPublisher { return &MemoryPublisher{} }

func (p *MemoryPublisher) Publish(e Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.evts) >= memoryRetention {
		p.evts = append(p.evts[:0], p.evts[1:]...)
	}
	p.evts = append(p.evts, e)
}

// Events returns a copy of the retained events in publish order.
func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.evts))
	copy(out, p.evts)
	return out
}

// Named returns the retained events carrying the given name, so assertions
// stay independent of unrelated lifecycle noise.
func (p *MemoryPublisher) Named(name string) []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Event
	for _, e := range p.evts {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}
