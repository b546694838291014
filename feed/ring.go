package feed

import "sync"

// DefaultCapacity is the number of events a Ring keeps when none is given.
const DefaultCapacity = 50

// Event is one agent status report from the feed.
type Event struct {
	Agent     string    `json:"agent"`
	Status    string    `json:"status"`
	Timestamp Timestamp `json:"timestamp"`
}

// Ring is a fixed-capacity event buffer. Once full, Append evicts the oldest
// event.
type Ring struct {
	mu    sync.RWMutex
	buf   []Event
	start int
	n     int
}

// NewRing returns an empty ring. capacity <= 0 selects DefaultCapacity.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{buf: make([]Event, capacity)}
}

func (r *Ring) Append(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.n < len(r.buf) {
		r.buf[(r.start+r.n)%len(r.buf)] = e
		r.n++
		return
	}
	r.buf[r.start] = e
	r.start = (r.start + 1) % len(r.buf)
}

// Events returns a copy of the buffered events, oldest first.
func (r *Ring) Events() []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Event, r.n)
	for i := 0; i < r.n; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.n
}

func (r *Ring) Cap() int {
	return len(r.buf)
}
