package session

import "sync"

// Reader is the read-only view of a [Store]. It is what the route gate and the
// panels receive; only the credential verifier holds the writable *Store.
type Reader interface {
	Get() *Session
	Subscribe(fn func(*Session)) (unsubscribe func())
}

type subscriber struct {
	id uint64
	fn func(*Session)
}

// Store holds the current Session or nothing. Writes replace the whole value and
// are pushed to every subscriber before Set returns.
//
// Subscribers run on the writer's goroutine and must not call Set.
type Store struct {
	mu      sync.RWMutex
	current *Session
	subs    []subscriber
	nextID  uint64

	// notifyMu keeps deliveries for consecutive Sets from interleaving.
	notifyMu sync.Mutex
}

// NewStore returns an empty Store (no session).
func NewStore() *Store {
	return &Store{}
}

// Get returns a copy of the current session, or nil when absent.
func (s *Store) Get() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Set replaces the current session. Passing nil clears it.
func (s *Store) Set(next *Session) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.current = next.Clone()
	subs := make([]subscriber, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(next.Clone())
	}
}

// Subscribe registers fn for every subsequent Set. The returned function removes
// the registration and may be called more than once.
func (s *Store) Subscribe(fn func(*Session)) func() {
	if fn == nil {
		return func() {}
	}

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}
