package screen

import "sync"

// Static is a screen whose items are produced locally rather than fetched.
// It is Loaded (or Empty) from construction and Load is a no-op.
type Static[T any] struct {
	mu     sync.Mutex
	state  State[T]
	hub    hub
	closed bool
}

var _ View = (*Static[int])(nil)

// NewStatic returns a settled screen holding items.
func NewStatic[T any](items []T) *Static[T] {
	s := &Static[T]{}
	s.state = loaded(append([]T(nil), items...))
	s.state.Version = 1
	return s
}

// Load implements View; static screens never fetch.
func (s *Static[T]) Load() <-chan struct{} {
	return settledChan()
}

// Collection implements View.
func (s *Static[T]) Collection() string { return "" }

// State returns the current items.
func (s *Static[T]) State() State[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	st.Items = append([]T(nil), st.Items...)
	return st
}

// Snapshot implements View.
func (s *Static[T]) Snapshot() Snapshot {
	return s.State().Snapshot()
}

// Update replaces the items with fn's result. It reports false once closed.
func (s *Static[T]) Update(fn func(items []T) []T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	next := loaded(fn(append([]T(nil), s.state.Items...)))
	next.Version = s.state.Version + 1
	s.state = next
	s.hub.broadcast(next.Snapshot())
	return true
}

// Subscribe implements View.
func (s *Static[T]) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return closedWatch(s.state.Snapshot())
	}
	id, ch := s.hub.add(s.state.Snapshot())
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.hub.remove(id)
		})
	}
}

// Close releases subscribers.
func (s *Static[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.hub.closeAll()
}
