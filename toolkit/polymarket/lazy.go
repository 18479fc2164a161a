package polymarket

import "sync"

// lazySlot holds one client created on first use. Creation and close share
// the mutex, so a client is created at most once and never after close.
type lazySlot[T any] struct {
	mu     sync.Mutex
	create func() (T, error)
	value  T
	ready  bool
	closed bool
}

func newLazySlot[T any](create func() (T, error)) *lazySlot[T] {
	return &lazySlot[T]{create: create}
}

// get returns the client, creating it if needed. A failed creation leaves the
// slot uninitialized.
func (s *lazySlot[T]) get() (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	if s.closed {
		return zero, ErrClosed
	}
	if !s.ready {
		v, err := s.create()
		if err != nil {
			return zero, err
		}
		s.value, s.ready = v, true
	}
	return s.value, nil
}

// active reports whether the client has been created and not closed.
func (s *lazySlot[T]) active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready && !s.closed
}

// close marks the slot closed and releases an active client.
func (s *lazySlot[T]) close(release func(T)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.ready {
		release(s.value)
		var zero T
		s.value, s.ready = zero, false
	}
}
