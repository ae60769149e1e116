package events

import "sync"

// Value is a level-triggered signal. A new subscriber immediately receives
// the current value, followed by every later change.
type Value[T comparable] struct {
	mu   sync.Mutex
	v    T
	feed Feed[T]
}

// NewValue returns a Value holding initial.
func NewValue[T comparable](initial T) *Value[T] {
	return &Value[T]{v: initial}
}

func (s *Value[T]) Get() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.v
}

// Set stores v and notifies subscribers. It reports whether the value
// changed; setting an equal value is not published.
func (s *Value[T]) Set(v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.v == v {
		return false
	}
	s.v = v
	s.feed.Send(v)
	return true
}

func (s *Value[T]) Subscribe() *Subscription[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feed.SubscribeFrom(s.v)
}

func (s *Value[T]) Close() {
	s.feed.Close()
}
