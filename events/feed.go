// Package events provides ordered publish/subscribe primitives used to
// notify about active account, active wallet set and adapter state changes.
package events

import (
	"sync"
)

// Feed delivers every sent value to every subscriber, in the order the
// values were sent. Send never blocks: each subscriber owns an unbounded
// queue that is drained by its own goroutine into the subscriber channel.
type Feed[T any] struct {
	mu     sync.Mutex
	subs   map[*Subscription[T]]struct{}
	closed bool
}

// Send enqueues v for every current subscriber.
func (f *Feed[T]) Send(v T) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for s := range f.subs {
		s.push(v)
	}
}

// Subscribe registers a new subscriber. Only values sent after this call
// are delivered.
func (f *Feed[T]) Subscribe() *Subscription[T] {
	return f.subscribe(nil)
}

// SubscribeFrom registers a new subscriber whose first delivered value is
// initial. Registration and the initial enqueue happen atomically with
// respect to Send, so no value sent concurrently can overtake initial.
func (f *Feed[T]) SubscribeFrom(initial T) *Subscription[T] {
	return f.subscribe(&initial)
}

func (f *Feed[T]) subscribe(initial *T) *Subscription[T] {
	s := newSubscription(f)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		s.terminate()
		return s
	}

	if f.subs == nil {
		f.subs = make(map[*Subscription[T]]struct{})
	}
	f.subs[s] = struct{}{}

	if initial != nil {
		s.push(*initial)
	}

	go s.run()

	return s
}

// Len returns the number of active subscribers.
func (f *Feed[T]) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Close terminates all subscriptions. Values already queued are still
// delivered before the subscriber channels are closed.
func (f *Feed[T]) Close() {
	f.mu.Lock()
	subs := f.subs
	f.subs = nil
	f.closed = true
	f.mu.Unlock()

	for s := range subs {
		s.finish()
	}
}

func (f *Feed[T]) remove(s *Subscription[T]) {
	f.mu.Lock()
	delete(f.subs, s)
	f.mu.Unlock()
}

// Subscription is a single subscriber of a Feed.
type Subscription[T any] struct {
	feed *Feed[T]

	mu       sync.Mutex
	queue    []T
	finished bool // no more values will be queued, drain then close
	wake     chan struct{}

	out      chan T
	quit     chan struct{}
	quitOnce sync.Once
	done     chan struct{}
}

func newSubscription[T any](f *Feed[T]) *Subscription[T] {
	return &Subscription[T]{
		feed: f,
		wake: make(chan struct{}, 1),
		out:  make(chan T),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// C returns the channel values are delivered on. It is closed once the
// subscription ends.
func (s *Subscription[T]) C() <-chan T {
	return s.out
}

// Done is closed when the delivery goroutine has exited.
func (s *Subscription[T]) Done() <-chan struct{} {
	return s.done
}

// Unsubscribe stops delivery and discards queued values. It waits for the
// delivery goroutine to exit.
func (s *Subscription[T]) Unsubscribe() {
	s.feed.remove(s)
	s.quitOnce.Do(func() { close(s.quit) })
	<-s.done
}

func (s *Subscription[T]) push(v T) {
	s.mu.Lock()
	s.queue = append(s.queue, v)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription[T]) finish() {
	s.mu.Lock()
	s.finished = true
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// terminate is used for subscriptions created on a closed feed.
func (s *Subscription[T]) terminate() {
	close(s.out)
	close(s.done)
	s.quitOnce.Do(func() { close(s.quit) })
}

func (s *Subscription[T]) run() {
	defer close(s.done)
	defer close(s.out)

	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			finished := s.finished
			s.mu.Unlock()
			if finished {
				return
			}
			select {
			case <-s.wake:
				continue
			case <-s.quit:
				return
			}
		}
		v := s.queue[0]
		var zero T
		s.queue[0] = zero
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- v:
		case <-s.quit:
			return
		}
	}
}
