// Package stream provides a replay-latest broadcast used to observe
// changing snapshots.
package stream

import "sync"

// Subject broadcasts values to subscribers. A new subscriber immediately
// receives the latest value. Each subscriber has a single-slot mailbox: if it
// has not consumed the previous value yet, the pending value is replaced by
// the newer one. Publish never blocks and subscribers never observe an older
// value after a newer one.
type Subject[T any] struct {
	mu     sync.Mutex
	latest T
	subs   map[*Subscription[T]]struct{}
	closed bool
}

// NewSubject creates a Subject holding an initial value.
func NewSubject[T any](initial T) *Subject[T] {
	return &Subject[T]{
		latest: initial,
		subs:   make(map[*Subscription[T]]struct{}),
	}
}

// Subscription is one reader of a Subject.
type Subscription[T any] struct {
	subject *Subject[T]
	ch      chan T
	once    sync.Once
}

// C returns the channel values are delivered on. It is closed when the
// subscription or the subject is closed.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// Close releases the subscription. It is safe to call more than once.
func (s *Subscription[T]) Close() {
	s.subject.mu.Lock()
	defer s.subject.mu.Unlock()
	s.subject.remove(s)
}

// Value returns the latest published value.
func (s *Subject[T]) Value() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// Subscribe registers a reader and delivers the latest value to it.
// Subscribing to a closed subject returns an already closed subscription.
func (s *Subject[T]) Subscribe() *Subscription[T] {
	sub := &Subscription[T]{subject: s, ch: make(chan T, 1)}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		sub.once.Do(func() { close(sub.ch) })
		return sub
	}
	sub.ch <- s.latest
	s.subs[sub] = struct{}{}
	return sub
}

// Publish stores v as the latest value and offers it to every subscriber.
func (s *Subject[T]) Publish(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.latest = v
	for sub := range s.subs {
		offer(sub.ch, v)
	}
}

// Update applies fn to the latest value and publishes the result, all under
// the subject lock. It returns the published value. On a closed subject fn is
// not called and Update returns the last value and false.
func (s *Subject[T]) Update(fn func(T) T) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return s.latest, false
	}
	next := fn(s.latest)
	s.latest = next
	for sub := range s.subs {
		offer(sub.ch, next)
	}
	return next, true
}

// Close closes every subscription. Later publishes are ignored.
func (s *Subject[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for sub := range s.subs {
		s.remove(sub)
	}
}

// Subscribers reports the number of open subscriptions.
func (s *Subject[T]) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// remove must be called with s.mu held.
func (s *Subject[T]) remove(sub *Subscription[T]) {
	if _, ok := s.subs[sub]; !ok {
		return
	}
	delete(s.subs, sub)
	sub.once.Do(func() { close(sub.ch) })
}

// offer must be called with the subject lock held, which makes the
// publisher the only sender on ch.
func offer[T any](ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}
	// Mailbox full: drop the stale value and put the newer one in its place.
	select {
	case <-ch:
	default:
	}
	ch <- v
}
