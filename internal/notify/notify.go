// Package notify delivers value changes to subscribers.
//
// A Broadcaster remembers the last published value and drops repeats, so
// each subscriber sees every transition at most once. Delivery runs on a
// single goroutine in publish order and never blocks the publisher.
package notify

import (
	"slices"
	"sync"
)

type subscriber[T any] struct {
	id uint64
	fn func(T)
}

// Broadcaster fans out changes of a comparable value.
type Broadcaster[T comparable] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	last   T
	subs   []subscriber[T]
	nextID uint64
	queue  []T
	busy   bool
	closed bool
	done   chan struct{}
}

// New starts a broadcaster holding initial. Initial is not delivered.
func New[T comparable](initial T) *Broadcaster[T] {
	b := &Broadcaster[T]{
		last: initial,
		done: make(chan struct{}),
	}
	b.cond = sync.NewCond(&b.mu)
	go b.run()
	return b
}

// Value returns the last published value.
func (b *Broadcaster[T]) Value() T {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}

// Publish records v and queues it for delivery if it differs from the last
// value. It reports whether v was a change.
func (b *Broadcaster[T]) Publish(v T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || v == b.last {
		return false
	}
	b.last = v
	b.queue = append(b.queue, v)
	b.cond.Broadcast()
	return true
}

// Subscribe registers fn for future changes. The returned function removes
// it and may be called more than once.
func (b *Broadcaster[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscriber[T]{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.subs = slices.DeleteFunc(b.subs, func(s subscriber[T]) bool { return s.id == id })
	}
}

// Drain blocks until every queued change has been delivered.
// It must not be called from a subscriber.
func (b *Broadcaster[T]) Drain() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for (len(b.queue) > 0 || b.busy) && !b.closed {
		b.cond.Wait()
	}
}

// Close discards undelivered changes and stops delivery. It waits for an
// in-progress delivery to return, so it must not be called from a
// subscriber.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		<-b.done
		return
	}
	b.closed = true
	b.queue = nil
	b.cond.Broadcast()
	b.mu.Unlock()
	<-b.done
}

func (b *Broadcaster[T]) run() {
	defer close(b.done)

	b.mu.Lock()
	defer b.mu.Unlock()
	for {
		for len(b.queue) == 0 && !b.closed {
			b.cond.Wait()
		}
		if b.closed {
			return
		}

		v := b.queue[0]
		b.queue = b.queue[1:]
		subs := slices.Clone(b.subs)
		b.busy = true
		b.mu.Unlock()

		for _, s := range subs {
			s.fn(v)
		}

		b.mu.Lock()
		b.busy = false
		b.cond.Broadcast()
	}
}
