// Package stream provides Subscription, the cancellable sequence every live
// query and push listener in the client is modelled as.
//
// A producer calls Publish for each value and Fail when the source ends.
// A single consumer pulls values with Next. Close is the consumer's scoped
// release: once it returns, Next never yields another value and Publish
// reports false, so no update can reach a disposed state container.
package stream

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Next after Close.
var ErrClosed = errors.New("stream: subscription closed")

// Mode selects how undelivered values are buffered.
type Mode int

const (
	// Queue delivers every published value in order.
	Queue Mode = iota
	// Latest keeps only the most recent undelivered value. Use it for
	// full-result snapshots, where an older snapshot is never needed once a
	// newer one exists.
	Latest
)

type Subscription[T any] struct {
	mode Mode

	mu     sync.Mutex
	items  []T
	closed bool
	err    error

	ready   chan struct{}
	done    chan struct{}
	once    sync.Once
	release func()
}

// New creates an open subscription. release, if non-nil, runs exactly once
// on Close; producers use it to detach the underlying listener.
func New[T any](mode Mode, release func()) *Subscription[T] {
	return &Subscription[T]{
		mode:    mode,
		ready:   make(chan struct{}, 1),
		done:    make(chan struct{}),
		release: release,
	}
}

// Publish offers v to the consumer. It returns false when the subscription
// is closed or has failed, in which case v is dropped.
func (s *Subscription[T]) Publish(v T) bool {
	s.mu.Lock()
	if s.closed || s.err != nil {
		s.mu.Unlock()
		return false
	}
	if s.mode == Latest {
		s.items = append(s.items[:0], v)
	} else {
		s.items = append(s.items, v)
	}
	s.mu.Unlock()

	s.signal()
	return true
}

// Fail ends the subscription from the producer side. Values already
// published are still delivered; after them Next returns err.
func (s *Subscription[T]) Fail(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	if s.closed || s.err != nil {
		s.mu.Unlock()
		return
	}
	s.err = err
	s.mu.Unlock()

	s.signal()
}

// Next blocks until a value is available, the subscription ends, or ctx is
// done.
func (s *Subscription[T]) Next(ctx context.Context) (T, error) {
	var zero T
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return zero, ErrClosed
		}
		if len(s.items) > 0 {
			v := s.items[0]
			s.items[0] = zero
			s.items = s.items[1:]
			s.mu.Unlock()
			return v, nil
		}
		if s.err != nil {
			err := s.err
			s.mu.Unlock()
			return zero, err
		}
		s.mu.Unlock()

		select {
		case <-s.ready:
		case <-s.done:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// Close discards pending values, wakes a blocked Next and runs the release
// hook. It is safe to call more than once.
func (s *Subscription[T]) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.items = nil
		s.mu.Unlock()

		close(s.done)
		if s.release != nil {
			s.release()
		}
	})
}

// Done is closed once Close has been called.
func (s *Subscription[T]) Done() <-chan struct{} {
	return s.done
}

// Closed reports whether Close has been called.
func (s *Subscription[T]) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Subscription[T]) signal() {
	select {
	case s.ready <- struct{}{}:
	default:
	}
}
