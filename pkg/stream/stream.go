// Package stream provides a bounded single-producer/single-consumer conduit
// that applies backpressure to the producer.
package stream

import (
	"context"
	"errors"
	"io"
	"sync"
)

// DefaultCapacity is the number of values that may be buffered between
// producer and consumer.
const DefaultCapacity = 4

// ErrClosed is returned by Send once the receiver has detached or the
// sender has been closed.
var ErrClosed = errors.New("stream: closed")

type pipe[T any] struct {
	ch         chan T
	detached   chan struct{}
	detachOnce sync.Once
	closeOnce  sync.Once
	closed     chan struct{}
}

// Sender is the producing half.
type Sender[T any] struct {
	p *pipe[T]
}

// Receiver is the consuming half.
type Receiver[T any] struct {
	p *pipe[T]
}

// New returns both halves of a pipe buffering at most capacity values.
func New[T any](capacity int) (*Sender[T], *Receiver[T]) {
	if capacity < 1 {
		capacity = 1
	}
	p := &pipe[T]{
		ch:       make(chan T, capacity),
		detached: make(chan struct{}),
		closed:   make(chan struct{}),
	}
	return &Sender[T]{p: p}, &Receiver[T]{p: p}
}

// Send pushes v, suspending while the buffer is full. It fails with
// ErrClosed when the receiver is gone and with ctx.Err() when ctx ends.
func (s *Sender[T]) Send(ctx context.Context, v T) error {
	// A detached receiver wins over free buffer space.
	select {
	case <-s.p.detached:
		return ErrClosed
	case <-s.p.closed:
		return ErrClosed
	default:
	}

	select {
	case s.p.ch <- v:
		return nil
	case <-s.p.detached:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close signals that no more values will be sent. Buffered values remain
// readable. Close must be called from the producing goroutine.
func (s *Sender[T]) Close() {
	s.p.closeOnce.Do(func() {
		close(s.p.closed)
		close(s.p.ch)
	})
}

// Detached is closed once the receiver detaches.
func (s *Sender[T]) Detached() <-chan struct{} {
	return s.p.detached
}

// Recv returns the next value, io.EOF once the sender has closed and the
// buffer is drained, or ctx.Err().
func (r *Receiver[T]) Recv(ctx context.Context) (T, error) {
	var zero T
	select {
	case v, ok := <-r.p.ch:
		if !ok {
			return zero, io.EOF
		}
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Detach tells the producer the consumer is gone. Pending and future sends
// fail with ErrClosed.
func (r *Receiver[T]) Detach() {
	r.p.detachOnce.Do(func() { close(r.p.detached) })
}

// Len is the number of buffered values.
func (r *Receiver[T]) Len() int { return len(r.p.ch) }

// Cap is the buffer capacity.
func (r *Receiver[T]) Cap() int { return cap(r.p.ch) }
