// Package channel provides the generic inbox behind the widget loop. Debug
// builds make it unbuffered so a stalled consumer shows up at the sender.
package channel

import (
	"context"
	"sync"
)

// Receiver provides read access to a channel.
type Receiver[T any] interface {
	Receive() <-chan T
	Len() int
}

// Sender provides write access to a channel.
type Sender[T any] interface {
	Send(T)
	// SendContext blocks until v is accepted or ctx is done.
	SendContext(ctx context.Context, v T) error
}

// Channel combines read and write access.
type Channel[T any] interface {
	Receiver[T]
	Sender[T]
	Close()
}

// Inbox is a FIFO channel of fixed capacity. Capacity 0 hands each value
// directly to a receiver.
type Inbox[T any] struct {
	ch        chan T
	closeOnce sync.Once
}

// NewInbox creates an inbox holding up to capacity values.
func NewInbox[T any](capacity int) *Inbox[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &Inbox[T]{ch: make(chan T, capacity)}
}

// Send blocks until v is queued or handed over.
func (in *Inbox[T]) Send(v T) {
	in.ch <- v
}

// SendContext is Send bounded by ctx. A ctx that is already done wins even
// when there is room.
func (in *Inbox[T]) SendContext(ctx context.Context, v T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case in.ch <- v:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (in *Inbox[T]) Receive() <-chan T {
	return in.ch
}

// Len is the number of queued values; always 0 without a buffer.
func (in *Inbox[T]) Len() int {
	return len(in.ch)
}

// Cap is the configured capacity.
func (in *Inbox[T]) Cap() int {
	return cap(in.ch)
}

// Close may be called more than once.
func (in *Inbox[T]) Close() {
	in.closeOnce.Do(func() { close(in.ch) })
}
