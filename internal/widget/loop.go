package widget

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sporewatch/sightingmap/internal/channel"
)

// DefaultInboxSize bounds how many events may wait for the loop.
const DefaultInboxSize = 64

// Loop feeds messages to a Synchronizer from a single goroutine, strictly in
// the order they were sent. It never coalesces or reorders.
type Loop struct {
	sync   *Synchronizer
	inbox  channel.Channel[Message]
	logger *slog.Logger

	afterHandle func(Message, error)

	ctx    context.Context
	cancel context.CancelFunc
}

// NewLoop wraps s. Marker clicks from then on are queued behind any
// snapshots already sent.
func NewLoop(s *Synchronizer, size int) *Loop {
	if size <= 0 {
		size = DefaultInboxSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	l := &Loop{
		sync:   s,
		inbox:  channel.New[Message](size),
		logger: s.logger,
		ctx:    ctx,
		cancel: cancel,
	}
	s.routeClicksThrough(l.Send)
	return l
}

// AfterHandle sets a callback run on the loop goroutine after every handled
// message. Set it before Run.
func (l *Loop) AfterHandle(fn func(msg Message, err error)) {
	l.afterHandle = fn
}

// Send queues msg. It blocks while the inbox is full and fails once the loop
// has stopped.
func (l *Loop) Send(msg Message) error {
	if msg == nil {
		return errors.New("nil widget message")
	}
	if err := l.inbox.SendContext(l.ctx, msg); err != nil {
		return ErrLoopStopped
	}
	return nil
}

// Pending returns the number of queued messages.
func (l *Loop) Pending() int {
	return l.inbox.Len()
}

// Run handles queued messages until ctx is done, Stop is called or an
// Unmount message has been handled. A failed Unmount is returned.
func (l *Loop) Run(ctx context.Context) error {
	defer l.cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.ctx.Done():
			return nil
		case msg := <-l.inbox.Receive():
			err := l.sync.Handle(msg)
			if err != nil && !errors.Is(err, ErrStaleMarker) {
				l.logger.Error("Widget event failed", "event", msg.messageName(), "error", err)
			}
			if l.afterHandle != nil {
				l.afterHandle(msg, err)
			}
			if _, ok := msg.(Unmount); ok {
				return err
			}
			if errors.Is(err, ErrUnmounted) {
				return nil
			}
		}
	}
}

// Stop makes Run return and rejects further sends.
func (l *Loop) Stop() {
	l.cancel()
}
