// Package dispatcher routes live-channel events to handlers by name. A
// buffered handler gets its own worker goroutine, so events of one name are
// handled in arrival order.
package dispatcher

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrUnknownEvent is returned when no handler is registered for an event.
	ErrUnknownEvent = errors.New("unknown event")
	// ErrQueueFull is returned when a non-blocking buffered handler drops an event.
	ErrQueueFull = errors.New("queue full")
	// ErrClosed is returned for dispatches after Close.
	ErrClosed = errors.New("dispatcher closed")
)

// Event is one inbound message from the live channel.
type Event struct {
	Name      string
	Payload   json.RawMessage
	Timestamp time.Time
}

// HandlerFunc processes an event.
type HandlerFunc func(Event) error

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*options)

type options struct {
	buffer   int
	blocking bool
	logged   bool
}

// Buffered queues up to size events for the handler's worker.
func Buffered(size int) Option {
	return func(o *options) { o.buffer = size }
}

// Blocking makes Dispatch wait for room in a full buffer instead of
// dropping the event.
func Blocking() Option {
	return func(o *options) { o.blocking = true }
}

// Logged logs each event as the handler runs it, inside any buffer.
func Logged() Option {
	return func(o *options) { o.logged = true }
}

// Dispatcher routes events to registered handlers.
type Dispatcher struct {
	logger  Logger
	metrics *metrics

	// mu guards closed and workers; handlers is fixed after registration.
	mu       sync.RWMutex
	closed   bool
	handlers map[string]HandlerFunc
	workers  map[string]*worker
	running  sync.WaitGroup
}

type worker struct {
	name  string
	queue chan Event
}

// New creates a dispatcher. Metrics go to the global OTel meter provider,
// which is a no-op unless the process installs one.
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		logger:   logger,
		handlers: make(map[string]HandlerFunc),
		workers:  make(map[string]*worker),
	}
	m, err := newMetrics(d.queueLengths)
	if err != nil {
		return nil, err
	}
	d.metrics = m
	return d, nil
}

// Register adds the handler for name. All handlers must be registered
// before the first Dispatch.
func (d *Dispatcher) Register(name string, h HandlerFunc, opts ...Option) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if o.logged {
		h = d.logged(name, h)
	}
	if o.buffer > 0 {
		h = d.buffered(name, o.buffer, o.blocking, h)
	}
	d.handlers[name] = h
}

// Dispatch runs or enqueues e. A buffered handler's own error is logged by
// its worker rather than returned.
func (d *Dispatcher) Dispatch(e Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrClosed
	}
	h, ok := d.handlers[e.Name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEvent, e.Name)
	}
	return h(e)
}

// HasHandler reports whether name has a handler.
func (d *Dispatcher) HasHandler(name string) bool {
	_, ok := d.handlers[name]
	return ok
}

// Close rejects further events and waits until every worker has drained
// its queue.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		for _, w := range d.workers {
			close(w.queue)
		}
	}
	d.mu.Unlock()

	d.running.Wait()
}

func (d *Dispatcher) queueLengths() map[string]int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]int, len(d.workers))
	for name, w := range d.workers {
		out[name] = len(w.queue)
	}
	return out
}

func (d *Dispatcher) buffered(name string, size int, blocking bool, h HandlerFunc) HandlerFunc {
	w := &worker{name: name, queue: make(chan Event, size)}

	d.mu.Lock()
	d.workers[name] = w
	d.mu.Unlock()

	d.running.Add(1)
	go func() {
		defer d.running.Done()
		for e := range w.queue {
			start := time.Now()
			if err := h(e); err != nil {
				d.logger.Error("buffered event failed", "event", name, "error", err)
			}
			d.metrics.handled(name, time.Since(start))
		}
	}()

	if blocking {
		return func(e Event) error {
			w.queue <- e
			return nil
		}
	}
	return func(e Event) error {
		select {
		case w.queue <- e:
			return nil
		default:
			d.metrics.drop(name)
			return fmt.Errorf("%w: %s", ErrQueueFull, name)
		}
	}
}

func (d *Dispatcher) logged(name string, h HandlerFunc) HandlerFunc {
	return func(e Event) error {
		start := time.Now()
		d.logger.Debug("handling event", "event", name, "bytes", len(e.Payload))

		if err := h(e); err != nil {
			d.logger.Error("event failed", "event", name, "duration", time.Since(start), "error", err)
			return err
		}
		d.logger.Debug("event complete", "event", name, "duration", time.Since(start))
		return nil
	}
}
