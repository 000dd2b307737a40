// Package livesocket is the widget side of the live channel: it joins the
// sightings topic, feeds update_markers snapshots to a widget loop and
// pushes marker selections back.
package livesocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sporewatch/sightingmap/internal/dispatcher"
	"github.com/sporewatch/sightingmap/internal/widget"
	"github.com/sporewatch/sightingmap/pkg/core"
	"github.com/sporewatch/sightingmap/pkg/streaming"
)

// snapshotBuffer bounds snapshots waiting between the socket and the widget.
const snapshotBuffer = 64

// Config holds live channel client configuration.
type Config struct {
	URL       string
	CSRFToken string
	// ReconnectBackoff is the first retry delay; zero means one second.
	ReconnectBackoff time.Duration
	AckTimeout       time.Duration
}

// Sink receives widget messages, normally a *widget.Loop.
type Sink interface {
	Send(widget.Message) error
}

// Client is a live channel connection bound to one widget.
type Client struct {
	conn       *connection
	cfg        Config
	dispatcher *dispatcher.Dispatcher
	logger     *slog.Logger

	sinkMu sync.RWMutex
	sink   Sink
}

// New creates a client that routes inbound events through d and delivers
// snapshots to sink. It registers the update_markers handler on d.
func New(cfg Config, d *dispatcher.Dispatcher, sink Sink, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "livesocket")

	c := &Client{
		cfg:        cfg,
		dispatcher: d,
		sink:       sink,
		logger:     logger,
	}
	c.conn = newConnection(logger, c.route)
	if cfg.ReconnectBackoff > 0 {
		c.conn.backoff = cfg.ReconnectBackoff
	}

	d.Register(streaming.TypeUpdateMarkers, c.handleUpdateMarkers,
		dispatcher.Buffered(snapshotBuffer), dispatcher.Blocking(), dispatcher.Logged())
	return c
}

// SetSink replaces the snapshot receiver. Mount needs the client as its
// pusher before the widget loop exists, so the loop is attached here.
func (c *Client) SetSink(sink Sink) {
	c.sinkMu.Lock()
	defer c.sinkMu.Unlock()
	c.sink = sink
}

func (c *Client) currentSink() Sink {
	c.sinkMu.RLock()
	defer c.sinkMu.RUnlock()
	return c.sink
}

// OnReconnect sets a callback run after every successful reconnect.
func (c *Client) OnReconnect(fn func(attempt int)) {
	c.conn.onReconnect = fn
}

// OnGiveUp sets a callback run when reconnecting has failed for good.
func (c *Client) OnGiveUp(fn func()) {
	c.conn.onGiveUp = fn
}

// Connect dials the live endpoint and joins the sightings topic. The join
// frame is cached and replayed after every reconnect.
func (c *Client) Connect() error {
	join, err := streaming.MarshalEnvelope(streaming.TypeJoin, streaming.JoinPayload{
		Topic:     streaming.TopicSightings,
		CSRFToken: c.cfg.CSRFToken,
	})
	if err != nil {
		return err
	}

	c.conn.mu.Lock()
	c.conn.cachedJoin = join
	c.conn.mu.Unlock()

	if err := c.conn.dial(c.cfg.URL, c.cfg.CSRFToken); err != nil {
		return err
	}

	timeout := c.cfg.AckTimeout
	if timeout <= 0 {
		timeout = ackTimeout
	}
	if err := c.conn.sendAndWait(join, streaming.TypeJoin, timeout); err != nil {
		return fmt.Errorf("join %s: %w", streaming.TopicSightings, err)
	}
	c.logger.Info("Joined live channel", "topic", streaming.TopicSightings)
	return nil
}

// PushEvent sends an event upstream. It satisfies widget.Pusher.
func (c *Client) PushEvent(event string, payload any) error {
	data, err := streaming.MarshalEnvelope(event, payload)
	if err != nil {
		return err
	}
	return c.conn.send(data)
}

// Close leaves the channel and waits for queued snapshots to be delivered.
func (c *Client) Close() error {
	err := c.conn.close()
	c.dispatcher.Close()
	return err
}

func (c *Client) route(env streaming.Envelope) {
	err := c.dispatcher.Dispatch(dispatcher.Event{
		Name:      env.Type,
		Payload:   env.Payload,
		Timestamp: time.Now(),
	})
	switch {
	case err == nil:
	case errors.Is(err, dispatcher.ErrUnknownEvent):
		c.logger.Debug("Ignoring live event", "event", env.Type)
	default:
		c.logger.Error("Live event not dispatched", "event", env.Type, "error", err)
	}
}

// handleUpdateMarkers decodes a snapshot. Bad entries are skipped; a payload
// without a sightings array is rejected and the widget is left untouched.
func (c *Client) handleUpdateMarkers(e dispatcher.Event) error {
	var p struct {
		Sightings json.RawMessage `json:"sightings"`
	}
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return fmt.Errorf("%w: %v", core.ErrMalformedPayload, err)
	}

	sightings, skipped, err := core.ParseSightings(p.Sightings)
	if err != nil {
		return err
	}
	for _, skip := range skipped {
		c.logger.Warn("Skipping malformed sighting", "error", skip)
	}

	sink := c.currentSink()
	if sink == nil {
		return errors.New("no snapshot sink attached")
	}
	if err := sink.Send(widget.SnapshotReceived{Sightings: sightings}); err != nil {
		return fmt.Errorf("deliver snapshot: %w", err)
	}
	return nil
}
