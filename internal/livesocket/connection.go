package livesocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/sporewatch/sightingmap/pkg/streaming"
)

const (
	sendChSize   = 256
	ackChSize    = 16
	maxReconnect = 10
	maxBackoff   = 30 * time.Second
	writeWait    = 10 * time.Second
	ackTimeout   = 10 * time.Second
)

// ErrClosed is returned for sends on a closed connection.
var ErrClosed = errors.New("live connection closed")

// frame is the union of an Envelope and an AckMessage.
type frame struct {
	Type    string          `json:"type"`
	For     string          `json:"for,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// connection manages a WebSocket connection with a single write goroutine.
type connection struct {
	mu     sync.Mutex
	conn   *ws.Conn
	quit   chan struct{} // closed when conn is dropped
	sendCh chan []byte
	ackCh  chan streaming.AckMessage
	done   chan struct{} // closed on shutdown
	closed bool

	wsURL     string
	csrfToken string
	backoff   time.Duration

	// join frame replayed after every reconnect
	cachedJoin []byte

	onEnvelope  func(streaming.Envelope)
	onReconnect func(attempt int)
	onGiveUp    func()

	logger *slog.Logger
}

func newConnection(logger *slog.Logger, onEnvelope func(streaming.Envelope)) *connection {
	return &connection{
		sendCh:      make(chan []byte, sendChSize),
		ackCh:       make(chan streaming.AckMessage, ackChSize),
		done:        make(chan struct{}),
		backoff:     time.Second,
		onEnvelope:  onEnvelope,
		onReconnect: func(int) {},
		onGiveUp:    func() {},
		logger:      logger,
	}
}

// dial connects to the live endpoint and starts read/write loops.
func (c *connection) dial(rawURL, csrfToken string) error {
	c.wsURL = rawURL
	c.csrfToken = csrfToken

	conn, err := c.dialOnce()
	if err != nil {
		return err
	}

	c.start(conn)
	return nil
}

// dialOnce performs a single WebSocket dial with the CSRF token query param.
func (c *connection) dialOnce() (*ws.Conn, error) {
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	if c.csrfToken != "" {
		q := u.Query()
		q.Set(streaming.CSRFQueryParam, c.csrfToken)
		u.RawQuery = q.Encode()
	}

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// writeLoop drains sendCh and writes messages to conn. It returns on error,
// shutdown or when conn has been replaced.
func (c *connection) writeLoop(conn *ws.Conn, quit <-chan struct{}) {
	for {
		select {
		case <-c.done:
			return
		case <-quit:
			return
		case data := <-c.sendCh:
			if !c.current(conn) {
				// requeue for the loop of the new connection
				c.requeue(data)
				return
			}

			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("WebSocket SetWriteDeadline error", "error", err)
				go c.reconnect(conn)
				return
			}
			if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
				c.logger.Warn("WebSocket write error", "error", err)
				go c.reconnect(conn)
				return
			}
		}
	}
}

// readLoop routes acks to ackCh and every other envelope to onEnvelope.
func (c *connection) readLoop(conn *ws.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.logger.Warn("WebSocket read error", "error", err)
			go c.reconnect(conn)
			return
		}

		var f frame
		if err := json.Unmarshal(message, &f); err != nil || f.Type == "" {
			c.logger.Debug("Unrecognised frame received", "raw", string(message))
			continue
		}

		if f.Type == streaming.TypeAck {
			select {
			case c.ackCh <- streaming.AckMessage{Type: f.Type, For: f.For}:
			default:
				c.logger.Debug("Ack channel full, dropping", "for", f.For)
			}
			continue
		}

		c.onEnvelope(streaming.Envelope{Type: f.Type, Payload: f.Payload})
	}
}

// start installs conn and runs its loops.
func (c *connection) start(conn *ws.Conn) {
	quit := make(chan struct{})

	c.mu.Lock()
	c.conn = conn
	c.quit = quit
	c.mu.Unlock()

	go c.writeLoop(conn, quit)
	go c.readLoop(conn)
}

func (c *connection) current(conn *ws.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn == conn
}

func (c *connection) requeue(data []byte) {
	select {
	case c.sendCh <- data:
	default:
		c.logger.Warn("WebSocket send channel full, dropping message")
	}
}

// reconnect re-establishes the connection with exponential backoff. On
// success it replays the cached join and restarts the read/write loops.
// Only the first caller for a given broken conn does any work.
func (c *connection) reconnect(broken *ws.Conn) {
	c.mu.Lock()
	if c.closed || c.conn != broken {
		c.mu.Unlock()
		return
	}
	_ = c.conn.Close()
	c.conn = nil
	close(c.quit)
	c.mu.Unlock()

	backoff := c.backoff
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		c.logger.Info("Reconnecting to live channel", "attempt", attempt, "backoff", backoff)
		select {
		case <-c.done:
			return
		case <-time.After(backoff):
		}

		conn, err := c.dialOnce()
		if err != nil {
			c.logger.Warn("Reconnect dial failed", "attempt", attempt, "error", err)
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = conn.Close()
			return
		}
		cached := c.cachedJoin
		c.mu.Unlock()

		if cached != nil {
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("Failed to set deadline for join replay", "error", err)
				_ = conn.Close()
				continue
			}
			if err := conn.WriteMessage(ws.TextMessage, cached); err != nil {
				c.logger.Warn("Failed to replay join after reconnect", "error", err)
				_ = conn.Close()
				continue
			}
		}

		c.start(conn)
		c.logger.Info("Live channel reconnected", "attempt", attempt)
		c.onReconnect(attempt)
		return
	}

	c.logger.Error("Live channel reconnect failed after max attempts", "maxAttempts", maxReconnect)
	c.onGiveUp()
}

// send pushes data to the write loop. Non-blocking; drops if channel full.
func (c *connection) send(data []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.sendCh <- data:
		return nil
	default:
		return errors.New("live send channel full")
	}
}

// sendAndWait sends data and blocks until the server acknowledges with a
// matching ack message or the timeout expires.
func (c *connection) sendAndWait(data []byte, ackFor string, timeout time.Duration) error {
	if err := c.send(data); err != nil {
		return err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ack := <-c.ackCh:
			if ack.For == ackFor {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("timeout waiting for ack of %q", ackFor)
		case <-c.done:
			return fmt.Errorf("%w while waiting for ack of %q", ErrClosed, ackFor)
		}
	}
}

// close sends a WebSocket close frame and shuts down all goroutines.
func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		return conn.Close()
	}
	return nil
}
