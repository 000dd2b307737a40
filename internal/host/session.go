package host

import (
	"log/slog"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
)

const (
	sessionSendSize = 64
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = (pongWait * 9) / 10
	maxFrameSize    = 64 << 10
)

// session is one live websocket. Only writeLoop writes to conn.
type session struct {
	id     string
	conn   *ws.Conn
	send   chan []byte
	done   chan struct{}
	joined bool // guarded by Hub.mu

	closeOnce sync.Once
	logger    *slog.Logger
}

func newSession(id string, conn *ws.Conn, logger *slog.Logger) *session {
	return &session{
		id:     id,
		conn:   conn,
		send:   make(chan []byte, sessionSendSize),
		done:   make(chan struct{}),
		logger: logger.With("session", id),
	}
}

// enqueue never blocks. A false return means the session cannot keep up.
func (s *session) enqueue(data []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- data:
		return true
	default:
		return false
	}
}

func (s *session) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer s.conn.Close()

	for {
		select {
		case <-s.done:
			_ = s.conn.WriteControl(ws.CloseMessage,
				ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case data := <-s.send:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				s.logger.Debug("Session SetWriteDeadline error", "error", err)
				s.close()
				return
			}
			if err := s.conn.WriteMessage(ws.TextMessage, data); err != nil {
				s.logger.Debug("Session write error", "error", err)
				s.close()
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(ws.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				s.logger.Debug("Session ping failed", "error", err)
				s.close()
				return
			}
		}
	}
}

func (s *session) close() {
	s.closeOnce.Do(func() { close(s.done) })
}
