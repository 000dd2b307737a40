// Package host serves the sightings API and the live channel that pushes
// update_markers snapshots to mounted widgets.
package host

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"github.com/samber/lo"

	"github.com/sporewatch/sightingmap/internal/influx"
	"github.com/sporewatch/sightingmap/internal/queue"
	"github.com/sporewatch/sightingmap/internal/storage"
	"github.com/sporewatch/sightingmap/pkg/core"
	"github.com/sporewatch/sightingmap/pkg/streaming"
)

const (
	DefaultFlushInterval  = 5 * time.Second
	DefaultSelectionLimit = 10000
)

var (
	// ErrHubClosed is returned once Close has been called.
	ErrHubClosed = errors.New("hub closed")
	// ErrBadCSRFToken rejects a connection or join with the wrong token.
	ErrBadCSRFToken = errors.New("invalid csrf token")
)

// Config tunes a Hub.
type Config struct {
	// CSRFToken must match the token sent by clients. Empty disables the check.
	CSRFToken      string
	AllowedOrigins []string
	FlushInterval  time.Duration
	SelectionLimit int
}

// Hub tracks live sessions, broadcasts snapshots and buffers selections.
type Hub struct {
	store    storage.Store
	recorder *influx.Recorder
	cfg      Config
	logger   *slog.Logger
	upgrader ws.Upgrader

	// publishMu keeps save order and broadcast order the same
	publishMu sync.Mutex

	// mu guards sessions, latest and closed. Joins and broadcasts both
	// enqueue under it, so a joiner never sees an older snapshot after a
	// newer one.
	mu       sync.Mutex
	sessions map[string]*session
	latest   []byte
	closed   bool

	// read without mu so log attrs never contend with a broadcast
	joined atomic.Int64

	selections *queue.Queue[core.Selection]
	flushMu    sync.Mutex
	lastFlush  atomic.Int64
}

// NewHub creates a hub. recorder may be nil.
func NewHub(store storage.Store, recorder *influx.Recorder, cfg Config, logger *slog.Logger) *Hub {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if cfg.SelectionLimit <= 0 {
		cfg.SelectionLimit = DefaultSelectionLimit
	}
	if logger == nil {
		logger = slog.Default()
	}

	h := &Hub{
		store:      store,
		recorder:   recorder,
		cfg:        cfg,
		logger:     logger,
		sessions:   make(map[string]*session),
		selections: queue.NewBounded[core.Selection](cfg.SelectionLimit),
	}
	h.upgrader = ws.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	return lo.Contains(h.cfg.AllowedOrigins, "*") || lo.Contains(h.cfg.AllowedOrigins, origin)
}

func (h *Hub) tokenValid(token string) bool {
	if h.cfg.CSRFToken == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.cfg.CSRFToken)) == 1
}

// Restore loads the last published snapshot so joiners get it before the
// first Publish. With nothing stored yet it publishes the current sightings.
func (h *Hub) Restore(ctx context.Context) error {
	snap, err := h.store.LatestSnapshot(ctx)
	if errors.Is(err, storage.ErrNoSnapshot) {
		return h.Republish(ctx)
	}
	if err != nil {
		return fmt.Errorf("load latest snapshot: %w", err)
	}

	frame, err := encodeSnapshot(snap.Sightings)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.latest = frame
	h.mu.Unlock()

	h.logger.Info("Restored snapshot", "snapshot", snap.ID, "markers", len(snap.Sightings))
	return nil
}

// Republish publishes every stored sighting as a new snapshot.
func (h *Hub) Republish(ctx context.Context) error {
	sightings, err := h.store.ListSightings(ctx)
	if err != nil {
		return fmt.Errorf("list sightings: %w", err)
	}
	_, err = h.Publish(ctx, sightings)
	return err
}

// Publish stores sightings as the latest snapshot and pushes it to every
// joined session.
func (h *Hub) Publish(ctx context.Context, sightings []core.Sighting) (core.Snapshot, error) {
	h.publishMu.Lock()
	defer h.publishMu.Unlock()

	snap, err := h.store.SaveSnapshot(ctx, time.Now().UTC(), sightings)
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("save snapshot: %w", err)
	}
	frame, err := encodeSnapshot(snap.Sightings)
	if err != nil {
		return core.Snapshot{}, err
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return core.Snapshot{}, ErrHubClosed
	}
	h.latest = frame
	joined := lo.Filter(lo.Values(h.sessions), func(s *session, _ int) bool { return s.joined })
	for _, s := range joined {
		h.deliver(s, frame)
	}
	h.mu.Unlock()

	if err := h.recorder.RecordSnapshot(snap.TakenAt, len(snap.Sightings)); err != nil {
		h.logger.Warn("Failed to record snapshot metric", "error", err)
	}
	h.logger.Info("Published snapshot", "snapshot", snap.ID, "markers", len(snap.Sightings), "sessions", len(joined))
	return snap, nil
}

func encodeSnapshot(sightings []core.Sighting) ([]byte, error) {
	payload, err := streaming.NewUpdateMarkersPayload(sightings)
	if err != nil {
		return nil, err
	}
	return streaming.MarshalEnvelope(streaming.TypeUpdateMarkers, payload)
}

// deliver queues data for s and drops the session if it is too slow.
// Callers hold h.mu.
func (h *Hub) deliver(s *session, data []byte) {
	if s.enqueue(data) {
		return
	}
	s.logger.Warn("Dropping slow session")
	h.drop(s)
}

// drop closes s and forgets it. Callers hold h.mu.
func (h *Hub) drop(s *session) {
	s.close()
	if h.sessions[s.id] != s {
		return
	}
	delete(h.sessions, s.id)
	if s.joined {
		h.joined.Add(-1)
	}
}

// ServeHTTP upgrades the request to a live session.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.tokenValid(r.URL.Query().Get(streaming.CSRFQueryParam)) {
		http.Error(w, ErrBadCSRFToken.Error(), http.StatusForbidden)
		return
	}

	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		http.Error(w, ErrHubClosed.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response
		h.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	s := newSession(uuid.NewString(), conn, h.logger)
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.sessions[s.id] = s
	h.mu.Unlock()

	s.logger.Debug("Session connected", "remote", r.RemoteAddr)
	go s.writeLoop()
	h.readLoop(s)
}

func (h *Hub) readLoop(s *session) {
	defer h.remove(s)

	s.conn.SetReadLimit(maxFrameSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if ws.IsUnexpectedCloseError(err, ws.CloseNormalClosure, ws.CloseGoingAway) {
				s.logger.Debug("Session read error", "error", err)
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))

		var env streaming.Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
			s.logger.Debug("Unrecognised frame received", "raw", string(data))
			continue
		}

		switch env.Type {
		case streaming.TypeJoin:
			if err := h.join(s, env.Payload); err != nil {
				s.logger.Warn("Join rejected", "error", err)
				return
			}
		case streaming.TypeSelectSighting:
			h.selectSighting(s, env.Payload)
		default:
			s.logger.Debug("Ignoring live event", "event", env.Type)
		}
	}
}

// join acks and replays the latest snapshot. Repeated joins replay again.
func (h *Hub) join(s *session, payload json.RawMessage) error {
	var p streaming.JoinPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("decode join: %w", err)
		}
	}
	if p.Topic != "" && p.Topic != streaming.TopicSightings {
		return fmt.Errorf("unknown topic %q", p.Topic)
	}
	if !h.tokenValid(p.CSRFToken) {
		return ErrBadCSRFToken
	}

	ack, err := streaming.MarshalAck(streaming.TypeJoin)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[s.id]; !ok {
		return ErrHubClosed
	}
	if !s.joined {
		s.joined = true
		h.joined.Add(1)
	}
	h.deliver(s, ack)
	if h.latest != nil {
		h.deliver(s, h.latest)
	}
	s.logger.Debug("Session joined", "topic", streaming.TopicSightings)
	return nil
}

func (h *Hub) selectSighting(s *session, payload json.RawMessage) {
	var p streaming.SelectSightingPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.ID == "" {
		s.logger.Debug("Malformed select_sighting", "payload", string(payload))
		return
	}

	dropped := h.selections.Push(core.Selection{
		SightingID: core.SightingID(p.ID),
		SessionID:  s.id,
		SelectedAt: time.Now().UTC(),
	})
	if dropped > 0 {
		h.logger.Warn("Selection buffer full, dropped oldest", "dropped", dropped)
	}
	s.logger.Debug("Sighting selected", "id", p.ID)
}

func (h *Hub) remove(s *session) {
	h.mu.Lock()
	h.drop(s)
	h.mu.Unlock()
	s.logger.Debug("Session disconnected")
}

// RunFlusher writes buffered selections every FlushInterval until ctx is
// done, then flushes once more.
func (h *Hub) RunFlusher(ctx context.Context) {
	ticker := time.NewTicker(h.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := h.FlushSelections(flushCtx); err != nil {
				h.logger.Error("Final selection flush failed", "error", err, "pending", h.selections.Len())
			}
			cancel()
			return
		case <-ticker.C:
			if err := h.FlushSelections(ctx); err != nil {
				h.logger.Warn("Selection flush failed", "error", err, "pending", h.selections.Len())
			}
		}
	}
}

// FlushSelections moves buffered selections to storage and, when enabled,
// to InfluxDB. A batch the store rejects goes back on the queue.
func (h *Hub) FlushSelections(ctx context.Context) error {
	h.flushMu.Lock()
	defer h.flushMu.Unlock()

	batch := h.selections.GetAndEmpty()
	if len(batch) == 0 {
		return nil
	}
	start := time.Now()
	defer func() { h.lastFlush.Store(int64(time.Since(start))) }()

	if err := h.store.RecordSelections(ctx, batch); err != nil {
		if dropped := h.selections.PushFront(batch...); dropped > 0 {
			h.logger.Warn("Selection buffer full, dropped oldest", "dropped", dropped)
		}
		return fmt.Errorf("store selections: %w", err)
	}
	if err := h.recorder.RecordSelections(ctx, batch); err != nil {
		h.logger.Warn("Failed to record selection metrics", "error", err)
	}

	h.logger.Debug("Flushed selections", "count", len(batch))
	return nil
}

// SessionCount returns the number of joined sessions.
func (h *Hub) SessionCount() int {
	return int(h.joined.Load())
}

// PendingSelections returns how many selections wait for the next flush.
func (h *Hub) PendingSelections() int {
	return h.selections.Len()
}

// LastFlushDuration returns how long the last non-empty flush took.
func (h *Hub) LastFlushDuration() time.Duration {
	return time.Duration(h.lastFlush.Load())
}

// LogAttrs reports live hub state for logging.ContextHandler.
func (h *Hub) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.Int("sessions", h.SessionCount()),
		slog.Int("pendingSelections", h.PendingSelections()),
	}
}

// Close disconnects every session. Buffered selections stay queued for a
// final FlushSelections.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, s := range lo.Values(h.sessions) {
		h.drop(s)
	}
}
