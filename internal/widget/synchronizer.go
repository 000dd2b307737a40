// Package widget keeps the markers on a map view consistent with the latest
// sighting snapshot pushed by the host and relays marker clicks back.
package widget

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/samber/lo"

	"github.com/sporewatch/sightingmap/internal/geo"
	"github.com/sporewatch/sightingmap/internal/mapview"
	"github.com/sporewatch/sightingmap/pkg/core"
	"github.com/sporewatch/sightingmap/pkg/streaming"
)

// DatasetKey is the container dataset entry holding the mount payload.
const DatasetKey = "sightings"

// Pusher sends events upstream over the realtime channel.
type Pusher interface {
	PushEvent(event string, payload any) error
}

// Dependencies holds everything the widget needs from its host.
type Dependencies struct {
	Renderer mapview.Renderer
	Pusher   Pusher
	Logger   *slog.Logger
}

// State is the widget lifecycle state.
type State int

const (
	StateUnmounted State = iota
	StateMounted
)

func (s State) String() string {
	if s == StateMounted {
		return "mounted"
	}
	return "unmounted"
}

// MarkerInfo describes one displayed marker.
type MarkerInfo struct {
	ID       core.SightingID
	Position core.LatLng
	Title    string
}

type ownedMarker struct {
	sighting core.Sighting
	handle   mapview.Marker
}

// Synchronizer owns one map view and every marker on it.
type Synchronizer struct {
	mu        sync.Mutex
	deps      Dependencies
	logger    *slog.Logger
	container mapview.Container
	view      mapview.View
	markers   []ownedMarker
	state     State

	posterMu sync.RWMutex
	post     func(Message) error
}

// Mount parses the container payload, creates the view centred on the
// sightings and draws the initial markers. A missing or unparsable payload
// returns *FatalInitError and nothing is created.
func Mount(container mapview.Container, deps Dependencies) (*Synchronizer, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("container", container.ID)

	raw, ok := container.Dataset[DatasetKey]
	if !ok {
		return nil, &FatalInitError{Container: container.ID, Err: ErrMissingPayload}
	}

	sightings, skipped, err := core.ParseSightings([]byte(raw))
	if err != nil {
		logger.Error("Failed to parse initial sightings", "error", err)
		return nil, &FatalInitError{Container: container.ID, Err: err}
	}
	for _, skip := range skipped {
		logger.Warn("Skipping malformed sighting", "error", skip)
	}

	view, err := deps.Renderer.CreateView(container, mapview.ViewOptions{
		Center: geo.CalculateCenter(sightings),
		Zoom:   mapview.DefaultZoom,
		Styles: mapview.DarkTheme,
	})
	if err != nil {
		return nil, &FatalInitError{Container: container.ID, Err: fmt.Errorf("create view: %w", err)}
	}

	s := &Synchronizer{
		deps:      deps,
		logger:    logger,
		container: container,
		view:      view,
		state:     StateMounted,
	}
	s.post = s.Handle

	s.mu.Lock()
	err = s.reconcile(sightings)
	s.mu.Unlock()
	if err != nil {
		// the view exists; later snapshots can still render
		logger.Error("Initial render failed", "error", err)
	}

	logger.Info("Widget mounted", "markers", s.MarkerCount())
	return s, nil
}

// Handle is the single entry point for widget events. Calls are serialized;
// each snapshot fully supersedes the previous one.
func (s *Synchronizer) Handle(msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateMounted {
		return ErrUnmounted
	}

	switch m := msg.(type) {
	case SnapshotReceived:
		if err := s.reconcile(m.Sightings); err != nil {
			s.logger.Error("Render cycle failed", "error", err)
			return err
		}
		s.logger.Debug("Markers reconciled", "markers", len(s.markers))
		return nil
	case MarkerClicked:
		return s.selectSighting(m.ID)
	case Unmount:
		return s.unmount()
	default:
		return fmt.Errorf("unknown message %T", msg)
	}
}

// reconcile destroys every owned marker and recreates one per valid
// sighting, in input order. Callers hold s.mu.
func (s *Synchronizer) reconcile(sightings []core.Sighting) (err error) {
	s.releaseMarkers()

	created := make([]ownedMarker, 0, len(sightings))
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrRender, r)
			s.logger.Error("Recovered from panic during render", "panic", r, "stack", string(debug.Stack()))
		}
		if err != nil {
			for _, m := range created {
				s.detach(m)
			}
			s.markers = nil
			return
		}
		s.markers = created
	}()

	valid := make([]core.Sighting, 0, len(sightings))
	for i, sighting := range sightings {
		if verr := sighting.Validate(); verr != nil {
			s.logger.Warn("Skipping malformed sighting", "error", &core.SkippableEntryError{Index: i, Err: verr})
			continue
		}

		handle, cerr := s.view.CreateMarker(mapview.MarkerOptions{
			SightingID: sighting.ID,
			Position:   sighting.Position(),
			Title:      sighting.FungiName,
			Style:      mapview.DefaultMarkerStyle,
			OnClick:    s.clickHandler(sighting.ID),
		})
		if cerr != nil {
			return fmt.Errorf("%w: create marker for sighting %s: %w", ErrRender, sighting.ID, cerr)
		}
		created = append(created, ownedMarker{sighting: sighting, handle: handle})
		valid = append(valid, sighting)
	}

	if len(valid) > 0 {
		if ferr := s.view.FitBounds(geo.BoundsOf(valid)); ferr != nil {
			return fmt.Errorf("%w: fit bounds: %w", ErrRender, ferr)
		}
	}
	return nil
}

func (s *Synchronizer) clickHandler(id core.SightingID) func() {
	return func() {
		if err := s.poster()(MarkerClicked{ID: id}); err != nil {
			s.logger.Warn("Marker click not delivered", "id", id, "error", err)
		}
	}
}

func (s *Synchronizer) selectSighting(id core.SightingID) error {
	if !s.displays(id) {
		return fmt.Errorf("%w: %s", ErrStaleMarker, id)
	}

	payload := streaming.SelectSightingPayload{ID: id.String()}
	if err := s.deps.Pusher.PushEvent(streaming.TypeSelectSighting, payload); err != nil {
		return fmt.Errorf("push %s: %w", streaming.TypeSelectSighting, err)
	}
	s.logger.Debug("Sighting selected", "id", id)
	return nil
}

func (s *Synchronizer) displays(id core.SightingID) bool {
	return lo.ContainsBy(s.markers, func(m ownedMarker) bool {
		return m.sighting.ID == id
	})
}

// unmount stays mounted when the view refuses to close, so Unmount can be
// sent again once the view is releasable.
func (s *Synchronizer) unmount() error {
	s.releaseMarkers()

	if err := s.view.Close(); err != nil {
		s.logger.Error("Failed to close map view", "error", err)
		return fmt.Errorf("close view: %w", err)
	}
	s.state = StateUnmounted
	s.logger.Info("Widget unmounted")
	return nil
}

func (s *Synchronizer) releaseMarkers() {
	for _, m := range s.markers {
		s.detach(m)
	}
	s.markers = nil
}

func (s *Synchronizer) detach(m ownedMarker) {
	if err := m.handle.Detach(); err != nil {
		s.logger.Warn("Failed to detach marker", "id", m.sighting.ID, "error", err)
	}
}

func (s *Synchronizer) poster() func(Message) error {
	s.posterMu.RLock()
	defer s.posterMu.RUnlock()
	return s.post
}

// routeClicksThrough makes marker clicks go through post instead of calling
// Handle directly.
func (s *Synchronizer) routeClicksThrough(post func(Message) error) {
	s.posterMu.Lock()
	defer s.posterMu.Unlock()
	s.post = post
}

// State returns the lifecycle state.
func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// MarkerCount returns the number of owned markers.
func (s *Synchronizer) MarkerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.markers)
}

// Markers returns the displayed markers in creation order.
func (s *Synchronizer) Markers() []MarkerInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]MarkerInfo, len(s.markers))
	for i, m := range s.markers {
		out[i] = MarkerInfo{ID: m.sighting.ID, Position: m.sighting.Position(), Title: m.sighting.FungiName}
	}
	return out
}

// IsFatalInit reports whether err came from a failed Mount.
func IsFatalInit(err error) bool {
	var fe *FatalInitError
	return errors.As(err, &fe)
}
