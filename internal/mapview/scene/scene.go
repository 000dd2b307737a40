// Package scene is a headless mapview.Renderer. It keeps the full view
// state in memory so it can be inspected, clicked and exported as GeoJSON.
package scene

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/peterstace/simplefeatures/geom"

	"github.com/sporewatch/sightingmap/internal/geo"
	"github.com/sporewatch/sightingmap/internal/mapview"
	"github.com/sporewatch/sightingmap/pkg/core"
)

var (
	ErrViewClosed       = errors.New("view is closed")
	ErrMarkersAttached  = errors.New("view still has attached markers")
	ErrMarkerDetached   = errors.New("marker already detached")
	ErrNoMarker         = errors.New("no marker for sighting")
	ErrEmptyBounds      = errors.New("cannot fit empty bounds")
	ErrContainerInvalid = errors.New("container has no id")
)

// Config sizes the virtual viewport used by FitBounds.
type Config struct {
	WidthPx  int
	HeightPx int
	MaxZoom  int
}

// DefaultConfig matches a typical desktop map panel.
var DefaultConfig = Config{WidthPx: 1024, HeightPx: 768, MaxZoom: 18}

// Renderer creates headless views.
type Renderer struct {
	cfg   Config
	mu    sync.Mutex
	views []*View
}

// New creates a Renderer.
func New(cfg Config) *Renderer {
	return &Renderer{cfg: cfg}
}

// CreateView implements mapview.Renderer.
func (r *Renderer) CreateView(container mapview.Container, opts mapview.ViewOptions) (mapview.View, error) {
	if container.ID == "" {
		return nil, ErrContainerInvalid
	}

	v := &View{
		cfg:       r.cfg,
		container: container.ID,
		center:    opts.Center,
		zoom:      opts.Zoom,
		styles:    opts.Styles,
	}

	r.mu.Lock()
	r.views = append(r.views, v)
	r.mu.Unlock()

	return v, nil
}

// LastView returns the most recently created view, or nil.
func (r *Renderer) LastView() *View {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.views) == 0 {
		return nil
	}
	return r.views[len(r.views)-1]
}

// MarkerState is an inspectable copy of an attached marker.
type MarkerState struct {
	SightingID core.SightingID
	Position   core.LatLng
	Title      string
	Style      mapview.MarkerStyle
}

// View is a headless map view.
type View struct {
	cfg       Config
	container string

	mu        sync.Mutex
	center    core.LatLng
	zoom      int
	styles    []mapview.StyleRule
	markers   []*Marker
	closed    bool
	fits      int
	failAfter int // markers still allowed before CreateMarker returns failErr
	failErr   error
}

// CreateMarker implements mapview.View.
func (v *View) CreateMarker(opts mapview.MarkerOptions) (mapview.Marker, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return nil, ErrViewClosed
	}
	if v.failErr != nil {
		if v.failAfter == 0 {
			return nil, v.failErr
		}
		v.failAfter--
	}

	m := &Marker{view: v, opts: opts}
	v.markers = append(v.markers, m)
	return m, nil
}

// FitBounds centres the view on bounds at the largest zoom that shows them.
func (v *View) FitBounds(bounds core.Bounds) error {
	if bounds.IsEmpty() {
		return ErrEmptyBounds
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return ErrViewClosed
	}
	v.center = bounds.Center()
	v.zoom = geo.FitZoom(bounds, v.cfg.WidthPx, v.cfg.HeightPx, v.cfg.MaxZoom)
	v.fits++
	return nil
}

// Close implements mapview.View.
func (v *View) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return ErrViewClosed
	}
	if len(v.markers) > 0 {
		return fmt.Errorf("%w: %d", ErrMarkersAttached, len(v.markers))
	}
	v.closed = true
	return nil
}

// FailMarkerCreation makes CreateMarker return err once n more markers have
// been created. A nil err clears the failure.
func (v *View) FailMarkerCreation(n int, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.failAfter = n
	v.failErr = err
}

// Click simulates a user click on the first marker bound to id. The click
// handler runs without the view lock held.
func (v *View) Click(id core.SightingID) error {
	v.mu.Lock()
	var onClick func()
	found := false
	for _, m := range v.markers {
		if m.opts.SightingID == id {
			onClick = m.opts.OnClick
			found = true
			break
		}
	}
	v.mu.Unlock()

	if !found {
		return fmt.Errorf("%w %s", ErrNoMarker, id)
	}
	if onClick != nil {
		onClick()
	}
	return nil
}

// Markers returns the attached markers in creation order.
func (v *View) Markers() []MarkerState {
	v.mu.Lock()
	defer v.mu.Unlock()

	out := make([]MarkerState, len(v.markers))
	for i, m := range v.markers {
		out[i] = MarkerState{
			SightingID: m.opts.SightingID,
			Position:   m.opts.Position,
			Title:      m.opts.Title,
			Style:      m.opts.Style,
		}
	}
	return out
}

// Viewport returns the current centre and zoom.
func (v *View) Viewport() (core.LatLng, int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.center, v.zoom
}

// FitCount returns how many times FitBounds succeeded.
func (v *View) FitCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.fits
}

// Styles returns the style rules the view was created with.
func (v *View) Styles() []mapview.StyleRule {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.styles
}

// Closed reports whether Close succeeded.
func (v *View) Closed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}

// GeoJSON exports the attached markers as a FeatureCollection.
func (v *View) GeoJSON() ([]byte, error) {
	markers := v.Markers()

	fc := make(geom.GeoJSONFeatureCollection, 0, len(markers))
	for _, m := range markers {
		pt, err := geom.NewPoint(geom.Coordinates{
			XY:   geom.XY{X: m.Position.Lng, Y: m.Position.Lat},
			Type: geom.DimXY,
		})
		if err != nil {
			return nil, fmt.Errorf("marker %s: %w", m.SightingID, err)
		}
		fc = append(fc, geom.GeoJSONFeature{
			Geometry: pt.AsGeometry(),
			ID:       m.SightingID.String(),
			Properties: map[string]interface{}{
				"title":       m.Title,
				"fillColor":   m.Style.FillColor,
				"strokeColor": m.Style.StrokeColor,
			},
		})
	}

	data, err := json.Marshal(fc)
	if err != nil {
		return nil, fmt.Errorf("marshal feature collection: %w", err)
	}
	return data, nil
}

// Marker is a headless marker handle.
type Marker struct {
	view     *View
	opts     mapview.MarkerOptions
	detached bool
}

// Detach implements mapview.Marker.
func (m *Marker) Detach() error {
	v := m.view
	v.mu.Lock()
	defer v.mu.Unlock()

	if m.detached {
		return ErrMarkerDetached
	}
	m.detached = true

	for i, other := range v.markers {
		if other == m {
			v.markers = append(v.markers[:i], v.markers[i+1:]...)
			break
		}
	}
	return nil
}
