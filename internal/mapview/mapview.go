// Package mapview is the capability set the marker widget needs from a
// mapping SDK. Implementations own rendering; the widget owns lifetimes.
package mapview

import "github.com/sporewatch/sightingmap/pkg/core"

// DefaultZoom is the zoom level a view is created at.
const DefaultZoom = 8

// Container is the host element a view is mounted into.
type Container struct {
	ID      string
	Dataset map[string]string
}

// ViewOptions configures a new view.
type ViewOptions struct {
	Center core.LatLng
	Zoom   int
	Styles []StyleRule
}

// MarkerOptions configures a new marker. OnClick is invoked by the renderer
// on user input and may be nil.
type MarkerOptions struct {
	SightingID core.SightingID
	Position   core.LatLng
	Title      string
	Style      MarkerStyle
	OnClick    func()
}

// Renderer creates map views (createView).
type Renderer interface {
	CreateView(container Container, opts ViewOptions) (View, error)
}

// View is one long-lived map instance.
type View interface {
	// CreateMarker creates a marker and attaches it to the view (createMarker).
	CreateMarker(opts MarkerOptions) (Marker, error)
	// FitBounds moves the viewport to cover bounds (fitBounds).
	FitBounds(bounds core.Bounds) error
	// Close releases the view. Markers must be detached first.
	Close() error
}

// Marker is a rendering-system handle bound to one sighting.
type Marker interface {
	// Detach removes the marker from its view and releases it.
	Detach() error
}
