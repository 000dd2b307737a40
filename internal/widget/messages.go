package widget

import (
	"errors"
	"fmt"

	"github.com/sporewatch/sightingmap/pkg/core"
)

// Message is an event dispatched into Synchronizer.Handle.
type Message interface {
	messageName() string
}

// SnapshotReceived delivers a full replacement set of sightings
// (update_markers).
type SnapshotReceived struct {
	Sightings []core.Sighting
}

// MarkerClicked reports a user click on the marker for ID.
type MarkerClicked struct {
	ID core.SightingID
}

// Unmount tears the widget down and releases every resource it owns.
type Unmount struct{}

func (SnapshotReceived) messageName() string { return "snapshot_received" }
func (MarkerClicked) messageName() string    { return "marker_clicked" }
func (Unmount) messageName() string          { return "unmount" }

var (
	// ErrMissingPayload is returned by Mount when the container has no sightings data.
	ErrMissingPayload = errors.New("container has no sightings payload")
	// ErrUnmounted is returned for any message handled after Unmount.
	ErrUnmounted = errors.New("widget is not mounted")
	// ErrRender marks a failed render cycle. The widget stays mounted.
	ErrRender = errors.New("render cycle failed")
	// ErrStaleMarker is returned for clicks on sightings no longer displayed.
	ErrStaleMarker = errors.New("click on a marker that is no longer displayed")
	// ErrLoopStopped is returned by Loop.Send once the loop has exited.
	ErrLoopStopped = errors.New("widget loop stopped")
)

// FatalInitError means the widget could not mount. The host page is unaffected.
type FatalInitError struct {
	Container string
	Err       error
}

func (e *FatalInitError) Error() string {
	return fmt.Sprintf("mount %q: %v", e.Container, e.Err)
}

func (e *FatalInitError) Unwrap() error {
	return e.Err
}
