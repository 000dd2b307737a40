// Package storage persists sightings, published snapshots and selections.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/sporewatch/sightingmap/pkg/core"
)

var (
	// ErrNoSnapshot is returned by LatestSnapshot before anything was published.
	ErrNoSnapshot = errors.New("no snapshot stored")
	// ErrDuplicateSighting is returned when adding an id that already exists.
	ErrDuplicateSighting = errors.New("sighting already exists")
)

// Store is the interface all storage implementations must satisfy
type Store interface {
	// Lifecycle
	Init() error
	Close() error

	// Sightings, in insertion order
	ListSightings(ctx context.Context) ([]core.Sighting, error)
	AddSighting(ctx context.Context, s core.Sighting) error

	// Snapshots as broadcast to live sessions
	SaveSnapshot(ctx context.Context, takenAt time.Time, sightings []core.Sighting) (core.Snapshot, error)
	LatestSnapshot(ctx context.Context) (core.Snapshot, error)

	// Selections relayed from select_sighting
	RecordSelections(ctx context.Context, selections []core.Selection) error
	CountSelections(ctx context.Context, id core.SightingID) (int64, error)
}
