// Package memory keeps everything in process memory. It backs tests and
// storage.type=memory.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/sporewatch/sightingmap/internal/storage"
	"github.com/sporewatch/sightingmap/pkg/core"
)

// Backend stores sightings, snapshots and selections in memory.
type Backend struct {
	sightings  []core.Sighting
	snapshots  []core.Snapshot
	selections []core.Selection

	idCounter uint
	mu        sync.RWMutex
}

// New creates a new memory backend
func New() *Backend {
	return &Backend{}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// ListSightings returns a copy of every sighting in insertion order.
func (b *Backend) ListSightings(_ context.Context) ([]core.Sighting, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.sightings), nil
}

// AddSighting appends a validated sighting.
func (b *Backend) AddSighting(_ context.Context, s core.Sighting) error {
	if err := s.Validate(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if lo.ContainsBy(b.sightings, func(x core.Sighting) bool { return x.ID == s.ID }) {
		return fmt.Errorf("%w: %s", storage.ErrDuplicateSighting, s.ID)
	}
	b.sightings = append(b.sightings, s)
	return nil
}

// SaveSnapshot stores a copy of sightings.
func (b *Backend) SaveSnapshot(_ context.Context, takenAt time.Time, sightings []core.Sighting) (core.Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.idCounter++
	snap := core.Snapshot{ID: b.idCounter, TakenAt: takenAt.UTC(), Sightings: slices.Clone(sightings)}
	b.snapshots = append(b.snapshots, snap)
	return snap, nil
}

// LatestSnapshot returns the snapshot with the newest TakenAt.
func (b *Backend) LatestSnapshot(_ context.Context) (core.Snapshot, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.snapshots) == 0 {
		return core.Snapshot{}, storage.ErrNoSnapshot
	}
	latest := lo.MaxBy(b.snapshots, func(a, cur core.Snapshot) bool {
		return a.TakenAt.After(cur.TakenAt) || (a.TakenAt.Equal(cur.TakenAt) && a.ID > cur.ID)
	})
	latest.Sightings = slices.Clone(latest.Sightings)
	return latest, nil
}

// RecordSelections appends selections.
func (b *Backend) RecordSelections(_ context.Context, selections []core.Selection) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.selections = append(b.selections, selections...)
	return nil
}

// CountSelections returns how often id was selected.
func (b *Backend) CountSelections(_ context.Context, id core.SightingID) (int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return int64(lo.CountBy(b.selections, func(s core.Selection) bool { return s.SightingID == id })), nil
}

// Selections returns a copy of every recorded selection.
func (b *Backend) Selections() []core.Selection {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.selections)
}
