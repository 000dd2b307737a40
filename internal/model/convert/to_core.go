package convert

import (
	"fmt"

	"github.com/sporewatch/sightingmap/internal/model"
	"github.com/sporewatch/sightingmap/pkg/core"
)

// SightingToCore converts a sighting row to a core.Sighting.
func SightingToCore(s model.Sighting) core.Sighting {
	return core.Sighting{
		ID:        core.SightingID(s.SightingID),
		Lat:       s.Lat,
		Lng:       s.Lng,
		FungiName: s.FungiName,
	}
}

// SelectionToCore converts a selection row to a core.Selection.
func SelectionToCore(s model.Selection) core.Selection {
	return core.Selection{
		SightingID: core.SightingID(s.SightingID),
		SessionID:  s.SessionID,
		SelectedAt: s.SelectedAt,
	}
}

// SnapshotToCore decodes a stored snapshot. Entries that no longer decode
// are dropped; the snapshot itself only fails if the column is not an array.
func SnapshotToCore(s model.Snapshot) (core.Snapshot, error) {
	sightings, _, err := core.ParseSightings(s.Sightings)
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("decode snapshot %d: %w", s.ID, err)
	}
	return core.Snapshot{
		ID:        s.ID,
		TakenAt:   s.TakenAt,
		Sightings: sightings,
	}, nil
}
