// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"github.com/sporewatch/sightingmap/internal/model"
	"github.com/sporewatch/sightingmap/pkg/core"
)

// SightingToGorm converts a core.Sighting to its table row.
func SightingToGorm(s core.Sighting) model.Sighting {
	return model.Sighting{
		SightingID: s.ID.String(),
		Lat:        s.Lat,
		Lng:        s.Lng,
		FungiName:  s.FungiName,
	}
}

// SelectionToGorm converts a core.Selection to its table row.
func SelectionToGorm(s core.Selection) model.Selection {
	return model.Selection{
		SightingID: s.SightingID.String(),
		SessionID:  s.SessionID,
		SelectedAt: s.SelectedAt,
	}
}

// SnapshotToGorm encodes the sightings as the JSON array sent to sessions.
func SnapshotToGorm(s core.Snapshot) (model.Snapshot, error) {
	sightings := s.Sightings
	if sightings == nil {
		sightings = []core.Sighting{}
	}
	raw, err := json.Marshal(sightings)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("encode snapshot: %w", err)
	}
	return model.Snapshot{
		ID:        s.ID,
		TakenAt:   s.TakenAt,
		Count:     len(sightings),
		Sightings: datatypes.JSON(raw),
	}, nil
}
