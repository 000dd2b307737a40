package core

import "time"

// Selection records one select_sighting event received from a session.
type Selection struct {
	SightingID SightingID `json:"sighting_id"`
	SessionID  string     `json:"session_id"`
	SelectedAt time.Time  `json:"selected_at"`
}

// Snapshot is a published set of sightings.
type Snapshot struct {
	ID        uint       `json:"id"`
	TakenAt   time.Time  `json:"taken_at"`
	Sightings []Sighting `json:"sightings"`
}
