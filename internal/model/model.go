package model

import (
	"time"

	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Sighting{},
	&Snapshot{},
	&Selection{},
}

// Sighting is one reported fungi observation.
type Sighting struct {
	ID         uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	SightingID string    `json:"sightingId" gorm:"uniqueIndex;size:128;not null"`
	CreatedAt  time.Time `json:"createdAt" gorm:"autoCreateTime"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	FungiName  string    `json:"fungiName" gorm:"size:256"`
}

func (*Sighting) TableName() string {
	return "sightings"
}

// Snapshot is a sighting set as published to live sessions. Sightings holds
// the JSON array exactly as broadcast.
type Snapshot struct {
	ID        uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	TakenAt   time.Time      `json:"takenAt" gorm:"index;not null"`
	Count     int            `json:"count"`
	Sightings datatypes.JSON `json:"sightings"`
}

func (*Snapshot) TableName() string {
	return "snapshots"
}

// Selection is one select_sighting event.
type Selection struct {
	ID         uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	SightingID string    `json:"sightingId" gorm:"index;size:128"`
	SessionID  string    `json:"sessionId" gorm:"index;size:64"`
	SelectedAt time.Time `json:"selectedAt" gorm:"index"`
}

func (*Selection) TableName() string {
	return "selections"
}
