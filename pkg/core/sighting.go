// pkg/core/sighting.go
package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrMalformedPayload is returned when a sightings payload is not a JSON array
	ErrMalformedPayload = errors.New("malformed sightings payload")
	// ErrMissingID is returned when a sighting has no usable id
	ErrMissingID = errors.New("sighting id missing")
	// ErrMissingCoordinate is returned when lat or lng is absent
	ErrMissingCoordinate = errors.New("sighting coordinate missing")
	// ErrCoordinateOutOfRange is returned for non-finite or out of range coordinates
	ErrCoordinateOutOfRange = errors.New("sighting coordinate out of range")
)

// SightingID is an opaque sighting identifier. It accepts JSON strings and
// numbers and always encodes as a string.
type SightingID string

// UnmarshalJSON keeps integer literals digit for digit and writes other
// numbers in plain decimal form, so 42.0 and 1e2 become "42" and "100".
func (id *SightingID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return ErrMissingID
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode id: %w", err)
		}
		*id = SightingID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	if isIntegerLiteral(n.String()) {
		*id = SightingID(n.String())
		return nil
	}
	f, err := n.Float64()
	if err != nil {
		return fmt.Errorf("decode id: %w", err)
	}
	*id = SightingID(strconv.FormatFloat(f, 'f', -1, 64))
	return nil
}

// isIntegerLiteral reports whether s is an optional minus followed by digits
// only. Such ids keep every digit, even past float64 precision.
func isIntegerLiteral(s string) bool {
	s = strings.TrimPrefix(s, "-")
	return s != "" && strings.Trim(s, "0123456789") == ""
}

// String returns the id as sent in select_sighting payloads.
func (id SightingID) String() string {
	return string(id)
}

// Sighting is a single reported fungi observation
type Sighting struct {
	ID        SightingID `json:"id"`
	Lat       float64    `json:"lat"`
	Lng       float64    `json:"lng"`
	FungiName string     `json:"fungi_name"`
}

// sightingWire detects absent coordinates, which a plain float64 would hide.
type sightingWire struct {
	ID        SightingID `json:"id"`
	Lat       *float64   `json:"lat"`
	Lng       *float64   `json:"lng"`
	FungiName string     `json:"fungi_name"`
}

// UnmarshalJSON decodes and validates a single sighting.
func (s *Sighting) UnmarshalJSON(data []byte) error {
	var w sightingWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Lat == nil || w.Lng == nil {
		return ErrMissingCoordinate
	}

	decoded := Sighting{
		ID:        w.ID,
		Lat:       *w.Lat,
		Lng:       *w.Lng,
		FungiName: w.FungiName,
	}
	if err := decoded.Validate(); err != nil {
		return err
	}

	*s = decoded
	return nil
}

// Validate checks the id and the coordinate ranges.
func (s Sighting) Validate() error {
	if s.ID == "" {
		return ErrMissingID
	}
	if math.IsNaN(s.Lat) || math.IsInf(s.Lat, 0) || s.Lat < -90 || s.Lat > 90 {
		return fmt.Errorf("%w: lat=%v", ErrCoordinateOutOfRange, s.Lat)
	}
	if math.IsNaN(s.Lng) || math.IsInf(s.Lng, 0) || s.Lng < -180 || s.Lng > 180 {
		return fmt.Errorf("%w: lng=%v", ErrCoordinateOutOfRange, s.Lng)
	}
	return nil
}

// Position returns the sighting coordinate.
func (s Sighting) Position() LatLng {
	return LatLng{Lat: s.Lat, Lng: s.Lng}
}

// SkippableEntryError marks one bad entry in an otherwise usable collection.
type SkippableEntryError struct {
	Index int
	Err   error
}

func (e *SkippableEntryError) Error() string {
	return fmt.Sprintf("sighting %d skipped: %v", e.Index, e.Err)
}

func (e *SkippableEntryError) Unwrap() error {
	return e.Err
}

// DecodeSightings decodes each entry independently. Malformed entries are
// left out and reported as *SkippableEntryError; input order is preserved.
func DecodeSightings(entries []json.RawMessage) ([]Sighting, []error) {
	sightings := make([]Sighting, 0, len(entries))
	var skipped []error

	for i, raw := range entries {
		var s Sighting
		if err := json.Unmarshal(raw, &s); err != nil {
			skipped = append(skipped, &SkippableEntryError{Index: i, Err: err})
			continue
		}
		sightings = append(sightings, s)
	}

	return sightings, skipped
}

// ParseSightings parses a JSON array of sightings. Only a payload that is not
// an array at all fails; bad entries are skipped.
func ParseSightings(payload []byte) ([]Sighting, []error, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(payload, &entries); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if entries == nil {
		// "null" decodes without error but is not an array
		return nil, nil, fmt.Errorf("%w: expected array", ErrMalformedPayload)
	}

	sightings, skipped := DecodeSightings(entries)
	return sightings, skipped, nil
}
