package core

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSightingID_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    SightingID
		wantErr bool
	}{
		{name: "integer", input: `42`, want: "42"},
		{name: "string", input: `"abc-1"`, want: "abc-1"},
		{name: "numeric string", input: `"42"`, want: "42"},
		{name: "large integer keeps digits", input: `9007199254740993`, want: "9007199254740993"},
		{name: "negative integer", input: `-7`, want: "-7"},
		{name: "whole float", input: `42.0`, want: "42"},
		{name: "exponent", input: `1e2`, want: "100"},
		{name: "fraction", input: `1.50`, want: "1.5"},
		{name: "null", input: `null`, wantErr: true},
		{name: "bool", input: `true`, wantErr: true},
		{name: "object", input: `{}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var id SightingID
			err := json.Unmarshal([]byte(tt.input), &id)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
			assert.Equal(t, string(tt.want), id.String())
		})
	}
}

func TestSighting_UnmarshalJSON_Valid(t *testing.T) {
	var s Sighting
	err := json.Unmarshal([]byte(`{"id":7,"lat":-37.81,"lng":144.96,"fungi_name":"Amanita muscaria"}`), &s)
	require.NoError(t, err)

	assert.Equal(t, Sighting{ID: "7", Lat: -37.81, Lng: 144.96, FungiName: "Amanita muscaria"}, s)
	assert.Equal(t, LatLng{Lat: -37.81, Lng: 144.96}, s.Position())
}

func TestSighting_UnmarshalJSON_Errors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		target error
	}{
		{name: "missing lat", input: `{"id":1,"lng":10}`, target: ErrMissingCoordinate},
		{name: "missing lng", input: `{"id":1,"lat":10}`, target: ErrMissingCoordinate},
		{name: "lat out of range", input: `{"id":1,"lat":91,"lng":10}`, target: ErrCoordinateOutOfRange},
		{name: "lng out of range", input: `{"id":1,"lat":10,"lng":-181}`, target: ErrCoordinateOutOfRange},
		{name: "missing id", input: `{"lat":10,"lng":10}`, target: ErrMissingID},
		{name: "null id", input: `{"id":null,"lat":10,"lng":10}`, target: ErrMissingID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Sighting
			err := json.Unmarshal([]byte(tt.input), &s)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.target), "expected %v, got %v", tt.target, err)
		})
	}
}

func TestSighting_UnmarshalJSON_WrongType(t *testing.T) {
	var s Sighting
	err := json.Unmarshal([]byte(`{"id":1,"lat":"north","lng":10}`), &s)
	require.Error(t, err)
}

func TestSighting_Validate_NonFinite(t *testing.T) {
	assert.ErrorIs(t, Sighting{ID: "1", Lat: math.NaN(), Lng: 0}.Validate(), ErrCoordinateOutOfRange)
	assert.ErrorIs(t, Sighting{ID: "1", Lat: 0, Lng: math.Inf(1)}.Validate(), ErrCoordinateOutOfRange)
	assert.NoError(t, Sighting{ID: "1", Lat: -90, Lng: 180}.Validate())
}

func TestDecodeSightings_SkipsBadEntries(t *testing.T) {
	entries := []json.RawMessage{
		json.RawMessage(`{"id":1,"lat":10,"lng":20,"fungi_name":"a"}`),
		json.RawMessage(`{"id":2,"lat":"bad","lng":20}`),
		json.RawMessage(`{"id":3,"lat":30,"lng":40,"fungi_name":"c"}`),
		json.RawMessage(`"not an object"`),
	}

	sightings, skipped := DecodeSightings(entries)

	require.Len(t, sightings, 2)
	assert.Equal(t, SightingID("1"), sightings[0].ID)
	assert.Equal(t, SightingID("3"), sightings[1].ID)

	require.Len(t, skipped, 2)
	var entryErr *SkippableEntryError
	require.True(t, errors.As(skipped[0], &entryErr))
	assert.Equal(t, 1, entryErr.Index)
	require.True(t, errors.As(skipped[1], &entryErr))
	assert.Equal(t, 3, entryErr.Index)
}

func TestParseSightings(t *testing.T) {
	sightings, skipped, err := ParseSightings([]byte(`[{"id":"x","lat":1,"lng":2,"fungi_name":"n"}]`))
	require.NoError(t, err)
	assert.Empty(t, skipped)
	assert.Len(t, sightings, 1)

	sightings, skipped, err = ParseSightings([]byte(`[]`))
	require.NoError(t, err)
	assert.Empty(t, skipped)
	assert.Empty(t, sightings)
}

func TestParseSightings_Malformed(t *testing.T) {
	for _, payload := range []string{``, `{`, `{"id":1}`, `null`, `"[]"`} {
		_, _, err := ParseSightings([]byte(payload))
		assert.ErrorIs(t, err, ErrMalformedPayload, "payload %q", payload)
	}
}

func TestBounds(t *testing.T) {
	var empty Bounds
	assert.True(t, empty.IsEmpty())
	assert.False(t, empty.Contains(LatLng{}))

	b := Bounds{SouthWest: LatLng{Lat: 10, Lng: 20}, NorthEast: LatLng{Lat: 20, Lng: 40}, Valid: true}
	assert.False(t, b.IsEmpty())
	assert.Equal(t, LatLng{Lat: 15, Lng: 30}, b.Center())
	assert.True(t, b.Contains(LatLng{Lat: 10, Lng: 40}))
	assert.False(t, b.Contains(LatLng{Lat: 21, Lng: 30}))
}
