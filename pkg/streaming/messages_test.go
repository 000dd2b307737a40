package streaming

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sporewatch/sightingmap/pkg/core"
)

func TestMarshalEnvelope_SelectSighting(t *testing.T) {
	data, err := MarshalEnvelope(TypeSelectSighting, SelectSightingPayload{ID: "42"})
	require.NoError(t, err)

	assert.JSONEq(t, `{"type":"select_sighting","payload":{"id":"42"}}`, string(data))
}

func TestMarshalEnvelope_NilPayloadOmitted(t *testing.T) {
	data, err := MarshalEnvelope(TypeJoin, nil)
	require.NoError(t, err)

	assert.JSONEq(t, `{"type":"join"}`, string(data))
}

func TestMarshalEnvelope_UnsupportedPayload(t *testing.T) {
	_, err := MarshalEnvelope(TypeJoin, make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marshal join payload")
}

func TestNewUpdateMarkersPayload_RoundTripsThroughDecode(t *testing.T) {
	in := []core.Sighting{
		{ID: "1", Lat: -37.8, Lng: 144.9, FungiName: "Amanita muscaria"},
		{ID: "2", Lat: -37.9, Lng: 145.0, FungiName: "Omphalotus nidiformis"},
	}

	payload, err := NewUpdateMarkersPayload(in)
	require.NoError(t, err)
	require.Len(t, payload.Sightings, 2)

	data, err := MarshalEnvelope(TypeUpdateMarkers, payload)
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, TypeUpdateMarkers, env.Type)

	var decoded UpdateMarkersPayload
	require.NoError(t, json.Unmarshal(env.Payload, &decoded))

	out, skipped := core.DecodeSightings(decoded.Sightings)
	assert.Empty(t, skipped)
	assert.Equal(t, in, out)
}

func TestMarshalAck(t *testing.T) {
	data, err := MarshalAck(TypeJoin)
	require.NoError(t, err)

	assert.JSONEq(t, `{"type":"ack","for":"join"}`, string(data))
}
