package streaming

import (
	"encoding/json"
	"fmt"

	"github.com/sporewatch/sightingmap/pkg/core"
)

// Message type constants matching the live channel protocol.
const (
	TypeJoin           = "join"
	TypeAck            = "ack"
	TypeUpdateMarkers  = "update_markers"
	TypeSelectSighting = "select_sighting"
)

// TopicSightings is the only topic a client joins.
const TopicSightings = "sightings"

// CSRFQueryParam carries the page's CSRF token on the live URL.
const CSRFQueryParam = "_csrf_token"

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// AckMessage is the host's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// JoinPayload is sent by the client on connect and after every reconnect.
type JoinPayload struct {
	Topic     string `json:"topic"`
	CSRFToken string `json:"csrf_token,omitempty"`
}

// UpdateMarkersPayload carries a full sighting snapshot. Entries stay raw so
// one bad sighting can be skipped without rejecting the snapshot.
type UpdateMarkersPayload struct {
	Sightings []json.RawMessage `json:"sightings"`
}

// SelectSightingPayload is pushed when a marker is clicked.
type SelectSightingPayload struct {
	ID string `json:"id"`
}

// NewUpdateMarkersPayload encodes sightings for the wire.
func NewUpdateMarkersPayload(sightings []core.Sighting) (UpdateMarkersPayload, error) {
	entries := make([]json.RawMessage, 0, len(sightings))
	for _, s := range sightings {
		raw, err := json.Marshal(s)
		if err != nil {
			return UpdateMarkersPayload{}, fmt.Errorf("marshal sighting %s: %w", s.ID, err)
		}
		entries = append(entries, raw)
	}
	return UpdateMarkersPayload{Sightings: entries}, nil
}

// MarshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func MarshalEnvelope(msgType string, payload any) ([]byte, error) {
	env := Envelope{Type: msgType}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
		}
		env.Payload = raw
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// MarshalAck builds an ack frame for the given message type.
func MarshalAck(forType string) ([]byte, error) {
	return json.Marshal(AckMessage{Type: TypeAck, For: forType})
}
