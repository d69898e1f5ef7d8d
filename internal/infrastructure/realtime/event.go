// Package realtime pushes selection snapshots and bulk results to
// connected browser tabs over WebSocket.
package realtime

import (
	"encoding/json"
	"time"
)

// Event types sent to clients.
const (
	TypeSelectionChanged = "selection.changed"
	TypeBulkCompleted    = "bulk.completed"
	TypeError            = "error"
)

// Event is the envelope of every server message.
type Event struct {
	Type      string    `json:"type"`
	View      string    `json:"view,omitempty"`
	Version   uint64    `json:"version,omitempty"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent stamps an event with the current time.
func NewEvent(eventType, view string, payload any) Event {
	return Event{
		Type:      eventType,
		View:      view,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON serializes the event.
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}
