// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sweeney/propvalve/internal/emcy"
)

// Topic is the MQTT topic for emergency events.
const Topic = "propvalve/driver/emcy"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "propvalve/driver/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// PublishEMCY sends an emergency event to the broker.
	// Returns error if publishing fails (should not crash the process).
	PublishEMCY(event emcy.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload for an emergency.
type Payload struct {
	EMCY EMCYPayload `json:"emcy"`
}

// EMCYPayload contains the emergency details. Codes are rendered in hex,
// the way CANopen tooling shows them.
type EMCYPayload struct {
	Timestamp string `json:"timestamp"`
	Node      uint8  `json:"node"`
	Code      string `json:"code"`
	Class     string `json:"class"`
	Register  uint8  `json:"register"`
}

// FormatEMCYPayload creates the JSON payload for an emergency event.
func FormatEMCYPayload(event emcy.Event) ([]byte, error) {
	payload := Payload{
		EMCY: EMCYPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Node:      event.Node,
			Code:      fmt.Sprintf("0x%04X", uint16(event.Code)),
			Class:     fmt.Sprintf("0x%04X", uint16(event.Code.Class())),
			Register:  event.Code.Register(),
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
