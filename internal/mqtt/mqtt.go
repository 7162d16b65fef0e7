// Package mqtt publishes desk events and lifecycle messages to an MQTT broker
// and receives remote commands, with an in-memory fake for tests.
package mqtt

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/sweeney/desk-scheduler/internal/desk"
)

// Topic is the MQTT topic for desk events.
const Topic = "office/desk/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "office/desk/system"

// TopicCommands is subscribed to for remote desk commands, e.g. "PRESET_3".
const TopicCommands = "office/desk/commands"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a desk event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event desk.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// CommandHandler receives the trimmed payload of each message on TopicCommands.
// It is called from the MQTT client's goroutine and must not block.
type CommandHandler func(name string)

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Desk DeskPayload `json:"desk"`
}

// DeskPayload contains the desk event details.
type DeskPayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	HeightMM  uint16 `json:"height_mm"`
	Posture   string `json:"posture"`
	Command   string `json:"command,omitempty"`
	Source    string `json:"source,omitempty"`
}

// FormatPayload creates the JSON payload for a desk event.
func FormatPayload(event desk.Event) ([]byte, error) {
	posture := string(event.Posture)
	if posture == "" {
		posture = string(desk.PostureUnknown)
	}
	payload := Payload{
		Desk: DeskPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     string(event.Type),
			HeightMM:  event.HeightMM,
			Posture:   posture,
		},
	}
	if event.Type == desk.EventCommand {
		payload.Desk.Command = event.Command.String()
		payload.Desk.Source = event.Source
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
	BootID    string `json:"boot_id,omitempty"`
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

// FormatWillPayload is the OFFLINE message the broker publishes if the
// daemon disappears without a clean disconnect.
func FormatWillPayload(bootID string) []byte {
	data, _ := json.Marshal(SystemPayload{
		System: SystemPayloadInner{
			Event:  "OFFLINE",
			Reason: "MQTT_DISCONNECT",
			BootID: bootID,
		},
	})
	return data
}

// ParseCommandPayload extracts a command name from a message body. Both a bare
// name ("PRESET_3") and {"command":"PRESET_3"} are accepted.
func ParseCommandPayload(payload []byte) string {
	s := strings.TrimSpace(string(payload))
	if strings.HasPrefix(s, "{") {
		var body struct {
			Command string `json:"command"`
		}
		if err := json.Unmarshal([]byte(s), &body); err == nil {
			return strings.TrimSpace(body.Command)
		}
		return ""
	}
	return strings.Trim(s, `"`)
}
