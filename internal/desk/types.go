// Package desk speaks the desk controller's serial protocol.
//
// The controller continuously sends frames delimited by 0x9B (start) and 0x9D
// (end). The frame we care about mirrors the handset display: three 7-segment
// digit bytes, where bit 7 of the middle digit is the decimal point. Heights are
// reported here in millimetres: "75.5" on the display is 755, "115" is 1150.
//
// Commands are fixed 8-byte frames. Before the controller accepts them, its
// enable line must be pulsed high for about a second; after that it stays
// responsive until it signs off (an empty height frame).
//
// This package never sleeps except for that activation pulse and holds no
// goroutines. Callers feed it bytes and call Update from a single loop.
package desk

import "time"

// Command is a logical motor command.
type Command uint8

const (
	CommandInvalid Command = iota
	CommandWakeup
	CommandUp
	CommandDown
	CommandMode
	CommandPreset1
	CommandPreset2
	CommandPreset3
	CommandPreset4
)

// Posture is the classified desk position.
type Posture string

const (
	PostureUnknown  Posture = "UNKNOWN"
	PostureSitting  Posture = "SITTING"
	PostureStanding Posture = "STANDING"
)

// Postures lists every posture value.
var Postures = []Posture{PostureUnknown, PostureSitting, PostureStanding}

// Params are the reference heights used to classify a reading, in millimetres.
type Params struct {
	StandingMM  uint16 `json:"standing_mm" toml:"standing_mm"`
	SittingMM   uint16 `json:"sitting_mm" toml:"sitting_mm"`
	ToleranceMM uint16 `json:"tolerance_mm" toml:"tolerance_mm"`
}

// EventType identifies what happened on the desk link.
type EventType string

const (
	EventHeight    EventType = "HEIGHT"
	EventPosture   EventType = "POSTURE"
	EventSignOff   EventType = "SIGN_OFF"
	EventMalformed EventType = "MALFORMED"
	EventCommand   EventType = "COMMAND"
)

// Event is a desk-link occurrence worth reporting.
type Event struct {
	Timestamp time.Time
	Type      EventType
	HeightMM  uint16
	Posture   Posture
	// Command and Source are set for EventCommand only.
	Command Command
	Source  string
}

// HeightProvider reports the last decoded height in millimetres, 0 if unknown.
type HeightProvider interface {
	CurrentHeight() uint16
}

// Pin drives the controller's enable line.
type Pin interface {
	Set(high bool) error
}
