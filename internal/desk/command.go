package desk

import (
	"errors"
	"fmt"
	"strings"
)

// CommandFrameLen is the length of every encoded command.
const CommandFrameLen = 8

// ErrUnknownCommand is returned when a command has no wire encoding.
var ErrUnknownCommand = errors.New("desk: unknown command")

// commandFrames holds the wire encoding of each command, checksums included.
var commandFrames = map[Command][CommandFrameLen]byte{
	CommandWakeup:  {0x9b, 0x06, 0x02, 0x00, 0x00, 0x6c, 0xa1, 0x9d},
	CommandUp:      {0x9b, 0x06, 0x02, 0x01, 0x00, 0xfc, 0xa0, 0x9d},
	CommandDown:    {0x9b, 0x06, 0x02, 0x02, 0x00, 0x0c, 0xa0, 0x9d},
	CommandMode:    {0x9b, 0x06, 0x02, 0x20, 0x00, 0xac, 0xb8, 0x9d},
	CommandPreset1: {0x9b, 0x06, 0x02, 0x04, 0x00, 0xac, 0xa3, 0x9d},
	CommandPreset2: {0x9b, 0x06, 0x02, 0x08, 0x00, 0xac, 0xa6, 0x9d},
	CommandPreset3: {0x9b, 0x06, 0x02, 0x10, 0x00, 0xac, 0xac, 0x9d},
	CommandPreset4: {0x9b, 0x06, 0x02, 0x00, 0x01, 0xac, 0x60, 0x9d},
}

var commandNames = map[Command]string{
	CommandInvalid: "INVALID",
	CommandWakeup:  "WAKEUP",
	CommandUp:      "UP",
	CommandDown:    "DOWN",
	CommandMode:    "MODE",
	CommandPreset1: "PRESET_1",
	CommandPreset2: "PRESET_2",
	CommandPreset3: "PRESET_3",
	CommandPreset4: "PRESET_4",
}

// The scheduler stands with preset 3 and sits with preset 4.
var commandAliases = map[string]Command{
	"M":     CommandMode,
	"STAND": CommandPreset3,
	"SIT":   CommandPreset4,
}

// Commands lists every sendable command in wire-table order.
var Commands = []Command{
	CommandWakeup, CommandUp, CommandDown, CommandMode,
	CommandPreset1, CommandPreset2, CommandPreset3, CommandPreset4,
}

// String returns the command name, e.g. "PRESET_3".
func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Command(%d)", uint8(c))
}

// MarshalText implements encoding.TextMarshaler.
func (c Command) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// ParseCommand parses a command name. Matching is case-insensitive and accepts
// "PRESET3" and "preset-3" forms as well as the aliases M, STAND and SIT.
func ParseCommand(s string) (Command, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	name = strings.ReplaceAll(name, "-", "_")
	if c, ok := commandAliases[name]; ok {
		return c, nil
	}
	for _, c := range Commands {
		canonical := commandNames[c]
		if name == canonical || name == strings.ReplaceAll(canonical, "_", "") {
			return c, nil
		}
	}
	return CommandInvalid, fmt.Errorf("%w: %q", ErrUnknownCommand, s)
}

// Encode returns the wire frame for c.
func Encode(c Command) ([CommandFrameLen]byte, error) {
	frame, ok := commandFrames[c]
	if !ok {
		return frame, fmt.Errorf("%w: %s", ErrUnknownCommand, c)
	}
	return frame, nil
}
