// Package schedule decides when the desk should stand or sit.
//
// Each weekday has a DayConfig: between Start and End the desk stands for
// Duration seconds out of every Interval, starting at Start. Every tick the
// Engine derives the target State for the current time, compares it with the
// desk's posture and issues at most one preset command, throttled so that a
// desk still in motion is not flooded with repeats.
package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sweeney/desk-scheduler/internal/clock"
	"github.com/sweeney/desk-scheduler/internal/desk"
)

// State is the target schedule state for a moment in time.
type State uint8

const (
	StateInactive State = iota
	StateSitToStand
	StateStanding
	StateStandToSit
	StateSitting
)

var stateNames = [...]string{
	StateInactive:   "INACTIVE",
	StateSitToStand: "TRANSITION_SIT_TO_STAND",
	StateStanding:   "STANDING",
	StateStandToSit: "TRANSITION_STAND_TO_SIT",
	StateSitting:    "SITTING",
}

// States lists every state in order.
var States = []State{StateInactive, StateSitToStand, StateStanding, StateStandToSit, StateSitting}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// DayConfig is the standing schedule for one weekday. Interval and Duration
// are in seconds; an Interval of zero disables the day like Enabled=false.
type DayConfig struct {
	Start    clock.TimeOfDay `json:"start"`
	End      clock.TimeOfDay `json:"end"`
	Interval uint32          `json:"interval_s"`
	Duration uint32          `json:"duration_s"`
	Enabled  bool            `json:"enabled"`
}

// Validate rejects configs the engine would misread: out-of-range times, and
// enabled days with no interval or a standing duration longer than it.
func (c DayConfig) Validate() error {
	if !c.Start.Valid() || !c.End.Valid() {
		return fmt.Errorf("%w: time out of range", ErrInvalidDayConfig)
	}
	if !c.Enabled {
		return nil
	}
	if c.Interval == 0 {
		return fmt.Errorf("%w: interval must be positive for an enabled day", ErrInvalidDayConfig)
	}
	if c.Duration > c.Interval {
		return fmt.Errorf("%w: duration %ds exceeds interval %ds", ErrInvalidDayConfig, c.Duration, c.Interval)
	}
	if clock.Compare(c.End, c.Start) < 0 {
		return fmt.Errorf("%w: end %s before start %s", ErrInvalidDayConfig, c.End, c.Start)
	}
	return nil
}

// DeskStateProvider reports the desk's current posture.
type DeskStateProvider interface {
	CurrentPosture() desk.Posture
}

// CommandReceiver carries out a motor command.
type CommandReceiver interface {
	SendCommand(cmd desk.Command) error
}

// Options tune the engine. Zero fields take the defaults.
type Options struct {
	// TransitionTolerance is the grace window at each edge of a standing
	// period during which the desk is expected to be moving.
	TransitionTolerance time.Duration

	// CommandCooldown is the minimum time before the same command is sent again.
	CommandCooldown time.Duration

	// TickInterval gates Poll.
	TickInterval time.Duration
}

const (
	DefaultTransitionTolerance = 60 * time.Second
	DefaultCommandCooldown     = 30 * time.Second
	DefaultTickInterval        = time.Second
)

// DefaultOptions returns the stock tuning.
func DefaultOptions() Options {
	return Options{
		TransitionTolerance: DefaultTransitionTolerance,
		CommandCooldown:     DefaultCommandCooldown,
		TickInterval:        DefaultTickInterval,
	}
}

func (o Options) withDefaults() Options {
	if o.TransitionTolerance <= 0 {
		o.TransitionTolerance = DefaultTransitionTolerance
	}
	if o.CommandCooldown <= 0 {
		o.CommandCooldown = DefaultCommandCooldown
	}
	if o.TickInterval <= 0 {
		o.TickInterval = DefaultTickInterval
	}
	return o
}

var (
	// ErrInvalidWeekday is returned for weekdays outside Sunday..Saturday.
	ErrInvalidWeekday = errors.New("schedule: invalid weekday")

	// ErrInvalidDayConfig is returned by DayConfig.Validate.
	ErrInvalidDayConfig = errors.New("schedule: invalid day config")

	// ErrNoStateProvider marks a tick skipped for lack of a desk state provider.
	ErrNoStateProvider = errors.New("schedule: no desk state provider")

	// ErrNoCommandReceiver marks a command that had nowhere to go.
	ErrNoCommandReceiver = errors.New("schedule: no command receiver")
)

// Decision records what one tick concluded.
type Decision struct {
	At     clock.DateTime
	Target State
	Desk   desk.Posture

	// Command is CommandInvalid when no action was needed.
	Command desk.Command

	// Dispatched reports that Command reached the receiver successfully.
	Dispatched bool

	// Suppressed reports that Command was held back by the cooldown.
	Suppressed bool

	Err error
}

// ParseWeekday accepts an English day name ("monday", "Mon") or its number
// with Sunday as 0.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n > 6 {
			return 0, fmt.Errorf("%w: %d", ErrInvalidWeekday, n)
		}
		return time.Weekday(n), nil
	}
	if len(s) >= 3 {
		for d := time.Sunday; d <= time.Saturday; d++ {
			name := strings.ToLower(d.String())
			if s == name || s == name[:3] {
				return d, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidWeekday, s)
}
