// Package clock provides time-of-day arithmetic and wall-clock sources for the
// scheduler. Everything here is a value type; nothing sleeps.
package clock

import (
	"fmt"
	"time"
)

// SecondsPerDay is the number of seconds between two midnights.
const SecondsPerDay = 24 * 60 * 60

// TimeOfDay is a wall-clock time without a date.
type TimeOfDay struct {
	Hour   uint8
	Minute uint8
	Second uint8
}

// Date is a calendar date with its day of the week.
type Date struct {
	Year    uint16
	Month   uint8
	Day     uint8
	Weekday time.Weekday
}

// DateTime combines a time of day with the date it belongs to.
type DateTime struct {
	Time TimeOfDay
	Date Date
}

// NewTimeOfDay returns a normalized TimeOfDay. Overflowing fields carry into the
// next larger unit and whole days are discarded.
func NewTimeOfDay(hour, minute, second int) TimeOfDay {
	return FromSeconds(hour*3600 + minute*60 + second)
}

// FromSeconds converts seconds since midnight into a TimeOfDay, wrapping at
// midnight in both directions.
func FromSeconds(s int) TimeOfDay {
	s %= SecondsPerDay
	if s < 0 {
		s += SecondsPerDay
	}
	return TimeOfDay{
		Hour:   uint8(s / 3600),
		Minute: uint8((s / 60) % 60),
		Second: uint8(s % 60),
	}
}

// Seconds returns the number of seconds since midnight.
func (t TimeOfDay) Seconds() int {
	return int(t.Hour)*3600 + int(t.Minute)*60 + int(t.Second)
}

// Add returns t advanced by seconds and the number of whole days that rolled over.
func (t TimeOfDay) Add(seconds uint32) (TimeOfDay, int) {
	total := uint64(t.Seconds()) + uint64(seconds)
	return FromSeconds(int(total % SecondsPerDay)), int(total / SecondsPerDay)
}

// Valid reports whether every field is within its range.
func (t TimeOfDay) Valid() bool {
	return t.Hour < 24 && t.Minute < 60 && t.Second < 60
}

// String formats t as HH:MM:SS.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// MarshalText implements encoding.TextMarshaler.
func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Accepts HH:MM and HH:MM:SS.
func (t *TimeOfDay) UnmarshalText(text []byte) error {
	parsed, err := ParseTimeOfDay(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseTimeOfDay parses HH:MM or HH:MM:SS.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOfDay{
				Hour:   uint8(t.Hour()),
				Minute: uint8(t.Minute()),
				Second: uint8(t.Second()),
			}, nil
		}
	}
	return TimeOfDay{}, fmt.Errorf("parse time of day %q: want HH:MM[:SS]", s)
}

// Diff returns a - b in seconds.
func Diff(a, b TimeOfDay) int {
	return a.Seconds() - b.Seconds()
}

// Compare returns 1 if a is later than b, -1 if earlier and 0 if equal.
func Compare(a, b TimeOfDay) int {
	switch d := Diff(a, b); {
	case d > 0:
		return 1
	case d < 0:
		return -1
	default:
		return 0
	}
}

// FromTime converts t (in its own location) to a DateTime.
func FromTime(t time.Time) DateTime {
	return DateTime{
		Time: TimeOfDay{
			Hour:   uint8(t.Hour()),
			Minute: uint8(t.Minute()),
			Second: uint8(t.Second()),
		},
		Date: Date{
			Year:    uint16(t.Year()),
			Month:   uint8(t.Month()),
			Day:     uint8(t.Day()),
			Weekday: t.Weekday(),
		},
	}
}

// In returns dt as a time.Time in loc.
func (dt DateTime) In(loc *time.Location) time.Time {
	return time.Date(int(dt.Date.Year), time.Month(dt.Date.Month), int(dt.Date.Day),
		int(dt.Time.Hour), int(dt.Time.Minute), int(dt.Time.Second), 0, loc)
}

// String formats dt as YYYY-MM-DD HH:MM:SS (Weekday).
func (dt DateTime) String() string {
	return fmt.Sprintf("%04d-%02d-%02d %s (%s)",
		dt.Date.Year, dt.Date.Month, dt.Date.Day, dt.Time, dt.Date.Weekday)
}
