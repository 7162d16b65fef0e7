package clock

import "time"

// FakeClock is a Provider that returns a scripted DateTime.
type FakeClock struct {
	// Current is returned by Now.
	Current DateTime

	// Calls counts Now invocations.
	Calls int
}

// NewFakeClock creates a FakeClock set to dt.
func NewFakeClock(dt DateTime) *FakeClock {
	return &FakeClock{Current: dt}
}

// Now returns the scripted time.
func (f *FakeClock) Now() DateTime {
	f.Calls++
	return f.Current
}

// Set replaces the time of day, keeping the date.
func (f *FakeClock) Set(t TimeOfDay) {
	f.Current.Time = t
}

// Advance moves the time of day forward. Day rollover advances the weekday
// but leaves year, month and day untouched.
func (f *FakeClock) Advance(seconds uint32) {
	t, days := f.Current.Time.Add(seconds)
	f.Current.Time = t
	f.Current.Date.Weekday = (f.Current.Date.Weekday + time.Weekday(days%7)) % 7
}
