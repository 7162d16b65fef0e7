package clock

import "time"

// Provider supplies the current local date and time.
type Provider interface {
	Now() DateTime
}

// SystemClock reads the host wall clock in a fixed location.
// Time synchronisation is left to the host (systemd-timesyncd, chrony).
type SystemClock struct {
	Location *time.Location
	now      func() time.Time
}

// NewSystemClock returns a SystemClock for loc. A nil loc means time.Local.
func NewSystemClock(loc *time.Location) *SystemClock {
	if loc == nil {
		loc = time.Local
	}
	return &SystemClock{Location: loc, now: time.Now}
}

// Now returns the current wall-clock time in the clock's location.
func (c *SystemClock) Now() DateTime {
	return FromTime(c.now().In(c.Location))
}

// Gate fires at most once per Interval. It replaces ad-hoc "last fired"
// bookkeeping in polling loops: call Due on every iteration.
type Gate struct {
	Interval time.Duration
	next     time.Time
}

// NewGate returns a Gate that is due immediately.
func NewGate(interval time.Duration) *Gate {
	return &Gate{Interval: interval}
}

// Due reports whether the gate fires at now. When it fires, the next due time
// moves to now+Interval. A non-positive Interval fires every call.
func (g *Gate) Due(now time.Time) bool {
	if !g.next.IsZero() && now.Before(g.next) {
		return false
	}
	g.next = now.Add(g.Interval)
	return true
}

// Reset makes the gate due on the next call.
func (g *Gate) Reset() {
	g.next = time.Time{}
}
