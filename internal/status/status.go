// Package status provides a thread-safe status tracker for the desk-scheduler daemon.
// The run loop writes to it; HTTP handlers and MQTT heartbeats read snapshots.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/desk-scheduler/internal/desk"
	"github.com/sweeney/desk-scheduler/internal/schedule"
)

// NetworkInfo contains network state as reported by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	HeartbeatMs   int64
	Broker        string
	HTTPAddr      string
	SerialDevice  string
	Baud          int
	ActivationPin int
	Timezone      string
	Preset        string
}

// Counts accumulates desk-link and command activity since startup.
type Counts struct {
	Heights       int
	SignOffs      int
	Malformed     int
	Commands      int
	CommandErrors int
	Throttled     int
}

// LastCommand describes the most recent command sent to the desk.
type LastCommand struct {
	Command   desk.Command
	Source    string // "schedule", "http" or "mqtt"
	Timestamp time.Time
}

// DeskState is the loop-owned state copied into the tracker.
type DeskState struct {
	HeightMM uint16
	Posture  desk.Posture
	Active   bool
	Params   desk.Params
	Target   schedule.State
	Days     [7]schedule.DayConfig
	Counts   Counts
	Last     *LastCommand
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	DeskState
	BootID        string
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Ready reports whether a height has been decoded since startup.
func (s Snapshot) Ready() bool {
	return s.HeightMM != 0
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time, boot id and config.
func NewTracker(startTime time.Time, bootID string, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			DeskState: DeskState{Posture: desk.PostureUnknown},
			BootID:    bootID,
			StartTime: startTime,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// Update replaces the desk state. Called from the run loop after every change.
func (t *Tracker) Update(d DeskState) {
	if d.Last != nil {
		last := *d.Last
		d.Last = &last
	}
	t.mu.Lock()
	t.snap.DeskState = d
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	if s.Last != nil {
		last := *s.Last
		s.Last = &last
	}
	s.Now = t.now()
	return s
}
