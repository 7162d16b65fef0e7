package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/desk-scheduler/internal/schedule"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string           `json:"event,omitempty"`
	Reason        string           `json:"reason,omitempty"`
	BootID        string           `json:"boot_id"`
	Desk          DeskJSON         `json:"desk"`
	Schedule      ScheduleJSON     `json:"schedule"`
	LastCommand   *LastCommandJSON `json:"last_command,omitempty"`
	Ready         bool             `json:"ready"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	StartTime     string           `json:"start_time"`
	Timestamp     string           `json:"timestamp"`
	MQTT          MQTTStatus       `json:"mqtt"`
	Counts        CountsJSON       `json:"event_counts"`
	Network       *NetworkJSON     `json:"network,omitempty"`
	Config        ConfigJSON       `json:"config"`
}

// DeskJSON reports the decoded desk state.
type DeskJSON struct {
	HeightMM    uint16 `json:"height_mm"`
	Posture     string `json:"posture"`
	Active      bool   `json:"active"`
	StandingMM  uint16 `json:"standing_mm"`
	SittingMM   uint16 `json:"sitting_mm"`
	ToleranceMM uint16 `json:"tolerance_mm"`
}

// ScheduleJSON reports the current target and the weekly schedule.
type ScheduleJSON struct {
	Target string    `json:"target"`
	Days   []DayJSON `json:"days"`
}

// DayJSON is one weekday's schedule.
type DayJSON struct {
	Day       string `json:"day"`
	Start     string `json:"start"`
	End       string `json:"end"`
	IntervalS uint32 `json:"interval_s"`
	DurationS uint32 `json:"duration_s"`
	Enabled   bool   `json:"enabled"`
}

// LastCommandJSON describes the last command sent.
type LastCommandJSON struct {
	Command   string `json:"command"`
	Source    string `json:"source"`
	Timestamp string `json:"timestamp"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Heights       int `json:"heights"`
	SignOffs      int `json:"sign_offs"`
	Malformed     int `json:"malformed"`
	Commands      int `json:"commands"`
	CommandErrors int `json:"command_errors"`
	Throttled     int `json:"throttled"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	HeartbeatMs   int64  `json:"heartbeat_ms"`
	Broker        string `json:"broker"`
	HTTPAddr      string `json:"http_addr"`
	SerialDevice  string `json:"serial_device"`
	Baud          int    `json:"baud"`
	ActivationPin int    `json:"activation_pin"`
	Timezone      string `json:"timezone"`
	Preset        string `json:"preset,omitempty"`
}

// Days converts a week of schedules to JSON, Sunday first.
func Days(days [7]schedule.DayConfig) []DayJSON {
	out := make([]DayJSON, 0, len(days))
	for i, d := range days {
		out = append(out, DayJSON{
			Day:       time.Weekday(i).String(),
			Start:     d.Start.String(),
			End:       d.End.String(),
			IntervalS: d.Interval,
			DurationS: d.Duration,
			Enabled:   d.Enabled,
		})
	}
	return out
}

func buildInner(snap Snapshot) StatusInner {
	posture := string(snap.Posture)
	if posture == "" {
		posture = "UNKNOWN"
	}

	inner := StatusInner{
		BootID: snap.BootID,
		Desk: DeskJSON{
			HeightMM:    snap.HeightMM,
			Posture:     posture,
			Active:      snap.Active,
			StandingMM:  snap.Params.StandingMM,
			SittingMM:   snap.Params.SittingMM,
			ToleranceMM: snap.Params.ToleranceMM,
		},
		Schedule: ScheduleJSON{
			Target: snap.Target.String(),
			Days:   Days(snap.Days),
		},
		Ready:         snap.Ready(),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Heights:       snap.Counts.Heights,
			SignOffs:      snap.Counts.SignOffs,
			Malformed:     snap.Counts.Malformed,
			Commands:      snap.Counts.Commands,
			CommandErrors: snap.Counts.CommandErrors,
			Throttled:     snap.Counts.Throttled,
		},
		Config: ConfigJSON{
			HeartbeatMs:   snap.Config.HeartbeatMs,
			Broker:        snap.Config.Broker,
			HTTPAddr:      snap.Config.HTTPAddr,
			SerialDevice:  snap.Config.SerialDevice,
			Baud:          snap.Config.Baud,
			ActivationPin: snap.Config.ActivationPin,
			Timezone:      snap.Config.Timezone,
			Preset:        snap.Config.Preset,
		},
	}

	if snap.Last != nil {
		inner.LastCommand = &LastCommandJSON{
			Command:   snap.Last.Command.String(),
			Source:    snap.Last.Source,
			Timestamp: snap.Last.Timestamp.UTC().Format(time.RFC3339),
		}
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
