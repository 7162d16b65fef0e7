package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/desk-scheduler/internal/clock"
	"github.com/sweeney/desk-scheduler/internal/schedule"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Serial.Baud != 9600 {
		t.Errorf("Serial.Baud: got %d, want 9600", cfg.Serial.Baud)
	}
	if cfg.Desk.StandingMM != 1150 || cfg.Desk.SittingMM != 750 || cfg.Desk.ToleranceMM != 50 {
		t.Errorf("Desk: got %+v, want 1150/750/50", cfg.Desk)
	}
	if cfg.MQTT.Heartbeat.Duration != 15*time.Minute {
		t.Errorf("MQTT.Heartbeat: got %v, want 15m", cfg.MQTT.Heartbeat.Duration)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}

	days, err := cfg.Days()
	if err != nil {
		t.Fatalf("Days: %v", err)
	}
	want := schedule.DayConfig{
		Start:    clock.NewTimeOfDay(9, 0, 0),
		End:      clock.NewTimeOfDay(17, 0, 0),
		Interval: 3600,
		Duration: 900,
		Enabled:  true,
	}
	for d := time.Monday; d <= time.Friday; d++ {
		if days[d] != want {
			t.Errorf("%s: got %+v, want %+v", d, days[d], want)
		}
	}
	for _, d := range []time.Weekday{time.Saturday, time.Sunday} {
		if days[d].Enabled {
			t.Errorf("%s: expected disabled", d)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Serial.Device != Default().Serial.Device {
		t.Errorf("Serial.Device: got %q, want default", cfg.Serial.Device)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
[serial]
device = "/dev/ttyUSB0"

[desk]
standing_mm = 1100
sitting_mm = 720
tolerance_mm = 40

[mqtt]
broker = "tcp://192.168.1.200:1883"
heartbeat = "5m"

[schedule]
timezone = "UTC"

[schedule.days.mon]
start = "08:30"
end = "16:00"
interval = "30m"
duration = "10m"
enabled = true

[schedule.days.friday]
enabled = false
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Serial.Device != "/dev/ttyUSB0" {
		t.Errorf("Serial.Device: got %q", cfg.Serial.Device)
	}
	if cfg.Serial.Baud != 9600 {
		t.Errorf("Serial.Baud: got %d, want default 9600", cfg.Serial.Baud)
	}
	if cfg.Desk.StandingMM != 1100 || cfg.Desk.ToleranceMM != 40 {
		t.Errorf("Desk: got %+v", cfg.Desk)
	}
	if cfg.MQTT.Heartbeat.Duration != 5*time.Minute {
		t.Errorf("MQTT.Heartbeat: got %v, want 5m", cfg.MQTT.Heartbeat.Duration)
	}
	if cfg.MQTT.ClientID != "desk-scheduler" {
		t.Errorf("MQTT.ClientID: got %q, want default", cfg.MQTT.ClientID)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	days, err := cfg.Days()
	if err != nil {
		t.Fatalf("Days: %v", err)
	}
	mon := days[time.Monday]
	if mon.Start != clock.NewTimeOfDay(8, 30, 0) || mon.Interval != 1800 || mon.Duration != 600 {
		t.Errorf("Monday: got %+v", mon)
	}
	if days[time.Friday].Enabled {
		t.Error("Friday: expected disabled")
	}
	if !days[time.Tuesday].Enabled || days[time.Tuesday].Interval != 3600 {
		t.Errorf("Tuesday: got %+v, want default", days[time.Tuesday])
	}

	loc, err := cfg.Location()
	if err != nil || loc != time.UTC {
		t.Errorf("Location: got %v, %v, want UTC", loc, err)
	}
}

func TestLoadPreset(t *testing.T) {
	path := writeConfig(t, `
[schedule]
preset = "test"

[schedule.days.sunday]
enabled = false
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	days, err := cfg.Days()
	if err != nil {
		t.Fatalf("Days: %v", err)
	}
	want := schedule.DayConfig{
		Start:    clock.NewTimeOfDay(0, 0, 0),
		End:      clock.NewTimeOfDay(23, 59, 59),
		Interval: 180,
		Duration: 60,
		Enabled:  true,
	}
	for d := time.Monday; d <= time.Saturday; d++ {
		if days[d] != want {
			t.Errorf("%s: got %+v, want %+v", d, days[d], want)
		}
	}
	if days[time.Sunday].Enabled {
		t.Error("Sunday: file entry should override the preset")
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"syntax", `[serial`, "parse config"},
		{"unknown key", "[serial]\nspeed = 9600\n", "unknown keys"},
		{"bad duration", "[mqtt]\nheartbeat = \"soon\"\n", "parse config"},
		{"bad time", "[schedule.days.mon]\nstart = \"9am\"\n", "parse config"},
		{"bad weekday", "[schedule.days.funday]\nenabled = false\n", "invalid day"},
		{"duplicate weekday", "[schedule.days.mon]\nenabled = false\n[schedule.days.monday]\nenabled = false\n", "invalid day"},
		{"bad preset", "[schedule]\npreset = \"lazy\"\n", "unknown preset"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error: got %q, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no device", func(c *Config) { c.Serial.Device = "" }},
		{"zero baud", func(c *Config) { c.Serial.Baud = 0 }},
		{"negative pin", func(c *Config) { c.GPIO.ActivationPin = -1 }},
		{"no standing height", func(c *Config) { c.Desk.StandingMM = 0 }},
		{"negative heartbeat", func(c *Config) { c.MQTT.Heartbeat.Duration = -time.Second }},
		{"bad timezone", func(c *Config) { c.Schedule.Timezone = "Mars/Olympus" }},
		{"fractional interval", func(c *Config) {
			d := c.Schedule.Days["monday"]
			d.Interval = Duration{1500 * time.Millisecond}
			c.Schedule.Days["monday"] = d
		}},
		{"duration exceeds interval", func(c *Config) {
			d := c.Schedule.Days["monday"]
			d.Duration = Duration{2 * time.Hour}
			c.Schedule.Days["monday"] = d
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestDaysErrorIsInvalidDay(t *testing.T) {
	cfg := Default()
	cfg.Schedule.Days["someday"] = Day{}

	_, err := cfg.Days()
	if !errors.Is(err, ErrInvalidDay) {
		t.Errorf("error: got %v, want ErrInvalidDay", err)
	}
}

func TestApplyPreset(t *testing.T) {
	cfg := Default()
	if err := cfg.ApplyPreset("TEST"); err != nil {
		t.Fatalf("ApplyPreset: %v", err)
	}
	if cfg.Schedule.Preset != PresetTest {
		t.Errorf("Preset: got %q, want test", cfg.Schedule.Preset)
	}
	days, _ := cfg.Days()
	if !days[time.Sunday].Enabled {
		t.Error("test preset should enable Sunday")
	}

	if err := cfg.ApplyPreset(PresetDefault); err != nil {
		t.Fatalf("ApplyPreset: %v", err)
	}
	days, _ = cfg.Days()
	if days[time.Sunday].Enabled {
		t.Error("default preset should disable Sunday")
	}

	if err := cfg.ApplyPreset("nope"); !errors.Is(err, ErrUnknownPreset) {
		t.Errorf("error: got %v, want ErrUnknownPreset", err)
	}
}

func TestDurationText(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("1h30m")); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if d.Duration != 90*time.Minute {
		t.Errorf("got %v, want 1h30m", d.Duration)
	}
	b, _ := d.MarshalText()
	if string(b) != "1h30m0s" {
		t.Errorf("MarshalText: got %q, want 1h30m0s", b)
	}
}
