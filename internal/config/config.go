// Package config loads the desk-scheduler configuration file.
//
// The file is TOML. Every key is optional; anything left out keeps the value
// from Default, which matches what the desk firmware shipped with.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/sweeney/desk-scheduler/internal/clock"
	"github.com/sweeney/desk-scheduler/internal/desk"
	"github.com/sweeney/desk-scheduler/internal/gpio"
	"github.com/sweeney/desk-scheduler/internal/schedule"
	"github.com/sweeney/desk-scheduler/internal/serial"
)

// DefaultPath is where the daemon looks when --config is not given.
const DefaultPath = "/etc/desk-scheduler/config.toml"

// Schedule presets.
const (
	PresetDefault = "default"
	PresetTest    = "test"
)

var (
	// ErrInvalidDay is returned for an unknown weekday key or a bad day entry.
	ErrInvalidDay = errors.New("config: invalid day")
	// ErrUnknownPreset is returned by ApplyPreset.
	ErrUnknownPreset = errors.New("config: unknown preset")
)

// Duration is a time.Duration that reads "15m" style strings.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config holds all daemon configuration.
type Config struct {
	Serial   SerialConfig   `toml:"serial"`
	GPIO     GPIOConfig     `toml:"gpio"`
	Desk     desk.Params    `toml:"desk"`
	Schedule ScheduleConfig `toml:"schedule"`
	MQTT     MQTTConfig     `toml:"mqtt"`
	HTTP     HTTPConfig     `toml:"http"`
	Logging  LoggingConfig  `toml:"logging"`
}

// SerialConfig selects the desk-link UART.
type SerialConfig struct {
	Device string `toml:"device"`
	Baud   int    `toml:"baud"`
}

// GPIOConfig selects the controller enable line and the status LED.
type GPIOConfig struct {
	Chip          string `toml:"chip"`
	ActivationPin int    `toml:"activation_pin"`
	LEDPin        int    `toml:"led_pin"` // 0 disables the LED
}

// ScheduleConfig is the weekly schedule.
type ScheduleConfig struct {
	Timezone string `toml:"timezone"`
	Preset   string `toml:"preset,omitempty"`
	// Days is keyed by weekday name ("monday", "tue", ...). A listed day
	// replaces its default entry completely.
	Days map[string]Day `toml:"days"`
}

// Day is one weekday's schedule as written in the file.
type Day struct {
	Start    clock.TimeOfDay `toml:"start"`
	End      clock.TimeOfDay `toml:"end"`
	Interval Duration        `toml:"interval"`
	Duration Duration        `toml:"duration"`
	Enabled  bool            `toml:"enabled"`
}

// MQTTConfig controls telemetry.
type MQTTConfig struct {
	Broker    string   `toml:"broker"`
	ClientID  string   `toml:"client_id"`
	Heartbeat Duration `toml:"heartbeat"`
	Disabled  bool     `toml:"disabled"`
}

// HTTPConfig controls the status server.
type HTTPConfig struct {
	Addr string `toml:"addr"`
}

// LoggingConfig controls logging behaviour.
type LoggingConfig struct {
	Level     string `toml:"level"`
	File      string `toml:"file"`
	MaxSizeMB int    `toml:"max_size_mb"`
	MaxFiles  int    `toml:"max_files"`
}

// Default returns the firmware defaults: weekdays 09:00-17:00 standing for
// 15 minutes every hour, weekends off.
func Default() Config {
	return Config{
		Serial: SerialConfig{
			Device: "/dev/serial0",
			Baud:   serial.DefaultBaud,
		},
		GPIO: GPIOConfig{
			Chip:          gpio.DefaultChip,
			ActivationPin: gpio.DefaultActivationPin,
			LEDPin:        gpio.DefaultLEDPin,
		},
		Desk: desk.Params{StandingMM: 1150, SittingMM: 750, ToleranceMM: 50},
		Schedule: ScheduleConfig{
			Timezone: "Local",
			Days:     defaultDays(),
		},
		MQTT: MQTTConfig{
			Broker:    "tcp://localhost:1883",
			ClientID:  "desk-scheduler",
			Heartbeat: Duration{15 * time.Minute},
		},
		HTTP: HTTPConfig{Addr: ":8080"},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  3,
		},
	}
}

func defaultDays() map[string]Day {
	workday := Day{
		Start:    clock.NewTimeOfDay(9, 0, 0),
		End:      clock.NewTimeOfDay(17, 0, 0),
		Interval: Duration{time.Hour},
		Duration: Duration{15 * time.Minute},
		Enabled:  true,
	}
	days := make(map[string]Day, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		if d == time.Saturday || d == time.Sunday {
			days[dayKey(d)] = Day{}
			continue
		}
		days[dayKey(d)] = workday
	}
	return days
}

func testDays() map[string]Day {
	all := Day{
		Start:    clock.NewTimeOfDay(0, 0, 0),
		End:      clock.NewTimeOfDay(23, 59, 59),
		Interval: Duration{3 * time.Minute},
		Duration: Duration{time.Minute},
		Enabled:  true,
	}
	days := make(map[string]Day, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		days[dayKey(d)] = all
	}
	return days
}

func dayKey(d time.Weekday) string {
	return strings.ToLower(d.String())
}

// Load reads path over the defaults. A missing file is not an error.
//
// Days named in the file are laid over the defaults, or over the preset
// when schedule.preset is set.
func Load(path string) (Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	cfg.Schedule.Days = nil
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Default(), fmt.Errorf("parse config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return Default(), fmt.Errorf("parse config: unknown keys %s", strings.Join(keys, ", "))
	}

	fromFile := cfg.Schedule.Days
	cfg.Schedule.Days = defaultDays()
	if cfg.Schedule.Preset != "" {
		if err := cfg.ApplyPreset(cfg.Schedule.Preset); err != nil {
			return cfg, err
		}
	}
	if err := cfg.overlayDays(fromFile); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) overlayDays(days map[string]Day) error {
	seen := make(map[time.Weekday]string, len(days))
	for k, d := range days {
		wd, err := schedule.ParseWeekday(k)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidDay, k)
		}
		if prev, dup := seen[wd]; dup {
			return fmt.Errorf("%w: %q and %q are both %s", ErrInvalidDay, prev, k, wd)
		}
		seen[wd] = k
		c.Schedule.Days[dayKey(wd)] = d
	}
	return nil
}

// ApplyPreset replaces the weekly schedule with a named preset.
func (c *Config) ApplyPreset(name string) error {
	switch strings.ToLower(name) {
	case PresetDefault:
		c.Schedule.Days = defaultDays()
	case PresetTest:
		c.Schedule.Days = testDays()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	c.Schedule.Preset = strings.ToLower(name)
	return nil
}

// Location resolves the schedule timezone.
func (c Config) Location() (*time.Location, error) {
	switch c.Schedule.Timezone {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}
	return loc, nil
}

// Days converts the file's day map to scheduler configs, indexed by weekday.
// Days missing from the map are disabled.
func (c Config) Days() ([7]schedule.DayConfig, error) {
	var out [7]schedule.DayConfig

	keys := make([]string, 0, len(c.Schedule.Days))
	for k := range c.Schedule.Days {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	seen := make(map[time.Weekday]string)
	for _, k := range keys {
		wd, err := schedule.ParseWeekday(k)
		if err != nil {
			return out, fmt.Errorf("%w: %q", ErrInvalidDay, k)
		}
		if prev, dup := seen[wd]; dup {
			return out, fmt.Errorf("%w: %q and %q are both %s", ErrInvalidDay, prev, k, wd)
		}
		seen[wd] = k

		dc, err := c.Schedule.Days[k].toDayConfig()
		if err != nil {
			return out, fmt.Errorf("%w: %s: %v", ErrInvalidDay, k, err)
		}
		out[wd] = dc
	}
	return out, nil
}

func (d Day) toDayConfig() (schedule.DayConfig, error) {
	interval, err := wholeSeconds(d.Interval.Duration)
	if err != nil {
		return schedule.DayConfig{}, fmt.Errorf("interval: %w", err)
	}
	duration, err := wholeSeconds(d.Duration.Duration)
	if err != nil {
		return schedule.DayConfig{}, fmt.Errorf("duration: %w", err)
	}
	dc := schedule.DayConfig{
		Start:    d.Start,
		End:      d.End,
		Interval: interval,
		Duration: duration,
		Enabled:  d.Enabled,
	}
	if err := dc.Validate(); err != nil {
		return schedule.DayConfig{}, err
	}
	return dc, nil
}

func wholeSeconds(d time.Duration) (uint32, error) {
	if d < 0 {
		return 0, fmt.Errorf("%v is negative", d)
	}
	if d%time.Second != 0 {
		return 0, fmt.Errorf("%v is not a whole number of seconds", d)
	}
	s := d / time.Second
	if s > 1<<32-1 {
		return 0, fmt.Errorf("%v is too long", d)
	}
	return uint32(s), nil
}

// Validate checks everything the daemon needs before it starts.
func (c Config) Validate() error {
	if c.Serial.Device == "" {
		return errors.New("config: serial.device is required")
	}
	if c.Serial.Baud <= 0 {
		return fmt.Errorf("config: serial.baud must be positive, got %d", c.Serial.Baud)
	}
	if c.GPIO.ActivationPin < 0 {
		return fmt.Errorf("config: gpio.activation_pin must not be negative, got %d", c.GPIO.ActivationPin)
	}
	if c.Desk.StandingMM == 0 || c.Desk.SittingMM == 0 {
		return errors.New("config: desk.standing_mm and desk.sitting_mm are required")
	}
	if c.MQTT.Heartbeat.Duration < 0 {
		return fmt.Errorf("config: mqtt.heartbeat must not be negative, got %v", c.MQTT.Heartbeat.Duration)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := c.Days(); err != nil {
		return err
	}
	return nil
}
