package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sweeney/desk-scheduler/internal/config"
	"github.com/sweeney/desk-scheduler/internal/gpio"
	"github.com/sweeney/desk-scheduler/internal/logging"
	"github.com/sweeney/desk-scheduler/internal/serial"
)

// globalOptions are the flags shared by every subcommand.
type globalOptions struct {
	configPath string
	debug      bool
	logLevel   string
}

func newRootCmd() *cobra.Command {
	g := &globalOptions{}
	root := &cobra.Command{
		Use:   "desk-scheduler",
		Short: "Sit/stand desk scheduler",
		Long: `desk-scheduler talks to a motorized desk controller over its serial link,
moves the desk between the sitting and standing presets on a weekly schedule,
and reports heights and commands over MQTT and HTTP.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", config.DefaultPath, "Config file (TOML); defaults apply if missing")
	root.PersistentFlags().BoolVar(&g.debug, "debug", false, "Human-readable debug logging")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level (overrides config)")

	root.AddCommand(newServeCmd(g), newSendCmd(g), newWatchCmd(g), newScheduleCmd(g))
	return root
}

// loadConfig reads the config file and applies the global logging flags.
func (g *globalOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return cfg, err
	}
	if g.logLevel != "" {
		cfg.Logging.Level = g.logLevel
	}
	return cfg, nil
}

func (g *globalOptions) newLogger(cfg config.Config) (*zap.SugaredLogger, func(), error) {
	return logging.New(logging.Config{
		Level:     cfg.Logging.Level,
		Debug:     g.debug,
		File:      cfg.Logging.File,
		MaxSizeMB: cfg.Logging.MaxSizeMB,
		MaxFiles:  cfg.Logging.MaxFiles,
	})
}

// hardware is the serial link plus the optional GPIO lines.
type hardware struct {
	port serial.Port
	pin  gpio.Output // nil when gpio.chip is empty
	led  gpio.Output // nil unless requested and gpio.led_pin > 0
}

func openHardware(cfg config.Config, withLED bool) (*hardware, error) {
	sc := serial.DefaultConfig(cfg.Serial.Device)
	sc.Baud = cfg.Serial.Baud
	port, err := serial.Open(sc)
	if err != nil {
		return nil, err
	}
	hw := &hardware{port: port}

	if cfg.GPIO.Chip == "" {
		return hw, nil
	}
	pin, err := gpio.NewRealOutput(cfg.GPIO.Chip, cfg.GPIO.ActivationPin)
	if err != nil {
		hw.Close()
		return nil, fmt.Errorf("init activation pin: %w", err)
	}
	hw.pin = pin

	if withLED && cfg.GPIO.LEDPin > 0 {
		led, err := gpio.NewRealOutput(cfg.GPIO.Chip, cfg.GPIO.LEDPin)
		if err != nil {
			hw.Close()
			return nil, fmt.Errorf("init led pin: %w", err)
		}
		hw.led = led
	}
	return hw, nil
}

// Close releases the lines and the port, returning the first error.
func (h *hardware) Close() error {
	var first error
	for _, out := range []gpio.Output{h.led, h.pin} {
		if out == nil {
			continue
		}
		if err := out.Close(); err != nil && first == nil {
			first = err
		}
	}
	if h.port != nil {
		if err := h.port.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
