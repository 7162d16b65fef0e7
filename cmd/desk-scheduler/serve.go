package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sweeney/desk-scheduler/internal/clock"
	"github.com/sweeney/desk-scheduler/internal/config"
	"github.com/sweeney/desk-scheduler/internal/desk"
	"github.com/sweeney/desk-scheduler/internal/mqtt"
	"github.com/sweeney/desk-scheduler/internal/schedule"
	"github.com/sweeney/desk-scheduler/internal/serial"
	"github.com/sweeney/desk-scheduler/internal/status"
	"github.com/sweeney/desk-scheduler/internal/web"
)

// loopTick is how often the loop reclassifies posture and polls the schedule.
const loopTick = 100 * time.Millisecond

type serveOptions struct {
	device        string
	baud          int
	broker        string
	httpAddr      string
	heartbeat     time.Duration
	activationPin int
	ledPin        int
	preset        string
	noMQTT        bool
}

func newServeCmd(g *globalOptions) *cobra.Command {
	o := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if err := o.apply(cmd, &cfg); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger, sync, err := g.newLogger(cfg)
			if err != nil {
				return err
			}
			defer sync()
			return serve(cfg, logger)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.device, "device", "", "Serial device of the desk link (overrides config)")
	f.IntVar(&o.baud, "baud", 0, "Serial baud rate (overrides config)")
	f.StringVar(&o.broker, "broker", "", "MQTT broker address (overrides config)")
	f.StringVar(&o.httpAddr, "http", "", `HTTP status address (overrides config, "off" disables)`)
	f.DurationVar(&o.heartbeat, "heartbeat", 0, "Heartbeat interval, 0 disables (overrides config)")
	f.IntVar(&o.activationPin, "activation-pin", 0, "GPIO line of the controller enable pin (overrides config)")
	f.IntVar(&o.ledPin, "led-pin", 0, "GPIO line of the status LED, 0 disables (overrides config)")
	f.StringVar(&o.preset, "preset", "", `Schedule preset: "default" or "test"`)
	f.BoolVar(&o.noMQTT, "no-mqtt", false, "Do not connect to MQTT")
	return cmd
}

// apply copies the flags the user actually set over cfg.
func (o *serveOptions) apply(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if f.Changed("device") {
		cfg.Serial.Device = o.device
	}
	if f.Changed("baud") {
		cfg.Serial.Baud = o.baud
	}
	if f.Changed("broker") {
		cfg.MQTT.Broker = o.broker
	}
	if f.Changed("http") {
		cfg.HTTP.Addr = o.httpAddr
		if o.httpAddr == "off" {
			cfg.HTTP.Addr = ""
		}
	}
	if f.Changed("heartbeat") {
		cfg.MQTT.Heartbeat = config.Duration{Duration: o.heartbeat}
	}
	if f.Changed("activation-pin") {
		cfg.GPIO.ActivationPin = o.activationPin
	}
	if f.Changed("led-pin") {
		cfg.GPIO.LEDPin = o.ledPin
	}
	if f.Changed("no-mqtt") {
		cfg.MQTT.Disabled = o.noMQTT
	}
	if f.Changed("preset") {
		return cfg.ApplyPreset(o.preset)
	}
	return nil
}

func serve(cfg config.Config, logger *zap.SugaredLogger) error {
	days, err := cfg.Days()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	hw, err := openHardware(cfg, true)
	if err != nil {
		return err
	}
	defer hw.Close()
	if err := hw.port.Flush(); err != nil {
		logger.Warnw("flush serial input", "error", err)
	}

	bootID := uuid.NewString()
	tracker := status.NewTracker(time.Now(), bootID, status.Config{
		HeartbeatMs:   cfg.MQTT.Heartbeat.Milliseconds(),
		Broker:        cfg.MQTT.Broker,
		HTTPAddr:      cfg.HTTP.Addr,
		SerialDevice:  cfg.Serial.Device,
		Baud:          cfg.Serial.Baud,
		ActivationPin: cfg.GPIO.ActivationPin,
		Timezone:      loc.String(),
		Preset:        cfg.Schedule.Preset,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	remote := make(chan string, 8)
	var publisher mqtt.Publisher
	if !cfg.MQTT.Disabled {
		p, err := mqtt.NewRealPublisher(mqtt.Config{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			BootID:   bootID,
			OnCommand: func(name string) {
				select {
				case remote <- name:
				default:
					logger.Warnw("dropping remote command, loop busy", "command", name)
				}
			},
		}, logger.Named("mqtt"))
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer p.Close()
		publisher = p
	}

	dec := desk.NewDecoder(hw.port, hw.pin, cfg.Desk, logger.Named("desk"))
	d := newDaemon(dec, clock.NewSystemClock(loc), publisher, tracker, hw.led, daemonOptions{
		Schedule:  schedule.DefaultOptions(),
		Days:      days,
		Heartbeat: cfg.MQTT.Heartbeat.Duration,
	}, logger, time.Now)

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, d, logger.Named("http"))
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorw("http server error", "error", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		}()
		logger.Infow("http status server listening", "addr", cfg.HTTP.Addr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	chunks := make(chan []byte, 16)
	serialErr := make(chan error, 1)
	go func() {
		serialErr <- serial.Pump(ctx, hw.port, chunks)
	}()

	logger.Infow("started",
		"device", cfg.Serial.Device, "baud", cfg.Serial.Baud,
		"broker", cfg.MQTT.Broker, "mqtt", !cfg.MQTT.Disabled,
		"heartbeat", cfg.MQTT.Heartbeat.Duration, "timezone", loc.String(),
		"boot_id", bootID)

	ticker := time.NewTicker(loopTick)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	return d.run(chunks, serialErr, remote, ticker.C, sigCh)
}
