package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/desk-scheduler/internal/clock"
	"github.com/sweeney/desk-scheduler/internal/desk"
	"github.com/sweeney/desk-scheduler/internal/gpio"
	"github.com/sweeney/desk-scheduler/internal/mqtt"
	"github.com/sweeney/desk-scheduler/internal/schedule"
	"github.com/sweeney/desk-scheduler/internal/status"
)

// Sources recorded with each command. HTTP commands use web.SourceHTTP.
const (
	sourceSchedule = "schedule"
	sourceMQTT     = "mqtt"
)

// DefaultLEDInterval matches the firmware's status blink.
const DefaultLEDInterval = 500 * time.Millisecond

var errLoopStopped = errors.New("run loop stopped")

// request is a closure executed on the loop goroutine.
type request struct {
	fn   func() error
	done chan error
}

// daemonOptions tunes the loop.
type daemonOptions struct {
	Schedule    schedule.Options
	Days        [7]schedule.DayConfig
	Heartbeat   time.Duration // 0 disables heartbeats
	LEDInterval time.Duration
}

// daemon owns the decoder and the schedule engine. Everything that touches
// them runs on the goroutine executing run.
type daemon struct {
	decoder    *desk.Decoder
	engine     *schedule.Engine
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	led        gpio.Output
	logger     *zap.SugaredLogger
	now        func() time.Time

	heartbeat *clock.Gate
	blink     *clock.Gate
	ledOn     bool

	target schedule.State
	counts status.Counts
	last   *status.LastCommand

	requests chan request
	stopped  chan struct{}
}

// scheduledCommands routes engine dispatches through the daemon so they are
// counted and published like any other command.
type scheduledCommands struct{ d *daemon }

func (s scheduledCommands) SendCommand(cmd desk.Command) error {
	return s.d.sendCommand(cmd, sourceSchedule)
}

func newDaemon(dec *desk.Decoder, clk clock.Provider, publisher mqtt.Publisher, tracker *status.Tracker,
	led gpio.Output, opts daemonOptions, logger *zap.SugaredLogger, now func() time.Time) *daemon {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	d := &daemon{
		decoder:   dec,
		publisher: publisher,
		tracker:   tracker,
		led:       led,
		logger:    logger,
		now:       now,
		requests:  make(chan request),
		stopped:   make(chan struct{}),
	}
	if cs, ok := publisher.(mqtt.ConnectionStatus); ok {
		d.mqttStatus = cs
	}

	d.engine = schedule.New(clk, dec, scheduledCommands{d}, opts.Schedule, logger.Named("scheduler"))
	d.engine.SetDayConfigs(opts.Days)

	start := now()
	if opts.Heartbeat > 0 {
		d.heartbeat = clock.NewGate(opts.Heartbeat)
		d.heartbeat.Due(start) // first heartbeat one interval after STARTUP
	}
	if led != nil {
		interval := opts.LEDInterval
		if interval <= 0 {
			interval = DefaultLEDInterval
		}
		d.blink = clock.NewGate(interval)
	}
	return d
}

// run processes serial input, control requests and ticks until a signal
// arrives or the serial pump fails.
func (d *daemon) run(chunks <-chan []byte, serialErr <-chan error, remote <-chan string, tick <-chan time.Time, sig <-chan os.Signal) error {
	defer close(d.stopped)

	d.sync()
	d.publishSystem("STARTUP", "")

	for {
		select {
		case s := <-sig:
			d.logger.Infow("received signal, shutting down", "signal", s)
			d.setLED(false)
			d.sync()
			d.publishSystem("SHUTDOWN", signalName(s))
			return nil

		case err := <-serialErr:
			d.publishSystem("SHUTDOWN", "SERIAL_ERROR")
			if err == nil {
				return nil
			}
			return fmt.Errorf("serial: %w", err)

		case chunk := <-chunks:
			d.emit(d.decoder.Process(chunk, d.now()))
			d.sync()

		case name := <-remote:
			cmd, err := desk.ParseCommand(name)
			if err != nil {
				d.logger.Warnw("ignoring remote command", "payload", name, "error", err)
				continue
			}
			if err := d.sendCommand(cmd, sourceMQTT); err != nil {
				d.logger.Errorw("remote command failed", "command", cmd, "error", err)
			}
			d.sync()

		case req := <-d.requests:
			err := req.fn()
			d.sync()
			req.done <- err

		case <-tick:
			t := d.now()
			d.emit(d.decoder.Update(t))
			if dec := d.engine.Poll(t); dec != nil {
				d.target = dec.Target
				if dec.Suppressed {
					d.counts.Throttled++
				}
			}
			if d.blink != nil && d.blink.Due(t) {
				d.setLED(!d.ledOn)
			}
			d.sync()
			if d.heartbeat != nil && d.heartbeat.Due(t) {
				if net := readNetworkInfo(); net != nil {
					d.tracker.SetNetwork(net)
				}
				d.publishSystem("HEARTBEAT", "")
			}
		}
	}
}

func (d *daemon) emit(events []desk.Event) {
	for _, ev := range events {
		switch ev.Type {
		case desk.EventHeight:
			d.counts.Heights++
		case desk.EventSignOff:
			d.counts.SignOffs++
		case desk.EventMalformed:
			d.counts.Malformed++
		}
		d.publish(ev)
	}
}

// sendCommand writes cmd to the desk and records it. Loop goroutine only.
func (d *daemon) sendCommand(cmd desk.Command, source string) error {
	if err := d.decoder.SendCommand(cmd); err != nil {
		d.counts.CommandErrors++
		return err
	}
	t := d.now()
	d.counts.Commands++
	d.last = &status.LastCommand{Command: cmd, Source: source, Timestamp: t}
	d.publish(desk.Event{
		Timestamp: t,
		Type:      desk.EventCommand,
		HeightMM:  d.decoder.CurrentHeight(),
		Posture:   d.decoder.CurrentPosture(),
		Command:   cmd,
		Source:    source,
	})
	return nil
}

func (d *daemon) publish(ev desk.Event) {
	if d.publisher == nil {
		return
	}
	if err := d.publisher.Publish(ev); err != nil {
		d.logger.Warnw("publish error", "event", ev.Type, "error", err)
	}
}

func (d *daemon) publishSystem(event, reason string) {
	if d.publisher == nil {
		return
	}
	snap := d.tracker.Snapshot()
	err := d.publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   event != "HEARTBEAT",
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	})
	if err != nil {
		d.logger.Warnw("failed to publish system event", "event", event, "error", err)
		return
	}
	d.logger.Infow("published system event", "event", event, "reason", reason)
}

func (d *daemon) setLED(on bool) {
	if d.led == nil {
		return
	}
	if err := d.led.Set(on); err != nil {
		d.logger.Warnw("led write failed", "error", err)
		return
	}
	d.ledOn = on
}

// sync copies loop state into the tracker.
func (d *daemon) sync() {
	d.tracker.Update(status.DeskState{
		HeightMM: d.decoder.CurrentHeight(),
		Posture:  d.decoder.CurrentPosture(),
		Active:   d.decoder.Active(),
		Params:   d.decoder.Params(),
		Target:   d.target,
		Days:     d.engine.DayConfigs(),
		Counts:   d.counts,
		Last:     d.last,
	})
	if d.mqttStatus != nil {
		d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
	}
}

// do runs fn on the loop goroutine and waits for its result.
func (d *daemon) do(ctx context.Context, fn func() error) error {
	req := request{fn: fn, done: make(chan error, 1)}
	select {
	case d.requests <- req:
	case <-d.stopped:
		return errLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendCommand implements web.Controller.
func (d *daemon) SendCommand(ctx context.Context, cmd desk.Command, source string) error {
	return d.do(ctx, func() error {
		return d.sendCommand(cmd, source)
	})
}

// SetDayConfig implements web.Controller.
func (d *daemon) SetDayConfig(ctx context.Context, day time.Weekday, cfg schedule.DayConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return d.do(ctx, func() error {
		return d.engine.SetDayConfig(day, cfg)
	})
}

// SetParams implements web.Controller.
func (d *daemon) SetParams(ctx context.Context, p desk.Params) error {
	return d.do(ctx, func() error {
		d.decoder.SetParams(p)
		return nil
	})
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}
