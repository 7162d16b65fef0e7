package schedule

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/desk-scheduler/internal/clock"
	"github.com/sweeney/desk-scheduler/internal/desk"
	"github.com/sweeney/desk-scheduler/internal/metrics"
)

// StandCommand and SitCommand are the presets the engine drives the desk with.
const (
	StandCommand = desk.CommandPreset3
	SitCommand   = desk.CommandPreset4
)

var stateLabels = func() []string {
	labels := make([]string, len(States))
	for i, s := range States {
		labels[i] = s.String()
	}
	return labels
}()

// DetermineState returns the target state at now for cfg.
func DetermineState(now clock.TimeOfDay, cfg DayConfig, tolerance time.Duration) State {
	if !cfg.Enabled || cfg.Interval == 0 {
		return StateInactive
	}

	sinceStart := clock.Diff(now, cfg.Start)
	if sinceStart < 0 || clock.Diff(now, cfg.End) > 0 {
		return StateInactive
	}

	tol := uint32(tolerance / time.Second)
	rel := uint32(sinceStart) % cfg.Interval
	switch {
	case rel < tol:
		return StateSitToStand
	case rel < cfg.Duration:
		return StateStanding
	case rel < cfg.Duration+tol:
		return StateStandToSit
	default:
		return StateSitting
	}
}

// ResolveCommand returns the command that moves a desk in posture p toward
// target, or CommandInvalid when nothing should be sent. Commands are only
// issued at the transition edges; a desk that is already moving or was moved
// by hand mid-period is left alone.
func ResolveCommand(p desk.Posture, target State) desk.Command {
	switch {
	case p == desk.PostureSitting && target == StateSitToStand:
		return StandCommand
	case p == desk.PostureStanding && target == StateStandToSit:
		return SitCommand
	default:
		return desk.CommandInvalid
	}
}

// Engine evaluates the weekly schedule. It is not safe for concurrent use.
type Engine struct {
	clock    clock.Provider
	state    DeskStateProvider
	commands CommandReceiver
	opts     Options
	logger   *zap.SugaredLogger

	days [7]DayConfig

	lastCommand desk.Command
	lastSentAt  time.Time

	gate *clock.Gate
}

// New creates an Engine with every day disabled. Any collaborator may be nil;
// ticks that need a missing one are logged and skipped.
func New(tp clock.Provider, sp DeskStateProvider, cr CommandReceiver, opts Options, logger *zap.SugaredLogger) *Engine {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	opts = opts.withDefaults()
	return &Engine{
		clock:    tp,
		state:    sp,
		commands: cr,
		opts:     opts,
		logger:   logger,
		gate:     clock.NewGate(opts.TickInterval),
	}
}

// Options returns the effective tuning.
func (e *Engine) Options() Options { return e.opts }

// SetDayConfig replaces the schedule for one weekday.
func (e *Engine) SetDayConfig(day time.Weekday, cfg DayConfig) error {
	if day < time.Sunday || day > time.Saturday {
		return fmt.Errorf("%w: %d", ErrInvalidWeekday, int(day))
	}
	e.logger.Infow("setting day config", "day", day,
		"start", cfg.Start, "end", cfg.End,
		"interval_s", cfg.Interval, "duration_s", cfg.Duration, "enabled", cfg.Enabled)
	e.days[day] = cfg
	return nil
}

// SetDayConfigs replaces the whole week, indexed by time.Weekday.
func (e *Engine) SetDayConfigs(days [7]DayConfig) {
	e.logger.Infow("setting all day configs")
	e.days = days
}

// DayConfig returns the schedule for day. Out-of-range days return a disabled config.
func (e *Engine) DayConfig(day time.Weekday) DayConfig {
	if day < time.Sunday || day > time.Saturday {
		return DayConfig{}
	}
	return e.days[day]
}

// DayConfigs returns a copy of the week.
func (e *Engine) DayConfigs() [7]DayConfig { return e.days }

// LastCommand returns the last dispatched command and when it was sent.
func (e *Engine) LastCommand() (desk.Command, time.Time) {
	return e.lastCommand, e.lastSentAt
}

// Target returns the target state at dt without side effects.
func (e *Engine) Target(dt clock.DateTime) State {
	return DetermineState(dt.Time, e.DayConfig(dt.Date.Weekday), e.opts.TransitionTolerance)
}

// Poll runs Tick at most once per TickInterval of mono. It returns nil when
// the gate is closed or the tick was skipped.
func (e *Engine) Poll(mono time.Time) *Decision {
	if !e.gate.Due(mono) {
		return nil
	}
	return e.Tick()
}

// Tick evaluates the schedule at the time provider's current time. It returns
// nil when there is no time provider.
func (e *Engine) Tick() *Decision {
	if e.clock == nil {
		e.logger.Errorw("no time provider set, skipping tick")
		return nil
	}
	d := e.TickAt(e.clock.Now())
	return &d
}

// TickAt evaluates the schedule at now and dispatches the resulting command,
// if any.
func (e *Engine) TickAt(now clock.DateTime) Decision {
	day := now.Date.Weekday
	cfg := e.DayConfig(day)
	e.logger.Debugw("tick", "now", now, "day", day,
		"start", cfg.Start, "end", cfg.End, "enabled", cfg.Enabled)

	target := DetermineState(now.Time, cfg, e.opts.TransitionTolerance)
	metrics.SchedulerTicks.Inc()
	metrics.SetOneHot(metrics.TargetState, stateLabels, target.String())

	dec := Decision{At: now, Target: target, Desk: desk.PostureUnknown}
	if target == StateInactive {
		e.logger.Debugw("schedule inactive")
		return dec
	}

	if e.state == nil {
		e.logger.Errorw("no desk state provider set, skipping tick")
		dec.Err = ErrNoStateProvider
		return dec
	}
	dec.Desk = e.state.CurrentPosture()
	dec.Command = ResolveCommand(dec.Desk, target)
	e.logger.Debugw("target resolved", "target", target, "desk", dec.Desk, "command", dec.Command)
	if dec.Command == desk.CommandInvalid {
		return dec
	}

	at := now.In(time.UTC)
	if !e.allowed(dec.Command, at) {
		dec.Suppressed = true
		metrics.CommandsThrottled.WithLabelValues(dec.Command.String()).Inc()
		e.logger.Infow("command held back by cooldown",
			"command", dec.Command, "since_last", at.Sub(e.lastSentAt), "cooldown", e.opts.CommandCooldown)
		return dec
	}

	if e.commands == nil {
		e.logger.Errorw("no command receiver set", "command", dec.Command, "target", target)
		dec.Err = ErrNoCommandReceiver
		return dec
	}

	if err := e.commands.SendCommand(dec.Command); err != nil {
		e.logger.Errorw("command failed", "command", dec.Command, "error", err)
		dec.Err = err
		return dec
	}

	e.logger.Infow("command dispatched", "command", dec.Command, "target", target, "desk", dec.Desk)
	e.lastCommand = dec.Command
	e.lastSentAt = at
	dec.Dispatched = true
	return dec
}

// allowed applies the resend cooldown. A clock that stepped backwards since
// the last dispatch never blocks a command.
func (e *Engine) allowed(cmd desk.Command, at time.Time) bool {
	if cmd != e.lastCommand || e.lastSentAt.IsZero() {
		return true
	}
	elapsed := at.Sub(e.lastSentAt)
	return elapsed < 0 || elapsed >= e.opts.CommandCooldown
}
