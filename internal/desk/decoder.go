package desk

import (
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/desk-scheduler/internal/clock"
	"github.com/sweeney/desk-scheduler/internal/metrics"
)

const (
	// DefaultActivationPulse is how long the enable line is held high. The
	// controller ignores pulses much shorter than a second.
	DefaultActivationPulse = 1100 * time.Millisecond

	// DefaultWakeupInterval is how often WAKEUP is sent while the height is unknown.
	DefaultWakeupInterval = 500 * time.Millisecond
)

var errNoPort = errors.New("desk: no serial port")

// Decoder turns the controller's byte stream into height readings and writes
// command frames back. It is not safe for concurrent use.
type Decoder struct {
	port   io.Writer
	pin    Pin
	params Params
	logger *zap.SugaredLogger

	frame   rxFrame
	height  uint16
	posture Posture
	active  bool

	pulse  time.Duration
	sleep  func(time.Duration)
	wakeup *clock.Gate
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithActivationPulse overrides DefaultActivationPulse.
func WithActivationPulse(d time.Duration) Option {
	return func(dec *Decoder) { dec.pulse = d }
}

// WithWakeupInterval overrides DefaultWakeupInterval.
func WithWakeupInterval(d time.Duration) Option {
	return func(dec *Decoder) { dec.wakeup = clock.NewGate(d) }
}

// WithSleep replaces time.Sleep for the activation pulse. Used by tests.
func WithSleep(sleep func(time.Duration)) Option {
	return func(dec *Decoder) { dec.sleep = sleep }
}

// NewDecoder creates a Decoder writing commands to port and pulsing pin before
// the first command of each active window. pin may be nil when the enable line
// is wired permanently.
func NewDecoder(port io.Writer, pin Pin, params Params, logger *zap.SugaredLogger, opts ...Option) *Decoder {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	d := &Decoder{
		port:    port,
		pin:     pin,
		params:  params,
		logger:  logger,
		posture: PostureUnknown,
		pulse:   DefaultActivationPulse,
		sleep:   time.Sleep,
		wakeup:  clock.NewGate(DefaultWakeupInterval),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Feed processes one received byte. It returns an event when the byte
// completed a frame that changed something.
func (d *Decoder) Feed(b byte) (Event, bool) {
	switch b {
	case frameNoise:
		return Event{}, false
	case frameStart:
		d.frame.reset()
		return Event{}, false
	case frameEnd:
		ev, ok := d.interpret(d.frame.buf)
		d.frame.reset()
		return ev, ok
	default:
		d.frame.push(b)
		return Event{}, false
	}
}

// Process feeds every byte of p and returns the resulting events stamped with now.
func (d *Decoder) Process(p []byte, now time.Time) []Event {
	var events []Event
	for _, b := range p {
		if ev, ok := d.Feed(b); ok {
			ev.Timestamp = now
			events = append(events, ev)
		}
	}
	return events
}

func (d *Decoder) interpret(buf [frameSize]byte) (Event, bool) {
	if !isHeightFrame(buf) {
		metrics.FramesReceived.WithLabelValues(metrics.FrameIgnored).Inc()
		return Event{}, false
	}

	if isSignOff(buf) {
		metrics.FramesReceived.WithLabelValues(metrics.FrameSignOff).Inc()
		d.active = false
		d.logger.Infow("received sign-off, display is idle")
		return Event{Type: EventSignOff, HeightMM: d.height, Posture: d.posture}, true
	}

	h, err := parseHeight(buf)
	if err != nil {
		metrics.FramesReceived.WithLabelValues(metrics.FrameMalformed).Inc()
		d.logger.Errorw("malformed height frame", "frame", fmt.Sprintf("% x", buf[:]), "error", err)
		return Event{Type: EventMalformed, HeightMM: d.height, Posture: d.posture}, true
	}

	metrics.FramesReceived.WithLabelValues(metrics.FrameHeight).Inc()
	if h == 0 || h == d.height {
		return Event{}, false
	}

	d.height = h
	metrics.HeightMillimeters.Set(float64(h))
	d.logger.Infow("height changed", "height_mm", h)
	return Event{Type: EventHeight, HeightMM: h, Posture: d.posture}, true
}

// Update reclassifies the posture from the current height. While no height has
// been seen it sends WAKEUP once per wakeup interval so the controller starts
// reporting.
func (d *Decoder) Update(now time.Time) []Event {
	if d.height == 0 {
		if d.wakeup.Due(now) {
			if err := d.SendCommand(CommandWakeup); err != nil {
				d.logger.Warnw("wakeup failed", "error", err)
			}
		}
		return nil
	}

	next := Classify(d.height, d.params, d.posture)
	if next == d.posture {
		return nil
	}
	d.logger.Infow("posture changed", "from", d.posture, "to", next, "height_mm", d.height)
	d.posture = next
	metrics.SetOneHot(metrics.Posture, postureLabels, string(next))
	return []Event{{Timestamp: now, Type: EventPosture, HeightMM: d.height, Posture: next}}
}

var postureLabels = []string{string(PostureUnknown), string(PostureSitting), string(PostureStanding)}

// SendCommand activates the controller if needed and writes the command frame
// in a single write.
func (d *Decoder) SendCommand(cmd Command) error {
	frame, err := Encode(cmd)
	if err != nil {
		d.logger.Errorw("cannot send command", "command", cmd, "error", err)
		metrics.CommandErrors.WithLabelValues(cmd.String()).Inc()
		return err
	}
	if d.port == nil {
		return errNoPort
	}

	if err := d.requestActivation(); err != nil {
		metrics.CommandErrors.WithLabelValues(cmd.String()).Inc()
		return fmt.Errorf("activate controller: %w", err)
	}

	if cmd == CommandWakeup {
		d.logger.Debugw("sending command", "command", cmd)
	} else {
		d.logger.Infow("sending command", "command", cmd, "frame", fmt.Sprintf("% x", frame[:]))
	}
	if _, err := d.port.Write(frame[:]); err != nil {
		metrics.CommandErrors.WithLabelValues(cmd.String()).Inc()
		return fmt.Errorf("write %s: %w", cmd, err)
	}
	metrics.CommandsSent.WithLabelValues(cmd.String()).Inc()
	return nil
}

func (d *Decoder) requestActivation() error {
	if d.active {
		return nil
	}
	if d.pin != nil {
		d.logger.Infow("activating controller", "pulse", d.pulse)
		if err := d.pin.Set(true); err != nil {
			return fmt.Errorf("set enable high: %w", err)
		}
		d.sleep(d.pulse)
		if err := d.pin.Set(false); err != nil {
			return fmt.Errorf("set enable low: %w", err)
		}
		metrics.Activations.Inc()
	}
	d.active = true
	return nil
}

// CurrentHeight returns the last decoded height in millimetres, 0 if none yet.
func (d *Decoder) CurrentHeight() uint16 { return d.height }

// CurrentPosture returns the last classified posture.
func (d *Decoder) CurrentPosture() Posture { return d.posture }

// Active reports whether the controller is inside an activation window.
func (d *Decoder) Active() bool { return d.active }

// Params returns the classification parameters.
func (d *Decoder) Params() Params { return d.params }

// SetParams replaces the classification parameters. The posture is
// reclassified on the next Update.
func (d *Decoder) SetParams(p Params) {
	d.logger.Infow("params changed", "standing_mm", p.StandingMM, "sitting_mm", p.SittingMM, "tolerance_mm", p.ToleranceMM)
	d.params = p
}

// Reset forgets the height, posture, activation window and any partial frame.
func (d *Decoder) Reset() {
	d.frame.reset()
	d.height = 0
	d.posture = PostureUnknown
	d.active = false
	d.wakeup.Reset()
}
