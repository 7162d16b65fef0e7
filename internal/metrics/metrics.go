// Package metrics provides Prometheus metrics for the desk scheduler:
// decoded telemetry, sent commands and scheduler decisions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "desk"

// Frame kinds used as the "kind" label of FramesReceived.
const (
	FrameHeight    = "height"
	FrameSignOff   = "sign_off"
	FrameMalformed = "malformed"
	FrameIgnored   = "ignored"
)

// ─── Telemetry ──────────────────────────────────────────────────────────────

// HeightMillimeters is the last decoded desk height (0 until the first reading).
var HeightMillimeters = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "height_millimeters",
	Help:      "Last decoded desk height in millimetres.",
})

// FramesReceived counts completed controller frames by kind.
var FramesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "frames_received_total",
	Help:      "Completed frames received from the desk controller.",
}, []string{"kind"})

// Posture is 1 for the current desk posture and 0 for the others.
var Posture = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "posture",
	Help:      "Current classified desk posture (1 = active).",
}, []string{"posture"})

// ─── Commands ───────────────────────────────────────────────────────────────

// CommandsSent counts command frames written to the controller.
var CommandsSent = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "commands_sent_total",
	Help:      "Command frames written to the desk controller.",
}, []string{"command"})

// CommandErrors counts commands that could not be sent.
var CommandErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "command_errors_total",
	Help:      "Commands that failed to encode, activate or write.",
}, []string{"command"})

// Activations counts activation pulses on the enable pin.
var Activations = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "activations_total",
	Help:      "Activation pulses sent to the desk controller.",
})

// ─── Scheduler ──────────────────────────────────────────────────────────────

// SchedulerTicks counts evaluated scheduler ticks.
var SchedulerTicks = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "scheduler_ticks_total",
	Help:      "Scheduler ticks that evaluated a target state.",
})

// CommandsThrottled counts scheduler commands suppressed by the resend cooldown.
var CommandsThrottled = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "scheduler_commands_throttled_total",
	Help:      "Scheduler commands suppressed by the resend cooldown.",
}, []string{"command"})

// TargetState is 1 for the scheduler's current target state and 0 for the others.
var TargetState = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "scheduler_target_state",
	Help:      "Current scheduler target state (1 = active).",
}, []string{"state"})

// SetOneHot sets label current to 1 and every other label in all to 0.
func SetOneHot(g *prometheus.GaugeVec, all []string, current string) {
	for _, label := range all {
		v := 0.0
		if label == current {
			v = 1
		}
		g.WithLabelValues(label).Set(v)
	}
}
