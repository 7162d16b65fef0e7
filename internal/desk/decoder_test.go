package desk

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sweeney/desk-scheduler/internal/gpio"
)

var testParams = Params{StandingMM: 1150, SittingMM: 750, ToleranceMM: 50}

// signOffFrame leaves the trailing bytes unfilled; zero bytes never reach the
// buffer because the controller's idle frame is padded with 0x00 noise.
var signOffFrame = []byte{frameStart, heightTag0, heightTag1, 0x06, 0x06, 0x00, 0x00, 0x00, frameEnd}

type harness struct {
	dec    *Decoder
	port   *bytes.Buffer
	pin    *gpio.FakeOutput
	logs   *observer.ObservedLogs
	slept  []time.Duration
	params Params
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	h := &harness{
		port:   &bytes.Buffer{},
		pin:    gpio.NewFakeOutput(),
		logs:   logs,
		params: testParams,
	}
	h.dec = NewDecoder(h.port, h.pin, h.params, zap.New(core).Sugar(),
		WithSleep(func(d time.Duration) { h.slept = append(h.slept, d) }))
	return h
}

func TestProcessValidFrame(t *testing.T) {
	h := newHarness(t)
	now := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)

	events := h.dec.Process(heightFrame(1, 1, 5, true), now)

	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.Type != EventHeight {
		t.Errorf("Type: got %s, want %s", ev.Type, EventHeight)
	}
	if ev.HeightMM != 115 {
		t.Errorf("HeightMM: got %d, want 115", ev.HeightMM)
	}
	if !ev.Timestamp.Equal(now) {
		t.Errorf("Timestamp: got %v, want %v", ev.Timestamp, now)
	}
	if got := h.dec.CurrentHeight(); got != 115 {
		t.Errorf("CurrentHeight: got %d, want 115", got)
	}
}

func TestProcessIgnoresZeroBytes(t *testing.T) {
	h := newHarness(t)

	raw := heightFrame(1, 1, 5, false)
	var noisy []byte
	for _, b := range raw {
		noisy = append(noisy, 0x00, b, 0x00)
	}

	h.dec.Process(noisy, time.Now())
	if got := h.dec.CurrentHeight(); got != 1150 {
		t.Errorf("CurrentHeight: got %d, want 1150", got)
	}
}

func TestProcessUnchangedHeightIsNoop(t *testing.T) {
	h := newHarness(t)
	frame := heightFrame(7, 5, 5, true)

	var stream []byte
	for i := 0; i < 5; i++ {
		stream = append(stream, frame...)
	}

	events := h.dec.Process(stream, time.Now())
	if len(events) != 1 {
		t.Errorf("expected 1 event for repeated height, got %d", len(events))
	}
}

func TestProcessDiscardsZeroHeight(t *testing.T) {
	h := newHarness(t)
	h.dec.Process(heightFrame(1, 2, 8, false), time.Now())

	events := h.dec.Process(heightFrame(0, 0, 0, true), time.Now())
	if len(events) != 0 {
		t.Errorf("expected no events for zero height, got %v", events)
	}
	if got := h.dec.CurrentHeight(); got != 1280 {
		t.Errorf("CurrentHeight: got %d, want 1280", got)
	}
}

func TestSignOffKeepsHeightAndClearsActive(t *testing.T) {
	h := newHarness(t)
	h.dec.Process(heightFrame(1, 1, 5, false), time.Now())
	if err := h.dec.SendCommand(CommandUp); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	if !h.dec.Active() {
		t.Fatal("expected active after command")
	}

	events := h.dec.Process(signOffFrame, time.Now())

	if len(events) != 1 || events[0].Type != EventSignOff {
		t.Fatalf("expected one SIGN_OFF event, got %v", events)
	}
	if h.dec.Active() {
		t.Error("expected inactive after sign-off")
	}
	if got := h.dec.CurrentHeight(); got != 1150 {
		t.Errorf("CurrentHeight: got %d, want 1150", got)
	}
}

func TestMalformedFrameLogsAndKeepsHeight(t *testing.T) {
	h := newHarness(t)
	h.dec.Process(heightFrame(7, 5, 5, true), time.Now())

	bad := []byte{frameStart, heightTag0, heightTag1, 0x06, 0x01, 0x6d, 0x01, 0x01, frameEnd}
	events := h.dec.Process(bad, time.Now())

	if len(events) != 1 || events[0].Type != EventMalformed {
		t.Fatalf("expected one MALFORMED event, got %v", events)
	}
	if got := h.dec.CurrentHeight(); got != 755 {
		t.Errorf("CurrentHeight: got %d, want 755", got)
	}

	entries := h.logs.FilterMessage("malformed height frame").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 malformed log entry, got %d", len(entries))
	}
	if entries[0].Level != zapcore.ErrorLevel {
		t.Errorf("level: got %v, want error", entries[0].Level)
	}
	if got := entries[0].ContextMap()["frame"]; got != "07 12 06 01 6d 01 01" {
		t.Errorf("frame field: got %v", got)
	}
}

func TestNonHeightFrameIgnored(t *testing.T) {
	h := newHarness(t)
	other := []byte{frameStart, 0x05, 0x11, 0x06, 0x06, 0x06, 0x01, 0x01, frameEnd}

	events := h.dec.Process(other, time.Now())
	if len(events) != 0 {
		t.Errorf("expected no events, got %v", events)
	}
	if h.logs.Len() != 0 {
		t.Errorf("expected no logs for ignored frame, got %d", h.logs.Len())
	}
}

func TestFrameResetsAfterParse(t *testing.T) {
	h := newHarness(t)
	// A second end byte without a new start parses an empty buffer.
	stream := append(heightFrame(1, 1, 5, false), frameEnd)

	events := h.dec.Process(stream, time.Now())
	if len(events) != 1 {
		t.Errorf("expected 1 event, got %d", len(events))
	}
}

func TestSendCommandActivatesOnce(t *testing.T) {
	h := newHarness(t)

	if err := h.dec.SendCommand(CommandPreset3); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	if err := h.dec.SendCommand(CommandPreset4); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}

	if got := h.pin.Pulses(); got != 1 {
		t.Errorf("Pulses: got %d, want 1", got)
	}
	if len(h.slept) != 1 || h.slept[0] != DefaultActivationPulse {
		t.Errorf("slept: got %v, want [%v]", h.slept, DefaultActivationPulse)
	}
	if h.pin.High() {
		t.Error("enable line left high")
	}

	want := append([]byte{0x9b, 0x06, 0x02, 0x10, 0x00, 0xac, 0xac, 0x9d},
		0x9b, 0x06, 0x02, 0x00, 0x01, 0xac, 0x60, 0x9d)
	if !bytes.Equal(h.port.Bytes(), want) {
		t.Errorf("written: got % x, want % x", h.port.Bytes(), want)
	}
}

func TestSendCommandReactivatesAfterSignOff(t *testing.T) {
	h := newHarness(t)

	h.dec.SendCommand(CommandUp)
	h.dec.Process(signOffFrame, time.Now())
	h.dec.SendCommand(CommandDown)

	if got := h.pin.Pulses(); got != 2 {
		t.Errorf("Pulses: got %d, want 2", got)
	}
	if got := h.port.Len(); got != 2*CommandFrameLen {
		t.Errorf("written: got %d bytes, want %d", got, 2*CommandFrameLen)
	}
}

func TestSendCommandUnknown(t *testing.T) {
	h := newHarness(t)

	err := h.dec.SendCommand(CommandInvalid)
	if !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("expected ErrUnknownCommand, got %v", err)
	}
	if h.port.Len() != 0 {
		t.Errorf("expected nothing written, got % x", h.port.Bytes())
	}
	if len(h.pin.Levels) != 0 {
		t.Errorf("expected no activation, got %v", h.pin.Levels)
	}
}

func TestSendCommandPinError(t *testing.T) {
	h := newHarness(t)
	pinErr := errors.New("line busy")
	h.pin.SetError = pinErr

	err := h.dec.SendCommand(CommandUp)
	if !errors.Is(err, pinErr) {
		t.Errorf("expected wrapped pin error, got %v", err)
	}
	if h.port.Len() != 0 {
		t.Errorf("expected nothing written, got % x", h.port.Bytes())
	}
	if h.dec.Active() {
		t.Error("should not be active after failed activation")
	}
}

func TestSendCommandWithoutPin(t *testing.T) {
	port := &bytes.Buffer{}
	d := NewDecoder(port, nil, testParams, nil)

	if err := d.SendCommand(CommandMode); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	if !d.Active() || port.Len() != CommandFrameLen {
		t.Errorf("active=%v written=%d", d.Active(), port.Len())
	}
}

func TestSendCommandWithoutPort(t *testing.T) {
	d := NewDecoder(nil, nil, testParams, nil)
	if err := d.SendCommand(CommandUp); err == nil {
		t.Error("expected error without a port")
	}
}

func TestUpdateSendsWakeupWhileHeightUnknown(t *testing.T) {
	h := newHarness(t)
	t0 := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)

	h.dec.Update(t0)
	h.dec.Update(t0.Add(100 * time.Millisecond))
	h.dec.Update(t0.Add(500 * time.Millisecond))

	wakeup, _ := Encode(CommandWakeup)
	want := append(append([]byte{}, wakeup[:]...), wakeup[:]...)
	if !bytes.Equal(h.port.Bytes(), want) {
		t.Errorf("written: got % x, want % x", h.port.Bytes(), want)
	}

	// Once a height is known, no more wakeups.
	h.dec.Process(heightFrame(7, 5, 5, true), t0)
	h.port.Reset()
	h.dec.Update(t0.Add(2 * time.Second))
	if h.port.Len() != 0 {
		t.Errorf("unexpected wakeup after height known: % x", h.port.Bytes())
	}
}

func TestUpdateClassifiesWithHysteresis(t *testing.T) {
	h := newHarness(t)
	now := time.Now()

	steps := []struct {
		frame       []byte
		want        Posture
		wantChanged bool
	}{
		{heightFrame(1, 1, 5, false), PostureStanding, true},
		{heightFrame(9, 0, 0, true), PostureStanding, false},
		{heightFrame(7, 5, 5, true), PostureSitting, true},
	}
	for i, s := range steps {
		h.dec.Process(s.frame, now)
		events := h.dec.Update(now)
		if got := h.dec.CurrentPosture(); got != s.want {
			t.Errorf("step %d: posture got %s, want %s", i, got, s.want)
		}
		if changed := len(events) == 1 && events[0].Type == EventPosture; changed != s.wantChanged {
			t.Errorf("step %d: posture event got %v, want %v", i, changed, s.wantChanged)
		}
	}
}

func TestSetParamsReclassifies(t *testing.T) {
	h := newHarness(t)
	now := time.Now()
	h.dec.Process(heightFrame(1, 0, 0, false), now)
	h.dec.Update(now)
	if got := h.dec.CurrentPosture(); got != PostureUnknown {
		t.Fatalf("posture: got %s, want %s", got, PostureUnknown)
	}

	h.dec.SetParams(Params{StandingMM: 1000, SittingMM: 700, ToleranceMM: 20})
	h.dec.Update(now)
	if got := h.dec.CurrentPosture(); got != PostureStanding {
		t.Errorf("posture: got %s, want %s", got, PostureStanding)
	}
	if got := h.dec.Params().StandingMM; got != 1000 {
		t.Errorf("Params: got %d, want 1000", got)
	}
}

func TestReset(t *testing.T) {
	h := newHarness(t)
	now := time.Now()
	h.dec.Process(heightFrame(1, 1, 5, false), now)
	h.dec.Update(now)
	h.dec.SendCommand(CommandUp)
	h.dec.Process([]byte{frameStart, heightTag0}, now)

	h.dec.Reset()

	if h.dec.CurrentHeight() != 0 || h.dec.CurrentPosture() != PostureUnknown || h.dec.Active() {
		t.Errorf("after reset: height=%d posture=%s active=%v",
			h.dec.CurrentHeight(), h.dec.CurrentPosture(), h.dec.Active())
	}
	if h.dec.frame.head != 0 {
		t.Errorf("partial frame survived reset: head=%d", h.dec.frame.head)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		h    uint16
		prev Posture
		want Posture
	}{
		{"zero", 0, PostureStanding, PostureUnknown},
		{"standing exact", 1150, PostureUnknown, PostureStanding},
		{"standing upper band", 1200, PostureSitting, PostureStanding},
		{"standing lower band", 1100, PostureSitting, PostureStanding},
		{"sitting exact", 750, PostureUnknown, PostureSitting},
		{"sitting band", 799, PostureStanding, PostureSitting},
		{"above standing band keeps prev", 1201, PostureSitting, PostureSitting},
		{"between keeps prev", 950, PostureStanding, PostureStanding},
		{"between with unknown prev", 950, PostureUnknown, PostureUnknown},
		{"between with no prev", 950, "", PostureUnknown},
	}
	for _, tt := range tests {
		if got := Classify(tt.h, testParams, tt.prev); got != tt.want {
			t.Errorf("%s: Classify(%d, %s): got %s, want %s", tt.name, tt.h, tt.prev, got, tt.want)
		}
	}
}

func TestEncode(t *testing.T) {
	tests := []struct {
		cmd  Command
		want [CommandFrameLen]byte
	}{
		{CommandWakeup, [8]byte{0x9b, 0x06, 0x02, 0x00, 0x00, 0x6c, 0xa1, 0x9d}},
		{CommandUp, [8]byte{0x9b, 0x06, 0x02, 0x01, 0x00, 0xfc, 0xa0, 0x9d}},
		{CommandDown, [8]byte{0x9b, 0x06, 0x02, 0x02, 0x00, 0x0c, 0xa0, 0x9d}},
		{CommandMode, [8]byte{0x9b, 0x06, 0x02, 0x20, 0x00, 0xac, 0xb8, 0x9d}},
		{CommandPreset1, [8]byte{0x9b, 0x06, 0x02, 0x04, 0x00, 0xac, 0xa3, 0x9d}},
		{CommandPreset2, [8]byte{0x9b, 0x06, 0x02, 0x08, 0x00, 0xac, 0xa6, 0x9d}},
		{CommandPreset3, [8]byte{0x9b, 0x06, 0x02, 0x10, 0x00, 0xac, 0xac, 0x9d}},
		{CommandPreset4, [8]byte{0x9b, 0x06, 0x02, 0x00, 0x01, 0xac, 0x60, 0x9d}},
	}
	for _, tt := range tests {
		got, err := Encode(tt.cmd)
		if err != nil {
			t.Errorf("Encode(%s): unexpected error %v", tt.cmd, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Encode(%s): got % x, want % x", tt.cmd, got, tt.want)
		}
	}

	for _, bad := range []Command{CommandInvalid, Command(42)} {
		if _, err := Encode(bad); !errors.Is(err, ErrUnknownCommand) {
			t.Errorf("Encode(%s): expected ErrUnknownCommand, got %v", bad, err)
		}
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		want Command
	}{
		{"WAKEUP", CommandWakeup},
		{"up", CommandUp},
		{" Down ", CommandDown},
		{"MODE", CommandMode},
		{"m", CommandMode},
		{"PRESET_1", CommandPreset1},
		{"preset-2", CommandPreset2},
		{"preset3", CommandPreset3},
		{"PRESET_4", CommandPreset4},
		{"stand", CommandPreset3},
		{"SIT", CommandPreset4},
	}
	for _, tt := range tests {
		got, err := ParseCommand(tt.in)
		if err != nil {
			t.Errorf("ParseCommand(%q): unexpected error %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCommand(%q): got %s, want %s", tt.in, got, tt.want)
		}
	}

	for _, bad := range []string{"", "INVALID", "PRESET_5", "jump"} {
		if _, err := ParseCommand(bad); !errors.Is(err, ErrUnknownCommand) {
			t.Errorf("ParseCommand(%q): expected ErrUnknownCommand, got %v", bad, err)
		}
	}
}

func TestCommandString(t *testing.T) {
	if got := CommandPreset3.String(); got != "PRESET_3" {
		t.Errorf("got %q, want PRESET_3", got)
	}
	if got := Command(99).String(); got != "Command(99)" {
		t.Errorf("got %q, want Command(99)", got)
	}
	text, _ := CommandUp.MarshalText()
	if string(text) != "UP" {
		t.Errorf("MarshalText: got %q, want UP", text)
	}
}
