// Package serial carries bytes between the daemon and the desk controller's
// UART. Open wraps github.com/tarm/serial; FakePort stands in for tests.
package serial

import (
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

// DefaultBaud is the controller's fixed line rate (8N1).
const DefaultBaud = 9600

// Port is an open serial line.
type Port interface {
	io.ReadWriteCloser

	// Flush discards unread input and unsent output.
	Flush() error
}

// Config holds serial port configuration.
type Config struct {
	// Device path, e.g. "/dev/serial0" or "/dev/ttyUSB0".
	Device string

	Baud int

	// ReadTimeout bounds each Read so the pump can notice cancellation.
	// Zero blocks until data arrives.
	ReadTimeout time.Duration
}

// DefaultConfig returns the controller's line settings for device.
func DefaultConfig(device string) Config {
	return Config{
		Device:      device,
		Baud:        DefaultBaud,
		ReadTimeout: 100 * time.Millisecond,
	}
}

type nativePort struct {
	port   *serial.Port
	device string
}

// Open opens cfg.Device as 8N1 at cfg.Baud.
func Open(cfg Config) (Port, error) {
	if cfg.Device == "" {
		return nil, fmt.Errorf("serial: no device configured")
	}
	if cfg.Baud <= 0 {
		cfg.Baud = DefaultBaud
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Device, err)
	}
	return &nativePort{port: port, device: cfg.Device}, nil
}

func (p *nativePort) Read(b []byte) (int, error)  { return p.port.Read(b) }
func (p *nativePort) Write(b []byte) (int, error) { return p.port.Write(b) }
func (p *nativePort) Flush() error                { return p.port.Flush() }

func (p *nativePort) Close() error {
	if err := p.port.Close(); err != nil {
		return fmt.Errorf("close serial port %s: %w", p.device, err)
	}
	return nil
}
