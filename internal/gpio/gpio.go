// Package gpio drives GPIO output lines with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Output drives a single GPIO output line.
type Output interface {
	// Set drives the line high (true) or low (false).
	Set(high bool) error

	// Close releases the line.
	Close() error
}

// Pin definitions (BCM numbering)
const (
	DefaultChip          = "gpiochip0"
	DefaultActivationPin = 17 // controller pin 20, held high to wake the desk link
	DefaultLEDPin        = 0  // status LED; 0 disables blinking
)
