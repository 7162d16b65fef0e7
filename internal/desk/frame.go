package desk

import (
	"errors"
	"fmt"
)

const (
	frameStart byte = 0x9b
	frameEnd   byte = 0x9d
	frameNoise byte = 0x00

	// frameSize covers the height frame; longer frames keep overwriting the last slot.
	frameSize = 7

	heightTag0 byte = 0x07
	heightTag1 byte = 0x12

	decimalPoint byte = 1 << 7
)

// errBadDigit marks a display byte that is not a known 7-segment digit.
var errBadDigit = errors.New("unrecognised 7-segment pattern")

// segmentDigits maps the lit segments (bit 7 masked) to the digit shown.
var segmentDigits = map[byte]int{
	0b0111111: 0,
	0b0000110: 1,
	0b1011011: 2,
	0b1001111: 3,
	0b1100110: 4,
	0b1101101: 5,
	0b1111101: 6,
	0b0000111: 7,
	0b1111111: 8,
	0b1101111: 9,
}

// rxFrame is the bounded receive buffer between a start and an end byte.
type rxFrame struct {
	buf  [frameSize]byte
	head int
}

func (f *rxFrame) reset() {
	f.buf = [frameSize]byte{}
	f.head = 0
}

// push appends b, overwriting the last slot once the buffer is full.
func (f *rxFrame) push(b byte) {
	f.buf[f.head] = b
	if f.head < frameSize-1 {
		f.head++
	}
}

func isHeightFrame(buf [frameSize]byte) bool {
	return buf[0] == heightTag0 && buf[1] == heightTag1
}

// isSignOff reports whether a height frame carries no reading. The controller
// sends it when the handset display goes dark.
func isSignOff(buf [frameSize]byte) bool {
	return buf[4] == 0 || buf[5] == 0 || buf[6] == 0
}

// decodeDigit returns the digit displayed by a segment byte.
func decodeDigit(b byte) (int, bool) {
	d, ok := segmentDigits[b&^decimalPoint]
	return d, ok
}

// parseHeight decodes a height frame into millimetres.
func parseHeight(buf [frameSize]byte) (uint16, error) {
	var digits [3]int
	for i := range digits {
		d, ok := decodeDigit(buf[2+i])
		if !ok {
			return 0, fmt.Errorf("%w: byte %d is %#02x", errBadDigit, 2+i, buf[2+i])
		}
		digits[i] = d
	}

	// A decimal point after the middle digit means the display reads below
	// 100 cm with one decimal, e.g. "75.5".
	if buf[3]&decimalPoint != 0 {
		return uint16(digits[2] + digits[1]*10 + digits[0]*100), nil
	}
	return uint16(digits[2]*10 + digits[1]*100 + digits[0]*1000), nil
}
