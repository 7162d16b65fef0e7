package desk

import (
	"errors"
	"math/rand"
	"testing"
)

// segments[d] is the display byte for digit d.
var segments = [10]byte{0x3f, 0x06, 0x5b, 0x4f, 0x66, 0x6d, 0x7d, 0x07, 0x7f, 0x6f}

// heightFrame builds a complete height frame, sentinels included.
func heightFrame(d0, d1, d2 int, decimal bool) []byte {
	mid := segments[d1]
	if decimal {
		mid |= decimalPoint
	}
	return []byte{frameStart, heightTag0, heightTag1, segments[d0], mid, segments[d2], 0x01, 0x01, frameEnd}
}

func TestDecodeDigitTable(t *testing.T) {
	for want, seg := range segments {
		got, ok := decodeDigit(seg)
		if !ok || got != want {
			t.Errorf("decodeDigit(%#02x): got (%d, %v), want (%d, true)", seg, got, ok, want)
		}
		// Decimal point must not change the digit.
		got, ok = decodeDigit(seg | decimalPoint)
		if !ok || got != want {
			t.Errorf("decodeDigit(%#02x): got (%d, %v), want (%d, true)", seg|decimalPoint, got, ok, want)
		}
	}
}

func TestDecodeDigitRejectsUnknownPatterns(t *testing.T) {
	valid := make(map[byte]bool)
	for _, seg := range segments {
		valid[seg] = true
	}
	for b := 0; b < 256; b++ {
		if valid[byte(b)&^decimalPoint] {
			continue
		}
		if d, ok := decodeDigit(byte(b)); ok {
			t.Errorf("decodeDigit(%#02x): got digit %d, want failure", b, d)
		}
	}
}

func TestParseHeight(t *testing.T) {
	tests := []struct {
		name       string
		d0, d1, d2 int
		decimal    bool
		want       uint16
	}{
		{"below 100cm", 1, 1, 5, true, 115},
		{"at or above 100cm", 1, 1, 5, false, 1150},
		{"sitting", 7, 5, 5, true, 755},
		{"tall", 1, 2, 8, false, 1280},
		{"zero", 0, 0, 0, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := heightFrame(tt.d0, tt.d1, tt.d2, tt.decimal)
			var buf [frameSize]byte
			copy(buf[:], raw[1:8])

			got, err := parseHeight(buf)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParseHeightBadDigit(t *testing.T) {
	buf := [frameSize]byte{heightTag0, heightTag1, 0x06, 0x01, 0x6d, 0x01, 0x01}
	_, err := parseHeight(buf)
	if !errors.Is(err, errBadDigit) {
		t.Errorf("expected errBadDigit, got %v", err)
	}
}

func TestFramePushClampsAtCapacity(t *testing.T) {
	var f rxFrame
	for i := 1; i <= 20; i++ {
		f.push(byte(i))
		if f.head > frameSize-1 {
			t.Fatalf("after %d pushes: head %d exceeds %d", i, f.head, frameSize-1)
		}
	}
	want := [frameSize]byte{1, 2, 3, 4, 5, 6, 20}
	if f.buf != want {
		t.Errorf("buf: got % x, want % x", f.buf, want)
	}

	f.reset()
	if f.head != 0 || f.buf != ([frameSize]byte{}) {
		t.Errorf("reset: got head=%d buf=% x", f.head, f.buf)
	}
}

func TestFeedArbitraryBytesStaysInBounds(t *testing.T) {
	d := NewDecoder(nil, nil, Params{}, nil)
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 100_000; i++ {
		d.Feed(byte(rng.Intn(256)))
		if d.frame.head < 0 || d.frame.head > frameSize-1 {
			t.Fatalf("byte %d: cursor %d out of range", i, d.frame.head)
		}
	}
}

func TestSignOffDetection(t *testing.T) {
	tests := []struct {
		name string
		buf  [frameSize]byte
		want bool
	}{
		{"all set", [frameSize]byte{0x07, 0x12, 0x06, 0x06, 0x6d, 0x01, 0x01}, false},
		{"byte 4 zero", [frameSize]byte{0x07, 0x12, 0x06, 0x06, 0x00, 0x01, 0x01}, true},
		{"byte 5 zero", [frameSize]byte{0x07, 0x12, 0x06, 0x06, 0x6d, 0x00, 0x01}, true},
		{"byte 6 zero", [frameSize]byte{0x07, 0x12, 0x06, 0x06, 0x6d, 0x01, 0x00}, true},
		{"all zero", [frameSize]byte{0x07, 0x12}, true},
	}
	for _, tt := range tests {
		if got := isSignOff(tt.buf); got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}
}
