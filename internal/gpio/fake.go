package gpio

// FakeOutput is a test double that records every level written.
type FakeOutput struct {
	// Levels contains every value passed to Set, in order.
	Levels []bool

	// Closed tracks if Close was called
	Closed bool

	// SetError, if set, will be returned by Set() and nothing is recorded.
	SetError error
}

// NewFakeOutput creates a FakeOutput.
func NewFakeOutput() *FakeOutput {
	return &FakeOutput{}
}

// Set records the level.
func (f *FakeOutput) Set(high bool) error {
	if f.SetError != nil {
		return f.SetError
	}
	f.Levels = append(f.Levels, high)
	return nil
}

// High reports the last level written (false if none).
func (f *FakeOutput) High() bool {
	if len(f.Levels) == 0 {
		return false
	}
	return f.Levels[len(f.Levels)-1]
}

// Pulses counts completed high-then-low transitions.
func (f *FakeOutput) Pulses() int {
	n := 0
	for i := 1; i < len(f.Levels); i++ {
		if f.Levels[i-1] && !f.Levels[i] {
			n++
		}
	}
	return n
}

// Close marks the output as closed.
func (f *FakeOutput) Close() error {
	f.Closed = true
	return nil
}

// Reset clears recorded levels.
func (f *FakeOutput) Reset() {
	f.Levels = nil
	f.Closed = false
	f.SetError = nil
}
