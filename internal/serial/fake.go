package serial

import (
	"io"
	"sync"
)

// FakePort is an in-memory Port for tests. Reads block until bytes are
// injected or the port is closed; writes are captured.
type FakePort struct {
	mu      sync.Mutex
	written []byte
	flushes int

	// WriteError, if set, is returned by Write and nothing is captured.
	WriteError error

	in        chan []byte
	pending   []byte
	closed    chan struct{}
	closeOnce sync.Once
}

// NewFakePort creates an open FakePort.
func NewFakePort() *FakePort {
	return &FakePort{
		in:     make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

// Inject queues p to be returned by subsequent reads.
func (f *FakePort) Inject(p []byte) {
	chunk := make([]byte, len(p))
	copy(chunk, p)
	f.in <- chunk
}

// Read returns injected bytes. It must be called from a single goroutine.
func (f *FakePort) Read(b []byte) (int, error) {
	if len(f.pending) == 0 {
		select {
		case p := <-f.in:
			f.pending = p
		case <-f.closed:
			return 0, io.ErrClosedPipe
		}
	}
	n := copy(b, f.pending)
	f.pending = f.pending[n:]
	return n, nil
}

// Write captures p.
func (f *FakePort) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WriteError != nil {
		return 0, f.WriteError
	}
	f.written = append(f.written, p...)
	return len(p), nil
}

// Written returns a copy of everything written so far.
func (f *FakePort) Written() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]byte, len(f.written))
	copy(out, f.written)
	return out
}

// Flush counts the call.
func (f *FakePort) Flush() error {
	f.mu.Lock()
	f.flushes++
	f.mu.Unlock()
	return nil
}

// Flushes returns the number of Flush calls.
func (f *FakePort) Flushes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flushes
}

// Close unblocks pending reads. It is safe to call more than once.
func (f *FakePort) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}
