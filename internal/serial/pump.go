package serial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// readBufSize matches a handful of controller frames per read at 9600 baud.
const readBufSize = 64

// Pump reads r until ctx is cancelled or r fails, sending each non-empty read
// as its own slice on out. It returns nil on cancellation.
//
// A read timeout surfaces from tarm/serial as io.EOF with no data; Pump treats
// it as an idle line rather than the end of the stream.
func Pump(ctx context.Context, r io.Reader, out chan<- []byte) error {
	buf := make([]byte, readBufSize)
	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case out <- chunk:
			case <-ctx.Done():
				return nil
			}
		}

		switch {
		case err == nil:
		case errors.Is(err, io.EOF), errors.Is(err, os.ErrDeadlineExceeded):
			if ctx.Err() != nil {
				return nil
			}
		default:
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("serial read: %w", err)
		}
	}
}
