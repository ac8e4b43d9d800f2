// Package message implements drivers for instruments controlled through
// text commands: a query/write layer with termination characters and
// command pacing on top of a byte transport (TCP socket, serial line,
// websocket).
package message

import "context"

// Transport is a raw byte pipe to an instrument. Implementations honor
// the context deadline on every call and return errors satisfying
// errors.IsTimeout when the instrument does not answer in time.
type Transport interface {
	// Open establishes the connection.
	Open(ctx context.Context) error
	// Close tears the connection down. Closing a closed transport is a
	// no-op.
	Close() error
	// Write sends p to the instrument.
	Write(ctx context.Context, p []byte) error
	// Read fills p with available bytes, blocking until at least one
	// byte arrives or the deadline passes.
	Read(ctx context.Context, p []byte) (int, error)
}
