// Package errors provides error handling for lantz-core.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - Hints surfaced to driver users
//
// Usage:
//
//	// Wrap with context
//	if err := d.Initialize(ctx); err != nil {
//	    return errors.Wrap(err, "failed to open instrument connection")
//	}
//
//	// Check errors
//	if errors.Is(err, errors.ErrTimeout) {
//	    // the instrument did not answer in time
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	"net"

	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is        = crdb.Is
	IsAny     = crdb.IsAny
	As        = crdb.As
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll
)

// Assertions
var (
	AssertionFailedf = crdb.AssertionFailedf
)

// Sentinel errors shared by all lantz drivers and backends.
// Use these with errors.Is() for type-safe error checking and wrap them
// with errors.Wrap() to add context while preserving identity.
var (
	// ErrTimeout indicates the instrument did not answer within the
	// communication timeout.
	ErrTimeout = New("communication timed out")

	// ErrInvalidCommand indicates the instrument rejected a command.
	ErrInvalidCommand = New("invalid command")

	// ErrNotConnected indicates an operation was attempted before
	// Initialize or after Finalize.
	ErrNotConnected = New("instrument not connected")

	// ErrInterfaceNotSupported indicates the driver does not support the
	// interface type of the requested resource.
	ErrInterfaceNotSupported = New("interface not supported")

	// ErrLimit indicates a value was rejected by a limits validator.
	ErrLimit = New("value out of limits")

	// ErrNotSupported indicates the driver does not implement the
	// requested operation.
	ErrNotSupported = New("operation not supported")
)

// IsTimeout checks if an error is or wraps ErrTimeout, including network
// level timeouts surfaced by transports.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if Is(err, ErrTimeout) {
		return true
	}
	var netErr net.Error
	return As(err, &netErr) && netErr.Timeout()
}

// IsRetryable reports whether a communication error should trigger a
// reconnect-and-retry cycle for features with a non-zero retry count.
// Timeouts and broken connections qualify, command errors do not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if Is(err, ErrInvalidCommand) || Is(err, ErrLimit) || Is(err, ErrNotSupported) {
		return false
	}
	if IsTimeout(err) || Is(err, ErrNotConnected) {
		return true
	}
	var netErr net.Error
	return As(err, &netErr)
}

// WrapTimeout wraps an error as a timeout with context.
func WrapTimeout(err error, context string) error {
	return Wrap(Wrap(ErrTimeout, err.Error()), context)
}
