package domain

import (
	"errors"
	"fmt"
)

// Failure taxonomy for a dispatch run. Row-level errors are caught at the
// row boundary and logged; only connection errors abort the run.
var (
	// ErrPriceUnavailable means both the live quote and the historical
	// fallback failed to produce a positive price.
	ErrPriceUnavailable = errors.New("no price available")

	// ErrUnqualifiedInstrument means the broker could not qualify the ticker.
	ErrUnqualifiedInstrument = errors.New("instrument cannot be qualified")

	// ErrSubmissionRejected means the broker returned a non-success terminal
	// status for a submit call.
	ErrSubmissionRejected = errors.New("order submission rejected")

	// ErrGatewayTimeout means the broker did not acknowledge an order within
	// the configured timeout.
	ErrGatewayTimeout = errors.New("gateway did not acknowledge in time")
)

// ConnectionError wraps a failure to establish or maintain the broker
// session. It is fatal to the whole run.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("broker connection: %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// IsConnectionError reports whether err carries a session-level failure.
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}
