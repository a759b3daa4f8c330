package sonic

import (
	"errors"
	"fmt"
)

// Sentinel errors for the sonic package.
var (
	// ErrNotActive indicates the session is not streaming.
	ErrNotActive = errors.New("sonic: not active")

	// ErrAlreadyStarted indicates Start was called twice.
	ErrAlreadyStarted = errors.New("sonic: already started")

	// ErrStreamClosed indicates the remote side ended the stream.
	ErrStreamClosed = errors.New("sonic: stream closed")

	// ErrMissingModel indicates no model ID was configured.
	ErrMissingModel = errors.New("sonic: model ID is required")

	// ErrInvalidEvent indicates an inbound event could not be decoded.
	ErrInvalidEvent = errors.New("sonic: invalid event")
)

// TransportError is a failure of the underlying duplex stream.
type TransportError struct {
	// Op is the operation that failed: "open", "send", "recv" or "close".
	Op string

	// Cause is the underlying error.
	Cause error
}

func (e *TransportError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("sonic: %s failed", e.Op)
	}
	return fmt.Sprintf("sonic: %s failed: %v", e.Op, e.Cause)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// IsTransport reports whether err came from the duplex stream.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
