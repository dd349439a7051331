package gnsship

import "github.com/bft-labs/gnsship/internal/domain"

// Sentinel errors returned by the public API. They alias the internal
// domain errors so callers can match with errors.Is.
var (
	// ErrAlreadyRunning is returned by Start on a running node.
	ErrAlreadyRunning = domain.ErrAlreadyRunning

	// ErrNotRunning is returned by Stop on a stopped node.
	ErrNotRunning = domain.ErrNotRunning

	// ErrShutdownTimeout is returned by Stop when workers fail to drain
	// within the shutdown budget.
	ErrShutdownTimeout = domain.ErrShutdownTimeout

	// ErrInvalidConfig wraps every configuration validation failure.
	ErrInvalidConfig = domain.ErrInvalidConfig

	// ErrDeviceUnrecoverable means the serial device could not be
	// reopened within the retry budget and the node crashed.
	ErrDeviceUnrecoverable = domain.ErrDeviceUnrecoverable
)
