package domain

import "errors"

// Domain errors represent error conditions in the gnsship domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrAlreadyRunning is returned when Start() is called on a running instance.
	ErrAlreadyRunning = errors.New("gnsship: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped instance.
	ErrNotRunning = errors.New("gnsship: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("gnsship: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("gnsship: invalid configuration")

	// ErrContextCanceled is returned when the operation context is canceled.
	ErrContextCanceled = errors.New("gnsship: context canceled")

	// ErrSourceClosed is returned by reads on a closed byte source.
	ErrSourceClosed = errors.New("gnsship: byte source closed")

	// ErrBatchDropped is returned when a batch is discarded after
	// exhausting all send attempts.
	ErrBatchDropped = errors.New("gnsship: batch dropped after retry exhaustion")

	// ErrDeviceUnrecoverable is returned when reopening the serial device
	// failed past the retry budget; the process exits deliberately so the
	// supervisor can restart it.
	ErrDeviceUnrecoverable = errors.New("gnsship: device unrecoverable")
)
