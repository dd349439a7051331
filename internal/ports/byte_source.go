package ports

// ByteSource provides raw byte chunks from the receiver.
// Implementations wrap a serial device opened in raw mode, or a replay
// file in development.
type ByteSource interface {
	// Read fills p with available bytes and returns the count.
	// Reads are bounded: a read that times out with no data returns
	// (0, nil) so the caller's loop can service its timers. A non-nil
	// error indicates a device failure; the caller should Reopen.
	Read(p []byte) (int, error)

	// Reopen closes and reopens the underlying device after a failure.
	Reopen() error

	// Close releases the device handle.
	Close() error
}
