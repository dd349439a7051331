package ports

import (
	"time"

	"github.com/bft-labs/gnsship/internal/domain"
)

// RawLog persists the raw bytes of every accepted frame, bucketed by
// protocol family and UTC calendar hour. Rotation is the implementation's
// concern and happens lazily inside Write so the rotation check and the
// write form one atomic unit per family.
type RawLog interface {
	// Write appends the frame's raw bytes to the bucket for the frame's
	// family and the current hour. ts is the receive timestamp recorded
	// with the bytes. A returned error means the bytes were not durably
	// written; the caller reports it but keeps the frame flowing.
	Write(frame domain.Frame, ts time.Time) error

	// Sync flushes and fsyncs any open buckets.
	Sync() error

	// Close flushes, fsyncs, and closes all open buckets.
	Close() error
}
