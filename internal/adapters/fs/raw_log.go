package fs

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/bft-labs/gnsship/internal/domain"
	"github.com/bft-labs/gnsship/internal/ports"
	"github.com/bft-labs/gnsship/pkg/log"
)

// fsyncIntervalBytes is how much data may accumulate in a bucket before the
// handle is fsynced. Bounds data loss on power failure without paying for a
// sync on every frame.
const fsyncIntervalBytes = 1_000_000

const (
	suffixText   = ".nmea"
	suffixBinary = ".ubx"
)

// bucket is one open hour file for a single frame family.
type bucket struct {
	f         *os.File
	path      string
	hour      time.Time // truncated to the hour, UTC
	sinceSync int64
}

// RotatingRawLog implements ports.RawLog. It appends raw frames to
// hour-partitioned files under a root directory, {root}/YYYY/MM/DD/HH.nmea
// and .ubx, using the UTC wall clock. Rotation is checked lazily on every
// write under the same lock as the write itself; a bucket closed by rotation
// is compressed and checksummed in the background so the live hour never
// waits on finalization.
//
// Buckets are opened in append mode: a process restart within the hour
// continues the same file.
type RotatingRawLog struct {
	root   string
	clock  clock.Clock
	logger ports.Logger

	mu     sync.Mutex
	text   *bucket
	binary *bucket

	finalizing sync.WaitGroup
}

// NewRotatingRawLog creates a RotatingRawLog rooted at root. A nil clock
// falls back to the wall clock, a nil logger to a no-op logger.
func NewRotatingRawLog(root string, clk clock.Clock, logger ports.Logger) *RotatingRawLog {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &RotatingRawLog{
		root:   root,
		clock:  clk,
		logger: logger,
	}
}

// Open creates the current hour's buckets and queues finalization of
// whatever the previous hour left uncompressed, the catch-up for a process
// that was down across a rotation boundary.
func (r *RotatingRawLog) Open() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now().UTC()
	if err := r.rotateLocked(&r.text, suffixText, now); err != nil {
		return err
	}
	if err := r.rotateLocked(&r.binary, suffixBinary, now); err != nil {
		return err
	}

	prev := now.Add(-time.Hour).Truncate(time.Hour)
	for _, suffix := range []string{suffixText, suffixBinary} {
		path := r.bucketPath(prev, suffix)
		if fileExists(path) {
			r.queueFinalize(path)
		}
	}
	return nil
}

// Write appends one frame to the bucket for its family, rotating first if
// the UTC hour has changed since the bucket was opened. The rotation check
// and the append happen under one lock so no frame can land in a stale
// bucket.
func (r *RotatingRawLog) Write(frame domain.Frame, ts time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	target, suffix := &r.binary, suffixBinary
	if frame.Family == domain.FamilyText {
		target, suffix = &r.text, suffixText
	}

	now := r.clock.Now().UTC()
	if *target == nil || !(*target).hour.Equal(now.Truncate(time.Hour)) {
		if err := r.rotateLocked(target, suffix, now); err != nil {
			return err
		}
	}

	b := *target
	n, err := b.f.Write(encodeRecord(frame, ts))
	if err != nil {
		return fmt.Errorf("append %s: %w", b.path, err)
	}
	b.sinceSync += int64(n)
	if b.sinceSync >= fsyncIntervalBytes {
		if err := b.f.Sync(); err != nil {
			return fmt.Errorf("sync %s: %w", b.path, err)
		}
		b.sinceSync = 0
	}
	return nil
}

// Sync flushes both open buckets to stable storage.
func (r *RotatingRawLog) Sync() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, b := range []*bucket{r.text, r.binary} {
		if b == nil {
			continue
		}
		if err := b.f.Sync(); err != nil {
			return fmt.Errorf("sync %s: %w", b.path, err)
		}
		b.sinceSync = 0
	}
	return nil
}

// Close fsyncs and closes both buckets, then waits for background
// finalizations to drain. The current hour's files are left uncompressed so
// a restart within the hour can continue them.
func (r *RotatingRawLog) Close() error {
	r.mu.Lock()
	var firstErr error
	for _, target := range []**bucket{&r.text, &r.binary} {
		if *target == nil {
			continue
		}
		if err := closeBucket(*target); err != nil && firstErr == nil {
			firstErr = err
		}
		*target = nil
	}
	r.mu.Unlock()

	r.finalizing.Wait()
	return firstErr
}

// rotateLocked closes the bucket behind target (if any), queues it for
// finalization, and opens the bucket for the hour containing now.
// Caller holds mu.
func (r *RotatingRawLog) rotateLocked(target **bucket, suffix string, now time.Time) error {
	hour := now.Truncate(time.Hour)

	if old := *target; old != nil {
		if old.hour.Equal(hour) {
			// Reopened within the same hour, e.g. by a restart after a
			// crash. Finalizing the live bucket here would compress and
			// remove the file the handle keeps appending to.
			return nil
		}
		if err := closeBucket(old); err != nil {
			r.logger.Warn("failed to close rotated bucket",
				ports.String("path", old.path),
				ports.Err(err))
		}
		r.queueFinalize(old.path)
		*target = nil
	}

	path := r.bucketPath(hour, suffix)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	*target = &bucket{f: f, path: path, hour: hour}
	return nil
}

// queueFinalize compresses and checksums path in the background. Failures
// are logged, never propagated into the write path; the retention sweep
// retries stale buckets later.
func (r *RotatingRawLog) queueFinalize(path string) {
	r.finalizing.Add(1)
	go func() {
		defer r.finalizing.Done()
		if err := FinalizeBucket(path); err != nil {
			r.logger.Error("bucket finalization failed",
				ports.String("path", path),
				ports.Err(err))
			return
		}
		r.logger.Info("bucket finalized", ports.String("path", path))
	}()
}

// bucketPath returns {root}/YYYY/MM/DD/HH{suffix} for the given UTC hour.
func (r *RotatingRawLog) bucketPath(hour time.Time, suffix string) string {
	return filepath.Join(r.root,
		fmt.Sprintf("%04d", hour.Year()),
		fmt.Sprintf("%02d", int(hour.Month())),
		fmt.Sprintf("%02d", hour.Day()),
		fmt.Sprintf("%02d%s", hour.Hour(), suffix))
}

// encodeRecord renders one frame in its family's on-disk record format:
// text frames as "<RFC3339Nano UTC> <sentence>\n", binary frames as an
// 8-byte little-endian float64 UNIX timestamp followed by the raw bytes.
func encodeRecord(frame domain.Frame, ts time.Time) []byte {
	if frame.Family == domain.FamilyText {
		stamp := ts.UTC().Format(time.RFC3339Nano)
		rec := make([]byte, 0, len(stamp)+1+len(frame.Raw)+1)
		rec = append(rec, stamp...)
		rec = append(rec, ' ')
		rec = append(rec, frame.Raw...)
		rec = append(rec, '\n')
		return rec
	}

	rec := make([]byte, 8, 8+len(frame.Raw))
	sec := float64(ts.UnixNano()) / float64(time.Second)
	binary.LittleEndian.PutUint64(rec, math.Float64bits(sec))
	return append(rec, frame.Raw...)
}

func closeBucket(b *bucket) error {
	if err := b.f.Sync(); err != nil {
		b.f.Close()
		return err
	}
	return b.f.Close()
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
