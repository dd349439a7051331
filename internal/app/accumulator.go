package app

import (
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/bft-labs/gnsship/internal/domain"
)

// Accumulator collects frames between flushes. The read loop appends while
// the flusher swaps the pending slice out on its cadence. Sequence numbers
// are assigned at flush time, by the single flusher goroutine, so batches
// leave strictly in order; empty intervals consume no sequence number.
type Accumulator struct {
	clock clock.Clock

	mu      sync.Mutex
	pending []domain.Frame
	nextSeq uint64
}

// NewAccumulator creates an accumulator that continues numbering after
// lastSeq, the highest sequence number a previous run used (zero for a
// fresh station).
func NewAccumulator(clk clock.Clock, lastSeq uint64) *Accumulator {
	if clk == nil {
		clk = clock.New()
	}
	return &Accumulator{
		clock:   clk,
		nextSeq: lastSeq + 1,
	}
}

// Add queues one frame for the next batch.
func (a *Accumulator) Add(frame domain.Frame) {
	a.mu.Lock()
	a.pending = append(a.pending, frame)
	a.mu.Unlock()
}

// Flush removes the pending frames and returns them as a sequenced batch.
// Returns nil when nothing accumulated.
func (a *Accumulator) Flush() *domain.Batch {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.pending) == 0 {
		return nil
	}

	frames := a.pending
	a.pending = nil

	seq := a.nextSeq
	a.nextSeq++

	return &domain.Batch{
		ID:        uuid.NewString(),
		Seq:       seq,
		CreatedAt: a.clock.Now(),
		Frames:    frames,
	}
}

// Pending returns the number of queued frames.
func (a *Accumulator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}
