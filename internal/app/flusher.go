package app

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/bft-labs/gnsship/internal/domain"
	"github.com/bft-labs/gnsship/internal/ports"
)

// Flusher defaults.
const (
	DefaultFlushInterval    = time.Second
	DefaultMaxSendAttempts  = 5
	defaultFinalFlushBudget = 10 * time.Second
)

// FlusherConfig configures the send loop.
type FlusherConfig struct {
	// Interval is the cadence between accumulator drains.
	Interval time.Duration

	// MaxAttempts is how many times one batch is offered before it is
	// dropped.
	MaxAttempts int

	// BackoffInitial and BackoffMax bound the wait between attempts.
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

func (c *FlusherConfig) setDefaults() {
	if c.Interval <= 0 {
		c.Interval = DefaultFlushInterval
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxSendAttempts
	}
	if c.BackoffInitial <= 0 {
		c.BackoffInitial = DefaultBackoffInitial
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = DefaultBackoffMax
	}
}

// SendEventEmitter is notified about batch delivery outcomes. A nil
// emitter disables notifications.
type SendEventEmitter interface {
	OnSendSuccess(frameCount, bytesSent int, duration time.Duration)
	OnSendError(err error, frameCount int, retryable bool)
}

// Flusher drains the accumulator on a fixed cadence and ships each batch
// before touching the next, so the collector observes batches in sequence
// order. A batch that exhausts its attempts is dropped, leaving a gap in
// the sequence; the raw log on disk remains the durable copy.
type Flusher struct {
	cfg     FlusherConfig
	acc     *Accumulator
	sender  ports.BatchSender
	states  ports.StateRepository
	logger  ports.Logger
	emitter SendEventEmitter
	clock   clock.Clock

	mu    sync.Mutex
	stats domain.State
}

// NewFlusher creates a flusher resuming from the given persisted state.
func NewFlusher(cfg FlusherConfig, acc *Accumulator, sender ports.BatchSender, states ports.StateRepository, logger ports.Logger, emitter SendEventEmitter, clk clock.Clock, initial domain.State) *Flusher {
	cfg.setDefaults()
	if clk == nil {
		clk = clock.New()
	}
	return &Flusher{
		cfg:     cfg,
		acc:     acc,
		sender:  sender,
		states:  states,
		logger:  logger,
		emitter: emitter,
		clock:   clk,
		stats:   initial,
	}
}

// Run flushes once per interval until ctx ends, then drains the
// accumulator one last time under a bounded budget so buffered frames get
// a chance to leave before shutdown.
func (f *Flusher) Run(ctx context.Context) {
	ticker := f.clock.Ticker(f.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.Background(), defaultFinalFlushBudget)
			f.flushOnce(final)
			cancel()
			return
		case <-ticker.C:
			f.flushOnce(ctx)
		}
	}
}

// Stats returns a snapshot of the send counters.
func (f *Flusher) Stats() domain.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

func (f *Flusher) flushOnce(ctx context.Context) {
	batch := f.acc.Flush()
	if batch == nil {
		return
	}
	f.sendBatch(ctx, batch)
}

// sendBatch offers one batch up to MaxAttempts times with jittered
// exponential backoff between failures, then records the outcome either
// way. The dropped sequence number is not reused.
func (f *Flusher) sendBatch(ctx context.Context, batch *domain.Batch) {
	bo := newBackoff(f.clock, f.cfg.BackoffInitial, f.cfg.BackoffMax)

	var lastErr error
	for attempt := 1; attempt <= f.cfg.MaxAttempts; attempt++ {
		started := f.clock.Now()
		err := f.sender.Send(ctx, batch)
		if err == nil {
			f.recordResult(batch, true)
			if f.emitter != nil {
				f.emitter.OnSendSuccess(batch.Size(), batch.TotalBytes(), f.clock.Now().Sub(started))
			}
			return
		}
		lastErr = err

		f.logger.Warn("batch send failed",
			ports.Uint64("seq", batch.Seq),
			ports.Int("attempt", attempt),
			ports.Int("max_attempts", f.cfg.MaxAttempts),
			ports.Err(err),
		)

		if attempt == f.cfg.MaxAttempts {
			break
		}
		if f.emitter != nil {
			f.emitter.OnSendError(err, batch.Size(), true)
		}
		if err := bo.Sleep(ctx); err != nil {
			break
		}
	}

	f.recordResult(batch, false)
	if f.emitter != nil {
		f.emitter.OnSendError(lastErr, batch.Size(), false)
	}
	f.logger.Error("batch dropped",
		ports.Uint64("seq", batch.Seq),
		ports.Int("frames", batch.Size()),
		ports.Err(lastErr),
	)
}

func (f *Flusher) recordResult(batch *domain.Batch, accepted bool) {
	now := f.clock.Now()

	f.mu.Lock()
	f.stats.UpdateAfterSend(batch.Seq, accepted, now)
	snapshot := f.stats
	f.mu.Unlock()

	// Persisting counters is advisory; a failure here must not stall the
	// send loop.
	if err := f.states.Save(context.Background(), snapshot); err != nil {
		f.logger.Warn("failed to persist state", ports.Err(err))
	}
}
