package app

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/bft-labs/gnsship/internal/demux"
	"github.com/bft-labs/gnsship/internal/domain"
	"github.com/bft-labs/gnsship/internal/ports"
)

// Orchestrator defaults.
const (
	DefaultReadBufSize       = 4096
	DefaultMaxReopenAttempts = 10
	statsInterval            = time.Minute
)

// OrchestratorConfig configures the read loop.
type OrchestratorConfig struct {
	// ReadBufSize is the size of the chunk buffer handed to the source.
	ReadBufSize int

	// MaxReopenAttempts bounds device recovery before the node gives up
	// and crashes, handing the problem to the external health monitor.
	MaxReopenAttempts int

	// ReopenBackoffInitial and ReopenBackoffMax bound the wait between
	// reopen attempts.
	ReopenBackoffInitial time.Duration
	ReopenBackoffMax     time.Duration
}

func (c *OrchestratorConfig) setDefaults() {
	if c.ReadBufSize <= 0 {
		c.ReadBufSize = DefaultReadBufSize
	}
	if c.MaxReopenAttempts <= 0 {
		c.MaxReopenAttempts = DefaultMaxReopenAttempts
	}
	if c.ReopenBackoffInitial <= 0 {
		c.ReopenBackoffInitial = DefaultBackoffInitial
	}
	if c.ReopenBackoffMax <= 0 {
		c.ReopenBackoffMax = DefaultBackoffMax
	}
}

// ReadStats are cumulative counters for the read loop.
type ReadStats struct {
	TextFrames   uint64
	BinaryFrames uint64
	Rejects      uint64
	Bytes        uint64
	WriteErrors  uint64
	LastFrameAt  time.Time
}

// Orchestrator owns the ingestion path: it pulls chunks from the byte
// source, demultiplexes them, appends every accepted frame to the raw log
// and queues it for shipping. Device failures bounce the lifecycle through
// Recovering with bounded reopen attempts.
type Orchestrator struct {
	cfg       OrchestratorConfig
	source    ports.ByteSource
	demux     *demux.Demuxer
	rawLog    ports.RawLog
	acc       *Accumulator
	lifecycle *Lifecycle
	logger    ports.Logger
	clock     clock.Clock

	mu           sync.Mutex
	stats        ReadStats
	lastStatsLog time.Time
}

// NewOrchestrator wires the read loop. All dependencies are required
// except clk, which falls back to the wall clock.
func NewOrchestrator(cfg OrchestratorConfig, source ports.ByteSource, d *demux.Demuxer, rawLog ports.RawLog, acc *Accumulator, lc *Lifecycle, logger ports.Logger, clk clock.Clock) *Orchestrator {
	cfg.setDefaults()
	if clk == nil {
		clk = clock.New()
	}
	return &Orchestrator{
		cfg:          cfg,
		source:       source,
		demux:        d,
		rawLog:       rawLog,
		acc:          acc,
		lifecycle:    lc,
		logger:       logger,
		clock:        clk,
		lastStatsLog: clk.Now(),
	}
}

// Run drives the read loop until ctx ends. Reads are bounded by the
// source's timeout, so cancellation is observed within one timeout period.
// A device failure moves the node to Recovering; exhausting reopen
// attempts crashes it and returns ErrDeviceUnrecoverable.
func (o *Orchestrator) Run(ctx context.Context) error {
	buf := make([]byte, o.cfg.ReadBufSize)

	for {
		select {
		case <-ctx.Done():
			if tail := o.demux.Pending(); tail > 0 {
				o.logger.Debug("abandoning partial frame at shutdown",
					ports.Int("bytes", tail))
			}
			return nil
		default:
		}

		n, err := o.source.Read(buf)
		if err != nil {
			o.logger.Warn("device read failed", ports.Err(err))
			if recErr := o.recover(ctx); recErr != nil {
				return recErr
			}
			continue
		}
		if n == 0 {
			// Quiet line within the read timeout.
			continue
		}

		o.ingest(buf[:n])
		o.maybeLogStats()
	}
}

// Stats returns a snapshot of the read counters.
func (o *Orchestrator) Stats() ReadStats {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stats
}

// ingest runs one chunk through the demuxer, logs rejects, and fans every
// accepted frame out to the raw log and the accumulator.
func (o *Orchestrator) ingest(chunk []byte) {
	frames, rejects := o.demux.Feed(chunk)
	now := o.clock.Now()

	for _, rej := range rejects {
		o.noteReject(rej)
	}

	for i := range frames {
		frames[i].Received = now
	}

	for _, frame := range frames {
		if frame.Family == domain.FamilyBinary {
			o.logger.Debug("ubx message",
				ports.String("type", demux.MessageName(frame.Class, frame.ID)),
				ports.Int("payload_len", frame.PayloadLen))
		}
		if err := o.rawLog.Write(frame, now); err != nil {
			o.logger.Error("raw log write failed",
				ports.String("family", frame.Family.String()),
				ports.Err(err))
			o.mu.Lock()
			o.stats.WriteErrors++
			o.mu.Unlock()
		}
		o.acc.Add(frame)
	}

	o.mu.Lock()
	o.stats.Bytes += uint64(len(chunk))
	for _, frame := range frames {
		switch frame.Family {
		case domain.FamilyText:
			o.stats.TextFrames++
		case domain.FamilyBinary:
			o.stats.BinaryFrames++
		}
	}
	if len(frames) > 0 {
		o.stats.LastFrameAt = now
	}
	o.stats.Rejects += uint64(len(rejects))
	o.mu.Unlock()
}

func (o *Orchestrator) noteReject(rej demux.Reject) {
	switch rej.Reason {
	case demux.RejectOversize:
		// The health monitor counts this exact message in the diagnostic
		// log; see internal/watchdog.
		o.logger.Warn(domain.SignatureFrameTooLarge,
			ports.Int("declared", rej.Declared),
			ports.Int("max", demux.DefaultMaxBinary))
	case demux.RejectParserStuck:
		o.logger.Error("forcing parser resync",
			ports.Int("consecutive_rejects", rej.Errors))
	case demux.RejectUnterminated:
		o.logger.Warn("sentence unterminated, abandoning start")
	default:
		o.logger.Warn("frame rejected",
			ports.String("reason", rej.Reason.String()),
			ports.String("family", rej.Family.String()),
			ports.Int("discarded", rej.Discarded))
	}
}

// recover reopens the device with backoff. The demuxer's carry-over is
// reset on success: bytes straddling a device fault cannot be trusted to
// frame correctly.
func (o *Orchestrator) recover(ctx context.Context) error {
	if err := o.lifecycle.TransitionTo(StateRecovering, "device read failed"); err != nil {
		// Already stopping; let the loop observe ctx.
		return nil
	}

	bo := newBackoff(o.clock, o.cfg.ReopenBackoffInitial, o.cfg.ReopenBackoffMax)

	for attempt := 1; attempt <= o.cfg.MaxReopenAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		err := o.source.Reopen()
		if err == nil {
			o.demux.Reset()
			o.logger.Info("device reopened",
				ports.Int("attempt", attempt))
			return o.lifecycle.TransitionTo(StateReading, "device reopened")
		}

		o.logger.Warn("device reopen failed",
			ports.Int("attempt", attempt),
			ports.Int("max_attempts", o.cfg.MaxReopenAttempts),
			ports.Err(err))

		if err := bo.Sleep(ctx); err != nil {
			return nil
		}
	}

	if err := o.lifecycle.TransitionTo(StateCrashed, "device unrecoverable"); err != nil {
		o.logger.Error("crash transition failed", ports.Err(err))
	}
	return domain.ErrDeviceUnrecoverable
}

func (o *Orchestrator) maybeLogStats() {
	o.mu.Lock()
	now := o.clock.Now()
	if now.Sub(o.lastStatsLog) < statsInterval {
		o.mu.Unlock()
		return
	}
	o.lastStatsLog = now
	snapshot := o.stats
	o.mu.Unlock()

	o.logger.Info("ingest stats",
		ports.Uint64("nmea_frames", snapshot.TextFrames),
		ports.Uint64("ubx_frames", snapshot.BinaryFrames),
		ports.Uint64("rejects", snapshot.Rejects),
		ports.Uint64("bytes", snapshot.Bytes),
		ports.Uint64("write_errors", snapshot.WriteErrors),
	)
}
