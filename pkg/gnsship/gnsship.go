package gnsship

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/bft-labs/gnsship/internal/adapters/fs"
	httpadapter "github.com/bft-labs/gnsship/internal/adapters/http"
	"github.com/bft-labs/gnsship/internal/adapters/serial"
	"github.com/bft-labs/gnsship/internal/app"
	"github.com/bft-labs/gnsship/internal/demux"
	"github.com/bft-labs/gnsship/internal/domain"
	"github.com/bft-labs/gnsship/internal/ports"
	"github.com/bft-labs/gnsship/pkg/log"
)

// Node is a GNSS acquisition node that can be embedded in other
// applications. Use New() to create an instance, then Start() to begin
// acquiring.
type Node struct {
	config    Config
	opts      options
	lifecycle *app.Lifecycle
	emitter   *eventEmitterWrapper
	source    ports.ByteSource
	demux     *demux.Demuxer
	rawLog    *fs.RotatingRawLog
	sender    ports.BatchSender
	states    ports.StateRepository
	logger    ports.Logger
	clock     clock.Clock

	// Plugin support
	plugins []Plugin

	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc

	// Per-run pipeline, rebuilt on every Start so persisted counters are
	// reloaded from disk.
	orc     *app.Orchestrator
	acc     *app.Accumulator
	flusher *app.Flusher
}

// New creates a new Node with the given configuration.
// The instance is created in StateStopped; call Start() to begin
// acquiring. Returns an error if configuration is invalid.
func New(cfg Config, opts ...Option) (*Node, error) {
	// Set defaults
	cfg.SetDefaults()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Validate module version compatibility
	if err := validateModuleVersions(); err != nil {
		return nil, err
	}

	// Apply options
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	o := defaultOptions(httpClient)
	for _, opt := range opts {
		opt(&o)
	}

	var logger ports.Logger
	if o.logger != nil {
		logger = o.logger
	} else {
		logger = log.NewNoopLogger()
	}

	// Create event emitter wrapper
	emitter := &eventEmitterWrapper{handler: o.eventHandler}

	// Create lifecycle manager
	lifecycle := app.NewLifecycle(logger, emitter)

	clk := o.clock
	if clk == nil {
		clk = clock.New()
	}

	// Create adapters
	rawLog := fs.NewRotatingRawLog(cfg.LogRoot, clk, logger)
	states := fs.NewStateFileRepository(cfg.StateDir)
	station := ports.StationInfo{
		StationID:     cfg.StationID,
		StationName:   cfg.StationName,
		IsReference:   cfg.IsReference,
		Latitude:      cfg.Latitude,
		Longitude:     cfg.Longitude,
		AntennaHeight: cfg.AntennaHeight,
	}
	sender := httpadapter.NewBatchSender(o.httpClient, logger, cfg.IngestURL, cfg.AuthKey, station)

	source := o.source
	if source == nil {
		source = serial.NewPortSource(serial.Options{
			Port:        cfg.Device,
			BaudRate:    uint(cfg.BaudRate),
			ReadTimeout: cfg.ReadTimeout,
		})
	}

	demuxer := demux.New(demux.Options{
		MaxBinary:      cfg.MaxBinaryBytes,
		MaxSentence:    cfg.MaxSentenceBytes,
		StuckThreshold: cfg.StuckThreshold,
	})

	return &Node{
		config:    cfg,
		opts:      o,
		lifecycle: lifecycle,
		emitter:   emitter,
		source:    source,
		demux:     demuxer,
		rawLog:    rawLog,
		sender:    sender,
		states:    states,
		logger:    logger,
		clock:     clk,
		plugins:   o.plugins,
	}, nil
}

// Start begins acquisition in the background.
// Returns immediately after the workers are launched.
// Returns an error if already running or if startup fails; opening the
// serial device is part of startup, so a dead device fails Start.
// The provided context is used for the lifetime of the acquisition.
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.lifecycle.CanStart() {
		return domain.ErrAlreadyRunning
	}

	// Transition to starting
	if err := n.lifecycle.TransitionTo(app.StateStarting, "Start() called"); err != nil {
		return err
	}

	// Create cancellable context
	runCtx, cancel := context.WithCancel(ctx)
	n.ctx = runCtx
	n.cancel = cancel
	n.lifecycle.SetCancel(cancel)

	// Reload persisted counters. A corrupt state file costs continuity,
	// not acquisition.
	persisted, err := n.states.Load(runCtx)
	if err != nil {
		n.logger.Warn("state load failed, starting with fresh counters", ports.Err(err))
		persisted = domain.State{}
	}

	if err := n.rawLog.Open(); err != nil {
		cancel()
		_ = n.lifecycle.TransitionTo(app.StateCrashed, "raw log open failed")
		return fmt.Errorf("open raw log: %w", err)
	}

	if err := n.source.Reopen(); err != nil {
		_ = n.rawLog.Close()
		cancel()
		_ = n.lifecycle.TransitionTo(app.StateCrashed, "device open failed")
		return fmt.Errorf("open device: %w", err)
	}

	// Initialize plugins
	pluginCfg := PluginConfig{
		LogRoot:     n.config.LogRoot,
		StateDir:    n.config.StateDir,
		IngestURL:   n.config.IngestURL,
		StationID:   n.config.StationID,
		StationName: n.config.StationName,
		AuthKey:     n.config.AuthKey,
		ConfigPath:  n.config.ConfigPath,
		Logger:      n.logger,
	}
	for _, p := range n.plugins {
		if err := p.Initialize(runCtx, pluginCfg); err != nil {
			n.logger.Error("plugin initialization failed",
				ports.String("plugin", p.Name()),
				ports.Err(err))
			_ = n.source.Close()
			_ = n.rawLog.Close()
			cancel()
			_ = n.lifecycle.TransitionTo(app.StateCrashed, "plugin init failed: "+p.Name())
			return err
		}
		n.logger.Info("plugin initialized", ports.String("plugin", p.Name()))
	}

	// Build the per-run pipeline around the reloaded counters.
	n.acc = app.NewAccumulator(n.clock, persisted.LastSeq)
	n.flusher = app.NewFlusher(app.FlusherConfig{
		Interval:       n.config.SendInterval,
		MaxAttempts:    n.config.MaxSendAttempts,
		BackoffInitial: n.config.SendBackoffInitial,
		BackoffMax:     n.config.SendBackoffMax,
	}, n.acc, n.sender, n.states, n.logger, n.emitter, n.clock, persisted)
	n.orc = app.NewOrchestrator(app.OrchestratorConfig{
		ReadBufSize:          n.config.ReadBufSize,
		MaxReopenAttempts:    n.config.MaxReopenAttempts,
		ReopenBackoffInitial: n.config.ReopenBackoffInitial,
		ReopenBackoffMax:     n.config.ReopenBackoffMax,
	}, n.source, n.demux, n.rawLog, n.acc, n.lifecycle, n.logger, n.clock)

	// A new session never inherits buffered bytes from the old one.
	n.demux.Reset()

	flusher := n.flusher
	orc := n.orc

	n.lifecycle.AddWorker()
	go func() {
		defer n.lifecycle.WorkerDone()
		flusher.Run(runCtx)
	}()

	n.lifecycle.AddWorker()
	go func() {
		defer n.lifecycle.WorkerDone()

		if err := n.lifecycle.TransitionTo(app.StateReading, "read loop starting"); err != nil {
			n.logger.Error("failed to transition to reading", ports.Err(err))
			return
		}

		err := orc.Run(runCtx)

		if err != nil && err != context.Canceled {
			n.logger.Error("read loop error", ports.Err(err))
			_ = n.lifecycle.TransitionTo(app.StateCrashed, err.Error())
			// Release the flusher so it drains pending frames and exits.
			n.lifecycle.Cancel()
		}
	}()

	return nil
}

// Stop gracefully shuts down the node.
// Flushes the open log buckets and the pending batch, persists state and
// shuts down plugins. Waits up to 30 seconds before forcing shutdown.
// Returns nil on graceful shutdown, ErrShutdownTimeout if forced.
func (n *Node) Stop() error {
	n.mu.Lock()

	if !n.lifecycle.CanStop() {
		n.mu.Unlock()
		return domain.ErrNotRunning
	}

	// Transition to stopping
	if err := n.lifecycle.TransitionTo(app.StateStopping, "Stop() called"); err != nil {
		n.mu.Unlock()
		return err
	}

	// Cancel the context
	if n.cancel != nil {
		n.cancel()
	}

	n.mu.Unlock()

	// Wait for workers with timeout
	err := n.lifecycle.WaitWithTimeout(app.ShutdownTimeout)

	// Release the device and finalize the open hour.
	if cerr := n.source.Close(); cerr != nil {
		n.logger.Warn("device close failed", ports.Err(cerr))
	}
	if cerr := n.rawLog.Close(); cerr != nil {
		n.logger.Warn("raw log close failed", ports.Err(cerr))
	}

	// Shutdown plugins (in reverse order)
	shutdownCtx := context.Background()
	for i := len(n.plugins) - 1; i >= 0; i-- {
		p := n.plugins[i]
		if shutdownErr := p.Shutdown(shutdownCtx); shutdownErr != nil {
			n.logger.Error("plugin shutdown failed",
				ports.String("plugin", p.Name()),
				ports.Err(shutdownErr))
		} else {
			n.logger.Info("plugin shutdown complete", ports.String("plugin", p.Name()))
		}
	}

	// Transition to stopped
	if err != nil {
		_ = n.lifecycle.TransitionTo(app.StateCrashed, "shutdown timeout")
	} else {
		_ = n.lifecycle.TransitionTo(app.StateStopped, "graceful shutdown")
	}

	return err
}

// Status returns the current lifecycle state.
// Safe to call concurrently from any goroutine.
func (n *Node) Status() State {
	return convertState(n.lifecycle.State())
}

// Stats is a point-in-time snapshot of the node's counters.
type Stats struct {
	// State is the lifecycle state at snapshot time.
	State State

	// TextFrames and BinaryFrames count accepted frames by family.
	TextFrames   uint64
	BinaryFrames uint64

	// Rejects counts demultiplexer rejects.
	Rejects uint64

	// BytesRead is the total bytes pulled off the device.
	BytesRead uint64

	// WriteErrors counts raw log write failures.
	WriteErrors uint64

	// LastFrameAt is when the last frame was accepted.
	LastFrameAt time.Time

	// PendingFrames is the number of frames queued for the next batch.
	PendingFrames int

	// LastSeq is the sequence number of the last batch handed to the
	// sender.
	LastSeq uint64

	// BatchesSent and BatchesDropped count delivery outcomes.
	BatchesSent    uint64
	BatchesDropped uint64

	// LastSendAt and LastAcceptAt are delivery timestamps.
	LastSendAt   time.Time
	LastAcceptAt time.Time
}

// Stats returns a snapshot of the node's counters. Counters are zero
// until the first Start; they reset to the persisted baseline on every
// Start. Safe to call concurrently.
func (n *Node) Stats() Stats {
	n.mu.RLock()
	orc, acc, flusher := n.orc, n.acc, n.flusher
	n.mu.RUnlock()

	s := Stats{State: n.Status()}
	if orc == nil {
		return s
	}

	read := orc.Stats()
	s.TextFrames = read.TextFrames
	s.BinaryFrames = read.BinaryFrames
	s.Rejects = read.Rejects
	s.BytesRead = read.Bytes
	s.WriteErrors = read.WriteErrors
	s.LastFrameAt = read.LastFrameAt
	s.PendingFrames = acc.Pending()

	send := flusher.Stats()
	s.LastSeq = send.LastSeq
	s.BatchesSent = send.BatchesSent
	s.BatchesDropped = send.BatchesDropped
	s.LastSendAt = send.LastSendAt
	s.LastAcceptAt = send.LastAcceptAt

	return s
}

// eventEmitterWrapper adapts EventHandler to the internal emitter
// interfaces.
type eventEmitterWrapper struct {
	handler EventHandler
}

func (e *eventEmitterWrapper) OnStateChange(previous, current app.State, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnStateChange(StateChangeEvent{
		Previous: convertState(previous),
		Current:  convertState(current),
		Reason:   reason,
	})
}

func (e *eventEmitterWrapper) OnSendSuccess(frameCount, bytesSent int, duration time.Duration) {
	if e.handler == nil {
		return
	}
	e.handler.OnSendSuccess(SendSuccessEvent{
		FrameCount: frameCount,
		BytesSent:  bytesSent,
		Duration:   duration,
	})
}

func (e *eventEmitterWrapper) OnSendError(err error, frameCount int, retryable bool) {
	if e.handler == nil {
		return
	}
	e.handler.OnSendError(SendErrorEvent{
		Error:      err,
		FrameCount: frameCount,
		Retryable:  retryable,
	})
}

func convertState(s app.State) State {
	switch s {
	case app.StateStopped:
		return StateStopped
	case app.StateStarting:
		return StateStarting
	case app.StateReading:
		return StateReading
	case app.StateRecovering:
		return StateRecovering
	case app.StateStopping:
		return StateStopping
	case app.StateCrashed:
		return StateCrashed
	default:
		return StateStopped
	}
}

// validateModuleVersions checks that all module versions are compatible.
// Returns an error if any module version is below its minimum compatible version.
func validateModuleVersions() error {
	modules := map[string]struct {
		version    string
		minVersion string
	}{
		"gnsship": {Version, MinCompatibleVersion},
		"log":     {log.Version, log.MinCompatibleVersion},
	}

	for name, m := range modules {
		if !isVersionCompatible(m.version, m.minVersion) {
			return fmt.Errorf("module %s version %s is below minimum compatible version %s",
				name, m.version, m.minVersion)
		}
	}

	return nil
}

// isVersionCompatible checks if version >= minVersion using semantic versioning.
// Assumes versions are in format "major.minor.patch".
func isVersionCompatible(version, minVersion string) bool {
	var vMajor, vMinor, vPatch int
	var mMajor, mMinor, mPatch int

	_, _ = fmt.Sscanf(version, "%d.%d.%d", &vMajor, &vMinor, &vPatch)
	_, _ = fmt.Sscanf(minVersion, "%d.%d.%d", &mMajor, &mMinor, &mPatch)

	if vMajor != mMajor {
		return vMajor > mMajor
	}
	if vMinor != mMinor {
		return vMinor > mMinor
	}
	return vPatch >= mPatch
}
