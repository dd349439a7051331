// Package retention bounds the on-disk raw archive for gnsship.
// When enabled, it periodically finalizes buckets left uncompressed by an
// unclean shutdown and removes the oldest archives once the tree outgrows
// a high watermark.
package retention

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bft-labs/gnsship/internal/adapters/fs"
	"github.com/bft-labs/gnsship/pkg/gnsship"
	"github.com/bft-labs/gnsship/pkg/log"
)

// Plugin implements archive retention.
// It periodically checks the archive size under the log root and removes
// the oldest compressed buckets when it exceeds the high watermark. The
// current UTC day is never touched: today's archives are what field staff
// pull when a station misbehaves.
type Plugin struct {
	mu sync.RWMutex

	// Configuration
	checkInterval  time.Duration
	highWatermark  int64
	lowWatermark   int64
	runImmediately bool

	// Runtime state
	logRoot string
	logger  gnsship.Logger
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Config holds configuration options for the retention plugin.
type Config struct {
	// CheckInterval is how often to sweep the archive root.
	// Default: 1 hour, matching the bucket rotation cadence.
	CheckInterval time.Duration

	// HighWatermark is the size in bytes above which deletion begins.
	// Default: 2 GiB
	HighWatermark int64

	// LowWatermark is the target size in bytes after deletion.
	// Default: 1.5 GiB
	LowWatermark int64

	// RunImmediately if true, runs a sweep on startup. This is what
	// finalizes buckets from hours the daemon was down for.
	// Default: true
	RunImmediately bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		CheckInterval:  time.Hour,
		HighWatermark:  2 << 30, // 2 GiB
		LowWatermark:   3 << 29, // 1.5 GiB
		RunImmediately: true,
	}
}

// New creates a new retention plugin with the given configuration.
func New(cfg Config) *Plugin {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = time.Hour
	}
	if cfg.HighWatermark <= 0 {
		cfg.HighWatermark = 2 << 30
	}
	if cfg.LowWatermark <= 0 {
		cfg.LowWatermark = 3 << 29
	}

	return &Plugin{
		checkInterval:  cfg.CheckInterval,
		highWatermark:  cfg.HighWatermark,
		lowWatermark:   cfg.LowWatermark,
		runImmediately: cfg.RunImmediately,
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "retention"
}

// Initialize sets up the plugin and starts the sweep loop.
func (p *Plugin) Initialize(ctx context.Context, cfg gnsship.PluginConfig) error {
	p.mu.Lock()
	p.logRoot = cfg.LogRoot
	p.logger = cfg.Logger
	p.mu.Unlock()

	if p.logRoot == "" {
		p.logger.Warn("retention disabled: no log root configured")
		return nil
	}

	// Create cancellable context for the sweep loop
	sweepCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.logger.Info("retention plugin initialized")

	// Start sweep loop
	p.wg.Add(1)
	go p.sweepLoop(sweepCtx)

	return nil
}

// Shutdown stops the sweep loop.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	return nil
}

// sweepLoop runs periodic sweeps.
func (p *Plugin) sweepLoop(ctx context.Context) {
	defer p.wg.Done()

	if p.runImmediately {
		p.sweepOnce(ctx)
	}

	ticker := time.NewTicker(p.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sweepOnce(ctx)
		}
	}
}

// sweepOnce performs a single sweep: finalize stale buckets, then enforce
// the watermarks.
func (p *Plugin) sweepOnce(ctx context.Context) {
	p.mu.RLock()
	root := p.logRoot
	p.mu.RUnlock()

	if !loadOK() {
		p.logger.Debug("retention sweep deferred, node busy")
		return
	}

	now := time.Now().UTC()
	p.finalizeStale(ctx, root, now)

	size, err := archiveSize(root)
	if err != nil {
		p.logger.Error("retention size check failed", log.Err(err))
		return
	}
	if size <= p.highWatermark {
		return
	}

	archives, err := fs.CompressedBuckets(root)
	if err != nil {
		p.logger.Error("retention list archives failed", log.Err(err))
		return
	}

	// Archives from the current UTC day are kept regardless of size.
	protected := now.Truncate(24 * time.Hour)

	freed := int64(0)
	for _, zst := range archives {
		if ctx.Err() != nil {
			return
		}
		if size-freed <= p.lowWatermark {
			break
		}

		hour, ok := bucketHour(root, strings.TrimSuffix(zst, ".zst"))
		if !ok || !hour.Before(protected) {
			continue
		}

		bytesFreed, rmErr := removeArchive(zst)
		if rmErr != nil {
			p.logger.Error("retention remove failed",
				log.String("path", zst),
				log.Err(rmErr))
			continue
		}
		freed += bytesFreed
	}

	if freed > 0 {
		p.logger.Info("retention sweep completed",
			log.Int64("freed_bytes", freed),
			log.Int64("archive_bytes", size-freed))
	}
}

// finalizeStale compresses buckets from hours the daemon was down for.
// The live hour is skipped: the daemon is still appending to it.
func (p *Plugin) finalizeStale(ctx context.Context, root string, now time.Time) {
	stale, err := fs.UncompressedBuckets(root)
	if err != nil {
		p.logger.Error("retention list buckets failed", log.Err(err))
		return
	}

	live := now.Truncate(time.Hour)
	for _, path := range stale {
		if ctx.Err() != nil {
			return
		}
		hour, ok := bucketHour(root, path)
		if !ok || !hour.Before(live) {
			continue
		}
		if err := fs.FinalizeBucket(path); err != nil {
			p.logger.Error("stale bucket finalization failed",
				log.String("path", path),
				log.Err(err))
			continue
		}
		p.logger.Info("finalized stale bucket", log.String("path", path))
	}
}

// loadOK is a cheap load heuristic: a goroutine count far above the core
// count means the node is busy ingesting or retrying sends, and compression
// can wait a cycle.
func loadOK() bool {
	return runtime.NumGoroutine() <= runtime.NumCPU()*10
}

// bucketHour recovers the UTC hour from a bucket path laid out as
// {root}/YYYY/MM/DD/HH{suffix}.
func bucketHour(root, path string) (time.Time, bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return time.Time{}, false
	}
	parts := strings.Split(rel, string(filepath.Separator))
	if len(parts) != 4 {
		return time.Time{}, false
	}

	base := parts[3]
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}

	year, err1 := strconv.Atoi(parts[0])
	month, err2 := strconv.Atoi(parts[1])
	day, err3 := strconv.Atoi(parts[2])
	hour, err4 := strconv.Atoi(base)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return time.Time{}, false
	}

	return time.Date(year, time.Month(month), day, hour, 0, 0, 0, time.UTC), true
}

// archiveSize returns the total size of all files under root. A missing
// root counts as empty.
func archiveSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == root {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}

// removeArchive deletes a compressed bucket and its checksum sidecar,
// returning the bytes freed.
func removeArchive(zstPath string) (int64, error) {
	info, err := os.Stat(zstPath)
	if err != nil {
		return 0, err
	}
	if err := os.Remove(zstPath); err != nil {
		return 0, err
	}
	freed := info.Size()

	shaPath := zstPath + ".sha256"
	if shaInfo, err := os.Stat(shaPath); err == nil {
		if err := os.Remove(shaPath); err != nil {
			return freed, err
		}
		freed += shaInfo.Size()
	}
	return freed, nil
}

// Ensure Plugin implements gnsship.Plugin.
var _ gnsship.Plugin = (*Plugin)(nil)
