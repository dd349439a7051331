package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/gnsship/internal/adapters/fs"
	"github.com/bft-labs/gnsship/internal/adapters/serial"
	"github.com/bft-labs/gnsship/internal/cliconfig"
	"github.com/bft-labs/gnsship/pkg/gnsship"
	gnsslog "github.com/bft-labs/gnsship/pkg/log"
	"github.com/bft-labs/gnsship/plugins/configsync"
	"github.com/bft-labs/gnsship/plugins/retention"
)

const helpBanner = `
  ____  _   _  ____   ____   _   _  ___  ____
 / ___|| \ | |/ ___| / ___| | | | ||_ _||  _ \
| |  _ |  \| |\___ \ \___ \ | |_| | | | | |_) |
| |_| || |\  | ___) | ___) ||  _  | | | |  __/
 \____||_| \_||____/ |____/ |_| |_||___||_|
`

const helpDescription = `
Acquire the raw byte stream of a GNSS receiver and ship it for ionospheric
monitoring.

Highlights:
  - Archives every UBX and NMEA frame to hour-partitioned zstd files with
    SHA-256 sidecars.
  - Batches frames to the collector with bounded retry and sequence tracking.
  - Survives receiver flaps with bounded reopens; a companion watchdog
    restarts the service on sustained parser desync.
  - Configure via file (~/.gnsship/config.toml), GNSSHIP_* environment
    variables, or flags.
`

var longHelp = strings.TrimSpace(helpBanner) + "\n\n" + strings.TrimSpace(helpDescription)

var exampleUsage = strings.TrimSpace(`
  gnsship --station-id doha-north-01 --auth-key <api-key>
  gnsship --config /etc/gnsship/config.toml
  gnsship --replay capture.raw --station-id bench-01 --auth-key test-key
  gnsship verify --log-root /data/gnss
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string
	var replayPath string
	var replayDelay time.Duration

	log := cliconfig.Logger()

	root := &cobra.Command{
		Use:     "gnsship",
		Short:   "Acquire raw GNSS receiver output and ship it for ionospheric monitoring",
		Long:    longHelp,
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Load config file first (default ~/.gnsship/config.toml), then
			// environment, then flag overrides.
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			// Build set of changed flags
			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}

			// Apply environment variables (GNSSHIP_*)
			// These override file config but are overridden by flags
			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}

			// Validate and set derived defaults
			if err := cfg.Validate(); err != nil {
				return err
			}

			// Log configuration (masking the API key)
			logCfg := cfg
			if len(logCfg.AuthKey) > 0 {
				logCfg.AuthKey = "*****"
			}
			log.Info().Interface("config", logCfg).Msg("configuration")

			// Diagnostic logger: console for humans, JSON lines to the file
			// the watchdog scans.
			diagLogger := gnsslog.NewZerologFileAdapter(gnsslog.FileConfig{
				Path:       cfg.DiagLog,
				MaxSizeMB:  cfg.DiagLogMaxSizeMB,
				MaxBackups: cfg.DiagLogMaxBackups,
			}, cfg.LogLevel)

			libCfg := gnsship.Config{
				Device:          cfg.Device,
				BaudRate:        cfg.BaudRate,
				ReadTimeout:     cfg.ReadTimeout,
				LogRoot:         cfg.LogRoot,
				StateDir:        cfg.StateDir,
				IngestURL:       cfg.IngestURL,
				AuthKey:         cfg.AuthKey,
				StationID:       cfg.StationID,
				StationName:     cfg.StationName,
				IsReference:     cfg.IsReference,
				Latitude:        cfg.Latitude,
				Longitude:       cfg.Longitude,
				AntennaHeight:   cfg.AntennaHeight,
				SendInterval:    cfg.SendInterval,
				MaxSendAttempts: cfg.MaxSendAttempts,
				HTTPTimeout:     cfg.HTTPTimeout,
				ConfigPath:      cfgFile,
			}

			opts := []gnsship.Option{
				gnsship.WithLogger(diagLogger),
				// Keep the archive bounded and finalize hours missed while down
				retention.WithDefaultRetention(),
				// Mirror the station config to the collector
				configsync.WithDefaultConfigSync(),
			}
			if replayPath != "" {
				opts = append(opts,
					gnsship.WithByteSource(serial.NewReplaySource(replayPath, replayDelay)))
			}

			node, err := gnsship.New(libCfg, opts...)
			if err != nil {
				return fmt.Errorf("create node: %w", err)
			}

			// Setup signal handling for graceful shutdown
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			if err := node.Start(ctx); err != nil {
				return fmt.Errorf("start node: %w", err)
			}

			// Poll the node: detect a crash promptly and keep a periodic
			// status line in the diagnostic stream.
			doneCh := make(chan struct{})
			go func() {
				ticker := time.NewTicker(100 * time.Millisecond)
				defer ticker.Stop()
				status := time.NewTicker(10 * time.Minute)
				defer status.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-status.C:
						stats := node.Stats()
						diagLogger.Info("node status",
							gnsslog.String("state", stats.State.String()),
							gnsslog.Uint64("nmea_frames", stats.TextFrames),
							gnsslog.Uint64("ubx_frames", stats.BinaryFrames),
							gnsslog.Uint64("rejects", stats.Rejects),
							gnsslog.Int("pending", stats.PendingFrames),
							gnsslog.Uint64("batches_sent", stats.BatchesSent),
							gnsslog.Uint64("batches_dropped", stats.BatchesDropped))
					case <-ticker.C:
						st := node.Status()
						if st == gnsship.StateStopped || st == gnsship.StateCrashed {
							close(doneCh)
							return
						}
					}
				}
			}()

			// Wait for signal or completion
			select {
			case <-sigCh:
				log.Info().Msg("received signal, stopping...")
			case <-doneCh:
				if node.Status() == gnsship.StateCrashed {
					log.Error().Msg("node crashed")
				}
			}

			// Graceful shutdown. A crashed node has nothing left to stop.
			if err := node.Stop(); err != nil && !errors.Is(err, gnsship.ErrNotRunning) {
				return fmt.Errorf("stop node: %w", err)
			}
			if node.Status() == gnsship.StateCrashed {
				// Non-zero exit so the service manager sees the failure.
				return errors.New("node crashed")
			}
			return nil
		},
	}

	// Flags
	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: ~/.gnsship/config.toml)")
	root.Flags().StringVar(&cfg.StationID, "station-id", cfg.StationID, "station identifier registered with the collector")
	root.Flags().StringVar(&cfg.StationName, "station-name", cfg.StationName, "human-readable station name (defaults to station-id)")

	root.Flags().StringVar(&cfg.IngestURL, "ingest-url", cfg.IngestURL, "collector ingest endpoint")
	root.Flags().StringVar(&cfg.AuthKey, "auth-key", cfg.AuthKey, "API key for authentication")

	root.Flags().StringVar(&cfg.Device, "device", cfg.Device, "serial device of the GNSS receiver")
	root.Flags().IntVar(&cfg.BaudRate, "baud", cfg.BaudRate, "serial baud rate")
	root.Flags().DurationVar(&cfg.ReadTimeout, "read-timeout", cfg.ReadTimeout, "serial read timeout")

	root.Flags().StringVar(&cfg.LogRoot, "log-root", cfg.LogRoot, "root directory for the raw frame archive")
	root.Flags().StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "state directory for state.json (defaults to log-root)")
	if err := root.Flags().MarkHidden("state-dir"); err != nil {
		log.Info().Err(err).Msg("failed to hide state-dir flag")
	}

	root.Flags().DurationVar(&cfg.SendInterval, "send-interval", cfg.SendInterval, "batch send interval")
	root.Flags().IntVar(&cfg.MaxSendAttempts, "max-send-attempts", cfg.MaxSendAttempts, "send attempts per batch before dropping it")
	root.Flags().DurationVar(&cfg.HTTPTimeout, "timeout", cfg.HTTPTimeout, "HTTP timeout")

	root.Flags().BoolVar(&cfg.IsReference, "reference", cfg.IsReference, "station has a surveyed position")
	root.Flags().Float64Var(&cfg.Latitude, "latitude", cfg.Latitude, "surveyed latitude in decimal degrees")
	root.Flags().Float64Var(&cfg.Longitude, "longitude", cfg.Longitude, "surveyed longitude in decimal degrees")
	root.Flags().Float64Var(&cfg.AntennaHeight, "antenna-height", cfg.AntennaHeight, "antenna height in meters")

	root.Flags().StringVar(&cfg.DiagLog, "diag-log", cfg.DiagLog, "diagnostic log file scanned by the watchdog")
	root.Flags().IntVar(&cfg.DiagLogMaxSizeMB, "diag-log-max-size", cfg.DiagLogMaxSizeMB, "diagnostic log rotation size in MB")
	root.Flags().IntVar(&cfg.DiagLogMaxBackups, "diag-log-max-backups", cfg.DiagLogMaxBackups, "rotated diagnostic logs to keep")
	root.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")

	root.Flags().StringVar(&replayPath, "replay", "", "replay a raw capture file instead of opening the serial device (debug)")
	root.Flags().DurationVar(&replayDelay, "replay-delay", 0, "pacing delay between replay reads (debug)")

	root.AddCommand(newVerifyCmd(&cfg, &cfgPath))
	root.AddCommand(newVersionCmd())

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("gnsship")
		os.Exit(1)
	}
}

// newVerifyCmd builds the archive verification subcommand. It recomputes
// the SHA-256 of every compressed bucket under the log root and compares it
// against the recorded sidecar.
func newVerifyCmd(cfg *cliconfig.Config, cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify archive checksums under the log root",
		Long: strings.TrimSpace(`
Walks the raw frame archive, recomputes the SHA-256 of every compressed
bucket and compares it against the recorded .sha256 sidecar. Exits non-zero
if any archive fails verification.`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := *cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(cfg, fc, changed); err != nil {
					return err
				}
			}
			if err := cliconfig.ApplyEnvConfig(cfg, changed); err != nil {
				return err
			}
			if cfg.LogRoot == "" {
				return errors.New("log-root is required")
			}

			archives, err := fs.CompressedBuckets(cfg.LogRoot)
			if err != nil {
				return fmt.Errorf("walk archive: %w", err)
			}

			bad := 0
			for _, zst := range archives {
				if err := fs.VerifyBucket(zst); err != nil {
					fmt.Fprintln(os.Stderr, err)
					bad++
				}
			}

			fmt.Printf("verified %d archives under %s, %d bad\n",
				len(archives)-bad, cfg.LogRoot, bad)
			if bad > 0 {
				return fmt.Errorf("%d corrupt archives", bad)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(cfgPath, "config", "", "path to config file (default: ~/.gnsship/config.toml)")
	cmd.Flags().StringVar(&cfg.LogRoot, "log-root", cfg.LogRoot, "root directory for the raw frame archive")

	return cmd
}

// newVersionCmd reports the binary and module versions.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("gnsship %s %s/%s\n", getVersion(), runtime.GOOS, runtime.GOARCH)

			versions := gnsship.ModuleVersions()
			names := make([]string, 0, len(versions))
			for name := range versions {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Printf("  %s: %s\n", name, versions[name])
			}
		},
	}
}
