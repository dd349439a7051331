package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/benbjohnson/clock"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/gnsship/internal/cliconfig"
	"github.com/bft-labs/gnsship/internal/watchdog"
	gnsslog "github.com/bft-labs/gnsship/pkg/log"
)

var longHelp = strings.TrimSpace(`
Out-of-band companion for the gnsship acquisition service.

The daemon handles receiver flaps and collector outages on its own, but a
parser wedged on garbage input only shows up as diagnostics in its log.
This binary watches from outside the process and asks systemd to restart
it, so a stuck station recovers without a field visit.

Both commands run a single pass and exit; schedule them from systemd
timers.`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	log := cliconfig.Logger()

	root := &cobra.Command{
		Use:     "gnsship-watchdog",
		Short:   "Out-of-band watchdog for the gnsship service",
		Long:    longHelp,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		Example: strings.TrimSpace(`
  gnsship-watchdog check --config /etc/gnsship/config.toml
  gnsship-watchdog recover --probe-addr collector.example.org:443`),
	}

	// Shared by check and recover. The watchdog reads the same config file
	// as the daemon so unit names, log paths and thresholds stay in sync.
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (default: ~/.gnsship/config.toml)")
	root.PersistentFlags().StringVar(&cfg.DiagLog, "diag-log", cfg.DiagLog, "diagnostic log file written by the daemon")
	root.PersistentFlags().StringVar(&cfg.ServiceUnit, "service-unit", cfg.ServiceUnit, "systemd unit of the acquisition service")
	root.PersistentFlags().StringVar(&cfg.TimerUnit, "timer-unit", cfg.TimerUnit, "systemd timer unit driving the desync check")
	root.PersistentFlags().StringVar(&cfg.IngestURL, "ingest-url", cfg.IngestURL, "collector ingest endpoint (derives probe-addr)")
	root.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Restart the service on sustained parser desync",
		Long: strings.TrimSpace(`
Counts "frame too large" diagnostics in the trailing window of the daemon's
log. A count above the threshold means the parser has been stuck
resynchronizing for a while, so the service is restarted once and its unit
state verified. At or below the threshold nothing happens.`),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applyConfig(cmd, &cfg, cfgPath); err != nil {
				return err
			}
			if err := cfg.ValidateWatchdog(); err != nil {
				return err
			}
			logger := gnsslog.NewZerologFileAdapter(gnsslog.FileConfig{}, cfg.LogLevel)

			ctx := cmd.Context()
			ctl, err := watchdog.NewDBusController(ctx)
			if err != nil {
				return err
			}
			defer ctl.Close()

			mon := watchdog.NewMonitor(watchdog.MonitorConfig{
				DiagLog:   cfg.DiagLog,
				Unit:      cfg.ServiceUnit,
				Window:    cfg.WatchWindow,
				Threshold: cfg.WatchThreshold,
			}, ctl, logger, clock.New())
			return mon.Check(ctx)
		},
	}
	checkCmd.Flags().DurationVar(&cfg.WatchWindow, "window", cfg.WatchWindow, "trailing window scanned for desync events")
	checkCmd.Flags().IntVar(&cfg.WatchThreshold, "threshold", cfg.WatchThreshold, "desync events that must be exceeded to restart")

	recoverCmd := &cobra.Command{
		Use:   "recover",
		Short: "Restart failed units once the collector is reachable",
		Long: strings.TrimSpace(`
Probes the collector with a TCP dial. If it answers, any configured unit in
the systemd "failed" state is restarted, including this watchdog's own
timer. While the collector is unreachable the command does nothing, so a
long outage never turns into a restart storm.`),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applyConfig(cmd, &cfg, cfgPath); err != nil {
				return err
			}
			if err := cfg.ValidateWatchdog(); err != nil {
				return err
			}
			logger := gnsslog.NewZerologFileAdapter(gnsslog.FileConfig{}, cfg.LogLevel)

			ctx := cmd.Context()
			ctl, err := watchdog.NewDBusController(ctx)
			if err != nil {
				return err
			}
			defer ctl.Close()

			units := []string{cfg.ServiceUnit}
			if cfg.TimerUnit != "" {
				units = append(units, cfg.TimerUnit)
			}
			rec := watchdog.NewRecoverer(watchdog.RecovererConfig{
				ProbeAddr:    cfg.ProbeAddr,
				ProbeTimeout: cfg.ProbeTimeout,
				Units:        units,
			}, ctl, logger)
			return rec.Recover(ctx)
		},
	}
	recoverCmd.Flags().StringVar(&cfg.ProbeAddr, "probe-addr", cfg.ProbeAddr, "host:port probed for reachability (default: derived from ingest-url)")
	recoverCmd.Flags().DurationVar(&cfg.ProbeTimeout, "probe-timeout", cfg.ProbeTimeout, "reachability probe timeout")

	root.AddCommand(checkCmd, recoverCmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("gnsship-watchdog")
		os.Exit(1)
	}
}

// applyConfig layers the config file and environment under any flags the
// user set explicitly.
func applyConfig(cmd *cobra.Command, cfg *cliconfig.Config, cfgPath string) error {
	cfgFile := cfgPath
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
	return cliconfig.ApplyEnvConfig(cfg, changed)
}
