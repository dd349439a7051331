package watchdog

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/bft-labs/gnsship/internal/domain"
	"github.com/bft-labs/gnsship/internal/ports"
)

// Defaults for the desync check.
const (
	DefaultWindow         = 10 * time.Minute
	DefaultThreshold      = 10
	DefaultVerifyAttempts = 5
	DefaultVerifyInterval = time.Second
)

// MonitorConfig configures one desync check pass.
type MonitorConfig struct {
	// DiagLog is the daemon's JSON diagnostic log file.
	DiagLog string

	// Unit is the systemd unit restarted on sustained desync.
	Unit string

	// Window is the trailing interval scanned for desync events.
	Window time.Duration

	// Threshold is the event count that must be exceeded before a
	// restart is issued.
	Threshold int

	// VerifyAttempts and VerifyInterval control how long the monitor
	// polls the unit state after a restart before declaring failure.
	VerifyAttempts int
	VerifyInterval time.Duration
}

// Monitor counts desync diagnostics in the daemon's log and restarts
// the ingest unit when the parser appears stuck. It keeps no state
// between invocations; every run recomputes the window from the log.
type Monitor struct {
	cfg    MonitorConfig
	ctl    Controller
	logger ports.Logger
	clk    clock.Clock
}

// NewMonitor creates a Monitor. Zero config fields fall back to the
// package defaults.
func NewMonitor(cfg MonitorConfig, ctl Controller, logger ports.Logger, clk clock.Clock) *Monitor {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.VerifyAttempts <= 0 {
		cfg.VerifyAttempts = DefaultVerifyAttempts
	}
	if cfg.VerifyInterval <= 0 {
		cfg.VerifyInterval = DefaultVerifyInterval
	}
	return &Monitor{cfg: cfg, ctl: ctl, logger: logger, clk: clk}
}

// diagLine is the subset of a zerolog JSON line the monitor reads.
type diagLine struct {
	Time    string `json:"time"`
	Message string `json:"message"`
}

// Check runs one pass: count desync events inside the window, restart
// the unit if the count exceeds the threshold, and verify the unit
// came back active. A count at or below the threshold is a no-op.
func (m *Monitor) Check(ctx context.Context) error {
	count, err := m.countDesyncEvents()
	if err != nil {
		return err
	}

	m.logger.Info("desync check",
		ports.Int("events", count),
		ports.Int("threshold", m.cfg.Threshold),
		ports.Duration("window", m.cfg.Window),
	)

	if count <= m.cfg.Threshold {
		return nil
	}

	m.logger.Warn("desync threshold exceeded, restarting service",
		ports.String("unit", m.cfg.Unit),
		ports.Int("events", count),
	)

	if err := m.ctl.Restart(ctx, m.cfg.Unit); err != nil {
		m.logger.Error("restart failed",
			ports.String("unit", m.cfg.Unit),
			ports.Err(err),
		)
		return err
	}
	if err := m.verifyActive(ctx); err != nil {
		m.logger.Error("unit did not come back active",
			ports.String("unit", m.cfg.Unit),
			ports.Err(err),
		)
		return err
	}

	m.logger.Info("service restarted", ports.String("unit", m.cfg.Unit))
	return nil
}

// countDesyncEvents scans the diagnostic log for the desync signature
// inside the trailing window. A missing log file counts as zero events:
// no diagnostics means no evidence of desync.
func (m *Monitor) countDesyncEvents() (int, error) {
	f, err := os.Open(m.cfg.DiagLog)
	if err != nil {
		if os.IsNotExist(err) {
			m.logger.Warn("diagnostic log missing, nothing to check",
				ports.String("path", m.cfg.DiagLog))
			return 0, nil
		}
		return 0, fmt.Errorf("open diagnostic log: %w", err)
	}
	defer f.Close()

	cutoff := m.clk.Now().Add(-m.cfg.Window)
	signature := []byte(domain.SignatureFrameTooLarge)

	count := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		// Cheap pre-filter before paying for JSON decode.
		if !bytes.Contains(line, signature) {
			continue
		}
		var entry diagLine
		if err := json.Unmarshal(line, &entry); err != nil {
			// Torn line at a rotation boundary.
			continue
		}
		if !strings.Contains(entry.Message, domain.SignatureFrameTooLarge) {
			continue
		}
		ts, err := time.Parse(time.RFC3339, entry.Time)
		if err != nil {
			continue
		}
		if ts.Before(cutoff) {
			continue
		}
		count++
	}
	if err := sc.Err(); err != nil {
		return 0, fmt.Errorf("scan diagnostic log: %w", err)
	}
	return count, nil
}

// verifyActive polls the unit state until it reports active or the
// attempt budget runs out.
func (m *Monitor) verifyActive(ctx context.Context) error {
	var (
		state string
		err   error
	)
	for attempt := 1; attempt <= m.cfg.VerifyAttempts; attempt++ {
		state, err = m.ctl.ActiveState(ctx, m.cfg.Unit)
		if err == nil && state == "active" {
			return nil
		}
		if attempt < m.cfg.VerifyAttempts {
			m.clk.Sleep(m.cfg.VerifyInterval)
		}
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("unit %s is %q after restart", m.cfg.Unit, state)
}
