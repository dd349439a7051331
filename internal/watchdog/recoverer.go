package watchdog

import (
	"context"
	"net"
	"time"

	"github.com/bft-labs/gnsship/internal/ports"
)

// DefaultProbeTimeout bounds the reachability probe.
const DefaultProbeTimeout = 5 * time.Second

// RecovererConfig configures the network-aware recovery pass.
type RecovererConfig struct {
	// ProbeAddr is the host:port dialed to confirm reachability,
	// normally the collector endpoint.
	ProbeAddr string

	// ProbeTimeout bounds the dial.
	ProbeTimeout time.Duration

	// Units are checked in order; any unit in the "failed" state is
	// restarted.
	Units []string
}

// Recoverer restarts failed units once the collector is reachable
// again. While the network is down it does nothing, so a long outage
// never turns into a restart storm.
type Recoverer struct {
	cfg    RecovererConfig
	ctl    Controller
	logger ports.Logger
	probe  func(addr string, timeout time.Duration) error
}

// NewRecoverer creates a Recoverer that probes with a plain TCP dial.
func NewRecoverer(cfg RecovererConfig, ctl Controller, logger ports.Logger) *Recoverer {
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}
	return &Recoverer{cfg: cfg, ctl: ctl, logger: logger, probe: tcpProbe}
}

func tcpProbe(addr string, timeout time.Duration) error {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return err
	}
	return conn.Close()
}

// Recover probes the collector and restarts any configured unit found
// in the failed state. An unreachable collector is a no-op, not an
// error.
func (r *Recoverer) Recover(ctx context.Context) error {
	if err := r.probe(r.cfg.ProbeAddr, r.cfg.ProbeTimeout); err != nil {
		r.logger.Info("collector unreachable, skipping recovery",
			ports.String("addr", r.cfg.ProbeAddr),
			ports.Err(err),
		)
		return nil
	}

	var firstErr error
	for _, unit := range r.cfg.Units {
		state, err := r.ctl.ActiveState(ctx, unit)
		if err != nil {
			r.logger.Warn("state query failed",
				ports.String("unit", unit),
				ports.Err(err),
			)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if state != "failed" {
			r.logger.Debug("unit healthy",
				ports.String("unit", unit),
				ports.String("state", state),
			)
			continue
		}

		r.logger.Warn("restarting failed unit", ports.String("unit", unit))
		if err := r.ctl.Restart(ctx, unit); err != nil {
			r.logger.Error("restart failed",
				ports.String("unit", unit),
				ports.Err(err),
			)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		r.logger.Info("unit restarted", ports.String("unit", unit))
	}
	return firstErr
}
