package watchdog

import (
	"context"
	"fmt"

	"github.com/coreos/go-systemd/v22/dbus"
)

// Controller is the process-control surface the watchdog is allowed to
// use. It is deliberately narrow: restart a unit and query its active
// state, nothing else. Tests substitute a fake; production uses
// [DBusController].
type Controller interface {
	// Restart restarts the named unit and blocks until systemd reports
	// the job finished.
	Restart(ctx context.Context, unit string) error

	// ActiveState returns the unit's ActiveState property, e.g.
	// "active", "failed", "activating".
	ActiveState(ctx context.Context, unit string) (string, error)

	// Close releases the underlying connection.
	Close()
}

// DBusController drives systemd through its D-Bus manager API.
type DBusController struct {
	conn *dbus.Conn
}

// NewDBusController connects to the systemd manager on the system bus.
func NewDBusController(ctx context.Context) (*DBusController, error) {
	conn, err := dbus.NewWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect to systemd: %w", err)
	}
	return &DBusController{conn: conn}, nil
}

// Restart issues a restart job in "replace" mode and waits for the job
// result. Any result other than "done" is an error.
func (c *DBusController) Restart(ctx context.Context, unit string) error {
	statusCh := make(chan string, 1)
	if _, err := c.conn.RestartUnitContext(ctx, unit, "replace", statusCh); err != nil {
		return fmt.Errorf("dbus restart request for %s: %w", unit, err)
	}
	select {
	case status := <-statusCh:
		if status != "done" {
			return fmt.Errorf("restart %s finished with status %q", unit, status)
		}
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// ActiveState queries the unit's ActiveState property.
func (c *DBusController) ActiveState(ctx context.Context, unit string) (string, error) {
	prop, err := c.conn.GetUnitPropertyContext(ctx, unit, "ActiveState")
	if err != nil {
		return "", fmt.Errorf("query ActiveState of %s: %w", unit, err)
	}
	state, ok := prop.Value.Value().(string)
	if !ok {
		return "", fmt.Errorf("ActiveState of %s is not a string", unit)
	}
	return state, nil
}

// Close closes the D-Bus connection.
func (c *DBusController) Close() {
	c.conn.Close()
}
