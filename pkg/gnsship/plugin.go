package gnsship

import "context"

// Plugin extends a Node with optional functionality such as archive
// retention or config synchronization. Plugins are initialized in
// registration order when the node starts and shut down in reverse order
// when it stops.
type Plugin interface {
	// Name returns a short identifier used in log messages.
	Name() string

	// Initialize is called when the node starts. The context is the run
	// context: it is canceled when the node stops, so plugins may hang
	// background goroutines off it. Returning an error aborts startup.
	Initialize(ctx context.Context, cfg PluginConfig) error

	// Shutdown is called when the node stops, after the acquisition
	// workers have drained.
	Shutdown(ctx context.Context) error
}

// PluginConfig carries the node's effective configuration into plugins.
type PluginConfig struct {
	// LogRoot is the raw archive root directory.
	LogRoot string

	// StateDir is the directory holding the sender state file.
	StateDir string

	// IngestURL is the collector endpoint batches are shipped to.
	IngestURL string

	// StationID and StationName identify this station.
	StationID   string
	StationName string

	// AuthKey is the collector API key.
	AuthKey string

	// ConfigPath is the station config file the daemon was started with.
	// Empty when no config file is in use.
	ConfigPath string

	// Logger is the node's logger.
	Logger Logger
}

// BasePlugin provides default implementations of the Plugin interface.
// Embed it and override the methods you need.
type BasePlugin struct {
	name string
}

// NewBasePlugin creates a BasePlugin with the given name.
func NewBasePlugin(name string) BasePlugin {
	return BasePlugin{name: name}
}

// Name returns the plugin name.
func (p BasePlugin) Name() string { return p.name }

// Initialize is a no-op.
func (p BasePlugin) Initialize(ctx context.Context, cfg PluginConfig) error { return nil }

// Shutdown is a no-op.
func (p BasePlugin) Shutdown(ctx context.Context) error { return nil }
