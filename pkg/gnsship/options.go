package gnsship

import (
	"net/http"

	"github.com/benbjohnson/clock"

	"github.com/bft-labs/gnsship/internal/ports"
	"github.com/bft-labs/gnsship/pkg/log"
)

// HTTPClient is the interface for making HTTP requests.
// *http.Client satisfies this interface.
type HTTPClient = ports.HTTPClient

// Logger is the interface for structured logging. It aliases
// github.com/bft-labs/gnsship/pkg/log.Logger.
type Logger = log.Logger

// LogField represents a structured log field.
type LogField = log.Field

// ByteSource is the interface a receiver byte stream must satisfy.
// The default implementation wraps the configured serial device.
type ByteSource = ports.ByteSource

// Option configures optional behavior of a Node.
type Option func(*options)

// options holds the optional configuration for a Node.
type options struct {
	httpClient   ports.HTTPClient
	logger       ports.Logger
	eventHandler EventHandler
	plugins      []Plugin
	source       ports.ByteSource
	clock        clock.Clock
}

// defaultOptions returns options with sensible defaults.
func defaultOptions(client *http.Client) options {
	return options{
		httpClient: client,
		logger:     log.NewNoopLogger(),
		clock:      clock.New(),
	}
}

// WithHTTPClient sets a custom HTTP client for collector communication.
// If not provided, a default client with the configured timeout is used.
func WithHTTPClient(client HTTPClient) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithEventHandler sets a handler for node events.
// Events are called synchronously from the acquisition goroutines.
// If not provided, no events are emitted.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithPlugin registers a plugin to be initialized when the node starts.
// Plugins are initialized in registration order and shut down in reverse
// order. For built-in plugins, use their package options such as
// retention.WithRetention() or configsync.WithConfigSync().
func WithPlugin(plugin Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, plugin)
	}
}

// WithByteSource replaces the serial device with a custom byte source.
// Used for replaying captured streams and for testing without hardware.
func WithByteSource(source ByteSource) Option {
	return func(o *options) {
		o.source = source
	}
}

// WithClock replaces the wall clock driving rotation and send timing.
// Used in tests.
func WithClock(clk clock.Clock) Option {
	return func(o *options) {
		o.clock = clk
	}
}
