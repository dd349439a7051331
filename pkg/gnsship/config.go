package gnsship

import (
	"fmt"
	"net/url"
	"time"
)

// Default configuration values.
const (
	// DefaultDevice is the serial device a Raspberry Pi HAT receiver
	// shows up on.
	DefaultDevice = "/dev/ttyAMA0"

	// DefaultBaudRate matches the receiver's configured UART rate.
	DefaultBaudRate = 115200

	// DefaultReadTimeout bounds how long a quiet line blocks the read
	// loop, which also bounds how late a shutdown can be observed.
	DefaultReadTimeout = 200 * time.Millisecond

	// DefaultIngestURL is the default collector endpoint.
	DefaultIngestURL = "http://localhost:8000/api/v1/ingest"

	// DefaultHTTPTimeout bounds a single send attempt.
	DefaultHTTPTimeout = 10 * time.Second
)

// Config holds the configuration for an acquisition node.
// Zero values for the tuning knobs (send interval, retry policy, frame
// size bounds, reopen policy) fall back to internal defaults.
type Config struct {
	// Device is the serial device path the receiver is attached to.
	Device string

	// BaudRate is the UART rate in bits per second.
	BaudRate int

	// ReadTimeout bounds a single blocking read on a quiet line.
	ReadTimeout time.Duration

	// LogRoot is the directory raw frames are archived under,
	// partitioned as {root}/YYYY/MM/DD/HH. Required.
	LogRoot string

	// StateDir is the directory the sender state file lives in.
	// Defaults to LogRoot.
	StateDir string

	// IngestURL is the collector endpoint batches are shipped to.
	IngestURL string

	// AuthKey is the collector API key. Required.
	AuthKey string

	// StationID uniquely identifies this station. Required.
	StationID string

	// StationName is the human-readable station name.
	// Defaults to StationID.
	StationName string

	// IsReference marks a surveyed reference station. Reference stations
	// include their surveyed position in every batch payload.
	IsReference bool

	// Latitude, Longitude and AntennaHeight are the surveyed position.
	// Only meaningful when IsReference is set.
	Latitude      float64
	Longitude     float64
	AntennaHeight float64

	// SendInterval is the batch flush cadence. Zero means the internal
	// default (1s).
	SendInterval time.Duration

	// MaxSendAttempts bounds delivery attempts per batch before it is
	// dropped. Zero means the internal default (5).
	MaxSendAttempts int

	// SendBackoffInitial and SendBackoffMax bound the exponential wait
	// between send attempts. Zero means the internal defaults.
	SendBackoffInitial time.Duration
	SendBackoffMax     time.Duration

	// HTTPTimeout bounds a single HTTP request. Only used when no custom
	// HTTP client is injected.
	HTTPTimeout time.Duration

	// MaxBinaryBytes and MaxSentenceBytes bound accepted frame sizes in
	// the demultiplexer. Zero means the protocol defaults.
	MaxBinaryBytes   int
	MaxSentenceBytes int

	// StuckThreshold is the consecutive-oversize count that forces a
	// parser resync. Zero means the internal default.
	StuckThreshold int

	// ReadBufSize is the chunk buffer handed to the byte source.
	// Zero means the internal default.
	ReadBufSize int

	// MaxReopenAttempts bounds device recovery before the node crashes.
	// Zero means the internal default.
	MaxReopenAttempts int

	// ReopenBackoffInitial and ReopenBackoffMax bound the wait between
	// device reopen attempts. Zero means the internal defaults.
	ReopenBackoffInitial time.Duration
	ReopenBackoffMax     time.Duration

	// ConfigPath is the station config file path, forwarded to plugins
	// that watch or upload it. Optional.
	ConfigPath string
}

// SetDefaults fills in default values for unset fields.
func (c *Config) SetDefaults() {
	if c.Device == "" {
		c.Device = DefaultDevice
	}
	if c.BaudRate <= 0 {
		c.BaudRate = DefaultBaudRate
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.StateDir == "" {
		c.StateDir = c.LogRoot
	}
	if c.IngestURL == "" {
		c.IngestURL = DefaultIngestURL
	}
	if c.StationName == "" {
		c.StationName = c.StationID
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = DefaultHTTPTimeout
	}
}

// Validate checks the configuration for errors.
// Call SetDefaults first; Validate does not fill in defaults.
func (c *Config) Validate() error {
	if c.StationID == "" {
		return fmt.Errorf("%w: StationID is required", ErrInvalidConfig)
	}
	if c.AuthKey == "" {
		return fmt.Errorf("%w: AuthKey is required", ErrInvalidConfig)
	}
	if c.LogRoot == "" {
		return fmt.Errorf("%w: LogRoot is required", ErrInvalidConfig)
	}
	if c.Device == "" {
		return fmt.Errorf("%w: Device is required", ErrInvalidConfig)
	}
	if c.BaudRate <= 0 {
		return fmt.Errorf("%w: BaudRate must be positive", ErrInvalidConfig)
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("%w: ReadTimeout must be positive", ErrInvalidConfig)
	}
	u, err := url.Parse(c.IngestURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("%w: IngestURL %q is not a valid URL", ErrInvalidConfig, c.IngestURL)
	}
	return nil
}
