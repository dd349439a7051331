package cliconfig

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// DefaultIngestURL is the default collector endpoint for shipping batches.
const DefaultIngestURL = "http://localhost:8000/api/v1/ingest"

// Config holds CLI configuration shared by the gnsship daemon and the
// gnsship-watchdog companion. Both binaries read the same file so unit
// names, log paths and thresholds stay in one place.
type Config struct {
	StationID   string
	StationName string

	IngestURL string
	AuthKey   string

	Device      string
	BaudRate    int
	ReadTimeout time.Duration

	LogRoot  string
	StateDir string

	SendInterval    time.Duration
	HTTPTimeout     time.Duration
	MaxSendAttempts int

	IsReference   bool
	Latitude      float64
	Longitude     float64
	AntennaHeight float64

	DiagLog           string
	DiagLogMaxSizeMB  int
	DiagLogMaxBackups int
	LogLevel          string

	// Watchdog settings, consumed by gnsship-watchdog.
	WatchWindow    time.Duration
	WatchThreshold int
	ServiceUnit    string
	TimerUnit      string
	ProbeAddr      string
	ProbeTimeout   time.Duration
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		IngestURL:         DefaultIngestURL,
		AuthKey:           os.Getenv("GNSSHIP_AUTH_KEY"),
		Device:            "/dev/ttyAMA0",
		BaudRate:          115200,
		ReadTimeout:       200 * time.Millisecond,
		LogRoot:           "/data/gnss",
		StateDir:          "", // Derived from LogRoot during Validate
		SendInterval:      time.Second,
		HTTPTimeout:       10 * time.Second,
		MaxSendAttempts:   5,
		IsReference:       true,
		Latitude:          25.2731,
		Longitude:         51.6080,
		AntennaHeight:     10.5,
		DiagLog:           "/var/log/gnsship/gnsship.log",
		DiagLogMaxSizeMB:  50,
		DiagLogMaxBackups: 3,
		LogLevel:          "info",
		WatchWindow:       10 * time.Minute,
		WatchThreshold:    10,
		ServiceUnit:       "gnsship.service",
		TimerUnit:         "gnsship-watchdog.timer",
		ProbeAddr:         "", // Derived from IngestURL during Validate
		ProbeTimeout:      5 * time.Second,
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.StationID == "" {
		return fmt.Errorf("station-id is required")
	}
	if c.AuthKey == "" {
		return fmt.Errorf("auth-key is required")
	}
	if c.StationName == "" {
		c.StationName = c.StationID
	}

	if c.IngestURL == "" {
		c.IngestURL = DefaultIngestURL
	}
	u, err := url.Parse(c.IngestURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("ingest-url %q is not a valid URL", c.IngestURL)
	}

	if c.Device == "" {
		return fmt.Errorf("device is required")
	}
	if c.BaudRate <= 0 {
		return fmt.Errorf("baud rate must be positive")
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}

	if c.LogRoot == "" {
		return fmt.Errorf("log-root is required")
	}
	if c.StateDir == "" {
		c.StateDir = c.LogRoot
	}

	if c.SendInterval <= 0 {
		return fmt.Errorf("send interval must be positive")
	}
	if c.MaxSendAttempts <= 0 {
		return fmt.Errorf("max send attempts must be positive")
	}

	if c.ProbeAddr == "" {
		c.ProbeAddr = probeAddrFor(u)
	}

	return nil
}

// ValidateWatchdog checks the subset of the configuration the watchdog
// binary consumes and sets derived defaults. The watchdog shares the
// daemon's config file but needs no station identity, credentials or
// serial settings.
func (c *Config) ValidateWatchdog() error {
	if c.DiagLog == "" {
		return fmt.Errorf("diag-log is required")
	}
	if c.ServiceUnit == "" {
		return fmt.Errorf("service-unit is required")
	}
	if c.WatchWindow <= 0 {
		return fmt.Errorf("window must be positive")
	}
	if c.WatchThreshold <= 0 {
		return fmt.Errorf("threshold must be positive")
	}
	if c.ProbeTimeout <= 0 {
		return fmt.Errorf("probe-timeout must be positive")
	}

	if c.ProbeAddr == "" {
		if c.IngestURL == "" {
			c.IngestURL = DefaultIngestURL
		}
		u, err := url.Parse(c.IngestURL)
		if err != nil || u.Host == "" {
			return fmt.Errorf("ingest-url %q is not a valid URL", c.IngestURL)
		}
		c.ProbeAddr = probeAddrFor(u)
	}

	return nil
}

// probeAddrFor derives the host:port the watchdog dials to confirm the
// collector is reachable.
func probeAddrFor(u *url.URL) string {
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		if u.Scheme == "https" {
			port = "443"
		} else {
			port = "80"
		}
	}
	return host + ":" + port
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setFloat sets a float64 value from a pointer if not nil and flag not
// changed. The pointer form keeps zero and negative coordinates settable.
func (s *configSetter) setFloat(flag string, value *float64, dst *float64) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setFloatFromString parses a string to float64 and sets the destination.
// Any finite value is accepted; coordinates may be zero or negative.
// Used for environment variables that come as strings.
func (s *configSetter) setFloatFromString(flag, value string, dst *float64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = f
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
// Used for environment variables that come as strings.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
