package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML
// friendly, and pointers where the zero value is meaningful (coordinates,
// booleans).
type FileConfig struct {
	StationID   string `toml:"station_id"`
	StationName string `toml:"station_name"`

	IngestURL string `toml:"ingest_url"`
	AuthKey   string `toml:"auth_key"`

	Device      string `toml:"device"`
	BaudRate    int    `toml:"baud_rate"`
	ReadTimeout string `toml:"read_timeout"`

	LogRoot  string `toml:"log_root"`
	StateDir string `toml:"state_dir"`

	SendInterval    string `toml:"send_interval"`
	HTTPTimeout     string `toml:"http_timeout"`
	MaxSendAttempts int    `toml:"max_send_attempts"`

	IsReference   *bool    `toml:"reference"`
	Latitude      *float64 `toml:"latitude"`
	Longitude     *float64 `toml:"longitude"`
	AntennaHeight *float64 `toml:"antenna_height"`

	DiagLog           string `toml:"diag_log"`
	DiagLogMaxSizeMB  int    `toml:"diag_log_max_size_mb"`
	DiagLogMaxBackups int    `toml:"diag_log_max_backups"`
	LogLevel          string `toml:"log_level"`

	WatchWindow    string `toml:"watch_window"`
	WatchThreshold int    `toml:"watch_threshold"`
	ServiceUnit    string `toml:"service_unit"`
	TimerUnit      string `toml:"timer_unit"`
	ProbeAddr      string `toml:"probe_addr"`
	ProbeTimeout   string `toml:"probe_timeout"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.gnsship/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".gnsship", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("station-id", fc.StationID, &cfg.StationID)
	s.setString("station-name", fc.StationName, &cfg.StationName)
	s.setString("ingest-url", fc.IngestURL, &cfg.IngestURL)
	s.setString("auth-key", fc.AuthKey, &cfg.AuthKey)
	s.setString("device", fc.Device, &cfg.Device)
	s.setString("log-root", fc.LogRoot, &cfg.LogRoot)
	s.setString("state-dir", fc.StateDir, &cfg.StateDir)
	s.setString("diag-log", fc.DiagLog, &cfg.DiagLog)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("service-unit", fc.ServiceUnit, &cfg.ServiceUnit)
	s.setString("timer-unit", fc.TimerUnit, &cfg.TimerUnit)
	s.setString("probe-addr", fc.ProbeAddr, &cfg.ProbeAddr)

	s.setInt("baud", fc.BaudRate, &cfg.BaudRate)
	s.setInt("max-send-attempts", fc.MaxSendAttempts, &cfg.MaxSendAttempts)
	s.setInt("diag-log-max-size", fc.DiagLogMaxSizeMB, &cfg.DiagLogMaxSizeMB)
	s.setInt("diag-log-max-backups", fc.DiagLogMaxBackups, &cfg.DiagLogMaxBackups)
	s.setInt("threshold", fc.WatchThreshold, &cfg.WatchThreshold)

	if err := s.setDuration("read-timeout", fc.ReadTimeout, &cfg.ReadTimeout); err != nil {
		return err
	}
	if err := s.setDuration("send-interval", fc.SendInterval, &cfg.SendInterval); err != nil {
		return err
	}
	if err := s.setDuration("timeout", fc.HTTPTimeout, &cfg.HTTPTimeout); err != nil {
		return err
	}
	if err := s.setDuration("window", fc.WatchWindow, &cfg.WatchWindow); err != nil {
		return err
	}
	if err := s.setDuration("probe-timeout", fc.ProbeTimeout, &cfg.ProbeTimeout); err != nil {
		return err
	}

	s.setFloat("latitude", fc.Latitude, &cfg.Latitude)
	s.setFloat("longitude", fc.Longitude, &cfg.Longitude)
	s.setFloat("antenna-height", fc.AntennaHeight, &cfg.AntennaHeight)

	s.setBool("reference", fc.IsReference, &cfg.IsReference)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
