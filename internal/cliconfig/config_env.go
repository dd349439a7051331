package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (GNSSHIP_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("station-id", os.Getenv("GNSSHIP_STATION_ID"), &cfg.StationID)
	s.setString("station-name", os.Getenv("GNSSHIP_STATION_NAME"), &cfg.StationName)
	s.setString("ingest-url", os.Getenv("GNSSHIP_INGEST_URL"), &cfg.IngestURL)
	s.setString("auth-key", os.Getenv("GNSSHIP_AUTH_KEY"), &cfg.AuthKey)
	s.setString("device", os.Getenv("GNSSHIP_DEVICE"), &cfg.Device)
	s.setString("log-root", os.Getenv("GNSSHIP_LOG_ROOT"), &cfg.LogRoot)
	s.setString("state-dir", os.Getenv("GNSSHIP_STATE_DIR"), &cfg.StateDir)
	s.setString("diag-log", os.Getenv("GNSSHIP_DIAG_LOG"), &cfg.DiagLog)
	s.setString("log-level", os.Getenv("GNSSHIP_LOG_LEVEL"), &cfg.LogLevel)
	s.setString("service-unit", os.Getenv("GNSSHIP_SERVICE_UNIT"), &cfg.ServiceUnit)
	s.setString("timer-unit", os.Getenv("GNSSHIP_TIMER_UNIT"), &cfg.TimerUnit)
	s.setString("probe-addr", os.Getenv("GNSSHIP_PROBE_ADDR"), &cfg.ProbeAddr)

	if err := s.setDuration("read-timeout", os.Getenv("GNSSHIP_READ_TIMEOUT"), &cfg.ReadTimeout); err != nil {
		return err
	}
	if err := s.setDuration("send-interval", os.Getenv("GNSSHIP_SEND_INTERVAL"), &cfg.SendInterval); err != nil {
		return err
	}
	if err := s.setDuration("timeout", os.Getenv("GNSSHIP_HTTP_TIMEOUT"), &cfg.HTTPTimeout); err != nil {
		return err
	}
	if err := s.setDuration("window", os.Getenv("GNSSHIP_WATCH_WINDOW"), &cfg.WatchWindow); err != nil {
		return err
	}
	if err := s.setDuration("probe-timeout", os.Getenv("GNSSHIP_PROBE_TIMEOUT"), &cfg.ProbeTimeout); err != nil {
		return err
	}

	if err := s.setIntFromString("baud", os.Getenv("GNSSHIP_BAUD_RATE"), &cfg.BaudRate); err != nil {
		return err
	}
	if err := s.setIntFromString("max-send-attempts", os.Getenv("GNSSHIP_MAX_SEND_ATTEMPTS"), &cfg.MaxSendAttempts); err != nil {
		return err
	}
	if err := s.setIntFromString("threshold", os.Getenv("GNSSHIP_WATCH_THRESHOLD"), &cfg.WatchThreshold); err != nil {
		return err
	}

	if err := s.setFloatFromString("latitude", os.Getenv("GNSSHIP_LATITUDE"), &cfg.Latitude); err != nil {
		return err
	}
	if err := s.setFloatFromString("longitude", os.Getenv("GNSSHIP_LONGITUDE"), &cfg.Longitude); err != nil {
		return err
	}
	if err := s.setFloatFromString("antenna-height", os.Getenv("GNSSHIP_ANTENNA_HEIGHT"), &cfg.AntennaHeight); err != nil {
		return err
	}

	s.setBoolFromString("reference", os.Getenv("GNSSHIP_REFERENCE"), &cfg.IsReference)

	return nil
}
