// Package configsync mirrors the station's configuration file to the
// collector. When enabled, it watches the config file for changes and
// uploads a snapshot, so the fleet's configs stay auditable centrally.
package configsync

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/gnsship/pkg/gnsship"
	"github.com/bft-labs/gnsship/pkg/log"
)

const configEndpoint = "/api/v1/station/config"

// Error codes for config file issues.
const (
	ErrCodeFileNotFound     = "FILE_NOT_FOUND"
	ErrCodePermissionDenied = "PERMISSION_DENIED"
	ErrCodeReadError        = "READ_ERROR"
)

// Plugin implements config file mirroring.
// It monitors the station config file and uploads a snapshot to the
// collector when it changes.
type Plugin struct {
	mu sync.RWMutex

	// Configuration
	retryInterval time.Duration
	debounceDelay time.Duration

	// Runtime state
	configPath string
	endpoint   string
	stationID  string
	authKey    string
	logger     gnsship.Logger
	httpClient *http.Client
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	debounce   *time.Timer
}

// Config holds configuration options for the config sync plugin.
type Config struct {
	// RetryInterval is the delay between retries on failure.
	// Default: 5 seconds
	RetryInterval time.Duration

	// DebounceDelay is the delay to wait after a file change before sending.
	// Default: 100 milliseconds
	DebounceDelay time.Duration

	// HTTPTimeout is the timeout for HTTP requests.
	// Default: 30 seconds
	HTTPTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		RetryInterval: 5 * time.Second,
		DebounceDelay: 100 * time.Millisecond,
		HTTPTimeout:   30 * time.Second,
	}
}

// New creates a new config sync plugin with the given configuration.
func New(cfg Config) *Plugin {
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 5 * time.Second
	}
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 100 * time.Millisecond
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}

	return &Plugin{
		retryInterval: cfg.RetryInterval,
		debounceDelay: cfg.DebounceDelay,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "configsync"
}

// Initialize sets up the plugin and starts the file watcher.
func (p *Plugin) Initialize(ctx context.Context, cfg gnsship.PluginConfig) error {
	p.mu.Lock()
	p.configPath = cfg.ConfigPath
	p.stationID = cfg.StationID
	p.authKey = cfg.AuthKey
	p.logger = cfg.Logger
	p.mu.Unlock()

	if p.configPath == "" || cfg.IngestURL == "" {
		p.logger.Warn("config sync disabled: no config path or ingest URL configured")
		return nil
	}

	endpoint, err := collectorEndpoint(cfg.IngestURL)
	if err != nil {
		return fmt.Errorf("derive config endpoint: %w", err)
	}
	p.mu.Lock()
	p.endpoint = endpoint
	p.mu.Unlock()

	// Create cancellable context for the watcher loop
	watchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.logger.Info("config sync plugin initialized")

	// Start watcher loop
	p.wg.Add(1)
	go p.watchLoop(watchCtx)

	return nil
}

// Shutdown stops the file watcher.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	return nil
}

// collectorEndpoint swaps the ingest URL's path for the station config
// endpoint, keeping scheme, host and port.
func collectorEndpoint(ingestURL string) (string, error) {
	u, err := url.Parse(ingestURL)
	if err != nil {
		return "", err
	}
	u.Path = configEndpoint
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// watchLoop watches for config file changes.
func (p *Plugin) watchLoop(ctx context.Context) {
	defer p.wg.Done()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		p.logger.Error("config sync: failed to create watcher", log.Err(err))
		return
	}
	defer watcher.Close()

	// Watch the directory rather than the file: editors and scp replace
	// the file by rename, which a watch on the file itself would lose.
	if err := watcher.Add(filepath.Dir(p.configPath)); err != nil {
		p.logger.Error("config sync: failed to watch directory", log.Err(err))
		// Still try to send the initial snapshot
		p.sendSnapshotWithRetry(ctx)
		return
	}

	// Send initial snapshot
	p.sendSnapshotWithRetry(ctx)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(p.configPath) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			p.debounceSend(ctx, p.debounceDelay)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("config sync: watcher error", log.Err(err))
		}
	}
}

func (p *Plugin) debounceSend(ctx context.Context, delay time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.debounce != nil {
		p.debounce.Stop()
	}

	p.debounce = time.AfterFunc(delay, func() {
		p.sendSnapshotWithRetry(ctx)
	})
}

// buildSnapshot builds multipart form-data with the config file.
func (p *Plugin) buildSnapshot() (*bytes.Buffer, string) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	writer.WriteField("captured_at", time.Now().UTC().Format(time.RFC3339Nano))

	content, err := os.ReadFile(p.configPath)
	if err != nil {
		writer.WriteField("config_error", errorCode(err))
	} else if part, ferr := writer.CreateFormFile("station_config", filepath.Base(p.configPath)); ferr == nil {
		part.Write(content)
	}

	contentType := writer.FormDataContentType()
	writer.Close()

	return &buf, contentType
}

// sendSnapshotWithRetry retries until success or context cancellation. The
// snapshot is captured once; retries resend the same bytes.
func (p *Plugin) sendSnapshotWithRetry(ctx context.Context) {
	retryCount := 0

	snapshot, contentType := p.buildSnapshot()
	snapshotBytes := snapshot.Bytes()

	for {
		reader := bytes.NewReader(snapshotBytes)

		err := p.send(ctx, reader, contentType)
		if err == nil {
			if retryCount > 0 {
				p.logger.Info("config sync: sent snapshot after retries",
					log.Int("retries", retryCount))
			} else {
				p.logger.Info("config sync: sent snapshot")
			}
			return
		}

		// Failure - log and retry
		retryCount++
		p.logger.Error("config sync: send failed", log.Err(err))

		select {
		case <-ctx.Done():
			return
		case <-time.After(p.retryInterval):
			// Continue to next retry
		}
	}
}

func errorCode(err error) string {
	if os.IsNotExist(err) {
		return ErrCodeFileNotFound
	}
	if os.IsPermission(err) {
		return ErrCodePermissionDenied
	}
	if strings.Contains(err.Error(), "permission denied") {
		return ErrCodePermissionDenied
	}
	return ErrCodeReadError
}

func (p *Plugin) send(ctx context.Context, body io.Reader, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Gnss-Station-Id", p.stationID)
	if p.authKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.authKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// Ensure Plugin implements gnsship.Plugin.
var _ gnsship.Plugin = (*Plugin)(nil)
