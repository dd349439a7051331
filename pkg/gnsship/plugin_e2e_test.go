package gnsship_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bft-labs/gnsship/pkg/gnsship"
)

// =============================================================================
// Test Utilities
// =============================================================================

// testLogger implements gnsship.Logger for capturing log output in tests.
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func newTestLogger() *testLogger {
	return &testLogger{messages: make([]string, 0)}
}

func (l *testLogger) Debug(msg string, fields ...gnsship.LogField) {
	l.log("DEBUG", msg)
}

func (l *testLogger) Info(msg string, fields ...gnsship.LogField) {
	l.log("INFO", msg)
}

func (l *testLogger) Warn(msg string, fields ...gnsship.LogField) {
	l.log("WARN", msg)
}

func (l *testLogger) Error(msg string, fields ...gnsship.LogField) {
	l.log("ERROR", msg)
}

func (l *testLogger) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("[%s] %s", level, msg))
}

func (l *testLogger) Messages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := make([]string, len(l.messages))
	copy(cp, l.messages)
	return cp
}

// fakeSource implements gnsship.ByteSource without hardware. It hands out
// the queued chunks one per read, then behaves like a quiet line.
type fakeSource struct {
	mu      sync.Mutex
	chunks  [][]byte
	reopens int
	readErr error
	openErr error
}

func newQuietSource() *fakeSource {
	return &fakeSource{}
}

func newFrameSource(chunks ...[]byte) *fakeSource {
	return &fakeSource{chunks: chunks}
}

func (s *fakeSource) Read(p []byte) (int, error) {
	s.mu.Lock()
	if s.readErr != nil {
		err := s.readErr
		s.mu.Unlock()
		return 0, err
	}
	if len(s.chunks) > 0 {
		n := copy(p, s.chunks[0])
		s.chunks = s.chunks[1:]
		s.mu.Unlock()
		return n, nil
	}
	s.mu.Unlock()

	// Emulate the serial driver's read timeout on a quiet line.
	time.Sleep(time.Millisecond)
	return 0, nil
}

func (s *fakeSource) Reopen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reopens++
	return s.openErr
}

func (s *fakeSource) Close() error { return nil }

func (s *fakeSource) reopenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reopens
}

// trackingPlugin tracks initialization and shutdown calls for testing.
type trackingPlugin struct {
	name          string
	initOrder     *[]string
	shutdownOrder *[]string
	initError     error
	shutdownError error
	mu            sync.Mutex
	initialized   bool
	shutdown      bool
}

func newTrackingPlugin(name string, initOrder, shutdownOrder *[]string) *trackingPlugin {
	return &trackingPlugin{
		name:          name,
		initOrder:     initOrder,
		shutdownOrder: shutdownOrder,
	}
}

func (p *trackingPlugin) Name() string { return p.name }

func (p *trackingPlugin) Initialize(ctx context.Context, cfg gnsship.PluginConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initError != nil {
		return p.initError
	}

	*p.initOrder = append(*p.initOrder, p.name)
	p.initialized = true
	return nil
}

func (p *trackingPlugin) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	*p.shutdownOrder = append(*p.shutdownOrder, p.name)
	p.shutdown = true

	return p.shutdownError
}

func (p *trackingPlugin) IsInitialized() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initialized
}

func (p *trackingPlugin) IsShutdown() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shutdown
}

// slowPlugin simulates a slow plugin that respects context cancellation.
type slowPlugin struct {
	gnsship.BasePlugin
	initDuration time.Duration
	initStarted  chan struct{}
}

func (p *slowPlugin) Initialize(ctx context.Context, cfg gnsship.PluginConfig) error {
	if p.initStarted != nil {
		close(p.initStarted)
	}
	select {
	case <-time.After(p.initDuration):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// eventTracker tracks node events.
type eventTracker struct {
	gnsship.BaseEventHandler
	mu           sync.Mutex
	stateChanges []gnsship.StateChangeEvent
	sendSuccess  []gnsship.SendSuccessEvent
	sendErrors   []gnsship.SendErrorEvent
}

func newEventTracker() *eventTracker {
	return &eventTracker{
		stateChanges: make([]gnsship.StateChangeEvent, 0),
		sendSuccess:  make([]gnsship.SendSuccessEvent, 0),
		sendErrors:   make([]gnsship.SendErrorEvent, 0),
	}
}

func (e *eventTracker) OnStateChange(event gnsship.StateChangeEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stateChanges = append(e.stateChanges, event)
}

func (e *eventTracker) OnSendSuccess(event gnsship.SendSuccessEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sendSuccess = append(e.sendSuccess, event)
}

func (e *eventTracker) OnSendError(event gnsship.SendErrorEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sendErrors = append(e.sendErrors, event)
}

func (e *eventTracker) StateChanges() []gnsship.StateChangeEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := make([]gnsship.StateChangeEvent, len(e.stateChanges))
	copy(cp, e.stateChanges)
	return cp
}

func (e *eventTracker) SendSuccesses() []gnsship.SendSuccessEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := make([]gnsship.SendSuccessEvent, len(e.sendSuccess))
	copy(cp, e.sendSuccess)
	return cp
}

// createTestConfig creates a minimal valid config for testing.
// The collector endpoint does not exist; tests that exercise the send path
// point IngestURL at an httptest server instead.
func createTestConfig(t *testing.T) gnsship.Config {
	t.Helper()
	return gnsship.Config{
		LogRoot:            t.TempDir(),
		StationID:          "test-station",
		AuthKey:            "test-key",
		IngestURL:          "http://localhost:9999/api/v1/ingest",
		SendInterval:       50 * time.Millisecond,
		MaxSendAttempts:    2,
		SendBackoffInitial: time.Millisecond,
		SendBackoffMax:     2 * time.Millisecond,
		ReadTimeout:        10 * time.Millisecond,
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

// =============================================================================
// Plugin Lifecycle Tests
// =============================================================================

func TestPlugin_InitializationOrder(t *testing.T) {
	cfg := createTestConfig(t)
	logger := newTestLogger()

	var initOrder []string
	var shutdownOrder []string

	plugin1 := newTrackingPlugin("plugin1", &initOrder, &shutdownOrder)
	plugin2 := newTrackingPlugin("plugin2", &initOrder, &shutdownOrder)
	plugin3 := newTrackingPlugin("plugin3", &initOrder, &shutdownOrder)

	node, err := gnsship.New(cfg,
		gnsship.WithLogger(logger),
		gnsship.WithByteSource(newQuietSource()),
		gnsship.WithPlugin(plugin1),
		gnsship.WithPlugin(plugin2),
		gnsship.WithPlugin(plugin3),
	)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	ctx := context.Background()
	if err := node.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	if len(initOrder) != 3 {
		t.Fatalf("Expected 3 plugins initialized, got %d", len(initOrder))
	}
	if initOrder[0] != "plugin1" || initOrder[1] != "plugin2" || initOrder[2] != "plugin3" {
		t.Errorf("Unexpected init order: %v", initOrder)
	}

	if err := node.Stop(); err != nil {
		t.Errorf("Stop() failed: %v", err)
	}

	// Shutdown order should be the reverse of init order
	if len(shutdownOrder) != 3 {
		t.Fatalf("Expected 3 plugins shutdown, got %d", len(shutdownOrder))
	}
	if shutdownOrder[0] != "plugin3" || shutdownOrder[1] != "plugin2" || shutdownOrder[2] != "plugin1" {
		t.Errorf("Unexpected shutdown order: %v (expected reverse of init)", shutdownOrder)
	}
}

func TestPlugin_InitializationFailure_PreventsStart(t *testing.T) {
	cfg := createTestConfig(t)
	logger := newTestLogger()

	var initOrder []string
	var shutdownOrder []string

	plugin1 := newTrackingPlugin("plugin1", &initOrder, &shutdownOrder)
	plugin2 := newTrackingPlugin("plugin2", &initOrder, &shutdownOrder)
	plugin2.initError = errors.New("intentional init failure")
	plugin3 := newTrackingPlugin("plugin3", &initOrder, &shutdownOrder)

	node, err := gnsship.New(cfg,
		gnsship.WithLogger(logger),
		gnsship.WithByteSource(newQuietSource()),
		gnsship.WithPlugin(plugin1),
		gnsship.WithPlugin(plugin2),
		gnsship.WithPlugin(plugin3),
	)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	ctx := context.Background()
	err = node.Start(ctx)

	if err == nil {
		t.Fatal("Start() should have failed due to plugin init error")
	}

	// plugin1 initialized before plugin2 failed
	if len(initOrder) != 1 || initOrder[0] != "plugin1" {
		t.Errorf("Expected only plugin1 to init before failure, got: %v", initOrder)
	}

	if plugin3.IsInitialized() {
		t.Error("plugin3 should not have been initialized after plugin2 failed")
	}

	if node.Status() != gnsship.StateCrashed {
		t.Errorf("Status = %v, want Crashed", node.Status())
	}
}

func TestPlugin_ShutdownFailure_ContinuesOtherPlugins(t *testing.T) {
	cfg := createTestConfig(t)
	logger := newTestLogger()

	var initOrder []string
	var shutdownOrder []string

	plugin1 := newTrackingPlugin("plugin1", &initOrder, &shutdownOrder)
	plugin2 := newTrackingPlugin("plugin2", &initOrder, &shutdownOrder)
	plugin2.shutdownError = errors.New("intentional shutdown failure")
	plugin3 := newTrackingPlugin("plugin3", &initOrder, &shutdownOrder)

	node, err := gnsship.New(cfg,
		gnsship.WithLogger(logger),
		gnsship.WithByteSource(newQuietSource()),
		gnsship.WithPlugin(plugin1),
		gnsship.WithPlugin(plugin2),
		gnsship.WithPlugin(plugin3),
	)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	ctx := context.Background()
	if err := node.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	_ = node.Stop()

	if len(shutdownOrder) != 3 {
		t.Errorf("Expected all 3 plugins to attempt shutdown, got: %v", shutdownOrder)
	}
	if !plugin1.IsShutdown() {
		t.Error("plugin1 should have been shutdown")
	}
	if !plugin3.IsShutdown() {
		t.Error("plugin3 should have been shutdown")
	}
}

// =============================================================================
// Edge Case Tests
// =============================================================================

func TestPlugin_EmptyPluginList(t *testing.T) {
	cfg := createTestConfig(t)

	node, err := gnsship.New(cfg, gnsship.WithByteSource(newQuietSource()))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	ctx := context.Background()
	if err := node.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	if err := node.Stop(); err != nil {
		t.Errorf("Stop() failed: %v", err)
	}

	if node.Status() != gnsship.StateStopped {
		t.Errorf("Status = %v, want Stopped", node.Status())
	}
}

func TestPlugin_NilLogger(t *testing.T) {
	cfg := createTestConfig(t)

	var initOrder []string
	var shutdownOrder []string
	plugin := newTrackingPlugin("test-plugin", &initOrder, &shutdownOrder)

	// Create without logger; the node falls back to a no-op logger.
	node, err := gnsship.New(cfg,
		gnsship.WithByteSource(newQuietSource()),
		gnsship.WithPlugin(plugin),
	)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	ctx := context.Background()
	if err := node.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	if !plugin.IsInitialized() {
		t.Error("Plugin should have been initialized even without logger")
	}

	if err := node.Stop(); err != nil {
		t.Errorf("Stop() failed: %v", err)
	}
}

func TestPlugin_StartAlreadyRunning(t *testing.T) {
	cfg := createTestConfig(t)

	node, err := gnsship.New(cfg, gnsship.WithByteSource(newQuietSource()))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	ctx := context.Background()
	if err := node.Start(ctx); err != nil {
		t.Fatalf("First Start() failed: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	err = node.Start(ctx)
	if !errors.Is(err, gnsship.ErrAlreadyRunning) {
		t.Errorf("Second Start() = %v, want ErrAlreadyRunning", err)
	}

	if err := node.Stop(); err != nil {
		t.Errorf("Stop() failed: %v", err)
	}
}

func TestPlugin_StopAlreadyStopped(t *testing.T) {
	cfg := createTestConfig(t)

	node, err := gnsship.New(cfg, gnsship.WithByteSource(newQuietSource()))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if err := node.Stop(); !errors.Is(err, gnsship.ErrNotRunning) {
		t.Errorf("Stop() without Start() = %v, want ErrNotRunning", err)
	}
}

func TestPlugin_RapidStartStop(t *testing.T) {
	cfg := createTestConfig(t)

	logger := newTestLogger()
	var initOrder []string
	var shutdownOrder []string
	plugin := newTrackingPlugin("rapid-test", &initOrder, &shutdownOrder)

	node, err := gnsship.New(cfg,
		gnsship.WithLogger(logger),
		gnsship.WithByteSource(newQuietSource()),
		gnsship.WithPlugin(plugin),
	)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		ctx := context.Background()
		if err := node.Start(ctx); err != nil {
			t.Fatalf("Start() iteration %d failed: %v", i, err)
		}

		time.Sleep(50 * time.Millisecond)

		if err := node.Stop(); err != nil {
			t.Errorf("Stop() iteration %d failed: %v", i, err)
		}

		initOrder = initOrder[:0]
		shutdownOrder = shutdownOrder[:0]
	}

	if node.Status() != gnsship.StateStopped {
		t.Errorf("Final status = %v, want Stopped", node.Status())
	}
}

func TestPlugin_ContextCancellationDuringInit(t *testing.T) {
	cfg := createTestConfig(t)

	initStarted := make(chan struct{})
	slow := &slowPlugin{
		BasePlugin:   gnsship.NewBasePlugin("slow-plugin"),
		initDuration: 5 * time.Second,
		initStarted:  initStarted,
	}

	node, err := gnsship.New(cfg,
		gnsship.WithByteSource(newQuietSource()),
		gnsship.WithPlugin(slow),
	)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	startErr := make(chan error, 1)
	go func() {
		startErr <- node.Start(ctx)
	}()

	<-initStarted
	cancel()

	select {
	case err := <-startErr:
		if err == nil {
			t.Error("Start() should have failed due to context cancellation")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return after context cancellation")
	}
}

// =============================================================================
// Pipeline Integration Tests
// =============================================================================

func TestNode_SendEventsReachHandler(t *testing.T) {
	var accepted int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&accepted, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := createTestConfig(t)
	cfg.IngestURL = server.URL + "/api/v1/ingest"

	tracker := newEventTracker()
	// Two checksum-valid sentences in one chunk land in the same batch.
	source := newFrameSource([]byte("$GNGGA,1*55\r\n$GNGGA,1*55\r\n"))

	node, err := gnsship.New(cfg,
		gnsship.WithByteSource(source),
		gnsship.WithEventHandler(tracker),
	)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	ctx := context.Background()
	if err := node.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		return len(tracker.SendSuccesses()) >= 1
	})

	if err := node.Stop(); err != nil {
		t.Errorf("Stop() failed: %v", err)
	}

	successes := tracker.SendSuccesses()
	if len(successes) == 0 {
		t.Fatal("no send success events")
	}
	if successes[0].FrameCount != 2 {
		t.Errorf("FrameCount = %d, want 2", successes[0].FrameCount)
	}
	if successes[0].BytesSent == 0 {
		t.Error("BytesSent = 0, want > 0")
	}

	stats := node.Stats()
	if stats.TextFrames != 2 {
		t.Errorf("TextFrames = %d, want 2", stats.TextFrames)
	}
	if stats.BatchesSent == 0 {
		t.Error("BatchesSent = 0, want > 0")
	}
	if atomic.LoadInt64(&accepted) == 0 {
		t.Error("collector saw no requests")
	}
}

func TestNode_DeviceFailureCrashes(t *testing.T) {
	cfg := createTestConfig(t)
	cfg.MaxReopenAttempts = 2
	cfg.ReopenBackoffInitial = time.Millisecond
	cfg.ReopenBackoffMax = 2 * time.Millisecond

	source := newQuietSource()

	node, err := gnsship.New(cfg, gnsship.WithByteSource(source))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	ctx := context.Background()
	if err := node.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	// Kill the device: reads fail and reopens never succeed.
	source.mu.Lock()
	source.readErr = errors.New("input/output error")
	source.openErr = errors.New("no such device")
	source.mu.Unlock()

	waitFor(t, 2*time.Second, func() bool {
		return node.Status() == gnsship.StateCrashed
	})

	// One reopen from Start, two from the bounded recovery.
	if got := source.reopenCount(); got != 3 {
		t.Errorf("reopen count = %d, want 3", got)
	}

	if err := node.Stop(); !errors.Is(err, gnsship.ErrNotRunning) {
		t.Errorf("Stop() on crashed node = %v, want ErrNotRunning", err)
	}
}

// =============================================================================
// Event Handler Tests
// =============================================================================

func TestPlugin_EventHandlerReceivesStateChanges(t *testing.T) {
	cfg := createTestConfig(t)

	tracker := newEventTracker()

	var initOrder []string
	var shutdownOrder []string
	plugin := newTrackingPlugin("test-plugin", &initOrder, &shutdownOrder)

	node, err := gnsship.New(cfg,
		gnsship.WithByteSource(newQuietSource()),
		gnsship.WithEventHandler(tracker),
		gnsship.WithPlugin(plugin),
	)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	ctx := context.Background()
	if err := node.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		return node.Status() == gnsship.StateReading
	})

	if err := node.Stop(); err != nil {
		t.Errorf("Stop() failed: %v", err)
	}

	changes := tracker.StateChanges()
	if len(changes) < 2 {
		t.Fatalf("Expected at least 2 state changes, got %d", len(changes))
	}

	if changes[0].Previous != gnsship.StateStopped || changes[0].Current != gnsship.StateStarting {
		t.Errorf("First transition = %v -> %v, want Stopped -> Starting",
			changes[0].Previous, changes[0].Current)
	}

	foundReading := false
	for _, change := range changes {
		if change.Current == gnsship.StateReading {
			foundReading = true
			break
		}
	}
	if !foundReading {
		t.Error("Should have transitioned to Reading state")
	}
}

// =============================================================================
// Concurrency Tests
// =============================================================================

func TestPlugin_ConcurrentStatusCalls(t *testing.T) {
	cfg := createTestConfig(t)

	node, err := gnsship.New(cfg, gnsship.WithByteSource(newQuietSource()))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	ctx := context.Background()
	if err := node.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = node.Status()
			_ = node.Stats()
		}()
	}

	wg.Wait()

	if err := node.Stop(); err != nil {
		t.Errorf("Stop() failed: %v", err)
	}
}

func TestPlugin_ConcurrentStartAttempts(t *testing.T) {
	cfg := createTestConfig(t)

	node, err := gnsship.New(cfg, gnsship.WithByteSource(newQuietSource()))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	ctx := context.Background()

	var successCount int32
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := node.Start(ctx); err == nil {
				atomic.AddInt32(&successCount, 1)
			}
		}()
	}

	wg.Wait()

	if atomic.LoadInt32(&successCount) != 1 {
		t.Errorf("Expected exactly 1 successful Start(), got %d", successCount)
	}

	if err := node.Stop(); err != nil {
		t.Errorf("Stop() failed: %v", err)
	}
}

func TestPlugin_StartStopRace(t *testing.T) {
	cfg := createTestConfig(t)

	node, err := gnsship.New(cfg, gnsship.WithByteSource(newQuietSource()))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	ctx := context.Background()

	if err := node.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = node.Stop()
	}()

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = node.Status()
		}()
	}

	wg.Wait()

	status := node.Status()
	if status != gnsship.StateStopped && status != gnsship.StateCrashed {
		t.Errorf("Final status = %v, want Stopped or Crashed", status)
	}
}

// =============================================================================
// Configuration Tests
// =============================================================================

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*gnsship.Config)
	}{
		{"missing station id", func(c *gnsship.Config) { c.StationID = "" }},
		{"missing auth key", func(c *gnsship.Config) { c.AuthKey = "" }},
		{"missing log root", func(c *gnsship.Config) { c.LogRoot = "" }},
		{"garbage ingest url", func(c *gnsship.Config) { c.IngestURL = "not a url" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := gnsship.Config{
				LogRoot:   "/data/gnss",
				StationID: "station-01",
				AuthKey:   "key",
			}
			tt.mutate(&cfg)

			_, err := gnsship.New(cfg)
			if !errors.Is(err, gnsship.ErrInvalidConfig) {
				t.Errorf("New() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

// =============================================================================
// BasePlugin Tests
// =============================================================================

func TestBasePlugin_DefaultBehavior(t *testing.T) {
	bp := gnsship.NewBasePlugin("test-base")

	if bp.Name() != "test-base" {
		t.Errorf("Name() = %v, want test-base", bp.Name())
	}

	ctx := context.Background()
	cfg := gnsship.PluginConfig{}

	if err := bp.Initialize(ctx, cfg); err != nil {
		t.Errorf("Initialize() = %v, want nil", err)
	}

	if err := bp.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() = %v, want nil", err)
	}
}

func TestBaseEventHandler_DefaultBehavior(t *testing.T) {
	beh := gnsship.BaseEventHandler{}

	// All methods should be no-ops (not panic)
	beh.OnStateChange(gnsship.StateChangeEvent{})
	beh.OnSendSuccess(gnsship.SendSuccessEvent{})
	beh.OnSendError(gnsship.SendErrorEvent{})
}

// =============================================================================
// State Transition Tests
// =============================================================================

func TestState_StringRepresentation(t *testing.T) {
	tests := []struct {
		state    gnsship.State
		expected string
	}{
		{gnsship.StateStopped, "Stopped"},
		{gnsship.StateStarting, "Starting"},
		{gnsship.StateReading, "Reading"},
		{gnsship.StateRecovering, "Recovering"},
		{gnsship.StateStopping, "Stopping"},
		{gnsship.StateCrashed, "Crashed"},
		{gnsship.State(99), "Unknown"},
	}

	for _, tc := range tests {
		if got := tc.state.String(); got != tc.expected {
			t.Errorf("State(%d).String() = %q, want %q", tc.state, got, tc.expected)
		}
	}
}

func TestState_CanStart(t *testing.T) {
	if !gnsship.StateStopped.CanStart() {
		t.Error("StateStopped.CanStart() should be true")
	}
	if !gnsship.StateCrashed.CanStart() {
		t.Error("StateCrashed.CanStart() should be true")
	}
	if gnsship.StateReading.CanStart() {
		t.Error("StateReading.CanStart() should be false")
	}
	if gnsship.StateRecovering.CanStart() {
		t.Error("StateRecovering.CanStart() should be false")
	}
	if gnsship.StateStarting.CanStart() {
		t.Error("StateStarting.CanStart() should be false")
	}
	if gnsship.StateStopping.CanStart() {
		t.Error("StateStopping.CanStart() should be false")
	}
}

func TestState_CanStop(t *testing.T) {
	if !gnsship.StateReading.CanStop() {
		t.Error("StateReading.CanStop() should be true")
	}
	if !gnsship.StateRecovering.CanStop() {
		t.Error("StateRecovering.CanStop() should be true")
	}
	if !gnsship.StateStarting.CanStop() {
		t.Error("StateStarting.CanStop() should be true")
	}
	if gnsship.StateStopped.CanStop() {
		t.Error("StateStopped.CanStop() should be false")
	}
	if gnsship.StateCrashed.CanStop() {
		t.Error("StateCrashed.CanStop() should be false")
	}
	if gnsship.StateStopping.CanStop() {
		t.Error("StateStopping.CanStop() should be false")
	}
}

func TestState_IsRunning(t *testing.T) {
	if !gnsship.StateReading.IsRunning() {
		t.Error("StateReading.IsRunning() should be true")
	}
	if !gnsship.StateRecovering.IsRunning() {
		t.Error("StateRecovering.IsRunning() should be true")
	}
	if gnsship.StateStopped.IsRunning() {
		t.Error("StateStopped.IsRunning() should be false")
	}
	if gnsship.StateStarting.IsRunning() {
		t.Error("StateStarting.IsRunning() should be false")
	}
}
