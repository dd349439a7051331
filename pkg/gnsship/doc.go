// Package gnsship provides an embeddable GNSS data acquisition node.
//
// Gnsship reads the raw receiver byte stream off a serial device,
// demultiplexes it into UBX and NMEA frames, archives every frame to
// hour-partitioned compressed files and ships batches to a collector for
// ionospheric monitoring. It can be used as a standalone daemon via
// cmd/gnsship or embedded as a library in other Go programs.
//
// # Basic Usage
//
// To embed gnsship in your application:
//
//	cfg := gnsship.Config{
//	    Device:    "/dev/ttyAMA0",
//	    LogRoot:   "/data/gnss",
//	    IngestURL: "https://collector.example.com/api/v1/ingest",
//	    AuthKey:   "your-api-key",
//	    StationID: "doha-north-01",
//	}
//
//	node, err := gnsship.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ctx := context.Background()
//	if err := node.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	// ... run until shutdown signal ...
//
//	if err := node.Stop(); err != nil {
//	    log.Printf("shutdown error: %v", err)
//	}
//
// # Configuration
//
// Create a [Config] with at minimum StationID, AuthKey and LogRoot.
// All other fields have sensible defaults set via [Config.SetDefaults].
//
// # Event Handling
//
// To receive notifications about node operations, implement [EventHandler]
// and pass it via [WithEventHandler]:
//
//	handler := &myEventHandler{}
//	node, err := gnsship.New(cfg, gnsship.WithEventHandler(handler))
//
// Events are called synchronously from the acquisition goroutines.
// Implementations should return quickly to avoid blocking the pipeline.
//
// # Dependency Injection
//
// For testing, you can inject custom implementations of external
// dependencies:
//
//	node, err := gnsship.New(cfg,
//	    gnsship.WithHTTPClient(mockClient),
//	    gnsship.WithLogger(customLogger),
//	    gnsship.WithByteSource(replaySource),
//	)
//
// # Lifecycle States
//
// A Node can be in one of six states: [StateStopped], [StateStarting],
// [StateReading], [StateRecovering], [StateStopping], or [StateCrashed].
// Use [Node.Status] to query the current state and [Node.Stats] for
// counters.
//
// # Plugins
//
// Gnsship supports optional plugins for extended functionality:
//
//	import "github.com/bft-labs/gnsship/plugins/retention"
//	import "github.com/bft-labs/gnsship/plugins/configsync"
//
//	node, err := gnsship.New(cfg,
//	    retention.WithRetention(retention.DefaultConfig()),
//	    configsync.WithConfigSync(configsync.DefaultConfig()),
//	)
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
//
// Use [ModuleVersions] to get versions of all sub-modules and
// [CompatibilityMatrix] to check minimum compatible versions.
package gnsship
