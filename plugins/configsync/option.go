package configsync

import "github.com/bft-labs/gnsship/pkg/gnsship"

// WithConfigSync returns a gnsship Option that enables config file
// mirroring. When enabled, the plugin monitors the station config file for
// changes and uploads a snapshot to the collector.
//
// Usage:
//
//	node, err := gnsship.New(cfg,
//	    configsync.WithConfigSync(configsync.Config{
//	        RetryInterval: 5 * time.Second,
//	        DebounceDelay: 100 * time.Millisecond,
//	    }),
//	)
func WithConfigSync(cfg Config) gnsship.Option {
	plugin := New(cfg)
	return gnsship.WithPlugin(plugin)
}

// WithDefaultConfigSync returns a gnsship Option that enables config
// mirroring with default settings (retry every 5s, debounce 100ms).
//
// Usage:
//
//	node, err := gnsship.New(cfg, configsync.WithDefaultConfigSync())
func WithDefaultConfigSync() gnsship.Option {
	return WithConfigSync(DefaultConfig())
}
