package retention

import "github.com/bft-labs/gnsship/pkg/gnsship"

// WithRetention returns a gnsship Option that enables archive retention.
// When enabled, the plugin periodically checks the archive size under the
// log root and removes the oldest compressed buckets when it exceeds the
// configured high watermark.
//
// Usage:
//
//	node, err := gnsship.New(cfg,
//	    retention.WithRetention(retention.Config{
//	        CheckInterval: time.Hour,
//	        HighWatermark: 2 << 30,  // 2 GiB
//	        LowWatermark:  3 << 29,  // 1.5 GiB
//	    }),
//	)
func WithRetention(cfg Config) gnsship.Option {
	plugin := New(cfg)
	return gnsship.WithPlugin(plugin)
}

// WithDefaultRetention returns a gnsship Option that enables retention
// with default settings (sweep every hour, high watermark 2GiB, low
// watermark 1.5GiB).
//
// Usage:
//
//	node, err := gnsship.New(cfg, retention.WithDefaultRetention())
func WithDefaultRetention() gnsship.Option {
	return WithRetention(DefaultConfig())
}
