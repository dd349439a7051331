package ports

import (
	"context"

	"github.com/bft-labs/gnsship/internal/domain"
)

// BatchSender transmits frame batches to the collector.
// Implementations handle serialization, HTTP communication, and
// authentication. A single submission attempt is made per call; retry
// policy belongs to the caller.
type BatchSender interface {
	// Send transmits one batch. Returns nil when the collector accepted
	// it (2xx), an error for transport failures or non-success responses.
	Send(ctx context.Context, batch *domain.Batch) error
}

// StationInfo identifies this station to the collector.
// It is serialized into every batch payload.
type StationInfo struct {
	// StationID is the unique station identifier.
	StationID string

	// StationName is the human-readable station name.
	StationName string

	// IsReference marks a surveyed reference station.
	IsReference bool

	// Latitude, Longitude and AntennaHeight are the surveyed position,
	// included in payloads only for reference stations.
	Latitude      float64
	Longitude     float64
	AntennaHeight float64
}
