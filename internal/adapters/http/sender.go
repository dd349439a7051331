package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bft-labs/gnsship/internal/domain"
	"github.com/bft-labs/gnsship/internal/ports"
)

// BatchSender implements ports.BatchSender against the collector's ingest
// endpoint.
type BatchSender struct {
	client  ports.HTTPClient
	logger  ports.Logger
	url     string
	authKey string
	station ports.StationInfo
}

// NewBatchSender creates a new HTTP batch sender posting to url.
func NewBatchSender(client ports.HTTPClient, logger ports.Logger, url, authKey string, station ports.StationInfo) *BatchSender {
	return &BatchSender{
		client:  client,
		logger:  logger,
		url:     url,
		authKey: authKey,
		station: station,
	}
}

// batchPayload is the collector's ingest document. Text frames travel
// verbatim, binary frames base64-encoded.
type batchPayload struct {
	StationID          string    `json:"station_id"`
	StationName        string    `json:"station_name"`
	BatchID            string    `json:"batch_id"`
	SequenceNumber     uint64    `json:"sequence_number"`
	RecvTS             float64   `json:"recv_ts"`
	NMEARaw            []string  `json:"nmea_raw"`
	UBXRaw             []string  `json:"ubx_raw"`
	IsReferenceStation bool      `json:"is_reference_station"`
	KnownPosition      []float64 `json:"known_position,omitempty"`
}

// Send transmits one batch to the collector. A single attempt is made;
// retry policy belongs to the caller.
func (s *BatchSender) Send(ctx context.Context, batch *domain.Batch) error {
	if batch.Empty() {
		return nil
	}

	body, err := json.Marshal(s.buildPayload(batch))
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.authKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(respBody))
	}

	text, binary := batch.CountByFamily()
	s.logger.Debug("batch accepted",
		ports.Uint64("seq", batch.Seq),
		ports.Int("nmea", text),
		ports.Int("ubx", binary))

	return nil
}

func (s *BatchSender) buildPayload(batch *domain.Batch) batchPayload {
	// Empty families still serialize as [] rather than null.
	text := make([]string, 0, len(batch.Frames))
	binary := make([]string, 0, len(batch.Frames))
	for _, f := range batch.Frames {
		switch f.Family {
		case domain.FamilyText:
			text = append(text, string(f.Raw))
		case domain.FamilyBinary:
			binary = append(binary, base64.StdEncoding.EncodeToString(f.Raw))
		}
	}

	p := batchPayload{
		StationID:          s.station.StationID,
		StationName:        s.station.StationName,
		BatchID:            batch.ID,
		SequenceNumber:     batch.Seq,
		RecvTS:             float64(batch.CreatedAt.UnixNano()) / float64(time.Second),
		NMEARaw:            text,
		UBXRaw:             binary,
		IsReferenceStation: s.station.IsReference,
	}
	if s.station.IsReference {
		p.KnownPosition = []float64{s.station.Latitude, s.station.Longitude, s.station.AntennaHeight}
	}
	return p
}
