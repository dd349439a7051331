package http

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/gnsship/internal/domain"
	"github.com/bft-labs/gnsship/internal/ports"
	"github.com/bft-labs/gnsship/pkg/log"
)

func testStation() ports.StationInfo {
	return ports.StationInfo{
		StationID:     "station-01",
		StationName:   "rooftop",
		IsReference:   true,
		Latitude:      25.2731,
		Longitude:     51.608,
		AntennaHeight: 10.5,
	}
}

func testBatch() *domain.Batch {
	return &domain.Batch{
		ID:        "11111111-2222-3333-4444-555555555555",
		Seq:       7,
		CreatedAt: time.Date(2026, 3, 1, 10, 30, 0, 500000000, time.UTC),
		Frames: []domain.Frame{
			domain.NewSentence([]byte("$GNGGA,123519*4F"), "GNGGA", []string{"123519"}),
			domain.NewBinaryMessage([]byte{0xB5, 0x62, 0x01, 0x07, 0x00, 0x00, 0x08, 0x19}, 0x01, 0x07, 0),
		},
	}
}

func TestBatchSender_Send(t *testing.T) {
	var mu sync.Mutex
	var gotMethod, gotAuth, gotContentType string
	var gotBody []byte

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotMethod = r.Method
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}))
	defer ts.Close()

	sender := NewBatchSender(ts.Client(), log.NewNoopLogger(), ts.URL, "secret-key", testStation())
	batch := testBatch()

	if err := sender.Send(context.Background(), batch); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()

	if gotMethod != http.MethodPost {
		t.Errorf("method = %s, want POST", gotMethod)
	}
	if gotAuth != "Bearer secret-key" {
		t.Errorf("Authorization = %q, want Bearer secret-key", gotAuth)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", gotContentType)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(gotBody, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}

	if payload["station_id"] != "station-01" {
		t.Errorf("station_id = %v, want station-01", payload["station_id"])
	}
	if payload["batch_id"] != batch.ID {
		t.Errorf("batch_id = %v, want %v", payload["batch_id"], batch.ID)
	}
	if payload["sequence_number"] != float64(7) {
		t.Errorf("sequence_number = %v, want 7", payload["sequence_number"])
	}
	wantTS := float64(batch.CreatedAt.UnixNano()) / float64(time.Second)
	if payload["recv_ts"] != wantTS {
		t.Errorf("recv_ts = %v, want %v", payload["recv_ts"], wantTS)
	}

	nmea, ok := payload["nmea_raw"].([]interface{})
	if !ok || len(nmea) != 1 {
		t.Fatalf("nmea_raw = %v, want one sentence", payload["nmea_raw"])
	}
	if nmea[0] != "$GNGGA,123519*4F" {
		t.Errorf("nmea_raw[0] = %v, want verbatim sentence", nmea[0])
	}

	ubx, ok := payload["ubx_raw"].([]interface{})
	if !ok || len(ubx) != 1 {
		t.Fatalf("ubx_raw = %v, want one message", payload["ubx_raw"])
	}
	wantB64 := base64.StdEncoding.EncodeToString([]byte{0xB5, 0x62, 0x01, 0x07, 0x00, 0x00, 0x08, 0x19})
	if ubx[0] != wantB64 {
		t.Errorf("ubx_raw[0] = %v, want %v", ubx[0], wantB64)
	}

	if payload["is_reference_station"] != true {
		t.Errorf("is_reference_station = %v, want true", payload["is_reference_station"])
	}
	pos, ok := payload["known_position"].([]interface{})
	if !ok || len(pos) != 3 {
		t.Fatalf("known_position = %v, want [lat lon height]", payload["known_position"])
	}
	if pos[0] != 25.2731 || pos[1] != 51.608 || pos[2] != 10.5 {
		t.Errorf("known_position = %v, want [25.2731 51.608 10.5]", pos)
	}
}

func TestBatchSender_NonReferenceOmitsPosition(t *testing.T) {
	var mu sync.Mutex
	var gotBody []byte

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotBody, _ = io.ReadAll(r.Body)
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}))
	defer ts.Close()

	station := testStation()
	station.IsReference = false
	sender := NewBatchSender(ts.Client(), log.NewNoopLogger(), ts.URL, "k", station)

	if err := sender.Send(context.Background(), testBatch()); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()

	var payload map[string]interface{}
	if err := json.Unmarshal(gotBody, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload["is_reference_station"] != false {
		t.Errorf("is_reference_station = %v, want false", payload["is_reference_station"])
	}
	if _, present := payload["known_position"]; present {
		t.Errorf("known_position present for non-reference station: %v", payload["known_position"])
	}
}

func TestBatchSender_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "ingest unavailable", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	sender := NewBatchSender(ts.Client(), log.NewNoopLogger(), ts.URL, "k", testStation())

	err := sender.Send(context.Background(), testBatch())
	if err == nil {
		t.Fatal("Send() = nil, want error on 503")
	}
}

func TestBatchSender_EmptyBatchSkipsRequest(t *testing.T) {
	called := false
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer ts.Close()

	sender := NewBatchSender(ts.Client(), log.NewNoopLogger(), ts.URL, "k", testStation())

	if err := sender.Send(context.Background(), &domain.Batch{ID: "x", Seq: 1}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if called {
		t.Error("empty batch produced a request")
	}
}
