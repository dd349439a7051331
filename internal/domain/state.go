package domain

import "time"

// State represents persistent sender state that must survive restarts.
// It is saved after each successful or exhausted batch send so that
// sequence numbers remain strictly increasing even across a watchdog
// restart of the service.
type State struct {
	// LastSeq is the sequence number of the last batch handed to the sender.
	LastSeq uint64 `json:"last_seq"`

	// BatchesSent counts batches accepted by the collector.
	BatchesSent uint64 `json:"batches_sent"`

	// BatchesDropped counts batches dropped after retry exhaustion.
	BatchesDropped uint64 `json:"batches_dropped"`

	// LastSendAt is the timestamp of the last send attempt.
	LastSendAt time.Time `json:"last_send_at"`

	// LastAcceptAt is the timestamp of the last accepted batch.
	LastAcceptAt time.Time `json:"last_accept_at"`
}

// IsEmpty returns true if the state has not been initialized.
func (s State) IsEmpty() bool {
	return s.LastSeq == 0 && s.LastSendAt.IsZero()
}

// UpdateAfterSend records the outcome of a batch send attempt.
func (s *State) UpdateAfterSend(seq uint64, accepted bool, now time.Time) {
	s.LastSeq = seq
	s.LastSendAt = now
	if accepted {
		s.BatchesSent++
		s.LastAcceptAt = now
	} else {
		s.BatchesDropped++
	}
}
