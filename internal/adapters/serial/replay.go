package serial

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/bft-labs/gnsship/internal/domain"
)

// ReplaySource implements ports.ByteSource over a recorded byte capture,
// for running the pipeline without receiver hardware. Reads are paced by an
// optional delay to approximate a live line; a finite recording ends with
// io.EOF, which sends the caller through its normal recovery path and
// rewinds the capture.
type ReplaySource struct {
	path  string
	delay time.Duration

	mu sync.Mutex
	f  *os.File
}

// NewReplaySource creates a source replaying the capture at path. delay is
// applied before every read; zero disables pacing.
func NewReplaySource(path string, delay time.Duration) *ReplaySource {
	return &ReplaySource{path: path, delay: delay}
}

// Read returns the next chunk of the capture.
func (s *ReplaySource) Read(p []byte) (int, error) {
	s.mu.Lock()
	f := s.f
	s.mu.Unlock()

	if f == nil {
		return 0, fmt.Errorf("%w: %s", domain.ErrSourceClosed, s.path)
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return f.Read(p)
}

// Reopen rewinds the capture to the beginning.
func (s *ReplaySource) Reopen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.f != nil {
		s.f.Close()
		s.f = nil
	}

	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("open capture %s: %w", s.path, err)
	}
	s.f = f
	return nil
}

// Close releases the capture file.
func (s *ReplaySource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}
