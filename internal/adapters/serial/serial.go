package serial

import (
	"fmt"
	"io"
	"sync"
	"time"

	goserial "github.com/jacobsa/go-serial/serial"

	"github.com/bft-labs/gnsship/internal/domain"
)

// Options configures the receiver port.
type Options struct {
	// Port is the device path, e.g. /dev/ttyAMA0.
	Port string

	// BaudRate in bits per second.
	BaudRate uint

	// ReadTimeout bounds how long a Read may sit on a quiet line before
	// returning empty. The driver works in 100ms steps with a 100ms floor.
	ReadTimeout time.Duration
}

// PortSource implements ports.ByteSource over a local serial device in raw
// 8N1 mode. The device is opened with a zero minimum read size so reads
// return whatever arrived within the inter-character timeout instead of
// blocking for a full buffer.
type PortSource struct {
	opts Options

	mu   sync.Mutex
	port io.ReadWriteCloser
}

// NewPortSource creates a source for the given device. The device is not
// touched until the first Reopen.
func NewPortSource(opts Options) *PortSource {
	return &PortSource{opts: opts}
}

// Read pulls whatever the receiver has written since the last call.
// A quiet line returns (0, nil) once the read timeout expires.
func (s *PortSource) Read(p []byte) (int, error) {
	s.mu.Lock()
	port := s.port
	s.mu.Unlock()

	if port == nil {
		return 0, fmt.Errorf("%w: %s", domain.ErrSourceClosed, s.opts.Port)
	}

	n, err := port.Read(p)
	if n == 0 && err == io.EOF {
		// VMIN=0/VTIME expiry on a quiet line, not a device failure.
		return 0, nil
	}
	return n, err
}

// Reopen (re)establishes the device session, closing any previous handle
// first. It doubles as the initial open.
func (s *PortSource) Reopen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port != nil {
		s.port.Close()
		s.port = nil
	}

	timeoutMs := uint(s.opts.ReadTimeout.Milliseconds())
	if timeoutMs < 100 {
		timeoutMs = 100
	}

	port, err := goserial.Open(goserial.OpenOptions{
		PortName:              s.opts.Port,
		BaudRate:              s.opts.BaudRate,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       0,
		InterCharacterTimeout: timeoutMs,
	})
	if err != nil {
		return fmt.Errorf("open %s: %w", s.opts.Port, err)
	}

	s.port = port
	return nil
}

// Close releases the device handle. Reads fail until the next Reopen.
func (s *PortSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}
