package app

import (
	"context"
	"math/rand"
	"time"

	"github.com/benbjohnson/clock"
)

// Default backoff configuration values.
const (
	DefaultBackoffInitial = 500 * time.Millisecond
	DefaultBackoffMax     = 10 * time.Second
)

// backoff implements exponential backoff with jitter.
type backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
	clock   clock.Clock
}

// newBackoff creates a new backoff with the given initial and max durations.
func newBackoff(clk clock.Clock, initial, max time.Duration) *backoff {
	return &backoff{
		initial: initial,
		max:     max,
		current: initial,
		clock:   clk,
	}
}

// Next returns the wait before the following attempt and advances the
// schedule.
func (b *backoff) Next() time.Duration {
	// Add jitter: ±20%
	jitter := float64(b.current) * 0.2 * (rand.Float64()*2 - 1)
	wait := time.Duration(float64(b.current) + jitter)

	// Increase for next time
	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}

	return wait
}

// Sleep waits for the next backoff interval. It returns early with the
// context's error when ctx ends first.
func (b *backoff) Sleep(ctx context.Context) error {
	t := b.clock.Timer(b.Next())
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Reset resets the backoff to the initial duration.
func (b *backoff) Reset() {
	b.current = b.initial
}

// Current returns the current backoff duration.
func (b *backoff) Current() time.Duration {
	return b.current
}
