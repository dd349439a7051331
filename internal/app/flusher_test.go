package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/bft-labs/gnsship/internal/domain"
)

// fakeSender records accepted batches and can be scripted to refuse a
// sequence number a set number of times.
type fakeSender struct {
	mu       sync.Mutex
	accepted []uint64
	attempts map[uint64]int
	failures map[uint64]int // remaining refusals per seq
}

func newFakeSender() *fakeSender {
	return &fakeSender{
		attempts: make(map[uint64]int),
		failures: make(map[uint64]int),
	}
}

func (s *fakeSender) Send(_ context.Context, batch *domain.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attempts[batch.Seq]++
	if s.failures[batch.Seq] > 0 {
		s.failures[batch.Seq]--
		return errors.New("collector refused")
	}
	s.accepted = append(s.accepted, batch.Seq)
	return nil
}

func (s *fakeSender) acceptedSeqs() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint64{}, s.accepted...)
}

func (s *fakeSender) attemptsFor(seq uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts[seq]
}

// fakeStateRepo keeps saved states in memory.
type fakeStateRepo struct {
	mu    sync.Mutex
	saved []domain.State
}

func (r *fakeStateRepo) Load(context.Context) (domain.State, error) {
	return domain.State{}, nil
}

func (r *fakeStateRepo) Save(_ context.Context, state domain.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, state)
	return nil
}

func (r *fakeStateRepo) last() (domain.State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.saved) == 0 {
		return domain.State{}, false
	}
	return r.saved[len(r.saved)-1], true
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func testFrame() domain.Frame {
	return domain.NewSentence([]byte("$GNGGA,1*55"), "GNGGA", nil)
}

func TestFlusher_ShipsBatchesInOrder(t *testing.T) {
	acc := NewAccumulator(clock.New(), 0)
	sender := newFakeSender()
	repo := &fakeStateRepo{}
	f := NewFlusher(FlusherConfig{
		Interval:       10 * time.Millisecond,
		MaxAttempts:    3,
		BackoffInitial: time.Millisecond,
		BackoffMax:     2 * time.Millisecond,
	}, acc, sender, repo, &mockLogger{}, nil, clock.New(), domain.State{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.Run(ctx)
		close(done)
	}()

	acc.Add(testFrame())
	waitFor(t, 2*time.Second, func() bool { return len(sender.acceptedSeqs()) >= 1 })

	acc.Add(testFrame())
	acc.Add(testFrame())
	waitFor(t, 2*time.Second, func() bool { return len(sender.acceptedSeqs()) >= 2 })

	cancel()
	<-done

	seqs := sender.acceptedSeqs()
	for i := 1; i < len(seqs); i++ {
		if seqs[i] <= seqs[i-1] {
			t.Errorf("accepted seqs = %v, want strictly increasing", seqs)
		}
	}
	if seqs[0] != 1 {
		t.Errorf("first seq = %d, want 1", seqs[0])
	}
}

func TestFlusher_DropsAfterExhaustedRetries(t *testing.T) {
	acc := NewAccumulator(clock.New(), 0)
	sender := newFakeSender()
	sender.failures[1] = 100 // seq 1 never succeeds
	repo := &fakeStateRepo{}
	f := NewFlusher(FlusherConfig{
		Interval:       10 * time.Millisecond,
		MaxAttempts:    2,
		BackoffInitial: time.Millisecond,
		BackoffMax:     2 * time.Millisecond,
	}, acc, sender, repo, &mockLogger{}, nil, clock.New(), domain.State{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.Run(ctx)
		close(done)
	}()

	acc.Add(testFrame())
	waitFor(t, 2*time.Second, func() bool { return sender.attemptsFor(1) >= 2 })

	// The pipeline moves on: the next batch takes the next number.
	acc.Add(testFrame())
	waitFor(t, 2*time.Second, func() bool { return len(sender.acceptedSeqs()) >= 1 })

	cancel()
	<-done

	if got := sender.attemptsFor(1); got != 2 {
		t.Errorf("attempts for dropped batch = %d, want exactly 2", got)
	}
	seqs := sender.acceptedSeqs()
	if len(seqs) == 0 || seqs[0] != 2 {
		t.Errorf("accepted seqs = %v, want [2] (gap where batch 1 was dropped)", seqs)
	}

	state, ok := repo.last()
	if !ok {
		t.Fatal("no state persisted")
	}
	if state.BatchesDropped != 1 {
		t.Errorf("BatchesDropped = %d, want 1", state.BatchesDropped)
	}
	if state.BatchesSent != 1 {
		t.Errorf("BatchesSent = %d, want 1", state.BatchesSent)
	}
	if state.LastSeq != 2 {
		t.Errorf("LastSeq = %d, want 2", state.LastSeq)
	}
}

func TestFlusher_FinalDrainOnShutdown(t *testing.T) {
	acc := NewAccumulator(clock.New(), 0)
	sender := newFakeSender()
	repo := &fakeStateRepo{}
	f := NewFlusher(FlusherConfig{
		Interval:       time.Hour, // ticker never fires during the test
		MaxAttempts:    2,
		BackoffInitial: time.Millisecond,
		BackoffMax:     2 * time.Millisecond,
	}, acc, sender, repo, &mockLogger{}, nil, clock.New(), domain.State{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.Run(ctx)
		close(done)
	}()

	acc.Add(testFrame())
	acc.Add(testFrame())
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	seqs := sender.acceptedSeqs()
	if len(seqs) != 1 || seqs[0] != 1 {
		t.Errorf("accepted seqs = %v, want [1] from the final drain", seqs)
	}
	if acc.Pending() != 0 {
		t.Errorf("Pending() after drain = %d, want 0", acc.Pending())
	}
}

func TestFlusher_ResumesCountersFromPersistedState(t *testing.T) {
	acc := NewAccumulator(clock.New(), 10)
	sender := newFakeSender()
	repo := &fakeStateRepo{}
	initial := domain.State{LastSeq: 10, BatchesSent: 10}
	f := NewFlusher(FlusherConfig{
		Interval:       time.Hour,
		MaxAttempts:    2,
		BackoffInitial: time.Millisecond,
		BackoffMax:     2 * time.Millisecond,
	}, acc, sender, repo, &mockLogger{}, nil, clock.New(), initial)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.Run(ctx)
		close(done)
	}()

	acc.Add(testFrame())
	cancel()
	<-done

	state, ok := repo.last()
	if !ok {
		t.Fatal("no state persisted")
	}
	if state.LastSeq != 11 {
		t.Errorf("LastSeq = %d, want 11", state.LastSeq)
	}
	if state.BatchesSent != 11 {
		t.Errorf("BatchesSent = %d, want 11", state.BatchesSent)
	}
}
