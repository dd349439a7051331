package gnsship

import "time"

// State represents the lifecycle state of a Node.
type State int

const (
	// StateStopped means the node is not running.
	StateStopped State = iota

	// StateStarting means the node is initializing.
	StateStarting

	// StateReading means the node is pulling bytes off the receiver.
	StateReading

	// StateRecovering means the serial device failed and the node is
	// attempting to reopen it.
	StateRecovering

	// StateStopping means the node is shutting down gracefully.
	StateStopping

	// StateCrashed means the node terminated with an error.
	StateCrashed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateStarting:
		return "Starting"
	case StateReading:
		return "Reading"
	case StateRecovering:
		return "Recovering"
	case StateStopping:
		return "Stopping"
	case StateCrashed:
		return "Crashed"
	default:
		return "Unknown"
	}
}

// CanStart returns true if Start() may be called from this state.
func (s State) CanStart() bool {
	return s == StateStopped || s == StateCrashed
}

// CanStop returns true if Stop() may be called from this state.
func (s State) CanStop() bool {
	return s == StateStarting || s == StateReading || s == StateRecovering
}

// IsRunning returns true if the node is actively acquiring data.
// Recovering counts as running: the read loop still owns the device and
// is working to restore it.
func (s State) IsRunning() bool {
	return s == StateReading || s == StateRecovering
}

// StateChangeEvent is emitted when the node transitions between states.
type StateChangeEvent struct {
	// Previous is the state before the transition.
	Previous State

	// Current is the state after the transition.
	Current State

	// Reason is a human-readable explanation of the transition.
	Reason string
}

// SendSuccessEvent is emitted when a batch is accepted by the collector.
type SendSuccessEvent struct {
	// FrameCount is the number of frames in the accepted batch.
	FrameCount int

	// BytesSent is the total payload size of the batch.
	BytesSent int

	// Duration is how long the accepted attempt took.
	Duration time.Duration
}

// SendErrorEvent is emitted when a send attempt fails.
type SendErrorEvent struct {
	// Error is the failure.
	Error error

	// FrameCount is the number of frames in the failed batch.
	FrameCount int

	// Retryable is false once the batch has been dropped after retry
	// exhaustion.
	Retryable bool
}

// EventHandler receives notifications about node operations.
// Handlers are called synchronously from the acquisition goroutines and
// should return quickly to avoid stalling the pipeline.
type EventHandler interface {
	// OnStateChange is called when the lifecycle state changes.
	OnStateChange(event StateChangeEvent)

	// OnSendSuccess is called when a batch is accepted by the collector.
	OnSendSuccess(event SendSuccessEvent)

	// OnSendError is called when a send attempt fails.
	OnSendError(event SendErrorEvent)
}

// BaseEventHandler provides no-op implementations of all EventHandler
// methods. Embed it to implement only the events you care about.
type BaseEventHandler struct{}

// OnStateChange is a no-op.
func (BaseEventHandler) OnStateChange(event StateChangeEvent) {}

// OnSendSuccess is a no-op.
func (BaseEventHandler) OnSendSuccess(event SendSuccessEvent) {}

// OnSendError is a no-op.
func (BaseEventHandler) OnSendError(event SendErrorEvent) {}
