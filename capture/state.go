package capture

import "sync/atomic"

// State is the capture lifecycle state.
//
//	Stopped → Starting → Capturing → Stopping → Stopped
//
// StartRecording moves Stopped to Starting. The capture goroutine moves
// Starting to Capturing once the native stream runs. StopRecording requests
// Stopping, and the capture goroutine returns the session to Stopped.
type State int32

const (
	// StateStopped means no capture goroutine is running.
	StateStopped State = iota
	// StateStarting means a capture goroutine was spawned but the native
	// stream has not started yet.
	StateStarting
	// StateCapturing means the capture goroutine is draining packets.
	StateCapturing
	// StateStopping means a stop was requested and not yet observed.
	StateStopping
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateCapturing:
		return "capturing"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// stateBox holds a State shared between the owning goroutine and the
// capture goroutine.
type stateBox struct {
	v atomic.Int32
}

func (b *stateBox) Load() State { return State(b.v.Load()) }

func (b *stateBox) Store(s State) { b.v.Store(int32(s)) }

func (b *stateBox) CompareAndSwap(old, next State) bool {
	return b.v.CompareAndSwap(int32(old), int32(next))
}
