package capture

import (
	"fmt"

	"github.com/opd-ai/voicecore/interfaces"
)

// DefaultBufferMilliseconds is the native buffer length requested when
// Options.BufferMilliseconds is zero.
const DefaultBufferMilliseconds = 100

// Bounds for Options.BufferMilliseconds.
const (
	MinBufferMilliseconds = 5
	MaxBufferMilliseconds = 2000
)

// DataAvailableFunc receives captured audio. buf holds n valid bytes and is
// reused after the call returns; receivers that keep the data must copy it.
type DataAvailableFunc func(buf []byte, n int)

// RecordingStoppedFunc is called once per recording with the fault that
// ended it, or nil after a requested stop.
type RecordingStoppedFunc func(err error)

// Options configures a capture session.
type Options struct {
	// BufferMilliseconds is the requested native buffer length. Lower values
	// reduce latency at the cost of more wake-ups.
	BufferMilliseconds int

	// EventSync waits on the endpoint's data-ready event instead of polling.
	EventSync bool

	// ShareMode selects shared or exclusive device access.
	ShareMode interfaces.ShareMode

	// OnDataAvailable is called from the capture goroutine for every flush.
	OnDataAvailable DataAvailableFunc

	// OnRecordingStopped is called from the capture goroutine when a
	// recording ends. It must not call Close on the same session.
	OnRecordingStopped RecordingStoppedFunc

	// Wake overrides the wake source chosen from EventSync.
	Wake WakeSource
}

// DefaultOptions returns polling, shared-mode options with a 100 ms buffer.
func DefaultOptions() Options {
	return Options{
		BufferMilliseconds: DefaultBufferMilliseconds,
		EventSync:          false,
		ShareMode:          interfaces.ShareModeShared,
	}
}

// Validate checks option bounds. A zero BufferMilliseconds is accepted and
// replaced by the default when the session is created.
func (o Options) Validate() error {
	if o.BufferMilliseconds == 0 {
		return nil
	}
	if o.BufferMilliseconds < MinBufferMilliseconds || o.BufferMilliseconds > MaxBufferMilliseconds {
		return fmt.Errorf("%w: buffer %dms outside [%d, %d]", ErrInvalidOptions,
			o.BufferMilliseconds, MinBufferMilliseconds, MaxBufferMilliseconds)
	}
	return nil
}
