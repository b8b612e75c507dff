package interfaces

import (
	"errors"
	"fmt"
	"time"

	"github.com/opd-ai/voicecore/format"
	"github.com/opd-ai/voicecore/playback"
)

// ShareMode selects whether the endpoint shares the device with other
// applications.
type ShareMode uint8

const (
	// ShareModeShared mixes with other clients through the OS audio engine.
	ShareModeShared ShareMode = iota
	// ShareModeExclusive takes the device for this client alone.
	ShareModeExclusive
)

// String returns the share mode name.
func (m ShareMode) String() string {
	if m == ShareModeExclusive {
		return "exclusive"
	}
	return "shared"
}

// StreamFlags are requested when the native stream is initialised.
// Values mirror the OS capture API so real backends can pass them through.
type StreamFlags uint32

const (
	// StreamFlagEventCallback asks the endpoint to signal its event handle
	// whenever a buffer becomes ready.
	StreamFlagEventCallback StreamFlags = 0x00040000
	// StreamFlagSRCDefaultQuality selects the default resampler quality for
	// automatic conversion.
	StreamFlagSRCDefaultQuality StreamFlags = 0x08000000
	// StreamFlagAutoConvertPCM lets the OS convert between the device mix
	// format and the requested format.
	StreamFlagAutoConvertPCM StreamFlags = 0x80000000
)

// Has reports whether all bits of flag are set.
func (f StreamFlags) Has(flag StreamFlags) bool { return f&flag == flag }

// BufferFlags describe a packet returned by GetBuffer.
type BufferFlags uint32

const (
	// BufferFlagDataDiscontinuity marks a glitch before this packet.
	BufferFlagDataDiscontinuity BufferFlags = 0x1
	// BufferFlagSilent means the packet content must be treated as silence.
	BufferFlagSilent BufferFlags = 0x2
	// BufferFlagTimestampError marks an unreliable device position.
	BufferFlagTimestampError BufferFlags = 0x4
)

// Has reports whether all bits of flag are set.
func (f BufferFlags) Has(flag BufferFlags) bool { return f&flag == flag }

// Endpoint configuration errors.
var (
	// ErrInvalidBufferDuration indicates a non-positive buffer duration.
	ErrInvalidBufferDuration = errors.New("buffer duration must be positive")

	// ErrInvalidPeriodicity indicates an exclusive-mode periodicity that does
	// not match the buffer duration.
	ErrInvalidPeriodicity = errors.New("invalid periodicity for share mode")
)

// Endpoint state errors.
var (
	// ErrNotInitialized indicates a stream operation before Initialize.
	ErrNotInitialized = errors.New("endpoint not initialized")

	// ErrAlreadyInitialized indicates Initialize was called twice.
	ErrAlreadyInitialized = errors.New("endpoint already initialized")

	// ErrEndpointClosed indicates use of a closed endpoint.
	ErrEndpointClosed = errors.New("endpoint closed")
)

// EndpointConfig is passed to IEndpoint.Initialize.
type EndpointConfig struct {
	// ShareMode selects shared or exclusive access.
	ShareMode ShareMode

	// Flags are the requested stream flags.
	Flags StreamFlags

	// BufferDuration is the requested native buffer length.
	BufferDuration time.Duration

	// Periodicity is the device period. Shared event-driven streams use 0;
	// exclusive event-driven streams must equal BufferDuration.
	Periodicity time.Duration

	// Format is the stream format, normally the endpoint's MixFormat.
	Format format.AudioFormat
}

// Validate checks the configuration for internal consistency.
func (c EndpointConfig) Validate() error {
	if c.BufferDuration <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidBufferDuration, c.BufferDuration)
	}
	if c.Flags.Has(StreamFlagEventCallback) {
		if c.ShareMode == ShareModeShared && c.Periodicity != 0 {
			return fmt.Errorf("%w: shared event mode requires zero periodicity, got %v",
				ErrInvalidPeriodicity, c.Periodicity)
		}
		if c.ShareMode == ShareModeExclusive && c.Periodicity != c.BufferDuration {
			return fmt.Errorf("%w: exclusive event mode requires periodicity %v, got %v",
				ErrInvalidPeriodicity, c.BufferDuration, c.Periodicity)
		}
	}
	return c.Format.Validate()
}

// IEndpoint is a native audio capture endpoint.
//
// The capture session calls Initialize, SetEventHandle, Start, Stop and
// Close from its owning goroutine, and Start, Stop, NextPacketFrames,
// GetBuffer and ReleaseBuffer from its capture goroutine. Implementations
// must tolerate that split but need not support concurrent packet reads.
type IEndpoint interface {
	// MixFormat returns the format the device delivers in shared mode.
	MixFormat() format.AudioFormat

	// Initialize opens the native stream. It is called at most once.
	Initialize(cfg EndpointConfig) error

	// BufferFrames returns the native buffer size in frames after Initialize.
	BufferFrames() int

	// SetEventHandle registers the function called when data becomes ready.
	// Only used with StreamFlagEventCallback.
	SetEventHandle(signal func()) error

	// Start begins delivering packets.
	Start() error

	// Stop halts the stream without releasing it.
	Stop() error

	// NextPacketFrames returns the frame count of the next queued packet,
	// or 0 when none is available.
	NextPacketFrames() (int, error)

	// GetBuffer returns the next packet. The data slice is only valid until
	// ReleaseBuffer is called. Only one packet may be held at a time; Start
	// discards a packet that was never released.
	GetBuffer() (data []byte, frames int, flags BufferFlags, err error)

	// ReleaseBuffer hands the packet returned by GetBuffer back to the endpoint.
	ReleaseBuffer(frames int) error

	// Close releases the native endpoint.
	Close() error

	// IsSimulation returns true if this is a simulation implementation.
	IsSimulation() bool
}

// IRenderDevice drives an output device from a pull-based sample provider.
// The device calls provider.Read from its own real-time goroutine.
type IRenderDevice interface {
	// Play starts pulling from provider, replacing any previous provider.
	Play(provider playback.SampleProvider) error

	// Stop halts output.
	Stop() error

	// Close releases the device.
	Close() error
}
