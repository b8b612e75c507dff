package capture

import "errors"

// Sentinel errors for capture session operations.
// These errors enable reliable error classification using errors.Is().

// Control errors, returned synchronously.
var (
	// ErrInvalidState indicates an operation that the current capture state
	// does not allow, such as starting a session that is already running.
	ErrInvalidState = errors.New("invalid capture state")

	// ErrUnsupportedFormat indicates the endpoint's native format is neither
	// integer PCM nor IEEE float.
	ErrUnsupportedFormat = errors.New("unsupported wave format")

	// ErrClosed indicates use of a session after Close.
	ErrClosed = errors.New("capture session closed")

	// ErrInvalidOptions indicates out-of-range session options.
	ErrInvalidOptions = errors.New("invalid capture options")
)

// Capture thread errors, delivered only through the recording-stopped
// notification.
var (
	// ErrCaptureFault wraps any failure that terminated the capture goroutine.
	ErrCaptureFault = errors.New("capture thread fault")

	// ErrShortPacket indicates the endpoint returned fewer bytes than its
	// reported frame count requires.
	ErrShortPacket = errors.New("native packet shorter than frame count")
)
