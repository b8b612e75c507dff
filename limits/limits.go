// Package limits provides size limits for untrusted input: signaling
// messages from the network and sound files from disk.
package limits

import (
	"errors"
	"fmt"
)

const (
	// MaxSignalingMessage is the largest encoded call request or response
	// accepted from a peer. A request carries a 16 byte ID, two callsigns
	// and a timestamp, so real messages are far smaller.
	MaxSignalingMessage = 1372

	// MaxCallsign is the longest callsign accepted in a call request.
	MaxCallsign = 64

	// MaxSoundFile is the largest sound file read from disk (64 MiB).
	MaxSoundFile = 64 << 20

	// MaxDecompressedSound bounds the memory a zstd-compressed sound file may
	// expand to (256 MiB).
	MaxDecompressedSound = 256 << 20
)

var (
	// ErrMessageEmpty indicates an empty message was provided
	ErrMessageEmpty = errors.New("empty message")

	// ErrMessageTooLarge indicates message exceeds maximum size
	ErrMessageTooLarge = errors.New("message too large")

	// ErrFileTooLarge indicates a file exceeds its size limit
	ErrFileTooLarge = errors.New("file too large")
)

// ValidateMessageSize validates a message against the specified maximum size.
// Returns an error with context including the actual and maximum sizes.
func ValidateMessageSize(message []byte, maxSize int) error {
	if len(message) == 0 {
		return ErrMessageEmpty
	}
	if len(message) > maxSize {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrMessageTooLarge, len(message), maxSize)
	}
	return nil
}

// ValidateSignalingMessage validates an encoded signaling message against
// MaxSignalingMessage.
func ValidateSignalingMessage(message []byte) error {
	if len(message) == 0 {
		return ErrMessageEmpty
	}
	if len(message) > MaxSignalingMessage {
		return fmt.Errorf("%w: signaling size %d exceeds limit %d", ErrMessageTooLarge, len(message), MaxSignalingMessage)
	}
	return nil
}

// ValidateCallsign checks a callsign is non-empty and at most MaxCallsign bytes.
func ValidateCallsign(callsign string) error {
	if callsign == "" {
		return ErrMessageEmpty
	}
	if len(callsign) > MaxCallsign {
		return fmt.Errorf("%w: callsign length %d exceeds limit %d", ErrMessageTooLarge, len(callsign), MaxCallsign)
	}
	return nil
}

// ValidateSoundFile checks the size of a sound file before it is read.
func ValidateSoundFile(size int64) error {
	if size > MaxSoundFile {
		return fmt.Errorf("%w: sound file size %d exceeds limit %d", ErrFileTooLarge, size, MaxSoundFile)
	}
	return nil
}
