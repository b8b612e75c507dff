package resource

import (
	"errors"
	"fmt"
	"time"

	"github.com/opd-ai/voicecore/format"
)

// Sound errors.
var (
	// ErrEmptySound indicates a decoder produced no samples.
	ErrEmptySound = errors.New("sound has no samples")

	// ErrUnsupportedFile indicates the source encoding cannot be decoded.
	ErrUnsupportedFile = errors.New("unsupported sound file")
)

// Sound is an immutable, fully decoded PCM buffer.
//
// The sample slice is private so that readers cannot mutate a sound that
// other readers share.
type Sound struct {
	name    string
	samples []float32
	format  format.AudioFormat
}

// NewSound builds a Sound from a copy of samples.
func NewSound(name string, samples []float32, f format.AudioFormat) (*Sound, error) {
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("sound %q: %w", name, err)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("sound %q: %w", name, ErrEmptySound)
	}

	owned := make([]float32, len(samples))
	copy(owned, samples)
	return &Sound{name: name, samples: owned, format: f}, nil
}

// newOwnedSound wraps samples without copying. Decoders use it for buffers
// they allocated themselves.
func newOwnedSound(name string, samples []float32, f format.AudioFormat) (*Sound, error) {
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("sound %q: %w", name, err)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("sound %q: %w", name, ErrEmptySound)
	}
	return &Sound{name: name, samples: samples, format: f}, nil
}

// Name returns the name the sound was loaded under.
func (s *Sound) Name() string { return s.name }

// Format returns the sample format. Sounds are always float32.
func (s *Sound) Format() format.AudioFormat { return s.format }

// Len returns the number of interleaved samples.
func (s *Sound) Len() int { return len(s.samples) }

// At returns the sample at index i.
func (s *Sound) At(i int) float32 { return s.samples[i] }

// CopyTo copies samples starting at from into dst and returns the number
// copied. It does not allocate.
func (s *Sound) CopyTo(dst []float32, from int) int {
	if from < 0 || from >= len(s.samples) {
		return 0
	}
	return copy(dst, s.samples[from:])
}

// Duration returns the playing time of the sound.
func (s *Sound) Duration() time.Duration {
	return s.format.DurationOf(len(s.samples) / s.format.Channels)
}
