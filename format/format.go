package format

import (
	"errors"
	"fmt"
	"time"
)

// Encoding identifies how samples are laid out in a PCM byte stream.
type Encoding uint8

const (
	// EncodingUnknown is any native encoding voicecore cannot process.
	EncodingUnknown Encoding = iota
	// EncodingPCM is signed little-endian integer PCM.
	EncodingPCM
	// EncodingIEEEFloat is little-endian IEEE 754 float PCM.
	EncodingIEEEFloat
)

// String returns a human-readable name for the encoding.
func (e Encoding) String() string {
	switch e {
	case EncodingPCM:
		return "pcm"
	case EncodingIEEEFloat:
		return "ieee_float"
	default:
		return "unknown"
	}
}

// ChunkDuration is the length of audio a sample reader may be asked for in
// a single call.
const ChunkDuration = 200 * time.Millisecond

// DefaultMaxChunk is the chunk limit in samples used when a format does not
// give a larger one: 200 ms of mono audio at 48 kHz.
const DefaultMaxChunk = 9600

// ErrInvalidFormat indicates an AudioFormat with out-of-range fields.
var ErrInvalidFormat = errors.New("invalid audio format")

// AudioFormat describes interleaved PCM audio.
//
// Values are immutable; construct them with New so they are validated.
type AudioFormat struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	Encoding      Encoding
}

// New creates a validated AudioFormat.
func New(sampleRate, channels, bitsPerSample int, encoding Encoding) (AudioFormat, error) {
	f := AudioFormat{
		SampleRate:    sampleRate,
		Channels:      channels,
		BitsPerSample: bitsPerSample,
		Encoding:      encoding,
	}
	if err := f.Validate(); err != nil {
		return AudioFormat{}, err
	}
	return f, nil
}

// Float32 returns the canonical in-memory format for decoded sounds.
func Float32(sampleRate, channels int) AudioFormat {
	return AudioFormat{
		SampleRate:    sampleRate,
		Channels:      channels,
		BitsPerSample: 32,
		Encoding:      EncodingIEEEFloat,
	}
}

// Validate checks the structural fields of the format. It does not reject
// EncodingUnknown; callers that need a processable encoding use Supported.
func (f AudioFormat) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrInvalidFormat, f.SampleRate)
	}
	if f.Channels < 1 {
		return fmt.Errorf("%w: channels %d", ErrInvalidFormat, f.Channels)
	}
	if f.BitsPerSample <= 0 || f.BitsPerSample%8 != 0 {
		return fmt.Errorf("%w: bits per sample %d", ErrInvalidFormat, f.BitsPerSample)
	}
	if f.Encoding == EncodingIEEEFloat && f.BitsPerSample != 32 && f.BitsPerSample != 64 {
		return fmt.Errorf("%w: float with %d bits", ErrInvalidFormat, f.BitsPerSample)
	}
	return nil
}

// Supported reports whether the encoding is integer PCM or IEEE float.
func (f AudioFormat) Supported() bool {
	return f.Encoding == EncodingPCM || f.Encoding == EncodingIEEEFloat
}

// IsFloat reports whether samples are IEEE float.
func (f AudioFormat) IsFloat() bool {
	return f.Encoding == EncodingIEEEFloat
}

// BlockAlign returns the number of bytes in one frame (one sample per channel).
func (f AudioFormat) BlockAlign() int {
	return f.Channels * f.BitsPerSample / 8
}

// BytesPerSecond returns the byte rate of the format.
func (f AudioFormat) BytesPerSecond() int {
	return f.SampleRate * f.BlockAlign()
}

// FramesIn returns the number of whole frames that fit in d.
func (f AudioFormat) FramesIn(d time.Duration) int {
	return int(int64(f.SampleRate) * int64(d) / int64(time.Second))
}

// DurationOf returns the playing time of the given number of frames.
func (f AudioFormat) DurationOf(frames int) time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(int64(frames) * int64(time.Second) / int64(f.SampleRate))
}

// String implements fmt.Stringer.
func (f AudioFormat) String() string {
	return fmt.Sprintf("%s %dHz %dch %dbit", f.Encoding, f.SampleRate, f.Channels, f.BitsPerSample)
}

// MaxChunkSamples returns the largest sample count a reader of this format
// accepts per call: 200 ms of interleaved audio, never less than
// DefaultMaxChunk.
func MaxChunkSamples(f AudioFormat) int {
	n := f.FramesIn(ChunkDuration) * f.Channels
	if n < DefaultMaxChunk {
		return DefaultMaxChunk
	}
	return n
}
