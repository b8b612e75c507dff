package format

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		sampleRate int
		channels   int
		bits       int
		encoding   Encoding
		expectErr  bool
	}{
		{"pcm16_mono", 48000, 1, 16, EncodingPCM, false},
		{"float_stereo", 44100, 2, 32, EncodingIEEEFloat, false},
		{"unknown_encoding_is_structurally_valid", 48000, 2, 24, EncodingUnknown, false},
		{"zero_rate", 0, 1, 16, EncodingPCM, true},
		{"no_channels", 48000, 0, 16, EncodingPCM, true},
		{"odd_bits", 48000, 1, 12, EncodingPCM, true},
		{"float_16", 48000, 1, 16, EncodingIEEEFloat, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := New(tt.sampleRate, tt.channels, tt.bits, tt.encoding)
			if tt.expectErr {
				assert.ErrorIs(t, err, ErrInvalidFormat)
				assert.Equal(t, AudioFormat{}, f)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.sampleRate, f.SampleRate)
			assert.Equal(t, tt.channels, f.Channels)
		})
	}
}

func TestSupported(t *testing.T) {
	assert.True(t, AudioFormat{48000, 1, 16, EncodingPCM}.Supported())
	assert.True(t, Float32(48000, 2).Supported())
	assert.False(t, AudioFormat{48000, 1, 16, EncodingUnknown}.Supported())
}

func TestArithmetic(t *testing.T) {
	f := Float32(48000, 2)

	assert.Equal(t, 8, f.BlockAlign())
	assert.Equal(t, 384000, f.BytesPerSecond())
	assert.Equal(t, 4800, f.FramesIn(100*time.Millisecond))
	assert.Equal(t, 100*time.Millisecond, f.DurationOf(4800))
	assert.True(t, f.IsFloat())
	assert.Equal(t, "ieee_float 48000Hz 2ch 32bit", f.String())
}

func TestMaxChunkSamples(t *testing.T) {
	assert.Equal(t, DefaultMaxChunk, MaxChunkSamples(Float32(48000, 1)))
	assert.Equal(t, 19200, MaxChunkSamples(Float32(48000, 2)))
	assert.Equal(t, DefaultMaxChunk, MaxChunkSamples(Float32(8000, 1)))
}
