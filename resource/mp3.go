package resource

import (
	"fmt"

	"github.com/opd-ai/voicecore/format"
	"github.com/tosone/minimp3"
)

// DecodeMP3 decodes a complete MP3 file into a float32 Sound.
func DecodeMP3(name string, data []byte) (*Sound, error) {
	dec, pcm, err := minimp3.DecodeFull(data)
	if err != nil {
		return nil, fmt.Errorf("decode mp3 %q: %w", name, err)
	}
	if dec == nil || dec.SampleRate == 0 || dec.Channels == 0 {
		return nil, fmt.Errorf("%w: %q has no mp3 frames", ErrUnsupportedFile, name)
	}

	return newOwnedSound(name, s16leToFloat32(pcm), format.Float32(dec.SampleRate, dec.Channels))
}

// s16leToFloat32 converts little-endian signed 16-bit PCM to float32.
func s16leToFloat32(pcm []byte) []float32 {
	samples := make([]float32, len(pcm)/2)
	for i := range samples {
		v := int16(uint16(pcm[i*2]) | uint16(pcm[i*2+1])<<8)
		samples[i] = float32(v) / 32768
	}
	return samples
}
