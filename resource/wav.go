package resource

import (
	"fmt"
	"io"

	"github.com/go-audio/wav"
	"github.com/opd-ai/voicecore/format"
)

const wavFormatPCM = 1

// DecodeWAV decodes an integer-PCM WAV stream into a float32 Sound.
func DecodeWAV(name string, r io.ReadSeeker) (*Sound, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: %q is not a valid wav file", ErrUnsupportedFile, name)
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("%w: %q uses wav format tag %d", ErrUnsupportedFile, name, dec.WavAudioFormat)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav %q: %w", name, err)
	}

	bitDepth := int(dec.BitDepth)
	if bitDepth == 0 {
		bitDepth = buf.SourceBitDepth
	}
	if bitDepth < 8 || bitDepth > 32 {
		return nil, fmt.Errorf("%w: %q has bit depth %d", ErrUnsupportedFile, name, bitDepth)
	}
	scale := float32(int64(1) << (bitDepth - 1))

	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float32(v) / scale
	}

	return newOwnedSound(name, samples, format.Float32(int(dec.SampleRate), int(dec.NumChans)))
}
