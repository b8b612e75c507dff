package playback

import "github.com/opd-ai/voicecore/format"

// SampleProvider is the pull interface consumed by output drivers.
//
// Read fills buffer[offset:offset+count] and returns the number of samples
// written. Looping providers always return count; one-shot providers return
// fewer once their source is exhausted, and 0 after that.
type SampleProvider interface {
	Read(buffer []float32, offset, count int) int
	Format() format.AudioFormat
}

// Silence is a SampleProvider that produces zeros forever.
type Silence struct {
	AudioFormat format.AudioFormat
}

// Read writes count zero samples.
func (s Silence) Read(buffer []float32, offset, count int) int {
	clear(buffer[offset : offset+count])
	return count
}

// Format returns the configured format.
func (s Silence) Format() format.AudioFormat { return s.AudioFormat }
