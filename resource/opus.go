package resource

import (
	"fmt"

	"github.com/opd-ai/voicecore/format"
	"github.com/pion/opus"
	"github.com/sirupsen/logrus"
)

// maxOpusPacketSamples bounds one decoded packet: 120 ms of stereo at 48 kHz.
const maxOpusPacketSamples = 5760 * 2

// DecodeOpusFrames decodes a sequence of raw Opus packets (one packet per
// element, no container) into a single Sound. All packets must share the
// same bandwidth and channel layout; the first packet decides both.
func DecodeOpusFrames(name string, frames [][]byte) (*Sound, error) {
	logrus.WithFields(logrus.Fields{
		"function":    "DecodeOpusFrames",
		"name":        name,
		"frame_count": len(frames),
	}).Debug("Decoding opus frames")

	if len(frames) == 0 {
		return nil, fmt.Errorf("sound %q: %w", name, ErrEmptySound)
	}

	decoder := opus.NewDecoder()
	out := make([]byte, maxOpusPacketSamples*2)

	var (
		samples    []float32
		sampleRate int
		channels   int
	)
	for i, packet := range frames {
		if len(packet) == 0 {
			continue
		}

		bandwidth, isStereo, err := decoder.Decode(packet, out)
		if err != nil {
			return nil, fmt.Errorf("decode opus %q packet %d: %w", name, i, err)
		}

		ch := 1
		if isStereo {
			ch = 2
		}
		rate := bandwidth.SampleRate()
		if sampleRate == 0 {
			sampleRate, channels = rate, ch
		} else if rate != sampleRate || ch != channels {
			return nil, fmt.Errorf("%w: %q packet %d changes layout to %dHz/%dch",
				ErrUnsupportedFile, name, i, rate, ch)
		}

		n := opusPacketSamples(packet, rate) * ch
		if n <= 0 || n*2 > len(out) {
			n = len(out) / 2
		}
		samples = append(samples, s16leToFloat32(out[:n*2])...)
	}

	if sampleRate == 0 {
		return nil, fmt.Errorf("sound %q: %w", name, ErrEmptySound)
	}

	logrus.WithFields(logrus.Fields{
		"function":    "DecodeOpusFrames",
		"name":        name,
		"sample_rate": sampleRate,
		"channels":    channels,
		"samples":     len(samples),
	}).Debug("Opus frames decoded")

	return newOwnedSound(name, samples, format.Float32(sampleRate, channels))
}

// opusPacketSamples returns the per-channel sample count carried by an
// Opus packet at the given rate, derived from its TOC byte (RFC 6716 §3.1).
func opusPacketSamples(packet []byte, sampleRate int) int {
	if len(packet) == 0 {
		return 0
	}
	toc := packet[0]
	config := int(toc >> 3)

	// Frame duration in tenths of a millisecond.
	var tenths int
	switch {
	case config < 12:
		tenths = [...]int{100, 200, 400, 600}[config%4]
	case config < 16:
		tenths = [...]int{100, 200}[config%2]
	default:
		tenths = [...]int{25, 50, 100, 200}[config%4]
	}

	frames := 1
	switch toc & 0x3 {
	case 1, 2:
		frames = 2
	case 3:
		if len(packet) < 2 {
			return 0
		}
		frames = int(packet[1] & 0x3f)
	}

	return sampleRate * tenths * frames / 10000
}
