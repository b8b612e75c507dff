package main

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/opd-ai/voicecore/format"
)

// silenceDBFS is reported for digital silence. JSON log output cannot carry
// -Inf.
const silenceDBFS = -120.0

// levelMeter tracks the peak and RMS level of captured audio over a
// reporting interval.
type levelMeter struct {
	format   format.AudioFormat
	interval time.Duration

	started time.Time
	peak    float64
	sumSq   float64
	samples int
}

func newLevelMeter(f format.AudioFormat, interval time.Duration) *levelMeter {
	return &levelMeter{format: f, interval: interval}
}

// Add accumulates one captured packet. Formats other than 32-bit float and
// 16-bit PCM are ignored.
func (m *levelMeter) Add(data []byte, at time.Time) {
	if m.started.IsZero() {
		m.started = at
	}
	switch {
	case m.format.IsFloat() && m.format.BitsPerSample == 32:
		for i := 0; i+4 <= len(data); i += 4 {
			m.sample(float64(math.Float32frombits(binary.LittleEndian.Uint32(data[i:]))))
		}
	case m.format.Encoding == format.EncodingPCM && m.format.BitsPerSample == 16:
		for i := 0; i+2 <= len(data); i += 2 {
			m.sample(float64(int16(binary.LittleEndian.Uint16(data[i:]))) / 32768)
		}
	}
}

func (m *levelMeter) sample(v float64) {
	m.peak = max(m.peak, math.Abs(v))
	m.sumSq += v * v
	m.samples++
}

// Due reports whether a full interval has been accumulated at time at.
func (m *levelMeter) Due(at time.Time) bool {
	return m.samples > 0 && at.Sub(m.started) >= m.interval
}

// Flush returns the peak and RMS levels in dBFS and starts a new interval.
// Levels are floored at silenceDBFS.
func (m *levelMeter) Flush() (peakDB, rmsDB float64) {
	rms := 0.0
	if m.samples > 0 {
		rms = math.Sqrt(m.sumSq / float64(m.samples))
	}
	peakDB, rmsDB = toDBFS(m.peak), toDBFS(rms)
	*m = levelMeter{format: m.format, interval: m.interval}
	return peakDB, rmsDB
}

func toDBFS(v float64) float64 {
	if v <= 0 {
		return silenceDBFS
	}
	return max(silenceDBFS, 20*math.Log10(v))
}
