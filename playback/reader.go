package playback

import (
	"errors"
	"sync/atomic"

	"github.com/opd-ai/voicecore/format"
)

// Contract violations. Read panics with these values; they are programming
// errors in the caller, not runtime conditions.
var (
	// ErrChunkTooLarge is raised when Read is asked for more than MaxChunk samples.
	ErrChunkTooLarge = errors.New("requested chunk exceeds reader maximum")

	// ErrConcurrentRead is raised by the concurrency check when two
	// goroutines call Read at the same time.
	ErrConcurrentRead = errors.New("concurrent Read on single-owner reader")
)

// Source is the read-only sample store a Reader plays from.
// *resource.Sound implements it.
type Source interface {
	Len() int
	CopyTo(dst []float32, from int) int
	Format() format.AudioFormat
}

// Reader pulls fixed-size chunks from a Source, applying gain and optional
// looping. See the package documentation for its threading contract.
type Reader struct {
	sound    Source
	gain     float32
	looping  bool
	position int
	maxChunk int
	scratch  []float32

	checkConcurrency bool
	inRead           atomic.Bool
}

// NewReader creates a non-looping reader at unity gain positioned at the
// start of snd. The reader never modifies snd.
func NewReader(snd Source) *Reader {
	maxChunk := format.MaxChunkSamples(snd.Format())
	return &Reader{
		sound:    snd,
		gain:     1,
		maxChunk: maxChunk,
		scratch:  make([]float32, maxChunk),
	}
}

// Read fills buffer[offset:offset+count] from the current position and
// returns the number of samples produced.
//
// With looping enabled the result is always count: if the sound runs out
// mid-chunk the rest of the chunk is silence and the next call starts from
// the beginning. Without looping the result drops below count at the end
// of the sound and is 0 on every call after that.
//
// count must not exceed MaxChunk.
func (r *Reader) Read(buffer []float32, offset, count int) int {
	if count > r.maxChunk {
		panic(ErrChunkTooLarge)
	}
	if r.checkConcurrency {
		if !r.inRead.CompareAndSwap(false, true) {
			panic(ErrConcurrentRead)
		}
		defer r.inRead.Store(false)
	}

	out := buffer[offset : offset+count]
	length := r.sound.Len()

	toCopy := length - r.position
	if toCopy > count {
		toCopy = count
	}

	if r.gain == 0 {
		clear(out[:toCopy])
	} else {
		r.sound.CopyTo(out[:toCopy], r.position)
		if r.gain != 1 {
			for i := range out[:toCopy] {
				out[i] *= r.gain
			}
		}
	}
	r.position += toCopy

	if r.looping {
		if toCopy < count {
			// Pad with silence so the driver gets a full buffer at the wrap.
			clear(out[toCopy:])
			toCopy = count
		}
		if r.position > length-1 {
			r.position = 0
		}
	}

	return toCopy
}

// ReadChunk reads count samples into a reader-owned buffer and returns the
// number written together with that buffer. The buffer is overwritten by
// the next ReadChunk call.
func (r *Reader) ReadChunk(count int) (int, []float32) {
	if count > r.maxChunk {
		panic(ErrChunkTooLarge)
	}
	n := r.Read(r.scratch, 0, count)
	return n, r.scratch[:count]
}

// Reset rewinds to the start of the sound and sets the gain. Negative gains
// are treated as 0.
func (r *Reader) Reset(gain float32) {
	r.position = 0
	r.gain = clampGain(gain)
}

// SetGain sets the linear gain applied to every sample. Negative gains are
// treated as 0.
func (r *Reader) SetGain(gain float32) { r.gain = clampGain(gain) }

// Gain returns the current linear gain.
func (r *Reader) Gain() float32 { return r.gain }

// SetLooping enables or disables wrapping at the end of the sound.
func (r *Reader) SetLooping(looping bool) { r.looping = looping }

// Looping reports whether the reader wraps at the end of the sound.
func (r *Reader) Looping() bool { return r.looping }

// Position returns the index of the next sample to be read.
func (r *Reader) Position() int { return r.position }

// Finished reports whether a one-shot reader has consumed its sound.
func (r *Reader) Finished() bool {
	return !r.looping && r.position >= r.sound.Len()
}

// MaxChunk returns the largest count Read accepts.
func (r *Reader) MaxChunk() int { return r.maxChunk }

// Sound returns the source being read.
func (r *Reader) Sound() Source { return r.sound }

// Format returns the sound's format.
func (r *Reader) Format() format.AudioFormat { return r.sound.Format() }

// SetConcurrencyCheck makes Read panic with ErrConcurrentRead when entered
// while another Read is in progress.
func (r *Reader) SetConcurrencyCheck(enabled bool) { r.checkConcurrency = enabled }

func clampGain(gain float32) float32 {
	if gain < 0 {
		return 0
	}
	return gain
}
