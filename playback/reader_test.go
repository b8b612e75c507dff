package playback

import (
	"fmt"
	"testing"

	"github.com/opd-ai/voicecore/format"
	"github.com/opd-ai/voicecore/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSound(t *testing.T, samples ...float32) *resource.Sound {
	t.Helper()
	snd, err := resource.NewSound("test", samples, format.Float32(48000, 1))
	require.NoError(t, err)
	return snd
}

func ramp(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i+1) / float32(n)
	}
	return out
}

// untouchableSource panics if its samples are ever read.
type untouchableSource struct{ n int }

func (u *untouchableSource) Len() int { return u.n }
func (u *untouchableSource) CopyTo([]float32, int) int {
	panic("source memory must not be read at zero gain")
}
func (u *untouchableSource) Format() format.AudioFormat { return format.Float32(48000, 1) }

func TestReadAppliesGain(t *testing.T) {
	src := ramp(4096)
	gains := []float32{0, 0.25, 0.5, 1}
	chunks := []int{1, 3, 480, 2048}

	for _, gain := range gains {
		for _, chunk := range chunks {
			t.Run(fmt.Sprintf("gain_%v_chunk_%d", gain, chunk), func(t *testing.T) {
				r := NewReader(newTestSound(t, src...))
				r.Reset(gain)
				r.position = 100

				buf := make([]float32, chunk)
				n := r.Read(buf, 0, chunk)

				require.Equal(t, chunk, n)
				for i := 0; i < chunk; i++ {
					assert.InDelta(t, gain*src[100+i], buf[i], 1e-7)
				}
				assert.Equal(t, 100+chunk, r.Position())
			})
		}
	}
}

func TestReadZeroGainDoesNotTouchSource(t *testing.T) {
	r := NewReader(&untouchableSource{n: 1000})
	r.Reset(0)

	buf := []float32{9, 9, 9, 9, 9}
	assert.NotPanics(t, func() {
		assert.Equal(t, 5, r.Read(buf, 0, 5))
	})
	assert.Equal(t, []float32{0, 0, 0, 0, 0}, buf)
	assert.Equal(t, 5, r.Position())
}

func TestReadLoopingRepeatsSourceWithBoundaryPadding(t *testing.T) {
	src := []float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	r := NewReader(newTestSound(t, src...))
	r.SetLooping(true)

	var got []float32
	buf := make([]float32, 4)
	for i := 0; i < 9; i++ {
		n := r.Read(buf, 0, 4)
		require.Equal(t, 4, n, "looping reads are always full")
		got = append(got, buf...)
	}

	// Each wrap emits the ten source samples followed by two samples of padding.
	cycle := []float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 0, 0}
	for i, v := range got {
		assert.Equal(t, cycle[i%len(cycle)], v, "sample %d", i)
	}
}

func TestReadLoopingExactMultipleHasNoPadding(t *testing.T) {
	r := NewReader(newTestSound(t, 1, 2, 3, 4, 5, 6, 7, 8))
	r.SetLooping(true)

	buf := make([]float32, 4)
	var got []float32
	for i := 0; i < 4; i++ {
		require.Equal(t, 4, r.Read(buf, 0, 4))
		got = append(got, buf...)
	}
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6, 7, 8, 1, 2, 3, 4, 5, 6, 7, 8}, got)
}

func TestReadLoopingKeepsGainAcrossWrap(t *testing.T) {
	r := NewReader(newTestSound(t, 1, 1, 1))
	r.SetLooping(true)
	r.SetGain(0.5)

	buf := make([]float32, 2)
	for i := 0; i < 5; i++ {
		r.Read(buf, 0, 2)
	}
	assert.Equal(t, float32(0.5), r.Gain())
}

func TestReadLoopingConcreteScenario(t *testing.T) {
	r := NewReader(newTestSound(t, 0.5, 0.5, 0.5, 0.5))
	r.SetLooping(true)

	buf := make([]float32, 3)
	n := r.Read(buf, 0, 3)
	assert.Equal(t, 3, n)
	assert.Equal(t, []float32{0.5, 0.5, 0.5}, buf)
	assert.Equal(t, 3, r.Position())

	n = r.Read(buf, 0, 3)
	assert.Equal(t, 3, n)
	assert.Equal(t, []float32{0.5, 0, 0}, buf)
	assert.Equal(t, 0, r.Position())
}

func TestReadOneShotShortSource(t *testing.T) {
	r := NewReader(newTestSound(t, 0.1, 0.2))

	buf := make([]float32, 5)
	n := r.Read(buf, 0, 5)
	assert.Equal(t, 2, n)
	assert.Equal(t, []float32{0.1, 0.2}, buf[:n])
	assert.True(t, r.Finished())
}

func TestReadOneShotExhaustion(t *testing.T) {
	r := NewReader(newTestSound(t, ramp(10)...))

	buf := make([]float32, 4)
	assert.Equal(t, 4, r.Read(buf, 0, 4))
	assert.Equal(t, 4, r.Read(buf, 0, 4))
	assert.Equal(t, 2, r.Read(buf, 0, 4))
	for i := 0; i < 3; i++ {
		assert.Equal(t, 0, r.Read(buf, 0, 4))
		assert.Equal(t, 10, r.Position())
	}
}

func TestResetRestartsFromBeginning(t *testing.T) {
	src := ramp(16)
	r := NewReader(newTestSound(t, src...))

	buf := make([]float32, 8)
	r.Read(buf, 0, 8)
	r.Read(buf, 0, 8)
	r.Read(buf, 0, 8)
	require.True(t, r.Finished())

	r.Reset(0.5)
	assert.Equal(t, 0, r.Position())
	assert.Equal(t, float32(0.5), r.Gain())

	n := r.Read(buf, 0, 8)
	require.Equal(t, 8, n)
	for i := range buf {
		assert.InDelta(t, 0.5*src[i], buf[i], 1e-7)
	}
}

func TestResetClampsNegativeGain(t *testing.T) {
	r := NewReader(newTestSound(t, 1))
	r.Reset(-2)
	assert.Equal(t, float32(0), r.Gain())
	r.SetGain(-1)
	assert.Equal(t, float32(0), r.Gain())
}

func TestReadHonoursOffset(t *testing.T) {
	r := NewReader(newTestSound(t, 1, 2, 3))

	buf := []float32{7, 7, 7, 7, 7}
	n := r.Read(buf, 2, 3)
	assert.Equal(t, 3, n)
	assert.Equal(t, []float32{7, 7, 1, 2, 3}, buf)
}

func TestReadChunkTooLargePanics(t *testing.T) {
	r := NewReader(newTestSound(t, 1, 2, 3))
	buf := make([]float32, r.MaxChunk()+1)

	assert.Equal(t, format.DefaultMaxChunk, r.MaxChunk())
	assert.PanicsWithValue(t, ErrChunkTooLarge, func() {
		r.Read(buf, 0, r.MaxChunk()+1)
	})
	assert.PanicsWithValue(t, ErrChunkTooLarge, func() {
		r.ReadChunk(r.MaxChunk() + 1)
	})
}

func TestReadChunkReturnsOwnedBuffer(t *testing.T) {
	r := NewReader(newTestSound(t, 0.5, 0.5, 0.5, 0.5))
	r.SetLooping(true)

	n, out := r.ReadChunk(3)
	assert.Equal(t, 3, n)
	assert.Equal(t, []float32{0.5, 0.5, 0.5}, out)

	n, out = r.ReadChunk(3)
	assert.Equal(t, 3, n)
	assert.Equal(t, []float32{0.5, 0, 0}, out)
}

func TestReadDoesNotAllocate(t *testing.T) {
	r := NewReader(newTestSound(t, ramp(4800)...))
	r.SetLooping(true)
	r.SetGain(0.8)
	buf := make([]float32, 960)

	allocs := testing.AllocsPerRun(100, func() {
		r.Read(buf, 0, len(buf))
	})
	assert.Zero(t, allocs)
}

// Concurrent use is outside the reader's contract; the optional check turns
// an overlapping call into an immediate panic instead of silent corruption.
func TestConcurrentReadIsRejectedByCheck(t *testing.T) {
	r := NewReader(newTestSound(t, 1, 2, 3, 4))
	buf := make([]float32, 2)

	// Simulate a Read already in flight on another goroutine.
	r.inRead.Store(true)
	assert.NotPanics(t, func() { r.Read(buf, 0, 2) }, "check disabled by default")

	r.SetConcurrencyCheck(true)
	assert.PanicsWithValue(t, ErrConcurrentRead, func() { r.Read(buf, 0, 2) })

	r.inRead.Store(false)
	assert.NotPanics(t, func() { r.Read(buf, 0, 2) })
	assert.False(t, r.inRead.Load(), "guard must be released after Read")
}

func TestSilence(t *testing.T) {
	s := Silence{AudioFormat: format.Float32(48000, 1)}
	buf := []float32{1, 1, 1, 1}
	assert.Equal(t, 3, s.Read(buf, 1, 3))
	assert.Equal(t, []float32{1, 0, 0, 0}, buf)
	assert.Equal(t, 48000, s.Format().SampleRate)
}
