package capture

import (
	"encoding/binary"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opd-ai/voicecore/format"
	"github.com/opd-ai/voicecore/interfaces"
	simulated "github.com/opd-ai/voicecore/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects the callbacks of one session.
type recorder struct {
	mu      sync.Mutex
	chunks  [][]byte
	caps    []int
	stops   []error
	stopped chan struct{}
}

func newRecorder() *recorder {
	return &recorder{stopped: make(chan struct{}, 8)}
}

func (r *recorder) data(buf []byte, n int) {
	c := make([]byte, n)
	copy(c, buf[:n])

	r.mu.Lock()
	r.chunks = append(r.chunks, c)
	r.caps = append(r.caps, cap(buf))
	r.mu.Unlock()
}

func (r *recorder) stop(err error) {
	r.mu.Lock()
	r.stops = append(r.stops, err)
	r.mu.Unlock()
	r.stopped <- struct{}{}
}

func (r *recorder) sizes() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	sizes := make([]int, len(r.chunks))
	for i, c := range r.chunks {
		sizes[i] = len(c)
	}
	return sizes
}

func (r *recorder) emissions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.chunks)
}

func (r *recorder) stopErrors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.stops...)
}

func (r *recorder) waitStopped(t *testing.T) {
	t.Helper()
	select {
	case <-r.stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("recording-stopped notification not raised")
	}
}

func floatBytes(vals ...float32) []byte {
	b := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(v))
	}
	return b
}

var monoFloat = format.Float32(8000, 1)

// newEventSession returns an event-driven session over a simulated endpoint
// whose native buffer holds bufferFrames frames.
func newEventSession(t *testing.T, bufferFrames int) (*Session, *simulated.SimulatedEndpoint, *recorder) {
	t.Helper()

	ep := simulated.NewSimulatedEndpoint(monoFloat)
	ep.SetBufferFrames(bufferFrames)
	rec := newRecorder()

	s, err := New(ep, Options{
		BufferMilliseconds: 20,
		EventSync:          true,
		OnDataAvailable:    rec.data,
		OnRecordingStopped: rec.stop,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, ep, rec
}

func waitState(t *testing.T, s *Session, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return s.State() == want }, 2*time.Second, time.Millisecond,
		"session never reached %s", want)
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, DefaultOptions())
	assert.ErrorIs(t, err, ErrInvalidOptions)

	ep := simulated.NewSimulatedEndpoint(monoFloat)
	_, err = New(ep, Options{BufferMilliseconds: 1})
	assert.ErrorIs(t, err, ErrInvalidOptions)

	s, err := New(ep, Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultBufferMilliseconds, s.opts.BufferMilliseconds)
	assert.IsType(t, &TimerWake{}, s.wake)
	assert.Equal(t, StateStopped, s.State())
	assert.NotEmpty(t, s.ID().String())
}

func TestSessionCapturesPackets(t *testing.T) {
	s, ep, rec := newEventSession(t, 8)
	require.NoError(t, s.StartRecording())
	waitState(t, s, StateCapturing)

	ep.PushPCM(floatBytes(0.1, 0.2, 0.3))

	require.Eventually(t, func() bool { return rec.emissions() == 1 }, 2*time.Second, time.Millisecond)
	rec.mu.Lock()
	assert.Equal(t, floatBytes(0.1, 0.2, 0.3), rec.chunks[0])
	assert.Equal(t, 12, rec.caps[0], "emitted slice is capped at its length")
	rec.mu.Unlock()

	assert.Equal(t, monoFloat, s.Format())
	stats := s.Stats()
	assert.Equal(t, uint64(1), stats.Emissions)
	assert.Equal(t, uint64(12), stats.Bytes)
	assert.Equal(t, uint64(1), stats.Packets)
}

func TestSessionEventConfiguration(t *testing.T) {
	tests := []struct {
		name        string
		eventSync   bool
		shareMode   interfaces.ShareMode
		wantEvent   bool
		periodicity time.Duration
	}{
		{"polling shared", false, interfaces.ShareModeShared, false, 0},
		{"event shared", true, interfaces.ShareModeShared, true, 0},
		{"event exclusive", true, interfaces.ShareModeExclusive, true, 30 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep := simulated.NewSimulatedEndpoint(monoFloat)
			s, err := New(ep, Options{BufferMilliseconds: 30, EventSync: tt.eventSync, ShareMode: tt.shareMode})
			require.NoError(t, err)
			defer s.Close()

			require.NoError(t, s.StartRecording())
			cfg := ep.Config()
			assert.Equal(t, 30*time.Millisecond, cfg.BufferDuration)
			assert.Equal(t, tt.wantEvent, cfg.Flags.Has(interfaces.StreamFlagEventCallback))
			assert.True(t, cfg.Flags.Has(interfaces.StreamFlagAutoConvertPCM))
			assert.True(t, cfg.Flags.Has(interfaces.StreamFlagSRCDefaultQuality))
			assert.Equal(t, tt.periodicity, cfg.Periodicity)
			assert.Equal(t, tt.shareMode, cfg.ShareMode)
		})
	}
}

func TestSessionPollingMode(t *testing.T) {
	ep := simulated.NewSimulatedEndpoint(monoFloat)
	rec := newRecorder()
	s, err := New(ep, Options{BufferMilliseconds: 10, OnDataAvailable: rec.data, OnRecordingStopped: rec.stop})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.StartRecording())
	ep.PushPCM(floatBytes(1, 2))

	require.Eventually(t, func() bool { return rec.emissions() == 1 }, 2*time.Second, time.Millisecond)
	assert.Equal(t, []int{8}, rec.sizes())
}

func TestStartRecordingTwiceFails(t *testing.T) {
	s, _, _ := newEventSession(t, 8)
	require.NoError(t, s.StartRecording())

	err := s.StartRecording()
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Contains(t, err.Error(), "previous recording still in progress")
}

func TestStopRaisesNotificationOnce(t *testing.T) {
	s, ep, rec := newEventSession(t, 8)
	require.NoError(t, s.StartRecording())
	waitState(t, s, StateCapturing)

	ep.PushPCM(floatBytes(1))
	require.Eventually(t, func() bool { return rec.emissions() == 1 }, 2*time.Second, time.Millisecond)

	s.StopRecording()
	s.StopRecording()
	rec.waitStopped(t)
	assert.Equal(t, StateStopped, s.State())
	assert.False(t, ep.IsStarted())

	// Nothing is emitted once the notification was raised.
	ep.PushPCM(floatBytes(2))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, rec.emissions())

	s.StopRecording()
	time.Sleep(10 * time.Millisecond)
	errs := rec.stopErrors()
	require.Len(t, errs, 1)
	assert.NoError(t, errs[0])
}

func TestStopOnStoppedSessionIsNoop(t *testing.T) {
	s, _, rec := newEventSession(t, 8)
	s.StopRecording()
	assert.Equal(t, StateStopped, s.State())
	assert.Empty(t, rec.stopErrors())
}

func TestRestartAfterStop(t *testing.T) {
	s, ep, rec := newEventSession(t, 8)

	for i := 0; i < 2; i++ {
		require.NoError(t, s.StartRecording())
		waitState(t, s, StateCapturing)
		s.StopRecording()
		rec.waitStopped(t)
	}

	stats := ep.GetStats()
	assert.Equal(t, 1, stats["initialize_count"], "endpoint initialised once per session")
	assert.Equal(t, 2, stats["start_count"])
	assert.Equal(t, 2, stats["stop_count"])
	assert.Len(t, rec.stopErrors(), 2)
}

// firstWake records whether the first Wait after each Reset was signalled.
type firstWake struct {
	*EventWake
	mu    sync.Mutex
	armed bool
	first []bool
}

func (w *firstWake) Reset() {
	w.EventWake.Reset()
	w.mu.Lock()
	w.armed = true
	w.mu.Unlock()
}

func (w *firstWake) Wait(timeout time.Duration) bool {
	ok := w.EventWake.Wait(timeout)
	w.mu.Lock()
	if w.armed {
		w.first = append(w.first, ok)
		w.armed = false
	}
	w.mu.Unlock()
	return ok
}

func (w *firstWake) firstWaits() []bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]bool(nil), w.first...)
}

func TestStaleStopSignalDiscardedOnStart(t *testing.T) {
	ep := simulated.NewSimulatedEndpoint(monoFloat)
	ep.SetBufferFrames(8)
	rec := newRecorder()
	wake := &firstWake{EventWake: NewEventWake()}

	s, err := New(ep, Options{
		BufferMilliseconds: 20,
		EventSync:          true,
		Wake:               wake,
		OnRecordingStopped: rec.stop,
	})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.StartRecording())
	waitState(t, s, StateCapturing)
	s.StopRecording()
	rec.waitStopped(t)

	// A stop request that reached the wake source after the capture
	// goroutine left its loop.
	wake.Signal()

	before := len(wake.firstWaits())
	require.NoError(t, s.StartRecording())
	waitState(t, s, StateCapturing)
	require.Eventually(t, func() bool { return len(wake.firstWaits()) > before }, 2*time.Second, time.Millisecond)
	assert.False(t, wake.firstWaits()[before], "the second recording starts with an unsignalled wait")

	s.StopRecording()
	rec.waitStopped(t)
}

func TestCloseBeforeStart(t *testing.T) {
	ep := simulated.NewSimulatedEndpoint(monoFloat)
	rec := newRecorder()
	s, err := New(ep, Options{OnRecordingStopped: rec.stop})
	require.NoError(t, err)

	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
	assert.Equal(t, 1, ep.GetStats()["close_count"])
	assert.Empty(t, rec.stopErrors())

	assert.ErrorIs(t, s.StartRecording(), ErrClosed)
}

func TestCloseWhileCapturing(t *testing.T) {
	s, ep, rec := newEventSession(t, 8)
	require.NoError(t, s.StartRecording())
	waitState(t, s, StateCapturing)

	require.NoError(t, s.Close())

	// Close joins the capture goroutine, so the notification already fired.
	errs := rec.stopErrors()
	require.Len(t, errs, 1)
	assert.NoError(t, errs[0])
	assert.Equal(t, StateStopped, s.State())
	assert.Equal(t, 1, ep.GetStats()["close_count"])
}

func TestUnsupportedFormatRejected(t *testing.T) {
	mix := format.AudioFormat{SampleRate: 48000, Channels: 2, BitsPerSample: 24, Encoding: format.EncodingUnknown}
	ep := simulated.NewSimulatedEndpoint(mix)
	rec := newRecorder()
	s, err := New(ep, Options{OnRecordingStopped: rec.stop})
	require.NoError(t, err)
	defer s.Close()

	err = s.StartRecording()
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.Equal(t, StateStopped, s.State())

	stats := ep.GetStats()
	assert.Equal(t, 0, stats["initialize_count"])
	assert.Equal(t, 0, stats["start_count"])
	assert.Empty(t, rec.stopErrors(), "no capture goroutine was started")
}

func TestInitializeFailureLeavesSessionStopped(t *testing.T) {
	ep := simulated.NewSimulatedEndpoint(monoFloat)
	boom := errors.New("device busy")
	ep.FailInitialize(boom)

	s, err := New(ep, DefaultOptions())
	require.NoError(t, err)
	defer s.Close()

	err = s.StartRecording()
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StateStopped, s.State())

	require.NoError(t, s.StartRecording(), "a later start retries initialisation")
}

func TestCaptureFaultsReachStopNotification(t *testing.T) {
	boom := errors.New("device invalidated")

	tests := []struct {
		name   string
		inject func(ep *simulated.SimulatedEndpoint)
		target error
	}{
		{
			name:   "start failure",
			inject: func(ep *simulated.SimulatedEndpoint) { ep.FailStart(boom) },
			target: boom,
		},
		{
			name: "get buffer failure",
			inject: func(ep *simulated.SimulatedEndpoint) {
				ep.FailNextGetBuffer(boom)
				ep.PushPCM(floatBytes(1))
			},
			target: boom,
		},
		{
			name: "driver panic",
			inject: func(ep *simulated.SimulatedEndpoint) {
				ep.PanicOnGetBuffer()
				ep.PushPCM(floatBytes(1))
			},
		},
		{
			name: "short packet",
			inject: func(ep *simulated.SimulatedEndpoint) {
				ep.Push(simulated.SimulatedPacket{Data: make([]byte, 4), Frames: 2})
			},
			target: ErrShortPacket,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ep, rec := newEventSession(t, 8)
			tt.inject(ep)

			require.NoError(t, s.StartRecording(), "capture faults are never returned to the caller")
			rec.waitStopped(t)

			errs := rec.stopErrors()
			require.Len(t, errs, 1)
			assert.ErrorIs(t, errs[0], ErrCaptureFault)
			if tt.target != nil {
				assert.ErrorIs(t, errs[0], tt.target)
			}
			assert.Equal(t, StateStopped, s.State())
			assert.Equal(t, 0, rec.emissions())
		})
	}
}

func TestRestartAfterFaultWithBufferHeld(t *testing.T) {
	tests := []struct {
		name   string
		inject func(ep *simulated.SimulatedEndpoint)
	}{
		{
			name: "short packet",
			inject: func(ep *simulated.SimulatedEndpoint) {
				ep.Push(simulated.SimulatedPacket{Data: make([]byte, 4), Frames: 2})
			},
		},
		{
			name: "callback panic during overflow flush",
			inject: func(ep *simulated.SimulatedEndpoint) {
				ep.Push(
					simulated.SimulatedPacket{Data: floatBytes(1, 2, 3), Frames: 3},
					simulated.SimulatedPacket{Data: floatBytes(4, 5, 6), Frames: 3},
				)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep := simulated.NewSimulatedEndpoint(monoFloat)
			ep.SetBufferFrames(4)
			rec := newRecorder()

			var panicked atomic.Bool
			s, err := New(ep, Options{
				BufferMilliseconds: 20,
				EventSync:          true,
				OnDataAvailable: func(buf []byte, n int) {
					if panicked.CompareAndSwap(false, true) {
						panic("consumer failed")
					}
					rec.data(buf, n)
				},
				OnRecordingStopped: rec.stop,
			})
			require.NoError(t, err)
			defer s.Close()

			tt.inject(ep)
			require.NoError(t, s.StartRecording())
			rec.waitStopped(t)
			require.ErrorIs(t, rec.stopErrors()[0], ErrCaptureFault)
			waitState(t, s, StateStopped)

			// The first recording ended with a native buffer still held.
			panicked.Store(true)
			require.NoError(t, s.StartRecording())
			waitState(t, s, StateCapturing)
			ep.PushPCM(floatBytes(7, 8))

			require.Eventually(t, func() bool { return rec.emissions() == 1 }, 2*time.Second, time.Millisecond)
			rec.mu.Lock()
			assert.Equal(t, floatBytes(7, 8), rec.chunks[0])
			rec.mu.Unlock()

			s.StopRecording()
			rec.waitStopped(t)
			errs := rec.stopErrors()
			require.Len(t, errs, 2)
			assert.NoError(t, errs[1], "the restarted recording drains cleanly")
		})
	}
}

func TestSilentPacketsAreZeroed(t *testing.T) {
	s, ep, rec := newEventSession(t, 8)
	require.NoError(t, s.StartRecording())
	waitState(t, s, StateCapturing)

	ep.PushSilence(3)

	require.Eventually(t, func() bool { return rec.emissions() == 1 }, 2*time.Second, time.Millisecond)
	rec.mu.Lock()
	assert.Equal(t, make([]byte, 12), rec.chunks[0])
	rec.mu.Unlock()
	assert.Equal(t, uint64(1), s.Stats().SilentPackets)
}

func TestFlushBeforeOverflow(t *testing.T) {
	// Record buffer: 4 frames of mono float32, 16 bytes.
	s, ep, rec := newEventSession(t, 4)
	require.NoError(t, s.StartRecording())
	waitState(t, s, StateCapturing)

	ep.Push(
		simulated.SimulatedPacket{Data: floatBytes(1, 2, 3), Frames: 3},
		simulated.SimulatedPacket{Data: floatBytes(4, 5, 6), Frames: 3},
		simulated.SimulatedPacket{Data: floatBytes(7), Frames: 1},
	)

	require.Eventually(t, func() bool { return rec.emissions() == 2 }, 2*time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.chunks, 2)
	assert.Equal(t, floatBytes(1, 2, 3), rec.chunks[0])
	assert.Equal(t, floatBytes(4, 5, 6, 7), rec.chunks[1])
}

func TestOversizedPacketGrowsBuffer(t *testing.T) {
	s, ep, rec := newEventSession(t, 2)
	require.NoError(t, s.StartRecording())
	waitState(t, s, StateCapturing)

	ep.Push(
		simulated.SimulatedPacket{Data: floatBytes(1), Frames: 1},
		simulated.SimulatedPacket{Data: floatBytes(2, 3, 4, 5), Frames: 4},
	)

	require.Eventually(t, func() bool { return rec.emissions() == 2 }, 2*time.Second, time.Millisecond)
	rec.mu.Lock()
	assert.Equal(t, floatBytes(1), rec.chunks[0])
	assert.Equal(t, floatBytes(2, 3, 4, 5), rec.chunks[1])
	rec.mu.Unlock()
	assert.Equal(t, uint64(1), s.Stats().Overflows)
}

func TestCallbacksSnapshotAtStart(t *testing.T) {
	s, ep, rec := newEventSession(t, 8)
	require.NoError(t, s.StartRecording())
	waitState(t, s, StateCapturing)

	late := newRecorder()
	s.OnDataAvailable(late.data)

	ep.PushPCM(floatBytes(1))
	require.Eventually(t, func() bool { return rec.emissions() == 1 }, 2*time.Second, time.Millisecond)
	assert.Equal(t, 0, late.emissions())

	s.StopRecording()
	rec.waitStopped(t)

	require.NoError(t, s.StartRecording())
	waitState(t, s, StateCapturing)
	ep.PushPCM(floatBytes(2))
	require.Eventually(t, func() bool { return late.emissions() == 1 }, 2*time.Second, time.Millisecond)
}

func TestChannelSinkWithSession(t *testing.T) {
	ep := simulated.NewSimulatedEndpoint(monoFloat)
	ep.SetBufferFrames(8)
	sink := NewChannelSink(8)

	s, err := New(ep, Options{
		BufferMilliseconds: 20,
		EventSync:          true,
		OnDataAvailable:    sink.DataAvailable,
		OnRecordingStopped: sink.RecordingStopped,
	})
	require.NoError(t, err)
	defer s.Close()

	for i, v := range []float32{0.5, -0.25} {
		require.NoError(t, s.StartRecording())
		waitState(t, s, StateCapturing)
		ep.PushPCM(floatBytes(v, -v))

		select {
		case f := <-sink.Frames():
			assert.Equal(t, floatBytes(v, -v), f.Data)
		case <-time.After(2 * time.Second):
			t.Fatalf("recording %d delivered no frame", i+1)
		}

		s.StopRecording()
		waitState(t, s, StateStopped)
	}

	require.Eventually(t, func() bool { return sink.Recordings() == 2 }, 2*time.Second, time.Millisecond)
	assert.NoError(t, sink.Err())

	sink.Close()
	for range sink.Frames() {
	}
}
