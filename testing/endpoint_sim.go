package testing

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/opd-ai/voicecore/format"
	"github.com/opd-ai/voicecore/interfaces"
	"github.com/sirupsen/logrus"
)

// SimulatedPacket is one native packet queued on a SimulatedEndpoint.
type SimulatedPacket struct {
	Data   []byte
	Frames int
	Flags  interfaces.BufferFlags
}

// SimulatedEndpoint implements interfaces.IEndpoint entirely in memory.
//
// Tests queue packets with Push, PushPCM and PushSilence and inject faults
// with the Fail* methods. With a generator enabled, Start spawns a goroutine
// that queues a sine tone in real time, which lets the CLI run without audio
// hardware.
type SimulatedEndpoint struct {
	mu sync.Mutex

	mixFormat    format.AudioFormat
	bufferFrames int
	config       interfaces.EndpointConfig

	initialized bool
	started     bool
	closed      bool

	queue   []SimulatedPacket
	pending *SimulatedPacket
	signal  func()

	initErr      error
	startErr     error
	getBufferErr error
	panicOnGet   bool

	initializeCount int
	startCount      int
	stopCount       int
	closeCount      int
	releasedFrames  int

	toneHz      float64
	tonePeriod  time.Duration
	tonePhase   float64
	stopToneCh  chan struct{}
	toneStopped chan struct{}
}

// NewSimulatedEndpoint creates an endpoint whose device mix format is mix.
func NewSimulatedEndpoint(mix format.AudioFormat) *SimulatedEndpoint {
	logrus.Warn("SIMULATION FUNCTION - NOT A REAL OPERATION")
	logrus.WithFields(logrus.Fields{
		"function": "NewSimulatedEndpoint",
		"format":   mix.String(),
	}).Info("Creating simulated capture endpoint")

	return &SimulatedEndpoint{mixFormat: mix}
}

// SetBufferFrames overrides the native buffer size reported after Initialize.
func (s *SimulatedEndpoint) SetBufferFrames(frames int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bufferFrames = frames
}

// EnableGenerator makes Start queue a sine tone of hz every period until Stop.
func (s *SimulatedEndpoint) EnableGenerator(hz float64, period time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toneHz = hz
	s.tonePeriod = period
}

// FailInitialize makes the next Initialize return err.
func (s *SimulatedEndpoint) FailInitialize(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initErr = err
}

// FailStart makes every Start return err until cleared with nil.
func (s *SimulatedEndpoint) FailStart(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startErr = err
}

// FailNextGetBuffer makes the next GetBuffer return err.
func (s *SimulatedEndpoint) FailNextGetBuffer(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getBufferErr = err
}

// PanicOnGetBuffer makes the next GetBuffer panic.
func (s *SimulatedEndpoint) PanicOnGetBuffer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panicOnGet = true
}

// Push queues packets and signals the event handle once.
func (s *SimulatedEndpoint) Push(packets ...SimulatedPacket) {
	s.mu.Lock()
	s.queue = append(s.queue, packets...)
	signal := s.signal
	s.mu.Unlock()

	if signal != nil {
		signal()
	}
}

// PushPCM queues raw bytes in the mix format as one packet.
func (s *SimulatedEndpoint) PushPCM(data []byte) {
	frames := len(data) / s.mixFormat.BlockAlign()
	owned := make([]byte, len(data))
	copy(owned, data)
	s.Push(SimulatedPacket{Data: owned, Frames: frames})
}

// PushSilence queues a packet flagged silent. Its data is garbage on
// purpose so that readers which ignore the flag are caught.
func (s *SimulatedEndpoint) PushSilence(frames int) {
	junk := make([]byte, frames*s.mixFormat.BlockAlign())
	for i := range junk {
		junk[i] = 0xAA
	}
	s.Push(SimulatedPacket{Data: junk, Frames: frames, Flags: interfaces.BufferFlagSilent})
}

// MixFormat implements IEndpoint.MixFormat.
func (s *SimulatedEndpoint) MixFormat() format.AudioFormat {
	return s.mixFormat
}

// Initialize implements IEndpoint.Initialize.
func (s *SimulatedEndpoint) Initialize(cfg interfaces.EndpointConfig) error {
	logrus.Warn("SIMULATION FUNCTION - NOT A REAL OPERATION")
	logrus.WithFields(logrus.Fields{
		"function":    "SimulatedEndpoint.Initialize",
		"buffer_time": cfg.BufferDuration.String(),
		"share_mode":  cfg.ShareMode.String(),
		"flags":       fmt.Sprintf("0x%08x", uint32(cfg.Flags)),
	}).Info("Simulating endpoint initialization")

	s.mu.Lock()
	defer s.mu.Unlock()

	s.initializeCount++
	if s.closed {
		return interfaces.ErrEndpointClosed
	}
	if s.initialized {
		return interfaces.ErrAlreadyInitialized
	}
	if err := s.initErr; err != nil {
		s.initErr = nil
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.config = cfg
	if s.bufferFrames == 0 {
		s.bufferFrames = cfg.Format.FramesIn(cfg.BufferDuration)
	}
	s.initialized = true
	return nil
}

// BufferFrames implements IEndpoint.BufferFrames.
func (s *SimulatedEndpoint) BufferFrames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bufferFrames
}

// SetEventHandle implements IEndpoint.SetEventHandle.
func (s *SimulatedEndpoint) SetEventHandle(signal func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return interfaces.ErrNotInitialized
	}
	s.signal = signal
	return nil
}

// Start implements IEndpoint.Start.
func (s *SimulatedEndpoint) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.startCount++
	if !s.initialized {
		return interfaces.ErrNotInitialized
	}
	if s.startErr != nil {
		return s.startErr
	}
	s.started = true
	// A drain that faulted mid-packet never released its buffer.
	s.pending = nil

	if s.toneHz > 0 && s.tonePeriod > 0 && s.stopToneCh == nil {
		s.stopToneCh = make(chan struct{})
		s.toneStopped = make(chan struct{})
		go s.generate(s.stopToneCh, s.toneStopped)
	}
	return nil
}

// Stop implements IEndpoint.Stop.
func (s *SimulatedEndpoint) Stop() error {
	s.mu.Lock()
	s.stopCount++
	s.started = false
	stop, stopped := s.stopToneCh, s.toneStopped
	s.stopToneCh, s.toneStopped = nil, nil
	s.mu.Unlock()

	if stop != nil {
		close(stop)
		<-stopped
	}
	return nil
}

// NextPacketFrames implements IEndpoint.NextPacketFrames.
func (s *SimulatedEndpoint) NextPacketFrames() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return 0, interfaces.ErrNotInitialized
	}
	if len(s.queue) == 0 {
		return 0, nil
	}
	return s.queue[0].Frames, nil
}

// GetBuffer implements IEndpoint.GetBuffer.
func (s *SimulatedEndpoint) GetBuffer() ([]byte, int, interfaces.BufferFlags, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.panicOnGet {
		s.panicOnGet = false
		panic("simulated native driver crash")
	}
	if err := s.getBufferErr; err != nil {
		s.getBufferErr = nil
		return nil, 0, 0, err
	}
	if s.pending != nil {
		return nil, 0, 0, fmt.Errorf("simulated endpoint: previous buffer not released")
	}
	if len(s.queue) == 0 {
		return nil, 0, 0, fmt.Errorf("simulated endpoint: no packet queued")
	}

	p := s.queue[0]
	s.queue = s.queue[1:]
	s.pending = &p
	return p.Data, p.Frames, p.Flags, nil
}

// ReleaseBuffer implements IEndpoint.ReleaseBuffer.
func (s *SimulatedEndpoint) ReleaseBuffer(frames int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return fmt.Errorf("simulated endpoint: release without buffer")
	}
	if frames != s.pending.Frames {
		return fmt.Errorf("simulated endpoint: released %d frames, got %d", frames, s.pending.Frames)
	}
	s.pending = nil
	s.releasedFrames += frames
	return nil
}

// Close implements IEndpoint.Close.
func (s *SimulatedEndpoint) Close() error {
	logrus.Warn("SIMULATION FUNCTION - NOT A REAL OPERATION")
	logrus.WithFields(logrus.Fields{
		"function": "SimulatedEndpoint.Close",
	}).Info("Simulating endpoint release")

	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCount++
	s.closed = true
	s.signal = nil
	return nil
}

// IsSimulation implements IEndpoint.IsSimulation.
func (s *SimulatedEndpoint) IsSimulation() bool {
	return true
}

// Config returns the configuration passed to Initialize.
func (s *SimulatedEndpoint) Config() interfaces.EndpointConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

// IsStarted reports whether the stream is running.
func (s *SimulatedEndpoint) IsStarted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Pending returns the number of queued packets.
func (s *SimulatedEndpoint) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// GetStats returns call counters for test verification.
func (s *SimulatedEndpoint) GetStats() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	return map[string]interface{}{
		"initialize_count": s.initializeCount,
		"start_count":      s.startCount,
		"stop_count":       s.stopCount,
		"close_count":      s.closeCount,
		"released_frames":  s.releasedFrames,
		"queued_packets":   len(s.queue),
		"is_simulation":    true,
	}
}

// generate queues one tone packet per period until stop is closed.
func (s *SimulatedEndpoint) generate(stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	s.mu.Lock()
	period := s.tonePeriod
	s.mu.Unlock()

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.Push(s.tonePacket())
		}
	}
}

// tonePacket renders one period of the generator tone in the mix format.
func (s *SimulatedEndpoint) tonePacket() SimulatedPacket {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.mixFormat
	frames := f.FramesIn(s.tonePeriod)
	data := make([]byte, frames*f.BlockAlign())
	step := 2 * math.Pi * s.toneHz / float64(f.SampleRate)
	bytesPerSample := f.BitsPerSample / 8

	for i := 0; i < frames; i++ {
		v := 0.25 * math.Sin(s.tonePhase)
		s.tonePhase += step
		for ch := 0; ch < f.Channels; ch++ {
			off := (i*f.Channels + ch) * bytesPerSample
			switch {
			case f.IsFloat() && bytesPerSample == 4:
				binary.LittleEndian.PutUint32(data[off:], math.Float32bits(float32(v)))
			case bytesPerSample == 2:
				binary.LittleEndian.PutUint16(data[off:], uint16(int16(v*math.MaxInt16)))
			}
		}
	}
	s.tonePhase = math.Mod(s.tonePhase, 2*math.Pi)

	return SimulatedPacket{Data: data, Frames: frames}
}
