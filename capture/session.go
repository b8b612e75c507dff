package capture

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/opd-ai/voicecore/format"
	"github.com/opd-ai/voicecore/interfaces"
	"github.com/sirupsen/logrus"
)

// Stats counts what a session has emitted since it was created.
type Stats struct {
	Emissions     uint64
	Bytes         uint64
	Packets       uint64
	SilentPackets uint64
	Overflows     uint64
}

// Session captures audio from one native endpoint on a dedicated goroutine.
//
// StartRecording spawns the capture goroutine, which waits on its wake
// source, drains every queued native packet into a record buffer sized to
// one native period and hands the buffer to OnDataAvailable. StopRecording
// asks the goroutine to finish; OnRecordingStopped reports when it has.
// Close stops, waits for the goroutine and releases the endpoint.
//
// Both callbacks run on the capture goroutine, never on the caller's.
type Session struct {
	id       uuid.UUID
	endpoint interfaces.IEndpoint
	wake     WakeSource
	opts     Options
	state    stateBox

	// mu serialises control operations; the capture goroutine never takes it.
	mu          sync.Mutex
	initialized bool
	closed      bool
	onData      DataAvailableFunc
	onStopped   RecordingStoppedFunc

	// Owned by the capture goroutine while a recording runs.
	format        format.AudioFormat
	bytesPerFrame int
	recordBuffer  []byte

	running sync.WaitGroup

	emissions     atomic.Uint64
	bytes         atomic.Uint64
	packets       atomic.Uint64
	silentPackets atomic.Uint64
	overflows     atomic.Uint64
}

// New creates a stopped session bound to endpoint. The endpoint is owned by
// the session from now on and released by Close.
func New(endpoint interfaces.IEndpoint, opts Options) (*Session, error) {
	if endpoint == nil {
		return nil, fmt.Errorf("%w: nil endpoint", ErrInvalidOptions)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.BufferMilliseconds == 0 {
		opts.BufferMilliseconds = DefaultBufferMilliseconds
	}

	wake := opts.Wake
	if wake == nil {
		if opts.EventSync {
			wake = NewEventWake()
		} else {
			wake = NewTimerWake()
		}
	}

	s := &Session{
		id:        uuid.New(),
		endpoint:  endpoint,
		wake:      wake,
		opts:      opts,
		onData:    opts.OnDataAvailable,
		onStopped: opts.OnRecordingStopped,
	}

	logrus.WithFields(logrus.Fields{
		"function":   "capture.New",
		"session_id": s.id.String(),
		"buffer_ms":  opts.BufferMilliseconds,
		"event_sync": opts.EventSync,
		"share_mode": opts.ShareMode.String(),
		"simulation": endpoint.IsSimulation(),
	}).Info("Capture session created")

	return s, nil
}

// ID returns the session identifier used in log fields.
func (s *Session) ID() uuid.UUID { return s.id }

// State returns the current capture state.
func (s *Session) State() State { return s.state.Load() }

// Format returns the negotiated capture format. It is the zero value until
// the first StartRecording.
func (s *Session) Format() format.AudioFormat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.format
}

// Stats returns emission counters.
func (s *Session) Stats() Stats {
	return Stats{
		Emissions:     s.emissions.Load(),
		Bytes:         s.bytes.Load(),
		Packets:       s.packets.Load(),
		SilentPackets: s.silentPackets.Load(),
		Overflows:     s.overflows.Load(),
	}
}

// OnDataAvailable replaces the data callback. It takes effect at the next
// StartRecording.
func (s *Session) OnDataAvailable(fn DataAvailableFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onData = fn
}

// OnRecordingStopped replaces the stop callback. It takes effect at the next
// StartRecording.
func (s *Session) OnRecordingStopped(fn RecordingStoppedFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStopped = fn
}

// StartRecording initialises the endpoint on first use and starts the
// capture goroutine. It fails with ErrInvalidState unless the session is
// stopped, and with ErrUnsupportedFormat if the endpoint's format is not
// PCM or IEEE float.
func (s *Session) StartRecording() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if !s.state.CompareAndSwap(StateStopped, StateStarting) {
		current := s.state.Load()
		logrus.WithFields(logrus.Fields{
			"function":   "Session.StartRecording",
			"session_id": s.id.String(),
			"state":      current.String(),
		}).Warn("Start requested while recording in progress")
		return fmt.Errorf("%w: previous recording still in progress (%s)", ErrInvalidState, current)
	}

	if err := s.initialize(); err != nil {
		s.state.Store(StateStopped)
		logrus.WithFields(logrus.Fields{
			"function":   "Session.StartRecording",
			"session_id": s.id.String(),
			"error":      err.Error(),
		}).Error("Capture endpoint initialization failed")
		return err
	}

	s.wake.Reset()
	onData, onStopped := s.onData, s.onStopped
	s.running.Add(1)
	go s.captureThread(onData, onStopped)

	logrus.WithFields(logrus.Fields{
		"function":   "Session.StartRecording",
		"session_id": s.id.String(),
		"format":     s.format.String(),
	}).Info("Capture thread started")

	return nil
}

// StopRecording requests the capture goroutine to stop. It does not block;
// OnRecordingStopped fires once the goroutine has finished. Calling it on a
// stopped session does nothing.
func (s *Session) StopRecording() {
	for {
		current := s.state.Load()
		if current == StateStopped || current == StateStopping {
			return
		}
		if s.state.CompareAndSwap(current, StateStopping) {
			s.wake.Signal()
			logrus.WithFields(logrus.Fields{
				"function":   "Session.StopRecording",
				"session_id": s.id.String(),
				"from_state": current.String(),
			}).Info("Capture stop requested")
			return
		}
	}
}

// Close stops any recording, waits for the capture goroutine to exit and
// releases the endpoint. It is safe to call before StartRecording and more
// than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.StopRecording()
	s.running.Wait()

	if err := s.endpoint.Close(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":   "Session.Close",
			"session_id": s.id.String(),
			"error":      err.Error(),
		}).Error("Failed to release capture endpoint")
		return fmt.Errorf("close endpoint: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function":   "Session.Close",
		"session_id": s.id.String(),
	}).Info("Capture session closed")

	return nil
}

// initialize negotiates the format and sizes the record buffer. Called with
// mu held; runs once per session.
func (s *Session) initialize() error {
	if s.initialized {
		return nil
	}

	mix := s.endpoint.MixFormat()
	if !mix.Supported() {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, mix)
	}

	requested := time.Duration(s.opts.BufferMilliseconds) * time.Millisecond
	cfg := interfaces.EndpointConfig{
		ShareMode:      s.opts.ShareMode,
		Flags:          interfaces.StreamFlagAutoConvertPCM | interfaces.StreamFlagSRCDefaultQuality,
		BufferDuration: requested,
		Format:         mix,
	}
	if s.opts.EventSync {
		cfg.Flags |= interfaces.StreamFlagEventCallback
		if s.opts.ShareMode == interfaces.ShareModeExclusive {
			cfg.Periodicity = requested
		}
	}

	if err := s.endpoint.Initialize(cfg); err != nil {
		return fmt.Errorf("initialize endpoint: %w", err)
	}
	if s.opts.EventSync {
		if err := s.endpoint.SetEventHandle(s.wake.Signal); err != nil {
			return fmt.Errorf("set event handle: %w", err)
		}
	}

	s.format = mix
	s.bytesPerFrame = mix.BlockAlign()
	s.recordBuffer = make([]byte, s.endpoint.BufferFrames()*s.bytesPerFrame)
	s.initialized = true

	logrus.WithFields(logrus.Fields{
		"function":      "Session.initialize",
		"session_id":    s.id.String(),
		"format":        mix.String(),
		"buffer_frames": s.endpoint.BufferFrames(),
		"record_bytes":  len(s.recordBuffer),
	}).Debug("Capture endpoint initialized")

	return nil
}

// captureThread is the body of the capture goroutine.
func (s *Session) captureThread(onData DataAvailableFunc, onStopped RecordingStoppedFunc) {
	defer s.running.Done()

	err := s.doRecording(onData)

	// The endpoint stays open: only Close releases it.
	if stopErr := s.endpoint.Stop(); stopErr != nil {
		logrus.WithFields(logrus.Fields{
			"function":   "Session.captureThread",
			"session_id": s.id.String(),
			"error":      stopErr.Error(),
		}).Warn("Failed to stop native stream")
	}

	s.state.Store(StateStopped)

	if err != nil {
		err = fmt.Errorf("%w: %w", ErrCaptureFault, err)
		logrus.WithFields(logrus.Fields{
			"function":   "Session.captureThread",
			"session_id": s.id.String(),
			"error":      err.Error(),
		}).Error("Capture thread terminated by fault")
	} else {
		logrus.WithFields(logrus.Fields{
			"function":   "Session.captureThread",
			"session_id": s.id.String(),
			"emissions":  s.emissions.Load(),
		}).Info("Capture thread stopped")
	}

	if onStopped != nil {
		onStopped(err)
	}
}

// doRecording starts the native stream and runs wake cycles until the
// state leaves Capturing. Panics are converted into errors.
func (s *Session) doRecording(onData DataAvailableFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in capture thread: %v", r)
		}
	}()

	bufferFrames := s.endpoint.BufferFrames()
	actual := s.format.DurationOf(bufferFrames)
	timeout := actual / 2
	if s.opts.EventSync {
		timeout = 3 * actual
	}

	if err := s.endpoint.Start(); err != nil {
		return fmt.Errorf("start native stream: %w", err)
	}

	// A stop requested before the stream started leaves the state at
	// Stopping and the loop below never runs.
	s.state.CompareAndSwap(StateStarting, StateCapturing)

	logrus.WithFields(logrus.Fields{
		"function":     "Session.doRecording",
		"session_id":   s.id.String(),
		"buffer_time":  actual.String(),
		"wake_timeout": timeout.String(),
	}).Debug("Native stream started")

	for s.state.Load() == StateCapturing {
		s.wake.Wait(timeout)
		if s.state.Load() != StateCapturing {
			break
		}
		if err := s.readNextPacket(onData); err != nil {
			return err
		}
	}
	return nil
}

// readNextPacket drains every queued native packet, flushing the record
// buffer to onData whenever the next packet would not fit and once more
// at the end of the cycle.
func (s *Session) readNextPacket(onData DataAvailableFunc) error {
	frames, err := s.endpoint.NextPacketFrames()
	if err != nil {
		return fmt.Errorf("next packet size: %w", err)
	}

	offset := 0
	for frames != 0 {
		data, framesAvailable, flags, err := s.endpoint.GetBuffer()
		if err != nil {
			return fmt.Errorf("get buffer: %w", err)
		}

		bytesAvailable := framesAvailable * s.bytesPerFrame

		spaceRemaining := max(0, len(s.recordBuffer)-offset)
		if spaceRemaining < bytesAvailable && offset > 0 {
			s.emit(onData, offset)
			offset = 0
		}
		if bytesAvailable > len(s.recordBuffer) {
			s.growRecordBuffer(bytesAvailable)
		}

		if flags.Has(interfaces.BufferFlagSilent) {
			clear(s.recordBuffer[offset : offset+bytesAvailable])
			s.silentPackets.Add(1)
		} else {
			if len(data) < bytesAvailable {
				return fmt.Errorf("%w: %d bytes for %d frames", ErrShortPacket, len(data), framesAvailable)
			}
			copy(s.recordBuffer[offset:], data[:bytesAvailable])
		}
		offset += bytesAvailable
		s.packets.Add(1)

		if err := s.endpoint.ReleaseBuffer(framesAvailable); err != nil {
			return fmt.Errorf("release buffer: %w", err)
		}
		if frames, err = s.endpoint.NextPacketFrames(); err != nil {
			return fmt.Errorf("next packet size: %w", err)
		}
	}

	if offset > 0 {
		s.emit(onData, offset)
	}
	return nil
}

// emit hands the first n bytes of the record buffer to onData. The slice
// is capped at n so the receiver cannot write past the emitted extent.
func (s *Session) emit(onData DataAvailableFunc, n int) {
	s.emissions.Add(1)
	s.bytes.Add(uint64(n))
	if onData != nil {
		onData(s.recordBuffer[:n:n], n)
	}
}

// growRecordBuffer handles a packet larger than one native period.
func (s *Session) growRecordBuffer(size int) {
	s.overflows.Add(1)
	logrus.WithFields(logrus.Fields{
		"function":   "Session.growRecordBuffer",
		"session_id": s.id.String(),
		"old_size":   len(s.recordBuffer),
		"new_size":   size,
	}).Warn("Native packet larger than record buffer")
	s.recordBuffer = make([]byte, size)
}
