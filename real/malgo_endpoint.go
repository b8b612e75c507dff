package real

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/opd-ai/voicecore/format"
	"github.com/opd-ai/voicecore/interfaces"
	"github.com/sirupsen/logrus"
)

// DefaultQueuePackets is the number of device callbacks buffered between
// the miniaudio thread and the capture goroutine.
const DefaultQueuePackets = 64

// ErrUnsupportedDeviceFormat indicates a mix format miniaudio cannot deliver.
var ErrUnsupportedDeviceFormat = errors.New("unsupported device format")

// MalgoEndpoint implements interfaces.IEndpoint on the default capture device
// using miniaudio. miniaudio pushes audio from its own thread; the endpoint
// queues each callback as one native packet for the capture session to pull.
type MalgoEndpoint struct {
	mu sync.Mutex

	mix          format.AudioFormat
	ctx          *malgo.AllocatedContext
	device       *malgo.Device
	queue        *packetQueue
	bufferFrames int
	signal       func()
	held         *queuedPacket
	closed       bool
}

// NewMalgoEndpoint opens a miniaudio context for capturing in mix. The device
// itself is opened by Initialize.
func NewMalgoEndpoint(mix format.AudioFormat, queuePackets int) (*MalgoEndpoint, error) {
	if _, err := malgoFormat(mix); err != nil {
		return nil, err
	}
	if queuePackets <= 0 {
		queuePackets = DefaultQueuePackets
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logrus.WithFields(logrus.Fields{
			"function": "malgo",
			"message":  message,
		}).Debug("miniaudio log")
	})
	if err != nil {
		return nil, fmt.Errorf("init malgo context: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function":      "NewMalgoEndpoint",
		"format":        mix.String(),
		"queue_packets": queuePackets,
	}).Info("Creating miniaudio capture endpoint")

	return &MalgoEndpoint{
		mix:   mix,
		ctx:   ctx,
		queue: newPacketQueue(queuePackets),
	}, nil
}

// MixFormat implements IEndpoint.MixFormat. miniaudio converts from the
// device's native format, so the mix format is the one requested.
func (m *MalgoEndpoint) MixFormat() format.AudioFormat {
	return m.mix
}

// Initialize implements IEndpoint.Initialize.
func (m *MalgoEndpoint) Initialize(cfg interfaces.EndpointConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	sampleFormat, err := malgoFormat(cfg.Format)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return interfaces.ErrEndpointClosed
	}
	if m.device != nil {
		return interfaces.ErrAlreadyInitialized
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = sampleFormat
	deviceConfig.Capture.Channels = uint32(cfg.Format.Channels)
	deviceConfig.SampleRate = uint32(cfg.Format.SampleRate)
	deviceConfig.PeriodSizeInMilliseconds = uint32(max(1, cfg.BufferDuration/time.Millisecond))
	if cfg.ShareMode == interfaces.ShareModeExclusive {
		deviceConfig.Capture.ShareMode = malgo.Exclusive
	}

	callbacks := malgo.DeviceCallbacks{
		Data: m.onData,
	}

	dev, err := malgo.InitDevice(m.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return fmt.Errorf("init capture device: %w", err)
	}

	m.device = dev
	m.bufferFrames = cfg.Format.FramesIn(cfg.BufferDuration)

	logrus.WithFields(logrus.Fields{
		"function":      "MalgoEndpoint.Initialize",
		"buffer_time":   cfg.BufferDuration.String(),
		"buffer_frames": m.bufferFrames,
		"share_mode":    cfg.ShareMode.String(),
	}).Info("Capture device initialized")

	return nil
}

// onData runs on the miniaudio thread.
func (m *MalgoEndpoint) onData(_, input []byte, frameCount uint32) {
	if len(input) == 0 || frameCount == 0 {
		return
	}
	m.queue.push(input, int(frameCount))

	m.mu.Lock()
	signal := m.signal
	m.mu.Unlock()
	if signal != nil {
		signal()
	}
}

// BufferFrames implements IEndpoint.BufferFrames.
func (m *MalgoEndpoint) BufferFrames() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bufferFrames
}

// SetEventHandle implements IEndpoint.SetEventHandle.
func (m *MalgoEndpoint) SetEventHandle(signal func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device == nil {
		return interfaces.ErrNotInitialized
	}
	m.signal = signal
	return nil
}

// Start implements IEndpoint.Start.
func (m *MalgoEndpoint) Start() error {
	m.mu.Lock()
	dev := m.device
	m.mu.Unlock()

	if dev == nil {
		return interfaces.ErrNotInitialized
	}
	m.resetStream()
	if err := dev.Start(); err != nil {
		return fmt.Errorf("start capture device: %w", err)
	}
	return nil
}

// Stop implements IEndpoint.Stop.
func (m *MalgoEndpoint) Stop() error {
	m.mu.Lock()
	dev := m.device
	m.mu.Unlock()

	if dev == nil {
		return interfaces.ErrNotInitialized
	}
	if err := dev.Stop(); err != nil {
		return fmt.Errorf("stop capture device: %w", err)
	}
	m.releaseHeld()

	enqueued, dropped := m.queue.stats()
	fields := logrus.Fields{
		"function": "MalgoEndpoint.Stop",
		"enqueued": enqueued,
		"dropped":  dropped,
	}
	if dropped > 0 {
		logrus.WithFields(fields).Warn("Capture queue overflowed while recording")
	} else {
		logrus.WithFields(fields).Debug("Capture device stopped")
	}
	return nil
}

// resetStream discards queued packets and any buffer a faulted drain never
// released, so a restarted stream begins clean.
func (m *MalgoEndpoint) resetStream() {
	m.releaseHeld()
	m.queue.reset()
}

// releaseHeld recycles the buffer handed out by GetBuffer if the capture
// goroutine exited before returning it.
func (m *MalgoEndpoint) releaseHeld() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held == nil {
		return
	}
	logrus.WithFields(logrus.Fields{
		"function": "MalgoEndpoint.releaseHeld",
		"frames":   m.held.frames,
	}).Debug("Reclaiming unreleased capture buffer")
	m.queue.recycle(m.held.data)
	m.held = nil
}

// NextPacketFrames implements IEndpoint.NextPacketFrames.
func (m *MalgoEndpoint) NextPacketFrames() (int, error) {
	return m.queue.peekFrames(), nil
}

// GetBuffer implements IEndpoint.GetBuffer.
func (m *MalgoEndpoint) GetBuffer() ([]byte, int, interfaces.BufferFlags, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.held != nil {
		return nil, 0, 0, errors.New("previous buffer not released")
	}
	p, ok := m.queue.pop()
	if !ok {
		return nil, 0, 0, errors.New("no packet available")
	}
	m.held = &p
	return p.data, p.frames, p.flags, nil
}

// ReleaseBuffer implements IEndpoint.ReleaseBuffer.
func (m *MalgoEndpoint) ReleaseBuffer(frames int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.held == nil {
		return errors.New("no buffer held")
	}
	if frames != m.held.frames {
		return fmt.Errorf("released %d frames of a %d frame packet", frames, m.held.frames)
	}
	m.queue.recycle(m.held.data)
	m.held = nil
	return nil
}

// Close implements IEndpoint.Close.
func (m *MalgoEndpoint) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	m.signal = nil

	if m.device != nil {
		m.device.Uninit()
		m.device = nil
	}
	if m.ctx != nil {
		if err := m.ctx.Uninit(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "MalgoEndpoint.Close",
				"error":    err.Error(),
			}).Warn("Failed to release miniaudio context")
		}
		m.ctx.Free()
		m.ctx = nil
	}

	logrus.WithFields(logrus.Fields{
		"function": "MalgoEndpoint.Close",
	}).Info("Capture device released")
	return nil
}

// IsSimulation implements IEndpoint.IsSimulation.
func (m *MalgoEndpoint) IsSimulation() bool {
	return false
}

// malgoFormat maps an AudioFormat to the miniaudio sample format.
func malgoFormat(f format.AudioFormat) (malgo.FormatType, error) {
	switch {
	case f.Encoding == format.EncodingIEEEFloat && f.BitsPerSample == 32:
		return malgo.FormatF32, nil
	case f.Encoding == format.EncodingPCM && f.BitsPerSample == 16:
		return malgo.FormatS16, nil
	case f.Encoding == format.EncodingPCM && f.BitsPerSample == 24:
		return malgo.FormatS24, nil
	case f.Encoding == format.EncodingPCM && f.BitsPerSample == 32:
		return malgo.FormatS32, nil
	case f.Encoding == format.EncodingPCM && f.BitsPerSample == 8:
		return malgo.FormatU8, nil
	}
	return malgo.FormatUnknown, fmt.Errorf("%w: %s", ErrUnsupportedDeviceFormat, f)
}
