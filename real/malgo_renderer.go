package real

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
	"github.com/opd-ai/voicecore/format"
	"github.com/opd-ai/voicecore/interfaces"
	"github.com/opd-ai/voicecore/playback"
	"github.com/sirupsen/logrus"
)

// providerBox lets the device callback swap providers without locking.
type providerBox struct {
	p playback.SampleProvider
}

// MalgoRenderer implements interfaces.IRenderDevice on the default playback
// device. miniaudio pulls float32 samples from the current provider on its
// own thread; Play swaps the provider atomically.
type MalgoRenderer struct {
	mu sync.Mutex

	format   format.AudioFormat
	ctx      *malgo.AllocatedContext
	device   *malgo.Device
	provider atomic.Pointer[providerBox]
	scratch  []float32
	closed   bool
}

// NewMalgoRenderer opens a miniaudio context for float32 playback in f.
func NewMalgoRenderer(f format.AudioFormat) (*MalgoRenderer, error) {
	if !f.IsFloat() || f.BitsPerSample != 32 {
		return nil, fmt.Errorf("%w: renderer requires 32-bit float, got %s", ErrUnsupportedDeviceFormat, f)
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

	r := &MalgoRenderer{
		format:  f,
		ctx:     ctx,
		scratch: make([]float32, format.MaxChunkSamples(f)),
	}
	r.provider.Store(&providerBox{p: playback.Silence{AudioFormat: f}})
	return r, nil
}

// Play implements IRenderDevice.Play. The provider must produce the
// renderer's format.
func (r *MalgoRenderer) Play(provider playback.SampleProvider) error {
	if provider == nil {
		provider = playback.Silence{AudioFormat: r.format}
	}
	if provider.Format() != r.format {
		return fmt.Errorf("%w: provider %s, device %s", ErrUnsupportedDeviceFormat, provider.Format(), r.format)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return interfaces.ErrEndpointClosed
	}
	r.provider.Store(&providerBox{p: provider})

	if r.device != nil {
		return nil
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = uint32(r.format.Channels)
	deviceConfig.SampleRate = uint32(r.format.SampleRate)

	dev, err := malgo.InitDevice(r.ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: r.onData,
	})
	if err != nil {
		return fmt.Errorf("init playback device: %w", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		return fmt.Errorf("start playback device: %w", err)
	}
	r.device = dev

	logrus.WithFields(logrus.Fields{
		"function": "MalgoRenderer.Play",
		"format":   r.format.String(),
	}).Info("Playback device started")
	return nil
}

// onData runs on the miniaudio thread.
func (r *MalgoRenderer) onData(output, _ []byte, _ uint32) {
	box := r.provider.Load()
	fillFloat32(output, box.p, r.scratch)
}

// Stop implements IRenderDevice.Stop. The device is released so that the
// next Play starts from a clean stream.
func (r *MalgoRenderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.device == nil {
		return nil
	}
	err := r.device.Stop()
	r.device.Uninit()
	r.device = nil
	r.provider.Store(&providerBox{p: playback.Silence{AudioFormat: r.format}})
	if err != nil {
		return fmt.Errorf("stop playback device: %w", err)
	}
	return nil
}

// Close implements IRenderDevice.Close.
func (r *MalgoRenderer) Close() error {
	if err := r.Stop(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "MalgoRenderer.Close",
			"error":    err.Error(),
		}).Warn("Failed to stop playback device")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if err := r.ctx.Uninit(); err != nil {
		return fmt.Errorf("release malgo context: %w", err)
	}
	r.ctx.Free()
	return nil
}

// fillFloat32 fills output with little-endian float32 samples pulled from
// provider in chunks no larger than scratch. Whatever the provider does not
// supply is written as silence.
func fillFloat32(output []byte, provider playback.SampleProvider, scratch []float32) {
	total := len(output) / 4
	written := 0

	for written < total {
		want := min(len(scratch), total-written)
		got := provider.Read(scratch, 0, want)
		for i := 0; i < got; i++ {
			binary.LittleEndian.PutUint32(output[(written+i)*4:], math.Float32bits(scratch[i]))
		}
		written += got
		if got < want {
			break
		}
	}

	clear(output[written*4:])
}
