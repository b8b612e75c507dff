package factory

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/opd-ai/voicecore/capture"
	"github.com/opd-ai/voicecore/format"
	"github.com/opd-ai/voicecore/interfaces"
	"github.com/opd-ai/voicecore/real"
	"github.com/opd-ai/voicecore/testing"
	"github.com/sirupsen/logrus"
)

// Validation constants for configuration bounds checking.
const (
	// MinSampleRate is the lowest device sample rate accepted.
	MinSampleRate = 8000
	// MaxSampleRate is the highest device sample rate accepted.
	MaxSampleRate = 192000
	// MaxChannels is the largest channel count accepted.
	MaxChannels = 8
)

// ErrInvalidConfig indicates a DeviceConfig that fails validation.
var ErrInvalidConfig = errors.New("invalid device configuration")

// DeviceConfig selects and configures the audio device backends.
type DeviceConfig struct {
	// UseSimulation selects the in-memory endpoint and renderer.
	UseSimulation bool

	// BufferMilliseconds is the capture buffer length.
	BufferMilliseconds int

	// EventSync selects event-driven capture.
	EventSync bool

	// Exclusive requests exclusive device access.
	Exclusive bool

	// SampleRate and Channels describe the capture mix format.
	SampleRate int
	Channels   int

	// QueuePackets bounds the real endpoint's callback queue.
	QueuePackets int

	// GeneratorHz makes the simulated endpoint produce a tone when non-zero.
	GeneratorHz float64
}

// Validate checks the configuration bounds.
func (c *DeviceConfig) Validate() error {
	if c.BufferMilliseconds < capture.MinBufferMilliseconds || c.BufferMilliseconds > capture.MaxBufferMilliseconds {
		return fmt.Errorf("%w: buffer %dms outside [%d, %d]", ErrInvalidConfig,
			c.BufferMilliseconds, capture.MinBufferMilliseconds, capture.MaxBufferMilliseconds)
	}
	if c.SampleRate < MinSampleRate || c.SampleRate > MaxSampleRate {
		return fmt.Errorf("%w: sample rate %d outside [%d, %d]", ErrInvalidConfig,
			c.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if c.Channels < 1 || c.Channels > MaxChannels {
		return fmt.Errorf("%w: channels %d outside [1, %d]", ErrInvalidConfig, c.Channels, MaxChannels)
	}
	if c.QueuePackets < 0 {
		return fmt.Errorf("%w: negative queue length %d", ErrInvalidConfig, c.QueuePackets)
	}
	return nil
}

// MixFormat returns the capture format described by the configuration.
func (c *DeviceConfig) MixFormat() format.AudioFormat {
	return format.Float32(c.SampleRate, c.Channels)
}

// EndpointFactory creates capture endpoints and render devices based on
// configuration. It is safe for concurrent use.
type EndpointFactory struct {
	mu            sync.RWMutex
	defaultConfig *DeviceConfig
}

// TestConfigOption is a functional option for customizing test simulation configuration.
type TestConfigOption func(*DeviceConfig)

// NewEndpointFactory creates a new factory with default configuration and
// VOICE_* environment overrides applied.
func NewEndpointFactory() *EndpointFactory {
	defaultConfig := createDefaultConfig()
	applyEnvironmentOverrides(defaultConfig)
	logConfigurationInfo(defaultConfig)

	return &EndpointFactory{
		defaultConfig: defaultConfig,
	}
}

// createDefaultConfig returns real devices, 100 ms polling capture of 48 kHz mono.
func createDefaultConfig() *DeviceConfig {
	return &DeviceConfig{
		UseSimulation:      false,
		BufferMilliseconds: capture.DefaultBufferMilliseconds,
		EventSync:          false,
		SampleRate:         48000,
		Channels:           1,
		QueuePackets:       real.DefaultQueuePackets,
	}
}

// applyEnvironmentOverrides updates configuration from VOICE_* environment
// variables. Unparseable or out-of-range values are logged and ignored.
func applyEnvironmentOverrides(config *DeviceConfig) {
	parseBoolSetting("VOICE_USE_SIMULATION", &config.UseSimulation)
	parseBoolSetting("VOICE_EVENT_SYNC", &config.EventSync)
	parseIntSetting("VOICE_BUFFER_MS", &config.BufferMilliseconds,
		capture.MinBufferMilliseconds, capture.MaxBufferMilliseconds)
	parseIntSetting("VOICE_SAMPLE_RATE", &config.SampleRate, MinSampleRate, MaxSampleRate)
}

func parseBoolSetting(envVar string, target *bool) {
	raw := os.Getenv(envVar)
	if raw == "" {
		return
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "parseBoolSetting",
			"env_var":     envVar,
			"value":       raw,
			"error":       err.Error(),
			"using_value": *target,
		}).Warn("Failed to parse environment variable, using default")
		return
	}
	*target = value
}

func parseIntSetting(envVar string, target *int, minValue, maxValue int) {
	raw := os.Getenv(envVar)
	if raw == "" {
		return
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "parseIntSetting",
			"env_var":     envVar,
			"value":       raw,
			"error":       err.Error(),
			"using_value": *target,
		}).Warn("Failed to parse environment variable, using default")
		return
	}
	if value < minValue || value > maxValue {
		logrus.WithFields(logrus.Fields{
			"function":    "parseIntSetting",
			"env_var":     envVar,
			"value":       value,
			"min":         minValue,
			"max":         maxValue,
			"using_value": *target,
		}).Warn("Environment variable out of bounds, using default")
		return
	}
	*target = value
}

func logConfigurationInfo(config *DeviceConfig) {
	logrus.WithFields(logrus.Fields{
		"function":       "NewEndpointFactory",
		"use_simulation": config.UseSimulation,
		"buffer_ms":      config.BufferMilliseconds,
		"event_sync":     config.EventSync,
		"exclusive":      config.Exclusive,
		"sample_rate":    config.SampleRate,
		"channels":       config.Channels,
	}).Info("Created endpoint factory with configuration")
}

// CreateEndpoint creates a capture endpoint from the default configuration.
func (f *EndpointFactory) CreateEndpoint() (interfaces.IEndpoint, error) {
	return f.CreateEndpointWithConfig(nil)
}

// CreateEndpointWithConfig creates a capture endpoint from config, or from
// the default configuration when config is nil.
func (f *EndpointFactory) CreateEndpointWithConfig(config *DeviceConfig) (interfaces.IEndpoint, error) {
	if config == nil {
		config = f.GetCurrentConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if config.UseSimulation {
		logrus.WithFields(logrus.Fields{
			"function": "CreateEndpointWithConfig",
			"type":     "simulation",
		}).Info("Creating simulated capture endpoint")

		ep := testing.NewSimulatedEndpoint(config.MixFormat())
		if config.GeneratorHz > 0 {
			ep.EnableGenerator(config.GeneratorHz, 10*time.Millisecond)
		}
		return ep, nil
	}

	logrus.WithFields(logrus.Fields{
		"function": "CreateEndpointWithConfig",
		"type":     "real",
	}).Info("Creating real capture endpoint")

	ep, err := real.NewMalgoEndpoint(config.MixFormat(), config.QueuePackets)
	if err != nil {
		return nil, fmt.Errorf("create capture endpoint: %w", err)
	}
	return ep, nil
}

// CreateRenderer creates a render device for sounds in f.
func (f *EndpointFactory) CreateRenderer(af format.AudioFormat) (interfaces.IRenderDevice, error) {
	if f.IsUsingSimulation() {
		return testing.NewSimulatedRenderer(), nil
	}
	r, err := real.NewMalgoRenderer(af)
	if err != nil {
		return nil, fmt.Errorf("create renderer: %w", err)
	}
	return r, nil
}

// CreateCaptureOptions returns session options matching the default
// configuration. Callbacks are left for the caller to set.
func (f *EndpointFactory) CreateCaptureOptions() capture.Options {
	config := f.GetCurrentConfig()

	opts := capture.DefaultOptions()
	opts.BufferMilliseconds = config.BufferMilliseconds
	opts.EventSync = config.EventSync
	if config.Exclusive {
		opts.ShareMode = interfaces.ShareModeExclusive
	}
	return opts
}

// WithBufferMilliseconds sets the capture buffer length for the test configuration.
func WithBufferMilliseconds(ms int) TestConfigOption {
	return func(c *DeviceConfig) {
		c.BufferMilliseconds = ms
	}
}

// WithMixFormat sets the sample rate and channel count for the test configuration.
func WithMixFormat(sampleRate, channels int) TestConfigOption {
	return func(c *DeviceConfig) {
		c.SampleRate = sampleRate
		c.Channels = channels
	}
}

// CreateSimulationForTesting creates a simulated endpoint for tests.
// Defaults: 8 kHz mono with a 10 ms buffer.
func (f *EndpointFactory) CreateSimulationForTesting(opts ...TestConfigOption) *testing.SimulatedEndpoint {
	testConfig := &DeviceConfig{
		UseSimulation:      true,
		BufferMilliseconds: 10,
		SampleRate:         8000,
		Channels:           1,
	}
	for _, opt := range opts {
		opt(testConfig)
	}

	logrus.WithFields(logrus.Fields{
		"function":    "CreateSimulationForTesting",
		"buffer_ms":   testConfig.BufferMilliseconds,
		"sample_rate": testConfig.SampleRate,
		"channels":    testConfig.Channels,
	}).Info("Creating simulation implementation for testing")

	return testing.NewSimulatedEndpoint(testConfig.MixFormat())
}

// SwitchToSimulation switches the configuration to use simulation.
func (f *EndpointFactory) SwitchToSimulation() {
	f.mu.Lock()
	defer f.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "SwitchToSimulation",
		"previous": f.defaultConfig.UseSimulation,
	}).Info("Switching factory to simulation mode")

	f.defaultConfig.UseSimulation = true
}

// SwitchToReal switches the configuration to use real devices.
func (f *EndpointFactory) SwitchToReal() {
	f.mu.Lock()
	defer f.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "SwitchToReal",
		"previous": f.defaultConfig.UseSimulation,
	}).Info("Switching factory to real mode")

	f.defaultConfig.UseSimulation = false
}

// GetCurrentConfig returns a copy of the current default configuration.
func (f *EndpointFactory) GetCurrentConfig() *DeviceConfig {
	f.mu.RLock()
	defer f.mu.RUnlock()

	c := *f.defaultConfig
	return &c
}

// IsUsingSimulation returns true if the factory is configured for simulation.
func (f *EndpointFactory) IsUsingSimulation() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.defaultConfig.UseSimulation
}

// UpdateConfig validates and replaces the factory's default configuration.
func (f *EndpointFactory) UpdateConfig(config *DeviceConfig) error {
	if config == nil {
		return fmt.Errorf("%w: config cannot be nil", ErrInvalidConfig)
	}
	if err := config.Validate(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":       "UpdateConfig",
		"old_simulation": f.defaultConfig.UseSimulation,
		"new_simulation": config.UseSimulation,
		"old_buffer_ms":  f.defaultConfig.BufferMilliseconds,
		"new_buffer_ms":  config.BufferMilliseconds,
	}).Info("Updating factory configuration")

	c := *config
	f.defaultConfig = &c
	return nil
}
