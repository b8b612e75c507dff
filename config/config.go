// Package config loads voicecore settings from a file and the environment
// and configures logging.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/opd-ai/voicecore/factory"
	"github.com/opd-ai/voicecore/limits"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "VOICE"

// Config is the complete client configuration.
type Config struct {
	LogLevel string `mapstructure:"loglevel"`
	LogFile  string `mapstructure:"logfile"`

	// Callsign identifies this client in call requests.
	Callsign string `mapstructure:"callsign"`

	Device DeviceSettings `mapstructure:"device"`
	Tones  ToneSettings   `mapstructure:"tones"`

	// CacheSize bounds the number of decoded sounds kept in memory.
	CacheSize int `mapstructure:"cache_size"`
}

// DeviceSettings mirrors factory.DeviceConfig.
type DeviceSettings struct {
	UseSimulation      bool    `mapstructure:"simulation"`
	BufferMilliseconds int     `mapstructure:"buffer_ms"`
	EventSync          bool    `mapstructure:"event_sync"`
	Exclusive          bool    `mapstructure:"exclusive"`
	SampleRate         int     `mapstructure:"sample_rate"`
	Channels           int     `mapstructure:"channels"`
	QueuePackets       int     `mapstructure:"queue_packets"`
	GeneratorHz        float64 `mapstructure:"generator_hz"`
}

// ToneSettings names the sound files played during call setup. Empty paths
// disable the tone.
type ToneSettings struct {
	Ringback string  `mapstructure:"ringback"`
	Busy     string  `mapstructure:"busy"`
	Reject   string  `mapstructure:"reject"`
	Gain     float64 `mapstructure:"gain"`
}

// ErrInvalidConfig indicates a configuration that fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

func setDefaults(v *viper.Viper) {
	v.SetDefault("loglevel", "info")
	v.SetDefault("logfile", "")
	v.SetDefault("callsign", "VOICE_CLIENT")
	v.SetDefault("cache_size", 16)

	v.SetDefault("device.simulation", false)
	v.SetDefault("device.buffer_ms", 100)
	v.SetDefault("device.event_sync", false)
	v.SetDefault("device.exclusive", false)
	v.SetDefault("device.sample_rate", 48000)
	v.SetDefault("device.channels", 1)
	v.SetDefault("device.queue_packets", 64)
	v.SetDefault("device.generator_hz", 0.0)

	v.SetDefault("tones.ringback", "")
	v.SetDefault("tones.busy", "")
	v.SetDefault("tones.reject", "")
	v.SetDefault("tones.gain", 1.0)
}

// bindEnv maps the device keys onto the variable names the factory package
// also honours, so both layers agree.
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("device.simulation", EnvPrefix+"_USE_SIMULATION")
	_ = v.BindEnv("device.buffer_ms", EnvPrefix+"_BUFFER_MS")
	_ = v.BindEnv("device.event_sync", EnvPrefix+"_EVENT_SYNC")
	_ = v.BindEnv("device.sample_rate", EnvPrefix+"_SAMPLE_RATE")
}

// Load reads the configuration file at path, if present, and applies
// defaults and VOICE_* environment overrides. A missing file is not an
// error; an unreadable or invalid one is.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	bindEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
			logrus.WithFields(logrus.Fields{
				"function": "config.Load",
				"path":     path,
			}).Info("No config file found, using defaults")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks fields that factory.DeviceConfig does not cover.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := limits.ValidateCallsign(c.Callsign); err != nil {
		return fmt.Errorf("%w: callsign: %w", ErrInvalidConfig, err)
	}
	if c.CacheSize < 1 {
		return fmt.Errorf("%w: cache_size %d", ErrInvalidConfig, c.CacheSize)
	}
	if c.Tones.Gain < 0 {
		return fmt.Errorf("%w: negative tone gain %v", ErrInvalidConfig, c.Tones.Gain)
	}
	dc := c.DeviceConfig()
	if err := dc.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// DeviceConfig converts the device section for the endpoint factory.
func (c *Config) DeviceConfig() *factory.DeviceConfig {
	return &factory.DeviceConfig{
		UseSimulation:      c.Device.UseSimulation,
		BufferMilliseconds: c.Device.BufferMilliseconds,
		EventSync:          c.Device.EventSync,
		Exclusive:          c.Device.Exclusive,
		SampleRate:         c.Device.SampleRate,
		Channels:           c.Device.Channels,
		QueuePackets:       c.Device.QueuePackets,
		GeneratorHz:        c.Device.GeneratorHz,
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// ConfigureLogging sets the global logrus level and output. With a file
// name, logs are written as JSON to a size-rotated file; otherwise as text
// to stderr. The returned Closer releases the file.
func ConfigureLogging(level, file string) (io.Closer, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	logrus.SetLevel(lvl)

	if file == "" {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		logrus.SetOutput(os.Stderr)
		return nopCloser{}, nil
	}

	rotating := &lumberjack.Logger{
		Filename:   file,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetOutput(rotating)
	return rotating, nil
}
