package resource

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/opd-ai/voicecore/limits"
	"github.com/sirupsen/logrus"
)

// Load reads and decodes the sound file at path. A ".zst" suffix is
// decompressed first and the decoder is then chosen by the inner extension.
func Load(path string) (*Sound, error) {
	logrus.WithFields(logrus.Fields{
		"function": "Load",
		"path":     path,
	}).Debug("Loading sound")

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("read sound %q: %w", path, err)
	}
	if err := limits.ValidateSoundFile(info.Size()); err != nil {
		return nil, fmt.Errorf("read sound %q: %w", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sound %q: %w", path, err)
	}

	snd, err := Decode(filepath.Base(path), data)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Load",
			"path":     path,
			"error":    err.Error(),
		}).Error("Sound decode failed")
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function": "Load",
		"path":     path,
		"samples":  snd.Len(),
		"format":   snd.Format().String(),
		"duration": snd.Duration().String(),
	}).Info("Sound loaded")

	return snd, nil
}

// Decode decodes an in-memory sound file, using name's extension to pick
// the decoder.
func Decode(name string, data []byte) (*Sound, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == ".zst" {
		raw, err := decompress(data)
		if err != nil {
			return nil, fmt.Errorf("sound %q: %w", name, err)
		}
		return Decode(strings.TrimSuffix(name, filepath.Ext(name)), raw)
	}

	switch ext {
	case ".wav":
		return DecodeWAV(name, bytes.NewReader(data))
	case ".mp3":
		return DecodeMP3(name, data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFile, name)
	}
}

func decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(bytes.NewReader(data), zstd.WithDecoderMaxMemory(limits.MaxDecompressedSound))
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer dec.Close()

	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	return raw, nil
}
