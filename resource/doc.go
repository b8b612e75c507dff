// Package resource holds fully decoded, memory-resident sounds.
//
// A Sound is an immutable float32 sample buffer plus its format. It is built
// once at load time and then shared read-only by any number of playback
// readers. Samples are normalised to [-1, 1] and interleaved by channel.
//
// # Loading
//
// Sounds can be decoded from several sources:
//
//   - WAV files (integer PCM) via github.com/go-audio/wav
//   - MP3 files via github.com/tosone/minimp3
//   - Sequences of raw Opus packets via github.com/pion/opus
//   - Any of the above compressed with zstd (".wav.zst", ".mp3.zst")
//
// Load picks the decoder from the file extension:
//
//	snd, err := resource.Load("sounds/ringback.wav.zst")
//
// # Caching
//
// Cache keeps recently used sounds in an LRU keyed by path and collapses
// concurrent loads of the same path into a single decode:
//
//	cache, err := resource.NewCache(32)
//	snd, err := cache.Get("sounds/busy.wav")
package resource
