package testing

import (
	"sync"

	"github.com/opd-ai/voicecore/format"
	"github.com/opd-ai/voicecore/interfaces"
	"github.com/opd-ai/voicecore/playback"
	"github.com/sirupsen/logrus"
)

// SimulatedRenderer implements interfaces.IRenderDevice without a device.
// Nothing is pulled on its own; tests drive the output path with Pull.
type SimulatedRenderer struct {
	mu       sync.Mutex
	provider playback.SampleProvider
	playing  bool
	closed   bool
	pulled   int
}

// NewSimulatedRenderer creates an idle renderer.
func NewSimulatedRenderer() *SimulatedRenderer {
	logrus.Warn("SIMULATION FUNCTION - NOT A REAL OPERATION")
	return &SimulatedRenderer{}
}

// Play implements IRenderDevice.Play.
func (r *SimulatedRenderer) Play(provider playback.SampleProvider) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return interfaces.ErrEndpointClosed
	}
	r.provider = provider
	r.playing = true
	return nil
}

// Stop implements IRenderDevice.Stop.
func (r *SimulatedRenderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.playing = false
	r.provider = nil
	return nil
}

// Close implements IRenderDevice.Close.
func (r *SimulatedRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.playing = false
	r.provider = nil
	return nil
}

// IsPlaying reports whether a provider is attached.
func (r *SimulatedRenderer) IsPlaying() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.playing
}

// Pull reads n samples from the current provider the way a device callback
// would, in chunks no larger than the provider format allows. Samples the
// provider does not supply are left as zero.
func (r *SimulatedRenderer) Pull(n int) []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]float32, n)
	if !r.playing || r.provider == nil {
		return out
	}

	chunk := format.MaxChunkSamples(r.provider.Format())
	written := 0
	for written < n {
		want := min(chunk, n-written)
		got := r.provider.Read(out, written, want)
		written += got
		if got < want {
			break
		}
	}
	r.pulled += written
	return out
}

// Pulled returns the total number of samples produced by Pull.
func (r *SimulatedRenderer) Pulled() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pulled
}
