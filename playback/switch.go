package playback

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/opd-ai/voicecore/format"
)

// ErrFormatMismatch is returned by Switch.Set for a reader in another format.
var ErrFormatMismatch = errors.New("reader format does not match switch format")

// Switch is a SampleProvider whose current Reader can be replaced from any
// goroutine while an output driver keeps pulling from it. It never runs dry:
// with no reader set, or once a one-shot reader is exhausted, it produces
// silence.
//
// Read never locks. When it moves off a replaced reader it parks that reader
// in a retired slot, and the next Set hands it back to the pool. A reader is
// therefore never returned while still being read. If the output side
// retires a second reader before any Set drains the slot, the older one is
// left to the garbage collector.
type Switch struct {
	format  format.AudioFormat
	pool    *Pool
	next    atomic.Pointer[Reader]
	retired atomic.Pointer[Reader]

	// Touched only by the output goroutine.
	active *Reader
}

// NewSwitch creates a silent switch for readers in f. pool may be nil.
func NewSwitch(f format.AudioFormat, pool *Pool) *Switch {
	return &Switch{format: f, pool: pool}
}

// Set makes r the reader for the next Read. A nil r selects silence. The
// caller gives up ownership of r.
func (s *Switch) Set(r *Reader) error {
	if r != nil && r.Format() != s.format {
		return fmt.Errorf("%w: %s, want %s", ErrFormatMismatch, r.Format(), s.format)
	}
	if old := s.retired.Swap(nil); old != nil {
		s.pool.Release(old)
	}
	s.next.Store(r)
	return nil
}

// Current returns the reader selected by the last Set, or nil.
func (s *Switch) Current() *Reader {
	return s.next.Load()
}

// Read implements SampleProvider. It always returns count.
func (s *Switch) Read(buffer []float32, offset, count int) int {
	r := s.next.Load()
	if r != s.active {
		if s.active != nil && s.pool != nil {
			s.retired.Store(s.active)
		}
		s.active = r
	}

	if r == nil {
		clear(buffer[offset : offset+count])
		return count
	}

	n := r.Read(buffer, offset, count)
	if n < count {
		clear(buffer[offset+n : offset+count])
	}
	return count
}

// Format implements SampleProvider.
func (s *Switch) Format() format.AudioFormat { return s.format }
