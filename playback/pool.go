package playback

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Pool recycles readers per sound so that frequently triggered sound
// effects do not allocate a reader and scratch buffer on every play.
//
// Pool methods are safe for concurrent use. The readers themselves keep the
// single-owner contract once handed out.
type Pool struct {
	mu   sync.Mutex
	free map[Source][]*Reader
}

// NewPool creates an empty pool.
func NewPool() *Pool {
	return &Pool{free: make(map[Source][]*Reader)}
}

// Acquire returns a reader for snd rewound to the start with the given gain
// and looping mode.
func (p *Pool) Acquire(snd Source, gain float32, looping bool) *Reader {
	p.mu.Lock()
	var r *Reader
	if free := p.free[snd]; len(free) > 0 {
		r = free[len(free)-1]
		p.free[snd] = free[:len(free)-1]
	}
	p.mu.Unlock()

	if r == nil {
		logrus.WithFields(logrus.Fields{
			"function": "Pool.Acquire",
			"samples":  snd.Len(),
		}).Debug("Allocating new reader")
		r = NewReader(snd)
	}

	r.Reset(gain)
	r.SetLooping(looping)
	return r
}

// Release returns r to the pool. The caller must not use r afterwards.
func (p *Pool) Release(r *Reader) {
	if r == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.free[r.sound] = append(p.free[r.sound], r)
}

// Idle returns the number of pooled readers for snd.
func (p *Pool) Idle(snd Source) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free[snd])
}
