package real

import (
	"sync"

	"github.com/opd-ai/voicecore/interfaces"
)

// queuedPacket is one device callback's worth of captured bytes.
type queuedPacket struct {
	data   []byte
	frames int
	flags  interfaces.BufferFlags
}

// packetQueue is a bounded FIFO between the device callback and the capture
// goroutine. Buffers are recycled so that the device callback does not
// allocate once the queue has warmed up.
//
// When the queue is full the newest packet is dropped and the next packet
// that does get queued carries BufferFlagDataDiscontinuity.
type packetQueue struct {
	mu       sync.Mutex
	packets  []queuedPacket
	limit    int
	free     [][]byte
	gap      bool
	dropped  uint64
	enqueued uint64
}

func newPacketQueue(limit int) *packetQueue {
	if limit < 1 {
		limit = 1
	}
	return &packetQueue{
		packets: make([]queuedPacket, 0, limit),
		limit:   limit,
	}
}

// push copies data into the queue. It returns false if the packet was dropped.
func (q *packetQueue) push(data []byte, frames int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.packets) >= q.limit {
		q.dropped++
		q.gap = true
		return false
	}

	buf := q.takeBuffer(len(data))
	copy(buf, data)

	var flags interfaces.BufferFlags
	if q.gap {
		flags |= interfaces.BufferFlagDataDiscontinuity
		q.gap = false
	}
	q.packets = append(q.packets, queuedPacket{data: buf, frames: frames, flags: flags})
	q.enqueued++
	return true
}

// peekFrames returns the frame count of the oldest packet, or 0.
func (q *packetQueue) peekFrames() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.packets) == 0 {
		return 0
	}
	return q.packets[0].frames
}

// pop removes the oldest packet. The caller returns its buffer with recycle.
func (q *packetQueue) pop() (queuedPacket, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.packets) == 0 {
		return queuedPacket{}, false
	}
	p := q.packets[0]
	copy(q.packets, q.packets[1:])
	q.packets[len(q.packets)-1] = queuedPacket{}
	q.packets = q.packets[:len(q.packets)-1]
	return p, true
}

func (q *packetQueue) recycle(buf []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.free) < q.limit {
		q.free = append(q.free, buf[:0])
	}
}

// reset discards queued packets, keeping their buffers for reuse.
func (q *packetQueue) reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, p := range q.packets {
		if len(q.free) < q.limit {
			q.free = append(q.free, p.data[:0])
		}
	}
	clear(q.packets)
	q.packets = q.packets[:0]
	q.gap = false
}

func (q *packetQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.packets)
}

func (q *packetQueue) stats() (enqueued, dropped uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.enqueued, q.dropped
}

// takeBuffer returns a recycled buffer of length n. Called with mu held.
func (q *packetQueue) takeBuffer(n int) []byte {
	for len(q.free) > 0 {
		last := len(q.free) - 1
		buf := q.free[last]
		q.free = q.free[:last]
		if cap(buf) >= n {
			return buf[:n]
		}
	}
	return make([]byte, n)
}
