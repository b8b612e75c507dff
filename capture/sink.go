package capture

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Frame is one captured emission copied out of the record buffer.
type Frame struct {
	Seq  uint64
	Data []byte
	At   time.Time
}

// ChannelSink adapts the session callbacks to a bounded channel for a
// consumer on another goroutine. It never blocks the capture goroutine:
// when the channel is full the frame is dropped and counted.
//
// One sink serves every recording of a session. A stop does not close the
// channel; the owner calls Close when no further recording will start.
//
//	sink := capture.NewChannelSink(16)
//	opts.OnDataAvailable = sink.DataAvailable
//	opts.OnRecordingStopped = sink.RecordingStopped
//	go func() { <-done; sink.Close() }()
//	for f := range sink.Frames() { ... }
type ChannelSink struct {
	mu      sync.Mutex
	frames  chan Frame
	seq     uint64
	dropped uint64
	stops   uint64
	closed  bool
	err     error
}

// NewChannelSink creates a sink buffering up to depth frames.
func NewChannelSink(depth int) *ChannelSink {
	if depth < 1 {
		depth = 1
	}
	return &ChannelSink{frames: make(chan Frame, depth)}
}

// DataAvailable copies buf[:n] into a new frame and queues it.
func (c *ChannelSink) DataAvailable(buf []byte, n int) {
	data := make([]byte, n)
	copy(data, buf[:n])

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	c.seq++
	select {
	case c.frames <- Frame{Seq: c.seq, Data: data, At: time.Now()}:
	default:
		c.dropped++
		if c.dropped == 1 || c.dropped%100 == 0 {
			logrus.WithFields(logrus.Fields{
				"function": "ChannelSink.DataAvailable",
				"seq":      c.seq,
				"dropped":  c.dropped,
			}).Warn("Capture consumer too slow, dropping frame")
		}
	}
}

// RecordingStopped records how the latest recording ended. The channel stays
// open for the next recording.
func (c *ChannelSink) RecordingStopped(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
	c.stops++

	fields := logrus.Fields{
		"function":  "ChannelSink.RecordingStopped",
		"recording": c.stops,
		"seq":       c.seq,
	}
	if err != nil {
		fields["error"] = err.Error()
		logrus.WithFields(fields).Warn("Recording ended with a fault")
		return
	}
	logrus.WithFields(fields).Debug("Recording ended")
}

// Frames returns the channel of captured frames. It is closed by Close.
func (c *ChannelSink) Frames() <-chan Frame { return c.frames }

// Recordings returns the number of stop notifications received.
func (c *ChannelSink) Recordings() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stops
}

// Err returns the fault that ended the latest recording, or nil if it
// stopped cleanly.
func (c *ChannelSink) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Dropped returns the number of frames discarded because the channel was full.
func (c *ChannelSink) Dropped() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// Close closes the frame channel. Later emissions are discarded.
func (c *ChannelSink) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.frames)
}
