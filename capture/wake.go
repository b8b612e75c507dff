package capture

import "time"

// WakeSource paces the capture goroutine between drain cycles.
//
// Wait blocks until Signal is called or timeout elapses and reports whether
// it was signalled. Signals are auto-reset: one pending signal releases one
// Wait, and extra signals before that Wait are coalesced. Reset discards a
// pending signal; the session calls it before each recording so a stop
// request left over from the previous one does not cut the first wait short.
type WakeSource interface {
	Wait(timeout time.Duration) bool
	Signal()
	Reset()
}

// signalWake is an auto-reset event with a timed wait. Wait is called only
// from the capture goroutine; Signal may be called from any goroutine.
type signalWake struct {
	ch    chan struct{}
	timer *time.Timer
}

func newSignalWake() signalWake {
	t := time.NewTimer(time.Hour)
	t.Stop()
	return signalWake{ch: make(chan struct{}, 1), timer: t}
}

func (w *signalWake) Signal() {
	select {
	case w.ch <- struct{}{}:
	default:
	}
}

func (w *signalWake) Reset() {
	select {
	case <-w.ch:
	default:
	}
}

func (w *signalWake) Wait(timeout time.Duration) bool {
	w.timer.Reset(timeout)
	defer w.timer.Stop()

	select {
	case <-w.ch:
		return true
	case <-w.timer.C:
		return false
	}
}

// EventWake is signalled by the endpoint each time a packet is queued. The
// session waits on it with a timeout of three native buffer periods so a
// missed event cannot stall capture.
type EventWake struct {
	signalWake
}

// NewEventWake creates an unsignalled event wake source.
func NewEventWake() *EventWake {
	return &EventWake{signalWake: newSignalWake()}
}

// TimerWake paces a polling session: every Wait sleeps for its timeout
// (half a native buffer period) unless a stop request signals it early.
type TimerWake struct {
	signalWake
}

// NewTimerWake creates a polling wake source.
func NewTimerWake() *TimerWake {
	return &TimerWake{signalWake: newSignalWake()}
}
