// Package capture records microphone audio from a native endpoint.
//
// A Session owns one interfaces.IEndpoint and, while recording, one
// dedicated capture goroutine. The goroutine sleeps on a WakeSource
// (an EventWake signalled by the endpoint, or a TimerWake that polls at
// half the native buffer period), drains every queued native packet into a
// record buffer sized to one period, and flushes that buffer to the
// data-available callback. Silent packets are written as zeros.
//
//	sess, err := capture.New(endpoint, capture.Options{
//	    BufferMilliseconds: 100,
//	    EventSync:          true,
//	    OnDataAvailable: func(buf []byte, n int) {
//	        forward(buf[:n]) // copy if kept beyond the call
//	    },
//	    OnRecordingStopped: func(err error) {
//	        if err != nil {
//	            log.Printf("capture failed: %v", err)
//	        }
//	    },
//	})
//	if err != nil {
//	    return err
//	}
//	defer sess.Close()
//	if err := sess.StartRecording(); err != nil {
//	    return err
//	}
//	...
//	sess.StopRecording()
//
// # Lifecycle
//
// The session state moves Stopped → Starting → Capturing → Stopping →
// Stopped. StartRecording on a session that is not Stopped fails with
// ErrInvalidState. StopRecording is idempotent and non-blocking. Close
// stops, joins the capture goroutine and then releases the endpoint.
//
// # Guarantees
//
//   - Emissions of one recording are strictly ordered and never overlap.
//   - Every wake cycle that drained audio ends with at least one emission.
//   - OnRecordingStopped fires exactly once per recording, after the last
//     emission and after the native stream was stopped.
//   - Faults inside the capture goroutine, including panics, are never
//     returned to StartRecording's caller; they arrive in OnRecordingStopped
//     wrapped in ErrCaptureFault.
//
// ChannelSink adapts the callbacks to a bounded channel for consumers that
// prefer to range over captured frames.
package capture
