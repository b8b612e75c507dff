// Package playback feeds decoded sounds into a real-time output callback.
//
// The central type is Reader, a pull-based sample provider over an
// immutable resource.Sound. An output driver calls Read once per device
// period to fill its next buffer; Read applies a scalar gain and, when
// looping is enabled, wraps to the start of the sound with a short run of
// silence at the boundary so the driver always receives a full buffer.
//
//	r := playback.NewReader(ringback)
//	r.SetLooping(true)
//	n := r.Read(out, 0, len(out)) // n == len(out) while looping
//
// # Threading
//
// A Reader is owned by exactly one goroutine: the one driving the output
// callback. Read never blocks, never allocates and never logs. No locking is
// done, and calling Read from two goroutines at once is undefined behaviour.
// SetConcurrencyCheck turns on a cheap guard that panics on overlapping
// calls, for use in tests and debug builds.
//
// Pool recycles readers for short sound effects; a reader taken from the
// pool is rewound with Reset before it is handed out again.
package playback
