// Package real provides the production audio device backends.
//
// MalgoEndpoint implements interfaces.IEndpoint on the default capture
// device and MalgoRenderer implements interfaces.IRenderDevice on the
// default playback device, both through miniaudio (github.com/gen2brain/malgo).
//
// # Push to Pull
//
// miniaudio delivers captured audio by calling back on its own thread. The
// endpoint copies each callback into a bounded packet queue and, when the
// session runs event driven, signals the session's wake source:
//
//	miniaudio thread ──push──▶ packetQueue ──GetBuffer──▶ capture goroutine
//	        │                                                   ▲
//	        └────────────── event handle (Signal) ──────────────┘
//
// When the capture goroutine falls behind and the queue fills, new packets
// are dropped and the next queued packet is flagged
// BufferFlagDataDiscontinuity.
//
// Playback runs the other way round: the device callback pulls float32
// samples from the current playback.SampleProvider in chunks no larger than
// the provider's maximum and pads any shortfall with silence.
//
// # Build Requirements
//
// miniaudio is compiled through cgo. Tests in this package exercise the
// queue and sample conversion without opening devices.
package real
