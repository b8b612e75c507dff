// Package testing provides an in-memory capture endpoint for deterministic
// tests of the capture pipeline.
//
// # Overview
//
// SimulatedEndpoint implements interfaces.IEndpoint without audio hardware.
// Packets are queued by the test and drained by the capture session exactly
// as a native driver would hand them out, including silent packets and
// packets larger than one native period.
//
// # Simulation vs Real Implementation
//
//   - Simulation (this package): packets come from the test or from an
//     optional sine generator. Used for unit tests and headless runs.
//
//   - Real (real package): packets come from the default capture device
//     through miniaudio.
//
// Both conform to interfaces.IEndpoint and are selected by the factory
// package.
//
// # Usage
//
//	ep := testing.NewSimulatedEndpoint(format.Float32(48000, 1))
//	session, _ := capture.New(ep, capture.Options{EventSync: true})
//	_ = session.StartRecording()
//	ep.PushPCM(samples)
//
// # Fault Injection
//
// FailInitialize, FailStart, FailNextGetBuffer and PanicOnGetBuffer make the
// next matching call fail so that fault paths of the session can be driven
// from tests. GetStats exposes call counters for verification.
//
// # Thread Safety
//
// All methods are safe for concurrent use. The event handle is invoked
// outside the endpoint lock.
package testing
