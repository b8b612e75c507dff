// Package interfaces defines the native audio abstractions used by voicecore.
//
// These interfaces let the capture and playback code run unchanged against a
// real OS audio backend or a simulated one, supporting both production use
// and deterministic tests.
//
// # Core Interfaces
//
// [IEndpoint] is a capture endpoint in the style of a pull-mode OS capture
// client: the stream is initialised once, started and stopped, and queued
// packets are drained with NextPacketFrames / GetBuffer / ReleaseBuffer.
//
//	ep, err := factory.NewEndpointFactory().CreateEndpoint()
//	if err != nil {
//	    return err
//	}
//	cfg := interfaces.EndpointConfig{
//	    ShareMode:      interfaces.ShareModeShared,
//	    Flags:          interfaces.StreamFlagAutoConvertPCM | interfaces.StreamFlagSRCDefaultQuality,
//	    BufferDuration: 100 * time.Millisecond,
//	    Format:         ep.MixFormat(),
//	}
//	if err := ep.Initialize(cfg); err != nil {
//	    return err
//	}
//
// [IRenderDevice] is the output side: a device that pulls float32 samples
// from a playback.SampleProvider on its own real-time goroutine.
//
// # Implementation Selection
//
// The factory package creates implementations based on configuration:
//   - UseSimulation=true: SimulatedEndpoint from the testing package
//   - UseSimulation=false: MalgoEndpoint from the real package
//
// # Event-driven capture
//
// When EndpointConfig.Flags includes StreamFlagEventCallback the endpoint
// calls the function registered with SetEventHandle every time a packet is
// queued. The capture session uses it as its wake source instead of polling.
package interfaces
