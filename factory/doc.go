// Package factory creates audio device backends for voicecore.
//
// The factory hides the choice between the miniaudio devices of package
// real and the in-memory devices of package testing, so capture and
// playback code never names a concrete backend.
//
// # Configuration
//
// Defaults are 48 kHz mono float32 capture with a 100 ms polling buffer on
// real devices. The following environment variables override them:
//   - VOICE_USE_SIMULATION: "true" or "false" to select simulated devices
//   - VOICE_BUFFER_MS: capture buffer length in milliseconds [5, 2000]
//   - VOICE_EVENT_SYNC: "true" or "false" for event-driven capture
//   - VOICE_SAMPLE_RATE: capture sample rate [8000, 192000]
//
// Invalid or out-of-range values are logged at Warn and ignored.
//
// # Usage
//
//	f := factory.NewEndpointFactory()
//	ep, err := f.CreateEndpoint()
//	if err != nil {
//	    return err
//	}
//	session, err := capture.New(ep, f.CreateCaptureOptions())
//
// # Testing Support
//
//	func TestMyFeature(t *testing.T) {
//	    f := factory.NewEndpointFactory()
//	    ep := f.CreateSimulationForTesting(factory.WithMixFormat(16000, 1))
//	    ep.PushPCM(pcm)
//	}
//
// # Thread Safety
//
// EndpointFactory is safe for concurrent use. GetCurrentConfig returns a
// copy; changes go through UpdateConfig, SwitchToSimulation and SwitchToReal.
package factory
