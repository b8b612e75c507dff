// Package voicecore implements the real-time audio path of a voice
// communication client.
//
// The package ties four pieces together:
//
//   - capture: a Session pulls native packets from a capture endpoint on its
//     own goroutine, zeroes silent packets and hands fixed buffers to the
//     caller. The stop notification fires exactly once per recording.
//   - resource: decoded sounds (WAV, MP3 or raw Opus frames) kept in an
//     LRU cache.
//   - playback: allocation-free looping readers over those sounds, and a
//     Switch that changes the active reader while an output device pulls.
//   - signaling: msgpack-encoded call requests and responses.
//
// # Getting Started
//
// Create a Client from a capture endpoint and a sound cache, attach its tone
// stream to an output device and feed it call responses:
//
//	factory := factory.NewEndpointFactory()
//	endpoint, err := factory.CreateEndpoint()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	sounds, err := resource.NewCache(16)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	options := voicecore.NewOptions()
//	options.Callsign = "EGLL_TWR"
//	options.Tones[signaling.EventRouted] = "sounds/ringback.wav"
//	options.Tones[signaling.EventBusy] = "sounds/busy.wav"
//	options.Tones[signaling.EventReject] = "sounds/reject.wav"
//
//	client, err := voicecore.New(endpoint, sounds, options)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Kill()
//
//	renderer, _ := factory.CreateRenderer(options.ToneFormat)
//	renderer.Play(client.Tone())
//
//	req, wire, _ := client.PlaceCall("EGKK_APP")
//	// send wire to the peer, then for every reply:
//	client.HandleMessage(reply)
//
// # Call progress
//
// EventRouted loops the ringback tone. EventBusy loops the busy tone.
// EventAccept silences the tone and starts recording. EventReject and
// EventNoRoute stop recording and play the reject tone once.
//
// # Thread Safety
//
// Client methods may be called from any goroutine. The tone stream returned
// by Tone must be read by a single output goroutine.
package voicecore
