// Package limits provides size constants and validation functions for input
// that crosses a trust boundary.
//
// # Limits
//
//   - MaxSignalingMessage (1372 bytes): encoded call requests and responses
//     received from a peer. Decoding is refused above this size.
//   - MaxCallsign (64 bytes): callsigns carried in call requests.
//   - MaxSoundFile (64 MiB): sound files read by the resource loaders.
//   - MaxDecompressedSound (256 MiB): the decoder memory cap for
//     zstd-compressed sound files.
//
// # Validation Functions
//
//	if err := limits.ValidateSignalingMessage(data); err != nil {
//	    // ErrMessageEmpty or ErrMessageTooLarge
//	}
//
// For custom size limits, use the generic ValidateMessageSize function:
//
//	err := limits.ValidateMessageSize(data, 4096)
package limits
