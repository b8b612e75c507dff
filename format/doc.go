// Package format describes the shape of PCM audio moving through voicecore.
//
// An AudioFormat is a small immutable value: sample rate, channel count,
// bits per sample and encoding. It is used to validate native capture
// formats and to size buffers, both in the capture path (bytes per frame,
// native period length) and in the playback path (the maximum chunk a
// sample reader accepts per call).
//
//	f, err := format.New(48000, 1, 32, format.EncodingIEEEFloat)
//	if err != nil {
//	    return err
//	}
//	frames := f.FramesIn(100 * time.Millisecond) // 4800
//	bytes := frames * f.BlockAlign()             // 19200
//
// Only integer PCM and IEEE float are supported encodings. Anything else
// reported by a native endpoint is represented as EncodingUnknown and
// rejected by the capture session before the stream is opened.
package format
