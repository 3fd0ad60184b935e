// ABOUTME: Audio decoder package for multiple payload formats
// ABOUTME: Provides Decoder interface and implementations for PCM16, Opus, MP3
// Package decode turns received audio payloads into playable chunks.
//
// Supports: PCM16 (default), Opus, MP3
//
// All decoders implement the Decoder interface and output mono float32
// samples at the playback rate.
//
// Example:
//
//	decoder, err := decode.ForFormat(msg.Format, audio.OutputSampleRate)
//	samples, err := decoder.Decode(payload)
package decode
