// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines the Chunk type and PCM16 sample conversion functions
// Package audio provides the sample types shared by the voicechat client.
//
// This package defines the core type used throughout the library:
//   - Chunk: one arrival unit of decoded mono float32 audio
//
// It also provides the conversions used on the wire:
//   - float32 ↔ PCM16 sample conversion
//   - PCM16 little-endian ↔ base64 payloads
//
// Example:
//
//	samples, err := audio.DecodePCM16Base64(msg.Data)
//	chunk := audio.Chunk{Samples: samples}
//
//	payload := audio.EncodePCM16Base64(micFrame)
package audio
