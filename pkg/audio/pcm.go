// ABOUTME: PCM16 conversion helpers
// ABOUTME: Converts between normalized float32 samples, int16 PCM and base64 payloads
package audio

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// Float32ToPCM16 converts normalized samples to 16-bit PCM with clipping
func Float32ToPCM16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		if s < 0 {
			out[i] = int16(s * 0x8000)
		} else {
			out[i] = int16(s * 0x7FFF)
		}
	}
	return out
}

// PCM16ToFloat32 converts 16-bit PCM to normalized samples
func PCM16ToFloat32(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768.0
	}
	return out
}

// PCM16Bytes packs samples as little-endian 16-bit PCM
func PCM16Bytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// PCM16FromBytes unpacks little-endian 16-bit PCM (a trailing odd byte is ignored)
func PCM16FromBytes(data []byte) []int16 {
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return out
}

// EncodePCM16Base64 converts samples to the base64 PCM16 payload sent upstream
func EncodePCM16Base64(samples []float32) string {
	return base64.StdEncoding.EncodeToString(PCM16Bytes(Float32ToPCM16(samples)))
}

// DecodePCM16Base64 converts a base64 PCM16 payload to normalized samples
func DecodePCM16Base64(data string) ([]float32, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 audio payload: %w", err)
	}
	return PCM16ToFloat32(PCM16FromBytes(raw)), nil
}
