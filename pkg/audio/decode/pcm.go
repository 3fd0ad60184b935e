// ABOUTME: PCM16 audio decoder
// ABOUTME: Decodes little-endian 16-bit mono PCM to float32 samples
package decode

import "github.com/Resonate-Protocol/voicechat-go/pkg/audio"

// PCM16Decoder decodes raw PCM16 payloads
type PCM16Decoder struct{}

// NewPCM16 creates a new PCM16 decoder
func NewPCM16() Decoder {
	return &PCM16Decoder{}
}

// Decode converts PCM16 bytes to float32 samples
func (d *PCM16Decoder) Decode(data []byte) ([]float32, error) {
	return audio.PCM16ToFloat32(audio.PCM16FromBytes(data)), nil
}

// Close releases resources
func (d *PCM16Decoder) Close() error {
	return nil
}
