// ABOUTME: Decoder interface definition
// ABOUTME: Common interface for all payload decoders plus a format factory
package decode

import "fmt"

// Decoder decodes audio payloads to normalized mono samples
type Decoder interface {
	// Decode converts an encoded payload to samples at the playback rate
	Decode(data []byte) ([]float32, error)

	// Close releases decoder resources
	Close() error
}

// Format names carried in the envelope "format" field
const (
	FormatPCM16 = "pcm16"
	FormatOpus  = "opus"
	FormatMP3   = "mp3"
)

// ForFormat returns a decoder for the named payload format; empty means PCM16
func ForFormat(name string, sampleRate int) (Decoder, error) {
	switch name {
	case "", "pcm", FormatPCM16:
		return NewPCM16(), nil
	case FormatOpus:
		return NewOpus(sampleRate)
	case FormatMP3:
		return NewMP3(sampleRate)
	default:
		return nil, fmt.Errorf("unsupported audio format: %s", name)
	}
}
