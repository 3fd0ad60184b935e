// ABOUTME: Opus audio decoder
// ABOUTME: Decodes mono Opus packets to float32 samples
package decode

import (
	"fmt"

	"gopkg.in/hraban/opus.v2"
)

// maxOpusFrame is 120ms at 48kHz, the largest frame Opus can produce
const maxOpusFrame = 5760

// OpusDecoder decodes Opus audio
type OpusDecoder struct {
	decoder    *opus.Decoder
	sampleRate int
	pcm        []float32
}

// NewOpus creates a new mono Opus decoder at the given rate
func NewOpus(sampleRate int) (Decoder, error) {
	switch sampleRate {
	case 8000, 12000, 16000, 24000, 48000:
	default:
		return nil, fmt.Errorf("unsupported opus sample rate: %d", sampleRate)
	}

	dec, err := opus.NewDecoder(sampleRate, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus decoder: %w", err)
	}

	return &OpusDecoder{
		decoder:    dec,
		sampleRate: sampleRate,
		pcm:        make([]float32, maxOpusFrame),
	}, nil
}

// Decode converts one Opus packet to float32 samples
func (d *OpusDecoder) Decode(data []byte) ([]float32, error) {
	if len(data) == 0 {
		return nil, nil
	}

	n, err := d.decoder.DecodeFloat32(data, d.pcm)
	if err != nil {
		return nil, fmt.Errorf("opus decode failed: %w", err)
	}

	out := make([]float32, n)
	copy(out, d.pcm[:n])
	return out, nil
}

// Close releases decoder resources
func (d *OpusDecoder) Close() error {
	return nil
}
