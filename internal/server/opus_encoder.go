// ABOUTME: Opus encoder for compressed replies
// ABOUTME: Wraps libopus to encode mono speech frames at the playback rate
package server

import (
	"fmt"
	"log"

	"gopkg.in/hraban/opus.v2"
)

// OpusEncoder wraps the Opus encoder
type OpusEncoder struct {
	encoder    *opus.Encoder
	sampleRate int
	channels   int
	frameSize  int // samples per channel per frame
}

// NewOpusEncoder creates a new Opus encoder.
// frameSize is in samples per channel (e.g., 480 for 20ms at 24kHz).
func NewOpusEncoder(sampleRate, channels, frameSize int) (*OpusEncoder, error) {
	encoder, err := opus.NewEncoder(sampleRate, channels, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}

	if err := encoder.SetBitrate(32000 * channels); err != nil {
		log.Printf("Warning: Failed to set Opus bitrate: %v", err)
	}

	return &OpusEncoder{
		encoder:    encoder,
		sampleRate: sampleRate,
		channels:   channels,
		frameSize:  frameSize,
	}, nil
}

// FrameSize returns the samples per channel each packet must carry
func (e *OpusEncoder) FrameSize() int {
	return e.frameSize
}

// Encode encodes one frame of interleaved float32 samples to an Opus packet
func (e *OpusEncoder) Encode(pcm []float32) ([]byte, error) {
	if len(pcm) != e.frameSize*e.channels {
		return nil, fmt.Errorf("opus frame must hold %d samples, got %d", e.frameSize*e.channels, len(pcm))
	}

	// Opus packets never exceed 4000 bytes
	output := make([]byte, 4000)

	n, err := e.encoder.EncodeFloat32(pcm, output)
	if err != nil {
		return nil, fmt.Errorf("opus encode failed: %w", err)
	}

	return output[:n], nil
}

// Packets splits samples into frames, zero-padding the last, and encodes each
func (e *OpusEncoder) Packets(samples []float32) ([][]byte, error) {
	size := e.frameSize * e.channels
	var packets [][]byte

	for start := 0; start < len(samples); start += size {
		frame := make([]float32, size)
		copy(frame, samples[start:min(start+size, len(samples))])

		packet, err := e.Encode(frame)
		if err != nil {
			return nil, err
		}
		packets = append(packets, packet)
	}

	return packets, nil
}

// Close releases the encoder
func (e *OpusEncoder) Close() error {
	// opus.Encoder holds no resources beyond Go memory
	return nil
}
