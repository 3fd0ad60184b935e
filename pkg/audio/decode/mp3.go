// ABOUTME: MP3 audio decoder
// ABOUTME: Decodes self-contained MP3 segments to mono float32 at the playback rate
package decode

import (
	"bytes"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/voicechat-go/pkg/audio"
	"github.com/Resonate-Protocol/voicechat-go/pkg/audio/resample"
	"github.com/hajimehoshi/go-mp3"
)

// MP3Decoder decodes MP3 segments; each payload must start on a frame boundary
type MP3Decoder struct {
	targetRate int
	sourceRate int
	resampler  *resample.Resampler
}

// NewMP3 creates a new MP3 decoder producing samples at targetRate
func NewMP3(targetRate int) (Decoder, error) {
	if targetRate <= 0 {
		return nil, fmt.Errorf("invalid target sample rate: %d", targetRate)
	}
	return &MP3Decoder{targetRate: targetRate}, nil
}

// Decode converts one MP3 segment to float32 samples
func (d *MP3Decoder) Decode(data []byte) ([]float32, error) {
	if len(data) == 0 {
		return nil, nil
	}

	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create mp3 decoder: %w", err)
	}

	// go-mp3 always outputs 16-bit stereo
	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("mp3 decode error: %w", err)
	}

	stereo := audio.PCM16ToFloat32(audio.PCM16FromBytes(raw))
	mono := resample.Downmix(stereo, 2)

	if d.resampler == nil || d.sourceRate != dec.SampleRate() {
		d.sourceRate = dec.SampleRate()
		d.resampler = resample.New(d.sourceRate, d.targetRate, 1)
	}

	return d.resampler.Resample(mono), nil
}

// Close releases decoder resources
func (d *MP3Decoder) Close() error {
	return nil
}
