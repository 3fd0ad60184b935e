// ABOUTME: Reply clips loaded from files or generated as a test tone
// ABOUTME: Decodes MP3 and FLAC into mono float32 samples at the playback rate
package server

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Resonate-Protocol/voicechat-go/pkg/audio"
	"github.com/Resonate-Protocol/voicechat-go/pkg/audio/resample"
	"github.com/hajimehoshi/go-mp3"
	"github.com/mewkiz/flac"
)

// Clip is a canned reply
type Clip struct {
	Title   string
	Samples []float32 // mono at audio.OutputSampleRate
	MP3     []byte    // original file bytes when the clip came from an MP3
}

// Duration returns the clip length
func (c *Clip) Duration() string {
	return audio.SamplesDuration(len(c.Samples), audio.OutputSampleRate).Round(time.Millisecond).String()
}

// LoadClip reads an MP3 or FLAC file
func LoadClip(path string) (*Clip, error) {
	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	var clip *Clip
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		clip, err = loadMP3(path)
	case ".flac":
		clip, err = loadFLAC(path)
	default:
		return nil, fmt.Errorf("unsupported clip format: %s (use MP3 or FLAC)", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	clip.Title = title
	log.Printf("Loaded reply clip: %s (%s)", title, clip.Duration())
	return clip, nil
}

// loadMP3 decodes a whole MP3 file
func loadMP3(path string) (*Clip, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open MP3 file: %w", err)
	}

	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}

	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}

	// go-mp3 always yields 16-bit stereo
	stereo := make([]float32, len(pcm)/2)
	for i := range stereo {
		stereo[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768.0
	}

	return &Clip{
		Samples: toPlaybackRate(resample.Downmix(stereo, 2), decoder.SampleRate()),
		MP3:     data,
	}, nil
}

// loadFLAC decodes a whole FLAC file
func loadFLAC(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open FLAC file: %w", err)
	}
	defer f.Close()

	stream, err := flac.New(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}

	channels := int(stream.Info.NChannels)
	scale := float32(int64(1) << (stream.Info.BitsPerSample - 1))

	var mono []float32
	for {
		frame, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode FLAC frame: %w", err)
		}

		for i := 0; i < int(frame.BlockSize); i++ {
			var sum float32
			for ch := 0; ch < channels; ch++ {
				sum += float32(frame.Subframes[ch].Samples[i]) / scale
			}
			mono = append(mono, sum/float32(channels))
		}
	}

	return &Clip{Samples: toPlaybackRate(mono, int(stream.Info.SampleRate))}, nil
}

// ToneClip generates a sine tone at half scale
func ToneClip(frequency float64, seconds float64) *Clip {
	n := int(seconds * audio.OutputSampleRate)
	samples := make([]float32, n)
	for i := range samples {
		t := float64(i) / audio.OutputSampleRate
		samples[i] = float32(0.5 * math.Sin(2*math.Pi*frequency*t))
	}
	return &Clip{Title: fmt.Sprintf("Test Tone (%.0fHz)", frequency), Samples: samples}
}

// toPlaybackRate resamples mono audio to the playback rate
func toPlaybackRate(samples []float32, rate int) []float32 {
	if rate == audio.OutputSampleRate {
		return samples
	}
	return resample.New(rate, audio.OutputSampleRate, 1).Resample(samples)
}
