// ABOUTME: Turn detection and reply generation for the development backend
// ABOUTME: Collects an utterance until the speaker pauses, then builds reply envelopes
package server

import (
	"encoding/base64"
	"fmt"
	"math"
	"time"

	"github.com/Resonate-Protocol/voicechat-go/pkg/audio"
	"github.com/Resonate-Protocol/voicechat-go/pkg/audio/decode"
	"github.com/Resonate-Protocol/voicechat-go/pkg/audio/resample"
	"github.com/Resonate-Protocol/voicechat-go/pkg/protocol"
)

const (
	// DefaultThreshold is the RMS level that counts as speech
	DefaultThreshold = 0.02

	// DefaultSilenceGap ends an utterance
	DefaultSilenceGap = 700 * time.Millisecond

	// DefaultMinSpeech discards clicks and coughs
	DefaultMinSpeech = 200 * time.Millisecond

	// DefaultMaxUtterance forces a reply during long monologues
	DefaultMaxUtterance = 15 * time.Second

	// DefaultChunkDuration is the length of each PCM16 reply envelope
	DefaultChunkDuration = 100 * time.Millisecond

	// opusFrameSize is 20ms at the playback rate
	opusFrameSize = audio.OutputSampleRate / 50
)

// ResponderConfig holds turn detection settings
type ResponderConfig struct {
	Threshold    float64
	SilenceGap   time.Duration
	MinSpeech    time.Duration
	MaxUtterance time.Duration
}

// Responder detects the end of each utterance in microphone audio
type Responder struct {
	config ResponderConfig

	speech   []float32
	silent   int
	speaking bool
}

// NewResponder creates a turn detector for 16 kHz microphone audio
func NewResponder(config ResponderConfig) *Responder {
	if config.Threshold == 0 {
		config.Threshold = DefaultThreshold
	}
	if config.SilenceGap == 0 {
		config.SilenceGap = DefaultSilenceGap
	}
	if config.MinSpeech == 0 {
		config.MinSpeech = DefaultMinSpeech
	}
	if config.MaxUtterance == 0 {
		config.MaxUtterance = DefaultMaxUtterance
	}
	return &Responder{config: config}
}

// Feed adds one microphone frame. It returns the finished utterance, without
// its trailing silence, once the speaker has paused for SilenceGap.
func (r *Responder) Feed(samples []float32) []float32 {
	gap := samplesFor(r.config.SilenceGap)
	maxLen := samplesFor(r.config.MaxUtterance)

	if rms(samples) >= r.config.Threshold {
		r.speaking = true
		r.silent = 0
		r.speech = append(r.speech, samples...)
	} else if r.speaking {
		r.speech = append(r.speech, samples...)
		r.silent += len(samples)
	}

	if !r.speaking {
		return nil
	}

	if r.silent >= gap || len(r.speech) >= maxLen {
		utterance := r.speech[:len(r.speech)-r.silent]
		r.Reset()
		if len(utterance) < samplesFor(r.config.MinSpeech) {
			return nil
		}
		return utterance
	}

	return nil
}

// Reset discards any partial utterance
func (r *Responder) Reset() {
	r.speech = nil
	r.silent = 0
	r.speaking = false
}

// samplesFor converts a duration to a microphone sample count
func samplesFor(d time.Duration) int {
	return int(d.Seconds() * audio.InputSampleRate)
}

// rms returns the root mean square level of samples
func rms(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// buildReply returns the envelopes answering one utterance: a text line
// followed by the audio in the configured format
func (s *Server) buildReply(utterance []float32) ([]protocol.Message, error) {
	heard := audio.SamplesDuration(len(utterance), audio.InputSampleRate).Round(100 * time.Millisecond)

	var samples []float32
	var text string
	if s.clip != nil {
		samples = s.clip.Samples
		text = fmt.Sprintf("Heard %v of audio, playing %s", heard, s.clip.Title)
	} else {
		samples = resample.New(audio.InputSampleRate, audio.OutputSampleRate, 1).Resample(utterance)
		text = fmt.Sprintf("Heard %v of audio, echoing it back", heard)
	}

	msgs := []protocol.Message{{Type: protocol.TypeText, Text: text}}

	switch s.config.Format {
	case decode.FormatMP3:
		msgs = append(msgs, protocol.Message{
			Type:   protocol.TypeAudio,
			Format: decode.FormatMP3,
			Data:   base64.StdEncoding.EncodeToString(s.clip.MP3),
		})

	case decode.FormatOpus:
		encoder, err := NewOpusEncoder(audio.OutputSampleRate, 1, opusFrameSize)
		if err != nil {
			return nil, err
		}
		defer encoder.Close()

		packets, err := encoder.Packets(samples)
		if err != nil {
			return nil, err
		}
		for _, packet := range packets {
			msgs = append(msgs, protocol.Message{
				Type:   protocol.TypeAudio,
				Format: decode.FormatOpus,
				Data:   base64.StdEncoding.EncodeToString(packet),
			})
		}

	default:
		size := int(s.config.ChunkDuration.Seconds() * audio.OutputSampleRate)
		for start := 0; start < len(samples); start += size {
			end := min(start+size, len(samples))
			msgs = append(msgs, protocol.Message{
				Type: protocol.TypeAudio,
				Data: audio.EncodePCM16Base64(samples[start:end]),
			})
		}
	}

	return msgs, nil
}
