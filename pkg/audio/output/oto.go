// ABOUTME: Oto-based audio output implementation
// ABOUTME: Renders each chunk through its own oto player and reports when it drains
package output

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/Resonate-Protocol/voicechat-go/pkg/audio"
	"github.com/Resonate-Protocol/voicechat-go/pkg/audio/resample"
	"github.com/ebitengine/oto/v3"
)

// drainPoll is how often a playing chunk is checked for completion
const drainPoll = 5 * time.Millisecond

// otoContext is the part of *oto.Context the renderer uses
type otoContext interface {
	NewPlayer(r io.Reader) *oto.Player
	Suspend() error
	Resume() error
}

// Oto output implementation using oto library
type Oto struct {
	otoCtx     otoContext
	sampleRate int
	volume     int
	muted      bool
	ready      bool
	mu         sync.RWMutex
}

// NewOto creates a new Oto output
func NewOto() *Oto {
	return &Oto{
		volume: 100,
		muted:  false,
	}
}

// Open initializes the output device at the playback rate
func (o *Oto) Open(sampleRate int) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	// oto allows one context per process, so a later Open at another rate keeps the first one
	if o.otoCtx != nil {
		if o.sampleRate != sampleRate {
			log.Printf("Warning: oto context already open at %dHz, chunks at %dHz will be resampled",
				o.sampleRate, sampleRate)
		}
		if !o.ready {
			if err := o.otoCtx.Resume(); err != nil {
				return fmt.Errorf("failed to resume oto context: %w", err)
			}
			o.ready = true
		}
		return nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}

	<-readyChan

	o.otoCtx = ctx
	o.sampleRate = sampleRate
	o.ready = true

	log.Printf("Audio output initialized: %dHz mono", sampleRate)

	return nil
}

// Render plays one chunk and signals when the player has drained
func (o *Oto) Render(samples []float32, sampleRate int) <-chan error {
	o.mu.RLock()
	ready := o.ready
	ctx := o.otoCtx
	deviceRate := o.sampleRate
	volume := o.volume
	muted := o.muted
	o.mu.RUnlock()

	if !ready {
		return completed(ErrNotOpen)
	}
	if len(samples) == 0 {
		return completed(nil)
	}

	if sampleRate != deviceRate {
		samples = resample.New(sampleRate, deviceRate, 1).Resample(samples)
	}

	pcm := audio.PCM16Bytes(audio.Float32ToPCM16(applyVolume(samples, volume, muted)))

	player := ctx.NewPlayer(bytes.NewReader(pcm))
	player.Play()

	done := make(chan error, 1)
	go func() {
		ticker := time.NewTicker(drainPoll)
		defer ticker.Stop()

		for player.IsPlaying() {
			<-ticker.C
		}

		err := player.Err()
		if closeErr := player.Close(); err == nil {
			err = closeErr
		}
		done <- err
	}()

	return done
}

// Close releases output resources
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.otoCtx != nil {
		if err := o.otoCtx.Suspend(); err != nil {
			log.Printf("Warning: oto suspend error: %v", err)
		}
		o.ready = false
	}
	return nil
}

// SetVolume sets the volume (0-100)
func (o *Oto) SetVolume(volume int) {
	o.mu.Lock()
	o.volume = clampVolume(volume)
	o.mu.Unlock()
	log.Printf("Volume set to %d", clampVolume(volume))
}

// SetMuted sets mute state
func (o *Oto) SetMuted(muted bool) {
	o.mu.Lock()
	o.muted = muted
	o.mu.Unlock()
	log.Printf("Muted: %v", muted)
}

// GetVolume returns current volume
func (o *Oto) GetVolume() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.volume
}

// IsMuted returns mute state
func (o *Oto) IsMuted() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.muted
}
