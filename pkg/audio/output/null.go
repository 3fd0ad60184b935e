// ABOUTME: Null audio output that discards samples in real time
// ABOUTME: Used when no playback device is wanted, completing after each chunk's duration
package output

import (
	"sync"
	"time"

	"github.com/Resonate-Protocol/voicechat-go/pkg/audio"
)

// Null discards audio but takes as long as real playback would
type Null struct {
	// Speed scales chunk duration; 0 completes immediately
	Speed float64

	mu       sync.Mutex
	volume   int
	muted    bool
	rendered int
}

// NewNull creates a real-time null output
func NewNull() *Null {
	return &Null{Speed: 1, volume: 100}
}

// Render waits for the chunk's playback duration then signals completion
func (n *Null) Render(samples []float32, sampleRate int) <-chan error {
	n.mu.Lock()
	n.rendered++
	n.mu.Unlock()

	wait := time.Duration(float64(audio.SamplesDuration(len(samples), sampleRate)) * n.Speed)
	if wait <= 0 {
		return completed(nil)
	}

	done := make(chan error, 1)
	time.AfterFunc(wait, func() {
		done <- nil
	})
	return done
}

// Rendered returns how many chunks were rendered
func (n *Null) Rendered() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.rendered
}

// Close releases output resources
func (n *Null) Close() error {
	return nil
}

// SetVolume sets the volume (0-100)
func (n *Null) SetVolume(volume int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.volume = clampVolume(volume)
}

// SetMuted sets mute state
func (n *Null) SetMuted(muted bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.muted = muted
}

// GetVolume returns current volume
func (n *Null) GetVolume() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.volume
}

// IsMuted returns mute state
func (n *Null) IsMuted() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.muted
}
