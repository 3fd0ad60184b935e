// ABOUTME: Audio output interface definition
// ABOUTME: Common interface for chunk renderers plus shared volume helpers
package output

import "errors"

// ErrNotOpen is reported when rendering before the device was opened
var ErrNotOpen = errors.New("output not initialized")

// Renderer plays one chunk at a time and signals completion
type Renderer interface {
	// Render starts playing samples at sampleRate. The returned channel
	// receives exactly one value (nil or the render error) when playback ends.
	Render(samples []float32, sampleRate int) <-chan error

	// Close releases output resources
	Close() error
}

// VolumeControl is implemented by renderers with software volume
type VolumeControl interface {
	SetVolume(volume int)
	SetMuted(muted bool)
	GetVolume() int
	IsMuted() bool
}

// completed returns an already-signalled completion channel
func completed(err error) <-chan error {
	done := make(chan error, 1)
	done <- err
	return done
}

// applyVolume applies volume and mute to samples with clipping protection
func applyVolume(samples []float32, volume int, muted bool) []float32 {
	multiplier := float32(getVolumeMultiplier(volume, muted))

	result := make([]float32, len(samples))
	for i, sample := range samples {
		scaled := sample * multiplier
		if scaled > 1 {
			scaled = 1
		} else if scaled < -1 {
			scaled = -1
		}
		result[i] = scaled
	}

	return result
}

// getVolumeMultiplier calculates volume multiplier
func getVolumeMultiplier(volume int, muted bool) float64 {
	if muted {
		return 0.0
	}
	return float64(volume) / 100.0
}

// clampVolume limits volume to 0-100
func clampVolume(volume int) int {
	if volume < 0 {
		return 0
	}
	if volume > 100 {
		return 100
	}
	return volume
}
