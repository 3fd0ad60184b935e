// ABOUTME: Configuration validation
// ABOUTME: Rejects unknown voices, modes and out-of-range playback settings
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Resonate-Protocol/voicechat-go/pkg/protocol"
)

// Validate checks the configuration and returns every problem found
func (c *Config) Validate() error {
	var errs []error

	if c.Mode != ModeAudio && c.Mode != ModeVideo {
		errs = append(errs, fmt.Errorf("mode must be %q or %q, got %q", ModeAudio, ModeVideo, c.Mode))
	}

	if !protocol.IsValidVoice(c.Session.Voice) {
		errs = append(errs, fmt.Errorf("voice must be one of %s, got %q",
			strings.Join(protocol.Voices, ", "), c.Session.Voice))
	}

	if c.Playback.Volume < 0 || c.Playback.Volume > 100 {
		errs = append(errs, fmt.Errorf("playback volume must be 0-100, got %d", c.Playback.Volume))
	}

	if c.Playback.MaxPending < 0 {
		errs = append(errs, fmt.Errorf("playback max_pending must not be negative, got %d", c.Playback.MaxPending))
	}

	if c.Video.Interval <= 0 {
		errs = append(errs, fmt.Errorf("video interval must be positive, got %v", c.Video.Interval))
	}

	if c.Video.Quality < 1 || c.Video.Quality > 100 {
		errs = append(errs, fmt.Errorf("video quality must be 1-100, got %d", c.Video.Quality))
	}

	if c.Mode == ModeVideo && c.Video.CameraDir == "" {
		errs = append(errs, errors.New("video mode requires video.camera_dir"))
	}

	return errors.Join(errs...)
}
