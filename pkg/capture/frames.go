// ABOUTME: Periodic still-frame capture for video mode
// ABOUTME: Samples a FrameSource on a ticker, scales to fit and encodes JPEG
package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"log"
	"sync"
	"time"

	"github.com/nfnt/resize"
)

const (
	// DefaultFrameInterval is how often a frame is captured
	DefaultFrameInterval = time.Second

	// DefaultFrameWidth and DefaultFrameHeight bound the encoded frame
	DefaultFrameWidth  = 320
	DefaultFrameHeight = 240

	// DefaultJPEGQuality is the encoder quality (1-100)
	DefaultJPEGQuality = 80
)

// FrameSource yields the current image of a camera-like device
type FrameSource interface {
	// Name identifies the source for logs and the UI
	Name() string

	// Next returns the image to send for this tick
	Next() (image.Image, error)

	// Close releases the source
	Close() error
}

// FramesConfig holds frame capture configuration
type FramesConfig struct {
	Interval time.Duration
	Width    uint
	Height   uint
	Quality  int
}

// Frames captures and encodes frames on a fixed interval
type Frames struct {
	source FrameSource
	config FramesConfig

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	sent   int64
}

// NewFrames creates a frame capture over source
func NewFrames(source FrameSource, config FramesConfig) *Frames {
	if config.Interval == 0 {
		config.Interval = DefaultFrameInterval
	}
	if config.Width == 0 {
		config.Width = DefaultFrameWidth
	}
	if config.Height == 0 {
		config.Height = DefaultFrameHeight
	}
	if config.Quality == 0 {
		config.Quality = DefaultJPEGQuality
	}

	return &Frames{source: source, config: config}
}

// Start begins periodic capture; onFrame receives each encoded JPEG
func (f *Frames) Start(onFrame func(jpeg []byte)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cancel != nil {
		return fmt.Errorf("frame capture already started")
	}

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	f.done = make(chan struct{})

	go f.captureLoop(ctx, f.done, onFrame)

	log.Printf("Frame capture started: %s every %v, %dx%d",
		f.source.Name(), f.config.Interval, f.config.Width, f.config.Height)

	return nil
}

// captureLoop captures one frame per tick until cancelled
func (f *Frames) captureLoop(ctx context.Context, done chan struct{}, onFrame func([]byte)) {
	defer close(done)

	ticker := time.NewTicker(f.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			frame, err := f.Capture()
			if err != nil {
				log.Printf("Frame capture failed: %v", err)
				continue
			}
			f.mu.Lock()
			f.sent++
			f.mu.Unlock()
			onFrame(frame)
		}
	}
}

// Capture grabs and encodes a single frame
func (f *Frames) Capture() ([]byte, error) {
	img, err := f.source.Next()
	if err != nil {
		return nil, fmt.Errorf("failed to read frame from %s: %w", f.source.Name(), err)
	}
	return EncodeFrame(img, f.config.Width, f.config.Height, f.config.Quality)
}

// Sent returns the number of frames delivered
func (f *Frames) Sent() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent
}

// Stop stops capture and waits for the loop to exit
func (f *Frames) Stop() {
	f.mu.Lock()
	cancel := f.cancel
	done := f.done
	f.cancel = nil
	f.done = nil
	f.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// EncodeFrame scales img to fit within width x height and encodes it as JPEG
func EncodeFrame(img image.Image, width, height uint, quality int) ([]byte, error) {
	bounds := img.Bounds()
	if bounds.Dx() > int(width) || bounds.Dy() > int(height) {
		img = resize.Thumbnail(width, height, img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("jpeg encode failed: %w", err)
	}
	return buf.Bytes(), nil
}
