// ABOUTME: Malgo-based microphone capture
// ABOUTME: Captures 16-bit mono audio and delivers fixed-size float32 frames
package capture

import (
	"fmt"
	"log"
	"sync"

	"github.com/Resonate-Protocol/voicechat-go/pkg/audio"
	"github.com/gen2brain/malgo"
)

// MicrophoneConfig holds capture configuration
type MicrophoneConfig struct {
	// SampleRate of captured audio (default: 16000)
	SampleRate int

	// FrameSize is the number of samples per delivered frame (default: 512)
	FrameSize int
}

// Microphone captures audio from the default input device
type Microphone struct {
	config   MicrophoneConfig
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	framer   *Framer
	mu       sync.Mutex
}

// NewMicrophone creates a microphone capture
func NewMicrophone(config MicrophoneConfig) *Microphone {
	if config.SampleRate == 0 {
		config.SampleRate = audio.InputSampleRate
	}
	if config.FrameSize == 0 {
		config.FrameSize = audio.CaptureFrameSize
	}

	return &Microphone{config: config}
}

// Start opens the input device and calls onFrame for every captured frame.
// onFrame runs on the audio thread and must not block.
func (m *Microphone) Start(onFrame func([]float32)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		return fmt.Errorf("microphone already started")
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize malgo context: %w", err)
	}

	m.framer = NewFramer(m.config.FrameSize, onFrame)

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(m.config.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(m.config.FrameSize)
	deviceConfig.Alsa.NoMMap = 1

	framer := m.framer
	onSamples := func(pOutputSample, pInputSamples []byte, frameCount uint32) {
		framer.Write(audio.PCM16ToFloat32(audio.PCM16FromBytes(pInputSamples)))
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onSamples,
	})
	if err != nil {
		freeContext(ctx)
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		freeContext(ctx)
		return fmt.Errorf("failed to start capture device: %w", err)
	}

	m.malgoCtx = ctx
	m.device = device

	log.Printf("Microphone capture started: %dHz mono, %d-sample frames",
		m.config.SampleRate, m.config.FrameSize)

	return nil
}

// Stop stops capture and releases the device
func (m *Microphone) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		if err := m.device.Stop(); err != nil {
			log.Printf("Warning: capture device stop error: %v", err)
		}
		m.device.Uninit()
		m.device = nil
	}

	if m.malgoCtx != nil {
		freeContext(m.malgoCtx)
		m.malgoCtx = nil
	}

	return nil
}

// freeContext uninitializes and frees a malgo context
func freeContext(ctx *malgo.AllocatedContext) {
	if err := ctx.Uninit(); err != nil {
		log.Printf("Warning: malgo context uninit error: %v", err)
	}
	ctx.Free()
}

// Framer regroups arbitrary-length sample runs into fixed-size frames
type Framer struct {
	size    int
	buf     []float32
	onFrame func([]float32)
	mu      sync.Mutex
}

// NewFramer creates a framer delivering frames of size samples
func NewFramer(size int, onFrame func([]float32)) *Framer {
	return &Framer{
		size:    size,
		buf:     make([]float32, 0, size),
		onFrame: onFrame,
	}
}

// Write appends samples and emits every completed frame
func (f *Framer) Write(samples []float32) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for len(samples) > 0 {
		n := f.size - len(f.buf)
		if n > len(samples) {
			n = len(samples)
		}
		f.buf = append(f.buf, samples[:n]...)
		samples = samples[n:]

		if len(f.buf) == f.size {
			frame := make([]float32, f.size)
			copy(frame, f.buf)
			f.buf = f.buf[:0]
			f.onFrame(frame)
		}
	}
}
