// ABOUTME: Session wires capture, transport, decoding and playback together
// ABOUTME: Owns every resource of one conversation and releases them on Stop
package voicechat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/voicechat-go/pkg/audio"
	"github.com/Resonate-Protocol/voicechat-go/pkg/audio/decode"
	"github.com/Resonate-Protocol/voicechat-go/pkg/audio/output"
	"github.com/Resonate-Protocol/voicechat-go/pkg/capture"
	"github.com/Resonate-Protocol/voicechat-go/pkg/playback"
	"github.com/Resonate-Protocol/voicechat-go/pkg/protocol"
	"github.com/google/uuid"
)

// ErrDecode wraps response payloads that could not be decoded
var ErrDecode = errors.New("decode error")

// Mode selects which inputs are streamed
type Mode string

const (
	// ModeAudio streams the microphone only
	ModeAudio Mode = "audio"
	// ModeVideo streams the microphone plus periodic camera frames
	ModeVideo Mode = "video"
)

// AudioInput delivers captured microphone frames
type AudioInput interface {
	Start(onFrame func([]float32)) error
	Stop() error
}

// SessionConfig holds session configuration
type SessionConfig struct {
	// ServerAddr is host:port or a ws:// URL
	ServerAddr string

	// ClientID identifies the session; a random UUID when empty
	ClientID string

	// Session settings forwarded to the service
	SystemPrompt string
	Voice        string
	GoogleSearch bool

	// Volume is the initial volume (0-100); negative selects DefaultVolume
	Volume int

	// MaxPending bounds the playback queue; 0 means unbounded
	MaxPending int

	// CameraDir holds image directories used as cameras in video mode
	CameraDir string
	// Camera selects a device ID from CameraDir; empty picks the first
	Camera string

	// Frame capture settings (defaults: 1s, 320x240, quality 80)
	FrameInterval time.Duration
	FrameWidth    uint
	FrameHeight   uint
	JPEGQuality   int

	// Renderer plays responses; an oto output is opened when nil
	Renderer output.Renderer

	// Microphone captures audio; the default input device when nil
	Microphone AudioInput

	// FrameSource overrides camera selection from CameraDir
	FrameSource capture.FrameSource

	// OnText is called for every text message from the service
	OnText func(string)

	// OnStateChange is called when the session state changes
	OnStateChange func(State)

	// OnError is called when background errors occur
	OnError func(error)

	// OnAudioSent and OnImageSent are called after each uplink frame
	OnAudioSent func()
	OnImageSent func()

	// OnChunk is called for every decoded chunk before it is enqueued
	OnChunk func(audio.Chunk)
}

// State describes the current session state
type State struct {
	Connected bool
	Mode      Mode
	Video     bool
	Camera    string
	Voice     string
	Volume    int
	Muted     bool
	Playback  playback.State
}

// Stats contains session counters
type Stats struct {
	Queue           playback.Stats
	AudioFramesSent int64
	ImagesSent      int64
	TextReceived    int64
	DecodeErrors    int64
}

// DefaultVolume is used when SessionConfig.Volume is negative
const DefaultVolume = 100

// uplinkDepth is how many microphone frames may wait for the socket
const uplinkDepth = 32

// Session is one live conversation with the model service
type Session struct {
	config SessionConfig

	// Components
	client   *protocol.Client
	queue    *playback.Queue
	renderer output.Renderer
	ownsOut  bool
	mic      AudioInput
	frames   *capture.Frames
	source   capture.FrameSource
	decoders map[string]decode.Decoder
	uplink   chan []float32

	// State
	mu       sync.RWMutex
	state    State
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
	started  bool

	// Counters
	audioSent    atomic.Int64
	imagesSent   atomic.Int64
	textReceived atomic.Int64
	decodeErrors atomic.Int64
}

// NewSession creates a session with the given configuration
func NewSession(config SessionConfig) (*Session, error) {
	if config.ServerAddr == "" {
		return nil, fmt.Errorf("server address is required")
	}
	if config.Voice == "" {
		config.Voice = protocol.Voices[0]
	}
	if !protocol.IsValidVoice(config.Voice) {
		return nil, fmt.Errorf("unknown voice: %s", config.Voice)
	}
	if config.Volume < 0 {
		config.Volume = DefaultVolume
	}
	if config.Volume > 100 {
		config.Volume = 100
	}
	if config.ClientID == "" {
		config.ClientID = uuid.New().String()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Session{
		config:   config,
		decoders: make(map[string]decode.Decoder),
		uplink:   make(chan []float32, uplinkDepth),
		ctx:      ctx,
		cancel:   cancel,
		state: State{
			Voice:  config.Voice,
			Volume: config.Volume,
		},
	}, nil
}

// ClientID returns the identifier used in the session URL
func (s *Session) ClientID() string {
	return s.config.ClientID
}

// Start connects to the service and begins streaming in the given mode.
// The session config is the first message sent; audio capture starts once
// the socket is open.
func (s *Session) Start(ctx context.Context, mode Mode) error {
	if mode != ModeAudio && mode != ModeVideo {
		return fmt.Errorf("unsupported mode: %s", mode)
	}

	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("session already started")
	}
	s.started = true
	s.state.Mode = mode
	s.mu.Unlock()

	if err := s.openOutput(); err != nil {
		return err
	}

	queue := playback.NewQueue(s.renderer, playback.Config{
		SampleRate:    audio.OutputSampleRate,
		MaxPending:    s.config.MaxPending,
		OnStateChange: s.onPlaybackState,
	})
	queue.Start()

	client := protocol.NewClient(protocol.Config{
		ServerAddr: s.config.ServerAddr,
		ClientID:   s.config.ClientID,
		Session: protocol.SessionConfig{
			SystemPrompt: s.config.SystemPrompt,
			Voice:        s.config.Voice,
			GoogleSearch: s.config.GoogleSearch,
		},
	})

	// Stats and Done may be polled from other goroutines while Start runs
	s.mu.Lock()
	s.queue = queue
	s.client = client
	s.mu.Unlock()

	if err := client.Connect(ctx); err != nil {
		s.cancel()
		s.release()
		return fmt.Errorf("connection failed: %w", err)
	}

	log.Printf("Session %s connected to %s (voice: %s, mode: %s)",
		s.config.ClientID, s.config.ServerAddr, s.config.Voice, mode)

	s.mu.Lock()
	s.state.Connected = true
	s.mu.Unlock()
	s.notifyStateChange()

	s.wg.Add(4)
	go s.handleAudio()
	go s.handleText()
	go s.handleUplink()
	go s.watchConnection()

	if err := s.startMicrophone(); err != nil {
		s.Stop()
		return err
	}

	if mode == ModeVideo {
		if err := s.SetVideo(true); err != nil {
			s.Stop()
			return err
		}
	}

	return nil
}

// openOutput prepares the renderer and applies the initial volume
func (s *Session) openOutput() error {
	if s.config.Renderer != nil {
		s.renderer = s.config.Renderer
	} else {
		oto := output.NewOto()
		if err := oto.Open(audio.OutputSampleRate); err != nil {
			return fmt.Errorf("failed to initialize output: %w", err)
		}
		s.renderer = oto
		s.ownsOut = true
	}

	if vc, ok := s.renderer.(output.VolumeControl); ok {
		vc.SetVolume(s.config.Volume)
	}
	return nil
}

// startMicrophone opens the audio input and feeds the uplink channel
func (s *Session) startMicrophone() error {
	mic := s.config.Microphone
	if mic == nil {
		mic = capture.NewMicrophone(capture.MicrophoneConfig{
			SampleRate: audio.InputSampleRate,
			FrameSize:  audio.CaptureFrameSize,
		})
	}

	err := mic.Start(func(samples []float32) {
		select {
		case s.uplink <- samples:
		default:
			log.Printf("Uplink backlog full, dropping %d-sample microphone frame", len(samples))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to start microphone: %w", err)
	}

	s.mu.Lock()
	s.mic = mic
	s.mu.Unlock()
	return nil
}

// handleUplink sends captured microphone frames to the service
func (s *Session) handleUplink() {
	defer s.wg.Done()

	for {
		select {
		case samples := <-s.uplink:
			if err := s.client.SendAudio(samples); err != nil {
				if !errors.Is(err, protocol.ErrNotConnected) {
					s.notifyError(fmt.Errorf("failed to send audio: %w", err))
				}
				continue
			}
			s.audioSent.Add(1)
			if s.config.OnAudioSent != nil {
				s.config.OnAudioSent()
			}

		case <-s.ctx.Done():
			return
		}
	}
}

// handleAudio decodes response payloads and enqueues them for playback
func (s *Session) handleAudio() {
	defer s.wg.Done()

	for {
		select {
		case msg := <-s.client.Audio:
			samples, err := s.decode(msg)
			if err != nil {
				s.decodeErrors.Add(1)
				s.notifyError(fmt.Errorf("%w: %w", ErrDecode, err))
				continue
			}
			chunk := audio.Chunk{Samples: samples}
			if s.config.OnChunk != nil {
				s.config.OnChunk(chunk)
			}
			s.queue.Enqueue(chunk)

		case <-s.ctx.Done():
			return
		}
	}
}

// decode picks (and caches) the decoder for the payload's format
func (s *Session) decode(msg protocol.AudioMessage) ([]float32, error) {
	decoder, ok := s.decoders[msg.Format]
	if !ok {
		var err error
		decoder, err = decode.ForFormat(msg.Format, audio.OutputSampleRate)
		if err != nil {
			return nil, err
		}
		s.decoders[msg.Format] = decoder
	}
	return decoder.Decode(msg.Data)
}

// handleText forwards transcript messages
func (s *Session) handleText() {
	defer s.wg.Done()

	for {
		select {
		case text := <-s.client.Text:
			s.textReceived.Add(1)
			if s.config.OnText != nil {
				s.config.OnText(text)
			} else {
				log.Printf("Text: %s", text)
			}

		case <-s.ctx.Done():
			return
		}
	}
}

// watchConnection marks the session disconnected when the socket drops
func (s *Session) watchConnection() {
	defer s.wg.Done()

	select {
	case <-s.client.Done():
		s.mu.Lock()
		wasConnected := s.state.Connected
		s.state.Connected = false
		s.mu.Unlock()

		if wasConnected {
			log.Printf("Session %s disconnected", s.config.ClientID)
			s.notifyStateChange()
		}

	case <-s.ctx.Done():
	}
}

// SetVideo starts or stops periodic frame capture
func (s *Session) SetVideo(enabled bool) error {
	s.mu.Lock()
	if !s.state.Connected {
		s.mu.Unlock()
		return protocol.ErrNotConnected
	}

	if !enabled {
		frames := s.frames
		s.frames = nil
		s.state.Video = false
		s.mu.Unlock()

		if frames != nil {
			frames.Stop()
			log.Printf("Video capture stopped")
		}
		s.notifyStateChange()
		return nil
	}

	if s.frames != nil {
		s.mu.Unlock()
		return nil
	}

	if s.source == nil {
		source, err := s.openFrameSource(s.config.Camera)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		s.source = source
	}

	frames := capture.NewFrames(s.source, capture.FramesConfig{
		Interval: s.config.FrameInterval,
		Width:    s.config.FrameWidth,
		Height:   s.config.FrameHeight,
		Quality:  s.config.JPEGQuality,
	})
	if err := frames.Start(s.sendImage); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to start video capture: %w", err)
	}

	s.frames = frames
	s.state.Video = true
	s.state.Camera = s.source.Name()
	s.mu.Unlock()

	s.notifyStateChange()
	return nil
}

// sendImage uploads one encoded frame
func (s *Session) sendImage(jpeg []byte) {
	if err := s.client.SendImage(jpeg); err != nil {
		s.notifyError(fmt.Errorf("failed to send image: %w", err))
		return
	}
	s.imagesSent.Add(1)
	if s.config.OnImageSent != nil {
		s.config.OnImageSent()
	}
}

// openFrameSource resolves the configured source or a camera directory
func (s *Session) openFrameSource(camera string) (capture.FrameSource, error) {
	if s.config.FrameSource != nil {
		return s.config.FrameSource, nil
	}
	if s.config.CameraDir == "" {
		return nil, fmt.Errorf("no camera available: camera directory not configured")
	}

	devices, err := capture.ListDevices(s.config.CameraDir)
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("no camera available in %s", s.config.CameraDir)
	}

	device := devices[0]
	if camera != "" {
		found := false
		for _, d := range devices {
			if d.ID == camera || d.Label == camera {
				device, found = d, true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("camera not found: %s", camera)
		}
	}

	log.Printf("Using camera %s (%s)", device.Label, device.ID)
	return capture.NewDirSource(device.ID)
}

// Cameras lists the devices available for video mode
func (s *Session) Cameras() ([]capture.Device, error) {
	if s.config.CameraDir == "" {
		return nil, nil
	}
	return capture.ListDevices(s.config.CameraDir)
}

// SelectCamera switches the frame source, restarting capture if it is running
func (s *Session) SelectCamera(camera string) error {
	source, err := s.openFrameSource(camera)
	if err != nil {
		return err
	}

	s.mu.Lock()
	old := s.source
	s.source = source
	s.config.Camera = camera
	running := s.frames != nil
	s.state.Camera = source.Name()
	s.mu.Unlock()

	if old != nil && old != source {
		old.Close()
	}

	if running {
		if err := s.SetVideo(false); err != nil {
			return err
		}
		return s.SetVideo(true)
	}

	s.notifyStateChange()
	return nil
}

// SetVolume sets the playback volume (0-100)
func (s *Session) SetVolume(volume int) {
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}

	s.mu.Lock()
	s.state.Volume = volume
	s.mu.Unlock()

	if vc, ok := s.renderer.(output.VolumeControl); ok {
		vc.SetVolume(volume)
	}
	s.notifyStateChange()
}

// Mute mutes or unmutes playback
func (s *Session) Mute(muted bool) {
	s.mu.Lock()
	s.state.Muted = muted
	s.mu.Unlock()

	if vc, ok := s.renderer.(output.VolumeControl); ok {
		vc.SetMuted(muted)
	}
	s.notifyStateChange()
}

// Status returns the current session state
func (s *Session) Status() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Stats returns session counters
func (s *Session) Stats() Stats {
	stats := Stats{
		AudioFramesSent: s.audioSent.Load(),
		ImagesSent:      s.imagesSent.Load(),
		TextReceived:    s.textReceived.Load(),
		DecodeErrors:    s.decodeErrors.Load(),
	}
	s.mu.RLock()
	queue := s.queue
	s.mu.RUnlock()

	if queue != nil {
		stats.Queue = queue.Stats()
	}
	return stats
}

// QueueStats returns playback queue stats, for metrics collectors
func (s *Session) QueueStats() playback.Stats {
	return s.Stats().Queue
}

// Done is closed when the connection ends
func (s *Session) Done() <-chan struct{} {
	s.mu.RLock()
	client := s.client
	s.mu.RUnlock()

	if client == nil {
		return s.ctx.Done()
	}
	return client.Done()
}

// Stop ends the session and releases the socket, capture devices and queue
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		frames := s.frames
		s.frames = nil
		s.state.Video = false
		mic := s.mic
		client := s.client
		s.mu.Unlock()

		if frames != nil {
			frames.Stop()
		}
		if mic != nil {
			if err := mic.Stop(); err != nil {
				log.Printf("Microphone stop error: %v", err)
			}
		}

		s.cancel()
		if client != nil {
			client.Close()
		}
		s.wg.Wait()

		s.release()

		s.mu.Lock()
		wasConnected := s.state.Connected
		s.state.Connected = false
		s.mu.Unlock()
		if wasConnected {
			s.notifyStateChange()
		}

		log.Printf("Session %s stopped", s.config.ClientID)
	})
}

// release tears down the queue, decoders, frame source and owned output
func (s *Session) release() {
	s.mu.RLock()
	queue := s.queue
	s.mu.RUnlock()

	if queue != nil {
		queue.Stop()
	}
	for name, d := range s.decoders {
		d.Close()
		delete(s.decoders, name)
	}
	if s.source != nil && s.config.FrameSource == nil {
		s.source.Close()
	}
	if s.ownsOut && s.renderer != nil {
		s.renderer.Close()
	}
}

// onPlaybackState records queue transitions
func (s *Session) onPlaybackState(state playback.State) {
	s.mu.Lock()
	s.state.Playback = state
	s.mu.Unlock()
	s.notifyStateChange()
}

// notifyStateChange calls the state change callback
func (s *Session) notifyStateChange() {
	if s.config.OnStateChange != nil {
		s.config.OnStateChange(s.Status())
	}
}

// notifyError calls the error callback
func (s *Session) notifyError(err error) {
	if s.config.OnError != nil {
		s.config.OnError(err)
	} else {
		log.Printf("Session error: %v", err)
	}
}
