// ABOUTME: Entry point for the voice chat client
// ABOUTME: Parses CLI flags, loads the config file and runs a session
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Resonate-Protocol/voicechat-go/internal/config"
	"github.com/Resonate-Protocol/voicechat-go/internal/discovery"
	"github.com/Resonate-Protocol/voicechat-go/internal/metrics"
	"github.com/Resonate-Protocol/voicechat-go/internal/ui"
	"github.com/Resonate-Protocol/voicechat-go/internal/version"
	"github.com/Resonate-Protocol/voicechat-go/pkg/audio"
	"github.com/Resonate-Protocol/voicechat-go/pkg/audio/output"
	"github.com/Resonate-Protocol/voicechat-go/pkg/capture"
	"github.com/Resonate-Protocol/voicechat-go/pkg/voicechat"
	tea "github.com/charmbracelet/bubbletea"
)

var (
	configFile    = flag.String("config", "", "YAML config file")
	saveConfig    = flag.String("save-config", "", "Write the effective config to this file and exit")
	serverAddr    = flag.String("server", "", "Server address (default: discover via mDNS)")
	voice         = flag.String("voice", "", "Voice: Puck, Charon, Kore, Fenrir, Aoede")
	prompt        = flag.String("prompt", "", "System prompt")
	noSearch      = flag.Bool("no-search", false, "Disable Google Search grounding")
	mode          = flag.String("mode", "", "Session mode: audio or video")
	cameraDir     = flag.String("camera-dir", "", "Directory of image directories used as cameras")
	camera        = flag.String("camera", "", "Camera to use (default: first found)")
	listCameras   = flag.Bool("list-cameras", false, "List cameras in -camera-dir and exit")
	frameInterval = flag.Duration("frame-interval", 0, "Video frame interval (default: 1s)")
	volume        = flag.Int("volume", -1, "Initial volume (0-100)")
	maxPending    = flag.Int("max-pending", -1, "Playback queue bound, 0 = unbounded")
	noAudio       = flag.Bool("no-audio", false, "Discard responses instead of playing them")
	metricsAddr   = flag.String("metrics-addr", "", "Serve Prometheus metrics on this address")
	discoverWait  = flag.Duration("discover-timeout", 10*time.Second, "How long to browse for a server")
	logFile       = flag.String("log-file", "", "Log file path (default: voicechat.log)")
	noTUI         = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	showVersion   = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s (%s)\n", version.Product, version.Version, version.Manufacturer)
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	if *saveConfig != "" {
		if err := config.Save(cfg, *saveConfig); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Config written to %s\n", *saveConfig)
		return
	}

	if *listCameras {
		printCameras(cfg.Video.CameraDir)
		return
	}

	useTUI := !*noTUI

	f, err := os.OpenFile(cfg.Logging.File, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
		log.Printf("Starting %s %s", version.Product, version.Version)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	address := cfg.Server
	if address == "" {
		address, err = discoverServer(ctx, *discoverWait)
		if err != nil {
			log.Fatalf("Server discovery failed: %v", err)
		}
	}

	// TUI setup
	var tuiProg *tea.Program
	var controls *ui.Controls

	if useTUI {
		controls = ui.NewControls()
		tuiProg = ui.Run(controls)
		go func() {
			if _, err := tuiProg.Run(); err != nil {
				log.Printf("TUI error: %v", err)
			}
		}()
	}

	updateTUI := func(msg tea.Msg) {
		if tuiProg != nil {
			tuiProg.Send(msg)
		}
	}

	m := metrics.New()

	sessionConfig := voicechat.SessionConfig{
		ServerAddr:    address,
		SystemPrompt:  cfg.Session.SystemPrompt,
		Voice:         cfg.Session.Voice,
		GoogleSearch:  cfg.Session.GoogleSearch,
		Volume:        cfg.Playback.Volume,
		MaxPending:    cfg.Playback.MaxPending,
		CameraDir:     cfg.Video.CameraDir,
		Camera:        cfg.Video.Camera,
		FrameInterval: cfg.Video.Interval,
		FrameWidth:    cfg.Video.Width,
		FrameHeight:   cfg.Video.Height,
		JPEGQuality:   cfg.Video.Quality,
		OnText: func(text string) {
			m.TextReceived.Inc()
			log.Printf("Text: %s", text)
			updateTUI(ui.TranscriptMsg(text))
		},
		OnStateChange: func(state voicechat.State) {
			updateTUI(stateToStatus(state, address))
		},
		OnError: func(err error) {
			if errors.Is(err, voicechat.ErrDecode) {
				m.DecodeErrors.Inc()
			}
			log.Printf("Session error: %v", err)
		},
		OnAudioSent: m.AudioFramesSent.Inc,
		OnImageSent: m.ImagesSent.Inc,
		OnChunk: func(chunk audio.Chunk) {
			m.ChunkDuration.Observe(chunk.Duration(audio.OutputSampleRate).Seconds())
		},
	}
	if cfg.Playback.NoAudio {
		sessionConfig.Renderer = output.NewNull()
	}

	session, err := voicechat.NewSession(sessionConfig)
	if err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}

	m.WatchQueue(session.QueueStats)
	if *metricsAddr != "" {
		go func() {
			if err := m.Serve(ctx, *metricsAddr); err != nil {
				log.Printf("Metrics server error: %v", err)
			}
		}()
	}

	updateTUI(ui.StatusMsg{
		ServerName: address,
		ClientID:   session.ClientID(),
		Mode:       cfg.Mode,
		Voice:      cfg.Session.Voice,
	})

	if err := session.Start(ctx, voicechat.Mode(cfg.Mode)); err != nil {
		if tuiProg != nil {
			tuiProg.Quit()
		}
		log.Fatalf("Failed to start session: %v", err)
	}

	if controls != nil {
		go handleControls(ctx, session, controls)
	}
	if tuiProg != nil {
		go statsUpdateLoop(ctx, session, updateTUI)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var quit <-chan ui.QuitMsg
	if controls != nil {
		quit = controls.Quit
	}

	select {
	case <-quit:
		log.Printf("Received quit signal from TUI")
	case <-sigChan:
		log.Printf("Shutdown signal received")
	case <-session.Done():
		log.Printf("Session ended by server")
	}

	session.Stop()
	cancel()

	if tuiProg != nil {
		tuiProg.Quit()
	}

	stats := session.Stats()
	log.Printf("Session finished: sent %d audio frames and %d images, played %d/%d chunks (%d dropped)",
		stats.AudioFramesSent, stats.ImagesSent, stats.Queue.Played, stats.Queue.Received, stats.Queue.Dropped)
}

// loadConfig reads the config file, if any, and applies flags set on the command line
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "server":
			cfg.Server = *serverAddr
		case "voice":
			cfg.Session.Voice = *voice
		case "prompt":
			cfg.Session.SystemPrompt = *prompt
		case "no-search":
			cfg.Session.GoogleSearch = !*noSearch
		case "mode":
			cfg.Mode = *mode
		case "camera-dir":
			cfg.Video.CameraDir = *cameraDir
		case "camera":
			cfg.Video.Camera = *camera
		case "frame-interval":
			cfg.Video.Interval = *frameInterval
		case "volume":
			cfg.Playback.Volume = *volume
		case "max-pending":
			cfg.Playback.MaxPending = *maxPending
		case "no-audio":
			cfg.Playback.NoAudio = *noAudio
		case "log-file":
			cfg.Logging.File = *logFile
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// discoverServer browses mDNS for a backend
func discoverServer(ctx context.Context, timeout time.Duration) (string, error) {
	log.Printf("Starting server discovery...")

	disc := discovery.NewManager(discovery.Config{})
	defer disc.Stop()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	server, err := disc.FindServer(ctx)
	if err != nil {
		return "", fmt.Errorf("no server found after %v: %w", timeout, err)
	}

	log.Printf("Discovered server %s at %s", server.Name, server.Address())
	return server.Address(), nil
}

// printCameras lists the devices available for video mode
func printCameras(dir string) {
	if dir == "" {
		fmt.Println("No camera directory configured (use -camera-dir)")
		return
	}

	devices, err := capture.ListDevices(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if len(devices) == 0 {
		fmt.Printf("No cameras found in %s\n", dir)
		return
	}
	for _, d := range devices {
		fmt.Printf("%-20s %s\n", d.Label, d.ID)
	}
}

// stateToStatus converts session state to a TUI update
func stateToStatus(state voicechat.State, address string) ui.StatusMsg {
	connected := state.Connected
	video := state.Video
	vol := state.Volume
	muted := state.Muted

	return ui.StatusMsg{
		Connected:  &connected,
		ServerName: address,
		Mode:       string(state.Mode),
		Voice:      state.Voice,
		Video:      &video,
		Camera:     state.Camera,
		PlayState:  state.Playback.String(),
		Volume:     &vol,
		Muted:      &muted,
	}
}

// handleControls applies TUI actions to the session
func handleControls(ctx context.Context, session *voicechat.Session, controls *ui.Controls) {
	for {
		select {
		case change := <-controls.Volume:
			log.Printf("Volume change: %d%%, muted=%v", change.Volume, change.Muted)
			session.SetVolume(change.Volume)
			session.Mute(change.Muted)

		case toggle := <-controls.Video:
			if err := session.SetVideo(toggle.Enabled); err != nil {
				log.Printf("Video toggle failed: %v", err)
			}

		case <-ctx.Done():
			return
		}
	}
}

// statsUpdateLoop periodically updates the TUI with session statistics
func statsUpdateLoop(ctx context.Context, session *voicechat.Session, updateTUI func(tea.Msg)) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats := session.Stats()
			updateTUI(ui.StatusMsg{
				PlayState: stats.Queue.State.String(),
				Stats: &ui.Counters{
					Received:   stats.Queue.Received,
					Played:     stats.Queue.Played,
					Dropped:    stats.Queue.Dropped + stats.Queue.Overflowed,
					Pending:    stats.Queue.Pending,
					AudioSent:  stats.AudioFramesSent,
					ImagesSent: stats.ImagesSent,
				},
			})

		case <-ctx.Done():
			return
		}
	}
}
