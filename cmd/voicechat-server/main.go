// ABOUTME: Entry point for the voice chat development backend
// ABOUTME: Parses CLI flags and starts the server application
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Resonate-Protocol/voicechat-go/internal/server"
)

var (
	port       = flag.Int("port", 8000, "WebSocket server port")
	name       = flag.String("name", "", "Server friendly name (default: hostname-voicechat-server)")
	logFile    = flag.String("log-file", "voicechat-server.log", "Log file path")
	noMDNS     = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
	noTUI      = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	replyFile  = flag.String("reply", "", "MP3 or FLAC clip played as every reply (default: echo the speaker)")
	tone       = flag.Bool("tone", false, "Reply with a 440Hz test tone")
	format     = flag.String("format", "pcm16", "Reply audio format: pcm16, opus, or mp3 (MP3 -reply only)")
	silenceGap = flag.Duration("silence-gap", server.DefaultSilenceGap, "Pause that ends an utterance")
	threshold  = flag.Float64("threshold", server.DefaultThreshold, "RMS level that counts as speech")
)

func main() {
	flag.Parse()

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()

	if *noTUI {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	} else {
		log.SetOutput(f)
	}

	serverName := *name
	if serverName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		serverName = fmt.Sprintf("%s-voicechat-server", hostname)
	}

	log.Printf("Starting voice chat server: %s on port %d", serverName, *port)
	log.Printf("Logging to: %s", *logFile)

	srv, err := server.New(server.Config{
		Port:       *port,
		Name:       serverName,
		EnableMDNS: !*noMDNS,
		UseTUI:     !*noTUI,
		ReplyFile:  *replyFile,
		Tone:       *tone,
		Format:     *format,
		Responder: server.ResponderConfig{
			Threshold:  *threshold,
			SilenceGap: *silenceGap,
		},
	})
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("Received %v signal, shutting down gracefully...", sig)
		srv.Stop()
	}()

	start := time.Now()
	if err := srv.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Printf("Server stopped after %v", time.Since(start).Round(time.Second))
}
