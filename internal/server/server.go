// ABOUTME: Development backend for voice chat clients
// ABOUTME: Manages WebSocket sessions, turn-taking replies and mDNS advertisement
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Resonate-Protocol/voicechat-go/internal/discovery"
	"github.com/Resonate-Protocol/voicechat-go/pkg/audio/decode"
	"github.com/Resonate-Protocol/voicechat-go/pkg/protocol"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// configTimeout bounds the wait for the first message
const configTimeout = 10 * time.Second

// Config holds server configuration
type Config struct {
	Port       int
	Name       string
	EnableMDNS bool
	UseTUI     bool

	// ReplyFile is an MP3 or FLAC clip played as every reply. Empty = echo.
	ReplyFile string
	// Tone replies with a 440Hz tone instead of echoing
	Tone bool
	// Format of reply audio: pcm16 (default), opus, or mp3 (MP3 clip only)
	Format string
	// ChunkDuration is the length of each pcm16 reply envelope (default: 100ms)
	ChunkDuration time.Duration

	Responder ResponderConfig
}

// Server represents the development backend
type Server struct {
	config   Config
	serverID string

	// WebSocket upgrader
	upgrader websocket.Upgrader

	// HTTP server
	httpServer *http.Server
	mux        *http.ServeMux

	// Session management
	sessions   map[string]*Session
	sessionsMu sync.RWMutex

	// Reply clip, nil when echoing
	clip *Clip

	// mDNS discovery
	mdnsManager *discovery.Manager

	// TUI
	tui       *ServerTUI
	startTime time.Time

	// Control
	stopChan   chan struct{}
	stopOnce   sync.Once
	shutdownMu sync.RWMutex
	isShutdown bool
	wg         sync.WaitGroup
}

// New creates a new server instance
func New(config Config) (*Server, error) {
	if config.Name == "" {
		config.Name = "voicechat-server"
	}
	if config.ChunkDuration == 0 {
		config.ChunkDuration = DefaultChunkDuration
	}

	switch config.Format {
	case "", "pcm":
		config.Format = decode.FormatPCM16
	case decode.FormatPCM16, decode.FormatOpus, decode.FormatMP3:
	default:
		return nil, fmt.Errorf("unsupported reply format: %s", config.Format)
	}

	s := &Server{
		config:   config,
		serverID: uuid.New().String(),
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			// Local development backend; accept any origin
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		sessions:  make(map[string]*Session),
		startTime: time.Now(),
		stopChan:  make(chan struct{}),
	}

	switch {
	case config.ReplyFile != "":
		clip, err := LoadClip(config.ReplyFile)
		if err != nil {
			return nil, err
		}
		s.clip = clip
	case config.Tone:
		s.clip = ToneClip(440, 1)
	}

	if config.Format == decode.FormatMP3 && (s.clip == nil || s.clip.MP3 == nil) {
		return nil, fmt.Errorf("mp3 replies require an MP3 reply file")
	}

	s.mux.HandleFunc(protocol.DefaultPath, s.handleWebSocket)

	return s, nil
}

// Handler returns the HTTP handler serving the session endpoint
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ID returns the random server instance ID
func (s *Server) ID() string {
	return s.serverID
}

// Start starts the server and blocks until Stop, TUI quit or an HTTP error
func (s *Server) Start() error {
	if s.config.UseTUI {
		s.tui = NewServerTUI()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.tui.Start(s.config.Name, s.config.Port, s.replyDescription()); err != nil {
				log.Printf("TUI error: %v", err)
			}
		}()
	}

	log.Printf("Server starting: %s (ID: %s, replies: %s, format: %s)",
		s.config.Name, s.serverID, s.replyDescription(), s.config.Format)

	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        s.config.Port,
			Path:        protocol.DefaultPath,
		})

		if err := s.mdnsManager.Advertise(); err != nil {
			log.Printf("Failed to start mDNS advertisement: %v", err)
		}
	}

	addr := fmt.Sprintf(":%d", s.config.Port)
	log.Printf("WebSocket server listening on %s%s<client-id>", addr, protocol.DefaultPath)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	var serverErr error
	var tuiQuitChan <-chan struct{}
	if s.tui != nil {
		tuiQuitChan = s.tui.QuitChan()
	}

	select {
	case <-s.stopChan:
		log.Printf("Server shutting down...")
	case <-tuiQuitChan:
		log.Printf("TUI quit requested, shutting down...")
	case err := <-errChan:
		log.Printf("HTTP server error: %v", err)
		serverErr = err
	}

	s.shutdownMu.Lock()
	s.isShutdown = true
	s.shutdownMu.Unlock()

	if s.tui != nil {
		s.tui.Stop()
	}

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	s.closeSessions()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	s.wg.Wait()
	log.Printf("Server stopped cleanly")

	if serverErr != nil {
		return fmt.Errorf("HTTP server failed: %w", serverErr)
	}
	return nil
}

// Stop stops the server
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// replyDescription names what replies contain
func (s *Server) replyDescription() string {
	if s.clip != nil {
		return s.clip.Title
	}
	return "echo"
}

// handleWebSocket upgrades /ws/<client-id> requests
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	clientID := strings.TrimPrefix(r.URL.Path, protocol.DefaultPath)
	if clientID == "" || strings.Contains(clientID, "/") {
		http.NotFound(w, r)
		return
	}

	s.shutdownMu.RLock()
	shuttingDown := s.isShutdown
	s.shutdownMu.RUnlock()
	if shuttingDown {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	if s.hasSession(clientID) {
		log.Printf("Client ID %s already connected, rejecting duplicate", clientID)
		http.Error(w, "client ID already connected", http.StatusConflict)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	log.Printf("New WebSocket connection from %s (client %s)", r.RemoteAddr, clientID)

	s.handleConnection(conn, clientID)
}

// handleConnection runs one session until the socket closes
func (s *Server) handleConnection(conn *websocket.Conn, clientID string) {
	defer conn.Close()

	// The first message must carry the session config
	conn.SetReadDeadline(time.Now().Add(configTimeout))

	var msg protocol.Message
	if err := conn.ReadJSON(&msg); err != nil {
		log.Printf("Error reading config from %s: %v", clientID, err)
		return
	}
	conn.SetReadDeadline(time.Time{})

	if msg.Type != protocol.TypeConfig || msg.Config == nil {
		log.Printf("Expected config from %s, got %s", clientID, msg.Type)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseProtocolError, "expected config message"),
			time.Now().Add(time.Second))
		return
	}

	config := *msg.Config
	if !protocol.IsValidVoice(config.Voice) {
		log.Printf("Client %s asked for unknown voice %q, using %s", clientID, config.Voice, protocol.Voices[0])
		config.Voice = protocol.Voices[0]
	}

	session := newSession(clientID, conn, config, NewResponder(s.config.Responder))

	if !s.addSession(session) {
		log.Printf("Client ID %s already connected, rejecting duplicate", clientID)
		return
	}
	defer s.removeSession(session)

	log.Printf("Session %s configured: voice=%s search=%v prompt=%q",
		clientID, config.Voice, config.GoogleSearch, config.SystemPrompt)

	if !s.goTracked(session.writer) {
		log.Printf("Server shutting down, dropping session %s", clientID)
		return
	}

	for {
		var msg protocol.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("WebSocket error from %s: %v", clientID, err)
			}
			break
		}

		s.handleClientMessage(session, msg)
	}
}

// goTracked runs fn on a goroutine that Start waits for, unless shutdown has begun
func (s *Server) goTracked(fn func()) bool {
	s.shutdownMu.RLock()
	defer s.shutdownMu.RUnlock()

	if s.isShutdown {
		return false
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
	return true
}

// handleClientMessage processes messages from a session
func (s *Server) handleClientMessage(session *Session, msg protocol.Message) {
	switch msg.Type {
	case protocol.TypeAudio:
		s.handleAudio(session, msg)
	case protocol.TypeImage:
		s.handleImage(session, msg)
	case protocol.TypeConfig:
		if msg.Config != nil {
			session.setConfig(*msg.Config)
			log.Printf("Session %s reconfigured: voice=%s", session.ID, msg.Config.Voice)
		}
	default:
		log.Printf("Unknown message type from %s: %s", session.ID, msg.Type)
	}
}

// handleAudio feeds microphone audio to the turn detector and replies on a pause
func (s *Server) handleAudio(session *Session, msg protocol.Message) {
	samples, err := audioFromMessage(msg)
	if err != nil {
		log.Printf("Bad audio from %s: %v", session.ID, err)
		return
	}
	session.countAudio()

	utterance := session.responder.Feed(samples)
	if utterance == nil {
		return
	}

	replies, err := s.buildReply(utterance)
	if err != nil {
		log.Printf("Failed to build reply for %s: %v", session.ID, err)
		return
	}

	for _, reply := range replies {
		if !session.send(reply) {
			return
		}
	}
	session.countReply()
	s.updateTUI()
}

// handleImage acknowledges a camera frame
func (s *Server) handleImage(session *Session, msg protocol.Message) {
	size, err := imageSize(msg)
	if err != nil {
		log.Printf("Bad image from %s: %v", session.ID, err)
		return
	}
	n := session.countImage()

	session.trySend(protocol.Message{
		Type: protocol.TypeText,
		Text: fmt.Sprintf("Received frame %d (%d bytes)", n, size),
	})
}

// hasSession reports whether a client ID is connected
func (s *Server) hasSession(id string) bool {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()
	_, ok := s.sessions[id]
	return ok
}

// addSession registers a session unless its ID is taken
func (s *Server) addSession(session *Session) bool {
	s.sessionsMu.Lock()
	if _, exists := s.sessions[session.ID]; exists {
		s.sessionsMu.Unlock()
		return false
	}
	s.sessions[session.ID] = session
	s.sessionsMu.Unlock()

	s.updateTUI()
	return true
}

// removeSession unregisters a session and stops its writer
func (s *Server) removeSession(session *Session) {
	s.sessionsMu.Lock()
	delete(s.sessions, session.ID)
	s.sessionsMu.Unlock()

	session.close()
	log.Printf("Session disconnected: %s", session.ID)

	s.updateTUI()
}

// closeSessions closes every open socket during shutdown
func (s *Server) closeSessions() {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()

	for _, session := range s.sessions {
		session.Conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		session.Conn.Close()
	}
}

// SessionCount returns the number of connected sessions
func (s *Server) SessionCount() int {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()
	return len(s.sessions)
}
