// ABOUTME: Server-side state for one connected voice chat client
// ABOUTME: Owns the outbound message queue, the socket writer and per-session counters
package server

import (
	"encoding/base64"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Resonate-Protocol/voicechat-go/pkg/audio"
	"github.com/Resonate-Protocol/voicechat-go/pkg/protocol"
	"github.com/gorilla/websocket"
)

const (
	writeDeadline = 10 * time.Second
	pingInterval  = 30 * time.Second
)

// Session represents a connected client
type Session struct {
	ID          string
	Conn        *websocket.Conn
	ConnectedAt time.Time

	responder *Responder

	sendChan  chan protocol.Message
	done      chan struct{}
	closeOnce sync.Once

	mu          sync.RWMutex
	config      protocol.SessionConfig
	audioFrames int64
	images      int64
	replies     int64
}

func newSession(id string, conn *websocket.Conn, config protocol.SessionConfig, responder *Responder) *Session {
	return &Session{
		ID:          id,
		Conn:        conn,
		ConnectedAt: time.Now(),
		responder:   responder,
		sendChan:    make(chan protocol.Message, 256),
		done:        make(chan struct{}),
		config:      config,
	}
}

// writer sends queued messages and keepalive pings until the session closes
func (s *Session) writer() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-s.sendChan:
			s.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := s.Conn.WriteJSON(msg); err != nil {
				log.Printf("Error writing to %s: %v", s.ID, err)
				return
			}

		case <-ticker.C:
			if err := s.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeDeadline)); err != nil {
				return
			}

		case <-s.done:
			return
		}
	}
}

// send queues a message, waiting for room; false once the session is closed
func (s *Session) send(msg protocol.Message) bool {
	select {
	case s.sendChan <- msg:
		return true
	case <-s.done:
		return false
	}
}

// trySend queues a message unless the buffer is full
func (s *Session) trySend(msg protocol.Message) bool {
	select {
	case s.sendChan <- msg:
		return true
	default:
		log.Printf("Send buffer full for %s, dropping %s message", s.ID, msg.Type)
		return false
	}
}

// close stops the writer
func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

func (s *Session) setConfig(config protocol.SessionConfig) {
	s.mu.Lock()
	s.config = config
	s.mu.Unlock()
}

func (s *Session) countAudio() {
	s.mu.Lock()
	s.audioFrames++
	s.mu.Unlock()
}

func (s *Session) countImage() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images++
	return s.images
}

func (s *Session) countReply() {
	s.mu.Lock()
	s.replies++
	s.mu.Unlock()
}

// Info returns a display snapshot of the session
func (s *Session) Info() SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return SessionInfo{
		ID:          s.ID,
		Voice:       s.config.Voice,
		AudioFrames: s.audioFrames,
		Images:      s.images,
		Replies:     s.replies,
		Connected:   s.ConnectedAt,
	}
}

// audioFromMessage decodes a microphone envelope
func audioFromMessage(msg protocol.Message) ([]float32, error) {
	if msg.Format != "" && msg.Format != "pcm" && msg.Format != "pcm16" {
		return nil, fmt.Errorf("unsupported microphone format: %s", msg.Format)
	}
	return audio.DecodePCM16Base64(msg.Data)
}

// imageSize validates an image envelope and returns the decoded byte count
func imageSize(msg protocol.Message) (int, error) {
	data, err := base64.StdEncoding.DecodeString(msg.Data)
	if err != nil {
		return 0, fmt.Errorf("invalid base64 image payload: %w", err)
	}
	if len(data) == 0 {
		return 0, fmt.Errorf("empty image payload")
	}
	return len(data), nil
}
