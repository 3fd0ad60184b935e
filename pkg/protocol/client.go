// ABOUTME: WebSocket client for voice chat sessions
// ABOUTME: Handles connection, session config, outbound media and inbound routing
package protocol

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Resonate-Protocol/voicechat-go/pkg/audio"
	"github.com/gorilla/websocket"
)

// ErrNotConnected is returned when sending on a closed session
var ErrNotConnected = errors.New("not connected")

const (
	// DefaultPath is the endpoint prefix; the client ID is appended
	DefaultPath = "/ws/"

	writeTimeout = 5 * time.Second
)

// Config holds client configuration
type Config struct {
	// ServerAddr is host:port or a full ws:// or wss:// URL
	ServerAddr string
	ClientID   string
	Session    SessionConfig
}

// Client represents a WebSocket session
type Client struct {
	config Config
	conn   *websocket.Conn
	mu     sync.RWMutex
	wmu    sync.Mutex // gorilla allows one concurrent writer

	// Message channels
	Audio chan AudioMessage
	Text  chan string

	// State
	connected bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewClient creates a new WebSocket client
func NewClient(config Config) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		config: config,
		Audio:  make(chan AudioMessage, 100),
		Text:   make(chan string, 10),
		ctx:    ctx,
		cancel: cancel,
	}
}

// SessionURL builds the WebSocket URL for a server address and client ID
func SessionURL(serverAddr, clientID string) (string, error) {
	if serverAddr == "" {
		return "", fmt.Errorf("server address is required")
	}
	if clientID == "" {
		return "", fmt.Errorf("client ID is required")
	}

	if !strings.Contains(serverAddr, "://") {
		u := url.URL{Scheme: "ws", Host: serverAddr, Path: DefaultPath + clientID}
		return u.String(), nil
	}

	u, err := url.Parse(serverAddr)
	if err != nil {
		return "", fmt.Errorf("invalid server address: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + DefaultPath + clientID
	return u.String(), nil
}

// Connect dials the server and sends the session config
func (c *Client) Connect(ctx context.Context) error {
	wsURL, err := SessionURL(c.config.ServerAddr, c.config.ClientID)
	if err != nil {
		return err
	}
	log.Printf("Connecting to %s", wsURL)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	session := c.config.Session
	if err := c.sendJSON(Message{Type: TypeConfig, Config: &session}); err != nil {
		c.Close()
		return fmt.Errorf("failed to send config: %w", err)
	}

	log.Printf("Session configured: voice=%s search=%v", session.Voice, session.GoogleSearch)

	go c.readMessages()

	return nil
}

// sendJSON sends a JSON message
func (c *Client) sendJSON(msg Message) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.connected {
		return ErrNotConnected
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(msg)
}

// SendAudio sends one microphone frame as base64 PCM16
func (c *Client) SendAudio(samples []float32) error {
	return c.sendJSON(Message{
		Type: TypeAudio,
		Data: audio.EncodePCM16Base64(samples),
	})
}

// SendImage sends one encoded JPEG frame
func (c *Client) SendImage(jpeg []byte) error {
	return c.sendJSON(Message{
		Type: TypeImage,
		Data: base64.StdEncoding.EncodeToString(jpeg),
	})
}

// readMessages reads and routes incoming messages
func (c *Client) readMessages() {
	defer c.Close()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("Read error: %v", err)
			}
			return
		}

		if messageType != websocket.TextMessage {
			log.Printf("Ignoring non-text WebSocket message type: %d", messageType)
			continue
		}

		c.handleJSONMessage(data)
	}
}

// handleJSONMessage routes a JSON envelope
func (c *Client) handleJSONMessage(data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Failed to parse JSON message: %v", err)
		return
	}

	switch msg.Type {
	case TypeAudio:
		payload, err := base64.StdEncoding.DecodeString(msg.Data)
		if err != nil {
			log.Printf("Failed to decode audio payload: %v", err)
			return
		}
		select {
		case c.Audio <- AudioMessage{Format: msg.Format, Data: payload}:
		case <-c.ctx.Done():
		}

	case TypeText:
		select {
		case c.Text <- msg.Text:
		case <-time.After(100 * time.Millisecond):
			log.Printf("Text channel full, dropping message")
		}

	default:
		log.Printf("Unknown message type: %s", msg.Type)
	}
}

// Done is closed when the session ends, locally or by the server
func (c *Client) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Close closes the connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		c.connected = false
		c.cancel()

		c.wmu.Lock()
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.wmu.Unlock()

		c.conn.Close()
		log.Printf("Connection closed")
		return
	}
	c.cancel()
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
