// ABOUTME: Tests for the development backend
// ABOUTME: Drives sessions over real WebSockets, including a full client session
package server

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Resonate-Protocol/voicechat-go/pkg/audio"
	"github.com/Resonate-Protocol/voicechat-go/pkg/audio/output"
	"github.com/Resonate-Protocol/voicechat-go/pkg/protocol"
	"github.com/Resonate-Protocol/voicechat-go/pkg/voicechat"
	"github.com/gorilla/websocket"
)

func newTestServer(t *testing.T, config Config) (*Server, *httptest.Server) {
	t.Helper()

	s, err := New(config)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func dial(t *testing.T, ts *httptest.Server, clientID string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + protocol.DefaultPath + clientID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendConfig(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	err := conn.WriteJSON(protocol.Message{
		Type:   protocol.TypeConfig,
		Config: &protocol.SessionConfig{SystemPrompt: "test", Voice: "Kore", GoogleSearch: true},
	})
	if err != nil {
		t.Fatal(err)
	}
}

func sendFrames(t *testing.T, conn *websocket.Conn, frame []float32, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		msg := protocol.Message{Type: protocol.TypeAudio, Data: audio.EncodePCM16Base64(frame)}
		if err := conn.WriteJSON(msg); err != nil {
			t.Fatal(err)
		}
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) protocol.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var msg protocol.Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	return msg
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"defaults", Config{}, false},
		{"opus", Config{Format: "opus"}, false},
		{"unknown format", Config{Format: "aac"}, true},
		{"mp3 without clip", Config{Format: "mp3"}, true},
		{"mp3 with tone", Config{Format: "mp3", Tone: true}, true},
		{"missing reply file", Config{ReplyFile: "/nonexistent/reply.mp3"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("expected error=%v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestNewDefaults(t *testing.T) {
	s, err := New(Config{})
	if err != nil {
		t.Fatal(err)
	}

	if s.config.Format != "pcm16" {
		t.Errorf("expected pcm16 default format, got %s", s.config.Format)
	}
	if s.config.ChunkDuration != DefaultChunkDuration {
		t.Errorf("expected default chunk duration, got %v", s.config.ChunkDuration)
	}
	if s.ID() == "" {
		t.Error("expected a server ID")
	}
	if s.replyDescription() != "echo" {
		t.Errorf("expected echo replies, got %s", s.replyDescription())
	}
}

func TestEchoReply(t *testing.T) {
	_, ts := newTestServer(t, Config{
		Responder: ResponderConfig{SilenceGap: 200 * time.Millisecond},
	})
	conn := dial(t, ts, "echo-client")
	sendConfig(t, conn)

	sendFrames(t, conn, speechFrame(), 16)
	sendFrames(t, conn, silenceFrame(), framesFor(200*time.Millisecond))

	first := readMessage(t, conn)
	if first.Type != protocol.TypeText || !strings.Contains(first.Text, "Heard") {
		t.Fatalf("expected text reply first, got %+v", first)
	}

	// 16 frames at 16kHz is 8192 samples, about 12288 at 24kHz
	total := 0
	for total < 12000 {
		msg := readMessage(t, conn)
		if msg.Type != protocol.TypeAudio {
			t.Fatalf("expected audio, got %s", msg.Type)
		}
		samples, err := audio.DecodePCM16Base64(msg.Data)
		if err != nil {
			t.Fatal(err)
		}
		total += len(samples)
	}
	if total > 12400 {
		t.Errorf("expected ~12288 echoed samples, got %d", total)
	}
}

func TestImageAck(t *testing.T) {
	s, ts := newTestServer(t, Config{})
	conn := dial(t, ts, "camera-client")
	sendConfig(t, conn)

	err := conn.WriteJSON(protocol.Message{
		Type: protocol.TypeImage,
		Data: base64.StdEncoding.EncodeToString([]byte{0xFF, 0xD8, 0xFF, 0xD9}),
	})
	if err != nil {
		t.Fatal(err)
	}

	msg := readMessage(t, conn)
	if msg.Type != protocol.TypeText || msg.Text != "Received frame 1 (4 bytes)" {
		t.Errorf("unexpected ack: %+v", msg)
	}

	sessions := s.Sessions()
	if len(sessions) != 1 || sessions[0].Images != 1 || sessions[0].Voice != "Kore" {
		t.Errorf("unexpected session snapshot: %+v", sessions)
	}
}

func TestConfigRequiredFirst(t *testing.T) {
	_, ts := newTestServer(t, Config{})
	conn := dial(t, ts, "rude-client")

	sendFrames(t, conn, silenceFrame(), 1)

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseProtocolError) {
		t.Errorf("expected protocol error close, got %v", err)
	}
}

func TestUnknownVoiceFallsBack(t *testing.T) {
	s, ts := newTestServer(t, Config{})
	conn := dial(t, ts, "voice-client")

	err := conn.WriteJSON(protocol.Message{
		Type:   protocol.TypeConfig,
		Config: &protocol.SessionConfig{Voice: "Nobody"},
	})
	if err != nil {
		t.Fatal(err)
	}

	waitFor(t, "session registered", func() bool { return s.SessionCount() == 1 })
	if got := s.Sessions()[0].Voice; got != "Puck" {
		t.Errorf("expected fallback voice Puck, got %s", got)
	}
}

func TestDuplicateClientRejected(t *testing.T) {
	s, ts := newTestServer(t, Config{})
	conn := dial(t, ts, "same-id")
	sendConfig(t, conn)

	waitFor(t, "first session", func() bool { return s.SessionCount() == 1 })

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + protocol.DefaultPath + "same-id"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected duplicate to be rejected")
	}
	if resp == nil || resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409, got %+v", resp)
	}
}

func TestSessionRemovedOnDisconnect(t *testing.T) {
	s, ts := newTestServer(t, Config{})
	conn := dial(t, ts, "leaving")
	sendConfig(t, conn)

	waitFor(t, "session registered", func() bool { return s.SessionCount() == 1 })
	conn.Close()
	waitFor(t, "session removed", func() bool { return s.SessionCount() == 0 })
}

func TestGoTrackedAfterShutdown(t *testing.T) {
	tests := []struct {
		name     string
		shutdown bool
		wantRun  bool
	}{
		{"running", false, true},
		{"shut down", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(Config{})
			if err != nil {
				t.Fatal(err)
			}
			s.isShutdown = tt.shutdown

			var ran bool
			started := s.goTracked(func() { ran = true })
			s.wg.Wait()

			if started != tt.wantRun {
				t.Errorf("expected started=%v, got %v", tt.wantRun, started)
			}
			if ran != tt.wantRun {
				t.Errorf("expected ran=%v, got %v", tt.wantRun, ran)
			}
		})
	}
}

func TestBadPaths(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	for _, path := range []string{"/ws/", "/ws/a/b"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, resp.StatusCode)
		}
	}
}

// scriptedMic feeds a fixed utterance when started
type scriptedMic struct {
	mu      sync.Mutex
	onFrame func([]float32)
}

func (m *scriptedMic) Start(onFrame func([]float32)) error {
	m.mu.Lock()
	m.onFrame = onFrame
	m.mu.Unlock()
	return nil
}

func (m *scriptedMic) Stop() error { return nil }

func (m *scriptedMic) speak(speech, silence int) {
	m.mu.Lock()
	onFrame := m.onFrame
	m.mu.Unlock()

	for i := 0; i < speech; i++ {
		onFrame(speechFrame())
		time.Sleep(time.Millisecond)
	}
	for i := 0; i < silence; i++ {
		onFrame(silenceFrame())
		time.Sleep(time.Millisecond)
	}
}

func TestClientSessionEndToEnd(t *testing.T) {
	for _, format := range []string{"pcm16", "opus"} {
		t.Run(format, func(t *testing.T) {
			_, ts := newTestServer(t, Config{
				Format:    format,
				Responder: ResponderConfig{SilenceGap: 200 * time.Millisecond},
			})

			renderer := output.NewNull()
			renderer.Speed = 0
			mic := &scriptedMic{}

			var mu sync.Mutex
			var texts []string

			session, err := voicechat.NewSession(voicechat.SessionConfig{
				ServerAddr: strings.TrimPrefix(ts.URL, "http://"),
				Voice:      "Fenrir",
				Renderer:   renderer,
				Microphone: mic,
				OnText: func(text string) {
					mu.Lock()
					texts = append(texts, text)
					mu.Unlock()
				},
			})
			if err != nil {
				t.Fatal(err)
			}
			defer session.Stop()

			if err := session.Start(context.Background(), voicechat.ModeAudio); err != nil {
				t.Fatalf("start failed: %v", err)
			}

			mic.speak(16, framesFor(200*time.Millisecond))

			waitFor(t, "reply text", func() bool {
				mu.Lock()
				defer mu.Unlock()
				return len(texts) > 0
			})
			waitFor(t, "reply playback", func() bool {
				stats := session.Stats().Queue
				return stats.Played > 0 && stats.Pending == 0 && stats.Dropped == 0
			})

			if session.Stats().DecodeErrors != 0 {
				t.Errorf("unexpected decode errors: %d", session.Stats().DecodeErrors)
			}
		})
	}
}
