// ABOUTME: Voice chat protocol message type definitions
// ABOUTME: Defines the JSON envelope, session config and message type names
package protocol

// Envelope types
const (
	TypeConfig = "config"
	TypeAudio  = "audio"
	TypeImage  = "image"
	TypeText   = "text"
)

// Voices lists the synthesized voices the service accepts
var Voices = []string{"Puck", "Charon", "Kore", "Fenrir", "Aoede"}

// Message is the top-level JSON envelope for every frame
type Message struct {
	Type   string         `json:"type"`
	Data   string         `json:"data,omitempty"`   // base64 payload for audio and image
	Format string         `json:"format,omitempty"` // audio payload format, empty means pcm16
	Text   string         `json:"text,omitempty"`
	Config *SessionConfig `json:"config,omitempty"`
}

// SessionConfig is sent once when the session opens
type SessionConfig struct {
	SystemPrompt string `json:"systemPrompt"`
	Voice        string `json:"voice"`
	GoogleSearch bool   `json:"googleSearch"`
}

// AudioMessage is a received audio payload, already base64-decoded
type AudioMessage struct {
	Format string
	Data   []byte
}

// IsValidVoice reports whether name is one of Voices
func IsValidVoice(name string) bool {
	for _, v := range Voices {
		if v == name {
			return true
		}
	}
	return false
}
