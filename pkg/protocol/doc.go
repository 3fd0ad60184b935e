// ABOUTME: Voice chat wire protocol package
// ABOUTME: Defines JSON envelopes and the WebSocket session client
// Package protocol implements the voice chat wire protocol.
//
// Every frame is a JSON envelope with a "type" field. The client sends a
// "config" envelope once the socket opens, then streams "audio" (base64
// PCM16 at 16kHz) and "image" (base64 JPEG) envelopes. The service answers
// with "audio" (base64 PCM16 at 24kHz unless "format" says otherwise) and
// "text" envelopes.
//
// Example:
//
//	client := protocol.NewClient(protocol.Config{
//	    ServerAddr: "localhost:8000",
//	    ClientID:   uuid.New().String(),
//	    Session:    protocol.SessionConfig{Voice: "Puck"},
//	})
//	err := client.Connect(ctx)
//	err = client.SendAudio(frame)
package protocol
