// ABOUTME: High-level voice chat session API
// ABOUTME: Connects microphone, camera frames and playback to a model service
// Package voicechat provides the high-level Session API.
//
// A Session streams microphone audio (and optionally camera frames) to a
// model service over a WebSocket and plays the spoken responses back,
// one chunk at a time, through a playback queue.
//
// For lower-level control, see the audio, capture, playback and protocol packages.
//
// Example:
//
//	session, err := voicechat.NewSession(voicechat.SessionConfig{
//	    ServerAddr: "localhost:8000",
//	    Voice:      "Puck",
//	    OnText:     func(text string) { fmt.Println(text) },
//	})
//	err = session.Start(ctx, voicechat.ModeAudio)
//	defer session.Stop()
package voicechat
