// ABOUTME: Media capture package for microphone audio and still frames
// ABOUTME: Provides malgo microphone capture and periodic JPEG frame capture
// Package capture produces the media a session streams upstream.
//
// Microphone captures 16kHz mono audio through miniaudio (malgo) and
// delivers fixed-size frames. Frames samples images from a FrameSource at
// a fixed interval, scales them down and encodes them as JPEG.
//
// Example:
//
//	mic := capture.NewMicrophone(capture.MicrophoneConfig{})
//	err := mic.Start(func(frame []float32) { client.SendAudio(frame) })
//	defer mic.Stop()
package capture
