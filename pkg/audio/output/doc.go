// ABOUTME: Audio output package for rendering chunks
// ABOUTME: Provides the Renderer interface with oto and null implementations
// Package output renders audio chunks to a playback device.
//
// A Renderer accepts one chunk of samples and reports, exactly once on the
// returned channel, when that chunk has finished playing.
//
// Example:
//
//	out := output.NewOto()
//	err := out.Open(24000)
//	done := out.Render(samples, 24000)
//	err = <-done
package output
