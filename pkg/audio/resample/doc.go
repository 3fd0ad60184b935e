// ABOUTME: Sample rate conversion package
// ABOUTME: Provides streaming linear resampling for float32 audio
// Package resample provides sample rate conversion.
//
// Uses linear interpolation and keeps the last frame of each call so
// consecutive chunks join without a seam.
//
// Example:
//
//	r := resample.New(16000, 24000, 1)
//	out := r.Resample(micFrame)
package resample
