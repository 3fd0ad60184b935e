// ABOUTME: Serialized audio playback queue
// ABOUTME: Plays decoded chunks back-to-back, one at a time, in arrival order
// Package playback implements the queue that turns an asynchronous stream
// of decoded audio chunks into gapless, non-overlapping playback.
//
// The queue is a two-state machine (Idle, Playing) owned by a single
// goroutine. Enqueue and render completion are both events delivered to
// that goroutine, so exactly one chunk is ever handed to the renderer at a
// time and chunks are rendered in the order they were enqueued.
//
// Example:
//
//	q := playback.NewQueue(renderer, playback.Config{})
//	q.Start()
//	defer q.Stop()
//
//	q.Enqueue(audio.Chunk{Samples: samples})
package playback
