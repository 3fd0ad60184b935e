// ABOUTME: Audio type definitions
// ABOUTME: Defines decoded chunks and stream rate constants
package audio

import "time"

const (
	// InputSampleRate is the microphone capture rate sent upstream
	InputSampleRate = 16000

	// OutputSampleRate is the rate of synthesized audio received from the service
	OutputSampleRate = 24000

	// CaptureFrameSize is the number of samples per captured microphone frame
	CaptureFrameSize = 512
)

// Chunk is one arrival unit of decoded mono audio (normalized to [-1, 1])
type Chunk struct {
	Seq     uint64
	Samples []float32
}

// Len returns the number of samples in the chunk
func (c Chunk) Len() int {
	return len(c.Samples)
}

// Duration returns how long the chunk plays at the given sample rate
func (c Chunk) Duration(sampleRate int) time.Duration {
	return SamplesDuration(len(c.Samples), sampleRate)
}

// SamplesDuration converts a sample count to wall-clock time
func SamplesDuration(n, sampleRate int) time.Duration {
	if sampleRate <= 0 || n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(sampleRate)
}
