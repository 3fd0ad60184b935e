// ABOUTME: Simple linear resampler for converting audio sample rates
// ABOUTME: Streams float32 chunks through linear interpolation across chunk boundaries
package resample

import "math"

// Resampler performs linear interpolation to convert between sample rates
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	ratio      float64
	position   float64   // read position in frames, relative to the current input
	lastFrame  []float32 // one sample per channel, addressed as frame -1
}

// New creates a new resampler
func New(inputRate, outputRate, channels int) *Resampler {
	if channels < 1 {
		channels = 1
	}
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		ratio:      float64(inputRate) / float64(outputRate),
		lastFrame:  make([]float32, channels),
	}
}

// Resample converts interleaved input at inputRate to interleaved output at outputRate
func (r *Resampler) Resample(input []float32) []float32 {
	inputFrames := len(input) / r.channels
	if inputFrames == 0 {
		return nil
	}

	if r.inputRate == r.outputRate {
		out := make([]float32, inputFrames*r.channels)
		copy(out, input)
		return out
	}

	out := make([]float32, 0, r.OutputSamplesNeeded(len(input))+r.channels)

	for {
		idx := int(math.Floor(r.position))
		if idx+1 >= inputFrames {
			break
		}

		frac := float32(r.position - float64(idx))
		for ch := 0; ch < r.channels; ch++ {
			s1 := r.frameSample(input, idx, ch)
			s2 := input[(idx+1)*r.channels+ch]
			out = append(out, s1*(1-frac)+s2*frac)
		}

		r.position += r.ratio
	}

	copy(r.lastFrame, input[(inputFrames-1)*r.channels:inputFrames*r.channels])
	r.position -= float64(inputFrames)

	return out
}

// frameSample returns a sample, treating frame -1 as the tail of the previous call
func (r *Resampler) frameSample(input []float32, frame, ch int) float32 {
	if frame < 0 {
		return r.lastFrame[ch]
	}
	return input[frame*r.channels+ch]
}

// OutputSamplesNeeded calculates how many output samples will be produced from input samples
func (r *Resampler) OutputSamplesNeeded(inputSamples int) int {
	inputFrames := inputSamples / r.channels
	outputFrames := int(float64(inputFrames) / r.ratio)
	return outputFrames * r.channels
}

// Downmix averages interleaved channels into a mono signal
func Downmix(input []float32, channels int) []float32 {
	if channels <= 1 {
		return input
	}
	frames := len(input) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += input[i*channels+ch]
		}
		out[i] = sum / float32(channels)
	}
	return out
}
