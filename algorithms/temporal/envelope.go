package temporal

import (
	"math"

	"github.com/RyanBlaney/sonido-modal/algorithms/common"
	"github.com/RyanBlaney/sonido-modal/algorithms/spectral"
)

// Envelope provides amplitude, energy and phase tracks of a narrow-band
// signal through its analytic signal
type Envelope struct {
	fft *spectral.FFT
}

// NewEnvelope creates a new envelope extractor
func NewEnvelope() *Envelope {
	return &Envelope{fft: spectral.NewFFT()}
}

// ComputeHilbert returns the Hilbert magnitude (instantaneous amplitude)
func (e *Envelope) ComputeHilbert(signal []float64) []float64 {
	if len(signal) == 0 {
		return []float64{}
	}
	return e.fft.Envelope(signal)
}

// ComputeEnergy returns the squared Hilbert magnitude
func (e *Envelope) ComputeEnergy(signal []float64) []float64 {
	env := e.ComputeHilbert(signal)
	for i, v := range env {
		env[i] = v * v
	}
	return env
}

// InstantaneousFrequency returns diff(unwrap(phase))·fs/2π in Hz.
// The result is one sample shorter than the input.
func (e *Envelope) InstantaneousFrequency(signal []float64, sampleRate float64) []float64 {
	if len(signal) < 2 {
		return []float64{}
	}
	phase := common.Unwrap(e.fft.Phase(signal))
	freq := common.Diff(phase)
	scale := sampleRate / (2 * math.Pi)
	for i := range freq {
		freq[i] *= scale
	}
	return freq
}

// ComputeSmoothed computes a centred moving average that averages only the
// samples inside the signal, so edges are not pulled toward zero
func (e *Envelope) ComputeSmoothed(envelope []float64, windowSize int) []float64 {
	if len(envelope) == 0 || windowSize <= 1 {
		out := make([]float64, len(envelope))
		copy(out, envelope)
		return out
	}

	if windowSize > len(envelope) {
		windowSize = len(envelope)
	}

	prefix := make([]float64, len(envelope)+1)
	for i, v := range envelope {
		prefix[i+1] = prefix[i] + v
	}

	smoothed := make([]float64, len(envelope))
	halfWindow := windowSize / 2

	for i := range envelope {
		lo := max(0, i-halfWindow)
		hi := min(len(envelope)-1, i+halfWindow)
		smoothed[i] = (prefix[hi+1] - prefix[lo]) / float64(hi-lo+1)
	}

	return smoothed
}
