package spectral

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// FFT provides arbitrary-length transforms through mjibson/go-dsp
type FFT struct{}

// NewFFT creates a new FFT calculator
func NewFFT() *FFT {
	return &FFT{}
}

// Compute computes the forward transform of a real signal
func (f *FFT) Compute(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}

	// go-dsp handles non-power-of-2 sizes via Bluestein
	return fft.FFTReal(x)
}

// ComputeInverse computes inverse FFT
func (f *FFT) ComputeInverse(x []complex128) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}

	return fft.IFFT(x)
}

// AnalyticSignal returns x + j·H{x} computed in the frequency domain:
// negative frequencies are zeroed and positive ones doubled.
func (f *FFT) AnalyticSignal(x []float64) []complex128 {
	n := len(x)
	if n == 0 {
		return []complex128{}
	}

	spectrum := f.Compute(x)

	h := make([]float64, n)
	h[0] = 1
	if n%2 == 0 {
		h[n/2] = 1
		for i := 1; i < n/2; i++ {
			h[i] = 2
		}
	} else {
		for i := 1; i < (n+1)/2; i++ {
			h[i] = 2
		}
	}

	for i := range spectrum {
		spectrum[i] *= complex(h[i], 0)
	}

	return f.ComputeInverse(spectrum)
}

// Envelope returns |analytic signal|, the instantaneous amplitude
func (f *FFT) Envelope(x []float64) []float64 {
	z := f.AnalyticSignal(x)
	env := make([]float64, len(z))
	for i, v := range z {
		env[i] = cmplx.Abs(v)
	}
	return env
}

// Phase returns the wrapped instantaneous phase in radians
func (f *FFT) Phase(x []float64) []float64 {
	z := f.AnalyticSignal(x)
	phase := make([]float64, len(z))
	for i, v := range z {
		phase[i] = math.Atan2(imag(v), real(v))
	}
	return phase
}
