package filters

import (
	"math"
	"math/cmplx"
)

// Biquad is one second-order IIR section in transposed direct form II.
//
// The difference equation is:
// y[n] = b0*x[n] + b1*x[n-1] + b2*x[n-2] - a1*y[n-1] - a2*y[n-2]
//
// Coefficients are normalised so that a0 == 1. First-order sections set
// B2 and A2 to zero.
type Biquad struct {
	B0, B1, B2 float64
	A1, A2     float64

	z1, z2 float64
}

// Process filters a single sample
func (b *Biquad) Process(input float64) float64 {
	output := b.B0*input + b.z1
	b.z1 = b.B1*input - b.A1*output + b.z2
	b.z2 = b.B2*input - b.A2*output
	return output
}

// ProcessBuffer filters a whole buffer, carrying state across calls
func (b *Biquad) ProcessBuffer(input []float64) []float64 {
	output := make([]float64, len(input))
	for i, sample := range input {
		output[i] = b.Process(sample)
	}
	return output
}

// Reset clears the delay line
func (b *Biquad) Reset() {
	b.z1, b.z2 = 0, 0
}

// DCGain returns H(z=1)
func (b *Biquad) DCGain() float64 {
	den := 1 + b.A1 + b.A2
	if den == 0 {
		return math.Inf(1)
	}
	return (b.B0 + b.B1 + b.B2) / den
}

// primeSteadyState loads the state a constant input x would settle to,
// so a step at the start of a buffer produces no transient.
func (b *Biquad) primeSteadyState(x float64) {
	y := b.DCGain() * x
	if math.IsInf(y, 0) || math.IsNaN(y) {
		b.Reset()
		return
	}
	b.z1 = y - b.B0*x
	b.z2 = b.B2*x - b.A2*y
}

// Response evaluates H(e^jw) at normalised angular frequency w (rad/sample)
func (b *Biquad) Response(w float64) complex128 {
	z1 := cmplx.Exp(complex(0, -w))
	z2 := z1 * z1
	num := complex(b.B0, 0) + complex(b.B1, 0)*z1 + complex(b.B2, 0)*z2
	den := 1 + complex(b.A1, 0)*z1 + complex(b.A2, 0)*z2
	return num / den
}

// SOS is a cascade of second-order sections
type SOS struct {
	Sections []Biquad
}

// Reset clears the state of every section
func (s *SOS) Reset() {
	for i := range s.Sections {
		s.Sections[i].Reset()
	}
}

// Process runs one sample through the cascade
func (s *SOS) Process(input float64) float64 {
	out := input
	for i := range s.Sections {
		out = s.Sections[i].Process(out)
	}
	return out
}

// Filter runs x through the cascade from rest and returns a new slice.
// The receiver's state is left cleared.
func (s *SOS) Filter(x []float64) []float64 {
	s.Reset()
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = s.Process(v)
	}
	s.Reset()
	return out
}

// filterPrimed runs x through the cascade with every section primed to the
// steady state of a constant input equal to x[0].
func (s *SOS) filterPrimed(x []float64) []float64 {
	out := make([]float64, len(x))
	if len(x) == 0 {
		return out
	}

	level := x[0]
	for i := range s.Sections {
		s.Sections[i].primeSteadyState(level)
		level *= s.Sections[i].DCGain()
		if math.IsInf(level, 0) || math.IsNaN(level) {
			level = 0
		}
	}

	for i, v := range x {
		out[i] = s.Process(v)
	}
	s.Reset()
	return out
}

// Response evaluates the cascade at normalised angular frequency w
func (s *SOS) Response(w float64) complex128 {
	h := complex(1, 0)
	for i := range s.Sections {
		h *= s.Sections[i].Response(w)
	}
	return h
}

// MagnitudeAt returns |H| at frequency f (Hz) for sample rate fs
func (s *SOS) MagnitudeAt(f, fs float64) float64 {
	return cmplx.Abs(s.Response(2 * math.Pi * f / fs))
}
