package windowing

import (
	"fmt"
	"math"
	"strings"
)

// Type names a supported taper
type Type string

const (
	TypeHann        Type = "hann"
	TypeHamming     Type = "hamming"
	TypeBlackman    Type = "blackman"
	TypeRectangular Type = "rectangular"
)

// Window holds precomputed taper coefficients.
// Periodic (non-symmetric) windows are the right choice for spectral
// estimation; symmetric ones suit filter design.
type Window struct {
	kind         Type
	size         int
	symmetric    bool
	coefficients []float64
}

// ParseType validates a window name from configuration
func ParseType(name string) (Type, error) {
	switch t := Type(strings.ToLower(strings.TrimSpace(name))); t {
	case TypeHann, TypeHamming, TypeBlackman, TypeRectangular:
		return t, nil
	case "hanning":
		return TypeHann, nil
	case "boxcar", "none":
		return TypeRectangular, nil
	default:
		return "", fmt.Errorf("unsupported window %q", name)
	}
}

// New creates a window of the given type
func New(kind Type, size int, symmetric bool) (*Window, error) {
	if size < 1 {
		return nil, fmt.Errorf("window size must be positive, got %d", size)
	}

	var coeffs []float64
	switch kind {
	case TypeHann:
		coeffs = cosineSum(size, symmetric, 0.5, 0.5)
	case TypeHamming:
		coeffs = cosineSum(size, symmetric, 0.54, 0.46)
	case TypeBlackman:
		coeffs = cosineSum(size, symmetric, 0.42, 0.5, 0.08)
	case TypeRectangular:
		coeffs = make([]float64, size)
		for i := range coeffs {
			coeffs[i] = 1
		}
	default:
		return nil, fmt.Errorf("unsupported window %q", kind)
	}

	return &Window{kind: kind, size: size, symmetric: symmetric, coefficients: coeffs}, nil
}

// NewHann creates a new Hann window
func NewHann(size int, symmetric bool) *Window {
	w, _ := New(TypeHann, max(size, 1), symmetric)
	return w
}

// cosineSum evaluates a0 - a1 cos(x) + a2 cos(2x) - ...
func cosineSum(size int, symmetric bool, a ...float64) []float64 {
	coeffs := make([]float64, size)
	if size == 1 {
		coeffs[0] = 1
		return coeffs
	}

	denominator := float64(size)
	if symmetric {
		denominator = float64(size - 1)
	}

	for i := range size {
		x := 2 * math.Pi * float64(i) / denominator
		sign := 1.0
		for k, ak := range a {
			coeffs[i] += sign * ak * math.Cos(float64(k)*x)
			sign = -sign
		}
	}
	return coeffs
}

// Apply applies the window to a signal (creates new array)
func (w *Window) Apply(signal []float64) []float64 {
	if len(signal) != w.size {
		return nil
	}

	windowed := make([]float64, w.size)
	for i := range w.size {
		windowed[i] = signal[i] * w.coefficients[i]
	}

	return windowed
}

// ApplyInPlace applies the window to a signal in-place
func (w *Window) ApplyInPlace(signal []float64) error {
	if len(signal) != w.size {
		return fmt.Errorf("signal length (%d) doesn't match window size (%d)", len(signal), w.size)
	}

	for i := range w.size {
		signal[i] *= w.coefficients[i]
	}

	return nil
}

// GetCoefficients returns a copy of the window coefficients
func (w *Window) GetCoefficients() []float64 {
	coeffs := make([]float64, len(w.coefficients))
	copy(coeffs, w.coefficients)
	return coeffs
}

// Sum returns Σw, used for amplitude ("spectrum") scaling
func (w *Window) Sum() float64 {
	s := 0.0
	for _, c := range w.coefficients {
		s += c
	}
	return s
}

// SumSquares returns Σw², used for density scaling
func (w *Window) SumSquares() float64 {
	s := 0.0
	for _, c := range w.coefficients {
		s += c * c
	}
	return s
}

// GetSize returns the window size
func (w *Window) GetSize() int {
	return w.size
}

// GetType returns the window type
func (w *Window) GetType() Type {
	return w.kind
}
