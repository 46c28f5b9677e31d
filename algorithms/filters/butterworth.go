package filters

import (
	"fmt"
	"math"
	"math/cmplx"
)

// Butterworth designs cascaded-biquad Butterworth filters by bilinear
// transform of the analog prototype, with frequency pre-warping.
//
// References:
//   - Oppenheim, Schafer. "Discrete-Time Signal Processing", ch. 7
//   - Parks, Burrus. "Digital Filter Design" (1987), analog prototype
//     transformations

// PassType selects the frequency transformation applied to the prototype
type PassType int

const (
	Lowpass PassType = iota
	Highpass
	Bandpass
)

func (p PassType) String() string {
	switch p {
	case Lowpass:
		return "lowpass"
	case Highpass:
		return "highpass"
	case Bandpass:
		return "bandpass"
	default:
		return "unknown"
	}
}

// prototypePoles returns the left-half-plane poles of the unit-cutoff
// Butterworth prototype with Im >= 0. A real pole exists for odd orders.
func prototypePoles(order int) []complex128 {
	poles := make([]complex128, 0, (order+1)/2)
	for k := 0; 2*k+1 <= order; k++ {
		theta := math.Pi * float64(2*k+order+1) / float64(2*order)
		p := cmplx.Rect(1, theta)
		if 2*k+1 == order {
			p = complex(-1, 0)
		}
		poles = append(poles, p)
	}
	return poles
}

func warp(f, fs float64) float64 {
	return 2 * fs * math.Tan(math.Pi*f/fs)
}

func bilinear(s complex128, fs float64) complex128 {
	k := complex(2*fs, 0)
	return (k + s) / (k - s)
}

func isReal(z complex128) bool {
	return math.Abs(imag(z)) <= 1e-12*math.Max(1, cmplx.Abs(z))
}

// denominator returns (a1, a2) for a section whose poles are z and conj(z)
func conjugateDenominator(z complex128) (float64, float64) {
	return -2 * real(z), real(z)*real(z) + imag(z)*imag(z)
}

// NewButterworthLowpass creates an order-N low-pass cascade
func NewButterworthLowpass(order int, sampleRate, cutoffFreq float64) (*SOS, error) {
	if err := validateEdge(order, sampleRate, cutoffFreq); err != nil {
		return nil, err
	}
	wc := warp(cutoffFreq, sampleRate)

	sos := &SOS{}
	for _, p := range prototypePoles(order) {
		z := bilinear(complex(wc, 0)*p, sampleRate)
		if isReal(p) {
			sos.Sections = append(sos.Sections, Biquad{B0: 1, B1: 1, A1: -real(z)})
			continue
		}
		a1, a2 := conjugateDenominator(z)
		sos.Sections = append(sos.Sections, Biquad{B0: 1, B1: 2, B2: 1, A1: a1, A2: a2})
	}

	normalizeGain(sos, 0)
	return sos, nil
}

// NewButterworthHighpass creates an order-N high-pass cascade
func NewButterworthHighpass(order int, sampleRate, cutoffFreq float64) (*SOS, error) {
	if err := validateEdge(order, sampleRate, cutoffFreq); err != nil {
		return nil, err
	}
	wc := warp(cutoffFreq, sampleRate)

	sos := &SOS{}
	for _, p := range prototypePoles(order) {
		z := bilinear(complex(wc, 0)/p, sampleRate)
		if isReal(p) {
			sos.Sections = append(sos.Sections, Biquad{B0: 1, B1: -1, A1: -real(z)})
			continue
		}
		a1, a2 := conjugateDenominator(z)
		sos.Sections = append(sos.Sections, Biquad{B0: 1, B1: -2, B2: 1, A1: a1, A2: a2})
	}

	normalizeGain(sos, math.Pi)
	return sos, nil
}

// NewButterworthBandpass creates a band-pass cascade from an order-N
// prototype; the result has 2N poles in N sections.
func NewButterworthBandpass(order int, sampleRate, lowFreq, highFreq float64) (*SOS, error) {
	if err := validateEdge(order, sampleRate, lowFreq); err != nil {
		return nil, err
	}
	if err := validateEdge(order, sampleRate, highFreq); err != nil {
		return nil, err
	}
	if highFreq <= lowFreq {
		return nil, fmt.Errorf("band-pass upper edge %.4g Hz must exceed lower edge %.4g Hz", highFreq, lowFreq)
	}

	wl := warp(lowFreq, sampleRate)
	wh := warp(highFreq, sampleRate)
	bw := complex(wh-wl, 0)
	w0sq := complex(wl*wh, 0)

	sos := &SOS{}
	for _, p := range prototypePoles(order) {
		disc := cmplx.Sqrt(p*p*bw*bw - 4*w0sq)
		s1 := (p*bw + disc) / 2
		s2 := (p*bw - disc) / 2
		z1 := bilinear(s1, sampleRate)
		z2 := bilinear(s2, sampleRate)

		if isReal(p) {
			// the real prototype pole maps to one conjugate pair or two real poles
			if isReal(z1) && isReal(z2) {
				sos.Sections = append(sos.Sections, Biquad{
					B0: 1, B2: -1,
					A1: -(real(z1) + real(z2)),
					A2: real(z1) * real(z2),
				})
			} else {
				a1, a2 := conjugateDenominator(z1)
				sos.Sections = append(sos.Sections, Biquad{B0: 1, B2: -1, A1: a1, A2: a2})
			}
			continue
		}

		for _, z := range []complex128{z1, z2} {
			a1, a2 := conjugateDenominator(z)
			sos.Sections = append(sos.Sections, Biquad{B0: 1, B2: -1, A1: a1, A2: a2})
		}
	}

	center := 2 * math.Atan(math.Sqrt(wl*wh)/(2*sampleRate))
	normalizeGain(sos, center)
	return sos, nil
}

func validateEdge(order int, sampleRate, freq float64) error {
	if order < 1 {
		return fmt.Errorf("filter order must be >= 1, got %d", order)
	}
	if sampleRate <= 0 || math.IsNaN(sampleRate) {
		return fmt.Errorf("sample rate must be positive, got %v", sampleRate)
	}
	nyquist := sampleRate / 2
	if !(freq > 0 && freq < nyquist) {
		return fmt.Errorf("edge frequency %.4g Hz outside (0, %.4g) Hz", freq, nyquist)
	}
	return nil
}

// normalizeGain scales the first section so |H(e^jw)| == 1 at w
func normalizeGain(sos *SOS, w float64) {
	if len(sos.Sections) == 0 {
		return
	}
	g := cmplx.Abs(sos.Response(w))
	if g == 0 || math.IsNaN(g) || math.IsInf(g, 0) {
		return
	}
	first := &sos.Sections[0]
	first.B0 /= g
	first.B1 /= g
	first.B2 /= g
}
