package spectral

import (
	"fmt"
	"math"
	"math/cmplx"
	"strings"

	"github.com/RyanBlaney/sonido-modal/algorithms/common"
	"github.com/RyanBlaney/sonido-modal/algorithms/windowing"
	"gonum.org/v1/gonum/dsp/fourier"
)

// MinWelchSamples is the shortest input Welch will estimate from
const MinWelchSamples = 16

// Detrend selects per-segment trend removal
type Detrend string

const (
	DetrendConstant Detrend = "constant"
	DetrendLinear   Detrend = "linear"
	DetrendNone     Detrend = "none"
)

// Scaling selects PSD normalisation
type Scaling string

const (
	// ScalingDensity gives power per Hz (V²/Hz)
	ScalingDensity Scaling = "density"
	// ScalingSpectrum gives power per bin (V²)
	ScalingSpectrum Scaling = "spectrum"
)

// ParseDetrend validates a detrend name
func ParseDetrend(name string) (Detrend, error) {
	switch d := Detrend(strings.ToLower(strings.TrimSpace(name))); d {
	case DetrendConstant, DetrendLinear, DetrendNone:
		return d, nil
	case "":
		return DetrendConstant, nil
	default:
		return "", fmt.Errorf("unsupported detrend %q", name)
	}
}

// ParseScaling validates a scaling name
func ParseScaling(name string) (Scaling, error) {
	switch s := Scaling(strings.ToLower(strings.TrimSpace(name))); s {
	case ScalingDensity, ScalingSpectrum:
		return s, nil
	case "":
		return ScalingDensity, nil
	default:
		return "", fmt.Errorf("unsupported scaling %q", name)
	}
}

// WelchConfig fixes every choice that influences the estimate so repeated
// runs, and all hits of one recording, share the same frequency grid.
type WelchConfig struct {
	DfTargetHz  float64
	NpersegMin  int
	NpersegMax  int
	OverlapFrac float64
	PowerOfTwo  bool
	Window      windowing.Type
	Detrend     Detrend
	Scaling     Scaling
}

// DefaultWelchConfig returns the default segment policy
func DefaultWelchConfig() WelchConfig {
	return WelchConfig{
		DfTargetHz:  0.25,
		NpersegMin:  256,
		NpersegMax:  4096,
		OverlapFrac: 0.5,
		PowerOfTwo:  true,
		Window:      windowing.TypeHann,
		Detrend:     DetrendConstant,
		Scaling:     ScalingDensity,
	}
}

// PSD is a one-sided power spectral density
type PSD struct {
	Freqs      []float64
	Power      []float64
	Nperseg    int
	Noverlap   int
	Segments   int
	SampleRate float64
}

// Len returns the number of frequency bins
func (p *PSD) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Freqs)
}

// Resolution returns the bin spacing in Hz
func (p *PSD) Resolution() float64 {
	if p == nil || p.Nperseg == 0 {
		return math.NaN()
	}
	return p.SampleRate / float64(p.Nperseg)
}

// SameGrid reports whether both spectra share an identical frequency axis
func (p *PSD) SameGrid(other *PSD) bool {
	if p.Len() != other.Len() {
		return false
	}
	for i := range p.Freqs {
		if p.Freqs[i] != other.Freqs[i] {
			return false
		}
	}
	return true
}

// SegmentLength picks nperseg: round(fs/df) clamped to [min, max] and to
// the sample count, optionally snapped down to a power of two, never below 16.
func SegmentLength(nSamples int, fs float64, cfg WelchConfig) (int, error) {
	if cfg.DfTargetHz <= 0 || math.IsNaN(cfg.DfTargetHz) {
		return 0, fmt.Errorf("df_target_hz must be > 0, got %v", cfg.DfTargetHz)
	}
	if fs <= 0 {
		return 0, fmt.Errorf("sample rate must be > 0, got %v", fs)
	}

	n := common.RoundInt(fs / cfg.DfTargetHz)
	n = common.ClampInt(n, cfg.NpersegMin, cfg.NpersegMax)
	n = min(n, nSamples)

	if cfg.PowerOfTwo {
		n = common.PrevPowerOfTwo(n)
	}

	return max(MinWelchSamples, n), nil
}

// Overlap returns round(frac*nperseg) clamped to [0, nperseg-1]
func Overlap(nperseg int, frac float64) int {
	return common.ClampInt(common.RoundInt(frac*float64(nperseg)), 0, nperseg-1)
}

// Welch estimates the PSD by averaging windowed, detrended periodograms.
// Inputs shorter than MinWelchSamples yield an empty PSD and no error.
func Welch(x []float64, fs float64, cfg WelchConfig) (*PSD, error) {
	if len(x) < MinWelchSamples {
		return &PSD{SampleRate: fs}, nil
	}

	nperseg, err := SegmentLength(len(x), fs, cfg)
	if err != nil {
		return nil, err
	}
	noverlap := Overlap(nperseg, cfg.OverlapFrac)
	step := nperseg - noverlap

	kind := cfg.Window
	if kind == "" {
		kind = windowing.TypeHann
	}
	win, err := windowing.New(kind, nperseg, false)
	if err != nil {
		return nil, err
	}

	var scale float64
	switch cfg.Scaling {
	case ScalingSpectrum:
		s := win.Sum()
		scale = 1.0 / (s * s)
	case ScalingDensity, "":
		scale = 1.0 / (fs * win.SumSquares())
	default:
		return nil, fmt.Errorf("unsupported scaling %q", cfg.Scaling)
	}

	nbins := nperseg/2 + 1
	power := make([]float64, nbins)
	plan := fourier.NewFFT(nperseg)
	coeffs := make([]complex128, nbins)
	segment := make([]float64, nperseg)

	segments := 0
	for start := 0; start+nperseg <= len(x); start += step {
		copy(segment, x[start:start+nperseg])
		if err := detrend(segment, cfg.Detrend); err != nil {
			return nil, err
		}
		if err := win.ApplyInPlace(segment); err != nil {
			return nil, err
		}

		coeffs = plan.Coefficients(coeffs, segment)
		for k, c := range coeffs {
			mag := cmplx.Abs(c)
			power[k] += mag * mag
		}
		segments++
	}

	freqs := make([]float64, nbins)
	for k := range power {
		power[k] *= scale / float64(segments)
		freqs[k] = float64(k) * fs / float64(nperseg)
	}

	// one-sided: double everything except DC and, for even lengths, Nyquist
	last := nbins
	if nperseg%2 == 0 {
		last = nbins - 1
	}
	for k := 1; k < last; k++ {
		power[k] *= 2
	}

	return &PSD{
		Freqs:      freqs,
		Power:      power,
		Nperseg:    nperseg,
		Noverlap:   noverlap,
		Segments:   segments,
		SampleRate: fs,
	}, nil
}

func detrend(segment []float64, mode Detrend) error {
	switch mode {
	case DetrendConstant, "":
		mean := common.Mean(segment)
		for i := range segment {
			segment[i] -= mean
		}
	case DetrendLinear:
		t := make([]float64, len(segment))
		for i := range t {
			t[i] = float64(i)
		}
		slope, intercept, _ := common.LinRegression(t, segment)
		for i := range segment {
			segment[i] -= intercept + slope*t[i]
		}
	case DetrendNone:
	default:
		return fmt.Errorf("unsupported detrend %q", mode)
	}
	return nil
}
