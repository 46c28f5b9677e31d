package estimators

import (
	"math"

	"github.com/RyanBlaney/sonido-modal/algorithms/common"
	"github.com/RyanBlaney/sonido-modal/algorithms/temporal"
	"github.com/RyanBlaney/sonido-modal/modal"
	"github.com/RyanBlaney/sonido-modal/modal/config"
)

// Variant selects where the time-domain fit starts
type Variant string

const (
	// VariantFull starts right after the transient
	VariantFull Variant = "full"
	// VariantEstablished searches for the earliest start with a clean fit
	VariantEstablished Variant = "established"
)

func decayParams(cfg config.EstimatorConfig) fitParams {
	return fitParams{
		fitMaxS:      cfg.FitMaxS,
		noiseTailS:   cfg.NoiseTailS,
		noiseMult:    cfg.NoiseMult,
		minDurationS: cfg.DecayMinDurationS,
		minCycles:    cfg.DecayMinCycles,
	}
}

// TDEnvelope fits the Hilbert envelope of y with the given variant
func TDEnvelope(y []float64, fs, fn float64, cfg config.EstimatorConfig, variant Variant) Fit {
	full, est := TDEnvelopeFits(y, fs, fn, cfg)
	if variant == VariantEstablished {
		return est
	}
	return full
}

// TDEnvelopeFits computes both time-domain fits from one envelope.
//
// The full fit starts at the transient. The established fit scans start
// points from the transient to EstablishedMinS in EstablishedStepS steps and
// takes the first whose R² reaches EstablishedR2Min; when none does it fits
// from EstablishedMinS. ζ = -m/ω where m is the slope of ln(env).
func TDEnvelopeFits(y []float64, fs, fn float64, cfg config.EstimatorConfig) (full, est Fit) {
	n := len(y)
	if n < int(minDecaySeconds*fs) {
		short := failedFit(0, n, 0, 0, modal.TooShortDecay)
		return short, short
	}

	e := temporal.NewEnvelope().ComputeHilbert(y)
	p := decayParams(cfg)

	i0Floor := common.RoundInt(math.Max(0, cfg.TransientS) * fs)
	i0Min := common.RoundInt(math.Max(cfg.TransientS, cfg.EstablishedMinS) * fs)
	i0Floor = max(0, min(i0Floor, n-minFitSamples))
	i0Min = max(i0Floor, min(i0Min, n-minFitSamples))

	full = checkTD(fitSegment(e, fs, fn, i0Floor, p))

	step := max(1, common.RoundInt(cfg.EstablishedStepS*fs))
	for i0 := i0Floor; i0 <= i0Min; i0 += step {
		cand := fitSegment(e, fs, fn, i0, p)
		if !common.IsFinite(cand.R2) {
			continue
		}
		if cand.R2 >= cfg.EstablishedR2Min {
			return full, checkTD(cand)
		}
	}

	return full, checkTD(fitSegment(e, fs, fn, i0Min, p))
}

// checkTD replaces a ζ that is not a positive finite number with NaN and
// flags it. The slope stays in LogM.
func checkTD(f Fit) Fit {
	if f.ReasonCodes.Has(modal.TooShortDecay) {
		return f
	}
	if !common.IsFinite(f.Zeta) || f.Zeta <= 0 {
		f.Zeta = math.NaN()
		f.ReasonCodes = f.ReasonCodes.With(modal.BadZetaTD)
	}
	return f
}

// Accepted reports whether an established fit is good enough to stand on
// its own, as opposed to falling back to the full fit
func Accepted(f Fit, r2Min float64) bool {
	return common.IsFinite(f.Zeta) &&
		!f.ReasonCodes.Has(modal.TooShortDecay) &&
		common.IsFinite(f.R2) &&
		f.R2 >= r2Min
}
