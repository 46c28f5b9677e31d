package estimators

import (
	"math"

	"github.com/RyanBlaney/sonido-modal/algorithms/common"
	"github.com/RyanBlaney/sonido-modal/algorithms/temporal"
	"github.com/RyanBlaney/sonido-modal/modal"
	"github.com/RyanBlaney/sonido-modal/modal/config"
)

// EnergyEnvelope fits the decay of the squared Hilbert envelope from the
// transient on. Energy decays at 2σ, so ζ = α/(4ω) is half the modal
// damping; the result always carries EFFECTIVE_DAMPING_ONLY.
func EnergyEnvelope(y []float64, fs, fn float64, cfg config.EstimatorConfig) Fit {
	n := len(y)
	if n < int(minDecaySeconds*fs) {
		return failedFit(0, n, 0, 0, modal.TooShortDecay, modal.EffectiveDampingOnly)
	}

	energy := temporal.NewEnvelope().ComputeEnergy(y)

	i0 := common.RoundInt(math.Max(0, cfg.TransientS) * fs)
	i0 = max(0, min(i0, n-minFitSamples))

	p := decayParams(cfg)
	i1 := ChooseFitEnd(energy, fs, i0, p.fitMaxS, p.noiseTailS, p.noiseMult)
	duration := float64(i1-i0) / fs
	cycles := duration * fn
	if duration < p.minDurationS || cycles < p.minCycles {
		return failedFit(i0, i1, 0, 0, modal.TooShortDecay, modal.EffectiveDampingOnly)
	}

	logC, logM, r2 := fitLog(energy[i0:i1], fs)
	zeta := -logM / (4*2*math.Pi*fn + eps)
	if !common.IsFinite(zeta) || zeta <= 0 {
		return failedFit(i0, i1, 0, 0, modal.BadZetaEnergy, modal.EffectiveDampingOnly)
	}

	return Fit{
		Zeta:        zeta,
		R2:          r2,
		LogC:        logC,
		LogM:        logM,
		I0:          i0,
		I1:          i1,
		DurationS:   duration,
		Cycles:      cycles,
		ReasonCodes: modal.ReasonCodes{modal.EffectiveDampingOnly},
	}
}
