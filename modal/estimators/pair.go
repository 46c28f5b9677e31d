package estimators

import (
	"math"

	"github.com/RyanBlaney/sonido-modal/algorithms/spectral"
	"github.com/RyanBlaney/sonido-modal/logging"
	"github.com/RyanBlaney/sonido-modal/modal"
	"github.com/RyanBlaney/sonido-modal/modal/config"
	"github.com/RyanBlaney/sonido-modal/modal/diagnostics"
)

// Method-specific diagnostic keys
const (
	KeyEnvFitR2        = "env_fit_r2"
	KeyEnvFitDurationS = "env_fit_duration_s"
	KeyEnvFitCycles    = "env_fit_cycles"
	KeyEnvLogM         = "env_log_m"
	KeyF1Hz            = "f1_hz"
	KeyF2Hz            = "f2_hz"
	KeyFDPeakPower     = "fd_peak_power"
	KeyEnergyFitR2     = "energy_fit_r2"
	KeyEnergyDurationS = "energy_fit_duration_s"
	KeyEnergyFitCycles = "energy_fit_cycles"
	KeyFilterLoHz      = "filter_lo_hz"
	KeyFilterHiHz      = "filter_hi_hz"
)

// EstimatePair runs every estimator for one (hit, peak) pair and returns
// exactly one classified row per method, in Methods() order. Diagnostics
// are computed once; their codes, the peak's own codes and clip detection
// are shared by all four rows. Failures never escape as errors: each row
// carries reason codes instead.
func EstimatePair(w modal.HitWindow, peak modal.PeakCandidate, fs float64, cfg config.Config) []modal.EstimateResult {
	logger := logging.WithFields(logging.Fields{
		"component": "estimators",
		"function":  "EstimatePair",
		"hit_id":    w.HitID,
		"peak_rank": peak.Rank,
	})

	row := func(method modal.Method, zeta float64, codes modal.ReasonCodes, diag modal.Diagnostics) modal.EstimateResult {
		return modal.EstimateResult{
			HitID:       w.HitID,
			PeakRank:    peak.Rank,
			Method:      method,
			FBinHz:      peak.FBinHz,
			FRefinedHz:  peak.FRefinedHz,
			Zeta:        modal.Float(zeta),
			ReasonCodes: codes,
			Diagnostics: diag,
		}.WithStatus()
	}

	if peak.IsPlaceholder() {
		return notComputed(row, peak.ReasonCodes, emptyCommon())
	}

	ec := cfg.Estimators
	fn := peak.EffectiveFreq()
	raw := w.RingSegment(ec.SettleS, ec.RingS)

	shared := peak.ReasonCodes
	if Clipped(raw, ec.ClipLevel, ec.ClipMinRun) {
		shared = shared.With(modal.ClippedSignal)
	}

	iso := Isolate(raw, fs, fn, ec)
	if iso.ReasonCodes.Has(modal.FilterDesignFailed) {
		logger.Warn("Band-pass design failed", logging.Fields{"lo_hz": iso.LoHz, "hi_hz": iso.HiHz})
		common := emptyCommon()
		common.SetFloat(KeyFilterLoHz, iso.LoHz)
		common.SetFloat(KeyFilterHiHz, iso.HiHz)
		return notComputed(row, iso.ReasonCodes.Union(shared), common)
	}
	y := iso.Signal

	report := diagnostics.Compute(y, fs, fn, iso.LoHz, iso.HiHz, ec.TransientS, cfg.Diagnostics)
	common := report.Diagnostics()
	common.SetFloat(KeyFilterLoHz, iso.LoHz)
	common.SetFloat(KeyFilterHiHz, iso.HiHz)
	shared = report.ReasonCodes.Union(shared)

	results := make([]modal.EstimateResult, 0, len(modal.Methods()))

	full, est := TDEnvelopeFits(y, fs, fn, ec)
	for _, tf := range []struct {
		method modal.Method
		fit    Fit
	}{
		{modal.MethodTDEnvelopeFull, full},
		{modal.MethodTDEnvelopeEst, est},
	} {
		d := modal.Diagnostics{}
		d.SetFloat(KeyEnvFitR2, tf.fit.R2)
		d.SetFloat(KeyEnvFitDurationS, tf.fit.DurationS)
		d.SetFloat(KeyEnvFitCycles, tf.fit.Cycles)
		d.SetFloat(KeyEnvLogM, tf.fit.LogM)
		results = append(results, row(tf.method, tf.fit.Zeta, shared.Union(tf.fit.ReasonCodes), d.Merge(common)))
	}

	hp := halfPowerFor(y, fs, fn, peak, cfg)
	d := modal.Diagnostics{}
	d.SetFloat(KeyF1Hz, hp.F1Hz)
	d.SetFloat(KeyF2Hz, hp.F2Hz)
	d.SetFloat(KeyFDPeakPower, hp.PeakPower)
	results = append(results, row(modal.MethodFDHalfPower, hp.Zeta, shared.Union(hp.ReasonCodes), d.Merge(common)))

	energy := EnergyEnvelope(y, fs, fn, ec)
	d = modal.Diagnostics{}
	d.SetFloat(KeyEnergyFitR2, energy.R2)
	d.SetFloat(KeyEnergyDurationS, energy.DurationS)
	d.SetFloat(KeyEnergyFitCycles, energy.Cycles)
	results = append(results, row(modal.MethodEnergyEnvelopeSq, energy.Zeta, shared.Union(energy.ReasonCodes), d.Merge(common)))

	logger.Debug("Pair estimated", logging.Fields{
		"fn_hz":        fn,
		"reason_codes": shared.Strings(),
	})
	return results
}

func halfPowerFor(y []float64, fs, fn float64, peak modal.PeakCandidate, cfg config.Config) HalfPowerResult {
	coupled := peak.ReasonCodes.IsCoupled()

	welch, err := cfg.PSD.Welch()
	if err != nil {
		return HalfPower(nil, nil, fn, coupled, peak.DetectionCount, cfg.Peaks.MinDetectionHits)
	}
	psd, err := spectral.Welch(y, fs, welch)
	if err != nil {
		return HalfPower(nil, nil, fn, coupled, peak.DetectionCount, cfg.Peaks.MinDetectionHits)
	}
	return HalfPower(psd.Freqs, psd.Power, fn, coupled, peak.DetectionCount, cfg.Peaks.MinDetectionHits)
}

type rowFunc func(modal.Method, float64, modal.ReasonCodes, modal.Diagnostics) modal.EstimateResult

// notComputed yields one ζ-less row per method with the given codes
func notComputed(row rowFunc, codes modal.ReasonCodes, common modal.Diagnostics) []modal.EstimateResult {
	out := make([]modal.EstimateResult, 0, len(modal.Methods()))
	for _, m := range modal.Methods() {
		c := codes
		if m == modal.MethodEnergyEnvelopeSq {
			c = c.With(modal.EffectiveDampingOnly)
		}
		out = append(out, row(m, math.NaN(), c, common.Merge(nil)))
	}
	return out
}

func emptyCommon() modal.Diagnostics {
	return modal.Diagnostics{
		diagnostics.KeyBeatingScore:         nil,
		diagnostics.KeyEnvelopeIncreaseFrac: nil,
		diagnostics.KeyInstFreqJitter:       nil,
		diagnostics.KeyFilterQ:              nil,
	}
}
