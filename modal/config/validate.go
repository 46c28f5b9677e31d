package config

import (
	"fmt"
	"math"

	"go.uber.org/multierr"
)

// Validate checks every section and returns all violations combined.
// Use multierr.Errors to inspect them individually.
func (c Config) Validate() error {
	err := multierr.Combine(
		c.Window.Validate(),
		c.PSD.Validate(),
		c.Peaks.Validate(),
		c.Estimators.Validate(),
		c.Diagnostics.Validate(),
	)
	if c.Workers < 0 {
		err = multierr.Append(err, fmt.Errorf("workers cannot be negative, got %d", c.Workers))
	}
	return err
}

func positive(name string, v float64) error {
	if !(v > 0) || math.IsInf(v, 0) {
		return fmt.Errorf("%s must be positive, got %v", name, v)
	}
	return nil
}

func nonNegative(name string, v float64) error {
	if !(v >= 0) || math.IsInf(v, 0) {
		return fmt.Errorf("%s cannot be negative, got %v", name, v)
	}
	return nil
}

// Validate checks the hit detection options
func (w WindowConfig) Validate() error {
	var err error
	err = multierr.Append(err, nonNegative("window.pre_s", w.PreS))
	err = multierr.Append(err, positive("window.post_s", w.PostS))
	err = multierr.Append(err, positive("window.min_separation_s", w.MinSeparationS))
	err = multierr.Append(err, positive("window.threshold_sigma", w.ThresholdSigma))
	err = multierr.Append(err, positive("window.baseline_s", w.BaselineS))
	err = multierr.Append(err, positive("window.highpass_hz", w.HighpassHz))
	err = multierr.Append(err, nonNegative("window.smooth_s", w.SmoothS))
	err = multierr.Append(err, nonNegative("window.prominence_factor", w.ProminenceFactor))
	if w.HighpassOrder < 1 {
		err = multierr.Append(err, fmt.Errorf("window.highpass_order must be >= 1, got %d", w.HighpassOrder))
	}
	if _, perr := ParsePolarity(string(w.Polarity)); perr != nil {
		err = multierr.Append(err, fmt.Errorf("window.polarity: %w", perr))
	}
	return err
}

// Validate checks the Welch options
func (p PSDConfig) Validate() error {
	var err error
	err = multierr.Append(err, positive("psd.df_target_hz", p.DfTargetHz))
	if p.NpersegMin < 16 {
		err = multierr.Append(err, fmt.Errorf("psd.nperseg_min must be >= 16, got %d", p.NpersegMin))
	}
	if p.NpersegMax < p.NpersegMin {
		err = multierr.Append(err, fmt.Errorf("psd.nperseg_max (%d) must be >= nperseg_min (%d)", p.NpersegMax, p.NpersegMin))
	}
	if !(p.OverlapFrac >= 0 && p.OverlapFrac < 1) {
		err = multierr.Append(err, fmt.Errorf("psd.overlap_frac must be in [0, 1), got %v", p.OverlapFrac))
	}
	if _, werr := p.Welch(); werr != nil {
		err = multierr.Append(err, fmt.Errorf("psd: %w", werr))
	}
	return err
}

// Validate checks one band's detection options
func (b BandConfig) Validate(prefix string) error {
	var err error
	err = multierr.Append(err, nonNegative(prefix+".fmin_hz", b.FminHz))
	if !(b.FmaxHz > b.FminHz) {
		err = multierr.Append(err, fmt.Errorf("%s.fmax_hz (%v) must exceed fmin_hz (%v)", prefix, b.FmaxHz, b.FminHz))
	}
	if !(b.NoiseFloorPercentile >= 0 && b.NoiseFloorPercentile <= 100) {
		err = multierr.Append(err, fmt.Errorf("%s.noise_floor_percentile must be in [0, 100], got %v", prefix, b.NoiseFloorPercentile))
	}
	if math.IsNaN(b.MinSNRdB) {
		err = multierr.Append(err, fmt.Errorf("%s.min_snr_db is NaN", prefix))
	}
	if b.MaxCandidates < 1 {
		err = multierr.Append(err, fmt.Errorf("%s.max_candidates must be >= 1, got %d", prefix, b.MaxCandidates))
	}
	return err
}

// Validate checks peak selection options
func (p PeakConfig) Validate() error {
	err := p.Band.Validate("peaks.band")
	if p.LowBand.Enabled {
		err = multierr.Append(err, p.LowBand.Band().Validate("peaks.low_band"))
	}
	err = multierr.Append(err, nonNegative("peaks.merge_abs_hz", p.MergeAbsHz))
	err = multierr.Append(err, nonNegative("peaks.merge_frac", p.MergeFrac))
	err = multierr.Append(err, nonNegative("peaks.coupled_abs_hz", p.CoupledAbsHz))
	err = multierr.Append(err, nonNegative("peaks.coupled_frac", p.CoupledFrac))
	err = multierr.Append(err, positive("peaks.refine_search_hz", p.RefineSearchHz))
	err = multierr.Append(err, nonNegative("peaks.support_abs_hz", p.SupportAbsHz))
	err = multierr.Append(err, nonNegative("peaks.support_frac", p.SupportFrac))
	if p.CoupledAbsHz < p.MergeAbsHz || p.CoupledFrac < p.MergeFrac {
		err = multierr.Append(err, fmt.Errorf("peaks coupled tolerance (%v Hz, %v) must not be narrower than merge tolerance (%v Hz, %v)",
			p.CoupledAbsHz, p.CoupledFrac, p.MergeAbsHz, p.MergeFrac))
	}
	if p.MinDetectionHits < 0 {
		err = multierr.Append(err, fmt.Errorf("peaks.min_detection_hits cannot be negative, got %d", p.MinDetectionHits))
	}
	return err
}

// Validate checks estimator options
func (e EstimatorConfig) Validate() error {
	var err error
	err = multierr.Append(err, nonNegative("estimators.settle_s", e.SettleS))
	err = multierr.Append(err, positive("estimators.ring_s", e.RingS))
	err = multierr.Append(err, nonNegative("estimators.transient_s", e.TransientS))
	err = multierr.Append(err, nonNegative("estimators.established_min_s", e.EstablishedMinS))
	err = multierr.Append(err, positive("estimators.established_step_s", e.EstablishedStepS))
	err = multierr.Append(err, positive("estimators.fit_max_s", e.FitMaxS))
	err = multierr.Append(err, positive("estimators.noise_tail_s", e.NoiseTailS))
	err = multierr.Append(err, positive("estimators.noise_mult", e.NoiseMult))
	err = multierr.Append(err, nonNegative("estimators.decay_min_duration_s", e.DecayMinDurationS))
	err = multierr.Append(err, nonNegative("estimators.decay_min_cycles", e.DecayMinCycles))
	err = multierr.Append(err, positive("estimators.band_low_frac", e.BandLowFrac))

	if !(e.EstablishedR2Min >= 0 && e.EstablishedR2Min <= 1) {
		err = multierr.Append(err, fmt.Errorf("estimators.established_r2_min must be in [0, 1], got %v", e.EstablishedR2Min))
	}
	if e.EstablishedMinS < e.TransientS {
		err = multierr.Append(err, fmt.Errorf("estimators.established_min_s (%v) must not precede transient_s (%v)", e.EstablishedMinS, e.TransientS))
	}
	if e.FitMaxS < e.DecayMinDurationS {
		err = multierr.Append(err, fmt.Errorf("estimators.fit_max_s (%v) is shorter than decay_min_duration_s (%v); every fit would be too short",
			e.FitMaxS, e.DecayMinDurationS))
	}
	if !(e.BandHighFrac > e.BandLowFrac) {
		err = multierr.Append(err, fmt.Errorf("estimators.band_high_frac (%v) must exceed band_low_frac (%v)", e.BandHighFrac, e.BandLowFrac))
	}
	if e.FilterOrder < 1 {
		err = multierr.Append(err, fmt.Errorf("estimators.filter_order must be >= 1, got %d", e.FilterOrder))
	}
	if e.ClipLevel > 1 || math.IsNaN(e.ClipLevel) {
		err = multierr.Append(err, fmt.Errorf("estimators.clip_level must be <= 1, got %v", e.ClipLevel))
	}
	if e.ClipMinRun < 1 {
		err = multierr.Append(err, fmt.Errorf("estimators.clip_min_run must be >= 1, got %d", e.ClipMinRun))
	}
	return err
}

// Validate checks diagnostic thresholds
func (d DiagnosticsConfig) Validate() error {
	var err error
	err = multierr.Append(err, positive("diagnostics.beating_score_max", d.BeatingScoreMax))
	err = multierr.Append(err, positive("diagnostics.inst_freq_jitter_max", d.InstFreqJitterMax))
	err = multierr.Append(err, positive("diagnostics.filter_q_max", d.FilterQMax))
	if !(d.EnvelopeIncreaseFracMax >= 0 && d.EnvelopeIncreaseFracMax <= 1) {
		err = multierr.Append(err, fmt.Errorf("diagnostics.envelope_increase_frac_max must be in [0, 1], got %v", d.EnvelopeIncreaseFracMax))
	}
	return err
}
