package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/RyanBlaney/sonido-modal/algorithms/spectral"
	"github.com/RyanBlaney/sonido-modal/algorithms/windowing"
)

// Polarity selects how the high-passed hammer signal is rectified
type Polarity string

const (
	PolarityAbs      Polarity = "abs"
	PolarityPositive Polarity = "positive"
	PolarityNegative Polarity = "negative"
)

// ParsePolarity validates a polarity name
func ParsePolarity(name string) (Polarity, error) {
	switch p := Polarity(strings.ToLower(strings.TrimSpace(name))); p {
	case PolarityAbs, PolarityPositive, PolarityNegative:
		return p, nil
	default:
		return "", fmt.Errorf("unsupported polarity %q", name)
	}
}

// WindowConfig drives hit detection and window extraction
type WindowConfig struct {
	PreS             float64  `json:"pre_s" yaml:"pre_s" mapstructure:"pre_s"`
	PostS            float64  `json:"post_s" yaml:"post_s" mapstructure:"post_s"`
	MinSeparationS   float64  `json:"min_separation_s" yaml:"min_separation_s" mapstructure:"min_separation_s"`
	ThresholdSigma   float64  `json:"threshold_sigma" yaml:"threshold_sigma" mapstructure:"threshold_sigma"`
	BaselineS        float64  `json:"baseline_s" yaml:"baseline_s" mapstructure:"baseline_s"`
	Polarity         Polarity `json:"polarity" yaml:"polarity" mapstructure:"polarity"`
	HighpassHz       float64  `json:"highpass_hz" yaml:"highpass_hz" mapstructure:"highpass_hz"`
	HighpassOrder    int      `json:"highpass_order" yaml:"highpass_order" mapstructure:"highpass_order"`
	SmoothS          float64  `json:"smooth_s" yaml:"smooth_s" mapstructure:"smooth_s"`
	ProminenceFactor float64  `json:"prominence_factor" yaml:"prominence_factor" mapstructure:"prominence_factor"`
}

// PSDConfig fixes the Welch segment policy
type PSDConfig struct {
	DfTargetHz  float64 `json:"df_target_hz" yaml:"df_target_hz" mapstructure:"df_target_hz"`
	NpersegMin  int     `json:"nperseg_min" yaml:"nperseg_min" mapstructure:"nperseg_min"`
	NpersegMax  int     `json:"nperseg_max" yaml:"nperseg_max" mapstructure:"nperseg_max"`
	OverlapFrac float64 `json:"overlap_frac" yaml:"overlap_frac" mapstructure:"overlap_frac"`
	SnapPow2    bool    `json:"snap_pow2" yaml:"snap_pow2" mapstructure:"snap_pow2"`
	Window      string  `json:"window" yaml:"window" mapstructure:"window"`
	Detrend     string  `json:"detrend" yaml:"detrend" mapstructure:"detrend"`
	Scaling     string  `json:"scaling" yaml:"scaling" mapstructure:"scaling"`
}

// Welch converts the options to the spectral package's form
func (c PSDConfig) Welch() (spectral.WelchConfig, error) {
	win, err := windowing.ParseType(c.Window)
	if err != nil {
		return spectral.WelchConfig{}, err
	}
	detrend, err := spectral.ParseDetrend(c.Detrend)
	if err != nil {
		return spectral.WelchConfig{}, err
	}
	scaling, err := spectral.ParseScaling(c.Scaling)
	if err != nil {
		return spectral.WelchConfig{}, err
	}
	return spectral.WelchConfig{
		DfTargetHz:  c.DfTargetHz,
		NpersegMin:  c.NpersegMin,
		NpersegMax:  c.NpersegMax,
		OverlapFrac: c.OverlapFrac,
		PowerOfTwo:  c.SnapPow2,
		Window:      win,
		Detrend:     detrend,
		Scaling:     scaling,
	}, nil
}

// BandConfig bounds peak detection on one frequency band
type BandConfig struct {
	FminHz               float64 `json:"fmin_hz" yaml:"fmin_hz" mapstructure:"fmin_hz"`
	FmaxHz               float64 `json:"fmax_hz" yaml:"fmax_hz" mapstructure:"fmax_hz"`
	NoiseFloorPercentile float64 `json:"noise_floor_percentile" yaml:"noise_floor_percentile" mapstructure:"noise_floor_percentile"`
	MinSNRdB             float64 `json:"min_snr_db" yaml:"min_snr_db" mapstructure:"min_snr_db"`
	MaxCandidates        int     `json:"max_candidates" yaml:"max_candidates" mapstructure:"max_candidates"`
}

// LowBandConfig is an optional secondary band with its own thresholds
type LowBandConfig struct {
	Enabled              bool    `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	FminHz               float64 `json:"fmin_hz" yaml:"fmin_hz" mapstructure:"fmin_hz"`
	FmaxHz               float64 `json:"fmax_hz" yaml:"fmax_hz" mapstructure:"fmax_hz"`
	NoiseFloorPercentile float64 `json:"noise_floor_percentile" yaml:"noise_floor_percentile" mapstructure:"noise_floor_percentile"`
	MinSNRdB             float64 `json:"min_snr_db" yaml:"min_snr_db" mapstructure:"min_snr_db"`
	MaxCandidates        int     `json:"max_candidates" yaml:"max_candidates" mapstructure:"max_candidates"`
}

// Band returns the low band as a BandConfig
func (l LowBandConfig) Band() BandConfig {
	return BandConfig{
		FminHz:               l.FminHz,
		FmaxHz:               l.FmaxHz,
		NoiseFloorPercentile: l.NoiseFloorPercentile,
		MinSNRdB:             l.MinSNRdB,
		MaxCandidates:        l.MaxCandidates,
	}
}

// PeakConfig configures global peak selection, de-duplication and support
type PeakConfig struct {
	Band    BandConfig    `json:"band" yaml:"band" mapstructure:"band"`
	LowBand LowBandConfig `json:"low_band" yaml:"low_band" mapstructure:"low_band"`

	// near-duplicates closer than max(abs, frac*f) are merged
	MergeAbsHz float64 `json:"merge_abs_hz" yaml:"merge_abs_hz" mapstructure:"merge_abs_hz"`
	MergeFrac  float64 `json:"merge_frac" yaml:"merge_frac" mapstructure:"merge_frac"`

	// surviving neighbours closer than max(abs, frac*f) are flagged coupled
	CoupledAbsHz float64 `json:"coupled_abs_hz" yaml:"coupled_abs_hz" mapstructure:"coupled_abs_hz"`
	CoupledFrac  float64 `json:"coupled_frac" yaml:"coupled_frac" mapstructure:"coupled_frac"`

	RefineSearchHz float64 `json:"refine_search_hz" yaml:"refine_search_hz" mapstructure:"refine_search_hz"`

	// cross-hit support matching
	SupportAbsHz     float64 `json:"support_abs_hz" yaml:"support_abs_hz" mapstructure:"support_abs_hz"`
	SupportFrac      float64 `json:"support_frac" yaml:"support_frac" mapstructure:"support_frac"`
	MinDetectionHits int     `json:"min_detection_hits" yaml:"min_detection_hits" mapstructure:"min_detection_hits"`
}

// EstimatorConfig holds the ring segment, fit window and mode isolation options
type EstimatorConfig struct {
	SettleS float64 `json:"settle_s" yaml:"settle_s" mapstructure:"settle_s"`
	RingS   float64 `json:"ring_s" yaml:"ring_s" mapstructure:"ring_s"`

	TransientS       float64 `json:"transient_s" yaml:"transient_s" mapstructure:"transient_s"`
	EstablishedMinS  float64 `json:"established_min_s" yaml:"established_min_s" mapstructure:"established_min_s"`
	EstablishedStepS float64 `json:"established_step_s" yaml:"established_step_s" mapstructure:"established_step_s"`
	EstablishedR2Min float64 `json:"established_r2_min" yaml:"established_r2_min" mapstructure:"established_r2_min"`

	FitMaxS    float64 `json:"fit_max_s" yaml:"fit_max_s" mapstructure:"fit_max_s"`
	NoiseTailS float64 `json:"noise_tail_s" yaml:"noise_tail_s" mapstructure:"noise_tail_s"`
	NoiseMult  float64 `json:"noise_mult" yaml:"noise_mult" mapstructure:"noise_mult"`

	DecayMinDurationS float64 `json:"decay_min_duration_s" yaml:"decay_min_duration_s" mapstructure:"decay_min_duration_s"`
	DecayMinCycles    float64 `json:"decay_min_cycles" yaml:"decay_min_cycles" mapstructure:"decay_min_cycles"`

	BandLowFrac  float64 `json:"band_low_frac" yaml:"band_low_frac" mapstructure:"band_low_frac"`
	BandHighFrac float64 `json:"band_high_frac" yaml:"band_high_frac" mapstructure:"band_high_frac"`
	FilterOrder  int     `json:"filter_order" yaml:"filter_order" mapstructure:"filter_order"`

	// |x| >= ClipLevel counts as clipped on full-scale normalised input; <= 0 disables
	ClipLevel float64 `json:"clip_level" yaml:"clip_level" mapstructure:"clip_level"`
	// minimum run of clipped samples before CLIPPED_SIGNAL is raised
	ClipMinRun int `json:"clip_min_run" yaml:"clip_min_run" mapstructure:"clip_min_run"`
}

// DiagnosticsConfig holds the signal-quality gate thresholds
type DiagnosticsConfig struct {
	BeatingScoreMax         float64 `json:"beating_score_max" yaml:"beating_score_max" mapstructure:"beating_score_max"`
	EnvelopeIncreaseFracMax float64 `json:"envelope_increase_frac_max" yaml:"envelope_increase_frac_max" mapstructure:"envelope_increase_frac_max"`
	InstFreqJitterMax       float64 `json:"inst_freq_jitter_max" yaml:"inst_freq_jitter_max" mapstructure:"inst_freq_jitter_max"`
	FilterQMax              float64 `json:"filter_q_max" yaml:"filter_q_max" mapstructure:"filter_q_max"`
}

// Config is the complete analysis configuration
type Config struct {
	Window      WindowConfig      `json:"window" yaml:"window" mapstructure:"window"`
	PSD         PSDConfig         `json:"psd" yaml:"psd" mapstructure:"psd"`
	Peaks       PeakConfig        `json:"peaks" yaml:"peaks" mapstructure:"peaks"`
	Estimators  EstimatorConfig   `json:"estimators" yaml:"estimators" mapstructure:"estimators"`
	Diagnostics DiagnosticsConfig `json:"diagnostics" yaml:"diagnostics" mapstructure:"diagnostics"`

	// Workers bounds the (hit, peak) pool; 1 runs the single-threaded reference order
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers"`
}

// DefaultWindowConfig returns the hit detection defaults
func DefaultWindowConfig() WindowConfig {
	return WindowConfig{
		PreS:             0.05,
		PostS:            1.5,
		MinSeparationS:   0.30,
		ThresholdSigma:   8.0,
		BaselineS:        2.0,
		Polarity:         PolarityAbs,
		HighpassHz:       200.0,
		HighpassOrder:    4,
		SmoothS:          0.003,
		ProminenceFactor: 8.0,
	}
}

// DefaultPSDConfig returns the Welch defaults
func DefaultPSDConfig() PSDConfig {
	return PSDConfig{
		DfTargetHz:  0.25,
		NpersegMin:  256,
		NpersegMax:  4096,
		OverlapFrac: 0.5,
		SnapPow2:    true,
		Window:      string(windowing.TypeHann),
		Detrend:     string(spectral.DetrendConstant),
		Scaling:     string(spectral.ScalingDensity),
	}
}

// DefaultPeakConfig returns the peak selection defaults
func DefaultPeakConfig() PeakConfig {
	return PeakConfig{
		Band: BandConfig{
			FminHz:               1.0,
			FmaxHz:               2000.0,
			NoiseFloorPercentile: 60.0,
			MinSNRdB:             6.0,
			MaxCandidates:        5,
		},
		LowBand: LowBandConfig{
			Enabled:              false,
			FminHz:               1.0,
			FmaxHz:               50.0,
			NoiseFloorPercentile: 50.0,
			MinSNRdB:             3.0,
			MaxCandidates:        3,
		},
		MergeAbsHz:       0.5,
		MergeFrac:        0.03,
		CoupledAbsHz:     1.0,
		CoupledFrac:      0.06,
		RefineSearchHz:   1.0,
		SupportAbsHz:     2.0,
		SupportFrac:      0.02,
		MinDetectionHits: 2,
	}
}

// DefaultEstimatorConfig returns the estimator defaults
func DefaultEstimatorConfig() EstimatorConfig {
	return EstimatorConfig{
		SettleS:           0.010,
		RingS:             1.0,
		TransientS:        0.20,
		EstablishedMinS:   0.40,
		EstablishedStepS:  0.005,
		EstablishedR2Min:  0.95,
		FitMaxS:           0.80,
		NoiseTailS:        0.20,
		NoiseMult:         3.0,
		DecayMinDurationS: 0.30,
		DecayMinCycles:    8.0,
		BandLowFrac:       0.6,
		BandHighFrac:      1.4,
		FilterOrder:       4,
		ClipLevel:         0.999,
		ClipMinRun:        3,
	}
}

// DefaultDiagnosticsConfig returns the quality gate defaults
func DefaultDiagnosticsConfig() DiagnosticsConfig {
	return DiagnosticsConfig{
		BeatingScoreMax:         0.20,
		EnvelopeIncreaseFracMax: 0.10,
		InstFreqJitterMax:       0.05,
		FilterQMax:              5.0,
	}
}

// Default returns the full default configuration
func Default() Config {
	return Config{
		Window:      DefaultWindowConfig(),
		PSD:         DefaultPSDConfig(),
		Peaks:       DefaultPeakConfig(),
		Estimators:  DefaultEstimatorConfig(),
		Diagnostics: DefaultDiagnosticsConfig(),
		Workers:     runtime.NumCPU(),
	}
}
