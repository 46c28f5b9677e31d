package modal

import (
	"math"

	"github.com/RyanBlaney/sonido-modal/modal/config"
)

// Status is the terminal classification of one estimate
type Status string

const (
	StatusOK          Status = "ok"
	StatusWarning     Status = "warning"
	StatusRejected    Status = "rejected"
	StatusNotComputed Status = "not_computed"
)

// Statuses lists every status in report order
func Statuses() []Status {
	return []Status{StatusOK, StatusWarning, StatusRejected, StatusNotComputed}
}

// Method names one damping estimator
type Method string

const (
	MethodTDEnvelopeFull   Method = "TD_ENVELOPE_FULL"
	MethodTDEnvelopeEst    Method = "TD_ENVELOPE_EST"
	MethodFDHalfPower      Method = "FD_HALF_POWER"
	MethodEnergyEnvelopeSq Method = "ENERGY_ENVELOPE_SQ"
)

// Methods returns the estimators in output order
func Methods() []Method {
	return []Method{MethodTDEnvelopeFull, MethodTDEnvelopeEst, MethodFDHalfPower, MethodEnergyEnvelopeSq}
}

// HitWindow is one detected impact with aligned samples from both channels.
// Windows are created once by hit detection and must not be modified.
type HitWindow struct {
	HitID      int       `json:"hit_id" yaml:"hit_id"`
	HitIndex   int       `json:"hit_index" yaml:"hit_index"`
	TStart     float64   `json:"t_start" yaml:"t_start"`
	THit       float64   `json:"t_hit" yaml:"t_hit"`
	TEnd       float64   `json:"t_end" yaml:"t_end"`
	SampleRate float64   `json:"sample_rate" yaml:"sample_rate"`
	Hammer     []float64 `json:"-" yaml:"-"`
	Accel      []float64 `json:"-" yaml:"-"`
}

// Len returns the number of samples in the window
func (w HitWindow) Len() int {
	return len(w.Accel)
}

// PreSamples returns the offset of the impact inside the window
func (w HitWindow) PreSamples() int {
	return int(math.Round((w.THit - w.TStart) * w.SampleRate))
}

// RingSegment returns the accel samples from settleS to settleS+ringS after
// the impact, truncated at the window end. The slice aliases the window.
func (w HitWindow) RingSegment(settleS, ringS float64) []float64 {
	start := w.PreSamples() + int(math.Round(settleS*w.SampleRate))
	end := min(len(w.Accel), start+int(math.Round(ringS*w.SampleRate)))
	if start >= end || start < 0 {
		return []float64{}
	}
	return w.Accel[start:end]
}

// DetectionReport records how hit detection arrived at its windows
type DetectionReport struct {
	Found           int                 `json:"found" yaml:"found"`
	Used            int                 `json:"used" yaml:"used"`
	DroppedAtBounds int                 `json:"dropped_at_bounds" yaml:"dropped_at_bounds"`
	Threshold       float64             `json:"threshold" yaml:"threshold"`
	Median          float64             `json:"baseline_median" yaml:"baseline_median"`
	Sigma           float64             `json:"baseline_sigma" yaml:"baseline_sigma"`
	Prominence      float64             `json:"prominence" yaml:"prominence"`
	MinSeparation   int                 `json:"min_separation_samples" yaml:"min_separation_samples"`
	Params          config.WindowConfig `json:"params" yaml:"params"`
}

// PeakCandidate is one candidate resonance. Numeric fields are nil when the
// candidate is the NO_VALID_PEAKS placeholder.
type PeakCandidate struct {
	Rank           int         `json:"rank" yaml:"rank"`
	FBinHz         *float64    `json:"f_bin_hz" yaml:"f_bin_hz"`
	FRefinedHz     *float64    `json:"f_refined_hz" yaml:"f_refined_hz"`
	Power          *float64    `json:"power" yaml:"power"`
	Floor          *float64    `json:"noise_floor" yaml:"noise_floor"`
	SNRdB          *float64    `json:"snr_db" yaml:"snr_db"`
	IsGlobal       bool        `json:"is_global" yaml:"is_global"`
	ReasonCodes    ReasonCodes `json:"reason_codes" yaml:"reason_codes"`
	DetectionCount *int        `json:"detection_count" yaml:"detection_count"`
	DetectionRatio *float64    `json:"detection_ratio" yaml:"detection_ratio"`
}

// Freq returns the bin frequency or NaN for a placeholder
func (p PeakCandidate) Freq() float64 {
	return Value(p.FBinHz)
}

// EffectiveFreq prefers the refined frequency over the bin frequency
func (p PeakCandidate) EffectiveFreq() float64 {
	if p.FRefinedHz != nil {
		return *p.FRefinedHz
	}
	return p.Freq()
}

// IsPlaceholder reports whether the candidate stands in for "no peaks"
func (p PeakCandidate) IsPlaceholder() bool {
	return p.FBinHz == nil
}

// NoValidPeaksCandidate returns the placeholder candidate for an empty peak list
func NoValidPeaksCandidate() PeakCandidate {
	return PeakCandidate{ReasonCodes: ReasonCodes{NoValidPeaks, SNRLow}}
}

// EstimateResult is the outcome of one (hit, peak, method) triple
type EstimateResult struct {
	HitID       int         `json:"hit_id" yaml:"hit_id"`
	PeakRank    int         `json:"peak_rank" yaml:"peak_rank"`
	Method      Method      `json:"method" yaml:"method"`
	FBinHz      *float64    `json:"f_bin_hz" yaml:"f_bin_hz"`
	FRefinedHz  *float64    `json:"f_refined_hz" yaml:"f_refined_hz"`
	Zeta        *float64    `json:"zeta" yaml:"zeta"`
	Status      Status      `json:"status" yaml:"status"`
	ReasonCodes ReasonCodes `json:"reason_codes" yaml:"reason_codes"`
	Diagnostics Diagnostics `json:"diagnostics" yaml:"diagnostics"`
}

// Diagnostics is a flat map of named metrics. Values are finite float64,
// int, or nil for "not computed".
type Diagnostics map[string]any

// SetFloat stores v, or nil when v is NaN or infinite
func (d Diagnostics) SetFloat(key string, v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		d[key] = nil
		return
	}
	d[key] = v
}

// Float returns a stored number, false when absent or nil
func (d Diagnostics) Float(key string) (float64, bool) {
	switch v := d[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

// Merge copies every entry of other into a new map with d's entries on top
func (d Diagnostics) Merge(other Diagnostics) Diagnostics {
	out := make(Diagnostics, len(d)+len(other))
	for k, v := range other {
		out[k] = v
	}
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Float returns a pointer to v, or nil when v is not finite
func Float(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Int returns a pointer to v
func Int(v int) *int {
	return &v
}

// Value dereferences p, returning NaN for nil
func Value(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}
