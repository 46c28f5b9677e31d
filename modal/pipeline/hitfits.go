package pipeline

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/RyanBlaney/sonido-modal/algorithms/common"
	"github.com/RyanBlaney/sonido-modal/logging"
	"github.com/RyanBlaney/sonido-modal/modal"
	"github.com/RyanBlaney/sonido-modal/modal/config"
	"github.com/RyanBlaney/sonido-modal/modal/estimators"
	"github.com/RyanBlaney/sonido-modal/modal/peaks"
)

// Legacy reject reasons
const (
	RejectRingdownTooShort = "ringdown_too_short"
	RejectNoPeak           = "no_peak_found"
	RejectTooShortDecay    = "too_short_decay"
	RejectBadZeta          = "bad_zeta"
	RejectLowR2            = "low_r2"
)

// minRingFraction of a second is the shortest ring segment worth fitting
const minRingFraction = 0.1

// HitFit is the compact one-row-per-hit report: the primary peak's
// established envelope fit, falling back to the full fit when the
// established one is not accepted. Times are absolute, in seconds.
type HitFit struct {
	HitID        int      `json:"hit_id" yaml:"hit_id"`
	HitIndex     int      `json:"hit_index" yaml:"hit_index"`
	T0S          float64  `json:"t0_s" yaml:"t0_s"`
	T1S          float64  `json:"t1_s" yaml:"t1_s"`
	FnHz         *float64 `json:"fn_hz" yaml:"fn_hz"`
	Zeta         *float64 `json:"zeta" yaml:"zeta"`
	SNRdB        *float64 `json:"snr_db" yaml:"snr_db"`
	EnvFitR2     *float64 `json:"env_fit_r2" yaml:"env_fit_r2"`
	EnvLogC      *float64 `json:"env_log_c" yaml:"env_log_c"`
	EnvLogM      *float64 `json:"env_log_m" yaml:"env_log_m"`
	Variant      string   `json:"variant" yaml:"variant"`
	RejectReason string   `json:"reject_reason" yaml:"reject_reason"`
	FitT0S       *float64 `json:"fit_t0_s" yaml:"fit_t0_s"`
	FitT1S       *float64 `json:"fit_t1_s" yaml:"fit_t1_s"`
}

// Rejected reports whether the hit fit carries a reject reason
func (h HitFit) Rejected() bool {
	return h.RejectReason != ""
}

// HitFits builds the per-hit report for the primary (rank 1) global peak,
// re-located in each hit's own spectrum.
func HitFits(windows []modal.HitWindow, global *peaks.GlobalResult, fs float64, cfg config.Config) []HitFit {
	logger := logging.WithFields(logging.Fields{
		"component": "pipeline",
		"function":  "HitFits",
	})

	out := make([]HitFit, 0, len(windows))
	var primary []modal.PeakCandidate
	if global != nil && len(global.Peaks) > 0 && !global.Peaks[0].IsPlaceholder() {
		primary = global.Peaks[:1]
	}

	for h, w := range windows {
		var peak *modal.PeakCandidate
		if primary != nil {
			refined := primary
			if h < len(global.PSDs) {
				refined = peaks.Refine(global.PSDs[h], primary, cfg.Peaks.RefineSearchHz, cfg.Peaks.Band)
			}
			peak = &refined[0]
		}
		out = append(out, hitFit(w, peak, fs, cfg))
	}

	rejected := 0
	for _, f := range out {
		if f.Rejected() {
			rejected++
		}
	}
	logger.Debug("Hit fits computed", logging.Fields{
		"hits":     len(out),
		"rejected": rejected,
	})
	return out
}

func hitFit(w modal.HitWindow, peak *modal.PeakCandidate, fs float64, cfg config.Config) HitFit {
	ec := cfg.Estimators
	start := w.PreSamples() + common.RoundInt(ec.SettleS*fs)
	end := min(len(w.Accel), start+common.RoundInt(ec.RingS*fs))

	row := HitFit{
		HitID:    w.HitID,
		HitIndex: w.HitIndex,
		T0S:      w.TStart + float64(start)/fs,
		T1S:      w.TStart + float64(max(start, end))/fs,
	}

	if start < 0 || end-start < int(minRingFraction*fs) {
		row.RejectReason = RejectRingdownTooShort
		return row
	}
	seg := w.Accel[start:end]
	row.SNRdB = modal.Float(segmentSNR(seg))

	if peak == nil {
		row.RejectReason = RejectNoPeak
		return row
	}
	fn := peak.EffectiveFreq()
	row.FnHz = modal.Float(fn)

	iso := estimators.Isolate(seg, fs, fn, ec)
	if iso.Signal == nil {
		row.RejectReason = RejectNoPeak
		return row
	}

	full, est := estimators.TDEnvelopeFits(iso.Signal, fs, fn, ec)
	fit, variant := est, estimators.VariantEstablished
	if !estimators.Accepted(est, ec.EstablishedR2Min) {
		fit, variant = full, estimators.VariantFull
	}

	row.Variant = string(variant)
	row.Zeta = modal.Float(fit.Zeta)
	row.EnvFitR2 = modal.Float(fit.R2)
	row.EnvLogC = modal.Float(fit.LogC)
	row.EnvLogM = modal.Float(fit.LogM)
	row.FitT0S = modal.Float(w.TStart + float64(start+fit.I0)/fs)
	row.FitT1S = modal.Float(w.TStart + float64(start+fit.I1)/fs)

	switch {
	case fit.ReasonCodes.Has(modal.TooShortDecay):
		row.RejectReason = RejectTooShortDecay
	case !common.IsFinite(fit.Zeta) || fit.Zeta <= 0:
		row.RejectReason = RejectBadZeta
	case !common.IsFinite(fit.R2) || fit.R2 < ec.EstablishedR2Min:
		row.RejectReason = RejectLowR2
	}
	return row
}

// segmentSNR compares the spread of the first fifth of a ring segment to
// the spread of its last fifth
func segmentSNR(x []float64) float64 {
	n := len(x)
	head := x[:n/5]
	tail := x[4*n/5:]
	return 20 * math.Log10((stddev(head)+1e-12)/(stddev(tail)+1e-12))
}

func stddev(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	_, std := stat.PopMeanStdDev(x, nil)
	return std
}
