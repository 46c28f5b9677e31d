// Package diagnostics scores how far an isolated mode signal departs from a
// clean single-exponential ring-down. None of the scores produces ζ; their
// reason codes are shared by every estimate of the same (hit, peak) pair.
package diagnostics

import (
	"math"

	"github.com/RyanBlaney/sonido-modal/algorithms/common"
	"github.com/RyanBlaney/sonido-modal/algorithms/stats"
	"github.com/RyanBlaney/sonido-modal/algorithms/temporal"
	"github.com/RyanBlaney/sonido-modal/modal"
	"github.com/RyanBlaney/sonido-modal/modal/config"
)

const eps = 2.220446049250313e-16

// Diagnostic keys shared by every estimate row of a pair
const (
	KeyBeatingScore         = "beating_score"
	KeyEnvelopeIncreaseFrac = "envelope_increase_frac"
	KeyInstFreqJitter       = "inst_freq_rel_jitter"
	KeyFilterQ              = "filter_q_factor"
)

// Report holds the scores for one isolated mode signal. Scores that could
// not be computed are NaN.
type Report struct {
	BeatingScore         float64
	EnvelopeIncreaseFrac float64
	InstFreqMedian       float64
	InstFreqJitter       float64
	FilterQ              float64
	ReasonCodes          modal.ReasonCodes
}

// Diagnostics renders the report as result diagnostics, NaN as nil
func (r Report) Diagnostics() modal.Diagnostics {
	d := modal.Diagnostics{}
	d.SetFloat(KeyBeatingScore, r.BeatingScore)
	d.SetFloat(KeyEnvelopeIncreaseFrac, r.EnvelopeIncreaseFrac)
	d.SetFloat(KeyInstFreqJitter, r.InstFreqJitter)
	d.SetFloat(KeyFilterQ, r.FilterQ)
	return d
}

// Compute runs every check on y, the band-passed mode signal around fi,
// isolated with the band [lo, hi]
func Compute(y []float64, fs, fi, lo, hi, transientS float64, cfg config.DiagnosticsConfig) Report {
	env := temporal.NewEnvelope()
	r := Report{}

	var codes modal.ReasonCodes

	var flagged bool
	r.BeatingScore, flagged = Beating(y, fs, fi, transientS, cfg.BeatingScoreMax, env)
	if flagged {
		codes = codes.With(modal.BeatingDetected)
	}

	r.EnvelopeIncreaseFrac, flagged = Monotonicity(y, fs, fi, transientS, cfg.EnvelopeIncreaseFracMax, env)
	if flagged {
		codes = codes.With(modal.EnvelopeNonMonotonic)
	}

	r.InstFreqMedian, r.InstFreqJitter, flagged = InstFreqJitter(y, fs, transientS, cfg.InstFreqJitterMax, env)
	if flagged {
		codes = codes.With(modal.InstantFreqDrift)
	}

	var code modal.ReasonCode
	r.FilterQ, code = FilterRisk(fi, lo, hi, cfg.FilterQMax)
	if code != "" {
		codes = codes.With(code)
	}

	r.ReasonCodes = codes
	return r
}

func transientIndex(transientS, fs float64) int {
	return common.RoundInt(math.Max(0, transientS) * fs)
}

// Beating measures envelope modulation past the transient as the RMS
// residual of a straight-line fit to ln(env). When that fit is degenerate
// the relative residual from a moving-average trend is used instead.
func Beating(y []float64, fs, fi, transientS, maxScore float64, env *temporal.Envelope) (float64, bool) {
	if len(y) < 8 {
		return math.NaN(), false
	}
	e := env.ComputeHilbert(y)
	i0 := transientIndex(transientS, fs)
	if i0 >= len(e) || len(e)-i0 < 8 {
		return math.NaN(), false
	}
	e = e[i0:]

	score, ok := logResidualRMS(e, fs)
	if !ok {
		score = trendResidualRMS(e, fs, fi)
	}
	return score, score >= maxScore
}

func logResidualRMS(e []float64, fs float64) (float64, bool) {
	t := make([]float64, len(e))
	ln := make([]float64, len(e))
	for i, v := range e {
		t[i] = float64(i) / fs
		ln[i] = math.Log(math.Max(v, eps))
	}
	slope, intercept, _ := common.LinRegression(t, ln)
	if !common.IsFinite(slope) || !common.IsFinite(intercept) {
		return 0, false
	}

	ss := 0.0
	for i := range ln {
		r := ln[i] - (intercept + slope*t[i])
		ss += r * r
	}
	return math.Sqrt(ss / float64(len(ln))), true
}

func trendResidualRMS(e []float64, fs, fi float64) float64 {
	windowS := math.Max(0.05, 5/math.Max(fi, 1))
	n := max(5, common.RoundInt(windowS*fs))
	if n%2 == 0 {
		n++
	}
	trend := common.MovingAverage(e, n)

	ss := 0.0
	for i := range e {
		rel := (e[i] - trend[i]) / math.Max(trend[i], eps)
		ss += rel * rel
	}
	return math.Sqrt(ss / float64(len(e)))
}

// Monotonicity returns the fraction of post-transient steps where the
// envelope, smoothed over one period of fi, increases
func Monotonicity(y []float64, fs, fi, transientS, maxFrac float64, env *temporal.Envelope) (float64, bool) {
	if len(y) < 8 {
		return math.NaN(), false
	}
	e := env.ComputeHilbert(y)
	i0 := transientIndex(transientS, fs)
	if len(e)-i0 < 8 {
		return math.NaN(), false
	}

	period := 1
	if fi > 0 {
		period = max(1, common.RoundInt(fs/fi))
	}
	smoothed := env.ComputeSmoothed(e[i0:], period)

	increases := 0
	for i := 1; i < len(smoothed); i++ {
		if smoothed[i] > smoothed[i-1] {
			increases++
		}
	}
	frac := float64(increases) / float64(len(smoothed)-1)
	return frac, frac > maxFrac
}

// InstFreqJitter returns the median instantaneous frequency past the
// transient and its relative robust spread 1.4826·MAD/|median|
func InstFreqJitter(y []float64, fs, transientS, maxJitter float64, env *temporal.Envelope) (median, jitter float64, flagged bool) {
	if len(y) < 16 {
		return math.NaN(), math.NaN(), false
	}
	f := env.InstantaneousFrequency(y, fs)
	i0 := transientIndex(transientS, fs)
	if i0 >= len(f) || len(f)-i0 < 8 {
		return math.NaN(), math.NaN(), false
	}

	median, mad := stats.MAD(f[i0:])
	jitter = stats.MADToSigma * mad / math.Max(math.Abs(median), eps)
	return median, jitter, jitter >= maxJitter
}

// FilterRisk returns Q = fi/(hi-lo). A non-positive bandwidth yields NaN and
// FILTER_INVALID_BAND; Q at or above qMax yields FILTER_RINGING_RISK.
func FilterRisk(fi, lo, hi, qMax float64) (float64, modal.ReasonCode) {
	bw := hi - lo
	if bw <= 0 || math.IsNaN(bw) {
		return math.NaN(), modal.FilterInvalidBand
	}
	q := fi / math.Max(bw, eps)
	if q >= qMax {
		return q, modal.FilterRingingRisk
	}
	return q, ""
}
