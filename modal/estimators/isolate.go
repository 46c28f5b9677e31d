package estimators

import (
	"math"

	"github.com/RyanBlaney/sonido-modal/algorithms/common"
	"github.com/RyanBlaney/sonido-modal/algorithms/filters"
	"github.com/RyanBlaney/sonido-modal/modal"
	"github.com/RyanBlaney/sonido-modal/modal/config"
)

// Band returns the isolation band around fn:
// lo = max(0.5, BandLowFrac·fn), hi = min(0.49·fs, BandHighFrac·fn)
func Band(fn, fs float64, cfg config.EstimatorConfig) (lo, hi float64) {
	lo = math.Max(0.5, cfg.BandLowFrac*fn)
	hi = math.Min(0.49*fs, cfg.BandHighFrac*fn)
	return lo, hi
}

// Isolation is a mean-removed ring segment band-passed around one mode
type Isolation struct {
	Signal []float64
	LoHz   float64
	HiHz   float64
	// Filtered is false when the band was empty and the signal passed through
	Filtered    bool
	ReasonCodes modal.ReasonCodes
}

// Isolate removes the mean of segment and band-passes it around fn with a
// zero-phase Butterworth. An empty band passes the signal unfiltered, which
// the filter-risk diagnostic reports; a failed design returns
// FILTER_DESIGN_FAILED and no signal.
func Isolate(segment []float64, fs, fn float64, cfg config.EstimatorConfig) Isolation {
	lo, hi := Band(fn, fs, cfg)
	iso := Isolation{LoHz: lo, HiHz: hi}

	x := common.RemoveMean(segment)
	if !(hi > lo) {
		iso.Signal = x
		return iso
	}

	sos, err := filters.NewButterworthBandpass(cfg.FilterOrder, fs, lo, hi)
	if err != nil {
		iso.ReasonCodes = iso.ReasonCodes.With(modal.FilterDesignFailed)
		return iso
	}

	iso.Signal = sos.FiltFilt(x)
	iso.Filtered = true
	return iso
}

// Clipped reports whether x holds a run of at least minRun samples with
// |x| >= level. A level of zero or below disables the check.
func Clipped(x []float64, level float64, minRun int) bool {
	if level <= 0 {
		return false
	}
	minRun = max(1, minRun)

	run := 0
	for _, v := range x {
		if math.Abs(v) >= level {
			run++
			if run >= minRun {
				return true
			}
		} else {
			run = 0
		}
	}
	return false
}
