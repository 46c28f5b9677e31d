package estimators

import (
	"math"

	"github.com/RyanBlaney/sonido-modal/algorithms/common"
	"github.com/RyanBlaney/sonido-modal/modal"
)

// HalfPowerResult is the outcome of the half-power bandwidth method
type HalfPowerResult struct {
	Zeta        float64           `json:"zeta"`
	F1Hz        float64           `json:"f1_hz"`
	F2Hz        float64           `json:"f2_hz"`
	PeakPower   float64           `json:"peak_power"`
	ReasonCodes modal.ReasonCodes `json:"reason_codes"`
}

func failedHalfPower(peakPower float64, codes ...modal.ReasonCode) HalfPowerResult {
	return HalfPowerResult{
		Zeta:        math.NaN(),
		F1Hz:        math.NaN(),
		F2Hz:        math.NaN(),
		PeakPower:   peakPower,
		ReasonCodes: modal.ReasonCodes(codes),
	}
}

// HalfPower estimates ζ = (f2-f1)/(2·fn) from the -3 dB crossings around the
// bin nearest fn. Coupled peaks are refused since their bandwidths overlap.
// A peak seen in fewer than minHits hits gains MULTI_MODE_SUSPECTED; a nil
// detectionCount skips that check.
func HalfPower(freqs, power []float64, fn float64, coupled bool, detectionCount *int, minHits int) HalfPowerResult {
	if len(freqs) == 0 || len(freqs) != len(power) {
		return failedHalfPower(math.NaN(), modal.HalfPowerNotFoundLeft)
	}
	if coupled {
		return failedHalfPower(math.NaN(), modal.PSDMultiPeak, modal.MultiModeSuspected)
	}

	idx := common.NearestIndex(freqs, fn)
	peak := power[idx]
	if !common.IsFinite(peak) || peak <= 0 {
		return failedHalfPower(math.NaN(), modal.BadZetaHP)
	}
	half := 0.5 * peak

	left := -1
	for i := idx - 1; i >= 0; i-- {
		if power[i] <= half {
			left = i
			break
		}
	}
	if left < 0 {
		return failedHalfPower(peak, modal.HalfPowerNotFoundLeft)
	}

	right := -1
	for i := idx + 1; i < len(power); i++ {
		if power[i] <= half {
			right = i
			break
		}
	}
	if right < 0 {
		return failedHalfPower(peak, modal.HalfPowerNotFoundRight)
	}

	f1 := common.InterpolateCrossing(freqs[left], power[left], freqs[left+1], power[left+1], half)
	f2 := common.InterpolateCrossing(freqs[right-1], power[right-1], freqs[right], power[right], half)
	if !common.IsFinite(f1) || !common.IsFinite(f2) || f2 <= f1 {
		return failedHalfPower(peak, modal.BadZetaHP)
	}

	zeta := (f2 - f1) / (2 * fn)
	if !common.IsFinite(zeta) || zeta <= 0 {
		return failedHalfPower(peak, modal.BadZetaHP)
	}

	res := HalfPowerResult{Zeta: zeta, F1Hz: f1, F2Hz: f2, PeakPower: peak}
	if detectionCount != nil && *detectionCount < minHits {
		res.ReasonCodes = res.ReasonCodes.With(modal.MultiModeSuspected)
	}
	return res
}
