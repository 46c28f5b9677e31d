package peaks

import (
	"cmp"
	"math"
	"slices"

	"github.com/RyanBlaney/sonido-modal/algorithms/common"
	"github.com/RyanBlaney/sonido-modal/algorithms/stats"
	"github.com/RyanBlaney/sonido-modal/modal"
	"github.com/RyanBlaney/sonido-modal/modal/config"
)

// tiny keeps SNR finite for zero power
const tiny = 2.2250738585072014e-308

// SNRdB returns 10·log10((p+tiny)/(floor+tiny))
func SNRdB(power, floor float64) float64 {
	return 10 * math.Log10((power+tiny)/(floor+tiny))
}

// NoiseFloor is the given percentile of the in-band power
func NoiseFloor(freqs, power []float64, fmin, fmax, percentile float64) float64 {
	_, band := bandSlice(freqs, power, fmin, fmax)
	return stats.Percentile(band, percentile)
}

// DetectPeaks finds local maxima in [FminHz, FmaxHz] whose SNR against the
// band's percentile floor reaches MinSNRdB, keeping the strongest
// MaxCandidates. An empty result is replaced by the NO_VALID_PEAKS
// placeholder.
func DetectPeaks(freqs, power []float64, cfg config.BandConfig) []modal.PeakCandidate {
	found := findCandidates(freqs, power, cfg, false)
	if len(found) == 0 {
		return []modal.PeakCandidate{modal.NoValidPeaksCandidate()}
	}
	return found
}

func findCandidates(freqs, power []float64, cfg config.BandConfig, isGlobal bool) []modal.PeakCandidate {
	if len(freqs) == 0 || len(freqs) != len(power) {
		return nil
	}

	fb, pb := bandSlice(freqs, power, cfg.FminHz, cfg.FmaxHz)
	if len(pb) == 0 {
		return nil
	}
	floor := stats.Percentile(pb, cfg.NoiseFloorPercentile)
	if !common.IsFinite(floor) {
		return nil
	}

	var out []modal.PeakCandidate
	for _, i := range common.LocalMaxima(pb) {
		snr := SNRdB(pb[i], floor)
		if snr < cfg.MinSNRdB {
			continue
		}
		out = append(out, modal.PeakCandidate{
			FBinHz:   modal.Float(fb[i]),
			Power:    modal.Float(pb[i]),
			Floor:    modal.Float(floor),
			SNRdB:    modal.Float(snr),
			IsGlobal: isGlobal,
		})
	}

	Rank(out)
	if len(out) > cfg.MaxCandidates {
		out = out[:max(0, cfg.MaxCandidates)]
	}
	return out
}

// bandSlice returns the contiguous run of bins inside [fmin, fmax]
func bandSlice(freqs, power []float64, fmin, fmax float64) ([]float64, []float64) {
	lo, hi := -1, -1
	for i, f := range freqs {
		if f >= fmin && f <= fmax {
			if lo < 0 {
				lo = i
			}
			hi = i
		}
	}
	if lo < 0 {
		return nil, nil
	}
	return freqs[lo : hi+1], power[lo : hi+1]
}

// Rank orders candidates by SNR descending, ties broken by ascending bin
// frequency, and assigns 1-based ranks in place
func Rank(cands []modal.PeakCandidate) {
	slices.SortStableFunc(cands, func(a, b modal.PeakCandidate) int {
		if c := cmp.Compare(strength(b.SNRdB), strength(a.SNRdB)); c != 0 {
			return c
		}
		return cmp.Compare(freqKey(a), freqKey(b))
	})
	for i := range cands {
		cands[i].Rank = i + 1
	}
}

func strength(p *float64) float64 {
	if p == nil {
		return math.Inf(-1)
	}
	return *p
}

func freqKey(p modal.PeakCandidate) float64 {
	if p.FBinHz == nil {
		return math.Inf(1)
	}
	return *p.FBinHz
}
