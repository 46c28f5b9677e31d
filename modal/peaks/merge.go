package peaks

import (
	"cmp"
	"math"
	"slices"

	"github.com/RyanBlaney/sonido-modal/modal"
)

// Tolerance returns max(absHz, frac·f)
func Tolerance(f, absHz, frac float64) float64 {
	return math.Max(absHz, frac*f)
}

func byFrequency(cands []modal.PeakCandidate) []modal.PeakCandidate {
	out := make([]modal.PeakCandidate, 0, len(cands))
	for _, c := range cands {
		if c.IsPlaceholder() {
			continue
		}
		out = append(out, c)
	}
	slices.SortStableFunc(out, func(a, b modal.PeakCandidate) int {
		return cmp.Compare(*a.FBinHz, *b.FBinHz)
	})
	return out
}

// Merge groups near-duplicate peaks and keeps the strongest of each group
// (by SNR, then power). Groups chain along ascending frequency while each
// peak lies within Tolerance of the previous one. The result is re-ranked,
// and no two survivors lie within tolerance of each other, so merging a
// merged list changes nothing.
func Merge(cands []modal.PeakCandidate, absHz, frac float64) []modal.PeakCandidate {
	sorted := byFrequency(cands)
	if len(sorted) == 0 {
		return []modal.PeakCandidate{}
	}

	merged := make([]modal.PeakCandidate, 0, len(sorted))
	best := sorted[0]
	last := *sorted[0].FBinHz
	for _, c := range sorted[1:] {
		f := *c.FBinHz
		if f-last <= Tolerance(last, absHz, frac) {
			if stronger(c, best) {
				best = c
			}
		} else {
			merged = append(merged, best)
			best = c
		}
		last = f
	}
	merged = append(merged, best)

	Rank(merged)
	return merged
}

func stronger(a, b modal.PeakCandidate) bool {
	if sa, sb := strength(a.SNRdB), strength(b.SNRdB); sa != sb {
		return sa > sb
	}
	return strength(a.Power) > strength(b.Power)
}

// FlagCoupled tags both members of every frequency-adjacent pair closer than
// Tolerance(f_lower) with PSD_MULTI_PEAK and MULTI_MODE_SUSPECTED. Peaks are
// left in place and never merged.
func FlagCoupled(cands []modal.PeakCandidate, absHz, frac float64) []modal.PeakCandidate {
	out := slices.Clone(cands)

	order := make([]int, 0, len(out))
	for i, c := range out {
		if !c.IsPlaceholder() {
			order = append(order, i)
		}
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(*out[a].FBinHz, *out[b].FBinHz)
	})

	coupled := make([]bool, len(out))
	for k := 0; k+1 < len(order); k++ {
		a, b := order[k], order[k+1]
		fa := *out[a].FBinHz
		if *out[b].FBinHz-fa <= Tolerance(fa, absHz, frac) {
			coupled[a] = true
			coupled[b] = true
		}
	}

	for i := range out {
		if coupled[i] {
			out[i].ReasonCodes = out[i].ReasonCodes.With(modal.PSDMultiPeak, modal.MultiModeSuspected)
		}
	}
	return out
}
