package peaks

import (
	"math"

	"github.com/RyanBlaney/sonido-modal/algorithms/spectral"
	"github.com/RyanBlaney/sonido-modal/modal"
	"github.com/RyanBlaney/sonido-modal/modal/config"
)

// Refine re-locates every global peak in one hit's PSD: the strongest bin
// within ±searchHz becomes FRefinedHz, with power and SNR taken against the
// hit's own floor in band. Rank, reason codes and support stay those of the
// global peak. Peaks with no bin in reach keep FRefinedHz nil.
func Refine(psd *spectral.PSD, global []modal.PeakCandidate, searchHz float64, band config.BandConfig) []modal.PeakCandidate {
	out := make([]modal.PeakCandidate, len(global))
	copy(out, global)

	if psd.Len() == 0 {
		return out
	}
	floor := NoiseFloor(psd.Freqs, psd.Power, band.FminHz, band.FmaxHz, band.NoiseFloorPercentile)

	for i, g := range global {
		out[i].FRefinedHz = nil
		if g.IsPlaceholder() {
			continue
		}
		f := *g.FBinHz

		best := -1
		for k, fk := range psd.Freqs {
			if math.Abs(fk-f) > searchHz {
				continue
			}
			if best < 0 || psd.Power[k] > psd.Power[best] {
				best = k
			}
		}
		if best < 0 {
			continue
		}

		out[i].FRefinedHz = modal.Float(psd.Freqs[best])
		out[i].Power = modal.Float(psd.Power[best])
		out[i].Floor = modal.Float(floor)
		if math.IsNaN(floor) {
			out[i].SNRdB = nil
		} else {
			out[i].SNRdB = modal.Float(SNRdB(psd.Power[best], floor))
		}
	}
	return out
}
