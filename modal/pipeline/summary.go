package pipeline

import (
	"math"

	"github.com/RyanBlaney/sonido-modal/algorithms/stats"
	"github.com/RyanBlaney/sonido-modal/modal"
)

// SummaryRow aggregates one (peak, method) column across all hits.
// Only ok and warning rows with a damping value count as accepted.
type SummaryRow struct {
	PeakRank       int                  `json:"peak_rank" yaml:"peak_rank"`
	FBinHz         *float64             `json:"f_bin_hz" yaml:"f_bin_hz"`
	Method         modal.Method         `json:"method" yaml:"method"`
	Counts         map[modal.Status]int `json:"counts" yaml:"counts"`
	Accepted       int                  `json:"accepted" yaml:"accepted"`
	ZetaMedian     *float64             `json:"zeta_median" yaml:"zeta_median"`
	ZetaMAD        *float64             `json:"zeta_mad" yaml:"zeta_mad"`
	ZetaMin        *float64             `json:"zeta_min" yaml:"zeta_min"`
	ZetaMax        *float64             `json:"zeta_max" yaml:"zeta_max"`
	FRefinedMedian *float64             `json:"f_refined_median_hz" yaml:"f_refined_median_hz"`
}

// Summarize groups estimates by global peak and method, in peak order then
// method order. Peaks without any estimate still get rows with zero counts.
func Summarize(global []modal.PeakCandidate, estimates []modal.EstimateResult) []SummaryRow {
	type key struct {
		rank   int
		method modal.Method
	}
	zetas := make(map[key][]float64)
	freqs := make(map[key][]float64)
	counts := make(map[key]map[modal.Status]int)

	for _, e := range estimates {
		k := key{e.PeakRank, e.Method}
		if counts[k] == nil {
			counts[k] = make(map[modal.Status]int)
		}
		counts[k][e.Status]++
		if e.FRefinedHz != nil {
			freqs[k] = append(freqs[k], *e.FRefinedHz)
		}
		if e.Zeta != nil && (e.Status == modal.StatusOK || e.Status == modal.StatusWarning) {
			zetas[k] = append(zetas[k], *e.Zeta)
		}
	}

	rows := make([]SummaryRow, 0, len(global)*len(modal.Methods()))
	for _, p := range global {
		for _, m := range modal.Methods() {
			k := key{p.Rank, m}
			row := SummaryRow{
				PeakRank: p.Rank,
				FBinHz:   p.FBinHz,
				Method:   m,
				Counts:   make(map[modal.Status]int, len(modal.Statuses())),
			}
			for _, s := range modal.Statuses() {
				row.Counts[s] = counts[k][s]
			}

			z := zetas[k]
			row.Accepted = len(z)
			if len(z) > 0 {
				median, mad := stats.MAD(z)
				row.ZetaMedian = modal.Float(median)
				row.ZetaMAD = modal.Float(mad)
				lo, hi := math.Inf(1), math.Inf(-1)
				for _, v := range z {
					lo = math.Min(lo, v)
					hi = math.Max(hi, v)
				}
				row.ZetaMin = modal.Float(lo)
				row.ZetaMax = modal.Float(hi)
			}
			if f := freqs[k]; len(f) > 0 {
				row.FRefinedMedian = modal.Float(stats.Median(f))
			}
			rows = append(rows, row)
		}
	}
	return rows
}
