package common

import (
	"math"
	"sort"
)

// PeakOptions constrains FindPeaks. Zero values disable a constraint;
// use math.Inf(-1) for Height to accept every local maximum.
type PeakOptions struct {
	Height     float64 // minimum peak value
	UseHeight  bool
	Distance   int     // minimum index spacing, taller peaks win
	Prominence float64 // minimum prominence
}

// LocalMaxima returns indices of local maxima. Flat tops resolve to their
// middle sample (rounded down); edges are never peaks.
func LocalMaxima(data []float64) []int {
	peaks := []int{}
	n := len(data)
	i := 1
	iMax := n - 1
	for i < iMax {
		if data[i-1] < data[i] {
			ahead := i + 1
			for ahead < iMax && data[ahead] == data[i] {
				ahead++
			}
			if data[ahead] < data[i] {
				left := i
				right := ahead - 1
				peaks = append(peaks, (left+right)/2)
				i = ahead
			}
		}
		i++
	}
	return peaks
}

// FindPeaks detects local maxima filtered by height, distance and
// prominence, applied in that order. Result is in index order.
func FindPeaks(data []float64, opts PeakOptions) []int {
	peaks := LocalMaxima(data)

	if opts.UseHeight {
		kept := peaks[:0]
		for _, p := range peaks {
			if data[p] >= opts.Height {
				kept = append(kept, p)
			}
		}
		peaks = kept
	}

	if opts.Distance > 1 && len(peaks) > 1 {
		peaks = selectByDistance(data, peaks, opts.Distance)
	}

	if opts.Prominence > 0 {
		prominences := Prominences(data, peaks)
		kept := make([]int, 0, len(peaks))
		for i, p := range peaks {
			if prominences[i] >= opts.Prominence {
				kept = append(kept, p)
			}
		}
		peaks = kept
	}

	return peaks
}

// selectByDistance keeps the tallest peaks first and removes any neighbour
// closer than distance samples. Equal heights prefer the earlier index.
func selectByDistance(data []float64, peaks []int, distance int) []int {
	order := make([]int, len(peaks))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return data[peaks[order[a]]] > data[peaks[order[b]]]
	})

	keep := make([]bool, len(peaks))
	for i := range keep {
		keep[i] = true
	}

	for _, j := range order {
		if !keep[j] {
			continue
		}
		for k := j - 1; k >= 0 && peaks[j]-peaks[k] < distance; k-- {
			keep[k] = false
		}
		for k := j + 1; k < len(peaks) && peaks[k]-peaks[j] < distance; k++ {
			keep[k] = false
		}
	}

	out := make([]int, 0, len(peaks))
	for i, p := range peaks {
		if keep[i] {
			out = append(out, p)
		}
	}
	return out
}

// Prominences computes the topographic prominence of each peak: its height
// above the higher of the two lowest points reached before a taller sample
// (or the signal edge) on either side.
func Prominences(data []float64, peaks []int) []float64 {
	out := make([]float64, len(peaks))
	for idx, p := range peaks {
		h := data[p]

		leftMin := h
		for i := p; i >= 0 && data[i] <= h; i-- {
			leftMin = math.Min(leftMin, data[i])
		}

		rightMin := h
		for i := p; i < len(data) && data[i] <= h; i++ {
			rightMin = math.Min(rightMin, data[i])
		}

		out[idx] = h - math.Max(leftMin, rightMin)
	}
	return out
}
