package stats

import (
	"fmt"
	"math"
	"sort"
)

// PercentileMethod represents different methods for calculating percentiles
type PercentileMethod int

const (
	// Linear interpolation between closest ranks (R-7, numpy default)
	Linear PercentileMethod = iota

	// Lower value of the two closest ranks
	Lower

	// Higher value of the two closest ranks
	Higher

	// Value of the nearest rank
	Nearest
)

// Percentiles computes order statistics over float samples.
// NaN samples are ignored.
type Percentiles struct {
	method PercentileMethod
}

// NewPercentiles creates a new percentile calculator with linear interpolation
func NewPercentiles() *Percentiles {
	return &Percentiles{method: Linear}
}

// NewPercentilesWithMethod creates a percentile calculator with the given method
func NewPercentilesWithMethod(method PercentileMethod) *Percentiles {
	return &Percentiles{method: method}
}

// CalculatePercentile returns the p-th percentile, p in [0, 100]
func (p *Percentiles) CalculatePercentile(data []float64, percentile float64) (float64, error) {
	if percentile < 0 || percentile > 100 || math.IsNaN(percentile) {
		return 0, fmt.Errorf("percentile must be between 0 and 100, got %v", percentile)
	}

	values := sortedFinite(data)
	if len(values) == 0 {
		return 0, fmt.Errorf("empty data")
	}

	return p.fromSorted(values, percentile/100.0), nil
}

// CalculatePercentiles evaluates several percentiles with a single sort
func (p *Percentiles) CalculatePercentiles(data []float64, percentiles []float64) ([]float64, error) {
	values := sortedFinite(data)
	if len(values) == 0 {
		return nil, fmt.Errorf("empty data")
	}

	out := make([]float64, len(percentiles))
	for i, pct := range percentiles {
		if pct < 0 || pct > 100 {
			return nil, fmt.Errorf("percentile must be between 0 and 100, got %v", pct)
		}
		out[i] = p.fromSorted(values, pct/100.0)
	}
	return out, nil
}

func (p *Percentiles) fromSorted(sortedData []float64, q float64) float64 {
	n := len(sortedData)
	if n == 1 {
		return sortedData[0]
	}

	switch p.method {
	case Lower:
		return sortedData[int(math.Floor(float64(n-1)*q))]
	case Higher:
		return sortedData[int(math.Ceil(float64(n-1)*q))]
	case Nearest:
		return sortedData[int(math.Round(float64(n-1)*q))]
	default:
		return linearInterpolation(sortedData, q)
	}
}

// linearInterpolation implements h = (n-1)*q + 1 on 1-based ranks
func linearInterpolation(data []float64, q float64) float64 {
	n := len(data)
	h := float64(n-1)*q + 1.0

	if h <= 1.0 {
		return data[0]
	}
	if h >= float64(n) {
		return data[n-1]
	}

	lower := int(math.Floor(h)) - 1
	upper := int(math.Ceil(h)) - 1

	if lower == upper {
		return data[lower]
	}

	fraction := h - math.Floor(h)
	return data[lower] + fraction*(data[upper]-data[lower])
}

func sortedFinite(data []float64) []float64 {
	values := make([]float64, 0, len(data))
	for _, v := range data {
		if !math.IsNaN(v) {
			values = append(values, v)
		}
	}
	sort.Float64s(values)
	return values
}

// Percentile is a convenience wrapper using linear interpolation.
// It returns NaN for empty input.
func Percentile(data []float64, percentile float64) float64 {
	v, err := NewPercentiles().CalculatePercentile(data, percentile)
	if err != nil {
		return math.NaN()
	}
	return v
}
