package common

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Basic numeric helpers shared by the filters, spectral and modal packages.
// gonum does the heavy lifting where it has an equivalent.

// Mean calculates the arithmetic mean of a slice using gonum
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Mean(data, nil)
}

// RemoveMean returns data minus its mean
func RemoveMean(data []float64) []float64 {
	out := make([]float64, len(data))
	copy(out, data)
	if len(out) > 0 {
		floats.AddConst(-Mean(out), out)
	}
	return out
}

// LinRegression fits y = intercept + slope*x by least squares.
// rSquared is NaN when y has zero total sum of squares; all three are NaN
// when fewer than two points are given.
func LinRegression(x, y []float64) (slope, intercept, rSquared float64) {
	if len(x) != len(y) || len(x) < 2 {
		return math.NaN(), math.NaN(), math.NaN()
	}

	alpha, beta := stat.LinearRegression(x, y, nil, false)

	yMean := Mean(y)
	ssTotal := 0.0
	ssResidual := 0.0
	for i := range x {
		predicted := alpha + beta*x[i]
		ssTotal += (y[i] - yMean) * (y[i] - yMean)
		ssResidual += (y[i] - predicted) * (y[i] - predicted)
	}

	rSquared = math.NaN()
	if ssTotal > 0 {
		rSquared = 1.0 - ssResidual/ssTotal
	}

	return beta, alpha, rSquared
}

// MovingAverage is a centred boxcar of windowSize samples with zero padding
// at the edges, the same shape as a "same"-mode convolution.
func MovingAverage(data []float64, windowSize int) []float64 {
	n := len(data)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	if windowSize <= 1 {
		copy(out, data)
		return out
	}

	prefix := make([]float64, n+1)
	for i, v := range data {
		prefix[i+1] = prefix[i] + v
	}

	offset := (windowSize - 1) / 2
	inv := 1.0 / float64(windowSize)
	for i := range n {
		hi := i + offset
		lo := hi - windowSize + 1
		if lo < 0 {
			lo = 0
		}
		if hi > n-1 {
			hi = n - 1
		}
		if hi < lo {
			continue
		}
		out[i] = (prefix[hi+1] - prefix[lo]) * inv
	}
	return out
}

// ArgMax returns the index of the largest finite value, or -1
func ArgMax(data []float64) int {
	best := -1
	for i, v := range data {
		if math.IsNaN(v) {
			continue
		}
		if best < 0 || v > data[best] {
			best = i
		}
	}
	return best
}

// NearestIndex returns the index of the value in sorted grid closest to x
func NearestIndex(grid []float64, x float64) int {
	if len(grid) == 0 {
		return -1
	}
	best := 0
	bestDist := math.Abs(grid[0] - x)
	for i := 1; i < len(grid); i++ {
		if d := math.Abs(grid[i] - x); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// Unwrap removes 2π jumps from a phase sequence
func Unwrap(phase []float64) []float64 {
	out := make([]float64, len(phase))
	if len(phase) == 0 {
		return out
	}
	out[0] = phase[0]
	offset := 0.0
	for i := 1; i < len(phase); i++ {
		d := phase[i] - phase[i-1]
		if d > math.Pi {
			offset -= 2 * math.Pi * math.Ceil((d-math.Pi)/(2*math.Pi))
		} else if d < -math.Pi {
			offset += 2 * math.Pi * math.Ceil((-d-math.Pi)/(2*math.Pi))
		}
		out[i] = phase[i] + offset
	}
	return out
}

// Diff returns the first difference data[i+1]-data[i]
func Diff(data []float64) []float64 {
	if len(data) < 2 {
		return []float64{}
	}
	out := make([]float64, len(data)-1)
	for i := range out {
		out[i] = data[i+1] - data[i]
	}
	return out
}

// InterpolateCrossing returns the x at which the segment (x0,y0)-(x1,y1)
// reaches level. Flat segments return x0.
func InterpolateCrossing(x0, y0, x1, y1, level float64) float64 {
	if y1 == y0 {
		return x0
	}
	return x0 + (level-y0)*(x1-x0)/(y1-y0)
}

// Clamp limits value to [min, max]
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// ClampInt limits value to [min, max]
func ClampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// IsPowerOfTwo checks if n is a power of 2
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// NextPowerOfTwo returns the smallest power of two >= n
func NextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << int(math.Ceil(math.Log2(float64(n))))
}

// PrevPowerOfTwo returns the largest power of two <= n
func PrevPowerOfTwo(n int) int {
	if n < 1 {
		return 0
	}
	p := 1
	for p*2 <= n {
		p *= 2
	}
	return p
}

// IsFinite reports whether v is neither NaN nor ±Inf
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// RoundInt rounds half away from zero and converts to int
func RoundInt(v float64) int {
	return int(math.Round(v))
}
