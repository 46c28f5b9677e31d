package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// MADToSigma scales a median absolute deviation to a Gaussian standard deviation
const MADToSigma = 1.4826

// Median returns the median with averaging of the two middle values.
// NaN for empty input.
func Median(data []float64) float64 {
	return Percentile(data, 50)
}

// MAD returns the median absolute deviation around the median
func MAD(data []float64) (median, mad float64) {
	median = Median(data)
	if math.IsNaN(median) {
		return math.NaN(), math.NaN()
	}
	dev := make([]float64, len(data))
	for i, v := range data {
		dev[i] = math.Abs(v - median)
	}
	return median, Median(dev)
}

// RobustSigma returns median and 1.4826*MAD
func RobustSigma(data []float64) (median, sigma float64) {
	median, mad := MAD(data)
	return median, MADToSigma * mad
}

// ColumnMedian computes the element-wise median of equally sized rows
func ColumnMedian(rows [][]float64) ([]float64, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no rows")
	}
	width := len(rows[0])
	for i, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("row %d has %d columns, expected %d", i, len(row), width)
		}
	}

	out := make([]float64, width)
	column := make([]float64, len(rows))
	for j := range width {
		for i, row := range rows {
			column[i] = row[j]
		}
		out[j] = Median(column)
	}
	return out, nil
}

// Kurtosis returns the non-excess (Pearson) kurtosis m4/m2^2.
// A Gaussian gives ~3, impulsive signals give much larger values.
func Kurtosis(data []float64) float64 {
	if len(data) < 4 {
		return math.NaN()
	}
	m2 := stat.Moment(2, data, nil)
	if m2 <= 0 {
		return math.NaN()
	}
	return stat.Moment(4, data, nil) / (m2 * m2)
}
