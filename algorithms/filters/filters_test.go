package filters

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(freq, fs float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freq * float64(i) / fs)
	}
	return out
}

func TestButterworthLowpassResponse(t *testing.T) {
	sos, err := NewButterworthLowpass(4, 8000, 500)
	require.NoError(t, err)
	assert.Len(t, sos.Sections, 2)

	assert.InDelta(t, 1.0, sos.MagnitudeAt(0, 8000), 1e-9)
	assert.InDelta(t, 1/math.Sqrt2, sos.MagnitudeAt(500, 8000), 1e-9)
	assert.Less(t, sos.MagnitudeAt(3000, 8000), 1e-3)
}

func TestButterworthHighpassResponse(t *testing.T) {
	tests := []struct {
		name  string
		order int
	}{
		{name: "even order", order: 4},
		{name: "odd order", order: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sos, err := NewButterworthHighpass(tt.order, 8000, 200)
			require.NoError(t, err)
			assert.Len(t, sos.Sections, (tt.order+1)/2)

			assert.InDelta(t, 1.0, sos.MagnitudeAt(4000, 8000), 1e-9)
			assert.InDelta(t, 1/math.Sqrt2, sos.MagnitudeAt(200, 8000), 1e-9)
			assert.Less(t, sos.MagnitudeAt(20, 8000), 2e-3)
		})
	}
}

func TestButterworthBandpassResponse(t *testing.T) {
	fs := 2000.0
	sos, err := NewButterworthBandpass(4, fs, 60, 140)
	require.NoError(t, err)
	assert.Len(t, sos.Sections, 4)

	assert.InDelta(t, 1/math.Sqrt2, sos.MagnitudeAt(60, fs), 1e-6)
	assert.InDelta(t, 1/math.Sqrt2, sos.MagnitudeAt(140, fs), 1e-6)
	assert.InDelta(t, 1.0, sos.MagnitudeAt(100, fs), 0.01)
	assert.Less(t, sos.MagnitudeAt(10, fs), 1e-3)
	assert.Less(t, sos.MagnitudeAt(600, fs), 1e-3)
	assert.InDelta(t, 0.0, sos.MagnitudeAt(0, fs), 1e-9)
}

func TestButterworthValidation(t *testing.T) {
	tests := []struct {
		name string
		fn   func() (*SOS, error)
	}{
		{name: "zero order", fn: func() (*SOS, error) { return NewButterworthLowpass(0, 1000, 100) }},
		{name: "above nyquist", fn: func() (*SOS, error) { return NewButterworthHighpass(4, 1000, 600) }},
		{name: "inverted band", fn: func() (*SOS, error) { return NewButterworthBandpass(4, 1000, 200, 100) }},
		{name: "empty band", fn: func() (*SOS, error) { return NewButterworthBandpass(4, 1000, 100, 100) }},
		{name: "bad sample rate", fn: func() (*SOS, error) { return NewButterworthLowpass(2, 0, 100) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.fn()
			assert.Error(t, err)
		})
	}
}

func TestFiltFiltIsZeroPhase(t *testing.T) {
	fs := 2000.0
	sos, err := NewButterworthBandpass(4, fs, 60, 140)
	require.NoError(t, err)

	// geometric band centre, where the gain is unity
	fc := 2 * fs / (2 * math.Pi) * math.Atan(math.Sqrt(warp(60, fs)*warp(140, fs))/(2*fs))
	x := sine(fc, fs, 4000)
	y := sos.FiltFilt(x)
	require.Len(t, y, len(x))

	maxErr := 0.0
	for i := 1000; i < 3000; i++ {
		maxErr = math.Max(maxErr, math.Abs(y[i]-x[i]))
	}
	assert.Less(t, maxErr, 1e-3)
}

func TestFiltFiltRemovesDC(t *testing.T) {
	sos, err := NewButterworthHighpass(4, 8000, 200)
	require.NoError(t, err)

	x := make([]float64, 2000)
	for i := range x {
		x[i] = 5
	}
	y := sos.FiltFilt(x)
	for _, v := range y {
		assert.InDelta(t, 0.0, v, 1e-6)
	}
}

func TestFiltFiltShortInputs(t *testing.T) {
	sos, err := NewButterworthHighpass(4, 8000, 200)
	require.NoError(t, err)

	assert.Empty(t, sos.FiltFilt(nil))
	assert.Equal(t, []float64{3}, sos.FiltFilt([]float64{3}))
	assert.Len(t, sos.FiltFilt([]float64{1, 2, 3, 4, 5}), 5)
}

func TestBiquadSteadyStatePriming(t *testing.T) {
	sos, err := NewButterworthLowpass(2, 1000, 50)
	require.NoError(t, err)

	x := make([]float64, 50)
	for i := range x {
		x[i] = 2
	}
	y := sos.filterPrimed(x)
	for _, v := range y {
		assert.InDelta(t, 2.0, v, 1e-9)
	}
}
