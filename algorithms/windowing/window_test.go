package windowing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHannPeriodicVsSymmetric(t *testing.T) {
	periodic := NewHann(4, false).GetCoefficients()
	symmetric := NewHann(5, true).GetCoefficients()

	assert.InDeltaSlice(t, []float64{0, 0.5, 1, 0.5}, periodic, 1e-12)
	assert.InDeltaSlice(t, []float64{0, 0.5, 1, 0.5, 0}, symmetric, 1e-12)
}

func TestWindowSums(t *testing.T) {
	w, err := New(TypeHann, 8, false)
	require.NoError(t, err)

	// periodic Hann: Σw = N/2, Σw² = 3N/8
	assert.InDelta(t, 4.0, w.Sum(), 1e-12)
	assert.InDelta(t, 3.0, w.SumSquares(), 1e-12)

	rect, err := New(TypeRectangular, 8, false)
	require.NoError(t, err)
	assert.Equal(t, 8.0, rect.SumSquares())
}

func TestBlackmanEndpoints(t *testing.T) {
	w, err := New(TypeBlackman, 9, true)
	require.NoError(t, err)
	c := w.GetCoefficients()
	assert.InDelta(t, 0.0, c[0], 1e-12)
	assert.InDelta(t, 1.0, c[4], 1e-12)
}

func TestParseType(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Type
		wantErr bool
	}{
		{name: "hann", input: "hann", want: TypeHann},
		{name: "alias", input: "Hanning", want: TypeHann},
		{name: "boxcar", input: "boxcar", want: TypeRectangular},
		{name: "unknown", input: "kaiser", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseType(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApply(t *testing.T) {
	w := NewHann(4, false)
	assert.Nil(t, w.Apply([]float64{1, 2}))
	assert.InDeltaSlice(t, []float64{0, 1, 3, 2}, w.Apply([]float64{5, 2, 3, 4}), 1e-12)

	buf := []float64{1, 1, 1, 1}
	require.NoError(t, w.ApplyInPlace(buf))
	assert.Error(t, w.ApplyInPlace([]float64{1}))
}
