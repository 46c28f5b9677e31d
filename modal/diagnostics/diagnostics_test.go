package diagnostics

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-modal/algorithms/temporal"
	"github.com/RyanBlaney/sonido-modal/modal"
	"github.com/RyanBlaney/sonido-modal/modal/config"
)

const fs = 8000.0

func decay(freq, sigma float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		t := float64(i) / fs
		out[i] = math.Exp(-sigma*t) * math.Sin(2*math.Pi*freq*t)
	}
	return out
}

func beating(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		t := float64(i) / fs
		out[i] = math.Exp(-2*t) * (math.Sin(2*math.Pi*100*t) + math.Sin(2*math.Pi*104*t))
	}
	return out
}

func TestBeating(t *testing.T) {
	env := temporal.NewEnvelope()

	clean, flagged := Beating(decay(100, 2, 8000), fs, 100, 0.2, 0.2, env)
	assert.Less(t, clean, 0.2)
	assert.False(t, flagged)

	modulated, flagged := Beating(beating(8000), fs, 102, 0.2, 0.2, env)
	assert.Greater(t, modulated, 0.2)
	assert.True(t, flagged)

	short, flagged := Beating(make([]float64, 4), fs, 100, 0.2, 0.2, env)
	assert.True(t, math.IsNaN(short))
	assert.False(t, flagged)

	past, _ := Beating(decay(100, 2, 1000), fs, 100, 0.2, 0.2, env)
	assert.True(t, math.IsNaN(past), "nothing left after the transient")
}

func TestTrendResidual(t *testing.T) {
	flat := make([]float64, 8000)
	for i := range flat {
		flat[i] = 1
	}
	// interior samples sit on the trend; only the zero-padded edges deviate
	assert.Less(t, trendResidualRMS(flat, fs, 100), 0.2)
}

func TestMonotonicity(t *testing.T) {
	env := temporal.NewEnvelope()

	frac, flagged := Monotonicity(decay(100, 2, 8000), fs, 100, 0.2, 0.1, env)
	assert.Less(t, frac, 0.1)
	assert.False(t, flagged)

	rng := rand.New(rand.NewPCG(1, 2))
	noise := make([]float64, 8000)
	for i := range noise {
		noise[i] = rng.NormFloat64()
	}
	frac, flagged = Monotonicity(noise, fs, 100, 0.2, 0.1, env)
	assert.Greater(t, frac, 0.1)
	assert.True(t, flagged)
}

func TestInstFreqJitter(t *testing.T) {
	env := temporal.NewEnvelope()

	median, jitter, flagged := InstFreqJitter(decay(100, 2, 8000), fs, 0.2, 0.05, env)
	assert.InDelta(t, 100.0, median, 0.5)
	assert.Less(t, jitter, 0.05)
	assert.False(t, flagged)

	chirp := make([]float64, 8000)
	for i := range chirp {
		tt := float64(i) / fs
		chirp[i] = math.Sin(2 * math.Pi * (50*tt + 100*tt*tt))
	}
	_, jitter, flagged = InstFreqJitter(chirp, fs, 0.2, 0.05, env)
	assert.Greater(t, jitter, 0.05)
	assert.True(t, flagged)

	_, jitter, flagged = InstFreqJitter(make([]float64, 10), fs, 0.2, 0.05, env)
	assert.True(t, math.IsNaN(jitter))
	assert.False(t, flagged)
}

func TestFilterRisk(t *testing.T) {
	tests := []struct {
		name     string
		fi       float64
		lo, hi   float64
		expected modal.ReasonCode
		q        float64
	}{
		{name: "wide band", fi: 100, lo: 60, hi: 140, q: 1.25},
		{name: "narrow band rings", fi: 100, lo: 95, hi: 105, q: 10, expected: modal.FilterRingingRisk},
		{name: "at the limit", fi: 100, lo: 90, hi: 110, q: 5, expected: modal.FilterRingingRisk},
		{name: "inverted band", fi: 100, lo: 140, hi: 60, q: math.NaN(), expected: modal.FilterInvalidBand},
		{name: "zero band", fi: 100, lo: 80, hi: 80, q: math.NaN(), expected: modal.FilterInvalidBand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, code := FilterRisk(tt.fi, tt.lo, tt.hi, 5)
			assert.Equal(t, tt.expected, code)
			if math.IsNaN(tt.q) {
				assert.True(t, math.IsNaN(q))
			} else {
				assert.InDelta(t, tt.q, q, 1e-12)
			}
		})
	}
}

func TestCompute(t *testing.T) {
	cfg := config.DefaultDiagnosticsConfig()

	clean := Compute(decay(100, 2, 8000), fs, 100, 60, 140, 0.2, cfg)
	assert.Empty(t, clean.ReasonCodes)
	d := clean.Diagnostics()
	for _, key := range []string{KeyBeatingScore, KeyEnvelopeIncreaseFrac, KeyInstFreqJitter, KeyFilterQ} {
		_, ok := d.Float(key)
		assert.True(t, ok, key)
	}

	bad := Compute(beating(8000), fs, 102, 140, 60, 0.2, cfg)
	assert.True(t, bad.ReasonCodes.Has(modal.BeatingDetected))
	assert.True(t, bad.ReasonCodes.Has(modal.FilterInvalidBand))
	require.Contains(t, bad.Diagnostics(), KeyFilterQ)
	assert.Nil(t, bad.Diagnostics()[KeyFilterQ])
}
