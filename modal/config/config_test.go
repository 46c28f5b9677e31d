package config

import (
	"testing"

	"github.com/RyanBlaney/sonido-modal/algorithms/spectral"
	"github.com/RyanBlaney/sonido-modal/algorithms/windowing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Positive(t, cfg.Workers)
	assert.Equal(t, PolarityAbs, cfg.Window.Polarity)
	assert.Equal(t, 2, cfg.Peaks.MinDetectionHits)
}

func TestPSDConfigWelch(t *testing.T) {
	w, err := DefaultPSDConfig().Welch()
	require.NoError(t, err)
	assert.Equal(t, spectral.DefaultWelchConfig(), w)

	p := DefaultPSDConfig()
	p.Window = "Hanning"
	w, err = p.Welch()
	require.NoError(t, err)
	assert.Equal(t, windowing.TypeHann, w.Window)
}

func TestValidateRejectsNonsense(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "inverted band", mutate: func(c *Config) { c.Peaks.Band.FmaxHz = c.Peaks.Band.FminHz }},
		{name: "inverted low band", mutate: func(c *Config) {
			c.Peaks.LowBand.Enabled = true
			c.Peaks.LowBand.FmaxHz = 0.5
		}},
		{name: "nperseg bounds", mutate: func(c *Config) { c.PSD.NpersegMax = 128 }},
		{name: "overlap of one", mutate: func(c *Config) { c.PSD.OverlapFrac = 1 }},
		{name: "unknown window", mutate: func(c *Config) { c.PSD.Window = "kaiser" }},
		{name: "unknown detrend", mutate: func(c *Config) { c.PSD.Detrend = "poly" }},
		{name: "unknown scaling", mutate: func(c *Config) { c.PSD.Scaling = "psd" }},
		{name: "unknown polarity", mutate: func(c *Config) { c.Window.Polarity = "both" }},
		{name: "band fractions", mutate: func(c *Config) { c.Estimators.BandHighFrac = 0.5 }},
		{name: "negative duration", mutate: func(c *Config) { c.Window.PreS = -1 }},
		{name: "fit shorter than minimum decay", mutate: func(c *Config) { c.Estimators.DecayMinDurationS = 1.0 }},
		{name: "established before transient", mutate: func(c *Config) { c.Estimators.EstablishedMinS = 0.1 }},
		{name: "r2 above one", mutate: func(c *Config) { c.Estimators.EstablishedR2Min = 1.5 }},
		{name: "coupled narrower than merge", mutate: func(c *Config) { c.Peaks.CoupledAbsHz = 0.1 }},
		{name: "negative workers", mutate: func(c *Config) { c.Workers = -1 }},
		{name: "zero df", mutate: func(c *Config) { c.PSD.DfTargetHz = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateReportsEveryViolation(t *testing.T) {
	cfg := Default()
	cfg.Window.PostS = 0
	cfg.PSD.OverlapFrac = 2
	cfg.Diagnostics.FilterQMax = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 3)
	assert.Contains(t, err.Error(), "window.post_s")
	assert.Contains(t, err.Error(), "psd.overlap_frac")
	assert.Contains(t, err.Error(), "diagnostics.filter_q_max")
}

func TestParsePolarity(t *testing.T) {
	p, err := ParsePolarity(" Negative ")
	require.NoError(t, err)
	assert.Equal(t, PolarityNegative, p)

	_, err = ParsePolarity("")
	assert.Error(t, err)
}
