// Package synth renders synthetic impact-test recordings: a train of
// half-sine hammer pulses and the damped modal response they excite.
// It backs the `synth` command and the package tests.
package synth

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/RyanBlaney/sonido-modal/algorithms/common"
)

// Mode is one damped resonance of the synthetic structure
type Mode struct {
	FreqHz    float64 `json:"freq_hz" yaml:"freq_hz" mapstructure:"freq_hz"`
	Zeta      float64 `json:"zeta" yaml:"zeta" mapstructure:"zeta"`
	Amplitude float64 `json:"amplitude" yaml:"amplitude" mapstructure:"amplitude"`
}

// ImpactConfig describes the recording to render
type ImpactConfig struct {
	SampleRate      float64 `json:"sample_rate" yaml:"sample_rate" mapstructure:"sample_rate"`
	DurationS       float64 `json:"duration_s" yaml:"duration_s" mapstructure:"duration_s"`
	FirstHitS       float64 `json:"first_hit_s" yaml:"first_hit_s" mapstructure:"first_hit_s"`
	IntervalS       float64 `json:"interval_s" yaml:"interval_s" mapstructure:"interval_s"`
	Hits            int     `json:"hits" yaml:"hits" mapstructure:"hits"`
	PulseS          float64 `json:"pulse_s" yaml:"pulse_s" mapstructure:"pulse_s"`
	HammerAmplitude float64 `json:"hammer_amplitude" yaml:"hammer_amplitude" mapstructure:"hammer_amplitude"`
	Modes           []Mode  `json:"modes" yaml:"modes" mapstructure:"modes"`
	NoiseStd        float64 `json:"noise_std" yaml:"noise_std" mapstructure:"noise_std"`
	Seed            uint64  `json:"seed" yaml:"seed" mapstructure:"seed"`
}

// DefaultImpactConfig is a lightly damped plate struck ten times
func DefaultImpactConfig() ImpactConfig {
	fs := 44100.0
	return ImpactConfig{
		SampleRate:      fs,
		DurationS:       21.0,
		FirstHitS:       2.5,
		IntervalS:       1.8,
		Hits:            10,
		PulseS:          0.001,
		HammerAmplitude: 0.8,
		Modes: []Mode{
			// centred on bin 14 of a 4096-point grid
			{FreqHz: 14 * fs / 4096, Zeta: 0.00055, Amplitude: 0.3},
		},
		NoiseStd: 1e-3,
		Seed:     7,
	}
}

// Recording is a rendered stereo pair
type Recording struct {
	Hammer     []float64
	Accel      []float64
	SampleRate float64
	// HitStarts are the sample indices where each pulse begins
	HitStarts []int
}

// Validate checks that the configuration can be rendered
func (c ImpactConfig) Validate() error {
	switch {
	case !(c.SampleRate > 0):
		return fmt.Errorf("sample rate must be positive, got %v", c.SampleRate)
	case !(c.DurationS > 0):
		return fmt.Errorf("duration must be positive, got %v", c.DurationS)
	case c.Hits < 0:
		return fmt.Errorf("hit count cannot be negative, got %d", c.Hits)
	case c.Hits > 1 && !(c.IntervalS > 0):
		return fmt.Errorf("interval must be positive, got %v", c.IntervalS)
	case !(c.PulseS > 0):
		return fmt.Errorf("pulse width must be positive, got %v", c.PulseS)
	}
	for i, m := range c.Modes {
		if !(m.FreqHz > 0 && m.FreqHz < c.SampleRate/2) {
			return fmt.Errorf("mode %d frequency %v Hz outside (0, Nyquist)", i, m.FreqHz)
		}
		if !(m.Zeta >= 0 && m.Zeta < 1) {
			return fmt.Errorf("mode %d damping %v outside [0, 1)", i, m.Zeta)
		}
	}
	return nil
}

// Render synthesises the recording. The same config always yields the
// same samples.
func Render(cfg ImpactConfig) (*Recording, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	fs := cfg.SampleRate
	n := common.RoundInt(cfg.DurationS * fs)
	rec := &Recording{
		Hammer:     make([]float64, n),
		Accel:      make([]float64, n),
		SampleRate: fs,
	}

	pulse := max(1, common.RoundInt(cfg.PulseS*fs))
	for h := range cfg.Hits {
		start := common.RoundInt((cfg.FirstHitS + float64(h)*cfg.IntervalS) * fs)
		if start < 0 || start >= n {
			continue
		}
		rec.HitStarts = append(rec.HitStarts, start)

		for i := 0; i < pulse && start+i < n; i++ {
			rec.Hammer[start+i] += cfg.HammerAmplitude * math.Sin(math.Pi*float64(i)/float64(pulse))
		}

		for _, m := range cfg.Modes {
			addRingdown(rec.Accel[start:], fs, m)
		}
	}

	if cfg.NoiseStd > 0 {
		rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
		for i := range rec.Hammer {
			rec.Hammer[i] += cfg.NoiseStd * rng.NormFloat64()
			rec.Accel[i] += cfg.NoiseStd * rng.NormFloat64()
		}
	}

	return rec, nil
}

// Ringdown returns n samples of A·exp(-ζωt)·sin(ω_d t)
func Ringdown(n int, fs float64, m Mode) []float64 {
	out := make([]float64, n)
	addRingdown(out, fs, m)
	return out
}

func addRingdown(dst []float64, fs float64, m Mode) {
	omega := 2 * math.Pi * m.FreqHz
	sigma := m.Zeta * omega
	omegaD := omega * math.Sqrt(1-m.Zeta*m.Zeta)
	for i := range dst {
		t := float64(i) / fs
		amp := m.Amplitude * math.Exp(-sigma*t)
		if amp < 1e-12*m.Amplitude {
			break
		}
		dst[i] += amp * math.Sin(omegaD*t)
	}
}
