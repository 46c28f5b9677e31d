package estimators

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-modal/modal"
	"github.com/RyanBlaney/sonido-modal/modal/config"
	"github.com/RyanBlaney/sonido-modal/modal/diagnostics"
)

const pairFs = 8000.0

// impactWindow places a ring-down of the given amplitude at the impact of a
// window with 50 ms pre-roll and 1.5 s post-roll
func impactWindow(amplitude, fn, zeta float64) modal.HitWindow {
	pre := int(0.05 * pairFs)
	accel := make([]float64, pre+int(1.5*pairFs))
	for i, v := range ringdown(pairFs, fn, zeta, 1.5) {
		accel[pre+i] = amplitude * v
	}
	return modal.HitWindow{
		HitID:      4,
		HitIndex:   40000,
		TStart:     5.0,
		THit:       5.05,
		TEnd:       6.55,
		SampleRate: pairFs,
		Hammer:     make([]float64, len(accel)),
		Accel:      accel,
	}
}

func globalPeak(f float64, codes ...modal.ReasonCode) modal.PeakCandidate {
	return modal.PeakCandidate{
		Rank:           2,
		FBinHz:         modal.Float(f),
		IsGlobal:       true,
		ReasonCodes:    modal.ReasonCodes(codes),
		DetectionCount: modal.Int(3),
		DetectionRatio: modal.Float(1),
	}
}

func methodsOf(rows []modal.EstimateResult) []modal.Method {
	out := make([]modal.Method, len(rows))
	for i, r := range rows {
		out[i] = r.Method
	}
	return out
}

func TestEstimatePairCleanDecay(t *testing.T) {
	zeta := 0.002
	rows := EstimatePair(impactWindow(0.5, 100, zeta), globalPeak(100), pairFs, config.Default())
	require.Len(t, rows, 4)
	assert.Equal(t, modal.Methods(), methodsOf(rows))

	for _, r := range rows {
		assert.Equal(t, 4, r.HitID)
		assert.Equal(t, 2, r.PeakRank)
		assert.Equal(t, 100.0, *r.FBinHz)
		assert.Nil(t, r.FRefinedHz)
		for _, key := range []string{diagnostics.KeyBeatingScore, diagnostics.KeyFilterQ, KeyFilterLoHz, KeyFilterHiHz} {
			assert.Contains(t, r.Diagnostics, key, r.Method)
		}
		require.NotNil(t, r.Zeta, r.Method)
	}

	for _, r := range rows[:2] {
		assert.Equal(t, modal.StatusOK, r.Status, r.Method)
		assert.Empty(t, r.ReasonCodes, r.Method)
		assert.InEpsilon(t, zeta, *r.Zeta, 0.05, r.Method)
		r2, ok := r.Diagnostics.Float(KeyEnvFitR2)
		require.True(t, ok)
		assert.Greater(t, r2, 0.99)
	}

	hp := rows[2]
	assert.Greater(t, *hp.Zeta, 0.0)
	assert.Contains(t, hp.Diagnostics, KeyF1Hz)
	assert.Contains(t, hp.Diagnostics, KeyFDPeakPower)

	energy := rows[3]
	assert.Equal(t, modal.ReasonCodes{modal.EffectiveDampingOnly}, energy.ReasonCodes)
	assert.Equal(t, modal.StatusOK, energy.Status)
	assert.InEpsilon(t, zeta/2, *energy.Zeta, 0.05)
}

func TestEstimatePairRefinedFrequency(t *testing.T) {
	peak := globalPeak(98)
	peak.FRefinedHz = modal.Float(100)

	rows := EstimatePair(impactWindow(0.5, 100, 0.002), peak, pairFs, config.Default())
	require.Len(t, rows, 4)
	assert.Equal(t, 98.0, *rows[0].FBinHz)
	assert.Equal(t, 100.0, *rows[0].FRefinedHz)
	assert.InEpsilon(t, 0.002, *rows[0].Zeta, 0.05, "ω comes from the refined frequency")
}

func TestEstimatePairCoupledPeak(t *testing.T) {
	rows := EstimatePair(impactWindow(0.5, 100, 0.002), globalPeak(100, modal.PSDMultiPeak, modal.MultiModeSuspected), pairFs, config.Default())
	require.Len(t, rows, 4)

	for _, r := range rows {
		assert.True(t, r.ReasonCodes.IsCoupled(), r.Method)
		assert.Equal(t, modal.StatusWarning, r.Status, r.Method)
	}
	assert.Nil(t, rows[2].Zeta, "half-power refuses coupled peaks")
	assert.NotNil(t, rows[0].Zeta)
}

func TestEstimatePairClipped(t *testing.T) {
	w := impactWindow(3, 100, 0.002)
	for i, v := range w.Accel {
		w.Accel[i] = max(-1, min(1, v))
	}

	rows := EstimatePair(w, globalPeak(100), pairFs, config.Default())
	require.Len(t, rows, 4)
	for _, r := range rows {
		assert.True(t, r.ReasonCodes.Has(modal.ClippedSignal), r.Method)
	}
	assert.NotEqual(t, modal.StatusOK, rows[0].Status)

	cfg := config.Default()
	cfg.Estimators.ClipLevel = 0
	rows = EstimatePair(w, globalPeak(100), pairFs, cfg)
	assert.False(t, rows[0].ReasonCodes.Has(modal.ClippedSignal))
}

func TestEstimatePairNotComputed(t *testing.T) {
	t.Run("placeholder peak", func(t *testing.T) {
		rows := EstimatePair(impactWindow(0.5, 100, 0.002), modal.NoValidPeaksCandidate(), pairFs, config.Default())
		require.Len(t, rows, 4)
		assert.Equal(t, modal.Methods(), methodsOf(rows))
		for _, r := range rows {
			assert.Equal(t, modal.StatusNotComputed, r.Status)
			assert.Nil(t, r.Zeta)
			assert.Nil(t, r.FBinHz)
			assert.True(t, r.ReasonCodes.Has(modal.NoValidPeaks))
		}
		assert.True(t, rows[3].ReasonCodes.Has(modal.EffectiveDampingOnly))
	})

	t.Run("filter design failure", func(t *testing.T) {
		cfg := config.Default()
		cfg.Estimators.FilterOrder = 0
		rows := EstimatePair(impactWindow(0.5, 100, 0.002), globalPeak(100), pairFs, cfg)
		require.Len(t, rows, 4)
		for _, r := range rows {
			assert.Equal(t, modal.StatusNotComputed, r.Status)
			assert.True(t, r.ReasonCodes.Has(modal.FilterDesignFailed))
			assert.Contains(t, r.Diagnostics, diagnostics.KeyBeatingScore)
			assert.Nil(t, r.Diagnostics[diagnostics.KeyBeatingScore])
		}
	})

	t.Run("window too short", func(t *testing.T) {
		w := impactWindow(0.5, 100, 0.002)
		w.Accel = w.Accel[:int(0.2*pairFs)]
		w.Hammer = w.Hammer[:len(w.Accel)]
		rows := EstimatePair(w, globalPeak(100), pairFs, config.Default())
		require.Len(t, rows, 4)
		assert.True(t, rows[0].ReasonCodes.Has(modal.TooShortDecay))
		assert.Equal(t, modal.StatusNotComputed, rows[0].Status)
		assert.Equal(t, modal.StatusNotComputed, rows[3].Status)
	})
}

func TestEstimatePairNoiseOnly(t *testing.T) {
	w := impactWindow(0, 100, 0.002)
	rng := rand.New(rand.NewPCG(21, 4))
	for i := range w.Accel {
		w.Accel[i] = 1e-3 * rng.NormFloat64()
	}

	rows := EstimatePair(w, globalPeak(100), pairFs, config.Default())
	require.Len(t, rows, 4)
	for _, r := range []modal.EstimateResult{rows[0], rows[1], rows[3]} {
		assert.True(t, r.ReasonCodes.Has(modal.TooShortDecay), "%s: %v", r.Method, r.ReasonCodes)
		assert.Nil(t, r.Zeta, r.Method)
		assert.Equal(t, modal.StatusNotComputed, r.Status, r.Method)
	}
}

func TestEstimatePairGrowingRing(t *testing.T) {
	rows := EstimatePair(impactWindow(0.5, 100, -0.003), globalPeak(100), pairFs, config.Default())
	require.Len(t, rows, 4)

	for _, r := range rows[:2] {
		assert.True(t, r.ReasonCodes.Has(modal.BadZetaTD), "%s: %v", r.Method, r.ReasonCodes)
		assert.Nil(t, r.Zeta, r.Method)
		assert.Equal(t, modal.StatusNotComputed, r.Status, r.Method)
		slope, ok := r.Diagnostics.Float(KeyEnvLogM)
		require.True(t, ok, r.Method)
		assert.Greater(t, slope, 0.0, r.Method)
	}
	assert.Nil(t, rows[3].Zeta)
	assert.True(t, rows[3].ReasonCodes.Has(modal.BadZetaEnergy))
}
