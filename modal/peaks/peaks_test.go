package peaks

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-modal/algorithms/spectral"
	"github.com/RyanBlaney/sonido-modal/modal"
	"github.com/RyanBlaney/sonido-modal/modal/config"
)

func cand(f, snr, power float64) modal.PeakCandidate {
	return modal.PeakCandidate{
		FBinHz: modal.Float(f),
		SNRdB:  modal.Float(snr),
		Power:  modal.Float(power),
	}
}

func freqsOf(cands []modal.PeakCandidate) []float64 {
	out := make([]float64, len(cands))
	for i, c := range cands {
		out[i] = c.Freq()
	}
	return out
}

func flatSpectrum(n int, bumps map[int]float64) ([]float64, []float64) {
	freqs := make([]float64, n)
	power := make([]float64, n)
	for i := range freqs {
		freqs[i] = float64(i)
		power[i] = 1
	}
	for i, p := range bumps {
		power[i] = p
	}
	return freqs, power
}

func TestDetectPeaks(t *testing.T) {
	freqs, power := flatSpectrum(200, map[int]float64{50: 100, 120: 40, 150: 2})
	band := config.DefaultPeakConfig().Band

	t.Run("ranked by snr", func(t *testing.T) {
		got := DetectPeaks(freqs, power, band)
		require.Len(t, got, 2)
		assert.Equal(t, []float64{50, 120}, freqsOf(got))
		assert.Equal(t, 1, got[0].Rank)
		assert.Equal(t, 2, got[1].Rank)
		assert.InDelta(t, 20.0, *got[0].SNRdB, 1e-9)
		assert.InDelta(t, 1.0, *got[0].Floor, 1e-12)
		assert.False(t, got[0].IsGlobal)
	})

	t.Run("max candidates", func(t *testing.T) {
		b := band
		b.MaxCandidates = 1
		got := DetectPeaks(freqs, power, b)
		require.Len(t, got, 1)
		assert.Equal(t, 50.0, got[0].Freq())
	})

	t.Run("band limits", func(t *testing.T) {
		b := band
		b.FminHz = 100
		got := DetectPeaks(freqs, power, b)
		require.Len(t, got, 1)
		assert.Equal(t, 120.0, got[0].Freq())
	})

	t.Run("flat spectrum gives placeholder", func(t *testing.T) {
		f, p := flatSpectrum(64, nil)
		got := DetectPeaks(f, p, band)
		require.Len(t, got, 1)
		assert.True(t, got[0].IsPlaceholder())
		assert.True(t, got[0].ReasonCodes.Has(modal.NoValidPeaks))
		assert.True(t, got[0].ReasonCodes.Has(modal.SNRLow))
		assert.Nil(t, got[0].SNRdB)
	})

	t.Run("mismatched input gives placeholder", func(t *testing.T) {
		got := DetectPeaks(freqs, power[:10], band)
		require.Len(t, got, 1)
		assert.True(t, got[0].IsPlaceholder())
	})
}

func TestSNRdB(t *testing.T) {
	assert.InDelta(t, 10.0, SNRdB(10, 1), 1e-12)
	assert.InDelta(t, 0.0, SNRdB(0, 0), 1e-12)
	assert.False(t, math.IsInf(SNRdB(1, 0), 0))
}

func TestMerge(t *testing.T) {
	t.Run("keeps strongest of each group", func(t *testing.T) {
		in := []modal.PeakCandidate{cand(200, 15, 1), cand(100, 10, 1), cand(101, 20, 1), cand(102.5, 5, 1)}
		got := Merge(in, 0.5, 0.03)
		require.Len(t, got, 2)
		assert.Equal(t, []float64{101, 200}, freqsOf(got))
		assert.Equal(t, 1, got[0].Rank)
		assert.Equal(t, 2, got[1].Rank)
	})

	t.Run("groups chain through neighbours", func(t *testing.T) {
		in := []modal.PeakCandidate{cand(10, 1, 1), cand(10.8, 2, 1), cand(11.6, 9, 1), cand(12.4, 3, 1)}
		got := Merge(in, 1, 0)
		require.Len(t, got, 1)
		assert.Equal(t, 11.6, got[0].Freq())
	})

	t.Run("power breaks snr ties", func(t *testing.T) {
		got := Merge([]modal.PeakCandidate{cand(50, 10, 1), cand(50.2, 10, 3)}, 0.5, 0)
		require.Len(t, got, 1)
		assert.Equal(t, 50.2, got[0].Freq())
	})

	t.Run("idempotent", func(t *testing.T) {
		in := []modal.PeakCandidate{
			cand(30, 4, 1), cand(30.4, 6, 1), cand(31, 2, 1),
			cand(80, 9, 1), cand(82, 12, 1), cand(300, 7, 1), cand(309, 8, 1),
		}
		once := Merge(in, 0.5, 0.03)
		twice := Merge(once, 0.5, 0.03)
		assert.Equal(t, once, twice)
	})

	t.Run("placeholders dropped", func(t *testing.T) {
		got := Merge([]modal.PeakCandidate{modal.NoValidPeaksCandidate()}, 0.5, 0.03)
		assert.Empty(t, got)
	})
}

func TestFlagCoupled(t *testing.T) {
	in := []modal.PeakCandidate{cand(200, 30, 1), cand(105, 10, 1), cand(100, 20, 1)}
	got := FlagCoupled(in, 1.0, 0.06)
	require.Len(t, got, 3)

	assert.Equal(t, []float64{200, 105, 100}, freqsOf(got), "order is preserved")
	assert.False(t, got[0].ReasonCodes.Has(modal.PSDMultiPeak))
	for _, c := range got[1:] {
		assert.True(t, c.ReasonCodes.Has(modal.PSDMultiPeak))
		assert.True(t, c.ReasonCodes.Has(modal.MultiModeSuspected))
	}
	assert.Empty(t, in[1].ReasonCodes, "input is not mutated")
}

func TestSupport(t *testing.T) {
	mk := func(bump int) *spectral.PSD {
		f, p := flatSpectrum(100, map[int]float64{bump: 100})
		return &spectral.PSD{Freqs: f, Power: p, Nperseg: 200, SampleRate: 200}
	}
	psds := []*spectral.PSD{mk(50), mk(51), mk(60), {SampleRate: 200}}

	global := []modal.PeakCandidate{cand(50, 20, 100), cand(60, 20, 100), modal.NoValidPeaksCandidate()}
	Support(global, psds, config.DefaultPeakConfig())

	require.NotNil(t, global[0].DetectionCount)
	assert.Equal(t, 2, *global[0].DetectionCount)
	assert.InDelta(t, 0.5, *global[0].DetectionRatio, 1e-12)
	assert.Equal(t, 1, *global[1].DetectionCount)
	assert.Nil(t, global[2].DetectionCount)
}

func TestRefine(t *testing.T) {
	f, p := flatSpectrum(100, map[int]float64{42: 50})
	psd := &spectral.PSD{Freqs: f, Power: p, Nperseg: 200, SampleRate: 200}

	global := []modal.PeakCandidate{cand(41, 20, 80), modal.NoValidPeaksCandidate()}
	global[0].Rank = 1
	global[0].IsGlobal = true
	global[0].DetectionCount = modal.Int(3)

	got := Refine(psd, global, 1.0, config.DefaultPeakConfig().Band)
	require.Len(t, got, 2)

	require.NotNil(t, got[0].FRefinedHz)
	assert.Equal(t, 42.0, *got[0].FRefinedHz)
	assert.Equal(t, 41.0, got[0].Freq())
	assert.Equal(t, 50.0, *got[0].Power)
	assert.InDelta(t, 10*math.Log10(50), *got[0].SNRdB, 1e-9)
	assert.Equal(t, 1, got[0].Rank)
	assert.True(t, got[0].IsGlobal)
	assert.Equal(t, 3, *got[0].DetectionCount)

	assert.True(t, got[1].IsPlaceholder())
	assert.Nil(t, got[1].FRefinedHz)

	assert.Equal(t, 80.0, *global[0].Power, "global list untouched")

	empty := Refine(&spectral.PSD{}, global, 1.0, config.DefaultPeakConfig().Band)
	assert.Nil(t, empty[0].FRefinedHz)
}

func window(id int, fs float64, accel []float64) modal.HitWindow {
	return modal.HitWindow{
		HitID:      id,
		SampleRate: fs,
		TEnd:       float64(len(accel)) / fs,
		Hammer:     make([]float64, len(accel)),
		Accel:      accel,
	}
}

func globalConfig() config.Config {
	cfg := config.Default()
	cfg.PSD.DfTargetHz = 1
	cfg.Estimators.SettleS = 0
	cfg.Estimators.RingS = 4
	cfg.Workers = 2
	return cfg
}

func TestGlobal(t *testing.T) {
	fs := 1024.0
	rng := rand.New(rand.NewPCG(3, 5))

	var windows []modal.HitWindow
	for h := range 3 {
		x := make([]float64, 4096)
		for i := range x {
			x[i] = math.Sin(2*math.Pi*100*float64(i)/fs) + 0.01*rng.NormFloat64()
		}
		windows = append(windows, window(h+1, fs, x))
	}

	res, err := Global(context.Background(), windows, fs, globalConfig())
	require.NoError(t, err)

	require.Len(t, res.PSDs, 3)
	assert.Len(t, res.Median, len(res.Freqs))
	assert.Equal(t, 513, len(res.Freqs))

	require.NotEmpty(t, res.Peaks)
	top := res.Peaks[0]
	assert.Equal(t, 1, top.Rank)
	assert.True(t, top.IsGlobal)
	assert.InDelta(t, 100.0, top.Freq(), 1e-9)
	require.NotNil(t, top.DetectionCount)
	assert.Equal(t, 3, *top.DetectionCount)
	assert.InDelta(t, 1.0, *top.DetectionRatio, 1e-12)
}

func TestGlobalGridMismatch(t *testing.T) {
	fs := 1000.0
	windows := []modal.HitWindow{
		window(1, fs, make([]float64, 1000)),
		window(2, fs, make([]float64, 300)),
	}

	_, err := Global(context.Background(), windows, fs, globalConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, modal.ErrGridMismatch))
}

func TestGlobalWithoutUsableHits(t *testing.T) {
	res, err := Global(context.Background(), []modal.HitWindow{window(1, 1000, make([]float64, 10))}, 1000, globalConfig())
	require.NoError(t, err)
	require.Len(t, res.Peaks, 1)
	assert.True(t, res.Peaks[0].IsPlaceholder())
	assert.Empty(t, res.Median)
}

func TestGlobalCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Global(ctx, []modal.HitWindow{window(1, 1000, make([]float64, 2000))}, 1000, globalConfig())
	assert.ErrorIs(t, err, context.Canceled)
}
