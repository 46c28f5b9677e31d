package peaks

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/RyanBlaney/sonido-modal/algorithms/spectral"
	"github.com/RyanBlaney/sonido-modal/algorithms/stats"
	"github.com/RyanBlaney/sonido-modal/logging"
	"github.com/RyanBlaney/sonido-modal/modal"
	"github.com/RyanBlaney/sonido-modal/modal/config"
)

// GlobalResult holds the per-hit spectra, their median and the peaks found in it
type GlobalResult struct {
	Freqs  []float64 `json:"freqs" yaml:"freqs"`
	Median []float64 `json:"median_psd" yaml:"median_psd"`

	// PSDs are in window order; entries may be empty for very short segments
	PSDs  []*spectral.PSD       `json:"-" yaml:"-"`
	Peaks []modal.PeakCandidate `json:"peaks" yaml:"peaks"`
}

// HitPSDs computes the Welch PSD of every window's ring segment concurrently.
// The result keeps window order.
func HitPSDs(ctx context.Context, windows []modal.HitWindow, fs float64, cfg config.Config) ([]*spectral.PSD, error) {
	welch, err := cfg.PSD.Welch()
	if err != nil {
		return nil, modal.ConfigError("invalid psd configuration", err)
	}

	psds := make([]*spectral.PSD, len(windows))
	g, ctx := errgroup.WithContext(ctx)
	if cfg.Workers > 0 {
		g.SetLimit(cfg.Workers)
	}

	for i, w := range windows {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			seg := w.RingSegment(cfg.Estimators.SettleS, cfg.Estimators.RingS)
			psd, err := spectral.Welch(seg, fs, welch)
			if err != nil {
				return fmt.Errorf("hit %d psd: %w", w.HitID, err)
			}
			psds[i] = psd
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return psds, nil
}

// Global builds the median PSD across hits and the global peak list.
// Every non-empty per-hit PSD must share one frequency grid; a mismatch is a
// hard error rather than a silent interpolation.
func Global(ctx context.Context, windows []modal.HitWindow, fs float64, cfg config.Config) (*GlobalResult, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "global_peaks",
		"function":  "Global",
	})

	psds, err := HitPSDs(ctx, windows, fs, cfg)
	if err != nil {
		return nil, err
	}

	result := &GlobalResult{PSDs: psds}

	var ref *spectral.PSD
	rows := make([][]float64, 0, len(psds))
	for i, psd := range psds {
		if psd.Len() == 0 {
			logger.Warn("Ring segment too short for a PSD", logging.Fields{
				"hit_id": windows[i].HitID,
			})
			continue
		}
		if ref == nil {
			ref = psd
		} else if !ref.SameGrid(psd) {
			return nil, modal.NewError(modal.KindGrid, modal.ErrCodeGridMismatch,
				fmt.Sprintf("hit %d psd grid (%d bins, df=%.6g) differs from reference (%d bins, df=%.6g)",
					windows[i].HitID, psd.Len(), psd.Resolution(), ref.Len(), ref.Resolution()), nil)
		}
		rows = append(rows, psd.Power)
	}

	if ref == nil {
		result.Peaks = []modal.PeakCandidate{modal.NoValidPeaksCandidate()}
		logger.Info("No usable PSDs, global peak list is empty", logging.Fields{
			"windows": len(windows),
		})
		return result, nil
	}

	median, err := stats.ColumnMedian(rows)
	if err != nil {
		return nil, modal.NewError(modal.KindGrid, modal.ErrCodeGridMismatch, "median psd", err)
	}
	result.Freqs = append([]float64(nil), ref.Freqs...)
	result.Median = median

	result.Peaks = GlobalPeaks(result.Freqs, median, psds, cfg.Peaks)

	logger.Info("Global peaks selected", logging.Fields{
		"hits":       len(rows),
		"bins":       len(result.Freqs),
		"resolution": ref.Resolution(),
		"peaks":      len(result.Peaks),
	})
	return result, nil
}

// GlobalPeaks selects peaks on the median spectrum: main band, optional low
// band, merge, coupling flags, re-rank and cross-hit support.
func GlobalPeaks(freqs, median []float64, hitPSDs []*spectral.PSD, cfg config.PeakConfig) []modal.PeakCandidate {
	cands := findCandidates(freqs, median, cfg.Band, true)
	if cfg.LowBand.Enabled {
		cands = append(cands, findCandidates(freqs, median, cfg.LowBand.Band(), true)...)
	}
	if len(cands) == 0 {
		return []modal.PeakCandidate{modal.NoValidPeaksCandidate()}
	}

	merged := Merge(cands, cfg.MergeAbsHz, cfg.MergeFrac)
	merged = FlagCoupled(merged, cfg.CoupledAbsHz, cfg.CoupledFrac)
	for i := range merged {
		merged[i].IsGlobal = true
	}
	Rank(merged)

	Support(merged, hitPSDs, cfg)
	return merged
}

// Support fills DetectionCount and DetectionRatio: the number of hits whose
// own PSD has a detection within max(SupportAbsHz, SupportFrac·f) of each
// global peak. Empty PSDs count toward the denominator but never support.
func Support(global []modal.PeakCandidate, hitPSDs []*spectral.PSD, cfg config.PeakConfig) {
	perHit := make([][]float64, len(hitPSDs))
	for h, psd := range hitPSDs {
		if psd.Len() == 0 {
			continue
		}
		cands := findCandidates(psd.Freqs, psd.Power, cfg.Band, false)
		if cfg.LowBand.Enabled {
			cands = append(cands, findCandidates(psd.Freqs, psd.Power, cfg.LowBand.Band(), false)...)
		}
		for _, c := range cands {
			perHit[h] = append(perHit[h], *c.FBinHz)
		}
	}

	nHits := len(hitPSDs)
	for i := range global {
		if global[i].IsPlaceholder() {
			continue
		}
		f := *global[i].FBinHz
		tol := Tolerance(f, cfg.SupportAbsHz, cfg.SupportFrac)

		count := 0
		for _, freqs := range perHit {
			for _, hf := range freqs {
				if math.Abs(hf-f) <= tol {
					count++
					break
				}
			}
		}

		global[i].DetectionCount = modal.Int(count)
		if nHits > 0 {
			global[i].DetectionRatio = modal.Float(float64(count) / float64(nHits))
		}
	}
}
