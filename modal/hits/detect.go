package hits

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-modal/algorithms/common"
	"github.com/RyanBlaney/sonido-modal/algorithms/filters"
	"github.com/RyanBlaney/sonido-modal/algorithms/stats"
	"github.com/RyanBlaney/sonido-modal/logging"
	"github.com/RyanBlaney/sonido-modal/modal"
	"github.com/RyanBlaney/sonido-modal/modal/config"
)

const (
	minBaselineSamples = 1000
	floorPercentile    = 99.9
	floorFraction      = 0.25
)

// Detect finds impacts on the hammer channel and cuts one window per impact
// from both channels. Windows that would run past either end of the
// recording are dropped, never clamped; HitID still advances for them so
// gaps in the IDs expose the drops.
func Detect(hammer, accel []float64, fs float64, cfg config.WindowConfig) ([]modal.HitWindow, modal.DetectionReport, error) {
	report := modal.DetectionReport{Params: cfg}

	if err := validateInput(hammer, accel, fs); err != nil {
		return nil, report, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, report, modal.ConfigError("invalid window configuration", err)
	}

	logger := logging.WithFields(logging.Fields{
		"component": "hit_detector",
		"function":  "Detect",
	})

	if len(hammer) == 0 {
		return []modal.HitWindow{}, report, nil
	}

	env, err := OnsetEnvelope(hammer, fs, cfg)
	if err != nil {
		return nil, report, modal.ConfigError("hammer high-pass design failed", err)
	}

	n0 := max(minBaselineSamples, min(len(env), common.RoundInt(cfg.BaselineS*fs)))
	n0 = min(n0, len(env))
	median, sigma := stats.RobustSigma(env[:n0])

	threshold := math.Max(median+cfg.ThresholdSigma*sigma, floorFraction*stats.Percentile(env, floorPercentile))
	prominence := math.Max(cfg.ProminenceFactor*sigma, floorFraction*threshold)
	separation := max(1, common.RoundInt(cfg.MinSeparationS*fs))

	indices := common.FindPeaks(env, common.PeakOptions{
		Height:     threshold,
		UseHeight:  true,
		Distance:   separation,
		Prominence: prominence,
	})

	report.Found = len(indices)
	report.Threshold = threshold
	report.Median = median
	report.Sigma = sigma
	report.Prominence = prominence
	report.MinSeparation = separation

	windows := Extract(hammer, accel, fs, indices, cfg.PreS, cfg.PostS)
	report.Used = len(windows)
	report.DroppedAtBounds = report.Found - report.Used

	logger.Debug("Hit detection completed", logging.Fields{
		"found":      report.Found,
		"used":       report.Used,
		"dropped":    report.DroppedAtBounds,
		"threshold":  threshold,
		"prominence": prominence,
	})

	return windows, report, nil
}

// OnsetEnvelope is the detection function: zero-phase high-pass, rectify
// per polarity, then a short centred moving mean
func OnsetEnvelope(hammer []float64, fs float64, cfg config.WindowConfig) ([]float64, error) {
	hp, err := Highpass(hammer, fs, cfg.HighpassHz, cfg.HighpassOrder)
	if err != nil {
		return nil, err
	}

	for i, v := range hp {
		switch cfg.Polarity {
		case config.PolarityPositive:
			hp[i] = v
		case config.PolarityNegative:
			hp[i] = -v
		default:
			hp[i] = math.Abs(v)
		}
	}

	return common.MovingAverage(hp, max(1, common.RoundInt(cfg.SmoothS*fs))), nil
}

// Highpass applies a zero-phase Butterworth high-pass with the cutoff
// clamped to [1 Hz, 0.45·Nyquist]
func Highpass(x []float64, fs, cutoffHz float64, order int) ([]float64, error) {
	fc := common.Clamp(cutoffHz, 1.0, 0.45*fs/2)
	sos, err := filters.NewButterworthHighpass(order, fs, fc)
	if err != nil {
		return nil, err
	}
	return sos.FiltFilt(x), nil
}

// Extract cuts [idx-pre, idx+post) windows, dropping any that leave the signal
func Extract(hammer, accel []float64, fs float64, indices []int, preS, postS float64) []modal.HitWindow {
	pre := common.RoundInt(preS * fs)
	post := common.RoundInt(postS * fs)
	n := len(hammer)

	windows := make([]modal.HitWindow, 0, len(indices))
	for i, idx := range indices {
		start := idx - pre
		end := idx + post
		if start < 0 || end > n {
			continue
		}

		h := make([]float64, end-start)
		a := make([]float64, end-start)
		copy(h, hammer[start:end])
		copy(a, accel[start:end])

		windows = append(windows, modal.HitWindow{
			HitID:      i + 1,
			HitIndex:   idx,
			TStart:     float64(start) / fs,
			THit:       float64(idx) / fs,
			TEnd:       float64(end) / fs,
			SampleRate: fs,
			Hammer:     h,
			Accel:      a,
		})
	}
	return windows
}

func validateInput(hammer, accel []float64, fs float64) error {
	if len(hammer) != len(accel) {
		return modal.InputError(modal.ErrCodeLengthMismatch,
			fmt.Sprintf("hammer and accel lengths differ: %d vs %d", len(hammer), len(accel)))
	}
	if !(fs > 0) || math.IsInf(fs, 0) {
		return modal.NewError(modal.KindConfig, modal.ErrCodeBadSampleRate,
			fmt.Sprintf("sample rate must be positive, got %v", fs), nil)
	}
	return nil
}
