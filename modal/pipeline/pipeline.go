// Package pipeline wires hit detection, global peak selection and the
// per-pair estimators into one run over a stereo impact recording.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/RyanBlaney/sonido-modal/logging"
	"github.com/RyanBlaney/sonido-modal/modal"
	"github.com/RyanBlaney/sonido-modal/modal/config"
	"github.com/RyanBlaney/sonido-modal/modal/estimators"
	"github.com/RyanBlaney/sonido-modal/modal/hits"
	"github.com/RyanBlaney/sonido-modal/modal/peaks"
	"github.com/RyanBlaney/sonido-modal/transcode"
)

// Input is a pair of aligned channels sampled at SampleRate
type Input struct {
	Hammer     []float64
	Accel      []float64
	SampleRate float64
}

// Result is everything one run produces. Estimates are ordered by hit,
// then peak rank, then method.
type Result struct {
	SampleRate  float64                `json:"sample_rate" yaml:"sample_rate"`
	Windows     []modal.HitWindow      `json:"windows" yaml:"windows"`
	Report      modal.DetectionReport  `json:"detection" yaml:"detection"`
	GlobalPeaks []modal.PeakCandidate  `json:"global_peaks" yaml:"global_peaks"`
	Global      *peaks.GlobalResult    `json:"-" yaml:"-"`
	Estimates   []modal.EstimateResult `json:"estimates" yaml:"estimates"`
	Summary     []SummaryRow           `json:"summary" yaml:"summary"`
	HitFits     []HitFit               `json:"hit_fits" yaml:"hit_fits"`
	AutoDetect  *hits.ChannelChoice    `json:"auto_detect,omitempty" yaml:"auto_detect,omitempty"`
	Source      *transcode.StereoAudio `json:"-" yaml:"-"`
	Elapsed     time.Duration          `json:"elapsed" yaml:"elapsed"`
}

// Run analyses one recording. Configuration, grid and input problems halt
// the run with a *modal.Error; data that is merely insufficient shows up as
// reason codes on the estimates.
func Run(ctx context.Context, in Input, cfg config.Config) (*Result, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "pipeline",
		"function":  "Run",
	})
	started := time.Now()

	if err := cfg.Validate(); err != nil {
		return nil, modal.ConfigError("invalid configuration", err)
	}

	windows, report, err := hits.Detect(in.Hammer, in.Accel, in.SampleRate, cfg.Window)
	if err != nil {
		return nil, err
	}
	logger.Info("Hits detected", logging.Fields{
		"found":             report.Found,
		"used":              report.Used,
		"dropped_at_bounds": report.DroppedAtBounds,
	})

	global, err := peaks.Global(ctx, windows, in.SampleRate, cfg)
	if err != nil {
		return nil, err
	}

	estimates, err := estimateAll(ctx, windows, global, in.SampleRate, cfg)
	if err != nil {
		return nil, err
	}

	res := &Result{
		SampleRate:  in.SampleRate,
		Windows:     windows,
		Report:      report,
		GlobalPeaks: global.Peaks,
		Global:      global,
		Estimates:   estimates,
		Summary:     Summarize(global.Peaks, estimates),
		HitFits:     HitFits(windows, global, in.SampleRate, cfg),
		Elapsed:     time.Since(started),
	}

	logger.Info("Analysis complete", logging.Fields{
		"hits":       len(windows),
		"peaks":      len(global.Peaks),
		"estimates":  len(estimates),
		"elapsed_ms": res.Elapsed.Milliseconds(),
	})
	return res, nil
}

// estimateAll fans the (hit, peak) pairs out over a bounded pool. Each task
// owns one slot, so the flattened output is independent of scheduling.
func estimateAll(ctx context.Context, windows []modal.HitWindow, global *peaks.GlobalResult, fs float64, cfg config.Config) ([]modal.EstimateResult, error) {
	nPeaks := len(global.Peaks)
	slots := make([][]modal.EstimateResult, len(windows)*nPeaks)

	workers := max(1, cfg.Workers)
	p := pool.New().WithContext(ctx).WithMaxGoroutines(workers).WithCancelOnError()

	for h, w := range windows {
		if ctx.Err() != nil {
			break
		}
		psd := global.PSDs[h]
		refined := peaks.Refine(psd, global.Peaks, cfg.Peaks.RefineSearchHz, cfg.Peaks.Band)
		for k, peak := range refined {
			slot := h*nPeaks + k
			p.Go(func(ctx context.Context) error {
				if err := ctx.Err(); err != nil {
					return err
				}
				slots[slot] = estimators.EstimatePair(w, peak, fs, cfg)
				return nil
			})
		}
	}

	if err := p.Wait(); err != nil {
		return nil, fmt.Errorf("estimation cancelled: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("estimation cancelled: %w", err)
	}

	out := make([]modal.EstimateResult, 0, len(slots)*len(modal.Methods()))
	for _, rows := range slots {
		out = append(out, rows...)
	}
	return out, nil
}

// ChannelSpec selects the hammer channel of a stereo file: "0", "1" or "auto"
type ChannelSpec string

const (
	ChannelAuto ChannelSpec = "auto"
	Channel0    ChannelSpec = "0"
	Channel1    ChannelSpec = "1"
)

// ParseChannelSpec validates a hammer channel selector
func ParseChannelSpec(s string) (ChannelSpec, error) {
	switch c := ChannelSpec(strings.ToLower(strings.TrimSpace(s))); c {
	case ChannelAuto, Channel0, Channel1:
		return c, nil
	case "":
		return ChannelAuto, nil
	default:
		return "", modal.InputError(modal.ErrCodeInvalidChannel,
			fmt.Sprintf("hammer channel must be 0, 1 or auto, got %q", s))
	}
}

// SplitChannels assigns the decoded channels to hammer and accel. For
// ChannelAuto the more impulsive channel is taken as the hammer and the
// choice is returned.
func SplitChannels(audio *transcode.StereoAudio, spec ChannelSpec) (Input, *hits.ChannelChoice, error) {
	in := Input{SampleRate: audio.SampleRate}
	switch spec {
	case Channel0:
		in.Hammer, in.Accel = audio.Ch0, audio.Ch1
		return in, nil, nil
	case Channel1:
		in.Hammer, in.Accel = audio.Ch1, audio.Ch0
		return in, nil, nil
	case ChannelAuto, "":
		choice, err := hits.DetectHammerChannel(audio.Ch0, audio.Ch1, audio.SampleRate)
		if err != nil {
			return in, nil, err
		}
		if choice.Channel == 0 {
			in.Hammer, in.Accel = audio.Ch0, audio.Ch1
		} else {
			in.Hammer, in.Accel = audio.Ch1, audio.Ch0
		}
		return in, &choice, nil
	default:
		return in, nil, modal.InputError(modal.ErrCodeInvalidChannel, fmt.Sprintf("unknown channel spec %q", spec))
	}
}

// RunFile decodes a stereo recording and runs the analysis on it
func RunFile(ctx context.Context, path string, spec ChannelSpec, cfg config.Config) (*Result, error) {
	return RunFileWith(ctx, transcode.NewDecoder(nil), path, spec, cfg)
}

// RunFileWith is RunFile with a caller-supplied decoder
func RunFileWith(ctx context.Context, dec *transcode.Decoder, path string, spec ChannelSpec, cfg config.Config) (*Result, error) {
	in, choice, audio, err := LoadFile(ctx, dec, path, spec)
	if err != nil {
		return nil, err
	}

	res, err := Run(ctx, in, cfg)
	if err != nil {
		return nil, err
	}
	res.AutoDetect = choice
	res.Source = audio
	return res, nil
}

// LoadFile decodes a stereo recording and assigns its channels. Decoding
// failures come back as input errors coded NOT_STEREO or DECODING_FAILED.
func LoadFile(ctx context.Context, dec *transcode.Decoder, path string, spec ChannelSpec) (Input, *hits.ChannelChoice, *transcode.StereoAudio, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "pipeline",
		"function":  "LoadFile",
		"path":      path,
	})

	audio, err := dec.DecodeStereo(ctx, path)
	if err != nil {
		code := modal.ErrCodeDecodingFailure
		if errors.Is(err, transcode.ErrNotStereo) {
			code = modal.ErrCodeNotStereo
		}
		return Input{}, nil, nil, modal.NewError(modal.KindInput, code, fmt.Sprintf("cannot decode %s", path), err)
	}

	in, choice, err := SplitChannels(audio, spec)
	if err != nil {
		return Input{}, nil, nil, err
	}
	if choice != nil {
		logger.Info("Hammer channel chosen automatically", logging.Fields{
			"channel":    choice.Channel,
			"confidence": choice.Confidence,
		})
	}
	logger.Debug("Recording decoded", logging.Fields{
		"sample_rate": audio.SampleRate,
		"duration":    audio.Duration.String(),
		"decoder":     audio.Decoder,
	})
	return in, choice, audio, nil
}
