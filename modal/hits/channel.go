package hits

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-modal/algorithms/stats"
	"github.com/RyanBlaney/sonido-modal/logging"
	"github.com/RyanBlaney/sonido-modal/modal"
)

// channelPickHighpassHz removes drift before judging impulsiveness
const channelPickHighpassHz = 200.0

// ChannelChoice is the outcome of hammer channel auto-detection
type ChannelChoice struct {
	Channel    int        `json:"channel" yaml:"channel"`
	Confidence float64    `json:"confidence" yaml:"confidence"`
	Kurtosis   [2]float64 `json:"kurtosis" yaml:"kurtosis"`
	Method     string     `json:"method" yaml:"method"`
}

// DetectHammerChannel picks the more impulsive of two channels by the
// kurtosis of their high-passed signals. Confidence is the ratio of the
// larger kurtosis to the smaller one; values near 1 mean the pick is weak.
func DetectHammerChannel(ch0, ch1 []float64, fs float64) (ChannelChoice, error) {
	if len(ch0) != len(ch1) {
		return ChannelChoice{}, modal.InputError(modal.ErrCodeLengthMismatch,
			fmt.Sprintf("channel lengths differ: %d vs %d", len(ch0), len(ch1)))
	}
	if len(ch0) < 4 {
		return ChannelChoice{}, modal.InputError(modal.ErrCodeInvalidChannel,
			fmt.Sprintf("need at least 4 samples per channel, got %d", len(ch0)))
	}

	choice := ChannelChoice{Method: "kurtosis"}
	for i, ch := range [][]float64{ch0, ch1} {
		hp, err := Highpass(ch, fs, channelPickHighpassHz, 4)
		if err != nil {
			return ChannelChoice{}, modal.NewError(modal.KindConfig, modal.ErrCodeBadSampleRate,
				"channel detection high-pass design failed", err)
		}
		k := stats.Kurtosis(hp)
		if math.IsNaN(k) {
			k = 0
		}
		choice.Kurtosis[i] = k
	}

	hi := math.Max(choice.Kurtosis[0], choice.Kurtosis[1])
	lo := math.Min(choice.Kurtosis[0], choice.Kurtosis[1])
	if choice.Kurtosis[1] > choice.Kurtosis[0] {
		choice.Channel = 1
	}
	choice.Confidence = hi / (lo + 1e-12)

	logging.Debug("Hammer channel auto-detected", logging.Fields{
		"component":  "hit_detector",
		"function":   "DetectHammerChannel",
		"channel":    choice.Channel,
		"kurtosis_0": choice.Kurtosis[0],
		"kurtosis_1": choice.Kurtosis[1],
		"confidence": choice.Confidence,
	})

	return choice, nil
}
