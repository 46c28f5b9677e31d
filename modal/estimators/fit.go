package estimators

import (
	"math"

	"github.com/RyanBlaney/sonido-modal/algorithms/common"
	"github.com/RyanBlaney/sonido-modal/algorithms/stats"
	"github.com/RyanBlaney/sonido-modal/modal"
)

const (
	eps = 2.220446049250313e-16

	// minFitSamples is the shortest span a decay fit accepts
	minFitSamples = 32
	// minFitEndOffset keeps the fit end this far past the start
	minFitEndOffset = 16
	// minLogFitPoints is the shortest series the log-linear fit accepts
	minLogFitPoints = 8
	// minDecaySeconds is the shortest isolated signal worth fitting
	minDecaySeconds = 0.2
	// minTrendR2 separates a slow decay from a noise plateau in ChooseFitEnd
	minTrendR2 = 0.5
)

// Fit describes one log-linear decay fit over [I0, I1) of an envelope
type Fit struct {
	Zeta        float64           `json:"zeta"`
	R2          float64           `json:"r2"`
	LogC        float64           `json:"log_c"`
	LogM        float64           `json:"log_m"`
	I0          int               `json:"i0"`
	I1          int               `json:"i1"`
	DurationS   float64           `json:"duration_s"`
	Cycles      float64           `json:"cycles"`
	ReasonCodes modal.ReasonCodes `json:"reason_codes"`
}

func failedFit(i0, i1 int, durationS, cycles float64, codes ...modal.ReasonCode) Fit {
	return Fit{
		Zeta:        math.NaN(),
		R2:          math.NaN(),
		LogC:        math.NaN(),
		LogM:        math.NaN(),
		I0:          i0,
		I1:          i1,
		DurationS:   durationS,
		Cycles:      cycles,
		ReasonCodes: modal.ReasonCodes(codes),
	}
}

// ChooseFitEnd picks where a decay fit starting at i0 should stop. The fit
// runs at most max(0.05, fitMaxS) seconds and stops early at the first
// sample at or below noiseMult times the median of the last noiseTailS
// seconds, but never within 16 samples of i0.
//
// A series that starts below that threshold only keeps the full span when
// ln(e) over it is a clean trend (R² >= minTrendR2), as in a lightly damped
// ring whose tail is still ringing. Noise has no such trend and stops at
// i0+16.
func ChooseFitEnd(e []float64, fs float64, i0 int, fitMaxS, noiseTailS, noiseMult float64) int {
	n := len(e)
	if n <= i0+minFitEndOffset {
		return n
	}

	capEnd := min(n, i0+common.RoundInt(math.Max(0.05, fitMaxS)*fs))

	tail := min(n, common.RoundInt(math.Max(0.05, noiseTailS)*fs))
	var noise float64
	if tail >= 8 {
		noise = stats.Median(e[n-tail:])
	} else {
		noise = stats.Median(e)
	}
	thresh := noiseMult * math.Max(noise, eps)

	head := stats.Median(e[i0:min(capEnd, i0+minFitEndOffset)])
	if !(head > thresh) {
		if _, _, r2 := fitLog(e[i0:capEnd], fs); r2 >= minTrendR2 {
			return capEnd
		}
	}

	for i := i0; i < capEnd; i++ {
		if e[i] <= thresh {
			return max(i0+minFitEndOffset, i)
		}
	}
	return capEnd
}

// fitLog fits ln(max(y, eps)) = c + m·t with t in seconds from the first sample
func fitLog(y []float64, fs float64) (logC, logM, r2 float64) {
	if len(y) < minLogFitPoints {
		return math.NaN(), math.NaN(), math.NaN()
	}
	t := make([]float64, len(y))
	ln := make([]float64, len(y))
	for i, v := range y {
		t[i] = float64(i) / fs
		ln[i] = math.Log(math.Max(v, eps))
	}
	logM, logC, r2 = common.LinRegression(t, ln)
	return logC, logM, r2
}

// fitSegment fits the amplitude envelope from i0 to the chosen fit end
func fitSegment(e []float64, fs, fn float64, i0 int, p fitParams) Fit {
	i1 := ChooseFitEnd(e, fs, i0, p.fitMaxS, p.noiseTailS, p.noiseMult)
	if i1-i0 < minFitSamples {
		return failedFit(i0, i1, math.Max(0, float64(i1-i0)/fs), 0, modal.TooShortDecay)
	}

	duration := float64(i1-i0) / fs
	cycles := duration * fn
	if duration < p.minDurationS || cycles < p.minCycles {
		return failedFit(i0, i1, duration, cycles, modal.TooShortDecay)
	}

	logC, logM, r2 := fitLog(e[i0:i1], fs)
	omega := 2 * math.Pi * fn

	return Fit{
		Zeta:      -logM / (omega + eps),
		R2:        r2,
		LogC:      logC,
		LogM:      logM,
		I0:        i0,
		I1:        i1,
		DurationS: duration,
		Cycles:    cycles,
	}
}

type fitParams struct {
	fitMaxS      float64
	noiseTailS   float64
	noiseMult    float64
	minDurationS float64
	minCycles    float64
}
