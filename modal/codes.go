package modal

import (
	"encoding/json"
	"slices"
)

// ReasonCode is a machine-stable flag explaining why an estimate is degraded
// or missing. Values are part of the exported report format.
type ReasonCode string

const (
	// acquisition quality
	SNRLow        ReasonCode = "SNR_LOW"
	ClippedSignal ReasonCode = "CLIPPED_SIGNAL"

	// peak purity
	NoValidPeaks       ReasonCode = "NO_VALID_PEAKS"
	PSDMultiPeak       ReasonCode = "PSD_MULTI_PEAK"
	MultiModeSuspected ReasonCode = "MULTI_MODE_SUSPECTED"

	// time-domain validity
	BeatingDetected      ReasonCode = "BEATING_DETECTED"
	EnvelopeNonMonotonic ReasonCode = "ENVELOPE_NON_MONOTONIC"
	InstantFreqDrift     ReasonCode = "INSTANT_FREQ_DRIFT"
	TooShortDecay        ReasonCode = "TOO_SHORT_DECAY"

	// mode isolation
	FilterInvalidBand  ReasonCode = "FILTER_INVALID_BAND"
	FilterDesignFailed ReasonCode = "FILTER_DESIGN_FAILED"
	FilterRingingRisk  ReasonCode = "FILTER_RINGING_RISK"

	// estimator failures
	HalfPowerNotFoundLeft  ReasonCode = "HALF_POWER_NOT_FOUND_LEFT"
	HalfPowerNotFoundRight ReasonCode = "HALF_POWER_NOT_FOUND_RIGHT"
	HalfPowerAmbiguous     ReasonCode = "HALF_POWER_AMBIGUOUS"
	BadZetaHP              ReasonCode = "BAD_ZETA_HP"
	BadZetaEnergy          ReasonCode = "BAD_ZETA_ENERGY"
	BadZetaTD              ReasonCode = "BAD_ZETA_TD"

	// labelling only, neither hard nor soft
	EffectiveDampingOnly ReasonCode = "EFFECTIVE_DAMPING_ONLY"
)

var hardFailures = map[ReasonCode]struct{}{
	NoValidPeaks:           {},
	TooShortDecay:          {},
	FilterInvalidBand:      {},
	FilterDesignFailed:     {},
	HalfPowerNotFoundLeft:  {},
	HalfPowerNotFoundRight: {},
	HalfPowerAmbiguous:     {},
	BadZetaHP:              {},
	BadZetaEnergy:          {},
	BadZetaTD:              {},
}

var softFailures = map[ReasonCode]struct{}{
	SNRLow:               {},
	ClippedSignal:        {},
	PSDMultiPeak:         {},
	MultiModeSuspected:   {},
	BeatingDetected:      {},
	EnvelopeNonMonotonic: {},
	InstantFreqDrift:     {},
	FilterRingingRisk:    {},
}

// IsHard reports whether the code invalidates an estimate
func (c ReasonCode) IsHard() bool {
	_, ok := hardFailures[c]
	return ok
}

// IsSoft reports whether the code only degrades an estimate
func (c ReasonCode) IsSoft() bool {
	_, ok := softFailures[c]
	return ok
}

// HardFailureCodes returns the hard set in lexical order
func HardFailureCodes() []ReasonCode {
	return sortedKeys(hardFailures)
}

// SoftFailureCodes returns the soft set in lexical order
func SoftFailureCodes() []ReasonCode {
	return sortedKeys(softFailures)
}

// AllReasonCodes returns every known code in lexical order
func AllReasonCodes() []ReasonCode {
	all := append(HardFailureCodes(), SoftFailureCodes()...)
	all = append(all, EffectiveDampingOnly)
	slices.Sort(all)
	return all
}

func sortedKeys(set map[ReasonCode]struct{}) []ReasonCode {
	out := make([]ReasonCode, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// ReasonCodes is an insertion-ordered set. Methods never mutate the
// receiver, so values can be shared between results.
type ReasonCodes []ReasonCode

// With returns a copy with codes appended, skipping duplicates
func (rc ReasonCodes) With(codes ...ReasonCode) ReasonCodes {
	out := make(ReasonCodes, len(rc), len(rc)+len(codes))
	copy(out, rc)
	for _, c := range codes {
		if !out.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// Union returns rc followed by the codes of other not already present
func (rc ReasonCodes) Union(other ReasonCodes) ReasonCodes {
	return rc.With(other...)
}

// Has reports membership
func (rc ReasonCodes) Has(code ReasonCode) bool {
	return slices.Contains(rc, code)
}

// HasHard reports whether any code is a hard failure
func (rc ReasonCodes) HasHard() bool {
	return slices.ContainsFunc(rc, ReasonCode.IsHard)
}

// HasSoft reports whether any code is a soft failure
func (rc ReasonCodes) HasSoft() bool {
	return slices.ContainsFunc(rc, ReasonCode.IsSoft)
}

// Intersects reports whether rc shares a code with codes
func (rc ReasonCodes) Intersects(codes ...ReasonCode) bool {
	for _, c := range codes {
		if rc.Has(c) {
			return true
		}
	}
	return false
}

// IsCoupled reports whether the multi-peak flags are present
func (rc ReasonCodes) IsCoupled() bool {
	return rc.Intersects(PSDMultiPeak, MultiModeSuspected)
}

// Strings returns the codes as plain strings
func (rc ReasonCodes) Strings() []string {
	out := make([]string, len(rc))
	for i, c := range rc {
		out[i] = string(c)
	}
	return out
}

// MarshalJSON encodes an empty set as [] rather than null
func (rc ReasonCodes) MarshalJSON() ([]byte, error) {
	return json.Marshal(rc.Strings())
}

// MarshalYAML encodes the set as a plain string list
func (rc ReasonCodes) MarshalYAML() (any, error) {
	return rc.Strings(), nil
}
