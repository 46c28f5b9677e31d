package modal

// Classify maps a reason-code set and the presence of ζ to a status.
// Hard failures dominate soft ones; a hard failure without a number is
// not_computed, with a number it is rejected.
func Classify(codes ReasonCodes, zeta *float64) Status {
	switch {
	case codes.HasHard() && zeta == nil:
		return StatusNotComputed
	case codes.HasHard():
		return StatusRejected
	case codes.HasSoft():
		return StatusWarning
	default:
		return StatusOK
	}
}

// WithStatus returns a copy with Status set from the reason codes.
// Numeric fields are untouched, so applying it twice is the same as once.
func (r EstimateResult) WithStatus() EstimateResult {
	r.Status = Classify(r.ReasonCodes, r.Zeta)
	return r
}
