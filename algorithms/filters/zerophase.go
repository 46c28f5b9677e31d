package filters

// FiltFilt applies the cascade forward and then backward so the result has
// zero phase and squared magnitude response. The signal is extended at both
// ends by odd reflection and each pass starts from the steady state of its
// first sample, which keeps edge transients small.
func (s *SOS) FiltFilt(x []float64) []float64 {
	n := len(x)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	if n < 2 || len(s.Sections) == 0 {
		copy(out, x)
		return out
	}

	padlen := s.defaultPadLen()
	if padlen > n-1 {
		padlen = n - 1
	}

	ext := oddExtend(x, padlen)

	forward := s.filterPrimed(ext)
	reverseInPlace(forward)
	backward := s.filterPrimed(forward)
	reverseInPlace(backward)

	copy(out, backward[padlen:padlen+n])
	return out
}

// defaultPadLen mirrors the usual 3*(2*sections+1) rule, discounting
// first-order sections.
func (s *SOS) defaultPadLen() int {
	zerosB2, zerosA2 := 0, 0
	for _, sec := range s.Sections {
		if sec.B2 == 0 {
			zerosB2++
		}
		if sec.A2 == 0 {
			zerosA2++
		}
	}
	return 3 * (2*len(s.Sections) + 1 - min(zerosB2, zerosA2))
}

func oddExtend(x []float64, padlen int) []float64 {
	n := len(x)
	ext := make([]float64, 0, n+2*padlen)
	for i := padlen; i >= 1; i-- {
		ext = append(ext, 2*x[0]-x[i])
	}
	ext = append(ext, x...)
	for i := n - 2; i >= n-1-padlen; i-- {
		ext = append(ext, 2*x[n-1]-x[i])
	}
	return ext
}

func reverseInPlace(x []float64) {
	for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
		x[i], x[j] = x[j], x[i]
	}
}
