package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/RyanBlaney/sonido-modal/logging"
	"github.com/RyanBlaney/sonido-modal/modal"
	"github.com/RyanBlaney/sonido-modal/modal/config"
	"github.com/RyanBlaney/sonido-modal/modal/synth"
)

// SyntheticRunSuite analyses the default synthetic recording once and
// checks every stage against the known mode
type SyntheticRunSuite struct {
	suite.Suite

	logger logging.Logger
	sc     synth.ImpactConfig
	mode   synth.Mode
	res    *Result
}

func (s *SyntheticRunSuite) SetupSuite() {
	s.logger = logging.WithFields(logging.Fields{
		"component": "synthetic_run_suite",
	})

	s.sc = synth.DefaultImpactConfig()
	s.mode = s.sc.Modes[0]
	rec, err := synth.Render(s.sc)
	s.Require().NoError(err)

	cfg := config.Default()
	cfg.Workers = 2
	s.res, err = Run(context.Background(), Input{Hammer: rec.Hammer, Accel: rec.Accel, SampleRate: rec.SampleRate}, cfg)
	s.Require().NoError(err)

	s.logger.Info("Synthetic run ready", logging.Fields{
		"hits":      len(s.res.Windows),
		"peaks":     len(s.res.GlobalPeaks),
		"estimates": len(s.res.Estimates),
	})
}

func (s *SyntheticRunSuite) TestEveryHitIsWindowed() {
	s.Len(s.res.Windows, s.sc.Hits)
	s.Equal(s.sc.Hits, s.res.Report.Used)
}

func (s *SyntheticRunSuite) TestTopPeakIsTheMode() {
	s.Require().NotEmpty(s.res.GlobalPeaks)
	top := s.res.GlobalPeaks[0]
	s.Equal(1, top.Rank)
	s.InDelta(s.mode.FreqHz, top.Freq(), 0.5)
	s.Require().NotNil(top.DetectionCount)
	s.Equal(s.sc.Hits, *top.DetectionCount)
}

func (s *SyntheticRunSuite) TestEstimateRowsAreOrdered() {
	s.Len(s.res.Estimates, s.sc.Hits*len(s.res.GlobalPeaks)*len(modal.Methods()))

	// hit asc, rank asc, method order
	methods := modal.Methods()
	for i := 1; i < len(s.res.Estimates); i++ {
		prev, cur := s.res.Estimates[i-1], s.res.Estimates[i]
		if prev.HitID == cur.HitID {
			s.LessOrEqual(prev.PeakRank, cur.PeakRank)
		} else {
			s.Less(prev.HitID, cur.HitID)
		}
		s.Equal(methods[i%len(methods)], cur.Method)
	}
}

func (s *SyntheticRunSuite) TestEstablishedEnvelopeRecoversDamping() {
	est := rowsFor(s.res.Estimates, 1, modal.MethodTDEnvelopeEst)
	s.Require().Len(est, s.sc.Hits)
	for _, e := range est {
		s.Require().NotNil(e.Zeta, "hit %d", e.HitID)
		s.InDelta(s.mode.Zeta, *e.Zeta, 0.00015, "hit %d", e.HitID)
		s.NotEqual(modal.StatusRejected, e.Status, "hit %d: %v", e.HitID, e.ReasonCodes)
	}
}

func (s *SyntheticRunSuite) TestEnergyEnvelopeIsEffectiveOnly() {
	for _, e := range rowsFor(s.res.Estimates, 1, modal.MethodEnergyEnvelopeSq) {
		s.True(e.ReasonCodes.Has(modal.EffectiveDampingOnly))
		if e.Zeta != nil {
			s.InDelta(s.mode.Zeta/2, *e.Zeta, 0.0001, "hit %d", e.HitID)
		}
	}
}

func (s *SyntheticRunSuite) TestSummaryAggregatesAcceptedHits() {
	var row *SummaryRow
	for i := range s.res.Summary {
		if s.res.Summary[i].PeakRank == 1 && s.res.Summary[i].Method == modal.MethodTDEnvelopeEst {
			row = &s.res.Summary[i]
		}
	}
	s.Require().NotNil(row)
	s.Equal(s.sc.Hits, row.Accepted)
	s.Require().NotNil(row.ZetaMedian)
	s.InDelta(s.mode.Zeta, *row.ZetaMedian, 0.00015)
	s.Require().NotNil(row.FRefinedMedian)
	s.InDelta(s.mode.FreqHz, *row.FRefinedMedian, 0.5)
}

func (s *SyntheticRunSuite) TestHitFits() {
	s.Require().Len(s.res.HitFits, s.sc.Hits)
	for i, f := range s.res.HitFits {
		s.Equal(s.res.Windows[i].HitID, f.HitID)
		s.False(f.Rejected(), "hit %d: %s", f.HitID, f.RejectReason)
		s.Require().NotNil(f.Zeta)
		s.InDelta(s.mode.Zeta, *f.Zeta, 0.00015)
		s.Require().NotNil(f.FitT0S)
		s.GreaterOrEqual(*f.FitT0S, f.T0S)
		s.Greater(*f.FitT1S, *f.FitT0S)
		s.NotNil(f.SNRdB)
	}
}

func TestSyntheticRunSuite(t *testing.T) {
	suite.Run(t, new(SyntheticRunSuite))
}
