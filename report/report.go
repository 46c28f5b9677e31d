// Package report turns an analysis result into tables and exports them as
// CSV, JSON, YAML, XLSX or an aligned text table.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/RyanBlaney/sonido-modal/modal"
	"github.com/RyanBlaney/sonido-modal/modal/config"
	"github.com/RyanBlaney/sonido-modal/modal/pipeline"
)

// Tool identifies the producer in exported files
const Tool = "sonido-modal"

// Format names an export format
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatCSV   Format = "csv"
	FormatXLSX  Format = "xlsx"
)

// ParseFormat validates an output format name
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case FormatTable, FormatJSON, FormatYAML, FormatCSV, FormatXLSX:
		return f, nil
	case "yml":
		return FormatYAML, nil
	case "excel":
		return FormatXLSX, nil
	case "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unsupported output format %q", name)
	}
}

// Report is one exported run: the result plus what is needed to reproduce it
type Report struct {
	RunID     string           `json:"run_id" yaml:"run_id"`
	Tool      string           `json:"tool" yaml:"tool"`
	CreatedAt time.Time        `json:"created_at" yaml:"created_at"`
	Source    string           `json:"source,omitempty" yaml:"source,omitempty"`
	Config    config.Config    `json:"config" yaml:"config"`
	Result    *pipeline.Result `json:"result" yaml:"result"`
}

// New wraps a result with a fresh run ID
func New(res *pipeline.Result, cfg config.Config, source string) *Report {
	return &Report{
		RunID:     uuid.NewString(),
		Tool:      Tool,
		CreatedAt: time.Now().UTC(),
		Source:    source,
		Config:    cfg,
		Result:    res,
	}
}

// Table is a named grid of cells. Cells are nil, string, int, bool or
// float64; nil means "no value".
type Table struct {
	Name    string
	Columns []string
	Rows    [][]any
}

// Records returns the rows as column-keyed maps
func (t Table) Records() []map[string]any {
	out := make([]map[string]any, len(t.Rows))
	for i, row := range t.Rows {
		rec := make(map[string]any, len(t.Columns))
		for j, c := range t.Columns {
			rec[c] = row[j]
		}
		out[i] = rec
	}
	return out
}

// Table names, also used as CSV file stems and XLSX sheet names
const (
	TableHits      = "hits"
	TablePeaks     = "peaks"
	TableEstimates = "estimates"
	TableSummary   = "summary"
	TableHitFits   = "hit_fits"
)

// Tables returns every table of the report in export order
func (r *Report) Tables() []Table {
	return []Table{
		HitsTable(r.Result),
		PeaksTable(r.Result),
		EstimatesTable(r.Result),
		SummaryTable(r.Result),
		HitFitsTable(r.Result),
	}
}

func val(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func ival(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func codes(rc modal.ReasonCodes) string {
	return strings.Join(rc.Strings(), ";")
}

// HitsTable lists the detected windows
func HitsTable(res *pipeline.Result) Table {
	t := Table{
		Name:    TableHits,
		Columns: []string{"hit_id", "hit_index", "t_start_s", "t_hit_s", "t_end_s", "n_samples"},
	}
	for _, w := range res.Windows {
		t.Rows = append(t.Rows, []any{w.HitID, w.HitIndex, w.TStart, w.THit, w.TEnd, w.Len()})
	}
	return t
}

// PeaksTable lists the global peaks
func PeaksTable(res *pipeline.Result) Table {
	t := Table{
		Name: TablePeaks,
		Columns: []string{"rank", "f_bin_hz", "power", "noise_floor", "snr_db",
			"detection_count", "detection_ratio", "reason_codes"},
	}
	for _, p := range res.GlobalPeaks {
		t.Rows = append(t.Rows, []any{
			p.Rank, val(p.FBinHz), val(p.Power), val(p.Floor), val(p.SNRdB),
			ival(p.DetectionCount), val(p.DetectionRatio), codes(p.ReasonCodes),
		})
	}
	return t
}

// EstimatesTable lists every estimate with its diagnostics flattened into
// one column per key, keys sorted
func EstimatesTable(res *pipeline.Result) Table {
	keySet := make(map[string]struct{})
	for _, e := range res.Estimates {
		for k := range e.Diagnostics {
			keySet[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	t := Table{
		Name: TableEstimates,
		Columns: append([]string{"hit_id", "peak_rank", "method", "f_bin_hz", "f_refined_hz",
			"zeta", "status", "reason_codes"}, keys...),
	}
	for _, e := range res.Estimates {
		row := []any{
			e.HitID, e.PeakRank, string(e.Method), val(e.FBinHz), val(e.FRefinedHz),
			val(e.Zeta), string(e.Status), codes(e.ReasonCodes),
		}
		for _, k := range keys {
			row = append(row, e.Diagnostics[k])
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// SummaryTable lists the per peak and method aggregates
func SummaryTable(res *pipeline.Result) Table {
	t := Table{Name: TableSummary, Columns: []string{"peak_rank", "f_bin_hz", "method"}}
	for _, s := range modal.Statuses() {
		t.Columns = append(t.Columns, "n_"+string(s))
	}
	t.Columns = append(t.Columns, "accepted", "zeta_median", "zeta_mad", "zeta_min", "zeta_max", "f_refined_median_hz")

	for _, s := range res.Summary {
		row := []any{s.PeakRank, val(s.FBinHz), string(s.Method)}
		for _, st := range modal.Statuses() {
			row = append(row, s.Counts[st])
		}
		row = append(row, s.Accepted, val(s.ZetaMedian), val(s.ZetaMAD), val(s.ZetaMin), val(s.ZetaMax), val(s.FRefinedMedian))
		t.Rows = append(t.Rows, row)
	}
	return t
}

// HitFitsTable lists the compact per-hit fit report
func HitFitsTable(res *pipeline.Result) Table {
	t := Table{
		Name: TableHitFits,
		Columns: []string{"hit_id", "hit_index", "t0_s", "t1_s", "fn_hz", "zeta", "snr_db",
			"env_fit_r2", "env_log_c", "env_log_m", "variant", "reject_reason", "fit_t0_s", "fit_t1_s"},
	}
	for _, f := range res.HitFits {
		t.Rows = append(t.Rows, []any{
			f.HitID, f.HitIndex, f.T0S, f.T1S, val(f.FnHz), val(f.Zeta), val(f.SNRdB),
			val(f.EnvFitR2), val(f.EnvLogC), val(f.EnvLogM), f.Variant, f.RejectReason,
			val(f.FitT0S), val(f.FitT1S),
		})
	}
	return t
}
