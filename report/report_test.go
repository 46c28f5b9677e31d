package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/sonido-modal/modal"
	"github.com/RyanBlaney/sonido-modal/modal/config"
	"github.com/RyanBlaney/sonido-modal/modal/pipeline"
)

func sampleResult() *pipeline.Result {
	peak := modal.PeakCandidate{
		Rank:           1,
		FBinHz:         modal.Float(150.5),
		Power:          modal.Float(2.5),
		Floor:          modal.Float(0.01),
		SNRdB:          modal.Float(23.98),
		IsGlobal:       true,
		DetectionCount: modal.Int(2),
		DetectionRatio: modal.Float(1),
	}
	est := func(hit int, method modal.Method, zeta *float64, status modal.Status, diag modal.Diagnostics) modal.EstimateResult {
		return modal.EstimateResult{
			HitID:       hit,
			PeakRank:    1,
			Method:      method,
			FBinHz:      peak.FBinHz,
			FRefinedHz:  modal.Float(150.7),
			Zeta:        zeta,
			Status:      status,
			Diagnostics: diag,
		}
	}
	estimates := []modal.EstimateResult{
		est(1, modal.MethodTDEnvelopeFull, modal.Float(0.0011), modal.StatusOK, modal.Diagnostics{"env_fit_r2": 0.99, "beating_score": 0.01}),
		est(1, modal.MethodFDHalfPower, nil, modal.StatusNotComputed, modal.Diagnostics{"f1_hz": nil}),
		est(2, modal.MethodTDEnvelopeFull, modal.Float(0.0013), modal.StatusWarning, modal.Diagnostics{"env_fit_r2": 0.97}),
	}
	estimates[1].ReasonCodes = modal.ReasonCodes{modal.HalfPowerNotFoundLeft, modal.SNRLow}

	return &pipeline.Result{
		SampleRate: 8000,
		Windows: []modal.HitWindow{
			{HitID: 1, HitIndex: 1000, TStart: 0.1, THit: 0.125, TEnd: 1.0, SampleRate: 8000, Accel: make([]float64, 7200)},
			{HitID: 2, HitIndex: 9000, TStart: 1.1, THit: 1.125, TEnd: 2.0, SampleRate: 8000, Accel: make([]float64, 7200)},
		},
		GlobalPeaks: []modal.PeakCandidate{peak},
		Estimates:   estimates,
		Summary:     pipeline.Summarize([]modal.PeakCandidate{peak}, estimates),
		HitFits: []pipeline.HitFit{
			{HitID: 1, HitIndex: 1000, T0S: 0.135, T1S: 1.0, FnHz: modal.Float(150.7), Zeta: modal.Float(0.0012), Variant: "established"},
			{HitID: 2, HitIndex: 9000, T0S: 1.135, T1S: 2.0, RejectReason: pipeline.RejectNoPeak},
		},
	}
}

func TestNewAssignsRunID(t *testing.T) {
	a := New(sampleResult(), config.Default(), "a.wav")
	b := New(sampleResult(), config.Default(), "a.wav")
	_, err := uuid.Parse(a.RunID)
	require.NoError(t, err)
	assert.NotEqual(t, a.RunID, b.RunID)
	assert.Equal(t, Tool, a.Tool)
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "json", want: FormatJSON},
		{in: "YML", want: FormatYAML},
		{in: "excel", want: FormatXLSX},
		{in: "", want: FormatTable},
		{in: "pdf", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestEstimatesTableFlattensDiagnostics(t *testing.T) {
	tbl := EstimatesTable(sampleResult())

	base := []string{"hit_id", "peak_rank", "method", "f_bin_hz", "f_refined_hz", "zeta", "status", "reason_codes"}
	assert.Equal(t, append(base, "beating_score", "env_fit_r2", "f1_hz"), tbl.Columns)
	require.Len(t, tbl.Rows, 3)

	assert.Equal(t, "HALF_POWER_NOT_FOUND_LEFT;SNR_LOW", tbl.Rows[1][7])
	assert.Nil(t, tbl.Rows[1][5])
	assert.Nil(t, tbl.Rows[2][8], "missing diagnostic key")
	assert.Equal(t, 0.97, tbl.Rows[2][9])
}

func TestSummaryTableColumns(t *testing.T) {
	tbl := SummaryTable(sampleResult())
	assert.Equal(t, []string{"peak_rank", "f_bin_hz", "method", "n_ok", "n_warning", "n_rejected", "n_not_computed",
		"accepted", "zeta_median", "zeta_mad", "zeta_min", "zeta_max", "f_refined_median_hz"}, tbl.Columns)
	require.Len(t, tbl.Rows, len(modal.Methods()))
	for _, row := range tbl.Rows {
		assert.Len(t, row, len(tbl.Columns))
	}
}

func TestWriteCSVDir(t *testing.T) {
	dir := t.TempDir()
	r := New(sampleResult(), config.Default(), "impact.wav")

	paths, err := WriteCSVDir(dir, r)
	require.NoError(t, err)
	assert.Len(t, paths, 6)

	f, err := os.Open(filepath.Join(dir, "estimates.csv"))
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, "run_id", records[0][0])
	assert.Equal(t, "hit_id", records[0][1])
	for _, rec := range records[1:] {
		assert.Equal(t, r.RunID, rec[0])
	}
	assert.Equal(t, "0.0011", records[1][6])
	assert.Equal(t, "", records[2][6])

	meta, err := os.ReadFile(filepath.Join(dir, "run.yaml"))
	require.NoError(t, err)
	var parsed map[string]any
	require.NoError(t, yaml.Unmarshal(meta, &parsed))
	assert.Equal(t, r.RunID, parsed["run_id"])
	assert.Contains(t, parsed, "config")
}

func TestWriteJSONAndYAML(t *testing.T) {
	r := New(sampleResult(), config.Default(), "impact.wav")

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, r))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, r.RunID, decoded["run_id"])
	result := decoded["result"].(map[string]any)
	assert.Len(t, result["estimates"], 3)
	assert.Len(t, result["hit_fits"], 2)

	buf.Reset()
	require.NoError(t, WriteYAML(&buf, r))
	var y map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &y))
	assert.Equal(t, r.RunID, y["run_id"])
	cfg := y["config"].(map[string]any)
	assert.Contains(t, cfg, "estimators")
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	r := New(sampleResult(), config.Default(), "impact.wav")
	require.NoError(t, WriteXLSX(path, r))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{RunSheet, TableHits, TablePeaks, TableEstimates, TableSummary, TableHitFits}, f.GetSheetList())

	rows, err := f.GetRows(TableEstimates)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Hit Id", rows[0][0])
	assert.Equal(t, "Env Fit R2", rows[0][9])

	run, err := f.GetRows(RunSheet)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(run), 5)
	assert.Equal(t, []string{"run_id", r.RunID}, run[1])

	found := false
	for _, row := range run {
		if len(row) == 2 && row[0] == "config.estimators.settle_s" {
			found = true
			assert.Equal(t, "0.01", row[1])
		}
	}
	assert.True(t, found, "flattened config keys")
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatTable, "", New(sampleResult(), config.Default(), "")))
	out := buf.String()
	assert.Contains(t, out, "SUMMARY")
	assert.Contains(t, out, "Zeta Median")
	assert.Contains(t, out, "no_peak_found")
	assert.True(t, strings.Contains(out, "150.5"))

	assert.Error(t, Write(&buf, FormatCSV, "", New(sampleResult(), config.Default(), "")))
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "F Refined Median Hz", Title("f_refined_median_hz"))
	assert.Equal(t, "Snr Db", Title("snr_db"))
}

func TestTableRecords(t *testing.T) {
	recs := HitsTable(sampleResult()).Records()
	require.Len(t, recs, 2)
	assert.Equal(t, 2, recs[1]["hit_id"])
	assert.Equal(t, 7200, recs[0]["n_samples"])
	assert.Equal(t, 1.125, recs[1]["t_hit_s"])
}

func TestEncodeRejectsTableFormats(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Encode(&buf, FormatCSV, map[string]int{"a": 1}))
	require.NoError(t, Encode(&buf, FormatYAML, map[string]int{"a": 1}))
	assert.Equal(t, "a: 1\n", buf.String())
}
