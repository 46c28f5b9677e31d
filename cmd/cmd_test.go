package cmd

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute(), "%v", args)
	return out.String()
}

func TestSynthThenAnalyze(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plate.wav")
	out := execute(t, "synth", "--hits", "3", "--duration", "8", "--swap", path)
	assert.Contains(t, out, "mode 150.7")

	out = execute(t, "analyze", "--workers", "2", "-o", "json", path)
	var decoded struct {
		RunID  string `json:"run_id"`
		Result struct {
			Windows     []json.RawMessage `json:"windows"`
			GlobalPeaks []struct {
				FBinHz float64 `json:"f_bin_hz"`
			} `json:"global_peaks"`
			Estimates  []json.RawMessage `json:"estimates"`
			AutoDetect *struct {
				Channel int `json:"channel"`
			} `json:"auto_detect"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.NotEmpty(t, decoded.RunID)
	assert.Len(t, decoded.Result.Windows, 3)
	require.NotEmpty(t, decoded.Result.GlobalPeaks)
	assert.InDelta(t, 150.7, decoded.Result.GlobalPeaks[0].FBinHz, 0.5)
	assert.NotEmpty(t, decoded.Result.Estimates)
	require.NotNil(t, decoded.Result.AutoDetect)
	assert.Equal(t, 1, decoded.Result.AutoDetect.Channel)

	out = execute(t, "detect", "-o", "table", path)
	assert.Contains(t, out, "Hits found 3, used 3")
}

func TestConfigCommandPrintsAnalysis(t *testing.T) {
	out := execute(t, "config", "-o", "json", "--workers", "3")
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	analysis := decoded["analysis"].(map[string]any)
	assert.Equal(t, 3.0, analysis["workers"])
	assert.Contains(t, analysis, "estimators")
}
