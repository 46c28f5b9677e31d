package configs

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-modal/modal"
	"github.com/RyanBlaney/sonido-modal/modal/config"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(viper.New())
	require.NoError(t, err)

	assert.Equal(t, config.Default(), cfg.Analysis)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "table", cfg.OutputFormat)
	assert.Equal(t, "auto", cfg.HammerChannel)
	assert.Equal(t, 60*time.Second, cfg.Decoder.Timeout)
	assert.True(t, cfg.Decoder.NativeWAV)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFromYAML(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
log_level: debug
decoder:
  timeout: 5s
analysis:
  window:
    polarity: positive
  peaks:
    band:
      fmax_hz: 1500
  estimators:
    settle_s: 0.02
`)))

	cfg, err := LoadConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.Decoder.Timeout)
	assert.Equal(t, config.PolarityPositive, cfg.Analysis.Window.Polarity)
	assert.Equal(t, 1500.0, cfg.Analysis.Peaks.Band.FmaxHz)
	assert.Equal(t, 0.02, cfg.Analysis.Estimators.SettleS)

	// untouched siblings keep their defaults
	def := config.Default()
	assert.Equal(t, def.Peaks.Band.FminHz, cfg.Analysis.Peaks.Band.FminHz)
	assert.Equal(t, def.Estimators.RingS, cfg.Analysis.Estimators.RingS)
	assert.Equal(t, def.PSD, cfg.Analysis.PSD)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("SONIDO_MODAL_ANALYSIS_WORKERS", "3")
	t.Setenv("SONIDO_MODAL_ANALYSIS_PSD_WINDOW", "hamming")

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	cfg, err := LoadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Analysis.Workers)
	assert.Equal(t, "hamming", cfg.Analysis.PSD.Window)
}

func TestValidateRejectsBadAnalysis(t *testing.T) {
	v := viper.New()
	v.Set("analysis.psd.df_target_hz", 0)
	cfg, err := LoadConfig(v)
	require.NoError(t, err)
	assert.ErrorIs(t, cfg.Validate(), modal.ErrConfig)

	cfg, err = LoadConfig(viper.New())
	require.NoError(t, err)
	cfg.Decoder.Timeout = 0
	assert.ErrorIs(t, cfg.Validate(), modal.ErrConfig)
}

func TestDecoderTranscode(t *testing.T) {
	d := DecoderConfig{FFmpegPath: "/opt/ffmpeg", Timeout: time.Second, MaxDuration: time.Minute, NativeWAV: true}
	tc := d.Transcode()
	assert.Equal(t, "/opt/ffmpeg", tc.FFmpegPath)
	assert.Equal(t, time.Minute, tc.MaxDuration)
	assert.True(t, tc.NativeWAV)
}
