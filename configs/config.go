package configs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/RyanBlaney/sonido-modal/modal"
	"github.com/RyanBlaney/sonido-modal/modal/config"
	"github.com/RyanBlaney/sonido-modal/transcode"
)

// EnvPrefix prefixes every environment override, e.g.
// SONIDO_MODAL_ANALYSIS_PEAKS_BAND_FMAX_HZ=1500
const EnvPrefix = "SONIDO_MODAL"

// Config represents the application configuration
type Config struct {
	// Application settings
	Verbose       bool   `json:"verbose" mapstructure:"verbose" yaml:"verbose"`
	LogLevel      string `json:"log_level" mapstructure:"log_level" yaml:"log_level"`
	LogFormat     string `json:"log_format" mapstructure:"log_format" yaml:"log_format"`
	OutputFormat  string `json:"output_format" mapstructure:"output_format" yaml:"output_format"`
	HammerChannel string `json:"hammer_channel" mapstructure:"hammer_channel" yaml:"hammer_channel"`

	// Decoder configuration
	Decoder DecoderConfig `json:"decoder" mapstructure:"decoder" yaml:"decoder"`

	// Analysis configuration
	Analysis config.Config `json:"analysis" mapstructure:"analysis" yaml:"analysis"`
}

// DecoderConfig contains the audio decoding settings
type DecoderConfig struct {
	FFmpegPath  string        `json:"ffmpeg_path" mapstructure:"ffmpeg_path" yaml:"ffmpeg_path"`
	FFprobePath string        `json:"ffprobe_path" mapstructure:"ffprobe_path" yaml:"ffprobe_path"`
	Timeout     time.Duration `json:"timeout" mapstructure:"timeout" yaml:"timeout"`
	MaxDuration time.Duration `json:"max_duration" mapstructure:"max_duration" yaml:"max_duration"`
	NativeWAV   bool          `json:"native_wav" mapstructure:"native_wav" yaml:"native_wav"`
}

// Transcode converts the settings to the decoder's form
func (d DecoderConfig) Transcode() *transcode.DecoderConfig {
	return &transcode.DecoderConfig{
		MaxDuration: d.MaxDuration,
		FFmpegPath:  d.FFmpegPath,
		FFprobePath: d.FFprobePath,
		Timeout:     d.Timeout,
		NativeWAV:   d.NativeWAV,
	}
}

// LoadConfig loads configuration from v, filling every key v does not set
// from the built-in defaults
func LoadConfig(v *viper.Viper) (*Config, error) {
	if err := SetDefaults(v); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the analysis section and the application settings
func (c *Config) Validate() error {
	if err := c.Analysis.Validate(); err != nil {
		return modal.ConfigError("invalid analysis configuration", err)
	}
	if c.Decoder.Timeout <= 0 {
		return modal.ConfigError(fmt.Sprintf("decoder timeout must be positive, got %s", c.Decoder.Timeout), nil)
	}
	if c.Decoder.MaxDuration < 0 {
		return modal.ConfigError(fmt.Sprintf("decoder max duration cannot be negative, got %s", c.Decoder.MaxDuration), nil)
	}
	return nil
}

// SetDefaults registers a default for every leaf key of the configuration.
// Analysis defaults are taken from config.Default so the two never drift.
func SetDefaults(v *viper.Viper) error {
	v.SetDefault("verbose", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("output_format", "table")
	v.SetDefault("hammer_channel", "auto")

	dec := transcode.DefaultDecoderConfig()
	v.SetDefault("decoder.ffmpeg_path", dec.FFmpegPath)
	v.SetDefault("decoder.ffprobe_path", dec.FFprobePath)
	v.SetDefault("decoder.timeout", dec.Timeout)
	v.SetDefault("decoder.max_duration", dec.MaxDuration)
	v.SetDefault("decoder.native_wav", dec.NativeWAV)

	analysis, err := leafKeys("analysis", config.Default())
	if err != nil {
		return fmt.Errorf("flattening analysis defaults: %w", err)
	}
	for k, val := range analysis {
		v.SetDefault(k, val)
	}
	return nil
}

// leafKeys flattens a struct into dotted keys through its JSON form, which
// carries the same names as the mapstructure tags
func leafKeys(prefix string, src any) (map[string]any, error) {
	raw, err := json.Marshal(src)
	if err != nil {
		return nil, err
	}
	var tree map[string]any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, err
	}
	out := make(map[string]any)
	flatten(prefix, tree, out)
	return out, nil
}

func flatten(prefix string, v any, out map[string]any) {
	m, ok := v.(map[string]any)
	if !ok {
		out[prefix] = v
		return
	}
	for k, child := range m {
		flatten(prefix+"."+k, child, out)
	}
}
