package transcode

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-audio/wav"

	"github.com/RyanBlaney/sonido-modal/logging"
)

// ErrNotStereo is returned when a recording does not have exactly two channels
var ErrNotStereo = errors.New("recording is not stereo")

// wavFormatPCM is the RIFF audio format tag for integer PCM
const wavFormatPCM = 1

// StereoAudio is a decoded two-channel recording with de-interleaved,
// full-scale normalised samples
type StereoAudio struct {
	Ch0        []float64     `json:"-"`
	Ch1        []float64     `json:"-"`
	SampleRate float64       `json:"sample_rate"`
	Duration   time.Duration `json:"duration"`
	BitDepth   int           `json:"bit_depth,omitempty"`
	Codec      string        `json:"codec"`
	Source     string        `json:"source"`
	Decoder    string        `json:"decoder"`
}

// AudioMetadata holds detected audio properties from ffprobe
type AudioMetadata struct {
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	Codec      string  `json:"codec"`
	Duration   float64 `json:"duration"`
	Bitrate    int     `json:"bitrate"`
	Format     string  `json:"format"`
}

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	MaxDuration time.Duration `json:"max_duration" yaml:"max_duration" mapstructure:"max_duration"` // 0 keeps the whole file
	FFmpegPath  string        `json:"ffmpeg_path" yaml:"ffmpeg_path" mapstructure:"ffmpeg_path"`
	FFprobePath string        `json:"ffprobe_path" yaml:"ffprobe_path" mapstructure:"ffprobe_path"`
	Timeout     time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"` // per ffmpeg/ffprobe call
	// NativeWAV decodes integer PCM WAV in-process and only shells out for
	// everything else
	NativeWAV bool `json:"native_wav" yaml:"native_wav" mapstructure:"native_wav"`
}

// DefaultDecoderConfig returns default decoder configuration
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		MaxDuration: 0,
		FFmpegPath:  "ffmpeg",  // Assume in PATH
		FFprobePath: "ffprobe", // Assume in PATH
		Timeout:     60 * time.Second,
		NativeWAV:   true,
	}
}

// Decoder turns stereo recordings into sample arrays. Channels are never
// mixed or resampled: the analysis needs both channels at the native rate.
type Decoder struct {
	config *DecoderConfig
}

// NewDecoder creates a new audio decoder
func NewDecoder(config *DecoderConfig) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &Decoder{config: config}
}

// DecodeStereo decodes a two-channel recording
func (d *Decoder) DecodeStereo(ctx context.Context, path string) (*StereoAudio, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "audio_decoder",
		"function":  "DecodeStereo",
		"filename":  path,
	})

	logger.Debug("Starting stereo decode")

	if d.config.NativeWAV && isWAV(path) {
		audio, err := d.decodeWAV(path)
		switch {
		case err == nil:
			return d.truncate(audio), nil
		case errors.Is(err, ErrNotStereo):
			return nil, err
		case errors.Is(err, errUnsupportedWAV):
			logger.Debug("WAV encoding not handled natively, falling back to ffmpeg", logging.Fields{
				"reason": err.Error(),
			})
		default:
			return nil, err
		}
	}

	metadata, err := d.probeFile(ctx, path)
	if err != nil {
		logger.Error(err, "Failed to probe audio file")
		return nil, err
	}

	logger.Debug("Audio metadata detected", logging.Fields{
		"input_sample_rate": metadata.SampleRate,
		"input_channels":    metadata.Channels,
		"input_codec":       metadata.Codec,
		"input_duration":    metadata.Duration,
	})

	if metadata.Channels != 2 {
		return nil, fmt.Errorf("%w: %s has %d channels", ErrNotStereo, path, metadata.Channels)
	}

	return d.decodeWithFFmpeg(ctx, path, metadata)
}

var errUnsupportedWAV = errors.New("unsupported wav encoding")

func isWAV(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		return true
	default:
		return false
	}
}

// decodeWAV reads integer PCM WAV with go-audio
func (d *Decoder) decodeWAV(path string) (*StereoAudio, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open file: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: invalid WAV file", errUnsupportedWAV)
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("%w: audio format %d", errUnsupportedWAV, dec.WavAudioFormat)
	}
	if dec.NumChans != 2 {
		return nil, fmt.Errorf("%w: %s has %d channels", ErrNotStereo, path, dec.NumChans)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("could not read PCM buffer: %w", err)
	}

	bitDepth := int(buf.SourceBitDepth)
	if bitDepth == 0 {
		bitDepth = int(dec.BitDepth)
	}
	if bitDepth < 8 || bitDepth > 32 {
		return nil, fmt.Errorf("%w: bit depth %d", errUnsupportedWAV, bitDepth)
	}

	scale := 1.0 / float64(int64(1)<<(bitDepth-1))
	offset := 0
	if bitDepth == 8 {
		// 8-bit WAV is unsigned
		offset = 128
	}

	interleaved := make([]float64, len(buf.Data))
	for i, v := range buf.Data {
		interleaved[i] = float64(v-offset) * scale
	}
	ch0, ch1 := deinterleave(interleaved)

	fs := float64(buf.Format.SampleRate)
	return &StereoAudio{
		Ch0:        ch0,
		Ch1:        ch1,
		SampleRate: fs,
		Duration:   samplesDuration(len(ch0), fs),
		BitDepth:   bitDepth,
		Codec:      fmt.Sprintf("pcm_s%dle", bitDepth),
		Source:     path,
		Decoder:    "go-audio/wav",
	}, nil
}

// probeFile uses ffprobe to get audio information from a file
func (d *Decoder) probeFile(ctx context.Context, path string) (*AudioMetadata, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-select_streams", "a:0", // first audio stream only
		path,
	}

	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	output, err := exec.CommandContext(ctx, d.config.FFprobePath, args...).Output()
	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			return nil, fmt.Errorf("ffprobe failed: %w, stderr: %s", err, string(exitError.Stderr))
		}
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	return parseFFprobeOutput(output)
}

// parseFFprobeOutput parses ffprobe JSON to extract audio metadata
func parseFFprobeOutput(jsonData []byte) (*AudioMetadata, error) {
	var probe struct {
		Streams []struct {
			CodecType     string `json:"codec_type"`
			CodecName     string `json:"codec_name"`
			SampleRate    string `json:"sample_rate"`
			Channels      int    `json:"channels"`
			Duration      string `json:"duration"`
			BitRate       string `json:"bit_rate"`
			CodecLongName string `json:"codec_long_name"`
		} `json:"streams"`
	}

	if err := json.Unmarshal(jsonData, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	if len(probe.Streams) == 0 {
		return nil, fmt.Errorf("no audio streams found")
	}

	stream := probe.Streams[0]
	if stream.CodecType != "audio" {
		return nil, fmt.Errorf("stream is not audio type: %s", stream.CodecType)
	}

	// the sample rate defines the time axis, so there is no fallback
	sampleRate, err := strconv.Atoi(stream.SampleRate)
	if err != nil || sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %q", stream.SampleRate)
	}

	duration, err := strconv.ParseFloat(stream.Duration, 64)
	if err != nil {
		duration = 0
	}

	bitrate, err := strconv.Atoi(stream.BitRate)
	if err != nil {
		bitrate = 0
	}

	return &AudioMetadata{
		SampleRate: sampleRate,
		Channels:   stream.Channels,
		Codec:      stream.CodecName,
		Duration:   duration,
		Bitrate:    bitrate,
		Format:     stream.CodecLongName,
	}, nil
}

// decodeWithFFmpeg decodes to interleaved f64le at the native rate with
// both channels preserved
func (d *Decoder) decodeWithFFmpeg(ctx context.Context, path string, metadata *AudioMetadata) (*StereoAudio, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "audio_decoder",
		"function":  "decodeWithFFmpeg",
		"filename":  path,
	})

	args := []string{"-v", "error", "-i", path, "-map", "0:a:0"}
	if d.config.MaxDuration > 0 {
		args = append(args, "-t", fmt.Sprintf("%.3f", d.config.MaxDuration.Seconds()))
	}
	args = append(args,
		"-f", "f64le",
		"-acodec", "pcm_f64le",
		"-ac", "2",
		"-ar", strconv.Itoa(metadata.SampleRate),
		"pipe:1",
	)

	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	logger.Debug("Running ffmpeg command", logging.Fields{
		"args": strings.Join(args, " "),
	})

	output, err := exec.CommandContext(ctx, d.config.FFmpegPath, args...).Output()
	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			logger.Error(err, "Ffmpeg decode failed", logging.Fields{
				"stderr": string(exitError.Stderr),
			})
		}
		return nil, fmt.Errorf("ffmpeg decode failed: %w", err)
	}

	samples := bytesToFloat64(output)
	if len(samples) == 0 {
		return nil, fmt.Errorf("no audio samples decoded")
	}
	ch0, ch1 := deinterleave(samples)
	fs := float64(metadata.SampleRate)

	logger.Debug("FFmpeg decode completed successfully", logging.Fields{
		"input_codec":     metadata.Codec,
		"output_samples":  len(samples),
		"output_duration": samplesDuration(len(ch0), fs).Seconds(),
	})

	return &StereoAudio{
		Ch0:        ch0,
		Ch1:        ch1,
		SampleRate: fs,
		Duration:   samplesDuration(len(ch0), fs),
		Codec:      metadata.Codec,
		Source:     path,
		Decoder:    "ffmpeg",
	}, nil
}

func (d *Decoder) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.config.Timeout > 0 {
		return context.WithTimeout(ctx, d.config.Timeout)
	}
	return context.WithCancel(ctx)
}

// truncate applies MaxDuration to a natively decoded recording
func (d *Decoder) truncate(a *StereoAudio) *StereoAudio {
	if d.config.MaxDuration <= 0 {
		return a
	}
	n := int(math.Round(d.config.MaxDuration.Seconds() * a.SampleRate))
	if n >= len(a.Ch0) {
		return a
	}
	a.Ch0 = a.Ch0[:n]
	a.Ch1 = a.Ch1[:n]
	a.Duration = samplesDuration(n, a.SampleRate)
	return a
}

// deinterleave splits L R L R ... into two channels, dropping a trailing
// half frame
func deinterleave(samples []float64) (ch0, ch1 []float64) {
	frames := len(samples) / 2
	ch0 = make([]float64, frames)
	ch1 = make([]float64, frames)
	for i := range frames {
		ch0[i] = samples[2*i]
		ch1[i] = samples[2*i+1]
	}
	return ch0, ch1
}

func samplesDuration(n int, fs float64) time.Duration {
	if fs <= 0 {
		return 0
	}
	return time.Duration(float64(n) / fs * float64(time.Second))
}

// bytesToFloat64 converts raw float64 bytes to []float64
func bytesToFloat64(data []byte) []float64 {
	if len(data)%8 != 0 {
		data = data[:len(data)-(len(data)%8)]
	}

	if len(data) == 0 {
		return nil
	}

	sampleCount := len(data) / 8
	samples := make([]float64, sampleCount)

	for i := range sampleCount {
		bits := binary.LittleEndian.Uint64(data[i*8 : i*8+8])
		samples[i] = math.Float64frombits(bits)
	}

	return samples
}

// ValidateConfig validates the decoder configuration
func (d *Decoder) ValidateConfig() error {
	if d.config.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative: %v", d.config.Timeout)
	}
	if d.config.MaxDuration < 0 {
		return fmt.Errorf("max duration cannot be negative: %v", d.config.MaxDuration)
	}
	return nil
}

// CheckFFmpeg reports whether ffmpeg and ffprobe can be executed
func (d *Decoder) CheckFFmpeg(ctx context.Context) error {
	if err := exec.CommandContext(ctx, d.config.FFmpegPath, "-version").Run(); err != nil {
		return fmt.Errorf("ffmpeg not found at %s: %w", d.config.FFmpegPath, err)
	}
	if err := exec.CommandContext(ctx, d.config.FFprobePath, "-version").Run(); err != nil {
		return fmt.Errorf("ffprobe not found at %s: %w", d.config.FFprobePath, err)
	}
	return nil
}

// GetConfig returns decoder configuration information
func (d *Decoder) GetConfig() map[string]any {
	return map[string]any{
		"max_duration": d.config.MaxDuration,
		"ffmpeg_path":  d.config.FFmpegPath,
		"ffprobe_path": d.config.FFprobePath,
		"timeout":      d.config.Timeout,
		"native_wav":   d.config.NativeWAV,
	}
}
