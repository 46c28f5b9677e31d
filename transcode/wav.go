package transcode

import (
	"fmt"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteStereoWAV encodes two full-scale channels as integer PCM WAV.
// Samples outside [-1, 1] are clipped.
func WriteStereoWAV(path string, ch0, ch1 []float64, sampleRate, bitDepth int) error {
	if len(ch0) != len(ch1) {
		return fmt.Errorf("channel lengths differ: %d vs %d", len(ch0), len(ch1))
	}
	switch bitDepth {
	case 16, 24, 32:
	default:
		return fmt.Errorf("unsupported bit depth %d", bitDepth)
	}
	if sampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	full := float64(int64(1)<<(bitDepth-1)) - 1
	data := make([]int, 2*len(ch0))
	for i := range ch0 {
		data[2*i] = quantize(ch0[i], full)
		data[2*i+1] = quantize(ch1[i], full)
	}

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("output file creation error: %w", err)
	}

	enc := wav.NewEncoder(out, sampleRate, bitDepth, 2, wavFormatPCM)
	if err := enc.Write(buf); err != nil {
		out.Close()
		return fmt.Errorf("data writing error: %w", err)
	}
	if err := enc.Close(); err != nil {
		out.Close()
		return fmt.Errorf("finalising wav: %w", err)
	}
	return out.Close()
}

func quantize(v, full float64) int {
	v = math.Max(-1, math.Min(1, v))
	return int(math.Round(v * full))
}
