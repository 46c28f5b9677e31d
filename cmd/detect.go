package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-modal/modal/hits"
	"github.com/RyanBlaney/sonido-modal/modal/peaks"
	"github.com/RyanBlaney/sonido-modal/modal/pipeline"
	"github.com/RyanBlaney/sonido-modal/report"
	"github.com/RyanBlaney/sonido-modal/transcode"
)

var stageTimeout time.Duration

var detectCmd = &cobra.Command{
	Use:   "detect [file]",
	Short: "List the impacts found in a recording",
	Long: `Run hit detection only and print the windows that would be analysed,
together with the threshold statistics used to find them.`,
	Args: cobra.ExactArgs(1),
	RunE: runDetect,
}

var peaksCmd = &cobra.Command{
	Use:   "peaks [file]",
	Short: "List the resonances shared by the impacts in a recording",
	Long: `Run hit detection and global peak selection and print the ranked
resonances with their noise floor, SNR and cross-hit support.`,
	Args: cobra.ExactArgs(1),
	RunE: runPeaks,
}

func init() {
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(peaksCmd)

	for _, c := range []*cobra.Command{detectCmd, peaksCmd} {
		c.Flags().DurationVar(&stageTimeout, "timeout", 5*time.Minute,
			"overall time limit for decoding and analysis")
	}
}

// stage runs detection and, when withPeaks is set, global peak selection.
// The partial result is shaped like a full one so the report tables apply.
func stage(cmd *cobra.Command, path string, withPeaks bool) (*pipeline.Result, report.Format, error) {
	appConfig, err := loadAppConfig(cmd)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config: %w", err)
	}
	spec, format, err := parseCommon(appConfig)
	if err != nil {
		return nil, "", err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), stageTimeout)
	defer cancel()

	dec := transcode.NewDecoder(appConfig.Decoder.Transcode())
	in, choice, audio, err := pipeline.LoadFile(ctx, dec, path, spec)
	if err != nil {
		return nil, "", err
	}

	cfg := appConfig.Analysis
	windows, detection, err := hits.Detect(in.Hammer, in.Accel, in.SampleRate, cfg.Window)
	if err != nil {
		return nil, "", err
	}
	res := &pipeline.Result{
		SampleRate: in.SampleRate,
		Windows:    windows,
		Report:     detection,
		AutoDetect: choice,
		Source:     audio,
	}

	if withPeaks {
		global, err := peaks.Global(ctx, windows, in.SampleRate, cfg)
		if err != nil {
			return nil, "", err
		}
		res.Global = global
		res.GlobalPeaks = global.Peaks
	}
	return res, format, nil
}

func runDetect(cmd *cobra.Command, args []string) error {
	res, format, err := stage(cmd, args[0], false)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch format {
	case report.FormatTable:
		d := res.Report
		fmt.Fprintf(out, "Hits found %d, used %d, dropped at bounds %d\n", d.Found, d.Used, d.DroppedAtBounds)
		fmt.Fprintf(out, "Threshold %.4g (median %.4g, sigma %.4g)\n", d.Threshold, d.Median, d.Sigma)
		if res.AutoDetect != nil {
			fmt.Fprintf(out, "Hammer channel %d (auto, confidence %.2f)\n", res.AutoDetect.Channel, res.AutoDetect.Confidence)
		}
		fmt.Fprintln(out)
		return report.WriteText(out, report.HitsTable(res))
	case report.FormatJSON, report.FormatYAML:
		return report.Encode(out, format, struct {
			Detection any `json:"detection" yaml:"detection"`
			Hits      any `json:"hits" yaml:"hits"`
		}{res.Report, report.HitsTable(res).Records()})
	default:
		return fmt.Errorf("detect supports table, json and yaml output, not %s", format)
	}
}

func runPeaks(cmd *cobra.Command, args []string) error {
	res, format, err := stage(cmd, args[0], true)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch format {
	case report.FormatTable:
		fmt.Fprintf(out, "%d hits, %d global peaks\n\n", len(res.Windows), len(res.GlobalPeaks))
		return report.WriteText(out, report.PeaksTable(res))
	case report.FormatJSON, report.FormatYAML:
		return report.Encode(out, format, struct {
			Peaks any `json:"global_peaks" yaml:"global_peaks"`
		}{res.GlobalPeaks})
	default:
		return fmt.Errorf("peaks supports table, json and yaml output, not %s", format)
	}
}
