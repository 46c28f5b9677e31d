package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-modal/logging"
	"github.com/RyanBlaney/sonido-modal/modal/pipeline"
	"github.com/RyanBlaney/sonido-modal/report"
	"github.com/RyanBlaney/sonido-modal/transcode"
)

var (
	analyzeDest    string
	analyzeTimeout time.Duration
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file]",
	Short: "Estimate natural frequencies and damping from an impact recording",
	Long: `Run the full analysis on a stereo recording: detect impacts, select the
resonances shared by the hits, and estimate the damping ratio of every
(hit, resonance) pair with all four estimators.

Examples:
  # Summary tables on the terminal
  sonido-modal analyze plate.wav

  # Hammer on the right channel, full JSON report
  sonido-modal analyze --hammer-channel 1 -o json plate.wav > plate.json

  # One CSV per table plus run.yaml
  sonido-modal analyze -o csv --out results/ plate.flac

  # Excel workbook
  sonido-modal analyze -o xlsx --out plate.xlsx plate.wav`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVar(&analyzeDest, "out", "",
		"destination directory (csv) or file (xlsx)")
	analyzeCmd.Flags().DurationVar(&analyzeTimeout, "timeout", 10*time.Minute,
		"overall time limit for decoding and analysis")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	path := args[0]

	appConfig, err := loadAppConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	spec, format, err := parseCommon(appConfig)
	if err != nil {
		return err
	}

	logger := logging.WithFields(logging.Fields{
		"component": "cmd",
		"function":  "runAnalyze",
		"path":      path,
	})

	ctx, cancel := context.WithTimeout(cmd.Context(), analyzeTimeout)
	defer cancel()

	dec := transcode.NewDecoder(appConfig.Decoder.Transcode())
	res, err := pipeline.RunFileWith(ctx, dec, path, spec, appConfig.Analysis)
	if err != nil {
		logger.Error(err, "Analysis failed")
		return err
	}

	rep := report.New(res, appConfig.Analysis, path)
	if err := report.Write(cmd.OutOrStdout(), format, analyzeDest, rep); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if format == report.FormatCSV || format == report.FormatXLSX {
		fmt.Fprintf(os.Stderr, "%sReport %s written to %s%s\n", ColorGreen, rep.RunID, analyzeDest, ColorReset)
	}
	if len(res.Windows) == 0 {
		fmt.Fprintf(os.Stderr, "%sNo impacts detected; nothing was estimated%s\n", ColorYellow, ColorReset)
	}
	return nil
}
