package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/RyanBlaney/sonido-modal/report"
)

var configWrite string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the configuration an analysis would run with, after merging the
built-in defaults, the config file, SONIDO_MODAL_* environment variables and
command-line flags.

Examples:
  # Show the effective configuration
  sonido-modal config

  # Start a config file from the defaults
  sonido-modal config --write ~/.config/sonido-modal/sonido-modal.yaml`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.Flags().StringVar(&configWrite, "write", "",
		"write the configuration as YAML to this path instead of printing it")
}

func runConfig(cmd *cobra.Command, args []string) error {
	appConfig, err := loadAppConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	format := report.FormatYAML
	if f, err := report.ParseFormat(appConfig.OutputFormat); err == nil && f == report.FormatJSON {
		format = report.FormatJSON
	}

	if configWrite == "" {
		if used := viper.ConfigFileUsed(); used != "" {
			fmt.Fprintf(os.Stderr, "# config file: %s\n", used)
		}
		return report.Encode(cmd.OutOrStdout(), format, appConfig)
	}

	f, err := os.Create(configWrite)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", configWrite, err)
	}
	if err := report.Encode(f, report.FormatYAML, appConfig); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "%sConfiguration written to %s%s\n", ColorGreen, configWrite, ColorReset)
	return nil
}
