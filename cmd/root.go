package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/RyanBlaney/sonido-modal/configs"
	"github.com/RyanBlaney/sonido-modal/logging"
	"github.com/RyanBlaney/sonido-modal/modal/pipeline"
	"github.com/RyanBlaney/sonido-modal/report"
)

// ANSI colours for status lines
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
)

const toolName = "sonido-modal"

var (
	configFile    string
	verbose       bool
	logLevel      string
	logFormat     string
	outputFormat  string
	workers       int
	hammerChannel string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   toolName,
	Short: "Modal frequency and damping from impact-hammer recordings",
	Long: `Extract natural frequencies and damping ratios from stereo recordings
of a structure struck repeatedly with an impact hammer.

One channel carries the hammer force, the other an accelerometer. Each
impact is windowed, the strongest resonances common to all hits are
selected, and four estimators report a damping ratio for every hit and
resonance together with the diagnostics that justify accepting or
rejecting it.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initializeConfig(cmd)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%serror: %v%s\n", ColorRed, err, ColorReset)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file (default is $HOME/.config/sonido-modal/sonido-modal.yaml)")

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"verbose output (debug logging)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text",
		"log format (text, json)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table",
		"output format (table, json, yaml, csv, xlsx)")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0,
		"parallel (hit, peak) estimations (default is the number of CPUs)")
	rootCmd.PersistentFlags().StringVar(&hammerChannel, "hammer-channel", "auto",
		"channel carrying the hammer (0, 1, auto)")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("output_format", rootCmd.PersistentFlags().Lookup("output"))
	viper.BindPFlag("hammer_channel", rootCmd.PersistentFlags().Lookup("hammer-channel"))
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			os.Exit(1)
		}

		viper.AddConfigPath(home)
		viper.AddConfigPath(filepath.Join(home, ".config", toolName))
		viper.AddConfigPath("/etc/" + toolName)
		viper.AddConfigPath("./configs")
		viper.SetConfigName(toolName)
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix(configs.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if err := configs.SetDefaults(viper.GetViper()); err != nil {
		fmt.Fprintf(os.Stderr, "Error setting defaults: %v\n", err)
		os.Exit(1)
	}

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
		}
	} else if configFile != "" {
		fmt.Fprintf(os.Stderr, "%sError reading config file %s: %v%s\n", ColorRed, configFile, err, ColorReset)
		os.Exit(1)
	}
}

// initializeConfig initializes configuration after flags are parsed
func initializeConfig(cmd *cobra.Command) error {
	if err := bindFlags(cmd, viper.GetViper()); err != nil {
		return err
	}
	return setupLogging()
}

// bindFlags binds each cobra flag to its associated viper configuration
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	var lastErr error

	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		envVarSuffix := strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))

		// Apply the viper config value to the flag when the flag is not set and viper has a value
		if !f.Changed && v.IsSet(f.Name) {
			val := v.Get(f.Name)
			if err := cmd.Flags().Set(f.Name, fmt.Sprintf("%v", val)); err != nil {
				lastErr = err
			}
		}

		if err := v.BindPFlag(f.Name, f); err != nil {
			lastErr = err
		}

		if err := v.BindEnv(f.Name, configs.EnvPrefix+"_"+envVarSuffix); err != nil {
			lastErr = err
		}
	})

	return lastErr
}

// setupLogging installs the global logger chosen by --log-format. Logs go
// to stderr so reports on stdout can be piped.
func setupLogging() error {
	level, err := logging.ParseLevel(viper.GetString("log_level"))
	if err != nil {
		return err
	}
	if viper.GetBool("verbose") {
		level = logging.DebugLevel
	}

	switch strings.ToLower(viper.GetString("log_format")) {
	case "json":
		logging.SetGlobalLogger(logging.NewZapLogger(os.Stderr, level))
	case "text", "":
		logger := logging.NewStderrLogger()
		logger.SetLevel(level)
		logging.SetGlobalLogger(logger)
	default:
		return fmt.Errorf("unsupported log format %q", viper.GetString("log_format"))
	}
	return nil
}

// loadAppConfig decodes the effective configuration and applies the flags
// that map onto analysis options
func loadAppConfig(cmd *cobra.Command) (*configs.Config, error) {
	appConfig, err := configs.LoadConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("workers") {
		appConfig.Analysis.Workers = workers
	}
	if appConfig.Analysis.Workers == 0 {
		appConfig.Analysis.Workers = runtime.NumCPU()
	}
	if err := appConfig.Validate(); err != nil {
		return nil, err
	}
	return appConfig, nil
}

func parseCommon(appConfig *configs.Config) (pipeline.ChannelSpec, report.Format, error) {
	spec, err := pipeline.ParseChannelSpec(appConfig.HammerChannel)
	if err != nil {
		return "", "", err
	}
	format, err := report.ParseFormat(appConfig.OutputFormat)
	if err != nil {
		return "", "", err
	}
	return spec, format, nil
}
