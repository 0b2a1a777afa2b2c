package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/julienstroheker/wsrelay/internal/config"
	"github.com/julienstroheker/wsrelay/internal/logging"
)

// Set by the root PersistentPreRunE before any subcommand runs
var (
	cfg    *config.Config
	logger *logging.Logger
)

var (
	verboseFlag bool
	jsonFlag    bool
)

var rootCmd = &cobra.Command{
	Use:           "wsrelay",
	Short:         "HTTP and WebSocket relay",
	Long:          `wsrelay forwards HTTP requests and WebSocket sessions to a fixed upstream API`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		logger = newLogger(cfg.LogLevel, verboseFlag, jsonFlag)
		return nil
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose logging (debug level)")
	flags.BoolVar(&jsonFlag, "json", false, "Output logs in JSON format")
}

// newLogger applies --verbose and --json on top of the configured level
func newLogger(level string, verbose, asJSON bool) *logging.Logger {
	lvl := logging.ParseLevel(level)
	if verbose {
		lvl = logging.DebugLevel
	}
	format := logging.FormatConsole
	if asJSON {
		format = logging.FormatJSON
	}

	l := logging.NewWithFormat(lvl, format)
	l.Debug("Logger initialized",
		logging.String("level", lvl.String()),
		logging.String("format", format.String()),
	)
	return l
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
