package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"tsa/internal/config"
	"tsa/internal/slogutil"
	"tsa/internal/version"
)

var (
	// verbosity counts -v occurrences; quiet suppresses all logs
	verbosity int
	quietFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "tsa",
	Short: "TSA - Tolerance Stackup Analysis",
	Long: `TSA analyzes mechanical tolerance stackups: it chains dimensioned features
across components and computes the assembly gap by worst case, root sum
square, and Monte Carlo simulation, with process capability indices against
spec limits.`,
	Version: version.Version,
}

func init() {
	rootCmd.SetVersionTemplate("tsa version {{.Version}}\n")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v",
		"Increase log verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false,
		"Suppress all log output")
}

// resolveLogLevel determines the effective log level.
// Precedence: CLI flags > TSA_LOG_LEVEL env var > workspace config > warn.
func resolveLogLevel(cfg *config.Config) slog.Level {
	if quietFlag || verbosity > 0 {
		return slogutil.LevelFromVerbosity(verbosity, quietFlag)
	}

	if env := os.Getenv("TSA_LOG_LEVEL"); env != "" {
		return slogutil.LevelFromString(env)
	}

	if cfg != nil && cfg.Logging.Level != "" {
		return slogutil.LevelFromString(cfg.Logging.Level)
	}

	return slog.LevelWarn
}
