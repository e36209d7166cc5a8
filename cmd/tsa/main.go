package main

import (
	"log/slog"
	"os"

	"tsa/internal/slogutil"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger := slogutil.NewLogger(os.Stderr, slog.LevelError)
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}
