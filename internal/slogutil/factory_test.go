package slogutil

import (
	"log/slog"
	"os"
	"strings"
	"testing"

	"tsa/internal/config"
	"tsa/internal/paths"
)

func TestOpenWorkspaceLogger(t *testing.T) {
	root := t.TempDir()

	logger, closer := OpenWorkspaceLogger(root, config.DefaultConfig(), slog.LevelInfo)
	if logger == nil {
		t.Fatal("Logger should not be nil")
	}
	logger.Info("run started", "analysis", "gap")
	if closer != nil {
		_ = closer.Close()
	}

	data, err := os.ReadFile(paths.GetLogPath(root))
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "run started") {
		t.Errorf("Log file missing record, got: %s", data)
	}
}

func TestOpenWorkspaceLoggerNoRoot(t *testing.T) {
	logger, closer := OpenWorkspaceLogger("", nil, slog.LevelInfo)
	if logger == nil {
		t.Fatal("Logger should not be nil")
	}
	if closer != nil {
		t.Error("Expected nil closer for discard logger")
	}
	logger.Info("goes nowhere")
}
