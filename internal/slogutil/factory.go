package slogutil

import (
	"io"
	"log/slog"

	"tsa/internal/config"
	"tsa/internal/paths"
)

// OpenWorkspaceLogger opens the invocation log at <root>/.tsa/logs/tsa.log,
// applying the rotation settings from the workspace config. Logging must
// never fail a command: on any error it falls back to a discard logger and
// a nil closer.
func OpenWorkspaceLogger(root string, cfg *config.Config, level slog.Level) (*slog.Logger, io.Closer) {
	if root == "" {
		return NewDiscardLogger(), nil
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	if _, err := paths.EnsureLogsDir(root); err != nil {
		return NewDiscardLogger(), nil
	}

	logger, closer, err := NewFileLoggerWithRotation(
		paths.GetLogPath(root), level, cfg.Logging.MaxSize, cfg.Logging.MaxBackups)
	if err != nil {
		return NewDiscardLogger(), nil
	}
	return logger, closer
}
