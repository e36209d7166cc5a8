// Package export writes result snapshots to files: a JSON report with
// deterministic float formatting, and a CSV dump of the raw Monte Carlo
// iteration data for audit. Reports embed the analysis configuration so
// they can be read without access to the workspace database.
package export

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"tsa/internal/errors"
	"tsa/internal/output"
	"tsa/internal/slogutil"
	"tsa/internal/stackup"
	"tsa/internal/version"
)

// Exporter writes analysis results to report and sample files
type Exporter struct {
	logger *slog.Logger
}

// NewExporter creates a new exporter. A nil logger discards export logs.
func NewExporter(logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	return &Exporter{logger: logger}
}

// BuildReport wraps an analysis and its results in the export envelope.
// A nil analysis is allowed; the report then omits the configuration.
func (e *Exporter) BuildReport(analysis *stackup.Analysis, results *stackup.Results) *Report {
	return &Report{
		Tool:      "tsa " + version.Info(),
		Generated: time.Now().UTC().Format(time.RFC3339),
		Analysis:  analysis,
		Results:   results,
	}
}

// EncodeReport renders a report as indented JSON with stable key order and
// floats rounded to opts.FloatPrecision decimal places. Encoding the same
// snapshot twice yields byte-identical output.
func (e *Exporter) EncodeReport(report *Report, opts Options) ([]byte, error) {
	opts = opts.normalized()

	data, err := output.DeterministicEncodeIndentedTo(report, opts.Indent, opts.FloatPrecision)
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}

	return append(data, '\n'), nil
}

// WriteReport writes the JSON report for one result snapshot to path,
// creating parent directories as needed.
func (e *Exporter) WriteReport(path string, analysis *stackup.Analysis, results *stackup.Results, opts Options) error {
	if results == nil {
		return errors.NewTsaError(errors.ConfigInvalid, "no results to export", nil)
	}

	data, err := e.EncodeReport(e.BuildReport(analysis, results), opts)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create export directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	e.logger.Info("report written",
		"path", path,
		"bytes", len(data),
		"analysis", results.AnalysisID)

	return nil
}
