package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"

	"tsa/internal/errors"
	"tsa/internal/output"
	"tsa/internal/stackup"
)

// WriteSamples writes the raw Monte Carlo iteration data as CSV: one row per
// iteration with each contribution's sampled and signed value and the stack
// total. Returns the path actually written, which gains a .zst suffix when
// compression is on.
//
// Raw samples exist only on freshly computed results. Snapshots loaded from
// storage do not carry them.
func (e *Exporter) WriteSamples(path string, results *stackup.Results, opts Options) (string, error) {
	opts = opts.normalized()

	if results == nil || results.MonteCarlo == nil || len(results.MonteCarlo.Samples) == 0 {
		return "", errors.NewTsaError(errors.ConfigInvalid,
			"results carry no Monte Carlo samples; run the analysis with the monte_carlo method to dump them", nil)
	}
	mc := results.MonteCarlo

	for i := range mc.Contributor {
		c := &mc.Contributor[i]
		if len(c.Sampled) != len(mc.Samples) || len(c.Signed) != len(mc.Samples) {
			return "", errors.NewTsaError(errors.InternalError,
				fmt.Sprintf("contribution %s sample series out of step with stack totals", c.ContributionID), nil)
		}
	}

	if opts.Compress && !strings.HasSuffix(path, ".zst") {
		path += ".zst"
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create export directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create samples file: %w", err)
	}

	var sink io.Writer = f
	var enc *zstd.Encoder
	if opts.Compress {
		enc, err = zstd.NewWriter(f)
		if err != nil {
			f.Close()
			return "", fmt.Errorf("failed to open zstd stream: %w", err)
		}
		sink = enc
	}

	if err := writeSampleRows(sink, mc, opts.FloatPrecision); err != nil {
		if enc != nil {
			enc.Close()
		}
		f.Close()
		return "", fmt.Errorf("failed to write samples: %w", err)
	}
	if enc != nil {
		if err := enc.Close(); err != nil {
			f.Close()
			return "", fmt.Errorf("failed to close zstd stream: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close samples file: %w", err)
	}

	e.logger.Info("samples written",
		"path", path,
		"iterations", mc.Iterations,
		"contributions", len(mc.Contributor),
		"compressed", opts.Compress)

	return path, nil
}

// writeSampleRows emits the CSV header and one row per iteration. Columns
// follow mc.Contributor order, which matches the sensitivity order in the
// report.
func writeSampleRows(w io.Writer, mc *stackup.MonteCarloResult, precision int) error {
	cw := csv.NewWriter(w)

	header := make([]string, 0, 2*len(mc.Contributor)+2)
	header = append(header, "iteration")
	for i := range mc.Contributor {
		c := &mc.Contributor[i]
		header = append(header,
			fmt.Sprintf("%s.%s.sampled", c.ComponentName, c.FeatureName),
			fmt.Sprintf("%s.%s.signed", c.ComponentName, c.FeatureName))
	}
	header = append(header, "total")
	if err := cw.Write(header); err != nil {
		return err
	}

	row := make([]string, len(header))
	for i := range mc.Samples {
		row[0] = strconv.Itoa(i + 1)
		col := 1
		for j := range mc.Contributor {
			row[col] = output.FormatFloatTo(mc.Contributor[j].Sampled[i], precision)
			row[col+1] = output.FormatFloatTo(mc.Contributor[j].Signed[i], precision)
			col += 2
		}
		row[col] = output.FormatFloatTo(mc.Samples[i], precision)
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
