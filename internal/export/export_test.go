package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"

	"tsa/internal/errors"
	"tsa/internal/output"
	"tsa/internal/stackup"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixtureAnalysis() *stackup.Analysis {
	analysis := stackup.NewAnalysis("gap")
	analysis.EnableMethod(stackup.WorstCase)
	analysis.EnableMethod(stackup.RSS)
	analysis.EnableMethod(stackup.MonteCarlo)

	seed := int64(42)
	analysis.MonteCarlo = &stackup.MonteCarloSettings{
		Iterations: 4,
		Confidence: 0.95,
		Bins:       2,
		Seed:       &seed,
	}

	upper := 5.2
	lower := 4.8
	analysis.UpperSpec = &upper
	analysis.LowerSpec = &lower

	analysis.AddContribution(stackup.NewContribution("cmp-plate", "feat-thickness", 1.0, false))
	analysis.AddContribution(stackup.NewContribution("cmp-spacer", "feat-height", -1.0, false))

	return analysis
}

// fixtureResults builds a snapshot with four Monte Carlo iterations whose
// signed columns sum exactly to the stack totals.
func fixtureResults(analysisID string, seed int64) *stackup.Results {
	results := stackup.NewResults(analysisID)
	results.Nominal = 5.0
	results.WorstCase = &stackup.WorstCaseResult{Min: 4.85, Max: 5.15}
	results.RSS = &stackup.RSSResult{
		Min:    4.888197,
		Max:    5.111803,
		StdDev: 0.0372677996,
	}
	results.MonteCarlo = &stackup.MonteCarloResult{
		Iterations: 4,
		Seed:       seed,
		Mean:       5.0,
		StdDev:     0.0158,
		Min:        4.981,
		Max:        5.019,
		Histogram: []stackup.HistogramBin{
			{Start: 4.981, Count: 2},
			{Start: 5.0, Count: 2},
		},
		Intervals: []stackup.ConfidenceInterval{
			{Level: 0.95, Lower: 4.981, Upper: 5.019},
		},
		Samples: []float64{5.008, 4.992, 5.019, 4.981},
		Contributor: []stackup.ContributorSamples{
			{
				ContributionID: "con-1",
				ComponentName:  "plate",
				FeatureName:    "thickness",
				Sampled:        []float64{10.01, 9.99, 10.02, 9.98},
				Signed:         []float64{10.01, 9.99, 10.02, 9.98},
			},
			{
				ContributionID: "con-2",
				ComponentName:  "spacer",
				FeatureName:    "height",
				Sampled:        []float64{5.002, 4.998, 5.001, 4.999},
				Signed:         []float64{-5.002, -4.998, -5.001, -4.999},
			},
		},
	}
	return results
}

func TestWriteReport(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "tsa-export-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	analysis := fixtureAnalysis()
	results := fixtureResults(analysis.ID, 42)

	exporter := NewExporter(testLogger())
	path := filepath.Join(tmpDir, "report.json")
	if err := exporter.WriteReport(path, analysis, results, Options{}); err != nil {
		t.Fatalf("WriteReport failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read report: %v", err)
	}
	if !strings.HasSuffix(string(data), "\n") {
		t.Error("Report should end with a newline")
	}

	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("Report is not valid JSON: %v", err)
	}

	if !strings.HasPrefix(report.Tool, "tsa ") {
		t.Errorf("Tool = %q, want tsa prefix", report.Tool)
	}
	if _, err := time.Parse(time.RFC3339, report.Generated); err != nil {
		t.Errorf("Generated %q is not RFC 3339: %v", report.Generated, err)
	}
	if report.Analysis == nil || report.Analysis.Name != "gap" {
		t.Errorf("Analysis name not preserved: %+v", report.Analysis)
	}
	if report.Results == nil {
		t.Fatal("Results missing from report")
	}
	if report.Results.Nominal != 5.0 {
		t.Errorf("Nominal = %v, want 5.0", report.Results.Nominal)
	}
	if report.Results.WorstCase == nil || report.Results.WorstCase.Min != 4.85 {
		t.Errorf("WorstCase not preserved: %+v", report.Results.WorstCase)
	}

	// Keys are sorted, so the envelope always opens with the analysis.
	if !strings.HasPrefix(string(data), "{\n  \"analysis\"") {
		t.Errorf("Report does not start with sorted indented keys: %.40q", string(data))
	}

	// Raw sample arrays stay out of the report.
	if strings.Contains(string(data), "\"samples\"") || strings.Contains(string(data), "\"contributor\"") {
		t.Error("Raw sample arrays leaked into the report")
	}
}

func TestWriteReportNilResults(t *testing.T) {
	exporter := NewExporter(nil)
	err := exporter.WriteReport("unused.json", fixtureAnalysis(), nil, Options{})
	if err == nil {
		t.Fatal("Expected error for nil results")
	}
	if !errors.HasCode(err, errors.ConfigInvalid) {
		t.Errorf("Expected ConfigInvalid, got: %v", err)
	}
}

func TestWriteReportCreatesDirectories(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "tsa-export-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	analysis := fixtureAnalysis()
	results := fixtureResults(analysis.ID, 42)

	exporter := NewExporter(nil)
	path := filepath.Join(tmpDir, "exports", "2026", "report.json")
	if err := exporter.WriteReport(path, analysis, results, Options{}); err != nil {
		t.Fatalf("WriteReport failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Report not written under nested directory: %v", err)
	}
}

// Two runs of the same analysis differ only in run identity (result ID,
// timestamps, seed). Their reports must match after snapshot normalization.
func TestReportSnapshotStability(t *testing.T) {
	analysis := fixtureAnalysis()
	first := fixtureResults(analysis.ID, 42)
	second := fixtureResults(analysis.ID, 99)

	exporter := NewExporter(nil)
	firstData, err := exporter.EncodeReport(exporter.BuildReport(analysis, first), Options{})
	if err != nil {
		t.Fatalf("EncodeReport failed: %v", err)
	}
	secondData, err := exporter.EncodeReport(exporter.BuildReport(analysis, second), Options{})
	if err != nil {
		t.Fatalf("EncodeReport failed: %v", err)
	}

	if bytes.Equal(firstData, secondData) {
		t.Fatal("Reports for distinct runs should differ in run identity fields")
	}

	extractResults := func(data []byte) []byte {
		var parsed map[string]json.RawMessage
		if err := json.Unmarshal(data, &parsed); err != nil {
			t.Fatalf("Failed to parse report: %v", err)
		}
		raw, ok := parsed["results"]
		if !ok {
			t.Fatal("Report has no results field")
		}
		return raw
	}

	equal, reason := output.CompareSnapshots(extractResults(firstData), extractResults(secondData))
	if !equal {
		t.Errorf("Normalized result snapshots differ: %s", reason)
	}
}

func TestEncodeReportPrecision(t *testing.T) {
	analysis := fixtureAnalysis()
	results := fixtureResults(analysis.ID, 42)
	exporter := NewExporter(nil)

	tests := []struct {
		name      string
		precision int
		want      string
	}{
		{"default precision", 0, "\"stdDev\": 0.037268"},
		{"two decimals", 2, "\"stdDev\": 0.04"},
		{"three decimals", 3, "\"stdDev\": 0.037"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := exporter.EncodeReport(exporter.BuildReport(analysis, results), Options{FloatPrecision: tt.precision})
			if err != nil {
				t.Fatalf("EncodeReport failed: %v", err)
			}
			if !strings.Contains(string(data), tt.want) {
				t.Errorf("Report at precision %d missing %q", tt.precision, tt.want)
			}
		})
	}
}

func TestWriteSamples(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "tsa-export-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	results := fixtureResults("an-1", 42)
	exporter := NewExporter(testLogger())

	path := filepath.Join(tmpDir, "samples.csv")
	written, err := exporter.WriteSamples(path, results, Options{})
	if err != nil {
		t.Fatalf("WriteSamples failed: %v", err)
	}
	if written != path {
		t.Errorf("Written path = %q, want %q", written, path)
	}

	f, err := os.Open(written)
	if err != nil {
		t.Fatalf("Failed to open samples: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("Failed to parse CSV: %v", err)
	}

	wantHeader := []string{
		"iteration",
		"plate.thickness.sampled", "plate.thickness.signed",
		"spacer.height.sampled", "spacer.height.signed",
		"total",
	}
	if len(records) != 5 {
		t.Fatalf("Got %d records, want header + 4 iterations", len(records))
	}
	for i, col := range wantHeader {
		if records[0][i] != col {
			t.Errorf("Header[%d] = %q, want %q", i, records[0][i], col)
		}
	}

	firstRow := []string{"1", "10.01", "10.01", "5.002", "-5.002", "5.008"}
	for i, cell := range firstRow {
		if records[1][i] != cell {
			t.Errorf("Row 1 col %d = %q, want %q", i, records[1][i], cell)
		}
	}
	if records[4][0] != "4" || records[4][5] != "4.981" {
		t.Errorf("Last row = %v", records[4])
	}
}

func TestWriteSamplesCompressed(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "tsa-export-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	results := fixtureResults("an-1", 42)
	exporter := NewExporter(testLogger())

	path := filepath.Join(tmpDir, "samples.csv")
	written, err := exporter.WriteSamples(path, results, Options{Compress: true})
	if err != nil {
		t.Fatalf("WriteSamples failed: %v", err)
	}
	if !strings.HasSuffix(written, ".csv.zst") {
		t.Errorf("Written path = %q, want .csv.zst suffix", written)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Uncompressed path should not exist, stat err = %v", err)
	}

	compressed, err := os.ReadFile(written)
	if err != nil {
		t.Fatalf("Failed to read compressed samples: %v", err)
	}

	dec, err := zstd.NewReader(bytes.NewReader(compressed))
	if err != nil {
		t.Fatalf("Failed to open zstd stream: %v", err)
	}
	defer dec.Close()

	records, err := csv.NewReader(dec).ReadAll()
	if err != nil {
		t.Fatalf("Failed to parse decompressed CSV: %v", err)
	}
	if len(records) != 5 {
		t.Fatalf("Got %d records, want header + 4 iterations", len(records))
	}
	if records[0][0] != "iteration" || records[0][5] != "total" {
		t.Errorf("Unexpected header: %v", records[0])
	}
	if records[1][5] != "5.008" {
		t.Errorf("Row 1 total = %q, want 5.008", records[1][5])
	}
}

func TestWriteSamplesPrecision(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "tsa-export-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	results := fixtureResults("an-1", 42)
	exporter := NewExporter(nil)

	written, err := exporter.WriteSamples(filepath.Join(tmpDir, "samples.csv"), results, Options{FloatPrecision: 2})
	if err != nil {
		t.Fatalf("WriteSamples failed: %v", err)
	}

	f, err := os.Open(written)
	if err != nil {
		t.Fatalf("Failed to open samples: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("Failed to parse CSV: %v", err)
	}

	// 5.002 rounds to 5 at two decimals, with trailing zeros trimmed.
	if records[1][3] != "5" {
		t.Errorf("Sampled at precision 2 = %q, want 5", records[1][3])
	}
	if records[1][5] != "5.01" {
		t.Errorf("Total at precision 2 = %q, want 5.01", records[1][5])
	}
}

func TestWriteSamplesNoMonteCarlo(t *testing.T) {
	exporter := NewExporter(nil)

	stored := fixtureResults("an-1", 42)
	stored.MonteCarlo.Samples = nil
	stored.MonteCarlo.Contributor = nil

	tests := []struct {
		name    string
		results *stackup.Results
	}{
		{"nil results", nil},
		{"no monte carlo", stackup.NewResults("an-1")},
		{"stored snapshot without raw data", stored},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := exporter.WriteSamples("unused.csv", tt.results, Options{})
			if err == nil {
				t.Fatal("Expected error")
			}
			if !errors.HasCode(err, errors.ConfigInvalid) {
				t.Errorf("Expected ConfigInvalid, got: %v", err)
			}
		})
	}
}

func TestWriteSamplesSeriesMismatch(t *testing.T) {
	results := fixtureResults("an-1", 42)
	results.MonteCarlo.Contributor[1].Signed = results.MonteCarlo.Contributor[1].Signed[:2]

	exporter := NewExporter(nil)
	_, err := exporter.WriteSamples("unused.csv", results, Options{})
	if err == nil {
		t.Fatal("Expected error for out-of-step series")
	}
	if !errors.HasCode(err, errors.InternalError) {
		t.Errorf("Expected InternalError, got: %v", err)
	}
}
