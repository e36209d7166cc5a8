package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tsa/internal/errors"
	"tsa/internal/export"
	"tsa/internal/stackup"
	"tsa/internal/storage"
)

var (
	resultsFormat    string
	resultsLimit     int
	resultsAnalysis  string
	exportOutput     string
	exportPrecision  int
	exportSamples    bool
	cleanupRetention time.Duration
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Inspect stored result snapshots",
}

var resultsListCmd = &cobra.Command{
	Use:   "list [analysis]",
	Short: "List stored results, newest first",
	Long: `List stored result snapshots, optionally filtered to one analysis.

Examples:
  tsa results list
  tsa results list gap --limit=5`,
	Args: cobra.MaximumNArgs(1),
	Run:  runResultsList,
}

var resultsShowCmd = &cobra.Command{
	Use:   "show [result-id]",
	Short: "Show one stored result",
	Long: `Show a stored result snapshot by ID, or the latest snapshot of an
analysis with --analysis.

Examples:
  tsa results show 7f3a1c9e-...
  tsa results show --analysis=gap --format=human`,
	Args: cobra.MaximumNArgs(1),
	Run:  runResultsShow,
}

var resultsExportCmd = &cobra.Command{
	Use:   "export [result-id]",
	Short: "Write a stored result as a JSON report",
	Long: `Re-render a stored result snapshot as a JSON report file. The analysis
configuration is attached when it still exists. Raw Monte Carlo samples
are not persisted; use 'tsa run --samples' to dump them at run time.

Examples:
  tsa results export 7f3a1c9e-... --output=exports/gap.json
  tsa results export --analysis=gap --output=exports/gap.json`,
	Args: cobra.MaximumNArgs(1),
	Run:  runResultsExport,
}

var resultsCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove result snapshots older than the retention window",
	Long: `Remove stored result snapshots older than the retention window and
report what remains.

Examples:
  tsa results cleanup
  tsa results cleanup --retention=168h`,
	Run: runResultsCleanup,
}

func init() {
	for _, c := range []*cobra.Command{resultsListCmd, resultsShowCmd, resultsExportCmd, resultsCleanupCmd} {
		c.Flags().StringVar(&resultsFormat, "format", "json", "Output format (json, human)")
	}

	resultsListCmd.Flags().IntVar(&resultsLimit, "limit", 20, "Maximum number of results to list (0 for all)")

	resultsShowCmd.Flags().StringVar(&resultsAnalysis, "analysis", "", "Show the latest result of this analysis")

	resultsExportCmd.Flags().StringVar(&resultsAnalysis, "analysis", "", "Export the latest result of this analysis")
	resultsExportCmd.Flags().StringVar(&exportOutput, "output", "", "Report file path (required)")
	resultsExportCmd.Flags().IntVar(&exportPrecision, "precision", 0, "Float decimal places (workspace default when 0)")
	resultsExportCmd.Flags().BoolVar(&exportSamples, "samples", false, "Dump raw Monte Carlo samples (run-time only)")
	_ = resultsExportCmd.MarkFlagRequired("output")

	resultsCleanupCmd.Flags().DurationVar(&cleanupRetention, "retention", 720*time.Hour,
		"Age past which snapshots are removed")

	resultsCmd.AddCommand(resultsListCmd)
	resultsCmd.AddCommand(resultsShowCmd)
	resultsCmd.AddCommand(resultsExportCmd)
	resultsCmd.AddCommand(resultsCleanupCmd)
	rootCmd.AddCommand(resultsCmd)
}

// ResultsListResponseCLI contains the result listing for CLI output
type ResultsListResponseCLI struct {
	Results    []ResultRecordCLI `json:"results"`
	TotalCount int               `json:"totalCount"`
}

type ResultRecordCLI struct {
	ID        string   `json:"id"`
	Analysis  string   `json:"analysis"`
	CreatedAt string   `json:"createdAt"`
	Nominal   float64  `json:"nominal"`
	Methods   []string `json:"methods"`
}

// CleanupResponseCLI contains the retention cleanup outcome
type CleanupResponseCLI struct {
	Removed   int64  `json:"removed"`
	Remaining int64  `json:"remaining"`
	Oldest    string `json:"oldest,omitempty"`
	Newest    string `json:"newest,omitempty"`
}

func runResultsList(cmd *cobra.Command, args []string) {
	start := time.Now()
	ws := mustOpenWorkspace()
	defer ws.Close()

	analysisID := ""
	if len(args) == 1 {
		analysis, err := ws.findAnalysis(args[0])
		if err != nil {
			fail(err)
		}
		analysisID = analysis.ID
	}

	records, err := storage.NewResultsStore(ws.db).List(analysisID, resultsLimit)
	if err != nil {
		fail(err)
	}

	names, err := analysisNames(ws)
	if err != nil {
		fail(err)
	}

	resp := &ResultsListResponseCLI{
		Results:    make([]ResultRecordCLI, 0, len(records)),
		TotalCount: len(records),
	}
	for _, r := range records {
		name := names[r.AnalysisID]
		if name == "" {
			name = r.AnalysisID
		}
		resp.Results = append(resp.Results, ResultRecordCLI{
			ID:        r.ID,
			Analysis:  name,
			CreatedAt: r.CreatedAt.Format(time.RFC3339),
			Nominal:   r.Nominal,
			Methods:   methodsToStrings(r.Methods),
		})
	}

	printResponse(resp, resultsFormat)

	ws.logger.Debug("results list completed",
		"count", len(records),
		"duration", time.Since(start).Milliseconds())
}

func runResultsShow(cmd *cobra.Command, args []string) {
	ws := mustOpenWorkspace()
	defer ws.Close()

	results, analysisName, err := loadStoredResult(ws, args)
	if err != nil {
		fail(err)
	}

	printResponse(&ResultResponseCLI{
		Analysis: analysisName,
		Results:  results,
	}, resultsFormat)
}

func runResultsExport(cmd *cobra.Command, args []string) {
	ws := mustOpenWorkspace()
	defer ws.Close()

	if exportSamples {
		fail(errors.NewTsaError(errors.ConfigInvalid,
			"raw Monte Carlo samples are not persisted; use 'tsa run --samples' to dump them at run time", nil))
	}

	results, analysisName, err := loadStoredResult(ws, args)
	if err != nil {
		fail(err)
	}

	// Attach the analysis configuration when it still exists; the report
	// carries results alone otherwise.
	analysis, err := storage.NewAnalysisRepository(ws.db).GetByID(results.AnalysisID)
	if err != nil {
		fail(err)
	}

	opts := export.Options{
		FloatPrecision: ws.cfg.Export.FloatPrecision,
		Compress:       ws.cfg.Export.Compress,
	}
	if cmd.Flags().Changed("precision") {
		opts.FloatPrecision = exportPrecision
	}

	if err := export.NewExporter(ws.logger).WriteReport(exportOutput, analysis, results, opts); err != nil {
		fail(err)
	}

	printResponse(&ResultResponseCLI{
		Analysis:   analysisName,
		Results:    results,
		ReportPath: exportOutput,
	}, resultsFormat)
}

func runResultsCleanup(cmd *cobra.Command, args []string) {
	ws := mustOpenWorkspace()
	defer ws.Close()

	store := storage.NewResultsStore(ws.db)
	removed, err := store.Cleanup(cleanupRetention)
	if err != nil {
		fail(err)
	}
	ws.logger.Info("results cleanup completed",
		"removed", removed,
		"retention", cleanupRetention.String())

	remaining, oldest, newest, err := store.Stats()
	if err != nil {
		fail(err)
	}

	resp := &CleanupResponseCLI{Removed: removed, Remaining: remaining}
	if oldest != nil {
		resp.Oldest = oldest.Format(time.RFC3339)
	}
	if newest != nil {
		resp.Newest = newest.Format(time.RFC3339)
	}
	printResponse(resp, resultsFormat)
}

// loadStoredResult resolves a stored snapshot from a positional result ID or
// the --analysis flag (latest snapshot). It also resolves the analysis name
// for display, empty when the analysis no longer exists.
func loadStoredResult(ws *workspace, args []string) (*stackup.Results, string, error) {
	store := storage.NewResultsStore(ws.db)

	var results *stackup.Results
	switch {
	case len(args) == 1:
		r, err := store.GetByID(args[0])
		if err != nil {
			return nil, "", err
		}
		if r == nil {
			return nil, "", errors.NewTsaError(errors.AnalysisNotFound,
				fmt.Sprintf("result %q not found", args[0]), nil)
		}
		results = r
	case resultsAnalysis != "":
		analysis, err := ws.findAnalysis(resultsAnalysis)
		if err != nil {
			return nil, "", err
		}
		r, err := store.Latest(analysis.ID)
		if err != nil {
			return nil, "", err
		}
		if r == nil {
			return nil, "", errors.NewTsaError(errors.AnalysisNotFound,
				fmt.Sprintf("no stored results for analysis %q", analysis.Name), nil)
		}
		return r, analysis.Name, nil
	default:
		return nil, "", errors.NewTsaError(errors.ConfigInvalid,
			"provide a result ID or --analysis", nil)
	}

	analysis, err := storage.NewAnalysisRepository(ws.db).GetByID(results.AnalysisID)
	if err != nil {
		return nil, "", err
	}
	name := ""
	if analysis != nil {
		name = analysis.Name
	}
	return results, name, nil
}

// analysisNames maps analysis IDs to names for listing rows.
func analysisNames(ws *workspace) (map[string]string, error) {
	analyses, err := storage.NewAnalysisRepository(ws.db).List()
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(analyses))
	for _, a := range analyses {
		names[a.ID] = a.Name
	}
	return names, nil
}
