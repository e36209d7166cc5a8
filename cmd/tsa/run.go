package main

import (
	"time"

	"github.com/spf13/cobra"

	"tsa/internal/engine"
	"tsa/internal/export"
	"tsa/internal/stackup"
	"tsa/internal/storage"
)

var (
	runFormat    string
	runReport    string
	runSamples   string
	runCompress  bool
	runPrecision int
)

var runCmd = &cobra.Command{
	Use:   "run <analysis>",
	Short: "Run an analysis and store the results",
	Long: `Run every method enabled on the analysis against the current component
catalog, store the result snapshot, and print it. --report writes a JSON
report file alongside; --samples dumps the raw Monte Carlo iteration
data as CSV (only available at run time, the raw samples are not
persisted).

Examples:
  tsa run gap
  tsa run gap --format=human
  tsa run gap --report=exports/gap.json
  tsa run gap --samples=exports/gap-samples.csv --compress=false`,
	Args: cobra.ExactArgs(1),
	Run:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&runFormat, "format", "json", "Output format (json, human)")
	runCmd.Flags().StringVar(&runReport, "report", "", "Write a JSON report to this path")
	runCmd.Flags().StringVar(&runSamples, "samples", "", "Dump raw Monte Carlo samples as CSV to this path")
	runCmd.Flags().BoolVar(&runCompress, "compress", true, "Compress the samples dump with zstd")
	runCmd.Flags().IntVar(&runPrecision, "precision", 0, "Float decimal places in exports (workspace default when 0)")
	rootCmd.AddCommand(runCmd)
}

// ResultResponseCLI contains one result snapshot for CLI output
type ResultResponseCLI struct {
	Analysis    string           `json:"analysis,omitempty"`
	Results     *stackup.Results `json:"results"`
	ReportPath  string           `json:"reportPath,omitempty"`
	SamplesPath string           `json:"samplesPath,omitempty"`
}

func runRun(cmd *cobra.Command, args []string) {
	start := time.Now()
	ws := mustOpenWorkspace()
	defer ws.Close()

	analysis, err := ws.findAnalysis(args[0])
	if err != nil {
		fail(err)
	}

	// Analyses stored without simulation settings pick up the workspace
	// defaults at run time.
	if analysis.HasMethod(stackup.MonteCarlo) && analysis.MonteCarlo == nil {
		analysis.MonteCarlo = defaultMonteCarloSettings(ws)
	}

	components, err := storage.NewComponentRepository(ws.db).List()
	if err != nil {
		fail(err)
	}

	results, err := engine.NewEngine(ws.logger).Run(analysis, components)
	if err != nil {
		fail(err)
	}

	if err := storage.NewResultsStore(ws.db).Save(results); err != nil {
		fail(err)
	}
	ws.logger.Info("results stored",
		"analysis", analysis.Name,
		"result", results.ID,
		"nominal", results.Nominal)

	resp := &ResultResponseCLI{
		Analysis: analysis.Name,
		Results:  results,
	}

	opts := exportOptions(cmd, ws)
	exporter := export.NewExporter(ws.logger)

	if runReport != "" {
		if err := exporter.WriteReport(runReport, analysis, results, opts); err != nil {
			fail(err)
		}
		resp.ReportPath = runReport
	}
	if runSamples != "" {
		samplesPath, err := exporter.WriteSamples(runSamples, results, opts)
		if err != nil {
			fail(err)
		}
		resp.SamplesPath = samplesPath
	}

	printResponse(resp, runFormat)

	ws.logger.Debug("run completed",
		"analysis", analysis.Name,
		"duration", time.Since(start).Milliseconds())
}

// exportOptions builds export options from the workspace config, with flag
// overrides when the caller set them.
func exportOptions(cmd *cobra.Command, ws *workspace) export.Options {
	opts := export.Options{
		FloatPrecision: ws.cfg.Export.FloatPrecision,
		Compress:       ws.cfg.Export.Compress,
	}
	if cmd.Flags().Changed("compress") {
		opts.Compress = runCompress
	}
	if cmd.Flags().Changed("precision") {
		opts.FloatPrecision = runPrecision
	}
	return opts
}
