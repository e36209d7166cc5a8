package main

import (
	"time"

	"github.com/spf13/cobra"

	"tsa/internal/paths"
	"tsa/internal/project"
)

var syncFormat string

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Load STACKUP.toml into the workspace store",
	Long: `Parse the workspace STACKUP.toml and upsert its components and analyses
into the store. Declarations match existing entries by name; entries
created directly through the CLI are left alone.

Examples:
  tsa sync
  tsa sync --format=human`,
	Run: runSync,
}

func init() {
	syncCmd.Flags().StringVar(&syncFormat, "format", "json", "Output format (json, human)")
	rootCmd.AddCommand(syncCmd)
}

// SyncResponseCLI contains the declaration sync outcome for CLI output
type SyncResponseCLI struct {
	Source            string   `json:"source"`
	ComponentsCreated int      `json:"componentsCreated"`
	ComponentsUpdated int      `json:"componentsUpdated"`
	AnalysesCreated   int      `json:"analysesCreated"`
	AnalysesUpdated   int      `json:"analysesUpdated"`
	Warnings          []string `json:"warnings,omitempty"`
}

func runSync(cmd *cobra.Command, args []string) {
	start := time.Now()
	ws := mustOpenWorkspace()
	defer ws.Close()

	result, err := project.NewSyncer(ws.db, ws.logger).Sync(ws.root)
	if err != nil {
		fail(err)
	}

	resp := &SyncResponseCLI{
		Source:            paths.GetStackupFilePath(ws.root),
		ComponentsCreated: result.ComponentsCreated,
		ComponentsUpdated: result.ComponentsUpdated,
		AnalysesCreated:   result.AnalysesCreated,
		AnalysesUpdated:   result.AnalysesUpdated,
		Warnings:          result.Warnings,
	}
	printResponse(resp, syncFormat)

	ws.logger.Debug("sync completed",
		"components", result.ComponentsCreated+result.ComponentsUpdated,
		"analyses", result.AnalysesCreated+result.AnalysesUpdated,
		"duration", time.Since(start).Milliseconds())
}
