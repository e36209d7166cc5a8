package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"tsa/internal/dist"
	"tsa/internal/project"
	"tsa/internal/storage"
)

var (
	componentFormat string
	importFormat    string
)

var componentCmd = &cobra.Command{
	Use:   "component",
	Short: "Inspect and import the component catalog",
}

var componentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog components",
	Long: `List every component in the workspace catalog with its feature count.

Examples:
  tsa component list
  tsa component list --format=human`,
	Run: runComponentList,
}

var componentShowCmd = &cobra.Command{
	Use:   "show <component>",
	Short: "Show one component's features",
	Long: `Show a component's features with nominal values, tolerance bands, and
declared distributions. The component may be referenced by name or ID.

Examples:
  tsa component show plate
  tsa component show tsa:cmp:6a8e219cf0214c95 --format=human`,
	Args: cobra.ExactArgs(1),
	Run:  runComponentShow,
}

var componentImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a vendor component catalog",
	Long: `Import components from a vendor catalog file (YAML or JSON) into the
workspace. Components are matched by name: existing ones are replaced,
new ones are created. Analyses are not affected.

Examples:
  tsa component import vendor/acme-fasteners.yaml
  tsa component import parts.json --input-format=json`,
	Args: cobra.ExactArgs(1),
	Run:  runComponentImport,
}

func init() {
	componentListCmd.Flags().StringVar(&componentFormat, "format", "json", "Output format (json, human)")
	componentShowCmd.Flags().StringVar(&componentFormat, "format", "json", "Output format (json, human)")
	componentImportCmd.Flags().StringVar(&componentFormat, "format", "json", "Output format (json, human)")
	componentImportCmd.Flags().StringVar(&importFormat, "input-format", "",
		"Catalog file format (yaml, json); detected from the extension when empty")

	componentCmd.AddCommand(componentListCmd)
	componentCmd.AddCommand(componentShowCmd)
	componentCmd.AddCommand(componentImportCmd)
	rootCmd.AddCommand(componentCmd)
}

// ComponentListResponseCLI contains the catalog listing for CLI output
type ComponentListResponseCLI struct {
	Components []ComponentSummaryCLI `json:"components"`
	TotalCount int                   `json:"totalCount"`
}

type ComponentSummaryCLI struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	FeatureCount int    `json:"featureCount"`
}

// ComponentShowResponseCLI contains one component for CLI output
type ComponentShowResponseCLI struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Features []FeatureCLI `json:"features"`
}

type FeatureCLI struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Value        float64      `json:"value"`
	PlusTol      float64      `json:"plusTol"`
	MinusTol     float64      `json:"minusTol"`
	DistKind     string       `json:"distKind,omitempty"`
	Distribution *dist.Params `json:"distribution,omitempty"`
}

func runComponentList(cmd *cobra.Command, args []string) {
	start := time.Now()
	ws := mustOpenWorkspace()
	defer ws.Close()

	components, err := storage.NewComponentRepository(ws.db).List()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing components: %v\n", err)
		os.Exit(1)
	}

	resp := &ComponentListResponseCLI{
		Components: make([]ComponentSummaryCLI, 0, len(components)),
		TotalCount: len(components),
	}
	for i := range components {
		c := &components[i]
		resp.Components = append(resp.Components, ComponentSummaryCLI{
			ID:           c.ID,
			Name:         c.Name,
			FeatureCount: len(c.Features),
		})
	}

	printResponse(resp, componentFormat)

	ws.logger.Debug("component list completed",
		"count", len(components),
		"duration", time.Since(start).Milliseconds())
}

func runComponentShow(cmd *cobra.Command, args []string) {
	ws := mustOpenWorkspace()
	defer ws.Close()

	component, err := ws.findComponent(args[0])
	if err != nil {
		fail(err)
	}

	resp := &ComponentShowResponseCLI{
		ID:       component.ID,
		Name:     component.Name,
		Features: make([]FeatureCLI, 0, len(component.Features)),
	}
	for i := range component.Features {
		f := &component.Features[i]
		resp.Features = append(resp.Features, FeatureCLI{
			ID:           f.ID,
			Name:         f.Name,
			Value:        f.Value,
			PlusTol:      f.PlusTol,
			MinusTol:     f.MinusTol,
			DistKind:     string(f.DistKind),
			Distribution: f.Distribution,
		})
	}

	printResponse(resp, componentFormat)
}

func runComponentImport(cmd *cobra.Command, args []string) {
	start := time.Now()
	ws := mustOpenWorkspace()
	defer ws.Close()

	syncer := project.NewSyncer(ws.db, ws.logger)
	result, err := syncer.ImportCatalog(args[0], importFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error importing catalog: %v\n", err)
		os.Exit(1)
	}

	resp := &SyncResponseCLI{
		Source:            args[0],
		ComponentsCreated: result.ComponentsCreated,
		ComponentsUpdated: result.ComponentsUpdated,
		Warnings:          result.Warnings,
	}

	printResponse(resp, componentFormat)

	ws.logger.Debug("component import completed",
		"file", args[0],
		"created", result.ComponentsCreated,
		"updated", result.ComponentsUpdated,
		"duration", time.Since(start).Milliseconds())
}

// printResponse renders a CLI response in the requested format and exits on
// formatting errors.
func printResponse(resp interface{}, format string) {
	out, err := FormatResponse(resp, OutputFormat(format))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(out)
}
