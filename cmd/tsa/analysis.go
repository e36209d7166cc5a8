package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tsa/internal/dist"
	"tsa/internal/errors"
	"tsa/internal/stackup"
	"tsa/internal/storage"
)

var (
	analysisFormat      string
	analysisMethods     string
	contribComponent    string
	contribFeature      string
	contribDirection    float64
	contribHalfCount    bool
	limitsUpper         float64
	limitsLower         float64
	limitsClear         bool
	monteCarloIters     int
	monteCarloConf      float64
	monteCarloBins      int
	monteCarloSeed      int64
	monteCarloClearSeed bool
)

var analysisCmd = &cobra.Command{
	Use:   "analysis",
	Short: "Manage stackup analyses",
}

var analysisListCmd = &cobra.Command{
	Use:   "list",
	Short: "List analyses",
	Run:   runAnalysisList,
}

var analysisShowCmd = &cobra.Command{
	Use:   "show <analysis>",
	Short: "Show one analysis configuration",
	Long: `Show an analysis with its methods, spec limits, Monte Carlo settings,
and contribution chain. The analysis may be referenced by name or ID.

Examples:
  tsa analysis show gap
  tsa analysis show gap --format=human`,
	Args: cobra.ExactArgs(1),
	Run:  runAnalysisShow,
}

var analysisCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new analysis",
	Long: `Create an empty analysis. Methods default to the workspace configuration;
enabling monte_carlo pins the workspace simulation defaults onto the
analysis.

Examples:
  tsa analysis create gap
  tsa analysis create clearance --methods=worst_case,rss`,
	Args: cobra.ExactArgs(1),
	Run:  runAnalysisCreate,
}

var analysisAddContributionCmd = &cobra.Command{
	Use:   "add-contribution <analysis>",
	Short: "Add a feature contribution to an analysis",
	Long: `Chain a component feature into the analysis. Component and feature are
referenced by name; direction +1 grows the stack, -1 shrinks it.

Examples:
  tsa analysis add-contribution gap --component=plate --feature=thickness
  tsa analysis add-contribution gap --component=spacer --feature=height --direction=-1
  tsa analysis add-contribution gap --component=rivet --feature=radius --half-count`,
	Args: cobra.ExactArgs(1),
	Run:  runAnalysisAddContribution,
}

var analysisSetMethodsCmd = &cobra.Command{
	Use:   "set-methods <analysis>",
	Short: "Replace the analysis method set",
	Long: `Replace the set of methods the analysis runs. Enabling monte_carlo on an
analysis without simulation settings pins the workspace defaults.

Examples:
  tsa analysis set-methods gap --methods=worst_case,rss,monte_carlo`,
	Args: cobra.ExactArgs(1),
	Run:  runAnalysisSetMethods,
}

var analysisSetLimitsCmd = &cobra.Command{
	Use:   "set-limits <analysis>",
	Short: "Set or clear spec limits",
	Long: `Set the spec limits used for capability indices. Flags not given leave
the existing limit in place; --clear removes both.

Examples:
  tsa analysis set-limits gap --lower=4.8 --upper=5.2
  tsa analysis set-limits gap --clear`,
	Args: cobra.ExactArgs(1),
	Run:  runAnalysisSetLimits,
}

var analysisSetMonteCarloCmd = &cobra.Command{
	Use:   "set-montecarlo <analysis>",
	Short: "Configure the Monte Carlo simulation",
	Long: `Set Monte Carlo settings on the analysis. Flags not given keep the
current value (or the workspace default when none is set yet). A fixed
seed makes reruns byte-identical; --clear-seed returns to wall-clock
seeding.

Examples:
  tsa analysis set-montecarlo gap --iterations=50000
  tsa analysis set-montecarlo gap --seed=42
  tsa analysis set-montecarlo gap --confidence=0.99 --bins=40`,
	Args: cobra.ExactArgs(1),
	Run:  runAnalysisSetMonteCarlo,
}

func init() {
	for _, c := range []*cobra.Command{
		analysisListCmd, analysisShowCmd, analysisCreateCmd,
		analysisAddContributionCmd, analysisSetMethodsCmd,
		analysisSetLimitsCmd, analysisSetMonteCarloCmd,
	} {
		c.Flags().StringVar(&analysisFormat, "format", "json", "Output format (json, human)")
	}

	analysisCreateCmd.Flags().StringVar(&analysisMethods, "methods", "",
		"Comma-separated methods (worst_case, rss, monte_carlo); workspace defaults when empty")

	analysisAddContributionCmd.Flags().StringVar(&contribComponent, "component", "", "Component name (required)")
	analysisAddContributionCmd.Flags().StringVar(&contribFeature, "feature", "", "Feature name (required)")
	analysisAddContributionCmd.Flags().Float64Var(&contribDirection, "direction", 1.0, "Stack direction (+1 or -1)")
	analysisAddContributionCmd.Flags().BoolVar(&contribHalfCount, "half-count", false, "Weight the tolerance at half")
	_ = analysisAddContributionCmd.MarkFlagRequired("component")
	_ = analysisAddContributionCmd.MarkFlagRequired("feature")

	analysisSetMethodsCmd.Flags().StringVar(&analysisMethods, "methods", "", "Comma-separated methods (required)")
	_ = analysisSetMethodsCmd.MarkFlagRequired("methods")

	analysisSetLimitsCmd.Flags().Float64Var(&limitsUpper, "upper", 0, "Upper spec limit")
	analysisSetLimitsCmd.Flags().Float64Var(&limitsLower, "lower", 0, "Lower spec limit")
	analysisSetLimitsCmd.Flags().BoolVar(&limitsClear, "clear", false, "Remove both spec limits")

	analysisSetMonteCarloCmd.Flags().IntVar(&monteCarloIters, "iterations", 0, "Simulation iterations")
	analysisSetMonteCarloCmd.Flags().Float64Var(&monteCarloConf, "confidence", 0, "Confidence level in (0, 1)")
	analysisSetMonteCarloCmd.Flags().IntVar(&monteCarloBins, "bins", 0, "Histogram bin count")
	analysisSetMonteCarloCmd.Flags().Int64Var(&monteCarloSeed, "seed", 0, "Fixed random seed")
	analysisSetMonteCarloCmd.Flags().BoolVar(&monteCarloClearSeed, "clear-seed", false, "Return to wall-clock seeding")

	analysisCmd.AddCommand(analysisListCmd)
	analysisCmd.AddCommand(analysisShowCmd)
	analysisCmd.AddCommand(analysisCreateCmd)
	analysisCmd.AddCommand(analysisAddContributionCmd)
	analysisCmd.AddCommand(analysisSetMethodsCmd)
	analysisCmd.AddCommand(analysisSetLimitsCmd)
	analysisCmd.AddCommand(analysisSetMonteCarloCmd)
	rootCmd.AddCommand(analysisCmd)
}

// AnalysisListResponseCLI contains the analysis listing for CLI output
type AnalysisListResponseCLI struct {
	Analyses   []AnalysisSummaryCLI `json:"analyses"`
	TotalCount int                  `json:"totalCount"`
}

type AnalysisSummaryCLI struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Methods           []string `json:"methods"`
	ContributionCount int      `json:"contributionCount"`
}

// AnalysisShowResponseCLI contains one analysis for CLI output
type AnalysisShowResponseCLI struct {
	ID            string                `json:"id"`
	Name          string                `json:"name"`
	Methods       []string              `json:"methods"`
	UpperSpec     *float64              `json:"upperSpec,omitempty"`
	LowerSpec     *float64              `json:"lowerSpec,omitempty"`
	MonteCarlo    *MonteCarloCLI        `json:"monteCarlo,omitempty"`
	Contributions []ContributionShowCLI `json:"contributions"`
}

type MonteCarloCLI struct {
	Iterations int     `json:"iterations"`
	Confidence float64 `json:"confidence"`
	Bins       int     `json:"bins"`
	Seed       *int64  `json:"seed,omitempty"`
}

type ContributionShowCLI struct {
	ID           string       `json:"id"`
	Component    string       `json:"component"`
	Feature      string       `json:"feature"`
	Direction    float64      `json:"direction"`
	HalfCount    bool         `json:"halfCount,omitempty"`
	Distribution *dist.Params `json:"distribution,omitempty"`
}

func runAnalysisList(cmd *cobra.Command, args []string) {
	start := time.Now()
	ws := mustOpenWorkspace()
	defer ws.Close()

	analyses, err := storage.NewAnalysisRepository(ws.db).List()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing analyses: %v\n", err)
		os.Exit(1)
	}

	resp := &AnalysisListResponseCLI{
		Analyses:   make([]AnalysisSummaryCLI, 0, len(analyses)),
		TotalCount: len(analyses),
	}
	for _, a := range analyses {
		resp.Analyses = append(resp.Analyses, AnalysisSummaryCLI{
			ID:                a.ID,
			Name:              a.Name,
			Methods:           methodsToStrings(a.Methods),
			ContributionCount: len(a.Contributions),
		})
	}

	printResponse(resp, analysisFormat)

	ws.logger.Debug("analysis list completed",
		"count", len(analyses),
		"duration", time.Since(start).Milliseconds())
}

func runAnalysisShow(cmd *cobra.Command, args []string) {
	ws := mustOpenWorkspace()
	defer ws.Close()

	analysis, err := ws.findAnalysis(args[0])
	if err != nil {
		fail(err)
	}

	resp, err := analysisShowResponse(ws, analysis)
	if err != nil {
		fail(err)
	}
	printResponse(resp, analysisFormat)
}

func runAnalysisCreate(cmd *cobra.Command, args []string) {
	ws := mustOpenWorkspace()
	defer ws.Close()

	name := args[0]
	repo := storage.NewAnalysisRepository(ws.db)

	existing, err := repo.GetByName(name)
	if err != nil {
		fail(err)
	}
	if existing != nil {
		fail(errors.NewTsaError(errors.ConfigInvalid,
			fmt.Sprintf("analysis %q already exists", name), nil))
	}

	methods := analysisMethods
	if methods == "" {
		methods = strings.Join(ws.cfg.Defaults.Methods, ",")
	}

	analysis := stackup.NewAnalysis(name)
	if err := applyMethods(ws, analysis, methods); err != nil {
		fail(err)
	}

	if err := analysis.Validate(); err != nil {
		fail(err)
	}
	if err := repo.Create(analysis); err != nil {
		fail(err)
	}

	ws.logger.Info("analysis created", "name", name, "methods", methods)

	resp, err := analysisShowResponse(ws, analysis)
	if err != nil {
		fail(err)
	}
	printResponse(resp, analysisFormat)
}

func runAnalysisAddContribution(cmd *cobra.Command, args []string) {
	ws := mustOpenWorkspace()
	defer ws.Close()

	analysis, err := ws.findAnalysis(args[0])
	if err != nil {
		fail(err)
	}

	component, err := ws.findComponent(contribComponent)
	if err != nil {
		fail(err)
	}
	feature := component.FeatureByName(contribFeature)
	if feature == nil {
		fail(errors.NewTsaError(errors.FeatureNotFound,
			fmt.Sprintf("component %q has no feature %q", component.Name, contribFeature), nil))
	}

	contribution := stackup.NewContribution(component.ID, feature.ID, contribDirection, contribHalfCount)
	if err := contribution.Validate(); err != nil {
		fail(err)
	}

	analysis.AddContribution(contribution)
	if err := storage.NewAnalysisRepository(ws.db).Update(analysis); err != nil {
		fail(err)
	}

	ws.logger.Info("contribution added",
		"analysis", analysis.Name,
		"component", component.Name,
		"feature", feature.Name,
		"direction", contribDirection)

	resp, err := analysisShowResponse(ws, analysis)
	if err != nil {
		fail(err)
	}
	printResponse(resp, analysisFormat)
}

func runAnalysisSetMethods(cmd *cobra.Command, args []string) {
	ws := mustOpenWorkspace()
	defer ws.Close()

	analysis, err := ws.findAnalysis(args[0])
	if err != nil {
		fail(err)
	}

	analysis.Methods = nil
	if err := applyMethods(ws, analysis, analysisMethods); err != nil {
		fail(err)
	}

	if err := analysis.Validate(); err != nil {
		fail(err)
	}
	if err := storage.NewAnalysisRepository(ws.db).Update(analysis); err != nil {
		fail(err)
	}

	resp, err := analysisShowResponse(ws, analysis)
	if err != nil {
		fail(err)
	}
	printResponse(resp, analysisFormat)
}

func runAnalysisSetLimits(cmd *cobra.Command, args []string) {
	ws := mustOpenWorkspace()
	defer ws.Close()

	analysis, err := ws.findAnalysis(args[0])
	if err != nil {
		fail(err)
	}

	if limitsClear {
		analysis.UpperSpec = nil
		analysis.LowerSpec = nil
	} else {
		if cmd.Flags().Changed("upper") {
			upper := limitsUpper
			analysis.UpperSpec = &upper
		}
		if cmd.Flags().Changed("lower") {
			lower := limitsLower
			analysis.LowerSpec = &lower
		}
	}

	if err := storage.NewAnalysisRepository(ws.db).Update(analysis); err != nil {
		fail(err)
	}

	resp, err := analysisShowResponse(ws, analysis)
	if err != nil {
		fail(err)
	}
	printResponse(resp, analysisFormat)
}

func runAnalysisSetMonteCarlo(cmd *cobra.Command, args []string) {
	ws := mustOpenWorkspace()
	defer ws.Close()

	analysis, err := ws.findAnalysis(args[0])
	if err != nil {
		fail(err)
	}

	settings := analysis.MonteCarlo
	if settings == nil {
		settings = defaultMonteCarloSettings(ws)
	}

	if cmd.Flags().Changed("iterations") {
		settings.Iterations = monteCarloIters
	}
	if cmd.Flags().Changed("confidence") {
		settings.Confidence = monteCarloConf
	}
	if cmd.Flags().Changed("bins") {
		settings.Bins = monteCarloBins
	}
	if cmd.Flags().Changed("seed") {
		seed := monteCarloSeed
		settings.Seed = &seed
	}
	if monteCarloClearSeed {
		settings.Seed = nil
	}

	if err := settings.Validate(); err != nil {
		fail(err)
	}

	analysis.MonteCarlo = settings
	if err := storage.NewAnalysisRepository(ws.db).Update(analysis); err != nil {
		fail(err)
	}

	resp, err := analysisShowResponse(ws, analysis)
	if err != nil {
		fail(err)
	}
	printResponse(resp, analysisFormat)
}

// applyMethods enables each method in the comma-separated list. Enabling
// monte_carlo on an analysis without settings pins the workspace defaults.
func applyMethods(ws *workspace, analysis *stackup.Analysis, csv string) error {
	for _, raw := range strings.Split(csv, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		method, err := stackup.ParseMethod(raw)
		if err != nil {
			return err
		}
		analysis.EnableMethod(method)
	}

	if analysis.HasMethod(stackup.MonteCarlo) && analysis.MonteCarlo == nil {
		analysis.MonteCarlo = defaultMonteCarloSettings(ws)
	}
	return nil
}

// defaultMonteCarloSettings builds settings from the workspace config.
func defaultMonteCarloSettings(ws *workspace) *stackup.MonteCarloSettings {
	return &stackup.MonteCarloSettings{
		Iterations: ws.cfg.MonteCarlo.Iterations,
		Confidence: ws.cfg.MonteCarlo.Confidence,
		Bins:       ws.cfg.MonteCarlo.HistogramBins,
	}
}

// analysisShowResponse resolves contribution references against the catalog
// so the CLI shows names instead of IDs. Dangling references fall back to
// the raw IDs.
func analysisShowResponse(ws *workspace, analysis *stackup.Analysis) (*AnalysisShowResponseCLI, error) {
	catalog, err := storage.NewComponentRepository(ws.db).List()
	if err != nil {
		return nil, err
	}

	componentNames := make(map[string]string, len(catalog))
	featureNames := make(map[string]string)
	for i := range catalog {
		c := &catalog[i]
		componentNames[c.ID] = c.Name
		for j := range c.Features {
			featureNames[c.Features[j].ID] = c.Features[j].Name
		}
	}

	resp := &AnalysisShowResponseCLI{
		ID:            analysis.ID,
		Name:          analysis.Name,
		Methods:       methodsToStrings(analysis.Methods),
		UpperSpec:     analysis.UpperSpec,
		LowerSpec:     analysis.LowerSpec,
		Contributions: make([]ContributionShowCLI, 0, len(analysis.Contributions)),
	}

	if analysis.MonteCarlo != nil {
		resp.MonteCarlo = &MonteCarloCLI{
			Iterations: analysis.MonteCarlo.Iterations,
			Confidence: analysis.MonteCarlo.Confidence,
			Bins:       analysis.MonteCarlo.Bins,
			Seed:       analysis.MonteCarlo.Seed,
		}
	}

	for i := range analysis.Contributions {
		c := &analysis.Contributions[i]
		componentName := componentNames[c.ComponentID]
		if componentName == "" {
			componentName = c.ComponentID
		}
		featureName := featureNames[c.FeatureID]
		if featureName == "" {
			featureName = c.FeatureID
		}
		resp.Contributions = append(resp.Contributions, ContributionShowCLI{
			ID:           c.ID,
			Component:    componentName,
			Feature:      featureName,
			Direction:    c.Direction,
			HalfCount:    c.HalfCount,
			Distribution: c.Distribution,
		})
	}

	return resp, nil
}

func methodsToStrings(methods []stackup.Method) []string {
	out := make([]string, 0, len(methods))
	for _, m := range methods {
		out = append(out, string(m))
	}
	return out
}
