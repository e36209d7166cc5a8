package main

import (
	"fmt"
	"strings"

	"tsa/internal/dist"
	"tsa/internal/output"
	"tsa/internal/stackup"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatHuman OutputFormat = "human"
)

// FormatResponse formats a response according to the specified format
func FormatResponse(resp interface{}, format OutputFormat) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(resp)
	case FormatHuman:
		return formatHuman(resp)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// formatJSON formats the response as deterministic indented JSON, so CLI
// output compares byte-for-byte with exported reports.
func formatJSON(resp interface{}) (string, error) {
	data, err := output.DeterministicEncodeIndented(resp, "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

// formatHuman formats the response in human-readable format
func formatHuman(resp interface{}) (string, error) {
	switch v := resp.(type) {
	case *ComponentListResponseCLI:
		return formatComponentListHuman(v)
	case *ComponentShowResponseCLI:
		return formatComponentShowHuman(v)
	case *AnalysisListResponseCLI:
		return formatAnalysisListHuman(v)
	case *AnalysisShowResponseCLI:
		return formatAnalysisShowHuman(v)
	case *ResultResponseCLI:
		return formatResultHuman(v)
	case *ResultsListResponseCLI:
		return formatResultsListHuman(v)
	case *SyncResponseCLI:
		return formatSyncHuman(v)
	case *CleanupResponseCLI:
		return formatCleanupHuman(v)
	default:
		// For unknown types, fall back to JSON
		return formatJSON(resp)
	}
}

func formatComponentListHuman(resp *ComponentListResponseCLI) (string, error) {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Components (%d)\n", resp.TotalCount))
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	if resp.TotalCount == 0 {
		b.WriteString("No components in the catalog. Run 'tsa sync' or 'tsa component import'.\n")
		return b.String(), nil
	}

	nameWidth := 0
	for _, c := range resp.Components {
		if len(c.Name) > nameWidth {
			nameWidth = len(c.Name)
		}
	}

	for _, c := range resp.Components {
		plural := "features"
		if c.FeatureCount == 1 {
			plural = "feature"
		}
		b.WriteString(fmt.Sprintf("  %-*s  %d %s  (id: %s)\n",
			nameWidth, c.Name, c.FeatureCount, plural, c.ID))
	}

	return b.String(), nil
}

func formatComponentShowHuman(resp *ComponentShowResponseCLI) (string, error) {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Component: %s\n", resp.Name))
	b.WriteString(fmt.Sprintf("ID: %s\n", resp.ID))
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	if len(resp.Features) == 0 {
		b.WriteString("No features declared.\n")
		return b.String(), nil
	}

	b.WriteString("Features:\n")
	for _, f := range resp.Features {
		b.WriteString(fmt.Sprintf("  %s: %s +%s/-%s  range [%s, %s]\n",
			f.Name,
			output.FormatFloat(f.Value),
			output.FormatFloat(f.PlusTol),
			output.FormatFloat(f.MinusTol),
			output.FormatFloat(f.Value-f.MinusTol),
			output.FormatFloat(f.Value+f.PlusTol)))
		if f.DistKind != "" {
			b.WriteString(fmt.Sprintf("    family: %s\n", f.DistKind))
		}
		if f.Distribution != nil {
			b.WriteString(fmt.Sprintf("    pinned: %s\n", describeParams(f.Distribution)))
		}
	}

	return b.String(), nil
}

func formatAnalysisListHuman(resp *AnalysisListResponseCLI) (string, error) {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Analyses (%d)\n", resp.TotalCount))
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	if resp.TotalCount == 0 {
		b.WriteString("No analyses defined. Run 'tsa analysis create' or 'tsa sync'.\n")
		return b.String(), nil
	}

	nameWidth := 0
	for _, a := range resp.Analyses {
		if len(a.Name) > nameWidth {
			nameWidth = len(a.Name)
		}
	}

	for _, a := range resp.Analyses {
		b.WriteString(fmt.Sprintf("  %-*s  [%s]  %d contributions\n",
			nameWidth, a.Name, strings.Join(a.Methods, " "), a.ContributionCount))
	}

	return b.String(), nil
}

func formatAnalysisShowHuman(resp *AnalysisShowResponseCLI) (string, error) {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Analysis: %s\n", resp.Name))
	b.WriteString(fmt.Sprintf("ID: %s\n", resp.ID))
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	b.WriteString(fmt.Sprintf("Methods: %s\n", strings.Join(resp.Methods, ", ")))

	if resp.LowerSpec != nil || resp.UpperSpec != nil {
		lower := "-"
		upper := "-"
		if resp.LowerSpec != nil {
			lower = output.FormatFloat(*resp.LowerSpec)
		}
		if resp.UpperSpec != nil {
			upper = output.FormatFloat(*resp.UpperSpec)
		}
		b.WriteString(fmt.Sprintf("Spec Limits: lower %s, upper %s\n", lower, upper))
	}

	if resp.MonteCarlo != nil {
		b.WriteString(fmt.Sprintf("Monte Carlo: %d iterations, %s confidence, %d bins",
			resp.MonteCarlo.Iterations,
			output.FormatFloat(resp.MonteCarlo.Confidence),
			resp.MonteCarlo.Bins))
		if resp.MonteCarlo.Seed != nil {
			b.WriteString(fmt.Sprintf(", seed %d", *resp.MonteCarlo.Seed))
		}
		b.WriteString("\n")
	}

	b.WriteString("\nContributions:\n")
	if len(resp.Contributions) == 0 {
		b.WriteString("  (none)\n")
		return b.String(), nil
	}

	for i, c := range resp.Contributions {
		half := ""
		if c.HalfCount {
			half = "  (half count)"
		}
		b.WriteString(fmt.Sprintf("  %d. %s.%s  dir %+.1f%s\n",
			i+1, c.Component, c.Feature, c.Direction, half))
		if c.Distribution != nil {
			b.WriteString(fmt.Sprintf("     pinned: %s\n", describeParams(c.Distribution)))
		}
	}

	return b.String(), nil
}

func formatResultHuman(resp *ResultResponseCLI) (string, error) {
	var b strings.Builder

	title := resp.Analysis
	if title == "" {
		title = resp.Results.AnalysisID
	}
	b.WriteString(fmt.Sprintf("Analysis: %s\n", title))
	b.WriteString(fmt.Sprintf("Result: %s (%s)\n", resp.Results.ID,
		resp.Results.CreatedAt.Format("2006-01-02 15:04:05")))
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	b.WriteString(fmt.Sprintf("Nominal: %s\n", output.FormatFloat(resp.Results.Nominal)))

	if wc := resp.Results.WorstCase; wc != nil {
		b.WriteString("\nWorst Case:\n")
		b.WriteString(fmt.Sprintf("  Range: [%s, %s]  span %s\n",
			output.FormatFloat(wc.Min), output.FormatFloat(wc.Max),
			output.FormatFloat(wc.Max-wc.Min)))
		writeSensitivities(&b, wc.Sensitivities)
	}

	if rss := resp.Results.RSS; rss != nil {
		b.WriteString("\nRSS:\n")
		b.WriteString(fmt.Sprintf("  StdDev: %s\n", output.FormatFloat(rss.StdDev)))
		b.WriteString(fmt.Sprintf("  3-Sigma Range: [%s, %s]\n",
			output.FormatFloat(rss.Min), output.FormatFloat(rss.Max)))
		writeSensitivities(&b, rss.Sensitivities)
	}

	if mc := resp.Results.MonteCarlo; mc != nil {
		b.WriteString(fmt.Sprintf("\nMonte Carlo (%d iterations, seed %d):\n",
			mc.Iterations, mc.Seed))
		b.WriteString(fmt.Sprintf("  Mean: %s  StdDev: %s\n",
			output.FormatFloat(mc.Mean), output.FormatFloat(mc.StdDev)))
		b.WriteString(fmt.Sprintf("  Observed Range: [%s, %s]\n",
			output.FormatFloat(mc.Min), output.FormatFloat(mc.Max)))

		if len(mc.Intervals) > 0 {
			b.WriteString("  Confidence Intervals:\n")
			for _, ci := range mc.Intervals {
				b.WriteString(fmt.Sprintf("    %s%%: [%s, %s]\n",
					output.FormatFloat(ci.Level*100),
					output.FormatFloat(ci.Lower), output.FormatFloat(ci.Upper)))
			}
		}

		writeHistogram(&b, mc.Histogram, mc.Max)
		writeSensitivities(&b, mc.Sensitivities)
	}

	if cpb := resp.Results.Capability; cpb != nil {
		b.WriteString("\nCapability:\n")
		b.WriteString(fmt.Sprintf("  Spec: [%s, %s]\n",
			output.FormatFloat(cpb.LowerSpec), output.FormatFloat(cpb.UpperSpec)))
		b.WriteString(fmt.Sprintf("  Cp: %.2f  Cpk: %.2f\n", cpb.Cp, cpb.Cpk))
		b.WriteString(fmt.Sprintf("  PPM: %s below, %s above\n",
			output.FormatFloat(cpb.PPMBelow), output.FormatFloat(cpb.PPMAbove)))
	}

	if len(resp.Results.Warnings) > 0 {
		b.WriteString("\nWarnings:\n")
		for _, w := range resp.Results.Warnings {
			b.WriteString(fmt.Sprintf("  ! %s\n", w))
		}
	}

	if resp.ReportPath != "" {
		b.WriteString(fmt.Sprintf("\nReport written to: %s\n", resp.ReportPath))
	}
	if resp.SamplesPath != "" {
		b.WriteString(fmt.Sprintf("Samples written to: %s\n", resp.SamplesPath))
	}

	return b.String(), nil
}

// writeSensitivities renders the contributor ranking under a method block.
func writeSensitivities(b *strings.Builder, sens []stackup.Sensitivity) {
	if len(sens) == 0 {
		return
	}

	nameWidth := 0
	for _, s := range sens {
		n := len(s.ComponentName) + len(s.FeatureName) + 1
		if n > nameWidth {
			nameWidth = n
		}
	}

	b.WriteString("  Contributors:\n")
	for _, s := range sens {
		name := s.ComponentName + "." + s.FeatureName
		half := ""
		if s.HalfCount {
			half = "  (half count)"
		}
		b.WriteString(fmt.Sprintf("    %-*s  dir %+.1f  %5.1f%%%s\n",
			nameWidth, name, s.Direction, s.Percent, half))
	}
}

// writeHistogram renders bins as scaled bars. Bin width is uniform, so the
// bound of each bin is the next bin's start; the last bin closes at max.
func writeHistogram(b *strings.Builder, bins []stackup.HistogramBin, max float64) {
	if len(bins) == 0 {
		return
	}

	maxCount := 0
	for _, bin := range bins {
		if bin.Count > maxCount {
			maxCount = bin.Count
		}
	}
	if maxCount == 0 {
		return
	}

	b.WriteString("  Histogram:\n")
	for i, bin := range bins {
		end := max
		if i+1 < len(bins) {
			end = bins[i+1].Start
		}
		bar := strings.Repeat("#", bin.Count*40/maxCount)
		b.WriteString(fmt.Sprintf("    [%10s, %10s)  %s %d\n",
			output.FormatFloat(bin.Start), output.FormatFloat(end), bar, bin.Count))
	}
}

func formatResultsListHuman(resp *ResultsListResponseCLI) (string, error) {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Results (%d)\n", resp.TotalCount))
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	if resp.TotalCount == 0 {
		b.WriteString("No stored results. Run 'tsa run <analysis>' first.\n")
		return b.String(), nil
	}

	for _, r := range resp.Results {
		b.WriteString(fmt.Sprintf("  %s  %s  nominal %s  [%s]\n",
			r.CreatedAt, r.Analysis, output.FormatFloat(r.Nominal),
			strings.Join(r.Methods, " ")))
		b.WriteString(fmt.Sprintf("    id: %s\n", r.ID))
	}

	return b.String(), nil
}

func formatSyncHuman(resp *SyncResponseCLI) (string, error) {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Loaded %s\n", resp.Source))
	b.WriteString(strings.Repeat("=", 60) + "\n\n")
	b.WriteString(fmt.Sprintf("Components: %d created, %d updated\n",
		resp.ComponentsCreated, resp.ComponentsUpdated))
	b.WriteString(fmt.Sprintf("Analyses: %d created, %d updated\n",
		resp.AnalysesCreated, resp.AnalysesUpdated))

	if len(resp.Warnings) > 0 {
		b.WriteString("\nWarnings:\n")
		for _, w := range resp.Warnings {
			b.WriteString(fmt.Sprintf("  ! %s\n", w))
		}
	}

	return b.String(), nil
}

func formatCleanupHuman(resp *CleanupResponseCLI) (string, error) {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Removed %d result snapshots, %d remaining\n",
		resp.Removed, resp.Remaining))
	if resp.Oldest != "" {
		b.WriteString(fmt.Sprintf("Oldest: %s\nNewest: %s\n", resp.Oldest, resp.Newest))
	}

	return b.String(), nil
}

// describeParams renders pinned distribution parameters on one line.
func describeParams(p *dist.Params) string {
	switch p.Kind {
	case dist.Normal:
		return fmt.Sprintf("normal(mean=%s, stdDev=%s)",
			output.FormatFloat(p.Mean), output.FormatFloat(p.StdDev))
	case dist.Uniform:
		return fmt.Sprintf("uniform[%s, %s]",
			output.FormatFloat(p.Min), output.FormatFloat(p.Max))
	case dist.Triangular:
		return fmt.Sprintf("triangular(min=%s, mode=%s, max=%s)",
			output.FormatFloat(p.Min), output.FormatFloat(p.Mode), output.FormatFloat(p.Max))
	case dist.LogNormal:
		return fmt.Sprintf("lognormal(location=%s, scale=%s)",
			output.FormatFloat(p.Location), output.FormatFloat(p.Scale))
	default:
		return string(p.Kind)
	}
}
