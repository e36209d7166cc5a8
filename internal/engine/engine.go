// Package engine coordinates stackup analysis runs: it validates the
// configuration, resolves contribution references against the component
// catalog, dispatches the requested methods, and assembles a single
// result snapshot.
package engine

import (
	"fmt"
	"log/slog"

	"tsa/internal/capability"
	"tsa/internal/errors"
	"tsa/internal/montecarlo"
	"tsa/internal/rss"
	"tsa/internal/slogutil"
	"tsa/internal/stackup"
	"tsa/internal/worstcase"
)

// Engine runs analyses against a component snapshot.
type Engine struct {
	logger *slog.Logger
}

// NewEngine creates a new analysis engine. A nil logger discards run logs.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	return &Engine{logger: logger}
}

type methodHandler func(e *Engine, a *stackup.Analysis, resolved []stackup.Resolved, res *stackup.Results) error

var methodHandlers = map[stackup.Method]methodHandler{
	stackup.WorstCase:  runWorstCase,
	stackup.RSS:        runRSS,
	stackup.MonteCarlo: runMonteCarlo,
}

// Run executes every requested method of the analysis against the component
// snapshot and returns one immutable result. Neither input is mutated, so
// callers may run analyses concurrently on their own snapshots.
//
// Configuration errors (no methods, invalid distribution parameters, Monte
// Carlo without settings) fail the invocation. Contributions referencing
// missing features are skipped and surface in Results.Warnings.
func (e *Engine) Run(analysis *stackup.Analysis, components []stackup.Component) (*stackup.Results, error) {
	if analysis == nil {
		return nil, errors.NewTsaError(errors.ConfigInvalid, "analysis is required", nil)
	}
	if err := analysis.Validate(); err != nil {
		return nil, err
	}

	resolver := stackup.NewResolver(components)
	resolved, skipped := resolver.Resolve(analysis.Contributions)

	results := stackup.NewResults(analysis.ID)
	results.Nominal = stackup.Nominal(resolved)

	for i := range skipped {
		c := &skipped[i]
		results.Warnings = append(results.Warnings, fmt.Sprintf(
			"contribution %s skipped: feature %s not found on component %s",
			c.ID, c.FeatureID, c.ComponentID))
		e.logger.Warn("skipping unresolved contribution",
			"analysis", analysis.ID,
			"contribution", c.ID,
			"component", c.ComponentID,
			"feature", c.FeatureID)
	}

	e.logger.Info("running analysis",
		"analysis", analysis.ID,
		"name", analysis.Name,
		"contributions", len(resolved),
		"methods", len(analysis.Methods))

	for _, m := range stackup.AllMethods {
		if !analysis.HasMethod(m) {
			continue
		}
		if err := methodHandlers[m](e, analysis, resolved, results); err != nil {
			return nil, fmt.Errorf("method %s failed: %w", m, err)
		}
	}

	if results.MonteCarlo != nil && analysis.LowerSpec != nil && analysis.UpperSpec != nil {
		results.Capability = capability.Compute(results.MonteCarlo, *analysis.LowerSpec, *analysis.UpperSpec)
	}

	return results, nil
}

func runWorstCase(e *Engine, _ *stackup.Analysis, resolved []stackup.Resolved, res *stackup.Results) error {
	res.WorstCase = worstcase.Compute(resolved)
	e.logger.Debug("worst case complete", "min", res.WorstCase.Min, "max", res.WorstCase.Max)
	return nil
}

func runRSS(e *Engine, _ *stackup.Analysis, resolved []stackup.Resolved, res *stackup.Results) error {
	res.RSS = rss.Compute(resolved)
	e.logger.Debug("rss complete", "stdDev", res.RSS.StdDev)
	return nil
}

func runMonteCarlo(e *Engine, a *stackup.Analysis, resolved []stackup.Resolved, res *stackup.Results) error {
	// Analysis.Validate guarantees settings are present here.
	mc, err := montecarlo.Compute(resolved, *a.MonteCarlo)
	if err != nil {
		return err
	}
	res.MonteCarlo = mc
	e.logger.Debug("monte carlo complete",
		"iterations", mc.Iterations,
		"seed", mc.Seed,
		"mean", mc.Mean,
		"stdDev", mc.StdDev)
	return nil
}
