// Package rss computes statistical stackup bounds assuming independent,
// normally distributed contributors combined by root-sum-square.
package rss

import (
	"math"

	"tsa/internal/stackup"
)

// Compute runs the RSS analysis over resolved contributions. Each tolerance
// band is treated as a 3-sigma half-width, so the combined standard
// deviation is sqrt(sum of variances)/3 and the reported bounds span
// nominal +/- 3 sigma.
func Compute(resolved []stackup.Resolved) *stackup.RSSResult {
	nominal := stackup.Nominal(resolved)

	// First pass: collect per-contributor variances; the normalizer needs
	// the grand total before any percentage can be derived.
	variances := make([]float64, len(resolved))
	var totalVar float64
	for i := range resolved {
		r := &resolved[i]
		eff := r.Feature.TotalTol() / 2 * r.Contribution.Multiplier()
		variances[i] = eff * eff
		totalVar += variances[i]
	}

	stdDev := math.Sqrt(totalVar) / 3

	result := &stackup.RSSResult{
		Min:           nominal - 3*stdDev,
		Max:           nominal + 3*stdDev,
		StdDev:        stdDev,
		Sensitivities: make([]stackup.Sensitivity, 0, len(resolved)),
	}

	// Second pass: normalized sensitivities. The per-contributor range is
	// the spread this contributor alone would produce around the nominal,
	// not a worst-case extreme.
	for i := range resolved {
		r := &resolved[i]
		var percent float64
		if totalVar > 0 {
			percent = variances[i] / totalVar * 100
		}
		spread := 3 * math.Sqrt(variances[i])
		result.Sensitivities = append(result.Sensitivities, stackup.Sensitivity{
			ContributionID: r.Contribution.ID,
			ComponentName:  r.Component.Name,
			FeatureName:    r.Feature.Name,
			Direction:      r.Contribution.Direction,
			HalfCount:      r.Contribution.HalfCount,
			Percent:        percent,
			Variance:       variances[i],
			Min:            nominal - spread,
			Max:            nominal + spread,
		})
	}

	return result
}
