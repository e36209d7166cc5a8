// Package worstcase computes the exact stackup extremes assuming every
// contributor sits simultaneously at its tolerance limit in the direction
// that most hurts the result.
package worstcase

import (
	"math"
	"sort"

	"tsa/internal/stackup"
)

// Compute runs the worst-case analysis over resolved contributions.
// The model is linear: total min/max are the sums of each contributor's
// individual extremes, with no cross terms.
func Compute(resolved []stackup.Resolved) *stackup.WorstCaseResult {
	result := &stackup.WorstCaseResult{
		Sensitivities: make([]stackup.Sensitivity, 0, len(resolved)),
	}

	var totalTol float64
	for i := range resolved {
		r := &resolved[i]
		lo, hi := extremes(r)
		result.Min += lo
		result.Max += hi

		tol := r.Feature.TotalTol() * math.Abs(r.Contribution.Multiplier())
		totalTol += tol

		result.Sensitivities = append(result.Sensitivities, stackup.Sensitivity{
			ContributionID: r.Contribution.ID,
			ComponentName:  r.Component.Name,
			FeatureName:    r.Feature.Name,
			Direction:      r.Contribution.Direction,
			HalfCount:      r.Contribution.HalfCount,
			Min:            lo,
			Max:            hi,
		})
	}

	for i := range result.Sensitivities {
		r := &resolved[i]
		tol := r.Feature.TotalTol() * math.Abs(r.Contribution.Multiplier())
		if totalTol > 0 {
			result.Sensitivities[i].Percent = tol / totalTol * 100
		}
	}

	sort.SliceStable(result.Sensitivities, func(i, j int) bool {
		return result.Sensitivities[i].Percent > result.Sensitivities[j].Percent
	})

	return result
}

// extremes returns one contributor's min and max signed contribution.
// Reversing direction also reverses which physical tolerance face is
// outward, so a negative direction swaps the plus/minus tolerances.
func extremes(r *stackup.Resolved) (lo, hi float64) {
	f := r.Feature
	scale := r.Contribution.Direction * r.Contribution.Multiplier()
	if r.Contribution.Direction > 0 {
		lo = (f.Value - f.MinusTol) * scale
		hi = (f.Value + f.PlusTol) * scale
	} else {
		lo = (f.Value + f.PlusTol) * scale
		hi = (f.Value - f.MinusTol) * scale
	}
	return lo, hi
}
