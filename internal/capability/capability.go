// Package capability derives process capability indices (Cp, Cpk) and
// defect-rate estimates from a Monte Carlo result and user spec limits.
package capability

import (
	"math"

	"tsa/internal/stackup"
)

// pphFactor converts parts-per-million to parts-per-hour at the fixed
// production rate baked into the model.
const pphFactor = 3.6

// Compute derives capability indices from the Monte Carlo mean/std-dev and
// the given spec limits. The defect-rate estimate treats the stackup as
// normally distributed with those moments; the true Monte Carlo distribution
// may not be Gaussian, so PPM/PPH are a normal-approximation estimate.
//
// Returns nil when mc is nil or its std dev is 0 (indices are undefined).
func Compute(mc *stackup.MonteCarloResult, lowerSpec, upperSpec float64) *stackup.Capability {
	if mc == nil || mc.StdDev == 0 {
		return nil
	}

	mean := mc.Mean
	sigma := mc.StdDev

	cpu := (upperSpec - mean) / (3 * sigma)
	cpl := (mean - lowerSpec) / (3 * sigma)

	ppmBelow := normalCDF(lowerSpec, mean, sigma) * 1e6
	ppmAbove := (1 - normalCDF(upperSpec, mean, sigma)) * 1e6

	return &stackup.Capability{
		UpperSpec: upperSpec,
		LowerSpec: lowerSpec,
		Cp:        (upperSpec - lowerSpec) / (6 * sigma),
		Cpu:       cpu,
		Cpl:       cpl,
		Cpk:       math.Min(cpu, cpl),
		PPMBelow:  ppmBelow,
		PPMAbove:  ppmAbove,
		PPHBelow:  ppmBelow * pphFactor,
		PPHAbove:  ppmAbove * pphFactor,
	}
}

// normalCDF evaluates the normal cumulative distribution at x.
func normalCDF(x, mean, sigma float64) float64 {
	return 0.5 * (1 + math.Erf((x-mean)/(sigma*math.Sqrt2)))
}
