// Package dist models the parametric probability distributions used by
// tolerance contributions: Normal, Uniform, Triangular, and LogNormal.
//
// A Params value is a flattened tagged union discriminated by Kind. Sampling
// takes an explicit *rand.Rand so callers own the RNG state per run and
// seeded runs stay reproducible.
package dist

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	"tsa/internal/errors"
)

// Kind identifies a distribution family.
type Kind string

const (
	// Normal is the Gaussian family parameterized by mean and std dev
	Normal Kind = "normal"
	// Uniform draws uniformly from [min, max)
	Uniform Kind = "uniform"
	// Triangular is parameterized by min, max, and mode
	Triangular Kind = "triangular"
	// LogNormal draws exp(N(location, scale))
	LogNormal Kind = "lognormal"
)

// ParseKind converts a string to a Kind (case-insensitive).
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "normal":
		return Normal, nil
	case "uniform":
		return Uniform, nil
	case "triangular":
		return Triangular, nil
	case "lognormal", "log_normal", "log-normal":
		return LogNormal, nil
	default:
		return "", errors.NewTsaError(errors.DistributionInvalid,
			fmt.Sprintf("unknown distribution kind: %q", s), nil)
	}
}

// Params describes one distribution instance. Only the fields for the active
// Kind are meaningful: Mean/StdDev for Normal, Min/Max for Uniform,
// Min/Max/Mode for Triangular, Location/Scale for LogNormal.
type Params struct {
	Kind     Kind    `json:"kind"`
	Mean     float64 `json:"mean,omitempty"`
	StdDev   float64 `json:"stdDev,omitempty"`
	Min      float64 `json:"min,omitempty"`
	Max      float64 `json:"max,omitempty"`
	Mode     float64 `json:"mode,omitempty"`
	Location float64 `json:"location,omitempty"`
	Scale    float64 `json:"scale,omitempty"`
}

// Validate checks that p can produce samples.
// A degenerate Uniform/Triangular band (max == min) is allowed and samples
// as a fixed point; max < min is rejected.
func (p Params) Validate() error {
	switch p.Kind {
	case Normal:
		if p.StdDev < 0 {
			return errors.NewTsaError(errors.DistributionInvalid,
				fmt.Sprintf("normal: std dev must be >= 0, got %v", p.StdDev), nil)
		}
	case Uniform:
		if p.Max < p.Min {
			return errors.NewTsaError(errors.DistributionInvalid,
				fmt.Sprintf("uniform: max (%v) must be >= min (%v)", p.Max, p.Min), nil)
		}
	case Triangular:
		if p.Max < p.Min {
			return errors.NewTsaError(errors.DistributionInvalid,
				fmt.Sprintf("triangular: max (%v) must be >= min (%v)", p.Max, p.Min), nil)
		}
	case LogNormal:
		if p.Scale < 0 {
			return errors.NewTsaError(errors.DistributionInvalid,
				fmt.Sprintf("lognormal: scale must be >= 0, got %v", p.Scale), nil)
		}
	default:
		return errors.NewTsaError(errors.DistributionInvalid,
			fmt.Sprintf("unknown distribution kind: %q", p.Kind), nil)
	}
	return nil
}

// Derive builds default parameters for a dimension with no explicit
// distribution snapshot. The tolerance band [value-minusTol, value+plusTol]
// is treated as a 6-sigma capture, so stdDev = (plusTol+minusTol)/6.
// Uniform and Triangular center the full band width on the nominal value.
// LogNormal takes ln(value) as location and the linear std dev as scale,
// which requires value > 0.
func Derive(kind Kind, value, plusTol, minusTol float64) (Params, error) {
	totalTol := plusTol + minusTol
	stdDev := totalTol / 6

	switch kind {
	case Normal:
		return Params{Kind: Normal, Mean: value, StdDev: stdDev}, nil
	case Uniform:
		return Params{Kind: Uniform, Min: value - totalTol/2, Max: value + totalTol/2}, nil
	case Triangular:
		return Params{Kind: Triangular, Min: value - totalTol/2, Max: value + totalTol/2, Mode: value}, nil
	case LogNormal:
		if value <= 0 {
			return Params{}, errors.NewTsaError(errors.DistributionInvalid,
				fmt.Sprintf("lognormal requires a positive nominal value, got %v", value), nil)
		}
		return Params{Kind: LogNormal, Location: math.Log(value), Scale: stdDev}, nil
	default:
		return Params{}, errors.NewTsaError(errors.DistributionInvalid,
			fmt.Sprintf("unknown distribution kind: %q", kind), nil)
	}
}

// Sample draws one value from p using rng. Params must have passed Validate;
// unknown kinds sample as 0.
func (p Params) Sample(rng *rand.Rand) float64 {
	switch p.Kind {
	case Normal:
		return p.Mean + rng.NormFloat64()*p.StdDev
	case LogNormal:
		return math.Exp(p.Location + rng.NormFloat64()*p.Scale)
	case Uniform:
		if p.Max == p.Min {
			return p.Min
		}
		return p.Min + rng.Float64()*(p.Max-p.Min)
	case Triangular:
		return sampleTriangular(p.Min, p.Max, p.Mode, rng)
	default:
		return 0
	}
}

// sampleTriangular draws via inverse-CDF sampling. The mode is clamped into
// [min, max] before computing the CDF split point.
func sampleTriangular(min, max, mode float64, rng *rand.Rand) float64 {
	if max == min {
		return min
	}
	if mode < min {
		mode = min
	}
	if mode > max {
		mode = max
	}

	u := rng.Float64()
	fc := (mode - min) / (max - min)
	if u < fc {
		return min + math.Sqrt(u*(mode-min)*(max-min))
	}
	return max - math.Sqrt((1-u)*(max-mode)*(max-min))
}

// MeanValue returns the closed-form mean of the distribution.
func (p Params) MeanValue() float64 {
	switch p.Kind {
	case Normal:
		return p.Mean
	case Uniform:
		return (p.Min + p.Max) / 2
	case Triangular:
		return (p.Min + p.Max + p.Mode) / 3
	case LogNormal:
		return math.Exp(p.Location + p.Scale*p.Scale/2)
	default:
		return 0
	}
}

// StdDevValue returns the closed-form standard deviation of the distribution.
func (p Params) StdDevValue() float64 {
	switch p.Kind {
	case Normal:
		return p.StdDev
	case Uniform:
		return (p.Max - p.Min) / math.Sqrt(12)
	case Triangular:
		m := p.Mode
		if m < p.Min {
			m = p.Min
		}
		if m > p.Max {
			m = p.Max
		}
		v := (p.Min*p.Min + p.Max*p.Max + m*m - p.Min*p.Max - p.Min*m - p.Max*m) / 18
		return math.Sqrt(v)
	case LogNormal:
		s2 := p.Scale * p.Scale
		return math.Sqrt((math.Exp(s2) - 1) * math.Exp(2*p.Location+s2))
	default:
		return 0
	}
}
