package stackup

import (
	"time"

	"github.com/google/uuid"
)

// SeriesPoint is one down-sampled (sample value, running mean) pair kept for
// plotting, not for further statistics.
type SeriesPoint struct {
	Value float64 `json:"value"`
	Mean  float64 `json:"mean"`
}

// Sensitivity describes one contributor's share of the stackup variation.
// Min/Max carry the per-contributor displayed range, whose meaning differs by
// method: the exact extreme range for worst case, the 3-sigma range this
// contributor alone would produce for RSS.
type Sensitivity struct {
	ContributionID string        `json:"contributionId"`
	ComponentName  string        `json:"componentName"`
	FeatureName    string        `json:"featureName"`
	Direction      float64       `json:"direction"`
	HalfCount      bool          `json:"halfCount,omitempty"`
	Percent        float64       `json:"percent"`
	Min            float64       `json:"min,omitempty"`
	Max            float64       `json:"max,omitempty"`
	Variance       float64       `json:"variance,omitempty"`
	Correlation    float64       `json:"correlation,omitempty"`
	Series         []SeriesPoint `json:"series,omitempty"`
}

// WorstCaseResult holds the exact stackup extremes assuming every
// contributor sits at its tolerance limit in the worst direction.
type WorstCaseResult struct {
	Min           float64       `json:"min"`
	Max           float64       `json:"max"`
	Sensitivities []Sensitivity `json:"sensitivities"`
}

// RSSResult holds the root-sum-square statistical bounds assuming
// independent, normally distributed contributors.
type RSSResult struct {
	Min           float64       `json:"min"`
	Max           float64       `json:"max"`
	StdDev        float64       `json:"stdDev"`
	Sensitivities []Sensitivity `json:"sensitivities"`
}

// HistogramBin is one equal-width bin of the Monte Carlo sample histogram.
type HistogramBin struct {
	Start float64 `json:"start"`
	Count int     `json:"count"`
}

// ConfidenceInterval is a symmetric percentile-clipped range of the sorted
// Monte Carlo samples (nearest-rank method).
type ConfidenceInterval struct {
	Level float64 `json:"level"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// ContributorSamples retains one contributor's raw per-iteration data for
// audit export. Excluded from persisted snapshots.
type ContributorSamples struct {
	ContributionID string    `json:"-"`
	ComponentName  string    `json:"-"`
	FeatureName    string    `json:"-"`
	Sampled        []float64 `json:"-"`
	Signed         []float64 `json:"-"`
}

// MonteCarloResult holds the empirical stackup distribution from repeated
// sampling of every contributor.
type MonteCarloResult struct {
	Iterations    int                  `json:"iterations"`
	Seed          int64                `json:"seed"`
	Mean          float64              `json:"mean"`
	StdDev        float64              `json:"stdDev"`
	Min           float64              `json:"min"`
	Max           float64              `json:"max"`
	Histogram     []HistogramBin       `json:"histogram"`
	Intervals     []ConfidenceInterval `json:"intervals"`
	Sensitivities []Sensitivity        `json:"sensitivities"`

	// Raw per-iteration data, kept in memory for audit export only.
	Samples     []float64            `json:"-"`
	Contributor []ContributorSamples `json:"-"`
}

// Capability holds process capability indices derived from the Monte Carlo
// mean/std-dev and user spec limits. The defect-rate estimates assume the
// stackup is normally distributed with those moments, a deliberate
// normal-approximation simplification.
type Capability struct {
	UpperSpec float64 `json:"upperSpec"`
	LowerSpec float64 `json:"lowerSpec"`
	Cp        float64 `json:"cp"`
	Cpu       float64 `json:"cpu"`
	Cpl       float64 `json:"cpl"`
	Cpk       float64 `json:"cpk"`
	PPMBelow  float64 `json:"ppmBelow"`
	PPMAbove  float64 `json:"ppmAbove"`
	PPHBelow  float64 `json:"pphBelow"`
	PPHAbove  float64 `json:"pphAbove"`
}

// Results is the immutable snapshot produced by one analysis run.
type Results struct {
	ID         string            `json:"id"`
	AnalysisID string            `json:"analysisId"`
	CreatedAt  time.Time         `json:"createdAt"`
	Nominal    float64           `json:"nominal"`
	WorstCase  *WorstCaseResult  `json:"worstCase,omitempty"`
	RSS        *RSSResult        `json:"rss,omitempty"`
	MonteCarlo *MonteCarloResult `json:"monteCarlo,omitempty"`
	Capability *Capability       `json:"capability,omitempty"`
	Warnings   []string          `json:"warnings,omitempty"`
}

// NewResults creates an empty snapshot for the given analysis.
func NewResults(analysisID string) *Results {
	return &Results{
		ID:         uuid.NewString(),
		AnalysisID: analysisID,
		CreatedAt:  time.Now().UTC(),
	}
}
