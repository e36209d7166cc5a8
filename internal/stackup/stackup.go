// Package stackup defines the tolerance stackup data model: components with
// dimensioned features, the contributions that chain features into a stackup,
// and the analysis configuration plus result types produced by the engine.
package stackup

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"tsa/internal/dist"
	"tsa/internal/errors"
)

// Defaults applied when an analysis or workspace config doesn't specify them.
const (
	DefaultIterations    = 10000
	DefaultConfidence    = 0.95
	DefaultHistogramBins = 20
)

// Method identifies one analysis method.
type Method string

const (
	// WorstCase assumes every contributor sits at its tolerance extreme
	WorstCase Method = "worst_case"
	// RSS combines independent tolerance bands by root-sum-square
	RSS Method = "rss"
	// MonteCarlo samples every contributor's distribution empirically
	MonteCarlo Method = "monte_carlo"
)

// AllMethods is the canonical dispatch order for analysis methods.
var AllMethods = []Method{WorstCase, RSS, MonteCarlo}

// ParseMethod converts a string to a Method (case-insensitive).
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "worst_case", "worstcase", "worst-case", "wc":
		return WorstCase, nil
	case "rss", "root_sum_square", "root-sum-square":
		return RSS, nil
	case "monte_carlo", "montecarlo", "monte-carlo", "mc":
		return MonteCarlo, nil
	default:
		return "", errors.NewTsaError(errors.ConfigInvalid,
			fmt.Sprintf("unknown analysis method: %q", s), nil)
	}
}

// Feature is a named dimension on a component: a nominal value with an
// asymmetric tolerance band [Value-MinusTol, Value+PlusTol], an optionally
// declared distribution family, and optionally pinned distribution
// parameters.
type Feature struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Value        float64      `json:"value"`
	PlusTol      float64      `json:"plusTol"`
	MinusTol     float64      `json:"minusTol"`
	DistKind     dist.Kind    `json:"distKind,omitempty"`
	Distribution *dist.Params `json:"distribution,omitempty"`
}

// NewFeature creates a feature with a fresh ID.
func NewFeature(name string, value, plusTol, minusTol float64) Feature {
	return Feature{
		ID:       uuid.NewString(),
		Name:     name,
		Value:    value,
		PlusTol:  plusTol,
		MinusTol: minusTol,
	}
}

// TotalTol returns the full tolerance band width.
func (f *Feature) TotalTol() float64 {
	return f.PlusTol + f.MinusTol
}

// Validate checks the feature invariants.
func (f *Feature) Validate() error {
	if f.Name == "" {
		return errors.NewTsaError(errors.ConfigInvalid, "feature name must not be empty", nil)
	}
	if f.PlusTol < 0 || f.MinusTol < 0 {
		return errors.NewTsaError(errors.ConfigInvalid,
			fmt.Sprintf("feature %q: tolerances must be non-negative (+%v/-%v)", f.Name, f.PlusTol, f.MinusTol), nil)
	}
	if f.Distribution != nil {
		if err := f.Distribution.Validate(); err != nil {
			return fmt.Errorf("feature %q: %w", f.Name, err)
		}
	}
	return nil
}

// Component owns a set of features. Feature names are unique within a
// component.
type Component struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Features []Feature `json:"features,omitempty"`
}

// NewComponent creates a component with a fresh ID.
func NewComponent(name string) *Component {
	return &Component{
		ID:   uuid.NewString(),
		Name: name,
	}
}

// AddFeature appends a feature, rejecting duplicate names.
func (c *Component) AddFeature(f Feature) error {
	for i := range c.Features {
		if c.Features[i].Name == f.Name {
			return errors.NewTsaError(errors.ConfigInvalid,
				fmt.Sprintf("component %q already has a feature named %q", c.Name, f.Name), nil)
		}
	}
	c.Features = append(c.Features, f)
	return nil
}

// FeatureByName returns the feature with the given name, or nil.
func (c *Component) FeatureByName(name string) *Feature {
	for i := range c.Features {
		if c.Features[i].Name == name {
			return &c.Features[i]
		}
	}
	return nil
}

// Contribution is one feature's participation in a stackup: a reference to a
// (component, feature) pair, a direction, and an optional half-count
// weighting. The distribution snapshot freezes sampling parameters at the
// time the contribution was created; when absent, defaults are derived from
// the referenced feature at analysis time.
type Contribution struct {
	ID           string       `json:"id"`
	ComponentID  string       `json:"componentId"`
	FeatureID    string       `json:"featureId"`
	Direction    float64      `json:"direction"`
	HalfCount    bool         `json:"halfCount,omitempty"`
	Distribution *dist.Params `json:"distribution,omitempty"`
}

// NewContribution creates a contribution with a fresh ID.
func NewContribution(componentID, featureID string, direction float64, halfCount bool) Contribution {
	return Contribution{
		ID:          uuid.NewString(),
		ComponentID: componentID,
		FeatureID:   featureID,
		Direction:   direction,
		HalfCount:   halfCount,
	}
}

// Multiplier returns the tolerance weighting: 0.5 for half-count
// contributions, 1.0 otherwise.
func (c *Contribution) Multiplier() float64 {
	if c.HalfCount {
		return 0.5
	}
	return 1.0
}

// Validate checks the contribution invariants.
func (c *Contribution) Validate() error {
	if c.Direction != 1.0 && c.Direction != -1.0 {
		return errors.NewTsaError(errors.ConfigInvalid,
			fmt.Sprintf("contribution direction must be +1 or -1, got %v", c.Direction), nil)
	}
	if c.ComponentID == "" || c.FeatureID == "" {
		return errors.NewTsaError(errors.ConfigInvalid,
			"contribution must reference a component and a feature", nil)
	}
	if c.Distribution != nil {
		if err := c.Distribution.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// EffectiveDistribution resolves the sampling parameters for a contribution:
// the contribution's own snapshot wins, then the feature's pinned parameters,
// then defaults derived from the feature's dimension and declared family
// (Normal when none is declared).
func EffectiveDistribution(c *Contribution, f *Feature) (dist.Params, error) {
	if c.Distribution != nil {
		return *c.Distribution, nil
	}
	if f.Distribution != nil {
		return *f.Distribution, nil
	}
	kind := f.DistKind
	if kind == "" {
		kind = dist.Normal
	}
	return dist.Derive(kind, f.Value, f.PlusTol, f.MinusTol)
}

// MonteCarloSettings configures a Monte Carlo run.
type MonteCarloSettings struct {
	Iterations int     `json:"iterations"`
	Confidence float64 `json:"confidence"`
	Bins       int     `json:"bins,omitempty"`
	Seed       *int64  `json:"seed,omitempty"`
}

// Validate checks the settings invariants.
func (s *MonteCarloSettings) Validate() error {
	if s.Iterations <= 0 {
		return errors.NewTsaError(errors.ConfigInvalid,
			fmt.Sprintf("iterations must be positive, got %d", s.Iterations), nil)
	}
	if s.Confidence <= 0 || s.Confidence >= 1 {
		return errors.NewTsaError(errors.ConfigInvalid,
			fmt.Sprintf("confidence must be in (0, 1), got %v", s.Confidence), nil)
	}
	if s.Bins < 0 {
		return errors.NewTsaError(errors.ConfigInvalid,
			fmt.Sprintf("histogram bins must be non-negative, got %d", s.Bins), nil)
	}
	return nil
}

// Analysis is a named aggregate of contributions plus the configuration
// describing how to analyze them. Analysis execution is a pure function of
// the current state and the component set; it never mutates the Analysis.
type Analysis struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	Contributions []Contribution      `json:"contributions,omitempty"`
	Methods       []Method            `json:"methods"`
	MonteCarlo    *MonteCarloSettings `json:"monteCarlo,omitempty"`
	UpperSpec     *float64            `json:"upperSpec,omitempty"`
	LowerSpec     *float64            `json:"lowerSpec,omitempty"`
}

// NewAnalysis creates an empty analysis with a fresh ID.
func NewAnalysis(name string) *Analysis {
	return &Analysis{
		ID:   uuid.NewString(),
		Name: name,
	}
}

// HasMethod reports whether m is requested.
func (a *Analysis) HasMethod(m Method) bool {
	for _, have := range a.Methods {
		if have == m {
			return true
		}
	}
	return false
}

// EnableMethod adds m to the requested set (set semantics, no duplicates).
func (a *Analysis) EnableMethod(m Method) {
	if !a.HasMethod(m) {
		a.Methods = append(a.Methods, m)
	}
}

// DisableMethod removes m from the requested set.
func (a *Analysis) DisableMethod(m Method) {
	out := a.Methods[:0]
	for _, have := range a.Methods {
		if have != m {
			out = append(out, have)
		}
	}
	a.Methods = out
}

// AddContribution appends a contribution, preserving insertion order.
func (a *Analysis) AddContribution(c Contribution) {
	a.Contributions = append(a.Contributions, c)
}

// RemoveContribution deletes the contribution with the given ID.
// Returns false if no contribution matched.
func (a *Analysis) RemoveContribution(id string) bool {
	for i := range a.Contributions {
		if a.Contributions[i].ID == id {
			a.Contributions = append(a.Contributions[:i], a.Contributions[i+1:]...)
			return true
		}
	}
	return false
}

// UpdateContribution replaces the contribution with the same ID.
// Returns false if no contribution matched.
func (a *Analysis) UpdateContribution(c Contribution) bool {
	for i := range a.Contributions {
		if a.Contributions[i].ID == c.ID {
			a.Contributions[i] = c
			return true
		}
	}
	return false
}

// Validate checks that the analysis is runnable: at least one method, valid
// contributions, and Monte Carlo settings present and valid when that method
// is requested.
func (a *Analysis) Validate() error {
	if len(a.Methods) == 0 {
		return errors.NewTsaError(errors.ConfigInvalid,
			fmt.Sprintf("analysis %q requests no methods", a.Name), nil)
	}
	seen := make(map[Method]bool, len(a.Methods))
	for _, m := range a.Methods {
		if seen[m] {
			return errors.NewTsaError(errors.ConfigInvalid,
				fmt.Sprintf("analysis %q requests method %s more than once", a.Name, m), nil)
		}
		seen[m] = true
		switch m {
		case WorstCase, RSS, MonteCarlo:
		default:
			return errors.NewTsaError(errors.ConfigInvalid,
				fmt.Sprintf("analysis %q requests unknown method %q", a.Name, m), nil)
		}
	}
	for i := range a.Contributions {
		if err := a.Contributions[i].Validate(); err != nil {
			return err
		}
	}
	if a.HasMethod(MonteCarlo) {
		if a.MonteCarlo == nil {
			return errors.NewTsaError(errors.SettingsMissing,
				fmt.Sprintf("analysis %q requests monte_carlo but has no simulation settings", a.Name), nil)
		}
		if err := a.MonteCarlo.Validate(); err != nil {
			return err
		}
	}
	return nil
}
