package worstcase

import (
	"math"
	"testing"

	"tsa/internal/stackup"
)

const eps = 1e-9

func resolve(t *testing.T, components []stackup.Component, contribs []stackup.Contribution) []stackup.Resolved {
	t.Helper()
	resolved, skipped := stackup.NewResolver(components).Resolve(contribs)
	if len(skipped) != 0 {
		t.Fatalf("unexpected skipped contributions: %v", skipped)
	}
	return resolved
}

func twoContributionFixture() ([]stackup.Component, []stackup.Contribution) {
	components := []stackup.Component{
		{ID: "ca", Name: "plate", Features: []stackup.Feature{
			{ID: "fa", Name: "thickness", Value: 10.0, PlusTol: 0.1, MinusTol: 0.1},
		}},
		{ID: "cb", Name: "spacer", Features: []stackup.Feature{
			{ID: "fb", Name: "height", Value: 5.0, PlusTol: 0.05, MinusTol: 0.05},
		}},
	}
	contribs := []stackup.Contribution{
		{ID: "k1", ComponentID: "ca", FeatureID: "fa", Direction: 1.0},
		{ID: "k2", ComponentID: "cb", FeatureID: "fb", Direction: -1.0},
	}
	return components, contribs
}

func TestComputeTwoContributions(t *testing.T) {
	components, contribs := twoContributionFixture()
	result := Compute(resolve(t, components, contribs))

	// A contributes [+9.9, +10.1]; B contributes [-5.05, -4.95].
	if math.Abs(result.Min-4.85) > eps {
		t.Errorf("Min = %v, want 4.85", result.Min)
	}
	if math.Abs(result.Max-5.15) > eps {
		t.Errorf("Max = %v, want 5.15", result.Max)
	}
}

func TestDirectionSwapsToleranceFaces(t *testing.T) {
	components := []stackup.Component{
		{ID: "c", Name: "pin", Features: []stackup.Feature{
			{ID: "f", Name: "length", Value: 10.0, PlusTol: 0.2, MinusTol: 0.1},
		}},
	}
	contribs := []stackup.Contribution{
		{ID: "k", ComponentID: "c", FeatureID: "f", Direction: -1.0},
	}
	result := Compute(resolve(t, components, contribs))

	// Feature range [9.9, 10.2] negated: [-10.2, -9.9].
	if math.Abs(result.Min-(-10.2)) > eps {
		t.Errorf("Min = %v, want -10.2", result.Min)
	}
	if math.Abs(result.Max-(-9.9)) > eps {
		t.Errorf("Max = %v, want -9.9", result.Max)
	}
}

func TestHalfCountHalvesParticipation(t *testing.T) {
	components := []stackup.Component{
		{ID: "c", Name: "washer", Features: []stackup.Feature{
			{ID: "f", Name: "thickness", Value: 2.0, PlusTol: 0.1, MinusTol: 0.1},
		}},
	}
	contribs := []stackup.Contribution{
		{ID: "k", ComponentID: "c", FeatureID: "f", Direction: 1.0, HalfCount: true},
	}
	result := Compute(resolve(t, components, contribs))

	if math.Abs(result.Min-0.95) > eps {
		t.Errorf("Min = %v, want 0.95", result.Min)
	}
	if math.Abs(result.Max-1.05) > eps {
		t.Errorf("Max = %v, want 1.05", result.Max)
	}
}

func TestConservation(t *testing.T) {
	components := []stackup.Component{
		{ID: "c1", Name: "a", Features: []stackup.Feature{
			{ID: "f1", Name: "d1", Value: 3.0, PlusTol: 0.2, MinusTol: 0.1},
			{ID: "f2", Name: "d2", Value: 7.5, PlusTol: 0.05, MinusTol: 0.15},
		}},
		{ID: "c2", Name: "b", Features: []stackup.Feature{
			{ID: "f3", Name: "d3", Value: 1.25, PlusTol: 0.3, MinusTol: 0.3},
		}},
	}
	contribs := []stackup.Contribution{
		{ID: "k1", ComponentID: "c1", FeatureID: "f1", Direction: 1.0},
		{ID: "k2", ComponentID: "c1", FeatureID: "f2", Direction: -1.0},
		{ID: "k3", ComponentID: "c2", FeatureID: "f3", Direction: 1.0, HalfCount: true},
	}
	resolved := resolve(t, components, contribs)
	result := Compute(resolved)

	// max - min equals the sum of each contributor's individual extreme
	// range: no cross terms in a linear model.
	var wantSpread float64
	for i := range resolved {
		r := &resolved[i]
		wantSpread += r.Feature.TotalTol() * r.Contribution.Multiplier()
	}
	gotSpread := result.Max - result.Min
	if math.Abs(gotSpread-wantSpread) > eps {
		t.Errorf("max-min = %v, want %v", gotSpread, wantSpread)
	}
}

func TestSensitivityNormalization(t *testing.T) {
	components, contribs := twoContributionFixture()
	result := Compute(resolve(t, components, contribs))

	var sum float64
	for _, s := range result.Sensitivities {
		sum += s.Percent
	}
	if math.Abs(sum-100.0) > eps {
		t.Errorf("sensitivity percents sum = %v, want 100", sum)
	}
}

func TestSensitivityValuesAndOrder(t *testing.T) {
	components, contribs := twoContributionFixture()
	result := Compute(resolve(t, components, contribs))

	if len(result.Sensitivities) != 2 {
		t.Fatalf("len(Sensitivities) = %d, want 2", len(result.Sensitivities))
	}

	// A: tol 0.2 of 0.3 total -> 66.67%; B: 0.1 of 0.3 -> 33.33%.
	// Sorted descending, so A first.
	first, second := result.Sensitivities[0], result.Sensitivities[1]
	if first.FeatureName != "thickness" {
		t.Errorf("first sensitivity = %q, want thickness", first.FeatureName)
	}
	if math.Abs(first.Percent-200.0/3.0) > eps {
		t.Errorf("first percent = %v, want %v", first.Percent, 200.0/3.0)
	}
	if math.Abs(second.Percent-100.0/3.0) > eps {
		t.Errorf("second percent = %v, want %v", second.Percent, 100.0/3.0)
	}

	// Per-contributor extreme ranges surface for display.
	if math.Abs(first.Min-9.9) > eps || math.Abs(first.Max-10.1) > eps {
		t.Errorf("first range = [%v, %v], want [9.9, 10.1]", first.Min, first.Max)
	}
	if math.Abs(second.Min-(-5.05)) > eps || math.Abs(second.Max-(-4.95)) > eps {
		t.Errorf("second range = [%v, %v], want [-5.05, -4.95]", second.Min, second.Max)
	}
}

func TestEmptyContributions(t *testing.T) {
	result := Compute(nil)

	if result.Min != 0 || result.Max != 0 {
		t.Errorf("empty analysis bounds = [%v, %v], want [0, 0]", result.Min, result.Max)
	}
	if len(result.Sensitivities) != 0 {
		t.Errorf("len(Sensitivities) = %d, want 0", len(result.Sensitivities))
	}
}

func TestZeroToleranceContributors(t *testing.T) {
	components := []stackup.Component{
		{ID: "c", Name: "gauge", Features: []stackup.Feature{
			{ID: "f", Name: "block", Value: 25.0, PlusTol: 0, MinusTol: 0},
		}},
	}
	contribs := []stackup.Contribution{
		{ID: "k", ComponentID: "c", FeatureID: "f", Direction: 1.0},
	}
	result := Compute(resolve(t, components, contribs))

	if result.Min != 25.0 || result.Max != 25.0 {
		t.Errorf("bounds = [%v, %v], want [25, 25]", result.Min, result.Max)
	}
	// Zero total tolerance must not divide to NaN.
	for _, s := range result.Sensitivities {
		if s.Percent != 0 {
			t.Errorf("Percent = %v, want 0 for zero-tolerance set", s.Percent)
		}
	}
}
