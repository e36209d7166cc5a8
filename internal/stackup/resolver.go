package stackup

// Resolved pairs a contribution with its looked-up feature and owning
// component. Feature and Component point into the resolver's component set
// and are read-only during a run.
type Resolved struct {
	Contribution Contribution
	Feature      *Feature
	Component    *Component
}

// Nominal returns this contributor's share of the nominal stackup value:
// value scaled by direction and half-count multiplier.
func (r *Resolved) Nominal() float64 {
	return r.Feature.Value * r.Contribution.Direction * r.Contribution.Multiplier()
}

// Nominal sums the nominal contributions of all resolved entries.
func Nominal(resolved []Resolved) float64 {
	var total float64
	for i := range resolved {
		total += resolved[i].Nominal()
	}
	return total
}

// Resolver answers (componentID, featureID) lookups over a read-only
// component set. A lookup miss is distinguishable from a feature that was
// found with zero variation.
type Resolver struct {
	components []Component
	byID       map[string]map[string]int // componentID -> featureID -> feature index
	compByID   map[string]int
}

// NewResolver indexes the given components. The slice is referenced, not
// copied; callers must not mutate it while the resolver is in use.
func NewResolver(components []Component) *Resolver {
	r := &Resolver{
		components: components,
		byID:       make(map[string]map[string]int, len(components)),
		compByID:   make(map[string]int, len(components)),
	}
	for ci := range components {
		comp := &components[ci]
		r.compByID[comp.ID] = ci
		features := make(map[string]int, len(comp.Features))
		for fi := range comp.Features {
			features[comp.Features[fi].ID] = fi
		}
		r.byID[comp.ID] = features
	}
	return r
}

// Lookup returns the feature and component for an ID pair.
func (r *Resolver) Lookup(componentID, featureID string) (*Feature, *Component, bool) {
	features, ok := r.byID[componentID]
	if !ok {
		return nil, nil, false
	}
	fi, ok := features[featureID]
	if !ok {
		return nil, nil, false
	}
	comp := &r.components[r.compByID[componentID]]
	return &comp.Features[fi], comp, true
}

// LookupByName returns the feature and component for a (component name,
// feature name) pair.
func (r *Resolver) LookupByName(componentName, featureName string) (*Feature, *Component, bool) {
	for ci := range r.components {
		comp := &r.components[ci]
		if comp.Name != componentName {
			continue
		}
		if f := comp.FeatureByName(featureName); f != nil {
			return f, comp, true
		}
		return nil, nil, false
	}
	return nil, nil, false
}

// Resolve maps contributions to their features, preserving input order.
// Contributions whose reference is not found are returned in skipped instead
// of being silently dropped; they carry no effect on any analysis totals.
func (r *Resolver) Resolve(contribs []Contribution) (resolved []Resolved, skipped []Contribution) {
	resolved = make([]Resolved, 0, len(contribs))
	for _, c := range contribs {
		f, comp, ok := r.Lookup(c.ComponentID, c.FeatureID)
		if !ok {
			skipped = append(skipped, c)
			continue
		}
		resolved = append(resolved, Resolved{Contribution: c, Feature: f, Component: comp})
	}
	return resolved, skipped
}
