package project

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"tsa/internal/dist"
	"tsa/internal/errors"
	"tsa/internal/paths"
	"tsa/internal/stackup"
)

// DistributionDeclaration pins explicit sampling parameters on a feature or
// contribution. Only the fields for the declared kind are meaningful.
type DistributionDeclaration struct {
	Kind     string  `toml:"kind"`
	Mean     float64 `toml:"mean,omitempty"`
	StdDev   float64 `toml:"std_dev,omitempty"`
	Min      float64 `toml:"min,omitempty"`
	Max      float64 `toml:"max,omitempty"`
	Mode     float64 `toml:"mode,omitempty"`
	Location float64 `toml:"location,omitempty"`
	Scale    float64 `toml:"scale,omitempty"`
}

// FeatureDeclaration represents a declared dimension on a component
type FeatureDeclaration struct {
	// ID is the unique feature identifier (optional, will be generated if not provided)
	ID string `toml:"id,omitempty"`

	// Name is the feature name, unique within its component
	Name string `toml:"name"`

	// Value is the nominal dimension
	Value float64 `toml:"value"`

	// PlusTol and MinusTol span the tolerance band [value-minus_tol, value+plus_tol]
	PlusTol  float64 `toml:"plus_tol"`
	MinusTol float64 `toml:"minus_tol"`

	// Dist names the distribution family used when sampling (optional)
	Dist string `toml:"dist,omitempty"`

	// Distribution pins explicit sampling parameters (optional)
	Distribution *DistributionDeclaration `toml:"distribution,omitempty"`
}

// ComponentDeclaration represents a declared component in STACKUP.toml
type ComponentDeclaration struct {
	// ID is the unique component identifier (optional, will be generated if not provided)
	ID string `toml:"id,omitempty"`

	// Name is the component name, unique within the workspace
	Name string `toml:"name"`

	// Features are the declared dimensions
	Features []FeatureDeclaration `toml:"feature"`
}

// ContributionDeclaration references a component feature by name. Names are
// resolved to IDs against the stored catalog when the file is synced.
type ContributionDeclaration struct {
	// Component is the name of the contributing component
	Component string `toml:"component"`

	// Feature is the name of the contributing feature
	Feature string `toml:"feature"`

	// Direction is +1.0 or -1.0
	Direction float64 `toml:"direction"`

	// HalfCount weights the tolerance at 0.5
	HalfCount bool `toml:"half_count,omitempty"`

	// Distribution overrides the feature's sampling parameters (optional)
	Distribution *DistributionDeclaration `toml:"distribution,omitempty"`
}

// MonteCarloDeclaration holds simulation settings for an analysis
type MonteCarloDeclaration struct {
	Iterations int     `toml:"iterations,omitempty"`
	Confidence float64 `toml:"confidence,omitempty"`
	Bins       int     `toml:"bins,omitempty"`
	Seed       *int64  `toml:"seed,omitempty"`
}

// AnalysisDeclaration represents a declared analysis in STACKUP.toml
type AnalysisDeclaration struct {
	// ID is the unique analysis identifier (optional, will be generated if not provided)
	ID string `toml:"id,omitempty"`

	// Name is the analysis name, unique within the workspace
	Name string `toml:"name"`

	// Methods are the analysis methods to run (worst_case, rss, monte_carlo)
	Methods []string `toml:"methods,omitempty"`

	// UpperSpec and LowerSpec are the optional specification limits
	UpperSpec *float64 `toml:"upper_spec,omitempty"`
	LowerSpec *float64 `toml:"lower_spec,omitempty"`

	// MonteCarlo holds simulation settings (required when methods include monte_carlo)
	MonteCarlo *MonteCarloDeclaration `toml:"monte_carlo,omitempty"`

	// Contributions are the stackup chain, in declaration order
	Contributions []ContributionDeclaration `toml:"contribution"`
}

// StackupFile represents the root structure of STACKUP.toml
type StackupFile struct {
	// Version is the schema version
	Version int `toml:"version"`

	// Components is the list of declared components
	Components []ComponentDeclaration `toml:"component"`

	// Analyses is the list of declared analyses
	Analyses []AnalysisDeclaration `toml:"analysis"`
}

// ParseStackupFile parses a STACKUP.toml file from the given path
func ParseStackupFile(filePath string) (*StackupFile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read STACKUP.toml: %w", err)
	}

	var stackupFile StackupFile
	if err := toml.Unmarshal(data, &stackupFile); err != nil {
		return nil, fmt.Errorf("failed to parse STACKUP.toml: %w", err)
	}

	// Validate version
	if stackupFile.Version < 1 {
		stackupFile.Version = 1 // Default to version 1
	}

	return &stackupFile, nil
}

// LoadStackupFile loads the workspace declaration file if it exists
func LoadStackupFile(root string) (*StackupFile, error) {
	filePath := paths.GetStackupFilePath(root)

	// Check if file exists
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, nil // No declaration file
	}

	return ParseStackupFile(filePath)
}

// WriteStackupFile writes a StackupFile to the given path
func WriteStackupFile(filePath string, stackupFile *StackupFile) error {
	data, err := toml.Marshal(stackupFile)
	if err != nil {
		return fmt.Errorf("failed to marshal STACKUP.toml: %w", err)
	}

	// Ensure directory exists
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write STACKUP.toml: %w", err)
	}

	return nil
}

// CreateExampleStackupFile creates an example STACKUP.toml file
func CreateExampleStackupFile(filePath string) error {
	upper := 5.2
	lower := 4.8
	seed := int64(42)

	example := &StackupFile{
		Version: 1,
		Components: []ComponentDeclaration{
			{
				Name: "plate",
				Features: []FeatureDeclaration{
					{Name: "thickness", Value: 10.0, PlusTol: 0.1, MinusTol: 0.1, Dist: "normal"},
				},
			},
			{
				Name: "spacer",
				Features: []FeatureDeclaration{
					{Name: "height", Value: 5.0, PlusTol: 0.05, MinusTol: 0.05, Dist: "normal"},
				},
			},
		},
		Analyses: []AnalysisDeclaration{
			{
				Name:       "gap",
				Methods:    []string{"worst_case", "rss", "monte_carlo"},
				UpperSpec:  &upper,
				LowerSpec:  &lower,
				MonteCarlo: &MonteCarloDeclaration{Iterations: 20000, Confidence: 0.95, Bins: 20, Seed: &seed},
				Contributions: []ContributionDeclaration{
					{Component: "plate", Feature: "thickness", Direction: 1.0},
					{Component: "spacer", Feature: "height", Direction: -1.0},
				},
			},
		},
	}

	return WriteStackupFile(filePath, example)
}

// GenerateStableComponentID generates a stable component ID that survives
// re-syncs. Format: tsa:cmp:<hash>
// The hash is based on the normalized name, so the ID can be regenerated
// deterministically from the declaration alone.
func GenerateStableComponentID(name string) string {
	return stableID("tsa:cmp", normalizeName(name))
}

// GenerateStableFeatureID generates a stable feature ID from the owning
// component name and the feature name. Format: tsa:feat:<hash>
func GenerateStableFeatureID(componentName, featureName string) string {
	return stableID("tsa:feat", normalizeName(componentName)+"/"+normalizeName(featureName))
}

// GenerateStableAnalysisID generates a stable analysis ID. Format: tsa:an:<hash>
func GenerateStableAnalysisID(name string) string {
	return stableID("tsa:an", normalizeName(name))
}

// GenerateStableContributionID generates a stable contribution ID from the
// owning analysis name and the position in the chain. Format: tsa:con:<hash>
// Keyed by position because the same feature may legitimately contribute
// more than once to a chain.
func GenerateStableContributionID(analysisName string, index int) string {
	return stableID("tsa:con", fmt.Sprintf("%s/%d", normalizeName(analysisName), index))
}

func stableID(prefix, key string) string {
	hash := sha256.Sum256([]byte(key))
	hashStr := hex.EncodeToString(hash[:8]) // Use first 8 bytes for shorter ID

	return fmt.Sprintf("%s:%s", prefix, hashStr)
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ParseStableID extracts components from a stable ID
// Returns (prefix, hash, isValid)
func ParseStableID(id string) (prefix string, hash string, isValid bool) {
	if !strings.HasPrefix(id, "tsa:") {
		return "", "", false
	}

	parts := strings.Split(id, ":")
	if len(parts) != 3 {
		return "", "", false
	}

	// Hash must not be empty
	if parts[2] == "" {
		return "", "", false
	}

	return parts[0] + ":" + parts[1], parts[2], true
}

// IsStableID checks if a string is a stable declaration-derived ID
func IsStableID(id string) bool {
	_, _, isValid := ParseStableID(id)
	return isValid
}

// componentFromDeclaration converts a ComponentDeclaration to the domain type
func componentFromDeclaration(decl ComponentDeclaration) (*stackup.Component, error) {
	if decl.Name == "" {
		return nil, errors.NewTsaError(errors.ConfigInvalid,
			"component declaration missing required 'name' field", nil)
	}

	// Generate ID if not provided
	componentID := decl.ID
	if componentID == "" {
		componentID = GenerateStableComponentID(decl.Name)
	}

	component := &stackup.Component{
		ID:   componentID,
		Name: decl.Name,
	}

	for _, fd := range decl.Features {
		feature, err := featureFromDeclaration(decl.Name, fd)
		if err != nil {
			return nil, fmt.Errorf("component %q: %w", decl.Name, err)
		}
		if err := component.AddFeature(feature); err != nil {
			return nil, err
		}
	}

	return component, nil
}

// featureFromDeclaration converts a FeatureDeclaration to the domain type
func featureFromDeclaration(componentName string, decl FeatureDeclaration) (stackup.Feature, error) {
	if decl.Name == "" {
		return stackup.Feature{}, errors.NewTsaError(errors.ConfigInvalid,
			"feature declaration missing required 'name' field", nil)
	}

	featureID := decl.ID
	if featureID == "" {
		featureID = GenerateStableFeatureID(componentName, decl.Name)
	}

	feature := stackup.Feature{
		ID:       featureID,
		Name:     decl.Name,
		Value:    decl.Value,
		PlusTol:  decl.PlusTol,
		MinusTol: decl.MinusTol,
	}

	if decl.Dist != "" {
		kind, err := dist.ParseKind(decl.Dist)
		if err != nil {
			return stackup.Feature{}, fmt.Errorf("feature %q: %w", decl.Name, err)
		}
		feature.DistKind = kind
	}

	if decl.Distribution != nil {
		params, err := distParamsFromDeclaration(*decl.Distribution)
		if err != nil {
			return stackup.Feature{}, fmt.Errorf("feature %q: %w", decl.Name, err)
		}
		feature.Distribution = &params
	}

	if err := feature.Validate(); err != nil {
		return stackup.Feature{}, err
	}

	return feature, nil
}

// distParamsFromDeclaration converts a DistributionDeclaration to dist.Params
func distParamsFromDeclaration(decl DistributionDeclaration) (dist.Params, error) {
	kind, err := dist.ParseKind(decl.Kind)
	if err != nil {
		return dist.Params{}, err
	}

	params := dist.Params{
		Kind:     kind,
		Mean:     decl.Mean,
		StdDev:   decl.StdDev,
		Min:      decl.Min,
		Max:      decl.Max,
		Mode:     decl.Mode,
		Location: decl.Location,
		Scale:    decl.Scale,
	}

	if err := params.Validate(); err != nil {
		return dist.Params{}, err
	}

	return params, nil
}
