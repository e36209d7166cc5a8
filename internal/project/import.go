package project

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"tsa/internal/errors"
)

// Catalog file formats
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// CatalogFile is an external component catalog, the interchange format
// vendors ship process data in. Unlike STACKUP.toml it carries components
// only, never analyses.
type CatalogFile struct {
	Catalog    string             `yaml:"catalog,omitempty" json:"catalog,omitempty"`
	Components []CatalogComponent `yaml:"components" json:"components"`
}

// CatalogComponent is one cataloged part.
type CatalogComponent struct {
	Name     string           `yaml:"name" json:"name"`
	Features []CatalogFeature `yaml:"features" json:"features"`
}

// CatalogFeature is one cataloged dimension. Distribution carries measured
// process data when the vendor provides it.
type CatalogFeature struct {
	Name         string              `yaml:"name" json:"name"`
	Value        float64             `yaml:"value" json:"value"`
	PlusTol      float64             `yaml:"plusTol" json:"plusTol"`
	MinusTol     float64             `yaml:"minusTol" json:"minusTol"`
	Dist         string              `yaml:"dist,omitempty" json:"dist,omitempty"`
	Distribution *CatalogDistribution `yaml:"distribution,omitempty" json:"distribution,omitempty"`
}

// CatalogDistribution pins measured sampling parameters on a cataloged
// dimension.
type CatalogDistribution struct {
	Kind     string  `yaml:"kind" json:"kind"`
	Mean     float64 `yaml:"mean,omitempty" json:"mean,omitempty"`
	StdDev   float64 `yaml:"stdDev,omitempty" json:"stdDev,omitempty"`
	Min      float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max      float64 `yaml:"max,omitempty" json:"max,omitempty"`
	Mode     float64 `yaml:"mode,omitempty" json:"mode,omitempty"`
	Location float64 `yaml:"location,omitempty" json:"location,omitempty"`
	Scale    float64 `yaml:"scale,omitempty" json:"scale,omitempty"`
}

// ParseCatalogFile parses a catalog file. An empty format is detected from
// the file extension: .yaml/.yml parse as YAML, everything else as JSON.
func ParseCatalogFile(filePath, format string) (*CatalogFile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	if format == "" {
		if strings.HasSuffix(filePath, ".yaml") || strings.HasSuffix(filePath, ".yml") {
			format = FormatYAML
		} else {
			format = FormatJSON
		}
	}

	var catalog CatalogFile
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &catalog); err != nil {
			return nil, fmt.Errorf("failed to parse YAML catalog: %w", err)
		}
	case FormatJSON:
		if err := json.Unmarshal(data, &catalog); err != nil {
			return nil, fmt.Errorf("failed to parse JSON catalog: %w", err)
		}
	default:
		return nil, errors.NewTsaError(errors.ConfigInvalid,
			fmt.Sprintf("unknown catalog format: %q", format), nil)
	}

	return &catalog, nil
}

// ImportCatalog parses a catalog file and upserts its components into the
// store. Matching follows the same rules as Apply: names identify entities
// and stored IDs win.
func (s *Syncer) ImportCatalog(filePath, format string) (*SyncResult, error) {
	catalog, err := ParseCatalogFile(filePath, format)
	if err != nil {
		return nil, err
	}

	if len(catalog.Components) == 0 {
		return nil, errors.NewTsaError(errors.ConfigInvalid,
			fmt.Sprintf("catalog %s declares no components", filePath), nil)
	}

	result := &SyncResult{}

	for _, cc := range catalog.Components {
		component, err := componentFromDeclaration(declarationFromCatalog(cc))
		if err != nil {
			return nil, err
		}

		created, err := s.upsertComponent(component)
		if err != nil {
			return nil, err
		}
		if created {
			result.ComponentsCreated++
			s.logger.Info("component imported", "name", component.Name, "features", len(component.Features))
		} else {
			result.ComponentsUpdated++
			s.logger.Info("component replaced from catalog", "name", component.Name, "features", len(component.Features))
		}
	}

	return result, nil
}

// declarationFromCatalog maps a catalog entry onto the declaration form so
// both ingestion paths share one conversion and validation pipeline.
func declarationFromCatalog(cc CatalogComponent) ComponentDeclaration {
	decl := ComponentDeclaration{Name: cc.Name}

	for _, cf := range cc.Features {
		fd := FeatureDeclaration{
			Name:     cf.Name,
			Value:    cf.Value,
			PlusTol:  cf.PlusTol,
			MinusTol: cf.MinusTol,
			Dist:     cf.Dist,
		}
		if cf.Distribution != nil {
			fd.Distribution = &DistributionDeclaration{
				Kind:     cf.Distribution.Kind,
				Mean:     cf.Distribution.Mean,
				StdDev:   cf.Distribution.StdDev,
				Min:      cf.Distribution.Min,
				Max:      cf.Distribution.Max,
				Mode:     cf.Distribution.Mode,
				Location: cf.Distribution.Location,
				Scale:    cf.Distribution.Scale,
			}
		}
		decl.Features = append(decl.Features, fd)
	}

	return decl
}
