package project

import (
	"fmt"
	"log/slog"

	"tsa/internal/errors"
	"tsa/internal/paths"
	"tsa/internal/slogutil"
	"tsa/internal/stackup"
	"tsa/internal/storage"
)

// Syncer loads declaration files into the workspace store. Components are
// applied before analyses so contribution name references can resolve
// against the full catalog, stored entities included.
type Syncer struct {
	components *storage.ComponentRepository
	analyses   *storage.AnalysisRepository
	logger     *slog.Logger
}

// NewSyncer creates a syncer backed by the given database.
func NewSyncer(db *storage.DB, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	return &Syncer{
		components: storage.NewComponentRepository(db),
		analyses:   storage.NewAnalysisRepository(db),
		logger:     logger,
	}
}

// SyncResult summarizes what a sync changed.
type SyncResult struct {
	ComponentsCreated int      `json:"componentsCreated"`
	ComponentsUpdated int      `json:"componentsUpdated"`
	AnalysesCreated   int      `json:"analysesCreated"`
	AnalysesUpdated   int      `json:"analysesUpdated"`
	Warnings          []string `json:"warnings,omitempty"`
}

// Sync loads the workspace STACKUP.toml and applies it to the store.
func (s *Syncer) Sync(root string) (*SyncResult, error) {
	file, err := LoadStackupFile(root)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, errors.NewTsaError(errors.ConfigInvalid,
			fmt.Sprintf("no %s found in %s", paths.StackupFileName, root), nil)
	}

	return s.Apply(file)
}

// Apply upserts every declaration in the file. Entities are matched by name;
// existing entities keep their stored IDs so contribution references and
// result history stay valid across syncs.
func (s *Syncer) Apply(file *StackupFile) (*SyncResult, error) {
	result := &SyncResult{}

	for _, decl := range file.Components {
		component, err := componentFromDeclaration(decl)
		if err != nil {
			return nil, err
		}

		created, err := s.upsertComponent(component)
		if err != nil {
			return nil, err
		}
		if created {
			result.ComponentsCreated++
			s.logger.Info("component created", "name", component.Name, "features", len(component.Features))
		} else {
			result.ComponentsUpdated++
			s.logger.Info("component updated", "name", component.Name, "features", len(component.Features))
		}
	}

	// Resolve analysis references against the stored catalog, not just the
	// file: declarations may reference imported or runtime-created components.
	catalog, err := s.components.List()
	if err != nil {
		return nil, err
	}

	for _, decl := range file.Analyses {
		analysis, warnings, err := analysisFromDeclaration(decl, catalog)
		if err != nil {
			return nil, err
		}
		result.Warnings = append(result.Warnings, warnings...)

		created, err := s.upsertAnalysis(analysis)
		if err != nil {
			return nil, err
		}
		if created {
			result.AnalysesCreated++
			s.logger.Info("analysis created", "name", analysis.Name, "contributions", len(analysis.Contributions))
		} else {
			result.AnalysesUpdated++
			s.logger.Info("analysis updated", "name", analysis.Name, "contributions", len(analysis.Contributions))
		}
	}

	for _, w := range result.Warnings {
		s.logger.Warn("sync warning", "detail", w)
	}

	return result, nil
}

// upsertComponent creates the component or updates the stored one with the
// same name. Stored component and feature IDs win over declared ones so
// existing contribution references stay resolvable.
func (s *Syncer) upsertComponent(incoming *stackup.Component) (bool, error) {
	existing, err := s.components.GetByName(incoming.Name)
	if err != nil {
		return false, err
	}

	if existing == nil {
		return true, s.components.Create(incoming)
	}

	incoming.ID = existing.ID
	for i := range incoming.Features {
		if match := existing.FeatureByName(incoming.Features[i].Name); match != nil {
			incoming.Features[i].ID = match.ID
		}
	}

	return false, s.components.Update(incoming)
}

// upsertAnalysis creates the analysis or replaces the stored one with the
// same name, keeping the stored ID so result history stays attached.
func (s *Syncer) upsertAnalysis(incoming *stackup.Analysis) (bool, error) {
	existing, err := s.analyses.GetByName(incoming.Name)
	if err != nil {
		return false, err
	}

	if existing == nil {
		return true, s.analyses.Create(incoming)
	}

	incoming.ID = existing.ID
	return false, s.analyses.Update(incoming)
}

// analysisFromDeclaration converts an AnalysisDeclaration to the domain type,
// resolving contribution name references against the catalog. Unresolved
// references are reported as warnings and skipped, matching how the engine
// treats dangling references at run time; malformed contributions are errors.
func analysisFromDeclaration(decl AnalysisDeclaration, catalog []stackup.Component) (*stackup.Analysis, []string, error) {
	if decl.Name == "" {
		return nil, nil, errors.NewTsaError(errors.ConfigInvalid,
			"analysis declaration missing required 'name' field", nil)
	}

	analysisID := decl.ID
	if analysisID == "" {
		analysisID = GenerateStableAnalysisID(decl.Name)
	}

	analysis := &stackup.Analysis{
		ID:   analysisID,
		Name: decl.Name,
	}

	for _, m := range decl.Methods {
		method, err := stackup.ParseMethod(m)
		if err != nil {
			return nil, nil, fmt.Errorf("analysis %q: %w", decl.Name, err)
		}
		analysis.EnableMethod(method)
	}

	if decl.UpperSpec != nil {
		v := *decl.UpperSpec
		analysis.UpperSpec = &v
	}
	if decl.LowerSpec != nil {
		v := *decl.LowerSpec
		analysis.LowerSpec = &v
	}

	if decl.MonteCarlo != nil {
		mc := &stackup.MonteCarloSettings{
			Iterations: stackup.DefaultIterations,
			Confidence: stackup.DefaultConfidence,
			Bins:       stackup.DefaultHistogramBins,
		}
		if decl.MonteCarlo.Iterations > 0 {
			mc.Iterations = decl.MonteCarlo.Iterations
		}
		if decl.MonteCarlo.Confidence > 0 {
			mc.Confidence = decl.MonteCarlo.Confidence
		}
		if decl.MonteCarlo.Bins > 0 {
			mc.Bins = decl.MonteCarlo.Bins
		}
		if decl.MonteCarlo.Seed != nil {
			seed := *decl.MonteCarlo.Seed
			mc.Seed = &seed
		}
		analysis.MonteCarlo = mc
	}

	var warnings []string

	for i, cd := range decl.Contributions {
		if cd.Component == "" || cd.Feature == "" {
			return nil, nil, errors.NewTsaError(errors.ConfigInvalid,
				fmt.Sprintf("analysis %q: contribution %d missing component or feature name", decl.Name, i), nil)
		}

		component := findComponentByName(catalog, cd.Component)
		if component == nil {
			warnings = append(warnings,
				fmt.Sprintf("analysis %q: unknown component %q, contribution skipped", decl.Name, cd.Component))
			continue
		}

		feature := component.FeatureByName(cd.Feature)
		if feature == nil {
			warnings = append(warnings,
				fmt.Sprintf("analysis %q: component %q has no feature %q, contribution skipped", decl.Name, cd.Component, cd.Feature))
			continue
		}

		contribution := stackup.Contribution{
			ID:          GenerateStableContributionID(decl.Name, i),
			ComponentID: component.ID,
			FeatureID:   feature.ID,
			Direction:   cd.Direction,
			HalfCount:   cd.HalfCount,
		}
		if cd.Distribution != nil {
			params, err := distParamsFromDeclaration(*cd.Distribution)
			if err != nil {
				return nil, nil, fmt.Errorf("analysis %q: contribution %d: %w", decl.Name, i, err)
			}
			contribution.Distribution = &params
		}
		if err := contribution.Validate(); err != nil {
			return nil, nil, fmt.Errorf("analysis %q: contribution %d: %w", decl.Name, i, err)
		}

		analysis.AddContribution(contribution)
	}

	if err := analysis.Validate(); err != nil {
		return nil, nil, err
	}

	return analysis, warnings, nil
}

func findComponentByName(catalog []stackup.Component, name string) *stackup.Component {
	for i := range catalog {
		if catalog[i].Name == name {
			return &catalog[i]
		}
	}
	return nil
}
