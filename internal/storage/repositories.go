package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"tsa/internal/dist"
	"tsa/internal/stackup"
)

// ComponentRepository provides CRUD operations for the components and
// features tables
type ComponentRepository struct {
	db *DB
}

// NewComponentRepository creates a new component repository
func NewComponentRepository(db *DB) *ComponentRepository {
	return &ComponentRepository{db: db}
}

// Create inserts a component and its features
func (r *ComponentRepository) Create(c *stackup.Component) error {
	now := time.Now().UTC().Format(time.RFC3339)

	err := r.db.WithTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO components (id, name, created_at, updated_at)
			VALUES (?, ?, ?, ?)
		`, c.ID, c.Name, now, now)
		if err != nil {
			return err
		}

		return insertFeatures(tx, c.ID, c.Features)
	})

	if err != nil {
		return fmt.Errorf("failed to create component: %w", err)
	}

	return nil
}

// GetByID retrieves a component with its features, or nil if missing
func (r *ComponentRepository) GetByID(id string) (*stackup.Component, error) {
	return r.getBy("id = ?", id)
}

// GetByName retrieves a component with its features, or nil if missing
func (r *ComponentRepository) GetByName(name string) (*stackup.Component, error) {
	return r.getBy("name = ?", name)
}

func (r *ComponentRepository) getBy(where string, arg interface{}) (*stackup.Component, error) {
	var c stackup.Component

	err := r.db.QueryRow(
		"SELECT id, name FROM components WHERE "+where, arg,
	).Scan(&c.ID, &c.Name)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get component: %w", err)
	}

	features, err := r.loadFeatures(c.ID)
	if err != nil {
		return nil, err
	}
	c.Features = features

	return &c, nil
}

// List returns all components with their features, ordered by name
func (r *ComponentRepository) List() ([]stackup.Component, error) {
	rows, err := r.db.Query("SELECT id, name FROM components ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list components: %w", err)
	}
	defer rows.Close()

	var components []stackup.Component
	for rows.Next() {
		var c stackup.Component
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("failed to scan component: %w", err)
		}
		components = append(components, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating components: %w", err)
	}

	for i := range components {
		features, err := r.loadFeatures(components[i].ID)
		if err != nil {
			return nil, err
		}
		components[i].Features = features
	}

	return components, nil
}

// Update replaces a component's name and feature set
func (r *ComponentRepository) Update(c *stackup.Component) error {
	now := time.Now().UTC().Format(time.RFC3339)

	err := r.db.WithTx(func(tx *sql.Tx) error {
		result, err := tx.Exec(`
			UPDATE components SET name = ?, updated_at = ? WHERE id = ?
		`, c.Name, now, c.ID)
		if err != nil {
			return err
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rowsAffected == 0 {
			return fmt.Errorf("component not found: %s", c.ID)
		}

		if _, err := tx.Exec("DELETE FROM features WHERE component_id = ?", c.ID); err != nil {
			return err
		}

		return insertFeatures(tx, c.ID, c.Features)
	})

	if err != nil {
		return fmt.Errorf("failed to update component: %w", err)
	}

	return nil
}

// Delete permanently removes a component and its features
func (r *ComponentRepository) Delete(id string) error {
	_, err := r.db.Exec("DELETE FROM components WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete component: %w", err)
	}
	return nil
}

// insertFeatures inserts features preserving their declaration order
func insertFeatures(tx *sql.Tx, componentID string, features []stackup.Feature) error {
	for i := range features {
		f := &features[i]

		distJSON, err := marshalDistribution(f.Distribution)
		if err != nil {
			return err
		}

		_, err = tx.Exec(`
			INSERT INTO features (
				id, component_id, name, value, plus_tol, minus_tol,
				dist_kind, distribution_json, position
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			f.ID,
			componentID,
			f.Name,
			f.Value,
			f.PlusTol,
			f.MinusTol,
			nullIfEmpty(string(f.DistKind)),
			distJSON,
			i,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// loadFeatures loads a component's features in declaration order
func (r *ComponentRepository) loadFeatures(componentID string) ([]stackup.Feature, error) {
	rows, err := r.db.Query(`
		SELECT id, name, value, plus_tol, minus_tol, dist_kind, distribution_json
		FROM features
		WHERE component_id = ?
		ORDER BY position
	`, componentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load features: %w", err)
	}
	defer rows.Close()

	var features []stackup.Feature
	for rows.Next() {
		var f stackup.Feature
		var distKind sql.NullString
		var distJSON sql.NullString

		if err := rows.Scan(&f.ID, &f.Name, &f.Value, &f.PlusTol, &f.MinusTol, &distKind, &distJSON); err != nil {
			return nil, fmt.Errorf("failed to scan feature: %w", err)
		}

		if distKind.Valid {
			f.DistKind = dist.Kind(distKind.String)
		}

		params, err := unmarshalDistribution(distJSON)
		if err != nil {
			return nil, err
		}
		f.Distribution = params

		features = append(features, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating features: %w", err)
	}

	return features, nil
}

// AnalysisRepository provides CRUD operations for the analyses and
// contributions tables
type AnalysisRepository struct {
	db *DB
}

// NewAnalysisRepository creates a new analysis repository
func NewAnalysisRepository(db *DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

// Create inserts an analysis and its contributions
func (r *AnalysisRepository) Create(a *stackup.Analysis) error {
	now := time.Now().UTC().Format(time.RFC3339)

	mcJSON, err := marshalMonteCarlo(a.MonteCarlo)
	if err != nil {
		return err
	}

	err = r.db.WithTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO analyses (
				id, name, methods, montecarlo_json, upper_spec, lower_spec,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			a.ID,
			a.Name,
			joinMethods(a.Methods),
			mcJSON,
			nullFloat(a.UpperSpec),
			nullFloat(a.LowerSpec),
			now,
			now,
		)
		if err != nil {
			return err
		}

		return insertContributions(tx, a.ID, a.Contributions)
	})

	if err != nil {
		return fmt.Errorf("failed to create analysis: %w", err)
	}

	return nil
}

// GetByID retrieves an analysis with its contributions, or nil if missing
func (r *AnalysisRepository) GetByID(id string) (*stackup.Analysis, error) {
	return r.getBy("id = ?", id)
}

// GetByName retrieves an analysis with its contributions, or nil if missing
func (r *AnalysisRepository) GetByName(name string) (*stackup.Analysis, error) {
	return r.getBy("name = ?", name)
}

func (r *AnalysisRepository) getBy(where string, arg interface{}) (*stackup.Analysis, error) {
	var a stackup.Analysis
	var methods string
	var mcJSON sql.NullString
	var upperSpec, lowerSpec sql.NullFloat64

	err := r.db.QueryRow(`
		SELECT id, name, methods, montecarlo_json, upper_spec, lower_spec
		FROM analyses WHERE `+where, arg,
	).Scan(&a.ID, &a.Name, &methods, &mcJSON, &upperSpec, &lowerSpec)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}

	a.Methods = splitMethods(methods)
	a.UpperSpec = floatPtr(upperSpec)
	a.LowerSpec = floatPtr(lowerSpec)

	mc, err := unmarshalMonteCarlo(mcJSON)
	if err != nil {
		return nil, err
	}
	a.MonteCarlo = mc

	contributions, err := r.loadContributions(a.ID)
	if err != nil {
		return nil, err
	}
	a.Contributions = contributions

	return &a, nil
}

// List returns all analyses with their contributions, ordered by name
func (r *AnalysisRepository) List() ([]*stackup.Analysis, error) {
	rows, err := r.db.Query("SELECT id FROM analyses ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan analysis id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating analyses: %w", err)
	}

	var analyses []*stackup.Analysis
	for _, id := range ids {
		a, err := r.GetByID(id)
		if err != nil {
			return nil, err
		}
		if a != nil {
			analyses = append(analyses, a)
		}
	}

	return analyses, nil
}

// Update replaces an analysis's configuration and contribution set
func (r *AnalysisRepository) Update(a *stackup.Analysis) error {
	now := time.Now().UTC().Format(time.RFC3339)

	mcJSON, err := marshalMonteCarlo(a.MonteCarlo)
	if err != nil {
		return err
	}

	err = r.db.WithTx(func(tx *sql.Tx) error {
		result, err := tx.Exec(`
			UPDATE analyses
			SET name = ?,
			    methods = ?,
			    montecarlo_json = ?,
			    upper_spec = ?,
			    lower_spec = ?,
			    updated_at = ?
			WHERE id = ?
		`,
			a.Name,
			joinMethods(a.Methods),
			mcJSON,
			nullFloat(a.UpperSpec),
			nullFloat(a.LowerSpec),
			now,
			a.ID,
		)
		if err != nil {
			return err
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rowsAffected == 0 {
			return fmt.Errorf("analysis not found: %s", a.ID)
		}

		if _, err := tx.Exec("DELETE FROM contributions WHERE analysis_id = ?", a.ID); err != nil {
			return err
		}

		return insertContributions(tx, a.ID, a.Contributions)
	})

	if err != nil {
		return fmt.Errorf("failed to update analysis: %w", err)
	}

	return nil
}

// Delete permanently removes an analysis, its contributions, and its results
func (r *AnalysisRepository) Delete(id string) error {
	_, err := r.db.Exec("DELETE FROM analyses WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete analysis: %w", err)
	}
	return nil
}

// insertContributions inserts contributions preserving stackup order
func insertContributions(tx *sql.Tx, analysisID string, contributions []stackup.Contribution) error {
	for i := range contributions {
		c := &contributions[i]

		distJSON, err := marshalDistribution(c.Distribution)
		if err != nil {
			return err
		}

		_, err = tx.Exec(`
			INSERT INTO contributions (
				id, analysis_id, component_id, feature_id,
				direction, half_count, distribution_json, position
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			c.ID,
			analysisID,
			c.ComponentID,
			c.FeatureID,
			c.Direction,
			boolToInt(c.HalfCount),
			distJSON,
			i,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// loadContributions loads an analysis's contributions in stackup order
func (r *AnalysisRepository) loadContributions(analysisID string) ([]stackup.Contribution, error) {
	rows, err := r.db.Query(`
		SELECT id, component_id, feature_id, direction, half_count, distribution_json
		FROM contributions
		WHERE analysis_id = ?
		ORDER BY position
	`, analysisID)
	if err != nil {
		return nil, fmt.Errorf("failed to load contributions: %w", err)
	}
	defer rows.Close()

	var contributions []stackup.Contribution
	for rows.Next() {
		var c stackup.Contribution
		var halfCount int
		var distJSON sql.NullString

		if err := rows.Scan(&c.ID, &c.ComponentID, &c.FeatureID, &c.Direction, &halfCount, &distJSON); err != nil {
			return nil, fmt.Errorf("failed to scan contribution: %w", err)
		}

		c.HalfCount = halfCount != 0

		params, err := unmarshalDistribution(distJSON)
		if err != nil {
			return nil, err
		}
		c.Distribution = params

		contributions = append(contributions, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contributions: %w", err)
	}

	return contributions, nil
}

// marshalDistribution encodes optional distribution parameters as JSON
func marshalDistribution(p *dist.Params) (interface{}, error) {
	if p == nil {
		return nil, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode distribution: %w", err)
	}
	return string(data), nil
}

// unmarshalDistribution decodes optional distribution parameters
func unmarshalDistribution(ns sql.NullString) (*dist.Params, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var p dist.Params
	if err := json.Unmarshal([]byte(ns.String), &p); err != nil {
		return nil, fmt.Errorf("invalid distribution_json: %w", err)
	}
	return &p, nil
}

// marshalMonteCarlo encodes optional Monte Carlo settings as JSON
func marshalMonteCarlo(s *stackup.MonteCarloSettings) (interface{}, error) {
	if s == nil {
		return nil, nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode monte carlo settings: %w", err)
	}
	return string(data), nil
}

// unmarshalMonteCarlo decodes optional Monte Carlo settings
func unmarshalMonteCarlo(ns sql.NullString) (*stackup.MonteCarloSettings, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var s stackup.MonteCarloSettings
	if err := json.Unmarshal([]byte(ns.String), &s); err != nil {
		return nil, fmt.Errorf("invalid montecarlo_json: %w", err)
	}
	return &s, nil
}

// joinMethods serializes the method list for the methods column
func joinMethods(methods []stackup.Method) string {
	parts := make([]string, len(methods))
	for i, m := range methods {
		parts[i] = string(m)
	}
	return strings.Join(parts, ",")
}

// splitMethods parses the methods column
func splitMethods(s string) []stackup.Method {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	methods := make([]stackup.Method, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		methods = append(methods, stackup.Method(p))
	}
	return methods
}

// nullFloat converts an optional float for binding
func nullFloat(p *float64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

// nullIfEmpty converts an empty string to NULL for binding
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// floatPtr converts a nullable column to an optional float
func floatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	v := nf.Float64
	return &v
}

// boolToInt converts a bool for binding to an INTEGER column
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
