package storage

import (
	"database/sql"
	"fmt"
)

// Schema version tracking
const currentSchemaVersion = 1

// initializeSchema creates all tables for a new database
func (db *DB) initializeSchema() error {
	return db.WithTx(func(tx *sql.Tx) error {
		// Create schema_version table first
		if err := createSchemaVersionTable(tx); err != nil {
			return err
		}

		// Create all application tables
		if err := createComponentsTable(tx); err != nil {
			return err
		}
		if err := createFeaturesTable(tx); err != nil {
			return err
		}
		if err := createAnalysesTable(tx); err != nil {
			return err
		}
		if err := createContributionsTable(tx); err != nil {
			return err
		}
		if err := createResultsTable(tx); err != nil {
			return err
		}

		// Set initial schema version
		if err := setSchemaVersion(tx, currentSchemaVersion); err != nil {
			return err
		}

		db.logger.Info("database schema initialized", "version", currentSchemaVersion)

		return nil
	})
}

// runMigrations runs any pending schema migrations
func (db *DB) runMigrations() error {
	// Get current schema version
	version, err := db.getSchemaVersion()
	if err != nil {
		return err
	}

	if version == currentSchemaVersion {
		db.logger.Debug("database schema is up to date", "version", version)
		return nil
	}

	db.logger.Info("running database migrations",
		"from_version", version,
		"to_version", currentSchemaVersion)

	// Run migrations sequentially
	// Add migration functions here as schema evolves
	// Example:
	// if version < 2 {
	//     if err := db.migrateToV2(); err != nil {
	//         return err
	//     }
	// }

	return nil
}

// getSchemaVersion gets the current schema version
func (db *DB) getSchemaVersion() (int, error) {
	// Check if schema_version table exists
	var tableName string
	err := db.QueryRow(`
		SELECT name FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&tableName)

	if err == sql.ErrNoRows {
		// Table doesn't exist, this is a new database
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	// Get version
	var version int
	err = db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	return version, nil
}

// setSchemaVersion sets the schema version
func setSchemaVersion(tx *sql.Tx, version int) error {
	_, err := tx.Exec("DELETE FROM schema_version")
	if err != nil {
		return err
	}
	_, err = tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version)
	return err
}

// createSchemaVersionTable creates the schema_version tracking table
func createSchemaVersionTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`)
	return err
}

// createComponentsTable creates the components table
func createComponentsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS components (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create components table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_components_name ON components(name)",
	}

	for _, indexSQL := range indexes {
		if _, err := tx.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// createFeaturesTable creates the features table
func createFeaturesTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS features (
			id TEXT PRIMARY KEY,
			component_id TEXT NOT NULL,
			name TEXT NOT NULL,
			value REAL NOT NULL,
			plus_tol REAL NOT NULL CHECK(plus_tol >= 0),
			minus_tol REAL NOT NULL CHECK(minus_tol >= 0),
			dist_kind TEXT,
			distribution_json TEXT,
			position INTEGER NOT NULL,

			UNIQUE (component_id, name),
			FOREIGN KEY (component_id) REFERENCES components(id) ON DELETE CASCADE
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create features table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_features_component_id ON features(component_id)",
	}

	for _, indexSQL := range indexes {
		if _, err := tx.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// createAnalysesTable creates the analyses table
func createAnalysesTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS analyses (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			methods TEXT NOT NULL,
			montecarlo_json TEXT,
			upper_spec REAL,
			lower_spec REAL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create analyses table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_analyses_name ON analyses(name)",
	}

	for _, indexSQL := range indexes {
		if _, err := tx.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// createContributionsTable creates the contributions table
// Contribution references are not foreign keys: the catalog and analyses
// evolve independently, and a dangling reference is a skip at run time,
// not a constraint violation.
func createContributionsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS contributions (
			id TEXT PRIMARY KEY,
			analysis_id TEXT NOT NULL,
			component_id TEXT NOT NULL,
			feature_id TEXT NOT NULL,
			direction REAL NOT NULL CHECK(direction IN (1.0, -1.0)),
			half_count INTEGER NOT NULL DEFAULT 0,
			distribution_json TEXT,
			position INTEGER NOT NULL,

			FOREIGN KEY (analysis_id) REFERENCES analyses(id) ON DELETE CASCADE
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create contributions table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_contributions_analysis_id ON contributions(analysis_id)",
		"CREATE INDEX IF NOT EXISTS idx_contributions_feature_id ON contributions(feature_id)",
	}

	for _, indexSQL := range indexes {
		if _, err := tx.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// createResultsTable creates the results table
// The full result is stored as a JSON snapshot; scalar columns exist for
// listing without decoding every snapshot.
func createResultsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS results (
			id TEXT PRIMARY KEY,
			analysis_id TEXT NOT NULL,
			created_at TEXT NOT NULL,
			nominal REAL NOT NULL,
			methods TEXT NOT NULL,
			snapshot_json TEXT NOT NULL,

			FOREIGN KEY (analysis_id) REFERENCES analyses(id) ON DELETE CASCADE
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create results table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_results_analysis_id ON results(analysis_id)",
		"CREATE INDEX IF NOT EXISTS idx_results_created_at ON results(created_at)",
	}

	for _, indexSQL := range indexes {
		if _, err := tx.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}
