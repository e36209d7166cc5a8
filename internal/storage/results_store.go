package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"tsa/internal/output"
	"tsa/internal/stackup"
)

// ResultRecord is a listing row for a stored result snapshot
type ResultRecord struct {
	ID         string
	AnalysisID string
	CreatedAt  time.Time
	Nominal    float64
	Methods    []stackup.Method
}

// ResultsStore persists analysis result snapshots
type ResultsStore struct {
	db *DB
}

// NewResultsStore creates a new results store
func NewResultsStore(db *DB) *ResultsStore {
	return &ResultsStore{db: db}
}

// Save persists a result snapshot. The snapshot is stored in its
// deterministic JSON form so stored bytes compare like exported bytes.
func (s *ResultsStore) Save(results *stackup.Results) error {
	snapshot, err := output.DeterministicEncode(results)
	if err != nil {
		return fmt.Errorf("failed to encode result snapshot: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO results (id, analysis_id, created_at, nominal, methods, snapshot_json)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		results.ID,
		results.AnalysisID,
		results.CreatedAt.UTC().Format(time.RFC3339),
		results.Nominal,
		joinMethods(methodsOf(results)),
		string(snapshot),
	)
	if err != nil {
		return fmt.Errorf("failed to save results: %w", err)
	}

	return nil
}

// GetByID retrieves a stored result snapshot, or nil if missing
func (s *ResultsStore) GetByID(id string) (*stackup.Results, error) {
	var snapshot string

	err := s.db.QueryRow(
		"SELECT snapshot_json FROM results WHERE id = ?", id,
	).Scan(&snapshot)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get results: %w", err)
	}

	return decodeSnapshot(snapshot)
}

// Latest retrieves the most recent result snapshot for an analysis,
// or nil if the analysis has never run
func (s *ResultsStore) Latest(analysisID string) (*stackup.Results, error) {
	var snapshot string

	// rowid breaks ties between runs stored within the same second
	err := s.db.QueryRow(`
		SELECT snapshot_json FROM results
		WHERE analysis_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1
	`, analysisID).Scan(&snapshot)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest results: %w", err)
	}

	return decodeSnapshot(snapshot)
}

// List returns recent result records, optionally filtered by analysis
func (s *ResultsStore) List(analysisID string, limit int) ([]ResultRecord, error) {
	var rows *sql.Rows
	var err error

	if analysisID != "" {
		rows, err = s.db.Query(`
			SELECT id, analysis_id, created_at, nominal, methods
			FROM results
			WHERE analysis_id = ?
			ORDER BY created_at DESC, rowid DESC
			LIMIT ?
		`, analysisID, limit)
	} else {
		rows, err = s.db.Query(`
			SELECT id, analysis_id, created_at, nominal, methods
			FROM results
			ORDER BY created_at DESC, rowid DESC
			LIMIT ?
		`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer rows.Close()

	var records []ResultRecord
	for rows.Next() {
		var r ResultRecord
		var createdAt, methods string
		if err := rows.Scan(&r.ID, &r.AnalysisID, &createdAt, &r.Nominal, &methods); err != nil {
			return nil, fmt.Errorf("failed to scan result record: %w", err)
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		r.Methods = splitMethods(methods)
		records = append(records, r)
	}

	return records, rows.Err()
}

// Cleanup removes result snapshots older than the retention period
func (s *ResultsStore) Cleanup(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).UTC().Format(time.RFC3339)
	result, err := s.db.Exec(`
		DELETE FROM results WHERE created_at < ?
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up results: %w", err)
	}
	return result.RowsAffected()
}

// Stats returns summary statistics for the results table
func (s *ResultsStore) Stats() (totalRecords int64, oldestRecord, newestRecord *time.Time, err error) {
	var oldestStr, newestStr sql.NullString
	err = s.db.QueryRow(`
		SELECT
			COUNT(*),
			MIN(created_at),
			MAX(created_at)
		FROM results
	`).Scan(&totalRecords, &oldestStr, &newestStr)
	if err == sql.ErrNoRows {
		return 0, nil, nil, nil
	}
	if err != nil {
		return 0, nil, nil, err
	}

	if oldestStr.Valid {
		if t, parseErr := time.Parse(time.RFC3339, oldestStr.String); parseErr == nil {
			oldestRecord = &t
		}
	}
	if newestStr.Valid {
		if t, parseErr := time.Parse(time.RFC3339, newestStr.String); parseErr == nil {
			newestRecord = &t
		}
	}
	return
}

// decodeSnapshot parses a stored snapshot back into results
func decodeSnapshot(snapshot string) (*stackup.Results, error) {
	var results stackup.Results
	if err := json.Unmarshal([]byte(snapshot), &results); err != nil {
		return nil, fmt.Errorf("invalid snapshot_json: %w", err)
	}
	return &results, nil
}

// methodsOf derives the method list from the populated result blocks
func methodsOf(results *stackup.Results) []stackup.Method {
	var methods []stackup.Method
	if results.WorstCase != nil {
		methods = append(methods, stackup.WorstCase)
	}
	if results.RSS != nil {
		methods = append(methods, stackup.RSS)
	}
	if results.MonteCarlo != nil {
		methods = append(methods, stackup.MonteCarlo)
	}
	return methods
}
