package output

import (
	"bytes"
	"encoding/json"
)

// SnapshotExcludeFields lists fields that vary between runs of the same analysis
var SnapshotExcludeFields = []string{
	"id",
	"createdAt",
	"monteCarlo.seed",
}

// NormalizeForSnapshot removes run-varying fields for comparison
func NormalizeForSnapshot(data []byte) ([]byte, error) {
	// Parse JSON into a map
	var parsed map[string]interface{}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, err
	}

	// Remove excluded fields
	for _, field := range SnapshotExcludeFields {
		removeNestedField(parsed, field)
	}

	// Re-encode deterministically
	return DeterministicEncode(parsed)
}

// CompareSnapshots returns true if two results are identical
// (ignoring run-varying fields)
func CompareSnapshots(a, b []byte) (bool, string) {
	// Normalize both snapshots
	normalizedA, err := NormalizeForSnapshot(a)
	if err != nil {
		return false, "failed to normalize snapshot A: " + err.Error()
	}

	normalizedB, err := NormalizeForSnapshot(b)
	if err != nil {
		return false, "failed to normalize snapshot B: " + err.Error()
	}

	// Compare byte-for-byte
	if !bytes.Equal(normalizedA, normalizedB) {
		return false, "snapshots differ"
	}

	return true, ""
}

// removeNestedField removes a nested field from a map using dot notation
// e.g., "monteCarlo.seed" removes the "seed" field from the "monteCarlo" object
func removeNestedField(data map[string]interface{}, path string) {
	parts := splitPath(path)
	if len(parts) == 0 {
		return
	}

	// Navigate to the parent object
	current := data
	for i := 0; i < len(parts)-1; i++ {
		next, ok := current[parts[i]]
		if !ok {
			return
		}

		nextMap, ok := next.(map[string]interface{})
		if !ok {
			return
		}

		current = nextMap
	}

	// Remove the final field
	delete(current, parts[len(parts)-1])
}

// splitPath splits a dot-separated path into parts
func splitPath(path string) []string {
	if path == "" {
		return nil
	}

	parts := []string{}
	current := ""
	for _, ch := range path {
		if ch == '.' {
			if current != "" {
				parts = append(parts, current)
				current = ""
			}
		} else {
			current += string(ch)
		}
	}
	if current != "" {
		parts = append(parts, current)
	}

	return parts
}

// SnapshotEqual compares two values for equality, ignoring run-varying fields
func SnapshotEqual(a, b interface{}) bool {
	// Convert both to JSON
	aJSON, err := json.Marshal(a)
	if err != nil {
		return false
	}

	bJSON, err := json.Marshal(b)
	if err != nil {
		return false
	}

	// Compare using CompareSnapshots
	equal, _ := CompareSnapshots(aJSON, bJSON)
	return equal
}
