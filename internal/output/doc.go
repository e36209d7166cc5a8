// Package output provides deterministic JSON encoding for tsa results.
//
// Analysis reports are compared, cached, and diffed by their bytes, so
// identical inputs must produce byte-identical output. This enables:
//   - Golden-file testing without false positives
//   - Detecting real result drift after model or catalog edits
//   - Reproducible exports for review
//
// # JSON Encoding Rules
//
// The DeterministicEncode function produces byte-identical outputs by:
//
//  1. Stable key ordering: Object keys are sorted alphabetically
//  2. Float formatting: Rounded to max 6 decimal places, no trailing zeros
//  3. Null handling: Nil/undefined fields are omitted entirely
//
// # Snapshot Testing
//
// Two runs of the same analysis differ in their result ID, timestamp, and
// (when unseeded) the Monte Carlo seed. CompareSnapshots strips those fields
// before comparing:
//
//   - id
//   - createdAt
//   - monteCarlo.seed
//
// # Usage Example
//
//	results, err := eng.Run(analysis, components)
//	// ...
//	jsonBytes, err := output.DeterministicEncode(results)
//
//	// Same input will always produce identical bytes
//	jsonBytes2, _ := output.DeterministicEncode(results)
//	// bytes.Equal(jsonBytes, jsonBytes2) == true
//
// # Snapshot Comparison
//
//	// Two runs of the same seeded analysis
//	json1, _ := json.Marshal(run1)
//	json2, _ := json.Marshal(run2)
//
//	// Compare ignoring run-varying fields
//	equal, msg := output.CompareSnapshots(json1, json2)
//	if !equal {
//	    t.Errorf("Runs differ: %s", msg)
//	}
package output
