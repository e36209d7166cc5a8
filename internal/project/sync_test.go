package project

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tsa/internal/errors"
	"tsa/internal/stackup"
	"tsa/internal/storage"
)

func setupSyncTest(t *testing.T) (*Syncer, *storage.DB, string) {
	tempDir, err := os.MkdirTemp("", "tsa-sync-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := storage.Open(tempDir, logger)
	if err != nil {
		_ = os.RemoveAll(tempDir)
		t.Fatalf("Failed to open database: %v", err)
	}

	return NewSyncer(db, logger), db, tempDir
}

func teardownSyncTest(t *testing.T, db *storage.DB, tempDir string) {
	if err := db.Close(); err != nil {
		t.Errorf("Failed to close database: %v", err)
	}
	if err := os.RemoveAll(tempDir); err != nil {
		t.Errorf("Failed to remove temp dir: %v", err)
	}
}

func writeStackupFixture(t *testing.T, tempDir, content string) {
	path := filepath.Join(tempDir, "STACKUP.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write STACKUP.toml: %v", err)
	}
}

const syncFixture = `
version = 1

[[component]]
name = "plate"

[[component.feature]]
name = "thickness"
value = 10.0
plus_tol = 0.1
minus_tol = 0.1
dist = "normal"

[[component]]
name = "spacer"

[[component.feature]]
name = "height"
value = 5.0
plus_tol = 0.05
minus_tol = 0.05

[[analysis]]
name = "gap"
methods = ["worst_case", "rss"]
upper_spec = 5.2
lower_spec = 4.8

[[analysis.contribution]]
component = "plate"
feature = "thickness"
direction = 1.0

[[analysis.contribution]]
component = "spacer"
feature = "height"
direction = -1.0
`

func TestSyncCreatesEntities(t *testing.T) {
	syncer, db, tempDir := setupSyncTest(t)
	defer teardownSyncTest(t, db, tempDir)

	writeStackupFixture(t, tempDir, syncFixture)

	result, err := syncer.Sync(tempDir)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if result.ComponentsCreated != 2 {
		t.Errorf("Expected 2 components created, got %d", result.ComponentsCreated)
	}
	if result.AnalysesCreated != 1 {
		t.Errorf("Expected 1 analysis created, got %d", result.AnalysesCreated)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("Unexpected warnings: %v", result.Warnings)
	}

	// Components land in the store under stable IDs
	plate, err := storage.NewComponentRepository(db).GetByName("plate")
	if err != nil {
		t.Fatalf("Failed to get component: %v", err)
	}
	if plate == nil {
		t.Fatal("Expected plate to be stored")
	}
	if plate.ID != GenerateStableComponentID("plate") {
		t.Errorf("Expected stable component ID, got %s", plate.ID)
	}
	if len(plate.Features) != 1 || plate.Features[0].Name != "thickness" {
		t.Fatalf("Plate features did not sync: %+v", plate.Features)
	}

	// The analysis resolves name references to stored feature IDs
	gap, err := storage.NewAnalysisRepository(db).GetByName("gap")
	if err != nil {
		t.Fatalf("Failed to get analysis: %v", err)
	}
	if gap == nil {
		t.Fatal("Expected gap to be stored")
	}
	if len(gap.Contributions) != 2 {
		t.Fatalf("Expected 2 contributions, got %d", len(gap.Contributions))
	}
	if gap.Contributions[0].ComponentID != plate.ID {
		t.Errorf("Expected contribution to reference %s, got %s", plate.ID, gap.Contributions[0].ComponentID)
	}
	if gap.Contributions[0].FeatureID != plate.Features[0].ID {
		t.Errorf("Expected contribution to reference feature %s, got %s", plate.Features[0].ID, gap.Contributions[0].FeatureID)
	}
	if gap.UpperSpec == nil || *gap.UpperSpec != 5.2 {
		t.Errorf("Upper spec did not sync: %v", gap.UpperSpec)
	}
}

func TestSyncIsIdempotent(t *testing.T) {
	syncer, db, tempDir := setupSyncTest(t)
	defer teardownSyncTest(t, db, tempDir)

	writeStackupFixture(t, tempDir, syncFixture)

	if _, err := syncer.Sync(tempDir); err != nil {
		t.Fatalf("First sync failed: %v", err)
	}

	componentRepo := storage.NewComponentRepository(db)
	analysisRepo := storage.NewAnalysisRepository(db)

	before, err := analysisRepo.GetByName("gap")
	if err != nil || before == nil {
		t.Fatalf("Failed to get analysis after first sync: %v", err)
	}

	result, err := syncer.Sync(tempDir)
	if err != nil {
		t.Fatalf("Second sync failed: %v", err)
	}

	if result.ComponentsCreated != 0 || result.ComponentsUpdated != 2 {
		t.Errorf("Expected 0 created / 2 updated components, got %d / %d",
			result.ComponentsCreated, result.ComponentsUpdated)
	}
	if result.AnalysesCreated != 0 || result.AnalysesUpdated != 1 {
		t.Errorf("Expected 0 created / 1 updated analyses, got %d / %d",
			result.AnalysesCreated, result.AnalysesUpdated)
	}

	// IDs survive the re-sync, contribution IDs included
	plate, err := componentRepo.GetByName("plate")
	if err != nil || plate == nil {
		t.Fatalf("Failed to get component after re-sync: %v", err)
	}
	if plate.ID != GenerateStableComponentID("plate") {
		t.Errorf("Component ID churned on re-sync: %s", plate.ID)
	}

	after, err := analysisRepo.GetByName("gap")
	if err != nil || after == nil {
		t.Fatalf("Failed to get analysis after re-sync: %v", err)
	}
	if after.ID != before.ID {
		t.Errorf("Analysis ID churned on re-sync: %s != %s", after.ID, before.ID)
	}
	for i := range before.Contributions {
		if after.Contributions[i].ID != before.Contributions[i].ID {
			t.Errorf("Contribution %d ID churned on re-sync: %s != %s",
				i, after.Contributions[i].ID, before.Contributions[i].ID)
		}
	}
}

func TestSyncPreservesRuntimeIDs(t *testing.T) {
	syncer, db, tempDir := setupSyncTest(t)
	defer teardownSyncTest(t, db, tempDir)

	// A component created at run time has a random ID, not a stable one
	componentRepo := storage.NewComponentRepository(db)
	existing := stackup.NewComponent("plate")
	if err := existing.AddFeature(stackup.NewFeature("thickness", 9.0, 0.2, 0.2)); err != nil {
		t.Fatalf("Failed to add feature: %v", err)
	}
	if err := componentRepo.Create(existing); err != nil {
		t.Fatalf("Failed to create component: %v", err)
	}

	writeStackupFixture(t, tempDir, syncFixture)

	result, err := syncer.Sync(tempDir)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if result.ComponentsCreated != 1 || result.ComponentsUpdated != 1 {
		t.Errorf("Expected 1 created / 1 updated, got %d / %d",
			result.ComponentsCreated, result.ComponentsUpdated)
	}

	// The stored IDs win so existing references stay valid
	plate, err := componentRepo.GetByName("plate")
	if err != nil || plate == nil {
		t.Fatalf("Failed to get component: %v", err)
	}
	if plate.ID != existing.ID {
		t.Errorf("Expected stored ID %s to be kept, got %s", existing.ID, plate.ID)
	}
	if plate.Features[0].ID != existing.Features[0].ID {
		t.Errorf("Expected stored feature ID %s to be kept, got %s",
			existing.Features[0].ID, plate.Features[0].ID)
	}

	// The declared values still overwrite the stored ones
	if plate.Features[0].Value != 10.0 {
		t.Errorf("Expected declared value 10 to win, got %v", plate.Features[0].Value)
	}

	// Contributions resolve to the preserved IDs
	gap, err := storage.NewAnalysisRepository(db).GetByName("gap")
	if err != nil || gap == nil {
		t.Fatalf("Failed to get analysis: %v", err)
	}
	if gap.Contributions[0].ComponentID != existing.ID {
		t.Errorf("Expected contribution to reference preserved ID %s, got %s",
			existing.ID, gap.Contributions[0].ComponentID)
	}
}

func TestSyncUnknownReference(t *testing.T) {
	syncer, db, tempDir := setupSyncTest(t)
	defer teardownSyncTest(t, db, tempDir)

	writeStackupFixture(t, tempDir, `
version = 1

[[component]]
name = "plate"

[[component.feature]]
name = "thickness"
value = 10.0
plus_tol = 0.1
minus_tol = 0.1

[[analysis]]
name = "gap"
methods = ["worst_case"]

[[analysis.contribution]]
component = "plate"
feature = "thickness"
direction = 1.0

[[analysis.contribution]]
component = "ghost"
feature = "height"
direction = -1.0

[[analysis.contribution]]
component = "plate"
feature = "width"
direction = -1.0
`)

	result, err := syncer.Sync(tempDir)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if len(result.Warnings) != 2 {
		t.Fatalf("Expected 2 warnings, got %d: %v", len(result.Warnings), result.Warnings)
	}
	if !strings.Contains(result.Warnings[0], "ghost") {
		t.Errorf("First warning should name the unknown component: %s", result.Warnings[0])
	}
	if !strings.Contains(result.Warnings[1], "width") {
		t.Errorf("Second warning should name the unknown feature: %s", result.Warnings[1])
	}

	// Only the resolvable contribution is stored
	gap, err := storage.NewAnalysisRepository(db).GetByName("gap")
	if err != nil || gap == nil {
		t.Fatalf("Failed to get analysis: %v", err)
	}
	if len(gap.Contributions) != 1 {
		t.Errorf("Expected 1 stored contribution, got %d", len(gap.Contributions))
	}
}

func TestSyncNoFile(t *testing.T) {
	syncer, db, tempDir := setupSyncTest(t)
	defer teardownSyncTest(t, db, tempDir)

	_, err := syncer.Sync(tempDir)
	if err == nil {
		t.Fatal("Expected sync without STACKUP.toml to fail")
	}
	if !errors.HasCode(err, errors.ConfigInvalid) {
		t.Errorf("Expected ConfigInvalid, got %v", errors.CodeOf(err))
	}
}

func TestSyncRejectsMalformedDeclarations(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantCode errors.ErrorCode
	}{
		{
			name: "component without name",
			content: `
[[component]]

[[component.feature]]
name = "thickness"
value = 10.0
`,
			wantCode: errors.ConfigInvalid,
		},
		{
			name: "contribution without feature name",
			content: `
[[component]]
name = "plate"

[[analysis]]
name = "gap"
methods = ["worst_case"]

[[analysis.contribution]]
component = "plate"
direction = 1.0
`,
			wantCode: errors.ConfigInvalid,
		},
		{
			name: "invalid direction",
			content: `
[[component]]
name = "plate"

[[component.feature]]
name = "thickness"
value = 10.0

[[analysis]]
name = "gap"
methods = ["worst_case"]

[[analysis.contribution]]
component = "plate"
feature = "thickness"
direction = 0.5
`,
			wantCode: errors.ConfigInvalid,
		},
		{
			name: "unknown method",
			content: `
[[component]]
name = "plate"

[[analysis]]
name = "gap"
methods = ["quadrature"]
`,
			wantCode: errors.ConfigInvalid,
		},
		{
			name: "analysis without methods",
			content: `
[[component]]
name = "plate"

[[analysis]]
name = "gap"
`,
			wantCode: errors.ConfigInvalid,
		},
		{
			name: "monte carlo without settings",
			content: `
[[component]]
name = "plate"

[[analysis]]
name = "gap"
methods = ["monte_carlo"]
`,
			wantCode: errors.SettingsMissing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			syncer, db, tempDir := setupSyncTest(t)
			defer teardownSyncTest(t, db, tempDir)

			writeStackupFixture(t, tempDir, tt.content)

			_, err := syncer.Sync(tempDir)
			if err == nil {
				t.Fatal("Expected sync to fail")
			}
			if !errors.HasCode(err, tt.wantCode) {
				t.Errorf("Expected %s, got %s (%v)", tt.wantCode, errors.CodeOf(err), err)
			}
		})
	}
}
