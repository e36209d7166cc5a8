package project

import (
	"os"
	"path/filepath"
	"testing"

	"tsa/internal/dist"
	"tsa/internal/errors"
	"tsa/internal/storage"
)

const yamlCatalogFixture = `
catalog: acme-fasteners-2026
components:
  - name: washer-m6
    features:
      - name: thickness
        value: 1.6
        plusTol: 0.1
        minusTol: 0.1
        dist: uniform
  - name: bushing-12
    features:
      - name: length
        value: 12.0
        plusTol: 0.05
        minusTol: 0.05
        distribution:
          kind: normal
          mean: 12.002
          stdDev: 0.012
`

func writeCatalogFixture(t *testing.T, tempDir, name, content string) string {
	path := filepath.Join(tempDir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write catalog: %v", err)
	}
	return path
}

func TestParseCatalogFileYAML(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "tsa-import-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	path := writeCatalogFixture(t, tempDir, "catalog.yaml", yamlCatalogFixture)

	catalog, err := ParseCatalogFile(path, "")
	if err != nil {
		t.Fatalf("Failed to parse catalog: %v", err)
	}

	if catalog.Catalog != "acme-fasteners-2026" {
		t.Errorf("Expected catalog name 'acme-fasteners-2026', got '%s'", catalog.Catalog)
	}
	if len(catalog.Components) != 2 {
		t.Fatalf("Expected 2 components, got %d", len(catalog.Components))
	}

	washer := catalog.Components[0]
	if washer.Name != "washer-m6" {
		t.Errorf("Expected name 'washer-m6', got '%s'", washer.Name)
	}
	if len(washer.Features) != 1 || washer.Features[0].Dist != "uniform" {
		t.Errorf("Washer features did not parse: %+v", washer.Features)
	}

	bushing := catalog.Components[1]
	if bushing.Features[0].Distribution == nil {
		t.Fatal("Expected measured distribution to parse")
	}
	if bushing.Features[0].Distribution.StdDev != 0.012 {
		t.Errorf("Expected stdDev 0.012, got %v", bushing.Features[0].Distribution.StdDev)
	}
}

func TestParseCatalogFileJSON(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "tsa-import-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	jsonContent := `{
  "catalog": "acme-fasteners-2026",
  "components": [
    {
      "name": "washer-m6",
      "features": [
        {"name": "thickness", "value": 1.6, "plusTol": 0.1, "minusTol": 0.1}
      ]
    }
  ]
}`

	path := writeCatalogFixture(t, tempDir, "catalog.json", jsonContent)

	catalog, err := ParseCatalogFile(path, "")
	if err != nil {
		t.Fatalf("Failed to parse catalog: %v", err)
	}
	if len(catalog.Components) != 1 {
		t.Fatalf("Expected 1 component, got %d", len(catalog.Components))
	}
	if catalog.Components[0].Features[0].Value != 1.6 {
		t.Errorf("Expected value 1.6, got %v", catalog.Components[0].Features[0].Value)
	}
}

func TestParseCatalogFileExplicitFormat(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "tsa-import-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	// A YAML catalog behind an extension-less path parses when the format
	// is given explicitly
	path := writeCatalogFixture(t, tempDir, "vendor-export", yamlCatalogFixture)

	if _, err := ParseCatalogFile(path, ""); err == nil {
		t.Error("Expected extension-less YAML to fail JSON detection")
	}

	catalog, err := ParseCatalogFile(path, FormatYAML)
	if err != nil {
		t.Fatalf("Failed to parse with explicit format: %v", err)
	}
	if len(catalog.Components) != 2 {
		t.Errorf("Expected 2 components, got %d", len(catalog.Components))
	}

	if _, err := ParseCatalogFile(path, "xml"); err == nil {
		t.Error("Expected unknown format to be rejected")
	}
}

func TestImportCatalog(t *testing.T) {
	syncer, db, tempDir := setupSyncTest(t)
	defer teardownSyncTest(t, db, tempDir)

	path := writeCatalogFixture(t, tempDir, "catalog.yaml", yamlCatalogFixture)

	result, err := syncer.ImportCatalog(path, "")
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if result.ComponentsCreated != 2 {
		t.Errorf("Expected 2 components created, got %d", result.ComponentsCreated)
	}

	// The measured distribution survives into the store
	repo := storage.NewComponentRepository(db)
	bushing, err := repo.GetByName("bushing-12")
	if err != nil || bushing == nil {
		t.Fatalf("Failed to get imported component: %v", err)
	}
	if bushing.Features[0].Distribution == nil {
		t.Fatal("Expected measured distribution to be stored")
	}
	if bushing.Features[0].Distribution.Kind != dist.Normal {
		t.Errorf("Expected kind normal, got %q", bushing.Features[0].Distribution.Kind)
	}
	if bushing.Features[0].Distribution.Mean != 12.002 {
		t.Errorf("Expected mean 12.002, got %v", bushing.Features[0].Distribution.Mean)
	}

	// Re-import updates in place
	again, err := syncer.ImportCatalog(path, "")
	if err != nil {
		t.Fatalf("Re-import failed: %v", err)
	}
	if again.ComponentsCreated != 0 || again.ComponentsUpdated != 2 {
		t.Errorf("Expected 0 created / 2 updated, got %d / %d",
			again.ComponentsCreated, again.ComponentsUpdated)
	}
}

func TestImportCatalogEmpty(t *testing.T) {
	syncer, db, tempDir := setupSyncTest(t)
	defer teardownSyncTest(t, db, tempDir)

	path := writeCatalogFixture(t, tempDir, "catalog.yaml", "catalog: empty\n")

	_, err := syncer.ImportCatalog(path, "")
	if err == nil {
		t.Fatal("Expected empty catalog to be rejected")
	}
	if !errors.HasCode(err, errors.ConfigInvalid) {
		t.Errorf("Expected ConfigInvalid, got %s", errors.CodeOf(err))
	}
}

func TestImportCatalogInvalidFeature(t *testing.T) {
	syncer, db, tempDir := setupSyncTest(t)
	defer teardownSyncTest(t, db, tempDir)

	content := `
components:
  - name: washer-m6
    features:
      - name: thickness
        value: 1.6
        distribution:
          kind: uniform
          min: 2.0
          max: 1.0
`
	path := writeCatalogFixture(t, tempDir, "catalog.yaml", content)

	_, err := syncer.ImportCatalog(path, "")
	if err == nil {
		t.Fatal("Expected inverted uniform band to be rejected")
	}
	if !errors.HasCode(err, errors.DistributionInvalid) {
		t.Errorf("Expected DistributionInvalid, got %s", errors.CodeOf(err))
	}
}
