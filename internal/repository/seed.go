package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	v1 "github.com/driverfleet/driverfleet/pkg/api/v1"
	"github.com/driverfleet/driverfleet/pkg/log"
)

// CatalogFile is the name of the catalog document inside the repository directory.
const CatalogFile = "drivers.json"

// DefaultCatalog is written when the repository starts without a catalog document. Its
// digest is the one of an empty file.
func DefaultCatalog() v1.CatalogDocument {
	return v1.CatalogDocument{Drivers: []v1.CatalogEntry{{
		Name:        "NVIDIA Graphics Driver (Test)",
		Version:     "456.71",
		Description: "Test NVIDIA package",
		HardwareIDs: []string{`PCI\VEN_10DE&DEV_1C03`, `PCI\VEN_10DE&DEV_1C82`},
		URL:         "/nvidia/test_driver.exe",
		InstallArgs: "/S /quiet",
		SHA256:      "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
	}}}
}

// ensureLayout creates dir and seeds the catalog document when it does not exist yet.
// It reports whether a document was written.
func ensureLayout(dir string) (bool, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("create repository dir: %w", err)
	}

	path := filepath.Join(dir, CatalogFile)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}

	data, err := json.MarshalIndent(DefaultCatalog(), "", "  ")
	if err != nil {
		return false, err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("write default catalog: %w", err)
	}
	log.Info("Seeded default catalog document", "path", path)
	return true, nil
}

// inspectCatalog parses the catalog document and returns how many entries it holds.
func inspectCatalog(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var doc v1.CatalogDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0, err
	}
	return len(doc.Drivers), nil
}
