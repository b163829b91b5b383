// Package batch drives the per-table pipeline across a manifest of tables
// with bounded concurrency, retries, and a global request rate limit. The
// pipeline itself stays single-threaded per table; this package only
// schedules independent table runs.
package batch

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// TableSpec is one table to inspect.
type TableSpec struct {
	// Name is the catalog table name.
	Name string `yaml:"name"`
	// Path is the local CSV file holding the table data.
	Path string `yaml:"path"`
	// Location is recorded in the catalog entry (e.g. an object-store URI).
	Location string `yaml:"location"`
}

// Manifest lists the tables for one batch run.
type Manifest struct {
	Database   string      `yaml:"database"`
	SampleRows int         `yaml:"sample_rows"`
	Tables     []TableSpec `yaml:"tables"`
}

// LoadManifest reads and validates a YAML manifest.
func LoadManifest(path string) (Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(b, &m); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest: %w", err)
	}
	if strings.TrimSpace(m.Database) == "" {
		return Manifest{}, fmt.Errorf("manifest: database is required")
	}
	if m.SampleRows <= 0 {
		m.SampleRows = 100
	}
	if len(m.Tables) == 0 {
		return Manifest{}, fmt.Errorf("manifest: at least one table is required")
	}
	seen := make(map[string]struct{}, len(m.Tables))
	for i, t := range m.Tables {
		if strings.TrimSpace(t.Name) == "" {
			return Manifest{}, fmt.Errorf("manifest: table %d has no name", i)
		}
		if strings.TrimSpace(t.Path) == "" {
			return Manifest{}, fmt.Errorf("manifest: table %q has no path", t.Name)
		}
		if _, ok := seen[t.Name]; ok {
			return Manifest{}, fmt.Errorf("manifest: duplicate table %q", t.Name)
		}
		seen[t.Name] = struct{}{}
	}
	return m, nil
}
