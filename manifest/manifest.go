// Package manifest handles cafebabe.toml tool configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Manifest represents a cafebabe.toml configuration.
type Manifest struct {
	Project Project `toml:"project"`
	Input   Input   `toml:"input"`
	Index   Index   `toml:"index"`
	Export  Export  `toml:"export"`

	// Dir is the directory containing the cafebabe.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name string `toml:"name"`
}

// Input configures which class files are processed.
type Input struct {
	Dirs []string `toml:"dirs"`
}

// Index configures the SQLite class index.
type Index struct {
	Database string `toml:"database"`
}

// Export configures summary export.
type Export struct {
	Output string `toml:"output"`
}

// Load parses a cafebabe.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "cafebabe.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Defaults
	if len(m.Input.Dirs) == 0 {
		m.Input.Dirs = []string{"classes"}
	}
	if m.Index.Database == "" {
		m.Index.Database = "cafebabe.db"
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a cafebabe.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "cafebabe.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// InputDirPaths returns absolute paths for the configured input directories.
func (m *Manifest) InputDirPaths() []string {
	var paths []string
	for _, d := range m.Input.Dirs {
		paths = append(paths, filepath.Join(m.Dir, d))
	}
	return paths
}

// DatabasePath returns the absolute path of the index database.
func (m *Manifest) DatabasePath() string {
	if filepath.IsAbs(m.Index.Database) {
		return m.Index.Database
	}
	return filepath.Join(m.Dir, m.Index.Database)
}
