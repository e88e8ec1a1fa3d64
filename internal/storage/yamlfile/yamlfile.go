// Package yamlfile persists the knowledge base as one YAML document, the
// same layout used by seed files. Saves go through a temp file and a rename
// so a crash never leaves a half-written document behind.
package yamlfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/Skufu/medsafe/internal/kb"
	"github.com/Skufu/medsafe/internal/model"
)

// Backend implements kb.Backend on a YAML file.
type Backend struct {
	path string
}

// New returns a backend for path. The file need not exist yet.
func New(path string) *Backend {
	return &Backend{path: path}
}

// Load decodes the file. A missing file is an empty dataset.
func (b *Backend) Load(_ context.Context) (model.Dataset, error) {
	ds, err := kb.LoadSeedFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return model.Dataset{}, nil
	}
	return ds, err
}

// Save writes ds atomically.
func (b *Backend) Save(_ context.Context, ds model.Dataset) error {
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	data, err := yaml.Marshal(ds)
	if err != nil {
		return fmt.Errorf("marshal dataset: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".medsafe-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), b.path); err != nil {
		return fmt.Errorf("replace %s: %w", b.path, err)
	}
	return nil
}

// Ping checks that the parent directory is reachable.
func (b *Backend) Ping(_ context.Context) error {
	info, err := os.Stat(filepath.Dir(b.path))
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", filepath.Dir(b.path))
	}
	return nil
}

// Close is a no-op.
func (b *Backend) Close() error { return nil }
