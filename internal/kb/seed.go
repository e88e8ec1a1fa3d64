package kb

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Skufu/medsafe/internal/model"
)

//go:embed seed/default.yaml
var defaultSeed []byte

// DefaultSeed returns the built-in starter dataset.
func DefaultSeed() (model.Dataset, error) {
	return DecodeDataset(bytes.NewReader(defaultSeed))
}

// LoadSeedFile reads a YAML dataset from path.
func LoadSeedFile(path string) (model.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Dataset{}, fmt.Errorf("open seed: %w", err)
	}
	defer f.Close()
	return DecodeDataset(f)
}

// DecodeDataset parses a YAML (or JSON) dataset. Unknown fields and
// unknown severities are rejected.
func DecodeDataset(r io.Reader) (model.Dataset, error) {
	var ds model.Dataset
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&ds); err != nil && err != io.EOF {
		return model.Dataset{}, fmt.Errorf("decode dataset: %w", err)
	}
	return ds, nil
}
