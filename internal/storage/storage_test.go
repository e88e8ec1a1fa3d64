package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skufu/medsafe/internal/apperr"
	"github.com/Skufu/medsafe/internal/config"
	"github.com/Skufu/medsafe/internal/kb"
	"github.com/Skufu/medsafe/internal/model"
)

func cfgFor(t *testing.T, driver string) *config.Config {
	dir := t.TempDir()
	return &config.Config{Storage: config.Storage{
		Driver:     driver,
		SQLitePath: filepath.Join(dir, "kb.db"),
		YAMLPath:   filepath.Join(dir, "kb.yaml"),
	}}
}

func TestOpenStoreDrivers(t *testing.T) {
	for _, driver := range []string{config.DriverMemory, config.DriverSQLite, config.DriverYAML} {
		t.Run(driver, func(t *testing.T) {
			s, err := OpenStore(context.Background(), cfgFor(t, driver))
			require.NoError(t, err)
			defer s.Close()

			d, err := s.LookupDrug("Tylenol")
			require.NoError(t, err)
			assert.Equal(t, "acetaminophen", d.ID)

			_, isDurable := s.(*kb.DurableStore)
			assert.Equal(t, driver != config.DriverMemory, isDurable)
		})
	}
}

func TestOpenStoreUsesSeedFile(t *testing.T) {
	cfg := cfgFor(t, config.DriverYAML)
	cfg.SeedFile = filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(cfg.SeedFile, []byte(`
drugs:
  - id: a
  - id: b
facts:
  - drugs: [a, b]
    severity: moderate
`), 0o644))

	s, err := OpenStore(context.Background(), cfg)
	require.NoError(t, err)
	defer s.Close()

	assert.Len(t, s.Drugs(), 2)
	f, ok := s.Fact(model.NewDrugSet("a", "b"))
	require.True(t, ok)
	assert.Equal(t, model.SeverityModerate, f.Severity)
}

func TestOpenStoreRejectsBadYAML(t *testing.T) {
	cfg := cfgFor(t, config.DriverYAML)
	require.NoError(t, os.WriteFile(cfg.Storage.YAMLPath, []byte("drugs: {not: a list}\n"), 0o644))

	_, err := OpenStore(context.Background(), cfg)
	assert.ErrorIs(t, err, apperr.ErrStorageUnavailable)
}

func TestOpenBackendUnknownDriver(t *testing.T) {
	_, err := OpenBackend(context.Background(), cfgFor(t, "mongo"))
	assert.Error(t, err)
}
