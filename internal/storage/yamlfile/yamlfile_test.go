package yamlfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skufu/medsafe/internal/kb"
	"github.com/Skufu/medsafe/internal/kb/kbtest"
	"github.com/Skufu/medsafe/internal/model"
)

func TestYAMLStoreContract(t *testing.T) {
	kbtest.RunStoreSuite(t, func(t *testing.T, ds model.Dataset) kb.Store {
		b := New(filepath.Join(t.TempDir(), "kb.yaml"))
		s, err := kb.Open(context.Background(), b, &ds)
		require.NoError(t, err)
		return s
	})
}

func TestMissingFileIsEmpty(t *testing.T) {
	b := New(filepath.Join(t.TempDir(), "absent.yaml"))
	ds, err := b.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ds.Drugs)
	assert.NoError(t, b.Ping(context.Background()))
}

func TestSaveThenReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kb.yaml")
	seed := kbtest.Fixture()

	s, err := kb.Open(ctx, New(path), &seed)
	require.NoError(t, err)
	_, err = s.UpsertFact(ctx, []string{"aspirin", "calcium"}, model.SeveritySafe, "No interaction", false)
	require.NoError(t, err)

	s2, err := kb.Open(ctx, New(path), nil)
	require.NoError(t, err)
	assert.Equal(t, s.Dataset(), s2.Dataset())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestUnknownSeverityFailsLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
drugs:
  - id: a
  - id: b
facts:
  - drugs: [a, b]
    severity: catastrophic
`), 0o644))

	_, err := New(path).Load(context.Background())
	assert.ErrorContains(t, err, "catastrophic")
}
