package criteria

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pcbflow/drillsync/internal/model"
	"github.com/pcbflow/drillsync/internal/store"
)

type bandStore struct {
	store.Store
	replaced []model.ARBand
}

func (s *bandStore) ReplaceARBands(ctx context.Context, bands []model.ARBand) (int64, error) {
	s.replaced = bands
	return int64(len(bands)), nil
}

func writeBandsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bands.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseBands(t *testing.T) {
	path := writeBandsFile(t, `
bands:
  - level: S
    upper_limit: 2.0
    ppm_limit: 3000
  - level: A
    lower_limit: 2.0
    upper_limit: 4.0
    ppm_limit: 10000
`)

	bands, err := ParseBands(path)
	require.NoError(t, err)
	require.Len(t, bands, 2)
	assert.Equal(t, "S", bands[0].Level)
	assert.Equal(t, 3000, bands[0].PPMLimit)
	assert.Equal(t, 2.0, bands[1].LowerLimit)
	assert.Equal(t, 4.0, bands[1].UpperLimit)
}

func TestParseBands_MissingLevel(t *testing.T) {
	path := writeBandsFile(t, "bands:\n  - upper_limit: 2.0\n    ppm_limit: 3000\n")

	_, err := ParseBands(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing level")
}

func TestParseBands_BadUpperLimit(t *testing.T) {
	path := writeBandsFile(t, "bands:\n  - level: A\n    ppm_limit: 3000\n")

	_, err := ParseBands(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upper limit must be positive")
}

func TestImportBands(t *testing.T) {
	path := writeBandsFile(t, `
bands:
  - level: A
    upper_limit: 3.5
    ppm_limit: 8000
`)

	st := &bandStore{}
	n, err := ImportBands(context.Background(), st, path)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.Len(t, st.replaced, 1)
	assert.Equal(t, "A", st.replaced[0].Level)
	assert.False(t, st.replaced[0].UpdateTime.IsZero())
}

func TestImportBands_EmptyFile(t *testing.T) {
	path := writeBandsFile(t, "bands: []\n")

	_, err := ImportBands(context.Background(), &bandStore{}, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no bands")
}
