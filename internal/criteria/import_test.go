package criteria

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/pcbflow/drillsync/internal/model"
	"github.com/pcbflow/drillsync/internal/store"
)

func init() {
	// Replace global logger with a no-op to avoid noisy test output.
	zap.ReplaceGlobals(zap.NewNop())
}

// replaceStore stubs just the bulk replace; the importer uses nothing else.
type replaceStore struct {
	store.Store
	replaced []model.CriteriaInfo
}

func (s *replaceStore) ReplaceCriteria(ctx context.Context, infos []model.CriteriaInfo) (int64, error) {
	s.replaced = infos
	return int64(len(infos)), nil
}

// limitRow is a sparse workbook row: only the columns the importer reads.
type limitRow struct {
	product  string
	ar       string
	arLevel  string
	ppmLimit string
}

func writeWorkbook(t *testing.T, sheetName string, rows []limitRow) string {
	t.Helper()

	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	require.NoError(t, err)

	header := sheet.AddRow()
	for i := 0; i <= colPPMLimit; i++ {
		header.AddCell().SetString("header")
	}

	for _, r := range rows {
		row := sheet.AddRow()
		for i := 0; i <= colPPMLimit; i++ {
			cell := row.AddCell()
			switch i {
			case colProduct:
				cell.SetString(r.product)
			case colAR:
				cell.SetString(r.ar)
			case colARLevel:
				cell.SetString(r.arLevel)
			case colPPMLimit:
				cell.SetString(r.ppmLimit)
			}
		}
	}

	path := filepath.Join(t.TempDir(), "limits.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestImport(t *testing.T) {
	path := writeWorkbook(t, defaultSheet, []limitRow{
		{product: "PCB-100", ar: "3.5", arLevel: "B", ppmLimit: "10000"},
		{product: "PCB-200", ar: "7.2", arLevel: "S", ppmLimit: "20000"},
		{product: "", ar: "1", arLevel: "A", ppmLimit: "5000"}, // no drawing number, skipped
		{product: "PCB-300"},                                  // sparse row, defaults
	})

	st := &replaceStore{}
	n, err := NewImporter(st, "").Import(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	require.Len(t, st.replaced, 3)

	assert.Equal(t, "PCB-100", st.replaced[0].ProductName)
	assert.Equal(t, 3.5, st.replaced[0].AR)
	assert.False(t, st.replaced[0].Modification)

	// Level S marks the product as needing manual modification.
	assert.True(t, st.replaced[1].Modification)
	assert.Equal(t, 20000, st.replaced[1].PPMLimit)

	// Sparse rows keep the unrated defaults.
	assert.Equal(t, "PCB-300", st.replaced[2].ProductName)
	assert.Equal(t, -1.0, st.replaced[2].AR)
	assert.Zero(t, st.replaced[2].PPMLimit)
}

func TestImport_MalformedLimitAborts(t *testing.T) {
	path := writeWorkbook(t, defaultSheet, []limitRow{
		{product: "PCB-100", ar: "3.5", arLevel: "B", ppmLimit: "not-a-number"},
	})

	st := &replaceStore{}
	_, err := NewImporter(st, "").Import(context.Background(), path)
	require.Error(t, err)
	assert.Nil(t, st.replaced)
}

func TestImport_MissingSheet(t *testing.T) {
	path := writeWorkbook(t, "wrong-sheet", []limitRow{
		{product: "PCB-100", ar: "3.5", arLevel: "B", ppmLimit: "10000"},
	})

	_, err := NewImporter(&replaceStore{}, "").Import(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestImport_EmptyWorkbookRejected(t *testing.T) {
	path := writeWorkbook(t, defaultSheet, nil)

	_, err := NewImporter(&replaceStore{}, "").Import(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no usable rows")
}
