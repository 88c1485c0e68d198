// Package criteria imports the risk-drawing limit table from the quality
// team's spreadsheet into the destination store.
package criteria

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/pcbflow/drillsync/internal/model"
	"github.com/pcbflow/drillsync/internal/store"
)

// The quality team maintains one workbook with a fixed sheet layout:
// drawing number in column 0, AR value in column 5, AR level in column 8
// and the PPM control limit in column 12. Columns in between are ignored.
const (
	defaultSheet = "風險圖號"

	colProduct  = 0
	colAR       = 5
	colARLevel  = 8
	colPPMLimit = 12
)

// Importer reads the limit workbook and replaces the product criteria table
// wholesale.
type Importer struct {
	store store.Store
	sheet string
	now   func() time.Time
}

// NewImporter builds an importer over the destination store. An empty sheet
// name selects the standard risk-drawing sheet.
func NewImporter(st store.Store, sheet string) *Importer {
	if sheet == "" {
		sheet = defaultSheet
	}
	return &Importer{store: st, sheet: sheet, now: time.Now}
}

// Import parses the workbook at path and replaces the criteria table with
// its rows. It returns the number of rows written. Rows without a drawing
// number are skipped; a malformed limit cell fails the whole import so a
// half-parsed workbook never truncates the table.
func (i *Importer) Import(ctx context.Context, path string) (int64, error) {
	log := zap.L().With(zap.String("component", "criteria.importer"))

	infos, err := i.Parse(path)
	if err != nil {
		return 0, err
	}
	if len(infos) == 0 {
		return 0, eris.Errorf("criteria: no usable rows in %s", path)
	}

	n, err := i.store.ReplaceCriteria(ctx, infos)
	if err != nil {
		return 0, eris.Wrap(err, "criteria: replace table")
	}

	log.Info("criteria table replaced",
		zap.String("file", path),
		zap.Int64("rows", n),
	)
	return n, nil
}

// Parse reads the workbook into criteria rows without touching the store.
func (i *Importer) Parse(path string) ([]model.CriteriaInfo, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "criteria: open %s", path)
	}

	sheet, ok := f.Sheet[i.sheet]
	if !ok {
		return nil, eris.Errorf("criteria: sheet %q not found in %s", i.sheet, path)
	}

	now := i.now()
	var infos []model.CriteriaInfo
	for rowIdx, row := range sheet.Rows {
		if rowIdx == 0 {
			continue // header
		}

		product := strings.TrimSpace(cell(row, colProduct))
		if product == "" {
			continue
		}

		info := model.CriteriaInfo{
			ProductName: product,
			AR:          -1,
			UpdateTime:  now,
		}

		if raw := strings.TrimSpace(cell(row, colAR)); raw != "" {
			ar, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, eris.Wrapf(err, "criteria: row %d: AR value %q", rowIdx+1, raw)
			}
			info.AR = ar
		}

		info.ARLevel = strings.TrimSpace(cell(row, colARLevel))
		info.Modification = info.ARLevel == "S"

		if raw := strings.TrimSpace(cell(row, colPPMLimit)); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil {
				return nil, eris.Wrapf(err, "criteria: row %d: PPM limit %q", rowIdx+1, raw)
			}
			info.PPMLimit = limit
		}

		infos = append(infos, info)
	}

	return infos, nil
}

func cell(row *xlsx.Row, idx int) string {
	if idx >= len(row.Cells) {
		return ""
	}
	return row.Cells[idx].String()
}
