package pipeline

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/pcbflow/drillsync/internal/model"
)

// ErrUnparseableTimestamp is returned when a source timestamp matches none
// of the known layouts.
var ErrUnparseableTimestamp = eris.New("pipeline: unparseable timestamp")

// timestampLayouts are the textual forms the source system emits, tried in
// order. Some older machines report date-only drill times.
var timestampLayouts = []string{
	"2006/01/02 15:04:05",
	"2006/01/02",
}

// ParseTimestamp parses a source timestamp, trying each known layout in
// order; the first match wins.
func ParseTimestamp(value string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, eris.Wrapf(ErrUnparseableTimestamp, "value %q", value)
}

// Transform derives the normalized drill record from a board, its dimension
// data and the product's criteria. Pure computation: the ppm proxy, the
// pass/fail judgment and the parsed timestamps.
func Transform(board model.Board, dim model.DimensionData, criteria model.CriteriaInfo) (*model.DrillRecord, error) {
	drillTime, err := ParseTimestamp(board.DrillTime)
	if err != nil {
		return nil, eris.Wrapf(err, "transform: drill time for board %d", board.ID)
	}
	aoiTime, err := ParseTimestamp(board.AOITime)
	if err != nil {
		return nil, eris.Wrapf(err, "transform: aoi time for board %d", board.ID)
	}

	limit := criteria.PPMLimit
	if limit == 0 {
		limit = model.DefaultPPMLimit
	}

	rec := &model.DrillRecord{
		ProductName:     dim.ProductName,
		LotNumber:       board.Lot,
		MachineID:       board.MachineID,
		MachineName:     dim.Machine.Name,
		SpindleID:       board.SpindleID,
		PPMControlLimit: limit,
		DrillTime:       drillTime,
		AOITime:         aoiTime,
		Ca:              dim.Measure.Ca,
		Cp:              dim.Measure.Cp,
		Cpk:             dim.Measure.Cpk,
		RatioTarget:     dim.Measure.RatioTarget,
	}
	rec.PPM = model.ComputePPM(rec.RatioTarget)
	rec.JudgePPM = model.JudgePPM(rec.PPM, rec.PPMControlLimit)
	return rec, nil
}
