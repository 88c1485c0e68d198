package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pcbflow/drillsync/internal/model"
)

func TestParseTimestamp(t *testing.T) {
	ts, err := ParseTimestamp("2024/03/01 08:30:15")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 8, 30, 15, 0, time.UTC), ts)

	// Older machines report date-only drill times.
	ts, err = ParseTimestamp("2024/03/01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), ts)

	_, err = ParseTimestamp("01-03-2024")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnparseableTimestamp)
}

func testDimension() model.DimensionData {
	return model.DimensionData{
		Machine:     &model.MachineInfo{ID: 3, Name: "DM01"},
		Measure:     &model.MeasureInfo{Ca: 0.05, Cp: 1.33, Cpk: 1.2, RatioTarget: 98.5},
		ProductName: "PCB-100",
	}
}

func TestTransform(t *testing.T) {
	board := model.Board{
		ID:        7,
		MachineID: 3,
		SpindleID: 1,
		DrillTime: "2024/03/01 08:00:00",
		AOITime:   "2024/03/01 08:30:15",
		Lot:       "A123456789",
	}
	criteria := model.CriteriaInfo{ProductName: "PCB-100", PPMLimit: 20000}

	rec, err := Transform(board, testDimension(), criteria)
	require.NoError(t, err)

	assert.Equal(t, "PCB-100", rec.ProductName)
	assert.Equal(t, "DM01", rec.MachineName)
	assert.Equal(t, 1, rec.SpindleID)
	assert.InDelta(t, 15000.0, rec.PPM, 0.001)
	assert.True(t, rec.JudgePPM)
	assert.Equal(t, time.Date(2024, 3, 1, 8, 30, 15, 0, time.UTC), rec.AOITime)
}

func TestTransform_OverLimitFailsJudgment(t *testing.T) {
	board := model.Board{DrillTime: "2024/03/01 08:00:00", AOITime: "2024/03/01 08:30:15", Lot: "A1"}
	criteria := model.CriteriaInfo{PPMLimit: 10000}

	rec, err := Transform(board, testDimension(), criteria)
	require.NoError(t, err)
	assert.False(t, rec.JudgePPM)
}

func TestTransform_ZeroLimitCoercedToUnset(t *testing.T) {
	board := model.Board{DrillTime: "2024/03/01 08:00:00", AOITime: "2024/03/01 08:30:15", Lot: "A1"}

	rec, err := Transform(board, testDimension(), model.CriteriaInfo{PPMLimit: 0})
	require.NoError(t, err)
	assert.Equal(t, model.DefaultPPMLimit, rec.PPMControlLimit)
	assert.False(t, rec.JudgePPM)
}

func TestTransform_BadTimestamp(t *testing.T) {
	board := model.Board{ID: 9, DrillTime: "garbage", AOITime: "2024/03/01 08:30:15"}

	_, err := Transform(board, testDimension(), model.CriteriaInfo{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnparseableTimestamp)
}
