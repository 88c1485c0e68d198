package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputePPM(t *testing.T) {
	assert.Equal(t, 0.0, ComputePPM(100))
	assert.Equal(t, 1000000.0, ComputePPM(0))
	assert.InDelta(t, 15000.0, ComputePPM(98.5), 0.001)
}

func TestJudgePPM(t *testing.T) {
	// 14999.1 ceils to 15000, exactly at the limit.
	assert.True(t, JudgePPM(14999.1, 15000))
	assert.True(t, JudgePPM(15000, 15000))
	assert.False(t, JudgePPM(15000.1, 15000))

	// Default unset limit never passes.
	assert.False(t, JudgePPM(0, DefaultPPMLimit))
}

func TestDrillRecord_Key(t *testing.T) {
	aoi := time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)
	r := &DrillRecord{LotNumber: "A123456789", SpindleID: 2, AOITime: aoi}

	key := r.Key()
	assert.Equal(t, "A123456789", key.LotNumber)
	assert.Equal(t, 2, key.SpindleID)
	assert.Equal(t, aoi, key.AOITime)
	assert.Equal(t, "A123456789/sp2/2024-03-01 08:30:00", key.String())
}
