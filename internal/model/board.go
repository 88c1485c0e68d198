// Package model defines the domain types shared across the sync pipeline.
package model

// Board is one inspection event read from the source system. The source
// system owns these rows; the pipeline only reads them. Timestamps are kept
// in the source's textual form ("2006/01/02 15:04:05") until transform time.
type Board struct {
	ID        int64
	ProductID int64
	MachineID int64
	SpindleID int
	DrillTime string
	AOITime   string
	Lot       string
}

// MachineInfo maps a drill machine ID to its display name.
type MachineInfo struct {
	ID   int64
	Name string
}

// MeasureInfo holds the capability statistics recorded for a board,
// measured before drilling with the aggregate tool selector.
type MeasureInfo struct {
	BoardID     int64
	ToolID      int
	Ca          float64
	Cp          float64
	Cpk         float64
	RatioTarget float64
}

// DimensionData bundles the three reference lookups for one board.
// Product name may be empty; Machine and Measure must both be present
// for the board to be processable.
type DimensionData struct {
	Machine     *MachineInfo
	Measure     *MeasureInfo
	ProductName string
}

// Complete reports whether the board has the dimension rows required to
// build a drill record. A missing product name is tolerated.
func (d DimensionData) Complete() bool {
	return d.Machine != nil && d.Measure != nil
}
