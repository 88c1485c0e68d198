package model

import (
	"fmt"
	"math"
	"time"
)

// DrillRecord is the enriched, destination-shaped record built from a Board
// and its dimension data. Classification fields are filled in after the
// classifier call; they stay empty when classification fails.
type DrillRecord struct {
	ProductName        string     `json:"product_name"`
	LotNumber          string     `json:"lot_number"`
	MachineID          int64      `json:"machine_id"`
	MachineName        string     `json:"machine_name"`
	SpindleID          int        `json:"spindle_id"`
	PPMControlLimit    int        `json:"ppm_control_limit"`
	PPM                float64    `json:"ppm"`
	JudgePPM           bool       `json:"judge_ppm"`
	DrillTime          time.Time  `json:"drill_time"`
	AOITime            time.Time  `json:"aoi_time"`
	Ca                 float64    `json:"ca"`
	Cp                 float64    `json:"cp"`
	Cpk                float64    `json:"cpk"`
	RatioTarget        float64    `json:"ratio_target"`
	ImagePath          string     `json:"image_path,omitempty"`
	ClassificationCode string     `json:"classification_code,omitempty"`
	ClassificationTime *time.Time `json:"classification_time,omitempty"`
}

// NaturalKey identifies a drill record for deduplication purposes.
// The destination enforces uniqueness on this tuple.
type NaturalKey struct {
	LotNumber string
	SpindleID int
	AOITime   time.Time
}

// Key returns the record's natural key.
func (r *DrillRecord) Key() NaturalKey {
	return NaturalKey{LotNumber: r.LotNumber, SpindleID: r.SpindleID, AOITime: r.AOITime}
}

func (k NaturalKey) String() string {
	return fmt.Sprintf("%s/sp%d/%s", k.LotNumber, k.SpindleID, k.AOITime.Format("2006-01-02 15:04:05"))
}

// PredictionRecord is one row per classification attempt, including failed
// attempts (null code/model/distance with Error set).
type PredictionRecord struct {
	ImagePath           string
	ProductName         string
	ClassificationCode  *string
	ClassificationModel *string
	Distance            *float64
	ClassificationTime  time.Time
	Error               string
}

// HighlightEvent is raised when a record breaches its PPM control limit.
// It exists only in memory between the evaluator and the dispatcher.
type HighlightEvent struct {
	MachineName     string
	SpindleID       int
	LotNumber       string
	PPM             float64
	PPMControlLimit int
}

// Recipient is one entry of the alert mailing list.
type Recipient struct {
	Email    string
	SendType string // "to", "cc" or "bcc"
}

// ComputePPM derives the parts-per-million defect proxy from the in-target
// ratio percentage. RatioTarget is in [0,100]; 100 yields 0 ppm.
func ComputePPM(ratioTarget float64) float64 {
	return (100 - ratioTarget) * 10000
}

// JudgePPM reports whether a ppm value passes against a control limit.
// An unset limit (-1) never passes, which the alert evaluator compensates
// for by ignoring records with limit <= 0.
func JudgePPM(ppm float64, limit int) bool {
	return int(math.Ceil(ppm)) <= limit
}
