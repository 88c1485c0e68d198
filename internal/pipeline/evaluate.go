package pipeline

import "github.com/pcbflow/drillsync/internal/model"

// EvaluateHighlight flags a record that breached its control limit. The
// limit and ratio guards suppress false alerts on records whose limit was
// never set (-1) or whose measurement was a zero-valued placeholder.
func EvaluateHighlight(rec *model.DrillRecord) *model.HighlightEvent {
	if rec.JudgePPM || rec.PPMControlLimit <= 0 || rec.RatioTarget <= 0 {
		return nil
	}
	return &model.HighlightEvent{
		MachineName:     rec.MachineName,
		SpindleID:       rec.SpindleID,
		LotNumber:       rec.LotNumber,
		PPM:             rec.PPM,
		PPMControlLimit: rec.PPMControlLimit,
	}
}
