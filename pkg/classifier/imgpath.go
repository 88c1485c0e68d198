package classifier

import (
	"fmt"
	"path"
	"regexp"
)

var timestampSeparators = regexp.MustCompile(`[-: T]`)

// ImagePath derives the drill-map image location for a board. The classifier
// resolves the path on its side; a missing file is the service's problem to
// report, so no existence check happens here.
//
// Layout: <folder>/<machine>/<compact drill time><machine>SP<spindle+1><lot>Target.jpg
// where the compact time is the "2006-01-02 15:04:05" form with separators
// stripped. Spindle indices are 0-based in the source system but 1-based in
// the image filenames.
func ImagePath(folder, lotNumber, machineName string, spindleID int, drillTime string) string {
	compact := timestampSeparators.ReplaceAllString(drillTime, "")
	fileName := fmt.Sprintf("%s%sSP%d%sTarget.jpg", compact, machineName, spindleID+1, lotNumber)
	return path.Join(folder, machineName, fileName)
}
