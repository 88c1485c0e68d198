// Package source reads inspection data from the plant's source database.
//
// The source system is a conventional row-oriented production database whose
// driver blocks for the duration of each call. All access goes through a
// fixed-width Bridge so a handful of lookups can run concurrently without
// the pipeline ever talking to the database directly.
package source

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/pcbflow/drillsync/internal/model"
)

// ErrNoSourceData is returned by cursor resolution when the source system
// has no inspection records at all.
var ErrNoSourceData = eris.New("source: no inspection records available")

// Store provides the read-only lookups the pipeline needs from the source
// system. Missing rows are reported as (nil, nil), not as errors.
type Store interface {
	// LatestBoard returns the board with the most recent AOI time.
	LatestBoard(ctx context.Context) (*model.Board, error)
	// EarliestBoard returns the board with the oldest AOI time.
	EarliestBoard(ctx context.Context) (*model.Board, error)
	// BoardsSince returns up to limit boards with AOI time strictly after
	// since, ordered ascending. Boards without a lot or AOI time are skipped.
	BoardsSince(ctx context.Context, since string, limit int) ([]model.Board, error)

	// Dimension lookups.
	MachineByID(ctx context.Context, machineID int64) (*model.MachineInfo, error)
	MeasureByBoard(ctx context.Context, boardID int64) (*model.MeasureInfo, error)
	ProductNameByID(ctx context.Context, productID int64) (string, error)
}
