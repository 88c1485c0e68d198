// Package pipeline implements the incremental synchronization pipeline that
// walks the source system's time axis, enriches each inspection record,
// classifies it and persists the result.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/pcbflow/drillsync/internal/source"
	"github.com/pcbflow/drillsync/internal/store"
)

// cursorFormat is the textual AOI timestamp layout used by the source
// system. It sorts lexicographically, so cursor comparison is plain string
// comparison.
const cursorFormat = "2006/01/02 15:04:05"

// Cursor bounds one run: process records with AOI time in (Start, End].
type Cursor struct {
	Start string
	End   string
}

// CaughtUp reports whether there is nothing left to process.
func (c Cursor) CaughtUp() bool { return c.Start >= c.End }

// CursorResolver derives the run window from the two stores. The cursor is
// never persisted by the pipeline itself; it is recomputed from the
// destination at the start of every run.
type CursorResolver struct {
	source source.Store
	store  store.Store
}

// NewCursorResolver creates a resolver over the source and destination stores.
func NewCursorResolver(src source.Store, st store.Store) *CursorResolver {
	return &CursorResolver{source: src, store: st}
}

// Resolve computes the run window. End is the AOI time of the newest source
// record. Start is the AOI time of the newest persisted record, or the
// oldest source record's AOI time when the destination is empty. Returns
// source.ErrNoSourceData when the source has no records at all.
func (r *CursorResolver) Resolve(ctx context.Context) (Cursor, error) {
	latest, err := r.source.LatestBoard(ctx)
	if err != nil {
		return Cursor{}, eris.Wrap(err, "cursor: latest source record")
	}
	if latest == nil {
		return Cursor{}, source.ErrNoSourceData
	}

	lastPersisted, err := r.store.LatestAOITime(ctx)
	if err != nil {
		return Cursor{}, eris.Wrap(err, "cursor: latest persisted record")
	}

	var start string
	if lastPersisted != nil {
		start = lastPersisted.Format(cursorFormat)
	} else {
		earliest, err := r.source.EarliestBoard(ctx)
		if err != nil {
			return Cursor{}, eris.Wrap(err, "cursor: earliest source record")
		}
		if earliest == nil {
			return Cursor{}, source.ErrNoSourceData
		}
		start = earliest.AOITime
	}

	return Cursor{Start: start, End: latest.AOITime}, nil
}

// FormatCursor renders a destination timestamp in cursor form.
func FormatCursor(t time.Time) string { return t.Format(cursorFormat) }
