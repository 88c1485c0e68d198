package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/pcbflow/drillsync/internal/db"
)

// SyncRun is one row of drill_data.sync_runs.
type SyncRun struct {
	ID            uuid.UUID  `json:"id"`
	Status        string     `json:"status"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	RecordsSynced int64      `json:"records_synced"`
	CursorStart   string     `json:"cursor_start,omitempty"`
	CursorEnd     string     `json:"cursor_end,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// RunLog records pipeline runs in drill_data.sync_runs.
type RunLog struct {
	pool db.Pool
}

// NewRunLog creates a RunLog backed by the given connection pool.
func NewRunLog(pool db.Pool) *RunLog {
	return &RunLog{pool: pool}
}

// Start records the beginning of a run with its resolved cursor bounds.
func (l *RunLog) Start(ctx context.Context, cursor Cursor) (uuid.UUID, error) {
	id := uuid.New()
	_, err := l.pool.Exec(ctx,
		`INSERT INTO drill_data.sync_runs (id, status, started_at, cursor_start, cursor_end)
		 VALUES ($1, 'running', now(), $2, $3)`,
		id, cursor.Start, cursor.End,
	)
	if err != nil {
		return uuid.Nil, eris.Wrap(err, "runlog: start run")
	}
	return id, nil
}

// Complete marks a run as successfully finished.
func (l *RunLog) Complete(ctx context.Context, runID uuid.UUID, recordsSynced int64) error {
	_, err := l.pool.Exec(ctx,
		`UPDATE drill_data.sync_runs
		 SET status = 'complete', completed_at = now(), records_synced = $1
		 WHERE id = $2`,
		recordsSynced, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: complete run %s", runID)
	}
	return nil
}

// Fail marks a run as failed with an error message.
func (l *RunLog) Fail(ctx context.Context, runID uuid.UUID, errMsg string) error {
	_, err := l.pool.Exec(ctx,
		`UPDATE drill_data.sync_runs
		 SET status = 'failed', completed_at = now(), error = $1
		 WHERE id = $2`,
		errMsg, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: fail run %s", runID)
	}
	return nil
}

// Recent returns the most recent runs, newest first.
func (l *RunLog) Recent(ctx context.Context, limit int) ([]SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.pool.Query(ctx,
		`SELECT id, status, started_at, completed_at, records_synced,
			COALESCE(cursor_start, ''), COALESCE(cursor_end, ''), COALESCE(error, '')
		 FROM drill_data.sync_runs ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: list runs")
	}
	defer rows.Close()

	var runs []SyncRun
	for rows.Next() {
		var r SyncRun
		if err := rows.Scan(&r.ID, &r.Status, &r.StartedAt, &r.CompletedAt,
			&r.RecordsSynced, &r.CursorStart, &r.CursorEnd, &r.Error); err != nil {
			return nil, eris.Wrap(err, "runlog: scan run")
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
