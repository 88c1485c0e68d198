package source

import (
	"context"
	"database/sql"
	"sync"

	"github.com/rotisserie/eris"
)

// DefaultWorkers is the bridge width used when none is configured.
const DefaultWorkers = 5

// Bridge runs blocking source-database calls on a fixed-size worker pool.
// Each submitted call checks out its own connection for the duration of the
// call, so concurrent calls never share a session. Errors propagate to the
// submitting caller only; one failed call cannot corrupt another.
type Bridge struct {
	db  *sql.DB
	sem chan struct{}

	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
}

// NewBridge creates a bridge over db with the given pool width.
func NewBridge(db *sql.DB, workers int) *Bridge {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Bridge{
		db:  db,
		sem: make(chan struct{}, workers),
	}
}

// Do runs fn on the worker pool with a dedicated connection, blocking until
// a worker slot is free or ctx is cancelled.
func (b *Bridge) Do(ctx context.Context, fn func(ctx context.Context, conn *sql.Conn) error) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return eris.New("source: bridge closed")
	}
	b.wg.Add(1)
	b.mu.Unlock()
	defer b.wg.Done()

	select {
	case b.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-b.sem }()

	conn, err := b.db.Conn(ctx)
	if err != nil {
		return eris.Wrap(err, "source: acquire connection")
	}
	defer func() { _ = conn.Close() }()

	return fn(ctx, conn)
}

// Close drains in-flight work and rejects further submissions. The
// underlying *sql.DB is left open; it belongs to the caller.
func (b *Bridge) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.wg.Wait()
}

// call runs a result-returning fn through the bridge.
func call[T any](ctx context.Context, b *Bridge, fn func(ctx context.Context, conn *sql.Conn) (T, error)) (T, error) {
	var out T
	err := b.Do(ctx, func(ctx context.Context, conn *sql.Conn) error {
		var fnErr error
		out, fnErr = fn(ctx, conn)
		return fnErr
	})
	return out, err
}
