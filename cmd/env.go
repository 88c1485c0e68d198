package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// SQL Server driver for the shop-floor source database.
	_ "github.com/microsoft/go-mssqldb"
	"github.com/rotisserie/eris"

	"github.com/pcbflow/drillsync/internal/alert"
	"github.com/pcbflow/drillsync/internal/pipeline"
	"github.com/pcbflow/drillsync/internal/source"
	"github.com/pcbflow/drillsync/internal/store"
	"github.com/pcbflow/drillsync/pkg/classifier"
	"github.com/pcbflow/drillsync/pkg/specsvc"
)

// syncEnv holds the initialized source, destination and pipeline used by
// the sync/schedule/serve commands.
type syncEnv struct {
	sourceDB *sql.DB

	Bridge *source.Bridge
	Store  *store.PostgresStore
	RunLog *pipeline.RunLog
	Runner *pipeline.Runner
}

// Close drains the bridge and releases both database sides.
func (e *syncEnv) Close() {
	if e.Bridge != nil {
		e.Bridge.Close()
	}
	if e.sourceDB != nil {
		_ = e.sourceDB.Close()
	}
	if e.Store != nil {
		e.Store.Close()
	}
}

// storePool connects to the destination database and brings its schema up
// to date.
func storePool(ctx context.Context) (*store.PostgresStore, error) {
	if cfg.Store.DatabaseURL == "" {
		return nil, eris.New("cmd: store.database_url is not configured")
	}

	st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.MaxConns, cfg.Store.MinConns)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx, st.Pool()); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "cmd: migrate store")
	}

	return st, nil
}

// initSync builds the full pipeline environment. Callers should defer
// env.Close().
func initSync(ctx context.Context) (*syncEnv, error) {
	if cfg.Source.DSN == "" {
		return nil, eris.New("cmd: source.dsn is not configured")
	}

	st, err := storePool(ctx)
	if err != nil {
		return nil, err
	}

	sourceDB, err := sql.Open(cfg.Source.Driver, cfg.Source.DSN)
	if err != nil {
		st.Close()
		return nil, eris.Wrapf(err, "cmd: open source database (%s)", cfg.Source.Driver)
	}
	if err := sourceDB.PingContext(ctx); err != nil {
		_ = sourceDB.Close()
		st.Close()
		return nil, eris.Wrap(err, "cmd: ping source database")
	}

	bridge := source.NewBridge(sourceDB, cfg.Source.Workers)
	src := source.NewSQLStore(bridge, cfg.Source.Driver)

	clsOpts := []classifier.Option{
		classifier.WithTimeout(time.Duration(cfg.Classifier.TimeoutSecs) * time.Second),
	}
	if cfg.Classifier.RatePerSec > 0 {
		clsOpts = append(clsOpts, classifier.WithRateLimit(cfg.Classifier.RatePerSec))
	}
	cls := classifier.NewClient(cfg.Classifier.BaseURL, clsOpts...)

	spec := specsvc.NewClient(cfg.SpecSvc.URL,
		specsvc.WithTimeout(time.Duration(cfg.SpecSvc.TimeoutSecs)*time.Second),
	)

	dispatcher := alert.NewDispatcher(
		st,
		alert.NewSMTPTransport(cfg.Mail.Host, cfg.Mail.Port),
		alert.Composer{
			FromName:  cfg.Mail.SenderName,
			FromEmail: cfg.Mail.SenderEmail,
			ResultURL: fmt.Sprintf("http://%s:%d/Result/PeViewPage", cfg.Mail.ResultHost, cfg.Mail.ResultPort),
		},
	)

	runLog := pipeline.NewRunLog(st.Pool())
	runner := pipeline.NewRunner(
		src,
		st,
		pipeline.NewCursorResolver(src, st),
		pipeline.NewEnricher(src),
		pipeline.NewCriteriaResolver(st, spec),
		cls,
		dispatcher,
		runLog,
		pipeline.Options{
			BatchSize:        cfg.Sync.BatchSize,
			AdvanceOnFailure: cfg.Sync.AdvanceOnFailure,
			ImageFolder:      cfg.Classifier.ImageFolder,
		},
	)

	return &syncEnv{sourceDB: sourceDB, Bridge: bridge, Store: st, RunLog: runLog, Runner: runner}, nil
}
