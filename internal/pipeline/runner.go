package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pcbflow/drillsync/internal/model"
	"github.com/pcbflow/drillsync/internal/source"
	"github.com/pcbflow/drillsync/internal/store"
	"github.com/pcbflow/drillsync/pkg/classifier"
)

// State names the run controller's position in its loop, for logs and the
// status API.
type State string

const (
	StateIdle            State = "idle"
	StateResolvingCursor State = "resolving_cursor"
	StateExtracting      State = "extracting"
	StateProcessing      State = "processing"
	StatePersisting      State = "persisting"
	StateAlerting        State = "alerting"
	StateAdvancing       State = "advancing"
)

// ErrRunInProgress is returned when a run is requested while another run
// still holds the run-lock. Scheduled invocations treat it as "skip".
var ErrRunInProgress = eris.New("pipeline: run already in progress")

// Dispatcher hands flagged records to the alerting collaborator. All
// delivery failures are absorbed and logged by the implementation.
type Dispatcher interface {
	Dispatch(ctx context.Context, events []model.HighlightEvent)
}

// Options tunes the run controller.
type Options struct {
	BatchSize int
	// AdvanceOnFailure advances the cursor past a batch even when its
	// persistence failed, trading a small data-loss risk for forward
	// progress. When off, the next run retries the failed batch.
	AdvanceOnFailure bool
	// ImageFolder is the root of the per-machine drill-map image tree.
	ImageFolder string
}

// Runner drives the extract → enrich → classify → persist loop batch by
// batch and advances the cursor. One Runner serves one job; the internal
// run-lock makes overlapping invocations skip instead of stacking.
type Runner struct {
	source     source.Store
	store      store.Store
	cursor     *CursorResolver
	enricher   *Enricher
	criteria   *CriteriaResolver
	classifier classifier.Client
	dispatcher Dispatcher
	runLog     *RunLog
	opts       Options

	runMu sync.Mutex

	stateMu sync.Mutex
	state   State
}

// NewRunner wires the pipeline components together.
func NewRunner(
	src source.Store,
	st store.Store,
	cursor *CursorResolver,
	enricher *Enricher,
	criteria *CriteriaResolver,
	cls classifier.Client,
	dispatcher Dispatcher,
	runLog *RunLog,
	opts Options,
) *Runner {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	return &Runner{
		source:     src,
		store:      st,
		cursor:     cursor,
		enricher:   enricher,
		criteria:   criteria,
		classifier: cls,
		dispatcher: dispatcher,
		runLog:     runLog,
		opts:       opts,
		state:      StateIdle,
	}
}

// State returns the controller's current position.
func (r *Runner) State() State {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	return r.state
}

func (r *Runner) setState(s State) {
	r.stateMu.Lock()
	r.state = s
	r.stateMu.Unlock()
}

// Run executes one full sync run. It returns ErrRunInProgress when another
// run holds the lock, nil on a clean run (including "nothing to do"), and
// the escaping error when the run aborts.
func (r *Runner) Run(ctx context.Context) error {
	if !r.runMu.TryLock() {
		return ErrRunInProgress
	}
	defer r.runMu.Unlock()
	defer r.setState(StateIdle)

	log := zap.L().With(zap.String("component", "pipeline.runner"))
	runStart := time.Now()

	r.setState(StateResolvingCursor)
	cursor, err := r.cursor.Resolve(ctx)
	if err != nil {
		if eris.Is(err, source.ErrNoSourceData) {
			log.Info("source has no records, nothing to do")
			return nil
		}
		return eris.Wrap(err, "runner: resolve cursor")
	}

	if cursor.CaughtUp() {
		log.Info("already caught up", zap.String("cursor", cursor.Start))
		return nil
	}

	log.Info("starting run", zap.String("start", cursor.Start), zap.String("end", cursor.End))

	runID, err := r.runLog.Start(ctx, cursor)
	if err != nil {
		return eris.Wrap(err, "runner: record run start")
	}

	synced, runErr := r.loop(ctx, log, cursor)

	if runErr != nil {
		log.Error("run aborted", zap.Error(runErr), zap.Int64("records", synced))
		if logErr := r.runLog.Fail(ctx, runID, runErr.Error()); logErr != nil {
			log.Error("failed to record run failure", zap.Error(logErr))
		}
		return runErr
	}

	if err := r.runLog.Complete(ctx, runID, synced); err != nil {
		log.Error("failed to record run completion", zap.Error(err))
	}

	log.Info("run complete",
		zap.Int64("records", synced),
		zap.Duration("elapsed", time.Since(runStart)),
	)
	return nil
}

// loop processes batches until the extractor runs dry or the cursor reaches
// the end of the window.
func (r *Runner) loop(ctx context.Context, log *zap.Logger, cursor Cursor) (int64, error) {
	var synced int64

	for !cursor.CaughtUp() {
		select {
		case <-ctx.Done():
			return synced, ctx.Err()
		default:
		}

		r.setState(StateExtracting)
		boards, err := r.source.BoardsSince(ctx, cursor.Start, r.opts.BatchSize)
		if err != nil {
			return synced, eris.Wrap(err, "runner: extract batch")
		}
		if len(boards) == 0 {
			log.Info("no more records", zap.String("cursor", cursor.Start))
			break
		}

		r.setState(StateProcessing)
		records, predictions, highlights := r.processBatch(ctx, log, boards)

		r.setState(StatePersisting)
		persistOK := r.flush(ctx, log, records, predictions)

		r.setState(StateAlerting)
		if len(highlights) > 0 {
			r.dispatcher.Dispatch(ctx, highlights)
		}

		r.setState(StateAdvancing)
		if !persistOK && !r.opts.AdvanceOnFailure {
			return synced, eris.New("runner: batch persistence failed, cursor held")
		}
		cursor.Start = boards[len(boards)-1].AOITime
		synced += int64(len(records))
		log.Info("batch done",
			zap.Int("boards", len(boards)),
			zap.Int("persisted", len(records)),
			zap.Int("highlights", len(highlights)),
			zap.String("cursor", cursor.Start),
		)
	}

	return synced, nil
}

// processBatch runs each board through enrich → criteria → transform →
// duplicate gate → classify → evaluate. Records are processed sequentially
// so the classifier sees at most one in-flight request per run. Per-board
// failures are logged and skipped; they never abort the batch.
func (r *Runner) processBatch(ctx context.Context, log *zap.Logger, boards []model.Board) (
	[]model.DrillRecord, []model.PredictionRecord, []model.HighlightEvent,
) {
	var (
		records     []model.DrillRecord
		predictions []model.PredictionRecord
		highlights  []model.HighlightEvent
	)

	// Keys already accepted in this batch. The destination enforces the
	// natural key with a UNIQUE constraint, so a repeat inside one COPY
	// would fail the whole insert.
	seen := make(map[model.NaturalKey]struct{}, len(boards))

	for _, board := range boards {
		rec, pred, highlight, err := r.processBoard(ctx, board, seen)
		if err != nil {
			log.Error("board failed", zap.Int64("board_id", board.ID), zap.Error(err))
			continue
		}
		if rec == nil {
			continue
		}
		records = append(records, *rec)
		if pred != nil {
			predictions = append(predictions, *pred)
		}
		if highlight != nil {
			highlights = append(highlights, *highlight)
		}
	}

	return records, predictions, highlights
}

// processBoard handles one board. A nil record with nil error means the
// board was skipped deliberately (incomplete dimensions or already
// persisted).
func (r *Runner) processBoard(ctx context.Context, board model.Board, seen map[model.NaturalKey]struct{}) (
	*model.DrillRecord, *model.PredictionRecord, *model.HighlightEvent, error,
) {
	log := zap.L().With(
		zap.String("component", "pipeline.runner"),
		zap.Int64("board_id", board.ID),
	)

	dim, err := r.enricher.Enrich(ctx, board)
	if err != nil {
		return nil, nil, nil, err
	}
	if !dim.Complete() {
		log.Warn("incomplete dimension data, dropping board",
			zap.Bool("machine", dim.Machine != nil),
			zap.Bool("measure", dim.Measure != nil),
		)
		return nil, nil, nil, nil
	}

	criteria, err := r.criteria.Resolve(ctx, dim.ProductName, board.Lot)
	if err != nil {
		return nil, nil, nil, err
	}

	rec, err := Transform(board, dim, *criteria)
	if err != nil {
		return nil, nil, nil, err
	}

	// The duplicate gate runs before classification so re-runs never waste
	// calls against the rate-limited classifier. Repeats within the batch
	// are dropped too; letting one through would fail the bulk insert.
	key := rec.Key()
	if _, dup := seen[key]; dup {
		log.Debug("duplicate key within batch, skipping", zap.String("key", key.String()))
		return nil, nil, nil, nil
	}
	exists, err := r.store.ExistsDrillRecord(ctx, key)
	if err != nil {
		return nil, nil, nil, err
	}
	if exists {
		log.Debug("already persisted, skipping", zap.String("key", key.String()))
		return nil, nil, nil, nil
	}
	seen[key] = struct{}{}

	pred := r.classify(ctx, log, rec)
	highlight := EvaluateHighlight(rec)

	return rec, pred, highlight, nil
}

// classify calls the AI service for a record and fills in its
// classification fields. Failures are soft: the record survives with empty
// classification fields and the attempt is recorded with an error marker.
func (r *Runner) classify(ctx context.Context, log *zap.Logger, rec *model.DrillRecord) *model.PredictionRecord {
	imgPath := classifier.ImagePath(
		r.opts.ImageFolder,
		rec.LotNumber,
		rec.MachineName,
		rec.SpindleID,
		rec.DrillTime.Format("2006-01-02 15:04:05"),
	)

	started := time.Now()
	result := r.classifier.Classify(ctx, imgPath, rec.ProductName)
	classifiedAt := time.Now()

	if result.Failed() {
		log.Warn("classification failed",
			zap.String("image", imgPath),
			zap.String("error", result.Error),
		)
	} else {
		log.Debug("classified",
			zap.String("image", imgPath),
			zap.Duration("elapsed", classifiedAt.Sub(started)),
		)
	}

	rec.ImagePath = imgPath
	rec.ClassificationTime = &classifiedAt
	if result.Code != nil {
		rec.ClassificationCode = *result.Code
	}

	return &model.PredictionRecord{
		ImagePath:           imgPath,
		ProductName:         rec.ProductName,
		ClassificationCode:  result.Code,
		ClassificationModel: result.Model,
		Distance:            result.Distance,
		ClassificationTime:  classifiedAt,
		Error:               result.Error,
	}
}

// flush persists the batch's records and predictions as two independent
// bulk writes. Either failure is logged and absorbed; the run continues to
// the next batch regardless.
func (r *Runner) flush(ctx context.Context, log *zap.Logger, records []model.DrillRecord, predictions []model.PredictionRecord) bool {
	ok := true

	if len(records) > 0 {
		if n, err := r.store.InsertDrillRecords(ctx, records); err != nil {
			log.Error("persist drill records failed", zap.Int("count", len(records)), zap.Error(err))
			ok = false
		} else {
			log.Info("persisted drill records", zap.Int64("count", n))
		}
	}

	if len(predictions) > 0 {
		if n, err := r.store.InsertPredictions(ctx, predictions); err != nil {
			log.Error("persist predictions failed", zap.Int("count", len(predictions)), zap.Error(err))
			ok = false
		} else {
			log.Info("persisted predictions", zap.Int64("count", n))
		}
	}

	return ok
}
