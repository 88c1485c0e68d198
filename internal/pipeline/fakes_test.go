package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pcbflow/drillsync/internal/model"
	"github.com/pcbflow/drillsync/internal/store"
	"github.com/pcbflow/drillsync/pkg/classifier"
)

func init() {
	// Replace global logger with a no-op to avoid noisy test output.
	zap.ReplaceGlobals(zap.NewNop())
}

// fakeSource implements source.Store with overridable functions. Unset
// functions report an empty source.
type fakeSource struct {
	latestFn  func(ctx context.Context) (*model.Board, error)
	earliest  func(ctx context.Context) (*model.Board, error)
	sinceFn   func(ctx context.Context, since string, limit int) ([]model.Board, error)
	machineFn func(ctx context.Context, id int64) (*model.MachineInfo, error)
	measureFn func(ctx context.Context, boardID int64) (*model.MeasureInfo, error)
	productFn func(ctx context.Context, id int64) (string, error)
}

func (f *fakeSource) LatestBoard(ctx context.Context) (*model.Board, error) {
	if f.latestFn == nil {
		return nil, nil
	}
	return f.latestFn(ctx)
}

func (f *fakeSource) EarliestBoard(ctx context.Context) (*model.Board, error) {
	if f.earliest == nil {
		return nil, nil
	}
	return f.earliest(ctx)
}

func (f *fakeSource) BoardsSince(ctx context.Context, since string, limit int) ([]model.Board, error) {
	if f.sinceFn == nil {
		return nil, nil
	}
	return f.sinceFn(ctx, since, limit)
}

func (f *fakeSource) MachineByID(ctx context.Context, id int64) (*model.MachineInfo, error) {
	if f.machineFn == nil {
		return &model.MachineInfo{ID: id, Name: "DM01"}, nil
	}
	return f.machineFn(ctx, id)
}

func (f *fakeSource) MeasureByBoard(ctx context.Context, boardID int64) (*model.MeasureInfo, error) {
	if f.measureFn == nil {
		return &model.MeasureInfo{BoardID: boardID, RatioTarget: 99, Ca: 0.1, Cp: 1.2, Cpk: 1.1}, nil
	}
	return f.measureFn(ctx, boardID)
}

func (f *fakeSource) ProductNameByID(ctx context.Context, id int64) (string, error) {
	if f.productFn == nil {
		return "PCB-100", nil
	}
	return f.productFn(ctx, id)
}

// fakeStore implements store.Store in memory with optional error hooks.
type fakeStore struct {
	latestAOI *time.Time
	existing  map[model.NaturalKey]bool
	criteria  map[string]model.CriteriaInfo
	bands     []model.ARBand

	insertedRecords     []model.DrillRecord
	insertedPredictions []model.PredictionRecord

	insertRecordsErr     error
	insertPredictionsErr error
	createdCriteria      []model.CriteriaInfo
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		existing: map[model.NaturalKey]bool{},
		criteria: map[string]model.CriteriaInfo{},
	}
}

func (f *fakeStore) LatestAOITime(ctx context.Context) (*time.Time, error) {
	return f.latestAOI, nil
}

func (f *fakeStore) ExistsDrillRecord(ctx context.Context, key model.NaturalKey) (bool, error) {
	return f.existing[key], nil
}

func (f *fakeStore) InsertDrillRecords(ctx context.Context, records []model.DrillRecord) (int64, error) {
	if f.insertRecordsErr != nil {
		return 0, f.insertRecordsErr
	}
	f.insertedRecords = append(f.insertedRecords, records...)
	return int64(len(records)), nil
}

func (f *fakeStore) InsertPredictions(ctx context.Context, predictions []model.PredictionRecord) (int64, error) {
	if f.insertPredictionsErr != nil {
		return 0, f.insertPredictionsErr
	}
	f.insertedPredictions = append(f.insertedPredictions, predictions...)
	return int64(len(predictions)), nil
}

func (f *fakeStore) GetCriteria(ctx context.Context, productName string) (*model.CriteriaInfo, error) {
	if c, ok := f.criteria[productName]; ok {
		return &c, nil
	}
	return nil, nil
}

func (f *fakeStore) CreateCriteria(ctx context.Context, info model.CriteriaInfo) (*model.CriteriaInfo, error) {
	f.criteria[info.ProductName] = info
	f.createdCriteria = append(f.createdCriteria, info)
	return &info, nil
}

func (f *fakeStore) ListCriteria(ctx context.Context) ([]model.CriteriaInfo, error) {
	var out []model.CriteriaInfo
	for _, c := range f.criteria {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeStore) ReplaceCriteria(ctx context.Context, infos []model.CriteriaInfo) (int64, error) {
	f.criteria = map[string]model.CriteriaInfo{}
	for _, c := range infos {
		f.criteria[c.ProductName] = c
	}
	return int64(len(infos)), nil
}

func (f *fakeStore) ListARBands(ctx context.Context) ([]model.ARBand, error) {
	return f.bands, nil
}

func (f *fakeStore) ReplaceARBands(ctx context.Context, bands []model.ARBand) (int64, error) {
	f.bands = bands
	return int64(len(bands)), nil
}

func (f *fakeStore) ListRecipients(ctx context.Context) ([]model.Recipient, error) {
	return nil, nil
}

func (f *fakeStore) ListDrillRecords(ctx context.Context, filter store.RecordFilter) ([]model.DrillRecord, error) {
	return f.insertedRecords, nil
}

// fakeSpec implements specsvc.Client.
type fakeSpec struct {
	value float64
	err   error
	calls int
}

func (f *fakeSpec) LookupARValue(ctx context.Context, lotNumber string) (float64, error) {
	f.calls++
	return f.value, f.err
}

// fakeClassifier implements classifier.Client.
type fakeClassifier struct {
	result classifier.Result
	calls  int
}

func (f *fakeClassifier) Classify(ctx context.Context, imgSrc, productName string) classifier.Result {
	f.calls++
	return f.result
}

// fakeDispatcher records dispatched highlight events.
type fakeDispatcher struct {
	events []model.HighlightEvent
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, events []model.HighlightEvent) {
	f.events = append(f.events, events...)
}
