// Package store persists normalized drill records, classification results
// and reference limits in Postgres.
package store

import (
	"context"
	"time"

	"github.com/pcbflow/drillsync/internal/model"
)

// RecordFilter narrows ListDrillRecords.
type RecordFilter struct {
	Lot         string
	MachineName string
	Limit       int
}

// Store is the destination-side persistence interface for the pipeline and
// the status API.
type Store interface {
	// Cursor support.
	LatestAOITime(ctx context.Context) (*time.Time, error)

	// Duplicate gate.
	ExistsDrillRecord(ctx context.Context, key model.NaturalKey) (bool, error)

	// Batch sink.
	InsertDrillRecords(ctx context.Context, records []model.DrillRecord) (int64, error)
	InsertPredictions(ctx context.Context, predictions []model.PredictionRecord) (int64, error)

	// Criteria.
	GetCriteria(ctx context.Context, productName string) (*model.CriteriaInfo, error)
	CreateCriteria(ctx context.Context, info model.CriteriaInfo) (*model.CriteriaInfo, error)
	ListCriteria(ctx context.Context) ([]model.CriteriaInfo, error)
	ReplaceCriteria(ctx context.Context, infos []model.CriteriaInfo) (int64, error)

	// AR band table.
	ListARBands(ctx context.Context) ([]model.ARBand, error)
	ReplaceARBands(ctx context.Context, bands []model.ARBand) (int64, error)

	// Alert recipients.
	ListRecipients(ctx context.Context) ([]model.Recipient, error)

	// Status API reads.
	ListDrillRecords(ctx context.Context, filter RecordFilter) ([]model.DrillRecord, error)
}
