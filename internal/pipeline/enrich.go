package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/pcbflow/drillsync/internal/model"
	"github.com/pcbflow/drillsync/internal/source"
)

// Enricher fetches the three dimension lookups for a board concurrently.
// The source store runs every lookup through the bounded bridge, so the
// fan-out here is still capped by the bridge width.
type Enricher struct {
	source source.Store
}

// NewEnricher creates an enricher over the source store.
func NewEnricher(src source.Store) *Enricher {
	return &Enricher{source: src}
}

// Enrich joins the machine, measurement and product lookups for a board.
// All three must complete (join, not race); the first lookup error fails
// the whole enrichment. A board with missing machine or measurement data
// comes back with Complete() == false and is the caller's to drop.
func (e *Enricher) Enrich(ctx context.Context, board model.Board) (model.DimensionData, error) {
	var dim model.DimensionData

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		machine, err := e.source.MachineByID(gCtx, board.MachineID)
		if err != nil {
			return err
		}
		dim.Machine = machine
		return nil
	})
	g.Go(func() error {
		measure, err := e.source.MeasureByBoard(gCtx, board.ID)
		if err != nil {
			return err
		}
		dim.Measure = measure
		return nil
	})
	g.Go(func() error {
		name, err := e.source.ProductNameByID(gCtx, board.ProductID)
		if err != nil {
			return err
		}
		dim.ProductName = name
		return nil
	})

	if err := g.Wait(); err != nil {
		return model.DimensionData{}, eris.Wrapf(err, "enrich: board %d", board.ID)
	}
	return dim, nil
}
