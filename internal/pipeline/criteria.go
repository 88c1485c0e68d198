package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pcbflow/drillsync/internal/model"
	"github.com/pcbflow/drillsync/internal/store"
	"github.com/pcbflow/drillsync/pkg/specsvc"
)

// CriteriaResolver resolves (or lazily creates) a product's classification
// limits. On a miss it looks up the lot's AR value externally, maps it
// against the band table and persists the outcome, so later records for the
// same product skip the external call.
type CriteriaResolver struct {
	store store.Store
	spec  specsvc.Client
	now   func() time.Time
}

// NewCriteriaResolver creates a resolver over the destination store and the
// spec-value client.
func NewCriteriaResolver(st store.Store, spec specsvc.Client) *CriteriaResolver {
	return &CriteriaResolver{store: st, spec: spec, now: time.Now}
}

// Resolve returns the criteria for a product, creating them on first
// encounter. The AR lookup fails soft to 0: criteria derived from a failed
// lookup are returned with the 'N'/-1 defaults but not persisted, so a later
// run can retry the lookup. Two racing runs may both create criteria for
// the same product; the store's upsert makes the last write win.
func (r *CriteriaResolver) Resolve(ctx context.Context, productName, lotNumber string) (*model.CriteriaInfo, error) {
	existing, err := r.store.GetCriteria(ctx, productName)
	if err != nil {
		return nil, eris.Wrapf(err, "criteria: lookup %s", productName)
	}
	if existing != nil {
		return existing, nil
	}

	log := zap.L().With(zap.String("component", "pipeline.criteria"), zap.String("product", productName))

	arValue, err := r.spec.LookupARValue(ctx, lotNumber)
	if err != nil {
		log.Warn("ar lookup failed, using defaults", zap.String("lot", lotNumber), zap.Error(err))
		arValue = 0
	}

	bands, err := r.store.ListARBands(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "criteria: list ar bands")
	}

	derived := model.DeriveCriteria(productName, arValue, bands, r.now())
	if arValue <= 0 {
		// Nothing worth persisting; keep the product unseen so the next run
		// retries the AR lookup.
		return &derived, nil
	}

	created, err := r.store.CreateCriteria(ctx, derived)
	if err != nil {
		return nil, eris.Wrapf(err, "criteria: create %s", productName)
	}

	log.Info("criteria materialized",
		zap.Float64("ar", created.AR),
		zap.String("ar_level", created.ARLevel),
		zap.Int("ppm_limit", created.PPMLimit),
	)
	return created, nil
}
