package criteria

import (
	"context"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/pcbflow/drillsync/internal/model"
	"github.com/pcbflow/drillsync/internal/store"
)

// bandsFile is the on-disk shape of the AR band definition file.
type bandsFile struct {
	Bands []model.ARBand `yaml:"bands"`
}

// ParseBands reads an AR band definition file. Bands must be listed in
// evaluation order (tightest upper limit first) and each needs a level and a
// positive upper limit.
func ParseBands(path string) ([]model.ARBand, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "criteria: read bands file %s", path)
	}

	var f bandsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, eris.Wrapf(err, "criteria: parse bands file %s", path)
	}

	for idx, band := range f.Bands {
		if band.Level == "" {
			return nil, eris.Errorf("criteria: band %d: missing level", idx+1)
		}
		if band.UpperLimit <= 0 {
			return nil, eris.Errorf("criteria: band %d (%s): upper limit must be positive", idx+1, band.Level)
		}
	}
	return f.Bands, nil
}

// ImportBands replaces the AR band table with the definitions at path.
func ImportBands(ctx context.Context, st store.Store, path string) (int64, error) {
	log := zap.L().With(zap.String("component", "criteria.bands"))

	bands, err := ParseBands(path)
	if err != nil {
		return 0, err
	}
	if len(bands) == 0 {
		return 0, eris.Errorf("criteria: no bands in %s", path)
	}

	now := time.Now().UTC()
	for i := range bands {
		bands[i].UpdateTime = now
	}

	n, err := st.ReplaceARBands(ctx, bands)
	if err != nil {
		return 0, eris.Wrap(err, "criteria: replace band table")
	}

	log.Info("replaced AR band table",
		zap.Int64("bands", n),
		zap.String("file", path))
	return n, nil
}
