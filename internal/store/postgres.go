package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/pcbflow/drillsync/internal/db"
	"github.com/pcbflow/drillsync/internal/model"
)

// PostgresStore implements Store using a pgx connection pool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres opens a connection pool against the destination database.
func NewPostgres(ctx context.Context, connString string, maxConns, minConns int32) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	if maxConns <= 0 {
		maxConns = 10
	}
	if minConns <= 0 {
		minConns = 2
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}

	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool; used by tests with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool exposes the underlying pool for migrations and the run log.
func (s *PostgresStore) Pool() db.Pool { return s.pool }

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	if s.closeFn != nil {
		s.closeFn()
	}
}

// LatestAOITime returns the AOI time of the most recently inspected record
// already persisted, or nil when the destination is empty.
func (s *PostgresStore) LatestAOITime(ctx context.Context) (*time.Time, error) {
	var t time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT aoi_time FROM drill_data.drill_records ORDER BY aoi_time DESC LIMIT 1`,
	).Scan(&t)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "store: latest aoi time")
	}
	return &t, nil
}

// ExistsDrillRecord reports whether a record with the natural key has
// already been persisted.
func (s *PostgresStore) ExistsDrillRecord(ctx context.Context, key model.NaturalKey) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM drill_data.drill_records
			WHERE lot_number = $1 AND drill_spindle_id = $2 AND aoi_time = $3
		)`,
		key.LotNumber, key.SpindleID, key.AOITime,
	).Scan(&exists)
	if err != nil {
		return false, eris.Wrapf(err, "store: exists check %s", key)
	}
	return exists, nil
}

var drillColumns = []string{
	"product_name", "lot_number", "drill_machine_id", "drill_machine_name",
	"drill_spindle_id", "ppm_control_limit", "ppm", "judge_ppm",
	"drill_time", "aoi_time", "ca", "cp", "cpk", "ratio_target",
	"image_path", "classification_result", "classification_time",
}

// InsertDrillRecords bulk-inserts normalized records via COPY.
func (s *PostgresStore) InsertDrillRecords(ctx context.Context, records []model.DrillRecord) (int64, error) {
	rows := make([][]any, 0, len(records))
	for _, r := range records {
		var code any
		if r.ClassificationCode != "" {
			code = r.ClassificationCode
		}
		rows = append(rows, []any{
			r.ProductName, r.LotNumber, r.MachineID, r.MachineName,
			r.SpindleID, r.PPMControlLimit, r.PPM, r.JudgePPM,
			r.DrillTime, r.AOITime, r.Ca, r.Cp, r.Cpk, r.RatioTarget,
			r.ImagePath, code, r.ClassificationTime,
		})
	}
	n, err := db.CopyInto(ctx, s.pool, "drill_data", "drill_records", drillColumns, rows)
	if err != nil {
		return 0, eris.Wrap(err, "store: insert drill records")
	}
	return n, nil
}

var predictionColumns = []string{
	"image_path", "product_name", "classification_code",
	"classification_model", "mahalanobis_distance", "classification_time", "error",
}

// InsertPredictions bulk-inserts classification attempts via COPY. Failed
// attempts carry null code/model/distance and a non-empty error.
func (s *PostgresStore) InsertPredictions(ctx context.Context, predictions []model.PredictionRecord) (int64, error) {
	rows := make([][]any, 0, len(predictions))
	for _, p := range predictions {
		var errMsg any
		if p.Error != "" {
			errMsg = p.Error
		}
		rows = append(rows, []any{
			p.ImagePath, p.ProductName, p.ClassificationCode,
			p.ClassificationModel, p.Distance, p.ClassificationTime, errMsg,
		})
	}
	n, err := db.CopyInto(ctx, s.pool, "drill_data", "prediction_records", predictionColumns, rows)
	if err != nil {
		return 0, eris.Wrap(err, "store: insert predictions")
	}
	return n, nil
}

// GetCriteria returns the criteria for a product, or nil when the product
// has never been seen.
func (s *PostgresStore) GetCriteria(ctx context.Context, productName string) (*model.CriteriaInfo, error) {
	var c model.CriteriaInfo
	err := s.pool.QueryRow(ctx,
		`SELECT product_name, ar, ar_level, ppm_limit, modification, update_time
		 FROM drill_data.ppm_criteria WHERE product_name = $1`,
		productName,
	).Scan(&c.ProductName, &c.AR, &c.ARLevel, &c.PPMLimit, &c.Modification, &c.UpdateTime)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "store: get criteria for %s", productName)
	}
	return &c, nil
}

// CreateCriteria materializes criteria for a product as a single atomic
// upsert. Two racing runs may both attempt creation; the statement makes the
// last write win and returns the surviving row either way.
func (s *PostgresStore) CreateCriteria(ctx context.Context, info model.CriteriaInfo) (*model.CriteriaInfo, error) {
	var c model.CriteriaInfo
	err := s.pool.QueryRow(ctx,
		`INSERT INTO drill_data.ppm_criteria (product_name, ar, ar_level, ppm_limit, modification, update_time)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (product_name) DO UPDATE SET
			ar = EXCLUDED.ar,
			ar_level = EXCLUDED.ar_level,
			ppm_limit = EXCLUDED.ppm_limit,
			modification = EXCLUDED.modification,
			update_time = EXCLUDED.update_time
		 RETURNING product_name, ar, ar_level, ppm_limit, modification, update_time`,
		info.ProductName, info.AR, info.ARLevel, info.PPMLimit, info.Modification, info.UpdateTime,
	).Scan(&c.ProductName, &c.AR, &c.ARLevel, &c.PPMLimit, &c.Modification, &c.UpdateTime)
	if err != nil {
		return nil, eris.Wrapf(err, "store: create criteria for %s", info.ProductName)
	}
	return &c, nil
}

// ListCriteria returns all product criteria ordered by product name.
func (s *PostgresStore) ListCriteria(ctx context.Context) ([]model.CriteriaInfo, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT product_name, ar, ar_level, ppm_limit, modification, update_time
		 FROM drill_data.ppm_criteria ORDER BY product_name`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "store: list criteria")
	}
	defer rows.Close()

	var out []model.CriteriaInfo
	for rows.Next() {
		var c model.CriteriaInfo
		if err := rows.Scan(&c.ProductName, &c.AR, &c.ARLevel, &c.PPMLimit, &c.Modification, &c.UpdateTime); err != nil {
			return nil, eris.Wrap(err, "store: scan criteria")
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ReplaceCriteria swaps the entire criteria table for the imported rows.
func (s *PostgresStore) ReplaceCriteria(ctx context.Context, infos []model.CriteriaInfo) (int64, error) {
	rows := make([][]any, 0, len(infos))
	for _, c := range infos {
		rows = append(rows, []any{c.ProductName, c.AR, c.ARLevel, c.PPMLimit, c.Modification, c.UpdateTime})
	}
	n, err := db.ReplaceAll(ctx, s.pool, db.ReplaceConfig{
		Table:   "drill_data.ppm_criteria",
		Columns: []string{"product_name", "ar", "ar_level", "ppm_limit", "modification", "update_time"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "store: replace criteria")
	}
	return n, nil
}

// ListARBands returns the AR band table ordered by level, the evaluation
// order for band matching.
func (s *PostgresStore) ListARBands(ctx context.Context) ([]model.ARBand, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT ar_level, lower_limit, upper_limit, ppm_limit, update_time
		 FROM drill_data.ppm_ar_bands ORDER BY ar_level`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "store: list ar bands")
	}
	defer rows.Close()

	var out []model.ARBand
	for rows.Next() {
		var b model.ARBand
		if err := rows.Scan(&b.Level, &b.LowerLimit, &b.UpperLimit, &b.PPMLimit, &b.UpdateTime); err != nil {
			return nil, eris.Wrap(err, "store: scan ar band")
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ReplaceARBands swaps the entire band table.
func (s *PostgresStore) ReplaceARBands(ctx context.Context, bands []model.ARBand) (int64, error) {
	rows := make([][]any, 0, len(bands))
	for _, b := range bands {
		rows = append(rows, []any{b.Level, b.LowerLimit, b.UpperLimit, b.PPMLimit, b.UpdateTime})
	}
	n, err := db.ReplaceAll(ctx, s.pool, db.ReplaceConfig{
		Table:   "drill_data.ppm_ar_bands",
		Columns: []string{"ar_level", "lower_limit", "upper_limit", "ppm_limit", "update_time"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "store: replace ar bands")
	}
	return n, nil
}

// ListRecipients returns the alert mailing list.
func (s *PostgresStore) ListRecipients(ctx context.Context) ([]model.Recipient, error) {
	rows, err := s.pool.Query(ctx, `SELECT email, send_type FROM drill_data.mail_list`)
	if err != nil {
		return nil, eris.Wrap(err, "store: list recipients")
	}
	defer rows.Close()

	var out []model.Recipient
	for rows.Next() {
		var r model.Recipient
		if err := rows.Scan(&r.Email, &r.SendType); err != nil {
			return nil, eris.Wrap(err, "store: scan recipient")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListDrillRecords returns persisted records, newest first, for the status API.
func (s *PostgresStore) ListDrillRecords(ctx context.Context, filter RecordFilter) ([]model.DrillRecord, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := `SELECT product_name, lot_number, drill_machine_id, drill_machine_name,
			drill_spindle_id, ppm_control_limit, ppm, judge_ppm,
			drill_time, aoi_time, ca, cp, cpk, ratio_target,
			COALESCE(image_path, ''), COALESCE(classification_result, ''), classification_time
		 FROM drill_data.drill_records`
	var args []any
	switch {
	case filter.Lot != "" && filter.MachineName != "":
		query += ` WHERE lot_number = $1 AND drill_machine_name = $2 ORDER BY aoi_time DESC LIMIT $3`
		args = []any{filter.Lot, filter.MachineName, limit}
	case filter.Lot != "":
		query += ` WHERE lot_number = $1 ORDER BY aoi_time DESC LIMIT $2`
		args = []any{filter.Lot, limit}
	case filter.MachineName != "":
		query += ` WHERE drill_machine_name = $1 ORDER BY aoi_time DESC LIMIT $2`
		args = []any{filter.MachineName, limit}
	default:
		query += ` ORDER BY aoi_time DESC LIMIT $1`
		args = []any{limit}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: list drill records")
	}
	defer rows.Close()

	var out []model.DrillRecord
	for rows.Next() {
		var r model.DrillRecord
		if err := rows.Scan(
			&r.ProductName, &r.LotNumber, &r.MachineID, &r.MachineName,
			&r.SpindleID, &r.PPMControlLimit, &r.PPM, &r.JudgePPM,
			&r.DrillTime, &r.AOITime, &r.Ca, &r.Cp, &r.Cpk, &r.RatioTarget,
			&r.ImagePath, &r.ClassificationCode, &r.ClassificationTime,
		); err != nil {
			return nil, eris.Wrap(err, "store: scan drill record")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
