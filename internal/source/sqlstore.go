package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/pcbflow/drillsync/internal/model"
)

// aggregateToolID selects the per-board aggregate measurement row; the other
// rows carry per-tool data the pipeline does not use.
const aggregateToolID = -1

// SQLStore implements Store over database/sql, bridged through a Bridge.
// Works against SQL Server in production and SQLite in tests; the driver
// name picks the placeholder and row-limit dialect.
type SQLStore struct {
	bridge *Bridge
	driver string
}

// NewSQLStore creates a SQLStore issuing all calls through bridge.
func NewSQLStore(bridge *Bridge, driver string) *SQLStore {
	return &SQLStore{bridge: bridge, driver: driver}
}

// placeholder returns the n-th (1-based) bind parameter for the dialect.
func (s *SQLStore) placeholder(n int) string {
	if s.driver == "sqlserver" {
		return fmt.Sprintf("@p%d", n)
	}
	return "?"
}

// limitSelect wraps a SELECT body with the dialect's row-limit syntax.
func (s *SQLStore) limitSelect(body string, limit int) string {
	if s.driver == "sqlserver" {
		return strings.Replace(body, "SELECT", fmt.Sprintf("SELECT TOP %d", limit), 1)
	}
	return fmt.Sprintf("%s LIMIT %d", body, limit)
}

const boardColumns = "ID_B, ProductID, DrillMachineID, DrillSpindleID, DrillTime, AOITime, Lot"

func scanBoard(row interface{ Scan(...any) error }) (*model.Board, error) {
	var b model.Board
	var drillTime, aoiTime, lot sql.NullString
	err := row.Scan(&b.ID, &b.ProductID, &b.MachineID, &b.SpindleID, &drillTime, &aoiTime, &lot)
	if err != nil {
		return nil, err
	}
	b.DrillTime = drillTime.String
	b.AOITime = aoiTime.String
	b.Lot = lot.String
	return &b, nil
}

// LatestBoard returns the board with the most recent AOI time, or nil when
// the source has no usable boards.
func (s *SQLStore) LatestBoard(ctx context.Context) (*model.Board, error) {
	query := s.limitSelect(fmt.Sprintf(
		`SELECT %s FROM tBoard WHERE Lot <> '' AND AOITime <> '' ORDER BY AOITime DESC`,
		boardColumns), 1)
	return call(ctx, s.bridge, func(ctx context.Context, conn *sql.Conn) (*model.Board, error) {
		b, err := scanBoard(conn.QueryRowContext(ctx, query))
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, eris.Wrap(err, "source: latest board")
		}
		return b, nil
	})
}

// EarliestBoard returns the board with the oldest AOI time, or nil when the
// source has no usable boards.
func (s *SQLStore) EarliestBoard(ctx context.Context) (*model.Board, error) {
	query := s.limitSelect(fmt.Sprintf(
		`SELECT %s FROM tBoard WHERE Lot <> '' AND AOITime <> '' ORDER BY AOITime ASC`,
		boardColumns), 1)
	return call(ctx, s.bridge, func(ctx context.Context, conn *sql.Conn) (*model.Board, error) {
		b, err := scanBoard(conn.QueryRowContext(ctx, query))
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, eris.Wrap(err, "source: earliest board")
		}
		return b, nil
	})
}

// BoardsSince returns up to limit boards strictly after since, ascending by
// AOI time. AOI timestamps are stored textually in a lexicographically
// sortable format, so string comparison is timestamp comparison here.
func (s *SQLStore) BoardsSince(ctx context.Context, since string, limit int) ([]model.Board, error) {
	query := s.limitSelect(fmt.Sprintf(
		`SELECT %s FROM tBoard WHERE Lot <> '' AND AOITime > %s ORDER BY AOITime ASC`,
		boardColumns, s.placeholder(1)), limit)
	return call(ctx, s.bridge, func(ctx context.Context, conn *sql.Conn) ([]model.Board, error) {
		rows, err := conn.QueryContext(ctx, query, since)
		if err != nil {
			return nil, eris.Wrap(err, "source: boards since")
		}
		defer rows.Close()

		var boards []model.Board
		for rows.Next() {
			b, scanErr := scanBoard(rows)
			if scanErr != nil {
				return nil, eris.Wrap(scanErr, "source: scan board")
			}
			boards = append(boards, *b)
		}
		if err := rows.Err(); err != nil {
			return nil, eris.Wrap(err, "source: iterate boards")
		}
		return boards, nil
	})
}

// MachineByID looks up a drill machine's display name.
func (s *SQLStore) MachineByID(ctx context.Context, machineID int64) (*model.MachineInfo, error) {
	query := fmt.Sprintf(`SELECT ID_DM, Name_DM FROM tDrillMachine WHERE ID_DM = %s`, s.placeholder(1))
	return call(ctx, s.bridge, func(ctx context.Context, conn *sql.Conn) (*model.MachineInfo, error) {
		var m model.MachineInfo
		var name sql.NullString
		err := conn.QueryRowContext(ctx, query, machineID).Scan(&m.ID, &name)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, eris.Wrapf(err, "source: machine %d", machineID)
		}
		m.Name = name.String
		return &m, nil
	})
}

// MeasureByBoard looks up the aggregate capability measurements for a board.
func (s *SQLStore) MeasureByBoard(ctx context.Context, boardID int64) (*model.MeasureInfo, error) {
	query := fmt.Sprintf(
		`SELECT BoardID, ToolID, CA_Z_Before, CP_Z_Before, Cpk_Z_Before, RatioInTarget_Before
		 FROM tMeasure WHERE BoardID = %s AND ToolID = %s`,
		s.placeholder(1), s.placeholder(2))
	return call(ctx, s.bridge, func(ctx context.Context, conn *sql.Conn) (*model.MeasureInfo, error) {
		var m model.MeasureInfo
		var ca, cp, cpk, ratio sql.NullFloat64
		err := conn.QueryRowContext(ctx, query, boardID, aggregateToolID).
			Scan(&m.BoardID, &m.ToolID, &ca, &cp, &cpk, &ratio)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, eris.Wrapf(err, "source: measure for board %d", boardID)
		}
		m.Ca = ca.Float64
		m.Cp = cp.Float64
		m.Cpk = cpk.Float64
		m.RatioTarget = ratio.Float64
		return &m, nil
	})
}

// ProductNameByID looks up a product's display name. Missing products are
// tolerated and reported as an empty name.
func (s *SQLStore) ProductNameByID(ctx context.Context, productID int64) (string, error) {
	query := fmt.Sprintf(`SELECT Name_PD FROM tProduct WHERE ID_PD = %s`, s.placeholder(1))
	return call(ctx, s.bridge, func(ctx context.Context, conn *sql.Conn) (string, error) {
		var name sql.NullString
		err := conn.QueryRowContext(ctx, query, productID).Scan(&name)
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		if err != nil {
			return "", eris.Wrapf(err, "source: product %d", productID)
		}
		return name.String, nil
	})
}
