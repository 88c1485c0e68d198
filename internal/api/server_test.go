package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pcbflow/drillsync/internal/model"
	"github.com/pcbflow/drillsync/internal/pipeline"
	"github.com/pcbflow/drillsync/internal/store"
)

func init() {
	// Replace global logger with a no-op to avoid noisy test output.
	zap.ReplaceGlobals(zap.NewNop())
}

// apiStore stubs the two reads the API performs.
type apiStore struct {
	store.Store
	records    []model.DrillRecord
	criteria   []model.CriteriaInfo
	lastFilter store.RecordFilter
}

func (s *apiStore) ListDrillRecords(ctx context.Context, filter store.RecordFilter) ([]model.DrillRecord, error) {
	s.lastFilter = filter
	return s.records, nil
}

func (s *apiStore) ListCriteria(ctx context.Context) ([]model.CriteriaInfo, error) {
	return s.criteria, nil
}

func newTestServer(t *testing.T, st *apiStore) (*Server, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewServer(st, pipeline.NewRunLog(mock), nil), mock
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, &apiStore{})

	rec := get(t, srv, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	// No runner attached: no runner state reported.
	_, hasRunner := body["runner"]
	assert.False(t, hasRunner)
}

func TestRuns(t *testing.T) {
	srv, mock := newTestServer(t, &apiStore{})

	started := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT id, status, started_at").
		WithArgs(20).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "status", "started_at", "completed_at", "records_synced",
			"cursor_start", "cursor_end", "error",
		}).AddRow(uuid.New(), "complete", started, (*time.Time)(nil), int64(42), "a", "b", ""))

	rec := get(t, srv, "/api/runs")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Runs []pipeline.SyncRun `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Runs, 1)
	assert.Equal(t, int64(42), body.Runs[0].RecordsSynced)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDrillRecords_Filters(t *testing.T) {
	st := &apiStore{records: []model.DrillRecord{{LotNumber: "A1", MachineName: "DM01"}}}
	srv, _ := newTestServer(t, st)

	rec := get(t, srv, "/api/drill-records?lot=A1&machine=DM01&limit=5")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "A1", st.lastFilter.Lot)
	assert.Equal(t, "DM01", st.lastFilter.MachineName)
	assert.Equal(t, 5, st.lastFilter.Limit)

	var body struct {
		Count   int                 `json:"count"`
		Records []model.DrillRecord `json:"records"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
}

func TestDrillRecords_BadLimitFallsBack(t *testing.T) {
	st := &apiStore{}
	srv, _ := newTestServer(t, st)

	rec := get(t, srv, "/api/drill-records?limit=bogus")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 100, st.lastFilter.Limit)
}

func TestCriteria(t *testing.T) {
	st := &apiStore{criteria: []model.CriteriaInfo{
		{ProductName: "PCB-100", ARLevel: "B", PPMLimit: 10000},
	}}
	srv, _ := newTestServer(t, st)

	rec := get(t, srv, "/api/criteria")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Count    int                  `json:"count"`
		Criteria []model.CriteriaInfo `json:"criteria"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "PCB-100", body.Criteria[0].ProductName)
}
