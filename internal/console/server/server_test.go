package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/riemann-mysql/internal/console/handler"
	"github.com/xela07ax/riemann-mysql/internal/engine"
)

type stubStatus struct {
	snap engine.Snapshot
	ok   bool
}

func (s stubStatus) Snapshot() (engine.Snapshot, bool) { return s.snap, s.ok }

func newServer(status handler.StatusService) *ConsoleServer {
	reg := prometheus.NewRegistry()
	engine.NewMetrics(reg)
	return NewConsoleServer(zap.NewNop(), handler.NewStatusHandler(status), reg)
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestConsole_Health(t *testing.T) {
	srv := newServer(stubStatus{})

	rec := get(t, srv, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestConsole_StatusBeforeFirstCycle(t *testing.T) {
	srv := newServer(stubStatus{})

	rec := get(t, srv, "/status")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"error": "no_cycle_completed"}`, rec.Body.String())
}

func TestConsole_Status(t *testing.T) {
	lag := int64(7)
	srv := newServer(stubStatus{ok: true, snap: engine.Snapshot{
		CycleID:     "c-1",
		StartedAt:   time.Unix(1700000000, 0).UTC(),
		DurationMs:  12,
		Outcome:     engine.OutcomeDelivered,
		State:       "ok",
		Description: "slave io: running, slave sql: running",
		Metric:      &lag,
		Cycles:      3,
	}})

	rec := get(t, srv, "/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "delivered", body["outcome"])
	assert.Equal(t, "ok", body["state"])
	assert.EqualValues(t, 7, body["metric"])
	assert.EqualValues(t, 3, body["cycles"])
	assert.NotContains(t, body, "error")
}

func TestConsole_Metrics(t *testing.T) {
	srv := newServer(stubStatus{})

	rec := get(t, srv, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "riemann_mysql_health_state")
}

func TestConsole_UnknownRoute(t *testing.T) {
	srv := newServer(stubStatus{})

	assert.Equal(t, http.StatusNotFound, get(t, srv, "/approvals").Code)
}
