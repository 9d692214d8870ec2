package observability

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNew_DefaultsNamespaceWhenEmpty(t *testing.T) {
	m := New("")
	require.NotNil(t, m)
	m.RecordCallReplayed("tp", 10*time.Millisecond)
}

func TestMultipleInstancesDoNotCollide(t *testing.T) {
	m1 := New("backtest_engine")
	m2 := New("backtest_engine")
	require.NotPanics(t, func() {
		m1.RecordDiagnostic("data_integrity")
		m2.RecordDiagnostic("policy")
	})
}

func TestHandler_ServesMetricsEndpoint(t *testing.T) {
	m := New("")
	m.RecordOptimizerTuple(true)
	m.RecordRun("completed", time.Second)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	require.Contains(t, rec.Body.String(), "backtest_engine_optimizer_tuples_evaluated_total")
	require.Contains(t, rec.Body.String(), "backtest_engine_run_runs_total")
}
