package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObservePhaseDuration("run_command", 150*time.Millisecond)
	pr.IncPhaseResult("run_command", ResultSuccess)
	pr.IncPoll("run_command")
	pr.ObserveExecutionDuration(2 * time.Second)
	pr.IncExecutionOutcome("success")
	pr.SetRunningExecutions(1)
	pr.IncEnqueue("enqueued")
	pr.IncDequeue("empty")
	pr.IncNotification("sent")

	mfs, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	assert.True(t, names["r2ex_phase_results_total"])
	assert.True(t, names["r2ex_correlation_dequeues_total"])
	assert.True(t, names["r2ex_running_executions"])
}

func TestNilRecorderIsSafe(t *testing.T) {
	var pr *PrometheusRecorder
	pr.IncPoll("x")
	pr.SetRunningExecutions(3)

	var r Recorder
	OrNoop(r).IncEnqueue("declined")
}

func TestHTTPHandler(t *testing.T) {
	reg := prom.NewRegistry()
	NewPrometheusRecorder(reg).IncEnqueue("enqueued")

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `r2ex_correlation_enqueues_total{result="enqueued"} 1`))
}
