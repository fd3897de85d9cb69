package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoOp(t *testing.T) {
	var m *Metrics

	// None of these may panic when the exporter is disabled.
	m.SetQueueLength(10)
	m.SetFailureRate(0.5)
	m.TaskProcessed(true)
	m.TaskProcessed(false)
	m.TaskSkipped()
	m.QueueAlert()
	m.FailureAlert()
}

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := MustNewMetrics(reg)

	m.TaskProcessed(true)
	m.TaskProcessed(true)
	m.TaskProcessed(false)
	m.TaskSkipped()
	m.QueueAlert()
	m.SetQueueLength(42)
	m.SetFailureRate(1.0 / 3.0)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.processed))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.succeeded))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.skipped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.queueAlerts))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.failureAlerts))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.queueLength))
	assert.InDelta(t, 0.333, testutil.ToFloat64(m.failureRate), 0.001)
}

func TestRouterServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := MustNewMetrics(reg)
	m.SetQueueLength(7)

	srv := httptest.NewServer(Router(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "session_queue_length 7")

	health, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer func() { _ = health.Body.Close() }()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}
