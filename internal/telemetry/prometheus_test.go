package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPrometheusMetrics(t *testing.T) {
	m := NewPrometheusMetrics(prometheus.NewRegistry())
	assert.NotNil(t, m)
	assert.NotNil(t, m.toolCalls)
	assert.NotNil(t, m.toolDuration)
	assert.NotNil(t, m.remoteRequests)
}

func TestNewPrometheusMetrics_UsesProvidedRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()

	m := NewPrometheusMetrics(registry)
	m.ObserveTool("query_corporate_bodies", "ok", 20*time.Millisecond)
	m.ObserveTool("query_corporate_bodies", "remote", 5*time.Millisecond)
	m.ObserveRemote("GET", 200)
	m.ObserveRemote("GET", 0)

	metrics, err := registry.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(metrics))
	for _, m := range metrics {
		names = append(names, m.GetName())
	}

	assert.Contains(t, names, "autoform_tool_calls_total")
	assert.Contains(t, names, "autoform_tool_duration_seconds")
	assert.Contains(t, names, "autoform_remote_requests_total")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.toolCalls.WithLabelValues("query_corporate_bodies", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.remoteRequests.WithLabelValues("GET", "0")))
}
