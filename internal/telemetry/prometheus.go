// Package telemetry exports tool and Autoform request metrics to Prometheus.
package telemetry

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics implements the tool and remote-call observers.
type PrometheusMetrics struct {
	toolCalls      *prometheus.CounterVec
	toolDuration   *prometheus.HistogramVec
	remoteRequests *prometheus.CounterVec
}

// NewPrometheusMetrics registers the collectors on registerer, or the default registerer when nil.
func NewPrometheusMetrics(registerer prometheus.Registerer) *PrometheusMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &PrometheusMetrics{
		toolCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autoform_tool_calls_total",
				Help: "Total number of tool invocations by outcome",
			},
			[]string{"tool", "outcome"},
		),
		toolDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "autoform_tool_duration_seconds",
				Help:    "Duration of tool invocations in seconds",
				Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"tool", "outcome"},
		),
		remoteRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autoform_remote_requests_total",
				Help: "Total number of requests sent to the Autoform API by response status (0 when no response)",
			},
			[]string{"method", "status"},
		),
	}
}

// ObserveTool records one tool invocation. outcome is "ok" or an error kind.
func (p *PrometheusMetrics) ObserveTool(tool string, outcome string, duration time.Duration) {
	p.toolCalls.WithLabelValues(tool, outcome).Inc()
	p.toolDuration.WithLabelValues(tool, outcome).Observe(duration.Seconds())
}

// ObserveRemote counts one Autoform request. status is 0 when no response arrived.
func (p *PrometheusMetrics) ObserveRemote(method string, status int) {
	p.remoteRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}
