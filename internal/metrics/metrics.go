// Package metrics exposes Prometheus collectors for tool calls and project
// guard decisions.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "backlog_mcp"

// Recorder owns a private registry so tests and multiple servers never
// collide on the global one.
type Recorder struct {
	registry       *prometheus.Registry
	toolCalls      *prometheus.CounterVec
	toolDuration   *prometheus.HistogramVec
	guardDecisions *prometheus.CounterVec
}

// New creates a recorder with Go runtime and process collectors attached.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool calls by tool and outcome.",
		}, []string{"tool", "result"}),
		toolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_call_duration_seconds",
			Help:      "Tool call latency including the Backlog round trip.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
		guardDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guard_decisions_total",
			Help:      "Project guard decisions by tool, access kind and result.",
		}, []string{"tool", "access", "result"}),
	}
	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.toolCalls,
		r.toolDuration,
		r.guardDecisions,
	)
	return r
}

// ObserveToolCall records one completed call.
func (r *Recorder) ObserveToolCall(tool, result string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.toolCalls.WithLabelValues(tool, result).Inc()
	r.toolDuration.WithLabelValues(tool).Observe(elapsed.Seconds())
}

// RecordGuardDecision records one project guard outcome.
func (r *Recorder) RecordGuardDecision(tool, access, result string) {
	if r == nil {
		return
	}
	r.guardDecisions.WithLabelValues(tool, access, result).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
