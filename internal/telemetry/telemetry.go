// Package telemetry exposes process metrics for diagnostics.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the counters tracked by the server.
type Metrics struct {
	registry *prometheus.Registry

	SessionsCreated      prometheus.Counter
	SessionsTornDown     prometheus.Counter
	BroadcastsTotal      *prometheus.CounterVec
	InterventionFailures prometheus.Counter
	TranscriptWrites     prometheus.Counter
	TranscriptFailures   prometheus.Counter
}

// New creates a metrics set on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		SessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "chatroom_sessions_created_total",
			Help: "Number of room sessions materialized.",
		}),
		SessionsTornDown: factory.NewCounter(prometheus.CounterOpts{
			Name: "chatroom_sessions_torn_down_total",
			Help: "Number of room sessions torn down.",
		}),
		BroadcastsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chatroom_broadcasts_total",
			Help: "Number of events fanned out to room channels.",
		}, []string{"kind"}),
		InterventionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "chatroom_intervention_failures_total",
			Help: "Number of intervention agent calls that failed.",
		}),
		TranscriptWrites: factory.NewCounter(prometheus.CounterOpts{
			Name: "chatroom_transcript_writes_total",
			Help: "Number of transcript snapshots written.",
		}),
		TranscriptFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "chatroom_transcript_failures_total",
			Help: "Number of transcript snapshot writes that failed.",
		}),
	}
}

// Handler serves the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
