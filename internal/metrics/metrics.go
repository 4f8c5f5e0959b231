// Package metrics exposes Prometheus instrumentation for the flow pipeline.
// A nil *Recorder is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/navid-fn/flowradar/internal/models"
)

type Recorder struct {
	flowsClassified *prometheus.CounterVec
	fallbacks       *prometheus.CounterVec
	sourceQueries   *prometheus.CounterVec
	fetchDuration   prometheus.Histogram
	published       prometheus.Counter
	ingested        prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		flowsClassified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowradar",
			Name:      "flows_classified_total",
			Help:      "Flow events produced by the live path, by type",
		}, []string{"type"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowradar",
			Name:      "fallback_total",
			Help:      "Responses served from mock data or safe defaults, by reason",
		}, []string{"reason"}),
		sourceQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowradar",
			Name:      "source_queries_total",
			Help:      "Per-contract event source queries, by stablecoin and status",
		}, []string{"stablecoin", "status"}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "flowradar",
			Name:      "live_fetch_duration_seconds",
			Help:      "Wall time of a live fan-out across all tracked contracts",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flowradar",
			Name:      "flows_published_total",
			Help:      "Flow events written to Kafka by the watcher",
		}),
		ingested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flowradar",
			Name:      "flows_ingested_total",
			Help:      "Flow events inserted into ClickHouse by the ingester",
		}),
	}

	reg.MustRegister(
		r.flowsClassified, r.fallbacks, r.sourceQueries,
		r.fetchDuration, r.published, r.ingested,
	)
	return r
}

func (r *Recorder) FlowClassified(t models.FlowType) {
	if r == nil {
		return
	}
	r.flowsClassified.WithLabelValues(string(t)).Inc()
}

func (r *Recorder) Fallback(reason string) {
	if r == nil {
		return
	}
	r.fallbacks.WithLabelValues(reason).Inc()
}

func (r *Recorder) SourceQuery(stablecoin string, err error) {
	if r == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.sourceQueries.WithLabelValues(stablecoin, status).Inc()
}

func (r *Recorder) ObserveFetch(d time.Duration) {
	if r == nil {
		return
	}
	r.fetchDuration.Observe(d.Seconds())
}

func (r *Recorder) Published(n int) {
	if r == nil {
		return
	}
	r.published.Add(float64(n))
}

func (r *Recorder) Ingested(n int) {
	if r == nil {
		return
	}
	r.ingested.Add(float64(n))
}
