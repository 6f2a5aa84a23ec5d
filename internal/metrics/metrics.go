package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "slackscribe"

// Event outcomes reported by the pipeline.
const (
	OutcomeProcessed  = "processed"
	OutcomeDuplicate  = "duplicate"
	OutcomeIgnored    = "ignored"
	OutcomeRejected   = "rejected"
	OutcomeFailed     = "failed"
	OutcomeChallenge  = "url_verification"
	OutcomeUnverified = "unauthorized"
)

// Recorder exposes the daemon's counters and histograms.
type Recorder struct {
	registry       *prometheus.Registry
	events         *prometheus.CounterVec
	assets         *prometheus.CounterVec
	pipeline       *prometheus.HistogramVec
	publishes      *prometheus.CounterVec
	ledgerExpired  prometheus.Counter
	inflightAssets prometheus.Gauge
}

// New builds a Recorder with its own registry and the standard Go and
// process collectors attached.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		registry: reg,
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Webhook events handled, by outcome.",
		}, []string{"outcome"}),
		assets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assets_total",
			Help:      "Audio assets processed, by terminal status and error kind.",
		}, []string{"status", "error_kind"}),
		pipeline: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_seconds",
			Help:      "Wall-clock duration of a full pipeline run.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"kind"}),
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_total",
			Help:      "Result publications, by publisher and outcome.",
		}, []string{"publisher", "outcome"}),
		ledgerExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_expired_total",
			Help:      "Ledger entries purged after their retention window.",
		}),
		inflightAssets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "assets_inflight",
			Help:      "Assets currently moving through the orchestrator.",
		}),
	}
	reg.MustRegister(
		r.events,
		r.assets,
		r.pipeline,
		r.publishes,
		r.ledgerExpired,
		r.inflightAssets,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry exposes the underlying registry for tests and custom handlers.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus text exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Event counts one webhook event outcome.
func (r *Recorder) Event(outcome string) {
	if r == nil {
		return
	}
	r.events.WithLabelValues(outcome).Inc()
}

// Asset counts one asset reaching a terminal status.
func (r *Recorder) Asset(status, errorKind string) {
	if r == nil {
		return
	}
	r.assets.WithLabelValues(status, errorKind).Inc()
}

// AssetStarted and AssetFinished track the in-flight gauge.
func (r *Recorder) AssetStarted() {
	if r == nil {
		return
	}
	r.inflightAssets.Inc()
}

func (r *Recorder) AssetFinished() {
	if r == nil {
		return
	}
	r.inflightAssets.Dec()
}

// Pipeline observes the duration of one run for the given classification.
func (r *Recorder) Pipeline(kind string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.pipeline.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// Publish counts one publisher attempt.
func (r *Recorder) Publish(publisher string, err error) {
	if r == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.publishes.WithLabelValues(publisher, outcome).Inc()
}

// LedgerExpired adds n purged ledger entries.
func (r *Recorder) LedgerExpired(n int64) {
	if r == nil || n <= 0 {
		return
	}
	r.ledgerExpired.Add(float64(n))
}
