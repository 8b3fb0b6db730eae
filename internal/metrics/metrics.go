// Package metrics exposes pipeline and publisher counters on a private
// Prometheus registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pkordes/nyc-taxi/internal/domain"
)

type Collector struct {
	reg *prometheus.Registry

	Runs        *prometheus.CounterVec // status label: completed|failed
	Records     *prometheus.CounterVec // outcome label: accepted|excluded
	Exclusions  *prometheus.CounterVec // reason label: a ReasonCode
	RunDuration prometheus.Histogram

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge
	PublishDuration prometheus.Histogram
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taxi_pipeline_runs_total",
			Help: "Pipeline runs by final status.",
		}, []string{"status"}),
		Records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taxi_pipeline_records_total",
			Help: "Records processed by completed runs, by outcome.",
		}, []string{"outcome"}),
		Exclusions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taxi_pipeline_exclusions_total",
			Help: "Excluded records by reason code.",
		}, []string{"reason"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "taxi_pipeline_run_duration_seconds",
			Help:    "Wall time of completed pipeline runs.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 15),
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taxi_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taxi_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "taxi_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "taxi_nats_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
	}

	reg.MustRegister(
		c.Runs, c.Records, c.Exclusions, c.RunDuration,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected, c.PublishDuration,
	)

	// Pre-create every label so dashboards see zeros before the first run.
	for _, s := range []domain.RunStatus{domain.RunCompleted, domain.RunFailed} {
		c.Runs.WithLabelValues(string(s))
	}
	c.Records.WithLabelValues("accepted")
	c.Records.WithLabelValues("excluded")
	for _, r := range domain.ReasonCodes {
		c.Exclusions.WithLabelValues(string(r))
	}

	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// ObserveRun records a completed run.
func (c *Collector) ObserveRun(run domain.Run, elapsed time.Duration) {
	c.Runs.WithLabelValues(string(domain.RunCompleted)).Inc()
	c.Records.WithLabelValues("accepted").Add(float64(run.AcceptedRows))
	c.Records.WithLabelValues("excluded").Add(float64(run.ExcludedRows))
	for reason, n := range run.ExcludedByReason {
		c.Exclusions.WithLabelValues(string(reason)).Add(float64(n))
	}
	c.RunDuration.Observe(elapsed.Seconds())
}

// RunFailed records a run that did not complete.
func (c *Collector) RunFailed() {
	c.Runs.WithLabelValues(string(domain.RunFailed)).Inc()
}

// The methods below satisfy publisher.PublisherMetrics.

func (c *Collector) NATSPublishedInc()              { c.NATSPublished.Inc() }
func (c *Collector) NATSPublishErrInc()             { c.NATSPublishErrs.Inc() }
func (c *Collector) PublishObserve(d time.Duration) { c.PublishDuration.Observe(d.Seconds()) }
func (c *Collector) NATSSetConnected(connected bool) {
	if connected {
		c.NATSConnected.Set(1)
		return
	}
	c.NATSConnected.Set(0)
}
