package telemetry

import (
	"net/http"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultLatencyBuckets are histogram buckets in seconds, tuned for local
// index reads.
var DefaultLatencyBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}

// Collector exports query events as Prometheus metrics on its own
// registry. Callers read it through Snapshot or mount Handler.
type Collector struct {
	registry *prometheus.Registry

	queries        *prometheus.CounterVec
	queryLatency   *prometheus.HistogramVec
	sourceOutcomes *prometheus.CounterVec
	sourceLatency  *prometheus.HistogramVec
	sourceResults  *prometheus.CounterVec
}

// NewCollector creates a collector with a fresh registry. A nil or empty
// buckets slice uses DefaultLatencyBuckets.
func NewCollector(buckets []float64) *Collector {
	if len(buckets) == 0 {
		buckets = DefaultLatencyBuckets
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.queries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scry",
			Subsystem: "search",
			Name:      "queries_total",
			Help:      "Queries served, by intent and whether any result came back",
		},
		[]string{"intent", "outcome"},
	)

	c.queryLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "scry",
			Subsystem: "search",
			Name:      "query_latency_seconds",
			Help:      "End-to-end query latency in seconds",
			Buckets:   buckets,
		},
		[]string{"intent"},
	)

	c.sourceOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scry",
			Subsystem: "source",
			Name:      "outcomes_total",
			Help:      "Per-source query outcomes (ok, empty, unavailable, failed, ...)",
		},
		[]string{"source", "status"},
	)

	c.sourceLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "scry",
			Subsystem: "source",
			Name:      "latency_seconds",
			Help:      "Per-source query latency in seconds",
			Buckets:   buckets,
		},
		[]string{"source"},
	)

	c.sourceResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scry",
			Subsystem: "source",
			Name:      "results_total",
			Help:      "Results returned by each source before fusion",
		},
		[]string{"source"},
	)

	c.registry.MustRegister(
		c.queries,
		c.queryLatency,
		c.sourceOutcomes,
		c.sourceLatency,
		c.sourceResults,
	)

	return c
}

// Observe records one query event.
func (c *Collector) Observe(event QueryEvent) {
	intent := string(event.QueryType)
	outcome := "results"
	if event.IsZeroResult() {
		outcome = "zero"
	}
	c.queries.WithLabelValues(intent, outcome).Inc()
	c.queryLatency.WithLabelValues(intent).Observe(event.Latency.Seconds())

	for _, s := range event.Sources {
		c.sourceOutcomes.WithLabelValues(s.Name, s.Status).Inc()
		// Sources skipped without a call have no latency to report.
		if s.Latency > 0 {
			c.sourceLatency.WithLabelValues(s.Name).Observe(s.Latency.Seconds())
		}
		c.sourceResults.WithLabelValues(s.Name).Add(float64(s.Results))
	}
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Snapshot flattens counters to "name{label=value,...}" keys. Histograms
// report their sample count under "name_count{...}".
func (c *Collector) Snapshot() (map[string]float64, error) {
	families, err := c.registry.Gather()
	if err != nil {
		return nil, err
	}

	out := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			sort.Strings(labels)
			suffix := "{" + strings.Join(labels, ",") + "}"

			switch {
			case m.GetCounter() != nil:
				out[mf.GetName()+suffix] = m.GetCounter().GetValue()
			case m.GetHistogram() != nil:
				out[mf.GetName()+"_count"+suffix] = float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return out, nil
}
