package prometheus

import (
	"math"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	mudra "github.com/dimssu/Mudra"
	"github.com/dimssu/Mudra/metrics/export/internaldefs"
)

type metricsSource interface {
	MetricsSnapshot() mudra.MetricsSnapshot
	AuditDropped() uint64
}

// Collector exposes engine metrics as const metrics built from a snapshot
// at scrape time. It holds no scrape-side state, so one Collector can be
// registered for the life of the engine.
type Collector struct {
	source       metricsSource
	counterDescs map[mudra.MetricID]*prometheus.Desc
	histDescs    map[mudra.MetricID]*prometheus.Desc
	droppedDesc  *prometheus.Desc
}

// NewCollector creates a Collector reading from the engine.
func NewCollector(engine *mudra.Engine) *Collector {
	return NewCollectorFromSource(engine)
}

// NewCollectorFromSource creates a Collector from any snapshot source.
func NewCollectorFromSource(source metricsSource) *Collector {
	c := &Collector{
		source:       source,
		counterDescs: make(map[mudra.MetricID]*prometheus.Desc, len(internaldefs.CounterDefs)),
		histDescs:    make(map[mudra.MetricID]*prometheus.Desc, len(internaldefs.HistogramDefs)),
		droppedDesc:  prometheus.NewDesc(internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, nil, nil),
	}
	for _, def := range internaldefs.CounterDefs {
		c.counterDescs[def.ID] = prometheus.NewDesc(def.Name, def.Help, nil, nil)
	}
	for _, def := range internaldefs.HistogramDefs {
		c.histDescs[def.ID] = prometheus.NewDesc(def.Name, def.Help, nil, nil)
	}
	return c
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, desc := range c.counterDescs {
		ch <- desc
	}
	for _, desc := range c.histDescs {
		ch <- desc
	}
	ch <- c.droppedDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c == nil || c.source == nil {
		return
	}

	snapshot := c.source.MetricsSnapshot()

	for _, def := range internaldefs.CounterDefs {
		ch <- prometheus.MustNewConstMetric(
			c.counterDescs[def.ID], prometheus.CounterValue,
			float64(snapshot.Counters[def.ID]))
	}

	for _, def := range internaldefs.HistogramDefs {
		raw := internaldefs.NormalizeBuckets(snapshot.Histograms[def.ID])
		cumulative := internaldefs.CumulativeBuckets(raw)

		buckets := make(map[float64]uint64, len(internaldefs.HistogramBounds))
		for i, bound := range internaldefs.HistogramBounds {
			buckets[bound] = cumulative[i]
		}
		count := cumulative[len(cumulative)-1]

		// The engine keeps bucket counts only; sum is approximated as NaN
		// absent, which const histograms represent as 0.
		ch <- prometheus.MustNewConstHistogram(
			c.histDescs[def.ID], count, histogramSum(raw), buckets)
	}

	ch <- prometheus.MustNewConstMetric(
		c.droppedDesc, prometheus.CounterValue, float64(c.source.AuditDropped()))
}

// histogramSum estimates the sample sum from bucket midpoints. Exact sums
// are not tracked in the hot path; the estimate keeps rate() and avg
// queries usable.
func histogramSum(raw [8]uint64) float64 {
	var sum float64
	lower := 0.0
	for i, upper := range internaldefs.HistogramBounds {
		mid := (lower + upper) / 2
		sum += mid * float64(raw[i])
		lower = upper
	}
	// Open-ended bucket: charge the last finite bound.
	last := internaldefs.HistogramBounds[len(internaldefs.HistogramBounds)-1]
	sum += last * float64(raw[len(raw)-1])
	if math.IsNaN(sum) {
		return 0
	}
	return sum
}

// Handler registers the collector on a fresh registry and returns the
// scrape handler. Use this when the process has no registry of its own.
func Handler(engine *mudra.Engine) http.Handler {
	registry := prometheus.NewRegistry()
	registry.MustRegister(NewCollector(engine))
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
