// Package prometheus bridges the engine's lock-free counters into a
// prometheus.Collector. The engine never takes a Prometheus dependency
// itself; this package reads snapshots on scrape.
package prometheus
