// Package metrics provides Prometheus metrics for binmin runs.
//
// binmin is a batch tool, so metrics are collected in a private registry
// and exported with WriteTextfile for the node_exporter textfile collector
// rather than served over HTTP.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors for one process. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	runsTotal        *prometheus.CounterVec
	phaseDuration    *prometheus.HistogramVec
	filesCollected   prometheus.Gauge
	duplicates       prometheus.Gauge
	bytesReclaimable prometheus.Gauge
	deletedTotal     prometheus.Counter
	identitiesTotal  *prometheus.CounterVec
	verifyOps        *prometheus.GaugeVec
	lastRunTimestamp prometheus.Gauge
}

// New creates Metrics registered in a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "binmin_runs_total",
				Help: "Total number of runs by outcome",
			},
			[]string{"outcome"},
		),

		phaseDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "binmin_phase_duration_seconds",
				Help:    "Duration of each workflow phase in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"phase"},
		),

		filesCollected: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "binmin_files_collected",
				Help: "Number of regular files found by the last run",
			},
		),

		duplicates: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "binmin_duplicates",
				Help: "Number of duplicate files found by the last run",
			},
		),

		bytesReclaimable: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "binmin_bytes_reclaimable",
				Help: "Total size of duplicate files found by the last run",
			},
		),

		deletedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "binmin_deleted_total",
				Help: "Total number of derived paths deleted",
			},
		),

		identitiesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "binmin_identities_total",
				Help: "Total content identities computed, by source",
			},
			[]string{"source"},
		),

		verifyOps: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "binmin_verify_ops",
				Help: "Operations in the last verification diff, by kind",
			},
			[]string{"kind"},
		),

		lastRunTimestamp: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "binmin_last_run_timestamp_seconds",
				Help: "Unix time the last run finished",
			},
		),
	}
}

// Registry returns the registry holding every collector.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObservePhase records how long a phase took.
func (m *Metrics) ObservePhase(phase string, d time.Duration) {
	if m == nil {
		return
	}
	m.phaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// RecordCollection records the number of regular files in the tree.
func (m *Metrics) RecordCollection(files int) {
	if m == nil {
		return
	}
	m.filesCollected.Set(float64(files))
}

// RecordDetection records duplicate detection results.
func (m *Metrics) RecordDetection(dupCount int, bytesReclaimable int64, hashed, cacheHits int) {
	if m == nil {
		return
	}
	m.duplicates.Set(float64(dupCount))
	m.bytesReclaimable.Set(float64(bytesReclaimable))
	m.identitiesTotal.WithLabelValues("hash").Add(float64(hashed))
	m.identitiesTotal.WithLabelValues("cache").Add(float64(cacheHits))
}

// RecordVerify records the size of the verification diff per op kind.
func (m *Metrics) RecordVerify(counts map[string]int) {
	if m == nil {
		return
	}
	m.verifyOps.Reset()
	for kind, n := range counts {
		m.verifyOps.WithLabelValues(kind).Set(float64(n))
	}
}

// RecordDeleted adds n deletions.
func (m *Metrics) RecordDeleted(n int) {
	if m == nil {
		return
	}
	m.deletedTotal.Add(float64(n))
}

// RecordRun counts a finished run.
func (m *Metrics) RecordRun(outcome string, finished time.Time) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(outcome).Inc()
	m.lastRunTimestamp.Set(float64(finished.Unix()))
}

// WriteTextfile writes every metric to path in the Prometheus text format.
// The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
