// Package metrics exposes report generation results as Prometheus gauges.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ethpandaops/buildmatrixoor/pkg/report"
)

const namespace = "buildmatrixoor"

// Metrics holds the gauges of the latest generation on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	cells          *prometheus.GaugeVec
	projects       prometheus.Gauge
	columns        prometheus.Gauge
	parseErrors    prometheus.Gauge
	misses         prometheus.Gauge
	duration       prometheus.Gauge
	lastGeneration prometheus.Gauge
}

// New creates the gauges on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		cells: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cells",
			Help:      "Number of report cells per category in the latest generation.",
		}, []string{"category"}),
		projects: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "projects",
			Help:      "Number of report rows in the latest generation.",
		}),
		columns: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "columns",
			Help:      "Number of platform and runtime columns in the latest generation.",
		}),
		parseErrors: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "parse_errors",
			Help:      "Number of unreadable build descriptors in the latest generation.",
		}),
		misses: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "selection_misses",
			Help:      "Number of configurations without a finished build in the latest generation.",
		}),
		duration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Wall time of the latest generation.",
		}),
		lastGeneration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_generation_timestamp_seconds",
			Help:      "Unix time of the latest generation.",
		}),
	}
}

// Observation is the outcome of one generation.
type Observation struct {
	Matrix      *report.Matrix
	ParseErrors int
	Misses      int
	Duration    time.Duration
}

// Observe replaces the gauges with the values of a generation.
func (m *Metrics) Observe(o Observation) {
	for category, n := range o.Matrix.Counts() {
		m.cells.WithLabelValues(string(category)).Set(float64(n))
	}

	m.projects.Set(float64(len(o.Matrix.Rows)))
	m.columns.Set(float64(len(o.Matrix.Columns)))
	m.parseErrors.Set(float64(o.ParseErrors))
	m.misses.Set(float64(o.Misses))
	m.duration.Set(o.Duration.Seconds())
	m.lastGeneration.Set(float64(o.Matrix.GeneratedAt.Unix()))
}

// WriteTextfile writes the registry in the node exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}

	return nil
}

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
