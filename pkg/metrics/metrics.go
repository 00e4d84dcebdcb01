// Package metrics defines the Prometheus instruments for the import pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the import pipeline instruments.
type Metrics struct {
	ImportsTotal        *prometheus.CounterVec
	OrdersImportedTotal *prometheus.CounterVec
	OrdersSkippedTotal  *prometheus.CounterVec
	ImportDuration      *prometheus.HistogramVec
}

// New registers the import instruments on the given registerer. Pass
// prometheus.DefaultRegisterer in production; tests use their own registry to
// avoid duplicate registration across cases.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ImportsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "orderhub_imports_total",
			Help: "Import jobs processed, by detected marketplace and outcome.",
		}, []string{"marketplace", "status"}),
		OrdersImportedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "orderhub_orders_imported_total",
			Help: "Orders persisted from imports, by marketplace.",
		}, []string{"marketplace"}),
		OrdersSkippedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "orderhub_orders_skipped_total",
			Help: "Duplicate orders skipped during imports, by marketplace.",
		}, []string{"marketplace"}),
		ImportDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "orderhub_import_duration_seconds",
			Help:    "End-to-end import duration from upload to persisted orders.",
			Buckets: prometheus.DefBuckets,
		}, []string{"marketplace"}),
	}
}
