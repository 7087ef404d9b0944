// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package metrics exposes Prometheus collectors for the compile and
// query paths. Collection never touches the wall clock from inside the
// compiler itself (spec.md §9's determinism concerns and §5's "no
// suspension points" both favor a pure build path); callers time their
// own Compile invocation and report it via ObserveCompileDuration.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// CompileDuration records how long a caller's Compile call took.
	CompileDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pktclass",
		Name:      "compile_duration_seconds",
		Help:      "Duration of a classifier compile, as measured by the caller.",
		Buckets:   prometheus.DefBuckets,
	})

	// ActiveFilters tracks how many compiled filters are currently live
	// (incremented by Compile, decremented by Filter.Free).
	ActiveFilters = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "pktclass",
		Name:      "active_filters",
		Help:      "Number of compiled filters not yet freed.",
	})

	// QueriesTotal counts queries per filter, labeled by the filter's
	// UUID so a dashboard can correlate load with a specific build.
	QueriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pktclass",
		Name:      "queries_total",
		Help:      "Number of Query calls served, labeled by filter id.",
	}, []string{"filter_id"})
)

func init() {
	prometheus.MustRegister(CompileDuration, ActiveFilters, QueriesTotal)
}

// ObserveCompileDuration records how long a Compile call took.
func ObserveCompileDuration(d time.Duration) {
	CompileDuration.Observe(d.Seconds())
}

// IncQueries increments the query counter for filterID.
func IncQueries(filterID string) {
	QueriesTotal.WithLabelValues(filterID).Inc()
}
