// Package metrics holds the Prometheus instruments served on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	IndicatorsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quell_indicators_ingested_total",
			Help: "Indicators accepted per source, including deduplicated ones",
		},
		[]string{"source", "result"},
	)

	IncidentsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quell_incidents_processed_total",
			Help: "Incidents opened or updated per category and severity",
		},
		[]string{"category", "severity", "status"},
	)

	ActionsExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quell_actions_executed_total",
			Help: "Containment actions per kind and outcome",
		},
		[]string{"action", "outcome"},
	)

	ContainmentSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quell_containment_seconds",
			Help:    "Time from incident open to containment",
			Buckets: []float64{60, 300, 900, 1800, 3600, 7200, 14400, 28800},
		},
		[]string{"category", "severity"},
	)

	Escalations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quell_escalations_total",
			Help: "Incidents escalated past their containment SLA",
		},
		[]string{"severity"},
	)
)
