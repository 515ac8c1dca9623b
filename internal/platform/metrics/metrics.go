// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bloodbank_http_requests_total",
			Help: "Total HTTP requests by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bloodbank_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	PanicsRecovered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bloodbank_panics_recovered_total",
		Help: "Handler panics caught by the recovery middleware.",
	})

	EligibilityVerdicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bloodbank_eligibility_verdicts_total",
			Help: "Vitals and hemoglobin verdicts by check and result.",
		},
		[]string{"check", "result"},
	)

	TestResultsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bloodbank_unit_test_results_total",
			Help: "Blood unit laboratory results recorded by test and status.",
		},
		[]string{"test", "status"},
	)

	UnitFinalizations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bloodbank_unit_finalizations_total",
			Help: "Blood unit finalizations by terminal status.",
		},
		[]string{"status"},
	)

	WriteConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bloodbank_write_conflicts_total",
			Help: "Rejected duplicate or racing writes by kind.",
		},
		[]string{"kind"},
	)

	SlotTokensGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bloodbank_slot_tokens_generated_total",
		Help: "Slot tokens produced by schedule generation.",
	})

	ScheduleCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bloodbank_schedule_cache_lookups_total",
			Help: "Schedule cache lookups by result.",
		},
		[]string{"result"},
	)
)

// Handler exposes the default registry.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}
