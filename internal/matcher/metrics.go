package matcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	matchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roikit_match_requests_total",
			Help: "Total number of local match requests",
		},
		[]string{"strategy", "backend", "outcome"}, // outcome: found, not_found, error
	)

	matchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "roikit_match_duration_seconds",
			Help:    "Local match duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"strategy", "backend"},
	)

	matchScore = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "roikit_match_score",
			Help:    "Best score reported by local matching",
			Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
		[]string{"strategy"},
	)

	backendFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roikit_match_backend_failures_total",
			Help: "Matching backend panics and errors converted to not found",
		},
		[]string{"backend"},
	)
)

func recordMatch(strategy Strategy, backend string, res Result, err error, seconds float64) {
	outcome := "not_found"
	switch {
	case err != nil:
		outcome = "error"
	case res.Found:
		outcome = "found"
	}
	matchRequestsTotal.WithLabelValues(strategy.String(), backend, outcome).Inc()
	matchDuration.WithLabelValues(strategy.String(), backend).Observe(seconds)
	if err == nil {
		matchScore.WithLabelValues(strategy.String()).Observe(float64(res.Score))
	}
}
