package illustrate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "illustro_pipeline_runs_total",
		Help: "Pipeline runs by terminal state.",
	}, []string{"state"})

	searchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "illustro_search_requests_total",
		Help: "Image search requests by source strategy.",
	}, []string{"source"})

	searchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "illustro_search_failures_total",
		Help: "Image search transport failures by source strategy.",
	}, []string{"source"})

	searchFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "illustro_search_fallbacks_total",
		Help: "Encyclopedic-to-web fallback activations.",
	})

	selections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "illustro_selections_total",
		Help: "Selector outcomes: chosen, single, none, fail_open, degraded.",
	}, []string{"outcome"})

	thumbnailFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "illustro_thumbnail_fetch_failures_total",
		Help: "Candidate thumbnail fetches dropped due to errors.",
	})
)
