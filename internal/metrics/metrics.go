package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Stage labels for the query pipeline.
const (
	StageEmbed     = "embed"
	StageSearch    = "search"
	StageSummarize = "summarize"
)

// Query pipeline Prometheus metrics.
var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "semsearch",
			Name:      "requests_total",
			Help:      "Total number of answered queries",
		},
		[]string{"mode", "outcome"},
	)

	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "semsearch",
			Name:      "stage_duration_seconds",
			Help:      "Duration of a pipeline stage in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"},
	)

	StageErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "semsearch",
			Name:      "stage_errors_total",
			Help:      "Total number of failed pipeline stages",
		},
		[]string{"stage"},
	)
)

var registerOnce sync.Once

// Register registers the pipeline metrics with the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RequestsTotal, StageDuration, StageErrorsTotal)
	})
}
