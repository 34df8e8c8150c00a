package telemetry

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

// Tracer is shared by every package that opens query spans.
var Tracer = otel.Tracer("activequery.querystrategy")

// #region metrics

var (
	queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "activequery_queries_total",
		Help: "Completed queries by strategy",
	}, []string{"strategy"})

	queryErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "activequery_query_errors_total",
		Help: "Failed queries by strategy and stage",
	}, []string{"strategy", "stage"})

	scoreLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "activequery_score_duration_seconds",
		Help:    "Time spent computing one score vector",
		Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"strategy"})

	unlabeledSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "activequery_unlabeled_size",
		Help: "Size of the unlabeled set at the last query",
	}, []string{"strategy"})

	tiedNormalizations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "activequery_tied_normalizations_total",
		Help: "Score vectors normalized through the constant-vector fallback",
	})
)

// #endregion metrics

// #region recorders

// ObserveScore records how long a score call took.
func ObserveScore(strategy string, d time.Duration) {
	scoreLatency.WithLabelValues(strategy).Observe(d.Seconds())
}

// RecordQuery counts a completed query and the unlabeled set size it saw.
func RecordQuery(strategy string, unlabeled int) {
	queriesTotal.WithLabelValues(strategy).Inc()
	unlabeledSize.WithLabelValues(strategy).Set(float64(unlabeled))
}

// RecordError counts a failed query. stage is "score" or "choose".
func RecordError(strategy, stage string) {
	queryErrorsTotal.WithLabelValues(strategy, stage).Inc()
}

// RecordTiedNormalization counts a constant score vector reaching the normalizer.
func RecordTiedNormalization() {
	tiedNormalizations.Inc()
}

// WriteTextfile dumps the default registry in the Prometheus text format,
// for collection by a node exporter textfile collector.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}

// #endregion recorders
