package metrics

import "github.com/prometheus/client_golang/prometheus"

// Translation Prometheus metrics.
var (
	TranslationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "querymap",
			Name:      "translations_total",
			Help:      "Total number of document translations",
		},
		[]string{"schema", "kind", "status"},
	)

	TranslationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "querymap",
			Name:      "translation_duration_seconds",
			Help:      "Document translation duration in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"schema", "kind"},
	)

	TranslationErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "querymap",
			Name:      "translation_errors_total",
			Help:      "Total document translation errors",
		},
		[]string{"schema", "kind", "error_type"},
	)
)

var translationMetricsRegistered bool

// RegisterTranslationMetrics registers Prometheus translation metrics. Must be called once from main.
func RegisterTranslationMetrics() {
	if translationMetricsRegistered {
		return
	}
	prometheus.MustRegister(TranslationsTotal)
	prometheus.MustRegister(TranslationDuration)
	prometheus.MustRegister(TranslationErrorsTotal)
	translationMetricsRegistered = true
}
