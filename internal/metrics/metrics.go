package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "stef"

// Forecast paths
const (
	PathModel    = "model"
	PathFallback = "fallback"
	PathError    = "error"
)

// Trial states
const (
	TrialComplete = "complete"
	TrialPruned   = "pruned"
	TrialFailed   = "failed"
)

var (
	forecastsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forecasts_total",
			Help:      "Total number of forecasts created, partitioned by path (model, fallback, error).",
		},
		[]string{"path"},
	)

	forecastDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "forecast_seconds",
			Help:      "Forecast pipeline latency in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	trialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tuning_trials_total",
			Help:      "Total number of tuning trials, partitioned by final state.",
		},
		[]string{"state"},
	)

	registryLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_loads_total",
			Help:      "Model registry loads, partitioned by source (cache, store).",
		},
		[]string{"source"},
	)

	httpRequestSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_seconds",
			Help:      "API request latency in seconds, partitioned by route template, method and status code.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route", "method", "code"},
	)
)

// Register attaches the collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		forecastsTotal,
		forecastDurationSeconds,
		trialsTotal,
		registryLoadsTotal,
		httpRequestSeconds,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveForecast records one pipeline run.
func ObserveForecast(duration time.Duration, path string) {
	switch path {
	case PathModel, PathFallback:
	default:
		path = PathError
	}
	forecastsTotal.WithLabelValues(path).Inc()
	if duration < 0 {
		duration = 0
	}
	forecastDurationSeconds.Observe(duration.Seconds())
}

// ObserveTrial counts a finished tuning trial.
func ObserveTrial(state string) {
	trialsTotal.WithLabelValues(state).Inc()
}

// ObserveRegistryLoad counts a registry load by source.
func ObserveRegistryLoad(source string) {
	registryLoadsTotal.WithLabelValues(source).Inc()
}

// ObserveHTTPRequest records one API request. route is the mux path template.
func ObserveHTTPRequest(route, method string, code int, duration time.Duration) {
	httpRequestSeconds.WithLabelValues(route, method, strconv.Itoa(code)).Observe(duration.Seconds())
}
