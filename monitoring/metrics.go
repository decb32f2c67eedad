package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"studentoutcome/ml"
)

const namespace = "student_outcome"

// Prediction outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeSchemaError = "schema_error"
	OutcomeError       = "error"
)

// MetricsCollector 指标收集器
//
// Each collector owns its registry so tests and binaries never share state.
type MetricsCollector struct {
	registry *prometheus.Registry

	predictions      *prometheus.CounterVec
	predictLatency   prometheus.Histogram
	cacheLookups     *prometheus.CounterVec
	reloads          *prometheus.CounterVec
	bundleCreated    prometheus.Gauge
	httpRequests     *prometheus.CounterVec
	httpLatency      *prometheus.HistogramVec
	trainingRuns     *prometheus.CounterVec
	trainingAccuracy prometheus.Gauge
	trainingDuration prometheus.Histogram
}

// NewMetricsCollector 创建指标收集器
func NewMetricsCollector() *MetricsCollector {
	mc := &MetricsCollector{
		registry: prometheus.NewRegistry(),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Predictions served, by predicted label and outcome.",
		}, []string{"label", "outcome"}),
		predictLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_duration_seconds",
			Help:      "Time spent validating, encoding and classifying one input.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_cache_lookups_total",
			Help:      "Prediction cache lookups, by result.",
		}, []string{"result"}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bundle_reloads_total",
			Help:      "Model bundle reload attempts, by result.",
		}, []string{"result"}),
		bundleCreated: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bundle_created_timestamp_seconds",
			Help:      "Creation time of the bundle currently served.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests, by method, route and status code.",
		}, []string{"method", "route", "code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		trainingRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "training_runs_total",
			Help:      "Training runs, by model type and result.",
		}, []string{"model_type", "result"}),
		trainingAccuracy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "training_accuracy",
			Help:      "Held-out accuracy of the last training run.",
		}),
		trainingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "training_duration_seconds",
			Help:      "Wall time of a training run.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
	}

	mc.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		mc.predictions,
		mc.predictLatency,
		mc.cacheLookups,
		mc.reloads,
		mc.bundleCreated,
		mc.httpRequests,
		mc.httpLatency,
		mc.trainingRuns,
		mc.trainingAccuracy,
		mc.trainingDuration,
	)
	return mc
}

// Registry exposes the underlying registry, mainly for tests.
func (mc *MetricsCollector) Registry() *prometheus.Registry { return mc.registry }

// Handler 返回 /metrics 处理器
func (mc *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(mc.registry, promhttp.HandlerOpts{Registry: mc.registry})
}

// ObservePrediction records one prediction attempt. label is empty unless the
// outcome is OutcomeOK.
func (mc *MetricsCollector) ObservePrediction(label, outcome string, cached bool, d time.Duration) {
	mc.predictions.WithLabelValues(label, outcome).Inc()
	mc.predictLatency.Observe(d.Seconds())
	if outcome != OutcomeOK {
		return
	}
	if cached {
		mc.cacheLookups.WithLabelValues("hit").Inc()
	} else {
		mc.cacheLookups.WithLabelValues("miss").Inc()
	}
}

// ObserveReload records a bundle reload attempt.
func (mc *MetricsCollector) ObserveReload(err error) {
	if err != nil {
		mc.reloads.WithLabelValues("failure").Inc()
		return
	}
	mc.reloads.WithLabelValues("success").Inc()
}

// SetBundle publishes which bundle is being served.
func (mc *MetricsCollector) SetBundle(b *ml.Bundle) {
	mc.bundleCreated.Set(float64(b.CreatedAt.Unix()))
}

// ObserveRequest records one HTTP request.
func (mc *MetricsCollector) ObserveRequest(method, route string, status int, d time.Duration) {
	mc.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	mc.httpLatency.WithLabelValues(route).Observe(d.Seconds())
}

// ObserveTraining records a finished training run; result is nil on failure.
func (mc *MetricsCollector) ObserveTraining(modelType string, result *ml.TrainResult) {
	if result == nil {
		mc.trainingRuns.WithLabelValues(modelType, "failure").Inc()
		return
	}
	mc.trainingRuns.WithLabelValues(modelType, "success").Inc()
	mc.trainingAccuracy.Set(result.Report.Accuracy)
	mc.trainingDuration.Observe(result.Duration.Seconds())
}
