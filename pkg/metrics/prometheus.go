package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	cyclesTotal    *prometheus.CounterVec
	providerErrors *prometheus.CounterVec
	confidence     *prometheus.GaugeVec
	accuracy       *prometheus.GaugeVec
	lastPrice      *prometheus.GaugeVec
	cycleDuration  *prometheus.HistogramVec
}

// New creates a recorder registered on the default Prometheus registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a recorder on a caller-owned registry.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		cyclesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockpulse_training_cycles_total",
				Help: "Training cycles run, by symbol and result",
			},
			[]string{"symbol", "result"},
		),
		providerErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockpulse_provider_errors_total",
				Help: "Market data provider errors by kind",
			},
			[]string{"kind"},
		),
		confidence: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stockpulse_prediction_confidence",
				Help: "Confidence of the latest published prediction",
			},
			[]string{"symbol"},
		),
		accuracy: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stockpulse_rolling_accuracy",
				Help: "Rolling directional accuracy per symbol",
			},
			[]string{"symbol"},
		),
		lastPrice: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stockpulse_last_price",
				Help: "Last observed price for a symbol",
			},
			[]string{"symbol"},
		),
		cycleDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stockpulse_cycle_duration_seconds",
				Help:    "Duration of full fetch-train-score-publish cycles",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"symbol"},
		),
	}
}

// RecordCycle records one finished cycle with its result label.
func (r *Recorder) RecordCycle(symbol, result string) {
	r.cyclesTotal.WithLabelValues(symbol, result).Inc()
}

// RecordCycleDuration records a full cycle duration in seconds.
func (r *Recorder) RecordCycleDuration(symbol string, seconds float64) {
	r.cycleDuration.WithLabelValues(symbol).Observe(seconds)
}

// RecordProviderError records a provider error occurrence.
func (r *Recorder) RecordProviderError(kind string) {
	r.providerErrors.WithLabelValues(kind).Inc()
}

// RecordPrediction records the confidence and accuracy of a published prediction.
func (r *Recorder) RecordPrediction(symbol string, confidence, accuracy float64) {
	r.confidence.WithLabelValues(symbol).Set(confidence)
	r.accuracy.WithLabelValues(symbol).Set(accuracy)
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}
