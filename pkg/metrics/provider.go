package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ProviderMetrics records outbound calls to the payment gateway and the
// shipping carrier.
type ProviderMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
}

// NewProviderMetrics registers the provider call metrics on the provided registerer.
func NewProviderMetrics(reg prometheus.Registerer) *ProviderMetrics {
	if reg == nil {
		return &ProviderMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "provider_call_duration_seconds",
		Help:    "Duration of outbound provider calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider", "operation"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "provider_call_success",
		Help: "Successful outbound provider calls.",
	}, []string{"provider", "operation"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "provider_call_failure",
		Help: "Failed outbound provider calls.",
	}, []string{"provider", "operation"})
	reg.MustRegister(duration, success, failure)
	return &ProviderMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
	}
}

// ObserveDuration records the duration for the provider operation.
func (p *ProviderMetrics) ObserveDuration(provider, operation string, duration time.Duration) {
	if p == nil || p.duration == nil {
		return
	}
	p.duration.WithLabelValues(normalizeLabel(provider), normalizeLabel(operation)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the provider operation.
func (p *ProviderMetrics) IncSuccess(provider, operation string) {
	if p == nil || p.success == nil {
		return
	}
	p.success.WithLabelValues(normalizeLabel(provider), normalizeLabel(operation)).Inc()
}

// IncFailure increments the failure counter for the provider operation.
func (p *ProviderMetrics) IncFailure(provider, operation string) {
	if p == nil || p.failure == nil {
		return
	}
	p.failure.WithLabelValues(normalizeLabel(provider), normalizeLabel(operation)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
