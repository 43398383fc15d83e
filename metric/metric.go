// Package metric collects pipeline counters and exposes them in prometheus format.
package metric

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/uemux/uemux"
)

// Registry holds per-component pipeline counters.
type Registry struct {
	registry *prometheus.Registry

	buffers  *prometheus.CounterVec
	samples  *prometheus.CounterVec
	errors   *prometheus.CounterVec
	retries  *prometheus.CounterVec
	requests *prometheus.CounterVec
	latency  *prometheus.GaugeVec
}

// New returns a new registry with all counters registered.
func New() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		buffers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uemux_buffers_total",
			Help: "Number of buffers processed by a component.",
		}, []string{"component"}),
		samples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uemux_samples_total",
			Help: "Number of samples processed by a component.",
		}, []string{"component"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uemux_errors_total",
			Help: "Number of errors observed by a component.",
		}, []string{"component"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uemux_source_retries_total",
			Help: "Number of source pull retries.",
		}, []string{"component"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uemux_sink_requests_total",
			Help: "Number of consumer requests served by a sink.",
		}, []string{"component"}),
		latency: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "uemux_buffer_latency_seconds",
			Help: "Time between consecutive buffers of a component.",
		}, []string{"component"}),
	}
	r.registry.MustRegister(r.buffers, r.samples, r.errors, r.retries, r.requests, r.latency)
	return r
}

// MeasureFunc captures counters when a buffer is processed.
type MeasureFunc func(bufferSize int)

// ResetFunc returns a new MeasureFunc. The closure postpones capture until
// the component is actually running.
type ResetFunc func() MeasureFunc

// Meter creates a new meter closure to capture component counters.
func (r *Registry) Meter(component string, sampleRate uemux.SampleRate) ResetFunc {
	if r == nil {
		return func() MeasureFunc { return func(int) {} }
	}
	buffers := r.buffers.WithLabelValues(component)
	samples := r.samples.WithLabelValues(component)
	latency := r.latency.WithLabelValues(component)
	return func() MeasureFunc {
		calledAt := time.Now()
		return func(bufferSize int) {
			latency.Set(time.Since(calledAt).Seconds())
			buffers.Inc()
			samples.Add(float64(bufferSize))
			calledAt = time.Now()
		}
	}
}

// Error counts an error for the component.
func (r *Registry) Error(component string) {
	if r == nil {
		return
	}
	r.errors.WithLabelValues(component).Inc()
}

// Retry counts a source pull retry for the component.
func (r *Registry) Retry(component string) {
	if r == nil {
		return
	}
	r.retries.WithLabelValues(component).Inc()
}

// Request counts a served consumer request for the component.
func (r *Registry) Request(component string) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(component).Inc()
}

// Handler returns an http handler serving the registry in exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
