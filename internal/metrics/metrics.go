// Package metrics exposes the gateway's Prometheus registry: the four
// metric families named in SPEC_FULL.md §4.7 step 9 (request counter,
// cost counter, latency histogram, fallback counter), plus an ambient set
// carried over from the teacher's own registry (in-flight gauge, throttle
// counter, per-attempt counter, HTTP duration histogram).
//
// Scoped to a private registry, not the global default, so embedding this
// gateway alongside other instrumented services never collides — the same
// constraint the teacher's own Registry documents.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// Registry holds every exported metric.
type Registry struct {
	reg *prometheus.Registry

	inFlight prometheus.Gauge

	// gateway_requests_total{tenant,provider,status} — §4.7 step 9.
	requestsTotal *prometheus.CounterVec

	// gateway_cost_usd_total{tenant,provider,model} — §4.7 step 9.
	costTotal *prometheus.CounterVec

	// gateway_request_duration_seconds{tenant,provider} — §4.7 step 9.
	latency *prometheus.HistogramVec

	// gateway_fallback_total{tenant,primary,provider_used} — §4.7 step 9,
	// incremented only when fallback_used is true.
	fallbackTotal *prometheus.CounterVec

	// gateway_throttled_total{tenant} — ambient, mirrors the teacher's
	// gateway_ratelimit_total but scoped to the admission controller.
	throttledTotal *prometheus.CounterVec

	// gateway_upstream_attempts_total{provider,status} — ambient, one per
	// Fallback Executor attempt (not just the final outcome).
	attemptsTotal *prometheus.CounterVec

	// gateway_http_request_duration_seconds{status} — ambient end-to-end
	// HTTP timing, independent of which provider served the request.
	httpDuration *prometheus.HistogramVec

	metricsHandler fasthttp.RequestHandler
}

// New builds a Registry with its own private prometheus.Registry.
func New() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	r := &Registry{
		reg: reg,

		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_inflight_requests",
			Help: "Current number of in-flight chat-completion requests",
		}),

		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Total chat-completion requests by tenant, provider and terminal status",
		}, []string{"tenant", "provider", "status"}),

		costTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_cost_usd_total",
			Help: "Total cost in USD attributed by tenant, provider and model",
		}, []string{"tenant", "provider", "model"}),

		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "End-to-end request latency by tenant and serving provider",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"tenant", "provider"}),

		fallbackTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_fallback_total",
			Help: "Requests served by a fallback provider, by tenant, primary and serving provider",
		}, []string{"tenant", "primary", "provider_used"}),

		throttledTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_throttled_total",
			Help: "Requests rejected by the admission controller, by tenant",
		}, []string{"tenant"}),

		attemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_upstream_attempts_total",
			Help: "Every upstream invocation attempt by provider and outcome",
		}, []string{"provider", "status"}),

		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_http_request_duration_seconds",
			Help:    "HTTP request duration for POST /v1/chat/completions by status",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"status"}),
	}

	reg.MustRegister(
		r.inFlight, r.requestsTotal, r.costTotal, r.latency, r.fallbackTotal,
		r.throttledTotal, r.attemptsTotal, r.httpDuration,
	)

	r.metricsHandler = fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return r
}

// IncInFlight / DecInFlight track concurrently in-flight chat completions.
func (r *Registry) IncInFlight() { r.inFlight.Inc() }
func (r *Registry) DecInFlight() { r.inFlight.Dec() }

// RecordRequest increments the terminal request counter (§4.7 step 9).
func (r *Registry) RecordRequest(tenant, provider, status string) {
	r.requestsTotal.WithLabelValues(tenant, provider, status).Inc()
}

// AddCost increments the cost counter by the computed cost of one request
// (§4.7 step 9).
func (r *Registry) AddCost(tenant, provider, model string, costUSD float64) {
	r.costTotal.WithLabelValues(tenant, provider, model).Add(costUSD)
}

// ObserveLatency records one request's end-to-end latency in seconds
// (§4.7 step 9).
func (r *Registry) ObserveLatency(tenant, provider string, seconds float64) {
	r.latency.WithLabelValues(tenant, provider).Observe(seconds)
}

// RecordFallback increments the fallback counter; callers must only call
// this when fallback_used is true (§4.7 step 9).
func (r *Registry) RecordFallback(tenant, primary, providerUsed string) {
	r.fallbackTotal.WithLabelValues(tenant, primary, providerUsed).Inc()
}

// RecordThrottled increments the per-tenant throttle counter.
func (r *Registry) RecordThrottled(tenant string) {
	r.throttledTotal.WithLabelValues(tenant).Inc()
}

// RecordAttempt records one Fallback Executor attempt, independent of the
// request's final terminal status.
func (r *Registry) RecordAttempt(tenant, provider, status string, latencyMs int64) {
	r.attemptsTotal.WithLabelValues(provider, status).Inc()
}

// ObserveHTTP records one HTTP-layer round trip duration.
func (r *Registry) ObserveHTTP(status string, dur time.Duration) {
	r.httpDuration.WithLabelValues(status).Observe(dur.Seconds())
}

// Handler returns the fasthttp handler for GET /metrics (§6).
func (r *Registry) Handler() fasthttp.RequestHandler { return r.metricsHandler }

// PromRegistry exposes the underlying registry for tests that want to
// inspect exact sample values.
func (r *Registry) PromRegistry() *prometheus.Registry { return r.reg }
