package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "portal"

// Validation results
const (
	ResultValid       = "valid"
	ResultInvalid     = "invalid"
	ResultExpired     = "expired"
	ResultMalformed   = "malformed"
	ResultRateLimited = "rate_limited"
	ResultError       = "error"
)

// Metrics holds the Prometheus collectors of the portal server.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	validationsTotal   *prometheus.CounterVec
	rateLimitedTotal   *prometheus.CounterVec
	tokensIssuedTotal  prometheus.Counter
	tokensRevokedTotal prometheus.Counter
	tokensExpiredTotal prometheus.Counter
	ticketsSubmitted   prometheus.Counter
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		validationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_validations_total",
			Help:      "Portal token validations by result.",
		}, []string{"result"}),
		rateLimitedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by a rate limiter, by operation.",
		}, []string{"operation"}),
		tokensIssuedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_issued_total",
			Help:      "Portal tokens issued.",
		}),
		tokensRevokedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_revoked_total",
			Help:      "Portal tokens revoked by staff or replaced by re-issuance.",
		}),
		tokensExpiredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_expired_total",
			Help:      "Portal tokens deactivated by the expiry sweeper.",
		}),
		ticketsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tickets_submitted_total",
			Help:      "Tickets submitted through the customer portal.",
		}),
	}

	reg.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.validationsTotal,
		m.rateLimitedTotal,
		m.tokensIssuedTotal,
		m.tokensRevokedTotal,
		m.tokensExpiredTotal,
		m.ticketsSubmitted,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveValidation(result string) {
	if m == nil {
		return
	}
	m.validationsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveRateLimited(operation string) {
	if m == nil {
		return
	}
	m.rateLimitedTotal.WithLabelValues(operation).Inc()
}

func (m *Metrics) TokenIssued(replaced int64) {
	if m == nil {
		return
	}
	m.tokensIssuedTotal.Inc()
	m.tokensRevokedTotal.Add(float64(replaced))
}

func (m *Metrics) TokenRevoked() {
	if m == nil {
		return
	}
	m.tokensRevokedTotal.Inc()
}

func (m *Metrics) TokensExpired(n int64) {
	if m == nil {
		return
	}
	m.tokensExpiredTotal.Add(float64(n))
}

func (m *Metrics) TicketSubmitted() {
	if m == nil {
		return
	}
	m.ticketsSubmitted.Inc()
}
