// Package metrics implements the enclave's Prometheus metrics.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	reqPath    = "path"
	reqMethod  = "method"
	respStatus = "status"
	flow       = "flow"
	role       = "role"
	result     = "result"

	// Key exchange roles.
	RoleRequester = "requester"
	RoleResponder = "responder"

	ResultOK = "ok"
)

// Metrics contains our Prometheus metrics.  A nil *Metrics records nothing.
type Metrics struct {
	reqs          *prometheus.CounterVec
	reqDurations  *prometheus.HistogramVec
	verifications *prometheus.CounterVec
	keyExchanges  *prometheus.CounterVec
}

// New initializes our Prometheus metrics and registers them with reg.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	m := &Metrics{
		reqs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "HTTP requests to the enclave",
			},
			[]string{reqPath, reqMethod, respStatus},
		),
		reqDurations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests to the enclave",
			},
			[]string{reqPath, reqMethod, respStatus},
		),
		verifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "verifications_total",
				Help:      "Attestation document verifications by outcome",
			},
			[]string{flow, result},
		),
		keyExchanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "key_exchange_total",
				Help:      "Secret key exchanges with peer enclaves by outcome",
			},
			[]string{role, result},
		),
	}
	reg.MustRegister(m.reqs)
	reg.MustRegister(m.reqDurations)
	reg.MustRegister(m.verifications)
	reg.MustRegister(m.keyExchanges)

	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{
		Namespace: namespace,
	}))
	reg.MustRegister(collectors.NewGoCollector())

	return m
}

// Handler returns the exposition handler for the given registry.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// Verification records the outcome of an attestation verification.  The
// outcome is the verification error's kind, or "ok".
func (m *Metrics) Verification(flowName, outcome string) {
	if m == nil {
		return
	}
	m.verifications.With(prometheus.Labels{flow: flowName, result: outcome}).Inc()
}

// KeyExchange records the outcome of a key exchange in the given role.
func (m *Metrics) KeyExchange(roleName, outcome string) {
	if m == nil {
		return
	}
	m.keyExchanges.With(prometheus.Labels{role: roleName, result: outcome}).Inc()
}

// Middleware implements a chi middleware that records each request.  Paths
// are recorded by their route pattern to bound the number of series, and
// requests for unknown paths aren't recorded at all.
func (m *Metrics) Middleware(h http.Handler) http.Handler {
	f := func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		h.ServeHTTP(ww, r)
		if m == nil || ww.Status() == http.StatusNotFound {
			return
		}
		labels := prometheus.Labels{
			reqPath:    routePattern(r),
			reqMethod:  r.Method,
			respStatus: fmt.Sprint(ww.Status()),
		}
		m.reqs.With(labels).Inc()
		m.reqDurations.With(labels).Observe(time.Since(startTime).Seconds())
	}
	return http.HandlerFunc(f)
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}
