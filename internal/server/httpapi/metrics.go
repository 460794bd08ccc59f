package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics instruments requests and serves the registry it writes to.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inflight *prometheus.GaugeVec
	handler  http.Handler
}

// NewMetrics registers the HTTP collectors with reg and serves g. Nil
// arguments fall back to the default registry.
func NewMetrics(reg prometheus.Registerer, g prometheus.Gatherer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if g == nil {
		g = prometheus.DefaultGatherer
	}

	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests processed",
		}, []string{"method", "path", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		inflight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "In-flight HTTP requests by method",
		}, []string{"method"}),
		handler: promhttp.HandlerFor(g, promhttp.HandlerOpts{}),
	}

	var err error
	if m.requests, err = registerCollector(reg, m.requests); err != nil {
		return nil, err
	}
	if m.duration, err = registerCollector(reg, m.duration); err != nil {
		return nil, err
	}
	if m.inflight, err = registerCollector(reg, m.inflight); err != nil {
		return nil, err
	}
	return m, nil
}

// registerCollector registers c, reusing an identical collector that is
// already registered.
func registerCollector[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *Metrics) Handler() http.Handler { return m.handler }

// Middleware records request count, latency and in-flight requests. The path
// label is the matched route pattern, so ids never reach label values.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := strings.ToUpper(r.Method)
		m.inflight.WithLabelValues(method).Inc()
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			m.inflight.WithLabelValues(method).Dec()

			path := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				path = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.duration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
			m.requests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
		}()

		next.ServeHTTP(ww, r)
	})
}
