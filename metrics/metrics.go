package metrics

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Dosada05/esports-arena/models"
)

const namespace = "arena"

// Metrics - счётчики приложения на собственном реестре.
// Методы безопасно вызывать на nil.
type Metrics struct {
	registry       *prometheus.Registry
	withdrawals    *prometheus.CounterVec
	waitlistOffers prometheus.Counter
	httpRequests   *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		withdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "withdrawals_total",
			Help:      "Team withdrawals from tournaments by resulting registration status.",
		}, []string{"outcome"}),
		waitlistOffers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "waitlist_offers_total",
			Help:      "Slots offered to waitlisted teams.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
	}

	registry.MustRegister(
		m.withdrawals,
		m.waitlistOffers,
		m.httpRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler отдаёт метрики в формате Prometheus.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveWithdrawal(outcome models.RegistrationStatus) {
	if m == nil {
		return
	}
	m.withdrawals.WithLabelValues(string(outcome)).Inc()
}

func (m *Metrics) ObserveWaitlistOffer() {
	if m == nil {
		return
	}
	m.waitlistOffers.Inc()
}

// Middleware считает запросы по шаблону маршрута chi, а не по сырому пути,
// чтобы id в URL не раздували число серий.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		if m == nil {
			return
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
	})
}
