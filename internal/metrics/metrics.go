package metrics

import (
	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCtx registers and serves the prometheus instruments of the
// preview server. It implements the session registry's Collector.
type MetricsCtx struct {
	registry *prometheus.Registry

	sessionsStarted prometheus.Counter
	sessionsFailed  prometheus.Counter
	activeSessions  prometheus.Gauge
	framesTotal     prometheus.Counter
}

func New() *MetricsCtx {
	registry := prometheus.NewRegistry()

	sessionsStarted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "preview_sessions_started_total",
		Help: "Total number of streaming sessions created",
	})
	sessionsFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "preview_sessions_failed_total",
		Help: "Total number of sessions that ended in a failed state",
	})
	activeSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "preview_active_sessions",
		Help: "Number of sessions currently registered",
	})
	framesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "preview_frames_total",
		Help: "Total number of frames encoded for delivery",
	})

	registry.MustRegister(
		sessionsStarted,
		sessionsFailed,
		activeSessions,
		framesTotal,
	)

	return &MetricsCtx{
		registry:        registry,
		sessionsStarted: sessionsStarted,
		sessionsFailed:  sessionsFailed,
		activeSessions:  activeSessions,
		framesTotal:     framesTotal,
	}
}

func (m *MetricsCtx) Mount(r *chi.Mux) {
	r.Get("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP)
}

func (m *MetricsCtx) SessionCreated() {
	m.sessionsStarted.Inc()
	m.activeSessions.Inc()
}

func (m *MetricsCtx) SessionRemoved() {
	m.activeSessions.Dec()
}

func (m *MetricsCtx) SessionFailed() {
	m.sessionsFailed.Inc()
}

func (m *MetricsCtx) FrameEncoded() {
	m.framesTotal.Inc()
}
