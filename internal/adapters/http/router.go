package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/viralforge/dbfleet/internal/application"
	"github.com/viralforge/dbfleet/internal/domain"
	"github.com/viralforge/dbfleet/internal/telemetry"
)

// Handler is the HTTP adapter entrypoint. It holds the application service,
// the metrics sink, and a readiness probe for the metadata store.
type Handler struct {
	service *application.Service
	metrics *telemetry.Metrics
	ready   func(ctx context.Context) error
}

// NewHandler constructs an HTTP handler. ready may be nil, in which case
// readyz always reports ready.
func NewHandler(service *application.Service, metrics *telemetry.Metrics, ready func(ctx context.Context) error) *Handler {
	return &Handler{service: service, metrics: metrics, ready: ready}
}

// NewRouter registers all routes and the shared middleware stack. Read
// endpoints open to analysts, scan ingestion to developers, account and
// session administration to admins.
func NewRouter(handler *Handler, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(handler.metricsMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", handler.login)

		r.Group(func(r chi.Router) {
			r.Use(handler.sessionMiddleware)

			r.Post("/auth/logout", handler.logout)
			r.Get("/auth/session", handler.currentSession)

			r.Group(func(r chi.Router) {
				r.Use(handler.requireRole(domain.RoleAnalyst))
				r.Get("/identities", handler.globalUsers)
				r.Get("/security-events", handler.listSecurityEvents)
				r.Get("/scans", handler.listScans)
				r.Get("/scans/{scan_id}", handler.getScan)
				r.Get("/statistics", handler.statistics)
			})

			r.Group(func(r chi.Router) {
				r.Use(handler.requireRole(domain.RoleDeveloper))
				r.Post("/scans", handler.startScan)
				r.Post("/scans/{scan_id}/start", handler.markScanRunning)
				r.Post("/scans/{scan_id}/complete", handler.completeScan)
				r.Post("/scans/{scan_id}/fail", handler.failScan)
				r.Put("/servers/{server_id}/snapshot", handler.ingestSnapshot)
				r.Post("/servers/{server_id}/drift-check", handler.detectDrift)
			})

			r.Group(func(r chi.Router) {
				r.Use(handler.requireRole(domain.RoleAdmin))
				r.Post("/accounts", handler.createAccount)
				r.Get("/accounts", handler.listAccounts)
				r.Get("/auth/history", handler.authHistory)
				r.Get("/sessions", handler.listSessions)
				r.Post("/security-events/{event_id}/resolve", handler.resolveSecurityEvent)
				r.Get("/directory/test", handler.testDirectory)
			})
		})
	})

	return r
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "ok")
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "NOT_READY", "metadata store unreachable")
			return
		}
	}
	writeMessage(w, http.StatusOK, "ready")
}
