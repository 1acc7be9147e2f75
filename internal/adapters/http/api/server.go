// Package api exposes the trust scoring engine over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	service "github.com/trustfabric/equilibrate/internal/app"
	"github.com/trustfabric/equilibrate/internal/domain/model"
	"github.com/trustfabric/equilibrate/internal/engine"
	"github.com/trustfabric/equilibrate/pkg/logger"
	"github.com/trustfabric/equilibrate/pkg/metrics"
)

// Service is what the HTTP layer needs from the application.
type Service interface {
	Submit(ctx context.Context, ev model.RatingEvent) (engine.Result, error)
	Enqueue(ctx context.Context, ev model.RatingEvent) bool
	Score(ctx context.Context, entityID string) (service.ScoreView, error)
	Report(ctx context.Context, entityID string, full bool) (service.Report, error)
	FileAppeal(ctx context.Context, entityID, reason string) error
	GetStats() map[string]interface{}
}

// Server routes HTTP requests to the service.
type Server struct {
	router  *chi.Mux
	service Service
	log     logger.Logger
}

// NewServer builds the router with all endpoints registered.
func NewServer(svc Service) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:  router,
		service: svc,
		log:     logger.Named("api"),
	}

	router.Get("/healthz", s.health)
	router.Get("/stats", s.stats)
	router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(
		metrics.GetRegistry(), promhttp.HandlerOpts{}))

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(metricsMiddleware)
		r.Post("/ratings", s.submitRating)
		r.Post("/ratings/bulk", s.submitBulk)
		r.Get("/scores/{entityId}", s.getScore)
		r.Get("/reports/{entityId}", s.getReport)
		r.Get("/reports/{entityId}/full", s.getFullReport)
		r.Post("/appeals", s.fileAppeal)
	})

	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.service.GetStats())
}

// metricsMiddleware records request counts and latency per route.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		routePattern := chi.RouteContext(r.Context()).RoutePattern()
		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		metrics.RecordHTTPRequest(routePattern, r.Method, httpStatusLabel(code))
		metrics.RecordHTTPRequestDuration(routePattern, r.Method, httpStatusLabel(code),
			float64(time.Since(start).Milliseconds()))
	})
}

func httpStatusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
