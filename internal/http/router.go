package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/valorwell/clinician-portal/internal/api"
	"github.com/valorwell/clinician-portal/internal/auth"
	"github.com/valorwell/clinician-portal/internal/config"
	"github.com/valorwell/clinician-portal/internal/http/ratelimit"
	"github.com/valorwell/clinician-portal/internal/metrics"
	"github.com/valorwell/clinician-portal/internal/store"
)

// NewRouter wires all HTTP routes for the portal API.
func NewRouter(cfg *config.Config, st *store.Store, authService *auth.Service, apiHandler *api.Handler) http.Handler {
	r := chi.NewRouter()

	// Sync is expensive; keep the trigger endpoint tight.
	syncRateLimiter := ratelimit.NewIPRateLimiter(rate.Limit(1), 3, 5*time.Minute, cfg.TrustedProxies)
	// General API: 20 requests per second, burst of 50
	apiRateLimiter := ratelimit.NewIPRateLimiter(rate.Limit(20), 50, 5*time.Minute, cfg.TrustedProxies)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := st.HealthCheck(ctx); err != nil {
			http.Error(w, "unready", http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if cfg.PrometheusEnabled {
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			metrics.Handler().ServeHTTP(w, r)
		})
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(authService.RequireClinician)

		r.With(syncRateLimiter.Middleware()).Post("/calendar-sync", apiHandler.CalendarSync)

		r.Group(func(r chi.Router) {
			r.Use(apiRateLimiter.Middleware())

			r.Get("/appointments", apiHandler.ListAppointments)
			r.Post("/appointments", apiHandler.CreateAppointment)
			r.Get("/appointments/export.ics", apiHandler.ExportAppointmentsICS)
			r.Put("/appointments/{id}", apiHandler.UpdateAppointment)
			r.Post("/appointments/{id}/cancel", apiHandler.CancelAppointment)

			r.Get("/connections", apiHandler.ListConnections)
			r.Post("/connections/{id}/deactivate", apiHandler.DeactivateConnection)
		})
	})

	return r
}
