package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vdl-backend/internal/container"
	"vdl-backend/internal/middleware"
	"vdl-backend/pkg/errors"
)

// NewRouter configures every route served by the API
func NewRouter(c *container.Container) (http.Handler, error) {
	cfg := c.GetConfig()
	log := c.GetLogger()
	authService := c.GetAuthService()

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()

	corsConfig := &middleware.CORSConfig{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Content-Length", "Accept-Encoding", "Authorization", "X-Request-ID"},
		ExposedHeaders:   []string{"Content-Length", "X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           86400,
	}

	r.Use(middleware.CORS(corsConfig, log))
	r.Use(middleware.RequestID(log))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))
	r.Use(middleware.Metrics)

	healthHandler := NewHealthHandler(c)
	trackingHandler := NewTrackingHandler(c.Services.Ads, c.Services.Sessions, log)
	referralHandler := NewReferralHandler(c.Services.Referral, log)
	adminHandler := NewAdminHandler(c.Services.Reports, loc, log)

	r.Get("/health", healthHandler.Check)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		// Tracking works anonymously; a valid token attributes events to the user
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(authService, log))
			r.Use(middleware.TrackingRateLimit(c.Services.Limiter, log))
			trackingHandler.RegisterRoutes(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(authService, log))

			r.Route("/referral", func(r chi.Router) {
				r.Get("/me", referralHandler.GetMine)
				r.Post("/redeem", referralHandler.Redeem)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireAdmin(log))
				adminHandler.RegisterRoutes(r)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		respondError(w, req, errors.NewNotFoundError("Endpoint not found"), log)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		appErr := errors.NewValidationError("Method not allowed", nil)
		appErr.StatusCode = http.StatusMethodNotAllowed
		respondError(w, req, appErr, log)
	})

	log.Info("Router configured successfully")
	return r, nil
}
