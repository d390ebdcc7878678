package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// buildRouter constructs the chi router with all routes and middleware.
func (s *server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chimw.Recoverer)
	r.Use(s.requestLogger)
	r.Use(s.corsMiddleware())

	if s.cfg.RateLimit.Enabled {
		r.Use(s.rateLimitMiddleware(s.cfg.RateLimit.RequestsPerMinute))
	}

	// Public endpoints.
	r.Get("/api/v1/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.cfg.BasicAuth.Enabled {
			r.Use(s.requireBasicAuth)
		}

		r.Get("/", s.handleReportHTML)
		r.Get("/report.txt", s.handleReportText)

		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/report", s.handleReportJSON)
			r.Get("/axes", s.handleAxes)
			r.Post("/refresh", s.handleRefresh)

			if s.store != nil {
				r.Get("/history", s.handleHistory)
				r.Get("/history/{project}", s.handleProjectHistory)
			}
		})

		if s.metrics != nil {
			r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
		}
	})

	return r
}

// corsMiddleware returns a CORS handler configured from the API config.
func (s *server) corsMiddleware() func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedMethods:   []string{"GET", "HEAD", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}

	origins := s.cfg.CORSOrigins

	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		// Reflect the requesting origin so credentials work from any origin.
		opts.AllowOriginFunc = func(_ *http.Request, _ string) bool {
			return true
		}
	} else {
		opts.AllowedOrigins = origins
	}

	return cors.Handler(opts)
}
