package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/phrazzld/capture-api/internal/api"
	"github.com/phrazzld/capture-api/internal/api/middleware"
)

// setupRouter creates the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: app.config.Server.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(middleware.NewTraceMiddleware(app.logger))

	analyzeHandler := api.NewAnalyzeHandler(
		app.pipeline,
		app.calendar,
		app.config.Server.MaxImageBytes,
		app.logger,
	)
	deviceHandler := api.NewDeviceHandler(app.devices, app.config.Push.SandboxDefault)
	quotaHandler := api.NewQuotaHandler(app.quotaTracker)
	authMiddleware := middleware.NewAuthMiddleware(app.verifier)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Post("/analyze", analyzeHandler.Analyze)
			r.Post("/analyze/async", analyzeHandler.AnalyzeAsync)
			r.Get("/jobs/{id}", analyzeHandler.GetJob)

			r.Post("/devices", deviceHandler.Register)
			r.Delete("/devices", deviceHandler.Unregister)

			r.Get("/quota", quotaHandler.GetQuota)
		})
	})

	r.Get("/health", api.Health)

	return r
}
