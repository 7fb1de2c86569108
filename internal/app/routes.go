package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/resumerelay/internal/handler"
	"github.com/resumerelay/internal/middleware"
)

func (app *App) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	if app.config.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.Recover(app.logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(app.config.Cors.AllowedOrigin),
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Retry-After", "RateLimit-Limit", "RateLimit-Remaining", "RateLimit-Reset"},
		MaxAge:         300,
	}))

	base := &handler.BaseHandler{Logger: app.logger}
	r.NotFound(base.NotFound)
	r.MethodNotAllowed(base.MethodNotAllowed)

	// Health check
	r.Get("/api/health", handler.Health)

	submitHandler := handler.NewSubmitHandler(app.logger, app.intake, app.relay)
	r.With(middleware.RateLimit(app.limits, middleware.ClientKey(app.digester), app.config.RateLimitWindow, app.logger)).
		Post("/api/submit-resume", submitHandler.Submit)

	return r
}

func allowedOrigins(origin string) []string {
	if origin == "" {
		return []string{"*"}
	}
	return []string{origin}
}
