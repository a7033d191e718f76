package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pvannier/lumen-api/internal/api"
	apiMiddleware "github.com/pvannier/lumen-api/internal/api/middleware"
	"github.com/pvannier/lumen-api/internal/telemetry"
)

// setupRouter configures the application router with all routes and
// middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	generateHandler := api.NewGenerateHandler(
		app.registry,
		app.orchestrator,
		app.catalog,
		app.config.Upstream,
		app.logger,
	)
	taskHandler := api.NewTaskHandler(app.registry)
	editHandler := api.NewEditHandler(app.upstream, app.catalog, app.config.Upstream, app.logger)
	modelsHandler := api.NewModelsHandler(app.catalog, app.config.Upstream, app.logger)
	promptHandler := api.NewPromptHandler(app.upstream, app.config.Upstream, app.logger)

	r.Route("/api", func(r chi.Router) {
		r.Post("/generate", generateHandler.Submit)
		r.Get("/tasks/{taskID}", taskHandler.GetTask)
		r.Post("/edit", editHandler.Edit)
		r.Get("/models", modelsHandler.ListModels)
		r.Post("/optimize-prompt", promptHandler.OptimizePrompt)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Method(http.MethodGet, "/metrics", telemetry.Handler())

	return r
}
