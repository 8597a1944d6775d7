package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimid "github.com/go-chi/chi/v5/middleware"

	"github.com/galleryplan/engine/internal/api/handlers"
	mw "github.com/galleryplan/engine/internal/api/middleware"
)

type Dependencies struct {
	ProjectsHandler *handlers.ProjectsHandler
	LinksHandler    *handlers.LinksHandler
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()

	// Built-in middleware
	r.Use(mw.RequestID)
	r.Use(mw.Recovery)
	r.Use(mw.Logging)
	r.Use(mw.CORS)
	r.Use(mw.RateLimit(10, 20))
	r.Use(chimid.Compress(5))

	// Health endpoints
	hh := handlers.NewHealthHandler()
	r.Get("/healthz", hh.Liveness)
	r.Get("/readyz", hh.Readiness)

	r.Route("/api/v1", func(api chi.Router) {
		api.Route("/projects", func(pr chi.Router) {
			pr.Get("/", dep.ProjectsHandler.List)
			pr.Post("/", dep.ProjectsHandler.Create)
			pr.Get("/{id}", dep.ProjectsHandler.Get)
			pr.Patch("/{id}", dep.ProjectsHandler.Update)
			pr.Delete("/{id}", dep.ProjectsHandler.Delete)

			pr.Route("/{id}/artworks", func(ar chi.Router) {
				ar.Post("/", dep.LinksHandler.Add)
				ar.Get("/", dep.LinksHandler.List)
				ar.Get("/{externalID}", dep.LinksHandler.Get)
				ar.Patch("/{externalID}", dep.LinksHandler.Update)
			})
		})
	})

	return r
}
