package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimid "github.com/go-chi/chi/v5/middleware"

	"github.com/fabriclens/engine/internal/api/handlers"
	mw "github.com/fabriclens/engine/internal/api/middleware"
)

type Dependencies struct {
	APIToken       string
	LineageHandler *handlers.LineageHandler

	// SnapshotHandler is nil when the deployment runs without a database.
	SnapshotHandler *handlers.SnapshotHandler
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
		api.Use(mw.Auth(dep.APIToken))

		api.Route("/lineage", func(lr chi.Router) {
			lr.Post("/refresh", dep.LineageHandler.Refresh)
			lr.Get("/graph", dep.LineageHandler.Graph)
			lr.Get("/graph/mermaid", dep.LineageHandler.GraphMermaid)
			lr.Get("/stats", dep.LineageHandler.Stats)

			lr.Get("/items/{id}/upstream", dep.LineageHandler.Upstream)
			lr.Get("/items/{id}/downstream", dep.LineageHandler.Downstream)

			lr.Get("/path", dep.LineageHandler.Path)
			lr.Get("/cycles", dep.LineageHandler.Cycles)
			lr.Get("/cross-workspace", dep.LineageHandler.CrossWorkspace)
			lr.Get("/centrality", dep.LineageHandler.Centrality)
			lr.Get("/tables/impact", dep.LineageHandler.TableImpact)
			lr.Get("/chains", dep.LineageHandler.Chains)
		})

		if dep.SnapshotHandler != nil {
			api.Route("/snapshots", func(sr chi.Router) {
				sr.Get("/", dep.SnapshotHandler.List)
				sr.Get("/current", dep.SnapshotHandler.Current)
				sr.Get("/{version}", dep.SnapshotHandler.GetByVersion)
				sr.Put("/{version}/current", dep.SnapshotHandler.SetCurrent)
			})
		}
	})

	return r
}
