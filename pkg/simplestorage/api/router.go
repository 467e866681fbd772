package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/tendant/simple-storage/pkg/simplestorage"
)

// ActorHeader carries the identity checked by the service's Authorizer.
const ActorHeader = "X-Actor"

// NewRouter assembles the full HTTP API for the storage service
func NewRouter(service simplestorage.Service) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(ActorMiddleware)

	r.Get("/health", handleHealth)

	nodes := NewNodesHandler(service)
	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/files", NewFilesHandler(service).Routes())
		r.Mount("/folders", NewFoldersHandler(service).Routes())
		r.Delete("/nodes", nodes.DeleteNodes)
		r.Post("/purge", nodes.PurgeOrphans)
	})

	return r
}

// ActorMiddleware copies the actor identity from the request header into the
// request context for the Authorizer.
func ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if actor := r.Header.Get(ActorHeader); actor != "" {
			r = r.WithContext(simplestorage.WithActor(r.Context(), actor))
		}
		next.ServeHTTP(w, r)
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "healthy"})
}
