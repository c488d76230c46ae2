package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bryclee/taskcheck/internal/command"
	"github.com/bryclee/taskcheck/internal/graph"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *graph.Service, commands *command.Registry, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc, commands)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Blocks.
	r.Get("/blocks/{id}", h.GetBlock)
	r.Put("/blocks/{id}", h.UpdateBlock)

	// Property queries.
	r.Get("/query", h.Query)

	// Editor commands.
	r.Get("/commands", h.ListCommands)
	r.Post("/commands/{name}", h.InvokeCommand)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
