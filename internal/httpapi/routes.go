package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// SetupRoutes builds the router with the session API and the realtime
// endpoint injected.
func SetupRoutes(a *API, relay http.HandlerFunc) http.Handler {
	r := chi.NewRouter()

	r.Post("/pair-quiz/create/", a.CreateSession)
	r.Post("/pair-quiz/join/", a.JoinSession)
	r.Get("/pair-quiz/{sessionID}/", a.GetSession)
	r.Post("/pair-quiz/{sessionID}/cancel/", a.CancelSession)
	r.Get("/ws", relay)
	r.Get("/healthz", Healthz)
	return r
}
