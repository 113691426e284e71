package rest

import (
	"net/http"

	"github.com/gorilla/mux"

	"gmessagerie/auth"
)

// NewRouter wires the public endpoints, the authenticated API subrouter
// and the WebSocket handshake into one mux router.
func NewRouter(h *Handlers, wsHandler http.Handler, authenticator *auth.SessionAuthenticator) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/register", h.Register).Methods(http.MethodPost)
	r.HandleFunc("/api/login", h.Login).Methods(http.MethodPost)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(RequireAuth(authenticator))
	api.HandleFunc("/users", h.ListUsers).Methods(http.MethodGet)
	api.HandleFunc("/users/{id:[0-9]+}", h.UserDetail).Methods(http.MethodGet)
	api.HandleFunc("/messages", h.History).Methods(http.MethodGet)
	api.HandleFunc("/messages", h.SendMessage).Methods(http.MethodPost)

	// The WebSocket handshake authenticates itself via the token query
	// parameter, so it sits outside the bearer-header middleware.
	r.Handle("/ws", wsHandler)

	return r
}
