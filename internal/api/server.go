package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/zappedin/orchestrator/internal/ratelimit"
)

// SetupRoutes configures the deep-link delivery API. The server binds to
// loopback: the only callers are the protocol-handler shim and the desktop
// shell.
func (h *Handler) SetupRoutes(limiter *ratelimit.Limiter) *mux.Router {
	r := mux.NewRouter()

	api := r.PathPrefix("/v1").Subrouter()

	// Activation endpoints (rate limited per account).
	limited := api.PathPrefix("").Subrouter()
	limited.Use(RateLimitMiddleware(limiter))
	limited.HandleFunc("/activations", h.CreateActivation).Methods("POST")
	limited.HandleFunc("/activations/{username}/rotate-proxy", h.RotateProxy).Methods("POST")

	// Inspection endpoints (not rate limited).
	api.HandleFunc("/activations", h.ListActivations).Methods("GET")
	api.HandleFunc("/activations/{username}", h.GetActivation).Methods("GET")
	api.HandleFunc("/activations/{username}", h.DeleteActivation).Methods("DELETE")
	api.HandleFunc("/activations/{username}/state", h.GetState).Methods("GET")
	api.HandleFunc("/activations/{username}/state/save", h.SaveState).Methods("POST")
	api.HandleFunc("/activations/{username}/screenshot", h.GetScreenshot).Methods("GET")

	// Event stream for the desktop shell.
	api.HandleFunc("/events", h.hub.HandleConnection).Methods("GET")

	api.HandleFunc("/healthz", h.Health).Methods("GET")

	r.Use(corsMiddleware)

	return r
}

// corsMiddleware lets the shell's renderer process call the API.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
