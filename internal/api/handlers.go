package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/zappedin/orchestrator/internal/intake"
	"github.com/zappedin/orchestrator/internal/notify"
	"github.com/zappedin/orchestrator/pkg/models"
)

// Handler holds dependencies for the HTTP handlers.
type Handler struct {
	intake *intake.Manager
	hub    *notify.Hub
	logger *zap.Logger
}

// NewHandler wires the handlers to the intake and event hub.
func NewHandler(intakeMgr *intake.Manager, hub *notify.Hub, logger *zap.Logger) *Handler {
	return &Handler{intake: intakeMgr, hub: hub, logger: logger}
}

// CreateActivation handles POST /v1/activations. The body is the deep-link
// payload: either an account id to resolve remotely or an inlined account
// record. Provisioning runs in the background; the response carries the
// ACTIVATING record and the outcome arrives on the event stream.
func (h *Handler) CreateActivation(w http.ResponseWriter, r *http.Request) {
	var req models.ActivateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	var (
		activation *models.Activation
		err        error
	)
	switch {
	case req.Account != nil:
		activation, err = h.intake.Activate(r.Context(), req.Account)
	case req.AccountID != "":
		activation, err = h.intake.ActivateByID(r.Context(), req.AccountID)
	default:
		http.Error(w, "either account or id is required", http.StatusBadRequest)
		return
	}

	if errors.Is(err, intake.ErrAlreadyActive) {
		writeJSON(w, http.StatusOK, activation)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusAccepted, activation)
}

// ListActivations handles GET /v1/activations.
func (h *Handler) ListActivations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.intake.List())
}

// GetActivation handles GET /v1/activations/{username}.
func (h *Handler) GetActivation(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	activation, err := h.intake.Get(username)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, activation)
}

// DeleteActivation handles DELETE /v1/activations/{username}.
func (h *Handler) DeleteActivation(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	if err := h.intake.Deactivate(r.Context(), username); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RotateProxy handles POST /v1/activations/{username}/rotate-proxy.
func (h *Handler) RotateProxy(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	var req models.RotateProxyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.intake.RotateProxy(r.Context(), username, req.Proxy); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "rotated",
		"proxy":  req.Proxy.ServerURL(),
	})
}

// GetState handles GET /v1/activations/{username}/state.
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	state, err := h.intake.State(username)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, state)
}

// SaveState handles POST /v1/activations/{username}/state/save.
func (h *Handler) SaveState(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	if err := h.intake.SaveState(username); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetScreenshot handles GET /v1/activations/{username}/screenshot.
func (h *Handler) GetScreenshot(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	data, err := h.intake.Screenshot(username)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Write(data)
}

// Health handles GET /v1/healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
