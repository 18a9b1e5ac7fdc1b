package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mihaimyh/lemongate/pkg/billing"
	"github.com/mihaimyh/lemongate/pkg/users"
)

const maxEmailLen = 320

// Handler provides HTTP endpoints for reading and reconciling user records
type Handler struct {
	config Config
}

// GetUser returns the stored record for the requesting user. A user with no
// record yet is reported as 404.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		h.handleError(w, r, fmt.Errorf("method not allowed"), http.StatusMethodNotAllowed)
		return
	}

	email, ok := h.email(w, r)
	if !ok {
		return
	}

	rec, err := h.config.Store.GetUser(r.Context(), email)
	switch {
	case errors.Is(err, users.ErrUserNotFound):
		h.handleError(w, r, err, http.StatusNotFound)
		return
	case errors.Is(err, users.ErrStorageUnavailable):
		h.internalError(w, r, "store unavailable", err, http.StatusServiceUnavailable)
		return
	case err != nil:
		h.internalError(w, r, "failed to load user", err)
		return
	}

	writeJSON(w, http.StatusOK, newUserResponse(rec))
}

// SyncUser pulls the user's current subscription from the billing provider
// and writes it to the store.
func (h *Handler) SyncUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		h.handleError(w, r, fmt.Errorf("method not allowed"), http.StatusMethodNotAllowed)
		return
	}
	if h.config.Syncer == nil {
		h.handleError(w, r, billing.ErrProviderNotConfigured, http.StatusNotImplemented)
		return
	}

	email, ok := h.email(w, r)
	if !ok {
		return
	}

	plan, err := h.config.Syncer.SyncUser(r.Context(), email)
	switch {
	case errors.Is(err, billing.ErrCustomerNotFound):
		h.handleError(w, r, err, http.StatusNotFound)
		return
	case errors.Is(err, billing.ErrProviderNotConfigured):
		h.handleError(w, r, err, http.StatusServiceUnavailable)
		return
	case errors.Is(err, billing.ErrProviderAPIError):
		h.internalError(w, r, "provider sync failed", err, http.StatusBadGateway)
		return
	case err != nil:
		h.internalError(w, r, "sync failed", err)
		return
	}

	writeJSON(w, http.StatusOK, SyncResponse{
		Email:        email,
		Subscription: plan,
		Synced:       true,
	})
}

func (h *Handler) email(w http.ResponseWriter, r *http.Request) (string, bool) {
	email := strings.TrimSpace(h.config.GetEmail(r))
	if email == "" {
		h.handleError(w, r, fmt.Errorf("user email not found"), http.StatusUnauthorized)
		return "", false
	}
	if len(email) > maxEmailLen || strings.ContainsAny(email, "/\x00") {
		h.handleError(w, r, users.ErrInvalidEmail, http.StatusBadRequest)
		return "", false
	}
	return email, true
}

// internalError logs the cause and hides it from the client.
func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, msg string, err error, status ...int) {
	h.config.Logger.Error(msg,
		billing.Field{Key: "path", Value: r.URL.Path},
		billing.Field{Key: "error", Value: err.Error()},
	)
	code := http.StatusInternalServerError
	if len(status) > 0 {
		code = status[0]
	}
	if h.config.OnError != nil {
		h.config.OnError(w, r, err)
		return
	}
	writeJSON(w, code, map[string]string{"error": http.StatusText(code)})
}

// handleError handles errors with appropriate HTTP status codes
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	if h.config.OnError != nil {
		h.config.OnError(w, r, err)
		return
	}
	writeJSON(w, statusCode, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
