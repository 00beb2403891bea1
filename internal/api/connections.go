package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/valorwell/clinician-portal/internal/auth"
	httperrors "github.com/valorwell/clinician-portal/internal/http/errors"
	"github.com/valorwell/clinician-portal/internal/store"
)

// connectionView is the client-facing shape of a connection. Tokens never
// leave the server.
type connectionView struct {
	ID             string   `json:"id"`
	Provider       string   `json:"provider"`
	Email          string   `json:"email"`
	CalendarIDs    []string `json:"calendarIds"`
	IsActive       bool     `json:"isActive"`
	TokenExpiresAt string   `json:"tokenExpiresAt"`
	CreatedAt      string   `json:"createdAt"`
}

// ListConnections handles GET /api/connections.
func (h *Handler) ListConnections(w http.ResponseWriter, r *http.Request) {
	clinicianID, ok := auth.ClinicianFromContext(r.Context())
	if !ok {
		httperrors.JSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	conns, err := h.store.Connections.ListByClinician(r.Context(), clinicianID)
	if err != nil {
		httperrors.InternalError(w, r, err, "listing connections")
		return
	}

	views := make([]connectionView, 0, len(conns))
	for _, c := range conns {
		views = append(views, connectionView{
			ID:             c.ID.String(),
			Provider:       c.Provider,
			Email:          c.Email,
			CalendarIDs:    c.CalendarIDs,
			IsActive:       c.IsActive,
			TokenExpiresAt: c.TokenExpiresAt.UTC().Format(time.RFC3339),
			CreatedAt:      c.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	httperrors.WriteJSON(w, http.StatusOK, views)
}

// DeactivateConnection handles POST /api/connections/{id}/deactivate.
// Deactivated connections are skipped by sync passes but keep their mappings.
func (h *Handler) DeactivateConnection(w http.ResponseWriter, r *http.Request) {
	clinicianID, ok := auth.ClinicianFromContext(r.Context())
	if !ok {
		httperrors.JSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httperrors.BadRequestError(w, r, err, "invalid connection id")
		return
	}

	if err := h.store.Connections.Deactivate(r.Context(), clinicianID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httperrors.JSONError(w, http.StatusNotFound, "connection not found")
			return
		}
		httperrors.InternalError(w, r, err, "deactivating connection")
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}
