package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/valorwell/clinician-portal/internal/auth"
	httperrors "github.com/valorwell/clinician-portal/internal/http/errors"
	"github.com/valorwell/clinician-portal/internal/sync"
)

type syncRequest struct {
	Action      string `json:"action"`
	ClinicianID string `json:"clinicianId"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
}

type syncStats struct {
	Local  sync.Counts `json:"local"`
	Remote sync.Counts `json:"remote"`
}

type syncResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Errors  []sync.SyncError `json:"errors,omitempty"`
	Stats   syncStats        `json:"stats"`
}

// CalendarSync handles POST /api/calendar-sync. The request names the
// clinician explicitly; it must match the authenticated clinician.
func (h *Handler) CalendarSync(w http.ResponseWriter, r *http.Request) {
	authed, ok := auth.ClinicianFromContext(r.Context())
	if !ok {
		httperrors.JSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.BadRequestError(w, r, err, "invalid request body")
		return
	}

	if req.Action != "sync_bidirectional" {
		httperrors.BadRequestError(w, r, fmt.Errorf("unsupported action %q", req.Action), "unsupported action")
		return
	}

	clinicianID, err := uuid.Parse(req.ClinicianID)
	if err != nil {
		httperrors.BadRequestError(w, r, err, "clinicianId must be a valid UUID")
		return
	}
	if clinicianID != authed {
		httperrors.JSONError(w, http.StatusForbidden, "cannot sync another clinician's calendar")
		return
	}

	start, end, err := h.syncWindow(req.StartDate, req.EndDate)
	if err != nil {
		httperrors.BadRequestError(w, r, err, err.Error())
		return
	}

	summary, err := h.engine.SyncClinician(r.Context(), clinicianID, start, end)
	if err != nil {
		if errors.Is(err, sync.ErrSyncInProgress) {
			httperrors.JSONError(w, http.StatusConflict, "a sync for this clinician is already running")
			return
		}
		httperrors.InternalError(w, r, err, "calendar sync failed")
		return
	}

	resp := syncResponse{
		Success: len(summary.Errors) == 0,
		Message: syncMessage(summary),
		Errors:  summary.Errors,
		Stats: syncStats{
			Local:  summary.Local,
			Remote: summary.Remote,
		},
	}
	httperrors.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) syncWindow(startDate, endDate string) (time.Time, time.Time, error) {
	if startDate == "" && endDate == "" {
		start, end := h.defaultWindow(time.Now())
		return start, end, nil
	}

	start, err := parseAPIDate(startDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("startDate: %w", err)
	}
	end, err := parseAPIDate(endDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("endDate: %w", err)
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("endDate must be after startDate")
	}
	return start, end, nil
}

// parseAPIDate accepts RFC 3339 instants or bare calendar dates.
func parseAPIDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("missing date")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected RFC 3339 or YYYY-MM-DD, got %q", s)
	}
	return t.UTC(), nil
}

func syncMessage(summary *sync.Summary) string {
	if summary.Connections == 0 {
		return "No active calendar connections to sync"
	}
	if n := len(summary.Errors); n > 0 {
		return fmt.Sprintf("Sync completed with %d errors", n)
	}
	return fmt.Sprintf("Sync completed: %d local and %d remote changes",
		summary.Local.Total(), summary.Remote.Total())
}
