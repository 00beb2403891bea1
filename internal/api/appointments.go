package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/valorwell/clinician-portal/internal/auth"
	httperrors "github.com/valorwell/clinician-portal/internal/http/errors"
	"github.com/valorwell/clinician-portal/internal/store"
)

type appointmentView struct {
	ID          string  `json:"id"`
	ClinicianID string  `json:"clinicianId"`
	ClientID    *string `json:"clientId,omitempty"`
	Type        string  `json:"type"`
	Status      string  `json:"status"`
	StartAt     string  `json:"startAt"`
	EndAt       string  `json:"endAt"`
	Notes       string  `json:"notes,omitempty"`
	Timezone    string  `json:"timezone"`
}

func toAppointmentView(a store.Appointment) appointmentView {
	v := appointmentView{
		ID:          a.ID.String(),
		ClinicianID: a.ClinicianID.String(),
		Type:        a.Type,
		Status:      a.Status,
		StartAt:     a.StartAt.UTC().Format(time.RFC3339),
		EndAt:       a.EndAt.UTC().Format(time.RFC3339),
		Notes:       a.Notes,
		Timezone:    a.Timezone,
	}
	if a.ClientID != nil {
		s := a.ClientID.String()
		v.ClientID = &s
	}
	return v
}

type appointmentRequest struct {
	ClientID *string `json:"clientId"`
	Type     string  `json:"type"`
	StartAt  string  `json:"startAt"`
	EndAt    string  `json:"endAt"`
	Notes    string  `json:"notes"`
	Timezone string  `json:"timezone"`
}

// ListAppointments handles GET /api/appointments?start=...&end=...
func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	clinicianID, ok := auth.ClinicianFromContext(r.Context())
	if !ok {
		httperrors.JSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	start, end := h.defaultWindow(time.Now())
	if qs := r.URL.Query().Get("start"); qs != "" {
		t, err := parseAPIDate(qs)
		if err != nil {
			httperrors.BadRequestError(w, r, err, "invalid start date")
			return
		}
		start = t
	}
	if qe := r.URL.Query().Get("end"); qe != "" {
		t, err := parseAPIDate(qe)
		if err != nil {
			httperrors.BadRequestError(w, r, err, "invalid end date")
			return
		}
		end = t
	}

	appts, err := h.store.Appointments.ListByClinician(r.Context(), clinicianID, start, end)
	if err != nil {
		httperrors.InternalError(w, r, err, "listing appointments")
		return
	}

	views := make([]appointmentView, 0, len(appts))
	for _, a := range appts {
		views = append(views, toAppointmentView(a))
	}
	httperrors.WriteJSON(w, http.StatusOK, views)
}

// CreateAppointment handles POST /api/appointments.
func (h *Handler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	clinicianID, ok := auth.ClinicianFromContext(r.Context())
	if !ok {
		httperrors.JSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req appointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.BadRequestError(w, r, err, "invalid request body")
		return
	}

	appt, err := appointmentFromRequest(req, clinicianID)
	if err != nil {
		httperrors.BadRequestError(w, r, err, err.Error())
		return
	}

	created, err := h.store.Appointments.Create(r.Context(), *appt)
	if err != nil {
		httperrors.InternalError(w, r, err, "creating appointment")
		return
	}
	httperrors.WriteJSON(w, http.StatusCreated, toAppointmentView(*created))
}

// UpdateAppointment handles PUT /api/appointments/{id}.
func (h *Handler) UpdateAppointment(w http.ResponseWriter, r *http.Request) {
	clinicianID, ok := auth.ClinicianFromContext(r.Context())
	if !ok {
		httperrors.JSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httperrors.BadRequestError(w, r, err, "invalid appointment id")
		return
	}

	existing, err := h.store.Appointments.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httperrors.JSONError(w, http.StatusNotFound, "appointment not found")
			return
		}
		httperrors.InternalError(w, r, err, "loading appointment")
		return
	}
	if existing.ClinicianID != clinicianID {
		httperrors.JSONError(w, http.StatusNotFound, "appointment not found")
		return
	}
	if existing.Status == store.StatusCancelled {
		httperrors.JSONError(w, http.StatusConflict, "cancelled appointments cannot be modified")
		return
	}

	var req appointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.BadRequestError(w, r, err, "invalid request body")
		return
	}

	appt, err := appointmentFromRequest(req, clinicianID)
	if err != nil {
		httperrors.BadRequestError(w, r, err, err.Error())
		return
	}
	appt.ID = id
	appt.Status = existing.Status

	updated, err := h.store.Appointments.Update(r.Context(), *appt)
	if err != nil {
		httperrors.InternalError(w, r, err, "updating appointment")
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, toAppointmentView(*updated))
}

// CancelAppointment handles POST /api/appointments/{id}/cancel. Cancellation
// is terminal; the next sync pass removes the remote copy.
func (h *Handler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	clinicianID, ok := auth.ClinicianFromContext(r.Context())
	if !ok {
		httperrors.JSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httperrors.BadRequestError(w, r, err, "invalid appointment id")
		return
	}

	if err := h.store.Appointments.Cancel(r.Context(), clinicianID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httperrors.JSONError(w, http.StatusNotFound, "appointment not found")
			return
		}
		httperrors.InternalError(w, r, err, "cancelling appointment")
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ExportAppointmentsICS handles GET /api/appointments/export.ics so
// clinicians can pull their schedule into any calendar client.
func (h *Handler) ExportAppointmentsICS(w http.ResponseWriter, r *http.Request) {
	clinicianID, ok := auth.ClinicianFromContext(r.Context())
	if !ok {
		httperrors.JSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	start, end := h.defaultWindow(time.Now())
	appts, err := h.store.Appointments.ListByClinician(r.Context(), clinicianID, start, end)
	if err != nil {
		httperrors.InternalError(w, r, err, "listing appointments for export")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="appointments.ics"`)
	_, _ = w.Write([]byte(BuildCalendar(appts)))
}

func appointmentFromRequest(req appointmentRequest, clinicianID uuid.UUID) (*store.Appointment, error) {
	startAt, err := parseAPIDate(req.StartAt)
	if err != nil {
		return nil, errors.New("startAt must be an RFC 3339 timestamp")
	}
	endAt, err := parseAPIDate(req.EndAt)
	if err != nil {
		return nil, errors.New("endAt must be an RFC 3339 timestamp")
	}
	if !endAt.After(startAt) {
		return nil, errors.New("endAt must be after startAt")
	}

	appt := &store.Appointment{
		ClinicianID: clinicianID,
		Type:        req.Type,
		StartAt:     startAt,
		EndAt:       endAt,
		Notes:       req.Notes,
		Timezone:    req.Timezone,
	}
	if req.ClientID != nil && *req.ClientID != "" {
		clientID, err := uuid.Parse(*req.ClientID)
		if err != nil {
			return nil, errors.New("clientId must be a valid UUID")
		}
		appt.ClientID = &clientID
	}
	return appt, nil
}
