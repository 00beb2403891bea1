package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/valorwell/clinician-portal/internal/auth"
	"github.com/valorwell/clinician-portal/internal/config"
	"github.com/valorwell/clinician-portal/internal/store"
	"github.com/valorwell/clinician-portal/internal/sync"
)

type fakeEngine struct {
	summary *sync.Summary
	err     error

	gotClinician uuid.UUID
	gotStart     time.Time
	gotEnd       time.Time
	calls        int
}

func (f *fakeEngine) SyncClinician(ctx context.Context, clinicianID uuid.UUID, start, end time.Time) (*sync.Summary, error) {
	f.calls++
	f.gotClinician = clinicianID
	f.gotStart = start
	f.gotEnd = end
	if f.err != nil {
		return nil, f.err
	}
	if f.summary != nil {
		return f.summary, nil
	}
	return &sync.Summary{Connections: 1}, nil
}

type fakeAppointments struct {
	store.AppointmentRepository

	appts     []store.Appointment
	byID      map[uuid.UUID]*store.Appointment
	listErr   error
	cancelErr error

	created *store.Appointment
	updated *store.Appointment
}

func (f *fakeAppointments) GetByID(ctx context.Context, id uuid.UUID) (*store.Appointment, error) {
	if a, ok := f.byID[id]; ok {
		c := *a
		return &c, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeAppointments) ListByClinician(ctx context.Context, clinicianID uuid.UUID, start, end time.Time) ([]store.Appointment, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.appts, nil
}

func (f *fakeAppointments) Create(ctx context.Context, appt store.Appointment) (*store.Appointment, error) {
	appt.ID = uuid.New()
	if appt.Status == "" {
		appt.Status = store.StatusScheduled
	}
	f.created = &appt
	c := appt
	return &c, nil
}

func (f *fakeAppointments) Update(ctx context.Context, appt store.Appointment) (*store.Appointment, error) {
	f.updated = &appt
	c := appt
	return &c, nil
}

func (f *fakeAppointments) Cancel(ctx context.Context, clinicianID, id uuid.UUID) error {
	return f.cancelErr
}

type fakeConnections struct {
	store.ConnectionRepository

	conns         []store.CalendarConnection
	deactivateErr error
}

func (f *fakeConnections) ListByClinician(ctx context.Context, clinicianID uuid.UUID) ([]store.CalendarConnection, error) {
	return f.conns, nil
}

func (f *fakeConnections) Deactivate(ctx context.Context, clinicianID, id uuid.UUID) error {
	return f.deactivateErr
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Sync.LookbackDays = 7
	cfg.Sync.LookaheadDays = 30
	return cfg
}

// serve routes the request through a chi router with the clinician already
// authenticated, mirroring how the real middleware stack delivers requests.
func serve(h *Handler, clinicianID uuid.UUID, r *http.Request) *httptest.ResponseRecorder {
	router := chi.NewRouter()
	router.Post("/api/calendar-sync", h.CalendarSync)
	router.Get("/api/appointments", h.ListAppointments)
	router.Post("/api/appointments", h.CreateAppointment)
	router.Get("/api/appointments/export.ics", h.ExportAppointmentsICS)
	router.Put("/api/appointments/{id}", h.UpdateAppointment)
	router.Post("/api/appointments/{id}/cancel", h.CancelAppointment)
	router.Get("/api/connections", h.ListConnections)
	router.Post("/api/connections/{id}/deactivate", h.DeactivateConnection)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, r.WithContext(auth.WithClinician(r.Context(), clinicianID)))
	return rec
}
