package sync

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/valorwell/clinician-portal/internal/nylas"
	"github.com/valorwell/clinician-portal/internal/store"
)

// fakeStore is an in-memory implementation of all four repositories. The
// engine runs a pass sequentially, so no locking is needed.
type fakeStore struct {
	conns []store.CalendarConnection
	appts map[uuid.UUID]*store.Appointment
	maps  map[uuid.UUID]*store.ExternalEventMapping

	lockBusy     bool
	releaseCount int
	tokenUpdates int

	listConnsErr        error
	updateTokensErr     error
	listMappingsErr     error
	createFromRemoteErr error
	applyRemoteErr      error
	cancelUnlinkErr     error
	updateHashErr       error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		appts: make(map[uuid.UUID]*store.Appointment),
		maps:  make(map[uuid.UUID]*store.ExternalEventMapping),
	}
}

func (f *fakeStore) GetByID(ctx context.Context, id uuid.UUID) (*store.CalendarConnection, error) {
	for i := range f.conns {
		if f.conns[i].ID == id {
			c := f.conns[i]
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) ListByClinician(ctx context.Context, clinicianID uuid.UUID) ([]store.CalendarConnection, error) {
	var out []store.CalendarConnection
	for _, c := range f.conns {
		if c.ClinicianID == clinicianID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) ListActiveByClinician(ctx context.Context, clinicianID uuid.UUID) ([]store.CalendarConnection, error) {
	if f.listConnsErr != nil {
		return nil, f.listConnsErr
	}
	var out []store.CalendarConnection
	for _, c := range f.conns {
		if c.ClinicianID == clinicianID && c.IsActive {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) ListCliniciansWithActive(ctx context.Context) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]bool)
	var out []uuid.UUID
	for _, c := range f.conns {
		if c.IsActive && !seen[c.ClinicianID] {
			seen[c.ClinicianID] = true
			out = append(out, c.ClinicianID)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateTokens(ctx context.Context, id uuid.UUID, accessToken, refreshToken string, expiresAt time.Time) error {
	if f.updateTokensErr != nil {
		return f.updateTokensErr
	}
	for i := range f.conns {
		if f.conns[i].ID == id {
			f.conns[i].AccessToken = accessToken
			f.conns[i].RefreshToken = refreshToken
			f.conns[i].TokenExpiresAt = expiresAt
			f.tokenUpdates++
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeStore) Deactivate(ctx context.Context, clinicianID, id uuid.UUID) error {
	for i := range f.conns {
		if f.conns[i].ID == id && f.conns[i].ClinicianID == clinicianID {
			f.conns[i].IsActive = false
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeStore) GetApptByID(ctx context.Context, id uuid.UUID) (*store.Appointment, error) {
	if a, ok := f.appts[id]; ok {
		c := *a
		return &c, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) ListApptsByClinician(ctx context.Context, clinicianID uuid.UUID, start, end time.Time) ([]store.Appointment, error) {
	var out []store.Appointment
	for _, a := range f.appts {
		if a.ClinicianID == clinicianID && !a.StartAt.Before(start) && a.StartAt.Before(end) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

func (f *fakeStore) ListUnmappedInWindow(ctx context.Context, clinicianID uuid.UUID, start, end time.Time) ([]store.Appointment, error) {
	var out []store.Appointment
	for _, a := range f.appts {
		if a.ClinicianID != clinicianID || a.Status == store.StatusCancelled {
			continue
		}
		if a.StartAt.Before(start) || !a.StartAt.Before(end) {
			continue
		}
		if f.mappingForAppointment(a.ID) != nil {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

func (f *fakeStore) Create(ctx context.Context, appt store.Appointment) (*store.Appointment, error) {
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	if appt.Status == "" {
		appt.Status = store.StatusScheduled
	}
	if appt.Timezone == "" {
		appt.Timezone = "UTC"
	}
	f.appts[appt.ID] = &appt
	c := appt
	return &c, nil
}

func (f *fakeStore) Update(ctx context.Context, appt store.Appointment) (*store.Appointment, error) {
	existing, ok := f.appts[appt.ID]
	if !ok || existing.ClinicianID != appt.ClinicianID {
		return nil, store.ErrNotFound
	}
	existing.Type = appt.Type
	existing.StartAt = appt.StartAt
	existing.EndAt = appt.EndAt
	existing.Notes = appt.Notes
	existing.Timezone = appt.Timezone
	c := *existing
	return &c, nil
}

func (f *fakeStore) Cancel(ctx context.Context, clinicianID, id uuid.UUID) error {
	a, ok := f.appts[id]
	if !ok || a.ClinicianID != clinicianID {
		return store.ErrNotFound
	}
	a.Status = store.StatusCancelled
	return nil
}

func (f *fakeStore) ListByConnection(ctx context.Context, connectionID uuid.UUID) ([]store.MappingWithAppointment, error) {
	if f.listMappingsErr != nil {
		return nil, f.listMappingsErr
	}
	return f.joined(connectionID, false), nil
}

func (f *fakeStore) ListForCancelled(ctx context.Context, connectionID uuid.UUID) ([]store.MappingWithAppointment, error) {
	return f.joined(connectionID, true), nil
}

func (f *fakeStore) joined(connectionID uuid.UUID, cancelledOnly bool) []store.MappingWithAppointment {
	var out []store.MappingWithAppointment
	for _, m := range f.maps {
		if m.ConnectionID != connectionID {
			continue
		}
		a, ok := f.appts[m.AppointmentID]
		if !ok {
			continue
		}
		if cancelledOnly && a.Status != store.StatusCancelled {
			continue
		}
		out = append(out, store.MappingWithAppointment{Mapping: *m, Appointment: *a})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Mapping.ExternalEventID < out[j].Mapping.ExternalEventID
	})
	return out
}

func (f *fakeStore) CreateMapping(ctx context.Context, m store.ExternalEventMapping) (*store.ExternalEventMapping, error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	f.maps[m.ID] = &m
	c := m
	return &c, nil
}

func (f *fakeStore) UpdateHash(ctx context.Context, id uuid.UUID, hash string) error {
	if f.updateHashErr != nil {
		return f.updateHashErr
	}
	m, ok := f.maps[id]
	if !ok {
		return store.ErrNotFound
	}
	m.SyncHash = hash
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := f.maps[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.maps, id)
	return nil
}

func (f *fakeStore) CreateFromRemote(ctx context.Context, rc store.RemoteCreate) (*store.Appointment, error) {
	if f.createFromRemoteErr != nil {
		return nil, f.createFromRemoteErr
	}
	tz := rc.Timezone
	if tz == "" {
		tz = "UTC"
	}
	appt := &store.Appointment{
		ID:          uuid.New(),
		ClinicianID: rc.ClinicianID,
		Type:        store.TypeExternalEvent,
		Status:      store.StatusScheduled,
		StartAt:     rc.StartAt,
		EndAt:       rc.EndAt,
		Notes:       rc.Notes,
		Timezone:    tz,
	}
	f.appts[appt.ID] = appt

	m := &store.ExternalEventMapping{
		ID:              uuid.New(),
		AppointmentID:   appt.ID,
		ConnectionID:    rc.ConnectionID,
		ExternalEventID: rc.ExternalEventID,
		SyncDirection:   store.DirectionInbound,
		SyncHash:        rc.SyncHash,
	}
	f.maps[m.ID] = m

	c := *appt
	return &c, nil
}

func (f *fakeStore) ApplyRemoteUpdate(ctx context.Context, ru store.RemoteUpdate) error {
	if f.applyRemoteErr != nil {
		return f.applyRemoteErr
	}
	a, ok := f.appts[ru.AppointmentID]
	if !ok {
		return store.ErrNotFound
	}
	m, ok := f.maps[ru.MappingID]
	if !ok {
		return store.ErrNotFound
	}
	a.StartAt = ru.StartAt
	a.EndAt = ru.EndAt
	a.Notes = ru.Notes
	m.SyncHash = ru.SyncHash
	return nil
}

func (f *fakeStore) CancelAndUnlink(ctx context.Context, appointmentID, mappingID uuid.UUID) error {
	if f.cancelUnlinkErr != nil {
		return f.cancelUnlinkErr
	}
	a, ok := f.appts[appointmentID]
	if !ok {
		return store.ErrNotFound
	}
	a.Status = store.StatusCancelled
	delete(f.maps, mappingID)
	return nil
}

func (f *fakeStore) AcquireClinicianLock(ctx context.Context, clinicianID uuid.UUID) (func(), bool, error) {
	if f.lockBusy {
		return nil, false, nil
	}
	return func() { f.releaseCount++ }, true, nil
}

func (f *fakeStore) mappingForAppointment(apptID uuid.UUID) *store.ExternalEventMapping {
	for _, m := range f.maps {
		if m.AppointmentID == apptID {
			return m
		}
	}
	return nil
}

// apptRepoAdapter resolves the method-name collisions between the fake's
// appointment operations and its connection operations.
type apptRepoAdapter struct{ f *fakeStore }

func (a apptRepoAdapter) GetByID(ctx context.Context, id uuid.UUID) (*store.Appointment, error) {
	return a.f.GetApptByID(ctx, id)
}

func (a apptRepoAdapter) ListByClinician(ctx context.Context, clinicianID uuid.UUID, start, end time.Time) ([]store.Appointment, error) {
	return a.f.ListApptsByClinician(ctx, clinicianID, start, end)
}

func (a apptRepoAdapter) ListUnmappedInWindow(ctx context.Context, clinicianID uuid.UUID, start, end time.Time) ([]store.Appointment, error) {
	return a.f.ListUnmappedInWindow(ctx, clinicianID, start, end)
}

func (a apptRepoAdapter) Create(ctx context.Context, appt store.Appointment) (*store.Appointment, error) {
	return a.f.Create(ctx, appt)
}

func (a apptRepoAdapter) Update(ctx context.Context, appt store.Appointment) (*store.Appointment, error) {
	return a.f.Update(ctx, appt)
}

func (a apptRepoAdapter) Cancel(ctx context.Context, clinicianID, id uuid.UUID) error {
	return a.f.Cancel(ctx, clinicianID, id)
}

// mappingRepoAdapter exposes the fake's mapping operations under the
// repository's method names.
type mappingRepoAdapter struct{ f *fakeStore }

func (a mappingRepoAdapter) ListByConnection(ctx context.Context, connectionID uuid.UUID) ([]store.MappingWithAppointment, error) {
	return a.f.ListByConnection(ctx, connectionID)
}

func (a mappingRepoAdapter) ListForCancelled(ctx context.Context, connectionID uuid.UUID) ([]store.MappingWithAppointment, error) {
	return a.f.ListForCancelled(ctx, connectionID)
}

func (a mappingRepoAdapter) Create(ctx context.Context, m store.ExternalEventMapping) (*store.ExternalEventMapping, error) {
	return a.f.CreateMapping(ctx, m)
}

func (a mappingRepoAdapter) UpdateHash(ctx context.Context, id uuid.UUID, hash string) error {
	return a.f.UpdateHash(ctx, id, hash)
}

func (a mappingRepoAdapter) Delete(ctx context.Context, id uuid.UUID) error {
	return a.f.Delete(ctx, id)
}

// fakeAPI is an in-memory external calendar. Created events echo the request
// the way the real provider does.
type fakeAPI struct {
	events []nylas.Event
	nextID int

	listErr     error
	createErr   error
	updateErr   error
	deleteErr   error
	refreshErr  error
	refreshed   *nylas.Token
	failListFor uuid.UUID

	listCalls    int
	createCalls  int
	updateCalls  int
	deleteCalls  int
	refreshCalls int
}

func (f *fakeAPI) ListEvents(ctx context.Context, conn *store.CalendarConnection, start, end time.Time) ([]nylas.Event, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	if f.failListFor != uuid.Nil && conn.ID == f.failListFor {
		return nil, &nylas.APIError{StatusCode: 500, Message: "backend unavailable"}
	}
	var out []nylas.Event
	for _, ev := range f.events {
		if ev.When.StartTime >= start.Unix() && ev.When.StartTime < end.Unix() {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeAPI) CreateEvent(ctx context.Context, conn *store.CalendarConnection, req nylas.EventRequest) (*nylas.Event, error) {
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	ev := nylas.Event{
		ID:          fmt.Sprintf("ev-%d", f.nextID),
		CalendarID:  req.CalendarID,
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		When:        req.When,
	}
	f.events = append(f.events, ev)
	c := ev
	return &c, nil
}

func (f *fakeAPI) UpdateEvent(ctx context.Context, conn *store.CalendarConnection, eventID string, upd nylas.EventUpdate) (*nylas.Event, error) {
	f.updateCalls++
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	for i := range f.events {
		if f.events[i].ID == eventID {
			f.events[i].Title = upd.Title
			f.events[i].When = upd.When
			c := f.events[i]
			return &c, nil
		}
	}
	return nil, &nylas.APIError{StatusCode: 404, Message: "event not found"}
}

func (f *fakeAPI) DeleteEvent(ctx context.Context, conn *store.CalendarConnection, eventID string) error {
	f.deleteCalls++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for i := range f.events {
		if f.events[i].ID == eventID {
			f.events = append(f.events[:i], f.events[i+1:]...)
			break
		}
	}
	// Absent events are fine; the client swallows 404 on delete.
	return nil
}

func (f *fakeAPI) RefreshToken(ctx context.Context, refreshToken string) (*nylas.Token, error) {
	f.refreshCalls++
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	if f.refreshed != nil {
		c := *f.refreshed
		return &c, nil
	}
	return &nylas.Token{
		AccessToken:  "refreshed-access",
		RefreshToken: "refreshed-refresh",
		ExpiresAt:    time.Now().Add(time.Hour),
	}, nil
}

var testBase = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newTestEngine(fs *fakeStore, api *fakeAPI) *Engine {
	return &Engine{
		connections:  fs,
		appointments: apptRepoAdapter{fs},
		mappings:     mappingRepoAdapter{fs},
		atomic:       fs,
		api:          api,
		now:          func() time.Time { return testBase },
	}
}

func testConnection(clinicianID uuid.UUID) store.CalendarConnection {
	return store.CalendarConnection{
		ID:             uuid.New(),
		ClinicianID:    clinicianID,
		Provider:       "google",
		Email:          "clinician@example.com",
		AccessToken:    "access",
		RefreshToken:   "refresh",
		TokenExpiresAt: testBase.Add(2 * time.Hour),
		CalendarIDs:    []string{"primary"},
		IsActive:       true,
	}
}

func addAppointment(fs *fakeStore, clinicianID uuid.UUID, startOffset time.Duration) *store.Appointment {
	appt := &store.Appointment{
		ID:          uuid.New(),
		ClinicianID: clinicianID,
		Type:        "Therapy Session",
		Status:      store.StatusScheduled,
		StartAt:     testBase.Add(startOffset),
		EndAt:       testBase.Add(startOffset + time.Hour),
		Timezone:    "UTC",
	}
	fs.appts[appt.ID] = appt
	return appt
}

func addMapping(fs *fakeStore, apptID, connID uuid.UUID, eventID, hash string) *store.ExternalEventMapping {
	m := &store.ExternalEventMapping{
		ID:              uuid.New(),
		AppointmentID:   apptID,
		ConnectionID:    connID,
		ExternalEventID: eventID,
		SyncDirection:   store.DirectionOutbound,
		SyncHash:        hash,
	}
	fs.maps[m.ID] = m
	return m
}

func remoteEvent(id string, startOffset time.Duration) nylas.Event {
	start := testBase.Add(startOffset)
	return nylas.Event{
		ID:    id,
		Title: "Dentist",
		When:  eventWhen(start, start.Add(time.Hour)),
	}
}

func eventWhen(start, end time.Time) nylas.When {
	return nylas.When{StartTime: start.Unix(), EndTime: end.Unix()}
}
