package sync

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/valorwell/clinician-portal/internal/metrics"
	"github.com/valorwell/clinician-portal/internal/nylas"
	"github.com/valorwell/clinician-portal/internal/store"
)

// CalendarAPI is the slice of the external calendar provider the engine
// depends on. *nylas.Client implements it; tests supply fakes.
type CalendarAPI interface {
	ListEvents(ctx context.Context, conn *store.CalendarConnection, start, end time.Time) ([]nylas.Event, error)
	CreateEvent(ctx context.Context, conn *store.CalendarConnection, req nylas.EventRequest) (*nylas.Event, error)
	UpdateEvent(ctx context.Context, conn *store.CalendarConnection, eventID string, upd nylas.EventUpdate) (*nylas.Event, error)
	DeleteEvent(ctx context.Context, conn *store.CalendarConnection, eventID string) error
	RefreshToken(ctx context.Context, refreshToken string) (*nylas.Token, error)
}

// Counts tallies applied operations for one direction.
type Counts struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
}

func (c *Counts) add(o Counts) {
	c.Created += o.Created
	c.Updated += o.Updated
	c.Deleted += o.Deleted
}

// Total returns the number of operations applied.
func (c Counts) Total() int {
	return c.Created + c.Updated + c.Deleted
}

// Summary aggregates one full bidirectional pass across all of a
// clinician's active connections. Local counts changes applied to
// appointments; Remote counts changes pushed to the external calendar.
type Summary struct {
	Connections int
	Local       Counts
	Remote      Counts
	Errors      []SyncError
}

// ReconcileResult is the outcome of one direction on one connection.
type ReconcileResult struct {
	Counts Counts
	Errors []ItemError
}

// Engine drives bidirectional reconciliation between local appointments and
// external calendar events.
type Engine struct {
	connections  store.ConnectionRepository
	appointments store.AppointmentRepository
	mappings     store.MappingRepository
	atomic       store.SyncRepository
	api          CalendarAPI
	now          func() time.Time
}

func NewEngine(st *store.Store, api CalendarAPI) *Engine {
	return &Engine{
		connections:  st.Connections,
		appointments: st.Appointments,
		mappings:     st.Mappings,
		atomic:       st.Sync,
		api:          api,
		now:          time.Now,
	}
}

// SyncClinician runs one bidirectional pass over [start, end) for every
// active connection of the clinician, sequentially. A connection-level
// failure aborts only that connection's pass; item failures abort only the
// item. Returns ErrSyncInProgress when another pass holds the clinician's
// lock.
func (e *Engine) SyncClinician(ctx context.Context, clinicianID uuid.UUID, start, end time.Time) (*Summary, error) {
	release, acquired, err := e.atomic.AcquireClinicianLock(ctx, clinicianID)
	if err != nil {
		return nil, fmt.Errorf("acquire clinician lock: %w", err)
	}
	if !acquired {
		return nil, ErrSyncInProgress
	}
	defer release()

	passStart := e.now()
	conns, err := e.connections.ListActiveByClinician(ctx, clinicianID)
	if err != nil {
		return nil, fmt.Errorf("list active connections: %w", err)
	}

	summary := &Summary{Connections: len(conns)}
	if len(conns) == 0 {
		return summary, nil
	}

	for i := range conns {
		e.syncConnection(ctx, &conns[i], start, end, summary)
	}

	outcome := "success"
	if len(summary.Errors) > 0 {
		outcome = "partial"
	}
	metrics.ObserveSyncPass(outcome, passStart)
	log.Printf("[INFO] sync for clinician %s: connections=%d local=%+v remote=%+v errors=%d",
		clinicianID, summary.Connections, summary.Local, summary.Remote, len(summary.Errors))

	return summary, nil
}

func (e *Engine) syncConnection(ctx context.Context, conn *store.CalendarConnection, start, end time.Time, summary *Summary) {
	conn, err := e.ensureFreshCredentials(ctx, conn)
	if err != nil {
		e.recordConnectionError(summary, conn, err, "credential_refresh")
		return
	}

	events, remoteIDs, err := e.fetchRemoteEvents(ctx, conn, start, end)
	if err != nil {
		e.recordConnectionError(summary, conn, err, "fetch")
		return
	}

	inbound, err := e.reconcileInbound(ctx, conn, events, remoteIDs, start, end)
	summary.Local.add(inbound.Counts)
	e.recordItemErrors(summary, conn, inbound.Errors)
	if err != nil {
		e.recordConnectionError(summary, conn, err, "inbound")
		return
	}

	outbound := e.reconcileOutbound(ctx, conn, remoteIDs, start, end)
	summary.Remote.add(outbound.Counts)
	e.recordItemErrors(summary, conn, outbound.Errors)
}

func (e *Engine) recordConnectionError(summary *Summary, conn *store.CalendarConnection, err error, kind string) {
	metrics.RecordConnectionFailure(kind)
	cerr := &ConnectionError{ConnectionID: conn.ID, Err: err}
	log.Printf("[WARN] sync skipping %s", cerr)
	summary.Errors = append(summary.Errors, SyncError{
		ConnectionID: conn.ID.String(),
		Message:      err.Error(),
	})
}

func (e *Engine) recordItemErrors(summary *Summary, conn *store.CalendarConnection, errs []ItemError) {
	for _, ie := range errs {
		summary.Errors = append(summary.Errors, SyncError{
			ConnectionID: conn.ID.String(),
			ItemID:       ie.ID,
			Message:      ie.Err.Error(),
		})
	}
}
