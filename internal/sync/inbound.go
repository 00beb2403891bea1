package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/valorwell/clinician-portal/internal/metrics"
	"github.com/valorwell/clinician-portal/internal/nylas"
	"github.com/valorwell/clinician-portal/internal/store"
)

// reconcileInbound applies external changes onto local appointments and
// mappings. Each event is handled independently; a failure is recorded and
// the loop continues. The returned error covers only the initial mapping
// load, which prevents any inbound work for the connection.
func (e *Engine) reconcileInbound(ctx context.Context, conn *store.CalendarConnection, events []nylas.Event, remoteIDs map[string]struct{}, start, end time.Time) (ReconcileResult, error) {
	var res ReconcileResult

	mappings, err := e.mappings.ListByConnection(ctx, conn.ID)
	if err != nil {
		return res, fmt.Errorf("load mappings: %w", err)
	}

	byEventID := make(map[string]*store.MappingWithAppointment, len(mappings))
	for i := range mappings {
		byEventID[mappings[i].Mapping.ExternalEventID] = &mappings[i]
	}

	for _, ev := range events {
		if err := e.applyRemoteEvent(ctx, conn, ev, byEventID, &res); err != nil {
			res.Errors = append(res.Errors, ItemError{ID: ev.ID, Err: err})
		}
	}

	// Mappings whose remote event vanished from the window: cancel the
	// appointment and drop the mapping in one atomic operation. Cancelled
	// appointments are left to the outbound deletion phase.
	for i := range mappings {
		m := &mappings[i]
		if _, present := remoteIDs[m.Mapping.ExternalEventID]; present {
			continue
		}
		if m.Appointment.Status == store.StatusCancelled {
			continue
		}
		startAt := m.Appointment.StartAt
		if startAt.Before(start) || !startAt.Before(end) {
			continue
		}

		if err := e.atomic.CancelAndUnlink(ctx, m.Mapping.AppointmentID, m.Mapping.ID); err != nil {
			res.Errors = append(res.Errors, ItemError{ID: m.Mapping.ExternalEventID, Err: fmt.Errorf("cancel vanished event: %w", err)})
			continue
		}
		res.Counts.Deleted++
		metrics.RecordReconcileOp("inbound", "deleted")
	}

	return res, nil
}

func (e *Engine) applyRemoteEvent(ctx context.Context, conn *store.CalendarConnection, ev nylas.Event, byEventID map[string]*store.MappingWithAppointment, res *ReconcileResult) error {
	hash := hashRemoteEvent(ev)
	startAt := time.Unix(ev.When.StartTime, 0).UTC()
	endAt := time.Unix(ev.When.EndTime, 0).UTC()

	mw, mapped := byEventID[ev.ID]
	if mapped {
		if mw.Mapping.SyncHash == hash {
			return nil
		}
		// Cancelled is terminal for sync purposes; never mutate further.
		if mw.Appointment.Status == store.StatusCancelled {
			return nil
		}
		if err := e.atomic.ApplyRemoteUpdate(ctx, store.RemoteUpdate{
			AppointmentID: mw.Mapping.AppointmentID,
			MappingID:     mw.Mapping.ID,
			StartAt:       startAt,
			EndAt:         endAt,
			Notes:         remoteEventNotes(ev),
			SyncHash:      hash,
		}); err != nil {
			return fmt.Errorf("apply remote update: %w", err)
		}
		res.Counts.Updated++
		metrics.RecordReconcileOp("inbound", "updated")
		return nil
	}

	if _, err := e.atomic.CreateFromRemote(ctx, store.RemoteCreate{
		ClinicianID:     conn.ClinicianID,
		ConnectionID:    conn.ID,
		ExternalEventID: ev.ID,
		StartAt:         startAt,
		EndAt:           endAt,
		Notes:           remoteEventNotes(ev),
		Timezone:        ev.When.StartTimezone,
		SyncHash:        hash,
	}); err != nil {
		return fmt.Errorf("create from remote: %w", err)
	}
	res.Counts.Created++
	metrics.RecordReconcileOp("inbound", "created")
	return nil
}

// remoteEventNotes records provenance on appointments owned by the remote
// calendar.
func remoteEventNotes(ev nylas.Event) string {
	notes := "External calendar event"
	if ev.Title != "" {
		notes = "External calendar event: " + ev.Title
	}
	if ev.Description != "" {
		notes += "\n\n" + ev.Description
	}
	return notes
}
