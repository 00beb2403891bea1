package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/valorwell/clinician-portal/internal/metrics"
	"github.com/valorwell/clinician-portal/internal/nylas"
	"github.com/valorwell/clinician-portal/internal/store"
)

// reconcileOutbound applies local changes onto the external calendar in
// three independent phases: push updates, push deletions, push creations.
// A phase that cannot load its working set records one error and yields to
// the next phase; item failures never stop a phase's loop.
func (e *Engine) reconcileOutbound(ctx context.Context, conn *store.CalendarConnection, remoteIDs map[string]struct{}, start, end time.Time) ReconcileResult {
	var res ReconcileResult
	e.pushUpdates(ctx, conn, remoteIDs, start, end, &res)
	e.pushDeletions(ctx, conn, &res)
	e.pushCreations(ctx, conn, start, end, &res)
	return res
}

// pushUpdates re-hashes mapped, non-cancelled, in-window appointments and
// pushes title/window changes for those that diverged from the stored hash.
// Appointments imported from the remote calendar are remote-owned and are
// not pushed back.
func (e *Engine) pushUpdates(ctx context.Context, conn *store.CalendarConnection, remoteIDs map[string]struct{}, start, end time.Time, res *ReconcileResult) {
	mappings, err := e.mappings.ListByConnection(ctx, conn.ID)
	if err != nil {
		res.Errors = append(res.Errors, ItemError{Err: fmt.Errorf("load mappings for update push: %w", err)})
		return
	}

	for i := range mappings {
		m := &mappings[i]
		appt := m.Appointment

		if appt.Status == store.StatusCancelled || appt.Type == store.TypeExternalEvent {
			continue
		}
		if appt.StartAt.Before(start) || !appt.StartAt.Before(end) {
			continue
		}
		if _, present := remoteIDs[m.Mapping.ExternalEventID]; !present {
			continue
		}
		if hashAppointment(appt) == m.Mapping.SyncHash {
			continue
		}

		updated, err := e.api.UpdateEvent(ctx, conn, m.Mapping.ExternalEventID, nylas.EventUpdate{
			Title: appointmentTitle(appt),
			When:  appointmentWhen(appt),
		})
		if err != nil {
			res.Errors = append(res.Errors, ItemError{ID: appt.ID.String(), Err: fmt.Errorf("push update: %w", err)})
			continue
		}

		// Hash the update response, not the local object, so the stored
		// basis stays symmetric with inbound comparisons.
		if err := e.mappings.UpdateHash(ctx, m.Mapping.ID, hashRemoteEvent(*updated)); err != nil {
			res.Errors = append(res.Errors, ItemError{ID: appt.ID.String(), Err: fmt.Errorf("store pushed hash: %w", err)})
			continue
		}
		res.Counts.Updated++
		metrics.RecordReconcileOp("outbound", "updated")
	}
}

// pushDeletions removes remote events for locally cancelled appointments
// that still have a mapping on this connection, then drops the mapping. The
// cancellation itself is a one-way tombstone; the appointment row stays for
// audit history.
func (e *Engine) pushDeletions(ctx context.Context, conn *store.CalendarConnection, res *ReconcileResult) {
	mappings, err := e.mappings.ListForCancelled(ctx, conn.ID)
	if err != nil {
		res.Errors = append(res.Errors, ItemError{Err: fmt.Errorf("load mappings for deletion push: %w", err)})
		return
	}

	for i := range mappings {
		m := &mappings[i]

		// The client treats 404 as success: already gone is gone.
		if err := e.api.DeleteEvent(ctx, conn, m.Mapping.ExternalEventID); err != nil {
			res.Errors = append(res.Errors, ItemError{ID: m.Appointment.ID.String(), Err: fmt.Errorf("push deletion: %w", err)})
			continue
		}
		if err := e.mappings.Delete(ctx, m.Mapping.ID); err != nil {
			res.Errors = append(res.Errors, ItemError{ID: m.Appointment.ID.String(), Err: fmt.Errorf("remove mapping: %w", err)})
			continue
		}
		res.Counts.Deleted++
		metrics.RecordReconcileOp("outbound", "deleted")
	}
}

// pushCreations creates remote events for non-cancelled, in-window
// appointments with no mapping on any connection, then records the mapping
// with the hash of the create response.
func (e *Engine) pushCreations(ctx context.Context, conn *store.CalendarConnection, start, end time.Time, res *ReconcileResult) {
	appts, err := e.appointments.ListUnmappedInWindow(ctx, conn.ClinicianID, start, end)
	if err != nil {
		res.Errors = append(res.Errors, ItemError{Err: fmt.Errorf("load unmapped appointments: %w", err)})
		return
	}

	for _, appt := range appts {
		created, err := e.api.CreateEvent(ctx, conn, nylas.EventRequest{
			CalendarID:  conn.PrimaryCalendarID(),
			Title:       appointmentTitle(appt),
			Description: appt.Notes,
			When:        appointmentWhen(appt),
		})
		if err != nil {
			res.Errors = append(res.Errors, ItemError{ID: appt.ID.String(), Err: fmt.Errorf("push creation: %w", err)})
			continue
		}

		if _, err := e.mappings.Create(ctx, store.ExternalEventMapping{
			AppointmentID:   appt.ID,
			ConnectionID:    conn.ID,
			ExternalEventID: created.ID,
			SyncDirection:   store.DirectionOutbound,
			SyncHash:        hashRemoteEvent(*created),
		}); err != nil {
			res.Errors = append(res.Errors, ItemError{ID: appt.ID.String(), Err: fmt.Errorf("record mapping: %w", err)})
			continue
		}
		res.Counts.Created++
		metrics.RecordReconcileOp("outbound", "created")
	}
}

func appointmentWhen(appt store.Appointment) nylas.When {
	return nylas.When{
		StartTime:     appt.StartAt.Unix(),
		EndTime:       appt.EndAt.Unix(),
		StartTimezone: appt.Timezone,
	}
}
