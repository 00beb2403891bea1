package store

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// syncRepo implements SyncRepository. Every operation spans the appointment
// and its mapping in one transaction.
type syncRepo struct {
	pool *pgxpool.Pool
}

func (r *syncRepo) CreateFromRemote(ctx context.Context, rc RemoteCreate) (*Appointment, error) {
	defer observeDB(ctx, "sync.create_from_remote")()

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin create-from-remote: %w", err)
	}
	defer tx.Rollback(ctx)

	tz := rc.Timezone
	if tz == "" {
		tz = "UTC"
	}

	row := tx.QueryRow(ctx,
		`INSERT INTO appointments (id, clinician_id, type, status, start_at, end_at, notes, appointment_timezone)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		 RETURNING `+appointmentColumns,
		uuid.New(), rc.ClinicianID, TypeExternalEvent, StatusScheduled,
		rc.StartAt.UTC(), rc.EndAt.UTC(), rc.Notes, tz)

	appt, err := scanAppointment(row)
	if err != nil {
		return nil, fmt.Errorf("insert appointment from remote: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO external_event_mappings (id, appointment_id, connection_id, external_event_id, sync_direction, sync_hash)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		uuid.New(), appt.ID, rc.ConnectionID, rc.ExternalEventID, DirectionInbound, rc.SyncHash); err != nil {
		return nil, fmt.Errorf("insert mapping from remote: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit create-from-remote: %w", err)
	}
	return appt, nil
}

func (r *syncRepo) ApplyRemoteUpdate(ctx context.Context, ru RemoteUpdate) error {
	defer observeDB(ctx, "sync.apply_remote_update")()

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin remote update: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE appointments SET start_at=$2, end_at=$3, notes=$4, updated_at=NOW() WHERE id=$1`,
		ru.AppointmentID, ru.StartAt.UTC(), ru.EndAt.UTC(), ru.Notes)
	if err != nil {
		return fmt.Errorf("update appointment from remote: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	tag, err = tx.Exec(ctx,
		`UPDATE external_event_mappings SET sync_hash=$2, updated_at=NOW() WHERE id=$1`,
		ru.MappingID, ru.SyncHash)
	if err != nil {
		return fmt.Errorf("update mapping hash from remote: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit remote update: %w", err)
	}
	return nil
}

func (r *syncRepo) CancelAndUnlink(ctx context.Context, appointmentID, mappingID uuid.UUID) error {
	defer observeDB(ctx, "sync.cancel_and_unlink")()

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin cancel-and-unlink: %w", err)
	}
	defer tx.Rollback(ctx)

	// The appointment row is kept for audit history; only its status moves.
	if _, err := tx.Exec(ctx,
		`UPDATE appointments SET status=$2, updated_at=NOW() WHERE id=$1`,
		appointmentID, StatusCancelled); err != nil {
		return fmt.Errorf("cancel appointment: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM external_event_mappings WHERE id=$1`, mappingID); err != nil {
		return fmt.Errorf("delete mapping: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit cancel-and-unlink: %w", err)
	}
	return nil
}

func (r *syncRepo) AcquireClinicianLock(ctx context.Context, clinicianID uuid.UUID) (func(), bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock connection: %w", err)
	}

	key := advisoryLockKey(clinicianID)
	var acquired bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	release := func() {
		// Unlock on the same session the lock was taken on, even if the
		// caller's context has been cancelled.
		_, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, key)
		conn.Release()
	}
	return release, true, nil
}

func advisoryLockKey(clinicianID uuid.UUID) int64 {
	h := fnv.New64a()
	_, _ = h.Write(clinicianID[:])
	return int64(h.Sum64())
}
