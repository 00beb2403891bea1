package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const mappingJoinQuery = `SELECT m.id, m.appointment_id, m.connection_id, m.external_event_id, m.sync_direction, m.sync_hash, m.created_at, m.updated_at,
       a.id, a.clinician_id, a.client_id, a.type, a.status, a.start_at, a.end_at, a.notes, a.appointment_timezone, a.created_at, a.updated_at
  FROM external_event_mappings m
  JOIN appointments a ON a.id = m.appointment_id`

// mappingRepo implements MappingRepository.
type mappingRepo struct {
	pool *pgxpool.Pool
}

func (r *mappingRepo) ListByConnection(ctx context.Context, connectionID uuid.UUID) ([]MappingWithAppointment, error) {
	defer observeDB(ctx, "mappings.list")()

	return r.listJoined(ctx, mappingJoinQuery+` WHERE m.connection_id=$1 ORDER BY a.start_at`, connectionID)
}

func (r *mappingRepo) ListForCancelled(ctx context.Context, connectionID uuid.UUID) ([]MappingWithAppointment, error) {
	defer observeDB(ctx, "mappings.list_cancelled")()

	return r.listJoined(ctx, mappingJoinQuery+` WHERE m.connection_id=$1 AND a.status=$2 ORDER BY a.start_at`, connectionID, StatusCancelled)
}

func (r *mappingRepo) Create(ctx context.Context, m ExternalEventMapping) (*ExternalEventMapping, error) {
	defer observeDB(ctx, "mappings.create")()

	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.SyncDirection == "" {
		m.SyncDirection = DirectionOutbound
	}

	row := r.pool.QueryRow(ctx,
		`INSERT INTO external_event_mappings (id, appointment_id, connection_id, external_event_id, sync_direction, sync_hash)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 RETURNING id, appointment_id, connection_id, external_event_id, sync_direction, sync_hash, created_at, updated_at`,
		m.ID, m.AppointmentID, m.ConnectionID, m.ExternalEventID, m.SyncDirection, m.SyncHash)

	created, err := scanMapping(row)
	if err != nil {
		return nil, fmt.Errorf("create mapping: %w", err)
	}
	return created, nil
}

func (r *mappingRepo) UpdateHash(ctx context.Context, id uuid.UUID, hash string) error {
	defer observeDB(ctx, "mappings.update_hash")()

	tag, err := r.pool.Exec(ctx,
		`UPDATE external_event_mappings SET sync_hash=$2, updated_at=NOW() WHERE id=$1`, id, hash)
	if err != nil {
		return fmt.Errorf("update mapping hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mappingRepo) Delete(ctx context.Context, id uuid.UUID) error {
	defer observeDB(ctx, "mappings.delete")()

	if _, err := r.pool.Exec(ctx, `DELETE FROM external_event_mappings WHERE id=$1`, id); err != nil {
		return fmt.Errorf("delete mapping: %w", err)
	}
	return nil
}

func (r *mappingRepo) listJoined(ctx context.Context, query string, args ...any) ([]MappingWithAppointment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list mappings: %w", err)
	}
	defer rows.Close()

	var result []MappingWithAppointment
	for rows.Next() {
		var mw MappingWithAppointment
		if err := rows.Scan(
			&mw.Mapping.ID, &mw.Mapping.AppointmentID, &mw.Mapping.ConnectionID,
			&mw.Mapping.ExternalEventID, &mw.Mapping.SyncDirection, &mw.Mapping.SyncHash,
			&mw.Mapping.CreatedAt, &mw.Mapping.UpdatedAt,
			&mw.Appointment.ID, &mw.Appointment.ClinicianID, &mw.Appointment.ClientID,
			&mw.Appointment.Type, &mw.Appointment.Status, &mw.Appointment.StartAt,
			&mw.Appointment.EndAt, &mw.Appointment.Notes, &mw.Appointment.Timezone,
			&mw.Appointment.CreatedAt, &mw.Appointment.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan mapping row: %w", err)
		}
		result = append(result, mw)
	}
	return result, rows.Err()
}

func scanMapping(row pgx.Row) (*ExternalEventMapping, error) {
	var m ExternalEventMapping
	if err := row.Scan(&m.ID, &m.AppointmentID, &m.ConnectionID, &m.ExternalEventID,
		&m.SyncDirection, &m.SyncHash, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}
