package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const appointmentColumns = `id, clinician_id, client_id, type, status, start_at, end_at, notes, appointment_timezone, created_at, updated_at`

// appointmentRepo implements AppointmentRepository.
type appointmentRepo struct {
	pool *pgxpool.Pool
}

func (r *appointmentRepo) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	defer observeDB(ctx, "appointments.get")()

	row := r.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id=$1`, id)
	appt, err := scanAppointment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

func (r *appointmentRepo) ListByClinician(ctx context.Context, clinicianID uuid.UUID, start, end time.Time) ([]Appointment, error) {
	defer observeDB(ctx, "appointments.list")()

	return r.list(ctx,
		`SELECT `+appointmentColumns+` FROM appointments
		 WHERE clinician_id=$1 AND start_at >= $2 AND start_at < $3
		 ORDER BY start_at`,
		clinicianID, start, end)
}

func (r *appointmentRepo) ListUnmappedInWindow(ctx context.Context, clinicianID uuid.UUID, start, end time.Time) ([]Appointment, error) {
	defer observeDB(ctx, "appointments.list_unmapped")()

	// No mapping on any connection, per the outbound creation rules.
	return r.list(ctx,
		`SELECT `+appointmentColumns+` FROM appointments a
		 WHERE a.clinician_id=$1 AND a.status <> $2
		   AND a.start_at >= $3 AND a.start_at < $4
		   AND NOT EXISTS (SELECT 1 FROM external_event_mappings m WHERE m.appointment_id = a.id)
		 ORDER BY a.start_at`,
		clinicianID, StatusCancelled, start, end)
}

func (r *appointmentRepo) Create(ctx context.Context, appt Appointment) (*Appointment, error) {
	defer observeDB(ctx, "appointments.create")()

	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	if appt.Status == "" {
		appt.Status = StatusScheduled
	}
	if appt.Timezone == "" {
		appt.Timezone = "UTC"
	}

	row := r.pool.QueryRow(ctx,
		`INSERT INTO appointments (id, clinician_id, client_id, type, status, start_at, end_at, notes, appointment_timezone)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		 RETURNING `+appointmentColumns,
		appt.ID, appt.ClinicianID, appt.ClientID, appt.Type, appt.Status,
		appt.StartAt.UTC(), appt.EndAt.UTC(), appt.Notes, appt.Timezone)

	created, err := scanAppointment(row)
	if err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}
	return created, nil
}

func (r *appointmentRepo) Update(ctx context.Context, appt Appointment) (*Appointment, error) {
	defer observeDB(ctx, "appointments.update")()

	row := r.pool.QueryRow(ctx,
		`UPDATE appointments
		 SET type=$3, start_at=$4, end_at=$5, notes=$6, appointment_timezone=$7, updated_at=NOW()
		 WHERE id=$1 AND clinician_id=$2
		 RETURNING `+appointmentColumns,
		appt.ID, appt.ClinicianID, appt.Type, appt.StartAt.UTC(), appt.EndAt.UTC(), appt.Notes, appt.Timezone)

	updated, err := scanAppointment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update appointment: %w", err)
	}
	return updated, nil
}

func (r *appointmentRepo) Cancel(ctx context.Context, clinicianID, id uuid.UUID) error {
	defer observeDB(ctx, "appointments.cancel")()

	tag, err := r.pool.Exec(ctx,
		`UPDATE appointments SET status=$3, updated_at=NOW() WHERE id=$1 AND clinician_id=$2`,
		id, clinicianID, StatusCancelled)
	if err != nil {
		return fmt.Errorf("cancel appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *appointmentRepo) list(ctx context.Context, query string, args ...any) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var appts []Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		appts = append(appts, *appt)
	}
	return appts, rows.Err()
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var appt Appointment
	if err := row.Scan(&appt.ID, &appt.ClinicianID, &appt.ClientID, &appt.Type,
		&appt.Status, &appt.StartAt, &appt.EndAt, &appt.Notes, &appt.Timezone,
		&appt.CreatedAt, &appt.UpdatedAt); err != nil {
		return nil, err
	}
	return &appt, nil
}
