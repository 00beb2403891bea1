package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/valorwell/clinician-portal/internal/crypto"
)

const connectionColumns = `id, clinician_id, provider, email, access_token, refresh_token, token_expires_at, calendar_ids, is_active, created_at, updated_at`

// connectionRepo implements ConnectionRepository.
type connectionRepo struct {
	pool *pgxpool.Pool
	enc  *crypto.Encryptor
}

func (r *connectionRepo) GetByID(ctx context.Context, id uuid.UUID) (*CalendarConnection, error) {
	defer observeDB(ctx, "connections.get")()

	row := r.pool.QueryRow(ctx, `SELECT `+connectionColumns+` FROM calendar_connections WHERE id=$1`, id)
	conn, err := r.scanConnection(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}
	return conn, nil
}

func (r *connectionRepo) ListByClinician(ctx context.Context, clinicianID uuid.UUID) ([]CalendarConnection, error) {
	defer observeDB(ctx, "connections.list")()

	return r.list(ctx, `SELECT `+connectionColumns+` FROM calendar_connections WHERE clinician_id=$1 ORDER BY created_at`, clinicianID)
}

func (r *connectionRepo) ListActiveByClinician(ctx context.Context, clinicianID uuid.UUID) ([]CalendarConnection, error) {
	defer observeDB(ctx, "connections.list_active")()

	return r.list(ctx, `SELECT `+connectionColumns+` FROM calendar_connections WHERE clinician_id=$1 AND is_active ORDER BY created_at`, clinicianID)
}

func (r *connectionRepo) ListCliniciansWithActive(ctx context.Context) ([]uuid.UUID, error) {
	defer observeDB(ctx, "connections.list_clinicians")()

	rows, err := r.pool.Query(ctx, `SELECT DISTINCT clinician_id FROM calendar_connections WHERE is_active`)
	if err != nil {
		return nil, fmt.Errorf("list clinicians with connections: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan clinician id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *connectionRepo) UpdateTokens(ctx context.Context, id uuid.UUID, accessToken, refreshToken string, expiresAt time.Time) error {
	defer observeDB(ctx, "connections.update_tokens")()

	accessEnc, err := r.enc.Encrypt(accessToken)
	if err != nil {
		return fmt.Errorf("encrypt access token: %w", err)
	}
	refreshEnc, err := r.enc.Encrypt(refreshToken)
	if err != nil {
		return fmt.Errorf("encrypt refresh token: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE calendar_connections SET access_token=$2, refresh_token=$3, token_expires_at=$4, updated_at=NOW() WHERE id=$1`,
		id, accessEnc, refreshEnc, expiresAt)
	if err != nil {
		return fmt.Errorf("update connection tokens: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *connectionRepo) Deactivate(ctx context.Context, clinicianID, id uuid.UUID) error {
	defer observeDB(ctx, "connections.deactivate")()

	tag, err := r.pool.Exec(ctx,
		`UPDATE calendar_connections SET is_active=FALSE, updated_at=NOW() WHERE id=$1 AND clinician_id=$2`,
		id, clinicianID)
	if err != nil {
		return fmt.Errorf("deactivate connection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *connectionRepo) list(ctx context.Context, query string, args ...any) ([]CalendarConnection, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	defer rows.Close()

	var conns []CalendarConnection
	for rows.Next() {
		conn, err := r.scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}
		conns = append(conns, *conn)
	}
	return conns, rows.Err()
}

func (r *connectionRepo) scanConnection(row pgx.Row) (*CalendarConnection, error) {
	var (
		conn       CalendarConnection
		accessEnc  []byte
		refreshEnc []byte
	)
	if err := row.Scan(&conn.ID, &conn.ClinicianID, &conn.Provider, &conn.Email,
		&accessEnc, &refreshEnc, &conn.TokenExpiresAt, &conn.CalendarIDs,
		&conn.IsActive, &conn.CreatedAt, &conn.UpdatedAt); err != nil {
		return nil, err
	}

	access, err := r.enc.Decrypt(accessEnc)
	if err != nil {
		return nil, fmt.Errorf("decrypt access token for %s: %w", conn.ID, err)
	}
	refresh, err := r.enc.Decrypt(refreshEnc)
	if err != nil {
		return nil, fmt.Errorf("decrypt refresh token for %s: %w", conn.ID, err)
	}
	conn.AccessToken = access
	conn.RefreshToken = refresh
	return &conn, nil
}
