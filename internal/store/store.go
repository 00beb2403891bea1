package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/valorwell/clinician-portal/internal/crypto"
)

// Store aggregates repositories backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool

	Connections  ConnectionRepository
	Appointments AppointmentRepository
	Mappings     MappingRepository
	Sync         SyncRepository
}

// New wires concrete repository implementations with a shared connection
// pool. The encryptor protects connection tokens at rest.
func New(pool *pgxpool.Pool, enc *crypto.Encryptor) *Store {
	return &Store{
		pool:         pool,
		Connections:  &connectionRepo{pool: pool, enc: enc},
		Appointments: &appointmentRepo{pool: pool},
		Mappings:     &mappingRepo{pool: pool},
		Sync:         &syncRepo{pool: pool},
	}
}

// HealthCheck verifies that the underlying database is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	defer observeDB(ctx, "db.healthcheck")()
	return s.pool.Ping(ctx)
}
