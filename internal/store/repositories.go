package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ConnectionRepository defines persistence operations for calendar
// connections. Token columns are transparently encrypted/decrypted.
type ConnectionRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*CalendarConnection, error)
	ListByClinician(ctx context.Context, clinicianID uuid.UUID) ([]CalendarConnection, error)
	ListActiveByClinician(ctx context.Context, clinicianID uuid.UUID) ([]CalendarConnection, error)
	ListCliniciansWithActive(ctx context.Context) ([]uuid.UUID, error)
	UpdateTokens(ctx context.Context, id uuid.UUID, accessToken, refreshToken string, expiresAt time.Time) error
	Deactivate(ctx context.Context, clinicianID, id uuid.UUID) error
}

// AppointmentRepository handles the scheduling side of appointments.
type AppointmentRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListByClinician(ctx context.Context, clinicianID uuid.UUID, start, end time.Time) ([]Appointment, error)
	ListUnmappedInWindow(ctx context.Context, clinicianID uuid.UUID, start, end time.Time) ([]Appointment, error)
	Create(ctx context.Context, appt Appointment) (*Appointment, error)
	Update(ctx context.Context, appt Appointment) (*Appointment, error)
	Cancel(ctx context.Context, clinicianID, id uuid.UUID) error
}

// MappingRepository handles appointment/remote-event join records.
type MappingRepository interface {
	ListByConnection(ctx context.Context, connectionID uuid.UUID) ([]MappingWithAppointment, error)
	ListForCancelled(ctx context.Context, connectionID uuid.UUID) ([]MappingWithAppointment, error)
	Create(ctx context.Context, m ExternalEventMapping) (*ExternalEventMapping, error)
	UpdateHash(ctx context.Context, id uuid.UUID, hash string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// SyncRepository exposes the atomic reconciliation operations. Each spans
// the appointment row and its mapping row in a single transaction so an
// interrupted pass can never leave the two disagreeing.
type SyncRepository interface {
	CreateFromRemote(ctx context.Context, rc RemoteCreate) (*Appointment, error)
	ApplyRemoteUpdate(ctx context.Context, ru RemoteUpdate) error
	CancelAndUnlink(ctx context.Context, appointmentID, mappingID uuid.UUID) error

	// AcquireClinicianLock takes a session-scoped Postgres advisory lock for
	// the clinician. It returns false when another sync pass holds the lock.
	// The release func must be called when the pass completes.
	AcquireClinicianLock(ctx context.Context, clinicianID uuid.UUID) (release func(), acquired bool, err error)
}
