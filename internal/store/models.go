package store

import (
	"time"

	"github.com/google/uuid"
)

// Appointment statuses the sync engine knows about. The scheduling UI may
// set others (e.g. "documented"); the engine only ever moves scheduled to
// cancelled.
const (
	StatusScheduled = "scheduled"
	StatusCancelled = "cancelled"
)

// TypeExternalEvent marks appointments created from a remote calendar event.
const TypeExternalEvent = "External Event"

// Appointment is a local clinic appointment. All instants are stored in UTC;
// Timezone is a display label only.
type Appointment struct {
	ID          uuid.UUID
	ClinicianID uuid.UUID
	ClientID    *uuid.UUID
	Type        string
	Status      string
	StartAt     time.Time
	EndAt       time.Time
	Notes       string
	Timezone    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CalendarConnection is one authorized link between a clinician and an
// external calendar account. Tokens are encrypted at rest and carried
// decrypted in memory.
type CalendarConnection struct {
	ID             uuid.UUID
	ClinicianID    uuid.UUID
	Provider       string
	Email          string
	AccessToken    string
	RefreshToken   string
	TokenExpiresAt time.Time
	CalendarIDs    []string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PrimaryCalendarID returns the calendar outbound creations target.
func (c *CalendarConnection) PrimaryCalendarID() string {
	if len(c.CalendarIDs) == 0 {
		return ""
	}
	return c.CalendarIDs[0]
}

// ExternalEventMapping joins exactly one local appointment to one remote
// event on one connection. At most one mapping may exist per
// (appointment, connection) pair.
type ExternalEventMapping struct {
	ID              uuid.UUID
	AppointmentID   uuid.UUID
	ConnectionID    uuid.UUID
	ExternalEventID string
	SyncDirection   string
	SyncHash        string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Mapping sync directions (informational only).
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// MappingWithAppointment is a mapping joined with its appointment, as the
// reconciliation loops consume it.
type MappingWithAppointment struct {
	Mapping     ExternalEventMapping
	Appointment Appointment
}

// RemoteCreate carries the fields for the atomic
// create-appointment-and-mapping operation.
type RemoteCreate struct {
	ClinicianID     uuid.UUID
	ConnectionID    uuid.UUID
	ExternalEventID string
	StartAt         time.Time
	EndAt           time.Time
	Notes           string
	Timezone        string
	SyncHash        string
}

// RemoteUpdate carries the fields for the atomic
// update-appointment-and-mapping-and-hash operation.
type RemoteUpdate struct {
	AppointmentID uuid.UUID
	MappingID     uuid.UUID
	StartAt       time.Time
	EndAt         time.Time
	Notes         string
	SyncHash      string
}
