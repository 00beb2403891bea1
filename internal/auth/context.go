package auth

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const contextKeyClinician contextKey = "clinician_id"

func WithClinician(ctx context.Context, clinicianID uuid.UUID) context.Context {
	return context.WithValue(ctx, contextKeyClinician, clinicianID)
}

func ClinicianFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(contextKeyClinician).(uuid.UUID)
	return id, ok
}
