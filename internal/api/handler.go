package api

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/valorwell/clinician-portal/internal/config"
	"github.com/valorwell/clinician-portal/internal/store"
	"github.com/valorwell/clinician-portal/internal/sync"
)

// SyncRunner is the engine surface the sync endpoint depends on. *sync.Engine
// implements it; tests supply fakes.
type SyncRunner interface {
	SyncClinician(ctx context.Context, clinicianID uuid.UUID, start, end time.Time) (*sync.Summary, error)
}

// Handler serves the portal's JSON API.
type Handler struct {
	cfg    *config.Config
	store  *store.Store
	engine SyncRunner
}

func NewHandler(cfg *config.Config, store *store.Store, engine SyncRunner) *Handler {
	return &Handler{cfg: cfg, store: store, engine: engine}
}

// defaultWindow is the rolling sync window when a request does not name one.
func (h *Handler) defaultWindow(now time.Time) (time.Time, time.Time) {
	start := now.AddDate(0, 0, -h.cfg.Sync.LookbackDays)
	end := now.AddDate(0, 0, h.cfg.Sync.LookaheadDays)
	return start.UTC(), end.UTC()
}
