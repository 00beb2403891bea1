package scheduler

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/valorwell/clinician-portal/internal/sync"
)

// SyncRunner is the engine surface the scheduler drives.
type SyncRunner interface {
	SyncClinician(ctx context.Context, clinicianID uuid.UUID, start, end time.Time) (*sync.Summary, error)
}

// ConnectionLister names the clinicians with at least one active connection.
type ConnectionLister interface {
	ListCliniciansWithActive(ctx context.Context) ([]uuid.UUID, error)
}

// Scheduler runs periodic background sync passes for every clinician with an
// active calendar connection.
type Scheduler struct {
	cron      *cron.Cron
	runner    SyncRunner
	conns     ConnectionLister
	lookback  time.Duration
	lookahead time.Duration
	now       func() time.Time
}

func New(runner SyncRunner, conns ConnectionLister, lookbackDays, lookaheadDays int) *Scheduler {
	return &Scheduler{
		cron:      cron.New(),
		runner:    runner,
		conns:     conns,
		lookback:  time.Duration(lookbackDays) * 24 * time.Hour,
		lookahead: time.Duration(lookaheadDays) * 24 * time.Hour,
		now:       time.Now,
	}
}

// Start registers the sync job under the given cron spec and starts the
// scheduler.
func (s *Scheduler) Start(spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		s.RunAll(context.Background())
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	log.Printf("[INFO] background sync scheduled: %s", spec)
	return nil
}

// Stop halts the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunAll executes one sync pass per clinician over the rolling window.
// Clinicians whose lock is held (an API-triggered sync is running) are
// skipped, not failed.
func (s *Scheduler) RunAll(ctx context.Context) {
	clinicians, err := s.conns.ListCliniciansWithActive(ctx)
	if err != nil {
		log.Printf("[ERROR] scheduled sync: listing clinicians: %v", err)
		return
	}

	now := s.now().UTC()
	start := now.Add(-s.lookback)
	end := now.Add(s.lookahead)

	for _, clinicianID := range clinicians {
		summary, err := s.runner.SyncClinician(ctx, clinicianID, start, end)
		if err != nil {
			if errors.Is(err, sync.ErrSyncInProgress) {
				log.Printf("[INFO] scheduled sync: clinician %s already syncing, skipped", clinicianID)
				continue
			}
			log.Printf("[ERROR] scheduled sync: clinician %s: %v", clinicianID, err)
			continue
		}
		if len(summary.Errors) > 0 {
			log.Printf("[WARN] scheduled sync: clinician %s finished with %d errors", clinicianID, len(summary.Errors))
		}
	}
}
