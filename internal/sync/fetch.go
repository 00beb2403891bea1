package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/valorwell/clinician-portal/internal/nylas"
	"github.com/valorwell/clinician-portal/internal/store"
)

// fetchRemoteEvents pulls all external events in the window for one
// connection, plus the id set used by both reconciliation directions.
func (e *Engine) fetchRemoteEvents(ctx context.Context, conn *store.CalendarConnection, start, end time.Time) ([]nylas.Event, map[string]struct{}, error) {
	events, err := e.api.ListEvents(ctx, conn, start, end)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch remote events: %w", err)
	}

	remoteIDs := make(map[string]struct{}, len(events))
	for _, ev := range events {
		remoteIDs[ev.ID] = struct{}{}
	}
	return events, remoteIDs, nil
}
