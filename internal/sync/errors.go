package sync

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrCredentialRefresh marks a credential refresh rejected by the token
// endpoint or unreachable. It is distinct from ordinary API failures so
// monitoring can tell authentication problems from transient errors.
var ErrCredentialRefresh = errors.New("credential refresh failed")

// ErrSyncInProgress is returned when another bidirectional pass already
// holds the clinician's advisory lock.
var ErrSyncInProgress = errors.New("a sync for this clinician is already running")

// ConnectionError aborts the pass for a single connection. Other connections
// still run.
type ConnectionError struct {
	ConnectionID uuid.UUID
	Err          error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection %s: %v", e.ConnectionID, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ItemError records a single failed create/update/delete. The loop that
// produced it continues with the next item.
type ItemError struct {
	ID  string
	Err error
}

// SyncError is the caller-facing error record accumulated into the flat
// summary list.
type SyncError struct {
	ConnectionID string `json:"connection_id,omitempty"`
	ItemID       string `json:"id,omitempty"`
	Message      string `json:"error"`
}
