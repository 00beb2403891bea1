package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/valorwell/clinician-portal/internal/metrics"
	"github.com/valorwell/clinician-portal/internal/store"
)

// Tokens expiring within this skew are refreshed up front so they cannot
// lapse mid-pass.
const credentialRefreshSkew = 5 * time.Minute

// ensureFreshCredentials returns the connection unchanged while its access
// token is comfortably valid, otherwise exchanges the refresh credential and
// persists the new pair. Failures are non-retryable within the pass and
// abort processing for this connection only.
func (e *Engine) ensureFreshCredentials(ctx context.Context, conn *store.CalendarConnection) (*store.CalendarConnection, error) {
	if conn.TokenExpiresAt.After(e.now().Add(credentialRefreshSkew)) {
		return conn, nil
	}

	tok, err := e.api.RefreshToken(ctx, conn.RefreshToken)
	if err != nil {
		return conn, fmt.Errorf("%w: %v", ErrCredentialRefresh, err)
	}

	refresh := tok.RefreshToken
	if refresh == "" {
		refresh = conn.RefreshToken
	}

	if err := e.connections.UpdateTokens(ctx, conn.ID, tok.AccessToken, refresh, tok.ExpiresAt); err != nil {
		return conn, fmt.Errorf("persist refreshed credentials: %w", err)
	}

	metrics.RecordCredentialRefresh()

	updated := *conn
	updated.AccessToken = tok.AccessToken
	updated.RefreshToken = refresh
	updated.TokenExpiresAt = tok.ExpiresAt
	return &updated, nil
}
