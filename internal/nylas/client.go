package nylas

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2"

	"github.com/valorwell/clinician-portal/internal/config"
	"github.com/valorwell/clinician-portal/internal/store"
)

// Client talks to the external calendar provider's REST API with a
// connection's bearer credential.
type Client struct {
	baseURL      string
	tokenURL     string
	clientID     string
	clientSecret string
	http         *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:      cfg.Nylas.BaseURL,
		tokenURL:     cfg.Nylas.TokenURL,
		clientID:     cfg.Nylas.ClientID,
		clientSecret: cfg.Nylas.ClientSecret,
		http:         &http.Client{Timeout: 30 * time.Second},
	}
}

// eventEnvelope matches the provider's response wrapper.
type eventEnvelope struct {
	Data json.RawMessage `json:"data"`
}

type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// ListEvents returns all events in [start, end) across the connection's
// calendars.
func (c *Client) ListEvents(ctx context.Context, conn *store.CalendarConnection, start, end time.Time) ([]Event, error) {
	calendarIDs := conn.CalendarIDs
	if len(calendarIDs) == 0 {
		calendarIDs = []string{""}
	}

	var all []Event
	for _, calendarID := range calendarIDs {
		q := url.Values{}
		q.Set("start", strconv.FormatInt(start.Unix(), 10))
		q.Set("end", strconv.FormatInt(end.Unix(), 10))
		if calendarID != "" {
			q.Set("calendar_id", calendarID)
		}

		var events []Event
		if err := c.do(ctx, conn, http.MethodGet, "/events?"+q.Encode(), nil, &events); err != nil {
			return nil, err
		}
		all = append(all, events...)
	}
	return all, nil
}

// CreateEvent creates an event and returns it with its assigned id.
func (c *Client) CreateEvent(ctx context.Context, conn *store.CalendarConnection, req EventRequest) (*Event, error) {
	var created Event
	if err := c.do(ctx, conn, http.MethodPost, "/events", req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateEvent pushes a title/window change and returns the updated event.
func (c *Client) UpdateEvent(ctx context.Context, conn *store.CalendarConnection, eventID string, upd EventUpdate) (*Event, error) {
	var updated Event
	if err := c.do(ctx, conn, http.MethodPut, "/events/"+url.PathEscape(eventID), upd, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteEvent removes an event. A 404 means the event is already gone and is
// treated as success.
func (c *Client) DeleteEvent(ctx context.Context, conn *store.CalendarConnection, eventID string) error {
	err := c.do(ctx, conn, http.MethodDelete, "/events/"+url.PathEscape(eventID), nil, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return nil
	}
	return err
}

// RefreshToken exchanges a refresh credential for a new access/refresh pair
// at the provider's token endpoint.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*Token, error) {
	cfg := &oauth2.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: c.tokenURL},
	}

	tok, err := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("exchange refresh token: %w", err)
	}

	out := &Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}
	// Some providers omit the refresh token when it has not rotated.
	if out.RefreshToken == "" {
		out.RefreshToken = refreshToken
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, conn *store.CalendarConnection, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+conn.AccessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call calendar api: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(raw)}
	}

	if out == nil {
		return nil
	}

	var envelope eventEnvelope
	if err := json.Unmarshal(raw, &envelope); err == nil && len(envelope.Data) > 0 {
		raw = envelope.Data
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func errorMessage(raw []byte) string {
	var envelope errorEnvelope
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	if len(raw) > 200 {
		raw = raw[:200]
	}
	return string(raw)
}
