package nylas

import (
	"fmt"
	"time"
)

// When is the time window of an event, in epoch seconds.
type When struct {
	StartTime     int64  `json:"start_time"`
	EndTime       int64  `json:"end_time"`
	StartTimezone string `json:"start_timezone,omitempty"`
	EndTimezone   string `json:"end_timezone,omitempty"`
}

// Participant is an event attendee.
type Participant struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

// Event is a calendar event as the provider returns it. It is transient;
// nothing outside a reconciliation pass holds on to one.
type Event struct {
	ID           string        `json:"id"`
	CalendarID   string        `json:"calendar_id,omitempty"`
	Title        string        `json:"title"`
	Description  string        `json:"description,omitempty"`
	Location     string        `json:"location,omitempty"`
	Participants []Participant `json:"participants,omitempty"`
	When         When          `json:"when"`
}

// EventRequest is the payload for creating an event.
type EventRequest struct {
	CalendarID  string `json:"calendar_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
	When        When   `json:"when"`
}

// EventUpdate is the payload for updating an event. Only title and window
// are pushed outbound.
type EventUpdate struct {
	Title string `json:"title"`
	When  When   `json:"when"`
}

// Token is a refreshed credential pair.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// APIError is a non-success response from the provider.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("calendar api: status %d: %s", e.StatusCode, e.Message)
}
