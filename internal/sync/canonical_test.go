package sync

import (
	"testing"
	"time"

	"github.com/valorwell/clinician-portal/internal/nylas"
	"github.com/valorwell/clinician-portal/internal/store"
)

func TestEventHashParticipantOrder(t *testing.T) {
	a := EventHash("Session", 1000, 2000, "notes", "Room 4", []string{"a@x.com", "b@x.com", "c@x.com"})
	b := EventHash("Session", 1000, 2000, "notes", "Room 4", []string{"c@x.com", "a@x.com", "b@x.com"})

	if a != b {
		t.Errorf("hash should be independent of participant order: %s != %s", a, b)
	}
}

func TestEventHashDoesNotMutateParticipants(t *testing.T) {
	participants := []string{"c@x.com", "a@x.com"}
	EventHash("Session", 1000, 2000, "", "", participants)

	if participants[0] != "c@x.com" || participants[1] != "a@x.com" {
		t.Errorf("EventHash mutated its input: %v", participants)
	}
}

func TestEventHashFieldSensitivity(t *testing.T) {
	base := EventHash("Session", 1000, 2000, "notes", "Room 4", []string{"a@x.com"})

	variants := map[string]string{
		"title":        EventHash("Other", 1000, 2000, "notes", "Room 4", []string{"a@x.com"}),
		"start":        EventHash("Session", 1001, 2000, "notes", "Room 4", []string{"a@x.com"}),
		"end":          EventHash("Session", 1000, 2001, "notes", "Room 4", []string{"a@x.com"}),
		"description":  EventHash("Session", 1000, 2000, "other", "Room 4", []string{"a@x.com"}),
		"location":     EventHash("Session", 1000, 2000, "notes", "Room 5", []string{"a@x.com"}),
		"participants": EventHash("Session", 1000, 2000, "notes", "Room 4", []string{"b@x.com"}),
	}

	for field, h := range variants {
		if h == base {
			t.Errorf("changing %s did not change the hash", field)
		}
	}
}

func TestEventHashDeterministic(t *testing.T) {
	a := EventHash("Session", 1000, 2000, "", "", nil)
	b := EventHash("Session", 1000, 2000, "", "", nil)
	if a != b {
		t.Errorf("hash is not deterministic: %s != %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
}

func TestHashRemoteEventUsesParticipantEmails(t *testing.T) {
	ev := nylas.Event{
		Title: "Session",
		When:  nylas.When{StartTime: 1000, EndTime: 2000},
		Participants: []nylas.Participant{
			{Name: "Bea", Email: "b@x.com"},
			{Name: "Al", Email: "a@x.com"},
		},
	}

	want := EventHash("Session", 1000, 2000, "", "", []string{"a@x.com", "b@x.com"})
	if got := hashRemoteEvent(ev); got != want {
		t.Errorf("hashRemoteEvent = %s, want %s", got, want)
	}
}

func TestAppointmentTitleFallsBackWhenTypeEmpty(t *testing.T) {
	appt := store.Appointment{StartAt: time.Unix(1000, 0), EndAt: time.Unix(2000, 0)}
	if got := appointmentTitle(appt); got != "Appointment" {
		t.Errorf("appointmentTitle = %q, want %q", got, "Appointment")
	}

	appt.Type = "Intake"
	if got := appointmentTitle(appt); got != "Intake" {
		t.Errorf("appointmentTitle = %q, want %q", got, "Intake")
	}
}
