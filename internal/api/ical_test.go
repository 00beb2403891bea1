package api

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/valorwell/clinician-portal/internal/store"
)

func TestBuildCalendarStructure(t *testing.T) {
	appt := store.Appointment{
		ID:      uuid.New(),
		Type:    "Therapy Session",
		Status:  store.StatusScheduled,
		StartAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		EndAt:   time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		Notes:   "bring forms",
	}

	ics := BuildCalendar([]store.Appointment{appt})

	for _, want := range []string{
		"BEGIN:VCALENDAR\r\n",
		"VERSION:2.0\r\n",
		"BEGIN:VEVENT\r\n",
		"UID:" + appt.ID.String() + "@clinician-portal\r\n",
		"DTSTART:20260302T090000Z\r\n",
		"DTEND:20260302T100000Z\r\n",
		"SUMMARY:Therapy Session\r\n",
		"DESCRIPTION:bring forms\r\n",
		"STATUS:CONFIRMED\r\n",
		"END:VEVENT\r\n",
		"END:VCALENDAR\r\n",
	} {
		if !strings.Contains(ics, want) {
			t.Errorf("missing %q in:\n%s", want, ics)
		}
	}
}

func TestBuildCalendarCancelledStatus(t *testing.T) {
	appt := store.Appointment{
		ID:      uuid.New(),
		Status:  store.StatusCancelled,
		StartAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		EndAt:   time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}

	ics := BuildCalendar([]store.Appointment{appt})
	if !strings.Contains(ics, "STATUS:CANCELLED\r\n") {
		t.Errorf("cancelled appointment should carry STATUS:CANCELLED:\n%s", ics)
	}
	if !strings.Contains(ics, "SUMMARY:Appointment\r\n") {
		t.Errorf("empty type should fall back to Appointment:\n%s", ics)
	}
}

func TestEscapeICalValue(t *testing.T) {
	got := escapeICalValue("a,b;c\\d\ne")
	want := `a\,b\;c\\d\ne`
	if got != want {
		t.Errorf("escape = %q, want %q", got, want)
	}
}

func TestFoldLineLongContent(t *testing.T) {
	line := "DESCRIPTION:" + strings.Repeat("x", 200)
	folded := foldLine(line)

	for i, l := range strings.Split(strings.TrimSuffix(folded, "\r\n"), "\r\n") {
		if len(l) > 76 {
			t.Errorf("line %d too long (%d): %q", i, len(l), l)
		}
	}
	unfolded := strings.ReplaceAll(folded, "\r\n ", "")
	if !strings.HasPrefix(unfolded, line) {
		t.Errorf("unfolding does not restore the content")
	}
}

func TestFoldLineShortContentUntouched(t *testing.T) {
	if got := foldLine("SUMMARY:Short"); got != "SUMMARY:Short\r\n" {
		t.Errorf("short line = %q", got)
	}
}
