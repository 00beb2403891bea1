package sync

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/valorwell/clinician-portal/internal/nylas"
	"github.com/valorwell/clinician-portal/internal/store"
)

// canonicalEvent is the tuple an event hash is computed over. Field order is
// the serialization order, so it must not change.
type canonicalEvent struct {
	Title        string   `json:"title"`
	StartTime    int64    `json:"start_time"`
	EndTime      int64    `json:"end_time"`
	Description  string   `json:"description"`
	Location     string   `json:"location"`
	Participants []string `json:"participants"`
}

// EventHash computes the canonical fingerprint of an event's meaningful
// fields. Participants are sorted before hashing so attendee order never
// affects the digest.
func EventHash(title string, startTime, endTime int64, description, location string, participants []string) string {
	sorted := make([]string, len(participants))
	copy(sorted, participants)
	sort.Strings(sorted)

	payload, _ := json.Marshal(canonicalEvent{
		Title:        title,
		StartTime:    startTime,
		EndTime:      endTime,
		Description:  description,
		Location:     location,
		Participants: sorted,
	})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func hashRemoteEvent(ev nylas.Event) string {
	emails := make([]string, 0, len(ev.Participants))
	for _, p := range ev.Participants {
		emails = append(emails, p.Email)
	}
	return EventHash(ev.Title, ev.When.StartTime, ev.When.EndTime, ev.Description, ev.Location, emails)
}

// hashAppointment derives the local-side hash of a mapped appointment. The
// minimal representation omits participants and location; it only lines up
// with a stored remote-derived hash after an API round trip refreshes it.
func hashAppointment(appt store.Appointment) string {
	return EventHash(appointmentTitle(appt), appt.StartAt.Unix(), appt.EndAt.Unix(), appt.Notes, "", nil)
}

func appointmentTitle(appt store.Appointment) string {
	if appt.Type != "" {
		return appt.Type
	}
	return "Appointment"
}
