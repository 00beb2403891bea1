package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/valorwell/clinician-portal/internal/store"
)

// BuildCalendar renders appointments as a VCALENDAR document. Instants are
// emitted in UTC; clients localize on display.
func BuildCalendar(appts []store.Appointment) string {
	var sb strings.Builder
	sb.WriteString("BEGIN:VCALENDAR\r\n")
	sb.WriteString("VERSION:2.0\r\n")
	sb.WriteString("PRODID:-//Valorwell//Clinician Portal//EN\r\n")
	sb.WriteString("CALSCALE:GREGORIAN\r\n")

	dtstamp := time.Now().UTC().Format("20060102T150405Z")
	for _, a := range appts {
		sb.WriteString("BEGIN:VEVENT\r\n")
		sb.WriteString(fmt.Sprintf("UID:%s@clinician-portal\r\n", a.ID))
		sb.WriteString(fmt.Sprintf("DTSTAMP:%s\r\n", dtstamp))
		sb.WriteString(fmt.Sprintf("DTSTART:%s\r\n", a.StartAt.UTC().Format("20060102T150405Z")))
		sb.WriteString(fmt.Sprintf("DTEND:%s\r\n", a.EndAt.UTC().Format("20060102T150405Z")))
		sb.WriteString(foldLine(fmt.Sprintf("SUMMARY:%s", escapeICalValue(appointmentSummary(a)))))
		if a.Notes != "" {
			sb.WriteString(foldLine(fmt.Sprintf("DESCRIPTION:%s", escapeICalValue(a.Notes))))
		}
		if a.Status == store.StatusCancelled {
			sb.WriteString("STATUS:CANCELLED\r\n")
		} else {
			sb.WriteString("STATUS:CONFIRMED\r\n")
		}
		sb.WriteString("END:VEVENT\r\n")
	}

	sb.WriteString("END:VCALENDAR\r\n")
	return sb.String()
}

func appointmentSummary(a store.Appointment) string {
	if a.Type != "" {
		return a.Type
	}
	return "Appointment"
}

func escapeICalValue(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ";", "\\;")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}

// foldLine wraps content lines at 75 octets per RFC 5545 section 3.1.
func foldLine(line string) string {
	const limit = 75
	if len(line) <= limit {
		return line + "\r\n"
	}

	var sb strings.Builder
	for len(line) > limit {
		cut := limit
		// Do not split in the middle of a UTF-8 sequence.
		for cut > 0 && line[cut]&0xC0 == 0x80 {
			cut--
		}
		sb.WriteString(line[:cut])
		sb.WriteString("\r\n ")
		line = line[cut:]
	}
	sb.WriteString(line)
	sb.WriteString("\r\n")
	return sb.String()
}
