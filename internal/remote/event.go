// Package remote maps hearings to external calendar events and performs the
// create/update/delete calls against the calendar REST API.
package remote

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/adv-tools/audsync/internal/hearing"
)

// CaseInfo is the slice of a case record this subsystem consumes: just
// enough to compose the remote event text.
type CaseInfo struct {
	Number string
	Title  string
}

// CaseLookup resolves a case id against the case collaborator.
type CaseLookup interface {
	Lookup(ctx context.Context, caseID string) (CaseInfo, error)
}

// eventDuration is the fixed length of a mirrored hearing event.
const eventDuration = time.Hour

// BuildEvent maps a hearing onto a remote event payload. Start and end carry
// an explicit time zone; reminders are fixed at one day and thirty minutes
// before; conference data is attached only when a meeting link is present.
func BuildEvent(h hearing.Hearing, info CaseInfo, loc *time.Location) (*calendar.Event, error) {
	start, err := h.StartAt(loc)
	if err != nil {
		return nil, err
	}
	end := start.Add(eventDuration)

	description := h.Notes
	if info.Title != "" {
		if description != "" {
			description += "\n"
		}
		description += fmt.Sprintf("Processo: %s", info.Title)
	}

	event := &calendar.Event{
		Summary:     fmt.Sprintf("%s — Processo %s", h.Kind, info.Number),
		Location:    h.Location,
		Description: description,
		Start: &calendar.EventDateTime{
			DateTime: start.Format(time.RFC3339),
			TimeZone: loc.String(),
		},
		End: &calendar.EventDateTime{
			DateTime: end.Format(time.RFC3339),
			TimeZone: loc.String(),
		},
		Reminders: &calendar.EventReminders{
			UseDefault: false,
			Overrides: []*calendar.EventReminder{
				{Method: "popup", Minutes: 24 * 60},
				{Method: "popup", Minutes: 30},
			},
			ForceSendFields: []string{"UseDefault"},
		},
	}

	if h.MeetingLink != "" {
		event.ConferenceData = &calendar.ConferenceData{
			EntryPoints: []*calendar.EntryPoint{
				{EntryPointType: "video", Uri: h.MeetingLink},
			},
			ConferenceSolution: &calendar.ConferenceSolution{
				Name: "Videoconferência",
				Key:  &calendar.ConferenceSolutionKey{Type: "addOn"},
			},
		}
	}

	return event, nil
}
