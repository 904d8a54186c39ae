// Package ics renders the hearing agenda as a read-only iCalendar feed, so
// desktop calendar applications can subscribe without going through OAuth.
// The feed is entirely outside the synchronization state machine.
package ics

import (
	"bytes"
	"fmt"
	"time"

	"github.com/emersion/go-ical"

	"github.com/adv-tools/audsync/internal/hearing"
)

const productID = "-//audsync//Hearing Agenda//PT"

// Feed encodes the hearings as a VCALENDAR with one one-hour VEVENT each.
// Instants are emitted in UTC so no VTIMEZONE component is needed. Hearings
// whose date or time does not parse are skipped rather than aborting the
// whole feed.
func Feed(hearings []hearing.Hearing, loc *time.Location) ([]byte, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)

	now := time.Now().UTC()
	for _, h := range hearings {
		start, err := h.StartAt(loc)
		if err != nil {
			continue
		}
		start = start.UTC()

		vevent := ical.NewComponent(ical.CompEvent)
		vevent.Props.SetText(ical.PropUID, h.ID)
		vevent.Props.SetDateTime(ical.PropDateTimeStamp, now)
		vevent.Props.SetDateTime(ical.PropDateTimeStart, start)
		vevent.Props.SetDateTime(ical.PropDateTimeEnd, start.Add(time.Hour))
		vevent.Props.SetText(ical.PropSummary, h.Kind)
		if h.Location != "" {
			vevent.Props.SetText(ical.PropLocation, h.Location)
		}
		if h.Notes != "" {
			vevent.Props.SetText(ical.PropDescription, h.Notes)
		}
		if h.MeetingLink != "" {
			url := ical.NewProp(ical.PropURL)
			url.Value = h.MeetingLink
			vevent.Props.Set(url)
		}
		cal.Children = append(cal.Children, vevent)
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("failed to encode calendar feed: %w", err)
	}
	return buf.Bytes(), nil
}
