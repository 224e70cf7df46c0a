package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"

	"plancal/internal/model"
)

const (
	ProductID    = "-//plancal//World of Plans//EN"
	CalendarName = "World of Plans"
	uidDomain    = "@plancal"
)

// Export renders events as a VCALENDAR. Times are interpreted in loc and
// written in UTC. Events with unparseable times are skipped.
func Export(events []model.Event, loc *time.Location, now time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)
	cal.SetXWRCalName(CalendarName)

	for _, ev := range events {
		start, err := ev.Start(loc)
		if err != nil {
			continue
		}
		end, err := ev.End(loc)
		if err != nil {
			end = start
		}

		vev := cal.AddEvent(ev.ID + uidDomain)
		vev.SetDtStampTime(now.UTC())
		vev.SetStartAt(start)
		vev.SetEndAt(end)
		vev.SetSummary(ev.Title)
		status := "CONFIRMED"
		if ev.CompletionStatus == model.StatusCompleted {
			status = "COMPLETED"
		}
		vev.SetProperty(ical.ComponentPropertyStatus, status)
	}
	return cal.Serialize()
}

// ToEvents converts occurrences to events in loc. All-day occurrences
// span 00:00 to 23:59 of their day. Occurrences of events exported by
// this service keep their ID; foreign ones get an empty ID.
func ToEvents(occs []Occurrence, loc *time.Location) []model.Event {
	if loc == nil {
		loc = time.Local
	}
	out := make([]model.Event, 0, len(occs))
	for _, o := range occs {
		ev := model.Event{Title: o.Summary}
		if id, ok := StripUIDDomain(o.UID); ok {
			ev.ID = id
		}
		if o.Completed {
			ev.CompletionStatus = model.StatusCompleted
		}
		if o.AllDay {
			ev.Date = o.Start.Format(model.DateLayout)
			ev.StartTime = "00:00"
			ev.EndTime = "23:59"
		} else {
			start := o.Start.In(loc)
			end := o.End.In(loc)
			ev.Date = start.Format(model.DateLayout)
			ev.StartTime = start.Format(model.TimeLayout)
			ev.EndTime = end.Format(model.TimeLayout)
			if end.Format(model.DateLayout) != ev.Date {
				// Events are single-day records; clip at midnight.
				ev.EndTime = "23:59"
			}
		}
		if ev.Title == "" {
			ev.Title = "(untitled)"
		}
		out = append(out, ev)
	}
	return out
}

// StripUIDDomain maps a UID written by Export back to the event ID.
func StripUIDDomain(uid string) (string, bool) {
	if n := len(uid) - len(uidDomain); n > 0 && uid[n:] == uidDomain {
		return uid[:n], true
	}
	return "", false
}
