package model

import (
	"errors"
	"strings"
	"time"
)

// Layouts used by the stored event format.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
	// MonthLayout is the ?month= query format used for navigation.
	MonthLayout = "2006-01"
)

// Status is the completion flag of an event.
type Status int

const (
	StatusPending   Status = 0
	StatusCompleted Status = 1
)

// Label is what the UI shows for a status. Anything that is not
// completed reads as pending.
func (s Status) Label() string {
	if s == StatusCompleted {
		return "Completed"
	}
	return "Pending"
}

// Palette is the background / accent colour pair used for a status.
type Palette struct {
	Background string
	Border     string
}

func (s Status) Palette() Palette {
	switch s {
	case StatusPending:
		return Palette{Background: "#FEF8E8", Border: "#FEE5A5"}
	case StatusCompleted:
		return Palette{Background: "#F6FAF3", Border: "#4CAF50"}
	default:
		return Palette{Background: "#F7F7F7", Border: "#DEDEDE"}
	}
}

func (s Status) Valid() bool {
	return s == StatusPending || s == StatusCompleted
}

// Event is a single calendar entry as persisted under the "events" key.
type Event struct {
	ID               string `json:"id,omitempty"`
	Title            string `json:"title"`
	Date             string `json:"date"`
	StartTime        string `json:"start_time"`
	EndTime          string `json:"end_time"`
	CompletionStatus Status `json:"completion_status"`
}

// Day parses Date in loc. The zero time is returned for malformed dates.
func (e Event) Day(loc *time.Location) time.Time {
	d, err := time.ParseInLocation(DateLayout, e.Date, loc)
	if err != nil {
		return time.Time{}
	}
	return d
}

// Start combines Date and StartTime in loc.
func (e Event) Start(loc *time.Location) (time.Time, error) {
	return combine(e.Date, e.StartTime, loc)
}

// End combines Date and EndTime in loc.
func (e Event) End(loc *time.Location) (time.Time, error) {
	return combine(e.Date, e.EndTime, loc)
}

// SameSlot reports whether two events start on the same date at the same time.
func (e Event) SameSlot(o Event) bool {
	return e.Date == o.Date && e.StartTime == o.StartTime
}

// Normalize rewrites a parseable date and times into the canonical
// YYYY-MM-DD and HH:mm forms ("8:00" becomes "08:00") so slot comparison
// is exact. Malformed values are left alone. It reports whether anything
// changed.
func (e *Event) Normalize() bool {
	changed := false
	if d, err := time.Parse(DateLayout, strings.TrimSpace(e.Date)); err == nil {
		if v := d.Format(DateLayout); v != e.Date {
			e.Date, changed = v, true
		}
	}
	for _, hhmm := range []*string{&e.StartTime, &e.EndTime} {
		t, err := time.Parse(TimeLayout, strings.TrimSpace(*hhmm))
		if err != nil {
			continue
		}
		if v := t.Format(TimeLayout); v != *hhmm {
			*hhmm, changed = v, true
		}
	}
	return changed
}

// TimeRange formats "8:00 AM - 9:00 AM". Unparseable times are shown raw.
func (e Event) TimeRange() string {
	return clock(e.StartTime) + " - " + clock(e.EndTime)
}

// CardDate formats the date as "Jan 2, 2006".
func (e Event) CardDate() string {
	d, err := time.Parse(DateLayout, e.Date)
	if err != nil {
		return e.Date
	}
	return d.Format("Jan 2, 2006")
}

// DetailDate formats the date as "Jan 2, Mon".
func (e Event) DetailDate() string {
	d, err := time.Parse(DateLayout, e.Date)
	if err != nil {
		return e.Date
	}
	return d.Format("Jan 2, Mon")
}

func clock(hhmm string) string {
	t, err := time.Parse(TimeLayout, hhmm)
	if err != nil {
		return hhmm
	}
	return t.Format("3:04 PM")
}

func combine(date, hhmm string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(DateLayout+" "+TimeLayout, date+" "+hhmm, loc)
}

var (
	ErrEmptyTitle     = errors.New("title is required")
	ErrInvalidDate    = errors.New("date must be YYYY-MM-DD")
	ErrInvalidTime    = errors.New("time must be HH:mm")
	ErrEndBeforeStart = errors.New("end time is before start time")
)

// Draft is the add-event form before it becomes an Event.
type Draft struct {
	Title string `json:"title"`
	Date  string `json:"date"`
	Start string `json:"start_time"`
	End   string `json:"end_time"`
}

// NewDraft returns the form defaults: today, 08:00 to 09:00.
func NewDraft(now time.Time) Draft {
	return Draft{
		Date:  now.Format(DateLayout),
		Start: "08:00",
		End:   "09:00",
	}
}

// Validate checks the draft and normalizes its fields in place.
func (d *Draft) Validate() error {
	d.Title = strings.TrimSpace(d.Title)
	d.Date = strings.TrimSpace(d.Date)
	d.Start = strings.TrimSpace(d.Start)
	d.End = strings.TrimSpace(d.End)

	if d.Title == "" {
		return ErrEmptyTitle
	}
	if _, err := time.Parse(DateLayout, d.Date); err != nil {
		return ErrInvalidDate
	}
	start, err := time.Parse(TimeLayout, d.Start)
	if err != nil {
		return ErrInvalidTime
	}
	end, err := time.Parse(TimeLayout, d.End)
	if err != nil {
		return ErrInvalidTime
	}
	// Re-format so "8:05" style inputs compare equal in the slot check.
	d.Start = start.Format(TimeLayout)
	d.End = end.Format(TimeLayout)
	if end.Before(start) {
		return ErrEndBeforeStart
	}
	return nil
}

// Event converts a validated draft into a pending event.
func (d Draft) Event(id string) Event {
	return Event{
		ID:               id,
		Title:            d.Title,
		Date:             d.Date,
		StartTime:        d.Start,
		EndTime:          d.End,
		CompletionStatus: StatusPending,
	}
}
