package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"plancal/internal/model"
)

// Cell is one day in the month grid.
type Cell struct {
	Date    time.Time
	Key     string // YYYY-MM-DD
	InMonth bool
	IsToday bool
	Events  []model.Event
}

// Day returns the day-of-month number shown in the cell.
func (c Cell) Day() int {
	return c.Date.Day()
}

// Grid is a month laid out in whole weeks.
type Grid struct {
	// Month is the first day of the displayed month at 00:00.
	Month     time.Time
	WeekStart time.Weekday
	Headers   []string
	Cells     []Cell
}

// Title formats the month as "January 2025".
func (g Grid) Title() string {
	return g.Month.Format("January 2006")
}

// Param returns the ?month= value for this grid.
func (g Grid) Param() string {
	return g.Month.Format(model.MonthLayout)
}

func (g Grid) Prev() time.Time {
	return g.Month.AddDate(0, -1, 0)
}

func (g Grid) Next() time.Time {
	return g.Month.AddDate(0, 1, 0)
}

// Weeks splits the cells into rows of seven.
func (g Grid) Weeks() [][]Cell {
	weeks := make([][]Cell, 0, len(g.Cells)/7)
	for i := 0; i+7 <= len(g.Cells); i += 7 {
		weeks = append(weeks, g.Cells[i:i+7])
	}
	return weeks
}

// ParseWeekStart maps a config value to a weekday. Only "sunday" switches
// away from the ISO Monday start.
func ParseWeekStart(s string) time.Weekday {
	if strings.EqualFold(strings.TrimSpace(s), "sunday") {
		return time.Sunday
	}
	return time.Monday
}

// WeekdayHeaders returns the short day names starting at start.
func WeekdayHeaders(start time.Weekday) []string {
	out := make([]string, 7)
	for i := range out {
		out[i] = time.Weekday((int(start) + i) % 7).String()[:3]
	}
	return out
}

// ParseMonth parses a YYYY-MM value in loc. Empty or malformed input falls
// back to the month containing now.
func ParseMonth(s string, now time.Time) time.Time {
	loc := now.Location()
	if t, err := time.ParseInLocation(model.MonthLayout, strings.TrimSpace(s), loc); err == nil {
		return t
	}
	return StartOfMonth(now)
}

func StartOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// StartOfWeek returns midnight of the first day of the week containing t.
func StartOfWeek(t time.Time, weekStart time.Weekday) time.Time {
	offset := (int(t.Weekday()) - int(weekStart) + 7) % 7
	return StartOfDay(t).AddDate(0, 0, -offset)
}

// EndOfWeek returns midnight of the last day of the week containing t.
func EndOfWeek(t time.Time, weekStart time.Weekday) time.Time {
	return StartOfWeek(t, weekStart).AddDate(0, 0, 6)
}

// Span returns the first and last grid day for the month containing month.
func Span(month time.Time, weekStart time.Weekday) (time.Time, time.Time) {
	first := StartOfMonth(month)
	last := first.AddDate(0, 1, -1)
	return StartOfWeek(first, weekStart), EndOfWeek(last, weekStart)
}

// Days enumerates every day from start to end inclusive with a daily rule.
func Days(start, end time.Time) ([]time.Time, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("calendar: end %s before start %s", end.Format(model.DateLayout), start.Format(model.DateLayout))
	}
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.DAILY,
		Dtstart: StartOfDay(start),
		Until:   StartOfDay(end),
	})
	if err != nil {
		return nil, fmt.Errorf("calendar: daily rule: %w", err)
	}
	loc := start.Location()
	days := r.All()
	for i, d := range days {
		// Keep midnight wall clock in the caller's zone across DST shifts.
		d = d.In(loc)
		days[i] = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	}
	return days, nil
}

// BuildMonth lays out the month containing month in whole weeks and puts
// each event into the cell of its date. today marks the highlighted cell.
func BuildMonth(month time.Time, events []model.Event, today time.Time, weekStart time.Weekday) (Grid, error) {
	loc := month.Location()
	today = today.In(loc)

	gridStart, gridEnd := Span(month, weekStart)
	days, err := Days(gridStart, gridEnd)
	if err != nil {
		return Grid{}, err
	}

	buckets := BucketByDay(events)
	first := StartOfMonth(month)
	todayKey := today.Format(model.DateLayout)

	cells := make([]Cell, 0, len(days))
	for _, d := range days {
		key := d.Format(model.DateLayout)
		cells = append(cells, Cell{
			Date:    d,
			Key:     key,
			InMonth: d.Year() == first.Year() && d.Month() == first.Month(),
			IsToday: key == todayKey,
			Events:  buckets[key],
		})
	}

	return Grid{
		Month:     first,
		WeekStart: weekStart,
		Headers:   WeekdayHeaders(weekStart),
		Cells:     cells,
	}, nil
}

// BucketByDay groups events by calendar day in a single pass, keeping the
// list order inside each day. Events with malformed dates are skipped.
func BucketByDay(events []model.Event) map[string][]model.Event {
	out := make(map[string][]model.Event)
	for _, ev := range events {
		key, ok := dayKey(ev.Date)
		if !ok {
			continue
		}
		out[key] = append(out[key], ev)
	}
	return out
}

// EventsOn returns the events that fall on the same calendar day as day.
func EventsOn(events []model.Event, day time.Time) []model.Event {
	want := day.Format(model.DateLayout)
	var out []model.Event
	for _, ev := range events {
		if key, ok := dayKey(ev.Date); ok && key == want {
			out = append(out, ev)
		}
	}
	return out
}

func dayKey(date string) (string, bool) {
	d, err := time.Parse(model.DateLayout, strings.TrimSpace(date))
	if err != nil {
		return "", false
	}
	return d.Format(model.DateLayout), true
}
