package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plancal/internal/model"
)

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(strings.TrimLeft(s, "\n"), "\n", "\r\n"))
}

var feed = crlf(`
BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//EN
BEGIN:VEVENT
UID:weekly-1
DTSTAMP:20250101T000000Z
DTSTART:20250707T083000Z
DTEND:20250707T090000Z
RRULE:FREQ=WEEKLY;COUNT=4
EXDATE:20250714T083000Z
SUMMARY:Standup\, weekly
END:VEVENT
BEGIN:VEVENT
UID:allday-1
DTSTAMP:20250101T000000Z
DTSTART;VALUE=DATE:20250720
DTEND;VALUE=DATE:20250721
SUMMARY:Holiday
STATUS:COMPLETED
END:VEVENT
BEGIN:VEVENT
DTSTAMP:20250101T000000Z
DTSTART:20250722T083000Z
SUMMARY:No UID
END:VEVENT
END:VCALENDAR
`)

func TestParse(t *testing.T) {
	events, err := Parse(feed)
	require.NoError(t, err)
	require.Len(t, events, 2, "event without UID is skipped")

	weekly := events[0]
	assert.Equal(t, "weekly-1", weekly.UID)
	assert.Equal(t, "Standup, weekly", weekly.Summary)
	assert.Equal(t, "FREQ=WEEKLY;COUNT=4", weekly.RawRRule)
	assert.False(t, weekly.AllDay)
	require.Len(t, weekly.ExDates, 1)
	assert.True(t, weekly.ExDates[0].Equal(time.Date(2025, 7, 14, 8, 30, 0, 0, time.UTC)))

	holiday := events[1]
	assert.True(t, holiday.AllDay)
	assert.True(t, holiday.Completed)
}

func TestParseEmpty(t *testing.T) {
	_, err := Parse([]byte("  \n"))
	assert.Error(t, err)
}

func TestDecodeExpandsSeries(t *testing.T) {
	from := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 8, 31, 0, 0, 0, 0, time.UTC)

	got, err := Decode(feed, time.UTC, from, to)
	require.NoError(t, err)

	want := []model.Event{
		{Title: "Standup, weekly", Date: "2025-07-07", StartTime: "08:30", EndTime: "09:00"},
		{Title: "Standup, weekly", Date: "2025-07-21", StartTime: "08:30", EndTime: "09:00"},
		{Title: "Standup, weekly", Date: "2025-07-28", StartTime: "08:30", EndTime: "09:00"},
		{Title: "Holiday", Date: "2025-07-20", StartTime: "00:00", EndTime: "23:59", CompletionStatus: model.StatusCompleted},
	}
	assert.Equal(t, want, got)
}

func TestExpandCapsSeries(t *testing.T) {
	start := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	res, err := Expand([]ParsedEvent{{
		UID:      "daily",
		Start:    start,
		End:      start.Add(time.Hour),
		RawRRule: "FREQ=DAILY",
	}}, ExpandConfig{
		DisplayLocation:        time.UTC,
		RangeStart:             start,
		RangeEnd:               start.AddDate(0, 0, 30),
		MaxOccurrencesPerEvent: 10,
	})
	require.NoError(t, err)
	assert.Len(t, res.Occurrences, 10)
	assert.Equal(t, []string{"daily"}, res.TruncatedEvents)
}

func TestExpandAppliesOverride(t *testing.T) {
	start := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	moved := start.AddDate(0, 0, 7)
	res, err := Expand([]ParsedEvent{
		{UID: "s", Summary: "base", Start: start, End: start.Add(time.Hour), RawRRule: "FREQ=WEEKLY;COUNT=2"},
		{UID: "s", Summary: "moved", Start: moved.Add(2 * time.Hour), End: moved.Add(3 * time.Hour), Recurrence: &moved, IsOverride: true},
	}, ExpandConfig{DisplayLocation: time.UTC, RangeStart: start, RangeEnd: start.AddDate(0, 1, 0)})
	require.NoError(t, err)
	require.Len(t, res.Occurrences, 2)
	assert.Equal(t, "base", res.Occurrences[0].Summary)
	assert.Equal(t, "moved", res.Occurrences[1].Summary)
	assert.Equal(t, 11, res.Occurrences[1].Start.Hour())
}

func TestExpandRejectsReversedRange(t *testing.T) {
	now := time.Now()
	_, err := Expand(nil, ExpandConfig{RangeStart: now, RangeEnd: now.Add(-time.Hour)})
	assert.Error(t, err)
}

func TestExportRoundTrip(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	events := []model.Event{
		{ID: "a1", Title: "Team sync", Date: "2025-07-14", StartTime: "10:00", EndTime: "10:30", CompletionStatus: model.StatusCompleted},
		{ID: "b2", Title: "Lunch", Date: "2025-07-15", StartTime: "12:00", EndTime: "13:00"},
		{ID: "bad", Title: "Broken", Date: "soon", StartTime: "?", EndTime: "?"},
	}

	body := Export(events, loc, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC))
	assert.Contains(t, body, "PRODID:"+ProductID)
	assert.Contains(t, body, "UID:a1@plancal")
	assert.Contains(t, body, "DTSTART:20250714T043000Z")
	assert.Contains(t, body, "STATUS:COMPLETED")
	assert.NotContains(t, body, "Broken")

	got, err := Decode([]byte(body), loc, time.Date(2025, 7, 1, 0, 0, 0, 0, loc), time.Date(2025, 8, 1, 0, 0, 0, 0, loc))
	require.NoError(t, err)
	assert.Equal(t, events[:2], got)
}

func TestToEventsClipsAtMidnight(t *testing.T) {
	start := time.Date(2025, 7, 14, 22, 0, 0, 0, time.UTC)
	got := ToEvents([]Occurrence{{UID: "x@elsewhere", Start: start, End: start.Add(4 * time.Hour)}}, time.UTC)
	require.Len(t, got, 1)
	assert.Equal(t, model.Event{Title: "(untitled)", Date: "2025-07-14", StartTime: "22:00", EndTime: "23:59"}, got[0])
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.ics" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = w.Write(feed)
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client())
	body, err := f.Fetch(context.Background(), srv.URL+"/cal.ics?token=secret")
	require.NoError(t, err)
	assert.Equal(t, feed, body)

	_, err = f.Fetch(context.Background(), srv.URL+"/missing.ics")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "missing.ics")

	_, err = f.Fetch(context.Background(), "")
	assert.Error(t, err)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://example.com/...(redacted)", redactURL("https://example.com/private/cal.ics?token=abc"))
	assert.Equal(t, "ics://...(redacted)", redactURL("not a url"))
}
