package calendar

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plancal/internal/model"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestBuildMonthSpansWholeWeeks(t *testing.T) {
	tests := []struct {
		name      string
		month     time.Time
		weekStart time.Weekday
		first     time.Time
		last      time.Time
		cells     int
	}{
		{"july 2025 iso", date(2025, 7, 15), time.Monday, date(2025, 6, 30), date(2025, 8, 3), 35},
		{"july 2025 sunday", date(2025, 7, 15), time.Sunday, date(2025, 6, 29), date(2025, 8, 2), 35},
		{"february 2021 fits four weeks", date(2021, 2, 10), time.Monday, date(2021, 2, 1), date(2021, 2, 28), 28},
		{"march 2025 needs six weeks", date(2025, 3, 1), time.Monday, date(2025, 2, 24), date(2025, 4, 6), 42},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := BuildMonth(tt.month, nil, date(2000, 1, 1), tt.weekStart)
			require.NoError(t, err)
			require.Len(t, g.Cells, tt.cells)
			assert.Equal(t, tt.first, g.Cells[0].Date)
			assert.Equal(t, tt.last, g.Cells[len(g.Cells)-1].Date)
			assert.Equal(t, tt.weekStart, g.Cells[0].Date.Weekday())
			assert.Len(t, g.Weeks(), tt.cells/7)
		})
	}
}

func TestBuildMonthMarksMonthAndToday(t *testing.T) {
	g, err := BuildMonth(date(2025, 7, 1), nil, time.Date(2025, 7, 4, 15, 30, 0, 0, time.UTC), time.Monday)
	require.NoError(t, err)

	var inMonth, today []string
	for _, c := range g.Cells {
		if c.InMonth {
			inMonth = append(inMonth, c.Key)
		}
		if c.IsToday {
			today = append(today, c.Key)
		}
	}
	assert.Len(t, inMonth, 31)
	assert.Equal(t, "2025-07-01", inMonth[0])
	assert.Equal(t, []string{"2025-07-04"}, today)
	assert.False(t, g.Cells[0].InMonth, "leading June day is dimmed")
	assert.Equal(t, 30, g.Cells[0].Day())
}

func TestBuildMonthBucketsEvents(t *testing.T) {
	events := []model.Event{
		{Title: "a", Date: "2025-07-04", StartTime: "09:00"},
		{Title: "b", Date: "2025-06-30", StartTime: "10:00"},
		{Title: "c", Date: "2025-07-04", StartTime: "08:00"},
		{Title: "outside", Date: "2025-09-01", StartTime: "08:00"},
		{Title: "junk", Date: "not a date"},
	}
	g, err := BuildMonth(date(2025, 7, 1), events, date(2025, 7, 4), time.Monday)
	require.NoError(t, err)

	byKey := map[string][]string{}
	for _, c := range g.Cells {
		for _, ev := range c.Events {
			byKey[c.Key] = append(byKey[c.Key], ev.Title)
		}
	}
	want := map[string][]string{
		"2025-06-30": {"b"},
		"2025-07-04": {"a", "c"},
	}
	if diff := cmp.Diff(want, byKey); diff != "" {
		t.Errorf("bucketed events mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildMonthAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	g, err := BuildMonth(time.Date(2025, 3, 20, 12, 0, 0, 0, loc), nil, time.Now(), time.Monday)
	require.NoError(t, err)
	require.Len(t, g.Cells, 42)
	for i, c := range g.Cells {
		assert.Zero(t, c.Date.Hour(), c.Key)
		if i > 0 {
			prev := g.Cells[i-1].Date
			assert.Equal(t, prev.AddDate(0, 0, 1), c.Date, c.Key)
		}
	}
}

func TestGridNavigation(t *testing.T) {
	g, err := BuildMonth(date(2025, 1, 20), nil, date(2025, 1, 20), time.Monday)
	require.NoError(t, err)
	assert.Equal(t, "January 2025", g.Title())
	assert.Equal(t, "2025-01", g.Param())
	assert.Equal(t, date(2024, 12, 1), g.Prev())
	assert.Equal(t, date(2025, 2, 1), g.Next())
}

func TestWeekdayHeaders(t *testing.T) {
	assert.Equal(t, []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}, WeekdayHeaders(time.Monday))
	assert.Equal(t, []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}, WeekdayHeaders(time.Sunday))
}

func TestParseWeekStart(t *testing.T) {
	assert.Equal(t, time.Sunday, ParseWeekStart("Sunday"))
	assert.Equal(t, time.Monday, ParseWeekStart("monday"))
	assert.Equal(t, time.Monday, ParseWeekStart("friday"))
}

func TestParseMonth(t *testing.T) {
	now := time.Date(2025, 7, 19, 22, 0, 0, 0, time.UTC)
	assert.Equal(t, date(2024, 2, 1), ParseMonth("2024-02", now))
	assert.Equal(t, date(2025, 7, 1), ParseMonth("", now))
	assert.Equal(t, date(2025, 7, 1), ParseMonth("2024-13", now))
}

func TestDaysRejectsReversedRange(t *testing.T) {
	_, err := Days(date(2025, 1, 2), date(2025, 1, 1))
	assert.Error(t, err)

	days, err := Days(date(2025, 1, 1), date(2025, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, []time.Time{date(2025, 1, 1)}, days)
}

func TestEventsOn(t *testing.T) {
	events := []model.Event{
		{Title: "a", Date: "2025-07-04"},
		{Title: "b", Date: "2025-07-05"},
		{Title: "c", Date: "2025-07-04"},
	}
	got := EventsOn(events, time.Date(2025, 7, 4, 23, 59, 0, 0, time.UTC))
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Title)
	assert.Equal(t, "c", got[1].Title)
	assert.Empty(t, EventsOn(events, date(2025, 7, 6)))
}
