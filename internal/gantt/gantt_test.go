package gantt

import (
	"testing"
	"time"

	"backlog/api/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDate(t *testing.T, value string) time.Time {
	t.Helper()
	d, err := ParseDate(value)
	require.NoError(t, err)
	return d
}

func TestWindowBounds(t *testing.T) {
	w := NewWindow(2024, time.February, 50)
	assert.Equal(t, 29, w.Days())
	assert.Equal(t, 29*50, w.PixelWidth())
	assert.Equal(t, "2024-03-01", FormatDate(w.End))

	dec := NewWindow(2023, time.December, 0)
	assert.Equal(t, DefaultDayWidth, dec.DayWidth)
	assert.Equal(t, "2024-01-01", FormatDate(dec.Shift(1).Start))
	assert.Equal(t, "2023-11-01", FormatDate(dec.Shift(-1).Start))
}

func TestRoundTripMarch2024(t *testing.T) {
	w := NewWindow(2024, time.March, 50)
	start := mustDate(t, "2024-03-05")
	due := mustDate(t, "2024-03-07")

	assert.Equal(t, 200, w.Offset(start))
	assert.Equal(t, 150, w.Width(start, due))

	gotStart, gotDue := w.Inverse(200, 150)
	assert.Equal(t, "2024-03-05", gotStart)
	assert.Equal(t, "2024-03-07", gotDue)
}

func TestRoundTripAcrossDSTAndMonths(t *testing.T) {
	w := NewWindow(2024, time.March, 37)
	// every pair within a window that spans the March DST switch in most zones
	for s := -10; s < 45; s++ {
		for d := 0; d < 20; d++ {
			start := w.Start.AddDate(0, 0, s)
			due := start.AddDate(0, 0, d)
			gotStart, gotDue := w.Inverse(float64(w.Offset(start)), float64(w.Width(start, due)))
			require.Equal(t, FormatDate(start), gotStart)
			require.Equal(t, FormatDate(due), gotDue)
		}
	}
}

func TestInverseSnapsAndClamps(t *testing.T) {
	w := NewWindow(2024, time.March, 50)

	start, due := w.Inverse(224, 126)
	assert.Equal(t, "2024-03-05", start)
	assert.Equal(t, "2024-03-07", due)

	start, due = w.Inverse(226, 10)
	assert.Equal(t, "2024-03-06", start)
	assert.Equal(t, "2024-03-06", due, "duration is at least one day")

	start, _ = w.Inverse(-25, 50)
	assert.Equal(t, "2024-03-01", start, "half a day left rounds toward the window")

	start, _ = w.Inverse(-26, 50)
	assert.Equal(t, "2024-02-29", start)
}

func TestVisible(t *testing.T) {
	w := NewWindow(2024, time.March, 50)
	cases := []struct {
		start, due string
		want       bool
	}{
		{"2024-03-05", "2024-03-07", true},
		{"2024-02-20", "2024-03-01", true},
		{"2024-02-20", "2024-02-29", false},
		{"2024-03-31", "2024-04-02", true},
		{"2024-04-01", "2024-04-02", false},
		{"2024-02-01", "2024-05-01", true},
	}
	for _, tc := range cases {
		got := w.Visible(mustDate(t, tc.start), mustDate(t, tc.due))
		assert.Equal(t, tc.want, got, "%s..%s", tc.start, tc.due)
	}
}

func TestTodayOffset(t *testing.T) {
	w := NewWindow(2024, time.March, 50)

	offset, ok := w.TodayOffset(time.Date(2024, 3, 3, 12, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.InDelta(t, 125.0, offset, 0.0001)

	_, ok = w.TodayOffset(time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC))
	assert.False(t, ok)
	_, ok = w.TodayOffset(time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC))
	assert.False(t, ok)
}

func TestBarsFilterAndSkipUndated(t *testing.T) {
	w := NewWindow(2024, time.March, 50)
	issues := []store.Issue{
		{ID: "a", Title: "A", StartDate: "2024-03-05", DueDate: "2024-03-07", Category: "dev", Assignee: "alice"},
		{ID: "b", Title: "B", StartDate: "2024-03-01"},
		{ID: "c", Title: "C", StartDate: "2024-04-05", DueDate: "2024-04-07", Category: "dev"},
		{ID: "d", Title: "D", StartDate: "2024-03-10", DueDate: "2024-03-12", Category: "design", Assignee: "bob"},
		{ID: "e", Title: "E", StartDate: "bogus", DueDate: "2024-03-12"},
	}

	all := w.Bars(issues, Filter{Category: Any, Assignee: Any})
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].IssueID)
	assert.Equal(t, 200, all[0].Left)
	assert.Equal(t, 150, all[0].Width)
	assert.Equal(t, "a", all[0].Key, "legacy issue falls back to id")

	dev := w.Bars(issues, Filter{Category: "dev"})
	require.Len(t, dev, 1)
	assert.Equal(t, "a", dev[0].IssueID)

	bob := w.Bars(issues, Filter{Assignee: "bob"})
	require.Len(t, bob, 1)
	assert.Equal(t, "d", bob[0].IssueID)

	_, ok := w.Bar(issues[1])
	assert.False(t, ok)
}

func TestCurrent(t *testing.T) {
	w := Current(time.Date(2024, 7, 15, 23, 0, 0, 0, time.UTC), 40)
	assert.Equal(t, "2024-07-01", FormatDate(w.Start))
	assert.Equal(t, 40, w.DayWidth)
}
