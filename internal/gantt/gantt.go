// Package gantt maps issue date ranges onto a month-wide timeline and back.
// All arithmetic is on UTC calendar days, so conversions never drift across
// daylight-saving changes.
package gantt

import (
	"fmt"
	"math"
	"time"

	"backlog/api/internal/store"
)

const (
	DateLayout      = "2006-01-02"
	DefaultDayWidth = 50
	secondsPerDay   = 24 * 60 * 60
)

// ParseDate parses a YYYY-MM-DD calendar date as UTC midnight.
func ParseDate(value string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return t, nil
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

func daysBetween(from, to time.Time) int {
	return int((to.Unix() - from.Unix()) / secondsPerDay)
}

// jsRound rounds half toward positive infinity, so -0.5 becomes 0 rather
// than -1. Drag positions left of the window rely on this.
func jsRound(v float64) int {
	return int(math.Floor(v + 0.5))
}

// Window is the visible month [Start, End) with a fixed day width in pixels.
type Window struct {
	Start    time.Time
	End      time.Time
	DayWidth int
}

func NewWindow(year int, month time.Month, dayWidth int) Window {
	if dayWidth <= 0 {
		dayWidth = DefaultDayWidth
	}
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return Window{Start: start, End: start.AddDate(0, 1, 0), DayWidth: dayWidth}
}

// Current returns the window for the month containing now.
func Current(now time.Time, dayWidth int) Window {
	now = now.UTC()
	return NewWindow(now.Year(), now.Month(), dayWidth)
}

func (w Window) Days() int {
	return daysBetween(w.Start, w.End)
}

// PixelWidth is the width of the whole window.
func (w Window) PixelWidth() int {
	return w.Days() * w.DayWidth
}

// Shift moves the window by whole months.
func (w Window) Shift(months int) Window {
	start := w.Start.AddDate(0, months, 0)
	return NewWindow(start.Year(), start.Month(), w.DayWidth)
}

// Offset is the left edge of date relative to the window start. It may be
// negative or beyond the window; callers clip for display only.
func (w Window) Offset(date time.Time) int {
	return daysBetween(w.Start, date) * w.DayWidth
}

// Width spans start..end inclusive of both days.
func (w Window) Width(start, end time.Time) int {
	return (daysBetween(start, end) + 1) * w.DayWidth
}

// Visible reports whether the inclusive range start..due overlaps the window.
func (w Window) Visible(start, due time.Time) bool {
	return start.Before(w.End) && !due.Before(w.Start)
}

// TodayOffset places a "today" marker. ok is false when now falls outside
// the window.
func (w Window) TodayOffset(now time.Time) (float64, bool) {
	days := now.Sub(w.Start).Hours() / 24
	if days < 0 || days > float64(w.Days()) {
		return 0, false
	}
	return days * float64(w.DayWidth), true
}

// Inverse reconstructs calendar dates from a bar's pixel geometry, snapping
// to whole days. The duration is at least one day.
func (w Window) Inverse(left, width float64) (start, due string) {
	offsetDays := jsRound(left / float64(w.DayWidth))
	durationDays := jsRound(width / float64(w.DayWidth))
	if durationDays < 1 {
		durationDays = 1
	}
	startDate := w.Start.AddDate(0, 0, offsetDays)
	dueDate := startDate.AddDate(0, 0, durationDays-1)
	return FormatDate(startDate), FormatDate(dueDate)
}

// Bar is the unclipped geometry of one issue on the timeline.
type Bar struct {
	IssueID   string `json:"issueId"`
	Key       string `json:"key"`
	Title     string `json:"title"`
	Status    string `json:"status"`
	Assignee  string `json:"assignee"`
	StartDate string `json:"startDate"`
	DueDate   string `json:"dueDate"`
	Left      int    `json:"left"`
	Width     int    `json:"width"`
}

// Bar computes the geometry of issue. ok is false when the issue lacks a
// valid start or due date, or when due precedes start.
func (w Window) Bar(issue store.Issue) (Bar, bool) {
	start, due, ok := issueDates(issue)
	if !ok || due.Before(start) {
		return Bar{}, false
	}
	return Bar{
		IssueID:   issue.ID,
		Key:       issue.DisplayKey(),
		Title:     issue.Title,
		Status:    issue.Status,
		Assignee:  issue.Assignee,
		StartDate: issue.StartDate,
		DueDate:   issue.DueDate,
		Left:      w.Offset(start),
		Width:     w.Width(start, due),
	}, true
}

// Bars returns the bars of the dated issues that match filter and overlap
// the window, in input order.
func (w Window) Bars(issues []store.Issue, filter Filter) []Bar {
	bars := make([]Bar, 0)
	for _, issue := range issues {
		if !filter.Match(issue) {
			continue
		}
		start, due, ok := issueDates(issue)
		if !ok || !w.Visible(start, due) {
			continue
		}
		if bar, ok := w.Bar(issue); ok {
			bars = append(bars, bar)
		}
	}
	return bars
}

func issueDates(issue store.Issue) (time.Time, time.Time, bool) {
	if issue.StartDate == "" || issue.DueDate == "" {
		return time.Time{}, time.Time{}, false
	}
	start, err := ParseDate(issue.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	due, err := ParseDate(issue.DueDate)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	return start, due, true
}

// Any matches every value in a Filter field.
const Any = "all"

// Filter narrows the timeline by category and assignee. Empty or "all"
// matches everything.
type Filter struct {
	Category string
	Assignee string
}

func (f Filter) Match(issue store.Issue) bool {
	if f.Category != "" && f.Category != Any && issue.Category != f.Category {
		return false
	}
	if f.Assignee != "" && f.Assignee != Any && issue.Assignee != f.Assignee {
		return false
	}
	return true
}
