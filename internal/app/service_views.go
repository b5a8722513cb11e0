package app

import (
	"context"
	"sort"
	"time"

	"backlog/api/internal/export"
	"backlog/api/internal/gantt"
	"backlog/api/internal/search"
	"backlog/api/internal/store"
)

// Gantt lays out the project's dated issues on window.
func (s *Service) Gantt(projectID string, window gantt.Window, filter gantt.Filter) []gantt.Bar {
	return window.Bars(s.ProjectIssues(projectID), filter)
}

// GanttWindow is the month shown for now shifted by offset months, at the
// configured day width.
func (s *Service) GanttWindow(offset int) gantt.Window {
	return gantt.Current(s.now(), s.cfg.DayWidth).Shift(offset)
}

// RescheduleIssue persists the dates produced by a finished drag. It goes
// through the normal update path, so history is recorded.
func (s *Service) RescheduleIssue(ctx context.Context, schedule gantt.Schedule, actorID string) (store.Issue, error) {
	return s.UpdateIssue(ctx, schedule.IssueID, IssuePatch{
		StartDate: &schedule.StartDate,
		DueDate:   &schedule.DueDate,
	}, actorID)
}

// searchRecords is the in-memory search source. It takes the lock, so it
// must not be called from inside mutate.
func (s *Service) searchRecords() ([]search.IssueRecord, []search.WikiRecord) {
	doc := s.snapshot()
	issues := make([]search.IssueRecord, 0, len(doc.Issues))
	for _, issue := range doc.Issues {
		issues = append(issues, issueRecord(issue))
	}
	wikis := make([]search.WikiRecord, 0, len(doc.Wikis))
	for _, w := range doc.Wikis {
		wikis = append(wikis, wikiRecord(w))
	}
	return issues, wikis
}

func (s *Service) Search(q search.Query) search.Response {
	return s.search.Search(q)
}

// ExportWiki renders a page with its project name, author name and
// reaction counts.
func (s *Service) ExportWiki(ctx context.Context, id string, format export.Format) (*export.Result, error) {
	doc := s.snapshot()
	idx := wikiIndex(doc, id)
	if idx < 0 {
		return nil, notFound("wiki", id)
	}
	w := doc.Wikis[idx]

	projectID := w.ProjectID
	if projectID == "" {
		projectID = legacyProjectID
	}
	page := export.Page{
		ID:          w.ID,
		Title:       w.Title,
		Author:      memberName(doc, w.Author),
		Tags:        append([]string{}, w.Tags...),
		ContentHTML: w.Content,
		Reactions:   reactionCounts(w.Reactions),
	}
	if p, ok := findProject(doc, projectID); ok {
		page.ProjectName = p.Name
	}
	if created, err := time.Parse(time.RFC3339, w.CreatedAt); err == nil {
		page.CreatedAt = created
	}
	return s.exporter.Export(ctx, page, format)
}

// reactionCounts orders emojis by count, then by emoji for a stable page.
func reactionCounts(reactions store.Reactions) []export.Reaction {
	out := make([]export.Reaction, 0, len(reactions))
	for emoji, users := range reactions {
		if len(users) == 0 {
			continue
		}
		out = append(out, export.Reaction{Emoji: emoji, Count: len(users)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Emoji < out[j].Emoji
	})
	return out
}
