package app

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"backlog/api/internal/gantt"
	"backlog/api/internal/history"
	"backlog/api/internal/notify"
	"backlog/api/internal/resolve"
	"backlog/api/internal/search"
	"backlog/api/internal/store"
	"backlog/api/internal/util"
)

type IssueInput struct {
	ProjectID string `json:"projectId" validate:"required"`
	Key       string `json:"key"`
	Title     string `json:"title" validate:"required"`
	Desc      string `json:"desc"`
	Status    string `json:"status"`
	Priority  string `json:"priority"`
	Category  string `json:"category"`
	Assignee  string `json:"assignee"`
	StartDate string `json:"startDate"`
	DueDate   string `json:"dueDate"`
	CreatedAt string `json:"createdAt"`
}

// IssuePatch updates only the fields that are set. Comments, reactions and
// history have their own operations and are never patched directly.
type IssuePatch struct {
	Key       *string `json:"key"`
	ProjectID *string `json:"projectId" validate:"omitnil,required"`
	Title     *string `json:"title" validate:"omitnil,required"`
	Desc      *string `json:"desc"`
	Status    *string `json:"status"`
	Priority  *string `json:"priority"`
	Category  *string `json:"category"`
	Assignee  *string `json:"assignee"`
	StartDate *string `json:"startDate"`
	DueDate   *string `json:"dueDate"`
}

func (p IssuePatch) apply(issue *store.Issue) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&issue.Key, p.Key)
	set(&issue.ProjectID, p.ProjectID)
	set(&issue.Title, p.Title)
	set(&issue.Desc, p.Desc)
	set(&issue.Status, p.Status)
	set(&issue.Priority, p.Priority)
	set(&issue.Category, p.Category)
	set(&issue.Assignee, p.Assignee)
	set(&issue.StartDate, p.StartDate)
	set(&issue.DueDate, p.DueDate)
}

func checkDates(start, due string) error {
	fields := [][2]string{{"startDate", start}, {"dueDate", due}}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if _, err := gantt.ParseDate(f[1]); err != nil {
			return validationFailed("Dates must use YYYY-MM-DD", map[string]any{"field": f[0], "value": f[1]})
		}
	}
	return nil
}

func (s *Service) Issues() []store.Issue {
	return append([]store.Issue{}, s.snapshot().Issues...)
}

// ProjectIssues lists the issues shown in projectID, including legacy
// issues without a project in the seed project.
func (s *Service) ProjectIssues(projectID string) []store.Issue {
	out := []store.Issue{}
	for _, issue := range s.snapshot().Issues {
		if belongsTo(issue.ProjectID, projectID) {
			out = append(out, issue)
		}
	}
	return out
}

func (s *Service) Issue(id string) (store.Issue, error) {
	doc := s.snapshot()
	idx := issueIndex(doc, id)
	if idx < 0 {
		return store.Issue{}, notFound("issue", id)
	}
	return doc.Issues[idx], nil
}

// CreateIssue adds an issue. The key defaults to PROJ-<millis> and must be
// unique within the project; the id is always generated.
func (s *Service) CreateIssue(ctx context.Context, input IssueInput, actorID string) (store.Issue, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Key = strings.TrimSpace(input.Key)
	if err := s.check(input); err != nil {
		return store.Issue{}, err
	}
	if err := checkDates(input.StartDate, input.DueDate); err != nil {
		return store.Issue{}, err
	}

	now := s.now()
	issue := store.Issue{
		ID:        util.StampedID("iss", now),
		Key:       input.Key,
		ProjectID: input.ProjectID,
		Title:     input.Title,
		Desc:      input.Desc,
		Status:    input.Status,
		Priority:  input.Priority,
		Category:  input.Category,
		Assignee:  input.Assignee,
		StartDate: input.StartDate,
		DueDate:   input.DueDate,
		CreatedAt: input.CreatedAt,
		Reactions: store.Reactions{},
		Comments:  []store.Comment{},
		History:   []store.HistoryEntry{},
	}
	if issue.Key == "" {
		issue.Key = fmt.Sprintf("PROJ-%d", now.UnixMilli())
	}
	if issue.CreatedAt == "" {
		issue.CreatedAt = store.Timestamp(now)
	}

	err := s.mutate(ctx, func(doc *store.Document) error {
		project, ok := findProject(doc, issue.ProjectID)
		if !ok {
			return notFound("project", issue.ProjectID)
		}
		if issue.Status == "" {
			if cfg := resolve.Effective(project, *doc.Config); len(cfg.Statuses) > 0 {
				issue.Status = cfg.Statuses[0].ID
			}
		}
		if keyTaken(doc, issue.ProjectID, issue.Key, "") {
			return conflict("Issue key already used in this project", map[string]any{"key": issue.Key})
		}
		doc.Issues = append(doc.Issues, issue)
		return nil
	})
	if err != nil {
		return store.Issue{}, err
	}
	s.search.IndexIssue(issueRecord(issue))
	return issue, nil
}

// UpdateIssue applies patch and records one history entry listing every
// tracked field whose value changed. An update that changes nothing leaves
// the history as it was.
func (s *Service) UpdateIssue(ctx context.Context, id string, patch IssuePatch, actorID string) (store.Issue, error) {
	if err := s.check(patch); err != nil {
		return store.Issue{}, err
	}
	var updated store.Issue
	err := s.mutate(ctx, func(doc *store.Document) error {
		idx := issueIndex(doc, id)
		if idx < 0 {
			return notFound("issue", id)
		}
		next, err := s.applyIssuePatch(doc, doc.Issues[idx], patch, actorID)
		if err != nil {
			return err
		}
		doc.Issues[idx] = next
		updated = next
		return nil
	})
	if err != nil {
		return store.Issue{}, err
	}
	s.search.IndexIssue(issueRecord(updated))
	return updated, nil
}

// applyIssuePatch is the shared update path for UpdateIssue and the
// comment flow. It validates the result against doc.
func (s *Service) applyIssuePatch(doc *store.Document, before store.Issue, patch IssuePatch, actorID string) (store.Issue, error) {
	after := before
	patch.apply(&after)
	if patch.Key != nil {
		after.Key = strings.TrimSpace(after.Key)
	}
	// Stored dates the patch leaves alone are not re-validated.
	var start, due string
	if patch.StartDate != nil {
		start = after.StartDate
	}
	if patch.DueDate != nil {
		due = after.DueDate
	}
	if err := checkDates(start, due); err != nil {
		return store.Issue{}, err
	}
	if after.ProjectID != before.ProjectID {
		if _, ok := findProject(doc, after.ProjectID); !ok {
			return store.Issue{}, notFound("project", after.ProjectID)
		}
	}
	if after.DisplayKey() != before.DisplayKey() || after.ProjectID != before.ProjectID {
		if keyTaken(doc, after.ProjectID, after.DisplayKey(), before.ID) {
			return store.Issue{}, conflict("Issue key already used in this project", map[string]any{"key": after.DisplayKey()})
		}
	}
	after.History = append([]store.HistoryEntry{}, before.History...)
	history.Record(before, &after, actorID, s.now())
	return after, nil
}

func (s *Service) DeleteIssue(ctx context.Context, id string) error {
	err := s.mutate(ctx, func(doc *store.Document) error {
		idx := issueIndex(doc, id)
		if idx < 0 {
			return notFound("issue", id)
		}
		doc.Issues = append(doc.Issues[:idx], doc.Issues[idx+1:]...)
		return nil
	})
	if err != nil {
		return err
	}
	s.search.DeleteIssue(id)
	return nil
}

// DeleteIssues removes every listed issue in one save. Unknown ids fail the
// whole call before anything is removed.
func (s *Service) DeleteIssues(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, validationFailed("No issues selected", nil)
	}
	remove := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		remove[id] = struct{}{}
	}

	removed := 0
	err := s.mutate(ctx, func(doc *store.Document) error {
		for id := range remove {
			if issueIndex(doc, id) < 0 {
				return notFound("issue", id)
			}
		}
		kept := doc.Issues[:0]
		for _, issue := range doc.Issues {
			if _, ok := remove[issue.ID]; ok {
				removed++
				continue
			}
			kept = append(kept, issue)
		}
		doc.Issues = kept
		return nil
	})
	if err != nil {
		return 0, err
	}
	for id := range remove {
		s.search.DeleteIssue(id)
	}
	return removed, nil
}

var checklistLine = regexp.MustCompile(`^-\s\[([ x])\]\s`)

// ToggleChecklist flips the index-th "- [ ]" / "- [x]" line of the issue
// description (zero-based) and records the change like any other update.
func (s *Service) ToggleChecklist(ctx context.Context, id string, index int, actorID string) (store.Issue, error) {
	var updated store.Issue
	err := s.mutate(ctx, func(doc *store.Document) error {
		idx := issueIndex(doc, id)
		if idx < 0 {
			return notFound("issue", id)
		}
		desc, ok := toggleChecklistLine(doc.Issues[idx].Desc, index)
		if !ok {
			return validationFailed("Checklist item not found", map[string]any{"index": index})
		}
		next, err := s.applyIssuePatch(doc, doc.Issues[idx], IssuePatch{Desc: &desc}, actorID)
		if err != nil {
			return err
		}
		doc.Issues[idx] = next
		updated = next
		return nil
	})
	if err != nil {
		return store.Issue{}, err
	}
	s.search.IndexIssue(issueRecord(updated))
	return updated, nil
}

func toggleChecklistLine(desc string, index int) (string, bool) {
	if index < 0 {
		return desc, false
	}
	lines := strings.Split(desc, "\n")
	seen := 0
	for i, line := range lines {
		m := checklistLine.FindStringSubmatchIndex(line)
		if m == nil {
			continue
		}
		if seen != index {
			seen++
			continue
		}
		mark := "x"
		if line[m[2]:m[3]] == "x" {
			mark = " "
		}
		lines[i] = line[:m[2]] + mark + line[m[3]:]
		return strings.Join(lines, "\n"), true
	}
	return desc, false
}

func issueRecord(issue store.Issue) search.IssueRecord {
	projectID := issue.ProjectID
	if projectID == "" {
		projectID = legacyProjectID
	}
	return search.IssueRecord{
		ID:        issue.ID,
		Key:       issue.DisplayKey(),
		Title:     issue.Title,
		Desc:      notify.PlainText(issue.Desc),
		ProjectID: projectID,
		Status:    issue.Status,
		Assignee:  issue.Assignee,
	}
}
