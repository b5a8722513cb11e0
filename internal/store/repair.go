package store

import (
	"fmt"
	"log/slog"
	"time"

	"backlog/api/internal/util"
)

// IDRename records an issue whose duplicate id was replaced.
type IDRename struct {
	From string
	To   string
	Key  string
}

// RepairReport lists what Repair changed. The zero value means the document
// already satisfied every invariant.
type RepairReport struct {
	ConfigInstalled      bool
	DepartmentsInstalled bool
	ProjectsWithMembers  []string
	WikisAssigned        []string
	IssuesWithReactions  []string
	RenamedIssues        []IDRename
}

func (r RepairReport) Changed() bool {
	return r.ConfigInstalled ||
		r.DepartmentsInstalled ||
		len(r.ProjectsWithMembers) > 0 ||
		len(r.WikisAssigned) > 0 ||
		len(r.IssuesWithReactions) > 0 ||
		len(r.RenamedIssues) > 0
}

// Repair brings a loaded document up to the current invariants. It is
// idempotent: a second run on its output reports no changes.
func Repair(doc *Document, now time.Time, logger *slog.Logger) RepairReport {
	if logger == nil {
		logger = slog.Default()
	}
	var report RepairReport

	normalizeCollections(doc)

	if doc.Config == nil {
		cfg := DefaultConfiguration()
		doc.Config = &cfg
		report.ConfigInstalled = true
	}
	if doc.Config.Departments == nil {
		doc.Config.Departments = DefaultDepartments()
		report.DepartmentsInstalled = true
	}

	for i := range doc.Projects {
		project := &doc.Projects[i]
		if project.Members != nil {
			continue
		}
		project.Members = make([]string, 0)
		for _, m := range doc.Members {
			if m.Dept == project.Dept {
				project.Members = append(project.Members, m.ID)
			}
		}
		report.ProjectsWithMembers = append(report.ProjectsWithMembers, project.ID)
	}

	if len(doc.Projects) > 0 {
		defaultProject := doc.Projects[0].ID
		for i := range doc.Wikis {
			if doc.Wikis[i].ProjectID == "" {
				doc.Wikis[i].ProjectID = defaultProject
				report.WikisAssigned = append(report.WikisAssigned, doc.Wikis[i].ID)
			}
		}
	}

	for i := range doc.Issues {
		issue := &doc.Issues[i]
		if issue.Reactions == nil {
			issue.Reactions = Reactions{}
			report.IssuesWithReactions = append(report.IssuesWithReactions, issue.ID)
		}
		if issue.Comments == nil {
			issue.Comments = []Comment{}
		}
		if issue.History == nil {
			issue.History = []HistoryEntry{}
		}
	}

	report.RenamedIssues = dedupeIssueIDs(doc.Issues, now, logger)
	return report
}

func normalizeCollections(doc *Document) {
	if doc.Projects == nil {
		doc.Projects = []Project{}
	}
	if doc.Members == nil {
		doc.Members = []Member{}
	}
	if doc.Issues == nil {
		doc.Issues = []Issue{}
	}
	if doc.Wikis == nil {
		doc.Wikis = []Wiki{}
	}
	if doc.Notifications == nil {
		doc.Notifications = []Notification{}
	}
}

// dedupeIssueIDs keeps the first issue with a given id and renames later
// duplicates. Keys are left alone so the user-facing label does not change.
func dedupeIssueIDs(issues []Issue, now time.Time, logger *slog.Logger) []IDRename {
	all := make(map[string]struct{}, len(issues))
	for _, issue := range issues {
		all[issue.ID] = struct{}{}
	}

	var renamed []IDRename
	seen := make(map[string]struct{}, len(issues))
	for i := range issues {
		issue := &issues[i]
		if _, dup := seen[issue.ID]; !dup {
			seen[issue.ID] = struct{}{}
			continue
		}
		newID := synthesizeID(issue.ID, now, all)
		logger.Warn("duplicate issue id repaired",
			slog.String("id", issue.ID),
			slog.String("new_id", newID),
			slog.String("key", issue.Key),
		)
		renamed = append(renamed, IDRename{From: issue.ID, To: newID, Key: issue.Key})
		issue.ID = newID
		all[newID] = struct{}{}
		seen[newID] = struct{}{}
	}
	return renamed
}

func synthesizeID(old string, now time.Time, taken map[string]struct{}) string {
	for {
		candidate := fmt.Sprintf("%s-%d-%s", old, now.UnixMilli(), util.RandomSuffix(4))
		if _, exists := taken[candidate]; !exists {
			return candidate
		}
	}
}
