package app

import "backlog/api/internal/store"

func projectIndex(doc *store.Document, id string) int {
	for i := range doc.Projects {
		if doc.Projects[i].ID == id {
			return i
		}
	}
	return -1
}

func memberIndex(doc *store.Document, id string) int {
	for i := range doc.Members {
		if doc.Members[i].ID == id {
			return i
		}
	}
	return -1
}

func issueIndex(doc *store.Document, id string) int {
	for i := range doc.Issues {
		if doc.Issues[i].ID == id {
			return i
		}
	}
	return -1
}

func wikiIndex(doc *store.Document, id string) int {
	for i := range doc.Wikis {
		if doc.Wikis[i].ID == id {
			return i
		}
	}
	return -1
}

func commentIndex(issue *store.Issue, id string) int {
	for i := range issue.Comments {
		if issue.Comments[i].ID == id {
			return i
		}
	}
	return -1
}

func findMember(doc *store.Document, id string) (store.Member, bool) {
	if idx := memberIndex(doc, id); idx >= 0 {
		return doc.Members[idx], true
	}
	return store.Member{}, false
}

func findProject(doc *store.Document, id string) (*store.Project, bool) {
	if idx := projectIndex(doc, id); idx >= 0 {
		return &doc.Projects[idx], true
	}
	return nil, false
}

func memberName(doc *store.Document, id string) string {
	if m, ok := findMember(doc, id); ok {
		return m.Name
	}
	return id
}

// legacyProjectID is the seed project. Issues written before projects
// existed have no project id and are shown there.
const legacyProjectID = "prj-1"

func belongsTo(projectID, target string) bool {
	return projectID == target || (projectID == "" && target == legacyProjectID)
}

// keyTaken reports whether key is already used by another issue in
// projectID. Legacy issues without a key are compared by id.
func keyTaken(doc *store.Document, projectID, key, exceptID string) bool {
	for _, issue := range doc.Issues {
		if issue.ID == exceptID || !belongsTo(issue.ProjectID, projectID) {
			continue
		}
		if issue.DisplayKey() == key {
			return true
		}
	}
	return false
}

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}
	return append([]string{}, values...)
}
