// Package resolve merges the global workflow configuration with a project's
// own status and category definitions.
package resolve

import "backlog/api/internal/store"

// Effective returns global with statuses and categories replaced by the
// project's overrides when the project defines them. An explicitly empty
// override is honoured. The result never aliases global or project slices.
func Effective(project *store.Project, global store.Configuration) store.Configuration {
	out := store.Configuration{
		Statuses:    append([]store.Status(nil), global.Statuses...),
		Priorities:  append([]store.Priority(nil), global.Priorities...),
		Categories:  append([]string(nil), global.Categories...),
		Departments: append([]string(nil), global.Departments...),
	}
	if project == nil {
		return out
	}
	if project.Statuses != nil {
		out.Statuses = append([]store.Status{}, (*project.Statuses)...)
	}
	if project.Categories != nil {
		out.Categories = append([]string{}, (*project.Categories)...)
	}
	return out
}

// Status looks up a status definition by id.
func Status(cfg store.Configuration, id string) (store.Status, bool) {
	for _, s := range cfg.Statuses {
		if s.ID == id {
			return s, true
		}
	}
	return store.Status{}, false
}

// StatusLabel returns the label for id, or "" when the status is unknown.
func StatusLabel(cfg store.Configuration, id string) string {
	s, _ := Status(cfg, id)
	return s.Label
}

// PriorityLabel returns the label for id, or "" when the priority is unknown.
func PriorityLabel(cfg store.Configuration, id string) string {
	for _, p := range cfg.Priorities {
		if p.ID == id {
			return p.Label
		}
	}
	return ""
}

// HasCategory reports whether category is defined in cfg.
func HasCategory(cfg store.Configuration, category string) bool {
	for _, c := range cfg.Categories {
		if c == category {
			return true
		}
	}
	return false
}
