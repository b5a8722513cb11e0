// Package history computes the audit trail recorded on issue updates.
package history

import (
	"time"

	"backlog/api/internal/store"
)

type field struct {
	name string
	get  func(store.Issue) string
}

// tracked lists the issue fields that are audited, in recording order.
// Comments, reactions and history itself are never audited.
var tracked = []field{
	{"key", func(i store.Issue) string { return i.Key }},
	{"projectId", func(i store.Issue) string { return i.ProjectID }},
	{"title", func(i store.Issue) string { return i.Title }},
	{"desc", func(i store.Issue) string { return i.Desc }},
	{"status", func(i store.Issue) string { return i.Status }},
	{"priority", func(i store.Issue) string { return i.Priority }},
	{"category", func(i store.Issue) string { return i.Category }},
	{"assignee", func(i store.Issue) string { return i.Assignee }},
	{"startDate", func(i store.Issue) string { return i.StartDate }},
	{"dueDate", func(i store.Issue) string { return i.DueDate }},
}

// Diff returns one change per tracked field whose value differs between
// before and after.
func Diff(before, after store.Issue) []store.FieldChange {
	var changes []store.FieldChange
	for _, f := range tracked {
		oldValue, newValue := f.get(before), f.get(after)
		if oldValue == newValue {
			continue
		}
		changes = append(changes, store.FieldChange{Field: f.name, OldValue: oldValue, NewValue: newValue})
	}
	return changes
}

// Entry wraps changes into a history entry. An empty actor is recorded as
// the system actor.
func Entry(changes []store.FieldChange, actor string, now time.Time) store.HistoryEntry {
	if actor == "" {
		actor = store.SystemActor
	}
	return store.HistoryEntry{
		UpdatedAt: store.Timestamp(now),
		UpdatedBy: actor,
		Changes:   changes,
	}
}

// Record diffs before against after and, when anything changed, appends an
// entry to after's history. It reports whether an entry was added.
func Record(before store.Issue, after *store.Issue, actor string, now time.Time) bool {
	changes := Diff(before, *after)
	if len(changes) == 0 {
		return false
	}
	after.History = append(after.History, Entry(changes, actor, now))
	return true
}

// Tracked reports whether a field name is part of the audit trail.
func Tracked(name string) bool {
	for _, f := range tracked {
		if f.name == name {
			return true
		}
	}
	return false
}
