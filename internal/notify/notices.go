// Package notify holds the reaction and notification rules shared by issues,
// comments and wiki pages.
package notify

import (
	"fmt"
	"time"

	"backlog/api/internal/store"
	"backlog/api/internal/util"
)

const (
	PageIssue = "issue-detail"
	PageWiki  = "knowledge"
)

// New builds an unread notification stamped with now.
func New(userID, kind, title, message string, link store.Link, now time.Time) store.Notification {
	return store.Notification{
		ID:      util.NewID("notif"),
		UserID:  userID,
		Type:    kind,
		Title:   title,
		Message: message,
		Link:    link,
		Read:    false,
		Date:    store.Timestamp(now),
	}
}

// Prepend returns list with n first; the feed is kept newest first.
func Prepend(list []store.Notification, n ...store.Notification) []store.Notification {
	out := make([]store.Notification, 0, len(list)+len(n))
	for i := len(n) - 1; i >= 0; i-- {
		out = append(out, n[i])
	}
	return append(out, list...)
}

func Mention(recipient, actorName string, issue store.Issue, now time.Time) store.Notification {
	return New(recipient, store.NotificationMention,
		"You were mentioned",
		fmt.Sprintf("%s mentioned you in a comment on %q.", actorName, issue.Title),
		store.Link{Page: PageIssue, ID: issue.ID}, now)
}

func Comment(recipient, actorName string, issue store.Issue, now time.Time) store.Notification {
	return New(recipient, store.NotificationComment,
		"New comment on your issue",
		fmt.Sprintf("%s commented on your issue %q.", actorName, issue.Title),
		store.Link{Page: PageIssue, ID: issue.ID}, now)
}

func IssueReaction(recipient, actorName, emoji string, issue store.Issue, now time.Time) store.Notification {
	return New(recipient, store.NotificationReaction,
		"Reaction on your issue",
		fmt.Sprintf("%s reacted %s to issue %q.", actorName, emoji, issue.Title),
		store.Link{Page: PageIssue, ID: issue.ID}, now)
}

func CommentReaction(recipient, actorName, emoji string, issue store.Issue, now time.Time) store.Notification {
	return New(recipient, store.NotificationReaction,
		"Reaction on your comment",
		fmt.Sprintf("%s reacted %s to your comment on %q.", actorName, emoji, issue.Title),
		store.Link{Page: PageIssue, ID: issue.ID}, now)
}

func WikiReaction(recipient, actorName, emoji string, wiki store.Wiki, now time.Time) store.Notification {
	return New(recipient, store.NotificationReaction,
		"Reaction on your page",
		fmt.Sprintf("%s reacted %s to page %q.", actorName, emoji, wiki.Title),
		store.Link{Page: PageWiki, ID: wiki.ID}, now)
}

// ShouldNotifyOwner is the rule for reaction notices: only on add, only when
// there is an owner, and never to yourself.
func ShouldNotifyOwner(added bool, owner, actor string) bool {
	return added && owner != "" && owner != actor
}

const (
	unset      = "Not set"
	unassigned = "Unassigned"
)

// StatusChange describes a status transition using labels.
func StatusChange(before, after string) string {
	return changeLine("Status", orDefault(before, unset), orDefault(after, unset))
}

// AssigneeChange describes a reassignment using display names.
func AssigneeChange(before, after string) string {
	return changeLine("Assignee", orDefault(before, unassigned), orDefault(after, unassigned))
}

func StartDateChange(before, after string) string {
	return changeLine("Start date", orDefault(before, unset), orDefault(after, unset))
}

func DueDateChange(before, after string) string {
	return changeLine("Due date", orDefault(before, unset), orDefault(after, unset))
}

func changeLine(label, before, after string) string {
	return fmt.Sprintf("%s: %s → %s", label, before, after)
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
