package app

import (
	"context"
	"strings"

	"backlog/api/internal/notify"
	"backlog/api/internal/rbac"
	"backlog/api/internal/resolve"
	"backlog/api/internal/store"
	"backlog/api/internal/util"
)

// CommentInput is a comment body plus the issue fields that may change with
// it. Unset fields are left alone.
type CommentInput struct {
	Content   string  `json:"content"`
	Status    *string `json:"status"`
	Assignee  *string `json:"assignee"`
	StartDate *string `json:"startDate"`
	DueDate   *string `json:"dueDate"`
}

func (in CommentInput) patch() IssuePatch {
	return IssuePatch{
		Status:    in.Status,
		Assignee:  in.Assignee,
		StartDate: in.StartDate,
		DueDate:   in.DueDate,
	}
}

// changeLines describes the field changes in input as the comment shows
// them. Fields set to their current value produce nothing.
func changeLines(doc *store.Document, issue store.Issue, in CommentInput) []string {
	project, _ := findProject(doc, issue.ProjectID)
	if project == nil && issue.ProjectID == "" {
		project, _ = findProject(doc, legacyProjectID)
	}
	cfg := resolve.Effective(project, *doc.Config)

	lines := []string{}
	if in.Status != nil && *in.Status != issue.Status {
		lines = append(lines, notify.StatusChange(statusLabel(cfg, issue.Status), statusLabel(cfg, *in.Status)))
	}
	if in.Assignee != nil && *in.Assignee != issue.Assignee {
		lines = append(lines, notify.AssigneeChange(optionalName(doc, issue.Assignee), optionalName(doc, *in.Assignee)))
	}
	if in.StartDate != nil && *in.StartDate != issue.StartDate {
		lines = append(lines, notify.StartDateChange(issue.StartDate, *in.StartDate))
	}
	if in.DueDate != nil && *in.DueDate != issue.DueDate {
		lines = append(lines, notify.DueDateChange(issue.DueDate, *in.DueDate))
	}
	return lines
}

func statusLabel(cfg store.Configuration, id string) string {
	if id == "" {
		return ""
	}
	return resolve.StatusLabel(cfg, id)
}

func optionalName(doc *store.Document, id string) string {
	if id == "" {
		return ""
	}
	return memberName(doc, id)
}

// AddComment posts a comment on an issue and applies the field changes that
// come with it. Mentioned members are notified once each; the assignee gets
// a comment notice unless they wrote it or were already mentioned. The notice
// goes to whoever was assigned before the comment's own changes.
func (s *Service) AddComment(ctx context.Context, issueID string, input CommentInput, actorID string) (store.Issue, error) {
	if err := s.check(input.patch()); err != nil {
		return store.Issue{}, err
	}
	text := strings.TrimSpace(notify.PlainText(input.Content))
	hasImage := notify.HasImage(input.Content)

	var updated store.Issue
	err := s.mutate(ctx, func(doc *store.Document) error {
		idx := issueIndex(doc, issueID)
		if idx < 0 {
			return notFound("issue", issueID)
		}
		before := doc.Issues[idx]
		changes := changeLines(doc, before, input)
		if text == "" && !hasImage && len(changes) == 0 {
			return validationFailed("Comment is empty", nil)
		}

		next, err := s.applyIssuePatch(doc, before, input.patch(), actorID)
		if err != nil {
			return err
		}
		now := s.now()
		next.Comments = append(append([]store.Comment{}, before.Comments...), store.Comment{
			ID:      util.NewID("c"),
			Author:  actorID,
			Content: input.Content,
			Date:    store.Timestamp(now),
			Changes: changes,
		})
		doc.Issues[idx] = next
		updated = next

		actorName := memberName(doc, actorID)
		mentioned := notify.Mentions(text, doc.Members, actorID)
		notices := make([]store.Notification, 0, len(mentioned)+1)
		notified := make(map[string]struct{}, len(mentioned))
		for _, id := range mentioned {
			notified[id] = struct{}{}
			notices = append(notices, notify.Mention(id, actorName, next, now))
		}
		if assignee := before.Assignee; assignee != "" && assignee != actorID {
			if _, ok := notified[assignee]; !ok {
				notices = append(notices, notify.Comment(assignee, actorName, next, now))
			}
		}
		if len(notices) > 0 {
			doc.Notifications = notify.Prepend(doc.Notifications, notices...)
		}
		return nil
	})
	if err != nil {
		return store.Issue{}, err
	}
	s.search.IndexIssue(issueRecord(updated))
	return updated, nil
}

// EditComment replaces the content of the actor's own comment. Field changes
// are applied and appended to the comment's change list. Only members the
// previous content did not mention are notified.
func (s *Service) EditComment(ctx context.Context, issueID, commentID string, input CommentInput, actorID string) (store.Issue, error) {
	if err := s.check(input.patch()); err != nil {
		return store.Issue{}, err
	}
	text := strings.TrimSpace(notify.PlainText(input.Content))

	var updated store.Issue
	err := s.mutate(ctx, func(doc *store.Document) error {
		idx := issueIndex(doc, issueID)
		if idx < 0 {
			return notFound("issue", issueID)
		}
		before := doc.Issues[idx]
		cidx := commentIndex(&before, commentID)
		if cidx < 0 {
			return notFound("comment", commentID)
		}
		comment := before.Comments[cidx]
		if comment.Author != actorID {
			return forbidden("Only the author can edit a comment")
		}
		changes := changeLines(doc, before, input)
		if text == "" && !notify.HasImage(input.Content) && len(changes) == 0 {
			return validationFailed("Comment is empty", nil)
		}

		next, err := s.applyIssuePatch(doc, before, input.patch(), actorID)
		if err != nil {
			return err
		}
		previous := notify.Mentions(notify.PlainText(comment.Content), doc.Members, actorID)

		comment.Content = input.Content
		comment.Changes = append(append([]string{}, comment.Changes...), changes...)
		next.Comments = append([]store.Comment{}, before.Comments...)
		next.Comments[cidx] = comment
		doc.Issues[idx] = next
		updated = next

		already := make(map[string]struct{}, len(previous))
		for _, id := range previous {
			already[id] = struct{}{}
		}
		now := s.now()
		actorName := memberName(doc, actorID)
		var notices []store.Notification
		for _, id := range notify.Mentions(text, doc.Members, actorID) {
			if _, ok := already[id]; ok {
				continue
			}
			notices = append(notices, notify.Mention(id, actorName, next, now))
		}
		if len(notices) > 0 {
			doc.Notifications = notify.Prepend(doc.Notifications, notices...)
		}
		return nil
	})
	if err != nil {
		return store.Issue{}, err
	}
	s.search.IndexIssue(issueRecord(updated))
	return updated, nil
}

// DeleteComment removes a comment. Authors may remove their own; admins may
// remove any.
func (s *Service) DeleteComment(ctx context.Context, issueID, commentID, actorID string) error {
	return s.mutate(ctx, func(doc *store.Document) error {
		idx := issueIndex(doc, issueID)
		if idx < 0 {
			return notFound("issue", issueID)
		}
		issue := doc.Issues[idx]
		cidx := commentIndex(&issue, commentID)
		if cidx < 0 {
			return notFound("comment", commentID)
		}
		if issue.Comments[cidx].Author != actorID && !s.isAdmin(doc, actorID) {
			return forbidden("Only the author or an admin can delete a comment")
		}
		comments := append([]store.Comment{}, issue.Comments[:cidx]...)
		issue.Comments = append(comments, issue.Comments[cidx+1:]...)
		doc.Issues[idx] = issue
		return nil
	})
}

func (s *Service) isAdmin(doc *store.Document, memberID string) bool {
	m, ok := findMember(doc, memberID)
	return ok && rbac.Normalize(m.Role) == rbac.RoleAdmin
}

func checkEmoji(emoji string) error {
	if strings.TrimSpace(emoji) == "" {
		return validationFailed("Emoji is required", nil)
	}
	return nil
}

// ToggleIssueReaction adds or removes actor's emoji on an issue. Adding
// notifies the assignee unless they reacted themselves.
func (s *Service) ToggleIssueReaction(ctx context.Context, issueID, emoji, actorID string) (store.Reactions, error) {
	if err := checkEmoji(emoji); err != nil {
		return nil, err
	}
	var out store.Reactions
	err := s.mutate(ctx, func(doc *store.Document) error {
		idx := issueIndex(doc, issueID)
		if idx < 0 {
			return notFound("issue", issueID)
		}
		issue := doc.Issues[idx]
		reactions, added := notify.Toggle(issue.Reactions, emoji, actorID)
		issue.Reactions = reactions
		doc.Issues[idx] = issue
		out = reactions
		if notify.ShouldNotifyOwner(added, issue.Assignee, actorID) {
			doc.Notifications = notify.Prepend(doc.Notifications,
				notify.IssueReaction(issue.Assignee, memberName(doc, actorID), emoji, issue, s.now()))
		}
		return nil
	})
	return out, err
}

func (s *Service) ToggleCommentReaction(ctx context.Context, issueID, commentID, emoji, actorID string) (store.Reactions, error) {
	if err := checkEmoji(emoji); err != nil {
		return nil, err
	}
	var out store.Reactions
	err := s.mutate(ctx, func(doc *store.Document) error {
		idx := issueIndex(doc, issueID)
		if idx < 0 {
			return notFound("issue", issueID)
		}
		issue := doc.Issues[idx]
		cidx := commentIndex(&issue, commentID)
		if cidx < 0 {
			return notFound("comment", commentID)
		}
		comment := issue.Comments[cidx]
		reactions, added := notify.Toggle(comment.Reactions, emoji, actorID)
		comment.Reactions = reactions
		issue.Comments = append([]store.Comment{}, issue.Comments...)
		issue.Comments[cidx] = comment
		doc.Issues[idx] = issue
		out = reactions
		if notify.ShouldNotifyOwner(added, comment.Author, actorID) {
			doc.Notifications = notify.Prepend(doc.Notifications,
				notify.CommentReaction(comment.Author, memberName(doc, actorID), emoji, issue, s.now()))
		}
		return nil
	})
	return out, err
}

func (s *Service) ToggleWikiReaction(ctx context.Context, wikiID, emoji, actorID string) (store.Reactions, error) {
	if err := checkEmoji(emoji); err != nil {
		return nil, err
	}
	var out store.Reactions
	err := s.mutate(ctx, func(doc *store.Document) error {
		idx := wikiIndex(doc, wikiID)
		if idx < 0 {
			return notFound("wiki", wikiID)
		}
		wiki := doc.Wikis[idx]
		reactions, added := notify.Toggle(wiki.Reactions, emoji, actorID)
		wiki.Reactions = reactions
		doc.Wikis[idx] = wiki
		out = reactions
		if notify.ShouldNotifyOwner(added, wiki.Author, actorID) {
			doc.Notifications = notify.Prepend(doc.Notifications,
				notify.WikiReaction(wiki.Author, memberName(doc, actorID), emoji, wiki, s.now()))
		}
		return nil
	})
	return out, err
}

// Notifications lists userID's notifications, newest first.
func (s *Service) Notifications(userID string) []store.Notification {
	out := []store.Notification{}
	for _, n := range s.snapshot().Notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

func (s *Service) UnreadCount(userID string) int {
	count := 0
	for _, n := range s.snapshot().Notifications {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count
}

// MarkNotificationRead flips one notification to read. Recipients may only
// mark their own.
func (s *Service) MarkNotificationRead(ctx context.Context, id, actorID string) (store.Notification, error) {
	var marked store.Notification
	err := s.mutate(ctx, func(doc *store.Document) error {
		for i := range doc.Notifications {
			if doc.Notifications[i].ID != id {
				continue
			}
			if doc.Notifications[i].UserID != actorID {
				return forbidden("Not your notification")
			}
			doc.Notifications[i].Read = true
			marked = doc.Notifications[i]
			return nil
		}
		return notFound("notification", id)
	})
	return marked, err
}

// MarkAllNotificationsRead marks every unread notification of userID and
// returns how many changed.
func (s *Service) MarkAllNotificationsRead(ctx context.Context, userID string) (int, error) {
	changed := 0
	err := s.mutate(ctx, func(doc *store.Document) error {
		for i := range doc.Notifications {
			if doc.Notifications[i].UserID == userID && !doc.Notifications[i].Read {
				doc.Notifications[i].Read = true
				changed++
			}
		}
		return nil
	})
	return changed, err
}
