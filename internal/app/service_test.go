package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"backlog/api/internal/auth"
	"backlog/api/internal/authpw"
	"backlog/api/internal/export"
	"backlog/api/internal/gantt"
	"backlog/api/internal/search"
	"backlog/api/internal/store"
)

func TestOpenPersistsSeedDocumentOnce(t *testing.T) {
	backend := &flakyBackend{Backend: store.NewMemoryBackend()}
	gateway := store.NewGateway(backend, store.WithLogger(quietLogger()))

	svc, err := Open(context.Background(), testConfig(), gateway, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if backend.puts != 1 {
		t.Fatalf("expected the repaired seed to be saved once, got %d puts", backend.puts)
	}
	project, err := svc.Project(legacyProjectID)
	if err != nil {
		t.Fatalf("seed project: %v", err)
	}
	if len(project.Members) != 1 || project.Members[0] != "admin" {
		t.Fatalf("expected seed project members [admin], got %v", project.Members)
	}

	if _, err := Open(context.Background(), testConfig(), gateway, WithLogger(quietLogger())); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if backend.puts != 1 {
		t.Fatalf("expected reopening a clean document not to write, got %d puts", backend.puts)
	}
}

func TestUpdateIssueRecordsOneEntryPerEffectiveUpdate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	issue := mustCreateIssue(t, svc, IssueInput{Title: "Draft"}, "alice")

	if _, err := svc.UpdateIssue(ctx, issue.ID, IssuePatch{Title: strPtr("Final")}, "alice"); err != nil {
		t.Fatalf("update title: %v", err)
	}
	if _, err := svc.UpdateIssue(ctx, issue.ID, IssuePatch{Title: strPtr("Final")}, "alice"); err != nil {
		t.Fatalf("repeat title: %v", err)
	}
	updated, err := svc.UpdateIssue(ctx, issue.ID, IssuePatch{Status: strPtr("done"), Assignee: strPtr("bob")}, "bob")
	if err != nil {
		t.Fatalf("update status: %v", err)
	}

	if len(updated.History) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(updated.History))
	}
	first, second := updated.History[0], updated.History[1]
	if first.UpdatedBy != "alice" || len(first.Changes) != 1 || first.Changes[0].Field != "title" {
		t.Fatalf("unexpected first entry %+v", first)
	}
	if first.Changes[0].OldValue != "Draft" || first.Changes[0].NewValue != "Final" {
		t.Fatalf("unexpected title change %+v", first.Changes[0])
	}
	if second.UpdatedBy != "bob" || len(second.Changes) != 2 {
		t.Fatalf("unexpected second entry %+v", second)
	}
}

func TestUpdateIssueWithoutActorIsRecordedAsSystem(t *testing.T) {
	svc, _ := newTestService(t)
	issue := mustCreateIssue(t, svc, IssueInput{Title: "Import"}, "alice")

	updated, err := svc.UpdateIssue(context.Background(), issue.ID, IssuePatch{Priority: strPtr("high")}, "")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := updated.History[0].UpdatedBy; got != store.SystemActor {
		t.Fatalf("expected %q, got %q", store.SystemActor, got)
	}
}

func TestFailedSaveLeavesStateUntouched(t *testing.T) {
	svc, backend := newTestService(t)
	ctx := context.Background()
	issue := mustCreateIssue(t, svc, IssueInput{Title: "Stable"}, "alice")

	backend.failPuts = true
	if _, err := svc.UpdateIssue(ctx, issue.ID, IssuePatch{Title: strPtr("Lost")}, "alice"); err == nil {
		t.Fatalf("expected save error")
	}
	if _, err := svc.ToggleIssueReaction(ctx, issue.ID, "👍", "bob"); err == nil {
		t.Fatalf("expected save error")
	}

	current, err := svc.Issue(issue.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if current.Title != "Stable" || len(current.History) != 0 || len(current.Reactions) != 0 {
		t.Fatalf("state changed after failed save: %+v", current)
	}
}

func TestValidationFailuresLeaveStateUntouched(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	issue := mustCreateIssue(t, svc, IssueInput{Title: "Keep"}, "alice")

	cases := map[string]IssuePatch{
		"empty title":  {Title: strPtr("")},
		"bad due date": {DueDate: strPtr("2024-13-40")},
		"slash date":   {StartDate: strPtr("03/05/2024")},
	}
	for name, patch := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.UpdateIssue(ctx, issue.ID, patch, "alice")
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}

	current, _ := svc.Issue(issue.ID)
	if current.Title != "Keep" || len(current.History) != 0 {
		t.Fatalf("issue changed: %+v", current)
	}

	before := svc.Config()
	bad := before
	bad.Statuses = append(append([]store.Status{}, before.Statuses...), before.Statuses[0])
	if _, err := svc.UpdateConfig(ctx, bad); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected duplicate status ids to fail validation, got %v", err)
	}
	if got := svc.Config(); len(got.Statuses) != len(before.Statuses) {
		t.Fatalf("config changed: %+v", got)
	}
}

func TestUnknownIDsReturnNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	checks := map[string]error{
		"issue":        func() error { _, err := svc.Issue("missing"); return err }(),
		"update issue": func() error { _, err := svc.UpdateIssue(ctx, "missing", IssuePatch{}, "alice"); return err }(),
		"delete issue": svc.DeleteIssue(ctx, "missing"),
		"wiki":         func() error { _, err := svc.Wiki("missing"); return err }(),
		"member":       svc.DeleteMember(ctx, "missing"),
		"project":      func() error { _, err := svc.Project("missing"); return err }(),
		"reaction":     func() error { _, err := svc.ToggleWikiReaction(ctx, "missing", "👍", "alice"); return err }(),
	}
	for name, err := range checks {
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("%s: expected not found, got %v", name, err)
		}
	}
}

func TestCreateIssueDefaults(t *testing.T) {
	svc, _ := newTestService(t)
	issue := mustCreateIssue(t, svc, IssueInput{Title: "  Login page  "}, "alice")

	if !strings.HasPrefix(issue.ID, "iss-") {
		t.Fatalf("expected generated iss- id, got %q", issue.ID)
	}
	if !strings.HasPrefix(issue.Key, "PROJ-") {
		t.Fatalf("expected default PROJ- key, got %q", issue.Key)
	}
	if issue.Key == issue.ID {
		t.Fatalf("key and id must be independent")
	}
	if issue.Title != "Login page" {
		t.Fatalf("expected trimmed title, got %q", issue.Title)
	}
	if issue.Status != "todo" {
		t.Fatalf("expected first status todo, got %q", issue.Status)
	}
	if issue.CreatedAt == "" {
		t.Fatalf("expected createdAt")
	}
}

func TestIssueKeysAreUniquePerProject(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	mustCreateIssue(t, svc, IssueInput{Title: "One", Key: "WEB-1"}, "alice")

	_, err := svc.CreateIssue(ctx, IssueInput{ProjectID: legacyProjectID, Title: "Two", Key: "WEB-1"}, "alice")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	other, err := svc.CreateProject(ctx, ProjectInput{Name: "Other", Members: []string{"alice"}}, "alice")
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	if _, err := svc.CreateIssue(ctx, IssueInput{ProjectID: other.ID, Title: "Two", Key: "WEB-1"}, "alice"); err != nil {
		t.Fatalf("same key in another project should be allowed: %v", err)
	}

	second := mustCreateIssue(t, svc, IssueInput{Title: "Three", Key: "WEB-2"}, "alice")
	if _, err := svc.UpdateIssue(ctx, second.ID, IssuePatch{Key: strPtr("WEB-1")}, "alice"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict on rename, got %v", err)
	}
}

func TestDeleteIssuesIsAllOrNothing(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	a := mustCreateIssue(t, svc, IssueInput{Title: "A"}, "alice")
	b := mustCreateIssue(t, svc, IssueInput{Title: "B"}, "alice")
	c := mustCreateIssue(t, svc, IssueInput{Title: "C"}, "alice")

	if _, err := svc.DeleteIssues(ctx, []string{a.ID, "missing"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(svc.Issues()) != 3 {
		t.Fatalf("expected nothing removed, got %d issues", len(svc.Issues()))
	}

	removed, err := svc.DeleteIssues(ctx, []string{a.ID, c.ID})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	issues := svc.Issues()
	if removed != 2 || len(issues) != 1 || issues[0].ID != b.ID {
		t.Fatalf("unexpected result removed=%d issues=%v", removed, issues)
	}
}

func TestToggleChecklist(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	issue := mustCreateIssue(t, svc, IssueInput{Title: "Release", Desc: "Steps\n- [ ] build\n- [x] test\n- [ ] ship"}, "alice")

	updated, err := svc.ToggleChecklist(ctx, issue.ID, 0, "alice")
	if err != nil {
		t.Fatalf("toggle 0: %v", err)
	}
	updated, err = svc.ToggleChecklist(ctx, issue.ID, 1, "alice")
	if err != nil {
		t.Fatalf("toggle 1: %v", err)
	}
	want := "Steps\n- [x] build\n- [ ] test\n- [ ] ship"
	if updated.Desc != want {
		t.Fatalf("expected %q, got %q", want, updated.Desc)
	}
	if len(updated.History) != 2 || updated.History[0].Changes[0].Field != "desc" {
		t.Fatalf("expected two desc history entries, got %+v", updated.History)
	}

	if _, err := svc.ToggleChecklist(ctx, issue.ID, 3, "alice"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for missing item, got %v", err)
	}
}

func TestDeleteMemberLeavesDanglingReferences(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	issue := mustCreateIssue(t, svc, IssueInput{Title: "Owned", Assignee: "bob"}, "alice")
	if _, err := svc.AddComment(ctx, issue.ID, CommentInput{Content: "mine"}, "bob"); err != nil {
		t.Fatalf("comment: %v", err)
	}

	if err := svc.DeleteMember(ctx, "bob"); err != nil {
		t.Fatalf("delete member: %v", err)
	}

	project, _ := svc.Project(legacyProjectID)
	if !project.HasMember("bob") {
		t.Fatalf("expected bob to remain in project members %v", project.Members)
	}
	current, _ := svc.Issue(issue.ID)
	if current.Assignee != "bob" {
		t.Fatalf("expected assignee to remain bob, got %q", current.Assignee)
	}
	if current.Comments[0].Author != "bob" {
		t.Fatalf("expected comment author to remain bob")
	}
	if got := svc.MemberName("bob"); got != "bob" {
		t.Fatalf("expected deleted member name to fall back to id, got %q", got)
	}
}

func TestIssueReactionToggleIsAnInvolution(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	issue := mustCreateIssue(t, svc, IssueInput{Title: "Shiny", Assignee: "bob"}, "alice")

	reactions, err := svc.ToggleIssueReaction(ctx, issue.ID, "👍", "alice")
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if len(reactions["👍"]) != 1 || reactions["👍"][0] != "alice" {
		t.Fatalf("unexpected reactions %v", reactions)
	}
	if got := notificationsOfType(svc, "bob", store.NotificationReaction); got != 1 {
		t.Fatalf("expected 1 reaction notification for bob, got %d", got)
	}

	reactions, err = svc.ToggleIssueReaction(ctx, issue.ID, "👍", "alice")
	if err != nil {
		t.Fatalf("toggle back: %v", err)
	}
	if len(reactions) != 0 {
		t.Fatalf("expected reactions restored to empty, got %v", reactions)
	}
	if got := notificationsOfType(svc, "bob", store.NotificationReaction); got != 1 {
		t.Fatalf("removal must not notify, got %d", got)
	}

	if _, err := svc.ToggleIssueReaction(ctx, issue.ID, "🎉", "bob"); err != nil {
		t.Fatalf("self reaction: %v", err)
	}
	if got := len(svc.Notifications("bob")); got != 1 {
		t.Fatalf("reacting to your own issue must not notify, got %d", got)
	}
}

func TestCommentAndWikiReactionsNotifyAuthors(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	issue := mustCreateIssue(t, svc, IssueInput{Title: "Discuss"}, "alice")
	updated, err := svc.AddComment(ctx, issue.ID, CommentInput{Content: "first"}, "carol")
	if err != nil {
		t.Fatalf("comment: %v", err)
	}
	commentID := updated.Comments[0].ID

	if _, err := svc.ToggleCommentReaction(ctx, issue.ID, commentID, "❤️", "alice"); err != nil {
		t.Fatalf("comment reaction: %v", err)
	}
	if got := notificationsOfType(svc, "carol", store.NotificationReaction); got != 1 {
		t.Fatalf("expected comment author notified once, got %d", got)
	}

	wiki, err := svc.CreateWiki(ctx, WikiInput{ProjectID: legacyProjectID, Title: "Runbook"}, "bob")
	if err != nil {
		t.Fatalf("create wiki: %v", err)
	}
	if _, err := svc.ToggleWikiReaction(ctx, wiki.ID, "👏", "carol"); err != nil {
		t.Fatalf("wiki reaction: %v", err)
	}
	notes := svc.Notifications("bob")
	if len(notes) != 1 || notes[0].Link.Page != "knowledge" || notes[0].Link.ID != wiki.ID {
		t.Fatalf("unexpected wiki notifications %+v", notes)
	}
}

func TestAddCommentMentionsAreDeduplicatedAndSuppressAssigneeNotice(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	issue := mustCreateIssue(t, svc, IssueInput{Title: "Bug", Assignee: "bob"}, "alice")

	_, err := svc.AddComment(ctx, issue.ID, CommentInput{Content: "<p>@Bob look</p><p>@Bob again, cc @Carol and @Alice</p>"}, "alice")
	if err != nil {
		t.Fatalf("comment: %v", err)
	}

	if got := notificationsOfType(svc, "bob", store.NotificationMention); got != 1 {
		t.Fatalf("expected exactly one mention for bob, got %d", got)
	}
	if got := notificationsOfType(svc, "bob", store.NotificationComment); got != 0 {
		t.Fatalf("assignee notice must be suppressed for a mentioned assignee, got %d", got)
	}
	if got := notificationsOfType(svc, "carol", store.NotificationMention); got != 1 {
		t.Fatalf("expected one mention for carol, got %d", got)
	}
	if got := len(svc.Notifications("alice")); got != 0 {
		t.Fatalf("actor must not be notified, got %d", got)
	}
}

func TestAddCommentNotifiesAssigneeAndRecordsChanges(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	issue := mustCreateIssue(t, svc, IssueInput{Title: "Task", StartDate: "2024-03-01"}, "alice")

	updated, err := svc.AddComment(ctx, issue.ID, CommentInput{
		Content:   "handing over",
		Status:    strPtr("done"),
		Assignee:  strPtr("bob"),
		StartDate: strPtr("2024-03-01"),
		DueDate:   strPtr("2024-03-08"),
	}, "alice")
	if err != nil {
		t.Fatalf("comment: %v", err)
	}

	comment := updated.Comments[0]
	want := []string{
		"Status: To do → Done",
		"Assignee: Unassigned → Bob",
		"Due date: Not set → 2024-03-08",
	}
	if strings.Join(comment.Changes, "|") != strings.Join(want, "|") {
		t.Fatalf("expected changes %v, got %v", want, comment.Changes)
	}
	if updated.Status != "done" || updated.Assignee != "bob" || updated.DueDate != "2024-03-08" {
		t.Fatalf("fields not applied: %+v", updated)
	}
	if len(updated.History) != 1 || len(updated.History[0].Changes) != 3 {
		t.Fatalf("expected one history entry with 3 changes, got %+v", updated.History)
	}
	if got := notificationsOfType(svc, "bob", store.NotificationComment); got != 0 {
		t.Fatalf("an unassigned issue has nobody to notify, got %d", got)
	}
}

func TestAddCommentThatReassignsNotifiesPreviousAssignee(t *testing.T) {
	svc, _ := newTestService(t)
	issue := mustCreateIssue(t, svc, IssueInput{Title: "Handover", Assignee: "alice"}, "admin")

	updated, err := svc.AddComment(context.Background(), issue.ID, CommentInput{Content: "moving this", Assignee: strPtr("bob")}, "admin")
	if err != nil {
		t.Fatalf("comment: %v", err)
	}
	if updated.Assignee != "bob" {
		t.Fatalf("expected bob assigned, got %q", updated.Assignee)
	}
	if got := notificationsOfType(svc, "alice", store.NotificationComment); got != 1 {
		t.Fatalf("expected one comment notice for alice, got %d", got)
	}
	if got := notificationsOfType(svc, "bob", store.NotificationComment); got != 0 {
		t.Fatalf("new assignee must not get the comment notice, got %d", got)
	}

	_, err = svc.AddComment(context.Background(), issue.ID, CommentInput{Content: "@Bob over to you", Assignee: strPtr("alice")}, "admin")
	if err != nil {
		t.Fatalf("second comment: %v", err)
	}
	if got := notificationsOfType(svc, "bob", store.NotificationComment); got != 0 {
		t.Fatalf("mentioned previous assignee must not get a comment notice, got %d", got)
	}
	if got := notificationsOfType(svc, "bob", store.NotificationMention); got != 1 {
		t.Fatalf("expected one mention for bob, got %d", got)
	}
}

func TestAddCommentRejectsEmptyComment(t *testing.T) {
	svc, _ := newTestService(t)
	issue := mustCreateIssue(t, svc, IssueInput{Title: "Quiet", Status: "todo"}, "alice")

	_, err := svc.AddComment(context.Background(), issue.ID, CommentInput{Content: "<p>  </p>", Status: strPtr("todo")}, "alice")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	withImage, err := svc.AddComment(context.Background(), issue.ID, CommentInput{Content: `<img src="data:image/png;base64,AA==">`}, "alice")
	if err != nil {
		t.Fatalf("image-only comment should be accepted: %v", err)
	}
	if len(withImage.Comments) != 1 {
		t.Fatalf("expected one comment, got %d", len(withImage.Comments))
	}
}

func TestEditCommentNotifiesOnlyNewMentions(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	issue := mustCreateIssue(t, svc, IssueInput{Title: "Review", Assignee: "carol"}, "alice")
	updated, err := svc.AddComment(ctx, issue.ID, CommentInput{Content: "hi @Bob"}, "alice")
	if err != nil {
		t.Fatalf("comment: %v", err)
	}
	commentID := updated.Comments[0].ID

	if _, err := svc.EditComment(ctx, issue.ID, commentID, CommentInput{Content: "hi"}, "bob"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden for non-author, got %v", err)
	}

	edited, err := svc.EditComment(ctx, issue.ID, commentID, CommentInput{Content: "hi @Bob and @Carol", Status: strPtr("progress")}, "alice")
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if edited.Comments[0].Content != "hi @Bob and @Carol" {
		t.Fatalf("content not replaced: %q", edited.Comments[0].Content)
	}
	if len(edited.Comments[0].Changes) != 1 || edited.Comments[0].Changes[0] != "Status: To do → In progress" {
		t.Fatalf("expected change appended, got %v", edited.Comments[0].Changes)
	}
	if got := notificationsOfType(svc, "bob", store.NotificationMention); got != 1 {
		t.Fatalf("bob must not be mentioned twice, got %d", got)
	}
	if got := notificationsOfType(svc, "carol", store.NotificationMention); got != 1 {
		t.Fatalf("expected carol's new mention, got %d", got)
	}
	if got := notificationsOfType(svc, "carol", store.NotificationComment); got != 1 {
		t.Fatalf("edit must not send another assignee notice, got %d", got)
	}
}

func TestDeleteCommentByAuthorOrAdmin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	issue := mustCreateIssue(t, svc, IssueInput{Title: "Thread"}, "alice")
	updated, _ := svc.AddComment(ctx, issue.ID, CommentInput{Content: "one"}, "alice")
	updated, _ = svc.AddComment(ctx, issue.ID, CommentInput{Content: "two"}, "alice")

	if err := svc.DeleteComment(ctx, issue.ID, updated.Comments[0].ID, "bob"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err := svc.DeleteComment(ctx, issue.ID, updated.Comments[0].ID, "alice"); err != nil {
		t.Fatalf("author delete: %v", err)
	}
	if err := svc.DeleteComment(ctx, issue.ID, updated.Comments[1].ID, "admin"); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
	current, _ := svc.Issue(issue.ID)
	if len(current.Comments) != 0 {
		t.Fatalf("expected no comments, got %d", len(current.Comments))
	}
}

func TestMarkNotificationRead(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	issue := mustCreateIssue(t, svc, IssueInput{Title: "Ping", Assignee: "bob"}, "alice")
	if _, err := svc.AddComment(ctx, issue.ID, CommentInput{Content: "ping"}, "alice"); err != nil {
		t.Fatalf("comment: %v", err)
	}
	if svc.UnreadCount("bob") != 1 {
		t.Fatalf("expected one unread")
	}
	id := svc.Notifications("bob")[0].ID

	if _, err := svc.MarkNotificationRead(ctx, id, "carol"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	n, err := svc.MarkNotificationRead(ctx, id, "bob")
	if err != nil || !n.Read {
		t.Fatalf("mark read: %+v %v", n, err)
	}
	if svc.UnreadCount("bob") != 0 {
		t.Fatalf("expected no unread")
	}
}

func TestProjectsForUsesMembership(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	project, err := svc.CreateProject(ctx, ProjectInput{Name: "Secret", Members: []string{"alice", "carol"}}, "admin")
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	if project.ManagerID != "alice" || project.Icon != "ph-folder" {
		t.Fatalf("unexpected defaults %+v", project)
	}

	bobs, _ := svc.ProjectsFor("bob")
	if len(bobs) != 1 || bobs[0].ID != legacyProjectID {
		t.Fatalf("bob should only see the seed project, got %v", bobs)
	}
	admins, _ := svc.ProjectsFor("admin")
	if len(admins) != 2 {
		t.Fatalf("admin should see every project, got %d", len(admins))
	}
	if svc.CanAccessProject("bob", project.ID) {
		t.Fatalf("bob must not access %s", project.ID)
	}
}

func TestCreateProjectValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	cases := map[string]ProjectInput{
		"no name":         {Members: []string{"alice"}},
		"no members":      {Name: "Empty"},
		"outside manager": {Name: "X", Members: []string{"alice"}, ManagerID: "bob"},
		"empty statuses":  {Name: "X", Members: []string{"alice"}, Statuses: &[]store.Status{}},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := svc.CreateProject(ctx, input, "admin"); !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
	if len(svc.Projects()) != 1 {
		t.Fatalf("no project should have been created")
	}
}

func TestEffectiveConfigHonoursOverridePresence(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	global := svc.Config()

	empty := []string{}
	if _, err := svc.UpdateProject(ctx, legacyProjectID, ProjectPatch{Categories: &empty}); err != nil {
		t.Fatalf("override categories: %v", err)
	}
	cfg, err := svc.EffectiveConfig(legacyProjectID)
	if err != nil {
		t.Fatalf("effective: %v", err)
	}
	if len(cfg.Categories) != 0 {
		t.Fatalf("explicit empty override must win, got %v", cfg.Categories)
	}
	if len(cfg.Statuses) != len(global.Statuses) || cfg.Statuses[0] != global.Statuses[0] {
		t.Fatalf("statuses should fall back to global, got %v", cfg.Statuses)
	}

	if _, err := svc.UpdateProject(ctx, legacyProjectID, ProjectPatch{ResetCategories: true}); err != nil {
		t.Fatalf("reset: %v", err)
	}
	cfg, _ = svc.EffectiveConfig(legacyProjectID)
	if len(cfg.Categories) != len(global.Categories) {
		t.Fatalf("expected global categories after reset, got %v", cfg.Categories)
	}
}

func TestLoginAndSession(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Login(ctx, "alice", "wrong"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody", "x"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}

	session, err := svc.Login(ctx, " alice ", "alice-pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	resolved, err := svc.SessionFromToken(ctx, session.Token)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if resolved.UserID != "alice" || resolved.UserName != "Alice" || resolved.Role != "user" {
		t.Fatalf("unexpected session %+v", resolved)
	}

	if err := svc.DeleteMember(ctx, "alice"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.SessionFromToken(ctx, session.Token); err == nil {
		t.Fatalf("token of a deleted member must be rejected")
	}
}

func TestSessionsRevokedByPasswordOrRoleChange(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	alice, err := svc.Login(ctx, "alice", "alice-pw")
	if err != nil {
		t.Fatalf("login alice: %v", err)
	}
	bob, err := svc.Login(ctx, "bob", "bob-pw")
	if err != nil {
		t.Fatalf("login bob: %v", err)
	}

	if _, err := svc.UpdateMember(ctx, "alice", MemberPatch{Dept: strPtr("Sales")}); err != nil {
		t.Fatalf("update dept: %v", err)
	}
	if _, err := svc.SessionFromToken(ctx, alice.Token); err != nil {
		t.Fatalf("a profile edit must keep the session: %v", err)
	}

	if _, err := svc.UpdateMember(ctx, "alice", MemberPatch{Password: strPtr("rotated")}); err != nil {
		t.Fatalf("update password: %v", err)
	}
	if _, err := svc.SessionFromToken(ctx, alice.Token); !errors.Is(err, auth.ErrRevokedToken) {
		t.Fatalf("expected revoked token after password change, got %v", err)
	}

	if _, err := svc.UpdateMember(ctx, "bob", MemberPatch{Role: strPtr("admin")}); err != nil {
		t.Fatalf("promote: %v", err)
	}
	if _, err := svc.SessionFromToken(ctx, bob.Token); !errors.Is(err, auth.ErrRevokedToken) {
		t.Fatalf("expected revoked token after role change, got %v", err)
	}
	promoted, err := svc.Login(ctx, "bob", "bob-pw")
	if err != nil {
		t.Fatalf("login again: %v", err)
	}
	if promoted.Role != "admin" {
		t.Fatalf("expected admin role on the new session, got %q", promoted.Role)
	}
}

func TestLoginUpgradesPlaintextPasswordWhenHashing(t *testing.T) {
	cfg := testConfig()
	cfg.HashPasswords = true
	svc, _ := newTestServiceWithConfig(t, cfg)

	admin, _ := svc.Member("admin")
	if authpw.IsHashed(admin.Password) {
		t.Fatalf("seed admin password should start as plaintext")
	}
	session, err := svc.Login(context.Background(), "admin", "admin")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := svc.SessionFromToken(context.Background(), session.Token); err != nil {
		t.Fatalf("token issued during the upgrade must resolve: %v", err)
	}
	admin, _ = svc.Member("admin")
	if !authpw.IsHashed(admin.Password) {
		t.Fatalf("expected password upgraded to bcrypt")
	}
	if _, err := svc.Login(context.Background(), "admin", "admin"); err != nil {
		t.Fatalf("login with hashed password: %v", err)
	}

	alice, _ := svc.Member("alice")
	if !authpw.IsHashed(alice.Password) {
		t.Fatalf("members added while hashing is on should be stored hashed")
	}
}

func TestRememberedLogin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	creds, err := svc.RememberedLogin(ctx)
	if err != nil || creds != nil {
		t.Fatalf("expected nothing remembered, got %+v %v", creds, err)
	}
	if err := svc.RememberLogin(ctx, "alice", "alice-pw"); err != nil {
		t.Fatalf("remember: %v", err)
	}
	creds, err = svc.RememberedLogin(ctx)
	if err != nil || creds == nil || creds.ID != "alice" {
		t.Fatalf("unexpected credentials %+v %v", creds, err)
	}
	if err := svc.ForgetLogin(ctx); err != nil {
		t.Fatalf("forget: %v", err)
	}
	if creds, _ := svc.RememberedLogin(ctx); creds != nil {
		t.Fatalf("expected credentials forgotten")
	}
}

func TestGanttAndReschedule(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	issue := mustCreateIssue(t, svc, IssueInput{Title: "Sprint", StartDate: "2024-03-05", DueDate: "2024-03-07", Category: "dev"}, "alice")
	mustCreateIssue(t, svc, IssueInput{Title: "Undated"}, "alice")
	mustCreateIssue(t, svc, IssueInput{Title: "Design", StartDate: "2024-03-01", DueDate: "2024-03-02", Category: "design"}, "alice")

	window := gantt.NewWindow(2024, time.March, 50)
	bars := svc.Gantt(legacyProjectID, window, gantt.Filter{Category: "dev"})
	if len(bars) != 1 || bars[0].Left != 200 || bars[0].Width != 150 {
		t.Fatalf("unexpected bars %+v", bars)
	}

	drag, err := window.Begin(issue.ID, gantt.ModeMove, 0, float64(bars[0].Left), float64(bars[0].Width))
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	updated, err := svc.RescheduleIssue(ctx, drag.End(100), "alice")
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if updated.StartDate != "2024-03-07" || updated.DueDate != "2024-03-09" {
		t.Fatalf("unexpected dates %s..%s", updated.StartDate, updated.DueDate)
	}
	if len(updated.History) != 1 || len(updated.History[0].Changes) != 2 {
		t.Fatalf("expected reschedule recorded in history, got %+v", updated.History)
	}
}

func TestWikisSearchAndExport(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	wiki, err := svc.CreateWiki(ctx, WikiInput{
		ProjectID: legacyProjectID,
		Title:     "Deploy guide",
		Content:   "<p>Run <b>make deploy</b></p>",
		Tags:      []string{"ops", " ops", "release", ""},
	}, "bob")
	if err != nil {
		t.Fatalf("create wiki: %v", err)
	}
	if wiki.Author != "bob" || !strings.HasPrefix(wiki.ID, "WK-") {
		t.Fatalf("unexpected wiki %+v", wiki)
	}
	if _, err := svc.CreateWiki(ctx, WikiInput{ProjectID: legacyProjectID, Title: "Onboarding", Tags: []string{"hr", "ops"}}, "alice"); err != nil {
		t.Fatalf("create wiki: %v", err)
	}
	mustCreateIssue(t, svc, IssueInput{Title: "Deploy pipeline broken"}, "alice")

	if got := strings.Join(svc.WikiTags(legacyProjectID), ","); got != "hr,ops,release" {
		t.Fatalf("unexpected tags %q", got)
	}

	resp := svc.Search(search.Query{Text: "deploy", ProjectID: legacyProjectID})
	if resp.Engine != "memory" || resp.Total != 2 {
		t.Fatalf("expected 2 memory hits, got %+v", resp)
	}
	wikisOnly := svc.Search(search.Query{Text: "", ProjectID: legacyProjectID, FilterType: search.ResultWiki, Tag: "ops"})
	if wikisOnly.Total != 2 {
		t.Fatalf("expected both ops pages, got %+v", wikisOnly)
	}

	if _, err := svc.ToggleWikiReaction(ctx, wiki.ID, "👍", "alice"); err != nil {
		t.Fatalf("react: %v", err)
	}
	result, err := svc.ExportWiki(ctx, wiki.ID, export.FormatHTML)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	html := string(result.Data)
	if !strings.Contains(html, "Deploy guide") || !strings.Contains(html, "make deploy") || !strings.Contains(html, "Bob") {
		t.Fatalf("export missing content: %s", html)
	}
	if !strings.HasSuffix(result.Filename, ".html") {
		t.Fatalf("unexpected filename %q", result.Filename)
	}

	if err := svc.DeleteWiki(ctx, wiki.ID); err != nil {
		t.Fatalf("delete wiki: %v", err)
	}
	if resp := svc.Search(search.Query{Text: "guide", ProjectID: legacyProjectID}); resp.Total != 0 {
		t.Fatalf("deleted page still found: %+v", resp)
	}
}

func TestUpdatesIgnoreUntouchedLegacyDates(t *testing.T) {
	ctx := context.Background()
	doc := store.DefaultDocument()
	doc.Issues = append(doc.Issues, store.Issue{
		ID:        "iss-legacy",
		Key:       "OLD-1",
		ProjectID: legacyProjectID,
		Title:     "Imported",
		Status:    "todo",
		StartDate: "2024/3/5",
	})
	gateway := store.NewGateway(store.NewMemoryBackend(), store.WithLogger(quietLogger()))
	if err := gateway.Save(ctx, doc); err != nil {
		t.Fatalf("save: %v", err)
	}
	svc, err := Open(ctx, testConfig(), gateway, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	updated, err := svc.UpdateIssue(ctx, "iss-legacy", IssuePatch{Title: strPtr("Imported again")}, "admin")
	if err != nil {
		t.Fatalf("update title: %v", err)
	}
	if updated.StartDate != "2024/3/5" {
		t.Fatalf("stored date must be kept, got %q", updated.StartDate)
	}
	if _, err := svc.AddComment(ctx, "iss-legacy", CommentInput{Content: "hello"}, "admin"); err != nil {
		t.Fatalf("plain comment: %v", err)
	}

	_, err = svc.UpdateIssue(ctx, "iss-legacy", IssuePatch{StartDate: strPtr("2024/3/6")}, "admin")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("a patched bad date must still be rejected, got %v", err)
	}
	fixed, err := svc.UpdateIssue(ctx, "iss-legacy", IssuePatch{StartDate: strPtr("2024-03-05")}, "admin")
	if err != nil || fixed.StartDate != "2024-03-05" {
		t.Fatalf("expected the date to be corrected, got %q %v", fixed.StartDate, err)
	}
}
