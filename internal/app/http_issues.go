package app

import (
	"net/http"
	"time"

	"backlog/api/internal/gantt"
	"backlog/api/internal/rbac"
	"backlog/api/internal/store"
)

// requireIssue loads an issue and checks that the session may open its
// project.
func (s *HTTPServer) requireIssue(w http.ResponseWriter, r *http.Request, session Session, issueID string) (store.Issue, bool) {
	issue, err := s.service.Issue(issueID)
	if err != nil {
		writeMappedError(w, err)
		return store.Issue{}, false
	}
	projectID := issue.ProjectID
	if projectID == "" {
		projectID = legacyProjectID
	}
	if !s.requireProject(w, r, session, projectID) {
		return store.Issue{}, false
	}
	return issue, true
}

func (s *HTTPServer) handleIssues(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) == 0 {
		switch r.Method {
		case http.MethodGet:
			projectID := r.URL.Query().Get("projectId")
			if projectID == "" {
				if !s.allow(w, r, session, rbac.ActionManage) {
					return
				}
				writeJSON(w, http.StatusOK, map[string]any{"issues": s.service.Issues()})
				return
			}
			if !s.requireProject(w, r, session, projectID) {
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"issues": s.service.ProjectIssues(projectID)})
		case http.MethodPost:
			if !s.allow(w, r, session, rbac.ActionWrite) {
				return
			}
			var body IssueInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			if body.ProjectID != "" && !s.requireProject(w, r, session, body.ProjectID) {
				return
			}
			issue, err := s.service.CreateIssue(r.Context(), body, session.UserID)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, map[string]any{"issue": issue})
		default:
			methodNotAllowed(w)
		}
		return
	}

	if len(parts) == 1 && parts[0] == "bulk-delete" {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		if !s.allow(w, r, session, rbac.ActionWrite) {
			return
		}
		var body struct {
			IDs []string `json:"ids"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		for _, id := range body.IDs {
			if _, ok := s.requireIssue(w, r, session, id); !ok {
				return
			}
		}
		removed, err := s.service.DeleteIssues(r.Context(), body.IDs)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": removed})
		return
	}

	issueID := parts[0]
	issue, ok := s.requireIssue(w, r, session, issueID)
	if !ok {
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, map[string]any{"issue": issue})
		case http.MethodPut:
			if !s.allow(w, r, session, rbac.ActionWrite) {
				return
			}
			var body IssuePatch
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			if body.ProjectID != nil && *body.ProjectID != issue.ProjectID && !s.requireProject(w, r, session, *body.ProjectID) {
				return
			}
			updated, err := s.service.UpdateIssue(r.Context(), issueID, body, session.UserID)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"issue": updated})
		case http.MethodDelete:
			if !s.allow(w, r, session, rbac.ActionWrite) {
				return
			}
			if err := s.service.DeleteIssue(r.Context(), issueID); err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		default:
			methodNotAllowed(w)
		}
		return
	}

	if r.Method != http.MethodGet && !s.allow(w, r, session, rbac.ActionWrite) {
		return
	}

	switch {
	case len(parts) == 2 && parts[1] == "reactions" && r.Method == http.MethodPost:
		var body struct {
			Emoji string `json:"emoji"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		reactions, err := s.service.ToggleIssueReaction(r.Context(), issueID, body.Emoji, session.UserID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"reactions": reactions})

	case len(parts) == 2 && parts[1] == "history" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"history": issue.History})

	case len(parts) == 2 && parts[1] == "checklist" && r.Method == http.MethodPost:
		var body struct {
			Index int `json:"index"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		updated, err := s.service.ToggleChecklist(r.Context(), issueID, body.Index, session.UserID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"issue": updated})

	case len(parts) == 2 && parts[1] == "schedule" && r.Method == http.MethodPost:
		s.handleSchedule(w, r, session, issueID)

	case len(parts) >= 2 && parts[1] == "comments":
		s.handleComments(w, r, session, issueID, parts[2:])

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

// handleSchedule accepts either explicit dates or a finished drag gesture
// measured against a month window.
func (s *HTTPServer) handleSchedule(w http.ResponseWriter, r *http.Request, session Session, issueID string) {
	var body struct {
		StartDate string  `json:"startDate"`
		DueDate   string  `json:"dueDate"`
		Year      int     `json:"year"`
		Month     int     `json:"month"`
		Mode      string  `json:"mode"`
		StartX    float64 `json:"startX"`
		EndX      float64 `json:"endX"`
		Left      float64 `json:"left"`
		Width     float64 `json:"width"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	schedule := gantt.Schedule{IssueID: issueID, StartDate: body.StartDate, DueDate: body.DueDate}
	if body.Mode != "" {
		if body.Month < 1 || body.Month > 12 || body.Year < 1 {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "year and month are required for a drag", nil)
			return
		}
		mode, err := gantt.ParseMode(body.Mode)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", err.Error(), nil)
			return
		}
		window := gantt.NewWindow(body.Year, time.Month(body.Month), s.service.cfg.DayWidth)
		drag, err := window.Begin(issueID, mode, body.StartX, body.Left, body.Width)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", err.Error(), nil)
			return
		}
		schedule = drag.End(body.EndX)
	} else if body.StartDate == "" || body.DueDate == "" {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "startDate and dueDate are required", nil)
		return
	}

	updated, err := s.service.RescheduleIssue(r.Context(), schedule, session.UserID)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"issue": updated, "schedule": schedule})
}

func (s *HTTPServer) handleComments(w http.ResponseWriter, r *http.Request, session Session, issueID string, parts []string) {
	if len(parts) == 0 {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		var body CommentInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		updated, err := s.service.AddComment(r.Context(), issueID, body, session.UserID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"issue": updated})
		return
	}

	commentID := parts[0]
	if len(parts) == 2 && parts[1] == "reactions" && r.Method == http.MethodPost {
		var body struct {
			Emoji string `json:"emoji"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		reactions, err := s.service.ToggleCommentReaction(r.Context(), issueID, commentID, body.Emoji, session.UserID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"reactions": reactions})
		return
	}
	if len(parts) != 1 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch r.Method {
	case http.MethodPut:
		var body CommentInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		updated, err := s.service.EditComment(r.Context(), issueID, commentID, body, session.UserID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"issue": updated})
	case http.MethodDelete:
		if err := s.service.DeleteComment(r.Context(), issueID, commentID, session.UserID); err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		methodNotAllowed(w)
	}
}
