package app

import (
	"net/http"
	"strings"
	"time"

	"backlog/api/internal/export"
	"backlog/api/internal/gantt"
	"backlog/api/internal/rbac"
	"backlog/api/internal/search"
)

func (s *HTTPServer) handleWikis(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) == 0 {
		switch r.Method {
		case http.MethodGet:
			projectID := r.URL.Query().Get("projectId")
			if projectID == "" {
				if !s.allow(w, r, session, rbac.ActionManage) {
					return
				}
				writeJSON(w, http.StatusOK, map[string]any{"wikis": s.service.Wikis()})
				return
			}
			if !s.requireProject(w, r, session, projectID) {
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"wikis": s.service.ProjectWikis(projectID)})
		case http.MethodPost:
			if !s.allow(w, r, session, rbac.ActionWrite) {
				return
			}
			var body WikiInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			if body.ProjectID != "" && !s.requireProject(w, r, session, body.ProjectID) {
				return
			}
			wiki, err := s.service.CreateWiki(r.Context(), body, session.UserID)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, map[string]any{"wiki": wiki})
		default:
			methodNotAllowed(w)
		}
		return
	}

	wikiID := parts[0]
	wiki, err := s.service.Wiki(wikiID)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	projectID := wiki.ProjectID
	if projectID == "" {
		projectID = legacyProjectID
	}
	if !s.requireProject(w, r, session, projectID) {
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, map[string]any{"wiki": wiki})
		case http.MethodPut:
			if !s.allow(w, r, session, rbac.ActionWrite) {
				return
			}
			var body WikiPatch
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			if body.ProjectID != nil && *body.ProjectID != wiki.ProjectID && !s.requireProject(w, r, session, *body.ProjectID) {
				return
			}
			updated, err := s.service.UpdateWiki(r.Context(), wikiID, body)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"wiki": updated})
		case http.MethodDelete:
			if !s.allow(w, r, session, rbac.ActionWrite) {
				return
			}
			if err := s.service.DeleteWiki(r.Context(), wikiID); err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		default:
			methodNotAllowed(w)
		}
		return
	}

	if len(parts) == 2 && parts[1] == "reactions" && r.Method == http.MethodPost {
		if !s.allow(w, r, session, rbac.ActionWrite) {
			return
		}
		var body struct {
			Emoji string `json:"emoji"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		reactions, err := s.service.ToggleWikiReaction(r.Context(), wikiID, body.Emoji, session.UserID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"reactions": reactions})
		return
	}

	if len(parts) == 2 && parts[1] == "export" && r.Method == http.MethodGet {
		format, err := export.ParseFormat(strings.ToLower(r.URL.Query().Get("format")))
		if err != nil {
			writeMappedError(w, err)
			return
		}
		result, err := s.service.ExportWiki(r.Context(), wikiID, format)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		w.Header().Set("Content-Disposition", "attachment; filename=\""+result.Filename+"\"")
		w.Header().Set("Content-Type", result.MimeType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(result.Data)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleNotifications(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	switch {
	case len(parts) == 0 && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{
			"notifications": s.service.Notifications(session.UserID),
			"unread":        s.service.UnreadCount(session.UserID),
		})
	case len(parts) == 1 && parts[0] == "read-all" && r.Method == http.MethodPost:
		changed, err := s.service.MarkAllNotificationsRead(r.Context(), session.UserID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"updated": changed})
	case len(parts) == 2 && parts[1] == "read" && r.Method == http.MethodPost:
		n, err := s.service.MarkNotificationRead(r.Context(), parts[0], session.UserID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"notification": n})
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

// handleGantt returns the bars of a project for one month. Without year and
// month the current month is used, shifted by offset months.
func (s *HTTPServer) handleGantt(w http.ResponseWriter, r *http.Request, session Session) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	query := r.URL.Query()
	projectID := query.Get("projectId")
	if projectID == "" {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "projectId is required", nil)
		return
	}
	if !s.requireProject(w, r, session, projectID) {
		return
	}

	year, ok := queryInt(w, r, "year", 0)
	if !ok {
		return
	}
	month, ok := queryInt(w, r, "month", 0)
	if !ok {
		return
	}
	offset, ok := queryInt(w, r, "offset", 0)
	if !ok {
		return
	}

	var window gantt.Window
	switch {
	case year == 0 && month == 0:
		window = s.service.GanttWindow(offset)
	case month >= 1 && month <= 12 && year > 0:
		window = gantt.NewWindow(year, time.Month(month), s.service.cfg.DayWidth).Shift(offset)
	default:
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "year and month must be given together", nil)
		return
	}

	filter := gantt.Filter{Category: query.Get("category"), Assignee: query.Get("assignee")}
	response := map[string]any{
		"window": map[string]any{
			"start":      gantt.FormatDate(window.Start),
			"end":        gantt.FormatDate(window.End),
			"days":       window.Days(),
			"dayWidth":   window.DayWidth,
			"pixelWidth": window.PixelWidth(),
		},
		"bars": s.service.Gantt(projectID, window, filter),
	}
	if today, visible := window.TodayOffset(s.service.now()); visible {
		response["today"] = today
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request, session Session) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	query := r.URL.Query()
	projectID := strings.TrimSpace(query.Get("projectId"))
	if projectID == "" {
		if !s.allow(w, r, session, rbac.ActionManage) {
			return
		}
	} else if !s.requireProject(w, r, session, projectID) {
		return
	}

	filterType := search.ResultType(strings.TrimSpace(query.Get("type")))
	if filterType != "" && filterType != search.ResultIssue && filterType != search.ResultWiki {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "type must be issue or wiki", nil)
		return
	}
	limit, ok := queryInt(w, r, "limit", 20)
	if !ok {
		return
	}
	offset, ok := queryInt(w, r, "offset", 0)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, s.service.Search(search.Query{
		Text:       strings.TrimSpace(query.Get("q")),
		FilterType: filterType,
		ProjectID:  projectID,
		Tag:        strings.TrimSpace(query.Get("tag")),
		Limit:      limit,
		Offset:     offset,
	}))
}
