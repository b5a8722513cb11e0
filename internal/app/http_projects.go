package app

import (
	"net/http"

	"backlog/api/internal/rbac"
	"backlog/api/internal/store"
)

// memberView is a member as the API shows it. Passwords never leave the
// service.
type memberView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Dept string `json:"dept"`
	Role string `json:"role"`
	Icon string `json:"icon,omitempty"`
}

func viewMember(m store.Member) memberView {
	return memberView{ID: m.ID, Name: m.Name, Dept: m.Dept, Role: string(rbac.Normalize(m.Role)), Icon: m.Icon}
}

func viewMembers(members []store.Member) []memberView {
	out := make([]memberView, 0, len(members))
	for _, m := range members {
		out = append(out, viewMember(m))
	}
	return out
}

func (s *HTTPServer) handleProjects(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) == 0 {
		switch r.Method {
		case http.MethodGet:
			projects, err := s.service.ProjectsFor(session.UserID)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
		case http.MethodPost:
			if !s.allow(w, r, session, rbac.ActionManage) {
				return
			}
			var body ProjectInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			project, err := s.service.CreateProject(r.Context(), body, session.UserID)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, map[string]any{"project": project})
		default:
			methodNotAllowed(w)
		}
		return
	}

	projectID := parts[0]
	if !s.requireProject(w, r, session, projectID) {
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			project, err := s.service.Project(projectID)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"project": project})
		case http.MethodPut:
			if !s.allow(w, r, session, rbac.ActionManage) {
				return
			}
			var body ProjectPatch
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			project, err := s.service.UpdateProject(r.Context(), projectID, body)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"project": project})
		default:
			methodNotAllowed(w)
		}
		return
	}

	if len(parts) != 2 || r.Method != http.MethodGet {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch parts[1] {
	case "config":
		cfg, err := s.service.EffectiveConfig(projectID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"config": cfg})
	case "issues":
		writeJSON(w, http.StatusOK, map[string]any{"issues": s.service.ProjectIssues(projectID)})
	case "wikis":
		writeJSON(w, http.StatusOK, map[string]any{"wikis": s.service.ProjectWikis(projectID)})
	case "wiki-tags":
		writeJSON(w, http.StatusOK, map[string]any{"tags": s.service.WikiTags(projectID)})
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleMembers(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) == 0 {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, map[string]any{"members": viewMembers(s.service.Members())})
		case http.MethodPost:
			if !s.allow(w, r, session, rbac.ActionManage) {
				return
			}
			var body MemberInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			member, err := s.service.AddMember(r.Context(), body)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, map[string]any{"member": viewMember(member)})
		default:
			methodNotAllowed(w)
		}
		return
	}
	if len(parts) != 1 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	memberID := parts[0]
	switch r.Method {
	case http.MethodGet:
		member, err := s.service.Member(memberID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"member": viewMember(member)})
	case http.MethodPut:
		if !s.allow(w, r, session, rbac.ActionManage) {
			return
		}
		var body MemberPatch
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		member, err := s.service.UpdateMember(r.Context(), memberID, body)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"member": viewMember(member)})
	case http.MethodDelete:
		if !s.allow(w, r, session, rbac.ActionManage) {
			return
		}
		if memberID == session.UserID {
			writeError(w, http.StatusConflict, "CONFLICT", "You cannot delete yourself", nil)
			return
		}
		if err := s.service.DeleteMember(r.Context(), memberID); err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		methodNotAllowed(w)
	}
}
