package app

import (
	"context"
	"log/slog"
	"strings"

	"backlog/api/internal/rbac"
	"backlog/api/internal/resolve"
	"backlog/api/internal/store"
	"backlog/api/internal/util"
)

const defaultProjectIcon = "ph-folder"

type ProjectInput struct {
	Name       string          `json:"name" validate:"required"`
	Icon       string          `json:"icon"`
	Dept       string          `json:"dept"`
	Members    []string        `json:"members" validate:"min=1,unique,dive,required"`
	ManagerID  string          `json:"managerId"`
	Statuses   *[]store.Status `json:"statuses"`
	Categories *[]string       `json:"categories"`
}

// ProjectPatch updates only the fields that are set. ResetStatuses and
// ResetCategories remove an override so the global definition applies.
type ProjectPatch struct {
	Name            *string         `json:"name"`
	Icon            *string         `json:"icon"`
	Members         *[]string       `json:"members"`
	ManagerID       *string         `json:"managerId"`
	Statuses        *[]store.Status `json:"statuses"`
	Categories      *[]string       `json:"categories"`
	ResetStatuses   bool            `json:"resetStatuses"`
	ResetCategories bool            `json:"resetCategories"`
}

type statusOverride struct {
	Statuses []store.Status `validate:"min=1,unique=ID,dive"`
}

type categoryOverride struct {
	Categories []string `validate:"unique,dive,required"`
}

// projectShape is what every stored project must satisfy after a create or
// update.
type projectShape struct {
	Name    string   `validate:"required"`
	Members []string `validate:"min=1,unique,dive,required"`
}

func (s *Service) checkProject(p store.Project) error {
	if err := s.check(projectShape{Name: strings.TrimSpace(p.Name), Members: p.Members}); err != nil {
		return err
	}
	if p.ManagerID != "" && !p.HasMember(p.ManagerID) {
		return validationFailed("Manager must be a project member", map[string]any{"managerId": p.ManagerID})
	}
	if p.Statuses != nil {
		if err := s.check(statusOverride{Statuses: *p.Statuses}); err != nil {
			return err
		}
	}
	if p.Categories != nil {
		if err := s.check(categoryOverride{Categories: *p.Categories}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) Projects() []store.Project {
	return append([]store.Project{}, s.snapshot().Projects...)
}

func (s *Service) Project(id string) (store.Project, error) {
	p, ok := findProject(s.snapshot(), id)
	if !ok {
		return store.Project{}, notFound("project", id)
	}
	return *p, nil
}

// ProjectsFor lists the projects member may open.
func (s *Service) ProjectsFor(memberID string) ([]store.Project, error) {
	doc := s.snapshot()
	member, ok := findMember(doc, memberID)
	if !ok {
		return nil, notFound("member", memberID)
	}
	out := []store.Project{}
	for _, p := range doc.Projects {
		if rbac.CanAccessProject(member, p) {
			out = append(out, p)
		}
	}
	return out, nil
}

// CanAccessProject reports whether memberID may open projectID.
func (s *Service) CanAccessProject(memberID, projectID string) bool {
	doc := s.snapshot()
	member, ok := findMember(doc, memberID)
	if !ok {
		return false
	}
	project, ok := findProject(doc, projectID)
	if !ok {
		return false
	}
	return rbac.CanAccessProject(member, *project)
}

// EffectiveConfig resolves the configuration seen inside projectID.
func (s *Service) EffectiveConfig(projectID string) (store.Configuration, error) {
	doc := s.snapshot()
	project, ok := findProject(doc, projectID)
	if !ok {
		return store.Configuration{}, notFound("project", projectID)
	}
	return resolve.Effective(project, *doc.Config), nil
}

// CreateProject adds a project. Without an explicit manager the creator
// manages it when listed as a member, otherwise the first member does.
func (s *Service) CreateProject(ctx context.Context, input ProjectInput, actorID string) (store.Project, error) {
	project := store.Project{
		ID:         util.StampedID("prj", s.now()),
		Name:       strings.TrimSpace(input.Name),
		Icon:       input.Icon,
		Dept:       input.Dept,
		Members:    cloneStrings(input.Members),
		ManagerID:  input.ManagerID,
		Statuses:   input.Statuses,
		Categories: input.Categories,
	}
	if project.Icon == "" {
		project.Icon = defaultProjectIcon
	}
	if project.ManagerID == "" && len(project.Members) > 0 {
		project.ManagerID = project.Members[0]
		if project.HasMember(actorID) {
			project.ManagerID = actorID
		}
	}
	if err := s.checkProject(project); err != nil {
		return store.Project{}, err
	}

	err := s.mutate(ctx, func(doc *store.Document) error {
		doc.Projects = append(doc.Projects, project)
		return nil
	})
	if err != nil {
		return store.Project{}, err
	}
	s.logger.Info("project created", slog.String("id", project.ID), slog.String("actor", actorID))
	return project, nil
}

func (s *Service) UpdateProject(ctx context.Context, id string, patch ProjectPatch) (store.Project, error) {
	var updated store.Project
	err := s.mutate(ctx, func(doc *store.Document) error {
		idx := projectIndex(doc, id)
		if idx < 0 {
			return notFound("project", id)
		}
		p := doc.Projects[idx]
		if patch.Name != nil {
			p.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Icon != nil {
			p.Icon = *patch.Icon
		}
		if patch.Members != nil {
			p.Members = cloneStrings(*patch.Members)
		}
		if patch.ManagerID != nil {
			p.ManagerID = *patch.ManagerID
		}
		switch {
		case patch.ResetStatuses:
			p.Statuses = nil
		case patch.Statuses != nil:
			statuses := append([]store.Status{}, (*patch.Statuses)...)
			p.Statuses = &statuses
		}
		switch {
		case patch.ResetCategories:
			p.Categories = nil
		case patch.Categories != nil:
			categories := append([]string{}, (*patch.Categories)...)
			p.Categories = &categories
		}
		if err := s.checkProject(p); err != nil {
			return err
		}
		doc.Projects[idx] = p
		updated = p
		return nil
	})
	return updated, err
}
