package app

import (
	"context"
	"strings"

	"backlog/api/internal/authpw"
	"backlog/api/internal/rbac"
	"backlog/api/internal/store"
)

type MemberInput struct {
	ID       string `json:"id" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Dept     string `json:"dept"`
	Role     string `json:"role"`
	Password string `json:"password" validate:"required"`
	Icon     string `json:"icon"`
}

type MemberPatch struct {
	Name     *string `json:"name" validate:"omitnil,required"`
	Dept     *string `json:"dept"`
	Role     *string `json:"role"`
	Password *string `json:"password" validate:"omitnil,required"`
	Icon     *string `json:"icon"`
}

func (s *Service) Members() []store.Member {
	return append([]store.Member{}, s.snapshot().Members...)
}

func (s *Service) Member(id string) (store.Member, error) {
	m, ok := findMember(s.snapshot(), id)
	if !ok {
		return store.Member{}, notFound("member", id)
	}
	return m, nil
}

// MemberName returns the display name for id, or id itself when no member
// has it (deleted members keep showing up by id).
func (s *Service) MemberName(id string) string {
	return memberName(s.snapshot(), id)
}

func (s *Service) AddMember(ctx context.Context, input MemberInput) (store.Member, error) {
	input.ID = strings.TrimSpace(input.ID)
	input.Name = strings.TrimSpace(input.Name)
	if err := s.check(input); err != nil {
		return store.Member{}, err
	}
	password, err := authpw.Prepare(input.Password, s.cfg.HashPasswords)
	if err != nil {
		return store.Member{}, err
	}
	member := store.Member{
		ID:       input.ID,
		Name:     input.Name,
		Dept:     input.Dept,
		Role:     string(rbac.Normalize(input.Role)),
		Password: password,
		Icon:     input.Icon,
	}

	err = s.mutate(ctx, func(doc *store.Document) error {
		if memberIndex(doc, member.ID) >= 0 {
			return conflict("Member id already in use", map[string]any{"id": member.ID})
		}
		doc.Members = append(doc.Members, member)
		return nil
	})
	if err != nil {
		return store.Member{}, err
	}
	return member, nil
}

func (s *Service) UpdateMember(ctx context.Context, id string, patch MemberPatch) (store.Member, error) {
	if patch.Name != nil {
		trimmed := strings.TrimSpace(*patch.Name)
		patch.Name = &trimmed
	}
	if err := s.check(patch); err != nil {
		return store.Member{}, err
	}
	var password string
	if patch.Password != nil {
		prepared, err := authpw.Prepare(*patch.Password, s.cfg.HashPasswords)
		if err != nil {
			return store.Member{}, err
		}
		password = prepared
	}

	var updated store.Member
	err := s.mutate(ctx, func(doc *store.Document) error {
		idx := memberIndex(doc, id)
		if idx < 0 {
			return notFound("member", id)
		}
		m := doc.Members[idx]
		if patch.Name != nil {
			m.Name = *patch.Name
		}
		if patch.Dept != nil {
			m.Dept = *patch.Dept
		}
		if patch.Role != nil {
			m.Role = string(rbac.Normalize(*patch.Role))
		}
		if patch.Password != nil {
			m.Password = password
		}
		if patch.Icon != nil {
			m.Icon = *patch.Icon
		}
		doc.Members[idx] = m
		updated = m
		return nil
	})
	return updated, err
}

// DeleteMember removes the member only. Project member lists, assignees and
// comment authors that reference the id are left as they are.
func (s *Service) DeleteMember(ctx context.Context, id string) error {
	return s.mutate(ctx, func(doc *store.Document) error {
		idx := memberIndex(doc, id)
		if idx < 0 {
			return notFound("member", id)
		}
		doc.Members = append(doc.Members[:idx], doc.Members[idx+1:]...)
		return nil
	})
}
