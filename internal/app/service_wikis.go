package app

import (
	"context"
	"sort"
	"strings"

	"backlog/api/internal/notify"
	"backlog/api/internal/search"
	"backlog/api/internal/store"
	"backlog/api/internal/util"
)

type WikiInput struct {
	ProjectID string   `json:"projectId" validate:"required"`
	Title     string   `json:"title" validate:"required"`
	Content   string   `json:"content"`
	Tags      []string `json:"tags" validate:"dive,required"`
}

type WikiPatch struct {
	ProjectID *string   `json:"projectId" validate:"omitnil,required"`
	Title     *string   `json:"title" validate:"omitnil,required"`
	Content   *string   `json:"content"`
	Tags      *[]string `json:"tags"`
}

// normalizeTags trims tags and drops blanks and repeats, keeping the first
// spelling of each.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func (s *Service) Wikis() []store.Wiki {
	return append([]store.Wiki{}, s.snapshot().Wikis...)
}

func (s *Service) ProjectWikis(projectID string) []store.Wiki {
	out := []store.Wiki{}
	for _, w := range s.snapshot().Wikis {
		if belongsTo(w.ProjectID, projectID) {
			out = append(out, w)
		}
	}
	return out
}

func (s *Service) Wiki(id string) (store.Wiki, error) {
	doc := s.snapshot()
	idx := wikiIndex(doc, id)
	if idx < 0 {
		return store.Wiki{}, notFound("wiki", id)
	}
	return doc.Wikis[idx], nil
}

// WikiTags lists the distinct tags used by the project's pages, sorted.
func (s *Service) WikiTags(projectID string) []string {
	seen := map[string]struct{}{}
	for _, w := range s.ProjectWikis(projectID) {
		for _, tag := range w.Tags {
			seen[tag] = struct{}{}
		}
	}
	tags := make([]string, 0, len(seen))
	for tag := range seen {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// CreateWiki adds a page written by actorID.
func (s *Service) CreateWiki(ctx context.Context, input WikiInput, actorID string) (store.Wiki, error) {
	input.Title = strings.TrimSpace(input.Title)
	if err := s.check(input); err != nil {
		return store.Wiki{}, err
	}
	now := s.now()
	wiki := store.Wiki{
		ID:        util.StampedID("WK", now),
		ProjectID: input.ProjectID,
		Title:     input.Title,
		Content:   input.Content,
		Tags:      normalizeTags(input.Tags),
		Author:    actorID,
		CreatedAt: store.Timestamp(now),
		Reactions: store.Reactions{},
	}

	err := s.mutate(ctx, func(doc *store.Document) error {
		if projectIndex(doc, wiki.ProjectID) < 0 {
			return notFound("project", wiki.ProjectID)
		}
		doc.Wikis = append(doc.Wikis, wiki)
		return nil
	})
	if err != nil {
		return store.Wiki{}, err
	}
	s.search.IndexWiki(wikiRecord(wiki))
	return wiki, nil
}

func (s *Service) UpdateWiki(ctx context.Context, id string, patch WikiPatch) (store.Wiki, error) {
	if patch.Title != nil {
		trimmed := strings.TrimSpace(*patch.Title)
		patch.Title = &trimmed
	}
	if err := s.check(patch); err != nil {
		return store.Wiki{}, err
	}

	var updated store.Wiki
	err := s.mutate(ctx, func(doc *store.Document) error {
		idx := wikiIndex(doc, id)
		if idx < 0 {
			return notFound("wiki", id)
		}
		w := doc.Wikis[idx]
		if patch.ProjectID != nil && *patch.ProjectID != w.ProjectID {
			if projectIndex(doc, *patch.ProjectID) < 0 {
				return notFound("project", *patch.ProjectID)
			}
			w.ProjectID = *patch.ProjectID
		}
		if patch.Title != nil {
			w.Title = *patch.Title
		}
		if patch.Content != nil {
			w.Content = *patch.Content
		}
		if patch.Tags != nil {
			w.Tags = normalizeTags(*patch.Tags)
		}
		doc.Wikis[idx] = w
		updated = w
		return nil
	})
	if err != nil {
		return store.Wiki{}, err
	}
	s.search.IndexWiki(wikiRecord(updated))
	return updated, nil
}

func (s *Service) DeleteWiki(ctx context.Context, id string) error {
	err := s.mutate(ctx, func(doc *store.Document) error {
		idx := wikiIndex(doc, id)
		if idx < 0 {
			return notFound("wiki", id)
		}
		doc.Wikis = append(doc.Wikis[:idx], doc.Wikis[idx+1:]...)
		return nil
	})
	if err != nil {
		return err
	}
	s.search.DeleteWiki(id)
	return nil
}

func wikiRecord(w store.Wiki) search.WikiRecord {
	projectID := w.ProjectID
	if projectID == "" {
		projectID = legacyProjectID
	}
	return search.WikiRecord{
		ID:        w.ID,
		Title:     w.Title,
		Content:   notify.PlainText(w.Content),
		Tags:      append([]string{}, w.Tags...),
		ProjectID: projectID,
		Author:    w.Author,
	}
}
