package search

import (
	"strings"
	"unicode/utf8"
)

// Source yields the current records to scan.
type Source func() ([]IssueRecord, []WikiRecord)

// Memory scans records in process. It matches the query against titles,
// issue keys and wiki tags, case-insensitively, and is always healthy.
type Memory struct {
	source Source
}

func NewMemory(source Source) *Memory {
	return &Memory{source: source}
}

func (m *Memory) Healthy() bool {
	return true
}

func (m *Memory) Search(q Query) ([]Result, int, error) {
	if m.source == nil {
		return nil, 0, nil
	}
	needle := strings.ToLower(strings.TrimSpace(q.Text))
	issues, wikis := m.source()

	var results []Result
	if q.FilterType == "" || q.FilterType == ResultIssue {
		for _, issue := range issues {
			if q.ProjectID != "" && issue.ProjectID != q.ProjectID {
				continue
			}
			if q.Tag != "" {
				continue
			}
			if !contains(issue.Title, needle) && !contains(issue.Key, needle) {
				continue
			}
			results = append(results, Result{
				Type:      ResultIssue,
				ID:        issue.ID,
				Key:       issue.Key,
				Title:     issue.Title,
				Snippet:   snippet(issue.Desc),
				ProjectID: issue.ProjectID,
			})
		}
	}
	if q.FilterType == "" || q.FilterType == ResultWiki {
		for _, wiki := range wikis {
			if q.ProjectID != "" && wiki.ProjectID != q.ProjectID {
				continue
			}
			if q.Tag != "" && !hasTag(wiki.Tags, q.Tag) {
				continue
			}
			if !contains(wiki.Title, needle) && !anyContains(wiki.Tags, needle) {
				continue
			}
			results = append(results, Result{
				Type:      ResultWiki,
				ID:        wiki.ID,
				Title:     wiki.Title,
				Snippet:   snippet(wiki.Content),
				ProjectID: wiki.ProjectID,
				Tags:      wiki.Tags,
			})
		}
	}

	total := len(results)
	return page(results, q.Offset, q.Limit), total, nil
}

func contains(value, needle string) bool {
	return needle == "" || strings.Contains(strings.ToLower(value), needle)
}

func anyContains(values []string, needle string) bool {
	for _, v := range values {
		if contains(v, needle) {
			return true
		}
	}
	return false
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

func page(results []Result, offset, limit int) []Result {
	if limit <= 0 {
		limit = defaultLimit
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(results) {
		return []Result{}
	}
	end := offset + limit
	if end > len(results) {
		end = len(results)
	}
	return results[offset:end]
}

const snippetRunes = 160

func snippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= snippetRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:snippetRunes]) + "…"
}
