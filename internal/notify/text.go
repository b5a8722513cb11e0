package notify

import (
	"strings"

	"backlog/api/internal/store"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// PlainText renders the visible text of a rich-text fragment. Block-level
// elements and <br> become line breaks; entities are decoded.
func PlainText(content string) string {
	var b strings.Builder
	tokenizer := html.NewTokenizer(strings.NewReader(content))
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(b.String())
		case html.TextToken:
			b.Write(tokenizer.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := tokenizer.TagName()
			if isBreak(atom.Lookup(name)) && b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
				b.WriteByte('\n')
			}
		}
	}
}

func isBreak(a atom.Atom) bool {
	switch a {
	case atom.Br, atom.P, atom.Div, atom.Li, atom.Tr, atom.Pre, atom.Blockquote,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		return true
	}
	return false
}

// HasImage reports whether the fragment contains an <img> element.
func HasImage(content string) bool {
	tokenizer := html.NewTokenizer(strings.NewReader(content))
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return false
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := tokenizer.TagName()
			if atom.Lookup(name) == atom.Img {
				return true
			}
		}
	}
}

// Mentions returns, in member order, the ids of members other than actor
// whose "@name" appears in text. Each member appears at most once.
func Mentions(text string, members []store.Member, actor string) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, m := range members {
		if m.Name == "" || m.ID == actor {
			continue
		}
		if _, ok := seen[m.ID]; ok {
			continue
		}
		if strings.Contains(text, "@"+m.Name) {
			seen[m.ID] = struct{}{}
			ids = append(ids, m.ID)
		}
	}
	return ids
}
