package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var wikiTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"formatDate": func(t time.Time, layout string) string {
			if t.IsZero() {
				return ""
			}
			return t.Format(layout)
		},
		"join": strings.Join,
	}

	templateContent, err := templateFS.ReadFile("templates/wiki.html")
	if err != nil {
		wikiTemplate = template.Must(template.New("wiki").Funcs(funcMap).Parse(fallbackTemplate))
		return
	}

	wikiTemplate = template.Must(template.New("wiki").Funcs(funcMap).Parse(string(templateContent)))
}

// TemplateData holds data for wiki template rendering
type TemplateData struct {
	Title       string
	ProjectName string
	Author      string
	Tags        []string
	CreatedAt   time.Time
	ContentHTML template.HTML
	Reactions   []Reaction
}

// RenderWikiHTML renders the wiki template with provided data
func RenderWikiHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := wikiTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// fallbackTemplate is used if the embedded template fails to load
const fallbackTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
</head>
<body>
  <h1>{{.Title}}</h1>
  <div class="meta">{{.ProjectName}} | {{.Author}}</div>
  <div>{{.ContentHTML}}</div>
</body>
</html>`
