package export

import (
	"context"
	"fmt"
	"html/template"
)

// Service renders wiki pages. The PDF and DOCX converters are fields so
// tests can swap out the external tools.
type Service struct {
	pdf  func(ctx context.Context, html, title string) (*Result, error)
	docx func(ctx context.Context, html, title string) (*Result, error)
}

func NewService() *Service {
	return &Service{pdf: exportPDF, docx: exportDOCX}
}

// Export generates an export of page in the requested format
func (s *Service) Export(ctx context.Context, page Page, format Format) (*Result, error) {
	data := TemplateData{
		Title:       page.Title,
		ProjectName: page.ProjectName,
		Author:      page.Author,
		Tags:        page.Tags,
		CreatedAt:   page.CreatedAt,
		ContentHTML: template.HTML(Sanitize(page.ContentHTML)),
		Reactions:   page.Reactions,
	}

	html, err := RenderWikiHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch format {
	case FormatHTML, "":
		return &Result{
			Data:     []byte(html),
			Filename: sanitizeFilename(page.Title) + ".html",
			MimeType: "text/html; charset=utf-8",
		}, nil
	case FormatPDF:
		return s.pdf(ctx, html, page.Title)
	case FormatDOCX:
		return s.docx(ctx, html, page.Title)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}
