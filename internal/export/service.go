package export

import (
	"context"
	"fmt"
	"time"

	"medialib/client/internal/view"
)

// Service turns a rendered catalog page into a file. The page must already
// be built for the viewer, so media hidden from them stays hidden.
type Service struct {
	now func() time.Time
	pdf func(ctx context.Context, html, title string) (*Result, error)
}

func NewService() *Service {
	return &Service{now: time.Now, pdf: renderPDF}
}

// Export generates an export in the requested format
func (s *Service) Export(ctx context.Context, p view.Page, req Request) (*Result, error) {
	if req.Title == "" {
		req.Title = "Multimedia Library"
	}
	if req.GeneratedAt.IsZero() {
		req.GeneratedAt = s.now()
	}

	data := TemplateData{
		Title:       req.Title,
		Query:       p.Query,
		GeneratedAt: req.GeneratedAt,
		Categories:  p.Categories,
		Themes:      p.Themes,
		Contents:    make([]TemplateContent, 0, len(p.Contents)),
	}
	for _, c := range p.Contents {
		text, err := RenderText(c.Text)
		if err != nil {
			return nil, fmt.Errorf("render text of %s: %w", c.ID, err)
		}
		data.Contents = append(data.Contents, TemplateContent{ContentCard: c, TextHTML: text})
	}

	html, err := RenderCatalogHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch req.Format {
	case FormatHTML:
		return &Result{
			Data:     []byte(html),
			Filename: sanitizeFilename(req.Title) + ".html",
			MimeType: "text/html; charset=utf-8",
		}, nil
	case FormatPDF:
		return s.pdf(ctx, html, req.Title)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, req.Format)
	}
}
