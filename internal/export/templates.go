package export

import (
	"bytes"
	"embed"
	"html/template"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"

	"medialib/client/internal/view"
)

//go:embed templates/*.html
var templateFS embed.FS

var catalogTemplate = template.Must(
	template.New("catalog.html").
		Funcs(template.FuncMap{
			"formatDate": func(t time.Time, layout string) string {
				if t.IsZero() {
					return ""
				}
				return t.Format(layout)
			},
		}).
		ParseFS(templateFS, "templates/catalog.html"),
)

// Raw HTML inside text contents is omitted from the output.
var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM, extension.Linkify),
	goldmark.WithRendererOptions(htmlrenderer.WithHardWraps()),
)

// TemplateData holds data for catalog template rendering
type TemplateData struct {
	Title       string
	Query       string
	GeneratedAt time.Time
	Categories  []view.CategoryCard
	Themes      []view.ThemeCard
	Contents    []TemplateContent
}

// TemplateContent is a content card with its text already rendered.
type TemplateContent struct {
	view.ContentCard
	TextHTML template.HTML
}

// RenderText converts a text content body from Markdown to HTML.
func RenderText(text string) (template.HTML, error) {
	if text == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// RenderCatalogHTML renders the catalog template with provided data
func RenderCatalogHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := catalogTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
