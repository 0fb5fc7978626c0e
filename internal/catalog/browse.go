package catalog

import "medialib/client/internal/models"

type Kind string

const (
	KindCategory Kind = "category"
	KindTheme    Kind = "theme"
	KindContent  Kind = "content"
)

// Suggestion is one autocomplete entry for the search box.
type Suggestion struct {
	Kind  Kind   `json:"type"`
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Suggestions lists every category, theme and content title, in that order.
func Suggestions(s Snapshot) []Suggestion {
	out := make([]Suggestion, 0, len(s.Categories)+len(s.Themes)+len(s.Contents))
	for _, c := range s.Categories {
		out = append(out, Suggestion{Kind: KindCategory, ID: c.ID, Label: c.Name})
	}
	for _, t := range s.Themes {
		out = append(out, Suggestion{Kind: KindTheme, ID: t.ID, Label: t.Name})
	}
	for _, c := range s.Contents {
		out = append(out, Suggestion{Kind: KindContent, ID: c.ID, Label: c.Title})
	}
	return out
}

func ContentsInCategory(s Snapshot, categoryID string) []models.Content {
	out := []models.Content{}
	for _, c := range s.Contents {
		if c.Category.ID == categoryID {
			out = append(out, c)
		}
	}
	return out
}

func ContentsInTheme(s Snapshot, themeID string) []models.Content {
	out := []models.Content{}
	for _, c := range s.Contents {
		if c.Theme.ID == themeID {
			out = append(out, c)
		}
	}
	return out
}

func ThemeByID(s Snapshot, id string) (models.Theme, bool) {
	for _, t := range s.Themes {
		if t.ID == id {
			return t, true
		}
	}
	return models.Theme{}, false
}

func CategoryByID(s Snapshot, id string) (models.Category, bool) {
	for _, c := range s.Categories {
		if c.ID == id {
			return c, true
		}
	}
	return models.Category{}, false
}

func ContentByID(s Snapshot, id string) (models.Content, bool) {
	for _, c := range s.Contents {
		if c.ID == id {
			return c, true
		}
	}
	return models.Content{}, false
}

// RowsPerPageOptions are the page sizes offered by list screens.
var RowsPerPageOptions = []int{10, 50, 100}

const DefaultRowsPerPage = 10

type Page[T any] struct {
	Items      []T
	Index      int
	PerPage    int
	Total      int
	TotalPages int
}

// Paginate returns page index (zero-based) of items. Unsupported page sizes
// fall back to DefaultRowsPerPage and the index is clamped to the last page.
func Paginate[T any](items []T, index, perPage int) Page[T] {
	if !validPerPage(perPage) {
		perPage = DefaultRowsPerPage
	}
	total := len(items)
	pages := (total + perPage - 1) / perPage
	if pages == 0 {
		pages = 1
	}
	if index < 0 {
		index = 0
	}
	if index > pages-1 {
		index = pages - 1
	}
	start := index * perPage
	end := min(start+perPage, total)
	return Page[T]{
		Items:      items[start:end:end],
		Index:      index,
		PerPage:    perPage,
		Total:      total,
		TotalPages: pages,
	}
}

func validPerPage(n int) bool {
	for _, opt := range RowsPerPageOptions {
		if opt == n {
			return true
		}
	}
	return false
}
