package workflow

import (
	"slices"

	"medialib/client/internal/api"
	"medialib/client/internal/models"
)

// AllowedTypes lists the content types a theme accepts, always in the order
// image, video, text.
func AllowedTypes(p models.Permissions) []models.ContentType {
	out := make([]models.ContentType, 0, len(models.ContentTypes))
	for _, t := range models.ContentTypes {
		if p.Allows(t) {
			out = append(out, t)
		}
	}
	return out
}

// ContentDraft is a content form being filled in. The type choices follow
// the selected theme.
type ContentDraft struct {
	Title    string
	Category string
	Text     string
	URL      string
	File     *api.Upload
	Image    string

	theme   string
	typ     models.ContentType
	options []models.ContentType
}

// NewContentDraft starts an empty form. Until a theme is chosen every type
// is offered.
func NewContentDraft() *ContentDraft {
	return &ContentDraft{options: slices.Clone(models.ContentTypes)}
}

// DraftFromContent prefills a form for editing c under its current theme.
func DraftFromContent(c models.Content, theme models.Theme) *ContentDraft {
	d := &ContentDraft{
		Title:    c.Title,
		Category: c.Category.ID,
		Text:     c.Text,
		URL:      c.URL,
		Image:    c.Image,
		theme:    c.Theme.ID,
		typ:      c.Type,
		options:  AllowedTypes(theme.Permissions),
	}
	if !slices.Contains(d.options, d.typ) {
		d.typ = ""
	}
	return d
}

// SelectTheme switches the theme and always clears the chosen type, even
// when the new theme would accept it.
func (d *ContentDraft) SelectTheme(t models.Theme) {
	d.theme = t.ID
	d.options = AllowedTypes(t.Permissions)
	d.typ = ""
}

// SelectType picks one of the offered types.
func (d *ContentDraft) SelectType(t models.ContentType) error {
	if !t.Valid() {
		return validationError(MsgInvalidType)
	}
	if !slices.Contains(d.options, t) {
		return &Error{Kind: KindRule, Message: themeDisallows(t)}
	}
	d.typ = t
	return nil
}

func (d *ContentDraft) Theme() string                 { return d.theme }
func (d *ContentDraft) Type() models.ContentType      { return d.typ }
func (d *ContentDraft) Options() []models.ContentType { return slices.Clone(d.options) }

// Input builds the payload for the selected type. Fields belonging to other
// types are dropped.
func (d *ContentDraft) Input() api.ContentInput {
	in := api.ContentInput{
		Title:    d.Title,
		Type:     d.typ,
		Theme:    d.theme,
		Category: d.Category,
	}
	switch d.typ {
	case models.ContentText:
		in.Text = d.Text
	case models.ContentVideo:
		in.URL = d.URL
	case models.ContentImage:
		in.File = d.File
		in.Image = d.Image
	}
	return in
}
