// Package view turns catalog data into render-ready cards, hiding actions and
// media the current user may not see. The gating is cosmetic; the API
// enforces the real rules.
package view

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"medialib/client/internal/catalog"
	"medialib/client/internal/models"
	"medialib/client/internal/rbac"
)

// Actions are the per-card buttons.
type Actions struct {
	Edit   bool `json:"edit"`
	Delete bool `json:"delete"`
}

type CategoryCard struct {
	ID         string               `json:"id"`
	Name       string               `json:"name"`
	Allows     []models.ContentType `json:"allows"`
	CoverImage string               `json:"coverImage,omitempty"`
	UpdatedAt  time.Time            `json:"updatedAt"`
	Actions    Actions              `json:"actions"`
}

type ThemeCard struct {
	ID        string               `json:"id"`
	Name      string               `json:"name"`
	Allows    []models.ContentType `json:"allows"`
	UpdatedAt time.Time            `json:"updatedAt"`
	Actions   Actions              `json:"actions"`
}

type ContentCard struct {
	ID       string             `json:"id"`
	Title    string             `json:"title"`
	Type     models.ContentType `json:"type"`
	Theme    string             `json:"theme"`
	Category string             `json:"category"`
	Text     string             `json:"text,omitempty"`
	// Image and Video are empty unless media may be shown.
	Image     string    `json:"image,omitempty"`
	VideoURL  string    `json:"videoUrl,omitempty"`
	Embed     string    `json:"embed,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
	Actions   Actions   `json:"actions"`
}

// Page is everything a catalog screen shows for one query.
type Page struct {
	Query        string            `json:"query"`
	Capabilities rbac.Capabilities `json:"capabilities"`
	Categories   []CategoryCard    `json:"categories"`
	Themes       []ThemeCard       `json:"themes"`
	Contents     []ContentCard     `json:"contents"`
}

func (p Page) Empty() bool {
	return len(p.Categories) == 0 && len(p.Themes) == 0 && len(p.Contents) == 0
}

type Builder struct {
	caps      rbac.Capabilities
	mediaBase string
}

// NewBuilder renders for caps. Relative media paths are resolved against
// mediaBase, normally the API URL.
func NewBuilder(caps rbac.Capabilities, mediaBase string) Builder {
	return Builder{caps: caps, mediaBase: strings.TrimRight(mediaBase, "/")}
}

func (b Builder) Capabilities() rbac.Capabilities {
	return b.caps
}

func (b Builder) actions() Actions {
	return Actions{Edit: b.caps.CanEdit, Delete: b.caps.CanDelete}
}

func (b Builder) Page(v catalog.Views) Page {
	p := Page{
		Query:        v.Query,
		Capabilities: b.caps,
		Categories:   make([]CategoryCard, 0, len(v.Categories)),
		Themes:       make([]ThemeCard, 0, len(v.Themes)),
		Contents:     make([]ContentCard, 0, len(v.Contents)),
	}
	for _, c := range v.Categories {
		p.Categories = append(p.Categories, b.Category(c))
	}
	for _, t := range v.Themes {
		p.Themes = append(p.Themes, b.Theme(t))
	}
	for _, c := range v.Contents {
		p.Contents = append(p.Contents, b.Content(c))
	}
	return p
}

func (b Builder) Category(c models.Category) CategoryCard {
	card := CategoryCard{
		ID:        c.ID,
		Name:      c.Name,
		Allows:    categoryAllows(c),
		UpdatedAt: c.UpdatedAt,
		Actions:   b.actions(),
	}
	if b.caps.CanViewMediaPayload && c.CoverImageURL != "" {
		card.CoverImage = b.MediaURL(c.CoverImageURL)
	}
	return card
}

func (b Builder) Theme(t models.Theme) ThemeCard {
	allows := make([]models.ContentType, 0, len(models.ContentTypes))
	for _, ct := range models.ContentTypes {
		if t.Permissions.Allows(ct) {
			allows = append(allows, ct)
		}
	}
	return ThemeCard{
		ID:        t.ID,
		Name:      t.Name,
		Allows:    allows,
		UpdatedAt: t.UpdatedAt,
		Actions:   b.actions(),
	}
}

func (b Builder) Content(c models.Content) ContentCard {
	card := ContentCard{
		ID:        c.ID,
		Title:     c.Title,
		Type:      c.Type,
		Theme:     refLabel(c.Theme),
		Category:  refLabel(c.Category),
		UpdatedAt: c.UpdatedAt,
		Actions:   b.actions(),
	}
	switch c.Type {
	case models.ContentText:
		card.Text = c.Text
	case models.ContentImage:
		if b.caps.CanViewMediaPayload && c.Image != "" {
			card.Image = b.MediaURL(c.Image)
		}
	case models.ContentVideo:
		if b.caps.CanViewMediaPayload && c.URL != "" {
			card.VideoURL = c.URL
			card.Embed = EmbedURL(c.URL)
		}
	}
	return card
}

// MediaURL resolves an upload path served by the API. Absolute URLs are
// returned unchanged.
func (b Builder) MediaURL(ref string) string {
	if u, err := url.Parse(ref); err == nil && u.IsAbs() {
		return ref
	}
	if !strings.HasPrefix(ref, "/") {
		ref = "/" + ref
	}
	return b.mediaBase + ref
}

var youtubeURL = regexp.MustCompile(`^(https?://)?(www\.|m\.)?(youtube\.com|youtu\.?be)/.+$`)

// EmbedURL returns the player URL for a YouTube link and the link itself for
// anything else.
func EmbedURL(raw string) string {
	if id, ok := YouTubeID(raw); ok {
		return "https://www.youtube.com/embed/" + id
	}
	return raw
}

// YouTubeID extracts the video id from watch, short and embed links.
func YouTubeID(raw string) (string, bool) {
	if !youtubeURL.MatchString(raw) {
		return "", false
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if v := u.Query().Get("v"); v != "" {
		return v, true
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	switch {
	case strings.Contains(u.Host, "youtu.be") && segments[0] != "":
		return segments[0], true
	case len(segments) == 2 && (segments[0] == "embed" || segments[0] == "shorts"):
		return segments[1], true
	}
	return "", false
}

func categoryAllows(c models.Category) []models.ContentType {
	out := make([]models.ContentType, 0, 3)
	if c.AllowsImages {
		out = append(out, models.ContentImage)
	}
	if c.AllowsVideos {
		out = append(out, models.ContentVideo)
	}
	if c.AllowsTexts {
		out = append(out, models.ContentText)
	}
	return out
}

func refLabel(r models.Ref) string {
	if r.Name != "" {
		return r.Name
	}
	return r.ID
}
