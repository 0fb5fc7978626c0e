package models

import (
	"bytes"
	"encoding/json"
	"time"
)

type ContentType string

const (
	ContentImage ContentType = "image"
	ContentVideo ContentType = "video"
	ContentText  ContentType = "text"
)

// ContentTypes lists every content type in the order forms present them.
var ContentTypes = []ContentType{ContentImage, ContentVideo, ContentText}

func (t ContentType) Valid() bool {
	switch t {
	case ContentImage, ContentVideo, ContentText:
		return true
	default:
		return false
	}
}

type Category struct {
	ID            string    `json:"_id"`
	Name          string    `json:"name"`
	AllowsImages  bool      `json:"allowsImages"`
	AllowsVideos  bool      `json:"allowsVideos"`
	AllowsTexts   bool      `json:"allowsTexts"`
	CoverImageURL string    `json:"coverImageUrl,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (c Category) EntityID() string { return c.ID }

type Permissions struct {
	Images bool `json:"images"`
	Videos bool `json:"videos"`
	Texts  bool `json:"texts"`
}

// Allows reports whether content of type t may be attached to a theme
// carrying these permissions.
func (p Permissions) Allows(t ContentType) bool {
	switch t {
	case ContentImage:
		return p.Images
	case ContentVideo:
		return p.Videos
	case ContentText:
		return p.Texts
	default:
		return false
	}
}

func (p Permissions) Any() bool {
	return p.Images || p.Videos || p.Texts
}

type Theme struct {
	ID          string      `json:"_id"`
	Name        string      `json:"name"`
	Permissions Permissions `json:"permissions"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

func (t Theme) EntityID() string { return t.ID }

// Ref points at a theme or category from a content item. The API sends either
// the bare identifier or a populated {_id, name} object.
type Ref struct {
	ID   string `json:"_id"`
	Name string `json:"name,omitempty"`
}

func (r *Ref) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = Ref{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*r = Ref{ID: id}
		return nil
	}
	type plain Ref
	var out plain
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	*r = Ref(out)
	return nil
}

type Content struct {
	ID        string      `json:"_id"`
	Title     string      `json:"title"`
	Type      ContentType `json:"type"`
	Theme     Ref         `json:"theme"`
	Category  Ref         `json:"category"`
	Image     string      `json:"image,omitempty"`
	URL       string      `json:"url,omitempty"`
	Text      string      `json:"text,omitempty"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

func (c Content) EntityID() string { return c.ID }

// Payload returns the single payload field selected by the content type.
func (c Content) Payload() string {
	switch c.Type {
	case ContentImage:
		return c.Image
	case ContentVideo:
		return c.URL
	case ContentText:
		return c.Text
	default:
		return ""
	}
}
