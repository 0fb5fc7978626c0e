package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"medialib/client/internal/models"
)

// Resource is the gateway to one entity collection of the API.
type Resource[E any, In any] struct {
	client *Client
	path   string
	encode func(In) (*requestBody, error)
}

type (
	Categories = Resource[models.Category, CategoryInput]
	Themes     = Resource[models.Theme, ThemeInput]
	Contents   = Resource[models.Content, ContentInput]
)

func NewCategories(c *Client) *Categories {
	return &Categories{client: c, path: "/categories", encode: encodeCategory}
}

func NewThemes(c *Client) *Themes {
	return &Themes{client: c, path: "/themes", encode: encodeTheme}
}

func NewContents(c *Client) *Contents {
	return &Contents{client: c, path: "/contents", encode: encodeContent}
}

func (r *Resource[E, In]) List(ctx context.Context) Result[[]E] {
	return do[[]E](ctx, r.client, http.MethodGet, r.path, nil)
}

func (r *Resource[E, In]) Get(ctx context.Context, id string) Result[E] {
	return do[E](ctx, r.client, http.MethodGet, r.itemPath(id), nil)
}

func (r *Resource[E, In]) Create(ctx context.Context, in In) Result[E] {
	body, err := r.encode(in)
	if err != nil {
		return Result[E]{Err: err}
	}
	return do[E](ctx, r.client, http.MethodPost, r.path, body)
}

func (r *Resource[E, In]) Update(ctx context.Context, id string, in In) Result[E] {
	body, err := r.encode(in)
	if err != nil {
		return Result[E]{Err: err}
	}
	return do[E](ctx, r.client, http.MethodPut, r.itemPath(id), body)
}

func (r *Resource[E, In]) Remove(ctx context.Context, id string) Result[Empty] {
	return do[Empty](ctx, r.client, http.MethodDelete, r.itemPath(id), nil)
}

func (r *Resource[E, In]) itemPath(id string) string {
	return r.path + "/" + url.PathEscape(id)
}

// Upload is a file attached to a multipart payload.
type Upload struct {
	Filename string
	Body     io.Reader
}

type CategoryInput struct {
	Name             string
	AllowsImages     bool
	AllowsVideos     bool
	AllowsTexts      bool
	File             *Upload
	ExistingImageURL string
}

type ThemeInput struct {
	Name        string             `json:"name"`
	Permissions models.Permissions `json:"permissions"`
}

// ContentInput carries the common fields plus the payload matching Type:
// File or Image for images, URL for videos, Text for texts.
type ContentInput struct {
	Title    string
	Type     models.ContentType
	Theme    string
	Category string
	Text     string
	URL      string
	File     *Upload
	Image    string
}

func encodeCategory(in CategoryInput) (*requestBody, error) {
	form := newFormData()
	form.add("name", in.Name)
	form.add("allowsImages", strconv.FormatBool(in.AllowsImages))
	form.add("allowsVideos", strconv.FormatBool(in.AllowsVideos))
	form.add("allowsTexts", strconv.FormatBool(in.AllowsTexts))
	switch {
	case in.File != nil:
		form.attach("file", in.File)
	case in.ExistingImageURL != "":
		form.add("existingImageUrl", in.ExistingImageURL)
	}
	return form.encode()
}

func encodeTheme(in ThemeInput) (*requestBody, error) {
	return jsonBody(in)
}

func encodeContent(in ContentInput) (*requestBody, error) {
	form := newFormData()
	form.add("title", in.Title)
	form.add("type", string(in.Type))
	form.add("theme", in.Theme)
	form.add("category", in.Category)
	switch in.Type {
	case models.ContentText:
		form.add("text", in.Text)
	case models.ContentVideo:
		form.add("url", in.URL)
	case models.ContentImage:
		if in.File != nil {
			form.attach("file", in.File)
		} else if in.Image != "" {
			form.add("image", in.Image)
		}
	}
	return form.encode()
}

type formData struct {
	fields    [][2]string
	fileField string
	file      *Upload
}

func newFormData() *formData {
	return &formData{}
}

func (f *formData) add(key, value string) {
	f.fields = append(f.fields, [2]string{key, value})
}

func (f *formData) attach(key string, upload *Upload) {
	f.fileField = key
	f.file = upload
}

func (f *formData) encode() (*requestBody, error) {
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	for _, field := range f.fields {
		if err := writer.WriteField(field[0], field[1]); err != nil {
			return nil, fmt.Errorf("write field %s: %w", field[0], err)
		}
	}
	if f.file != nil {
		part, err := writer.CreateFormFile(f.fileField, f.file.Filename)
		if err != nil {
			return nil, fmt.Errorf("create file part: %w", err)
		}
		if _, err := io.Copy(part, f.file.Body); err != nil {
			return nil, fmt.Errorf("copy upload %s: %w", f.file.Filename, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}
	return &requestBody{reader: buf, contentType: writer.FormDataContentType()}, nil
}
