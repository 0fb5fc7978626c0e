package app

import (
	"context"
	"errors"

	"medialib/client/internal/api"
	"medialib/client/internal/media"
	"medialib/client/internal/models"
	"medialib/client/internal/notify"
	"medialib/client/internal/rbac"
	"medialib/client/internal/workflow"
)

// CategoryFields holds the flags given on the command line. Nil means the
// field was not given: blank on create, unchanged on update.
type CategoryFields struct {
	Name         *string
	AllowsImages *bool
	AllowsVideos *bool
	AllowsTexts  *bool
	// Cover is a local path or s3://bucket/key.
	Cover string
}

func (f CategoryFields) apply(in *api.CategoryInput) {
	setString(&in.Name, f.Name)
	setBool(&in.AllowsImages, f.AllowsImages)
	setBool(&in.AllowsVideos, f.AllowsVideos)
	setBool(&in.AllowsTexts, f.AllowsTexts)
}

type ThemeFields struct {
	Name   *string
	Images *bool
	Videos *bool
	Texts  *bool
}

func (f ThemeFields) apply(in *api.ThemeInput) {
	setString(&in.Name, f.Name)
	setBool(&in.Permissions.Images, f.Images)
	setBool(&in.Permissions.Videos, f.Videos)
	setBool(&in.Permissions.Texts, f.Texts)
}

// ContentFields works like CategoryFields. Changing the theme clears the
// type, so a new theme must come with a type.
type ContentFields struct {
	Title    *string
	Type     models.ContentType
	Theme    string
	Category *string
	Text     *string
	URL      *string
	// File is a local path or s3://bucket/key.
	File string
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func (a *App) CreateCategory(ctx context.Context, f CategoryFields) (models.Category, error) {
	var in api.CategoryInput
	f.apply(&in)
	closeCover, err := a.attachCover(ctx, &in, f.Cover)
	if err != nil {
		return models.Category{}, err
	}
	defer closeCover()
	return create(ctx, a, a.CategoryFlow, in)
}

func (a *App) UpdateCategory(ctx context.Context, id string, f CategoryFields) (models.Category, error) {
	if err := a.require(ctx, rbac.ActionEdit, "category"); err != nil {
		return models.Category{}, err
	}
	existing, err := a.Category(ctx, id)
	if err != nil {
		return models.Category{}, err
	}
	in := workflow.CategoryInputFrom(existing)
	f.apply(&in)
	closeCover, err := a.attachCover(ctx, &in, f.Cover)
	if err != nil {
		return models.Category{}, err
	}
	defer closeCover()
	return update(ctx, a, a.CategoryFlow, existing, in)
}

func (a *App) DeleteCategory(ctx context.Context, id string) error {
	return remove(ctx, a, a.CategoryFlow, a.Categories, id)
}

func (a *App) attachCover(ctx context.Context, in *api.CategoryInput, ref string) (func(), error) {
	if ref == "" {
		return func() {}, nil
	}
	file, err := a.openMedia(ctx, ref)
	if err != nil {
		return nil, err
	}
	in.File = file.Upload()
	return func() { _ = file.Close() }, nil
}

func (a *App) CreateTheme(ctx context.Context, f ThemeFields) (models.Theme, error) {
	var in api.ThemeInput
	f.apply(&in)
	return create(ctx, a, a.ThemeFlow, in)
}

func (a *App) UpdateTheme(ctx context.Context, id string, f ThemeFields) (models.Theme, error) {
	if err := a.require(ctx, rbac.ActionEdit, "theme"); err != nil {
		return models.Theme{}, err
	}
	existing, err := a.Theme(ctx, id)
	if err != nil {
		return models.Theme{}, err
	}
	in := workflow.ThemeInputFrom(existing)
	f.apply(&in)
	return update(ctx, a, a.ThemeFlow, existing, in)
}

func (a *App) DeleteTheme(ctx context.Context, id string) error {
	return remove(ctx, a, a.ThemeFlow, a.Themes, id)
}

// ContentTypes lists the types a theme accepts, as offered by the content form.
func (a *App) ContentTypes(ctx context.Context, themeID string) ([]models.ContentType, error) {
	theme, err := a.Theme(ctx, themeID)
	if err != nil {
		return nil, err
	}
	draft := workflow.NewContentDraft()
	draft.SelectTheme(theme)
	return draft.Options(), nil
}

func (a *App) CreateContent(ctx context.Context, f ContentFields) (models.Content, error) {
	if err := a.require(ctx, rbac.ActionCreate, "content"); err != nil {
		return models.Content{}, err
	}
	draft := workflow.NewContentDraft()
	if f.Theme != "" {
		theme, err := a.Theme(ctx, f.Theme)
		if err != nil {
			return models.Content{}, err
		}
		draft.SelectTheme(theme)
	}
	closeFile, err := a.fillDraft(ctx, draft, f)
	if err != nil {
		return models.Content{}, err
	}
	defer closeFile()
	return create(ctx, a, a.ContentFlow, draft.Input())
}

func (a *App) UpdateContent(ctx context.Context, id string, f ContentFields) (models.Content, error) {
	if err := a.require(ctx, rbac.ActionEdit, "content"); err != nil {
		return models.Content{}, err
	}
	existing, err := a.Content(ctx, id)
	if err != nil {
		return models.Content{}, err
	}
	theme, err := a.Theme(ctx, existing.Theme.ID)
	if err != nil {
		return models.Content{}, err
	}
	draft := workflow.DraftFromContent(existing, theme)
	if f.Theme != "" && f.Theme != existing.Theme.ID {
		next, err := a.Theme(ctx, f.Theme)
		if err != nil {
			return models.Content{}, err
		}
		draft.SelectTheme(next)
	}
	closeFile, err := a.fillDraft(ctx, draft, f)
	if err != nil {
		return models.Content{}, err
	}
	defer closeFile()
	return update(ctx, a, a.ContentFlow, existing, draft.Input())
}

func (a *App) DeleteContent(ctx context.Context, id string) error {
	return remove(ctx, a, a.ContentFlow, a.Contents, id)
}

// fillDraft copies the given fields into the draft. The type goes through
// the draft so a type the theme refuses is rejected before any request.
func (a *App) fillDraft(ctx context.Context, d *workflow.ContentDraft, f ContentFields) (func(), error) {
	if f.Type != "" {
		if err := d.SelectType(f.Type); err != nil {
			return nil, a.reject(err)
		}
	}
	setString(&d.Title, f.Title)
	setString(&d.Category, f.Category)
	setString(&d.Text, f.Text)
	setString(&d.URL, f.URL)
	if f.File == "" {
		return func() {}, nil
	}
	file, err := a.openMedia(ctx, f.File)
	if err != nil {
		return nil, err
	}
	d.File = file.Upload()
	return func() { _ = file.Close() }, nil
}

func (a *App) openMedia(ctx context.Context, ref string) (*media.File, error) {
	file, err := a.Media.Open(ctx, ref)
	if err != nil {
		a.notifier.Notify(notify.LevelError, "Failed to read file")
		return nil, err
	}
	return file, nil
}

// reject reports a workflow error raised outside a controller.
func (a *App) reject(err error) error {
	var wfErr *workflow.Error
	if errors.As(err, &wfErr) {
		a.notifier.Notify(notify.LevelError, wfErr.Message)
	}
	return err
}
