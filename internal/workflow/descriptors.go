package workflow

import (
	"context"
	"fmt"
	"strings"

	"medialib/client/internal/api"
	"medialib/client/internal/models"
)

const (
	MsgMissingFields    = "Missing fields"
	MsgNoPermission     = "You have to select at least one."
	MsgImageRequired    = "File is required for image content"
	MsgInvalidType      = "Invalid content type"
	MsgThemeNotFound    = "Theme not found"
	MsgCategoryNotFound = "Category not found"
)

type (
	CategoryController = Controller[models.Category, api.CategoryInput]
	ThemeController    = Controller[models.Theme, api.ThemeInput]
	ContentController  = Controller[models.Content, api.ContentInput]
)

func Categories(gw Gateway[models.Category, api.CategoryInput]) Descriptor[models.Category, api.CategoryInput] {
	return Descriptor[models.Category, api.CategoryInput]{
		Noun:     "category",
		Gateway:  gw,
		Validate: ValidateCategory,
	}
}

func Themes(gw Gateway[models.Theme, api.ThemeInput]) Descriptor[models.Theme, api.ThemeInput] {
	return Descriptor[models.Theme, api.ThemeInput]{
		Noun:     "theme",
		Gateway:  gw,
		Validate: ValidateTheme,
	}
}

// Contents re-reads the chosen theme and category before every save so a
// theme edited elsewhere cannot accept a type it no longer allows.
func Contents(gw Gateway[models.Content, api.ContentInput], themes Getter[models.Theme], categories Getter[models.Category]) Descriptor[models.Content, api.ContentInput] {
	return Descriptor[models.Content, api.ContentInput]{
		Noun:     "content",
		Gateway:  gw,
		Validate: ValidateContent,
		Guard: func(ctx context.Context, in api.ContentInput) error {
			return guardContent(ctx, themes, categories, in)
		},
	}
}

// The three boolean flags always carry a value, so only the name can be missing.
func ValidateCategory(in api.CategoryInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return validationError(MsgMissingFields)
	}
	return nil
}

func ValidateTheme(in api.ThemeInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return validationError(MsgMissingFields)
	}
	if !in.Permissions.Any() {
		return validationError(MsgNoPermission)
	}
	return nil
}

func ValidateContent(in api.ContentInput) error {
	if blank(in.Title) || in.Type == "" || blank(in.Theme) || blank(in.Category) {
		return validationError(MsgMissingFields)
	}
	switch in.Type {
	case models.ContentText:
		if blank(in.Text) {
			return validationError(MsgMissingFields)
		}
	case models.ContentVideo:
		if blank(in.URL) {
			return validationError(MsgMissingFields)
		}
	case models.ContentImage:
		if in.File == nil && blank(in.Image) {
			return validationError(MsgImageRequired)
		}
	default:
		return validationError(MsgInvalidType)
	}
	return nil
}

// guardContent checks theme, then category, then the theme's permission for
// the chosen type. Each step waits for the previous one.
func guardContent(ctx context.Context, themes Getter[models.Theme], categories Getter[models.Category], in api.ContentInput) error {
	theme := themes.Get(ctx, in.Theme)
	if theme.Err != nil {
		return resultError(theme, "Failed to save content")
	}
	if !theme.OK() {
		return &Error{Kind: KindRule, Status: theme.Status, Message: MsgThemeNotFound}
	}

	category := categories.Get(ctx, in.Category)
	if category.Err != nil {
		return resultError(category, "Failed to save content")
	}
	if !category.OK() {
		return &Error{Kind: KindRule, Status: category.Status, Message: MsgCategoryNotFound}
	}

	if !theme.Data.Permissions.Allows(in.Type) {
		return &Error{Kind: KindRule, Message: themeDisallows(in.Type)}
	}
	return nil
}

func themeDisallows(t models.ContentType) string {
	return fmt.Sprintf("Theme does not allow %s content", t)
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// CategoryInputFrom prefills an edit form from c, keeping its cover image.
func CategoryInputFrom(c models.Category) api.CategoryInput {
	return api.CategoryInput{
		Name:             c.Name,
		AllowsImages:     c.AllowsImages,
		AllowsVideos:     c.AllowsVideos,
		AllowsTexts:      c.AllowsTexts,
		ExistingImageURL: c.CoverImageURL,
	}
}

func ThemeInputFrom(t models.Theme) api.ThemeInput {
	return api.ThemeInput{Name: t.Name, Permissions: t.Permissions}
}
