package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"medialib/client/internal/app"
	"medialib/client/internal/catalog"
	"medialib/client/internal/models"
)

func idFlag() cli.Flag {
	return &cli.StringFlag{Name: "id", Required: true}
}

// optString and optBool return nil for flags left off the command line.
func optString(c *cli.Command, name string) *string {
	if !c.IsSet(name) {
		return nil
	}
	v := c.String(name)
	return &v
}

func optBool(c *cli.Command, name string) *bool {
	if !c.IsSet(name) {
		return nil
	}
	v := c.Bool(name)
	return &v
}

func categoryFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "name"},
		&cli.BoolFlag{Name: "images", Usage: "allow image contents"},
		&cli.BoolFlag{Name: "videos", Usage: "allow video contents"},
		&cli.BoolFlag{Name: "texts", Usage: "allow text contents"},
		&cli.StringFlag{Name: "cover", Usage: "cover image, local path or s3://bucket/key"},
		jsonFlag(),
	}
}

func categoryFields(c *cli.Command) app.CategoryFields {
	return app.CategoryFields{
		Name:         optString(c, "name"),
		AllowsImages: optBool(c, "images"),
		AllowsVideos: optBool(c, "videos"),
		AllowsTexts:  optBool(c, "texts"),
		Cover:        c.String("cover"),
	}
}

func categoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "category",
		Usage: "Manage categories",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Flags: []cli.Flag{jsonFlag()},
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app.App) error {
					page, err := a.Browse(ctx, "")
					if err != nil && a.Catalog.Snapshot().FetchedAt.IsZero() {
						return err
					}
					if c.Bool("json") {
						return printJSON(page.Categories)
					}
					printCategories(page.Categories)
					return nil
				}),
			},
			{
				Name:  "show",
				Usage: "Show a category and the contents filed under it",
				Flags: []cli.Flag{idFlag(), jsonFlag()},
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app.App) error {
					snap, err := a.Catalog.Refresh(ctx)
					if err != nil && snap.FetchedAt.IsZero() {
						return err
					}
					category, ok := catalog.CategoryByID(snap, c.String("id"))
					if !ok {
						if category, err = a.Category(ctx, c.String("id")); err != nil {
							return err
						}
					}
					b := a.Builder(ctx)
					card := b.Category(category)
					contents := catalog.ContentsInCategory(snap, category.ID)
					if c.Bool("json") {
						return printJSON(map[string]any{"category": card, "contents": contentCards(b, contents)})
					}
					printCategory(card)
					fmt.Println()
					printContents(contentCards(b, contents))
					return nil
				}),
			},
			{
				Name:  "create",
				Flags: categoryFlags(),
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app.App) error {
					saved, err := a.CreateCategory(ctx, categoryFields(c))
					if err != nil {
						return err
					}
					return showSaved(c, a.Builder(ctx).Category(saved), printCategory)
				}),
			},
			{
				Name:  "update",
				Flags: append([]cli.Flag{idFlag()}, categoryFlags()...),
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app.App) error {
					saved, err := a.UpdateCategory(ctx, c.String("id"), categoryFields(c))
					if err != nil {
						return err
					}
					return showSaved(c, a.Builder(ctx).Category(saved), printCategory)
				}),
			},
			{
				Name:  "delete",
				Flags: []cli.Flag{idFlag()},
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app.App) error {
					return a.DeleteCategory(ctx, c.String("id"))
				}),
			},
		},
	}
}

func themeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "name"},
		&cli.BoolFlag{Name: "images", Usage: "accept image contents"},
		&cli.BoolFlag{Name: "videos", Usage: "accept video contents"},
		&cli.BoolFlag{Name: "texts", Usage: "accept text contents"},
		jsonFlag(),
	}
}

func themeFields(c *cli.Command) app.ThemeFields {
	return app.ThemeFields{
		Name:   optString(c, "name"),
		Images: optBool(c, "images"),
		Videos: optBool(c, "videos"),
		Texts:  optBool(c, "texts"),
	}
}

func themeCommand() *cli.Command {
	return &cli.Command{
		Name:  "theme",
		Usage: "Manage themes",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Flags: []cli.Flag{jsonFlag()},
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app.App) error {
					page, err := a.Browse(ctx, "")
					if err != nil && a.Catalog.Snapshot().FetchedAt.IsZero() {
						return err
					}
					if c.Bool("json") {
						return printJSON(page.Themes)
					}
					printThemes(page.Themes)
					return nil
				}),
			},
			{
				Name:  "show",
				Usage: "Show a theme and its contents",
				Flags: []cli.Flag{idFlag(), jsonFlag()},
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app.App) error {
					snap, err := a.Catalog.Refresh(ctx)
					if err != nil && snap.FetchedAt.IsZero() {
						return err
					}
					theme, ok := catalog.ThemeByID(snap, c.String("id"))
					if !ok {
						if theme, err = a.Theme(ctx, c.String("id")); err != nil {
							return err
						}
					}
					b := a.Builder(ctx)
					card := b.Theme(theme)
					contents := catalog.ContentsInTheme(snap, theme.ID)
					if c.Bool("json") {
						return printJSON(map[string]any{"theme": card, "contents": contentCards(b, contents)})
					}
					printTheme(card)
					fmt.Println()
					printContents(contentCards(b, contents))
					return nil
				}),
			},
			{
				Name:  "create",
				Flags: themeFlags(),
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app.App) error {
					saved, err := a.CreateTheme(ctx, themeFields(c))
					if err != nil {
						return err
					}
					return showSaved(c, a.Builder(ctx).Theme(saved), printTheme)
				}),
			},
			{
				Name:  "update",
				Flags: append([]cli.Flag{idFlag()}, themeFlags()...),
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app.App) error {
					saved, err := a.UpdateTheme(ctx, c.String("id"), themeFields(c))
					if err != nil {
						return err
					}
					return showSaved(c, a.Builder(ctx).Theme(saved), printTheme)
				}),
			},
			{
				Name:  "delete",
				Flags: []cli.Flag{idFlag()},
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app.App) error {
					return a.DeleteTheme(ctx, c.String("id"))
				}),
			},
		},
	}
}

func contentFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "title"},
		&cli.StringFlag{Name: "type", Usage: "image, video or text; must be allowed by the theme"},
		&cli.StringFlag{Name: "theme", Usage: "theme id; changing it requires --type"},
		&cli.StringFlag{Name: "category", Usage: "category id"},
		&cli.StringFlag{Name: "text", Usage: "body of a text content"},
		&cli.StringFlag{Name: "url", Usage: "link of a video content"},
		&cli.StringFlag{Name: "file", Usage: "image file, local path or s3://bucket/key"},
		jsonFlag(),
	}
}

func contentFields(c *cli.Command) app.ContentFields {
	return app.ContentFields{
		Title:    optString(c, "title"),
		Type:     models.ContentType(strings.ToLower(strings.TrimSpace(c.String("type")))),
		Theme:    c.String("theme"),
		Category: optString(c, "category"),
		Text:     optString(c, "text"),
		URL:      optString(c, "url"),
		File:     c.String("file"),
	}
}

func contentCommand() *cli.Command {
	return &cli.Command{
		Name:  "content",
		Usage: "Manage contents",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Flags: []cli.Flag{jsonFlag()},
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app.App) error {
					page, err := a.Browse(ctx, "")
					if err != nil && a.Catalog.Snapshot().FetchedAt.IsZero() {
						return err
					}
					if c.Bool("json") {
						return printJSON(page.Contents)
					}
					printContents(page.Contents)
					return nil
				}),
			},
			{
				Name:  "show",
				Flags: []cli.Flag{idFlag(), jsonFlag()},
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app.App) error {
					content, err := a.Content(ctx, c.String("id"))
					if err != nil {
						return err
					}
					return showSaved(c, a.Builder(ctx).Content(content), printContent)
				}),
			},
			{
				Name:  "types",
				Usage: "List the content types a theme accepts",
				Flags: []cli.Flag{&cli.StringFlag{Name: "theme", Required: true}},
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app.App) error {
					types, err := a.ContentTypes(ctx, c.String("theme"))
					if err != nil {
						return err
					}
					if len(types) == 0 {
						fmt.Println("theme accepts no content")
					}
					for _, t := range types {
						fmt.Println(t)
					}
					return nil
				}),
			},
			{
				Name:  "create",
				Flags: contentFlags(),
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app.App) error {
					saved, err := a.CreateContent(ctx, contentFields(c))
					if err != nil {
						return err
					}
					return showSaved(c, a.Builder(ctx).Content(saved), printContent)
				}),
			},
			{
				Name:  "update",
				Flags: append([]cli.Flag{idFlag()}, contentFlags()...),
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app.App) error {
					saved, err := a.UpdateContent(ctx, c.String("id"), contentFields(c))
					if err != nil {
						return err
					}
					return showSaved(c, a.Builder(ctx).Content(saved), printContent)
				}),
			},
			{
				Name:  "delete",
				Flags: []cli.Flag{idFlag()},
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app.App) error {
					return a.DeleteContent(ctx, c.String("id"))
				}),
			},
		},
	}
}

func showSaved[T any](c *cli.Command, card T, render func(T)) error {
	if c.Bool("json") {
		return printJSON(card)
	}
	render(card)
	return nil
}
