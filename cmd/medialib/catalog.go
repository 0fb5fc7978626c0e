package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"medialib/client/internal/app"
	"medialib/client/internal/catalog"
	"medialib/client/internal/export"
)

func catalogCommand() *cli.Command {
	return &cli.Command{
		Name:  "catalog",
		Usage: "Browse categories, themes and contents",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "case-insensitive filter"},
			&cli.IntFlag{Name: "page", Value: 1, Usage: "contents page, starting at 1"},
			&cli.IntFlag{Name: "per-page", Value: catalog.DefaultRowsPerPage, Usage: "10, 50 or 100"},
			jsonFlag(),
		},
		Action: withApp(func(ctx context.Context, c *cli.Command, a *app.App) error {
			page, err := a.Browse(ctx, c.String("query"))
			if err != nil && a.Catalog.Snapshot().FetchedAt.IsZero() {
				return err
			}
			if c.Bool("json") {
				return printJSON(page)
			}
			printPage(page, int(c.Int("page"))-1, int(c.Int("per-page")))
			return nil
		}),
	}
}

func suggestCommand() *cli.Command {
	return &cli.Command{
		Name:  "suggest",
		Usage: "List every searchable label",
		Flags: []cli.Flag{jsonFlag()},
		Action: withApp(func(ctx context.Context, c *cli.Command, a *app.App) error {
			snap, err := a.Catalog.Refresh(ctx)
			if err != nil && snap.FetchedAt.IsZero() {
				return err
			}
			suggestions := catalog.Suggestions(snap)
			if c.Bool("json") {
				return printJSON(suggestions)
			}
			rows := make([][]string, 0, len(suggestions))
			for _, s := range suggestions {
				rows = append(rows, []string{string(s.Kind), s.ID, s.Label})
			}
			printTable([]string{"TYPE", "ID", "LABEL"}, rows)
			return nil
		}),
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write the visible catalog to an HTML or PDF file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Value: string(export.FormatHTML), Usage: "html or pdf"},
			&cli.StringFlag{Name: "title"},
			&cli.StringFlag{Name: "query", Aliases: []string{"q"}},
			&cli.StringFlag{Name: "out", Usage: "output path, defaults to a name derived from the title"},
		},
		Action: withApp(func(ctx context.Context, c *cli.Command, a *app.App) error {
			format, err := export.ParseFormat(c.String("format"))
			if err != nil {
				return err
			}
			res, err := a.Export(ctx, c.String("query"), export.Request{Title: c.String("title"), Format: format})
			if err != nil {
				return err
			}
			out := c.String("out")
			if out == "" {
				out = res.Filename
			}
			if err := os.WriteFile(out, res.Data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Printf("wrote %s (%d bytes)\n", out, len(res.Data))
			return nil
		}),
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Full-text search through the Meilisearch mirror",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Required: true},
			&cli.IntFlag{Name: "limit", Value: 20},
			jsonFlag(),
		},
		Action: withApp(func(ctx context.Context, c *cli.Command, a *app.App) error {
			hits, err := a.SearchRemote(ctx, c.String("query"), int(c.Int("limit")))
			if errors.Is(err, catalog.ErrMirrorUnavailable) {
				return fmt.Errorf("%w: set MEILI_URL or use `medialib catalog --query`", err)
			}
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return printJSON(hits)
			}
			rows := make([][]string, 0, len(hits))
			for _, h := range hits {
				rows = append(rows, []string{string(h.Kind), h.ID, h.Label, h.Snippet})
			}
			printTable([]string{"TYPE", "ID", "LABEL", "MATCH"}, rows)
			return nil
		}),
	}
}
