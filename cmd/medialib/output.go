package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"medialib/client/internal/catalog"
	"medialib/client/internal/models"
	"medialib/client/internal/rbac"
	"medialib/client/internal/session"
	"medialib/client/internal/view"
)

const emptyNotice = "No data available, coming soon!"

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func printKV(rows [][2]string) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, row := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", row[0], row[1])
	}
	_ = w.Flush()
}

func printTable(headers []string, rows [][]string) {
	if len(rows) == 0 {
		fmt.Println(emptyNotice)
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, strings.Join(headers, "\t"))
	for _, row := range rows {
		_, _ = fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	_ = w.Flush()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func formatTypes(types []models.ContentType) string {
	if len(types) == 0 {
		return "-"
	}
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = string(t)
	}
	return strings.Join(parts, ",")
}

func formatActions(a view.Actions) string {
	var parts []string
	if a.Edit {
		parts = append(parts, "edit")
	}
	if a.Delete {
		parts = append(parts, "delete")
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ",")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func printSession(s session.Session, ok bool, caps rbac.Capabilities) {
	if !ok {
		fmt.Println("not logged in")
		return
	}
	roles := make([]string, len(s.Roles))
	for i, r := range s.Roles {
		roles[i] = string(r)
	}
	printKV([][2]string{
		{"username", s.Username},
		{"email", s.Email},
		{"roles", orDash(strings.Join(roles, ","))},
		{"expires", formatTime(s.ExpiresAt)},
		{"can create", strconv.FormatBool(caps.CanCreate)},
		{"can edit", strconv.FormatBool(caps.CanEdit)},
		{"can delete", strconv.FormatBool(caps.CanDelete)},
	})
}

func printCategories(cards []view.CategoryCard) {
	rows := make([][]string, 0, len(cards))
	for _, c := range cards {
		rows = append(rows, []string{c.ID, c.Name, formatTypes(c.Allows), formatTime(c.UpdatedAt), formatActions(c.Actions)})
	}
	printTable([]string{"ID", "NAME", "ALLOWS", "UPDATED", "ACTIONS"}, rows)
}

func printCategory(c view.CategoryCard) {
	printKV([][2]string{
		{"id", c.ID},
		{"name", c.Name},
		{"allows", formatTypes(c.Allows)},
		{"cover", orDash(c.CoverImage)},
		{"updated", formatTime(c.UpdatedAt)},
	})
}

func printThemes(cards []view.ThemeCard) {
	rows := make([][]string, 0, len(cards))
	for _, t := range cards {
		rows = append(rows, []string{t.ID, t.Name, formatTypes(t.Allows), formatTime(t.UpdatedAt), formatActions(t.Actions)})
	}
	printTable([]string{"ID", "NAME", "ACCEPTS", "UPDATED", "ACTIONS"}, rows)
}

func printTheme(t view.ThemeCard) {
	printKV([][2]string{
		{"id", t.ID},
		{"name", t.Name},
		{"accepts", formatTypes(t.Allows)},
		{"updated", formatTime(t.UpdatedAt)},
	})
}

func printContents(cards []view.ContentCard) {
	rows := make([][]string, 0, len(cards))
	for _, c := range cards {
		rows = append(rows, []string{c.ID, c.Title, string(c.Type), orDash(c.Theme), orDash(c.Category), formatTime(c.UpdatedAt), formatActions(c.Actions)})
	}
	printTable([]string{"ID", "TITLE", "TYPE", "THEME", "CATEGORY", "UPDATED", "ACTIONS"}, rows)
}

func printContent(c view.ContentCard) {
	rows := [][2]string{
		{"id", c.ID},
		{"title", c.Title},
		{"type", string(c.Type)},
		{"theme", orDash(c.Theme)},
		{"category", orDash(c.Category)},
		{"updated", formatTime(c.UpdatedAt)},
	}
	switch c.Type {
	case models.ContentText:
		rows = append(rows, [2]string{"text", c.Text})
	case models.ContentImage:
		rows = append(rows, [2]string{"image", orDash(c.Image)})
	case models.ContentVideo:
		rows = append(rows, [2]string{"video", orDash(c.VideoURL)})
		if c.Embed != "" {
			rows = append(rows, [2]string{"embed", c.Embed})
		}
	}
	printKV(rows)
}

func contentCards(b view.Builder, items []models.Content) []view.ContentCard {
	cards := make([]view.ContentCard, 0, len(items))
	for _, c := range items {
		cards = append(cards, b.Content(c))
	}
	return cards
}

// printPage prints the three sections; contents are paged.
func printPage(p view.Page, index, perPage int) {
	if p.Query != "" {
		fmt.Printf("results for %q\n\n", p.Query)
	}
	fmt.Println("CATEGORIES")
	printCategories(p.Categories)
	fmt.Println()
	fmt.Println("THEMES")
	printThemes(p.Themes)
	fmt.Println()

	page := catalog.Paginate(p.Contents, index, perPage)
	fmt.Println("CONTENTS")
	printContents(page.Items)
	if page.Total > 0 {
		first := page.Index*page.PerPage + 1
		last := first + len(page.Items) - 1
		fmt.Printf("\n%d-%d of %d, page %d/%d\n", first, last, page.Total, page.Index+1, page.TotalPages)
	}
}
