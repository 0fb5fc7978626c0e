package workflow

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"medialib/client/internal/api"
	"medialib/client/internal/apitest"
	"medialib/client/internal/catalog"
	"medialib/client/internal/models"
	"medialib/client/internal/notify"
)

type countingRefresher struct {
	inner *catalog.Aggregator
	calls int
}

func (r *countingRefresher) Refresh(ctx context.Context) (catalog.Snapshot, error) {
	r.calls++
	return r.inner.Refresh(ctx)
}

type harness struct {
	srv        *apitest.Server
	refresh    *countingRefresher
	notes      *notify.Recorder
	categories *CategoryController
	themes     *ThemeController
	contents   *ContentController
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	srv := apitest.New(t)
	token := srv.Token("ada", "ada@example.com", time.Hour, "admin")
	client := api.NewClient(srv.URL, api.WithTokenSource(staticToken(token)))

	categories := api.NewCategories(client)
	themes := api.NewThemes(client)
	contents := api.NewContents(client)

	h := &harness{
		srv:     srv,
		refresh: &countingRefresher{inner: catalog.NewAggregator(categories, themes, contents)},
		notes:   &notify.Recorder{},
	}
	h.categories = NewController(Categories(categories), h.refresh, h.notes)
	h.themes = NewController(Themes(themes), h.refresh, h.notes)
	h.contents = NewController(Contents(contents, themes, categories), h.refresh, h.notes)
	return h
}

type staticToken string

func (s staticToken) Token(context.Context) string { return string(s) }

func TestTransitions(t *testing.T) {
	h := newHarness(t)
	theme := models.Theme{ID: "t1", Name: "Nature"}

	if h.themes.Mode() != ModeClosed {
		t.Fatalf("initial mode = %s", h.themes.Mode())
	}

	h.themes.OpenView(theme)
	if mode, target := h.themes.State(); mode != ModeViewing || target.ID != "t1" {
		t.Fatalf("after OpenView: %s %+v", mode, target)
	}
	h.themes.OpenEdit(theme)
	if h.themes.Mode() != ModeEditing {
		t.Fatalf("OpenEdit from viewing: %s", h.themes.Mode())
	}
	h.themes.OpenCreate()
	if mode, target := h.themes.State(); mode != ModeCreating || target.ID != "" {
		t.Fatalf("after OpenCreate: %s %+v", mode, target)
	}
	h.themes.OpenDelete(theme)
	h.themes.Close()
	if mode, target := h.themes.State(); mode != ModeClosed || target.ID != "" {
		t.Fatalf("after Close: %s %+v", mode, target)
	}
}

func TestActionsOutsideTheirStateAreRejected(t *testing.T) {
	h := newHarness(t)

	if _, err := h.themes.Submit(context.Background(), api.ThemeInput{Name: "x", Permissions: models.Permissions{Texts: true}}); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("Submit() while closed error = %v", err)
	}
	h.themes.OpenView(models.Theme{ID: "t1"})
	if err := h.themes.ConfirmDelete(context.Background()); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("ConfirmDelete() while viewing error = %v", err)
	}
	if len(h.srv.Calls()) != 0 || len(h.notes.Entries()) != 0 {
		t.Fatal("rejected actions must have no side effects")
	}
}

func TestThemeWithoutPermissionsRejectedBeforeNetwork(t *testing.T) {
	h := newHarness(t)
	h.themes.OpenCreate()

	_, err := h.themes.Submit(context.Background(), api.ThemeInput{Name: "Empty"})
	var werr *Error
	if !errors.As(err, &werr) || werr.Kind != KindValidation || werr.Message != "You have to select at least one." {
		t.Fatalf("Submit() error = %v", err)
	}
	if len(h.srv.Calls()) != 0 {
		t.Fatalf("validation failure reached the server: %+v", h.srv.Calls())
	}
	if h.themes.Mode() != ModeCreating {
		t.Fatalf("mode = %s, want creating", h.themes.Mode())
	}
	if last, _ := h.notes.Last(); last.Level != notify.LevelError || last.Message != werr.Message {
		t.Fatalf("last notification = %+v", last)
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "category without name", err: ValidateCategory(api.CategoryInput{Name: "  ", AllowsImages: true}), want: MsgMissingFields},
		{name: "category ok", err: ValidateCategory(api.CategoryInput{Name: "Photos"})},
		{name: "theme without name", err: ValidateTheme(api.ThemeInput{Permissions: models.Permissions{Images: true}}), want: MsgMissingFields},
		{name: "theme ok", err: ValidateTheme(api.ThemeInput{Name: "Nature", Permissions: models.Permissions{Texts: true}})},
		{name: "content without title", err: ValidateContent(api.ContentInput{Type: models.ContentText, Theme: "t", Category: "c", Text: "x"}), want: MsgMissingFields},
		{name: "content without type", err: ValidateContent(api.ContentInput{Title: "a", Theme: "t", Category: "c"}), want: MsgMissingFields},
		{name: "content without category", err: ValidateContent(api.ContentInput{Title: "a", Type: models.ContentText, Theme: "t", Text: "x"}), want: MsgMissingFields},
		{name: "text without body", err: ValidateContent(api.ContentInput{Title: "a", Type: models.ContentText, Theme: "t", Category: "c"}), want: MsgMissingFields},
		{name: "video without url", err: ValidateContent(api.ContentInput{Title: "a", Type: models.ContentVideo, Theme: "t", Category: "c"}), want: MsgMissingFields},
		{name: "image without file or reference", err: ValidateContent(api.ContentInput{Title: "a", Type: models.ContentImage, Theme: "t", Category: "c"}), want: MsgImageRequired},
		{name: "image with reference", err: ValidateContent(api.ContentInput{Title: "a", Type: models.ContentImage, Theme: "t", Category: "c", Image: "/uploads/a.png"})},
		{name: "image with file", err: ValidateContent(api.ContentInput{Title: "a", Type: models.ContentImage, Theme: "t", Category: "c", File: &api.Upload{Filename: "a.png", Body: strings.NewReader("x")}})},
		{name: "unknown type", err: ValidateContent(api.ContentInput{Title: "a", Type: "audio", Theme: "t", Category: "c"}), want: MsgInvalidType},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.want == "" {
				if tc.err != nil {
					t.Fatalf("unexpected error: %v", tc.err)
				}
				return
			}
			var werr *Error
			if !errors.As(tc.err, &werr) || werr.Message != tc.want || werr.Kind != KindValidation {
				t.Fatalf("error = %v, want validation %q", tc.err, tc.want)
			}
		})
	}

	if MsgImageRequired == MsgMissingFields {
		t.Fatal("image message must differ from the generic one")
	}
}

func TestImageWithoutFileRejectedBeforeNetwork(t *testing.T) {
	h := newHarness(t)
	theme := h.srv.AddTheme(models.Theme{Name: "Pics", Permissions: models.Permissions{Images: true}})
	cat := h.srv.AddCategory(models.Category{Name: "Misc"})
	h.contents.OpenCreate()

	_, err := h.contents.Submit(context.Background(), api.ContentInput{Title: "Photo", Type: models.ContentImage, Theme: theme.ID, Category: cat.ID})
	var werr *Error
	if !errors.As(err, &werr) || werr.Message != MsgImageRequired {
		t.Fatalf("Submit() error = %v", err)
	}
	if len(h.srv.Calls()) != 0 {
		t.Fatalf("unexpected calls: %+v", h.srv.Calls())
	}
}

func TestContentTypeDisallowedByTheme(t *testing.T) {
	h := newHarness(t)
	theme := h.srv.AddTheme(models.Theme{Name: "Reading", Permissions: models.Permissions{Images: true, Texts: true}})
	cat := h.srv.AddCategory(models.Category{Name: "Misc"})
	h.contents.OpenCreate()

	_, err := h.contents.Submit(context.Background(), api.ContentInput{
		Title: "Clip", Type: models.ContentVideo, URL: "https://youtu.be/x", Theme: theme.ID, Category: cat.ID,
	})
	var werr *Error
	if !errors.As(err, &werr) || werr.Kind != KindRule || werr.Message != "Theme does not allow video content" {
		t.Fatalf("Submit() error = %v", err)
	}
	if n := h.srv.CountCalls(http.MethodPost, "/contents"); n != 0 {
		t.Fatalf("POST /contents called %d times", n)
	}
	calls := h.srv.Calls()
	if len(calls) != 2 || calls[0].Path != "/themes/"+theme.ID || calls[1].Path != "/categories/"+cat.ID {
		t.Fatalf("guard must look up theme then category: %+v", calls)
	}
	if h.refresh.calls != 0 || h.contents.Mode() != ModeCreating {
		t.Fatal("rejected submission must not refresh or close")
	}
}

func TestContentGuardStaleReferences(t *testing.T) {
	h := newHarness(t)
	theme := h.srv.AddTheme(models.Theme{Name: "Any", Permissions: models.Permissions{Texts: true}})
	in := api.ContentInput{Title: "Essay", Type: models.ContentText, Text: "words", Theme: "gone", Category: "gone"}
	h.contents.OpenCreate()

	_, err := h.contents.Submit(context.Background(), in)
	if err == nil || err.Error() != MsgThemeNotFound {
		t.Fatalf("Submit() error = %v, want %q", err, MsgThemeNotFound)
	}

	in.Theme = theme.ID
	_, err = h.contents.Submit(context.Background(), in)
	if err == nil || err.Error() != MsgCategoryNotFound {
		t.Fatalf("Submit() error = %v, want %q", err, MsgCategoryNotFound)
	}
}

func TestSuccessfulMutationsRefreshOnceAndClose(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	theme := h.srv.AddTheme(models.Theme{Name: "Nature", Permissions: models.Permissions{Texts: true}})
	cat := h.srv.AddCategory(models.Category{Name: "Essays"})

	steps := []struct {
		name    string
		run     func() error
		mode    func() Mode
		message string
	}{
		{
			name: "create category",
			run: func() error {
				h.categories.OpenCreate()
				_, err := h.categories.Submit(ctx, api.CategoryInput{Name: "Photos", AllowsImages: true})
				return err
			},
			mode:    h.categories.Mode,
			message: "Category created successfully",
		},
		{
			name: "update theme",
			run: func() error {
				h.themes.OpenEdit(theme)
				_, err := h.themes.Submit(ctx, api.ThemeInput{Name: "Nature", Permissions: models.Permissions{Texts: true, Videos: true}})
				return err
			},
			mode:    h.themes.Mode,
			message: "Theme updated successfully",
		},
		{
			name: "create content",
			run: func() error {
				h.contents.OpenCreate()
				_, err := h.contents.Submit(ctx, api.ContentInput{Title: "Clip", Type: models.ContentVideo, URL: "https://youtu.be/abc", Theme: theme.ID, Category: cat.ID})
				return err
			},
			mode:    h.contents.Mode,
			message: "Content created successfully",
		},
		{
			name: "delete category",
			run: func() error {
				extra := h.srv.AddCategory(models.Category{Name: "Unused"})
				h.categories.OpenDelete(extra)
				return h.categories.ConfirmDelete(ctx)
			},
			mode:    h.categories.Mode,
			message: "Deleted category successfully",
		},
	}

	for _, step := range steps {
		t.Run(step.name, func(t *testing.T) {
			before := h.refresh.calls
			successes := h.notes.Count(notify.LevelSuccess)

			if err := step.run(); err != nil {
				t.Fatalf("error = %v", err)
			}
			if got := h.refresh.calls - before; got != 1 {
				t.Fatalf("refresh called %d times, want 1", got)
			}
			if got := h.notes.Count(notify.LevelSuccess) - successes; got != 1 {
				t.Fatalf("%d success notifications, want 1", got)
			}
			if last, _ := h.notes.Last(); last.Message != step.message {
				t.Fatalf("notification = %q, want %q", last.Message, step.message)
			}
			if step.mode() != ModeClosed {
				t.Fatalf("mode = %s, want closed", step.mode())
			}
		})
	}

	if snap := h.refresh.inner.Snapshot(); len(snap.Contents) != 1 || len(snap.Categories) != 2 {
		t.Fatalf("catalog not refreshed: %d contents, %d categories", len(snap.Contents), len(snap.Categories))
	}
}

func TestUpdateTargetsEditedEntity(t *testing.T) {
	h := newHarness(t)
	cat := h.srv.AddCategory(models.Category{Name: "Old", CoverImageURL: "/uploads/c.png"})

	h.categories.OpenEdit(cat)
	in := CategoryInputFrom(cat)
	in.Name = "New"
	saved, err := h.categories.Submit(context.Background(), in)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if saved.ID != cat.ID || saved.Name != "New" || saved.CoverImageURL != "/uploads/c.png" {
		t.Fatalf("saved = %+v", saved)
	}
	if h.srv.CountCalls(http.MethodPut, "/categories/"+cat.ID) != 1 {
		t.Fatal("expected PUT to the edited category")
	}
}

func TestServerRejectionKeepsState(t *testing.T) {
	h := newHarness(t)
	h.srv.AddCategory(models.Category{Name: "Photos"})
	h.categories.OpenCreate()

	_, err := h.categories.Submit(context.Background(), api.CategoryInput{Name: "Photos"})
	var werr *Error
	if !errors.As(err, &werr) || werr.Kind != KindRule || werr.Message != "Category name already exists" {
		t.Fatalf("Submit() error = %v", err)
	}
	if h.categories.Mode() != ModeCreating || h.refresh.calls != 0 {
		t.Fatal("failure must leave the form open without refreshing")
	}
}

func TestDeleteFailures(t *testing.T) {
	h := newHarness(t)
	theme := h.srv.AddTheme(models.Theme{Name: "Used", Permissions: models.Permissions{Texts: true}})
	cat := h.srv.AddCategory(models.Category{Name: "Misc"})
	h.srv.AddContent(models.Content{Title: "Essay", Type: models.ContentText, Text: "x", Theme: models.Ref{ID: theme.ID}, Category: models.Ref{ID: cat.ID}})

	h.themes.OpenDelete(theme)
	err := h.themes.ConfirmDelete(context.Background())
	if err == nil {
		t.Fatal("expected server rejection")
	}
	if h.themes.Mode() != ModeDeleting {
		t.Fatalf("mode = %s, want deleting", h.themes.Mode())
	}

	h.srv.Break(http.MethodDelete, "/themes/"+theme.ID)
	err = h.themes.ConfirmDelete(context.Background())
	var werr *Error
	if !errors.As(err, &werr) || werr.Kind != KindTransport || werr.Message != "Failed to delete theme" {
		t.Fatalf("ConfirmDelete() error = %v", err)
	}
	if h.refresh.calls != 0 || h.notes.Count(notify.LevelError) != 2 {
		t.Fatal("failed deletes must only notify")
	}
}

func TestTransportFailureOnSave(t *testing.T) {
	h := newHarness(t)
	h.srv.Break(http.MethodPost, "/themes")
	h.themes.OpenCreate()

	_, err := h.themes.Submit(context.Background(), api.ThemeInput{Name: "Nature", Permissions: models.Permissions{Images: true}})
	var werr *Error
	if !errors.As(err, &werr) || werr.Kind != KindTransport || werr.Message != "Failed to save theme" {
		t.Fatalf("Submit() error = %v", err)
	}
}
