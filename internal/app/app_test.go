package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"medialib/client/internal/apitest"
	"medialib/client/internal/config"
	"medialib/client/internal/export"
	"medialib/client/internal/models"
	"medialib/client/internal/notify"
	"medialib/client/internal/rbac"
	"medialib/client/internal/session"
	"medialib/client/internal/workflow"
)

func newTestApp(t *testing.T) (*App, *apitest.Server, *notify.Recorder) {
	t.Helper()
	srv := apitest.New(t)
	notes := &notify.Recorder{}
	a, err := NewWithStore(config.Config{APIURL: srv.URL, HTTPTimeout: 5 * time.Second}, &session.MemoryStore{}, notes)
	if err != nil {
		t.Fatalf("NewWithStore() error = %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a, srv, notes
}

func seed(srv *apitest.Server) {
	srv.AddCategory(models.Category{ID: "cat-1", Name: "Landscapes", AllowsImages: true, AllowsTexts: true, CoverImageURL: "/uploads/land.png"})
	srv.AddTheme(models.Theme{ID: "theme-1", Name: "Nature", Permissions: models.Permissions{Images: true, Texts: true}})
	srv.AddContent(models.Content{ID: "content-1", Title: "Forest", Type: models.ContentImage, Theme: models.Ref{ID: "theme-1"}, Category: models.Ref{ID: "cat-1"}, Image: "/uploads/forest.png"})
	srv.AddContent(models.Content{ID: "content-2", Title: "River notes", Type: models.ContentText, Theme: models.Ref{ID: "theme-1"}, Category: models.Ref{ID: "cat-1"}, Text: "Flows north"})
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestCapabilitiesFollowTheSession(t *testing.T) {
	a, srv, _ := newTestApp(t)
	seed(srv)
	ctx := context.Background()
	srv.AddUser("rita", "rita@example.com", "pw", "reader")
	srv.AddUser("ada", "ada@example.com", "pw", "admin")

	anon, err := a.Browse(ctx, "")
	if err != nil {
		t.Fatalf("Browse() error = %v", err)
	}
	if anon.Capabilities != (rbac.Capabilities{}) {
		t.Fatalf("anonymous capabilities = %+v", anon.Capabilities)
	}
	for _, c := range anon.Contents {
		if c.Image != "" {
			t.Fatalf("anonymous page shows media: %+v", c)
		}
	}

	if _, err := a.Login(ctx, "rita@example.com", "pw"); err != nil {
		t.Fatalf("Login(reader) error = %v", err)
	}
	reader, _ := a.Browse(ctx, "")
	if reader.Capabilities.CanCreate || reader.Capabilities.CanEdit || reader.Capabilities.CanDelete || !reader.Capabilities.CanViewMediaPayload {
		t.Fatalf("reader capabilities = %+v", reader.Capabilities)
	}
	if reader.Contents[0].Actions.Edit {
		t.Fatal("reader must not get edit actions")
	}

	if err := a.Logout(ctx); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if _, err := a.Login(ctx, "ada@example.com", "pw"); err != nil {
		t.Fatalf("Login(admin) error = %v", err)
	}
	admin, _ := a.Browse(ctx, "")
	want := rbac.Capabilities{CanCreate: true, CanEdit: true, CanDelete: true, CanViewMediaPayload: true}
	if admin.Capabilities != want {
		t.Fatalf("admin capabilities = %+v", admin.Capabilities)
	}
	var forest bool
	for _, c := range admin.Contents {
		if c.ID == "content-1" {
			forest = strings.HasSuffix(c.Image, "/uploads/forest.png")
		}
	}
	if !forest {
		t.Fatal("admin page should show the image url")
	}
}

func TestForbiddenActionsSkipTheNetwork(t *testing.T) {
	a, srv, notes := newTestApp(t)
	seed(srv)
	srv.AddUser("rita", "rita@example.com", "pw", "reader")
	ctx := context.Background()
	if _, err := a.Login(ctx, "rita@example.com", "pw"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	srv.ResetCalls()

	_, err := a.CreateTheme(ctx, ThemeFields{Name: strPtr("Sky"), Images: boolPtr(true)})
	var derr *DomainError
	if !errors.As(err, &derr) || derr.Status != http.StatusForbidden || derr.Code != "FORBIDDEN" {
		t.Fatalf("CreateTheme() error = %v, want forbidden", err)
	}
	if err := a.DeleteCategory(ctx, "cat-1"); !errors.As(err, &derr) {
		t.Fatalf("DeleteCategory() error = %v, want forbidden", err)
	}
	if n := len(srv.Calls()); n != 0 {
		t.Fatalf("forbidden actions made %d requests", n)
	}
	if last, _ := notes.Last(); last.Level != notify.LevelError || last.Message != "You are not allowed to delete categories" {
		t.Fatalf("last notification = %+v", last)
	}
}

func TestThemeLifecycle(t *testing.T) {
	a, srv, notes := newTestApp(t)
	srv.AddUser("ada", "ada@example.com", "pw", "admin")
	ctx := context.Background()
	if _, err := a.Login(ctx, "ada@example.com", "pw"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	_, err := a.CreateTheme(ctx, ThemeFields{Name: strPtr("Sky")})
	var werr *workflow.Error
	if !errors.As(err, &werr) || werr.Message != workflow.MsgNoPermission {
		t.Fatalf("CreateTheme(no permission) error = %v", err)
	}

	theme, err := a.CreateTheme(ctx, ThemeFields{Name: strPtr("Sky"), Videos: boolPtr(true)})
	if err != nil {
		t.Fatalf("CreateTheme() error = %v", err)
	}
	if last, _ := notes.Last(); last.Message != "Theme created successfully" {
		t.Fatalf("last notification = %+v", last)
	}
	if got := a.Catalog.Snapshot().Themes; len(got) != 1 || got[0].ID != theme.ID {
		t.Fatalf("catalog not refreshed after create: %+v", got)
	}

	updated, err := a.UpdateTheme(ctx, theme.ID, ThemeFields{Texts: boolPtr(true)})
	if err != nil {
		t.Fatalf("UpdateTheme() error = %v", err)
	}
	if updated.Name != "Sky" || !updated.Permissions.Videos || !updated.Permissions.Texts {
		t.Fatalf("update should keep unset fields: %+v", updated)
	}

	if err := a.DeleteTheme(ctx, theme.ID); err != nil {
		t.Fatalf("DeleteTheme() error = %v", err)
	}
	if last, _ := notes.Last(); last.Message != "Deleted theme successfully" {
		t.Fatalf("last notification = %+v", last)
	}
	if a.ThemeFlow.Mode() != workflow.ModeClosed {
		t.Fatalf("theme flow left in %s", a.ThemeFlow.Mode())
	}
}

func TestDeleteMissingEntity(t *testing.T) {
	a, srv, notes := newTestApp(t)
	srv.AddUser("ada", "ada@example.com", "pw", "admin")
	ctx := context.Background()
	_, _ = a.Login(ctx, "ada@example.com", "pw")

	err := a.DeleteContent(ctx, "nope")
	var derr *DomainError
	if !errors.As(err, &derr) || derr.Status != http.StatusNotFound {
		t.Fatalf("DeleteContent() error = %v", err)
	}
	if last, _ := notes.Last(); last.Message != "Content not found" {
		t.Fatalf("last notification = %+v", last)
	}
}

func TestCreateContentFollowsTheme(t *testing.T) {
	a, srv, notes := newTestApp(t)
	seed(srv)
	srv.AddUser("cleo", "cleo@example.com", "pw", "creator")
	ctx := context.Background()
	_, _ = a.Login(ctx, "cleo@example.com", "pw")

	types, err := a.ContentTypes(ctx, "theme-1")
	if err != nil {
		t.Fatalf("ContentTypes() error = %v", err)
	}
	if len(types) != 2 || types[0] != models.ContentImage || types[1] != models.ContentText {
		t.Fatalf("ContentTypes() = %v", types)
	}

	srv.ResetCalls()
	_, err = a.CreateContent(ctx, ContentFields{Title: strPtr("Clip"), Type: models.ContentVideo, Theme: "theme-1", Category: strPtr("cat-1"), URL: strPtr("https://youtu.be/x")})
	var werr *workflow.Error
	if !errors.As(err, &werr) || werr.Kind != workflow.KindRule {
		t.Fatalf("CreateContent(video) error = %v", err)
	}
	if srv.CountCalls(http.MethodPost, "/contents") != 0 {
		t.Fatal("refused type must not reach the API")
	}
	if last, _ := notes.Last(); last.Message != "Theme does not allow video content" {
		t.Fatalf("last notification = %+v", last)
	}

	_, err = a.CreateContent(ctx, ContentFields{Title: strPtr("Pic"), Type: models.ContentImage, Theme: "theme-1", Category: strPtr("cat-1")})
	if !errors.As(err, &werr) || werr.Message != workflow.MsgImageRequired {
		t.Fatalf("CreateContent(image without file) error = %v", err)
	}

	path := filepath.Join(t.TempDir(), "lake.png")
	if err := os.WriteFile(path, []byte("png"), 0o600); err != nil {
		t.Fatal(err)
	}
	created, err := a.CreateContent(ctx, ContentFields{Title: strPtr("Lake"), Type: models.ContentImage, Theme: "theme-1", Category: strPtr("cat-1"), File: path})
	if err != nil {
		t.Fatalf("CreateContent() error = %v", err)
	}
	if created.Image != "/uploads/lake.png" {
		t.Fatalf("created image = %q", created.Image)
	}
}

func TestUpdateContentThemeChangeNeedsType(t *testing.T) {
	a, srv, _ := newTestApp(t)
	seed(srv)
	srv.AddTheme(models.Theme{ID: "theme-2", Name: "Notes", Permissions: models.Permissions{Texts: true}})
	srv.AddUser("ada", "ada@example.com", "pw", "admin")
	ctx := context.Background()
	_, _ = a.Login(ctx, "ada@example.com", "pw")

	_, err := a.UpdateContent(ctx, "content-2", ContentFields{Theme: "theme-2"})
	var werr *workflow.Error
	if !errors.As(err, &werr) || werr.Message != workflow.MsgMissingFields {
		t.Fatalf("UpdateContent(theme only) error = %v", err)
	}

	updated, err := a.UpdateContent(ctx, "content-2", ContentFields{Theme: "theme-2", Type: models.ContentText})
	if err != nil {
		t.Fatalf("UpdateContent() error = %v", err)
	}
	if updated.Theme.ID != "theme-2" || updated.Text != "Flows north" || updated.Title != "River notes" {
		t.Fatalf("unexpected update: %+v", updated)
	}
}

func TestSessionExpiryIsReported(t *testing.T) {
	a, srv, notes := newTestApp(t)
	seed(srv)
	srv.AddUser("ada", "ada@example.com", "pw", "admin")
	ctx := context.Background()
	_, _ = a.Login(ctx, "ada@example.com", "pw")
	srv.Fail(http.MethodDelete, "/contents/content-2", http.StatusUnauthorized, "jwt expired")

	if err := a.DeleteContent(ctx, "content-2"); err == nil {
		t.Fatal("DeleteContent() should fail on 401")
	}
	if _, ok := a.Session.Current(ctx); ok {
		t.Fatal("401 should end the session")
	}
	if notes.Count(notify.LevelError) == 0 {
		t.Fatal("expected an error notification")
	}
	var expired bool
	for _, e := range notes.Entries() {
		expired = expired || e.Message == msgSessionExpired
	}
	if !expired {
		t.Fatalf("missing session expiry notice: %+v", notes.Entries())
	}
}

func TestLoginFailureIsNotified(t *testing.T) {
	a, _, notes := newTestApp(t)
	_, err := a.Login(context.Background(), "ghost@example.com", "pw")
	var authErr *session.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("Login() error = %v", err)
	}
	if last, _ := notes.Last(); last.Level != notify.LevelError || last.Message != "Invalid credentials" {
		t.Fatalf("last notification = %+v", last)
	}
}

func TestExportUsesViewerCapabilities(t *testing.T) {
	a, srv, _ := newTestApp(t)
	seed(srv)
	res, err := a.Export(context.Background(), "forest", export.Request{Format: export.FormatHTML})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	html := string(res.Data)
	if !strings.Contains(html, "Forest") || strings.Contains(html, "forest.png") {
		t.Fatal("anonymous export should list the content without its image")
	}
}

func TestSearchRemoteWithoutMirror(t *testing.T) {
	a, _, _ := newTestApp(t)
	if _, err := a.SearchRemote(context.Background(), "x", 5); err == nil {
		t.Fatal("SearchRemote() without mirror should fail")
	}
}
