// Package app wires the session, gateways, catalog, workflows and renderers
// into the operations the command line exposes.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"medialib/client/internal/api"
	"medialib/client/internal/catalog"
	"medialib/client/internal/config"
	"medialib/client/internal/export"
	"medialib/client/internal/media"
	"medialib/client/internal/models"
	"medialib/client/internal/notify"
	"medialib/client/internal/rbac"
	"medialib/client/internal/session"
	"medialib/client/internal/view"
	"medialib/client/internal/workflow"
)

const msgSessionExpired = "Session expired, please log in again"

type App struct {
	cfg      config.Config
	notifier notify.Notifier

	Session    *session.Manager
	Client     *api.Client
	Categories *api.Categories
	Themes     *api.Themes
	Contents   *api.Contents
	Catalog    *catalog.Aggregator
	Mirror     *catalog.Mirror

	CategoryFlow *workflow.CategoryController
	ThemeFlow    *workflow.ThemeController
	ContentFlow  *workflow.ContentController

	Exporter *export.Service
	Media    *media.Opener

	closers []func() error
}

// New builds the app from configuration. The token lives in Redis when
// REDIS_URL is set and in the token file otherwise.
func New(cfg config.Config, notifier notify.Notifier) (*App, error) {
	var (
		store   session.TokenStore
		closers []func() error
	)
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisStore, err := session.NewRedisStore(cfg.RedisURL, cfg.Profile)
		if err != nil {
			return nil, fmt.Errorf("redis connection failed: %w", err)
		}
		store = redisStore
		closers = append(closers, redisStore.Close)
	} else {
		store = session.NewFileStore(cfg.TokenFile)
	}

	a, err := NewWithStore(cfg, store, notifier)
	if err != nil {
		for _, c := range closers {
			_ = c()
		}
		return nil, err
	}
	a.closers = append(a.closers, closers...)
	return a, nil
}

// NewWithStore builds the app around an existing token store.
func NewWithStore(cfg config.Config, store session.TokenStore, notifier notify.Notifier) (*App, error) {
	if notifier == nil {
		notifier = notify.Discard
	}
	a := &App{cfg: cfg, notifier: notifier}

	a.Session = session.NewManager(store)
	a.Client = api.NewClient(cfg.APIURL,
		api.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		api.WithTokenSource(a.Session),
		api.WithUnauthorizedHook(a.unauthorized),
	)
	a.Session.SetAuthenticator(api.NewAuth(a.Client))

	a.Categories = api.NewCategories(a.Client)
	a.Themes = api.NewThemes(a.Client)
	a.Contents = api.NewContents(a.Client)

	var opts []catalog.Option
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		a.Mirror = catalog.NewMirror(cfg.MeiliURL, cfg.MeiliMasterKey)
		opts = append(opts, catalog.WithIndexer(a.Mirror))
		a.closers = append(a.closers, func() error { a.Mirror.Close(); return nil })
	}
	a.Catalog = catalog.NewAggregator(a.Categories, a.Themes, a.Contents, opts...)

	a.CategoryFlow = workflow.NewController(workflow.Categories(a.Categories), a.Catalog, notifier)
	a.ThemeFlow = workflow.NewController(workflow.Themes(a.Themes), a.Catalog, notifier)
	a.ContentFlow = workflow.NewController(workflow.Contents(a.Contents, a.Themes, a.Categories), a.Catalog, notifier)

	opener, err := media.NewOpener(media.S3Config{
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		UseSSL:    cfg.S3UseSSL,
	})
	if err != nil {
		return nil, err
	}
	a.Media = opener
	a.Exporter = export.NewService()
	return a, nil
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

func (a *App) unauthorized(ctx context.Context) {
	a.Session.Unauthorized(ctx)
	a.notifier.Notify(notify.LevelError, msgSessionExpired)
}

// Login signs in and reports the outcome to the notifier.
func (a *App) Login(ctx context.Context, email, password string) (session.Session, error) {
	s, err := a.Session.Login(ctx, api.Credentials{Email: email, Password: password})
	return s, a.reportAuth(err, "Login successful")
}

func (a *App) Register(ctx context.Context, p session.Profile) (session.Session, error) {
	s, err := a.Session.Register(ctx, p)
	return s, a.reportAuth(err, "Registration successful")
}

func (a *App) reportAuth(err error, success string) error {
	if err == nil {
		a.notifier.Notify(notify.LevelSuccess, success)
		return nil
	}
	var authErr *session.AuthError
	if errors.As(err, &authErr) {
		a.notifier.Notify(notify.LevelError, authErr.Message)
	}
	return err
}

func (a *App) Logout(ctx context.Context) error {
	if err := a.Session.Logout(ctx); err != nil {
		return err
	}
	a.notifier.Notify(notify.LevelSuccess, "Logged out")
	return nil
}

func (a *App) Capabilities(ctx context.Context) rbac.Capabilities {
	return a.Session.Capabilities(ctx)
}

// Builder renders cards for the current user.
func (a *App) Builder(ctx context.Context) view.Builder {
	return view.NewBuilder(a.Capabilities(ctx), a.cfg.APIURL)
}

// Browse refreshes the catalog and renders the part matching query. A
// partial refresh still renders whatever was fetched.
func (a *App) Browse(ctx context.Context, query string) (view.Page, error) {
	_, err := a.Catalog.Refresh(ctx)
	if err != nil {
		a.notifier.Notify(notify.LevelError, "Failed to load catalog")
	}
	return a.Builder(ctx).Page(a.Catalog.Search(query)), err
}

// Export renders the catalog visible to the current user.
func (a *App) Export(ctx context.Context, query string, req export.Request) (*export.Result, error) {
	page, err := a.Browse(ctx, query)
	if err != nil && a.Catalog.Snapshot().FetchedAt.IsZero() {
		return nil, err
	}
	return a.Exporter.Export(ctx, page, req)
}

// SearchRemote queries the Meilisearch mirror.
func (a *App) SearchRemote(ctx context.Context, query string, limit int) ([]catalog.Hit, error) {
	if a.Mirror == nil {
		return nil, catalog.ErrMirrorUnavailable
	}
	if _, err := a.Catalog.Refresh(ctx); err != nil {
		log.Printf("app: refresh before remote search: %v", err)
	}
	return a.Mirror.Search(query, limit)
}

// require checks the action against the current capabilities. The API
// enforces the same rules; this only spares a doomed request.
func (a *App) require(ctx context.Context, action rbac.Action, noun string) error {
	if a.Capabilities(ctx).Allows(action) {
		return nil
	}
	msg := fmt.Sprintf("You are not allowed to %s %s", action, plural(noun))
	a.notifier.Notify(notify.LevelError, msg)
	return domainError(http.StatusForbidden, "FORBIDDEN", msg)
}

func plural(noun string) string {
	switch noun {
	case "category":
		return "categories"
	case "content":
		return "contents"
	default:
		return noun + "s"
	}
}

// fetch loads one entity for editing or deleting.
func fetch[E any](ctx context.Context, a *App, get workflow.Getter[E], noun, id string) (E, error) {
	res := get.Get(ctx, id)
	if res.OK() {
		return res.Data, nil
	}
	var zero E
	msg := notify.Capitalize(noun) + " not found"
	if res.Err != nil {
		msg = "Failed to load " + noun
	}
	a.notifier.Notify(notify.LevelError, msg)
	return zero, domainError(res.Status, "NOT_FOUND", msg)
}

func create[E workflow.Entity, In any](ctx context.Context, a *App, flow *workflow.Controller[E, In], in In) (E, error) {
	var zero E
	if err := a.require(ctx, rbac.ActionCreate, flow.Noun()); err != nil {
		return zero, err
	}
	flow.OpenCreate()
	saved, err := flow.Submit(ctx, in)
	if err != nil {
		flow.Close()
	}
	return saved, err
}

func update[E workflow.Entity, In any](ctx context.Context, a *App, flow *workflow.Controller[E, In], existing E, in In) (E, error) {
	var zero E
	if err := a.require(ctx, rbac.ActionEdit, flow.Noun()); err != nil {
		return zero, err
	}
	flow.OpenEdit(existing)
	saved, err := flow.Submit(ctx, in)
	if err != nil {
		flow.Close()
	}
	return saved, err
}

func remove[E workflow.Entity, In any](ctx context.Context, a *App, flow *workflow.Controller[E, In], get workflow.Getter[E], id string) error {
	if err := a.require(ctx, rbac.ActionDelete, flow.Noun()); err != nil {
		return err
	}
	existing, err := fetch(ctx, a, get, flow.Noun(), id)
	if err != nil {
		return err
	}
	flow.OpenDelete(existing)
	if err := flow.ConfirmDelete(ctx); err != nil {
		flow.Close()
		return err
	}
	return nil
}

func (a *App) Category(ctx context.Context, id string) (models.Category, error) {
	return fetch(ctx, a, a.Categories, "category", id)
}

func (a *App) Theme(ctx context.Context, id string) (models.Theme, error) {
	return fetch(ctx, a, a.Themes, "theme", id)
}

func (a *App) Content(ctx context.Context, id string) (models.Content, error) {
	return fetch(ctx, a, a.Contents, "content", id)
}
