// Package catalog keeps the fetched categories, themes and contents and
// derives the filtered views shown to users.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"medialib/client/internal/api"
	"medialib/client/internal/models"
)

// Snapshot is one complete fetch of the catalog. It is replaced wholesale on
// every refresh and never modified in place.
type Snapshot struct {
	Categories []models.Category
	Themes     []models.Theme
	Contents   []models.Content
	FetchedAt  time.Time
}

// Views are the collections left after applying a search query.
type Views struct {
	Query      string
	Categories []models.Category
	Themes     []models.Theme
	Contents   []models.Content
}

// Lister is the read side of an entity gateway.
type Lister[E any] interface {
	List(ctx context.Context) api.Result[[]E]
}

// Indexer receives every refreshed snapshot.
type Indexer interface {
	Sync(s Snapshot)
}

type Aggregator struct {
	categories Lister[models.Category]
	themes     Lister[models.Theme]
	contents   Lister[models.Content]
	indexer    Indexer
	now        func() time.Time

	mu    sync.RWMutex
	snap  Snapshot
	query string
}

type Option func(*Aggregator)

// WithIndexer mirrors each refreshed snapshot into ix.
func WithIndexer(ix Indexer) Option {
	return func(a *Aggregator) { a.indexer = ix }
}

func NewAggregator(categories Lister[models.Category], themes Lister[models.Theme], contents Lister[models.Content], opts ...Option) *Aggregator {
	a := &Aggregator{
		categories: categories,
		themes:     themes,
		contents:   contents,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Refresh fetches the three collections concurrently. A collection whose
// fetch fails keeps its previous contents; the failures are joined into the
// returned error and the snapshot is still replaced.
func (a *Aggregator) Refresh(ctx context.Context) (Snapshot, error) {
	prev := a.Snapshot()
	next := Snapshot{
		Categories: prev.Categories,
		Themes:     prev.Themes,
		Contents:   prev.Contents,
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	fail := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		errs = append(errs, err)
	}

	var g errgroup.Group
	g.Go(func() error {
		res := a.categories.List(ctx)
		if !res.OK() {
			fail(fetchError("categories", res))
			return nil
		}
		next.Categories = byUpdatedDesc(res.Data, func(c models.Category) time.Time { return c.UpdatedAt })
		return nil
	})
	g.Go(func() error {
		res := a.themes.List(ctx)
		if !res.OK() {
			fail(fetchError("themes", res))
			return nil
		}
		next.Themes = byUpdatedDesc(res.Data, func(t models.Theme) time.Time { return t.UpdatedAt })
		return nil
	})
	g.Go(func() error {
		res := a.contents.List(ctx)
		if !res.OK() {
			fail(fetchError("contents", res))
			return nil
		}
		next.Contents = byUpdatedDesc(res.Data, func(c models.Content) time.Time { return c.UpdatedAt })
		return nil
	})
	_ = g.Wait()

	next.FetchedAt = a.now()

	a.mu.Lock()
	a.snap = next
	a.mu.Unlock()

	if a.indexer != nil {
		a.indexer.Sync(next)
	}

	err := errors.Join(errs...)
	if err != nil {
		log.Printf("catalog: refresh incomplete: %v", err)
	}
	return next, err
}

func (a *Aggregator) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snap
}

// Search records query and returns the views it selects from the current
// snapshot. It never touches the network.
func (a *Aggregator) Search(query string) Views {
	a.mu.Lock()
	a.query = query
	snap := a.snap
	a.mu.Unlock()
	return Filter(snap, query)
}

// Views applies the last search query to the current snapshot.
func (a *Aggregator) Views() Views {
	a.mu.RLock()
	snap, query := a.snap, a.query
	a.mu.RUnlock()
	return Filter(snap, query)
}

// Filter selects the entities matching query, case-insensitively. Contents
// match on title or text, categories and themes on name. An empty query
// selects everything.
func Filter(s Snapshot, query string) Views {
	v := Views{Query: query}
	needle := strings.ToLower(query)
	if needle == "" {
		v.Categories = slices.Clone(s.Categories)
		v.Themes = slices.Clone(s.Themes)
		v.Contents = slices.Clone(s.Contents)
		return v
	}

	v.Categories = []models.Category{}
	for _, c := range s.Categories {
		if contains(c.Name, needle) {
			v.Categories = append(v.Categories, c)
		}
	}
	v.Themes = []models.Theme{}
	for _, t := range s.Themes {
		if contains(t.Name, needle) {
			v.Themes = append(v.Themes, t)
		}
	}
	v.Contents = []models.Content{}
	for _, c := range s.Contents {
		if contains(c.Title, needle) || contains(c.Text, needle) {
			v.Contents = append(v.Contents, c)
		}
	}
	return v
}

func contains(haystack, lowerNeedle string) bool {
	return strings.Contains(strings.ToLower(haystack), lowerNeedle)
}

func byUpdatedDesc[E any](items []E, updated func(E) time.Time) []E {
	out := slices.Clone(items)
	slices.SortStableFunc(out, func(a, b E) int {
		return updated(b).Compare(updated(a))
	})
	return out
}

func fetchError[T any](kind string, res api.Result[T]) error {
	if res.Err != nil {
		return fmt.Errorf("fetch %s: %w", kind, res.Err)
	}
	return fmt.Errorf("fetch %s: status %d: %s", kind, res.Status, res.Failure())
}
