package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"

	"medialib/client/internal/models"
)

const (
	idxCategories = "medialib_categories"
	idxThemes     = "medialib_themes"
	idxContents   = "medialib_contents"
)

var ErrMirrorUnavailable = errors.New("meilisearch unavailable")

type categoryRecord struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	AllowsImages bool   `json:"allowsImages"`
	AllowsVideos bool   `json:"allowsVideos"`
	AllowsTexts  bool   `json:"allowsTexts"`
	UpdatedAt    int64  `json:"updatedAt"`
}

type themeRecord struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Allows    []string `json:"allows"`
	UpdatedAt int64    `json:"updatedAt"`
}

type contentRecord struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Text       string `json:"text,omitempty"`
	Type       string `json:"type"`
	ThemeID    string `json:"themeId"`
	CategoryID string `json:"categoryId"`
	UpdatedAt  int64  `json:"updatedAt"`
}

// Mirror copies every refreshed snapshot into Meilisearch so the catalog can
// be searched server-side with typo tolerance.
type Mirror struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
	closed  sync.Once

	// serializes syncs so deletes are computed against the last pushed state
	mu    sync.Mutex
	known map[string]map[string]struct{}
	wg    sync.WaitGroup
}

// NewMirror connects to Meilisearch and configures the indexes. An
// unreachable server is not fatal; the mirror stays idle until it recovers.
func NewMirror(url, apiKey string) *Mirror {
	m := &Mirror{
		client: meili.New(url, meili.WithAPIKey(apiKey)),
		done:   make(chan struct{}),
		known:  make(map[string]map[string]struct{}),
	}

	if _, err := m.client.Health(); err != nil {
		log.Printf("catalog: meilisearch unavailable at %s: %v", url, err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndexes()
	}

	go m.healthLoop()
	return m
}

func (m *Mirror) configureIndexes() {
	indexes := []struct {
		uid        string
		filterable []string
		searchable []string
	}{
		{uid: idxCategories, filterable: []string{"allowsImages", "allowsVideos", "allowsTexts"}, searchable: []string{"name"}},
		{uid: idxThemes, filterable: []string{"allows"}, searchable: []string{"name"}},
		{uid: idxContents, filterable: []string{"type", "themeId", "categoryId"}, searchable: []string{"title", "text"}},
	}

	for _, idx := range indexes {
		if _, err := m.client.CreateIndex(&meili.IndexConfig{Uid: idx.uid, PrimaryKey: "id"}); err != nil {
			log.Printf("catalog: create index %s (may already exist): %v", idx.uid, err)
		}

		index := m.client.Index(idx.uid)
		filterable := make([]interface{}, len(idx.filterable))
		for i, v := range idx.filterable {
			filterable[i] = v
		}
		if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
			log.Printf("catalog: update filterable attrs for %s: %v", idx.uid, err)
		}
		if _, err := index.UpdateSearchableAttributes(&idx.searchable); err != nil {
			log.Printf("catalog: update searchable attrs for %s: %v", idx.uid, err)
		}
	}
}

func (m *Mirror) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Println("catalog: meilisearch recovered, reconfiguring indexes")
				m.configureIndexes()
			}
		}
	}
}

// Close stops the health monitor and waits for pending syncs.
func (m *Mirror) Close() {
	m.closed.Do(func() { close(m.done) })
	m.wg.Wait()
}

func (m *Mirror) Healthy() bool {
	return m.healthy.Load()
}

// Sync implements Indexer. The push runs in the background; failures are
// logged and never reach the caller.
func (m *Mirror) Sync(s Snapshot) {
	if !m.healthy.Load() {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.Push(s); err != nil {
			log.Printf("catalog: mirror sync: %v", err)
		}
	}()
}

// Push writes s to the indexes and deletes entities that were pushed before
// but are no longer part of the catalog.
func (m *Mirror) Push(s Snapshot) error {
	if !m.healthy.Load() {
		return ErrMirrorUnavailable
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	categories := make([]categoryRecord, 0, len(s.Categories))
	for _, c := range s.Categories {
		categories = append(categories, categoryRecord{
			ID:           c.ID,
			Name:         c.Name,
			AllowsImages: c.AllowsImages,
			AllowsVideos: c.AllowsVideos,
			AllowsTexts:  c.AllowsTexts,
			UpdatedAt:    c.UpdatedAt.Unix(),
		})
	}
	themes := make([]themeRecord, 0, len(s.Themes))
	for _, t := range s.Themes {
		rec := themeRecord{ID: t.ID, Name: t.Name, Allows: []string{}, UpdatedAt: t.UpdatedAt.Unix()}
		for _, ct := range models.ContentTypes {
			if t.Permissions.Allows(ct) {
				rec.Allows = append(rec.Allows, string(ct))
			}
		}
		themes = append(themes, rec)
	}
	contents := make([]contentRecord, 0, len(s.Contents))
	for _, c := range s.Contents {
		contents = append(contents, contentRecord{
			ID:         c.ID,
			Title:      c.Title,
			Text:       c.Text,
			Type:       string(c.Type),
			ThemeID:    c.Theme.ID,
			CategoryID: c.Category.ID,
			UpdatedAt:  c.UpdatedAt.Unix(),
		})
	}

	var errs []error
	errs = append(errs, m.replace(idxCategories, categories, idsOf(categories, func(r categoryRecord) string { return r.ID })))
	errs = append(errs, m.replace(idxThemes, themes, idsOf(themes, func(r themeRecord) string { return r.ID })))
	errs = append(errs, m.replace(idxContents, contents, idsOf(contents, func(r contentRecord) string { return r.ID })))
	return errors.Join(errs...)
}

func (m *Mirror) replace(uid string, docs any, ids map[string]struct{}) error {
	index := m.client.Index(uid)
	if len(ids) > 0 {
		if _, err := index.AddDocuments(docs, nil); err != nil {
			m.healthy.Store(false)
			return fmt.Errorf("index %s: %w", uid, err)
		}
	}
	for _, id := range vanished(m.known[uid], ids) {
		if _, err := index.DeleteDocument(id, nil); err != nil {
			return fmt.Errorf("delete %s from %s: %w", id, uid, err)
		}
	}
	m.known[uid] = ids
	return nil
}

// Hit is one match returned by the mirror.
type Hit struct {
	Kind    Kind
	ID      string
	Label   string
	Snippet string
}

// Search queries the three indexes at once.
func (m *Mirror) Search(query string, limit int) ([]Hit, error) {
	if !m.healthy.Load() {
		return nil, ErrMirrorUnavailable
	}
	if limit <= 0 {
		limit = 20
	}

	targets := []struct {
		uid  string
		kind Kind
	}{
		{idxCategories, KindCategory},
		{idxThemes, KindTheme},
		{idxContents, KindContent},
	}
	queries := make([]*meili.SearchRequest, 0, len(targets))
	for _, t := range targets {
		queries = append(queries, &meili.SearchRequest{
			IndexUID:              t.uid,
			Query:                 query,
			Limit:                 int64(limit),
			AttributesToHighlight: []string{"*"},
			HighlightPreTag:       "<mark>",
			HighlightPostTag:      "</mark>",
		})
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{Queries: queries})
	if err != nil {
		m.healthy.Store(false)
		return nil, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var hits []Hit
	for _, sr := range resp.Results {
		kind := indexKind(sr.IndexUID)
		for _, hit := range sr.Hits {
			h := Hit{Kind: kind, ID: decodeString(hit, "id")}
			switch kind {
			case KindContent:
				h.Label = decodeString(hit, "title")
				h.Snippet = decodeFormattedString(hit, "text")
			default:
				h.Label = decodeString(hit, "name")
			}
			hits = append(hits, h)
		}
	}
	return hits, nil
}

func indexKind(uid string) Kind {
	switch uid {
	case idxCategories:
		return KindCategory
	case idxThemes:
		return KindTheme
	case idxContents:
		return KindContent
	default:
		return ""
	}
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]json.RawMessage
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(formatted[key], &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func idsOf[R any](records []R, id func(R) string) map[string]struct{} {
	out := make(map[string]struct{}, len(records))
	for _, r := range records {
		out[id(r)] = struct{}{}
	}
	return out
}

// vanished lists ids present in prev but missing from next.
func vanished(prev, next map[string]struct{}) []string {
	var out []string
	for id := range prev {
		if _, ok := next[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
