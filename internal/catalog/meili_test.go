package catalog

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"

	"medialib/client/internal/models"
)

// fakeMeili accepts every write as an enqueued task and records it.
type fakeMeili struct {
	mu       sync.Mutex
	requests []string
}

func (f *fakeMeili) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if r.Method == http.MethodGet && r.URL.Path == "/health" {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "available"})
		return
	}
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"taskUid":    1,
		"indexUid":   "medialib",
		"status":     "enqueued",
		"type":       "documentAdditionOrUpdate",
		"enqueuedAt": "2024-01-01T00:00:00Z",
	})
}

func (f *fakeMeili) seen(req string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Contains(f.requests, req)
}

func (f *fakeMeili) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = nil
}

func TestMirrorPushesAndDeletesVanished(t *testing.T) {
	fake := &fakeMeili{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	m := NewMirror(srv.URL, "master")
	defer m.Close()
	if !m.Healthy() {
		t.Fatal("mirror should be healthy against the fake server")
	}

	first := Snapshot{
		Themes:   []models.Theme{{ID: "t1", Name: "Nature", Permissions: models.Permissions{Images: true}}},
		Contents: []models.Content{{ID: "x1", Title: "Forest"}, {ID: "x2", Title: "Lake"}},
	}
	if err := m.Push(first); err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if !fake.seen("POST /indexes/medialib_contents/documents") {
		t.Fatal("contents were not indexed")
	}

	fake.reset()
	second := Snapshot{
		Themes:   first.Themes,
		Contents: []models.Content{{ID: "x2", Title: "Lake"}},
	}
	if err := m.Push(second); err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if !fake.seen("DELETE /indexes/medialib_contents/documents/x1") {
		t.Fatal("vanished content was not deleted")
	}
	if fake.seen("DELETE /indexes/medialib_contents/documents/x2") {
		t.Fatal("surviving content was deleted")
	}
}

func TestMirrorUnavailable(t *testing.T) {
	m := NewMirror("http://127.0.0.1:1", "")
	defer m.Close()

	if m.Healthy() {
		t.Fatal("mirror should start unhealthy")
	}
	if err := m.Push(Snapshot{}); !errors.Is(err, ErrMirrorUnavailable) {
		t.Fatalf("Push() error = %v, want ErrMirrorUnavailable", err)
	}
	if _, err := m.Search("x", 5); !errors.Is(err, ErrMirrorUnavailable) {
		t.Fatalf("Search() error = %v, want ErrMirrorUnavailable", err)
	}
	m.Sync(Snapshot{})
}

func TestVanished(t *testing.T) {
	prev := map[string]struct{}{"a": {}, "b": {}, "c": {}}
	next := map[string]struct{}{"b": {}, "d": {}}

	got := vanished(prev, next)
	slices.Sort(got)
	if !slices.Equal(got, []string{"a", "c"}) {
		t.Fatalf("vanished() = %v", got)
	}
	if got := vanished(nil, next); len(got) != 0 {
		t.Fatalf("vanished(nil) = %v", got)
	}
}
