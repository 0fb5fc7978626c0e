// Package apitest runs an in-memory stand-in for the catalog REST API.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"medialib/client/internal/auth"
	"medialib/client/internal/models"
)

type Call struct {
	Method        string
	Path          string
	Authorization string
	ContentType   string
}

type user struct {
	username string
	email    string
	password string
	roles    []string
}

type failure struct {
	status  int
	message string
	abort   bool
}

type Server struct {
	*httptest.Server
	Secret []byte

	mu         sync.Mutex
	categories map[string]models.Category
	themes     map[string]models.Theme
	contents   map[string]models.Content
	users      map[string]user
	calls      []Call
	failures   map[string]failure
	seq        int
	clock      time.Time
}

// New starts a server that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		Secret:     []byte("apitest-secret"),
		categories: make(map[string]models.Category),
		themes:     make(map[string]models.Theme),
		contents:   make(map[string]models.Content),
		users:      make(map[string]user),
		failures:   make(map[string]failure),
		clock:      time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.record)
	r.Use(s.injectFailures)

	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/register", s.handleRegister)

	r.Route("/categories", func(r chi.Router) {
		r.Get("/", s.listCategories)
		r.With(requireAuth).Post("/", s.saveCategory)
		r.Get("/{id}", s.getCategory)
		r.With(requireAuth).Put("/{id}", s.saveCategory)
		r.With(requireAuth).Delete("/{id}", s.deleteCategory)
	})
	r.Route("/themes", func(r chi.Router) {
		r.Get("/", s.listThemes)
		r.With(requireAuth).Post("/", s.saveTheme)
		r.Get("/{id}", s.getTheme)
		r.With(requireAuth).Put("/{id}", s.saveTheme)
		r.With(requireAuth).Delete("/{id}", s.deleteTheme)
	})
	r.Route("/contents", func(r chi.Router) {
		r.Get("/", s.listContents)
		r.With(requireAuth).Post("/", s.saveContent)
		r.Get("/{id}", s.getContent)
		r.With(requireAuth).Put("/{id}", s.saveContent)
		r.With(requireAuth).Delete("/{id}", s.deleteContent)
	})
	return r
}

// Fail makes every later request to method+path answer with status and a
// {"message"} body.
func (s *Server) Fail(method, path string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+path] = failure{status: status, message: message}
}

// Break makes every later request to method+path drop the connection.
func (s *Server) Break(method, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+path] = failure{abort: true}
}

func (s *Server) Heal(method, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, method+" "+path)
}

func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

func (s *Server) CountCalls(method, path string) int {
	n := 0
	for _, call := range s.Calls() {
		if call.Method == method && call.Path == path {
			n++
		}
	}
	return n
}

func (s *Server) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

func (s *Server) AddUser(username, email, password string, roles ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[strings.ToLower(email)] = user{username: username, email: strings.ToLower(email), password: password, roles: roles}
}

// Token issues a signed token the way the real API does on login.
func (s *Server) Token(username, email string, expiresIn time.Duration, roles ...string) string {
	token, err := auth.IssueToken(s.Secret, auth.Claims{
		UserID:   "user-" + username,
		Username: username,
		Email:    email,
		Roles:    roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
		},
	})
	if err != nil {
		panic(err)
	}
	return token
}

func (s *Server) AddCategory(c models.Category) models.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = s.nextID("cat")
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = s.tick()
	}
	s.categories[c.ID] = c
	return c
}

func (s *Server) AddTheme(t models.Theme) models.Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = s.nextID("theme")
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = s.tick()
	}
	s.themes[t.ID] = t
	return t
}

func (s *Server) AddContent(c models.Content) models.Content {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = s.nextID("content")
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = s.tick()
	}
	s.contents[c.ID] = c
	return s.populate(c)
}

// Theme returns the stored theme; handy to mutate it behind a client's back.
func (s *Server) Theme(id string) (models.Theme, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.themes[id]
	return t, ok
}

func (s *Server) Content(id string) (models.Content, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contents[id]
	return s.populate(c), ok
}

func (s *Server) Category(id string) (models.Category, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	return c, ok
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls = append(s.calls, Call{
			Method:        r.Method,
			Path:          r.URL.Path,
			Authorization: r.Header.Get("Authorization"),
			ContentType:   r.Header.Get("Content-Type"),
		})
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		f, ok := s.failures[r.Method+" "+r.URL.Path]
		s.mu.Unlock()
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		if f.abort {
			panic(http.ErrAbortHandler)
		}
		writeError(w, f.status, f.message)
	})
}

func requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	s.mu.Lock()
	u, ok := s.users[body.Email]
	s.mu.Unlock()
	if !ok || u.password != body.Password {
		writeError(w, http.StatusUnauthorized, "INVALID CREDENTIALS")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": s.Token(u.username, u.email, time.Hour, u.roles...)})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string   `json:"username"`
		Email    string   `json:"email"`
		Password string   `json:"password"`
		Roles    []string `json:"roles"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	s.mu.Lock()
	_, exists := s.users[body.Email]
	if !exists {
		s.users[body.Email] = user{username: body.Username, email: body.Email, password: body.Password, roles: body.Roles}
	}
	s.mu.Unlock()
	if exists {
		writeError(w, http.StatusBadRequest, "USER ALREADY EXISTS")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": s.Token(body.Username, body.Email, time.Hour, body.Roles...)})
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]models.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getCategory(w http.ResponseWriter, r *http.Request) {
	c, ok := s.Category(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "category not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) saveCategory(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "expected multipart form")
		return
	}
	id := chi.URLParam(r, "id")
	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c := models.Category{ID: id}
	if id != "" {
		existing, ok := s.categories[id]
		if !ok {
			writeError(w, http.StatusNotFound, "category not found")
			return
		}
		c = existing
	} else {
		c.ID = s.nextID("cat")
	}
	for _, other := range s.categories {
		if other.ID != c.ID && strings.EqualFold(other.Name, name) {
			writeError(w, http.StatusBadRequest, "CATEGORY NAME ALREADY EXISTS")
			return
		}
	}
	c.Name = name
	c.AllowsImages = formBool(r, "allowsImages")
	c.AllowsVideos = formBool(r, "allowsVideos")
	c.AllowsTexts = formBool(r, "allowsTexts")
	if _, header, err := r.FormFile("file"); err == nil {
		c.CoverImageURL = "/uploads/" + header.Filename
	} else if existing := r.FormValue("existingImageUrl"); existing != "" {
		c.CoverImageURL = existing
	}
	c.UpdatedAt = s.tick()
	s.categories[c.ID] = c
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) deleteCategory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[id]; !ok {
		writeError(w, http.StatusNotFound, "category not found")
		return
	}
	for _, c := range s.contents {
		if c.Category.ID == id {
			writeError(w, http.StatusBadRequest, "category found in content, you can not delete it")
			return
		}
	}
	delete(s.categories, id)
	writeJSON(w, http.StatusOK, map[string]any{"message": "category deleted"})
}

func (s *Server) listThemes(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]models.Theme, 0, len(s.themes))
	for _, t := range s.themes {
		out = append(out, t)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getTheme(w http.ResponseWriter, r *http.Request) {
	t, ok := s.Theme(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "theme not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) saveTheme(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name        string             `json:"name"`
		Permissions models.Permissions `json:"permissions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if strings.TrimSpace(body.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()
	t := models.Theme{ID: id}
	if id != "" {
		if _, ok := s.themes[id]; !ok {
			writeError(w, http.StatusNotFound, "theme not found")
			return
		}
	} else {
		t.ID = s.nextID("theme")
	}
	t.Name = strings.TrimSpace(body.Name)
	t.Permissions = body.Permissions
	t.UpdatedAt = s.tick()
	s.themes[t.ID] = t
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) deleteTheme(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.themes[id]; !ok {
		writeError(w, http.StatusNotFound, "theme not found")
		return
	}
	for _, c := range s.contents {
		if c.Theme.ID == id {
			writeError(w, http.StatusBadRequest, "theme found in content, you can not delete it")
			return
		}
	}
	delete(s.themes, id)
	writeJSON(w, http.StatusOK, map[string]any{"message": "theme deleted"})
}

func (s *Server) listContents(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]models.Content, 0, len(s.contents))
	for _, c := range s.contents {
		out = append(out, s.populate(c))
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getContent(w http.ResponseWriter, r *http.Request) {
	c, ok := s.Content(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "content not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) saveContent(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "expected multipart form")
		return
	}
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()
	c := models.Content{ID: id}
	if id != "" {
		if _, ok := s.contents[id]; !ok {
			writeError(w, http.StatusNotFound, "content not found")
			return
		}
	} else {
		c.ID = s.nextID("content")
	}
	c.Title = r.FormValue("title")
	c.Type = models.ContentType(r.FormValue("type"))
	c.Theme = models.Ref{ID: r.FormValue("theme")}
	c.Category = models.Ref{ID: r.FormValue("category")}
	if _, ok := s.themes[c.Theme.ID]; !ok {
		writeError(w, http.StatusBadRequest, "theme not found")
		return
	}
	if _, ok := s.categories[c.Category.ID]; !ok {
		writeError(w, http.StatusBadRequest, "category not found")
		return
	}
	switch c.Type {
	case models.ContentText:
		c.Text = r.FormValue("text")
	case models.ContentVideo:
		c.URL = r.FormValue("url")
	case models.ContentImage:
		if _, header, err := r.FormFile("file"); err == nil {
			c.Image = "/uploads/" + header.Filename
		} else {
			c.Image = r.FormValue("image")
		}
	default:
		writeError(w, http.StatusBadRequest, "invalid content type")
		return
	}
	c.UpdatedAt = s.tick()
	s.contents[c.ID] = c
	writeJSON(w, http.StatusOK, s.populate(c))
}

func (s *Server) deleteContent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contents[id]; !ok {
		writeError(w, http.StatusNotFound, "content not found")
		return
	}
	delete(s.contents, id)
	writeJSON(w, http.StatusOK, map[string]any{"message": "content deleted"})
}

// populate fills theme and category names the way the API joins them.
// Callers hold s.mu.
func (s *Server) populate(c models.Content) models.Content {
	if t, ok := s.themes[c.Theme.ID]; ok {
		c.Theme.Name = t.Name
	}
	if k, ok := s.categories[c.Category.ID]; ok {
		c.Category.Name = k.Name
	}
	return c
}

func (s *Server) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func (s *Server) tick() time.Time {
	s.clock = s.clock.Add(time.Minute)
	return s.clock
}

func formBool(r *http.Request, key string) bool {
	v, _ := strconv.ParseBool(r.FormValue(key))
	return v
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"message": message})
}
