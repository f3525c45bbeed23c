// Package githubtest provides an in-memory fake of the GitHub REST endpoints
// used by the analyzer, for tests across packages.
package githubtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

type Repo struct {
	ID          int64
	Name        string
	Description string
	Languages   map[string]int64
}

type User struct {
	Login     string
	Name      string
	Bio       string
	Followers int
	Following int
	Repos     []Repo
}

// Server answers /users/{login}, /users/{login}/repos and
// /repos/{owner}/{repo}/languages from registered users.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	users       map[string]User
	failures    map[string]int
	holds       map[string]chan struct{}
	requests    []string
	pageSize    int
	inFlight    int
	maxInFlight int
}

// NewServer starts a fake server that is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		users:    make(map[string]User),
		failures: make(map[string]int),
		holds:    make(map[string]chan struct{}),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Server.Close)
	return s
}

func (s *Server) AddUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[strings.ToLower(u.Login)] = u
}

// Fail makes requests for path answer with status.
func (s *Server) Fail(path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = status
}

// Hold blocks requests for path until the returned release func is called
// or the request context ends.
func (s *Server) Hold(path string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.holds[path] = ch
	s.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// SetPageSize limits repository pages to n entries regardless of per_page.
func (s *Server) SetPageSize(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pageSize = n
}

// Requests returns the request paths (with query) in arrival order.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.requests))
	copy(out, s.requests)
	return out
}

// MaxInFlight reports the highest number of concurrently served requests.
func (s *Server) MaxInFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxInFlight
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, r.URL.RequestURI())
	s.inFlight++
	if s.inFlight > s.maxInFlight {
		s.maxInFlight = s.inFlight
	}
	status, failing := s.failures[r.URL.Path]
	hold := s.holds[r.URL.Path]
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()

	if hold != nil {
		select {
		case <-hold:
		case <-r.Context().Done():
			return
		}
	}

	if failing {
		writeJSON(w, status, map[string]string{"message": http.StatusText(status)})
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case len(parts) == 2 && parts[0] == "users":
		s.serveUser(w, parts[1])
	case len(parts) == 3 && parts[0] == "users" && parts[2] == "repos":
		s.serveRepos(w, r, parts[1])
	case len(parts) == 4 && parts[0] == "repos" && parts[3] == "languages":
		s.serveLanguages(w, parts[1], parts[2])
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
	}
}

func (s *Server) lookup(login string) (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[strings.ToLower(login)]
	return u, ok
}

func (s *Server) serveUser(w http.ResponseWriter, login string) {
	u, ok := s.lookup(login)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"login":        u.Login,
		"name":         u.Name,
		"bio":          u.Bio,
		"followers":    u.Followers,
		"following":    u.Following,
		"public_repos": len(u.Repos),
		"avatar_url":   "https://avatars.example.com/" + u.Login,
		"html_url":     "https://github.com/" + u.Login,
	})
}

func (s *Server) serveRepos(w http.ResponseWriter, r *http.Request, login string) {
	u, ok := s.lookup(login)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}

	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	s.mu.Lock()
	if s.pageSize > 0 {
		perPage = s.pageSize
	}
	s.mu.Unlock()
	if perPage <= 0 {
		perPage = 30
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page <= 0 {
		page = 1
	}

	start := (page - 1) * perPage
	end := start + perPage
	if start > len(u.Repos) {
		start = len(u.Repos)
	}
	if end > len(u.Repos) {
		end = len(u.Repos)
	}
	if end < len(u.Repos) {
		next := fmt.Sprintf("%s%s?page=%d&per_page=%d", s.URL, r.URL.Path, page+1, perPage)
		w.Header().Set("Link", fmt.Sprintf(`<%s>; rel="next"`, next))
	}

	out := make([]map[string]any, 0, end-start)
	for _, repo := range u.Repos[start:end] {
		out = append(out, map[string]any{
			"id":          repo.ID,
			"name":        repo.Name,
			"description": repo.Description,
			"html_url":    "https://github.com/" + u.Login + "/" + repo.Name,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) serveLanguages(w http.ResponseWriter, owner, name string) {
	u, ok := s.lookup(owner)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}
	for _, repo := range u.Repos {
		if repo.Name == name {
			langs := repo.Languages
			if langs == nil {
				langs = map[string]int64{}
			}
			writeJSON(w, http.StatusOK, langs)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
