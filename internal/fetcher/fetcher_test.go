package fetcher_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"ghanalyzer/internal/fetcher"
	gh "ghanalyzer/internal/github"
	"ghanalyzer/internal/github/githubtest"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestFetcher(t *testing.T, srv *githubtest.Server, ttl time.Duration, opts ...fetcher.Option) *fetcher.Fetcher {
	t.Helper()
	client, err := gh.NewClient(context.Background(), "", gh.WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	f, err := fetcher.NewFetcher(client, ttl, opts...)
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	return f
}

func newServer(t *testing.T) *githubtest.Server {
	t.Helper()
	srv := githubtest.NewServer(t)
	srv.AddUser(githubtest.User{
		Login: "octocat",
		Name:  "The Octocat",
		Repos: []githubtest.Repo{
			{ID: 1, Name: "alpha", Languages: map[string]int64{"Go": 300}},
		},
	})
	return srv
}

func countRequests(srv *githubtest.Server, prefix string) int {
	n := 0
	for _, r := range srv.Requests() {
		if strings.HasPrefix(r, prefix) {
			n++
		}
	}
	return n
}

func TestFetcher_CachesUntilTTL(t *testing.T) {
	srv := newServer(t)
	clk := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	f := newTestFetcher(t, srv, time.Minute, fetcher.WithClock(clk.Now))
	ctx := context.Background()

	for _, login := range []string{"octocat", "OctoCat", "octocat"} {
		p, err := f.GetUser(ctx, login)
		if err != nil {
			t.Fatalf("GetUser(%q): %v", login, err)
		}
		if p.Name != "The Octocat" {
			t.Fatalf("unexpected profile: %+v", p)
		}
	}
	if n := countRequests(srv, "/users/octocat"); n != 1 {
		t.Fatalf("expected 1 request within TTL, got %d (%v)", n, srv.Requests())
	}

	clk.Advance(time.Minute)
	if _, err := f.GetUser(ctx, "octocat"); err != nil {
		t.Fatalf("GetUser after expiry: %v", err)
	}
	if n := countRequests(srv, "/users/octocat"); n != 2 {
		t.Fatalf("expected a new request after TTL, got %d", n)
	}
}

func TestFetcher_ReposAndLanguages(t *testing.T) {
	srv := newServer(t)
	f := newTestFetcher(t, srv, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		repos, err := f.ListRepos(ctx, "octocat")
		if err != nil || len(repos) != 1 || repos[0].Name != "alpha" {
			t.Fatalf("ListRepos = %v, %v", repos, err)
		}
		langs, err := f.GetLanguages(ctx, "octocat", "alpha")
		if err != nil || langs["Go"] != 300 {
			t.Fatalf("GetLanguages = %v, %v", langs, err)
		}
	}
	if got := len(srv.Requests()); got != 2 {
		t.Fatalf("expected 2 requests, got %d (%v)", got, srv.Requests())
	}
	if got := f.Cache().Len(); got != 2 {
		t.Fatalf("expected 2 cache entries, got %d", got)
	}
}

func TestFetcher_ReturnsCopies(t *testing.T) {
	srv := newServer(t)
	f := newTestFetcher(t, srv, time.Minute)
	ctx := context.Background()

	langs, err := f.GetLanguages(ctx, "octocat", "alpha")
	if err != nil {
		t.Fatalf("GetLanguages: %v", err)
	}
	langs["Go"] = 1
	langs["Evil"] = 2

	p, err := f.GetUser(ctx, "octocat")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	p.Name = "mutated"

	again, _ := f.GetLanguages(ctx, "octocat", "alpha")
	if again["Go"] != 300 || len(again) != 1 {
		t.Fatalf("cached languages were mutated: %v", again)
	}
	p2, _ := f.GetUser(ctx, "octocat")
	if p2.Name != "The Octocat" {
		t.Fatalf("cached profile was mutated: %+v", p2)
	}
}

func TestFetcher_ErrorsAreNotCached(t *testing.T) {
	srv := newServer(t)
	srv.Fail("/users/octocat", http.StatusInternalServerError)
	f := newTestFetcher(t, srv, time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := f.GetUser(context.Background(), "octocat"); !errors.Is(err, gh.ErrRemote) {
			t.Fatalf("expected ErrRemote, got %v", err)
		}
	}
	if n := countRequests(srv, "/users/octocat"); n != 2 {
		t.Fatalf("expected every failed lookup to hit the API, got %d", n)
	}
	if f.Cache().Len() != 0 {
		t.Fatalf("expected empty cache")
	}
}

func TestFetcher_DedupesConcurrentLookups(t *testing.T) {
	srv := newServer(t)
	release := srv.Hold("/users/octocat")
	defer release()
	f := newTestFetcher(t, srv, time.Minute)

	const callers = 5
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	call := func() {
		defer wg.Done()
		_, err := f.GetUser(context.Background(), "octocat")
		errs <- err
	}

	wg.Add(1)
	go call()
	waitForRequests(t, srv, 1)

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go call()
	}
	time.Sleep(50 * time.Millisecond)
	release()
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("GetUser: %v", err)
		}
	}
	if n := countRequests(srv, "/users/octocat"); n != 1 {
		t.Fatalf("expected 1 shared request, got %d", n)
	}
}

func TestFetcher_WaiterStopsOnOwnContext(t *testing.T) {
	srv := newServer(t)
	release := srv.Hold("/users/octocat")
	defer release()
	f := newTestFetcher(t, srv, time.Minute)

	leaderDone := make(chan error, 1)
	go func() {
		_, err := f.GetUser(context.Background(), "octocat")
		leaderDone <- err
	}()
	waitForRequests(t, srv, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.GetUser(ctx, "octocat"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	release()
	if err := <-leaderDone; err != nil {
		t.Fatalf("leader GetUser: %v", err)
	}
}

func TestNewFetcher_Validates(t *testing.T) {
	if _, err := fetcher.NewFetcher(nil, time.Minute); err == nil {
		t.Fatalf("expected error for nil source")
	}
	client, err := gh.NewClient(context.Background(), "")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := fetcher.NewFetcher(client, 0); err == nil {
		t.Fatalf("expected error for zero ttl")
	}
}

func waitForRequests(t *testing.T, srv *githubtest.Server, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for len(srv.Requests()) < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d requests, got %v", n, srv.Requests())
		}
		time.Sleep(5 * time.Millisecond)
	}
}
