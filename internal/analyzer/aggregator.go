// Package analyzer fetches a user's profile and repositories and folds the
// per-repository language byte counts into a single tally.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ghanalyzer/internal/data/models"
	gh "ghanalyzer/internal/github"

	"golang.org/x/sync/errgroup"
)

// Source is the subset of the GitHub client the aggregator needs.
type Source interface {
	GetUser(ctx context.Context, username string) (*models.UserProfile, error)
	ListRepos(ctx context.Context, username string) ([]models.Repository, error)
	GetLanguages(ctx context.Context, owner, repo string) (map[string]int64, error)
}

var _ Source = (*gh.Client)(nil)

// Stage names the step of a run that failed.
type Stage string

const (
	StageProfile   Stage = "profile"
	StageRepos     Stage = "repos"
	StageLanguages Stage = "languages"
)

// RunError wraps the first failure of a run.
type RunError struct {
	Stage    Stage
	Username string
	Repo     string // set for StageLanguages
	Err      error
}

func (e *RunError) Error() string {
	if e.Repo != "" {
		return fmt.Sprintf("analyze %s: %s %s: %v", e.Username, e.Stage, e.Repo, e.Err)
	}
	return fmt.Sprintf("analyze %s: %s: %v", e.Username, e.Stage, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// Result is the outcome of a successful run.
type Result struct {
	Profile    *models.UserProfile   `json:"profile"`
	Repos      []models.Repository   `json:"repos"`
	Tally      *models.LanguageTally `json:"languages"`
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt time.Time             `json:"finished_at"`
}

type Aggregator struct {
	source      Source
	concurrency int
	logger      *slog.Logger
	now         func() time.Time
}

type Option func(*Aggregator)

// WithConcurrency bounds the number of language fetches in flight. Values
// below 2 keep the run strictly sequential.
func WithConcurrency(n int) Option {
	return func(a *Aggregator) {
		if n < 1 {
			n = 1
		}
		a.concurrency = n
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func NewAggregator(source Source, opts ...Option) (*Aggregator, error) {
	if source == nil {
		return nil, errors.New("source is nil")
	}
	a := &Aggregator{
		source:      source,
		concurrency: 1,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Run fetches the profile, then the repository list, then the languages of
// every repository, and folds the languages into a tally in repository order.
// Any failure aborts the run and no partial result is returned.
func (a *Aggregator) Run(ctx context.Context, username string) (*Result, error) {
	if ctx == nil {
		return nil, errors.New("ctx is nil")
	}
	started := a.now()
	log := a.logger.With("user", username)

	profile, err := a.source.GetUser(ctx, username)
	if err != nil {
		return nil, a.fail(log, &RunError{Stage: StageProfile, Username: username, Err: err})
	}

	repos, err := a.source.ListRepos(ctx, username)
	if err != nil {
		return nil, a.fail(log, &RunError{Stage: StageRepos, Username: username, Err: err})
	}
	log.Debug("repositories listed", "count", len(repos))

	var tally *models.LanguageTally
	if a.concurrency > 1 && len(repos) > 1 {
		tally, err = a.languagesParallel(ctx, username, repos)
	} else {
		tally, err = a.languagesSequential(ctx, username, repos)
	}
	if err != nil {
		return nil, a.fail(log, err)
	}

	res := &Result{
		Profile:    profile,
		Repos:      repos,
		Tally:      tally,
		StartedAt:  started,
		FinishedAt: a.now(),
	}
	log.Info("analysis finished",
		"repos", len(repos),
		"languages", tally.Len(),
		"duration", res.FinishedAt.Sub(started).Round(time.Millisecond))
	return res, nil
}

func (a *Aggregator) languagesSequential(ctx context.Context, username string, repos []models.Repository) (*models.LanguageTally, error) {
	tally := models.NewLanguageTally()
	for _, r := range repos {
		langs, err := a.source.GetLanguages(ctx, username, r.Name)
		if err != nil {
			return nil, &RunError{Stage: StageLanguages, Username: username, Repo: r.Name, Err: err}
		}
		tally.AddAll(langs)
	}
	return tally, nil
}

// languagesParallel fetches with bounded fan-out and folds afterwards in
// repository order, so the tally matches the sequential one exactly.
func (a *Aggregator) languagesParallel(ctx context.Context, username string, repos []models.Repository) (*models.LanguageTally, error) {
	perRepo := make([]map[string]int64, len(repos))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, r := range repos {
		g.Go(func() error {
			langs, err := a.source.GetLanguages(gctx, username, r.Name)
			if err != nil {
				return &RunError{Stage: StageLanguages, Username: username, Repo: r.Name, Err: err}
			}
			perRepo[i] = langs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	tally := models.NewLanguageTally()
	for _, langs := range perRepo {
		tally.AddAll(langs)
	}
	return tally, nil
}

func (a *Aggregator) fail(log *slog.Logger, err error) error {
	var runErr *RunError
	if errors.As(err, &runErr) {
		log = log.With("stage", string(runErr.Stage))
		if runErr.Repo != "" {
			log = log.With("repo", runErr.Repo)
		}
	}
	if errors.Is(err, context.Canceled) {
		log.Debug("analysis canceled")
		return err
	}
	log.Warn("analysis failed", "err", err)
	return err
}
