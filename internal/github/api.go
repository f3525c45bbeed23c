package github

import (
	"context"
	"errors"
	"strings"

	"ghanalyzer/internal/data/models"

	"github.com/google/go-github/v81/github"
)

const reposPerPage = 100

var errEmptyName = errors.New("empty name")

// GetUser fetches the public profile of username (GET /users/{username}).
func (c *Client) GetUser(ctx context.Context, username string) (*models.UserProfile, error) {
	const op = "get user"
	if strings.TrimSpace(username) == "" {
		// go-github maps an empty user to the authenticated account.
		return nil, &APIError{Kind: KindNotFound, Op: op, Err: errEmptyName}
	}
	if err := c.acquire(ctx, op); err != nil {
		return nil, err
	}

	u, resp, err := c.Client.Users.Get(ctx, username)
	c.observe(resp)
	if err != nil {
		return nil, classify(op, resp, err)
	}

	return &models.UserProfile{
		Login:       u.GetLogin(),
		Name:        u.GetName(),
		Bio:         u.GetBio(),
		Followers:   u.GetFollowers(),
		Following:   u.GetFollowing(),
		PublicRepos: u.GetPublicRepos(),
		AvatarURL:   u.GetAvatarURL(),
		HTMLURL:     u.GetHTMLURL(),
	}, nil
}

// ListRepos lists the public repositories of username
// (GET /users/{username}/repos), following pagination. A user without
// repositories yields an empty, non-nil slice.
func (c *Client) ListRepos(ctx context.Context, username string) ([]models.Repository, error) {
	const op = "list repos"
	if strings.TrimSpace(username) == "" {
		return nil, &APIError{Kind: KindNotFound, Op: op, Err: errEmptyName}
	}

	opts := &github.RepositoryListByUserOptions{
		ListOptions: github.ListOptions{PerPage: reposPerPage},
	}
	repos := []models.Repository{}
	for {
		if err := c.acquire(ctx, op); err != nil {
			return nil, err
		}
		page, resp, err := c.Client.Repositories.ListByUser(ctx, username, opts)
		c.observe(resp)
		if err != nil {
			return nil, classify(op, resp, err)
		}
		for _, r := range page {
			if r == nil {
				continue
			}
			repos = append(repos, models.Repository{
				ID:          r.GetID(),
				Name:        r.GetName(),
				Description: r.GetDescription(),
				HTMLURL:     r.GetHTMLURL(),
			})
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return repos, nil
}

// GetLanguages fetches the language byte counts of owner/repo
// (GET /repos/{owner}/{repo}/languages). A repository without detected
// languages yields an empty, non-nil map.
func (c *Client) GetLanguages(ctx context.Context, owner, repo string) (map[string]int64, error) {
	const op = "get languages"
	if strings.TrimSpace(owner) == "" || strings.TrimSpace(repo) == "" {
		return nil, &APIError{Kind: KindNotFound, Op: op, Err: errEmptyName}
	}
	if err := c.acquire(ctx, op); err != nil {
		return nil, err
	}

	langs, resp, err := c.Client.Repositories.ListLanguages(ctx, owner, repo)
	c.observe(resp)
	if err != nil {
		return nil, classify(op, resp, err)
	}

	out := make(map[string]int64, len(langs))
	for lang, n := range langs {
		out[lang] = int64(n)
	}
	return out, nil
}

func (c *Client) acquire(ctx context.Context, op string) error {
	if ctx == nil {
		return &APIError{Kind: KindRemote, Op: op, Err: errors.New("ctx is nil")}
	}
	if c == nil || c.Client == nil {
		return &APIError{Kind: KindRemote, Op: op, Err: errors.New("client is nil (use NewClient)")}
	}
	if c.budget == nil {
		return nil
	}
	if err := c.budget.Acquire(ctx); err != nil {
		return &APIError{Kind: KindRemote, Op: op, Err: err}
	}
	return nil
}

func (c *Client) observe(resp *github.Response) {
	if resp == nil || c.budget == nil {
		return
	}
	c.budget.UpdateFromResponse(resp.Response)
}
