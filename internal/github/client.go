package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v81/github"
	"golang.org/x/oauth2"
)

const defaultUserAgent = "ghanalyzer"

type Client struct {
	Client *github.Client
	HTTP   *http.Client
	budget *RequestBudget
}

type options struct {
	verbose bool
	// logger receives one record per request and response when verbose is set.
	logger  *slog.Logger
	baseURL string
	timeout time.Duration
	budget  *RequestBudget
}

type Option func(*options)

func WithVerbose(enabled bool, logger *slog.Logger) Option {
	return func(o *options) {
		o.verbose = enabled
		o.logger = logger
	}
}

// WithBaseURL points the client at a different REST root, e.g. a GitHub
// Enterprise Server (https://host/api/v3/) or a test server.
func WithBaseURL(raw string) Option {
	return func(o *options) {
		o.baseURL = raw
	}
}

// WithTimeout bounds each HTTP exchange. Zero leaves the transport default.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

func WithBudget(b *RequestBudget) Option {
	return func(o *options) {
		o.budget = b
	}
}

// loggingRoundTripper wraps an underlying transport and emits one record per
// request and response (including latency) when verbose logging is enabled.
type loggingRoundTripper struct {
	base   http.RoundTripper
	logger *slog.Logger
}

func (t *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	t.logger.Debug("github api request", "method", req.Method, "url", req.URL.String())
	resp, err := t.base.RoundTrip(req)
	dur := time.Since(start).Truncate(time.Millisecond)
	if err != nil {
		t.logger.Debug("github api error", "method", req.Method, "url", req.URL.String(), "duration", dur, "err", err)
		return resp, err
	}
	t.logger.Debug("github api response",
		"method", req.Method,
		"url", req.URL.String(),
		"status", resp.StatusCode,
		"duration", dur,
		"rate_remaining", resp.Header.Get("X-RateLimit-Remaining"),
	)
	return resp, err
}

// NewClient builds a REST client. A non-empty token is attached to every
// request as a bearer token; an empty token leaves requests unauthenticated.
func NewClient(ctx context.Context, token string, opts ...Option) (*Client, error) {
	if ctx == nil {
		return nil, fmt.Errorf("github client: ctx is nil")
	}

	o := &options{}
	for _, apply := range opts {
		if apply != nil {
			apply(o)
		}
	}
	if o.verbose && o.logger == nil {
		o.logger = slog.Default()
	}
	if o.budget == nil {
		o.budget = NewRequestBudget()
	}

	transport := http.DefaultTransport
	if o.verbose {
		transport = &loggingRoundTripper{base: transport, logger: o.logger}
	}
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		transport = &oauth2.Transport{Source: ts, Base: transport}
	}
	// Always provide an http.Client so verbose logging works even without a token.
	tc := &http.Client{Transport: transport, Timeout: o.timeout}

	gc := github.NewClient(tc)
	gc.UserAgent = defaultUserAgent
	if o.baseURL != "" {
		u, err := parseBaseURL(o.baseURL)
		if err != nil {
			return nil, fmt.Errorf("github client: %w", err)
		}
		gc.BaseURL = u
		gc.UploadURL = u
	}

	return &Client{
		Client: gc,
		HTTP:   tc,
		budget: o.budget,
	}, nil
}

func (c *Client) Budget() *RequestBudget {
	return c.budget
}

func parseBaseURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url %q: scheme must be http or https", raw)
	}
	return u, nil
}
