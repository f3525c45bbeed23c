package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"ghanalyzer/internal/chart"
)

type Config struct {
	// MAINTAINER NOTE: If you add/change/remove config fields, keep these in sync:
	// - CLI flags in internal/cli (names in internal/flags)
	// - the YAML file schema in file.go
	Target  Target
	Output  Output
	Runtime Runtime
	Server  Server
	Log     Log
	Chart   Chart
}

type Target struct {
	// User is the GitHub account to analyze (login or profile URL).
	User string

	// Token overrides the GITHUB_TOKEN environment variable (see --token).
	// Empty means unauthenticated requests.
	Token string

	// APIURL is the REST API root (see --api-url). Empty means api.github.com.
	APIURL string
}

type Output struct {
	// Format controls the console output of the analyze command (see --format).
	// Allowed values: text, json.
	Format string

	// Out writes the analysis result as JSON to this path (see --out).
	Out string

	// Chart writes the language pie chart as SVG to this path (see --chart).
	Chart string

	// NoColor disables ANSI colours in console output (see --no-color).
	NoColor bool
}

type Runtime struct {
	// Concurrency bounds parallel language fetches (see --concurrency).
	// 1 fetches repositories strictly one after another.
	Concurrency int

	// Timeout bounds one analysis run (see --timeout). Must be > 0.
	Timeout time.Duration

	// CacheTTL keeps successful GitHub lookups for this long (see
	// --cache-ttl). 0, the default, sends every lookup to the API.
	CacheTTL time.Duration

	// Verbose logs every GitHub API call.
	Verbose bool
}

type Server struct {
	// Addr is the listen address of the web UI (see --addr).
	Addr string

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration
}

type Log struct {
	// Level is one of debug, info, warn, error.
	Level string

	// File additionally writes logs to this rotated file when set.
	File string
}

type Chart struct {
	// Palette lists slice colours as #RRGGBB; colours cycle when there are
	// more languages than entries.
	Palette []string
}

func New() *Config {
	return &Config{
		Output: Output{
			Format: "text",
		},
		Runtime: Runtime{
			Concurrency: 1,
			Timeout:     2 * time.Minute,
		},
		Server: Server{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Log: Log{
			Level: "info",
		},
		Chart: Chart{
			Palette: append([]string(nil), chart.DefaultPalette...),
		},
	}
}

var hexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

func (c *Config) Validate() error {
	if c.Target.User != "" {
		user, err := NormalizeUsername(c.Target.User)
		if err != nil {
			return fmt.Errorf("invalid user value: %w", err)
		}
		c.Target.User = user
	}
	c.Target.Token = strings.TrimSpace(c.Target.Token)
	c.Target.APIURL = strings.TrimSpace(c.Target.APIURL)
	if c.Target.APIURL != "" {
		u, err := url.Parse(c.Target.APIURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid --api-url: %q", c.Target.APIURL)
		}
	}

	// Output validation
	c.Output.Format = normalizeEnumValue(c.Output.Format)
	if c.Output.Format == "" {
		return errors.New("--format must be one of: text, json")
	}
	if c.Output.Format != "text" && c.Output.Format != "json" {
		return fmt.Errorf("unsupported --format: %s (must be one of: text, json)", c.Output.Format)
	}
	if c.Output.Out != "" {
		if ext := strings.ToLower(filepath.Ext(c.Output.Out)); ext != ".json" {
			if ext == "" {
				return errors.New("--out must name a .json file (missing extension)")
			}
			return fmt.Errorf("--out must name a .json file, got extension %q", ext)
		}
	}
	if c.Output.Chart != "" {
		if ext := strings.ToLower(filepath.Ext(c.Output.Chart)); ext != ".svg" {
			return fmt.Errorf("--chart must name a .svg file, got %q", c.Output.Chart)
		}
	}

	// Runtime validation
	if c.Runtime.Concurrency <= 0 {
		return errors.New("--concurrency must be >= 1")
	}
	if c.Runtime.Timeout <= 0 {
		return errors.New("--timeout must be > 0")
	}
	if c.Runtime.CacheTTL < 0 {
		return errors.New("--cache-ttl must be >= 0")
	}

	// Server validation
	c.Server.Addr = strings.TrimSpace(c.Server.Addr)
	if c.Server.Addr == "" {
		return errors.New("--addr must not be empty")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("server shutdown timeout must be > 0")
	}

	// Log validation
	c.Log.Level = normalizeEnumValue(c.Log.Level)
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported --log-level: %s (must be one of: debug, info, warn, error)", c.Log.Level)
	}
	c.Log.File = strings.TrimSpace(c.Log.File)

	// Chart validation
	c.Chart.Palette = splitCommaList(c.Chart.Palette)
	if len(c.Chart.Palette) == 0 {
		c.Chart.Palette = append([]string(nil), chart.DefaultPalette...)
	}
	for _, col := range c.Chart.Palette {
		if !hexColor.MatchString(col) {
			return fmt.Errorf("invalid chart palette colour %q (expected #RRGGBB)", col)
		}
	}

	return nil
}

func normalizeEnumValue(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// GitHub logins are alphanumeric with single inner hyphens, at most 39 chars.
var loginPattern = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9]|-[A-Za-z0-9]){0,38}$`)

var (
	// ErrEmptyUsername is returned by NormalizeUsername for blank input.
	ErrEmptyUsername   = errors.New("username is empty")
	// ErrInvalidUsername wraps every other NormalizeUsername rejection.
	ErrInvalidUsername = errors.New("not a valid GitHub login")
)

// NormalizeUsername accepts a raw login or a GitHub profile URL like:
//
//	https://github.com/<name>
//	https://github.com/users/<name>
//	github.com/<name>
//	@<name>
//
// and returns the bare login.
func NormalizeUsername(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrEmptyUsername
	}

	if strings.HasPrefix(raw, "github.com/") || strings.HasPrefix(raw, "www.github.com/") {
		raw = "https://" + raw
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("%w: %q", ErrInvalidUsername, raw)
		}
		host := strings.ToLower(u.Hostname())
		if host == "www.github.com" {
			host = "github.com"
		}
		if host != "github.com" {
			return "", fmt.Errorf("%w: %q", ErrInvalidUsername, raw)
		}
		parts := strings.FieldsFunc(strings.Trim(u.Path, "/"), func(r rune) bool { return r == '/' })
		if len(parts) == 0 {
			return "", fmt.Errorf("%w: %q", ErrInvalidUsername, raw)
		}
		raw = parts[0]
		if parts[0] == "users" || parts[0] == "orgs" {
			if len(parts) < 2 {
				return "", fmt.Errorf("%w: %q", ErrInvalidUsername, raw)
			}
			raw = parts[1]
		}
	}

	raw = strings.TrimPrefix(raw, "@")
	if len(raw) > 39 || !loginPattern.MatchString(raw) {
		return "", fmt.Errorf("%w: %q", ErrInvalidUsername, raw)
	}
	return raw, nil
}

func splitCommaList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			p := strings.TrimSpace(part)
			if p == "" {
				continue
			}
			out = append(out, p)
		}
	}
	return out
}
