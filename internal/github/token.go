package github

import (
	"context"
	"os"
	"strings"
)

type AuthTokenSource string

const (
	AuthTokenSourceExplicit AuthTokenSource = "explicit"
	AuthTokenSourceEnv      AuthTokenSource = "env:GITHUB_TOKEN"
)

// TokenEnvVar is the environment variable holding the API token.
const TokenEnvVar = "GITHUB_TOKEN"

// ResolveAuthToken resolves a GitHub access token.
//
// Precedence:
//  1. provided (if non-empty)
//  2. GITHUB_TOKEN env var
//
// A missing token is not an error; callers fall back to unauthenticated
// requests and the lower anonymous rate limit. It never prints the token.
func ResolveAuthToken(ctx context.Context, provided string) (token string, source AuthTokenSource, err error) {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return "", "", err
		}
	}

	if tok := strings.TrimSpace(provided); tok != "" {
		return tok, AuthTokenSourceExplicit, nil
	}

	if env := strings.TrimSpace(os.Getenv(TokenEnvVar)); env != "" {
		return env, AuthTokenSourceEnv, nil
	}
	return "", "", nil
}
