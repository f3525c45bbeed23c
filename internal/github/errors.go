package github

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/go-github/v81/github"
)

// ErrorKind separates a missing account from every other failure.
type ErrorKind int

const (
	// KindRemote covers non-2xx statuses other than 404, transport failures,
	// undecodable payloads and rate-limit refusals.
	KindRemote ErrorKind = iota
	KindNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	default:
		return "remote_error"
	}
}

var (
	ErrNotFound = errors.New("github: not found")
	ErrRemote   = errors.New("github: remote error")
)

// APIError is the only error type returned by the typed API calls.
type APIError struct {
	Kind       ErrorKind
	Op         string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("github %s: http %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("github %s: %v", e.Op, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrRemote:
		return e.Kind == KindRemote
	}
	return false
}

// classify wraps err from a go-github call into an *APIError.
func classify(op string, resp *github.Response, err error) error {
	if err == nil {
		return nil
	}
	apiErr := &APIError{Kind: KindRemote, Op: op, Err: err}
	if resp != nil && resp.Response != nil {
		apiErr.StatusCode = resp.StatusCode
		if resp.StatusCode == http.StatusNotFound {
			apiErr.Kind = KindNotFound
		}
	}
	return apiErr
}
